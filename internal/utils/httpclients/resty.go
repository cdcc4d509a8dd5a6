package httpclients

import (
	"context"
	"time"

	"resty.dev/v3"

	"chatlima-server/internal/infrastructure/logger"
	"chatlima-server/internal/utils/platformerrors"
)

type HTTPClientStartsAt struct{}

// NewClient returns a resty client that logs every exchange at debug level.
// Bodies are never logged since they carry user prompts and provider keys.
func NewClient(clientName string) *resty.Client {
	return withLogging(resty.New(), clientName)
}

// NewStreamingClient returns a client for long-lived streaming responses. headerTimeout bounds
// connecting and waiting for response headers; reading the body is limited only by the request context.
func NewStreamingClient(clientName string, headerTimeout time.Duration) *resty.Client {
	return withLogging(resty.NewWithTransportSettings(&resty.TransportSettings{
		DialerTimeout:         headerTimeout,
		ResponseHeaderTimeout: headerTimeout,
	}), clientName)
}

func withLogging(client *resty.Client, clientName string) *resty.Client {
	client.AddRequestMiddleware(func(c *resty.Client, r *resty.Request) error {
		ctx := context.WithValue(r.Context(), HTTPClientStartsAt{}, time.Now())
		r.SetContext(ctx)
		return nil
	})
	client.AddResponseMiddleware(func(c *resty.Client, r *resty.Response) error {
		log := logger.GetLogger()
		startTime, _ := r.Request.Context().Value(HTTPClientStartsAt{}).(time.Time)

		event := log.Debug().
			Str("request_id", platformerrors.RequestIDFromContext(r.Request.Context())).
			Str("client", clientName).
			Int("status", r.StatusCode()).
			Bool("streaming", r.Request.DoNotParseResponse).
			Dur("latency", time.Since(startTime))
		if raw := r.Request.RawRequest; raw != nil {
			event = event.Str("method", raw.Method).Str("path", raw.URL.Path)
		}
		event.Msg("HTTP client request")
		return nil
	})
	return client
}
