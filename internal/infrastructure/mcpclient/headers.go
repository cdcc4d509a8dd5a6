package mcpclient

import (
	"net/http"
	"strings"

	"chatlima-server/internal/domain/mcpserver"
)

// headerRoundTripper adds the configured headers to every request of a session.
type headerRoundTripper struct {
	next    http.RoundTripper
	headers []mcpserver.KeyValue
}

func newHeaderRoundTripper(next http.RoundTripper, headers []mcpserver.KeyValue) http.RoundTripper {
	if len(headers) == 0 {
		return next
	}
	return &headerRoundTripper{next: next, headers: headers}
}

func (rt *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for _, h := range rt.headers {
		if strings.TrimSpace(h.Key) == "" {
			continue
		}
		req.Header.Set(h.Key, h.Value)
	}
	return rt.next.RoundTrip(req)
}
