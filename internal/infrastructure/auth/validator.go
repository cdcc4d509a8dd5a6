package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"chatlima-server/internal/config"
)

// PrincipalClaims represent the subset of JWT claims we care about.
type PrincipalClaims struct {
	Subject     string
	Issuer      string
	Email       string
	Name        string
	IsAnonymous bool
	Roles       []string
	ExpiresAt   time.Time
	IssuedAt    time.Time
	// External is set for tokens verified through the JWKS.
	External bool
}

// Validator accepts HS256 tokens signed with the shared secret and, when a JWKS URL
// is configured, RS256 tokens from the external identity provider.
type Validator struct {
	secret    []byte
	issuer    string
	clockSkew time.Duration
	logger    zerolog.Logger
	jwks      atomic.Pointer[keyfunc.JWKS]
	lastErr   atomic.Value // stores lastErrWrap
}

// lastErrWrap is a sentinel wrapper to avoid storing bare nil in atomic.Value.
type lastErrWrap struct{ Err error }

const (
	jwksInitialRetryInterval   = time.Second
	jwksInitialRetryMaxBackoff = 10 * time.Second
	jwksInitialRetryTimeout    = 30 * time.Second
	defaultClockSkew           = 30 * time.Second
)

// NewValidator builds the validator and fetches the JWKS when JWKS_URL is set.
func NewValidator(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Validator, error) {
	if cfg.AuthJWTSecret == "" {
		return nil, errors.New("auth jwt secret is required")
	}
	v := newValidator([]byte(cfg.AuthJWTSecret), cfg.AuthIssuer, logger)
	if cfg.JWKSURL == "" {
		return v, nil
	}
	if err := v.initJWKS(ctx, cfg.JWKSURL, cfg.RefreshJWKSInterval); err != nil {
		return nil, err
	}
	return v, nil
}

func newValidator(secret []byte, issuer string, logger zerolog.Logger) *Validator {
	v := &Validator{
		secret:    secret,
		issuer:    issuer,
		clockSkew: defaultClockSkew,
		logger:    logger.With().Str("component", "auth").Logger(),
	}
	v.lastErr.Store(lastErrWrap{Err: nil})
	return v
}

func (v *Validator) initJWKS(ctx context.Context, jwksURL string, refreshEvery time.Duration) error {
	options := keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			v.lastErr.Store(lastErrWrap{Err: err})
			if err != nil {
				v.logger.Error().Err(err).Msg("jwks refresh failed")
			}
		},
		RefreshInterval:   refreshEvery,
		RefreshUnknownKID: true,
	}

	backoff := jwksInitialRetryInterval
	deadline := time.Now().Add(jwksInitialRetryTimeout)
	for attempt := 1; ; attempt++ {
		jwks, err := keyfunc.Get(jwksURL, options)
		if err == nil {
			v.lastErr.Store(lastErrWrap{Err: nil})
			v.jwks.Store(jwks)
			return nil
		}

		v.logger.Warn().
			Err(err).
			Str("jwks_url", jwksURL).
			Int("attempt", attempt).
			Msg("initial jwks fetch failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("fetch jwks: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("fetch jwks: %w", err)
		}
		if next := backoff * 2; next <= jwksInitialRetryMaxBackoff {
			backoff = next
		} else {
			backoff = jwksInitialRetryMaxBackoff
		}
	}
}

func (v *Validator) keyfunc(token *jwt.Token) (any, error) {
	switch token.Method.Alg() {
	case jwt.SigningMethodHS256.Alg():
		return v.secret, nil
	case jwt.SigningMethodRS256.Alg():
		jwks := v.jwks.Load()
		if jwks == nil {
			return nil, errors.New("RS256 tokens are not accepted without a JWKS")
		}
		return jwks.Keyfunc(token)
	}
	return nil, fmt.Errorf("unexpected signing method %s", token.Method.Alg())
}

// Validate parses and validates the given JWT returning principal claims.
func (v *Validator) Validate(_ context.Context, rawToken string) (*PrincipalClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "RS256"}),
		jwt.WithLeeway(v.clockSkew),
		jwt.WithExpirationRequired(),
	)
	token, err := parser.ParseWithClaims(rawToken, jwt.MapClaims{}, v.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	external := token.Method.Alg() == jwt.SigningMethodRS256.Alg()
	iss := claimString(mapClaims["iss"])
	if !external && iss != v.issuer {
		return nil, fmt.Errorf("issuer mismatch %s", iss)
	}
	sub := claimString(mapClaims["sub"])
	if sub == "" {
		return nil, errors.New("sub claim missing")
	}

	var roles []string
	if rawRoles, ok := mapClaims["roles"].([]any); ok {
		for _, role := range rawRoles {
			if s, ok := role.(string); ok {
				roles = append(roles, s)
			}
		}
	}
	anonymous, _ := mapClaims["is_anonymous"].(bool)

	return &PrincipalClaims{
		Subject:     sub,
		Issuer:      iss,
		Email:       claimString(mapClaims["email"]),
		Name:        claimString(mapClaims["name"]),
		IsAnonymous: anonymous && !external,
		Roles:       roles,
		ExpiresAt:   jwtNumericTime(mapClaims["exp"]),
		IssuedAt:    jwtNumericTime(mapClaims["iat"]),
		External:    external,
	}, nil
}

// Ready indicates whether the JWKS, when configured, is loaded and refreshing.
func (v *Validator) Ready() bool {
	if val := v.lastErr.Load(); val != nil {
		if wrap, ok := val.(lastErrWrap); ok && wrap.Err != nil {
			return false
		}
	}
	return true
}

// Close stops the JWKS background refresh.
func (v *Validator) Close() {
	if jwks := v.jwks.Load(); jwks != nil {
		jwks.EndBackground()
	}
}

func jwtNumericTime(value any) time.Time {
	switch timeValue := value.(type) {
	case float64:
		return time.Unix(int64(timeValue), 0).UTC()
	case int64:
		return time.Unix(timeValue, 0).UTC()
	case json.Number:
		if unixTime, err := timeValue.Int64(); err == nil {
			return time.Unix(unixTime, 0).UTC()
		}
	}
	return time.Time{}
}

func claimString(value any) string {
	if str, ok := value.(string); ok {
		return str
	}
	return ""
}
