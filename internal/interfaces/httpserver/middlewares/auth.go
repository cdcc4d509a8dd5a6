package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chatlima-server/internal/domain"
	"chatlima-server/internal/domain/user"
	"chatlima-server/internal/infrastructure/auth"
	"chatlima-server/internal/interfaces/httpserver/responses"
	"chatlima-server/internal/utils/platformerrors"
)

const (
	principalContextKey = "principal"
	AdminRole           = "admin"
)

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	Validate(ctx context.Context, rawToken string) (*auth.PrincipalClaims, error)
}

// UserResolver maps a verified identity onto a stored user.
type UserResolver interface {
	EnsureUser(ctx context.Context, identity user.Identity) (*user.User, error)
}

// AuthMiddleware requires a valid bearer JWT. Requests already carrying a cron principal pass through.
func AuthMiddleware(validator TokenValidator, users UserResolver, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, ok := PrincipalFromContext(c); ok && p.AuthMethod == domain.AuthMethodCron {
			c.Next()
			return
		}

		token := bearerToken(c)
		if token == "" {
			logger.Warn().
				Str("path", c.FullPath()).
				Str("method", c.Request.Method).
				Msg("unauthenticated request")
			responses.HandleAppError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
			return
		}

		principal, err := resolvePrincipal(c.Request.Context(), validator, users, token)
		if err != nil {
			logger.Warn().Err(err).Msg("jwt validation failed")
			if platformerrors.IsErrorType(err, platformerrors.ErrorTypeUnauthorized) {
				responses.HandleAppError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
				return
			}
			responses.HandleError(c, err, "failed to resolve user")
			return
		}
		setPrincipal(c, principal)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches a principal when a valid bearer token is sent and never rejects.
func OptionalAuthMiddleware(validator TokenValidator, users UserResolver, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			principal, err := resolvePrincipal(c.Request.Context(), validator, users, token)
			if err != nil {
				logger.Debug().Err(err).Msg("ignoring invalid bearer token on public route")
			} else {
				setPrincipal(c, principal)
			}
		}
		c.Next()
	}
}

func resolvePrincipal(ctx context.Context, validator TokenValidator, users UserResolver, token string) (domain.Principal, error) {
	claims, err := validator.Validate(ctx, token)
	if err != nil {
		return domain.Principal{}, platformerrors.NewError(ctx, platformerrors.LayerRoute, platformerrors.ErrorTypeUnauthorized, "invalid token", err, "7c2e9a4f-1b63-4d8e-a5f0-3e9b7c1d6a28")
	}

	identity := user.Identity{
		Issuer:      claims.Issuer,
		Subject:     claims.Subject,
		IsAnonymous: claims.IsAnonymous,
	}
	if claims.Email != "" {
		identity.Email = &claims.Email
	}
	if claims.Name != "" {
		identity.Name = &claims.Name
	}
	u, err := users.EnsureUser(ctx, identity)
	if err != nil {
		return domain.Principal{}, err
	}

	method := domain.AuthMethodJWT
	if u.IsAnonymous {
		method = domain.AuthMethodAnonymous
	}
	roles := append([]string(nil), claims.Roles...)
	if u.IsAdmin && !hasRole(roles, AdminRole) {
		roles = append(roles, AdminRole)
	}
	return domain.Principal{
		ID:          u.ID,
		AuthMethod:  method,
		Subject:     claims.Subject,
		Issuer:      claims.Issuer,
		Email:       claims.Email,
		Name:        claims.Name,
		IsAnonymous: u.IsAnonymous,
		Roles:       roles,
	}, nil
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(c *gin.Context) (domain.Principal, bool) {
	val, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := val.(domain.Principal)
	return principal, ok
}

// IsAdmin reports whether the request principal carries the admin role.
func IsAdmin(c *gin.Context) bool {
	p, ok := PrincipalFromContext(c)
	return ok && p.ID != "" && hasRole(p.Roles, AdminRole)
}

func setPrincipal(c *gin.Context, principal domain.Principal) {
	c.Set(principalContextKey, principal)
	c.Set("user_id", principal.ID)
	c.Writer.Header().Set("X-Auth-Method", string(principal.AuthMethod))
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, want) {
			return true
		}
	}
	return false
}
