package authhandler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chatlima-server/internal/config"
	"chatlima-server/internal/domain/user"
	"chatlima-server/internal/infrastructure/auth"
	middleware "chatlima-server/internal/interfaces/httpserver/middlewares"
	"chatlima-server/internal/interfaces/httpserver/responses"
)

// UserStore creates and resolves users for the auth chains.
type UserStore interface {
	middleware.UserResolver
	CreateAnonymous(ctx context.Context) (*user.User, error)
}

// AnonymousIssuer signs session tokens for anonymous users.
type AnonymousIssuer interface {
	IssueAnonymous(userID string) (string, time.Time, error)
}

// AnonymousSessionResponse is returned by POST /api/auth/anonymous.
type AnonymousSessionResponse struct {
	Token       string    `json:"token"`
	UserID      string    `json:"userId"`
	IsAnonymous bool      `json:"isAnonymous"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// AuthHandler builds the middleware chains used by routes and serves anonymous sessions.
type AuthHandler struct {
	validator  middleware.TokenValidator
	users      UserStore
	issuer     AnonymousIssuer
	cronSecret string
	logger     zerolog.Logger
}

func NewAuthHandler(
	validator *auth.Validator,
	users *user.Service,
	issuer *auth.TokenIssuer,
	cfg *config.Config,
	logger zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{
		validator:  validator,
		users:      users,
		issuer:     issuer,
		cronSecret: cfg.CronSecret,
		logger:     logger.With().Str("component", "auth-handler").Logger(),
	}
}

// WithAuthChain requires a signed-in or anonymous session before the handlers.
func (h *AuthHandler) WithAuthChain(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	chain := []gin.HandlerFunc{middleware.AuthMiddleware(h.validator, h.users, h.logger)}
	return append(chain, handlers...)
}

// WithAdminChain requires an admin principal.
func (h *AuthHandler) WithAdminChain(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	chain := []gin.HandlerFunc{
		middleware.AuthMiddleware(h.validator, h.users, h.logger),
		middleware.RequireAdmin(),
	}
	return append(chain, handlers...)
}

// WithAdminOrCronChain admits admins and the platform scheduler.
func (h *AuthHandler) WithAdminOrCronChain(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	chain := []gin.HandlerFunc{
		middleware.CronAuth(h.cronSecret, h.logger),
		middleware.AuthMiddleware(h.validator, h.users, h.logger),
		middleware.RequireAdminOrCron(),
	}
	return append(chain, handlers...)
}

// OptionalAuth attaches a principal on public routes when one is presented.
func (h *AuthHandler) OptionalAuth() gin.HandlerFunc {
	return middleware.OptionalAuthMiddleware(h.validator, h.users, h.logger)
}

// CreateAnonymousSession creates an anonymous user and returns a signed token for it.
func (h *AuthHandler) CreateAnonymousSession(c *gin.Context) {
	u, err := h.users.CreateAnonymous(c.Request.Context())
	if err != nil {
		responses.HandleError(c, err, "Failed to create anonymous session")
		return
	}

	token, expiresAt, err := h.issuer.IssueAnonymous(u.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", u.ID).Msg("failed to sign anonymous token")
		responses.HandleError(c, err, "Failed to create anonymous session")
		return
	}

	h.logger.Info().Str("user_id", u.ID).Msg("anonymous session created")
	c.JSON(http.StatusCreated, AnonymousSessionResponse{
		Token:       token,
		UserID:      u.ID,
		IsAnonymous: true,
		ExpiresAt:   expiresAt,
	})
}
