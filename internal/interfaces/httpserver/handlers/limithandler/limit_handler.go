package limithandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chatlima-server/internal/domain/credit"
	"chatlima-server/internal/domain/usagelimit"
	"chatlima-server/internal/domain/user"
	middleware "chatlima-server/internal/interfaces/httpserver/middlewares"
	"chatlima-server/internal/interfaces/httpserver/responses"
)

type LimitService interface {
	GetLimits(ctx context.Context, subject usagelimit.Subject) (*usagelimit.UsageView, error)
	UpdateLimits(ctx context.Context, userID string, daily, monthly *int64) (*usagelimit.Override, error)
}

type UserLookup interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
}

type CreditChecker interface {
	HasCredits(ctx context.Context, userID string, min int64) (bool, error)
}

// UpdateLimitsRequest is the body of PUT /api/limits/usage. A null limit clears that override.
type UpdateLimitsRequest struct {
	UserID              string `json:"userId" binding:"required"`
	DailyMessageLimit   *int64 `json:"dailyMessageLimit"`
	MonthlyMessageLimit *int64 `json:"monthlyMessageLimit"`
}

type LimitHandler struct {
	limits  LimitService
	users   UserLookup
	credits CreditChecker
	logger  zerolog.Logger
}

func NewLimitHandler(limits *usagelimit.UsageLimitsService, users *user.Service, credits *credit.CreditService, logger zerolog.Logger) *LimitHandler {
	return &LimitHandler{
		limits:  limits,
		users:   users,
		credits: credits,
		logger:  logger.With().Str("component", "limit-handler").Logger(),
	}
}

// GetLimits returns the caller's limits. Admins may pass ?userId to inspect another user.
func (h *LimitHandler) GetLimits(c *gin.Context) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok || principal.ID == "" {
		responses.HandleAppError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}
	ctx := c.Request.Context()

	subject := usagelimit.Subject{UserID: principal.ID, IsAnonymous: principal.IsAnonymous}
	if target := strings.TrimSpace(c.Query("userId")); target != "" && target != principal.ID {
		if !middleware.IsAdmin(c) {
			responses.HandleAppError(c, http.StatusForbidden, "FORBIDDEN", "Admin access required", nil)
			return
		}
		u, err := h.users.GetUser(ctx, target)
		if err != nil {
			responses.HandleError(c, err, "User not found")
			return
		}
		subject = usagelimit.Subject{UserID: u.ID, IsAnonymous: u.IsAnonymous}
	}

	if !subject.IsAnonymous {
		has, err := h.credits.HasCredits(ctx, subject.UserID, 1)
		if err != nil {
			h.logger.Warn().Err(err).Str("user_id", subject.UserID).Msg("credit lookup failed, using free limits")
		}
		subject.HasCredits = has
	}

	view, err := h.limits.GetLimits(ctx, subject)
	if err != nil {
		responses.HandleError(c, err, "Failed to load usage limits")
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateLimits stores a per-user override. Admin only.
func (h *LimitHandler) UpdateLimits(c *gin.Context) {
	var req UpdateLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleAppError(c, http.StatusBadRequest, "INVALID_PARAMETERS", "userId is required", err.Error())
		return
	}

	override, err := h.limits.UpdateLimits(c.Request.Context(), strings.TrimSpace(req.UserID), req.DailyMessageLimit, req.MonthlyMessageLimit)
	if err != nil {
		responses.HandleError(c, err, "Failed to update usage limits")
		return
	}

	admin, _ := middleware.PrincipalFromContext(c)
	h.logger.Info().Str("admin_id", admin.ID).Str("user_id", override.UserID).Msg("usage limits updated")
	c.JSON(http.StatusOK, gin.H{"success": true, "data": override})
}
