package usagehandler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chatlima-server/internal/domain/tokenusage"
	middleware "chatlima-server/internal/interfaces/httpserver/middlewares"
	"chatlima-server/internal/interfaces/httpserver/responses"
)

const dateLayout = "2006-01-02"

// UsageReader is the token usage surface used here.
type UsageReader interface {
	GetMyUsage(ctx context.Context, userID string, startDate, endDate time.Time) (*tokenusage.UsageResponse, error)
	GetMyDailyUsage(ctx context.Context, userID string, startDate, endDate time.Time) ([]tokenusage.DailyAggregate, error)
	GetPlatformUsage(ctx context.Context, startDate, endDate time.Time) (*tokenusage.PlatformUsageResponse, error)
}

// UsageHandler handles token usage API requests
type UsageHandler struct {
	usageService UsageReader
	now          func() time.Time
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(usageService *tokenusage.Service) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
		now:          time.Now,
	}
}

// GetMyUsage returns the caller's usage summary for ?start_date and ?end_date (YYYY-MM-DD, default last 30 days).
func (h *UsageHandler) GetMyUsage(c *gin.Context) {
	userID := userIDFromContext(c)
	if userID == "" {
		responses.HandleAppError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	startDate, endDate := h.parseDateRange(c)

	usage, err := h.usageService.GetMyUsage(c.Request.Context(), userID, startDate, endDate)
	if err != nil {
		responses.HandleError(c, err, "Failed to get usage")
		return
	}

	c.JSON(http.StatusOK, usage)
}

// GetMyDailyUsage returns the caller's usage aggregated per day.
func (h *UsageHandler) GetMyDailyUsage(c *gin.Context) {
	userID := userIDFromContext(c)
	if userID == "" {
		responses.HandleAppError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	startDate, endDate := h.parseDateRange(c)

	dailyUsage, err := h.usageService.GetMyDailyUsage(c.Request.Context(), userID, startDate, endDate)
	if err != nil {
		responses.HandleError(c, err, "Failed to get daily usage")
		return
	}
	if dailyUsage == nil {
		dailyUsage = []tokenusage.DailyAggregate{}
	}

	c.JSON(http.StatusOK, dailyUsage)
}

// GetPlatformUsage returns platform totals. Admin only.
func (h *UsageHandler) GetPlatformUsage(c *gin.Context) {
	startDate, endDate := h.parseDateRange(c)

	usage, err := h.usageService.GetPlatformUsage(c.Request.Context(), startDate, endDate)
	if err != nil {
		responses.HandleError(c, err, "Failed to get platform usage")
		return
	}

	c.JSON(http.StatusOK, usage)
}

func (h *UsageHandler) parseDateRange(c *gin.Context) (time.Time, time.Time) {
	now := h.now().UTC()
	endDate := now
	startDate := now.AddDate(0, 0, -30)

	if startStr := c.Query("start_date"); startStr != "" {
		if parsed, err := time.Parse(dateLayout, startStr); err == nil {
			startDate = parsed
		}
	}

	if endStr := c.Query("end_date"); endStr != "" {
		if parsed, err := time.Parse(dateLayout, endStr); err == nil {
			endDate = parsed.Add(24*time.Hour - time.Second) // end of day
		}
	}

	return startDate, endDate
}

func userIDFromContext(c *gin.Context) string {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		return ""
	}
	return principal.ID
}
