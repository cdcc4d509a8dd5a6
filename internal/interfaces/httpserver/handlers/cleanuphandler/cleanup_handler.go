package cleanuphandler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chatlima-server/internal/domain"
	"chatlima-server/internal/domain/cleanup"
	"chatlima-server/internal/domain/query"
	middleware "chatlima-server/internal/interfaces/httpserver/middlewares"
	"chatlima-server/internal/interfaces/httpserver/requests"
	"chatlima-server/internal/interfaces/httpserver/responses"
)

type CleanupRunner interface {
	Execute(ctx context.Context, params cleanup.ExecuteParams) (*cleanup.ExecutionResult, error)
	RunScheduled(ctx context.Context) (*cleanup.ExecutionResult, error)
	Preview(ctx context.Context, thresholdDays int) (*cleanup.PreviewResult, error)
	GetConfig(ctx context.Context) (*cleanup.Config, error)
	UpdateConfig(ctx context.Context, cfg cleanup.Config, adminUserID string) (*cleanup.Config, error)
	ListLogs(ctx context.Context, pagination *query.Pagination) ([]*cleanup.ExecutionLog, int64, error)
}

// ExecuteRequest is the admin body of POST /api/admin/cleanup-users/execute. Omitted sizes use the defaults.
type ExecuteRequest struct {
	ThresholdDays     *int   `json:"thresholdDays"`
	BatchSize         *int   `json:"batchSize"`
	DryRun            bool   `json:"dryRun"`
	ConfirmationToken string `json:"confirmationToken"`
}

// UpdateConfigRequest is the body of PUT /api/admin/cleanup-users/config.
type UpdateConfigRequest struct {
	Enabled       bool   `json:"enabled"`
	ThresholdDays int    `json:"thresholdDays"`
	BatchSize     int    `json:"batchSize"`
	Schedule      string `json:"schedule"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

type CleanupHandler struct {
	cleanup CleanupRunner
	logger  zerolog.Logger
}

func NewCleanupHandler(cleanup *cleanup.CleanupService, logger zerolog.Logger) *CleanupHandler {
	return &CleanupHandler{
		cleanup: cleanup,
		logger:  logger.With().Str("component", "cleanup-handler").Logger(),
	}
}

// Execute runs a cleanup batch. Scheduler calls use the stored config and need no confirmation.
// Per-user failures answer 206 with the errors in the result.
func (h *CleanupHandler) Execute(c *gin.Context) {
	principal, _ := middleware.PrincipalFromContext(c)
	ctx := c.Request.Context()

	if principal.AuthMethod == domain.AuthMethodCron {
		result, err := h.cleanup.RunScheduled(ctx)
		if err != nil {
			responses.HandleError(c, err, "Cleanup failed")
			return
		}
		if result.Skipped {
			c.JSON(http.StatusOK, successResponse{Success: true, Data: result, Message: "Scheduled cleanup is disabled"})
			return
		}
		h.respondResult(c, result)
		return
	}

	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		responses.HandleAppError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err.Error())
		return
	}
	params := cleanup.ExecuteParams{
		ThresholdDays:     cleanup.DefaultThresholdDays,
		BatchSize:         cleanup.DefaultBatchSize,
		DryRun:            req.DryRun,
		ConfirmationToken: req.ConfirmationToken,
		TriggeredBy:       cleanup.TriggerAdmin,
		AdminUserID:       principal.ID,
	}
	if req.ThresholdDays != nil {
		params.ThresholdDays = *req.ThresholdDays
	}
	if req.BatchSize != nil {
		params.BatchSize = *req.BatchSize
	}

	result, err := h.cleanup.Execute(ctx, params)
	if err != nil {
		responses.HandleError(c, err, "Cleanup failed")
		return
	}
	h.respondResult(c, result)
}

func (h *CleanupHandler) respondResult(c *gin.Context, result *cleanup.ExecutionResult) {
	status := http.StatusOK
	if result.Partial() {
		status = http.StatusPartialContent
		h.logger.Warn().
			Str("execution_id", result.ExecutionID).
			Int("errors", len(result.Errors)).
			Msg("cleanup finished with per-user errors")
	}
	c.JSON(status, successResponse{Success: true, Data: result})
}

// Preview counts candidates for ?thresholdDays (default 45).
func (h *CleanupHandler) Preview(c *gin.Context) {
	threshold := cleanup.DefaultThresholdDays
	if raw := c.Query("thresholdDays"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			responses.HandleAppError(c, http.StatusBadRequest, "INVALID_PARAMETERS", "thresholdDays must be a number", nil)
			return
		}
		threshold = v
	}

	preview, err := h.cleanup.Preview(c.Request.Context(), threshold)
	if err != nil {
		responses.HandleError(c, err, "Failed to preview cleanup")
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true, Data: preview})
}

func (h *CleanupHandler) GetConfig(c *gin.Context) {
	cfg, err := h.cleanup.GetConfig(c.Request.Context())
	if err != nil {
		responses.HandleError(c, err, "Failed to load cleanup config")
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true, Data: cfg})
}

func (h *CleanupHandler) UpdateConfig(c *gin.Context) {
	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleAppError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err.Error())
		return
	}
	principal, _ := middleware.PrincipalFromContext(c)

	saved, err := h.cleanup.UpdateConfig(c.Request.Context(), cleanup.Config{
		Enabled:       req.Enabled,
		ThresholdDays: req.ThresholdDays,
		BatchSize:     req.BatchSize,
		Schedule:      req.Schedule,
	}, principal.ID)
	if err != nil {
		responses.HandleError(c, err, "Failed to update cleanup config")
		return
	}
	h.logger.Info().Str("admin_id", principal.ID).Bool("enabled", saved.Enabled).Msg("cleanup config updated")
	c.JSON(http.StatusOK, successResponse{Success: true, Data: saved})
}

func (h *CleanupHandler) ListLogs(c *gin.Context) {
	pagination, err := requests.GetPaginationFromQuery(c)
	if err != nil {
		responses.HandleError(c, err, "Invalid pagination")
		return
	}
	logs, total, err := h.cleanup.ListLogs(c.Request.Context(), pagination)
	if err != nil {
		responses.HandleError(c, err, "Failed to list cleanup logs")
		return
	}
	if logs == nil {
		logs = []*cleanup.ExecutionLog{}
	}
	c.JSON(http.StatusOK, responses.ListResponse[*cleanup.ExecutionLog]{
		Data:  logs,
		Total: total,
		Page:  pagination.Page(),
		Limit: pagination.LimitOr(query.DefaultLimit),
	})
}
