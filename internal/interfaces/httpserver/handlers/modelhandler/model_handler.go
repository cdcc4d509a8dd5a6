package modelhandler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chatlima-server/internal/domain/catalog"
	middleware "chatlima-server/internal/interfaces/httpserver/middlewares"
	"chatlima-server/internal/interfaces/httpserver/requests"
	"chatlima-server/internal/interfaces/httpserver/responses"
	"chatlima-server/internal/utils/platformerrors"
)

// ModelCatalog is the catalog surface used by the model endpoints.
type ModelCatalog interface {
	ListModels(ctx context.Context) (*catalog.CatalogResult, error)
	ReloadPolicy() error
	Refresh()
}

// ModelListResponse is the body of GET /api/models.
type ModelListResponse struct {
	Models               []catalog.ModelInfo `json:"models"`
	UnavailableProviders []string            `json:"unavailableProviders,omitempty"`
	SkippedModels        int                 `json:"skippedModels,omitempty"`
}

type ModelHandler struct {
	catalog ModelCatalog
	logger  zerolog.Logger
}

func NewModelHandler(catalog *catalog.ModelCatalogService, logger zerolog.Logger) *ModelHandler {
	return &ModelHandler{
		catalog: catalog,
		logger:  logger.With().Str("component", "model-handler").Logger(),
	}
}

// ListModels returns the blocklist-filtered catalog. ?refresh=true drops cached lists first and is admin only.
func (h *ModelHandler) ListModels(c *gin.Context) {
	refresh, err := requests.GetBoolQuery(c, "refresh")
	if err != nil {
		responses.HandleError(c, err, "Invalid refresh flag")
		return
	}
	if refresh {
		if !middleware.IsAdmin(c) {
			responses.HandleAppError(c, http.StatusForbidden, "FORBIDDEN", "Only admins can refresh the model catalog", nil)
			return
		}
		h.catalog.Refresh()
		h.logger.Info().Msg("model catalog cache purged")
	}

	result, err := h.catalog.ListModels(c.Request.Context())
	if err != nil {
		responses.HandleError(c, err, "Failed to load models")
		return
	}

	resp := ModelListResponse{
		Models:        result.Models,
		SkippedModels: len(result.ParseErrors),
	}
	if resp.Models == nil {
		resp.Models = []catalog.ModelInfo{}
	}
	for _, f := range result.Failures {
		resp.UnavailableProviders = append(resp.UnavailableProviders, string(f.Provider))
	}
	c.JSON(http.StatusOK, resp)
}

// ReloadBlocklist re-reads the model policy file.
func (h *ModelHandler) ReloadBlocklist(c *gin.Context) {
	if err := h.catalog.ReloadPolicy(); err != nil {
		responses.HandleError(c, platformerrors.AsError(c.Request.Context(), platformerrors.LayerHandler, err, "failed to reload model blocklist"), "Failed to reload model blocklist")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
