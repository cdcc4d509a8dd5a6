package pricinghandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chatlima-server/internal/domain/pricing"
	"chatlima-server/internal/domain/query"
	"chatlima-server/internal/interfaces/httpserver/requests"
	"chatlima-server/internal/interfaces/httpserver/responses"
)

type PricingStore interface {
	List(ctx context.Context, filter pricing.Filter, pagination *query.Pagination) ([]*pricing.ModelPricingInfo, int64, error)
	Upsert(ctx context.Context, input pricing.UpsertInput) (*pricing.ModelPricingInfo, error)
}

type PricingHandler struct {
	pricing PricingStore
}

func NewPricingHandler(pricing *pricing.PricingService) *PricingHandler {
	return &PricingHandler{pricing: pricing}
}

// ListPricing pages through model prices filtered by ?provider, ?modelId and ?activeOnly.
func (h *PricingHandler) ListPricing(c *gin.Context) {
	pagination, err := requests.GetPaginationFromQuery(c)
	if err != nil {
		responses.HandleError(c, err, "Invalid pagination")
		return
	}
	activeOnly, err := requests.GetBoolQuery(c, "activeOnly")
	if err != nil {
		responses.HandleError(c, err, "Invalid activeOnly flag")
		return
	}
	filter := pricing.Filter{
		Provider:   strings.TrimSpace(c.Query("provider")),
		ModelID:    strings.TrimSpace(c.Query("modelId")),
		ActiveOnly: activeOnly,
	}

	items, total, err := h.pricing.List(c.Request.Context(), filter, pagination)
	if err != nil {
		responses.HandleError(c, err, "Failed to list model pricing")
		return
	}
	if items == nil {
		items = []*pricing.ModelPricingInfo{}
	}
	c.JSON(http.StatusOK, responses.ListResponse[*pricing.ModelPricingInfo]{
		Data:  items,
		Total: total,
		Page:  pagination.Page(),
		Limit: pagination.LimitOr(query.DefaultLimit),
	})
}

// UpsertPricing sets the active price of a model. Admin only.
func (h *PricingHandler) UpsertPricing(c *gin.Context) {
	var input pricing.UpsertInput
	if err := c.ShouldBindJSON(&input); err != nil {
		responses.HandleAppError(c, http.StatusBadRequest, "INVALID_PARAMETERS", "Invalid request body", err.Error())
		return
	}

	saved, err := h.pricing.Upsert(c.Request.Context(), input)
	if err != nil {
		responses.HandleError(c, err, "Failed to update model pricing")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": saved})
}
