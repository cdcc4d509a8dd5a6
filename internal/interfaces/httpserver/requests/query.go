package requests

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"chatlima-server/internal/domain/query"
	"chatlima-server/internal/utils/platformerrors"
)

// GetPaginationFromQuery reads 1-based ?page and ?limit.
func GetPaginationFromQuery(reqCtx *gin.Context) (*query.Pagination, error) {
	page, err := positiveInt(reqCtx, "page", 1)
	if err != nil {
		return nil, err
	}
	limit, err := positiveInt(reqCtx, "limit", query.DefaultLimit)
	if err != nil {
		return nil, err
	}
	p := query.NewPagination(page, limit)

	order := reqCtx.DefaultQuery("order", "desc")
	if order != "asc" && order != "desc" {
		return nil, platformerrors.NewError(reqCtx.Request.Context(), platformerrors.LayerHandler, platformerrors.ErrorTypeValidation, "invalid order", nil, "c3598493-7770-4e94-b44f-f571aabf2bdd")
	}
	p.Order = order
	return p, nil
}

// GetBoolQuery parses an optional boolean query parameter.
func GetBoolQuery(reqCtx *gin.Context, name string) (bool, error) {
	raw := reqCtx.Query(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, platformerrors.NewError(reqCtx.Request.Context(), platformerrors.LayerHandler, platformerrors.ErrorTypeValidation, "invalid boolean for "+name, err, "5e2b8d1f-4a73-4c9e-b0d6-8f3a1e7c2b94")
	}
	return v, nil
}

func positiveInt(reqCtx *gin.Context, name string, fallback int) (int, error) {
	raw := reqCtx.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, platformerrors.NewError(reqCtx.Request.Context(), platformerrors.LayerHandler, platformerrors.ErrorTypeValidation, "invalid "+name+" number", nil, "04aecd25-bd32-428b-864d-aeb7ecb06e53").WithCode("INVALID_PARAMETERS")
	}
	return v, nil
}
