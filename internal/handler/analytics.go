package handler

import (
	"net/http"

	"possync/internal/dto"
	"possync/internal/service"

	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct{ svc service.AnalyticsService }

func NewAnalyticsHandler(svc service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// ProductAnalytics godoc
// @Summary      Sales analytics for one product
// @Description  Totals and period buckets (weeks start on Monday, months on the 1st). Periods without sales are omitted.
// @Tags         analytics
// @Produce      json
// @Security     BearerAuth
// @Param        id         path  string true  "Product UUID"
// @Param        start_date query string false "YYYY-MM-DD (default: end_date - 30 days)"
// @Param        end_date   query string false "YYYY-MM-DD (default: today)"
// @Param        period     query string false "daily | weekly | monthly (default weekly)"
// @Param        time_basis query string false "received | client (default received)"
// @Success      200 {object} dto.ProductAnalyticsResponse
// @Failure      403 {object} apierror.APIError
// @Failure      404 {object} apierror.APIError
// @Failure      422 {object} apierror.ValidationError
// @Router       /v1/analytics/products/{id} [get]
func (h *AnalyticsHandler) ProductAnalytics(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var q dto.AnalyticsQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.ProductAnalytics(c.Request.Context(), owner, id, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
