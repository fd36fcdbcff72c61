package handler

import (
	"net/http"
	"strings"

	"possync/internal/apierror"
	"possync/internal/dto"
	"possync/internal/service"

	"github.com/gin-gonic/gin"
)

type AlertsHandler struct{ svc service.AlertService }

func NewAlertsHandler(svc service.AlertService) *AlertsHandler { return &AlertsHandler{svc: svc} }

// ListActive godoc
// @Summary      Active low-stock alerts
// @Tags         alerts
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.AlertListResponse
// @Router       /v1/alerts [get]
func (h *AlertsHandler) ListActive(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	resp, err := h.svc.ListActive(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History godoc
// @Summary      All low-stock alerts, acknowledged included
// @Tags         alerts
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.AlertListResponse
// @Router       /v1/alerts/history [get]
func (h *AlertsHandler) History(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	resp, err := h.svc.History(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Acknowledge godoc
// @Summary      Acknowledge alerts
// @Tags         alerts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.AcknowledgeAlertsRequest true "Alert ids"
// @Success      200 {object} dto.AcknowledgeAlertsResponse
// @Failure      422 {object} apierror.ValidationError
// @Router       /v1/alerts/acknowledge [post]
func (h *AlertsHandler) Acknowledge(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	var req dto.AcknowledgeAlertsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Acknowledge(c.Request.Context(), owner, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetSettings godoc
// @Summary      Low-stock notification settings
// @Tags         alerts
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.AlertSettingsResponse
// @Router       /v1/alerts/settings [get]
func (h *AlertsHandler) GetSettings(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	resp, err := h.svc.GetSettings(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateSettings godoc
// @Summary      Update low-stock notification settings
// @Description  Omitted fields keep their value. An empty email falls back to the server default recipient.
// @Tags         alerts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.UpdateAlertSettingsRequest true "Settings"
// @Success      200 {object} dto.AlertSettingsResponse
// @Failure      422 {object} apierror.ValidationError
// @Router       /v1/alerts/settings [put]
func (h *AlertsHandler) UpdateSettings(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	var req dto.UpdateAlertSettingsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if req.Email != nil {
		if e := strings.TrimSpace(*req.Email); e != "" && validate.Var(e, "email") != nil {
			c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"email": "email"}))
			return
		}
	}
	resp, err := h.svc.UpdateSettings(c.Request.Context(), owner, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
