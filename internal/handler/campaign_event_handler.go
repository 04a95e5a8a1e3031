package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/service"
	"github.com/noah-isme/sma-health-api/pkg/response"
)

type campaignEventService interface {
	Create(ctx context.Context, actor models.Principal, kind models.CampaignKind, req service.CreateCampaignEventRequest) (*models.CampaignEvent, int, error)
	OpenRegistrations(ctx context.Context, kind models.CampaignKind, id string) (int, error)
	Get(ctx context.Context, kind models.CampaignKind, id string) (*models.CampaignEvent, error)
	Search(ctx context.Context, filter models.CampaignEventFilter) ([]models.CampaignEvent, *models.Pagination, error)
	UpdateStatus(ctx context.Context, kind models.CampaignKind, id string, req service.UpdateCampaignEventStatusRequest) (*models.CampaignEvent, error)
	Delete(ctx context.Context, kind models.CampaignKind, id string) error
}

// CampaignEventHandler exposes the event endpoints of one campaign kind.
type CampaignEventHandler struct {
	kind   models.CampaignKind
	events campaignEventService
}

// NewCampaignEventHandler constructs CampaignEventHandler.
func NewCampaignEventHandler(kind models.CampaignKind, events campaignEventService) *CampaignEventHandler {
	return &CampaignEventHandler{kind: kind, events: events}
}

// Create godoc
// @Summary Create a campaign event and register its cohort
// @Tags Campaign Events
// @Accept json
// @Produce json
// @Param payload body service.CreateCampaignEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /vaccine-events/create [post]
// @Router /medical-check-events/create [post]
func (h *CampaignEventHandler) Create(c *gin.Context) {
	var req service.CreateCampaignEventRequest
	if !bindJSON(c, &req, "invalid campaign event payload") {
		return
	}
	event, created, err := h.events.Create(c.Request.Context(), principalFromContext(c), h.kind, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, event, nil, map[string]interface{}{"registrationsCreated": created})
}

// OpenRegistrations godoc
// @Summary Register students who joined the event cohort later
// @Tags Campaign Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vaccine-events/{id}/registrations [post]
// @Router /medical-check-events/{id}/registrations [post]
func (h *CampaignEventHandler) OpenRegistrations(c *gin.Context) {
	created, err := h.events.OpenRegistrations(c.Request.Context(), h.kind, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"registrationsCreated": created}, nil)
}

// Search godoc
// @Summary Search campaign events
// @Tags Campaign Events
// @Produce json
// @Param query query string false "Name contains"
// @Param grade query string false "Grade"
// @Param schoolYear query string false "School year"
// @Param status query string false "ONGOING, COMPLETED or CANCELLED"
// @Param pageNum query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(10)
// @Success 200 {object} response.Envelope
// @Router /vaccine-events/search [get]
// @Router /medical-check-events/search [get]
func (h *CampaignEventHandler) Search(c *gin.Context) {
	filter := models.CampaignEventFilter{
		Kind:        h.kind,
		Grade:       strings.TrimSpace(c.Query("grade")),
		SchoolYear:  strings.TrimSpace(c.Query("schoolYear")),
		Status:      models.EventStatus(strings.ToUpper(c.Query("status"))),
		Query:       strings.TrimSpace(c.Query("query")),
		PageRequest: pageFromQuery(c),
	}
	events, pagination, err := h.events.Search(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// Get godoc
// @Summary Get a campaign event
// @Tags Campaign Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /vaccine-events/{id} [get]
// @Router /medical-check-events/{id} [get]
func (h *CampaignEventHandler) Get(c *gin.Context) {
	event, err := h.events.Get(c.Request.Context(), h.kind, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// UpdateStatus godoc
// @Summary Complete or cancel a campaign event
// @Tags Campaign Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.UpdateCampaignEventStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /vaccine-events/{id}/status [patch]
// @Router /medical-check-events/{id}/status [patch]
func (h *CampaignEventHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateCampaignEventStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	event, err := h.events.UpdateStatus(c.Request.Context(), h.kind, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Delete godoc
// @Summary Delete a campaign event
// @Tags Campaign Events
// @Param id path string true "Event ID"
// @Success 204
// @Router /vaccine-events/{id} [delete]
// @Router /medical-check-events/{id} [delete]
func (h *CampaignEventHandler) Delete(c *gin.Context) {
	if err := h.events.Delete(c.Request.Context(), h.kind, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
