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

type registrationService interface {
	Create(ctx context.Context, actor models.Principal, kind models.CampaignKind, req service.CreateRegistrationRequest) (*models.RegistrationDetail, error)
	UpdateStatus(ctx context.Context, actor models.Principal, kind models.CampaignKind, id string, req service.UpdateRegistrationStatusRequest) (*models.RegistrationDetail, error)
	Search(ctx context.Context, actor models.Principal, filter models.RegistrationFilter) ([]models.RegistrationDetail, *models.Pagination, error)
	Get(ctx context.Context, actor models.Principal, kind models.CampaignKind, id string) (*models.RegistrationDetail, error)
	Delete(ctx context.Context, kind models.CampaignKind, id string) error
	Export(ctx context.Context, kind models.CampaignKind, eventID, format string) (*service.ExportFile, error)
}

// RegistrationHandler exposes the consent endpoints of one campaign kind.
type RegistrationHandler struct {
	kind          models.CampaignKind
	registrations registrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(kind models.CampaignKind, registrations registrationService) *RegistrationHandler {
	return &RegistrationHandler{kind: kind, registrations: registrations}
}

// Create godoc
// @Summary Register a student for a campaign event
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.CreateRegistrationRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vaccine-registrations/create [post]
// @Router /medical-check-registrations/create [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	var req service.CreateRegistrationRequest
	if !bindJSON(c, &req, "invalid registration payload") {
		return
	}
	reg, err := h.registrations.Create(c.Request.Context(), principalFromContext(c), h.kind, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reg)
}

// Search godoc
// @Summary Search registrations
// @Tags Registrations
// @Produce json
// @Param eventId query string false "Event ID"
// @Param studentId query string false "Student ID"
// @Param parentId query string false "Parent ID"
// @Param status query string false "Registration status"
// @Param query query string false "Campaign event name contains"
// @Param pageNum query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(10)
// @Success 200 {object} response.Envelope
// @Router /vaccine-registrations/search [get]
// @Router /medical-check-registrations/search [get]
func (h *RegistrationHandler) Search(c *gin.Context) {
	filter := models.RegistrationFilter{
		Kind:        h.kind,
		EventID:     c.Query("eventId"),
		StudentID:   c.Query("studentId"),
		ParentID:    c.Query("parentId"),
		Status:      models.RegistrationStatus(strings.ToUpper(c.Query("status"))),
		Query:       strings.TrimSpace(c.Query("query")),
		PageRequest: pageFromQuery(c),
	}
	regs, pagination, err := h.registrations.Search(c.Request.Context(), principalFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, pagination)
}

// Get godoc
// @Summary Get a registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /vaccine-registrations/{id} [get]
// @Router /medical-check-registrations/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	reg, err := h.registrations.Get(c.Request.Context(), principalFromContext(c), h.kind, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

// UpdateStatus godoc
// @Summary Approve, reject or cancel a registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body service.UpdateRegistrationStatusRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /vaccine-registrations/{id}/status [patch]
// @Router /medical-check-registrations/{id}/status [patch]
func (h *RegistrationHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateRegistrationStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	req.Status = models.RegistrationStatus(strings.ToUpper(strings.TrimSpace(string(req.Status))))
	reg, err := h.registrations.UpdateStatus(c.Request.Context(), principalFromContext(c), h.kind, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

// Delete godoc
// @Summary Delete a registration
// @Tags Registrations
// @Param id path string true "Registration ID"
// @Success 204
// @Router /vaccine-registrations/{id} [delete]
// @Router /medical-check-registrations/{id} [delete]
func (h *RegistrationHandler) Delete(c *gin.Context) {
	if err := h.registrations.Delete(c.Request.Context(), h.kind, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export the registration roster of an event
// @Tags Registrations
// @Produce text/csv
// @Produce application/pdf
// @Param eventId query string true "Event ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /vaccine-registrations/export [get]
// @Router /medical-check-registrations/export [get]
func (h *RegistrationHandler) Export(c *gin.Context) {
	file, err := h.registrations.Export(c.Request.Context(), h.kind, c.Query("eventId"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
