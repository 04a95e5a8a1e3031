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

type appointmentService interface {
	NurseCheck(ctx context.Context, actor models.Principal, kind models.CampaignKind, id string, exam models.ExamData) (*models.AppointmentDetail, error)
	Cancel(ctx context.Context, kind models.CampaignKind, id string, req service.CancelAppointmentRequest) (*models.AppointmentDetail, error)
	Remove(ctx context.Context, kind models.CampaignKind, id string) error
	Get(ctx context.Context, kind models.CampaignKind, id string) (*models.AppointmentDetail, error)
	Search(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, *models.Pagination, error)
}

// AppointmentHandler exposes the examination endpoints of one campaign kind.
type AppointmentHandler struct {
	kind         models.CampaignKind
	appointments appointmentService
}

// NewAppointmentHandler constructs AppointmentHandler.
func NewAppointmentHandler(kind models.CampaignKind, appointments appointmentService) *AppointmentHandler {
	return &AppointmentHandler{kind: kind, appointments: appointments}
}

// Search godoc
// @Summary Search appointments
// @Tags Appointments
// @Produce json
// @Param eventId query string false "Event ID"
// @Param studentId query string false "Student ID"
// @Param status query string false "Appointment status"
// @Param query query string false "Campaign event name contains"
// @Param pageNum query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(10)
// @Success 200 {object} response.Envelope
// @Router /vaccine-appointments/search [get]
// @Router /medical-check-appointments/search [get]
func (h *AppointmentHandler) Search(c *gin.Context) {
	filter := models.AppointmentFilter{
		Kind:        h.kind,
		EventID:     c.Query("eventId"),
		StudentID:   c.Query("studentId"),
		Status:      models.AppointmentStatus(strings.ToUpper(c.Query("status"))),
		Query:       strings.TrimSpace(c.Query("query")),
		PageRequest: pageFromQuery(c),
	}
	appts, pagination, err := h.appointments.Search(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appts, pagination)
}

// Get godoc
// @Summary Get an appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /vaccine-appointments/{id} [get]
// @Router /medical-check-appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	appt, err := h.appointments.Get(c.Request.Context(), h.kind, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Check godoc
// @Summary Record a nurse examination
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body models.ExamData true "Examination"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /vaccine-appointments/{id}/check [patch]
// @Router /medical-check-appointments/{id}/check [patch]
func (h *AppointmentHandler) Check(c *gin.Context) {
	var exam models.ExamData
	if !bindJSON(c, &exam, "invalid examination payload") {
		return
	}
	appt, err := h.appointments.NurseCheck(c.Request.Context(), principalFromContext(c), h.kind, c.Param("id"), exam)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Cancel godoc
// @Summary Cancel an open appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body service.CancelAppointmentRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /vaccine-appointments/{id}/cancel [patch]
// @Router /medical-check-appointments/{id}/cancel [patch]
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	var req service.CancelAppointmentRequest
	if !bindJSON(c, &req, "invalid cancellation payload") {
		return
	}
	appt, err := h.appointments.Cancel(c.Request.Context(), h.kind, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Delete godoc
// @Summary Delete an appointment
// @Tags Appointments
// @Param id path string true "Appointment ID"
// @Success 204
// @Router /vaccine-appointments/{id} [delete]
// @Router /medical-check-appointments/{id} [delete]
func (h *AppointmentHandler) Delete(c *gin.Context) {
	if err := h.appointments.Remove(c.Request.Context(), h.kind, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
