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

type nurseVisitService interface {
	Create(ctx context.Context, actor models.Principal, req service.CreateNurseVisitRequest) (*models.NurseVisit, error)
	Approve(ctx context.Context, actor models.Principal, id string, req service.NurseVisitDecisionRequest) (*models.NurseVisit, error)
	Reject(ctx context.Context, actor models.Principal, id string, req service.NurseVisitDecisionRequest) (*models.NurseVisit, error)
	Cancel(ctx context.Context, actor models.Principal, id string, req service.NurseVisitDecisionRequest) (*models.NurseVisit, error)
	Complete(ctx context.Context, actor models.Principal, id string, req service.NurseVisitDecisionRequest) (*models.NurseVisit, error)
	MarkArrived(ctx context.Context, actor models.Principal, id string) (*models.NurseVisit, error)
	Get(ctx context.Context, actor models.Principal, id string) (*models.NurseVisit, error)
	Search(ctx context.Context, actor models.Principal, filter models.NurseVisitFilter) ([]models.NurseVisit, *models.Pagination, error)
	Delete(ctx context.Context, id string) error
}

type visitDecision func(ctx context.Context, actor models.Principal, id string, req service.NurseVisitDecisionRequest) (*models.NurseVisit, error)

// NurseVisitHandler exposes the parent to nurse appointment endpoints.
type NurseVisitHandler struct {
	visits nurseVisitService
}

// NewNurseVisitHandler constructs NurseVisitHandler.
func NewNurseVisitHandler(visits nurseVisitService) *NurseVisitHandler {
	return &NurseVisitHandler{visits: visits}
}

// Create godoc
// @Summary Request a visit with the school nurse
// @Tags Nurse Visits
// @Accept json
// @Produce json
// @Param payload body service.CreateNurseVisitRequest true "Visit payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /nurse-visits/create [post]
func (h *NurseVisitHandler) Create(c *gin.Context) {
	var req service.CreateNurseVisitRequest
	if !bindJSON(c, &req, "invalid nurse visit payload") {
		return
	}
	visit, err := h.visits.Create(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, visit)
}

// Search godoc
// @Summary Search nurse visits
// @Tags Nurse Visits
// @Produce json
// @Param studentId query string false "Student ID"
// @Param schoolNurseId query string false "Assigned nurse"
// @Param status query string false "Visit status"
// @Param pageNum query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(10)
// @Success 200 {object} response.Envelope
// @Router /nurse-visits/search [get]
func (h *NurseVisitHandler) Search(c *gin.Context) {
	filter := models.NurseVisitFilter{
		StudentID:     c.Query("studentId"),
		SchoolNurseID: c.Query("schoolNurseId"),
		Status:        models.NurseVisitStatus(strings.ToUpper(c.Query("status"))),
		PageRequest:   pageFromQuery(c),
	}
	visits, pagination, err := h.visits.Search(c.Request.Context(), principalFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visits, pagination)
}

// Get godoc
// @Summary Get a nurse visit
// @Tags Nurse Visits
// @Produce json
// @Param id path string true "Visit ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /nurse-visits/{id} [get]
func (h *NurseVisitHandler) Get(c *gin.Context) {
	visit, err := h.visits.Get(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visit, nil)
}

// Approve godoc
// @Summary Approve a pending visit
// @Tags Nurse Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param payload body service.NurseVisitDecisionRequest false "Note"
// @Success 200 {object} response.Envelope
// @Router /nurse-visits/{id}/approve [patch]
func (h *NurseVisitHandler) Approve(c *gin.Context) {
	h.decide(c, h.visits.Approve)
}

// Reject godoc
// @Summary Reject a pending visit
// @Tags Nurse Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param payload body service.NurseVisitDecisionRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /nurse-visits/{id}/reject [patch]
func (h *NurseVisitHandler) Reject(c *gin.Context) {
	h.decide(c, h.visits.Reject)
}

// Cancel godoc
// @Summary Cancel a pending or approved visit
// @Tags Nurse Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param payload body service.NurseVisitDecisionRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /nurse-visits/{id}/cancel [patch]
func (h *NurseVisitHandler) Cancel(c *gin.Context) {
	h.decide(c, h.visits.Cancel)
}

// Complete godoc
// @Summary Close an attended visit
// @Tags Nurse Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param payload body service.NurseVisitDecisionRequest false "Note"
// @Success 200 {object} response.Envelope
// @Router /nurse-visits/{id}/complete [patch]
func (h *NurseVisitHandler) Complete(c *gin.Context) {
	h.decide(c, h.visits.Complete)
}

// Arrive godoc
// @Summary Record the parent's arrival
// @Tags Nurse Visits
// @Produce json
// @Param id path string true "Visit ID"
// @Success 200 {object} response.Envelope
// @Router /nurse-visits/{id}/arrive [patch]
func (h *NurseVisitHandler) Arrive(c *gin.Context) {
	visit, err := h.visits.MarkArrived(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visit, nil)
}

// Delete godoc
// @Summary Delete a nurse visit
// @Tags Nurse Visits
// @Param id path string true "Visit ID"
// @Success 204
// @Router /nurse-visits/{id} [delete]
func (h *NurseVisitHandler) Delete(c *gin.Context) {
	if err := h.visits.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// decide accepts an empty body for transitions whose note is optional.
func (h *NurseVisitHandler) decide(c *gin.Context, apply visitDecision) {
	var req service.NurseVisitDecisionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "invalid decision payload") {
		return
	}
	visit, err := apply(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visit, nil)
}
