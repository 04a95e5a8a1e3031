package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/service"
	appErrors "github.com/noah-isme/sma-health-api/pkg/errors"
)

type mockAppointmentService struct {
	err        error
	lastActor  models.Principal
	lastKind   models.CampaignKind
	lastID     string
	lastExam   models.ExamData
	lastCancel service.CancelAppointmentRequest
	removed    []string
}

func (m *mockAppointmentService) NurseCheck(_ context.Context, actor models.Principal, kind models.CampaignKind, id string, exam models.ExamData) (*models.AppointmentDetail, error) {
	m.lastActor, m.lastKind, m.lastID, m.lastExam = actor, kind, id, exam
	if m.err != nil {
		return nil, m.err
	}
	return &models.AppointmentDetail{Appointment: models.Appointment{ID: id, Kind: kind, Status: models.AppointmentStatusChecked}}, nil
}

func (m *mockAppointmentService) Cancel(_ context.Context, kind models.CampaignKind, id string, req service.CancelAppointmentRequest) (*models.AppointmentDetail, error) {
	m.lastKind, m.lastID, m.lastCancel = kind, id, req
	if m.err != nil {
		return nil, m.err
	}
	return &models.AppointmentDetail{Appointment: models.Appointment{ID: id, Status: models.AppointmentStatusCancelled}}, nil
}

func (m *mockAppointmentService) Remove(_ context.Context, _ models.CampaignKind, id string) error {
	m.removed = append(m.removed, id)
	return m.err
}

func (m *mockAppointmentService) Get(_ context.Context, kind models.CampaignKind, id string) (*models.AppointmentDetail, error) {
	m.lastKind, m.lastID = kind, id
	if m.err != nil {
		return nil, m.err
	}
	return &models.AppointmentDetail{Appointment: models.Appointment{ID: id}}, nil
}

func (m *mockAppointmentService) Search(_ context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, *models.Pagination, error) {
	m.lastKind = filter.Kind
	return []models.AppointmentDetail{}, &models.Pagination{Page: filter.PageNum, PageSize: filter.PageSize}, m.err
}

func appointmentRouter(svc *mockAppointmentService, claims *models.JWTClaims) *gin.Engine {
	r := newTestRouter(claims)
	h := NewAppointmentHandler(models.CampaignVaccine, svc)
	r.GET("/vaccine-appointments/search", h.Search)
	r.GET("/vaccine-appointments/:id", h.Get)
	r.PATCH("/vaccine-appointments/:id/check", h.Check)
	r.PATCH("/vaccine-appointments/:id/cancel", h.Cancel)
	r.DELETE("/vaccine-appointments/:id", h.Delete)
	return r
}

func TestAppointmentHandlerCheckPassesExamination(t *testing.T) {
	svc := &mockAppointmentService{}
	r := appointmentRouter(svc, claimsFor("nurse-1", models.RoleSchoolNurse))

	rec := serve(r, http.MethodPatch, "/vaccine-appointments/appt-1/check", map[string]interface{}{
		"is_eligible": true,
		"temperature": 36.6,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "appt-1", svc.lastID)
	assert.Equal(t, models.CampaignVaccine, svc.lastKind)
	assert.Equal(t, models.Principal{ID: "nurse-1", Role: models.RoleSchoolNurse}, svc.lastActor)
	require.NotNil(t, svc.lastExam.IsEligible)
	assert.True(t, *svc.lastExam.IsEligible)
	require.NotNil(t, svc.lastExam.Temperature)
	assert.InDelta(t, 36.6, *svc.lastExam.Temperature, 0.001)
}

func TestAppointmentHandlerCheckForbidden(t *testing.T) {
	svc := &mockAppointmentService{err: appErrors.Clone(appErrors.ErrForbidden, "only the school nurse can record examinations")}
	r := appointmentRouter(svc, claimsFor("mgr-1", models.RoleManager))

	rec := serve(r, http.MethodPatch, "/vaccine-appointments/appt-1/check", map[string]interface{}{"is_eligible": false})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAppointmentHandlerCancelRequiresJSON(t *testing.T) {
	svc := &mockAppointmentService{}
	r := appointmentRouter(svc, claimsFor("mgr-1", models.RoleManager))

	rec := serve(r, http.MethodPatch, "/vaccine-appointments/appt-2/cancel", "[")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.lastID)
}

func TestAppointmentHandlerCancelAndDelete(t *testing.T) {
	svc := &mockAppointmentService{}
	r := appointmentRouter(svc, claimsFor("mgr-1", models.RoleManager))

	rec := serve(r, http.MethodPatch, "/vaccine-appointments/appt-2/cancel", map[string]string{"reason": "student moved"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "student moved", svc.lastCancel.Reason)

	rec = serve(r, http.MethodDelete, "/vaccine-appointments/appt-2", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"appt-2"}, svc.removed)
}
