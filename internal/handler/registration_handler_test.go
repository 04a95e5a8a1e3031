package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/service"
	appErrors "github.com/noah-isme/sma-health-api/pkg/errors"
)

type mockRegistrationService struct {
	err error

	lastActor  models.Principal
	lastKind   models.CampaignKind
	lastID     string
	lastFilter models.RegistrationFilter
	lastCreate service.CreateRegistrationRequest
	lastUpdate service.UpdateRegistrationStatusRequest
	lastExport struct{ eventID, format string }
	deleted    []string
}

func (m *mockRegistrationService) Create(_ context.Context, actor models.Principal, kind models.CampaignKind, req service.CreateRegistrationRequest) (*models.RegistrationDetail, error) {
	m.lastActor, m.lastKind, m.lastCreate = actor, kind, req
	if m.err != nil {
		return nil, m.err
	}
	return &models.RegistrationDetail{Registration: models.Registration{ID: "reg-1", Kind: kind, EventID: req.EventID, StudentID: req.StudentID}}, nil
}

func (m *mockRegistrationService) UpdateStatus(_ context.Context, actor models.Principal, kind models.CampaignKind, id string, req service.UpdateRegistrationStatusRequest) (*models.RegistrationDetail, error) {
	m.lastActor, m.lastKind, m.lastID, m.lastUpdate = actor, kind, id, req
	if m.err != nil {
		return nil, m.err
	}
	return &models.RegistrationDetail{Registration: models.Registration{ID: id, Kind: kind, Status: req.Status}}, nil
}

func (m *mockRegistrationService) Search(_ context.Context, actor models.Principal, filter models.RegistrationFilter) ([]models.RegistrationDetail, *models.Pagination, error) {
	m.lastActor, m.lastFilter = actor, filter
	if m.err != nil {
		return nil, nil, m.err
	}
	items := []models.RegistrationDetail{{Registration: models.Registration{ID: "reg-1"}}}
	return items, &models.Pagination{Page: filter.PageNum, PageSize: filter.PageSize, TotalCount: 1, TotalPages: 1}, nil
}

func (m *mockRegistrationService) Get(_ context.Context, actor models.Principal, kind models.CampaignKind, id string) (*models.RegistrationDetail, error) {
	m.lastActor, m.lastKind, m.lastID = actor, kind, id
	if m.err != nil {
		return nil, m.err
	}
	return &models.RegistrationDetail{Registration: models.Registration{ID: id}}, nil
}

func (m *mockRegistrationService) Delete(_ context.Context, kind models.CampaignKind, id string) error {
	m.lastKind = kind
	m.deleted = append(m.deleted, id)
	return m.err
}

func (m *mockRegistrationService) Export(_ context.Context, kind models.CampaignKind, eventID, format string) (*service.ExportFile, error) {
	m.lastKind = kind
	m.lastExport.eventID, m.lastExport.format = eventID, format
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportFile{Filename: "vaccine-registrations-evt-1.csv", ContentType: "text/csv", Body: []byte("Student,Parent\n")}, nil
}

func registrationRouter(svc *mockRegistrationService, claims *models.JWTClaims) *gin.Engine {
	r := newTestRouter(claims)
	h := NewRegistrationHandler(models.CampaignVaccine, svc)
	r.POST("/vaccine-registrations/create", h.Create)
	r.GET("/vaccine-registrations/search", h.Search)
	r.GET("/vaccine-registrations/export", h.Export)
	r.GET("/vaccine-registrations/:id", h.Get)
	r.PATCH("/vaccine-registrations/:id/status", h.UpdateStatus)
	r.DELETE("/vaccine-registrations/:id", h.Delete)
	return r
}

func TestRegistrationHandlerSearchPassesFilterAndPage(t *testing.T) {
	svc := &mockRegistrationService{}
	r := newTestRouter(claimsFor("p-1", models.RoleParent))
	h := NewRegistrationHandler(models.CampaignVaccine, svc)
	r.GET("/vaccine-registrations/search", h.Search)

	rec := serve(r, http.MethodGet, "/vaccine-registrations/search?eventId=evt-1&status=pending&pageNum=2&pageSize=5", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CampaignVaccine, svc.lastFilter.Kind)
	assert.Equal(t, "evt-1", svc.lastFilter.EventID)
	assert.Equal(t, models.RegistrationStatusPending, svc.lastFilter.Status)
	assert.Equal(t, models.PageRequest{PageNum: 2, PageSize: 5}, svc.lastFilter.PageRequest)
	assert.Equal(t, models.Principal{ID: "p-1", Role: models.RoleParent}, svc.lastActor)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.Page)
}

func TestRegistrationHandlerSearchDefaultsPage(t *testing.T) {
	svc := &mockRegistrationService{}
	r := newTestRouter(claimsFor("mgr-1", models.RoleManager))
	h := NewRegistrationHandler(models.CampaignMedicalCheck, svc)
	r.GET("/medical-check-registrations/search", h.Search)

	rec := serve(r, http.MethodGet, "/medical-check-registrations/search", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CampaignMedicalCheck, svc.lastFilter.Kind)
	assert.Equal(t, models.PageRequest{PageNum: 1, PageSize: 10}, svc.lastFilter.PageRequest)
}

func TestRegistrationHandlerSearchUnparseablePageIsZero(t *testing.T) {
	svc := &mockRegistrationService{}
	r := newTestRouter(claimsFor("mgr-1", models.RoleManager))
	h := NewRegistrationHandler(models.CampaignVaccine, svc)
	r.GET("/vaccine-registrations/search", h.Search)

	serve(r, http.MethodGet, "/vaccine-registrations/search?pageNum=abc", nil)

	assert.Equal(t, 0, svc.lastFilter.PageNum)
}

func TestRegistrationHandlerCreate(t *testing.T) {
	svc := &mockRegistrationService{}
	r := registrationRouter(svc, claimsFor("p-1", models.RoleParent))

	rec := serve(r, http.MethodPost, "/vaccine-registrations/create", map[string]string{
		"event_id":   "evt-1",
		"student_id": "s-1",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "evt-1", svc.lastCreate.EventID)
	assert.Equal(t, "s-1", svc.lastCreate.StudentID)

	env := decodeEnvelope(t, rec)
	var reg models.RegistrationDetail
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	assert.Equal(t, "reg-1", reg.ID)
}

func TestRegistrationHandlerCreateRejectsMalformedJSON(t *testing.T) {
	svc := &mockRegistrationService{}
	r := registrationRouter(svc, claimsFor("p-1", models.RoleParent))

	rec := serve(r, http.MethodPost, "/vaccine-registrations/create", "{not json")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)
	assert.Empty(t, svc.lastCreate.EventID)
}

func TestRegistrationHandlerUpdateStatusNormalisesStatus(t *testing.T) {
	svc := &mockRegistrationService{}
	r := registrationRouter(svc, claimsFor("p-1", models.RoleParent))

	rec := serve(r, http.MethodPatch, "/vaccine-registrations/reg-9/status", map[string]string{"status": " approved "})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reg-9", svc.lastID)
	assert.Equal(t, models.RegistrationStatusApproved, svc.lastUpdate.Status)
}

func TestRegistrationHandlerMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", appErrors.Clone(appErrors.ErrNotFound, "registration not found"), http.StatusNotFound, appErrors.ErrNotFound.Code},
		{"invalid state", appErrors.ErrInvalidState, http.StatusConflict, appErrors.ErrInvalidState.Code},
		{"invalid transition", appErrors.ErrInvalidTransition, http.StatusUnprocessableEntity, appErrors.ErrInvalidTransition.Code},
		{"forbidden", appErrors.ErrForbidden, http.StatusForbidden, appErrors.ErrForbidden.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockRegistrationService{err: tc.err}
			r := registrationRouter(svc, claimsFor("p-1", models.RoleParent))

			rec := serve(r, http.MethodPatch, "/vaccine-registrations/reg-1/status", map[string]string{"status": "REJECTED", "reason": "sick"})

			assert.Equal(t, tc.status, rec.Code)
			env := decodeEnvelope(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestRegistrationHandlerExportReturnsAttachment(t *testing.T) {
	svc := &mockRegistrationService{}
	r := registrationRouter(svc, claimsFor("nurse-1", models.RoleSchoolNurse))

	rec := serve(r, http.MethodGet, "/vaccine-registrations/export?eventId=evt-1&format=csv", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "evt-1", svc.lastExport.eventID)
	assert.Equal(t, "csv", svc.lastExport.format)
	assert.Equal(t, `attachment; filename="vaccine-registrations-evt-1.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Equal(t, "Student,Parent\n", rec.Body.String())
}

func TestRegistrationHandlerExportError(t *testing.T) {
	svc := &mockRegistrationService{err: appErrors.Clone(appErrors.ErrValidation, "eventId is required")}
	r := registrationRouter(svc, claimsFor("mgr-1", models.RoleManager))

	rec := serve(r, http.MethodGet, "/vaccine-registrations/export", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestRegistrationHandlerDelete(t *testing.T) {
	svc := &mockRegistrationService{}
	r := registrationRouter(svc, claimsFor("mgr-1", models.RoleManager))

	rec := serve(r, http.MethodDelete, "/vaccine-registrations/reg-3", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"reg-3"}, svc.deleted)
}

func TestRegistrationHandlerGetWithoutClaimsPassesEmptyPrincipal(t *testing.T) {
	svc := &mockRegistrationService{}
	r := registrationRouter(svc, nil)

	rec := serve(r, http.MethodGet, "/vaccine-registrations/reg-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Principal{}, svc.lastActor)
}
