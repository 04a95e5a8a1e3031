package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-health-api/internal/models"
	appErrors "github.com/noah-isme/sma-health-api/pkg/errors"
)

func (f *workflowFixture) seedAppointment(kind models.CampaignKind, status models.AppointmentStatus) *models.Appointment {
	return f.apptRepo.add(models.Appointment{Kind: kind, RegistrationID: "reg-x", StudentID: "s-1", EventID: "evt-1", Status: status})
}

func TestNurseCheckOutcomes(t *testing.T) {
	cases := []struct {
		name       string
		kind       models.CampaignKind
		exam       models.ExamData
		wantStatus models.AppointmentStatus
		wantReason string
	}{
		{
			name:       "ineligible without reason gets default",
			kind:       models.CampaignVaccine,
			exam:       models.ExamData{IsEligible: ptr(false)},
			wantStatus: models.AppointmentStatusIneligible,
			wantReason: "not eligible",
		},
		{
			name:       "ineligible keeps given reason",
			kind:       models.CampaignMedicalCheck,
			exam:       models.ExamData{IsEligible: ptr(false), ReasonIfIneligible: ptr("fever")},
			wantStatus: models.AppointmentStatusIneligible,
			wantReason: "fever",
		},
		{
			name:       "vaccine with outcome",
			kind:       models.CampaignVaccine,
			wantStatus: models.AppointmentStatusVaccinated,
		},
		{
			name:       "medical check with outcome",
			kind:       models.CampaignMedicalCheck,
			wantStatus: models.AppointmentStatusMedicalChecked,
		},
		{
			name:       "eligible without outcome",
			kind:       models.CampaignVaccine,
			exam:       models.ExamData{IsEligible: ptr(true), Temperature: ptr(36.6)},
			wantStatus: models.AppointmentStatusChecked,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newWorkflowFixture()
			appt := f.seedAppointment(tc.kind, models.AppointmentStatusPending)
			exam := tc.exam
			if exam.IsEligible == nil {
				exam = models.ExamData{IsEligible: ptr(true), OutcomeAt: ptr(f.now)}
			}

			got, err := f.appointments.NurseCheck(context.Background(), nurse, tc.kind, appt.ID, exam)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, got.Status)
			require.NotNil(t, got.CheckedBy)
			assert.Equal(t, nurse.ID, *got.CheckedBy)
			if tc.wantReason != "" {
				require.NotNil(t, got.ReasonIfIneligible)
				assert.Equal(t, tc.wantReason, *got.ReasonIfIneligible)
			} else {
				assert.Nil(t, got.ReasonIfIneligible)
			}

			stored, err := f.appointments.Get(context.Background(), tc.kind, appt.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, stored.Status)
		})
	}
}

func TestNurseCheckRecheckAfterChecked(t *testing.T) {
	f := newWorkflowFixture()
	appt := f.seedAppointment(models.CampaignVaccine, models.AppointmentStatusChecked)

	got, err := f.appointments.NurseCheck(context.Background(), nurse, models.CampaignVaccine, appt.ID, models.ExamData{IsEligible: ptr(true), OutcomeAt: ptr(f.now)})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentStatusVaccinated, got.Status)
	require.NotNil(t, got.OutcomeAt)
}

func TestNurseCheckRejections(t *testing.T) {
	f := newWorkflowFixture()
	pending := f.seedAppointment(models.CampaignVaccine, models.AppointmentStatusPending)
	done := f.seedAppointment(models.CampaignVaccine, models.AppointmentStatusVaccinated)
	cancelled := f.seedAppointment(models.CampaignVaccine, models.AppointmentStatusCancelled)
	eligible := models.ExamData{IsEligible: ptr(true)}

	cases := []struct {
		name  string
		actor models.Principal
		id    string
		exam  models.ExamData
		want  *appErrors.Error
	}{
		{"manager cannot examine", staff, pending.ID, eligible, appErrors.ErrForbidden},
		{"parent cannot examine", parent("p-1"), pending.ID, eligible, appErrors.ErrForbidden},
		{"missing appointment", nurse, "appt-missing", eligible, appErrors.ErrNotFound},
		{"already done", nurse, done.ID, eligible, appErrors.ErrInvalidTransition},
		{"cancelled", nurse, cancelled.ID, eligible, appErrors.ErrInvalidTransition},
		{"eligibility missing", nurse, pending.ID, models.ExamData{}, appErrors.ErrValidation},
		{"temperature out of range", nurse, pending.ID, models.ExamData{IsEligible: ptr(true), Temperature: ptr(50.0)}, appErrors.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.appointments.NurseCheck(context.Background(), tc.actor, models.CampaignVaccine, tc.id, tc.exam)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAppointmentCancel(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()
	open := f.apptRepo.add(models.Appointment{Kind: models.CampaignMedicalCheck, RegistrationID: "reg-x", StudentID: "s-1", EventID: "evt-1",
		Status: models.AppointmentStatusChecked, Notes: ptr("mild asthma, inhaler on site")})
	done := f.seedAppointment(models.CampaignMedicalCheck, models.AppointmentStatusMedicalChecked)

	_, err := f.appointments.Cancel(ctx, models.CampaignMedicalCheck, open.ID, CancelAppointmentRequest{Reason: "  "})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	got, err := f.appointments.Cancel(ctx, models.CampaignMedicalCheck, open.ID, CancelAppointmentRequest{Reason: "student transferred"})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentStatusCancelled, got.Status)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, "student transferred", *got.CancellationReason)
	assert.Equal(t, "mild asthma, inhaler on site", *got.Notes)

	stored, err := f.appointments.Get(ctx, models.CampaignMedicalCheck, open.ID)
	require.NoError(t, err)
	assert.Equal(t, "mild asthma, inhaler on site", *stored.Notes)
	assert.Equal(t, "student transferred", *stored.CancellationReason)

	_, err = f.appointments.Cancel(ctx, models.CampaignMedicalCheck, done.ID, CancelAppointmentRequest{Reason: "too late"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	require.NoError(t, f.appointments.Remove(ctx, models.CampaignMedicalCheck, done.ID))
	assert.ErrorIs(t, f.appointments.Remove(ctx, models.CampaignMedicalCheck, done.ID), appErrors.ErrNotFound)
}

func TestAppointmentSearchValidatesPage(t *testing.T) {
	f := newWorkflowFixture()
	f.seedAppointment(models.CampaignVaccine, models.AppointmentStatusPending)
	f.seedAppointment(models.CampaignMedicalCheck, models.AppointmentStatusPending)

	items, page, err := f.appointments.Search(context.Background(), models.AppointmentFilter{Kind: models.CampaignVaccine, PageRequest: models.PageRequest{PageNum: 1, PageSize: 10}})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, page.TotalPages)

	_, _, err = f.appointments.Search(context.Background(), models.AppointmentFilter{Kind: models.CampaignVaccine})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
