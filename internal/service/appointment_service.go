package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/workflow"
	appErrors "github.com/noah-isme/sma-health-api/pkg/errors"
)

type appointmentRepository interface {
	FindByID(ctx context.Context, kind models.CampaignKind, id string) (*models.AppointmentDetail, error)
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, int, error)
	SaveExamination(ctx context.Context, appt *models.Appointment, from models.AppointmentStatus) (bool, error)
	Cancel(ctx context.Context, kind models.CampaignKind, id, reason string, at time.Time) (bool, error)
	SoftDelete(ctx context.Context, kind models.CampaignKind, id string, at time.Time) (bool, error)
}

// CancelAppointmentRequest carries the reason for a staff cancellation.
type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// AppointmentService records nurse examinations of campaign appointments.
type AppointmentService struct {
	repo      appointmentRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAppointmentService constructs AppointmentService.
func NewAppointmentService(repo appointmentRepository, validate *validator.Validate, logger *zap.Logger) *AppointmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppointmentService{repo: repo, validator: validate, logger: logger, now: time.Now}
}

// NurseCheck records an examination. Only school nurses may examine, and only
// appointments that are still pending or checked accept a new examination.
func (s *AppointmentService) NurseCheck(ctx context.Context, actor models.Principal, kind models.CampaignKind, id string, exam models.ExamData) (*models.AppointmentDetail, error) {
	if actor.Role != models.RoleSchoolNurse {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only school nurses can record examinations")
	}
	current, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return nil, lookupError(err, "appointment")
	}
	if workflow.Appointments.Terminal(current.Status) {
		return nil, appErrors.ErrInvalidTransition
	}
	if err := s.validator.Struct(exam); err != nil {
		return nil, appErrors.Validation(err, "invalid examination payload")
	}

	outcome, err := workflow.DecideExamination(current.Kind, current.Status, *exam.IsEligible, exam.ReasonIfIneligible, exam.OutcomeAt)
	if err != nil {
		return nil, transitionError(err)
	}

	updated := current.Appointment
	nurseID := actor.ID
	updated.CheckedBy = &nurseID
	updated.BloodPressure = exam.BloodPressure
	updated.HeartRate = exam.HeartRate
	updated.Temperature = exam.Temperature
	updated.HeightCM = exam.HeightCM
	updated.WeightKG = exam.WeightKG
	updated.VisionLeft = exam.VisionLeft
	updated.VisionRight = exam.VisionRight
	updated.Notes = exam.Notes
	updated.PostEventHealthStatus = exam.PostEventHealthStatus
	updated.IsEligible = exam.IsEligible
	updated.ReasonIfIneligible = outcome.ReasonIfIneligible
	updated.Status = outcome.Status
	updated.OutcomeAt = outcome.OutcomeAt
	updated.UpdatedAt = s.now().UTC()

	ok, err := s.repo.SaveExamination(ctx, &updated, current.Status)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to save examination")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "appointment changed concurrently")
	}

	s.logger.Info("examination recorded",
		zap.String("appointment_id", id),
		zap.String("status", string(updated.Status)),
		zap.String("nurse_id", actor.ID),
	)
	current.Appointment = updated
	return current, nil
}

// Cancel stops an open appointment.
func (s *AppointmentService) Cancel(ctx context.Context, kind models.CampaignKind, id string, req CancelAppointmentRequest) (*models.AppointmentDetail, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid cancellation payload")
	}
	current, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return nil, lookupError(err, "appointment")
	}
	if !workflow.Appointments.Allowed(current.Status, models.AppointmentStatusCancelled) {
		return nil, appErrors.ErrInvalidTransition
	}
	now := s.now().UTC()
	ok, err := s.repo.Cancel(ctx, kind, id, req.Reason, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to cancel appointment")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "appointment changed concurrently")
	}
	current.Status = models.AppointmentStatusCancelled
	current.CancellationReason = &req.Reason
	current.UpdatedAt = now
	return current, nil
}

// Remove soft deletes an appointment.
func (s *AppointmentService) Remove(ctx context.Context, kind models.CampaignKind, id string) error {
	ok, err := s.repo.SoftDelete(ctx, kind, id, s.now().UTC())
	if err != nil {
		return appErrors.Internal(err, "failed to delete appointment")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
	}
	return nil
}

// Get returns one appointment.
func (s *AppointmentService) Get(ctx context.Context, kind models.CampaignKind, id string) (*models.AppointmentDetail, error) {
	appt, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return nil, lookupError(err, "appointment")
	}
	return appt, nil
}

// Search lists appointments.
func (s *AppointmentService) Search(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, *models.Pagination, error) {
	if err := validatePage(filter.PageRequest); err != nil {
		return nil, nil, err
	}
	appts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to search appointments")
	}
	if appts == nil {
		appts = []models.AppointmentDetail{}
	}
	return appts, models.NewPagination(filter.PageNum, filter.PageSize, total), nil
}
