package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/repository"
	"github.com/noah-isme/sma-health-api/internal/workflow"
	appErrors "github.com/noah-isme/sma-health-api/pkg/errors"
	"github.com/noah-isme/sma-health-api/pkg/export"
)

type registrationRepository interface {
	Create(ctx context.Context, reg *models.Registration) error
	CreateBatch(ctx context.Context, regs []models.Registration) ([]models.Registration, error)
	FindByID(ctx context.Context, kind models.CampaignKind, id string) (*models.RegistrationDetail, error)
	ExistsActive(ctx context.Context, studentID, eventID string) (bool, error)
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error)
	ListByEvent(ctx context.Context, kind models.CampaignKind, eventID string) ([]models.RegistrationDetail, error)
	Decide(ctx context.Context, reg *models.Registration, appt *models.Appointment) (bool, error)
	SoftDelete(ctx context.Context, kind models.CampaignKind, id string, at time.Time) (bool, error)
}

type studentDirectory interface {
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ListCohort(ctx context.Context, grade string) ([]models.CohortMember, error)
	ListParents(ctx context.Context, studentID string) ([]models.Contact, error)
	IsParentOf(ctx context.Context, parentID, studentID string) (bool, error)
}

type eventLookup interface {
	Get(ctx context.Context, kind models.CampaignKind, id string) (*models.CampaignEvent, error)
}

// CreateRegistrationRequest is a single registration submitted by a parent or staff member.
type CreateRegistrationRequest struct {
	EventID   string  `json:"event_id" validate:"required"`
	StudentID string  `json:"student_id" validate:"required"`
	ParentID  string  `json:"parent_id"`
	Note      *string `json:"note" validate:"omitempty,max=500"`
}

// UpdateRegistrationStatusRequest is a consent decision.
type UpdateRegistrationStatusRequest struct {
	Status models.RegistrationStatus `json:"status" validate:"required"`
	Reason string                    `json:"reason" validate:"max=500"`
}

// ExportFile is a rendered roster ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// RegistrationService runs the parent consent workflow of campaign events.
type RegistrationService struct {
	repo      registrationRepository
	students  studentDirectory
	events    eventLookup
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(repo registrationRepository, students studentDirectory, events eventLookup, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{repo: repo, students: students, events: events, notifier: notifier, validator: validate, logger: logger, now: time.Now}
}

// CreateForCohort opens one pending registration per student of the event's
// grade and invites their parents. Students that already hold a registration
// for the event are skipped, so the call can be retried safely. It returns the
// number of registrations created.
func (s *RegistrationService) CreateForCohort(ctx context.Context, event *models.CampaignEvent) (int, error) {
	members, err := s.students.ListCohort(ctx, event.Grade)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to resolve event cohort")
	}

	parents := make(map[string][]models.CohortMember)
	var regs []models.Registration
	for _, m := range members {
		if _, seen := parents[m.StudentID]; !seen {
			regs = append(regs, models.Registration{
				Kind:       event.Kind,
				ParentID:   m.ParentID,
				StudentID:  m.StudentID,
				EventID:    event.ID,
				Status:     models.RegistrationStatusPending,
				SchoolYear: event.SchoolYear,
			})
		}
		parents[m.StudentID] = append(parents[m.StudentID], m)
	}

	inserted, err := s.repo.CreateBatch(ctx, regs)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to create cohort registrations")
	}

	for _, reg := range inserted {
		for _, parent := range parents[reg.StudentID] {
			s.notifier.Enqueue(ctx, models.NotificationJob{
				Template:      models.TemplateRegistrationInvitation,
				Recipient:     parent.ParentEmail,
				RecipientName: parent.ParentName,
				Subject:       fmt.Sprintf("%s registration: %s", capitalize(event.Kind.Label()), event.Name),
				Data: map[string]string{
					"Kind":           event.Kind.Label(),
					"EventName":      event.Name,
					"EventDate":      formatNotificationTime(event.EventDate),
					"Deadline":       formatNotificationTime(event.EndRegistrationDate),
					"StudentName":    parent.StudentName,
					"RegistrationID": reg.ID,
				},
			})
		}
	}

	s.logger.Info("cohort registrations created",
		zap.String("event_id", event.ID),
		zap.String("kind", string(event.Kind)),
		zap.Int("students", len(regs)),
		zap.Int("created", len(inserted)),
	)
	return len(inserted), nil
}

// Create registers one student for an event on behalf of a parent.
func (s *RegistrationService) Create(ctx context.Context, actor models.Principal, kind models.CampaignKind, req CreateRegistrationRequest) (*models.RegistrationDetail, error) {
	if actor.Role == models.RoleParent {
		req.ParentID = actor.ID
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid registration payload")
	}
	if strings.TrimSpace(req.ParentID) == "" {
		err := appErrors.Clone(appErrors.ErrValidation, "invalid registration payload")
		err.Details = []string{"parentID failed on required"}
		return nil, err
	}

	event, err := s.events.Get(ctx, kind, req.EventID)
	if err != nil {
		return nil, err
	}
	if event.Status != models.EventStatusOngoing {
		return nil, errEventClosed
	}
	student, err := s.students.FindDetailByID(ctx, req.StudentID)
	if err != nil {
		return nil, lookupError(err, "student")
	}
	linked, err := s.students.IsParentOf(ctx, req.ParentID, req.StudentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to verify parent")
	}
	if !linked {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "parent is not linked to this student")
	}
	if !event.RegistrationOpen(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "registration window is closed")
	}
	if student.Grade != event.Grade {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not part of the event cohort")
	}
	exists, err := s.repo.ExistsActive(ctx, req.StudentID, req.EventID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check existing registration")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already registered for this event")
	}

	reg := &models.Registration{
		Kind:       kind,
		ParentID:   req.ParentID,
		StudentID:  req.StudentID,
		EventID:    req.EventID,
		Status:     models.RegistrationStatusPending,
		Note:       req.Note,
		SchoolYear: event.SchoolYear,
	}
	if err := s.repo.Create(ctx, reg); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already registered for this event")
		}
		return nil, appErrors.Internal(err, "failed to create registration")
	}

	detail, err := s.repo.FindByID(ctx, kind, reg.ID)
	if err != nil {
		return nil, lookupError(err, "registration")
	}
	return detail, nil
}

// UpdateStatus applies a consent decision. Approval spawns the follow-up
// appointment and confirms to every parent of the student.
func (s *RegistrationService) UpdateStatus(ctx context.Context, actor models.Principal, kind models.CampaignKind, id string, req UpdateRegistrationStatusRequest) (*models.RegistrationDetail, error) {
	current, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return nil, lookupError(err, "registration")
	}
	if actor.Role == models.RoleParent && current.ParentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another parent")
	}

	now := s.now().UTC()
	change, err := workflow.DecideRegistration(current.Status, req.Status, req.Reason, now)
	if err != nil {
		return nil, transitionError(err)
	}
	if change.Status == models.RegistrationStatusApproved {
		event, err := s.events.Get(ctx, kind, current.EventID)
		if err != nil {
			return nil, err
		}
		if event.Status != models.EventStatusOngoing {
			return nil, errEventClosed
		}
	}

	updated := current.Registration
	updated.Status = change.Status
	updated.CancellationReason = change.CancellationReason
	updated.ApprovedAt = change.ApprovedAt
	updated.UpdatedAt = now

	var appt *models.Appointment
	if change.SpawnAppointment {
		appt = &models.Appointment{
			Kind:           updated.Kind,
			RegistrationID: updated.ID,
			StudentID:      updated.StudentID,
			EventID:        updated.EventID,
			Status:         models.AppointmentStatusPending,
			SchoolYear:     updated.SchoolYear,
		}
	}

	ok, err := s.repo.Decide(ctx, &updated, appt)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to update registration")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "status has already been decided")
	}

	s.logger.Info("registration decided",
		zap.String("registration_id", id),
		zap.String("status", string(updated.Status)),
		zap.String("actor_id", actor.ID),
	)

	if updated.Status == models.RegistrationStatusApproved {
		s.confirm(ctx, current, kind)
	}

	current.Registration = updated
	return current, nil
}

func (s *RegistrationService) confirm(ctx context.Context, reg *models.RegistrationDetail, kind models.CampaignKind) {
	parents, err := s.students.ListParents(ctx, reg.StudentID)
	if err != nil {
		s.logger.Warn("failed to load parents for confirmation", zap.String("registration_id", reg.ID), zap.Error(err))
		return
	}
	data := map[string]string{
		"Kind":        kind.Label(),
		"EventName":   reg.EventName,
		"StudentName": reg.StudentName,
	}
	if event, err := s.events.Get(ctx, kind, reg.EventID); err == nil {
		data["EventDate"] = formatNotificationTime(event.EventDate)
	}
	for _, parent := range parents {
		if parent.Email == "" {
			continue
		}
		s.notifier.Enqueue(ctx, models.NotificationJob{
			Template:      models.TemplateRegistrationConfirmed,
			Recipient:     parent.Email,
			RecipientName: parent.FullName,
			Subject:       fmt.Sprintf("Registration approved: %s", reg.EventName),
			Data:          data,
		})
	}
}

// Search lists registrations. Parents only see their own registrations.
func (s *RegistrationService) Search(ctx context.Context, actor models.Principal, filter models.RegistrationFilter) ([]models.RegistrationDetail, *models.Pagination, error) {
	if err := validatePage(filter.PageRequest); err != nil {
		return nil, nil, err
	}
	if actor.Role == models.RoleParent {
		filter.ParentID = actor.ID
	}
	regs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to search registrations")
	}
	if regs == nil {
		regs = []models.RegistrationDetail{}
	}
	return regs, models.NewPagination(filter.PageNum, filter.PageSize, total), nil
}

// Get returns one registration.
func (s *RegistrationService) Get(ctx context.Context, actor models.Principal, kind models.CampaignKind, id string) (*models.RegistrationDetail, error) {
	reg, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return nil, lookupError(err, "registration")
	}
	if actor.Role == models.RoleParent && reg.ParentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another parent")
	}
	return reg, nil
}

// Delete soft deletes a registration.
func (s *RegistrationService) Delete(ctx context.Context, kind models.CampaignKind, id string) error {
	ok, err := s.repo.SoftDelete(ctx, kind, id, s.now().UTC())
	if err != nil {
		return appErrors.Internal(err, "failed to delete registration")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
	}
	return nil
}

// Export renders the registration roster of an event.
func (s *RegistrationService) Export(ctx context.Context, kind models.CampaignKind, eventID, rawFormat string) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if strings.TrimSpace(eventID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "eventId is required")
	}
	event, err := s.events.Get(ctx, kind, eventID)
	if err != nil {
		return nil, err
	}
	regs, err := s.repo.ListByEvent(ctx, kind, eventID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load registrations")
	}

	data := export.Dataset{
		Title:   fmt.Sprintf("%s roster: %s (grade %s, %s)", capitalize(kind.Label()), event.Name, event.Grade, event.SchoolYear),
		Headers: []string{"Student", "Parent", "Status", "Reason", "Approved At", "Registered At"},
	}
	for _, reg := range regs {
		row := map[string]string{
			"Student":       reg.StudentName,
			"Parent":        reg.ParentName,
			"Status":        string(reg.Status),
			"Registered At": reg.CreatedAt.UTC().Format(time.RFC3339),
		}
		if reg.CancellationReason != nil {
			row["Reason"] = *reg.CancellationReason
		}
		if reg.ApprovedAt != nil {
			row["Approved At"] = reg.ApprovedAt.UTC().Format(time.RFC3339)
		}
		data.Rows = append(data.Rows, row)
	}

	body, err := export.Render(format, data)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("%s-registrations-%s.%s", strings.ToLower(strings.ReplaceAll(string(kind), "_", "-")), event.ID, format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
