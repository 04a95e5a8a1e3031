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

type nurseVisitRepository interface {
	Create(ctx context.Context, visit *models.NurseVisit) error
	FindByID(ctx context.Context, id string) (*models.NurseVisit, error)
	List(ctx context.Context, filter models.NurseVisitFilter) ([]models.NurseVisit, int, error)
	Update(ctx context.Context, visit *models.NurseVisit, from models.NurseVisitStatus) (bool, error)
	SoftDelete(ctx context.Context, id string, at time.Time) (bool, error)
}

type visitStudentReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
	IsParentOf(ctx context.Context, parentID, studentID string) (bool, error)
}

type contactReader interface {
	FindContact(ctx context.Context, id string) (*models.Contact, error)
}

// CreateNurseVisitRequest is a parent's request to meet the school nurse.
type CreateNurseVisitRequest struct {
	StudentID       string    `json:"student_id" validate:"required"`
	AppointmentTime time.Time `json:"appointment_time" validate:"required"`
	Reason          string    `json:"reason" validate:"required,max=1000"`
}

// NurseVisitDecisionRequest carries the optional or required free text of a transition.
type NurseVisitDecisionRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// NurseVisitService runs the parent to nurse appointment workflow.
type NurseVisitService struct {
	repo      nurseVisitRepository
	students  visitStudentReader
	contacts  contactReader
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewNurseVisitService constructs NurseVisitService.
func NewNurseVisitService(repo nurseVisitRepository, students visitStudentReader, contacts contactReader, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *NurseVisitService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NurseVisitService{repo: repo, students: students, contacts: contacts, notifier: notifier, validator: validate, logger: logger, now: time.Now}
}

// Create books a visit for the parent's own child.
func (s *NurseVisitService) Create(ctx context.Context, actor models.Principal, req CreateNurseVisitRequest) (*models.NurseVisit, error) {
	if actor.Role != models.RoleParent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only parents can request nurse visits")
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid nurse visit payload")
	}
	if _, err := s.students.FindDetailByID(ctx, req.StudentID); err != nil {
		return nil, lookupError(err, "student")
	}
	linked, err := s.students.IsParentOf(ctx, actor.ID, req.StudentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to verify parent")
	}
	if !linked {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "parent is not linked to this student")
	}
	if !req.AppointmentTime.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "appointment time must be in the future")
	}

	visit := &models.NurseVisit{
		ParentID:        actor.ID,
		StudentID:       req.StudentID,
		AppointmentTime: req.AppointmentTime.UTC(),
		Reason:          req.Reason,
		Status:          models.NurseVisitStatusPending,
	}
	if err := s.repo.Create(ctx, visit); err != nil {
		return nil, appErrors.Internal(err, "failed to create nurse visit")
	}
	s.logger.Info("nurse visit requested", zap.String("visit_id", visit.ID), zap.String("student_id", visit.StudentID))
	return visit, nil
}

// Approve accepts a pending visit and assigns it to the acting nurse.
func (s *NurseVisitService) Approve(ctx context.Context, actor models.Principal, id string, req NurseVisitDecisionRequest) (*models.NurseVisit, error) {
	return s.transition(ctx, actor, id, models.NurseVisitStatusApproved, req.Reason)
}

// Reject declines a pending visit. A reason is required.
func (s *NurseVisitService) Reject(ctx context.Context, actor models.Principal, id string, req NurseVisitDecisionRequest) (*models.NurseVisit, error) {
	return s.transition(ctx, actor, id, models.NurseVisitStatusRejected, req.Reason)
}

// Cancel withdraws a pending or approved visit. Parents may only cancel their own visits.
func (s *NurseVisitService) Cancel(ctx context.Context, actor models.Principal, id string, req NurseVisitDecisionRequest) (*models.NurseVisit, error) {
	return s.transition(ctx, actor, id, models.NurseVisitStatusCancelled, req.Reason)
}

// Complete closes an approved visit the parent attended.
func (s *NurseVisitService) Complete(ctx context.Context, actor models.Principal, id string, req NurseVisitDecisionRequest) (*models.NurseVisit, error) {
	return s.transition(ctx, actor, id, models.NurseVisitStatusDone, req.Reason)
}

func (s *NurseVisitService) transition(ctx context.Context, actor models.Principal, id string, target models.NurseVisitStatus, reason string) (*models.NurseVisit, error) {
	visit, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleParent && target != models.NurseVisitStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only school nurses can decide visits")
	}

	change, err := workflow.DecideVisit(visit, target, reason)
	if err != nil {
		return nil, transitionError(err)
	}

	from := visit.Status
	updated := *visit
	updated.Status = change.Status
	if change.Note != nil {
		updated.Note = change.Note
	}
	if target == models.NurseVisitStatusApproved {
		nurseID := actor.ID
		updated.SchoolNurseID = &nurseID
	}
	updated.UpdatedAt = s.now().UTC()

	if err := s.save(ctx, &updated, from); err != nil {
		return nil, err
	}
	s.logger.Info("nurse visit updated",
		zap.String("visit_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(updated.Status)),
		zap.String("actor_id", actor.ID),
	)

	switch {
	case target == models.NurseVisitStatusApproved || target == models.NurseVisitStatusRejected:
		s.notifyParent(ctx, &updated, models.TemplateVisitDecided, "Nurse visit "+strings.ToLower(string(updated.Status)))
	case target == models.NurseVisitStatusCancelled && actor.Role != models.RoleParent:
		s.notifyParent(ctx, &updated, models.TemplateVisitCancelled, "Nurse visit cancelled")
	}
	return &updated, nil
}

// MarkArrived records the parent's arrival for an approved visit.
func (s *NurseVisitService) MarkArrived(ctx context.Context, actor models.Principal, id string) (*models.NurseVisit, error) {
	visit, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if visit.Status != models.NurseVisitStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only approved visits can record an arrival")
	}
	if visit.ParentArrivalTime != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "arrival already recorded")
	}
	now := s.now().UTC()
	updated := *visit
	updated.ParentArrivalTime = &now
	updated.UpdatedAt = now
	if err := s.save(ctx, &updated, visit.Status); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Get returns one visit. Parents only see their own visits.
func (s *NurseVisitService) Get(ctx context.Context, actor models.Principal, id string) (*models.NurseVisit, error) {
	return s.load(ctx, actor, id)
}

// Search lists visits. Parents only see their own visits.
func (s *NurseVisitService) Search(ctx context.Context, actor models.Principal, filter models.NurseVisitFilter) ([]models.NurseVisit, *models.Pagination, error) {
	if err := validatePage(filter.PageRequest); err != nil {
		return nil, nil, err
	}
	if actor.Role == models.RoleParent {
		filter.ParentID = actor.ID
	}
	visits, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to search nurse visits")
	}
	if visits == nil {
		visits = []models.NurseVisit{}
	}
	return visits, models.NewPagination(filter.PageNum, filter.PageSize, total), nil
}

// Delete soft deletes a visit.
func (s *NurseVisitService) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.SoftDelete(ctx, id, s.now().UTC())
	if err != nil {
		return appErrors.Internal(err, "failed to delete nurse visit")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "nurse visit not found")
	}
	return nil
}

func (s *NurseVisitService) load(ctx context.Context, actor models.Principal, id string) (*models.NurseVisit, error) {
	visit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "nurse visit")
	}
	if actor.Role == models.RoleParent && visit.ParentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "nurse visit belongs to another parent")
	}
	return visit, nil
}

func (s *NurseVisitService) save(ctx context.Context, visit *models.NurseVisit, from models.NurseVisitStatus) error {
	ok, err := s.repo.Update(ctx, visit, from)
	if err != nil {
		return appErrors.Internal(err, "failed to update nurse visit")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrInvalidState, "nurse visit changed concurrently")
	}
	return nil
}

func (s *NurseVisitService) notifyParent(ctx context.Context, visit *models.NurseVisit, tmpl models.NotificationTemplate, subject string) {
	contact, err := s.contacts.FindContact(ctx, visit.ParentID)
	if err != nil {
		s.logger.Warn("failed to load parent contact", zap.String("visit_id", visit.ID), zap.Error(err))
		return
	}
	data := map[string]string{
		"Status":          string(visit.Status),
		"AppointmentTime": formatNotificationTime(visit.AppointmentTime),
	}
	if visit.Note != nil {
		data["Note"] = *visit.Note
	}
	if student, err := s.students.FindDetailByID(ctx, visit.StudentID); err == nil {
		data["StudentName"] = student.FullName
	}
	s.notifier.Enqueue(ctx, models.NotificationJob{
		Template:      tmpl,
		Recipient:     contact.Email,
		RecipientName: contact.FullName,
		Subject:       subject,
		Data:          data,
	})
}
