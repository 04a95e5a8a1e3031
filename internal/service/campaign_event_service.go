package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/workflow"
	appErrors "github.com/noah-isme/sma-health-api/pkg/errors"
)

type campaignEventFinder interface {
	FindByID(ctx context.Context, kind models.CampaignKind, id string) (*models.CampaignEvent, error)
}

type campaignEventRepository interface {
	campaignEventFinder
	Create(ctx context.Context, event *models.CampaignEvent) error
	List(ctx context.Context, filter models.CampaignEventFilter) ([]models.CampaignEvent, int, error)
	UpdateStatus(ctx context.Context, id string, from, to models.EventStatus, at time.Time) (bool, error)
	SoftDelete(ctx context.Context, id string, at time.Time) (bool, error)
}

type cohortRegistrar interface {
	CreateForCohort(ctx context.Context, event *models.CampaignEvent) (int, error)
}

// EventCatalog is the read-through cache in front of campaign event lookups.
type EventCatalog struct {
	repo   campaignEventFinder
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewEventCatalog constructs an EventCatalog. A nil cache reads straight from the repository.
func NewEventCatalog(repo campaignEventFinder, cache *CacheService, ttl time.Duration, logger *zap.Logger) *EventCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventCatalog{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

func eventCacheKey(kind models.CampaignKind, id string) string {
	return fmt.Sprintf("campaign_event:%s:%s", strings.ToLower(string(kind)), id)
}

// Get returns a live event, serving from cache when possible.
func (c *EventCatalog) Get(ctx context.Context, kind models.CampaignKind, id string) (*models.CampaignEvent, error) {
	key := eventCacheKey(kind, id)
	var cached models.CampaignEvent
	if hit, _ := c.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	event, err := c.repo.FindByID(ctx, kind, id)
	if err != nil {
		return nil, lookupError(err, "campaign event")
	}
	_ = c.cache.Set(ctx, key, event, c.ttl)
	return event, nil
}

// Forget drops the cached copy of an event.
func (c *EventCatalog) Forget(ctx context.Context, kind models.CampaignKind, id string) {
	if err := c.cache.Invalidate(ctx, eventCacheKey(kind, id)); err != nil {
		c.logger.Warn("failed to evict campaign event", zap.String("event_id", id), zap.Error(err))
	}
}

// CreateCampaignEventRequest describes a new vaccination or medical-check event.
type CreateCampaignEventRequest struct {
	Name                  string    `json:"name" validate:"required,max=200"`
	Description           string    `json:"description" validate:"max=2000"`
	Grade                 string    `json:"grade" validate:"required,max=20"`
	VaccineName           *string   `json:"vaccine_name" validate:"omitempty,max=200"`
	StartRegistrationDate time.Time `json:"start_registration_date" validate:"required"`
	EndRegistrationDate   time.Time `json:"end_registration_date" validate:"required"`
	EventDate             time.Time `json:"event_date" validate:"required"`
	SchoolYear            string    `json:"school_year" validate:"required,max=20"`
}

// UpdateCampaignEventStatusRequest moves an event along its lifecycle.
type UpdateCampaignEventStatusRequest struct {
	Status models.EventStatus `json:"status" validate:"required"`
}

// CampaignEventService manages campaign events and opens their registrations.
type CampaignEventService struct {
	repo      campaignEventRepository
	catalog   *EventCatalog
	registrar cohortRegistrar
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCampaignEventService constructs CampaignEventService.
func NewCampaignEventService(repo campaignEventRepository, catalog *EventCatalog, registrar cohortRegistrar, validate *validator.Validate, logger *zap.Logger) *CampaignEventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignEventService{repo: repo, catalog: catalog, registrar: registrar, validator: validate, logger: logger, now: time.Now}
}

// Create persists an event and registers its cohort. It returns the event and
// the number of registrations opened.
func (s *CampaignEventService) Create(ctx context.Context, actor models.Principal, kind models.CampaignKind, req CreateCampaignEventRequest) (*models.CampaignEvent, int, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, 0, appErrors.Validation(err, "invalid campaign event payload")
	}
	var details []string
	if !req.StartRegistrationDate.Before(req.EndRegistrationDate) {
		details = append(details, "startRegistrationDate must be before endRegistrationDate")
	}
	if req.EventDate.Before(req.EndRegistrationDate) {
		details = append(details, "eventDate must not be before endRegistrationDate")
	}
	if kind == models.CampaignVaccine && (req.VaccineName == nil || strings.TrimSpace(*req.VaccineName) == "") {
		details = append(details, "vaccineName failed on required")
	}
	if len(details) > 0 {
		err := appErrors.Clone(appErrors.ErrValidation, "invalid campaign event payload")
		err.Details = details
		return nil, 0, err
	}
	if kind != models.CampaignVaccine {
		req.VaccineName = nil
	}

	event := &models.CampaignEvent{
		Kind:                  kind,
		Name:                  strings.TrimSpace(req.Name),
		Description:           req.Description,
		Grade:                 strings.TrimSpace(req.Grade),
		VaccineName:           req.VaccineName,
		StartRegistrationDate: req.StartRegistrationDate.UTC(),
		EndRegistrationDate:   req.EndRegistrationDate.UTC(),
		EventDate:             req.EventDate.UTC(),
		SchoolYear:            req.SchoolYear,
		Status:                models.EventStatusOngoing,
		CreatedBy:             actor.ID,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, 0, appErrors.Internal(err, "failed to create campaign event")
	}
	s.logger.Info("campaign event created", zap.String("event_id", event.ID), zap.String("kind", string(kind)), zap.String("grade", event.Grade))

	created, err := s.registrar.CreateForCohort(ctx, event)
	if err != nil {
		return event, 0, err
	}
	return event, created, nil
}

// OpenRegistrations re-runs cohort registration for an ongoing event. Students
// already registered are skipped.
func (s *CampaignEventService) OpenRegistrations(ctx context.Context, kind models.CampaignKind, id string) (int, error) {
	event, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return 0, lookupError(err, "campaign event")
	}
	if event.Status != models.EventStatusOngoing {
		return 0, errEventClosed
	}
	return s.registrar.CreateForCohort(ctx, event)
}

// Get returns one event.
func (s *CampaignEventService) Get(ctx context.Context, kind models.CampaignKind, id string) (*models.CampaignEvent, error) {
	return s.catalog.Get(ctx, kind, id)
}

// Search lists events.
func (s *CampaignEventService) Search(ctx context.Context, filter models.CampaignEventFilter) ([]models.CampaignEvent, *models.Pagination, error) {
	if err := validatePage(filter.PageRequest); err != nil {
		return nil, nil, err
	}
	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to search campaign events")
	}
	if events == nil {
		events = []models.CampaignEvent{}
	}
	return events, models.NewPagination(filter.PageNum, filter.PageSize, total), nil
}

// UpdateStatus completes or cancels an ongoing event.
func (s *CampaignEventService) UpdateStatus(ctx context.Context, kind models.CampaignKind, id string, req UpdateCampaignEventStatusRequest) (*models.CampaignEvent, error) {
	event, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return nil, lookupError(err, "campaign event")
	}
	if workflow.Events.Terminal(event.Status) {
		return nil, errEventClosed
	}
	if !workflow.Events.Allowed(event.Status, req.Status) {
		return nil, appErrors.ErrInvalidTransition
	}
	now := s.now().UTC()
	ok, err := s.repo.UpdateStatus(ctx, id, event.Status, req.Status, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to update campaign event")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "campaign event changed concurrently")
	}
	s.catalog.Forget(ctx, kind, id)

	event.Status = req.Status
	event.UpdatedAt = now
	return event, nil
}

// Delete soft deletes an event.
func (s *CampaignEventService) Delete(ctx context.Context, kind models.CampaignKind, id string) error {
	if _, err := s.repo.FindByID(ctx, kind, id); err != nil {
		return lookupError(err, "campaign event")
	}
	ok, err := s.repo.SoftDelete(ctx, id, s.now().UTC())
	if err != nil {
		return appErrors.Internal(err, "failed to delete campaign event")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "campaign event not found")
	}
	s.catalog.Forget(ctx, kind, id)
	return nil
}
