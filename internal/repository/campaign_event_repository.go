package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-health-api/internal/models"
)

const campaignEventColumns = `e.id, e.kind, e.name, e.description, e.grade, e.vaccine_name, e.start_registration_date,
       e.end_registration_date, e.event_date, e.school_year, e.status, e.created_by, e.is_deleted, e.created_at, e.updated_at`

// CampaignEventRepository persists vaccination and medical-check events.
type CampaignEventRepository struct {
	db *sqlx.DB
}

// NewCampaignEventRepository constructs the repository.
func NewCampaignEventRepository(db *sqlx.DB) *CampaignEventRepository {
	return &CampaignEventRepository{db: db}
}

// Create inserts a new event.
func (r *CampaignEventRepository) Create(ctx context.Context, event *models.CampaignEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	const query = `
INSERT INTO campaign_events (id, kind, name, description, grade, vaccine_name, start_registration_date,
    end_registration_date, event_date, school_year, status, created_by, is_deleted, created_at, updated_at)
VALUES (:id, :kind, :name, :description, :grade, :vaccine_name, :start_registration_date,
    :end_registration_date, :event_date, :school_year, :status, :created_by, FALSE, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create campaign event: %w", err)
	}
	return nil
}

// FindByID returns a non-deleted event of the given kind.
func (r *CampaignEventRepository) FindByID(ctx context.Context, kind models.CampaignKind, id string) (*models.CampaignEvent, error) {
	query := `SELECT ` + campaignEventColumns + ` FROM campaign_events e WHERE e.id = $1 AND e.kind = $2 AND e.is_deleted = FALSE`
	var event models.CampaignEvent
	if err := r.db.GetContext(ctx, &event, query, id, kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find campaign event: %w", err)
	}
	return &event, nil
}

// List returns a page of events with the total match count.
func (r *CampaignEventRepository) List(ctx context.Context, filter models.CampaignEventFilter) ([]models.CampaignEvent, int, error) {
	var where whereBuilder
	where.add("e.kind = ?", filter.Kind)
	if filter.Grade != "" {
		where.add("e.grade = ?", filter.Grade)
	}
	if filter.SchoolYear != "" {
		where.add("e.school_year = ?", filter.SchoolYear)
	}
	if filter.Status != "" {
		where.add("e.status = ?", filter.Status)
	}
	if filter.Query != "" {
		where.add("e.name ILIKE ?", likePattern(filter.Query))
	}
	base := `FROM campaign_events e WHERE e.is_deleted = FALSE` + where.clause()

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY e.created_at DESC, e.id DESC LIMIT %d OFFSET %d",
		campaignEventColumns, base, filter.PageSize, filter.Offset())
	var events []models.CampaignEvent
	if err := r.db.SelectContext(ctx, &events, listQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list campaign events: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count campaign events: %w", err)
	}
	return events, total, nil
}

// UpdateStatus moves an event from one status to another. It reports false
// when the event is missing or no longer in the expected status.
func (r *CampaignEventRepository) UpdateStatus(ctx context.Context, id string, from, to models.EventStatus, at time.Time) (bool, error) {
	const query = `UPDATE campaign_events SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2 AND is_deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, from, to, at)
	if err != nil {
		return false, fmt.Errorf("update campaign event status: %w", err)
	}
	return affected(res)
}

// SoftDelete flags the event as deleted.
func (r *CampaignEventRepository) SoftDelete(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE campaign_events SET is_deleted = TRUE, updated_at = $2 WHERE id = $1 AND is_deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("delete campaign event: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
