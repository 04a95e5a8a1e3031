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

const registrationColumns = `r.id, r.kind, r.parent_id, r.student_id, r.event_id, r.status, r.cancellation_reason,
       r.approved_at, r.note, r.school_year, r.is_deleted, r.created_at, r.updated_at`

const registrationDetailFrom = `
FROM registrations r
JOIN campaign_events e ON e.id = r.event_id
JOIN students s ON s.id = r.student_id
JOIN users u ON u.id = r.parent_id
WHERE r.is_deleted = FALSE`

const insertRegistrationQuery = `
INSERT INTO registrations (id, kind, parent_id, student_id, event_id, status, note, school_year, is_deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, $10)`

// RegistrationRepository persists parent consent registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func prepareRegistration(reg *models.Registration, now time.Time) []interface{} {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now
	return []interface{}{reg.ID, reg.Kind, reg.ParentID, reg.StudentID, reg.EventID, reg.Status, reg.Note, reg.SchoolYear, reg.CreatedAt, reg.UpdatedAt}
}

// Create inserts a single registration. ErrDuplicate is returned when a live
// registration already exists for the student and event.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	args := prepareRegistration(reg, time.Now().UTC())
	if _, err := r.db.ExecContext(ctx, insertRegistrationQuery, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// CreateBatch inserts the registrations in one transaction, skipping pairs
// that already have a live registration. Only the inserted rows are returned.
func (r *RegistrationRepository) CreateBatch(ctx context.Context, regs []models.Registration) (inserted []models.Registration, err error) {
	if len(regs) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create registrations: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := insertRegistrationQuery + `
ON CONFLICT (student_id, event_id) WHERE is_deleted = FALSE DO NOTHING
RETURNING id`
	now := time.Now().UTC()
	for i := range regs {
		reg := regs[i]
		var id string
		scanErr := tx.QueryRowxContext(ctx, query, prepareRegistration(&reg, now)...).Scan(&id)
		if errors.Is(scanErr, sql.ErrNoRows) {
			continue
		}
		if scanErr != nil {
			err = fmt.Errorf("insert registration: %w", scanErr)
			return nil, err
		}
		inserted = append(inserted, reg)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create registrations: %w", err)
	}
	return inserted, nil
}

// FindByID returns a live registration of the given kind with display names.
func (r *RegistrationRepository) FindByID(ctx context.Context, kind models.CampaignKind, id string) (*models.RegistrationDetail, error) {
	query := `SELECT ` + registrationColumns + `, e.name AS event_name, s.full_name AS student_name, u.full_name AS parent_name` +
		registrationDetailFrom + ` AND r.id = $1 AND r.kind = $2`
	var reg models.RegistrationDetail
	if err := r.db.GetContext(ctx, &reg, query, id, kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return &reg, nil
}

// ExistsActive reports whether a live registration exists for the student and event.
func (r *RegistrationRepository) ExistsActive(ctx context.Context, studentID, eventID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM registrations WHERE student_id = $1 AND event_id = $2 AND is_deleted = FALSE)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, eventID); err != nil {
		return false, fmt.Errorf("check registration exists: %w", err)
	}
	return exists, nil
}

// List returns a page of registrations, newest first, with the total match count.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	var where whereBuilder
	where.add("r.kind = ?", filter.Kind)
	if filter.StudentID != "" {
		where.add("r.student_id = ?", filter.StudentID)
	}
	if filter.ParentID != "" {
		where.add("r.parent_id = ?", filter.ParentID)
	}
	if filter.EventID != "" {
		where.add("r.event_id = ?", filter.EventID)
	}
	if filter.Status != "" {
		where.add("r.status = ?", filter.Status)
	}
	if filter.Query != "" {
		where.add("e.name ILIKE ?", likePattern(filter.Query))
	}
	base := registrationDetailFrom + where.clause()

	listQuery := fmt.Sprintf("SELECT %s, e.name AS event_name, s.full_name AS student_name, u.full_name AS parent_name %s ORDER BY r.created_at DESC, r.id DESC LIMIT %d OFFSET %d",
		registrationColumns, base, filter.PageSize, filter.Offset())
	var regs []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &regs, listQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return regs, total, nil
}

// ListByEvent returns the full roster of an event ordered by student name.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, kind models.CampaignKind, eventID string) ([]models.RegistrationDetail, error) {
	query := `SELECT ` + registrationColumns + `, e.name AS event_name, s.full_name AS student_name, u.full_name AS parent_name` +
		registrationDetailFrom + ` AND r.kind = $1 AND r.event_id = $2 ORDER BY s.full_name ASC, r.id ASC`
	var regs []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &regs, query, kind, eventID); err != nil {
		return nil, fmt.Errorf("list registrations by event: %w", err)
	}
	return regs, nil
}

// Decide persists a decision on a pending registration. When appt is not nil
// the follow-up appointment is inserted in the same transaction unless one
// already exists. It reports false when the registration is no longer pending.
func (r *RegistrationRepository) Decide(ctx context.Context, reg *models.Registration, appt *models.Appointment) (ok bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin registration decision: %w", err)
	}
	defer func() {
		if err != nil || !ok {
			_ = tx.Rollback()
		}
	}()

	const update = `
UPDATE registrations SET status = $2, cancellation_reason = $3, approved_at = $4, updated_at = $5
WHERE id = $1 AND status = $6 AND is_deleted = FALSE`
	res, err := tx.ExecContext(ctx, update, reg.ID, reg.Status, reg.CancellationReason, reg.ApprovedAt, reg.UpdatedAt, models.RegistrationStatusPending)
	if err != nil {
		return false, fmt.Errorf("update registration status: %w", err)
	}
	if ok, err = affected(res); err != nil || !ok {
		return false, err
	}

	if appt != nil {
		if _, err = tx.ExecContext(ctx, insertAppointmentQuery+appointmentConflictClause, prepareAppointment(appt, reg.UpdatedAt)...); err != nil {
			return false, fmt.Errorf("create appointment: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit registration decision: %w", err)
	}
	return true, nil
}

// SoftDelete flags a registration as deleted.
func (r *RegistrationRepository) SoftDelete(ctx context.Context, kind models.CampaignKind, id string, at time.Time) (bool, error) {
	const query = `UPDATE registrations SET is_deleted = TRUE, updated_at = $3 WHERE id = $1 AND kind = $2 AND is_deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, kind, at)
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", err)
	}
	return affected(res)
}

// ExpirePending moves up to limit pending registrations whose event closed
// registration before now to EXPIRED and returns how many rows changed.
func (r *RegistrationRepository) ExpirePending(ctx context.Context, now time.Time, reason string, limit int) (int64, error) {
	const query = `
UPDATE registrations SET status = $1, cancellation_reason = $2, updated_at = $3
WHERE status = $4 AND id IN (
    SELECT r.id FROM registrations r
    JOIN campaign_events e ON e.id = r.event_id
    WHERE r.status = $4 AND r.is_deleted = FALSE AND e.is_deleted = FALSE AND e.end_registration_date < $3
    ORDER BY r.id
    LIMIT $5
    FOR UPDATE OF r SKIP LOCKED
)`
	res, err := r.db.ExecContext(ctx, query, models.RegistrationStatusExpired, reason, now, models.RegistrationStatusPending, limit)
	if err != nil {
		return 0, fmt.Errorf("expire registrations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
