package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-health-api/internal/models"
)

const nurseVisitColumns = `id, parent_id, student_id, school_nurse_id, appointment_time, reason, status, parent_arrival_time,
       is_reminded_before_appointment, note, is_deleted, created_at, updated_at`

// NurseVisitRepository persists parent-requested nurse visits.
type NurseVisitRepository struct {
	db *sqlx.DB
}

// NewNurseVisitRepository constructs the repository.
func NewNurseVisitRepository(db *sqlx.DB) *NurseVisitRepository {
	return &NurseVisitRepository{db: db}
}

// Create inserts a new visit request.
func (r *NurseVisitRepository) Create(ctx context.Context, visit *models.NurseVisit) error {
	if visit.ID == "" {
		visit.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if visit.CreatedAt.IsZero() {
		visit.CreatedAt = now
	}
	visit.UpdatedAt = now
	const query = `
INSERT INTO nurse_visits (id, parent_id, student_id, school_nurse_id, appointment_time, reason, status,
    is_reminded_before_appointment, is_deleted, created_at, updated_at)
VALUES (:id, :parent_id, :student_id, :school_nurse_id, :appointment_time, :reason, :status,
    FALSE, FALSE, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, visit); err != nil {
		return fmt.Errorf("create nurse visit: %w", err)
	}
	return nil
}

// FindByID returns a live visit.
func (r *NurseVisitRepository) FindByID(ctx context.Context, id string) (*models.NurseVisit, error) {
	query := `SELECT ` + nurseVisitColumns + ` FROM nurse_visits WHERE id = $1 AND is_deleted = FALSE`
	var visit models.NurseVisit
	if err := r.db.GetContext(ctx, &visit, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find nurse visit: %w", err)
	}
	return &visit, nil
}

// List returns a page of visits ordered by appointment time, latest first.
func (r *NurseVisitRepository) List(ctx context.Context, filter models.NurseVisitFilter) ([]models.NurseVisit, int, error) {
	var where whereBuilder
	if filter.ParentID != "" {
		where.add("parent_id = ?", filter.ParentID)
	}
	if filter.StudentID != "" {
		where.add("student_id = ?", filter.StudentID)
	}
	if filter.SchoolNurseID != "" {
		where.add("school_nurse_id = ?", filter.SchoolNurseID)
	}
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	base := `FROM nurse_visits WHERE is_deleted = FALSE` + where.clause()

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY appointment_time DESC, id DESC LIMIT %d OFFSET %d",
		nurseVisitColumns, base, filter.PageSize, filter.Offset())
	var visits []models.NurseVisit
	if err := r.db.SelectContext(ctx, &visits, listQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list nurse visits: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count nurse visits: %w", err)
	}
	return visits, total, nil
}

// Update writes the mutable fields of a visit while it is still in status from.
func (r *NurseVisitRepository) Update(ctx context.Context, visit *models.NurseVisit, from models.NurseVisitStatus) (bool, error) {
	const query = `
UPDATE nurse_visits SET status = $3, school_nurse_id = $4, note = $5, parent_arrival_time = $6, updated_at = $7
WHERE id = $1 AND status = $2 AND is_deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, visit.ID, from, visit.Status, visit.SchoolNurseID, visit.Note, visit.ParentArrivalTime, visit.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("update nurse visit: %w", err)
	}
	return affected(res)
}

// SoftDelete flags a visit as deleted.
func (r *NurseVisitRepository) SoftDelete(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE nurse_visits SET is_deleted = TRUE, updated_at = $2 WHERE id = $1 AND is_deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("delete nurse visit: %w", err)
	}
	return affected(res)
}

// ClaimDueReminders marks up to limit open, unreminded visits starting within
// [from, until] as reminded and returns them. A visit is claimed at most once.
func (r *NurseVisitRepository) ClaimDueReminders(ctx context.Context, statuses []models.NurseVisitStatus, from, until time.Time, limit int) ([]models.NurseVisitNotice, error) {
	const query = `
WITH due AS (
    SELECT id FROM nurse_visits
    WHERE status = ANY($1) AND parent_arrival_time IS NULL AND is_reminded_before_appointment = FALSE
      AND is_deleted = FALSE AND appointment_time >= $2 AND appointment_time <= $3
    ORDER BY appointment_time
    LIMIT $4
    FOR UPDATE SKIP LOCKED
), claimed AS (
    UPDATE nurse_visits v SET is_reminded_before_appointment = TRUE, updated_at = $2
    FROM due WHERE v.id = due.id
    RETURNING v.id, v.parent_id, v.student_id, v.appointment_time
)
SELECT c.id, c.parent_id, c.student_id, c.appointment_time,
       u.email AS parent_email, u.full_name AS parent_name, s.full_name AS student_name
FROM claimed c
JOIN users u ON u.id = c.parent_id
JOIN students s ON s.id = c.student_id`
	var notices []models.NurseVisitNotice
	if err := r.db.SelectContext(ctx, &notices, query, statusArray(statuses), from, until, limit); err != nil {
		return nil, fmt.Errorf("claim visit reminders: %w", err)
	}
	return notices, nil
}

// CancelOverdue cancels up to limit open visits whose appointment time is
// before cutoff and the parent never arrived, returning the cancelled rows.
func (r *NurseVisitRepository) CancelOverdue(ctx context.Context, statuses []models.NurseVisitStatus, cutoff, now time.Time, note string, limit int) ([]models.NurseVisitNotice, error) {
	const query = `
WITH overdue AS (
    SELECT id FROM nurse_visits
    WHERE status = ANY($1) AND parent_arrival_time IS NULL AND is_deleted = FALSE AND appointment_time < $2
    ORDER BY appointment_time
    LIMIT $3
    FOR UPDATE SKIP LOCKED
), cancelled AS (
    UPDATE nurse_visits v SET status = $4, note = $5, updated_at = $6
    FROM overdue WHERE v.id = overdue.id
    RETURNING v.id, v.parent_id, v.student_id, v.appointment_time
)
SELECT c.id, c.parent_id, c.student_id, c.appointment_time,
       u.email AS parent_email, u.full_name AS parent_name, s.full_name AS student_name
FROM cancelled c
JOIN users u ON u.id = c.parent_id
JOIN students s ON s.id = c.student_id`
	var notices []models.NurseVisitNotice
	if err := r.db.SelectContext(ctx, &notices, query, statusArray(statuses), cutoff, limit,
		models.NurseVisitStatusCancelled, note, now); err != nil {
		return nil, fmt.Errorf("cancel overdue visits: %w", err)
	}
	return notices, nil
}

func statusArray(statuses []models.NurseVisitStatus) interface{} {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return pq.Array(values)
}
