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

const appointmentColumns = `a.id, a.kind, a.registration_id, a.student_id, a.event_id, a.checked_by, a.blood_pressure,
       a.heart_rate, a.temperature, a.height_cm, a.weight_kg, a.vision_left, a.vision_right, a.notes,
       a.post_event_health_status, a.is_eligible, a.reason_if_ineligible, a.cancellation_reason, a.status, a.outcome_at,
       a.school_year, a.is_deleted, a.created_at, a.updated_at`

const appointmentDetailFrom = `
FROM appointments a
JOIN campaign_events e ON e.id = a.event_id
JOIN students s ON s.id = a.student_id
WHERE a.is_deleted = FALSE`

const insertAppointmentQuery = `
INSERT INTO appointments (id, kind, registration_id, student_id, event_id, status, school_year, is_deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9)`

const appointmentConflictClause = `
ON CONFLICT (student_id, event_id) WHERE is_deleted = FALSE DO NOTHING`

func prepareAppointment(appt *models.Appointment, now time.Time) []interface{} {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = models.AppointmentStatusPending
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now
	return []interface{}{appt.ID, appt.Kind, appt.RegistrationID, appt.StudentID, appt.EventID, appt.Status, appt.SchoolYear, appt.CreatedAt, appt.UpdatedAt}
}

// AppointmentRepository persists campaign appointments and examination results.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository constructs the repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// FindByID returns a live appointment of the given kind with display names.
func (r *AppointmentRepository) FindByID(ctx context.Context, kind models.CampaignKind, id string) (*models.AppointmentDetail, error) {
	query := `SELECT ` + appointmentColumns + `, e.name AS event_name, s.full_name AS student_name` +
		appointmentDetailFrom + ` AND a.id = $1 AND a.kind = $2`
	var appt models.AppointmentDetail
	if err := r.db.GetContext(ctx, &appt, query, id, kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return &appt, nil
}

// List returns a page of appointments, newest first, with the total match count.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, int, error) {
	var where whereBuilder
	where.add("a.kind = ?", filter.Kind)
	if filter.StudentID != "" {
		where.add("a.student_id = ?", filter.StudentID)
	}
	if filter.EventID != "" {
		where.add("a.event_id = ?", filter.EventID)
	}
	if filter.Status != "" {
		where.add("a.status = ?", filter.Status)
	}
	if filter.Query != "" {
		where.add("e.name ILIKE ?", likePattern(filter.Query))
	}
	base := appointmentDetailFrom + where.clause()

	listQuery := fmt.Sprintf("SELECT %s, e.name AS event_name, s.full_name AS student_name %s ORDER BY a.created_at DESC, a.id DESC LIMIT %d OFFSET %d",
		appointmentColumns, base, filter.PageSize, filter.Offset())
	var appts []models.AppointmentDetail
	if err := r.db.SelectContext(ctx, &appts, listQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}
	return appts, total, nil
}

// SaveExamination writes the examination fields and the resulting status. The
// write only applies while the appointment is still in the status it was read in.
func (r *AppointmentRepository) SaveExamination(ctx context.Context, appt *models.Appointment, from models.AppointmentStatus) (bool, error) {
	const query = `
UPDATE appointments SET
    checked_by = :checked_by, blood_pressure = :blood_pressure, heart_rate = :heart_rate,
    temperature = :temperature, height_cm = :height_cm, weight_kg = :weight_kg,
    vision_left = :vision_left, vision_right = :vision_right, notes = :notes,
    post_event_health_status = :post_event_health_status, is_eligible = :is_eligible,
    reason_if_ineligible = :reason_if_ineligible, status = :status, outcome_at = :outcome_at,
    updated_at = :updated_at
WHERE id = :id AND status = :from_status AND is_deleted = FALSE`
	arg := struct {
		models.Appointment
		FromStatus models.AppointmentStatus `db:"from_status"`
	}{Appointment: *appt, FromStatus: from}
	res, err := r.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return false, fmt.Errorf("save examination: %w", err)
	}
	return affected(res)
}

// Cancel moves an open appointment to CANCELLED. Examination notes are left untouched.
func (r *AppointmentRepository) Cancel(ctx context.Context, kind models.CampaignKind, id, reason string, at time.Time) (bool, error) {
	const query = `
UPDATE appointments SET status = $3, cancellation_reason = $4, updated_at = $5
WHERE id = $1 AND kind = $2 AND status IN ($6, $7) AND is_deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, kind, models.AppointmentStatusCancelled, reason, at,
		models.AppointmentStatusPending, models.AppointmentStatusChecked)
	if err != nil {
		return false, fmt.Errorf("cancel appointment: %w", err)
	}
	return affected(res)
}

// SoftDelete flags an appointment as deleted.
func (r *AppointmentRepository) SoftDelete(ctx context.Context, kind models.CampaignKind, id string, at time.Time) (bool, error) {
	const query = `UPDATE appointments SET is_deleted = TRUE, updated_at = $3 WHERE id = $1 AND kind = $2 AND is_deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, kind, at)
	if err != nil {
		return false, fmt.Errorf("delete appointment: %w", err)
	}
	return affected(res)
}
