package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-health-api/internal/models"
)

// StudentRepository resolves students, their classes and their parents.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a new repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindDetailByID returns the student with the grade of their class.
func (r *StudentRepository) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	const query = `
SELECT s.id, s.nis, s.full_name, s.class_id, s.active, s.created_at, s.updated_at,
       c.name AS class_name, c.grade
FROM students s
JOIN classes c ON c.id = s.class_id
WHERE s.id = $1`
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student detail: %w", err)
	}
	return &student, nil
}

// ListCohort returns every (active student, active parent) pair of a grade.
// Rows of one student are adjacent, earliest parent link first.
func (r *StudentRepository) ListCohort(ctx context.Context, grade string) ([]models.CohortMember, error) {
	const query = `
SELECT s.id AS student_id, s.full_name AS student_name,
       u.id AS parent_id, u.full_name AS parent_name, u.email AS parent_email
FROM students s
JOIN classes c ON c.id = s.class_id
JOIN student_parents sp ON sp.student_id = s.id
JOIN users u ON u.id = sp.parent_id
WHERE c.grade = $1 AND s.active = TRUE AND u.active = TRUE
ORDER BY s.id, sp.created_at, u.id`
	var members []models.CohortMember
	if err := r.db.SelectContext(ctx, &members, query, grade); err != nil {
		return nil, fmt.Errorf("list cohort: %w", err)
	}
	return members, nil
}

// ListParents returns the active parent contacts of a student.
func (r *StudentRepository) ListParents(ctx context.Context, studentID string) ([]models.Contact, error) {
	const query = `
SELECT u.id, u.email, u.full_name
FROM student_parents sp
JOIN users u ON u.id = sp.parent_id
WHERE sp.student_id = $1 AND u.active = TRUE
ORDER BY sp.created_at, u.id`
	var contacts []models.Contact
	if err := r.db.SelectContext(ctx, &contacts, query, studentID); err != nil {
		return nil, fmt.Errorf("list student parents: %w", err)
	}
	return contacts, nil
}

// IsParentOf reports whether the user is linked to the student as a parent.
func (r *StudentRepository) IsParentOf(ctx context.Context, parentID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM student_parents WHERE parent_id = $1 AND student_id = $2)`
	var linked bool
	if err := r.db.GetContext(ctx, &linked, query, parentID, studentID); err != nil {
		return false, fmt.Errorf("check student parent: %w", err)
	}
	return linked, nil
}
