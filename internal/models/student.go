package models

import "time"

// Student represents a learner registered in the school.
type Student struct {
	ID        string    `db:"id" json:"id"`
	NIS       string    `db:"nis" json:"nis"`
	FullName  string    `db:"full_name" json:"full_name"`
	ClassID   string    `db:"class_id" json:"class_id"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail adds the class context used for cohort checks.
type StudentDetail struct {
	Student
	ClassName string `db:"class_name" json:"class_name"`
	Grade     string `db:"grade" json:"grade"`
}

// CohortMember pairs a student with one of their parents.
type CohortMember struct {
	StudentID   string `db:"student_id"`
	StudentName string `db:"student_name"`
	ParentID    string `db:"parent_id"`
	ParentName  string `db:"parent_name"`
	ParentEmail string `db:"parent_email"`
}
