package models

import "time"

// RegistrationStatus is a parent's consent decision.
type RegistrationStatus string

const (
	RegistrationStatusPending   RegistrationStatus = "PENDING"
	RegistrationStatusApproved  RegistrationStatus = "APPROVED"
	RegistrationStatusRejected  RegistrationStatus = "REJECTED"
	RegistrationStatusCancelled RegistrationStatus = "CANCELLED"
	RegistrationStatusExpired   RegistrationStatus = "EXPIRED"
)

// Registration records one parent's consent for one student in one campaign event.
type Registration struct {
	ID                 string             `db:"id" json:"id"`
	Kind               CampaignKind       `db:"kind" json:"kind"`
	ParentID           string             `db:"parent_id" json:"parent_id"`
	StudentID          string             `db:"student_id" json:"student_id"`
	EventID            string             `db:"event_id" json:"event_id"`
	Status             RegistrationStatus `db:"status" json:"status"`
	CancellationReason *string            `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	ApprovedAt         *time.Time         `db:"approved_at" json:"approved_at,omitempty"`
	Note               *string            `db:"note" json:"note,omitempty"`
	SchoolYear         string             `db:"school_year" json:"school_year"`
	IsDeleted          bool               `db:"is_deleted" json:"-"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// RegistrationDetail enriches a registration with names for listings.
type RegistrationDetail struct {
	Registration
	EventName   string `db:"event_name" json:"event_name"`
	StudentName string `db:"student_name" json:"student_name"`
	ParentName  string `db:"parent_name" json:"parent_name"`
}

// RegistrationFilter provides filters for searching registrations.
type RegistrationFilter struct {
	Kind      CampaignKind
	StudentID string
	ParentID  string
	EventID   string
	Status    RegistrationStatus
	Query     string
	PageRequest
}
