package models

import "time"

// AppointmentStatus tracks the clinical encounter following an approved registration.
type AppointmentStatus string

const (
	AppointmentStatusPending        AppointmentStatus = "PENDING"
	AppointmentStatusChecked        AppointmentStatus = "CHECKED"
	AppointmentStatusIneligible     AppointmentStatus = "INELIGIBLE"
	AppointmentStatusVaccinated     AppointmentStatus = "VACCINATED"
	AppointmentStatusMedicalChecked AppointmentStatus = "MEDICAL_CHECKED"
	AppointmentStatusCancelled      AppointmentStatus = "CANCELLED"
)

// Appointment is the vaccination or medical-check encounter for one student.
type Appointment struct {
	ID                    string            `db:"id" json:"id"`
	Kind                  CampaignKind      `db:"kind" json:"kind"`
	RegistrationID        string            `db:"registration_id" json:"registration_id"`
	StudentID             string            `db:"student_id" json:"student_id"`
	EventID               string            `db:"event_id" json:"event_id"`
	CheckedBy             *string           `db:"checked_by" json:"checked_by,omitempty"`
	BloodPressure         *string           `db:"blood_pressure" json:"blood_pressure,omitempty"`
	HeartRate             *int              `db:"heart_rate" json:"heart_rate,omitempty"`
	Temperature           *float64          `db:"temperature" json:"temperature,omitempty"`
	HeightCM              *float64          `db:"height_cm" json:"height_cm,omitempty"`
	WeightKG              *float64          `db:"weight_kg" json:"weight_kg,omitempty"`
	VisionLeft            *string           `db:"vision_left" json:"vision_left,omitempty"`
	VisionRight           *string           `db:"vision_right" json:"vision_right,omitempty"`
	Notes                 *string           `db:"notes" json:"notes,omitempty"`
	PostEventHealthStatus *string           `db:"post_event_health_status" json:"post_event_health_status,omitempty"`
	IsEligible            *bool             `db:"is_eligible" json:"is_eligible,omitempty"`
	ReasonIfIneligible    *string           `db:"reason_if_ineligible" json:"reason_if_ineligible,omitempty"`
	CancellationReason    *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	Status                AppointmentStatus `db:"status" json:"status"`
	OutcomeAt             *time.Time        `db:"outcome_at" json:"outcome_at,omitempty"`
	SchoolYear            string            `db:"school_year" json:"school_year"`
	IsDeleted             bool              `db:"is_deleted" json:"-"`
	CreatedAt             time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time         `db:"updated_at" json:"updated_at"`
}

// AppointmentDetail enriches an appointment with names for listings.
type AppointmentDetail struct {
	Appointment
	EventName   string `db:"event_name" json:"event_name"`
	StudentName string `db:"student_name" json:"student_name"`
}

// AppointmentFilter provides filters for searching appointments.
type AppointmentFilter struct {
	Kind      CampaignKind
	StudentID string
	EventID   string
	Status    AppointmentStatus
	Query     string
	PageRequest
}

// ExamData is the nurse's examination input.
type ExamData struct {
	IsEligible            *bool      `json:"is_eligible" validate:"required"`
	ReasonIfIneligible    *string    `json:"reason_if_ineligible"`
	OutcomeAt             *time.Time `json:"outcome_at"`
	BloodPressure         *string    `json:"blood_pressure" validate:"omitempty,max=20"`
	HeartRate             *int       `json:"heart_rate" validate:"omitempty,min=20,max=250"`
	Temperature           *float64   `json:"temperature" validate:"omitempty,min=30,max=45"`
	HeightCM              *float64   `json:"height_cm" validate:"omitempty,gt=0"`
	WeightKG              *float64   `json:"weight_kg" validate:"omitempty,gt=0"`
	VisionLeft            *string    `json:"vision_left" validate:"omitempty,max=10"`
	VisionRight           *string    `json:"vision_right" validate:"omitempty,max=10"`
	Notes                 *string    `json:"notes"`
	PostEventHealthStatus *string    `json:"post_event_health_status"`
}
