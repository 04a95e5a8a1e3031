package models

import "time"

// CampaignKind distinguishes the two campaign families sharing the workflow.
type CampaignKind string

const (
	CampaignVaccine      CampaignKind = "VACCINE"
	CampaignMedicalCheck CampaignKind = "MEDICAL_CHECK"
)

// Valid reports whether k is a known campaign kind.
func (k CampaignKind) Valid() bool {
	return k == CampaignVaccine || k == CampaignMedicalCheck
}

// Label is the human readable name used in notifications and exports.
func (k CampaignKind) Label() string {
	if k == CampaignVaccine {
		return "vaccination"
	}
	return "medical check"
}

// DoneStatus is the terminal appointment status recorded when the outcome is in.
func (k CampaignKind) DoneStatus() AppointmentStatus {
	if k == CampaignVaccine {
		return AppointmentStatusVaccinated
	}
	return AppointmentStatusMedicalChecked
}

// EventStatus represents the lifecycle of a campaign event.
type EventStatus string

const (
	EventStatusOngoing   EventStatus = "ONGOING"
	EventStatusCompleted EventStatus = "COMPLETED"
	EventStatusCancelled EventStatus = "CANCELLED"
)

// CampaignEvent is a vaccination or medical-check drive for one grade cohort.
type CampaignEvent struct {
	ID                    string       `db:"id" json:"id"`
	Kind                  CampaignKind `db:"kind" json:"kind"`
	Name                  string       `db:"name" json:"name"`
	Description           string       `db:"description" json:"description"`
	Grade                 string       `db:"grade" json:"grade"`
	VaccineName           *string      `db:"vaccine_name" json:"vaccine_name,omitempty"`
	StartRegistrationDate time.Time    `db:"start_registration_date" json:"start_registration_date"`
	EndRegistrationDate   time.Time    `db:"end_registration_date" json:"end_registration_date"`
	EventDate             time.Time    `db:"event_date" json:"event_date"`
	SchoolYear            string       `db:"school_year" json:"school_year"`
	Status                EventStatus  `db:"status" json:"status"`
	CreatedBy             string       `db:"created_by" json:"created_by"`
	IsDeleted             bool         `db:"is_deleted" json:"-"`
	CreatedAt             time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time    `db:"updated_at" json:"updated_at"`
}

// RegistrationOpen reports whether now falls inside [start, end).
func (e *CampaignEvent) RegistrationOpen(now time.Time) bool {
	return !now.Before(e.StartRegistrationDate) && now.Before(e.EndRegistrationDate)
}

// CampaignEventFilter provides filters for searching campaign events.
type CampaignEventFilter struct {
	Kind       CampaignKind
	Grade      string
	SchoolYear string
	Status     EventStatus
	Query      string
	PageRequest
}
