package models

import "time"

// NurseVisitStatus tracks a parent-requested visit with the school nurse.
type NurseVisitStatus string

const (
	NurseVisitStatusPending   NurseVisitStatus = "PENDING"
	NurseVisitStatusApproved  NurseVisitStatus = "APPROVED"
	NurseVisitStatusRejected  NurseVisitStatus = "REJECTED"
	NurseVisitStatusCancelled NurseVisitStatus = "CANCELLED"
	NurseVisitStatusDone      NurseVisitStatus = "DONE"
)

// NurseVisit is a parent-requested appointment with the school nurse, outside any campaign.
type NurseVisit struct {
	ID                          string           `db:"id" json:"id"`
	ParentID                    string           `db:"parent_id" json:"parent_id"`
	StudentID                   string           `db:"student_id" json:"student_id"`
	SchoolNurseID               *string          `db:"school_nurse_id" json:"school_nurse_id,omitempty"`
	AppointmentTime             time.Time        `db:"appointment_time" json:"appointment_time"`
	Reason                      string           `db:"reason" json:"reason"`
	Status                      NurseVisitStatus `db:"status" json:"status"`
	ParentArrivalTime           *time.Time       `db:"parent_arrival_time" json:"parent_arrival_time,omitempty"`
	IsRemindedBeforeAppointment bool             `db:"is_reminded_before_appointment" json:"is_reminded_before_appointment"`
	Note                        *string          `db:"note" json:"note,omitempty"`
	IsDeleted                   bool             `db:"is_deleted" json:"-"`
	CreatedAt                   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt                   time.Time        `db:"updated_at" json:"updated_at"`
}

// NurseVisitNotice carries the fields a scheduler sweep needs to notify the parent.
type NurseVisitNotice struct {
	ID              string    `db:"id"`
	ParentID        string    `db:"parent_id"`
	StudentID       string    `db:"student_id"`
	AppointmentTime time.Time `db:"appointment_time"`
	ParentEmail     string    `db:"parent_email"`
	ParentName      string    `db:"parent_name"`
	StudentName     string    `db:"student_name"`
}

// NurseVisitFilter provides filters for searching nurse visits.
type NurseVisitFilter struct {
	ParentID      string
	StudentID     string
	SchoolNurseID string
	Status        NurseVisitStatus
	PageRequest
}
