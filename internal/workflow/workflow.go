// Package workflow holds the status transition tables of the health campaign
// and nurse visit workflows. Services consult these tables before persisting
// any status change.
package workflow

import (
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/sma-health-api/internal/models"
)

var (
	// ErrDecided is returned when the record has left its initial state and cannot be decided again.
	ErrDecided = errors.New("status already decided")
	// ErrUndefinedTransition is returned for a target state the table does not allow.
	ErrUndefinedTransition = errors.New("undefined status transition")
	// ErrReasonRequired is returned when the target state needs a reason.
	ErrReasonRequired = errors.New("reason required")
	// ErrArrivalRequired is returned when a visit is completed before the parent arrived.
	ErrArrivalRequired = errors.New("parent arrival required")
)

// RegistrationExpiredReason is stored on registrations closed by the expiry sweep.
const RegistrationExpiredReason = "registration window closed"

// VisitAutoCancelNote is stored on nurse visits cancelled by the overdue sweep.
const VisitAutoCancelNote = "automatically cancelled: parent did not arrive within 30 minutes"

// DefaultIneligibleReason is recorded when a nurse marks a student ineligible without a reason.
const DefaultIneligibleReason = "not eligible"

// Machine is a transition table keyed by source state.
type Machine[S comparable] struct {
	edges map[S]map[S]struct{}
}

// NewMachine builds a table from source -> allowed targets.
func NewMachine[S comparable](edges map[S][]S) Machine[S] {
	m := Machine[S]{edges: make(map[S]map[S]struct{}, len(edges))}
	for from, tos := range edges {
		set := make(map[S]struct{}, len(tos))
		for _, to := range tos {
			set[to] = struct{}{}
		}
		m.edges[from] = set
	}
	return m
}

// Allowed reports whether from -> to is a defined edge.
func (m Machine[S]) Allowed(from, to S) bool {
	_, ok := m.edges[from][to]
	return ok
}

// Terminal reports whether from has no outgoing edges.
func (m Machine[S]) Terminal(from S) bool {
	return len(m.edges[from]) == 0
}

// Registrations is the consent workflow: every decision leaves PENDING for good.
var Registrations = NewMachine(map[models.RegistrationStatus][]models.RegistrationStatus{
	models.RegistrationStatusPending: {
		models.RegistrationStatusApproved,
		models.RegistrationStatusRejected,
		models.RegistrationStatusCancelled,
		models.RegistrationStatusExpired,
	},
})

// Appointments is the examination workflow for campaign appointments.
var Appointments = NewMachine(map[models.AppointmentStatus][]models.AppointmentStatus{
	models.AppointmentStatusPending: {
		models.AppointmentStatusChecked,
		models.AppointmentStatusIneligible,
		models.AppointmentStatusVaccinated,
		models.AppointmentStatusMedicalChecked,
		models.AppointmentStatusCancelled,
	},
	models.AppointmentStatusChecked: {
		models.AppointmentStatusChecked,
		models.AppointmentStatusIneligible,
		models.AppointmentStatusVaccinated,
		models.AppointmentStatusMedicalChecked,
		models.AppointmentStatusCancelled,
	},
})

// NurseVisits is the parent-requested visit workflow.
var NurseVisits = NewMachine(map[models.NurseVisitStatus][]models.NurseVisitStatus{
	models.NurseVisitStatusPending: {
		models.NurseVisitStatusApproved,
		models.NurseVisitStatusRejected,
		models.NurseVisitStatusCancelled,
	},
	models.NurseVisitStatusApproved: {
		models.NurseVisitStatusCancelled,
		models.NurseVisitStatusDone,
	},
})

// Events is the campaign event lifecycle.
var Events = NewMachine(map[models.EventStatus][]models.EventStatus{
	models.EventStatusOngoing: {
		models.EventStatusCompleted,
		models.EventStatusCancelled,
	},
})

// RegistrationChange is the field update implied by a registration decision.
type RegistrationChange struct {
	Status             models.RegistrationStatus
	CancellationReason *string
	ApprovedAt         *time.Time
	// SpawnAppointment is set on approval: exactly one follow-up appointment must exist.
	SpawnAppointment bool
}

// DecideRegistration validates a user decision on a registration. Expiry is
// reserved for the scheduler and is not accepted here.
func DecideRegistration(current, target models.RegistrationStatus, reason string, now time.Time) (RegistrationChange, error) {
	if current != models.RegistrationStatusPending {
		return RegistrationChange{}, ErrDecided
	}
	if target == models.RegistrationStatusExpired || !Registrations.Allowed(current, target) {
		return RegistrationChange{}, ErrUndefinedTransition
	}
	reason = strings.TrimSpace(reason)
	change := RegistrationChange{Status: target}
	switch target {
	case models.RegistrationStatusApproved:
		at := now.UTC()
		change.ApprovedAt = &at
		change.SpawnAppointment = true
	case models.RegistrationStatusRejected, models.RegistrationStatusCancelled:
		if reason == "" {
			return RegistrationChange{}, ErrReasonRequired
		}
		change.CancellationReason = &reason
	}
	return change, nil
}

// ExamOutcome is the status decision for one nurse examination.
type ExamOutcome struct {
	Status             models.AppointmentStatus
	ReasonIfIneligible *string
	OutcomeAt          *time.Time
}

// DecideExamination applies the eligibility rule in order: ineligible, done
// with an outcome timestamp, otherwise checked and awaiting the outcome.
func DecideExamination(kind models.CampaignKind, current models.AppointmentStatus, eligible bool, reason *string, outcomeAt *time.Time) (ExamOutcome, error) {
	if Appointments.Terminal(current) {
		return ExamOutcome{}, ErrUndefinedTransition
	}
	var out ExamOutcome
	switch {
	case !eligible:
		r := DefaultIneligibleReason
		if reason != nil && strings.TrimSpace(*reason) != "" {
			r = strings.TrimSpace(*reason)
		}
		out = ExamOutcome{Status: models.AppointmentStatusIneligible, ReasonIfIneligible: &r}
	case outcomeAt != nil && !outcomeAt.IsZero():
		at := outcomeAt.UTC()
		out = ExamOutcome{Status: kind.DoneStatus(), OutcomeAt: &at}
	default:
		out = ExamOutcome{Status: models.AppointmentStatusChecked}
	}
	if !Appointments.Allowed(current, out.Status) {
		return ExamOutcome{}, ErrUndefinedTransition
	}
	return out, nil
}

// VisitChange is the field update implied by a nurse visit transition.
type VisitChange struct {
	Status models.NurseVisitStatus
	Note   *string
}

// DecideVisit validates a nurse visit transition. Rejection and cancellation
// need a reason, completion needs a recorded arrival.
func DecideVisit(visit *models.NurseVisit, target models.NurseVisitStatus, reason string) (VisitChange, error) {
	if NurseVisits.Terminal(visit.Status) {
		return VisitChange{}, ErrDecided
	}
	if !NurseVisits.Allowed(visit.Status, target) {
		return VisitChange{}, ErrUndefinedTransition
	}
	reason = strings.TrimSpace(reason)
	change := VisitChange{Status: target}
	switch target {
	case models.NurseVisitStatusRejected, models.NurseVisitStatusCancelled:
		if reason == "" {
			return VisitChange{}, ErrReasonRequired
		}
		change.Note = &reason
	case models.NurseVisitStatusDone:
		if visit.ParentArrivalTime == nil {
			return VisitChange{}, ErrArrivalRequired
		}
		if reason != "" {
			change.Note = &reason
		}
	}
	return change, nil
}

// VisitOpenStatuses are the states swept by the reminder and overdue jobs.
var VisitOpenStatuses = []models.NurseVisitStatus{models.NurseVisitStatusPending, models.NurseVisitStatusApproved}
