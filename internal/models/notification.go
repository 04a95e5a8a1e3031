package models

import "time"

// NotificationTemplate names the email template rendered for a job.
type NotificationTemplate string

const (
	TemplateRegistrationInvitation NotificationTemplate = "REGISTRATION_INVITATION"
	TemplateRegistrationConfirmed  NotificationTemplate = "REGISTRATION_CONFIRMED"
	TemplateVisitDecided           NotificationTemplate = "VISIT_DECIDED"
	TemplateVisitReminder          NotificationTemplate = "VISIT_REMINDER"
	TemplateVisitCancelled         NotificationTemplate = "VISIT_CANCELLED"
)

// NotificationJob is one outbound message handed to the asynchronous worker.
type NotificationJob struct {
	ID            string               `json:"id"`
	Template      NotificationTemplate `json:"template"`
	Recipient     string               `json:"recipient"`
	RecipientName string               `json:"recipient_name"`
	Subject       string               `json:"subject"`
	Data          map[string]string    `json:"data"`
	EnqueuedAt    time.Time            `json:"enqueued_at"`
}
