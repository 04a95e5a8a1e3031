package service

import (
	"html/template"

	"github.com/noah-isme/sma-health-api/internal/models"
)

var notificationTemplates = template.Must(template.New("notifications").Option("missingkey=zero").Parse(`
{{define "header"}}<p>Dear {{if .RecipientName}}{{.RecipientName}}{{else}}parent{{end}},</p>{{end}}
{{define "footer"}}<p>School Health Office</p>{{end}}

{{define "` + string(models.TemplateRegistrationInvitation) + `"}}
{{template "header" .}}
<p>The school is organising a {{.Data.Kind}} campaign, <strong>{{.Data.EventName}}</strong>, on {{.Data.EventDate}}.</p>
<p>Please confirm or decline participation for {{.Data.StudentName}} before {{.Data.Deadline}}.
Registrations without an answer expire automatically when the window closes.</p>
{{template "footer" .}}
{{end}}

{{define "` + string(models.TemplateRegistrationConfirmed) + `"}}
{{template "header" .}}
<p>The registration of {{.Data.StudentName}} for <strong>{{.Data.EventName}}</strong> has been approved.</p>
<p>The {{.Data.Kind}} takes place on {{.Data.EventDate}}.</p>
{{template "footer" .}}
{{end}}

{{define "` + string(models.TemplateVisitDecided) + `"}}
{{template "header" .}}
<p>Your visit request for {{.Data.StudentName}} on {{.Data.AppointmentTime}} is now <strong>{{.Data.Status}}</strong>.</p>
{{if .Data.Note}}<p>Note from the nurse: {{.Data.Note}}</p>{{end}}
{{template "footer" .}}
{{end}}

{{define "` + string(models.TemplateVisitReminder) + `"}}
{{template "header" .}}
<p>This is a reminder of your appointment with the school nurse about {{.Data.StudentName}} at {{.Data.AppointmentTime}}.</p>
<p>Visits are cancelled when the parent has not arrived 30 minutes after the scheduled time.</p>
{{template "footer" .}}
{{end}}

{{define "` + string(models.TemplateVisitCancelled) + `"}}
{{template "header" .}}
<p>Your appointment with the school nurse about {{.Data.StudentName}} at {{.Data.AppointmentTime}} was cancelled.</p>
{{if .Data.Note}}<p>{{.Data.Note}}</p>{{end}}
{{template "footer" .}}
{{end}}
`))
