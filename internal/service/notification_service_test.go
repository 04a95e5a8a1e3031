package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/pkg/jobs"
	"github.com/noah-isme/sma-health-api/pkg/mailer"
)

type stubDispatcher struct {
	err  error
	jobs []models.NotificationJob
}

func (d *stubDispatcher) Dispatch(ctx context.Context, job models.NotificationJob) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (p *capturePublisher) Publish(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bodies = append(p.bodies, body)
	return nil
}

func reminderJob() models.NotificationJob {
	return models.NotificationJob{
		Template:      models.TemplateVisitReminder,
		Recipient:     "p-1@example.com",
		RecipientName: "Parent One",
		Subject:       "Upcoming appointment with the school nurse",
		Data:          map[string]string{"StudentName": "Alice", "AppointmentTime": "Wed, 01 May 2024 08:05 UTC"},
	}
}

func outcomeCount(m *MetricsService, tmpl models.NotificationTemplate, outcome string) float64 {
	return testutil.ToFloat64(m.notifications.WithLabelValues(string(tmpl), outcome))
}

func TestNotificationEnqueueFillsEnvelope(t *testing.T) {
	dispatcher := &stubDispatcher{}
	metrics := NewMetricsService()
	svc := NewNotificationService(dispatcher, metrics, nil)

	svc.Enqueue(context.Background(), reminderJob())
	require.Len(t, dispatcher.jobs, 1)
	assert.NotEmpty(t, dispatcher.jobs[0].ID)
	assert.False(t, dispatcher.jobs[0].EnqueuedAt.IsZero())
	assert.Equal(t, 1.0, outcomeCount(metrics, models.TemplateVisitReminder, NotificationEnqueued))
}

func TestNotificationEnqueueNeverFailsCaller(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewNotificationService(&stubDispatcher{err: jobs.ErrQueueFull}, metrics, nil)

	assert.NotPanics(t, func() { svc.Enqueue(context.Background(), reminderJob()) })

	noRecipient := reminderJob()
	noRecipient.Recipient = ""
	svc.Enqueue(context.Background(), noRecipient)
	assert.Equal(t, 2.0, outcomeCount(metrics, models.TemplateVisitReminder, NotificationDropped))
}

func TestNotificationWorkerRendersAndSends(t *testing.T) {
	m := &recordingMailer{}
	metrics := NewMetricsService()
	worker := NewNotificationWorker(m, metrics, nil)

	require.NoError(t, worker.Deliver(context.Background(), reminderJob()))
	sent := m.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "p-1@example.com", sent[0].To.Address)
	assert.Equal(t, "Parent One", sent[0].To.Name)
	assert.Contains(t, sent[0].HTMLContent, "Dear Parent One")
	assert.Contains(t, sent[0].HTMLContent, "about Alice at Wed, 01 May 2024 08:05 UTC")
	assert.Equal(t, 1.0, outcomeCount(metrics, models.TemplateVisitReminder, NotificationSent))
}

func TestNotificationWorkerEscapesData(t *testing.T) {
	m := &recordingMailer{}
	worker := NewNotificationWorker(m, nil, nil)
	job := reminderJob()
	job.Template = models.TemplateVisitCancelled
	job.Data["Note"] = "<script>alert(1)</script>"

	require.NoError(t, worker.Deliver(context.Background(), job))
	sent := m.messages()
	require.Len(t, sent, 1)
	assert.NotContains(t, sent[0].HTMLContent, "<script>")
	assert.Contains(t, sent[0].HTMLContent, "&lt;script&gt;")
}

func TestNotificationWorkerFailures(t *testing.T) {
	metrics := NewMetricsService()

	unknown := reminderJob()
	unknown.Template = "NOT_A_TEMPLATE"
	m := &recordingMailer{}
	require.NoError(t, NewNotificationWorker(m, metrics, nil).Deliver(context.Background(), unknown))
	assert.Empty(t, m.messages())
	assert.Equal(t, 1.0, outcomeCount(metrics, "NOT_A_TEMPLATE", NotificationFailed))

	transient := &recordingMailer{err: errors.New("sendgrid: status 503")}
	err := NewNotificationWorker(transient, metrics, nil).Deliver(context.Background(), reminderJob())
	assert.Error(t, err)

	missing := &recordingMailer{err: fmt.Errorf("send: %w", mailer.ErrNoRecipient)}
	assert.NoError(t, NewNotificationWorker(missing, metrics, nil).Deliver(context.Background(), reminderJob()))
	assert.Equal(t, 2.0, outcomeCount(metrics, models.TemplateVisitReminder, NotificationFailed))
}

func TestNotificationThroughInMemoryQueue(t *testing.T) {
	m := &recordingMailer{}
	worker := NewNotificationWorker(m, nil, nil)
	queue := jobs.NewQueue("notifications", worker.HandleJob, jobs.QueueConfig{Workers: 1, RetryDelay: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	svc := NewNotificationService(NewQueueDispatcher(queue), nil, nil)
	svc.Enqueue(ctx, reminderJob())

	require.Eventually(t, func() bool { return len(m.messages()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestNotificationThroughBroker(t *testing.T) {
	publisher := &capturePublisher{}
	svc := NewNotificationService(NewBrokerDispatcher(publisher), nil, nil)
	svc.Enqueue(context.Background(), reminderJob())
	require.Len(t, publisher.bodies, 1)

	var decoded models.NotificationJob
	require.NoError(t, json.Unmarshal(publisher.bodies[0], &decoded))
	assert.Equal(t, models.TemplateVisitReminder, decoded.Template)

	m := &recordingMailer{}
	worker := NewNotificationWorker(m, nil, nil)
	require.NoError(t, worker.HandleMessage(context.Background(), publisher.bodies[0]))
	assert.Len(t, m.messages(), 1)

	assert.NoError(t, worker.HandleMessage(context.Background(), []byte("{not json")))
	assert.Len(t, m.messages(), 1)
}
