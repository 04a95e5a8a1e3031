package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/pkg/jobs"
	"github.com/noah-isme/sma-health-api/pkg/mailer"
)

// NotificationDispatcher hands a job to a queue backend.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, job models.NotificationJob) error
}

// Notifier is the fire-and-forget entry point used by the workflow services.
type Notifier interface {
	Enqueue(ctx context.Context, job models.NotificationJob)
}

// NotificationService accepts notification jobs on behalf of the workflows.
// Enqueue never fails the caller: dispatch errors are logged and counted.
type NotificationService struct {
	dispatcher NotificationDispatcher
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewNotificationService constructs the enqueue side of the notification adapter.
func NewNotificationService(dispatcher NotificationDispatcher, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{dispatcher: dispatcher, metrics: metrics, logger: logger, now: time.Now}
}

// Enqueue submits a job for asynchronous delivery.
func (s *NotificationService) Enqueue(ctx context.Context, job models.NotificationJob) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = s.now().UTC()
	}
	if job.Recipient == "" {
		s.logger.Warn("notification skipped: no recipient", zap.String("template", string(job.Template)))
		s.metrics.RecordNotification(string(job.Template), NotificationDropped)
		return
	}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		s.logger.Error("notification enqueue failed",
			zap.String("job_id", job.ID),
			zap.String("template", string(job.Template)),
			zap.Error(err),
		)
		s.metrics.RecordNotification(string(job.Template), NotificationDropped)
		return
	}
	s.metrics.RecordNotification(string(job.Template), NotificationEnqueued)
}

// QueueDispatcher dispatches onto the in-process worker pool.
type QueueDispatcher struct {
	queue *jobs.Queue
}

// NewQueueDispatcher wraps an in-memory queue.
func NewQueueDispatcher(queue *jobs.Queue) *QueueDispatcher {
	return &QueueDispatcher{queue: queue}
}

// Dispatch implements NotificationDispatcher.
func (d *QueueDispatcher) Dispatch(_ context.Context, job models.NotificationJob) error {
	return d.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Template), Payload: job, Enqueued: job.EnqueuedAt})
}

// Publisher publishes raw message bodies to a broker.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// BrokerDispatcher dispatches JSON encoded jobs to a message broker.
type BrokerDispatcher struct {
	publisher Publisher
}

// NewBrokerDispatcher wraps a broker publisher.
func NewBrokerDispatcher(publisher Publisher) *BrokerDispatcher {
	return &BrokerDispatcher{publisher: publisher}
}

// Dispatch implements NotificationDispatcher.
func (d *BrokerDispatcher) Dispatch(ctx context.Context, job models.NotificationJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return d.publisher.Publish(ctx, body)
}

// NotificationWorker renders queued jobs and hands them to the mailer.
type NotificationWorker struct {
	mailer    mailer.Mailer
	templates *template.Template
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationWorker constructs the delivery side of the notification adapter.
func NewNotificationWorker(m mailer.Mailer, metrics *MetricsService, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{mailer: m, templates: notificationTemplates, metrics: metrics, logger: logger}
}

// HandleJob adapts the worker to the in-memory queue.
func (w *NotificationWorker) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(models.NotificationJob)
	if !ok {
		w.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	return w.Deliver(ctx, payload)
}

// HandleMessage adapts the worker to the message broker. Undecodable bodies are discarded.
func (w *NotificationWorker) HandleMessage(ctx context.Context, body []byte) error {
	var job models.NotificationJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.logger.Error("discarding undecodable notification", zap.Error(err))
		return nil
	}
	return w.Deliver(ctx, job)
}

// OnDrop records jobs abandoned by the queue after exhausting retries.
func (w *NotificationWorker) OnDrop(template string, err error) {
	w.logger.Error("notification dropped", zap.String("template", template), zap.Error(err))
	w.metrics.RecordNotification(template, NotificationDropped)
}

// Deliver renders and sends one job. Errors are returned so the queue can retry.
func (w *NotificationWorker) Deliver(ctx context.Context, job models.NotificationJob) error {
	tmpl := string(job.Template)
	html, err := w.render(job)
	if err != nil {
		w.logger.Error("notification render failed", zap.String("job_id", job.ID), zap.String("template", tmpl), zap.Error(err))
		w.metrics.RecordNotification(tmpl, NotificationFailed)
		return nil
	}

	msg := mailer.Message{
		To:          mail.Address{Name: job.RecipientName, Address: job.Recipient},
		Subject:     job.Subject,
		TextContent: job.Subject,
		HTMLContent: html,
	}
	if err := w.mailer.Send(ctx, msg); err != nil {
		w.metrics.RecordNotification(tmpl, NotificationFailed)
		if errors.Is(err, mailer.ErrNoRecipient) {
			w.logger.Warn("notification has no recipient", zap.String("job_id", job.ID), zap.String("template", tmpl))
			return nil
		}
		w.logger.Warn("notification send failed", zap.String("job_id", job.ID), zap.String("template", tmpl), zap.Error(err))
		return err
	}

	w.metrics.RecordNotification(tmpl, NotificationSent)
	w.logger.Debug("notification sent", zap.String("job_id", job.ID), zap.String("template", tmpl))
	return nil
}

func (w *NotificationWorker) render(job models.NotificationJob) (string, error) {
	if w.templates.Lookup(string(job.Template)) == nil {
		return "", fmt.Errorf("unknown notification template %q", job.Template)
	}
	var buf bytes.Buffer
	data := struct {
		RecipientName string
		Data          map[string]string
	}{RecipientName: job.RecipientName, Data: job.Data}
	if err := w.templates.ExecuteTemplate(&buf, string(job.Template), data); err != nil {
		return "", fmt.Errorf("render %s: %w", job.Template, err)
	}
	return buf.String(), nil
}
