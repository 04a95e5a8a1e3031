package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/workflow"
)

// Sweep names used in logs and metrics.
const (
	SweepExpireRegistrations = "expire_registrations"
	SweepRemindVisits        = "remind_visits"
	SweepCancelOverdueVisits = "cancel_overdue_visits"
)

type registrationExpirer interface {
	ExpirePending(ctx context.Context, now time.Time, reason string, limit int) (int64, error)
}

type visitSweeper interface {
	ClaimDueReminders(ctx context.Context, statuses []models.NurseVisitStatus, from, until time.Time, limit int) ([]models.NurseVisitNotice, error)
	CancelOverdue(ctx context.Context, statuses []models.NurseVisitStatus, cutoff, now time.Time, note string, limit int) ([]models.NurseVisitNotice, error)
}

// SchedulerConfig tunes the periodic sweeps.
type SchedulerConfig struct {
	Interval     time.Duration
	BatchSize    int
	ReminderLead time.Duration
	GracePeriod  time.Duration
}

// SweepReport counts the rows changed by one scheduler pass.
type SweepReport struct {
	Expired   int
	Reminded  int
	Cancelled int
}

// SchedulerService expires stale registrations, reminds parents of upcoming
// nurse visits and cancels visits the parent did not attend.
type SchedulerService struct {
	registrations registrationExpirer
	visits        visitSweeper
	notifier      Notifier
	metrics       *MetricsService
	logger        *zap.Logger
	cfg           SchedulerConfig
	now           func() time.Time
}

// NewSchedulerService constructs SchedulerService.
func NewSchedulerService(registrations registrationExpirer, visits visitSweeper, notifier Notifier, metrics *MetricsService, logger *zap.Logger, cfg SchedulerConfig) *SchedulerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ReminderLead <= 0 {
		cfg.ReminderLead = 10 * time.Minute
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 30 * time.Minute
	}
	return &SchedulerService{registrations: registrations, visits: visits, notifier: notifier, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// Run performs a pass immediately and then once per interval until ctx is
// cancelled. Sweep failures are logged and never stop the loop.
func (s *SchedulerService) Run(ctx context.Context) {
	s.logger.Info("scheduler started", zap.Duration("interval", s.cfg.Interval))
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *SchedulerService) runLogged(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("scheduler pass failed", zap.Error(err))
	}
	if report.Expired+report.Reminded+report.Cancelled > 0 {
		s.logger.Info("scheduler pass finished",
			zap.Int("expired", report.Expired),
			zap.Int("reminded", report.Reminded),
			zap.Int("cancelled", report.Cancelled),
		)
	}
}

// RunOnce runs the three sweeps against the same clock reading. Every sweep
// runs even when an earlier one fails.
func (s *SchedulerService) RunOnce(ctx context.Context) (SweepReport, error) {
	now := s.now().UTC()
	var report SweepReport
	var errs []error

	var err error
	if report.Expired, err = s.ExpireRegistrations(ctx, now); err != nil {
		errs = append(errs, err)
	}
	if report.Reminded, err = s.RemindUpcomingVisits(ctx, now); err != nil {
		errs = append(errs, err)
	}
	if report.Cancelled, err = s.CancelOverdueVisits(ctx, now); err != nil {
		errs = append(errs, err)
	}
	return report, errors.Join(errs...)
}

// ExpireRegistrations moves pending registrations of events whose
// registration window closed before now to EXPIRED.
func (s *SchedulerService) ExpireRegistrations(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	total := 0
	err := s.batches(ctx, func() (int, error) {
		n, err := s.registrations.ExpirePending(ctx, now, workflow.RegistrationExpiredReason, s.cfg.BatchSize)
		return int(n), err
	}, &total)
	s.metrics.ObserveSweep(SweepExpireRegistrations, total, time.Since(start), err)
	if err != nil {
		s.logger.Error("expire registrations failed", zap.Int("expired", total), zap.Error(err))
	}
	return total, err
}

// RemindUpcomingVisits notifies parents of open visits starting within the
// reminder lead time. Each visit is reminded at most once.
func (s *SchedulerService) RemindUpcomingVisits(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	total := 0
	until := now.Add(s.cfg.ReminderLead)
	err := s.batches(ctx, func() (int, error) {
		notices, err := s.visits.ClaimDueReminders(ctx, workflow.VisitOpenStatuses, now, until, s.cfg.BatchSize)
		for i := range notices {
			s.notify(ctx, notices[i], models.TemplateVisitReminder, "Upcoming appointment with the school nurse", "")
		}
		return len(notices), err
	}, &total)
	s.metrics.ObserveSweep(SweepRemindVisits, total, time.Since(start), err)
	if err != nil {
		s.logger.Error("visit reminders failed", zap.Int("reminded", total), zap.Error(err))
	}
	return total, err
}

// CancelOverdueVisits cancels open visits the parent has not arrived for
// within the grace period after the appointment time.
func (s *SchedulerService) CancelOverdueVisits(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	total := 0
	cutoff := now.Add(-s.cfg.GracePeriod)
	err := s.batches(ctx, func() (int, error) {
		notices, err := s.visits.CancelOverdue(ctx, workflow.VisitOpenStatuses, cutoff, now, workflow.VisitAutoCancelNote, s.cfg.BatchSize)
		for i := range notices {
			s.notify(ctx, notices[i], models.TemplateVisitCancelled, "Nurse visit cancelled", workflow.VisitAutoCancelNote)
		}
		return len(notices), err
	}, &total)
	s.metrics.ObserveSweep(SweepCancelOverdueVisits, total, time.Since(start), err)
	if err != nil {
		s.logger.Error("cancel overdue visits failed", zap.Int("cancelled", total), zap.Error(err))
	}
	return total, err
}

// batches calls step until it returns a short batch, an error, or ctx ends.
func (s *SchedulerService) batches(ctx context.Context, step func() (int, error), total *int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := step()
		*total += n
		if err != nil {
			return err
		}
		if n < s.cfg.BatchSize {
			return nil
		}
	}
}

func (s *SchedulerService) notify(ctx context.Context, notice models.NurseVisitNotice, tmpl models.NotificationTemplate, subject, note string) {
	data := map[string]string{
		"StudentName":     notice.StudentName,
		"AppointmentTime": formatNotificationTime(notice.AppointmentTime),
	}
	if note != "" {
		data["Note"] = note
	}
	s.notifier.Enqueue(ctx, models.NotificationJob{
		Template:      tmpl,
		Recipient:     notice.ParentEmail,
		RecipientName: notice.ParentName,
		Subject:       subject,
		Data:          data,
	})
}
