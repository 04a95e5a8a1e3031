package service

import (
	"database/sql"
	"errors"
	"time"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/workflow"
	appErrors "github.com/noah-isme/sma-health-api/pkg/errors"
)

// MaxPageSize caps the pageSize accepted by search operations.
const MaxPageSize = 100

// notificationTimeLayout formats timestamps in notification bodies.
const notificationTimeLayout = "Mon, 02 Jan 2006 15:04 MST"

// errEventClosed rejects work against a completed or cancelled campaign event.
var errEventClosed = appErrors.Clone(appErrors.ErrInvalidState, "campaign event is no longer ongoing")

func validatePage(p models.PageRequest) error {
	var details []string
	if p.PageNum < 1 {
		details = append(details, "pageNum must be at least 1")
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		details = append(details, "pageSize must be between 1 and 100")
	}
	if len(details) == 0 {
		return nil
	}
	err := appErrors.Clone(appErrors.ErrValidation, "invalid pagination")
	err.Details = details
	return err
}

// lookupError maps a repository read failure to NOT_FOUND or INTERNAL_ERROR.
func lookupError(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return appErrors.Internal(err, "failed to load "+what)
}

// transitionError maps a workflow rejection to its API error.
func transitionError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrDecided):
		return appErrors.Clone(appErrors.ErrInvalidState, "status has already been decided")
	case errors.Is(err, workflow.ErrUndefinedTransition):
		return appErrors.ErrInvalidTransition
	case errors.Is(err, workflow.ErrReasonRequired):
		return appErrors.Clone(appErrors.ErrValidation, "a reason is required for this status")
	case errors.Is(err, workflow.ErrArrivalRequired):
		return appErrors.Clone(appErrors.ErrValidation, "parent arrival has not been recorded")
	default:
		return appErrors.Internal(err, "failed to apply status change")
	}
}

func formatNotificationTime(t time.Time) string {
	return t.UTC().Format(notificationTimeLayout)
}
