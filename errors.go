package quartz

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors, grounded on k3s-io-k3s/pkg/etcd's use
// of github.com/pkg/errors for both plain sentinels (errors.New) and
// context-wrapped failures (errors.Wrap/errors.Wrapf).
var (
	ErrAlreadyExists       = errors.New("quartz: already exists")
	ErrNotFound            = errors.New("quartz: not found")
	ErrCalendarInUse       = errors.New("quartz: calendar in use")
	ErrJobPersistence      = errors.New("quartz: job persistence violation")
	ErrInvalidTrigger      = errors.New("quartz: invalid trigger")
	ErrSchedulerConfig     = errors.New("quartz: invalid scheduler configuration")
	ErrSchedulerUnavailable = errors.New("quartz: scheduler unavailable")
)

func jobAlreadyExistsError(key JobKey) error {
	return errors.Wrapf(ErrAlreadyExists, "unable to store job %q: one already exists with this identification", key)
}

func triggerAlreadyExistsError(key TriggerKey) error {
	return errors.Wrapf(ErrAlreadyExists, "unable to store trigger %q: one already exists with this identification", key)
}

func calendarAlreadyExistsError(name string) error {
	return errors.Wrapf(ErrAlreadyExists, "unable to store calendar %q: one already exists with this identification", name)
}

func jobPersistenceError(key JobKey) error {
	return errors.Wrapf(ErrJobPersistence, "the job %q referenced by the trigger does not exist", key)
}

func jobNotFoundError(key JobKey) error {
	return errors.Wrapf(ErrNotFound, "no job found for key %q", key)
}

func triggerNotFoundError(key TriggerKey) error {
	return errors.Wrapf(ErrNotFound, "no trigger found for key %q", key)
}

func calendarInUseError(name string) error {
	return errors.Wrapf(ErrCalendarInUse, "calendar %q is referenced by one or more triggers", name)
}

func errInvalidTriggerf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidTrigger, format, args...)
}

func errSchedulerConfigf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrSchedulerConfig, format, args...)
}

// JobExecutionError is the error a Job.Execute implementation returns
// to request non-default post-execution handling. A plain error from Execute is treated as a generic
// failure with all three flags false.
type JobExecutionError struct {
	Cause error

	// RefireImmediately requests the scheduler re-fire the job right
	// away (maps to the RE_EXECUTE_JOB completion instruction).
	RefireImmediately bool

	// UnscheduleFiringTrigger requests only the firing trigger be
	// marked complete.
	UnscheduleFiringTrigger bool

	// UnscheduleAllTriggers requests every trigger of the job be
	// marked complete.
	UnscheduleAllTriggers bool
}

func (e *JobExecutionError) Error() string {
	if e.Cause == nil {
		return "quartz: job execution error"
	}

	return fmt.Sprintf("quartz: job execution error: %s", e.Cause)
}

func (e *JobExecutionError) Unwrap() error { return e.Cause }
