package quartz

import "time"

// TriggerState is the externally-visible state of a stored trigger.
type TriggerState int

const (
	STATE_NONE TriggerState = iota
	STATE_NORMAL
	STATE_PAUSED
	STATE_COMPLETE
	STATE_ERROR
	STATE_BLOCKED
	STATE_PAUSED_BLOCKED
	STATE_WAITING
	STATE_ACQUIRED
)

// TriggerFiredBundle is handed from the store to the scheduler loop for
// each successfully fired trigger.
type TriggerFiredBundle struct {
	JobDetail         JobDetail
	Trigger           OperableTrigger
	Calendar          Calendar
	Recovering        bool
	FireTime          time.Time
	ScheduledFireTime time.Time
	PrevFireTime      time.Time
	NextFireTime      time.Time
}

// TriggerFiredResult is one outcome of JobStore.TriggersFired: either a
// bundle ready for dispatch, or an error explaining why this particular
// trigger could not be fired.
type TriggerFiredResult struct {
	Bundle *TriggerFiredBundle
	Err    error
}

// Signaler is the job store's sole outbound dependency, breaking the store/scheduler cycle per the arena+index
// design note.
type Signaler interface {
	NotifyTriggerListenersMisfired(trigger OperableTrigger)

	NotifySchedulerListenersFinalized(trigger OperableTrigger)

	NotifySchedulerListenersJobDeleted(key JobKey)

	SignalSchedulingChange(candidateNewNextFireTime time.Time)

	NotifySchedulerListenersError(msg string, err error)
}

// JobStore is the interface implemented by the in-memory (and,
// potentially, persistent) job/trigger storage backend.
// All operations are atomic with respect to one another and never
// invoke user code while holding the store's internal lock.
type JobStore interface {
	Initialize(signaler Signaler) error

	SchedulerStarted() error

	SchedulerPaused()

	SchedulerResumed()

	Shutdown()

	StoreJob(job JobDetail, replaceExisting bool) error

	StoreTrigger(trigger OperableTrigger, replaceExisting bool) error

	StoreJobAndTrigger(job JobDetail, trigger OperableTrigger) error

	StoreJobsAndTriggers(jobs map[JobDetail][]OperableTrigger, replace bool) error

	RemoveJob(key JobKey) (bool, error)

	RemoveJobs(keys []JobKey) (bool, error)

	RemoveTrigger(key TriggerKey) (bool, error)

	RemoveTriggers(keys []TriggerKey) (bool, error)

	ReplaceTrigger(key TriggerKey, newTrigger OperableTrigger) error

	RetrieveJob(key JobKey) (JobDetail, error)

	RetrieveTrigger(key TriggerKey) (OperableTrigger, error)

	CheckExistsJob(key JobKey) (bool, error)

	CheckExistsTrigger(key TriggerKey) (bool, error)

	ClearAllSchedulingData() error

	StoreCalendar(name string, cal Calendar, replace, updateTriggers bool) error

	RemoveCalendar(name string) (bool, error)

	RetrieveCalendar(name string) (Calendar, error)

	GetNumberOfJobs() (int, error)

	GetNumberOfTriggers() (int, error)

	GetNumberOfCalendars() (int, error)

	GetJobKeys(matcher GroupMatcher) ([]JobKey, error)

	GetTriggerKeys(matcher GroupMatcher) ([]TriggerKey, error)

	GetJobGroupNames() ([]string, error)

	GetTriggerGroupNames() ([]string, error)

	GetCalendarNames() ([]string, error)

	GetTriggersForJob(key JobKey) ([]OperableTrigger, error)

	GetTriggerState(key TriggerKey) (TriggerState, error)

	PauseTrigger(key TriggerKey) error

	PauseTriggers(matcher GroupMatcher) ([]string, error)

	PauseJob(key JobKey) error

	PauseJobs(matcher GroupMatcher) ([]string, error)

	ResumeTrigger(key TriggerKey) error

	ResumeTriggers(matcher GroupMatcher) ([]string, error)

	ResumeJob(key JobKey) error

	ResumeJobs(matcher GroupMatcher) ([]string, error)

	PauseAll() error

	ResumeAll() error

	GetPausedTriggerGroups() ([]string, error)

	AcquireNextTriggers(noLaterThan time.Time, maxCount int, timeWindow time.Duration) ([]OperableTrigger, error)

	ReleaseAcquiredTrigger(trigger OperableTrigger)

	TriggersFired(triggers []OperableTrigger) ([]*TriggerFiredResult, error)

	TriggeredJobComplete(trigger OperableTrigger, jobDetail JobDetail, instruction CompletedExecutionInstruction) error
}
