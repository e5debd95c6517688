package quartz

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// schedulerState is the scheduler thread's state machine.
type schedulerState int

const (
	stateNotStarted schedulerState = iota
	stateRunning
	stateStandby
	stateShutdown
)

// Scheduler is the façade external callers use to drive a quartz
// instance.
type Scheduler interface {
	Name() string

	InstanceId() string

	Context() SchedulerContext

	Start() error

	StartDelayed(delay time.Duration) error

	Started() bool

	Standby() error

	InStandbyMode() bool

	Shutdown(waitForJobsToComplete bool) error

	IsShutdown() bool

	MetaData() SchedulerMetaData

	CurrentlyExecutingJobs() ([]JobExecutionContext, error)

	SetJobFactory(factory JobFactory)

	ScheduleJob(jobDetail JobDetail, trigger Trigger) (time.Time, error)

	Schedule(trigger Trigger) (time.Time, error)

	ScheduleJobs(triggersAndJobs map[JobDetail][]Trigger, replace bool) error

	UnscheduleJob(key TriggerKey) (bool, error)

	UnscheduleJobs(keys []TriggerKey) (bool, error)

	RescheduleJob(key TriggerKey, newTrigger Trigger) (time.Time, error)

	AddJob(jobDetail JobDetail, replace bool) error

	DeleteJob(key JobKey) (bool, error)

	DeleteJobs(keys []JobKey) (bool, error)

	TriggerJob(key JobKey, data JobDataMap) error

	PauseJob(key JobKey) error

	PauseJobs(matcher GroupMatcher) ([]string, error)

	PauseTrigger(key TriggerKey) error

	PauseTriggers(matcher GroupMatcher) ([]string, error)

	ResumeJob(key JobKey) error

	ResumeJobs(matcher GroupMatcher) ([]string, error)

	ResumeTrigger(key TriggerKey) error

	ResumeTriggers(matcher GroupMatcher) ([]string, error)

	PauseAll() error

	ResumeAll() error

	GetJobGroupNames() ([]string, error)

	GetTriggerGroupNames() ([]string, error)

	GetPausedTriggerGroups() ([]string, error)

	GetJobKeys(matcher GroupMatcher) ([]JobKey, error)

	GetTriggerKeys(matcher GroupMatcher) ([]TriggerKey, error)

	GetTriggersOfJob(key JobKey) ([]Trigger, error)

	GetJobDetail(key JobKey) (JobDetail, error)

	GetTrigger(key TriggerKey) (Trigger, error)

	GetTriggerState(key TriggerKey) (TriggerState, error)

	CheckJobExists(key JobKey) (bool, error)

	CheckTriggerExists(key TriggerKey) (bool, error)

	Clear() error

	AddCalendar(name string, cal Calendar, replace, updateTriggers bool) error

	DeleteCalendar(name string) (bool, error)

	GetCalendar(name string) (Calendar, error)

	GetCalendarNames() ([]string, error)

	GetListenerManager() ListenerManager
}

type SchedulerContext interface {
	DirtyFlagMap
}

// SchedulerMetaData reports static and runtime facts about a running
// scheduler.
type SchedulerMetaData interface {
	InstanceName() string
	InstanceId() string
	Started() bool
	InStandbyMode() bool
	ShutdownCalled() bool
	NumberOfJobsExecuted() int
	RunningSince() time.Time
}

type schedulerMetaData struct {
	instanceName   string
	instanceId     string
	started        bool
	standby        bool
	shutdown       bool
	jobsExecuted   int
	runningSince   time.Time
}

func (m *schedulerMetaData) InstanceName() string       { return m.instanceName }
func (m *schedulerMetaData) InstanceId() string         { return m.instanceId }
func (m *schedulerMetaData) Started() bool              { return m.started }
func (m *schedulerMetaData) InStandbyMode() bool        { return m.standby }
func (m *schedulerMetaData) ShutdownCalled() bool       { return m.shutdown }
func (m *schedulerMetaData) NumberOfJobsExecuted() int  { return m.jobsExecuted }
func (m *schedulerMetaData) RunningSince() time.Time    { return m.runningSince }

// StdScheduler is the scheduler loop: a single timing
// goroutine that acquires due triggers from the store, computes their
// post-fire state via the trigger algebra, and dispatches fired
// bundles to a bounded worker pool.
type StdScheduler struct {
	lock sync.Mutex

	name       string
	instanceId string

	store      JobStore
	pool       WorkerPool
	listeners  *listenerManager
	jobFactory JobFactory
	context    SchedulerContext

	state        schedulerState
	runningSince time.Time
	jobsExecuted int

	idleWaitTime    time.Duration
	batchMaxCount   int
	batchTimeWindow time.Duration
	misfireThreshold time.Duration

	wake chan time.Time // signalSchedulingChange wakes the sleeping loop

	executing map[string]JobExecutionContext

	stopped chan struct{}
	done    chan struct{}
}

// NewStdScheduler builds a scheduler around the given store and
// config; the store is initialized with
// the scheduler as its Signaler before the scheduler loop starts.
func NewStdScheduler(store JobStore, cfg *Config) *StdScheduler {
	cfg = cfg.withDefaults()

	s := &StdScheduler{
		name:             cfg.InstanceName,
		instanceId:       cfg.resolvedInstanceId(),
		store:            store,
		pool:             NewWorkerPool(cfg.ThreadCount),
		listeners:        NewListenerManager().(*listenerManager),
		jobFactory:       simpleJobFactory{},
		context:          NewDirtyFlagMap().(SchedulerContext),
		idleWaitTime:     cfg.IdleWaitTime,
		batchMaxCount:    cfg.BatchTriggerAcquisitionMaxCount,
		batchTimeWindow:  cfg.BatchTriggerAcquisitionFireAheadTimeWindow,
		misfireThreshold: cfg.MisfireThreshold,
		wake:             make(chan time.Time, 1),
		executing:        make(map[string]JobExecutionContext),
		stopped:          make(chan struct{}),
		done:             make(chan struct{}),
	}

	if err := store.Initialize(s); err != nil {
		logrus.WithError(err).Error("quartz: job store initialization failed")
	}

	return s
}

func (s *StdScheduler) Name() string { return s.name }

func (s *StdScheduler) InstanceId() string { return s.instanceId }

func (s *StdScheduler) Context() SchedulerContext { return s.context }

func (s *StdScheduler) GetListenerManager() ListenerManager { return s.listeners }

func (s *StdScheduler) SetJobFactory(factory JobFactory) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.jobFactory = factory
}

func (s *StdScheduler) Start() error {
	s.lock.Lock()

	if s.state == stateShutdown {
		s.lock.Unlock()

		return ErrSchedulerUnavailable
	}

	starting := s.state == stateNotStarted
	s.state = stateRunning

	if starting {
		s.runningSince = time.Now()
	}

	s.lock.Unlock()

	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.SchedulerStarting() })

	if err := s.store.SchedulerStarted(); err != nil {
		return errors.Wrap(err, "scheduler started hook failed")
	}

	if starting {
		go s.run()
	}

	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.SchedulerStarted() })

	logrus.WithFields(logrus.Fields{"scheduler": s.name}).Info("quartz: scheduler started")

	return nil
}

func (s *StdScheduler) StartDelayed(delay time.Duration) error {
	go func() {
		select {
		case <-time.After(delay):
			_ = s.Start()
		case <-s.stopped:
		}
	}()

	return nil
}

func (s *StdScheduler) Started() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.state == stateRunning || s.state == stateStandby
}

func (s *StdScheduler) Standby() error {
	s.lock.Lock()
	s.state = stateStandby
	s.lock.Unlock()

	s.store.SchedulerPaused()

	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.SchedulerInStandbyMode() })

	return nil
}

func (s *StdScheduler) InStandbyMode() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.state == stateStandby
}

func (s *StdScheduler) Shutdown(waitForJobsToComplete bool) error {
	s.lock.Lock()

	if s.state == stateShutdown {
		s.lock.Unlock()

		return nil
	}

	notStarted := s.state == stateNotStarted
	s.state = stateShutdown
	s.lock.Unlock()

	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.SchedulerShuttingdown() })

	close(s.stopped)

	if !notStarted {
		<-s.done
	}

	s.pool.Shutdown(waitForJobsToComplete)
	s.store.Shutdown()

	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.SchedulerShutdown() })

	logrus.WithFields(logrus.Fields{"scheduler": s.name}).Info("quartz: scheduler shut down")

	return nil
}

func (s *StdScheduler) IsShutdown() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.state == stateShutdown
}

func (s *StdScheduler) MetaData() SchedulerMetaData {
	s.lock.Lock()
	defer s.lock.Unlock()

	return &schedulerMetaData{
		instanceName: s.name,
		instanceId:   s.instanceId,
		started:      s.state == stateRunning || s.state == stateStandby,
		standby:      s.state == stateStandby,
		shutdown:     s.state == stateShutdown,
		jobsExecuted: s.jobsExecuted,
		runningSince: s.runningSince,
	}
}

func (s *StdScheduler) CurrentlyExecutingJobs() ([]JobExecutionContext, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	out := make([]JobExecutionContext, 0, len(s.executing))

	for _, ctx := range s.executing {
		out = append(out, ctx)
	}

	return out, nil
}

func (s *StdScheduler) trackExecuting(id string, ctx JobExecutionContext, executing bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if executing {
		s.executing[id] = ctx
	} else {
		delete(s.executing, id)
		s.jobsExecuted++
	}
}

// --- scheduling façade ---------------------------------------------------

func (s *StdScheduler) ScheduleJob(jobDetail JobDetail, trigger Trigger) (time.Time, error) {
	ot, err := asOperableTrigger(trigger)
	if err != nil {
		return zero, err
	}

	if err := s.prepareTrigger(ot, jobDetail); err != nil {
		return zero, err
	}

	if err := s.store.StoreJobAndTrigger(jobDetail, ot); err != nil {
		return zero, err
	}

	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.JobScheduled(ot) })

	s.signalWake(ot.NextFireTime())

	return ot.NextFireTime(), nil
}

func (s *StdScheduler) Schedule(trigger Trigger) (time.Time, error) {
	ot, err := asOperableTrigger(trigger)
	if err != nil {
		return zero, err
	}

	jobDetail, err := s.store.RetrieveJob(ot.JobKey())
	if err != nil {
		return zero, err
	}

	if jobDetail == nil {
		return zero, jobNotFoundError(ot.JobKey())
	}

	if err := s.prepareTrigger(ot, jobDetail); err != nil {
		return zero, err
	}

	if err := s.store.StoreTrigger(ot, false); err != nil {
		return zero, err
	}

	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.JobScheduled(ot) })

	s.signalWake(ot.NextFireTime())

	return ot.NextFireTime(), nil
}

func (s *StdScheduler) ScheduleJobs(triggersAndJobs map[JobDetail][]Trigger, replace bool) error {
	prepared := make(map[JobDetail][]OperableTrigger, len(triggersAndJobs))

	for job, triggers := range triggersAndJobs {
		var ots []OperableTrigger

		for _, trigger := range triggers {
			ot, err := asOperableTrigger(trigger)
			if err != nil {
				return err
			}

			if err := s.prepareTrigger(ot, job); err != nil {
				return err
			}

			ots = append(ots, ot)
		}

		prepared[job] = ots
	}

	if err := s.store.StoreJobsAndTriggers(prepared, replace); err != nil {
		return err
	}

	s.signalWake(zero)

	return nil
}

// prepareTrigger fills in the job key and computes the first fire
// time, mirroring what the quartz builder's caller otherwise has to
// do by hand.
func (s *StdScheduler) prepareTrigger(trigger OperableTrigger, jobDetail JobDetail) error {
	if trigger.JobKey() == (JobKey{}) {
		trigger.SetJobKey(jobDetail.Key())
	}

	if err := trigger.Validate(); err != nil {
		return err
	}

	var cal Calendar

	if name := trigger.CalendarName(); name != "" {
		c, err := s.store.RetrieveCalendar(name)
		if err != nil {
			return err
		}

		cal = c
	}

	if trigger.ComputeFirstFireTime(cal).IsZero() {
		return errInvalidTriggerf("trigger %q will never fire", trigger.Key())
	}

	return nil
}

func (s *StdScheduler) UnscheduleJob(key TriggerKey) (bool, error) {
	removed, err := s.store.RemoveTrigger(key)
	if err == nil && removed {
		s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.JobUnscheduled(key) })
	}

	return removed, err
}

func (s *StdScheduler) UnscheduleJobs(keys []TriggerKey) (bool, error) {
	return s.store.RemoveTriggers(keys)
}

func (s *StdScheduler) RescheduleJob(key TriggerKey, newTrigger Trigger) (time.Time, error) {
	ot, err := asOperableTrigger(newTrigger)
	if err != nil {
		return zero, err
	}

	jobDetail, err := s.store.RetrieveJob(ot.JobKey())
	if err != nil {
		return zero, err
	}

	if jobDetail != nil {
		if err := s.prepareTrigger(ot, jobDetail); err != nil {
			return zero, err
		}
	}

	if err := s.store.ReplaceTrigger(key, ot); err != nil {
		return zero, err
	}

	s.signalWake(ot.NextFireTime())

	return ot.NextFireTime(), nil
}

func (s *StdScheduler) AddJob(jobDetail JobDetail, replace bool) error {
	if err := s.store.StoreJob(jobDetail, replace); err != nil {
		return err
	}

	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.JobAdded(jobDetail) })

	return nil
}

func (s *StdScheduler) DeleteJob(key JobKey) (bool, error) {
	return s.store.RemoveJob(key)
}

func (s *StdScheduler) DeleteJobs(keys []JobKey) (bool, error) {
	return s.store.RemoveJobs(keys)
}

// TriggerJob fires a job immediately by synthesizing a one-shot
// simple trigger for it.
func (s *StdScheduler) TriggerJob(key JobKey, data JobDataMap) error {
	jobDetail, err := s.store.RetrieveJob(key)
	if err != nil {
		return err
	}

	if jobDetail == nil {
		return jobNotFoundError(key)
	}

	builder := (&TriggerBuilder{}).
		ForJobKey(key).
		StartNow().
		WithSchedule(NewSimpleScheduleBuilder().WithRepeatCount(0))

	if data != nil {
		builder = builder.SetJobDataMap(data)
	}

	trigger := builder.Build()

	if err := s.prepareTrigger(trigger, jobDetail); err != nil {
		return err
	}

	if err := s.store.StoreTrigger(trigger, false); err != nil {
		return err
	}

	s.signalWake(trigger.NextFireTime())

	return nil
}

func (s *StdScheduler) PauseJob(key JobKey) error {
	if err := s.store.PauseJob(key); err != nil {
		return err
	}

	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.JobPaused(key) })

	return nil
}

func (s *StdScheduler) PauseJobs(matcher GroupMatcher) ([]string, error) {
	groups, err := s.store.PauseJobs(matcher)
	if err != nil {
		return nil, err
	}

	for _, group := range groups {
		s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.JobsPaused(group) })
	}

	return groups, nil
}

func (s *StdScheduler) PauseTrigger(key TriggerKey) error {
	if err := s.store.PauseTrigger(key); err != nil {
		return err
	}

	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.TriggerPaused(key) })

	return nil
}

func (s *StdScheduler) PauseTriggers(matcher GroupMatcher) ([]string, error) {
	groups, err := s.store.PauseTriggers(matcher)
	if err != nil {
		return nil, err
	}

	for _, group := range groups {
		s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.TriggersPaused(group) })
	}

	return groups, nil
}

func (s *StdScheduler) ResumeJob(key JobKey) error {
	if err := s.store.ResumeJob(key); err != nil {
		return err
	}

	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.JobResumed(key) })
	s.signalWake(zero)

	return nil
}

func (s *StdScheduler) ResumeJobs(matcher GroupMatcher) ([]string, error) {
	groups, err := s.store.ResumeJobs(matcher)
	if err != nil {
		return nil, err
	}

	for _, group := range groups {
		s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.JobsResumed(group) })
	}

	s.signalWake(zero)

	return groups, nil
}

func (s *StdScheduler) ResumeTrigger(key TriggerKey) error {
	if err := s.store.ResumeTrigger(key); err != nil {
		return err
	}

	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.TriggerResumed(key) })
	s.signalWake(zero)

	return nil
}

func (s *StdScheduler) ResumeTriggers(matcher GroupMatcher) ([]string, error) {
	groups, err := s.store.ResumeTriggers(matcher)
	if err != nil {
		return nil, err
	}

	for _, group := range groups {
		s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.TriggersResumed(group) })
	}

	s.signalWake(zero)

	return groups, nil
}

func (s *StdScheduler) PauseAll() error { return s.store.PauseAll() }

func (s *StdScheduler) ResumeAll() error {
	if err := s.store.ResumeAll(); err != nil {
		return err
	}

	s.signalWake(zero)

	return nil
}

func (s *StdScheduler) GetJobGroupNames() ([]string, error) { return s.store.GetJobGroupNames() }

func (s *StdScheduler) GetTriggerGroupNames() ([]string, error) {
	return s.store.GetTriggerGroupNames()
}

func (s *StdScheduler) GetPausedTriggerGroups() ([]string, error) {
	return s.store.GetPausedTriggerGroups()
}

func (s *StdScheduler) GetJobKeys(matcher GroupMatcher) ([]JobKey, error) {
	return s.store.GetJobKeys(matcher)
}

func (s *StdScheduler) GetTriggerKeys(matcher GroupMatcher) ([]TriggerKey, error) {
	return s.store.GetTriggerKeys(matcher)
}

func (s *StdScheduler) GetTriggersOfJob(key JobKey) ([]Trigger, error) {
	triggers, err := s.store.GetTriggersForJob(key)
	if err != nil {
		return nil, err
	}

	out := make([]Trigger, len(triggers))

	for i, t := range triggers {
		out[i] = t
	}

	return out, nil
}

func (s *StdScheduler) GetJobDetail(key JobKey) (JobDetail, error) { return s.store.RetrieveJob(key) }

func (s *StdScheduler) GetTrigger(key TriggerKey) (Trigger, error) {
	return s.store.RetrieveTrigger(key)
}

func (s *StdScheduler) GetTriggerState(key TriggerKey) (TriggerState, error) {
	return s.store.GetTriggerState(key)
}

func (s *StdScheduler) CheckJobExists(key JobKey) (bool, error) { return s.store.CheckExistsJob(key) }

func (s *StdScheduler) CheckTriggerExists(key TriggerKey) (bool, error) {
	return s.store.CheckExistsTrigger(key)
}

func (s *StdScheduler) Clear() error {
	if err := s.store.ClearAllSchedulingData(); err != nil {
		return err
	}

	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.SchedulingDataCleared() })

	return nil
}

func (s *StdScheduler) AddCalendar(name string, cal Calendar, replace, updateTriggers bool) error {
	if err := s.store.StoreCalendar(name, cal, replace, updateTriggers); err != nil {
		return err
	}

	s.signalWake(zero)

	return nil
}

func (s *StdScheduler) DeleteCalendar(name string) (bool, error) { return s.store.RemoveCalendar(name) }

func (s *StdScheduler) GetCalendar(name string) (Calendar, error) { return s.store.RetrieveCalendar(name) }

func (s *StdScheduler) GetCalendarNames() ([]string, error) { return s.store.GetCalendarNames() }

// --- Signaler implementation ---------------------------------------------

func (s *StdScheduler) NotifyTriggerListenersMisfired(trigger OperableTrigger) {
	s.listeners.fireTriggerMisfired(trigger)
}

func (s *StdScheduler) NotifySchedulerListenersFinalized(trigger OperableTrigger) {
	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.TriggerFinalized(trigger) })
}

func (s *StdScheduler) NotifySchedulerListenersJobDeleted(key JobKey) {
	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.JobDeleted(key) })
}

func (s *StdScheduler) NotifySchedulerListenersError(msg string, err error) {
	logrus.WithError(err).Error("quartz: " + msg)

	s.listeners.fireSchedulerEvent(func(l SchedulerListener) { l.SchedulerError(msg, err) })
}

// SignalSchedulingChange wakes the sleeping scheduler loop early when
// a newly stored or rescheduled trigger is due sooner: if the
// scheduler thread is sleeping until a time later than
// candidateNewNextFireTime, it wakes immediately and restarts its
// acquisition loop.
func (s *StdScheduler) SignalSchedulingChange(candidateNewNextFireTime time.Time) {
	s.signalWake(candidateNewNextFireTime)
}

func (s *StdScheduler) signalWake(t time.Time) {
	select {
	case s.wake <- t:
	default:
		// a pending wake-up already covers this signal; the loop will
		// re-read the ready set regardless of which candidate woke it.
	}
}

// --- the scheduler loop ---------------------------------------------------

func (s *StdScheduler) run() {
	defer close(s.done)

	for {
		s.lock.Lock()
		state := s.state
		s.lock.Unlock()

		if state == stateShutdown {
			return
		}

		if state == stateStandby {
			select {
			case <-s.wake:
			case <-s.stopped:
				return
			}

			continue
		}

		if s.tick() {
			return
		}
	}
}

// tick runs one pass of the acquire/fire/dispatch loop. It returns true when the scheduler has been asked to
// shut down.
func (s *StdScheduler) tick() bool {
	maxCount := s.pool.Available()
	if maxCount <= 0 {
		maxCount = 1
	}

	if s.batchMaxCount > 0 && maxCount > s.batchMaxCount {
		maxCount = s.batchMaxCount
	}

	noLaterThan := time.Now().Add(s.idleWaitTime)

	triggers, err := s.store.AcquireNextTriggers(noLaterThan, maxCount, s.batchTimeWindow)
	if err != nil {
		s.NotifySchedulerListenersError("acquireNextTriggers failed", err)

		return s.sleepUntil(time.Now().Add(s.idleWaitTime)) == sleepShutdown
	}

	if len(triggers) == 0 {
		return s.sleepUntil(time.Now().Add(s.idleWaitTime)) == sleepShutdown
	}

	earliest := triggers[0].NextFireTime()

	for _, t := range triggers[1:] {
		if t.NextFireTime().Before(earliest) {
			earliest = t.NextFireTime()
		}
	}

	switch s.sleepUntil(earliest) {
	case sleepShutdown:
		for _, t := range triggers {
			s.store.ReleaseAcquiredTrigger(t)
		}

		return true
	case sleepEarlyWake:
		// A newer candidate fire time arrived while we slept on this
		// batch. Release it unfired and let the next tick reacquire
		// against the new schedule, rather than firing triggers ahead
		// of their scheduled time.
		for _, t := range triggers {
			s.store.ReleaseAcquiredTrigger(t)
		}

		return false
	}

	results, err := s.store.TriggersFired(triggers)
	if err != nil {
		s.NotifySchedulerListenersError("triggersFired failed", err)

		return false
	}

	for _, result := range results {
		if result.Err != nil {
			s.NotifySchedulerListenersError("trigger fire failed", result.Err)

			continue
		}

		s.dispatch(result.Bundle)
	}

	return false
}

// sleepOutcome reports why sleepUntil returned.
type sleepOutcome int

const (
	// sleepTimeout means the deadline was reached for real: the
	// caller's acquired batch is still the correct one to fire.
	sleepTimeout sleepOutcome = iota
	// sleepEarlyWake means signalWake delivered a candidate earlier
	// than deadline: the caller's acquired batch is stale and must be
	// released, not fired.
	sleepEarlyWake
	// sleepShutdown means the scheduler was asked to stop.
	sleepShutdown
)

// sleepUntil blocks until deadline, or until signalWake delivers a
// candidate time earlier than deadline, or until the scheduler is
// shut down. It reports which of those happened so the caller can
// tell a genuine deadline from a stale batch.
func (s *StdScheduler) sleepUntil(deadline time.Time) sleepOutcome {
	for {
		d := time.Until(deadline)
		if d < 0 {
			d = 0
		}

		timer := time.NewTimer(d)

		select {
		case <-timer.C:
			return sleepTimeout
		case candidate := <-s.wake:
			timer.Stop()

			if candidate.IsZero() || candidate.Before(deadline) {
				return sleepEarlyWake
			}
			// a later or equal candidate doesn't change anything; keep
			// sleeping toward the original deadline.
		case <-s.stopped:
			timer.Stop()

			return sleepShutdown
		}
	}
}

// dispatch instantiates the job for a fired bundle, runs the veto
// check, and submits it to the worker pool.
func (s *StdScheduler) dispatch(bundle *TriggerFiredBundle) {
	job, err := s.jobFactory.NewJob(bundle, s)
	if err != nil {
		s.NotifySchedulerListenersError("job factory failed", err)

		if compErr := s.store.TriggeredJobComplete(bundle.Trigger, bundle.JobDetail, SET_TRIGGER_ERROR); compErr != nil {
			s.NotifySchedulerListenersError("triggeredJobComplete failed", compErr)
		}

		return
	}

	ctx := newJobExecutionContext(s, bundle, job)

	if s.listeners.fireVetoJobExecution(bundle.Trigger, ctx) {
		s.listeners.fireJobExecutionVetoed(ctx)

		if err := s.store.TriggeredJobComplete(bundle.Trigger, bundle.JobDetail, SET_TRIGGER_COMPLETE); err != nil {
			s.NotifySchedulerListenersError("triggeredJobComplete failed", err)
		}

		return
	}

	s.listeners.fireTriggerFired(bundle.Trigger, ctx)
	s.listeners.fireJobToBeExecuted(ctx)

	executionId := bundle.Trigger.FireInstanceId()

	s.trackExecuting(executionId, ctx, true)

	s.pool.Submit(func() {
		defer s.trackExecuting(executionId, ctx, false)

		start := time.Now()
		jobErr := safeExecute(job, ctx)

		if impl, ok := ctx.(*jobExecutionContext); ok {
			impl.setJobRunTime(time.Since(start))
		}

		s.listeners.fireJobWasExecuted(ctx, jobErr)

		instruction := bundle.Trigger.ExecutionComplete(ctx, jobErr)

		s.listeners.fireTriggerComplete(bundle.Trigger, ctx, instruction)

		if err := s.store.TriggeredJobComplete(bundle.Trigger, bundle.JobDetail, instruction); err != nil {
			s.NotifySchedulerListenersError("triggeredJobComplete failed", err)
		}
	})
}

// safeExecute runs a job's Execute method, converting a panic into a
// JobExecutionError so one misbehaving job cannot take down a worker.
func safeExecute(job Job, ctx JobExecutionContext) (jobErr error) {
	defer func() {
		if r := recover(); r != nil {
			jobErr = &JobExecutionError{Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	return job.Execute(ctx)
}

func asOperableTrigger(trigger Trigger) (OperableTrigger, error) {
	ot, ok := trigger.(OperableTrigger)
	if !ok {
		return nil, errInvalidTriggerf("trigger %q does not implement the internal operable trigger contract", trigger.Key())
	}

	return ot, nil
}
