package quartz

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// JobListener receives job-execution lifecycle events.
type JobListener interface {
	Name() string

	JobToBeExecuted(ctx JobExecutionContext)

	JobExecutionVetoed(ctx JobExecutionContext)

	JobWasExecuted(ctx JobExecutionContext, jobErr error)
}

// TriggerListener receives trigger lifecycle events and may veto
// execution.
type TriggerListener interface {
	Name() string

	TriggerFired(trigger Trigger, ctx JobExecutionContext)

	VetoJobExecution(trigger Trigger, ctx JobExecutionContext) bool

	TriggerMisfired(trigger Trigger)

	TriggerComplete(trigger Trigger, ctx JobExecutionContext, instruction CompletedExecutionInstruction)
}

// SchedulerListener receives scheduler-wide lifecycle events. Unlike
// job/trigger listeners it is not matcher-filtered: every registered
// scheduler listener observes every event.
type SchedulerListener interface {
	Name() string

	SchedulerStarting()
	SchedulerStarted()
	SchedulerInStandbyMode()
	SchedulerShuttingdown()
	SchedulerShutdown()
	SchedulerError(msg string, err error)

	JobScheduled(trigger Trigger)
	JobUnscheduled(key TriggerKey)
	JobAdded(job JobDetail)
	JobDeleted(key JobKey)

	JobPaused(key JobKey)
	JobResumed(key JobKey)
	JobsPaused(group string)
	JobsResumed(group string)

	TriggerPaused(key TriggerKey)
	TriggerResumed(key TriggerKey)
	TriggersPaused(group string)
	TriggersResumed(group string)

	TriggerFinalized(trigger Trigger)

	SchedulingDataCleared()
}

// BaseSchedulerListener gives implementers an embeddable "abstract
// support" type so a caller only needs to override the hooks it cares
// about.
type BaseSchedulerListener struct {
	ListenerName string
}

func (l *BaseSchedulerListener) Name() string { return l.ListenerName }

func (l *BaseSchedulerListener) SchedulerStarting()                          {}
func (l *BaseSchedulerListener) SchedulerStarted()                           {}
func (l *BaseSchedulerListener) SchedulerInStandbyMode()                     {}
func (l *BaseSchedulerListener) SchedulerShuttingdown()                      {}
func (l *BaseSchedulerListener) SchedulerShutdown()                          {}
func (l *BaseSchedulerListener) SchedulerError(msg string, err error)        {}
func (l *BaseSchedulerListener) JobScheduled(trigger Trigger)                {}
func (l *BaseSchedulerListener) JobUnscheduled(key TriggerKey)               {}
func (l *BaseSchedulerListener) JobAdded(job JobDetail)                      {}
func (l *BaseSchedulerListener) JobDeleted(key JobKey)                       {}
func (l *BaseSchedulerListener) JobPaused(key JobKey)                        {}
func (l *BaseSchedulerListener) JobResumed(key JobKey)                       {}
func (l *BaseSchedulerListener) JobsPaused(group string)                     {}
func (l *BaseSchedulerListener) JobsResumed(group string)                    {}
func (l *BaseSchedulerListener) TriggerPaused(key TriggerKey)                {}
func (l *BaseSchedulerListener) TriggerResumed(key TriggerKey)               {}
func (l *BaseSchedulerListener) TriggersPaused(group string)                 {}
func (l *BaseSchedulerListener) TriggersResumed(group string)                {}
func (l *BaseSchedulerListener) TriggerFinalized(trigger Trigger)            {}
func (l *BaseSchedulerListener) SchedulingDataCleared()                      {}

type jobListenerEntry struct {
	listener JobListener
	matchers []GroupMatcher
}

type triggerListenerEntry struct {
	listener TriggerListener
	matchers []GroupMatcher
}

// ListenerManager registers the three listener kinds and fans events
// out to matching registrations. Matching is always
// against the job or trigger key's group; a registration with no
// matchers matches everything.
type ListenerManager interface {
	AddJobListener(listener JobListener, matchers ...GroupMatcher)
	RemoveJobListener(name string) bool
	GetJobListener(name string) JobListener
	GetJobListeners() []JobListener

	AddTriggerListener(listener TriggerListener, matchers ...GroupMatcher)
	RemoveTriggerListener(name string) bool
	GetTriggerListener(name string) TriggerListener
	GetTriggerListeners() []TriggerListener

	AddSchedulerListener(listener SchedulerListener)
	RemoveSchedulerListener(name string) bool
	GetSchedulerListeners() []SchedulerListener
}

type listenerManager struct {
	lock sync.RWMutex

	jobListeners     map[string]*jobListenerEntry
	triggerListeners map[string]*triggerListenerEntry
	schedListeners   map[string]SchedulerListener
}

func NewListenerManager() ListenerManager {
	return &listenerManager{
		jobListeners:     make(map[string]*jobListenerEntry),
		triggerListeners: make(map[string]*triggerListenerEntry),
		schedListeners:   make(map[string]SchedulerListener),
	}
}

func (m *listenerManager) AddJobListener(listener JobListener, matchers ...GroupMatcher) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.jobListeners[listener.Name()] = &jobListenerEntry{listener: listener, matchers: matchers}
}

func (m *listenerManager) RemoveJobListener(name string) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	_, exists := m.jobListeners[name]

	delete(m.jobListeners, name)

	return exists
}

func (m *listenerManager) GetJobListener(name string) JobListener {
	m.lock.RLock()
	defer m.lock.RUnlock()

	if e, ok := m.jobListeners[name]; ok {
		return e.listener
	}

	return nil
}

func (m *listenerManager) GetJobListeners() []JobListener {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var out []JobListener

	for _, e := range m.jobListeners {
		out = append(out, e.listener)
	}

	return out
}

func (m *listenerManager) AddTriggerListener(listener TriggerListener, matchers ...GroupMatcher) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.triggerListeners[listener.Name()] = &triggerListenerEntry{listener: listener, matchers: matchers}
}

func (m *listenerManager) RemoveTriggerListener(name string) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	_, exists := m.triggerListeners[name]

	delete(m.triggerListeners, name)

	return exists
}

func (m *listenerManager) GetTriggerListener(name string) TriggerListener {
	m.lock.RLock()
	defer m.lock.RUnlock()

	if e, ok := m.triggerListeners[name]; ok {
		return e.listener
	}

	return nil
}

func (m *listenerManager) GetTriggerListeners() []TriggerListener {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var out []TriggerListener

	for _, e := range m.triggerListeners {
		out = append(out, e.listener)
	}

	return out
}

func (m *listenerManager) AddSchedulerListener(listener SchedulerListener) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.schedListeners[listener.Name()] = listener
}

func (m *listenerManager) RemoveSchedulerListener(name string) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	_, exists := m.schedListeners[name]

	delete(m.schedListeners, name)

	return exists
}

func (m *listenerManager) GetSchedulerListeners() []SchedulerListener {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var out []SchedulerListener

	for _, l := range m.schedListeners {
		out = append(out, l)
	}

	return out
}

// matches reports whether group satisfies at least one matcher, or
// "match everything" when no matchers were registered.
func matches(matchers []GroupMatcher, group string) bool {
	if len(matchers) == 0 {
		return true
	}

	for _, m := range matchers {
		if m.Matches(group) {
			return true
		}
	}

	return false
}

// safeguard wraps a listener callback so a panic in user code is
// logged and contained instead of taking down the scheduler thread or
// a worker.
func safeguard(listenerName string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"listener": listenerName,
				"panic":    r,
			}).Error("quartz: listener panicked")
		}
	}()

	fn()
}

func (m *listenerManager) fireJobToBeExecuted(ctx JobExecutionContext) {
	group := ctx.JobDetail().Key().Group()

	for _, e := range m.GetJobListenersFor(group) {
		safeguard(e.Name(), func() { e.JobToBeExecuted(ctx) })
	}
}

func (m *listenerManager) fireJobExecutionVetoed(ctx JobExecutionContext) {
	group := ctx.JobDetail().Key().Group()

	for _, e := range m.GetJobListenersFor(group) {
		safeguard(e.Name(), func() { e.JobExecutionVetoed(ctx) })
	}
}

func (m *listenerManager) fireJobWasExecuted(ctx JobExecutionContext, jobErr error) {
	group := ctx.JobDetail().Key().Group()

	for _, e := range m.GetJobListenersFor(group) {
		safeguard(e.Name(), func() { e.JobWasExecuted(ctx, jobErr) })
	}
}

// GetJobListenersFor returns the job listeners whose matchers accept
// the given job group.
func (m *listenerManager) GetJobListenersFor(group string) []JobListener {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var out []JobListener

	for _, e := range m.jobListeners {
		if matches(e.matchers, group) {
			out = append(out, e.listener)
		}
	}

	return out
}

// triggerListenersFor returns the trigger listeners whose matchers
// accept the given trigger group.
func (m *listenerManager) triggerListenersFor(group string) []*triggerListenerEntry {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var out []*triggerListenerEntry

	for _, e := range m.triggerListeners {
		if matches(e.matchers, group) {
			out = append(out, e)
		}
	}

	return out
}

func (m *listenerManager) fireTriggerFired(trigger Trigger, ctx JobExecutionContext) {
	for _, e := range m.triggerListenersFor(trigger.Key().Group()) {
		safeguard(e.listener.Name(), func() { e.listener.TriggerFired(trigger, ctx) })
	}
}

// fireVetoJobExecution aggregates trigger-listener vetoes: any
// listener returning true vetoes, but every listener is still
// called so it can observe.
func (m *listenerManager) fireVetoJobExecution(trigger Trigger, ctx JobExecutionContext) bool {
	vetoed := false

	for _, e := range m.triggerListenersFor(trigger.Key().Group()) {
		safeguard(e.listener.Name(), func() {
			if e.listener.VetoJobExecution(trigger, ctx) {
				vetoed = true
			}
		})
	}

	return vetoed
}

func (m *listenerManager) fireTriggerMisfired(trigger Trigger) {
	for _, e := range m.triggerListenersFor(trigger.Key().Group()) {
		safeguard(e.listener.Name(), func() { e.listener.TriggerMisfired(trigger) })
	}
}

func (m *listenerManager) fireTriggerComplete(trigger Trigger, ctx JobExecutionContext, instruction CompletedExecutionInstruction) {
	for _, e := range m.triggerListenersFor(trigger.Key().Group()) {
		safeguard(e.listener.Name(), func() { e.listener.TriggerComplete(trigger, ctx, instruction) })
	}
}

func (m *listenerManager) fireSchedulerEvent(fn func(SchedulerListener)) {
	for _, l := range m.GetSchedulerListeners() {
		safeguard(l.Name(), func() { fn(l) })
	}
}
