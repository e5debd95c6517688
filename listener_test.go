package quartz

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type recordingJobListener struct {
	name      string
	executed  int
	vetoed    int
	completed int
}

func (l *recordingJobListener) Name() string                       { return l.name }
func (l *recordingJobListener) JobToBeExecuted(JobExecutionContext) { l.executed++ }
func (l *recordingJobListener) JobExecutionVetoed(JobExecutionContext) { l.vetoed++ }
func (l *recordingJobListener) JobWasExecuted(JobExecutionContext, error) { l.completed++ }

type recordingTriggerListener struct {
	name   string
	veto   bool
	fired  int
	vetoes int
}

func (l *recordingTriggerListener) Name() string { return l.name }
func (l *recordingTriggerListener) TriggerFired(Trigger, JobExecutionContext) { l.fired++ }
func (l *recordingTriggerListener) VetoJobExecution(Trigger, JobExecutionContext) bool {
	if l.veto {
		l.vetoes++
	}

	return l.veto
}
func (l *recordingTriggerListener) TriggerMisfired(Trigger) {}
func (l *recordingTriggerListener) TriggerComplete(Trigger, JobExecutionContext, CompletedExecutionInstruction) {
}

type panickyTriggerListener struct{ recordingTriggerListener }

func (l *panickyTriggerListener) VetoJobExecution(Trigger, JobExecutionContext) bool {
	panic("boom")
}

func (l *panickyTriggerListener) TriggerFired(Trigger, JobExecutionContext) { panic("boom") }

func sampleTrigger(group string) Trigger {
	return NewTrigger().
		WithGroupIdentity("t1", group).
		ForJob("j1").
		StartNow().
		WithSchedule(NewSimpleScheduleBuilder()).
		Build()
}

func TestListenerManagerJobListeners(t *testing.T) {
	Convey("Given a manager with a job listener matched to one group", t, func() {
		m := NewListenerManager()
		listener := &recordingJobListener{name: "l1"}

		m.AddJobListener(listener, GroupEquals("reports"))

		Convey("Then it fires for a matching group", func() {
			m.(*listenerManager).fireJobToBeExecuted(fakeJobContext("reports"))

			So(listener.executed, ShouldEqual, 1)
		})

		Convey("Then it does not fire for a non-matching group", func() {
			m.(*listenerManager).fireJobToBeExecuted(fakeJobContext("billing"))

			So(listener.executed, ShouldEqual, 0)
		})

		Convey("Then it can be looked up and removed", func() {
			So(m.GetJobListener("l1"), ShouldEqual, listener)
			So(m.RemoveJobListener("l1"), ShouldBeTrue)
			So(m.GetJobListener("l1"), ShouldBeNil)
		})
	})

	Convey("Given a job listener with no matchers", t, func() {
		m := NewListenerManager()
		listener := &recordingJobListener{name: "l1"}

		m.AddJobListener(listener)

		Convey("Then it fires for every group", func() {
			m.(*listenerManager).fireJobToBeExecuted(fakeJobContext("anything"))

			So(listener.executed, ShouldEqual, 1)
		})
	})
}

func TestListenerManagerTriggerVeto(t *testing.T) {
	Convey("Given one vetoing and one non-vetoing trigger listener", t, func() {
		m := NewListenerManager().(*listenerManager)

		vetoer := &recordingTriggerListener{name: "vetoer", veto: true}
		observer := &recordingTriggerListener{name: "observer"}

		m.AddTriggerListener(vetoer)
		m.AddTriggerListener(observer)

		trigger := sampleTrigger(DEFAULT_GROUP)

		Convey("Then fireVetoJobExecution reports true and still calls every listener", func() {
			vetoed := m.fireVetoJobExecution(trigger, nil)

			So(vetoed, ShouldBeTrue)
			So(vetoer.vetoes, ShouldEqual, 1)
			So(observer.vetoes, ShouldEqual, 0)
		})
	})

	Convey("Given a trigger listener that panics", t, func() {
		m := NewListenerManager().(*listenerManager)

		panicky := &panickyTriggerListener{recordingTriggerListener{name: "panicky"}}
		observer := &recordingTriggerListener{name: "observer"}

		m.AddTriggerListener(panicky)
		m.AddTriggerListener(observer)

		trigger := sampleTrigger(DEFAULT_GROUP)

		Convey("Then the panic is contained and other listeners still fire", func() {
			So(func() { m.fireTriggerFired(trigger, nil) }, ShouldNotPanic)
			So(observer.fired, ShouldEqual, 1)
		})
	})
}

func TestListenerManagerSchedulerListeners(t *testing.T) {
	Convey("Given a scheduler listener registered via the base type", t, func() {
		m := NewListenerManager().(*listenerManager)

		listener := &countingSchedulerListener{BaseSchedulerListener: BaseSchedulerListener{ListenerName: "s1"}}

		m.AddSchedulerListener(listener)

		Convey("Then fireSchedulerEvent invokes the overridden hook", func() {
			m.fireSchedulerEvent(func(l SchedulerListener) { l.SchedulerStarted() })

			So(listener.started, ShouldEqual, 1)
		})

		Convey("Then it can be removed", func() {
			So(m.RemoveSchedulerListener("s1"), ShouldBeTrue)
			So(m.GetSchedulerListeners(), ShouldBeEmpty)
		})
	})
}

type countingSchedulerListener struct {
	BaseSchedulerListener
	started int
}

func (l *countingSchedulerListener) SchedulerStarted() { l.started++ }

// fakeJobContext builds the minimal JobExecutionContext needed to drive
// job-listener fan-out in tests.
func fakeJobContext(group string) JobExecutionContext {
	job := NewJob(noopJob{}).WithGroupIdentity("j1", group).Build()
	trigger := NewTrigger().WithGroupIdentity("t1", group).ForJobKey(job.Key()).StartNow().
		WithSchedule(NewSimpleScheduleBuilder()).Build()

	bundle := &TriggerFiredBundle{
		JobDetail: job,
		Trigger:   trigger,
		FireTime:  time.Now(),
	}

	return newJobExecutionContext(nil, bundle, noopJob{})
}
