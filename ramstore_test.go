package quartz

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type noopJob struct{}

func (noopJob) Execute(JobExecutionContext) error { return nil }

type fakeSignaler struct {
	misfired  []OperableTrigger
	finalized []OperableTrigger
	deleted   []JobKey
	signaled  []time.Time
	errors    []string
}

func (f *fakeSignaler) NotifyTriggerListenersMisfired(trigger OperableTrigger) {
	f.misfired = append(f.misfired, trigger)
}

func (f *fakeSignaler) NotifySchedulerListenersFinalized(trigger OperableTrigger) {
	f.finalized = append(f.finalized, trigger)
}

func (f *fakeSignaler) NotifySchedulerListenersJobDeleted(key JobKey) {
	f.deleted = append(f.deleted, key)
}

func (f *fakeSignaler) SignalSchedulingChange(t time.Time) {
	f.signaled = append(f.signaled, t)
}

func (f *fakeSignaler) NotifySchedulerListenersError(msg string, err error) {
	f.errors = append(f.errors, msg)
}

func newStoreWithJob(t *testing.T, jobName string, durable, concurrentDisallowed bool) (*RAMJobStore, JobDetail) {
	t.Helper()

	store := NewRAMJobStore(5 * time.Second)
	So(store.Initialize(&fakeSignaler{}), ShouldBeNil)

	builder := NewJob(noopJob{}).
		WithIdentity(jobName).
		WithConcurrentExecutionDisallowed(concurrentDisallowed)

	if durable {
		builder = builder.StoreDurably()
	}

	job := builder.Build()

	So(store.StoreJob(job, false), ShouldBeNil)

	return store, job
}

func buildSimpleTrigger(name, jobName string, start time.Time) OperableTrigger {
	return NewTrigger().
		WithIdentity(name).
		ForJob(jobName).
		StartAt(start).
		WithSchedule(NewSimpleScheduleBuilder().WithIntervalInSeconds(1).RepeatForever()).
		Build()
}

func TestRAMJobStoreJobsAndTriggers(t *testing.T) {
	Convey("Given a store with a stored job and trigger", t, func() {
		store, job := newStoreWithJob(t, "job1", false, false)

		trigger := buildSimpleTrigger("trigger1", "job1", time.Now())
		trigger.ComputeFirstFireTime(nil)

		So(store.StoreTrigger(trigger, false), ShouldBeNil)

		Convey("Then it can be retrieved", func() {
			got, err := store.RetrieveJob(job.Key())

			So(err, ShouldBeNil)
			So(got.Key(), ShouldResemble, job.Key())

			gotTrigger, err := store.RetrieveTrigger(trigger.Key())

			So(err, ShouldBeNil)
			So(gotTrigger.Key(), ShouldResemble, trigger.Key())
		})

		Convey("Then storing a trigger for a missing job fails", func() {
			orphan := buildSimpleTrigger("orphan", "no-such-job", time.Now())

			err := store.StoreTrigger(orphan, false)

			So(err, ShouldNotBeNil)
		})

		Convey("Then removing the job cascades to its triggers", func() {
			removed, err := store.RemoveJob(job.Key())

			So(err, ShouldBeNil)
			So(removed, ShouldBeTrue)

			exists, _ := store.CheckExistsTrigger(trigger.Key())
			So(exists, ShouldBeFalse)
		})

		Convey("Then removing a non-durable job's last trigger removes the job", func() {
			store2, job2 := newStoreWithJob(t, "job2", false, false)
			t2 := buildSimpleTrigger("trigger2", "job2", time.Now())

			So(store2.StoreTrigger(t2, false), ShouldBeNil)

			removed, err := store2.RemoveTrigger(t2.Key())

			So(err, ShouldBeNil)
			So(removed, ShouldBeTrue)

			exists, _ := store2.CheckExistsJob(job2.Key())
			So(exists, ShouldBeFalse)
		})
	})
}

func TestRAMJobStoreAcquireAndFire(t *testing.T) {
	Convey("Given a store with one due trigger", t, func() {
		store, _ := newStoreWithJob(t, "job1", false, false)

		trigger := buildSimpleTrigger("trigger1", "job1", time.Now().Add(-time.Minute))
		trigger.ComputeFirstFireTime(nil)

		So(store.StoreTrigger(trigger, false), ShouldBeNil)

		Convey("Then AcquireNextTriggers returns it", func() {
			acquired, err := store.AcquireNextTriggers(time.Now().Add(time.Minute), 10, 0)

			So(err, ShouldBeNil)
			So(acquired, ShouldHaveLength, 1)

			state, _ := store.GetTriggerState(trigger.Key())
			So(state, ShouldEqual, STATE_NORMAL)
		})

		Convey("Then TriggersFired produces a bundle and advances the trigger", func() {
			acquired, err := store.AcquireNextTriggers(time.Now().Add(time.Minute), 10, 0)
			So(err, ShouldBeNil)
			So(acquired, ShouldHaveLength, 1)

			results, err := store.TriggersFired(acquired)

			So(err, ShouldBeNil)
			So(results, ShouldHaveLength, 1)
			So(results[0].Err, ShouldBeNil)
			So(results[0].Bundle, ShouldNotBeNil)
		})

		Convey("Then ReleaseAcquiredTrigger returns it to the ready set", func() {
			acquired, _ := store.AcquireNextTriggers(time.Now().Add(time.Minute), 10, 0)
			So(acquired, ShouldHaveLength, 1)

			store.ReleaseAcquiredTrigger(acquired[0])

			reacquired, err := store.AcquireNextTriggers(time.Now().Add(time.Minute), 10, 0)

			So(err, ShouldBeNil)
			So(reacquired, ShouldHaveLength, 1)
		})
	})

	Convey("Given a job disallowing concurrent execution with two due triggers", t, func() {
		store, _ := newStoreWithJob(t, "job1", false, true)

		t1 := buildSimpleTrigger("trigger1", "job1", time.Now().Add(-time.Minute))
		t1.ComputeFirstFireTime(nil)
		t2 := buildSimpleTrigger("trigger2", "job1", time.Now().Add(-time.Minute))
		t2.ComputeFirstFireTime(nil)

		So(store.StoreTrigger(t1, false), ShouldBeNil)
		So(store.StoreTrigger(t2, false), ShouldBeNil)

		Convey("Then only one trigger is acquired per batch", func() {
			acquired, err := store.AcquireNextTriggers(time.Now().Add(time.Minute), 10, 0)

			So(err, ShouldBeNil)
			So(acquired, ShouldHaveLength, 1)
		})

		Convey("Then firing one blocks the other until completion", func() {
			acquired, _ := store.AcquireNextTriggers(time.Now().Add(time.Minute), 10, 0)
			So(acquired, ShouldHaveLength, 1)

			results, err := store.TriggersFired(acquired)
			So(err, ShouldBeNil)
			So(results, ShouldHaveLength, 1)

			state, _ := store.GetTriggerState(t2.Key())
			So(state, ShouldEqual, STATE_BLOCKED)

			job, _ := store.RetrieveJob(NewJobKey("job1"))

			So(store.TriggeredJobComplete(results[0].Bundle.Trigger, job, NOOP), ShouldBeNil)

			state, _ = store.GetTriggerState(t2.Key())
			So(state, ShouldEqual, STATE_NORMAL)
		})
	})
}

func TestRAMJobStoreTriggeredJobCompleteDeleteTrigger(t *testing.T) {
	Convey("Given a one-shot trigger that has just fired its only occurrence", t, func() {
		store, job := newStoreWithJob(t, "job1", false, false)

		trigger := NewTrigger().
			WithIdentity("trigger1").
			ForJob("job1").
			StartAt(time.Now().Add(-time.Minute)).
			WithSchedule(NewSimpleScheduleBuilder().WithIntervalInSeconds(1).WithRepeatCount(0)).
			Build()
		trigger.ComputeFirstFireTime(nil)

		So(store.StoreTrigger(trigger, false), ShouldBeNil)

		acquired, err := store.AcquireNextTriggers(time.Now().Add(time.Minute), 10, 0)
		So(err, ShouldBeNil)
		So(acquired, ShouldHaveLength, 1)

		results, err := store.TriggersFired(acquired)
		So(err, ShouldBeNil)
		So(results, ShouldHaveLength, 1)
		So(results[0].Bundle.Trigger.NextFireTime().IsZero(), ShouldBeTrue)

		Convey("Then DELETE_TRIGGER removes it via the exhausted-trigger branch", func() {
			So(store.TriggeredJobComplete(results[0].Bundle.Trigger, job, DELETE_TRIGGER), ShouldBeNil)

			exists, _ := store.CheckExistsTrigger(trigger.Key())
			So(exists, ShouldBeFalse)
		})
	})

	Convey("Given a repeating trigger that has a future fire time after firing", t, func() {
		store, job := newStoreWithJob(t, "job1", false, false)
		signaler := &fakeSignaler{}
		So(store.Initialize(signaler), ShouldBeNil)

		trigger := buildSimpleTrigger("trigger1", "job1", time.Now().Add(-time.Minute))
		trigger.ComputeFirstFireTime(nil)

		So(store.StoreTrigger(trigger, false), ShouldBeNil)

		acquired, err := store.AcquireNextTriggers(time.Now().Add(time.Minute), 10, 0)
		So(err, ShouldBeNil)
		So(acquired, ShouldHaveLength, 1)

		results, err := store.TriggersFired(acquired)
		So(err, ShouldBeNil)
		So(results, ShouldHaveLength, 1)
		So(results[0].Bundle.Trigger.NextFireTime().IsZero(), ShouldBeFalse)

		Convey("Then DELETE_TRIGGER removes it unconditionally and signals a scheduling change", func() {
			before := len(signaler.signaled)

			So(store.TriggeredJobComplete(results[0].Bundle.Trigger, job, DELETE_TRIGGER), ShouldBeNil)

			exists, _ := store.CheckExistsTrigger(trigger.Key())
			So(exists, ShouldBeFalse)
			So(len(signaler.signaled), ShouldBeGreaterThan, before)
		})
	})
}

func TestRAMJobStoreTriggeredJobCompleteReExecuteJob(t *testing.T) {
	Convey("Given a trigger whose job requests RE_EXECUTE_JOB after firing", t, func() {
		store, job := newStoreWithJob(t, "job1", false, false)

		trigger := buildSimpleTrigger("trigger1", "job1", time.Now().Add(-time.Minute))
		trigger.ComputeFirstFireTime(nil)

		So(store.StoreTrigger(trigger, false), ShouldBeNil)

		acquired, err := store.AcquireNextTriggers(time.Now().Add(time.Minute), 10, 0)
		So(err, ShouldBeNil)
		So(acquired, ShouldHaveLength, 1)

		results, err := store.TriggersFired(acquired)
		So(err, ShouldBeNil)
		So(results, ShouldHaveLength, 1)

		advancedNextFireTime := results[0].Bundle.Trigger.NextFireTime()

		Convey("Then it is requeued to fire again immediately instead of at its next natural occurrence", func() {
			So(store.TriggeredJobComplete(results[0].Bundle.Trigger, job, RE_EXECUTE_JOB), ShouldBeNil)

			reacquired, err := store.AcquireNextTriggers(time.Now().Add(time.Millisecond), 10, 0)

			So(err, ShouldBeNil)
			So(reacquired, ShouldHaveLength, 1)
			So(reacquired[0].NextFireTime().Before(advancedNextFireTime), ShouldBeTrue)
		})
	})
}

func TestRAMJobStorePauseResume(t *testing.T) {
	Convey("Given a store with a stored trigger", t, func() {
		store, _ := newStoreWithJob(t, "job1", false, false)

		trigger := buildSimpleTrigger("trigger1", "job1", time.Now())
		trigger.ComputeFirstFireTime(nil)

		So(store.StoreTrigger(trigger, false), ShouldBeNil)

		Convey("Then PauseTrigger moves it out of the ready set", func() {
			So(store.PauseTrigger(trigger.Key()), ShouldBeNil)

			state, _ := store.GetTriggerState(trigger.Key())
			So(state, ShouldEqual, STATE_PAUSED)

			acquired, _ := store.AcquireNextTriggers(time.Now().Add(time.Hour), 10, 0)
			So(acquired, ShouldBeEmpty)
		})

		Convey("Then ResumeTrigger restores it", func() {
			So(store.PauseTrigger(trigger.Key()), ShouldBeNil)
			So(store.ResumeTrigger(trigger.Key()), ShouldBeNil)

			state, _ := store.GetTriggerState(trigger.Key())
			So(state, ShouldEqual, STATE_NORMAL)
		})

		Convey("Then PauseAll/ResumeAll covers every group", func() {
			So(store.PauseAll(), ShouldBeNil)

			state, _ := store.GetTriggerState(trigger.Key())
			So(state, ShouldEqual, STATE_PAUSED)

			So(store.ResumeAll(), ShouldBeNil)

			state, _ = store.GetTriggerState(trigger.Key())
			So(state, ShouldEqual, STATE_NORMAL)
		})
	})
}

func TestRAMJobStoreCalendars(t *testing.T) {
	Convey("Given a store", t, func() {
		store, _ := newStoreWithJob(t, "job1", false, false)

		Convey("Then a calendar can be stored and retrieved", func() {
			cal := NewWeeklyCalendar()

			So(store.StoreCalendar("weekly", cal, false, false), ShouldBeNil)

			got, err := store.RetrieveCalendar("weekly")

			So(err, ShouldBeNil)
			So(got, ShouldEqual, cal)
		})

		Convey("Then storing twice without replace fails", func() {
			cal := NewWeeklyCalendar()

			So(store.StoreCalendar("weekly", cal, false, false), ShouldBeNil)

			err := store.StoreCalendar("weekly", cal, false, false)

			So(err, ShouldNotBeNil)
		})

		Convey("Then a calendar in use cannot be removed", func() {
			cal := NewWeeklyCalendar()
			So(store.StoreCalendar("weekly", cal, false, false), ShouldBeNil)

			trigger := buildSimpleTrigger("trigger1", "job1", time.Now())
			trigger.SetCalendarName("weekly")
			trigger.ComputeFirstFireTime(cal)

			So(store.StoreTrigger(trigger, false), ShouldBeNil)

			removed, err := store.RemoveCalendar("weekly")

			So(removed, ShouldBeFalse)
			So(err, ShouldNotBeNil)
		})
	})
}
