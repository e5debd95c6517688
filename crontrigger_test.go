package quartz

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCronScheduleBuilder(t *testing.T) {
	Convey("Given a cron schedule with a start time", t, func() {
		start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

		trigger := NewTrigger().
			WithIdentity("cron-trigger").
			StartAt(start).
			WithSchedule(CronSchedule("0 0 12 * * ?").InTimeZone(time.UTC)).
			Build()

		Convey("Then it validates", func() {
			So(trigger.Validate(), ShouldBeNil)
		})

		Convey("Then ComputeFirstFireTime finds the next noon", func() {
			first := trigger.ComputeFirstFireTime(nil)

			So(first, ShouldResemble, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
		})

		Convey("Then Triggered advances to the following noon", func() {
			trigger.ComputeFirstFireTime(nil)
			trigger.Triggered(nil)

			So(trigger.NextFireTime(), ShouldResemble, time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC))
			So(trigger.PreviousFireTime(), ShouldResemble, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
		})

		Convey("Then ScheduleBuilder round-trips the cron expression", func() {
			sb, ok := trigger.ScheduleBuilder().(*CronScheduleBuilder)

			So(ok, ShouldBeTrue)
			So(sb.cronExpressionText, ShouldEqual, "0 0 12 * * ?")
		})
	})

	Convey("Given a cron trigger with no start time", t, func() {
		trigger := NewTrigger().
			WithIdentity("cron-trigger").
			WithSchedule(CronSchedule("0 0 12 * * ?")).
			Build()

		trigger.SetStartTime(time.Time{})

		Convey("Then it fails to validate", func() {
			So(trigger.Validate(), ShouldNotBeNil)
		})
	})

	Convey("Given an invalid cron expression", t, func() {
		trigger := (&cronTrigger{abstractTrigger: newAbstractTrigger()})
		trigger.SetKey(NewTriggerKey("bad"))

		Convey("Then Validate reports the missing expression", func() {
			So(trigger.Validate(), ShouldNotBeNil)
		})
	})

	Convey("Given a cron trigger bounded by an end time", t, func() {
		start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

		trigger := NewTrigger().
			WithIdentity("cron-trigger").
			StartAt(start).
			EndAt(end).
			WithSchedule(CronSchedule("0 0 12 * * ?")).
			Build()

		trigger.ComputeFirstFireTime(nil)

		Convey("Then FinalFireTime is the last fire at or before the end time", func() {
			So(trigger.FinalFireTime(), ShouldResemble, end)
		})

		Convey("Then firing past the end time yields a zero next fire time", func() {
			for i := 0; i < 3; i++ {
				trigger.Triggered(nil)
			}

			So(trigger.NextFireTime().IsZero(), ShouldBeTrue)
			So(trigger.MayFireAgain(), ShouldBeFalse)
		})
	})

	Convey("Given a misfired cron trigger with FireAndProceed", t, func() {
		trigger := NewTrigger().
			WithIdentity("cron-trigger").
			StartAt(time.Now().Add(-time.Hour)).
			WithSchedule(CronSchedule("0 0 0 1 1 ?").WithMisfireHandlingInstructionFireAndProceed()).
			Build()

		trigger.UpdateAfterMisfire(nil)

		Convey("Then it fires immediately", func() {
			So(trigger.NextFireTime().IsZero(), ShouldBeFalse)
			So(trigger.NextFireTime(), ShouldHappenWithin, time.Second, time.Now())
		})
	})
}
