package quartz

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDailyTimeIntervalScheduleBuilder(t *testing.T) {
	Convey("Given a business-hours daily time interval trigger", t, func() {
		start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC) // Monday

		trigger := NewTrigger().
			WithIdentity("business-hours").
			StartAt(start).
			WithSchedule(NewDailyTimeIntervalScheduleBuilder().
				OnDaysOfWeek(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday).
				StartingDailyAt(NewTimeOfDay(9, 0, 0)).
				EndingDailyAt(NewTimeOfDay(17, 0, 0)).
				WithIntervalInHours(1)).
			Build()

		Convey("Then it validates", func() {
			So(trigger.Validate(), ShouldBeNil)
		})

		Convey("Then ComputeFirstFireTime lands on the first allowed slot", func() {
			first := trigger.ComputeFirstFireTime(nil)

			So(first, ShouldResemble, time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC))
		})

		Convey("Then repeated Triggered calls walk the daily grid", func() {
			trigger.ComputeFirstFireTime(nil)

			// 09:00 is the first fire; 8 more 1-hour steps reach 17:00,
			// the last slot in the window.
			for i := 0; i < 8; i++ {
				trigger.Triggered(nil)
			}

			So(trigger.NextFireTime(), ShouldResemble, time.Date(2026, 8, 3, 17, 0, 0, 0, time.UTC))

			// One more step exhausts the window and rolls to the next
			// allowed weekday's first slot.
			trigger.Triggered(nil)

			So(trigger.NextFireTime(), ShouldResemble, time.Date(2026, 8, 4, 9, 0, 0, 0, time.UTC))
		})

		Convey("Then it skips weekends", func() {
			friday := time.Date(2026, 8, 7, 16, 0, 0, 0, time.UTC) // Friday
			next := trigger.FireTimeAfter(friday)

			So(next, ShouldResemble, time.Date(2026, 8, 7, 17, 0, 0, 0, time.UTC))

			next2 := trigger.FireTimeAfter(next)

			So(next2, ShouldResemble, time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC))
		})
	})

	Convey("Given a trigger with an invalid time-of-day window", t, func() {
		trigger := NewTrigger().
			WithIdentity("bad-window").
			StartAt(time.Now()).
			WithSchedule(NewDailyTimeIntervalScheduleBuilder().
				StartingDailyAt(NewTimeOfDay(17, 0, 0)).
				EndingDailyAt(NewTimeOfDay(9, 0, 0)).
				WithIntervalInMinutes(30)).
			Build()

		Convey("Then it fails to validate", func() {
			So(trigger.Validate(), ShouldNotBeNil)
		})
	})

	Convey("Given a default-built daily time interval trigger", t, func() {
		trigger := NewDailyTimeIntervalScheduleBuilder().Build()

		Convey("Then it defaults to every day, all day, one-second interval", func() {
			dt := trigger.(*dailyTimeIntervalTrigger)

			So(dt.daysOfWeek, ShouldResemble, [7]bool{true, true, true, true, true, true, true})
			So(dt.endTimeOfDay, ShouldResemble, NewTimeOfDay(23, 59, 59))
			So(dt.repeatInterval, ShouldEqual, time.Second)
		})
	})
}
