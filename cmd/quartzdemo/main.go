// Command quartzdemo wires up an in-process scheduler and runs it
// against a handful of jobs for a bounded duration, exercising all
// three trigger families.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flier/quartz"
)

type printJob struct {
	label string
}

func (j *printJob) Execute(ctx quartz.JobExecutionContext) error {
	logrus.WithFields(logrus.Fields{
		"job":   j.label,
		"fired": ctx.FireTime().Format(time.RFC3339),
	}).Info("quartzdemo: job fired")

	return nil
}

type flakyJob struct {
	attempts int
}

func (j *flakyJob) Execute(ctx quartz.JobExecutionContext) error {
	j.attempts++

	if j.attempts%3 == 0 {
		return fmt.Errorf("flakyJob: simulated failure on attempt %d", j.attempts)
	}

	logrus.WithField("attempts", j.attempts).Info("quartzdemo: flakyJob succeeded")

	return nil
}

// demoListener logs scheduler lifecycle events; it only overrides the
// hooks this demo cares about and inherits no-op defaults for the rest
// via BaseSchedulerListener.
type demoListener struct {
	quartz.BaseSchedulerListener
}

func (demoListener) SchedulerStarted() {
	logrus.Info("quartzdemo: scheduler started")
}

func (demoListener) JobScheduled(trigger quartz.Trigger) {
	logrus.WithField("trigger", trigger.Key().String()).Info("quartzdemo: trigger scheduled")
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	store := quartz.NewRAMJobStore(5 * time.Second)
	sched := quartz.NewStdScheduler(store, quartz.NewConfig(
		quartz.WithInstanceName("quartzdemo"),
		quartz.WithThreadCount(4),
		quartz.WithIdleWaitTime(2*time.Second),
	))

	sched.GetListenerManager().AddSchedulerListener(&demoListener{
		BaseSchedulerListener: quartz.BaseSchedulerListener{ListenerName: "demo"},
	})

	if err := sched.Start(); err != nil {
		logrus.WithError(err).Fatal("quartzdemo: failed to start scheduler")
	}

	heartbeat := quartz.NewJob(&printJob{label: "heartbeat"}).
		WithIdentity("heartbeat").
		Build()

	heartbeatTrigger := quartz.NewTrigger().
		WithIdentity("heartbeat-trigger").
		StartNow().
		WithSchedule(quartz.NewSimpleScheduleBuilder().
			WithIntervalInSeconds(2).
			RepeatForever()).
		Build()

	if _, err := sched.ScheduleJob(heartbeat, heartbeatTrigger); err != nil {
		logrus.WithError(err).Fatal("quartzdemo: failed to schedule heartbeat")
	}

	everyMinute := quartz.NewJob(&printJob{label: "cron-minute"}).
		WithIdentity("cron-minute").
		Build()

	cronTrigger := quartz.NewTrigger().
		WithIdentity("cron-minute-trigger").
		WithSchedule(quartz.CronSchedule("0 * * * * ?")).
		Build()

	if _, err := sched.ScheduleJob(everyMinute, cronTrigger); err != nil {
		logrus.WithError(err).Fatal("quartzdemo: failed to schedule cron job")
	}

	businessHours := quartz.NewJob(&printJob{label: "business-hours"}).
		WithIdentity("business-hours").
		Build()

	dailyTrigger := quartz.NewTrigger().
		WithIdentity("business-hours-trigger").
		WithSchedule(quartz.NewDailyTimeIntervalScheduleBuilder().
			OnDaysOfWeek(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday).
			StartingDailyAt(quartz.NewTimeOfDay(9, 0, 0)).
			EndingDailyAt(quartz.NewTimeOfDay(17, 0, 0)).
			WithIntervalInMinutes(30)).
		Build()

	if _, err := sched.ScheduleJob(businessHours, dailyTrigger); err != nil {
		logrus.WithError(err).Fatal("quartzdemo: failed to schedule daily job")
	}

	flaky := quartz.NewJob(&flakyJob{}).
		WithIdentity("flaky").
		WithConcurrentExecutionDisallowed(true).
		Build()

	flakyTrigger := quartz.NewTrigger().
		WithIdentity("flaky-trigger").
		StartNow().
		WithSchedule(quartz.NewSimpleScheduleBuilder().
			WithIntervalInSeconds(1).
			RepeatForever()).
		Build()

	if _, err := sched.ScheduleJob(flaky, flakyTrigger); err != nil {
		logrus.WithError(err).Fatal("quartzdemo: failed to schedule flaky job")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logrus.Info("quartzdemo: signal received, shutting down")
	case <-time.After(30 * time.Second):
		logrus.Info("quartzdemo: demo window elapsed, shutting down")
	}

	if err := sched.Shutdown(true); err != nil {
		logrus.WithError(err).Fatal("quartzdemo: shutdown failed")
	}
}
