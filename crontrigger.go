package quartz

import (
	"time"
)

// cronTrigger is the cron-expression trigger family. Misfire handling has exactly two policies beyond
// SMART_POLICY: fire the nearest missed time immediately, or skip to
// the next scheduled time; SMART_POLICY always resolves to the latter,
// matching Quartz's CronTrigger.
const (
	MISFIRE_INSTRUCTION_CRON_FIRE_ONCE_NOW = iota + 1
	MISFIRE_INSTRUCTION_CRON_DO_NOTHING
)

type cronTrigger struct {
	abstractTrigger

	startTime        time.Time
	endTime          time.Time
	nextFireTime     time.Time
	previousFireTime time.Time

	cronExpressionText string
	expr               *cronExpression
	location           *time.Location
}

func (t *cronTrigger) CronExpression() string { return t.cronExpressionText }

func (t *cronTrigger) TimeZone() *time.Location { return t.location }

func (t *cronTrigger) StartTime() time.Time { return t.startTime }

func (t *cronTrigger) SetStartTime(startTime time.Time) error {
	if startTime.IsZero() {
		return errInvalidTriggerf("start time cannot be zero")
	}

	if !t.endTime.IsZero() && t.endTime.Before(startTime) {
		return errInvalidTriggerf("end time cannot be before start time")
	}

	t.startTime = startTime

	return nil
}

func (t *cronTrigger) EndTime() time.Time { return t.endTime }

func (t *cronTrigger) SetEndTime(endTime time.Time) error {
	if !t.startTime.IsZero() && !endTime.IsZero() && t.startTime.After(endTime) {
		return errInvalidTriggerf("end time cannot be before start time")
	}

	t.endTime = endTime

	return nil
}

func (t *cronTrigger) NextFireTime() time.Time { return t.nextFireTime }

func (t *cronTrigger) SetNextFireTime(nextFireTime time.Time) { t.nextFireTime = nextFireTime }

func (t *cronTrigger) PreviousFireTime() time.Time { return t.previousFireTime }

func (t *cronTrigger) SetPreviousFireTime(previousFireTime time.Time) {
	t.previousFireTime = previousFireTime
}

// FireTimeAfter is the raw (calendar-unaware) cron math: the smallest
// scheduled time strictly after afterTime, bounded by start/end time.
func (t *cronTrigger) FireTimeAfter(afterTime time.Time) time.Time {
	if afterTime.IsZero() || afterTime.Before(t.startTime) {
		afterTime = t.startTime.Add(-time.Nanosecond)
	}

	if !t.endTime.IsZero() && !afterTime.Before(t.endTime) {
		return zero
	}

	next := t.expr.getTimeAfter(afterTime, t.location)

	if !next.IsZero() && !t.endTime.IsZero() && next.After(t.endTime) {
		return zero
	}

	return next
}

func (t *cronTrigger) MayFireAgain() bool {
	return !t.nextFireTime.IsZero() && !t.FireTimeAfter(t.nextFireTime).IsZero()
}

func (t *cronTrigger) FinalFireTime() time.Time {
	if t.endTime.IsZero() {
		return zero
	}

	candidate := t.FireTimeAfter(t.endTime.Add(-time.Second))

	for !candidate.IsZero() && !candidate.After(t.endTime) {
		next := t.FireTimeAfter(candidate)
		if next.IsZero() || next.After(t.endTime) {
			return candidate
		}

		candidate = next
	}

	return zero
}

func (t *cronTrigger) ComputeFirstFireTime(cal Calendar) time.Time {
	t.nextFireTime = applyCalendar(cal, t.endTime, t.FireTimeAfter, t.FireTimeAfter(t.startTime.Add(-time.Nanosecond)))

	return t.nextFireTime
}

func (t *cronTrigger) Triggered(cal Calendar) {
	t.previousFireTime = t.nextFireTime
	t.nextFireTime = applyCalendar(cal, t.endTime, t.FireTimeAfter, t.FireTimeAfter(t.nextFireTime))
}

// UpdateAfterMisfire applies the cron family's two misfire policies.
func (t *cronTrigger) UpdateAfterMisfire(cal Calendar) {
	instruction := t.misfireInstruction

	if instruction == MISFIRE_INSTRUCTION_SMART_POLICY {
		instruction = MISFIRE_INSTRUCTION_CRON_DO_NOTHING
	}

	now := time.Now()

	switch instruction {
	case MISFIRE_INSTRUCTION_CRON_FIRE_ONCE_NOW:
		t.nextFireTime = now
	case MISFIRE_INSTRUCTION_CRON_DO_NOTHING:
		t.nextFireTime = applyCalendar(cal, t.endTime, t.FireTimeAfter, t.FireTimeAfter(now))
	}
}

func (t *cronTrigger) UpdateWithNewCalendar(cal Calendar, misfireThreshold time.Duration) {
	after := t.previousFireTime

	if floor := time.Now().Add(-misfireThreshold); after.Before(floor) {
		after = floor
	}

	t.nextFireTime = applyCalendar(cal, t.endTime, t.FireTimeAfter, t.FireTimeAfter(after))
}

func (t *cronTrigger) Validate() error {
	if t.expr == nil {
		return errInvalidTriggerf("cron trigger %q has no cron expression", t.key)
	}

	if t.startTime.IsZero() {
		return errInvalidTriggerf("cron trigger %q has no start time", t.key)
	}

	return nil
}

func (t *cronTrigger) SetMisfireInstruction(instruction int) error {
	if instruction < MISFIRE_INSTRUCTION_SMART_POLICY || instruction > MISFIRE_INSTRUCTION_CRON_DO_NOTHING {
		return errInvalidTriggerf("unrecognized cron trigger misfire instruction %d", instruction)
	}

	t.misfireInstruction = instruction

	return nil
}

func (t *cronTrigger) ExecutionComplete(ctx JobExecutionContext, jobErr error) CompletedExecutionInstruction {
	return t.executionComplete(jobErr)
}

func (t *cronTrigger) TriggerBuilder() *TriggerBuilder {
	return &TriggerBuilder{
		Key:             t.Key(),
		Description:     t.desc,
		StartTime:       t.startTime,
		EndTime:         t.endTime,
		Priority:        t.priority,
		JobKey:          t.JobKey(),
		DataMap:         t.dataMap,
		CalendarName:    t.calendarName,
		ScheduleBuilder: t.ScheduleBuilder(),
	}
}

func (t *cronTrigger) ScheduleBuilder() ScheduleBuilder {
	return &CronScheduleBuilder{
		cronExpressionText: t.cronExpressionText,
		location:           t.location,
		misfireInstruction: t.misfireInstruction,
	}
}

func (t *cronTrigger) Clone() interface{} {
	clone := *t

	if t.dataMap != nil {
		clone.dataMap = t.dataMap.Clone().(JobDataMap)
	}

	return &clone
}

// CronScheduleBuilder builds cron triggers.
type CronScheduleBuilder struct {
	cronExpressionText string
	location           *time.Location
	misfireInstruction int
}

func CronSchedule(cronExpression string) *CronScheduleBuilder {
	return &CronScheduleBuilder{cronExpressionText: cronExpression}
}

func (b *CronScheduleBuilder) InTimeZone(loc *time.Location) *CronScheduleBuilder {
	b.location = loc

	return b
}

func (b *CronScheduleBuilder) WithMisfireHandlingInstructionFireAndProceed() *CronScheduleBuilder {
	b.misfireInstruction = MISFIRE_INSTRUCTION_CRON_FIRE_ONCE_NOW

	return b
}

func (b *CronScheduleBuilder) WithMisfireHandlingInstructionDoNothing() *CronScheduleBuilder {
	b.misfireInstruction = MISFIRE_INSTRUCTION_CRON_DO_NOTHING

	return b
}

func (b *CronScheduleBuilder) Build() OperableTrigger {
	loc := b.location
	if loc == nil {
		loc = time.Local
	}

	t := &cronTrigger{
		abstractTrigger:    newAbstractTrigger(),
		cronExpressionText: b.cronExpressionText,
		location:           loc,
	}

	if expr, err := parseCronExpression(b.cronExpressionText); err == nil {
		t.expr = expr
	}

	t.misfireInstruction = b.misfireInstruction

	return t
}
