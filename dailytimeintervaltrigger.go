package quartz

import (
	"time"
)

// IntervalUnit is the repeat-interval granularity for a daily-time-
// interval trigger.
type IntervalUnit int

const (
	IntervalSecond IntervalUnit = iota
	IntervalMinute
	IntervalHour
)

func (u IntervalUnit) duration() time.Duration {
	switch u {
	case IntervalMinute:
		return time.Minute
	case IntervalHour:
		return time.Hour
	default:
		return time.Second
	}
}

// Daily-time-interval-specific misfire instructions;
// the family otherwise shares FIRE_NOW/DO_NOTHING semantics with cron.
const (
	MISFIRE_INSTRUCTION_DAILY_TIME_INTERVAL_FIRE_ONCE_NOW = iota + 1
	MISFIRE_INSTRUCTION_DAILY_TIME_INTERVAL_DO_NOTHING
)

type dailyTimeIntervalTrigger struct {
	abstractTrigger

	startTime        time.Time
	endTime          time.Time
	nextFireTime     time.Time
	previousFireTime time.Time

	repeatInterval time.Duration
	intervalUnit   IntervalUnit
	repeatCount    int
	timesTriggered int

	daysOfWeek     [7]bool
	startTimeOfDay timeOfDay
	endTimeOfDay   timeOfDay
}

func (t *dailyTimeIntervalTrigger) StartTime() time.Time { return t.startTime }

func (t *dailyTimeIntervalTrigger) SetStartTime(startTime time.Time) error {
	if startTime.IsZero() {
		return errInvalidTriggerf("start time cannot be zero")
	}

	t.startTime = startTime

	return nil
}

func (t *dailyTimeIntervalTrigger) EndTime() time.Time { return t.endTime }

func (t *dailyTimeIntervalTrigger) SetEndTime(endTime time.Time) error {
	if !t.startTime.IsZero() && !endTime.IsZero() && t.startTime.After(endTime) {
		return errInvalidTriggerf("end time cannot be before start time")
	}

	t.endTime = endTime

	return nil
}

func (t *dailyTimeIntervalTrigger) NextFireTime() time.Time { return t.nextFireTime }

func (t *dailyTimeIntervalTrigger) SetNextFireTime(next time.Time) { t.nextFireTime = next }

func (t *dailyTimeIntervalTrigger) PreviousFireTime() time.Time { return t.previousFireTime }

func (t *dailyTimeIntervalTrigger) SetPreviousFireTime(prev time.Time) { t.previousFireTime = prev }

func (t *dailyTimeIntervalTrigger) dayAllowed(day time.Time) bool {
	return t.daysOfWeek[int(day.Weekday())]
}

func (t *dailyTimeIntervalTrigger) nextAllowedDay(day time.Time) time.Time {
	for i := 0; i < 8; i++ {
		if t.dayAllowed(day) {
			return day
		}

		day = day.AddDate(0, 0, 1)
	}

	return zero
}

// firstSlotAfter returns the first slot of the day's grid
// (startOfDay + k*interval, up to and including endTimeOfDay) that is
// after `after` (at or after it when strict is false), or zero when no
// slot on that day qualifies.
func (t *dailyTimeIntervalTrigger) firstSlotAfter(day, after time.Time, strict bool) time.Time {
	dayStart := t.startTimeOfDay.onDate(day)
	dayEnd := t.endTimeOfDay.onDate(day)

	if dayEnd.Before(dayStart) {
		return zero
	}

	interval := t.repeatInterval
	if interval <= 0 {
		interval = t.intervalUnit.duration()
	}

	candidate := dayStart

	if !after.Before(dayStart) {
		elapsed := after.Sub(dayStart)
		k := int(elapsed / interval)
		candidate = dayStart.Add(time.Duration(k) * interval)

		for (strict && !candidate.After(after)) || (!strict && candidate.Before(after)) {
			candidate = candidate.Add(interval)
		}
	}

	if candidate.After(dayEnd) {
		return zero
	}

	return candidate
}

// FireTimeAfter is the raw (calendar-unaware) daily-time-interval math:
// the next allowed day's time-of-day grid slot strictly after afterTime,
// walking forward day by day when the current day's grid is exhausted.
func (t *dailyTimeIntervalTrigger) FireTimeAfter(afterTime time.Time) time.Time {
	if t.repeatCount != REPEAT_INDEFINITELY && t.timesTriggered > t.repeatCount {
		return zero
	}

	if afterTime.IsZero() || afterTime.Before(t.startTime) {
		day := t.nextAllowedDay(dateOnly(t.startTime))
		if day.IsZero() {
			return zero
		}

		return boundByEnd(t.startTimeOfDay.onDate(day), t.endTime)
	}

	day := dateOnly(afterTime)

	for i := 0; i < 8; i++ {
		allowedDay := t.nextAllowedDay(day)
		if allowedDay.IsZero() {
			return zero
		}

		if slot := t.firstSlotAfter(allowedDay, afterTime, true); !slot.IsZero() {
			return boundByEnd(slot, t.endTime)
		}

		day = allowedDay.AddDate(0, 0, 1)
		afterTime = day.Add(-time.Second) // force "whole day" search on subsequent iterations
	}

	return zero
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func boundByEnd(candidate, endTime time.Time) time.Time {
	if candidate.IsZero() {
		return zero
	}

	if !endTime.IsZero() && candidate.After(endTime) {
		return zero
	}

	return candidate
}

func (t *dailyTimeIntervalTrigger) MayFireAgain() bool { return !t.FireTimeAfter(t.nextFireTime).IsZero() }

func (t *dailyTimeIntervalTrigger) FinalFireTime() time.Time { return zero }

func (t *dailyTimeIntervalTrigger) ComputeFirstFireTime(cal Calendar) time.Time {
	t.nextFireTime = applyCalendar(cal, t.endTime, t.FireTimeAfter, t.FireTimeAfter(zero))

	return t.nextFireTime
}

func (t *dailyTimeIntervalTrigger) Triggered(cal Calendar) {
	t.timesTriggered++
	t.previousFireTime = t.nextFireTime
	t.nextFireTime = applyCalendar(cal, t.endTime, t.FireTimeAfter, t.FireTimeAfter(t.nextFireTime))
}

func (t *dailyTimeIntervalTrigger) UpdateAfterMisfire(cal Calendar) {
	instruction := t.misfireInstruction

	if instruction == MISFIRE_INSTRUCTION_SMART_POLICY {
		instruction = MISFIRE_INSTRUCTION_DAILY_TIME_INTERVAL_DO_NOTHING
	}

	now := time.Now()

	switch instruction {
	case MISFIRE_INSTRUCTION_DAILY_TIME_INTERVAL_FIRE_ONCE_NOW:
		t.nextFireTime = now
	case MISFIRE_INSTRUCTION_DAILY_TIME_INTERVAL_DO_NOTHING:
		t.nextFireTime = applyCalendar(cal, t.endTime, t.FireTimeAfter, t.FireTimeAfter(now))
	}
}

func (t *dailyTimeIntervalTrigger) UpdateWithNewCalendar(cal Calendar, misfireThreshold time.Duration) {
	after := t.previousFireTime

	if floor := time.Now().Add(-misfireThreshold); after.Before(floor) {
		after = floor
	}

	t.nextFireTime = applyCalendar(cal, t.endTime, t.FireTimeAfter, t.FireTimeAfter(after))
}

func (t *dailyTimeIntervalTrigger) Validate() error {
	if t.startTime.IsZero() {
		return errInvalidTriggerf("daily time interval trigger %q has no start time", t.key)
	}

	if t.repeatInterval <= 0 {
		return errInvalidTriggerf("daily time interval trigger %q repeat interval must be > 0", t.key)
	}

	if t.intervalUnit == IntervalSecond && t.repeatInterval > 86400*time.Second {
		return errInvalidTriggerf("daily time interval trigger %q repeat interval in seconds must be <= 86400", t.key)
	}

	if !t.startTimeOfDay.Before(t.endTimeOfDay) {
		return errInvalidTriggerf("daily time interval trigger %q start-of-day must be before end-of-day", t.key)
	}

	return nil
}

func (t *dailyTimeIntervalTrigger) SetMisfireInstruction(instruction int) error {
	if instruction < MISFIRE_INSTRUCTION_SMART_POLICY || instruction > MISFIRE_INSTRUCTION_DAILY_TIME_INTERVAL_DO_NOTHING {
		return errInvalidTriggerf("unrecognized daily time interval trigger misfire instruction %d", instruction)
	}

	t.misfireInstruction = instruction

	return nil
}

func (t *dailyTimeIntervalTrigger) ExecutionComplete(ctx JobExecutionContext, jobErr error) CompletedExecutionInstruction {
	return t.executionComplete(jobErr)
}

func (t *dailyTimeIntervalTrigger) TriggerBuilder() *TriggerBuilder {
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

func (t *dailyTimeIntervalTrigger) ScheduleBuilder() ScheduleBuilder {
	days := t.daysOfWeek

	return &DailyTimeIntervalScheduleBuilder{
		repeatInterval:     t.repeatInterval,
		intervalUnit:       t.intervalUnit,
		repeatCount:        t.repeatCount,
		daysOfWeek:         &days,
		startTimeOfDay:     t.startTimeOfDay,
		endTimeOfDay:       t.endTimeOfDay,
		misfireInstruction: t.misfireInstruction,
	}
}

func (t *dailyTimeIntervalTrigger) Clone() interface{} {
	clone := *t

	if t.dataMap != nil {
		clone.dataMap = t.dataMap.Clone().(JobDataMap)
	}

	return &clone
}

// DailyTimeIntervalScheduleBuilder builds daily-time-interval triggers.
type DailyTimeIntervalScheduleBuilder struct {
	repeatInterval     time.Duration
	intervalUnit       IntervalUnit
	repeatCount        int
	daysOfWeek         *[7]bool
	startTimeOfDay     timeOfDay
	endTimeOfDay       timeOfDay
	misfireInstruction int
}

func NewDailyTimeIntervalScheduleBuilder() *DailyTimeIntervalScheduleBuilder {
	return &DailyTimeIntervalScheduleBuilder{
		endTimeOfDay: NewTimeOfDay(23, 59, 59),
		repeatCount:  REPEAT_INDEFINITELY,
	}
}

func (b *DailyTimeIntervalScheduleBuilder) WithInterval(interval int, unit IntervalUnit) *DailyTimeIntervalScheduleBuilder {
	b.intervalUnit = unit
	b.repeatInterval = time.Duration(interval) * unit.duration()

	return b
}

func (b *DailyTimeIntervalScheduleBuilder) WithIntervalInSeconds(seconds int) *DailyTimeIntervalScheduleBuilder {
	return b.WithInterval(seconds, IntervalSecond)
}

func (b *DailyTimeIntervalScheduleBuilder) WithIntervalInMinutes(minutes int) *DailyTimeIntervalScheduleBuilder {
	return b.WithInterval(minutes, IntervalMinute)
}

func (b *DailyTimeIntervalScheduleBuilder) WithIntervalInHours(hours int) *DailyTimeIntervalScheduleBuilder {
	return b.WithInterval(hours, IntervalHour)
}

func (b *DailyTimeIntervalScheduleBuilder) WithRepeatCount(count int) *DailyTimeIntervalScheduleBuilder {
	b.repeatCount = count

	return b
}

func (b *DailyTimeIntervalScheduleBuilder) OnDaysOfWeek(days ...time.Weekday) *DailyTimeIntervalScheduleBuilder {
	set := [7]bool{}

	for _, d := range days {
		set[int(d)] = true
	}

	b.daysOfWeek = &set

	return b
}

func (b *DailyTimeIntervalScheduleBuilder) OnEveryDay() *DailyTimeIntervalScheduleBuilder {
	set := [7]bool{true, true, true, true, true, true, true}
	b.daysOfWeek = &set

	return b
}

func (b *DailyTimeIntervalScheduleBuilder) StartingDailyAt(start timeOfDay) *DailyTimeIntervalScheduleBuilder {
	b.startTimeOfDay = start

	return b
}

func (b *DailyTimeIntervalScheduleBuilder) EndingDailyAt(end timeOfDay) *DailyTimeIntervalScheduleBuilder {
	b.endTimeOfDay = end

	return b
}

func (b *DailyTimeIntervalScheduleBuilder) WithMisfireHandlingInstructionFireAndProceed() *DailyTimeIntervalScheduleBuilder {
	b.misfireInstruction = MISFIRE_INSTRUCTION_DAILY_TIME_INTERVAL_FIRE_ONCE_NOW

	return b
}

func (b *DailyTimeIntervalScheduleBuilder) WithMisfireHandlingInstructionDoNothing() *DailyTimeIntervalScheduleBuilder {
	b.misfireInstruction = MISFIRE_INSTRUCTION_DAILY_TIME_INTERVAL_DO_NOTHING

	return b
}

func (b *DailyTimeIntervalScheduleBuilder) Build() OperableTrigger {
	t := &dailyTimeIntervalTrigger{
		abstractTrigger: newAbstractTrigger(),
		repeatInterval:  b.repeatInterval,
		intervalUnit:    b.intervalUnit,
		repeatCount:     b.repeatCount,
		endTimeOfDay:    b.endTimeOfDay,
		startTimeOfDay:  b.startTimeOfDay,
	}

	if t.repeatInterval <= 0 {
		t.repeatInterval = unitDefault(t.intervalUnit)
	}

	if b.daysOfWeek != nil {
		t.daysOfWeek = *b.daysOfWeek
	} else {
		t.daysOfWeek = [7]bool{true, true, true, true, true, true, true}
	}

	if t.endTimeOfDay == (timeOfDay{}) {
		t.endTimeOfDay = NewTimeOfDay(23, 59, 59)
	}

	t.misfireInstruction = b.misfireInstruction

	return t
}

func unitDefault(u IntervalUnit) time.Duration { return u.duration() }
