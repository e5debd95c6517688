package quartz

import (
	stderrors "errors"
	"time"
)

var (
	zero time.Time
)

const (
	REPEAT_INDEFINITELY = -1
)

// MisfireInstruction codes shared by every trigger family; each family
// additionally defines its own numbered instructions starting at 1.
const (
	MISFIRE_INSTRUCTION_SMART_POLICY    = 0
	MISFIRE_INSTRUCTION_IGNORE_MISFIRE_POLICY = -1
)

// CompletedExecutionInstruction is the disposition a trigger requests
// for itself after its job finishes executing.
type CompletedExecutionInstruction int

const (
	NOOP CompletedExecutionInstruction = iota
	RE_EXECUTE_JOB
	SET_TRIGGER_COMPLETE
	SET_TRIGGER_ERROR
	SET_ALL_JOB_TRIGGERS_COMPLETE
	SET_ALL_JOB_TRIGGERS_ERROR
	DELETE_TRIGGER
)

// The base interface with properties common to all Triggers -
// use TriggerBuilder to instantiate an actual Trigger.
type Trigger interface {
	Key() TriggerKey

	JobKey() JobKey

	Description() string

	JobDataMap() JobDataMap

	Priority() int

	CalendarName() string

	MayFireAgain() bool

	StartTime() time.Time

	EndTime() time.Time

	NextFireTime() time.Time

	PreviousFireTime() time.Time

	FireTimeAfter(afterTime time.Time) time.Time

	FinalFireTime() time.Time

	TriggerBuilder() *TriggerBuilder

	ScheduleBuilder() ScheduleBuilder
}

// ScheduleBuilder is implemented by each trigger family's schedule
// builder (SimpleScheduleBuilder, CronScheduleBuilder,
// DailyTimeIntervalScheduleBuilder); TriggerBuilder.Build() calls it to
// obtain a fresh, family-specific OperableTrigger.
type ScheduleBuilder interface {
	Build() OperableTrigger
}

type MutableTrigger interface {
	Trigger

	SetKey(key TriggerKey)

	SetJobKey(key JobKey)

	SetDescription(desc string)

	SetPriority(priority int)

	SetCalendarName(name string)

	SetStartTime(startTime time.Time) error

	SetEndTime(endTime time.Time) error

	SetJobDataMap(dataMap JobDataMap)
}

// OperableTrigger is the internal interface the job store and scheduler
// use to drive a trigger through its lifecycle; user code only ever
// sees the narrower Trigger/MutableTrigger views.
type OperableTrigger interface {
	Cloneable
	MutableTrigger

	SetNextFireTime(nextFireTime time.Time)

	SetPreviousFireTime(previousFireTime time.Time)

	FireInstanceId() string

	SetFireInstanceId(id string)

	MisfireInstruction() int

	SetMisfireInstruction(instruction int) error

	// ComputeFirstFireTime sets and returns the first fire time, taking
	// the given calendar (which may be nil) into account.
	ComputeFirstFireTime(cal Calendar) time.Time

	// Triggered advances next/previous fire time after this trigger has
	// fired, honoring the calendar.
	Triggered(cal Calendar)

	// UpdateAfterMisfire applies this trigger's misfire instruction.
	UpdateAfterMisfire(cal Calendar)

	// UpdateWithNewCalendar recomputes next fire time against a newly
	// (re)assigned calendar.
	UpdateWithNewCalendar(cal Calendar, misfireThreshold time.Duration)

	// Validate checks the trigger's configuration is internally
	// consistent, returning an *ErrInvalidTrigger-wrapped error if not.
	Validate() error

	// ExecutionComplete computes the disposition this trigger requests
	// after its job has executed.
	ExecutionComplete(ctx JobExecutionContext, jobErr error) CompletedExecutionInstruction
}

type abstractTrigger struct {
	key                 TriggerKey
	jobKey              JobKey
	desc                string
	dataMap             JobDataMap
	priority            int
	calendarName        string
	fireInstanceId      string
	misfireInstruction  int
}

func newAbstractTrigger() abstractTrigger {
	return abstractTrigger{priority: 5}
}

func (t *abstractTrigger) Key() TriggerKey { return t.key }

func (t *abstractTrigger) SetKey(key TriggerKey) { t.key = key }

func (t *abstractTrigger) JobKey() JobKey { return t.jobKey }

func (t *abstractTrigger) SetJobKey(key JobKey) { t.jobKey = key }

func (t *abstractTrigger) Description() string { return t.desc }

func (t *abstractTrigger) SetDescription(desc string) { t.desc = desc }

func (t *abstractTrigger) JobDataMap() JobDataMap {
	if t.dataMap == nil {
		t.dataMap = NewJobDataMap()
	}

	return t.dataMap
}

func (t *abstractTrigger) SetJobDataMap(dataMap JobDataMap) { t.dataMap = dataMap }

func (t *abstractTrigger) Priority() int { return t.priority }

func (t *abstractTrigger) SetPriority(priority int) { t.priority = priority }

func (t *abstractTrigger) CalendarName() string { return t.calendarName }

func (t *abstractTrigger) SetCalendarName(name string) { t.calendarName = name }

func (t *abstractTrigger) FireInstanceId() string { return t.fireInstanceId }

func (t *abstractTrigger) SetFireInstanceId(id string) { t.fireInstanceId = id }

func (t *abstractTrigger) MisfireInstruction() int { return t.misfireInstruction }

// executionComplete is the default post-execution disposition shared by
// every trigger family: a plain error just gets logged by the scheduler
// and the trigger continues as normal (NOOP); a *JobExecutionError's
// flags select the stronger instructions.
func (t *abstractTrigger) executionComplete(jobErr error) CompletedExecutionInstruction {
	var jee *JobExecutionError

	if jobErr != nil && stderrors.As(jobErr, &jee) {
		switch {
		case jee.UnscheduleAllTriggers:
			return SET_ALL_JOB_TRIGGERS_COMPLETE
		case jee.UnscheduleFiringTrigger:
			return SET_TRIGGER_COMPLETE
		case jee.RefireImmediately:
			return RE_EXECUTE_JOB
		}
	}

	return NOOP
}

// applyCalendar advances a raw (calendar-unaware) candidate fire time
// while the calendar excludes it, bounded by endTime. rawNext computes
// the family's next fire time after a given instant, ignoring the
// calendar entirely. This is the uniform calendar-application rule
// shared by all three trigger families.
func applyCalendar(cal Calendar, endTime time.Time, rawNext func(after time.Time) time.Time, candidate time.Time) time.Time {
	next := candidate

	for !next.IsZero() && cal != nil && !cal.IsTimeIncluded(next) {
		next = rawNext(next)

		if next.IsZero() {
			return zero
		}

		if !endTime.IsZero() && next.After(endTime) {
			return zero
		}
	}

	return next
}

type simpleTrigger struct {
	abstractTrigger

	startTime        time.Time
	endTime          time.Time
	nextFireTime     time.Time
	previousFireTime time.Time
	repeatInterval   time.Duration
	repeatCount      int
	timesTriggered   int
	complete         bool
}

// Simple-interval-specific misfire instructions.
const (
	MISFIRE_INSTRUCTION_FIRE_NOW = iota + 1
	MISFIRE_INSTRUCTION_RESCHEDULE_NOW_WITH_EXISTING_REPEAT_COUNT
	MISFIRE_INSTRUCTION_RESCHEDULE_NOW_WITH_REMAINING_REPEAT_COUNT
	MISFIRE_INSTRUCTION_RESCHEDULE_NEXT_WITH_REMAINING_COUNT
	MISFIRE_INSTRUCTION_RESCHEDULE_NEXT_WITH_EXISTING_COUNT
)

func (t *simpleTrigger) StartTime() time.Time { return t.startTime }

func (t *simpleTrigger) SetStartTime(startTime time.Time) error {
	if startTime.IsZero() {
		return errInvalidTriggerf("start time cannot be zero")
	}

	if !t.endTime.IsZero() && t.endTime.Before(startTime) {
		return errInvalidTriggerf("end time cannot be before start time")
	}

	t.startTime = startTime

	return nil
}

func (t *simpleTrigger) EndTime() time.Time { return t.endTime }

func (t *simpleTrigger) SetEndTime(endTime time.Time) error {
	if !t.startTime.IsZero() && !endTime.IsZero() && t.startTime.After(endTime) {
		return errInvalidTriggerf("end time cannot be before start time")
	}

	t.endTime = endTime

	return nil
}

func (t *simpleTrigger) NextFireTime() time.Time { return t.nextFireTime }

func (t *simpleTrigger) SetNextFireTime(nextFireTime time.Time) { t.nextFireTime = nextFireTime }

func (t *simpleTrigger) PreviousFireTime() time.Time { return t.previousFireTime }

func (t *simpleTrigger) SetPreviousFireTime(previousFireTime time.Time) {
	t.previousFireTime = previousFireTime
}

// FireTimeAfter is the raw (calendar-unaware) simple-interval math:
// fire times are start + k*interval for k = 0..repeatCount (or
// unbounded when repeatCount is REPEAT_INDEFINITELY).
func (t *simpleTrigger) FireTimeAfter(afterTime time.Time) time.Time {
	if t.complete {
		return zero
	}

	if t.repeatCount != REPEAT_INDEFINITELY && t.timesTriggered > t.repeatCount {
		return zero
	}

	if afterTime.IsZero() {
		afterTime = time.Now()
	}

	if !t.endTime.IsZero() && t.endTime.Before(afterTime) {
		return zero
	}

	if afterTime.Before(t.startTime) {
		return t.startTime
	}

	if t.repeatInterval <= 0 {
		if t.timesTriggered > 0 || t.repeatCount == 0 {
			return zero
		}

		return t.startTime
	}

	numberOfTimesExecuted := int(afterTime.Sub(t.startTime)/t.repeatInterval) + 1

	if t.repeatCount != REPEAT_INDEFINITELY && numberOfTimesExecuted > t.repeatCount {
		return zero
	}

	fireTime := t.startTime.Add(time.Duration(numberOfTimesExecuted) * t.repeatInterval)

	if !t.endTime.IsZero() && t.endTime.Before(fireTime) {
		return zero
	}

	return fireTime
}

func (t *simpleTrigger) FireTimeBefore(endTime time.Time) time.Time {
	if endTime.Before(t.startTime) {
		return zero
	}

	numFires := t.computeNumTimesFiredBetween(t.startTime, endTime)

	return t.startTime.Add(time.Duration(numFires) * t.repeatInterval)
}

func (t *simpleTrigger) MayFireAgain() bool { return !t.GetFireTimeAfter(nil, t.nextFireTime).IsZero() }

// GetFireTimeAfter applies this trigger's calendar, if any, over the raw
// FireTimeAfter math.
func (t *simpleTrigger) GetFireTimeAfter(cal Calendar, after time.Time) time.Time {
	return applyCalendar(cal, t.endTime, t.FireTimeAfter, t.FireTimeAfter(after))
}

func (t *simpleTrigger) computeNumTimesFiredBetween(start, end time.Time) int {
	if t.repeatInterval < time.Millisecond {
		return 0
	}

	return int(end.Sub(start) / t.repeatInterval)
}

func (t *simpleTrigger) FinalFireTime() time.Time {
	if t.repeatCount == 0 {
		return t.startTime
	}

	if t.repeatCount == REPEAT_INDEFINITELY {
		if t.endTime.IsZero() {
			return zero
		}

		return t.FireTimeBefore(t.endTime)
	}

	lastTrigger := t.startTime.Add(time.Duration(t.repeatCount) * t.repeatInterval)

	if t.endTime.IsZero() || lastTrigger.Before(t.endTime) {
		return lastTrigger
	}

	return t.FireTimeBefore(t.endTime)
}

func (t *simpleTrigger) ComputeFirstFireTime(cal Calendar) time.Time {
	t.nextFireTime = applyCalendar(cal, t.endTime, t.FireTimeAfter, t.FireTimeAfter(t.startTime.Add(-time.Nanosecond)))

	return t.nextFireTime
}

func (t *simpleTrigger) Triggered(cal Calendar) {
	t.timesTriggered++
	t.previousFireTime = t.nextFireTime
	t.nextFireTime = applyCalendar(cal, t.endTime, t.FireTimeAfter, t.FireTimeAfter(t.nextFireTime))
}

// UpdateAfterMisfire applies the simple-interval family's misfire
// policies.
func (t *simpleTrigger) UpdateAfterMisfire(cal Calendar) {
	instruction := t.misfireInstruction

	if instruction == MISFIRE_INSTRUCTION_SMART_POLICY {
		if t.repeatCount == 0 {
			instruction = MISFIRE_INSTRUCTION_FIRE_NOW
		} else {
			instruction = MISFIRE_INSTRUCTION_RESCHEDULE_NOW_WITH_REMAINING_REPEAT_COUNT
		}
	}

	now := time.Now()

	switch instruction {
	case MISFIRE_INSTRUCTION_FIRE_NOW:
		t.nextFireTime = now
	case MISFIRE_INSTRUCTION_RESCHEDULE_NOW_WITH_EXISTING_REPEAT_COUNT:
		t.nextFireTime = now
	case MISFIRE_INSTRUCTION_RESCHEDULE_NOW_WITH_REMAINING_REPEAT_COUNT:
		if t.repeatCount != REPEAT_INDEFINITELY {
			t.repeatCount -= t.timesTriggered
			t.timesTriggered = 0
		}

		t.nextFireTime = now
	case MISFIRE_INSTRUCTION_RESCHEDULE_NEXT_WITH_REMAINING_COUNT:
		if t.repeatCount != REPEAT_INDEFINITELY {
			t.repeatCount -= t.timesTriggered
			t.timesTriggered = 0
		}

		t.nextFireTime = applyCalendar(cal, t.endTime, t.FireTimeAfter, t.FireTimeAfter(now))
	case MISFIRE_INSTRUCTION_RESCHEDULE_NEXT_WITH_EXISTING_COUNT:
		t.nextFireTime = applyCalendar(cal, t.endTime, t.FireTimeAfter, t.FireTimeAfter(now))
	}
}

func (t *simpleTrigger) UpdateWithNewCalendar(cal Calendar, misfireThreshold time.Duration) {
	after := t.previousFireTime

	if floor := time.Now().Add(-misfireThreshold); after.Before(floor) {
		after = floor
	}

	t.nextFireTime = applyCalendar(cal, t.endTime, t.FireTimeAfter, t.FireTimeAfter(after))
}

func (t *simpleTrigger) Validate() error {
	if t.startTime.IsZero() {
		return errInvalidTriggerf("simple trigger %q has no start time", t.key)
	}

	if t.repeatCount < 0 && t.repeatCount != REPEAT_INDEFINITELY {
		return errInvalidTriggerf("simple trigger %q repeat count must be >= 0 or REPEAT_INDEFINITELY", t.key)
	}

	if t.repeatInterval < 0 {
		return errInvalidTriggerf("simple trigger %q repeat interval must be >= 0", t.key)
	}

	return nil
}

func (t *simpleTrigger) SetMisfireInstruction(instruction int) error {
	if instruction < MISFIRE_INSTRUCTION_SMART_POLICY || instruction > MISFIRE_INSTRUCTION_RESCHEDULE_NEXT_WITH_EXISTING_COUNT {
		return errInvalidTriggerf("unrecognized simple trigger misfire instruction %d", instruction)
	}

	t.misfireInstruction = instruction

	return nil
}

func (t *simpleTrigger) ExecutionComplete(ctx JobExecutionContext, jobErr error) CompletedExecutionInstruction {
	return t.executionComplete(jobErr)
}

func (t *simpleTrigger) TriggerBuilder() *TriggerBuilder {
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

func (t *simpleTrigger) ScheduleBuilder() ScheduleBuilder {
	return &SimpleScheduleBuilder{
		repeatInterval:      t.repeatInterval,
		repeatCount:         t.repeatCount,
		misfireInstruction:  t.misfireInstruction,
	}
}

func (t *simpleTrigger) Clone() interface{} {
	clone := *t

	if t.dataMap != nil {
		clone.dataMap = t.dataMap.Clone().(JobDataMap)
	}

	return &clone
}

// SimpleScheduleBuilder builds simple-interval triggers.
type SimpleScheduleBuilder struct {
	repeatInterval     time.Duration
	repeatCount        int
	misfireInstruction int
}

// NewSimpleScheduleBuilder starts a builder for a trigger that fires
// exactly once, at its start time.
func NewSimpleScheduleBuilder() *SimpleScheduleBuilder {
	return &SimpleScheduleBuilder{}
}

func (b *SimpleScheduleBuilder) WithInterval(interval time.Duration) *SimpleScheduleBuilder {
	b.repeatInterval = interval

	return b
}

func (b *SimpleScheduleBuilder) WithIntervalInSeconds(seconds int) *SimpleScheduleBuilder {
	return b.WithInterval(time.Duration(seconds) * time.Second)
}

func (b *SimpleScheduleBuilder) WithIntervalInMinutes(minutes int) *SimpleScheduleBuilder {
	return b.WithInterval(time.Duration(minutes) * time.Minute)
}

func (b *SimpleScheduleBuilder) WithIntervalInHours(hours int) *SimpleScheduleBuilder {
	return b.WithInterval(time.Duration(hours) * time.Hour)
}

func (b *SimpleScheduleBuilder) WithRepeatCount(count int) *SimpleScheduleBuilder {
	b.repeatCount = count

	return b
}

func (b *SimpleScheduleBuilder) RepeatForever() *SimpleScheduleBuilder {
	b.repeatCount = REPEAT_INDEFINITELY

	return b
}

func (b *SimpleScheduleBuilder) WithMisfireHandlingInstructionFireNow() *SimpleScheduleBuilder {
	b.misfireInstruction = MISFIRE_INSTRUCTION_FIRE_NOW

	return b
}

func (b *SimpleScheduleBuilder) WithMisfireHandlingInstructionNextWithExistingCount() *SimpleScheduleBuilder {
	b.misfireInstruction = MISFIRE_INSTRUCTION_RESCHEDULE_NEXT_WITH_EXISTING_COUNT

	return b
}

func (b *SimpleScheduleBuilder) WithMisfireHandlingInstructionNextWithRemainingCount() *SimpleScheduleBuilder {
	b.misfireInstruction = MISFIRE_INSTRUCTION_RESCHEDULE_NEXT_WITH_REMAINING_COUNT

	return b
}

func (b *SimpleScheduleBuilder) WithMisfireHandlingInstructionNowWithExistingCount() *SimpleScheduleBuilder {
	b.misfireInstruction = MISFIRE_INSTRUCTION_RESCHEDULE_NOW_WITH_EXISTING_REPEAT_COUNT

	return b
}

func (b *SimpleScheduleBuilder) WithMisfireHandlingInstructionNowWithRemainingCount() *SimpleScheduleBuilder {
	b.misfireInstruction = MISFIRE_INSTRUCTION_RESCHEDULE_NOW_WITH_REMAINING_REPEAT_COUNT

	return b
}

func (b *SimpleScheduleBuilder) Build() OperableTrigger {
	t := &simpleTrigger{
		abstractTrigger: newAbstractTrigger(),
		repeatInterval:  b.repeatInterval,
		repeatCount:     b.repeatCount,
	}

	t.misfireInstruction = b.misfireInstruction

	return t
}

// TriggerBuilder is used to instantiate Triggers.
type TriggerBuilder struct {
	Key                TriggerKey
	Description        string
	StartTime, EndTime time.Time
	Priority           int
	JobKey             JobKey
	DataMap            JobDataMap
	CalendarName       string
	ScheduleBuilder    ScheduleBuilder
}

// NewTrigger starts a TriggerBuilder, mirroring NewJob's entry point
// for JobBuilder.
func NewTrigger() *TriggerBuilder {
	return &TriggerBuilder{}
}

func (b *TriggerBuilder) WithIdentity(name string) *TriggerBuilder {
	b.Key = NewTriggerKey(name)

	return b
}

func (b *TriggerBuilder) WithGroupIdentity(name, group string) *TriggerBuilder {
	b.Key = NewGroupTriggerKey(name, group)

	return b
}

func (b *TriggerBuilder) WithTriggerKey(key TriggerKey) *TriggerBuilder {
	b.Key = key

	return b
}

func (b *TriggerBuilder) WithDescription(desc string) *TriggerBuilder {
	b.Description = desc

	return b
}

func (b *TriggerBuilder) WithPriority(priority int) *TriggerBuilder {
	b.Priority = priority

	return b
}

func (b *TriggerBuilder) ModifiedByCalendar(name string) *TriggerBuilder {
	b.CalendarName = name

	return b
}

func (b *TriggerBuilder) StartAt(startTime time.Time) *TriggerBuilder {
	b.StartTime = startTime

	return b
}

func (b *TriggerBuilder) StartNow() *TriggerBuilder {
	b.StartTime = time.Now()

	return b
}

func (b *TriggerBuilder) EndAt(endTime time.Time) *TriggerBuilder {
	b.EndTime = endTime

	return b
}

func (b *TriggerBuilder) WithSchedule(scheduleBuilder ScheduleBuilder) *TriggerBuilder {
	b.ScheduleBuilder = scheduleBuilder

	return b
}

func (b *TriggerBuilder) ForJob(name string) *TriggerBuilder {
	b.JobKey = NewJobKey(name)

	return b
}

func (b *TriggerBuilder) ForGroupJob(name, group string) *TriggerBuilder {
	b.JobKey = NewGroupJobKey(name, group)

	return b
}

func (b *TriggerBuilder) ForJobKey(jobKey JobKey) *TriggerBuilder {
	b.JobKey = jobKey

	return b
}

func (b *TriggerBuilder) ForJobDetail(jobDetail JobDetail) *TriggerBuilder {
	b.JobKey = jobDetail.Key()

	return b
}

func (b *TriggerBuilder) UsingJobData(key string, value interface{}) *TriggerBuilder {
	if b.DataMap == nil {
		b.DataMap = NewJobDataMap()
	}

	b.DataMap.Put(key, value)

	return b
}

func (b *TriggerBuilder) UsingJobDataMap(dataMap JobDataMap) *TriggerBuilder {
	if b.DataMap == nil {
		b.DataMap = NewJobDataMap()
	}

	b.DataMap.PutAll(dataMap)

	return b
}

func (b *TriggerBuilder) SetJobDataMap(dataMap JobDataMap) *TriggerBuilder {
	b.DataMap = dataMap

	return b
}

func (b *TriggerBuilder) Build() OperableTrigger {
	if b.ScheduleBuilder == nil {
		b.ScheduleBuilder = NewSimpleScheduleBuilder()
	}

	trigger := b.ScheduleBuilder.Build()

	trigger.SetDescription(b.Description)

	if !b.StartTime.IsZero() {
		trigger.SetStartTime(b.StartTime)
	}

	if !b.EndTime.IsZero() {
		trigger.SetEndTime(b.EndTime)
	}

	if (b.Key == TriggerKey{}) {
		b.Key = NewUniqueTriggerKey("")
	}

	trigger.SetKey(b.Key)

	if (b.JobKey != JobKey{}) {
		trigger.SetJobKey(b.JobKey)
	}

	if b.Priority != 0 {
		trigger.SetPriority(b.Priority)
	}

	trigger.SetCalendarName(b.CalendarName)

	if b.DataMap != nil {
		trigger.SetJobDataMap(b.DataMap)
	}

	return trigger
}
