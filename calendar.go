package quartz

import (
	"time"
)

// Calendar excludes specific time ranges from a trigger's computed
// fire times. A calendar may wrap a base
// calendar; exclusion composes by logical AND so a time is included
// only when both this calendar and its base include it.
type Calendar interface {
	// IsTimeIncluded reports whether t is NOT excluded by this calendar
	// or its base calendar, if any.
	IsTimeIncluded(t time.Time) bool

	CalendarBase() Calendar

	SetCalendarBase(base Calendar)

	Description() string

	SetDescription(desc string)
}

// baseCalendar is embedded by every concrete calendar, giving it the
// base-calendar chaining and description fields common to all of them.
type baseCalendar struct {
	base Calendar
	desc string
}

func (c *baseCalendar) CalendarBase() Calendar { return c.base }

func (c *baseCalendar) SetCalendarBase(base Calendar) { c.base = base }

func (c *baseCalendar) Description() string { return c.desc }

func (c *baseCalendar) SetDescription(desc string) { c.desc = desc }

// includedByBase reports whether t is included per the base calendar,
// treating a nil base as "always included".
func (c *baseCalendar) includedByBase(t time.Time) bool {
	return c.base == nil || c.base.IsTimeIncluded(t)
}

// CronCalendar excludes every instant matched by a cron expression.
type CronCalendar struct {
	baseCalendar

	expr *cronExpression
}

func NewCronCalendar(expression string) (*CronCalendar, error) {
	expr, err := parseCronExpression(expression)
	if err != nil {
		return nil, err
	}

	return &CronCalendar{expr: expr}, nil
}

func (c *CronCalendar) IsTimeIncluded(t time.Time) bool {
	if !c.includedByBase(t) {
		return false
	}

	return !c.expr.matches(t)
}

// DailyCalendar excludes a daily time-of-day window, e.g. business
// hours; invertTimeRange flips it to exclude everything OUTSIDE the
// window instead. The window runs from start to end on the same day and
// does not wrap past midnight.
type DailyCalendar struct {
	baseCalendar

	rangeStartingTime, rangeEndingTime timeOfDay
	invertTimeRange                    bool
}

func NewDailyCalendar(start, end timeOfDay) *DailyCalendar {
	return &DailyCalendar{rangeStartingTime: start, rangeEndingTime: end}
}

func (c *DailyCalendar) InvertTimeRange(invert bool) *DailyCalendar {
	c.invertTimeRange = invert

	return c
}

func (c *DailyCalendar) IsTimeIncluded(t time.Time) bool {
	if !c.includedByBase(t) {
		return false
	}

	withinRange := !timeOfDayBefore(t, c.rangeStartingTime) && !timeOfDayAfter(t, c.rangeEndingTime)

	if c.invertTimeRange {
		return withinRange
	}

	return !withinRange
}

// WeeklyCalendar excludes whole days of the week (e.g. weekends).
type WeeklyCalendar struct {
	baseCalendar

	excluded [7]bool
}

func NewWeeklyCalendar() *WeeklyCalendar {
	c := &WeeklyCalendar{}
	c.excluded[time.Sunday] = true
	c.excluded[time.Saturday] = true

	return c
}

func (c *WeeklyCalendar) SetDayExcluded(day time.Weekday, excluded bool) {
	c.excluded[day] = excluded
}

func (c *WeeklyCalendar) IsDayExcluded(day time.Weekday) bool { return c.excluded[day] }

func (c *WeeklyCalendar) IsTimeIncluded(t time.Time) bool {
	if !c.includedByBase(t) {
		return false
	}

	return !c.excluded[t.Weekday()]
}

// AnnualCalendar excludes specific month/day combinations every year
// (birthdays, fixed annual holidays), ignoring the year component.
type AnnualCalendar struct {
	baseCalendar

	excluded map[int]bool // key = int(month)*100 + day
}

func NewAnnualCalendar() *AnnualCalendar {
	return &AnnualCalendar{excluded: make(map[int]bool)}
}

func annualKey(t time.Time) int { return int(t.Month())*100 + t.Day() }

func (c *AnnualCalendar) SetDayExcluded(t time.Time, excluded bool) {
	if excluded {
		c.excluded[annualKey(t)] = true
	} else {
		delete(c.excluded, annualKey(t))
	}
}

func (c *AnnualCalendar) IsDayExcluded(t time.Time) bool { return c.excluded[annualKey(t)] }

func (c *AnnualCalendar) IsTimeIncluded(t time.Time) bool {
	if !c.includedByBase(t) {
		return false
	}

	return !c.excluded[annualKey(t)]
}

// HolidayCalendar excludes specific calendar dates, year included
// (one-off holidays, office closures).
type HolidayCalendar struct {
	baseCalendar

	excluded map[string]bool // key = "2006-01-02"
}

func NewHolidayCalendar() *HolidayCalendar {
	return &HolidayCalendar{excluded: make(map[string]bool)}
}

func holidayKey(t time.Time) string { return t.Format("2006-01-02") }

func (c *HolidayCalendar) AddExcludedDate(t time.Time) {
	c.excluded[holidayKey(t)] = true
}

func (c *HolidayCalendar) RemoveExcludedDate(t time.Time) {
	delete(c.excluded, holidayKey(t))
}

func (c *HolidayCalendar) IsTimeIncluded(t time.Time) bool {
	if !c.includedByBase(t) {
		return false
	}

	return !c.excluded[holidayKey(t)]
}

// timeOfDay is a wall-clock time of day, with second resolution,
// independent of any particular date; used by DailyCalendar and the
// daily-time-interval trigger family.
type timeOfDay struct {
	hour, minute, second int
}

func NewTimeOfDay(hour, minute, second int) timeOfDay {
	return timeOfDay{hour: hour, minute: minute, second: second}
}

func (d timeOfDay) seconds() int { return d.hour*3600 + d.minute*60 + d.second }

func (d timeOfDay) Before(other timeOfDay) bool { return d.seconds() < other.seconds() }

func (d timeOfDay) onDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), d.hour, d.minute, d.second, 0, t.Location())
}

func timeOfDayBefore(t time.Time, d timeOfDay) bool { return t.Before(d.onDate(t)) }

func timeOfDayAfter(t time.Time, d timeOfDay) bool { return t.After(d.onDate(t)) }
