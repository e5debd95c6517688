package quartz

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// cronExpression implements the Quartz 7-field cron dialect: seconds, minutes, hours, day-of-month, month,
// day-of-week, and an optional year, including the `L`, `LW`, `W` and
// `#` extensions. No pack library implements this dialect (see
// DESIGN.md), so this is hand-written against the stdlib time package.
type cronExpression struct {
	raw string

	seconds []int
	minutes []int
	hours   []int
	months  []int
	years   []int // nil means "every year"

	domIsBlank bool // day-of-month field was "?"
	domSet     []int
	domLast    bool // "L" or "L-n"
	domLastOff int
	domLastW   bool // "LW"
	domNearW   int  // "NW": nearest weekday to day N; 0 if unused

	dowIsBlank bool // day-of-week field was "?"
	dowSet     []int
	dowLastOf  int // "xL": last weekday x (1=SUN..7=SAT) of the month; 0 if unused
	dowNth     int // "x#n": the weekday x's nth occurrence
	dowNthDay  int
}

var monthNames = map[string]int{
	"JAN": 1, "FEB": 2, "MAR": 3, "APR": 4, "MAY": 5, "JUN": 6,
	"JUL": 7, "AUG": 8, "SEP": 9, "OCT": 10, "NOV": 11, "DEC": 12,
}

var dayNames = map[string]int{
	"SUN": 1, "MON": 2, "TUE": 3, "WED": 4, "THU": 5, "FRI": 6, "SAT": 7,
}

func parseCronExpression(expression string) (*cronExpression, error) {
	fields := strings.Fields(expression)

	if len(fields) < 6 || len(fields) > 7 {
		return nil, errInvalidTriggerf("cron expression %q must have 6 or 7 fields, got %d", expression, len(fields))
	}

	expr := &cronExpression{raw: expression}

	var err error

	if expr.seconds, err = parseNumericField(fields[0], 0, 59, nil); err != nil {
		return nil, errInvalidTriggerf("cron expression %q: invalid seconds field: %s", expression, err)
	}

	if expr.minutes, err = parseNumericField(fields[1], 0, 59, nil); err != nil {
		return nil, errInvalidTriggerf("cron expression %q: invalid minutes field: %s", expression, err)
	}

	if expr.hours, err = parseNumericField(fields[2], 0, 23, nil); err != nil {
		return nil, errInvalidTriggerf("cron expression %q: invalid hours field: %s", expression, err)
	}

	if err = expr.parseDayOfMonth(fields[3]); err != nil {
		return nil, errInvalidTriggerf("cron expression %q: invalid day-of-month field: %s", expression, err)
	}

	if expr.months, err = parseNumericField(fields[4], 1, 12, monthNames); err != nil {
		return nil, errInvalidTriggerf("cron expression %q: invalid month field: %s", expression, err)
	}

	if err = expr.parseDayOfWeek(fields[5]); err != nil {
		return nil, errInvalidTriggerf("cron expression %q: invalid day-of-week field: %s", expression, err)
	}

	if len(fields) == 7 && fields[6] != "*" {
		if expr.years, err = parseNumericField(fields[6], 1970, 2199, nil); err != nil {
			return nil, errInvalidTriggerf("cron expression %q: invalid year field: %s", expression, err)
		}
	}

	if expr.domIsBlank == expr.dowIsBlank {
		return nil, errInvalidTriggerf("cron expression %q: exactly one of day-of-month and day-of-week must be '?'", expression)
	}

	return expr, nil
}

func uniqueSorted(vals []int) []int {
	seen := make(map[int]bool, len(vals))

	out := vals[:0:0]

	for _, v := range vals {
		if !seen[v] {
			seen[v] = true

			out = append(out, v)
		}
	}

	sort.Ints(out)

	return out
}

// parseNumericField parses a comma-separated list of values/ranges/steps
// for a plain numeric cron field, e.g. "1,5", "10-20", "*/15", "MON-FRI".
func parseNumericField(field string, min, max int, names map[string]int) ([]int, error) {
	resolve := func(tok string) (int, error) {
		if names != nil {
			if v, ok := names[strings.ToUpper(tok)]; ok {
				return v, nil
			}
		}

		return strconv.Atoi(tok)
	}

	var out []int

	for _, part := range strings.Split(field, ",") {
		step := 1
		base := part

		if idx := strings.Index(part, "/"); idx >= 0 {
			base = part[:idx]

			s, err := strconv.Atoi(part[idx+1:])
			if err != nil || s <= 0 {
				return nil, errInvalidTriggerf("bad step in %q", part)
			}

			step = s
		}

		var lo, hi int

		switch {
		case base == "*" || base == "":
			lo, hi = min, max
		case strings.Contains(base, "-"):
			bounds := strings.SplitN(base, "-", 2)

			l, err := resolve(bounds[0])
			if err != nil {
				return nil, err
			}

			h, err := resolve(bounds[1])
			if err != nil {
				return nil, err
			}

			lo, hi = l, h
		default:
			v, err := resolve(base)
			if err != nil {
				return nil, err
			}

			lo, hi = v, v

			if step != 1 {
				hi = max
			}
		}

		if lo < min || hi > max || lo > hi {
			return nil, errInvalidTriggerf("value %q out of range [%d,%d]", part, min, max)
		}

		for v := lo; v <= hi; v += step {
			out = append(out, v)
		}
	}

	if len(out) == 0 {
		return nil, errInvalidTriggerf("empty field")
	}

	return uniqueSorted(out), nil
}

func (e *cronExpression) parseDayOfMonth(field string) error {
	switch {
	case field == "?":
		e.domIsBlank = true

		return nil
	case field == "L":
		e.domLast = true

		return nil
	case strings.HasPrefix(field, "L-"):
		off, err := strconv.Atoi(field[2:])
		if err != nil || off < 0 {
			return errInvalidTriggerf("bad L-n offset %q", field)
		}

		e.domLast = true
		e.domLastOff = off

		return nil
	case field == "LW":
		e.domLastW = true

		return nil
	case strings.HasSuffix(field, "W"):
		n, err := strconv.Atoi(field[:len(field)-1])
		if err != nil || n < 1 || n > 31 {
			return errInvalidTriggerf("W requires a day number <= 31, got %q", field)
		}

		e.domNearW = n

		return nil
	default:
		vals, err := parseNumericField(field, 1, 31, nil)
		if err != nil {
			return err
		}

		e.domSet = vals

		return nil
	}
}

func (e *cronExpression) parseDayOfWeek(field string) error {
	switch {
	case field == "?":
		e.dowIsBlank = true

		return nil
	case field == "L":
		// bare L in day-of-week: last day of the week (Saturday).
		e.dowLastOf = 7

		return nil
	case strings.HasSuffix(field, "L"):
		v, err := resolveDayToken(field[:len(field)-1])
		if err != nil {
			return errInvalidTriggerf("bad xL token %q: %s", field, err)
		}

		e.dowLastOf = v

		return nil
	case strings.Contains(field, "#"):
		parts := strings.SplitN(field, "#", 2)

		v, err := resolveDayToken(parts[0])
		if err != nil {
			return errInvalidTriggerf("bad x#n token %q: %s", field, err)
		}

		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 || n > 5 {
			return errInvalidTriggerf("bad occurrence number in %q", field)
		}

		e.dowNthDay = v
		e.dowNth = n

		return nil
	default:
		vals, err := parseNumericField(field, 1, 7, dayNames)
		if err != nil {
			return err
		}

		e.dowSet = vals

		return nil
	}
}

func resolveDayToken(tok string) (int, error) {
	if v, ok := dayNames[strings.ToUpper(tok)]; ok {
		return v, nil
	}

	return strconv.Atoi(tok)
}

func contains(vals []int, v int) bool {
	i := sort.SearchInts(vals, v)

	return i < len(vals) && vals[i] == v
}

func firstGreater(vals []int, v int) (int, bool) {
	i := sort.SearchInts(vals, v+1)

	if i < len(vals) {
		return vals[i], true
	}

	return 0, false
}

func daysInMonth(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// nearestWeekday returns the weekday (Mon-Fri) nearest to day `day` of
// the given month, per Quartz's `W` rule: if `day` lands on a weekend,
// move to the nearest weekday without crossing into a different month.
func nearestWeekday(year int, month time.Month, day, lastDay int, loc *time.Location) int {
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)

	switch t.Weekday() {
	case time.Saturday:
		if day == 1 {
			return day + 2
		}

		return day - 1
	case time.Sunday:
		if day == lastDay {
			return day - 2
		}

		return day + 1
	default:
		return day
	}
}

// domMatches reports whether day-of-month t satisfies the configured
// day-of-month constraint. Only called when that field is not blank.
func (e *cronExpression) domMatches(t time.Time) bool {
	lastDay := daysInMonth(t.Year(), t.Month(), t.Location())

	switch {
	case e.domLast:
		return t.Day() == lastDay-e.domLastOff
	case e.domLastW:
		return t.Day() == nearestWeekday(t.Year(), t.Month(), lastDay, lastDay, t.Location())
	case e.domNearW > 0:
		target := e.domNearW
		if target > lastDay {
			target = lastDay
		}

		return t.Day() == nearestWeekday(t.Year(), t.Month(), target, lastDay, t.Location())
	default:
		return contains(e.domSet, t.Day())
	}
}

// dowMatches reports whether day-of-week t satisfies the configured
// day-of-week constraint. Only called when that field is not blank.
func (e *cronExpression) dowMatches(t time.Time) bool {
	quartzDow := int(t.Weekday()) + 1 // time.Sunday == 0 -> Quartz SUN == 1

	switch {
	case e.dowLastOf > 0:
		if quartzDow != e.dowLastOf {
			return false
		}

		return t.Day()+7 > daysInMonth(t.Year(), t.Month(), t.Location())
	case e.dowNth > 0:
		if quartzDow != e.dowNthDay {
			return false
		}

		return (t.Day()-1)/7+1 == e.dowNth
	default:
		return contains(e.dowSet, quartzDow)
	}
}

func (e *cronExpression) dayMatches(t time.Time) bool {
	if !contains(e.months, int(t.Month())) {
		return false
	}

	if e.years != nil && !contains(e.years, t.Year()) {
		return false
	}

	if e.domIsBlank {
		return e.dowMatches(t)
	}

	return e.domMatches(t)
}

// matches reports whether t (to second resolution) is an instant this
// expression selects; used by CronCalendar.
func (e *cronExpression) matches(t time.Time) bool {
	return e.dayMatches(t) &&
		contains(e.hours, t.Hour()) &&
		contains(e.minutes, t.Minute()) &&
		contains(e.seconds, t.Second())
}

// timeOfDayAfter finds the smallest (hour, minute, second) selected by
// this expression's time-of-day fields that is strictly after
// (h0, m0, s0), trying each field in turn and resetting lower fields to
// their minimum once a higher field advances.
func (e *cronExpression) timeOfDayAfter(h0, m0, s0 int, hasThreshold bool) (h, m, s int, ok bool) {
	if !hasThreshold {
		return e.hours[0], e.minutes[0], e.seconds[0], true
	}

	if contains(e.hours, h0) && contains(e.minutes, m0) {
		if v, found := firstGreater(e.seconds, s0); found {
			return h0, m0, v, true
		}
	}

	if contains(e.hours, h0) {
		if v, found := firstGreater(e.minutes, m0); found {
			return h0, v, e.seconds[0], true
		}
	}

	if v, found := firstGreater(e.hours, h0); found {
		return v, e.minutes[0], e.seconds[0], true
	}

	return 0, 0, 0, false
}

// getTimeAfter returns the smallest instant strictly after `after` that
// this expression selects, or the zero time if none exists within the
// search horizon.
func (e *cronExpression) getTimeAfter(after time.Time, loc *time.Location) time.Time {
	const maxDays = 5 * 366 * 4 // several years' search horizon

	day := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, loc)
	first := true

	for i := 0; i < maxDays; i++ {
		if e.dayMatches(day) {
			var h, m, s int

			var ok bool

			if first && sameDate(day, after) {
				h, m, s, ok = e.timeOfDayAfter(after.Hour(), after.Minute(), after.Second(), true)
			} else {
				h, m, s, ok = e.timeOfDayAfter(0, 0, 0, false)
			}

			if ok {
				return time.Date(day.Year(), day.Month(), day.Day(), h, m, s, 0, loc)
			}
		}

		first = false
		day = day.AddDate(0, 0, 1)
	}

	return zero
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()

	return ay == by && am == bm && ad == bd
}
