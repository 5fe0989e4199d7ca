package recurrence

import "time"

// maxIterations bounds a single expansion (about 27 years of daily dates).
const maxIterations = 10000

// Expand returns the due dates of rule within [windowStart, windowEnd], both
// ends inclusive and truncated to their calendar date. The result is ordered
// and depends only on the rule and the window.
func Expand(rule Rule, windowStart, windowEnd time.Time) []time.Time {
	start, end := day(windowStart), day(windowEnd)
	if end.Before(start) {
		return nil
	}

	var results []time.Time
	iter := newIterator(rule, start)
	for i := 0; i < maxIterations; i++ {
		t, ok := iter.next()
		if !ok || t.After(end) {
			break
		}
		if t.Before(start) {
			continue
		}
		results = append(results, t)
	}
	return results
}

// Occurrences parses a frequency tag and expands it over the window.
func Occurrences(tag string, a Anchors, windowStart, windowEnd time.Time) ([]time.Time, error) {
	freq, err := ParseFrequency(tag)
	if err != nil {
		return nil, err
	}
	return Expand(RuleFor(freq, a), windowStart, windowEnd), nil
}

type iterator struct {
	rule    Rule
	start   time.Time
	current time.Time
	year    int
	season  int
	started bool
}

func newIterator(rule Rule, start time.Time) *iterator {
	if rule.Interval < 1 {
		rule.Interval = 1
	}
	return &iterator{rule: rule, start: start}
}

func (it *iterator) next() (time.Time, bool) {
	switch it.rule.Freq {
	case Daily:
		return it.advanceDaily(), true
	case Weekly:
		return it.advanceWeekly(), true
	case Monthly, Quarterly:
		return it.advanceMonthly(), true
	case Seasonal:
		return it.advanceSeasonal(), true
	case Yearly:
		return it.advanceYearly(), true
	}
	return time.Time{}, false
}

func (it *iterator) advanceDaily() time.Time {
	if !it.started {
		it.started = true
		it.current = it.start
		return it.current
	}
	it.current = it.current.AddDate(0, 0, 1)
	return it.current
}

func (it *iterator) advanceWeekly() time.Time {
	if !it.started {
		it.started = true
		offset := (int(it.rule.Weekday) - int(it.start.Weekday()) + 7) % 7
		it.current = it.start.AddDate(0, 0, offset)
		return it.current
	}
	it.current = it.current.AddDate(0, 0, 7)
	return it.current
}

// advanceMonthly walks month by month in steps of the rule's interval,
// keeping it.current on the first of the month so that clamping a short
// month never shifts later occurrences.
func (it *iterator) advanceMonthly() time.Time {
	if !it.started {
		it.started = true
		it.current = time.Date(it.start.Year(), it.start.Month(), 1, 0, 0, 0, 0, time.UTC)
		shift := (int(it.current.Month()) - int(it.rule.Month)) % it.rule.Interval
		if shift < 0 {
			shift += it.rule.Interval
		}
		if shift > 0 {
			it.current = it.current.AddDate(0, it.rule.Interval-shift, 0)
		}
	} else {
		it.current = it.current.AddDate(0, it.rule.Interval, 0)
	}
	return clampDate(it.current.Year(), it.current.Month(), it.rule.Day)
}

func (it *iterator) advanceSeasonal() time.Time {
	if !it.started {
		it.started = true
		it.year = it.start.Year()
		it.season = 0
	} else {
		it.season++
		if it.season == len(seasonStarts) {
			it.season = 0
			it.year++
		}
	}
	s := seasonStarts[it.season]
	return clampDate(it.year, s.Month, s.Day)
}

func (it *iterator) advanceYearly() time.Time {
	if !it.started {
		it.started = true
		it.year = it.start.Year()
	} else {
		it.year++
	}
	return clampDate(it.year, it.rule.Month, it.rule.Day)
}

// clampDate builds year-month-day, moving days past the end of the month
// back to its last day (Jan 31 -> Feb 28/29, Feb 29 -> Feb 28).
func clampDate(year int, month time.Month, d int) time.Time {
	if last := daysInMonth(year, month); d > last {
		d = last
	}
	if d < 1 {
		d = 1
	}
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
