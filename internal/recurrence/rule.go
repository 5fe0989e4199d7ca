package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidFrequency is returned for a frequency tag the engine does not know.
var ErrInvalidFrequency = errors.New("invalid frequency")

type Freq int

const (
	Daily Freq = iota
	Weekly
	Monthly
	Quarterly
	Seasonal
	Yearly
)

var freqNames = map[Freq]string{
	Daily:     "daily",
	Weekly:    "weekly",
	Monthly:   "monthly",
	Quarterly: "quarterly",
	Seasonal:  "seasonal",
	Yearly:    "yearly",
}

// freqFromName also accepts the French tags used by the original catalog.
var freqFromName = map[string]Freq{
	"daily":         Daily,
	"weekly":        Weekly,
	"monthly":       Monthly,
	"quarterly":     Quarterly,
	"seasonal":      Seasonal,
	"yearly":        Yearly,
	"quotidienne":   Daily,
	"hebdomadaire":  Weekly,
	"mensuelle":     Monthly,
	"trimestrielle": Quarterly,
	"saisonnière":   Seasonal,
	"saisonniere":   Seasonal,
	"annuelle":      Yearly,
}

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

func (f Freq) String() string {
	if name, ok := freqNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Freq(%d)", int(f))
}

// ParseFrequency maps a task's frequency tag to a Freq. Unknown tags are
// rejected with ErrInvalidFrequency; there is no default.
func ParseFrequency(tag string) (Freq, error) {
	f, ok := freqFromName[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, tag)
	}
	return f, nil
}

// ParseWeekday accepts two-letter RRULE abbreviations ("MO") and English
// day names or their prefixes ("monday", "Tue"), case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	if len(u) >= 2 {
		if wd, ok := dayNames[u[:2]]; ok && strings.HasPrefix(strings.ToUpper(wd.String()), u) {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday: %q", s)
}

// Anchors pins every recurrence to fixed reference points so that the due
// dates of a task depend only on its frequency and the requested window.
type Anchors struct {
	Weekday      time.Weekday
	MonthDay     int
	QuarterMonth time.Month
	QuarterDay   int
	YearMonth    time.Month
	YearDay      int
}

// DefaultAnchors: weekly tasks on Mondays, monthly and quarterly tasks on the
// 1st (quarters starting in January), yearly tasks on January 1st.
func DefaultAnchors() Anchors {
	return Anchors{
		Weekday:      time.Monday,
		MonthDay:     1,
		QuarterMonth: time.January,
		QuarterDay:   1,
		YearMonth:    time.January,
		YearDay:      1,
	}
}

func (a Anchors) Validate() error {
	if a.Weekday < time.Sunday || a.Weekday > time.Saturday {
		return fmt.Errorf("invalid weekly anchor: %d", a.Weekday)
	}
	for _, d := range []int{a.MonthDay, a.QuarterDay, a.YearDay} {
		if d < 1 || d > 31 {
			return fmt.Errorf("invalid day-of-month anchor: %d", d)
		}
	}
	for _, m := range []time.Month{a.QuarterMonth, a.YearMonth} {
		if m < time.January || m > time.December {
			return fmt.Errorf("invalid month anchor: %d", m)
		}
	}
	return nil
}

// seasonStarts are the fixed season boundaries used by Seasonal rules:
// spring, summer, autumn, winter.
var seasonStarts = []struct {
	Month time.Month
	Day   int
}{
	{time.March, 20},
	{time.June, 21},
	{time.September, 22},
	{time.December, 21},
}

type Rule struct {
	Freq     Freq
	Interval int          // months between occurrences for Monthly/Quarterly
	Weekday  time.Weekday // Weekly
	Month    time.Month   // first month of the cycle (Quarterly) or the month (Yearly)
	Day      int          // day of month, clamped to the month's length
}

// RuleFor builds the rule a frequency follows under the given anchors. A
// Freq outside the known set yields a rule with no occurrences.
func RuleFor(freq Freq, a Anchors) Rule {
	switch freq {
	case Daily:
		return Rule{Freq: Daily, Interval: 1}
	case Weekly:
		return Rule{Freq: Weekly, Interval: 1, Weekday: a.Weekday}
	case Monthly:
		return Rule{Freq: Monthly, Interval: 1, Month: time.January, Day: a.MonthDay}
	case Quarterly:
		return Rule{Freq: Quarterly, Interval: 3, Month: a.QuarterMonth, Day: a.QuarterDay}
	case Seasonal:
		return Rule{Freq: Seasonal, Interval: 3}
	case Yearly:
		return Rule{Freq: Yearly, Interval: 1, Month: a.YearMonth, Day: a.YearDay}
	}
	return Rule{Freq: freq}
}

// Describe returns a human-readable description of the rule.
func (r Rule) Describe() string {
	switch r.Freq {
	case Daily:
		return "Repeats daily"
	case Weekly:
		return "Repeats weekly on " + r.Weekday.String()[:3]
	case Monthly:
		return fmt.Sprintf("Repeats monthly on day %d", r.Day)
	case Quarterly:
		var months []string
		for i := 0; i < 12; i += r.Interval {
			m := time.Month((int(r.Month)-1+i)%12 + 1)
			months = append(months, m.String()[:3])
		}
		return fmt.Sprintf("Repeats every %d months on day %d (%s)", r.Interval, r.Day, strings.Join(months, ", "))
	case Seasonal:
		return "Repeats at the start of each season"
	case Yearly:
		return fmt.Sprintf("Repeats yearly on %s %d", r.Month.String()[:3], r.Day)
	}
	return ""
}
