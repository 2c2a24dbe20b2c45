package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO layout used for dates in config, flags and logs
const DateLayout = "2006-01-02"

// ErrEmptyWeekmask is returned when no weekday is marked as a business day
var ErrEmptyWeekmask = errors.New("weekmask has no business days")

// Weekmask marks business weekdays, indexed by time.Weekday
type Weekmask [7]bool

// MonToFri is the default weekmask
var MonToFri = Weekmask{
	time.Monday:    true,
	time.Tuesday:   true,
	time.Wednesday: true,
	time.Thursday:  true,
	time.Friday:    true,
}

var dayNames = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

// ParseWeekmask accepts either day names ("Mon Tue Wed Thu Fri") or a
// seven-character Monday-first bit string ("1111100").
func ParseWeekmask(s string) (Weekmask, error) {
	var mask Weekmask
	s = strings.TrimSpace(s)

	if len(s) == 7 && strings.Trim(s, "01") == "" {
		for i, ch := range s {
			// position 0 is Monday
			mask[(i+1)%7] = ch == '1'
		}
	} else {
		for _, tok := range strings.Fields(s) {
			day, ok := dayNames[strings.ToLower(tok)]
			if !ok {
				return Weekmask{}, fmt.Errorf("unknown weekday %q in weekmask", tok)
			}
			mask[day] = true
		}
	}

	if mask.empty() {
		return Weekmask{}, ErrEmptyWeekmask
	}
	return mask, nil
}

func (m Weekmask) empty() bool {
	for _, on := range m {
		if on {
			return false
		}
	}
	return true
}

// String renders the mask as day names, Monday first
func (m Weekmask) String() string {
	names := make([]string, 0, 7)
	for i := 1; i <= 7; i++ {
		day := time.Weekday(i % 7)
		if m[day] {
			names = append(names, day.String()[:3])
		}
	}
	return strings.Join(names, " ")
}

// Calendar answers business-day questions for a weekmask and holiday set.
// It is immutable after New and safe for concurrent reads.
type Calendar struct {
	mask     Weekmask
	holidays map[time.Time]struct{}
}

// New creates a Calendar. Holidays are normalized to UTC dates.
func New(mask Weekmask, holidays []time.Time) (*Calendar, error) {
	if mask.empty() {
		return nil, ErrEmptyWeekmask
	}

	set := make(map[time.Time]struct{}, len(holidays))
	for _, h := range holidays {
		set[Normalize(h)] = struct{}{}
	}

	return &Calendar{mask: mask, holidays: set}, nil
}

// Normalize truncates t to midnight UTC of its calendar date
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a UTC date
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Weekmask returns the configured weekmask
func (c *Calendar) Weekmask() Weekmask {
	return c.mask
}

// IsBusinessDay reports whether d is on the weekmask and not a holiday
func (c *Calendar) IsBusinessDay(d time.Time) bool {
	d = Normalize(d)
	if !c.mask[d.Weekday()] {
		return false
	}
	_, holiday := c.holidays[d]
	return !holiday
}

// PreviousBusinessDay returns the latest business day strictly before d
func (c *Calendar) PreviousBusinessDay(d time.Time) time.Time {
	return c.onOrBefore(Normalize(d).AddDate(0, 0, -1))
}

// NextBusinessDay returns the earliest business day strictly after d
func (c *Calendar) NextBusinessDay(d time.Time) time.Time {
	return c.onOrAfter(Normalize(d).AddDate(0, 0, 1))
}

// LastBusinessDayOfPreviousMonth rolls d back to the last calendar day of the
// prior month, then back again to a business day if needed.
func (c *Calendar) LastBusinessDayOfPreviousMonth(d time.Time) time.Time {
	first := firstOfMonth(d)
	return c.onOrBefore(first.AddDate(0, 0, -1))
}

// FirstBusinessDayOfMonth returns the first business day on or after the 1st of d's month.
// d is a rebalance day exactly when FirstBusinessDayOfMonth(d) equals d.
func (c *Calendar) FirstBusinessDayOfMonth(d time.Time) time.Time {
	return c.onOrAfter(firstOfMonth(d))
}

// RollForward returns d if it is a business day, otherwise the next one
func (c *Calendar) RollForward(d time.Time) time.Time {
	return c.onOrAfter(Normalize(d))
}

// BusinessDays lists the business days in [from, to], ascending
func (c *Calendar) BusinessDays(from, to time.Time) []time.Time {
	from, to = Normalize(from), Normalize(to)

	var days []time.Time
	for d := c.onOrAfter(from); !d.After(to); d = c.NextBusinessDay(d) {
		days = append(days, d)
	}
	return days
}

func (c *Calendar) onOrBefore(d time.Time) time.Time {
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func (c *Calendar) onOrAfter(d time.Time) time.Time {
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func firstOfMonth(d time.Time) time.Time {
	y, m, _ := d.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
