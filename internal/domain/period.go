package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================
// Period arithmetic (months and calendar dates)
// ============================================================

const (
	monthLayout = "2006-01"
	dateLayout  = "2006-01-02"
)

// Month identifies a calendar month. The zero value is not a valid month.
type Month struct {
	Year  int
	Month int // 1..12
}

// MonthIndex gives months a total order: year*12 + (month-1).
func MonthIndex(year, month int) int {
	return year*12 + (month - 1)
}

// MonthFromIndex is the inverse of MonthIndex.
func MonthFromIndex(i int) Month {
	y := i / 12
	m := i % 12
	if m < 0 {
		y--
		m += 12
	}
	return Month{Year: y, Month: m + 1}
}

// ParseMonth parses a "YYYY-MM" month key.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, &ErrValidation{Field: "month", Message: fmt.Sprintf("expected YYYY-MM, got %q", s)}
	}
	return Month{Year: t.Year(), Month: int(t.Month())}, nil
}

// MustParseMonth is ParseMonth for keys that were already validated upstream.
// It panics on malformed input.
func MustParseMonth(s string) Month {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: int(t.Month())}
}

func (m Month) Index() int { return MonthIndex(m.Year, m.Month) }

// Next returns the following month; December rolls over to January.
func (m Month) Next() Month { return m.AddMonths(1) }

func (m Month) Prev() Month { return m.AddMonths(-1) }

func (m Month) AddMonths(n int) Month { return MonthFromIndex(m.Index() + n) }

func (m Month) Before(o Month) bool { return m.Index() < o.Index() }

func (m Month) After(o Month) bool { return m.Index() > o.Index() }

func (m Month) IsZero() bool { return m.Year == 0 && m.Month == 0 }

// FirstDay returns the first calendar day of the month.
func (m Month) FirstDay() Date {
	return NewDate(m.Year, m.Month, 1)
}

// Day returns the given day of the month, clamped to the month's last day.
func (m Month) Day(day int) Date {
	last := time.Date(m.Year, time.Month(m.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return NewDate(m.Year, m.Month, day)
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

func (m Month) MarshalText() ([]byte, error) {
	if m.IsZero() {
		return []byte{}, nil
	}
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Date is a calendar date at UTC midnight.
type Date struct {
	time.Time
}

// NewDate builds a date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date, keeping t's wall clock day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a "YYYY-MM-DD" date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, &ErrValidation{Field: "date", Message: fmt.Sprintf("expected YYYY-MM-DD, got %q", s)}
	}
	return Date{Time: t}, nil
}

// MustParseDate panics on malformed input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Month returns the month key parts of the date, ignoring the day.
func (d Date) Month() Month {
	return Month{Year: d.Year(), Month: int(d.Time.Month())}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON overrides the promoted time.Time encoding.
func (d Date) MarshalJSON() ([]byte, error) {
	b, _ := d.MarshalText()
	return json.Marshal(string(b))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &ErrValidation{Field: "date", Message: "expected a string"}
	}
	return d.UnmarshalText([]byte(s))
}

// DaysBetween counts calendar days from `from` to `to`. Negative when `to`
// precedes `from`.
func DaysBetween(from, to Date) int {
	return int(dayNumber(to) - dayNumber(from))
}

// dayNumber is the civil day count since the Unix epoch. Unlike time.Sub it
// does not saturate for distant dates.
func dayNumber(d Date) int64 {
	y, m, day := d.Time.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC).Unix() / 86400
}
