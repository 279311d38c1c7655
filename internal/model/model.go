package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownWeekday is returned when a two-letter code or full name is not
// one of the seven known weekdays.
var ErrUnknownWeekday = errors.New("unknown weekday")

// Weekday is one of the seven calendar days. The zero value is Sunday, which
// matches time.Weekday ordering.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// weekdayTable is the fixed code <-> name mapping, indexed by Weekday.
var weekdayTable = [7]struct {
	code string
	name string
}{
	{"Su", "Sunday"},
	{"Mo", "Monday"},
	{"Tu", "Tuesday"},
	{"We", "Wednesday"},
	{"Th", "Thursday"},
	{"Fr", "Friday"},
	{"Sa", "Saturday"},
}

// WeekdayCodes lists the two-letter codes in table order.
func WeekdayCodes() []string {
	out := make([]string, len(weekdayTable))
	for i, e := range weekdayTable {
		out[i] = e.code
	}
	return out
}

func WeekdayFromCode(code string) (Weekday, error) {
	for i, e := range weekdayTable {
		if e.code == code {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: code %q", ErrUnknownWeekday, code)
}

func WeekdayFromName(name string) (Weekday, error) {
	for i, e := range weekdayTable {
		if e.name == name {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: name %q", ErrUnknownWeekday, name)
}

func WeekdayFromTime(d time.Weekday) Weekday {
	return Weekday(d)
}

func (d Weekday) Valid() bool { return d >= Sunday && d <= Saturday }

// Code returns the two-letter code, e.g. "Mo".
func (d Weekday) Code() string {
	if !d.Valid() {
		return ""
	}
	return weekdayTable[d].code
}

// Name returns the English full name, e.g. "Monday".
func (d Weekday) Name() string {
	if !d.Valid() {
		return ""
	}
	return weekdayTable[d].name
}

// ICSCode returns the uppercase code used in BYDAY, e.g. "MO".
func (d Weekday) ICSCode() string {
	return strings.ToUpper(d.Code())
}

func (d Weekday) TimeWeekday() time.Weekday { return time.Weekday(d) }

func (d Weekday) String() string { return d.Name() }

// MarshalText encodes a weekday by its full name, as the web UI shows it.
func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownWeekday, int(d))
	}
	return []byte(d.Name()), nil
}

// UnmarshalText accepts either the full name or the two-letter code.
func (d *Weekday) UnmarshalText(b []byte) error {
	s := string(b)
	if w, err := WeekdayFromName(s); err == nil {
		*d = w
		return nil
	}
	w, err := WeekdayFromCode(s)
	if err != nil {
		return err
	}
	*d = w
	return nil
}

// Clock is a 24-hour wall-clock time.
type Clock struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Timeslot is the start and end time of a class meeting. Start < End is not
// enforced.
type Timeslot struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// Date is a civil calendar date without a time zone.
type Date struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Time returns midnight of the date in loc.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) At(c Clock) DateTime { return DateTime{Date: d, Clock: c} }

// Compact formats the date as YYYYMMDD.
func (d Date) Compact() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// DateTime is a floating (zone-less) date and wall-clock time.
type DateTime struct {
	Date
	Clock
}

func (dt DateTime) Time(loc *time.Location) time.Time {
	return time.Date(dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, 0, 0, loc)
}

// Compact formats as the iCalendar floating form YYYYMMDDTHHMMSS.
func (dt DateTime) Compact() string {
	return fmt.Sprintf("%sT%02d%02d00", dt.Date.Compact(), dt.Hour, dt.Minute)
}

func (dt DateTime) String() string {
	return dt.Date.String() + " " + dt.Clock.String()
}

// ClassRecord is one parsed class meeting pattern.
type ClassRecord struct {
	Name     string    `json:"name"`
	Days     []Weekday `json:"days"`
	Timeslot *Timeslot `json:"timeslot"`
	Location string    `json:"location"`
	UID      string    `json:"uid"`

	// Removed is a soft-delete marker set by callers (e.g. a UI toggle),
	// never by the parser.
	Removed bool `json:"removed,omitempty"`
	// EditableCol is owned by the UI.
	EditableCol string `json:"editableCol,omitempty"`
}

// Complete reports whether every required field is set.
func (c ClassRecord) Complete() bool {
	return len(c.Days) > 0 && c.Timeslot != nil && c.Location != "" && c.Name != ""
}

// StartOutputLocal marks event times as floating local time.
const StartOutputLocal = "local"

// EventDescriptor is the structured input handed to the iCalendar writer.
type EventDescriptor struct {
	Title           string     `json:"title"`
	Start           DateTime   `json:"start"`
	End             DateTime   `json:"end"`
	Location        string     `json:"location"`
	RecurrenceRule  string     `json:"recurrenceRule"`
	ExclusionDates  []DateTime `json:"exclusionDates"`
	UID             string     `json:"uid"`
	StartOutputType string     `json:"startOutputType"`
}

// Occurrence is a single concrete meeting of an event.
type Occurrence struct {
	UID      string    `json:"uid"`
	Title    string    `json:"title"`
	Location string    `json:"location"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}
