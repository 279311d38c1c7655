// Package calendar holds the clock and date arithmetic used to place weekly
// class meetings inside a semester.
package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"concordiacal/internal/model"
)

var (
	ErrMalformedTime = errors.New("malformed time")
	ErrNoDays        = errors.New("no class days")
)

// clockPattern matches "H:MM" with an optional am/pm suffix. Trailing text
// after the match is ignored.
var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])?`)

// ParseClock parses a 12-hour clock string such as "1:15pm" or "10:00AM"
// into 24-hour form. Without a suffix the hour is taken as is.
func ParseClock(s string) (model.Clock, error) {
	s = strings.TrimSpace(s)
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return model.Clock{}, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])

	switch strings.ToLower(m[3]) {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return model.Clock{Hour: hour, Minute: minute}, nil
}

// ParseTimeslot parses a range already split on " - " into start and end.
// Parts after the second are ignored.
func ParseTimeslot(raw []string) (model.Timeslot, error) {
	if len(raw) < 2 {
		return model.Timeslot{}, fmt.Errorf("%w: expected start and end, got %d part(s)", ErrMalformedTime, len(raw))
	}
	start, err := ParseClock(raw[0])
	if err != nil {
		return model.Timeslot{}, fmt.Errorf("timeslot start: %w", err)
	}
	end, err := ParseClock(raw[1])
	if err != nil {
		return model.Timeslot{}, fmt.Errorf("timeslot end: %w", err)
	}
	return model.Timeslot{Start: start, End: end}, nil
}

// NextOccurrence returns the first date on or after ref whose weekday is one
// of days.
func NextOccurrence(ref model.Date, days []model.Weekday) (model.Date, error) {
	if len(days) == 0 {
		return model.Date{}, ErrNoDays
	}
	want := make(map[string]bool, len(days))
	for _, d := range days {
		want[d.Name()] = true
	}

	candidate := ref.Time(time.UTC)
	for i := 0; i < 7; i++ {
		// time.Weekday names are English regardless of the process locale.
		if want[candidate.Weekday().String()] {
			return model.DateOf(candidate), nil
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return model.Date{}, fmt.Errorf("%w: none of %v is a valid weekday", ErrNoDays, days)
}

// BreakDates lists every day in [startDay, endDayExclusive) of the given
// month. The range must stay inside one month; days past the month end are
// emitted as given, without rollover.
func BreakDates(year int, month time.Month, startDay, endDayExclusive int) []model.Date {
	if endDayExclusive <= startDay {
		return nil
	}
	out := make([]model.Date, 0, endDayExclusive-startDay)
	for day := startDay; day < endDayExclusive; day++ {
		out = append(out, model.Date{Year: year, Month: month, Day: day})
	}
	return out
}
