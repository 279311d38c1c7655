package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"concordiacal/internal/calendar"
	"concordiacal/internal/model"
)

// Kind is the role a normalized line plays in a class record.
type Kind int

const (
	KindIgnored Kind = iota
	KindDayTime
	KindLocation
	KindCourse
	KindComponent
)

func (k Kind) String() string {
	switch k {
	case KindDayTime:
		return "daytime"
	case KindLocation:
		return "location"
	case KindCourse:
		return "course"
	case KindComponent:
		return "component"
	default:
		return "ignored"
	}
}

var (
	// The first "Schedule" or "Class" token is page chrome from the export.
	chromeToken     = regexp.MustCompile(`Schedule|Class`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	dayToken        = regexp.MustCompile(`[A-Z][a-z]?`)
	componentMarker = regexp.MustCompile(`\(.*\)`)
)

// Normalize strips the first "Schedule"/"Class" token, collapses whitespace
// runs into single spaces and trims the result.
func Normalize(line string) string {
	if loc := chromeToken.FindStringIndex(line); loc != nil {
		line = line[:loc[0]] + line[loc[1]:]
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(line, " "))
}

// Line is a classified, normalized schedule line. Only the fields matching
// Kind are set.
type Line struct {
	Kind      Kind
	Text      string
	Days      []model.Weekday
	Timeslot  model.Timeslot
	Location  string
	Course    string
	Component string
}

// Classify assigns a normalized line to the first matching role:
// day/time, location, course code, component, or ignored.
func (r Rules) Classify(line string) (Line, error) {
	out := Line{Kind: KindIgnored, Text: line}

	switch {
	case startsWithDayCode(line):
		days, err := parseDays(line)
		if err != nil {
			return out, err
		}
		ts, err := parseLineTimeslot(line)
		if err != nil {
			return out, err
		}
		out.Kind = KindDayTime
		out.Days = days
		out.Timeslot = ts

	case r.isLocation(line):
		out.Kind = KindLocation
		out.Location = line

	case r.CoursePattern != nil && r.CoursePattern.MatchString(line):
		out.Kind = KindCourse
		// Not trimmed: "COMP 248 - Title" keeps the space before the dash.
		out.Course, _, _ = strings.Cut(line, "-")

	case componentMarker.MatchString(line):
		out.Kind = KindComponent
		out.Component, _, _ = strings.Cut(line, " ")
	}

	return out, nil
}

func startsWithDayCode(line string) bool {
	for _, code := range model.WeekdayCodes() {
		if strings.HasPrefix(line, code) {
			return true
		}
	}
	return false
}

// parseDays reads "MoWeFr" style codes from the first space-delimited token.
func parseDays(line string) ([]model.Weekday, error) {
	head, _, _ := strings.Cut(line, " ")
	codes := dayToken.FindAllString(head, -1)
	if len(codes) == 0 {
		return nil, fmt.Errorf("no day codes in %q", head)
	}
	days := make([]model.Weekday, 0, len(codes))
	for _, code := range codes {
		d, err := model.WeekdayFromCode(code)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, nil
}

func parseLineTimeslot(line string) (model.Timeslot, error) {
	i := strings.IndexAny(line, "0123456789")
	if i < 0 {
		return model.Timeslot{}, errors.New("no time range on day line")
	}
	return calendar.ParseTimeslot(strings.Split(line[i:], " - "))
}

func (r Rules) isLocation(line string) bool {
	for _, campus := range r.Campuses {
		if campus != "" && strings.HasSuffix(line, campus) {
			return true
		}
	}
	return false
}
