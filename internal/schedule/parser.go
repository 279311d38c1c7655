// Package schedule turns pasted schedule text into class records.
//
// Parsing is a left fold over normalized lines. The fold state is either
// empty or accumulating a single record; a record is emitted, with a fresh
// UID, the moment its days, timeslot, location and name are all known.
package schedule

import (
	"regexp"
	"strings"

	appLog "concordiacal/internal/log"
	"concordiacal/internal/model"
)

// DefaultCoursePattern matches a subject code and catalog number, e.g. "COMP 248".
const DefaultCoursePattern = `^[A-Za-z]{3,4} \d{3,4}`

// Rules are the layout-specific knobs of the parser.
type Rules struct {
	// Campuses are codes a location line ends with, e.g. "SGW".
	Campuses []string
	// CoursePattern recognizes a course-code line.
	CoursePattern *regexp.Regexp
	// UIDSuffix is appended to every generated id, e.g. "@concordiaCalendar.neeku.dev".
	UIDSuffix string
}

// DefaultRules returns the rules for the Concordia schedule export.
func DefaultRules() Rules {
	return Rules{
		Campuses:      []string{"SGW", "LOY", "TBA"},
		CoursePattern: regexp.MustCompile(DefaultCoursePattern),
		UIDSuffix:     "@concordiaCalendar.neeku.dev",
	}
}

// State is the fold accumulator. The zero value is the empty state.
type State struct {
	// nameParts holds course and component tokens in arrival order;
	// courseIdx is the slot of the course code once hasCourse is set.
	nameParts []string
	courseIdx int
	hasCourse bool

	days     []model.Weekday
	timeslot *model.Timeslot
	location string
}

// Empty reports whether no field has been accumulated.
func (s State) Empty() bool {
	return len(s.nameParts) == 0 && s.days == nil && s.timeslot == nil && s.location == ""
}

func (s State) name() string {
	return strings.Join(s.nameParts, " ")
}

func (s State) record() model.ClassRecord {
	return model.ClassRecord{
		Name:     s.name(),
		Days:     s.days,
		Timeslot: s.timeslot,
		Location: s.location,
	}
}

// apply folds one classified line into the state and returns the new state.
func (s State) apply(l Line) State {
	switch l.Kind {
	case KindDayTime:
		ts := l.Timeslot
		s.days = l.Days
		s.timeslot = &ts
	case KindLocation:
		s.location = l.Location
	case KindCourse:
		parts := append([]string(nil), s.nameParts...)
		if s.hasCourse {
			parts[s.courseIdx] = l.Course
		} else {
			s.courseIdx = len(parts)
			s.hasCourse = true
			parts = append(parts, l.Course)
		}
		s.nameParts = parts
	case KindComponent:
		s.nameParts = append(append([]string(nil), s.nameParts...), l.Component)
	}
	return s
}

// LineError records a line that could not be classified.
type LineError struct {
	Number int    `json:"line"`
	Text   string `json:"text"`
	Err    string `json:"error"`
}

// Report summarizes a parse so callers can judge its quality.
type Report struct {
	Lines      int                `json:"lines"`
	DayTime    int                `json:"daytime"`
	Location   int                `json:"location"`
	Course     int                `json:"course"`
	Component  int                `json:"component"`
	Ignored    int                `json:"ignored"`
	Records    int                `json:"records"`
	Errors     []LineError        `json:"errors,omitempty"`
	Incomplete *model.ClassRecord `json:"incomplete,omitempty"`
}

func (r *Report) count(k Kind) {
	switch k {
	case KindDayTime:
		r.DayTime++
	case KindLocation:
		r.Location++
	case KindCourse:
		r.Course++
	case KindComponent:
		r.Component++
	default:
		r.Ignored++
	}
}

// Parser converts schedule text into class records.
type Parser struct {
	rules Rules
	ids   IDProvider
}

// NewParser builds a parser. A nil ids falls back to NanoIDProvider.
func NewParser(rules Rules, ids IDProvider) *Parser {
	if ids == nil {
		ids = NanoIDProvider{}
	}
	return &Parser{rules: rules, ids: ids}
}

// Step folds one raw line into s. It returns the next state and, when the
// line completed a record, that record with its UID assigned. A line that
// fails to classify leaves s unchanged.
func (p *Parser) Step(s State, raw string) (State, *model.ClassRecord, Line, error) {
	l, err := p.rules.Classify(Normalize(raw))
	if err != nil {
		return s, nil, l, err
	}
	s = s.apply(l)

	rec := s.record()
	if !rec.Complete() {
		return s, nil, l, nil
	}
	rec.UID = p.ids.NewID() + p.rules.UIDSuffix
	return State{}, &rec, l, nil
}

// Parse returns every complete record in text. A trailing record that is
// missing a field is dropped.
func (p *Parser) Parse(text string) []model.ClassRecord {
	records, _ := p.ParseWithReport(text)
	return records
}

// ParseWithReport is Parse plus per-line statistics.
func (p *Parser) ParseWithReport(text string) ([]model.ClassRecord, Report) {
	var (
		state   State
		report  Report
		records = make([]model.ClassRecord, 0)
	)

	for i, raw := range strings.Split(text, "\n") {
		report.Lines++

		next, rec, l, err := p.Step(state, raw)
		if err != nil {
			appLog.Warn("skipping unparseable schedule line", "line", l.Text, "number", i+1, "err", err)
			report.Errors = append(report.Errors, LineError{Number: i + 1, Text: l.Text, Err: err.Error()})
			continue
		}
		report.count(l.Kind)
		state = next

		if rec != nil {
			appLog.Debug("class record parsed", "name", rec.Name, "uid", rec.UID)
			records = append(records, *rec)
		}
	}

	if !state.Empty() {
		partial := state.record()
		report.Incomplete = &partial
		appLog.Debug("dropping incomplete trailing record", "name", partial.Name)
	}
	report.Records = len(records)
	return records, report
}
