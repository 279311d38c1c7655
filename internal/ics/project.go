package ics

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"concordiacal/internal/calendar"
	appLog "concordiacal/internal/log"
	"concordiacal/internal/model"
)

// Break is a run of days inside one month whose meetings are excluded.
// EndDayExclusive is the first day classes resume.
type Break struct {
	Year            int
	Month           time.Month
	StartDay        int
	EndDayExclusive int
}

// Dates lists every day of the break.
func (b Break) Dates() []model.Date {
	return calendar.BreakDates(b.Year, b.Month, b.StartDay, b.EndDayExclusive)
}

// Term is the projection window of one semester.
type Term struct {
	SemesterStart model.Date
	// SemesterEnd is the inclusive UNTIL date of every recurrence.
	SemesterEnd model.Date
	// Break is optional.
	Break *Break
}

// Projector turns class records into event descriptors for one term.
type Projector struct {
	term Term
}

func NewProjector(term Term) *Projector {
	return &Projector{term: term}
}

// Project builds one descriptor per record that is not marked removed.
// Records without days or timeslot cannot be placed and are logged and
// skipped.
func (p *Projector) Project(records []model.ClassRecord) []model.EventDescriptor {
	out := make([]model.EventDescriptor, 0, len(records))
	for _, rec := range records {
		if rec.Removed {
			continue
		}
		desc, err := p.ProjectOne(rec)
		if err != nil {
			appLog.Error("skipping class that cannot be projected", err, "name", rec.Name, "uid", rec.UID)
			continue
		}
		out = append(out, desc)
	}
	return out
}

// ProjectOne builds the descriptor for a single record, ignoring Removed.
func (p *Projector) ProjectOne(rec model.ClassRecord) (model.EventDescriptor, error) {
	if rec.Timeslot == nil {
		return model.EventDescriptor{}, fmt.Errorf("class %q has no timeslot", rec.Name)
	}
	first, err := calendar.NextOccurrence(p.term.SemesterStart, rec.Days)
	if err != nil {
		return model.EventDescriptor{}, fmt.Errorf("class %q: %w", rec.Name, err)
	}

	var exdates []model.DateTime
	if p.term.Break != nil {
		for _, d := range p.term.Break.Dates() {
			exdates = append(exdates, d.At(rec.Timeslot.Start))
		}
	}

	return model.EventDescriptor{
		Title:           rec.Name,
		Start:           first.At(rec.Timeslot.Start),
		End:             first.At(rec.Timeslot.End),
		Location:        rec.Location,
		RecurrenceRule:  RecurrenceRule(rec.Days, p.term.SemesterEnd),
		ExclusionDates:  exdates,
		UID:             rec.UID,
		StartOutputType: model.StartOutputLocal,
	}, nil
}

// RecurrenceRule renders a weekly rule over days, bounded by the inclusive
// until date, e.g. "FREQ=WEEKLY;BYDAY=MO,WE;INTERVAL=1;UNTIL=20241203".
func RecurrenceRule(days []model.Weekday, until model.Date) string {
	codes := make([]string, 0, len(days))
	for _, d := range days {
		codes = append(codes, d.ICSCode())
	}
	return fmt.Sprintf("FREQ=WEEKLY;BYDAY=%s;INTERVAL=1;UNTIL=%s", strings.Join(codes, ","), until.Compact())
}

// ValidateRule checks that rule is an RRULE value rrule-go accepts.
func ValidateRule(rule string) error {
	if _, err := rrule.StrToROption(rule); err != nil {
		return fmt.Errorf("invalid recurrence rule %q: %w", rule, err)
	}
	return nil
}
