package ics

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "concordiacal/internal/log"
	"concordiacal/internal/model"
)

// DefaultProductID is used when WriteOptions.ProductID is empty.
const DefaultProductID = "-//concordiacal//Schedule Export//EN"

// WriteOptions tunes calendar serialization.
type WriteOptions struct {
	ProductID string
	// Name, when set, is written as X-WR-CALNAME.
	Name string
	// Now stamps DTSTAMP. Defaults to time.Now.
	Now func() time.Time
}

// BuildCalendar converts descriptors into a VCALENDAR. Times are written in
// floating form (no TZID, no Z) so they read as local time wherever the
// file is imported.
func BuildCalendar(events []model.EventDescriptor, opts WriteOptions) *ical.Calendar {
	if opts.ProductID == "" {
		opts.ProductID = DefaultProductID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	stamp := opts.Now().UTC()

	cal := ical.NewCalendar()
	cal.SetProductId(opts.ProductID)
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, ev := range events {
		ve := cal.AddEvent(ev.UID)
		ve.SetDtStampTime(stamp)
		ve.SetSummary(ev.Title)
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		ve.SetProperty(ical.ComponentPropertyDtStart, ev.Start.Compact())
		ve.SetProperty(ical.ComponentPropertyDtEnd, ev.End.Compact())
		if ev.RecurrenceRule != "" {
			if err := ValidateRule(ev.RecurrenceRule); err != nil {
				appLog.Error("writing event with unparseable RRULE", err, "uid", ev.UID)
			}
			ve.AddProperty(ical.ComponentPropertyRrule, ev.RecurrenceRule)
		}
		for _, ex := range ev.ExclusionDates {
			ve.AddProperty(ical.ComponentPropertyExdate, ex.Compact())
		}
	}
	return cal
}

// WriteCalendar serializes events as an iCalendar stream to w.
func WriteCalendar(w io.Writer, events []model.EventDescriptor, opts WriteOptions) error {
	cal := BuildCalendar(events, opts)
	_, err := io.WriteString(w, cal.Serialize())
	if err != nil {
		return err
	}
	appLog.Debug("calendar written", "event_count", len(events))
	return nil
}
