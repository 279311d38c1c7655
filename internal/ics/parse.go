package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "concordiacal/internal/log"
	"concordiacal/internal/model"
)

// ParseCalendar reads an iCalendar stream back into event descriptors.
// VEVENTs without a UID or DTSTART are logged and skipped.
func ParseCalendar(r io.Reader) ([]model.EventDescriptor, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	events := make([]model.EventDescriptor, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "uid", ev.UID)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (model.EventDescriptor, error) {
	var out model.EventDescriptor

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := parseICSTime(startProp.Value)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	out.End = start
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		if end, err := parseICSTime(p.Value); err == nil {
			out.End = end
		}
	}

	out.StartOutputType = model.StartOutputLocal
	if strings.HasSuffix(startProp.Value, "Z") {
		out.StartOutputType = "utc"
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RecurrenceRule = p.Value
	}

	// EXDATE can appear multiple times, each possibly a comma list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				out.ExclusionDates = append(out.ExclusionDates, t)
			}
		}
	}

	return out, nil
}

// parseICSTime parses a DATE, floating DATE-TIME or UTC DATE-TIME value
// into its wall-clock fields.
func parseICSTime(v string) (model.DateTime, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return model.DateTime{}, errors.New("empty time value")
	}

	layout := "20060102"
	switch {
	case strings.HasSuffix(v, "Z"):
		layout = "20060102T150405Z"
	case strings.Contains(v, "T"):
		layout = "20060102T150405"
	}
	t, err := time.Parse(layout, v)
	if err != nil {
		return model.DateTime{}, err
	}
	return model.DateOf(t).At(model.Clock{Hour: t.Hour(), Minute: t.Minute()}), nil
}
