package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "concordiacal/internal/log"
	"concordiacal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 500
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// Location interprets the floating event times. If nil, time.Local is used.
	Location *time.Location

	// MaxOccurrencesPerEvent is a safety cap. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and the UIDs whose
// expansion hit the cap.
type ExpandResult struct {
	Occurrences     []model.Occurrence
	TruncatedEvents []string
}

// Expand lists every concrete meeting of the given events, sorted by start.
// UNTIL covers the whole of its day and EXDATEs drop single meetings.
func Expand(events []model.EventDescriptor, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	all := make([]model.Occurrence, 0)
	var errs []error
	for _, ev := range events {
		occ, hitCap, err := expandEvent(ev, cfg)
		if err != nil {
			appLog.Error("expand: skipping event", err, "uid", ev.UID, "rrule", ev.RecurrenceRule)
			errs = append(errs, err)
			continue
		}
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Warn("expand: truncated occurrences for UID due to cap", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		}
		all = append(all, occ...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Start.Before(all[j].Start) })
	result.Occurrences = all
	return result, errors.Join(errs...)
}

func expandEvent(ev model.EventDescriptor, cfg ExpandConfig) ([]model.Occurrence, bool, error) {
	start := ev.Start.Time(cfg.Location)
	dur := ev.End.Time(cfg.Location).Sub(start)

	if ev.RecurrenceRule == "" {
		return []model.Occurrence{makeOccurrence(ev, start, dur)}, false, nil
	}

	opt, err := rrule.StrToROptionInLocation(ev.RecurrenceRule, cfg.Location)
	if err != nil {
		return nil, false, fmt.Errorf("parse rrule: %w", err)
	}
	opt.Dtstart = start
	if !opt.Until.IsZero() && isMidnight(opt.Until) {
		// A date-only UNTIL includes meetings later that day.
		opt.Until = opt.Until.AddDate(0, 0, 1).Add(-time.Second)
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, false, fmt.Errorf("build rrule: %w", err)
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExclusionDates {
		set.ExDate(ex.Time(cfg.Location))
	}

	times := set.All()
	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerEvent {
		times = times[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.Occurrence, 0, len(times))
	for _, t := range times {
		out = append(out, makeOccurrence(ev, t, dur))
	}
	return out, hitCap, nil
}

func makeOccurrence(ev model.EventDescriptor, start time.Time, dur time.Duration) model.Occurrence {
	return model.Occurrence{
		UID:      ev.UID,
		Title:    ev.Title,
		Location: ev.Location,
		Start:    start,
		End:      start.Add(dur),
	}
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}
