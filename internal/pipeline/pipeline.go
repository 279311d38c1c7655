// Package pipeline wires parsing, projection and calendar output together.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"concordiacal/internal/config"
	"concordiacal/internal/ics"
	appLog "concordiacal/internal/log"
	"concordiacal/internal/model"
	"concordiacal/internal/schedule"
	"concordiacal/internal/source"
)

// Converter turns schedule text into calendar events for one configured term.
type Converter struct {
	Parser    *schedule.Parser
	Projector *ics.Projector
	Write     ics.WriteOptions
}

// New builds a Converter from cfg. A nil ids uses nanoids.
func New(cfg *config.Config, ids schedule.IDProvider) (*Converter, error) {
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	term, err := cfg.Term()
	if err != nil {
		return nil, err
	}
	return &Converter{
		Parser:    schedule.NewParser(rules, ids),
		Projector: ics.NewProjector(term),
		Write:     ics.WriteOptions{ProductID: cfg.ProductID, Name: cfg.CalendarName},
	}, nil
}

// Result is everything one conversion produced.
type Result struct {
	Records []model.ClassRecord     `json:"records"`
	Report  schedule.Report         `json:"report"`
	Events  []model.EventDescriptor `json:"events"`
}

// Convert parses text, marks records matching remove as removed, and
// projects the rest.
func (c *Converter) Convert(text string, remove []string) Result {
	records, report := c.Parser.ParseWithReport(text)
	MarkRemoved(records, remove)
	events := c.Projector.Project(records)

	appLog.Info("schedule converted",
		"lines", report.Lines,
		"records", len(records),
		"events", len(events),
		"line_errors", len(report.Errors),
	)
	return Result{Records: records, Report: report, Events: events}
}

// MarkRemoved sets Removed on every record whose UID or trimmed name
// matches one of keys. It returns how many records it marked.
func MarkRemoved(records []model.ClassRecord, keys []string) int {
	if len(keys) == 0 {
		return 0
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			want[k] = true
		}
	}
	n := 0
	for i := range records {
		if want[records[i].UID] || want[strings.TrimSpace(records[i].Name)] {
			records[i].Removed = true
			n++
		}
	}
	return n
}

// Calendar renders events as iCalendar bytes.
func (c *Converter) Calendar(events []model.EventDescriptor) ([]byte, error) {
	var buf bytes.Buffer
	if err := ics.WriteCalendar(&buf, events, c.Write); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run loads ref, converts it and writes the calendar to output ("-" for
// stdout). It returns the conversion result; when the source reports the
// input unchanged, nothing is written and the result is empty.
func (c *Converter) Run(ctx context.Context, loader *source.Loader, ref, output string, remove []string) (Result, error) {
	in, err := loader.Load(ctx, ref)
	if err != nil {
		return Result{}, err
	}
	if in.Unchanged {
		appLog.Info("input unchanged; skipping conversion", "input", ref)
		return Result{}, nil
	}

	res := c.Convert(in.Text, remove)
	data, err := c.Calendar(res.Events)
	if err != nil {
		return res, err
	}
	if err := WriteOutput(output, data); err != nil {
		return res, err
	}
	appLog.Info("calendar written", "output", output, "events", len(res.Events))
	return res, nil
}

// WriteOutput writes data to path via temp file + rename, or to stdout
// when path is "-".
func WriteOutput(path string, data []byte) error {
	if path == "" {
		return errors.New("output path is empty")
	}
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".concordiacal-*.ics.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
