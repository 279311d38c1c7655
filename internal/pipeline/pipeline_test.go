package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"concordiacal/internal/config"
	"concordiacal/internal/model"
	"concordiacal/internal/pipeline"
	"concordiacal/internal/schedule"
	"concordiacal/internal/source"
)

const sample = `COMP 248 - Object-Oriented Programming I
Lecture (2201)
MoWe 10:00AM - 11:15AM
SGW H 937 SGW
SOEN 287 - Web Programming
Fr 12:00PM - 12:50PM
LOY CC 101 LOY
`

func newConverter(t *testing.T) *pipeline.Converter {
	t.Helper()
	c, err := pipeline.New(config.DefaultConfig(), &schedule.SequenceIDProvider{Prefix: "t"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestConvert(t *testing.T) {
	res := newConverter(t).Convert(sample, nil)
	if len(res.Records) != 2 || len(res.Events) != 2 {
		t.Fatalf("records=%d events=%d, want 2/2", len(res.Records), len(res.Events))
	}
	if res.Events[1].UID != "t-2@concordiaCalendar.neeku.dev" {
		t.Errorf("uid = %q", res.Events[1].UID)
	}
}

func TestConvertRemovesByNameOrUID(t *testing.T) {
	res := newConverter(t).Convert(sample, []string{"SOEN 287", "  "})
	if len(res.Records) != 2 {
		t.Fatalf("records = %d, want 2 (removed records are kept, flagged)", len(res.Records))
	}
	if !res.Records[1].Removed || res.Records[0].Removed {
		t.Errorf("removed flags = %v/%v", res.Records[0].Removed, res.Records[1].Removed)
	}
	if len(res.Events) != 1 || !strings.HasPrefix(res.Events[0].Title, "COMP 248") {
		t.Errorf("events = %+v", res.Events)
	}
}

func TestMarkRemoved(t *testing.T) {
	records := []model.ClassRecord{{Name: "A ", UID: "1"}, {Name: "B", UID: "2"}}
	if n := pipeline.MarkRemoved(records, []string{"2", "A"}); n != 2 {
		t.Errorf("MarkRemoved = %d, want 2", n)
	}
	if n := pipeline.MarkRemoved(records, nil); n != 0 {
		t.Errorf("MarkRemoved(nil) = %d", n)
	}
}

func TestRunWritesCalendar(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "schedule.txt")
	out := filepath.Join(dir, "out", "schedule.ics")
	if err := os.WriteFile(in, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := newConverter(t).Run(context.Background(), source.NewLoader(nil, nil), in, out, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Events) != 2 {
		t.Errorf("events = %d", len(res.Events))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got := strings.Count(string(data), "BEGIN:VEVENT"); got != 2 {
		t.Errorf("VEVENT count = %d, want 2", got)
	}
}
