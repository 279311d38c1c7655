package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"concordiacal/internal/config"
	"concordiacal/internal/model"
	"concordiacal/internal/pipeline"
	"concordiacal/internal/schedule"
)

func TestSplitList(t *testing.T) {
	got := splitList(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("splitList = %q", got)
	}
	if splitList("") != nil {
		t.Error("splitList(\"\") should be nil")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "x", "y"); got != "x" {
		t.Errorf("firstNonEmpty = %q", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("firstNonEmpty = %q", got)
	}
}

func TestInspectPrintsEvents(t *testing.T) {
	conv, err := pipeline.New(config.DefaultConfig(), &schedule.SequenceIDProvider{Prefix: "i"})
	if err != nil {
		t.Fatal(err)
	}
	res := conv.Convert("COMP 248 - OOP I\nLecture (1)\nMoWe 10:00AM - 11:15AM\nSGW H 937 SGW", nil)
	data, err := conv.Calendar(res.Events)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "schedule.ics")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := inspect(path, &out); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var events []model.EventDescriptor
	if err := json.Unmarshal(out.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if len(events) != 1 || events[0].UID != "i-1@concordiaCalendar.neeku.dev" {
		t.Errorf("events = %+v", events)
	}
	if len(events[0].ExclusionDates) != 4 {
		t.Errorf("exdates = %d, want 4", len(events[0].ExclusionDates))
	}
}

func TestInspectMissingFile(t *testing.T) {
	if err := inspect(filepath.Join(t.TempDir(), "nope.ics"), &bytes.Buffer{}); err == nil {
		t.Fatal("expected error")
	}
}
