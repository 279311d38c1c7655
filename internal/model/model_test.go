package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"concordiacal/internal/model"
)

func TestWeekdayTableIsBidirectional(t *testing.T) {
	for d := model.Sunday; d <= model.Saturday; d++ {
		byCode, err := model.WeekdayFromCode(d.Code())
		if err != nil || byCode != d {
			t.Errorf("WeekdayFromCode(%q) = %v, %v; want %v", d.Code(), byCode, err, d)
		}
		byName, err := model.WeekdayFromName(d.Name())
		if err != nil || byName != d {
			t.Errorf("WeekdayFromName(%q) = %v, %v; want %v", d.Name(), byName, err, d)
		}
		if d.TimeWeekday().String() != d.Name() {
			t.Errorf("%v.TimeWeekday() = %v", d, d.TimeWeekday())
		}
	}
}

func TestWeekdayUnknown(t *testing.T) {
	if _, err := model.WeekdayFromCode("Xy"); !errors.Is(err, model.ErrUnknownWeekday) {
		t.Errorf("WeekdayFromCode(Xy) err = %v, want ErrUnknownWeekday", err)
	}
	if _, err := model.WeekdayFromName("Funday"); !errors.Is(err, model.ErrUnknownWeekday) {
		t.Errorf("WeekdayFromName(Funday) err = %v, want ErrUnknownWeekday", err)
	}
}

func TestWeekdayICSCode(t *testing.T) {
	if got := model.Thursday.ICSCode(); got != "TH" {
		t.Errorf("Thursday.ICSCode() = %q, want TH", got)
	}
}

func TestWeekdayJSON(t *testing.T) {
	data, err := json.Marshal([]model.Weekday{model.Monday, model.Friday})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `["Monday","Friday"]` {
		t.Errorf("Marshal = %s", data)
	}

	var days []model.Weekday
	if err := json.Unmarshal([]byte(`["Tu","Thursday"]`), &days); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(days) != 2 || days[0] != model.Tuesday || days[1] != model.Thursday {
		t.Errorf("Unmarshal = %v", days)
	}
}

func TestDateFormatting(t *testing.T) {
	d := model.Date{Year: 2024, Month: time.December, Day: 3}
	if got := d.Compact(); got != "20241203" {
		t.Errorf("Compact() = %q", got)
	}
	dt := d.At(model.Clock{Hour: 9, Minute: 5})
	if got := dt.Compact(); got != "20241203T090500" {
		t.Errorf("DateTime.Compact() = %q", got)
	}
	if got := dt.String(); got != "2024-12-03 09:05" {
		t.Errorf("DateTime.String() = %q", got)
	}
}

func TestClassRecordComplete(t *testing.T) {
	full := model.ClassRecord{
		Name:     "COMP 248",
		Days:     []model.Weekday{model.Monday},
		Timeslot: &model.Timeslot{},
		Location: "SGW",
	}
	if !full.Complete() {
		t.Error("fully populated record should be complete")
	}
	missing := full
	missing.Location = ""
	if missing.Complete() {
		t.Error("record without location should not be complete")
	}
}
