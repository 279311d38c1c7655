package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"concordiacal/internal/config"
	"concordiacal/internal/model"
	"concordiacal/internal/pipeline"
	"concordiacal/internal/schedule"
)

const sampleText = "COMP 248 - OOP I\nLecture (1)\nMoWe 10:00AM - 11:15AM\nSGW H 937 SGW\n"

func newTestServer(t *testing.T, mutate func(*config.Config)) http.Handler {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	if mutate != nil {
		mutate(cfg)
	}
	conv, err := pipeline.New(cfg, &schedule.SequenceIDProvider{Prefix: "w"})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return NewServer(cfg, conv).Handler()
}

func post(h http.Handler, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	newTestServer(t, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("health = %d %q", w.Code, w.Body.String())
	}
}

func TestParseTextPlain(t *testing.T) {
	w := post(newTestServer(t, nil), "/api/parse", "text/plain; charset=utf-8", sampleText)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp parseResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Records) != 1 {
		t.Fatalf("records = %+v", resp.Records)
	}
	rec := resp.Records[0]
	if rec.UID != "w-1@concordiaCalendar.neeku.dev" || len(rec.Days) != 2 || rec.Days[0] != model.Monday {
		t.Errorf("record = %+v", rec)
	}
	if resp.Report.Lines != 5 || resp.Report.Records != 1 {
		t.Errorf("report = %+v", resp.Report)
	}
}

func TestEventsFromEditedRecords(t *testing.T) {
	body := `{"records": [
		{"name": "COMP 248", "days": ["Tuesday"], "timeslot": {"start": {"hour": 13, "minute": 15}, "end": {"hour": 14, "minute": 30}}, "location": "SGW", "uid": "a"},
		{"name": "SOEN 287", "days": ["Fr"], "timeslot": {"start": {"hour": 9, "minute": 0}, "end": {"hour": 10, "minute": 0}}, "location": "LOY", "uid": "b", "removed": true}
	]}`
	w := post(newTestServer(t, nil), "/api/events", "application/json", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp eventsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 1 {
		t.Fatalf("events = %+v", resp.Events)
	}
	ev := resp.Events[0]
	if ev.UID != "a" || ev.Start.Day != 3 || ev.Start.Hour != 13 || ev.StartOutputType != "local" {
		t.Errorf("event = %+v", ev)
	}
	if ev.RecurrenceRule != "FREQ=WEEKLY;BYDAY=TU;INTERVAL=1;UNTIL=20241203" {
		t.Errorf("rule = %q", ev.RecurrenceRule)
	}
}

func TestCalendarDownload(t *testing.T) {
	w := post(newTestServer(t, nil), "/api/calendar.ics", "application/json", `{"text": "`+strings.ReplaceAll(sampleText, "\n", `\n`)+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "BEGIN:VEVENT") || !strings.Contains(body, "UID:w-1@concordiaCalendar.neeku.dev") {
		t.Errorf("calendar body = %s", body)
	}
}

func TestCalendarRemoveByName(t *testing.T) {
	w := post(newTestServer(t, nil), "/api/calendar.ics", "application/json",
		`{"text": "`+strings.ReplaceAll(sampleText, "\n", `\n`)+`", "remove": ["COMP 248  Lecture"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "BEGIN:VEVENT") {
		t.Error("removed class still exported")
	}
}

func TestPreview(t *testing.T) {
	w := post(newTestServer(t, nil), "/api/preview", "text/plain", sampleText)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp previewResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Occurrences) != 24 || resp.DisplayTimeZone != "UTC" {
		t.Errorf("occurrences = %d, tz = %q", len(resp.Occurrences), resp.DisplayTimeZone)
	}
}

func TestMethodAndBodyErrors(t *testing.T) {
	h := newTestServer(t, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/parse", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", w.Code)
	}

	w = post(h, "/api/events", "application/json", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error"`) {
		t.Errorf("error body = %s", w.Body.String())
	}
}

func TestBasicAuth(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}
	})

	w := post(h, "/api/parse", "text/plain", sampleText)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader(sampleText))
	req.Header.Set("Content-Type", "text/plain")
	req.SetBasicAuth("u", "p")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health behind auth = %d, want 200", w.Code)
	}
}

func TestCalendarNameAndDownloadFile(t *testing.T) {
	h := newTestServer(t, nil)

	w := post(h, "/api/calendar.ics", "text/plain", sampleText)
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="concordia-schedule.ics"` {
		t.Errorf("default disposition = %q", got)
	}
	if !strings.Contains(w.Body.String(), "X-WR-CALNAME:Concordia Schedule") {
		t.Errorf("calendar name missing:\n%s", w.Body.String())
	}

	w = post(h, "/api/calendar.ics", "application/json", `{"text": "", "name": "Fall 2024 Classes"}`)
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="fall-2024-classes.ics"` {
		t.Errorf("named disposition = %q", got)
	}
}

func TestDownloadNameFallback(t *testing.T) {
	if got := downloadName("  "); got != "schedule.ics" {
		t.Errorf("downloadName = %q", got)
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.CORSOrigins = []string{"http://localhost:5173"}
		c.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/parse", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("preflight allow origin = %q (status %d)", got, w.Code)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/parse", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin allowed: %q", got)
	}
}
