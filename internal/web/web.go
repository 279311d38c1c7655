package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/rs/cors"

	"concordiacal/internal/config"
	"concordiacal/internal/ics"
	appLog "concordiacal/internal/log"
	"concordiacal/internal/model"
	"concordiacal/internal/pipeline"
	"concordiacal/internal/schedule"
)

const maxRequestBytes = 4 << 20

// Server exposes the parse / project / export pipeline over HTTP for a
// front-end that collects pasted text and lets users toggle classes off.
type Server struct {
	cfg  *config.Config
	conv *pipeline.Converter
	mux  *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, conv *pipeline.Converter) *Server {
	s := &Server{
		cfg:  cfg,
		conv: conv,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	if s.cfg != nil && len(s.cfg.CORSOrigins) > 0 {
		appLog.Info("CORS enabled", "origins", strings.Join(s.cfg.CORSOrigins, ","))
		h = cors.New(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}).Handler(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="concordiacal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/parse", s.handleParse)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("/api/preview", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// pipelineRequest is the body accepted by every /api endpoint. Text is raw
// schedule text; Records are previously parsed (and possibly edited)
// records. When both are present, Records win.
type pipelineRequest struct {
	Text    string              `json:"text"`
	Records []model.ClassRecord `json:"records"`

	// Remove lists UIDs or course names to drop before projection.
	Remove []string `json:"remove"`

	// Name overrides the configured calendar name for downloads.
	Name string `json:"name"`
}

// decodeRequest accepts application/json or, for convenience, a
// text/plain body holding the schedule text.
func decodeRequest(w http.ResponseWriter, r *http.Request) (pipelineRequest, bool) {
	var req pipelineRequest
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return req, false
	}

	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		data, err := io.ReadAll(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read body")
			return req, false
		}
		req.Text = string(data)
		return req, true
	}

	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return req, false
	}
	return req, true
}

// records returns the request's records, parsing Text when none were sent.
func (s *Server) records(req pipelineRequest) []model.ClassRecord {
	records := req.Records
	if len(records) == 0 && strings.TrimSpace(req.Text) != "" {
		records = s.conv.Parser.Parse(req.Text)
	}
	pipeline.MarkRemoved(records, req.Remove)
	return records
}

// handleParse parses schedule text into class records.
//
// POST /api/parse   {"text": "..."}  or a text/plain body
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	records, report := s.conv.Parser.ParseWithReport(req.Text)
	pipeline.MarkRemoved(records, req.Remove)

	appLog.Info("api parse request", "lines", report.Lines, "records", len(records), "line_errors", len(report.Errors))
	writeJSON(w, http.StatusOK, parseResponse{Records: records, Report: report})
}

// handleEvents projects records (or text) into event descriptors.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	events := s.conv.Projector.Project(s.records(req))
	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

// handleCalendar answers with a downloadable .ics file.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	events := s.conv.Projector.Project(s.records(req))

	opts := s.conv.Write
	if name := strings.TrimSpace(req.Name); name != "" {
		opts.Name = name
	}
	var buf bytes.Buffer
	if err := ics.WriteCalendar(&buf, events, opts); err != nil {
		appLog.Error("api calendar: serialization failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName(opts.Name)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// downloadName turns a calendar name into a safe .ics file name.
func downloadName(name string) string {
	base := slug.Make(name)
	if base == "" {
		base = "schedule"
	}
	return base + ".ics"
}

// handlePreview lists every concrete meeting in the semester, in the
// configured display timezone.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	loc := resolveLocationOrLocal(s.cfg.Timezone)
	events := s.conv.Projector.Project(s.records(req))

	res, err := ics.Expand(events, ics.ExpandConfig{Location: loc})
	if err != nil {
		// Partial results are still useful; failures are already logged.
		appLog.Error("api preview: some events failed to expand", err)
	}
	writeJSON(w, http.StatusOK, previewResponse{
		Occurrences:     res.Occurrences,
		TruncatedUIDs:   res.TruncatedEvents,
		DisplayTimeZone: loc.String(),
	})
}

type parseResponse struct {
	Records []model.ClassRecord `json:"records"`
	Report  schedule.Report     `json:"report"`
}

type eventsResponse struct {
	Events []model.EventDescriptor `json:"events"`
}

type previewResponse struct {
	Occurrences     []model.Occurrence `json:"occurrences"`
	TruncatedUIDs   []string           `json:"truncated_uids,omitempty"`
	DisplayTimeZone string             `json:"display_timezone"`
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
