package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"concordiacal/internal/ics"
	"concordiacal/internal/model"
	"concordiacal/internal/schedule"
)

// SemesterConfig is the window weekly recurrences are projected into.
// Dates use the "2006-01-02" layout.
type SemesterConfig struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// BreakConfig is a contiguous break inside one month. End is exclusive.
type BreakConfig struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// WatchConfig drives the periodic re-conversion mode.
type WatchConfig struct {
	// Input is a file path or http(s) URL holding schedule text.
	Input string `yaml:"input" json:"input"`
	// Output is the .ics path rewritten on each run.
	Output string `yaml:"output" json:"output"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Timezone is the IANA zone used when previewing meetings. Exported
	// events stay floating local time regardless.
	Timezone string `yaml:"timezone" json:"timezone"`

	Semester    SemesterConfig `yaml:"semester" json:"semester"`
	ReadingWeek BreakConfig    `yaml:"reading_week" json:"reading_week"`

	// Campuses are the codes a location line ends with.
	Campuses []string `yaml:"campuses" json:"campuses"`

	// CoursePattern is the regular expression recognizing a course-code line.
	CoursePattern string `yaml:"course_pattern" json:"course_pattern"`

	// UIDDomain completes every event UID as <id>@concordiaCalendar.<domain>.
	UIDDomain string `yaml:"uid_domain" json:"uid_domain"`

	// ProductID is written as the calendar PRODID.
	ProductID string `yaml:"product_id" json:"product_id"`

	// CalendarName is written as X-WR-CALNAME and names downloaded files.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	// RefreshCron is the cron schedule for watch mode (e.g. "*/30 * * * *").
	RefreshCron string      `yaml:"refresh" json:"refresh"`
	Watch       WatchConfig `yaml:"watch" json:"watch"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// CORSOrigins lists browser origins allowed to call the API. Empty
	// disables CORS headers.
	CORSOrigins []string `yaml:"cors_origins,omitempty" json:"cors_origins,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "America/Montreal"
	defaultUIDDomain   = "neeku.dev"
	defaultProductID   = "-//concordiacal//Schedule Export//EN"
	defaultRefreshCron = "0 * * * *"
	defaultCalName     = "Concordia Schedule"
)

// DefaultConfig returns the Fall 2024 configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        defaultListen,
		LogLevel:      "info",
		Timezone:      defaultTimezone,
		Semester:      SemesterConfig{Start: "2024-09-03", End: "2024-12-03"},
		ReadingWeek:   BreakConfig{Start: "2024-10-14", End: "2024-10-18"},
		Campuses:      []string{"SGW", "LOY", "TBA"},
		CoursePattern: schedule.DefaultCoursePattern,
		UIDDomain:     defaultUIDDomain,
		ProductID:     defaultProductID,
		CalendarName:  defaultCalName,
		RefreshCron:   defaultRefreshCron,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.Semester.Start == "" {
		c.Semester.Start = def.Semester.Start
	}
	if c.Semester.End == "" {
		c.Semester.End = def.Semester.End
	}
	if c.ReadingWeek.Start == "" && c.ReadingWeek.End == "" {
		c.ReadingWeek = def.ReadingWeek
	}
	if len(c.Campuses) == 0 {
		c.Campuses = def.Campuses
	}
	if c.CoursePattern == "" {
		c.CoursePattern = def.CoursePattern
	}
	if c.UIDDomain == "" {
		c.UIDDomain = def.UIDDomain
	}
	if c.ProductID == "" {
		c.ProductID = def.ProductID
	}
	if c.CalendarName == "" {
		c.CalendarName = def.CalendarName
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
}

// Validate checks that dates parse, the semester is ordered, the reading
// week sits inside a single month and the course pattern compiles.
func (c *Config) Validate() error {
	if _, err := c.Term(); err != nil {
		return err
	}
	if _, err := c.Rules(); err != nil {
		return err
	}
	return nil
}

// Term builds the projection window from the semester and reading week.
func (c *Config) Term() (ics.Term, error) {
	start, err := model.ParseDate(c.Semester.Start)
	if err != nil {
		return ics.Term{}, fmt.Errorf("semester.start: %w", err)
	}
	end, err := model.ParseDate(c.Semester.End)
	if err != nil {
		return ics.Term{}, fmt.Errorf("semester.end: %w", err)
	}
	if end.Time(time.UTC).Before(start.Time(time.UTC)) {
		return ics.Term{}, fmt.Errorf("semester.end %s is before semester.start %s", c.Semester.End, c.Semester.Start)
	}

	term := ics.Term{SemesterStart: start, SemesterEnd: end}
	if c.ReadingWeek.Start == "" && c.ReadingWeek.End == "" {
		return term, nil
	}

	bStart, err := model.ParseDate(c.ReadingWeek.Start)
	if err != nil {
		return ics.Term{}, fmt.Errorf("reading_week.start: %w", err)
	}
	bEnd, err := model.ParseDate(c.ReadingWeek.End)
	if err != nil {
		return ics.Term{}, fmt.Errorf("reading_week.end: %w", err)
	}
	endExcl, err := breakEndDay(bStart, bEnd)
	if err != nil {
		return ics.Term{}, err
	}
	term.Break = &ics.Break{
		Year:            bStart.Year,
		Month:           bStart.Month,
		StartDay:        bStart.Day,
		EndDayExclusive: endExcl,
	}
	return term, nil
}

// breakEndDay maps the exclusive reading-week end onto a day of the start
// month. An end on the 1st of the following month covers the break through
// the start month's last day.
func breakEndDay(start, end model.Date) (int, error) {
	if end.Year == start.Year && end.Month == start.Month {
		if end.Day < start.Day {
			return 0, fmt.Errorf("reading_week.end %s is before reading_week.start %s", end, start)
		}
		return end.Day, nil
	}
	// Day 0 of the next month is the last day of this one.
	last := time.Date(start.Year, start.Month+1, 0, 0, 0, 0, 0, time.UTC)
	if end.Day == 1 && model.DateOf(last.AddDate(0, 0, 1)) == end {
		return last.Day() + 1, nil
	}
	return 0, errors.New("reading_week must start and end in the same month (end may be the 1st of the next month)")
}

// Rules builds the parser rules.
func (c *Config) Rules() (schedule.Rules, error) {
	re, err := regexp.Compile(c.CoursePattern)
	if err != nil {
		return schedule.Rules{}, fmt.Errorf("course_pattern: %w", err)
	}
	campuses := make([]string, 0, len(c.Campuses))
	for _, campus := range c.Campuses {
		if campus = strings.TrimSpace(campus); campus != "" {
			campuses = append(campuses, campus)
		}
	}
	return schedule.Rules{
		Campuses:      campuses,
		CoursePattern: re,
		UIDSuffix:     "@concordiaCalendar." + c.UIDDomain,
	}, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, with 0600
// permissions on the final file.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".concordiacal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
