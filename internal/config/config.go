package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"cyclecal/internal/model"
	"cyclecal/internal/registry"
)

// FeedConfig is one subscribed holiday/exception ICS calendar.
type FeedConfig struct {
	URL  string `yaml:"url" json:"url" validate:"required,url"`
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	// Type is the day type applied to every date the feed covers.
	Type model.DayType `yaml:"type" json:"type" validate:"oneof=Holiday PD Exam"`
	// IncludeTimed also marks the dates of timed events.
	IncludeTimed bool `yaml:"include_timed,omitempty" json:"include_timed"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is one cycle-calendar project: server settings plus everything the
// generator reads.
type Config struct {
	// Listen is the HTTP listen address of `cyclecal serve`.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// ExportName is the file name offered for the .ics download.
	ExportName string `yaml:"export_name" json:"export_name"`

	// CacheDir holds cached feed bodies.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// RefreshCron is the cron spec for re-importing feeds while serving.
	// "off" disables periodic refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Calendar     model.CycleConfiguration  `yaml:"calendar" json:"calendar"`
	BellSchedule []model.BellPeriod        `yaml:"bell_schedule" json:"bell_schedule"`
	Rooms        []string                  `yaml:"rooms" json:"rooms"`
	Exceptions   []registry.ExceptionEntry `yaml:"exceptions" json:"exceptions"`
	Overrides    []registry.OverrideEntry  `yaml:"overrides" json:"overrides"`
	Classes      []registry.ClassEntry     `yaml:"classes" json:"classes"`
	Feeds        []FeedConfig              `yaml:"feeds" json:"feeds" validate:"dive"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultExportName  = "school_schedule.ics"
	defaultCacheDir    = "./var/feed-cache"
	defaultRefreshCron = "0 3 * * *"
	defaultPeriods     = 5
)

// DefaultConfig returns a one-year, six-day, five-period project starting
// today.
func DefaultConfig() *Config {
	now := time.Now()
	cfg := &Config{
		Calendar: model.CycleConfiguration{
			StartDate:     model.DateOf(now),
			EndDate:       model.DateOf(now.AddDate(1, 0, 0)),
			CycleLength:   6,
			StartCycleDay: 1,
			PeriodsPerDay: defaultPeriods,
			Mode:          model.ModeShift,
		},
	}
	cfg.Normalize()
	return cfg
}

// Normalize fills zero values so older or hand-written files still load.
// It does not repair values that are present but wrong; Validate reports
// those.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ExportName == "" {
		c.ExportName = defaultExportName
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.Calendar.Mode == "" {
		c.Calendar.Mode = model.ModeShift
	}
	if c.Calendar.StartCycleDay == 0 {
		c.Calendar.StartCycleDay = 1
	}
	if c.Calendar.PeriodsPerDay == 0 {
		c.Calendar.PeriodsPerDay = defaultPeriods
	}
	// The bell schedule always tracks the period count.
	if len(c.BellSchedule) != c.Calendar.PeriodsPerDay && c.Calendar.PeriodsPerDay > 0 {
		c.BellSchedule = registry.NewBellSchedule(c.BellSchedule...).Resize(c.Calendar.PeriodsPerDay).Periods()
	}
	for i := range c.Feeds {
		f := &c.Feeds[i]
		if f.Type == "" {
			f.Type = model.Holiday
		}
		if f.ID == "" && f.URL != "" {
			f.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(f.URL)).String()
		}
	}
	if c.Rooms == nil {
		c.Rooms = []string{}
	}
}

var validate = validator.New()

// ValidateCalendar checks the generator inputs on their own.
func ValidateCalendar(cal model.CycleConfiguration) error {
	if err := validate.Struct(cal); err != nil {
		return fmt.Errorf("config: calendar: %v: %w", err, model.ErrInvalid)
	}
	return nil
}

// Validate checks struct rules, then the cross-field rules the tags cannot
// express. Range problems in stored overrides and classes are reported as
// model.ErrOutOfRange.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %v: %w", err, model.ErrInvalid)
	}
	if err := ValidateCalendar(c.Calendar); err != nil {
		return err
	}
	for _, b := range c.BellSchedule {
		if _, _, err := model.ParseClock(b.Start); err != nil {
			return fmt.Errorf("config: bell schedule: %w", err)
		}
		if _, _, err := model.ParseClock(b.End); err != nil {
			return fmt.Errorf("config: bell schedule: %w", err)
		}
	}
	for _, e := range c.Exceptions {
		if _, err := model.ParseDayType(string(e.Type)); err != nil {
			return fmt.Errorf("config: exception %s: %w", e.Date, err)
		}
	}
	length := c.Calendar.CycleLength
	for _, o := range c.Overrides {
		if o.Cycle < 1 || o.Cycle > length {
			return fmt.Errorf("config: override %s = %d not in [1, %d]: %w", o.Date, o.Cycle, length, model.ErrOutOfRange)
		}
	}
	for _, cl := range c.Classes {
		if cl.CycleDay < 1 || cl.CycleDay > length || cl.Period < 0 || cl.Period >= c.Calendar.PeriodsPerDay {
			return fmt.Errorf("config: class at day %d period %d: %w", cl.CycleDay, cl.Period, model.ErrOutOfRange)
		}
	}
	return nil
}

// Load reads the project file at path.
//
// Behavior:
//   - If the file does not exist, a default project is written with 0600
//     permissions and returned.
//   - Otherwise the YAML is decoded, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory with 0700.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".cyclecal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
