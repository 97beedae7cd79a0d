package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cyclecal/internal/model"
	"cyclecal/internal/registry"
)

const sampleProject = `listen: 0.0.0.0:9000
calendar:
  start_date: 2024-09-02
  end_date: 2025-06-27
  cycle_length: 6
  start_cycle_day: 2
  periods_per_day: 3
  cycle_mode: skip
bell_schedule:
  - {start: "08:30", end: "09:20"}
exceptions:
  - {date: 2024-11-11, type: Holiday}
overrides:
  - {date: 2024-09-10, cycle: 1}
classes:
  - {cycle_day: 1, period: 0, name: Math, room: "101"}
feeds:
  - url: https://example.org/district.ics
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "project.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadProject(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeFile(t, sampleProject))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Calendar.StartDate.String() != "2024-09-02" || cfg.Calendar.Mode != model.ModeSkip {
		t.Errorf("calendar: got %+v", cfg.Calendar)
	}
	if len(cfg.BellSchedule) != 3 {
		t.Fatalf("bell schedule should follow periods_per_day: got %d", len(cfg.BellSchedule))
	}
	if got := cfg.BellSchedule[1]; got != (model.BellPeriod{Start: "09:20", End: "10:20"}) {
		t.Errorf("grown period: got %+v", got)
	}
	if cfg.ExportName != "school_schedule.ics" {
		t.Errorf("export name default: got %q", cfg.ExportName)
	}
	feed := cfg.Feeds[0]
	if feed.Type != model.Holiday || feed.ID == "" {
		t.Errorf("feed defaults: got %+v", feed)
	}
	if cfg.Exceptions[0].Type != model.Holiday || cfg.Exceptions[0].Date.String() != "2024-11-11" {
		t.Errorf("exceptions: got %+v", cfg.Exceptions)
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "project.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Calendar.CycleLength != 6 || len(cfg.BellSchedule) != 5 {
		t.Errorf("defaults: got %+v", cfg.Calendar)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("permissions: got %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Calendar != cfg.Calendar {
		t.Errorf("round trip: got %+v, want %+v", again.Calendar, cfg.Calendar)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeFile(t, sampleProject))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Exceptions = append(cfg.Exceptions, registry.ExceptionEntry{Date: model.NewDate(2024, 12, 20), Type: model.PD})

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(back.Exceptions) != 2 || back.Exceptions[1].Type != model.PD {
		t.Errorf("exceptions: got %+v", back.Exceptions)
	}
	if back.Classes[0] != cfg.Classes[0] {
		t.Errorf("classes: got %+v, want %+v", back.Classes[0], cfg.Classes[0])
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero cycle length", func(c *Config) { c.Calendar.CycleLength = 0 }, model.ErrInvalid},
		{"start day past length", func(c *Config) { c.Calendar.StartCycleDay = 7 }, model.ErrInvalid},
		{"unknown mode", func(c *Config) { c.Calendar.Mode = "rotate" }, model.ErrInvalid},
		{"bad bell time", func(c *Config) { c.BellSchedule[0].End = "25:00" }, model.ErrInvalid},
		{"bad feed url", func(c *Config) { c.Feeds = []FeedConfig{{URL: "nope", Type: model.Holiday}} }, model.ErrInvalid},
		{"override out of range", func(c *Config) {
			c.Overrides = []registry.OverrideEntry{{Date: model.NewDate(2024, 9, 3), Cycle: 7}}
		}, model.ErrOutOfRange},
		{"class period out of range", func(c *Config) {
			c.Classes = []registry.ClassEntry{{CycleDay: 1, Period: 5, Name: "X"}}
		}, model.ErrOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config: %v", err)
	}
}
