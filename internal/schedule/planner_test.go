package schedule

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cyclecal/internal/config"
	"cyclecal/internal/model"
	"cyclecal/internal/registry"
)

// 2024-01-01 is a Monday.
func newPlanner(t *testing.T) *Planner {
	t.Helper()
	p, err := New(model.CycleConfiguration{
		StartDate:     model.NewDate(2024, 1, 1),
		EndDate:       model.NewDate(2024, 1, 12),
		CycleLength:   6,
		StartCycleDay: 1,
		PeriodsPerDay: 2,
		Mode:          model.ModeShift,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return p
}

func TestNewRejectsBadCalendar(t *testing.T) {
	t.Parallel()
	_, err := New(model.CycleConfiguration{CycleLength: 0, StartCycleDay: 1, PeriodsPerDay: 1, Mode: model.ModeShift})
	if !errors.Is(err, model.ErrInvalid) {
		t.Errorf("got %v, want ErrInvalid", err)
	}
}

func TestSetCycleOverrideValidatesRange(t *testing.T) {
	t.Parallel()
	p := newPlanner(t)
	d := model.NewDate(2024, 1, 2)

	for _, v := range []int{0, 7, -1} {
		v := v
		if err := p.SetCycleOverride(d, &v); !errors.Is(err, model.ErrOutOfRange) {
			t.Errorf("override %d: got %v, want ErrOutOfRange", v, err)
		}
	}
	if p.Version() != 0 {
		t.Errorf("rejected mutations bumped the version to %d", p.Version())
	}

	three := 3
	if err := p.SetCycleOverride(d, &three); err != nil {
		t.Fatal(err)
	}
	days, err := p.Generated()
	if err != nil {
		t.Fatal(err)
	}
	if got := *days[2].CycleDay; got != 4 {
		t.Errorf("day after override: got %d, want 4", got)
	}

	if err := p.SetCycleOverride(d, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Overrides().Get(d); ok {
		t.Error("override not cleared")
	}
}

func TestUpdateClassBatchIsAllOrNothing(t *testing.T) {
	t.Parallel()
	p := newPlanner(t)

	err := p.UpdateClassBatch([]registry.ClassUpdate{
		{CycleDay: 1, Period: 0, Info: model.ClassSlot{Name: "Math"}},
		{CycleDay: 7, Period: 0, Info: model.ClassSlot{Name: "Ghost"}},
	})
	if !errors.Is(err, model.ErrOutOfRange) {
		t.Fatalf("got %v, want ErrOutOfRange", err)
	}
	if p.GetClass(1, 0).Name != "" {
		t.Error("partial batch applied")
	}

	if err := p.UpdateClassBatch([]registry.ClassUpdate{{CycleDay: 1, Period: 1, Info: model.ClassSlot{Name: "Math", Room: "101"}}}); err != nil {
		t.Fatal(err)
	}
	if err := p.UpdateClass(1, 1, registry.FieldNote, "quiz"); err != nil {
		t.Fatal(err)
	}
	if got, want := p.GetClass(1, 1), (model.ClassSlot{Name: "Math", Room: "101", Note: "quiz"}); got != want {
		t.Errorf("slot: got %+v, want %+v", got, want)
	}
	if err := p.UpdateClass(1, 2, registry.FieldName, "x"); !errors.Is(err, model.ErrOutOfRange) {
		t.Errorf("period past end: got %v, want ErrOutOfRange", err)
	}
}

func TestUpdatePeriodCountResizesBells(t *testing.T) {
	t.Parallel()
	p := newPlanner(t)

	if err := p.UpdatePeriodCount(4); err != nil {
		t.Fatal(err)
	}
	if p.BellSchedule().Len() != 4 || p.Config().PeriodsPerDay != 4 {
		t.Fatalf("bells %d, periods %d: want 4 and 4", p.BellSchedule().Len(), p.Config().PeriodsPerDay)
	}
	days, err := p.Generated()
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range days {
		if len(d.Classes) != 4 {
			t.Fatalf("%s: got %d classes, want 4", d.Date, len(d.Classes))
		}
	}
	if err := p.UpdatePeriodCount(0); !errors.Is(err, model.ErrOutOfRange) {
		t.Errorf("zero periods: got %v, want ErrOutOfRange", err)
	}
}

func TestGeneratedIsMemoized(t *testing.T) {
	t.Parallel()
	p := newPlanner(t)

	first, err := p.Generated()
	if err != nil {
		t.Fatal(err)
	}
	p.AddRoom("Gym") // rooms are not a generator input
	second, err := p.Generated()
	if err != nil {
		t.Fatal(err)
	}
	if &first[0] != &second[0] {
		t.Error("schedule recomputed without an input change")
	}

	if err := p.ToggleException(model.NewDate(2024, 1, 3), model.Holiday); err != nil {
		t.Fatal(err)
	}
	third, err := p.Generated()
	if err != nil {
		t.Fatal(err)
	}
	if third[2].Type != model.Holiday {
		t.Errorf("after toggle: got %s, want Holiday", third[2].Type)
	}
	if first[2].Type != model.School {
		t.Error("earlier result was mutated")
	}
}

func TestExportThroughPlanner(t *testing.T) {
	t.Parallel()
	p := newPlanner(t)
	if err := p.UpdateClassBatch([]registry.ClassUpdate{{CycleDay: 1, Period: 0, Info: model.ClassSlot{Name: "Math", Room: "101"}}}); err != nil {
		t.Fatal(err)
	}
	if err := p.SetException(model.NewDate(2024, 1, 5), model.PD); err != nil {
		t.Fatal(err)
	}
	if err := p.SetException(model.NewDate(2024, 1, 4), "Snow"); !errors.Is(err, model.ErrInvalid) {
		t.Errorf("unknown day type: got %v, want ErrInvalid", err)
	}

	var buf bytes.Buffer
	if err := p.Export(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	// Cycle day 1 falls on Jan 1 and again on Jan 10 (Jan 5 is PD, shift mode).
	for _, want := range []string{"UID:20240101-0@cyclescheduler.app", "UID:20240110-0@cyclescheduler.app", "UID:20240105-type@cyclescheduler.app"} {
		if !strings.Contains(out, want+"\r\n") {
			t.Errorf("missing %q", want)
		}
	}
	if got := strings.Count(out, "BEGIN:VEVENT"); got != 3 {
		t.Errorf("event count: got %d, want 3", got)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	t.Parallel()
	p := newPlanner(t)
	two := 2
	if err := p.SetCycleOverride(model.NewDate(2024, 1, 8), &two); err != nil {
		t.Fatal(err)
	}
	if err := p.UpdateClass(2, 0, registry.FieldName, "Bio"); err != nil {
		t.Fatal(err)
	}
	p.AddRoom("Lab")

	cfg := config.DefaultConfig()
	p.WriteTo(cfg)
	back, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}

	a, _ := p.Generated()
	b, _ := back.Generated()
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if *a[i].CycleDay != *b[i].CycleDay || a[i].Classes[0] != b[i].Classes[0] {
			t.Errorf("%s differs after round trip", a[i].Date)
		}
	}
	if rooms := back.Rooms(); len(rooms) != 1 || rooms[0] != "Lab" {
		t.Errorf("rooms: got %v", rooms)
	}
}

func TestShrinkRejectsStrandedEntries(t *testing.T) {
	t.Parallel()
	p := newPlanner(t)
	six := 6
	d := model.NewDate(2024, 1, 3)
	if err := p.SetCycleOverride(d, &six); err != nil {
		t.Fatal(err)
	}
	if err := p.UpdateClass(6, 1, registry.FieldName, "Art"); err != nil {
		t.Fatal(err)
	}
	before := p.Version()

	shorter := p.Config()
	shorter.CycleLength = 4
	if err := p.SetConfig(shorter); !errors.Is(err, model.ErrOutOfRange) {
		t.Errorf("SetConfig with override 6 and length 4: got %v, want ErrOutOfRange", err)
	}
	if err := p.UpdatePeriodCount(1); !errors.Is(err, model.ErrOutOfRange) {
		t.Errorf("UpdatePeriodCount(1) with a class in period 1: got %v, want ErrOutOfRange", err)
	}
	if got := p.Config(); got.CycleLength != 6 || got.PeriodsPerDay != 2 {
		t.Errorf("rejected shrink changed the calendar to %+v", got)
	}
	if p.Version() != before {
		t.Errorf("rejected shrink bumped the version from %d to %d", before, p.Version())
	}

	if err := p.SetCycleOverride(d, nil); err != nil {
		t.Fatal(err)
	}
	if err := p.UpdateClass(6, 1, registry.FieldName, ""); err != nil {
		t.Fatal(err)
	}
	shorter.PeriodsPerDay = 1
	if err := p.SetConfig(shorter); err != nil {
		t.Fatalf("SetConfig after clearing: %v", err)
	}

	cfg := config.DefaultConfig()
	p.WriteTo(cfg)
	path := filepath.Join(t.TempDir(), "project.yaml")
	if err := config.Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	back, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load after shrink: %v", err)
	}
	if back.Calendar.CycleLength != 4 || back.Calendar.PeriodsPerDay != 1 {
		t.Errorf("got calendar %+v", back.Calendar)
	}
}

func TestRestoreRollsBackMutations(t *testing.T) {
	t.Parallel()
	p := newPlanner(t)
	d := model.NewDate(2024, 1, 2)
	saved := p.State()

	if err := p.ToggleException(d, model.Holiday); err != nil {
		t.Fatal(err)
	}
	if err := p.UpdatePeriodCount(3); err != nil {
		t.Fatal(err)
	}
	p.AddRoom("Gym")

	p.Restore(saved)
	if p.Version() != 0 {
		t.Errorf("version: got %d, want 0", p.Version())
	}
	if got := p.Exceptions().Get(d); got != model.School {
		t.Errorf("exception: got %s, want School", got)
	}
	if p.Config().PeriodsPerDay != 2 || p.BellSchedule().Len() != 2 {
		t.Errorf("periods: got %d with %d bells", p.Config().PeriodsPerDay, p.BellSchedule().Len())
	}
	if len(p.Rooms()) != 0 {
		t.Errorf("rooms: got %v", p.Rooms())
	}
	days, err := p.Generated()
	if err != nil {
		t.Fatal(err)
	}
	for _, g := range days {
		if g.Date == d && (g.Type != model.School || g.CycleDay == nil) {
			t.Errorf("generated %s is %s after restore", g.Date, g.Type)
		}
	}
}
