package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const project = `calendar:
  start_date: "2024-01-01"
  end_date: "2024-01-12"
  cycle_length: 6
  start_cycle_day: 1
  periods_per_day: 2
  cycle_mode: shift
exceptions:
  - date: "2024-01-03"
    type: Holiday
classes:
  - cycle_day: 1
    period: 0
    name: Math
    room: "101"
`

func writeProject(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cyclecal.yaml")
	if err := os.WriteFile(path, []byte(project), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunShow(t *testing.T) {
	t.Parallel()
	path := writeProject(t)

	var out bytes.Buffer
	if err := run([]string{"--config", path, "show", "--to", "2024-01-03"}, &out); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{"Math (101)", "Day 2", "Holiday"} {
		if !strings.Contains(got, want) {
			t.Errorf("show output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Jan 4") {
		t.Errorf("--to not applied:\n%s", got)
	}
}

func TestRunExportStdout(t *testing.T) {
	t.Parallel()
	path := writeProject(t)

	var out bytes.Buffer
	if err := run([]string{"-c", path, "export", "-o", "-"}, &out); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.HasPrefix(got, "BEGIN:VCALENDAR\r\n") {
		t.Fatalf("not a calendar: %q", got)
	}
	if !strings.Contains(got, "UID:20240101-0@cyclescheduler.app") {
		t.Error("missing first period UID")
	}
	if !strings.Contains(got, "UID:20240103-type@cyclescheduler.app") {
		t.Error("missing holiday all-day event")
	}
}

func TestRunExportFile(t *testing.T) {
	t.Parallel()
	path := writeProject(t)
	target := filepath.Join(t.TempDir(), "out.ics")

	if err := run([]string{"-c", path, "export", "--output", target}, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("END:VCALENDAR")) {
		t.Error("exported file is incomplete")
	}
}

func TestRunErrors(t *testing.T) {
	t.Parallel()
	path := writeProject(t)

	if err := run([]string{"-c", path}, &bytes.Buffer{}); err == nil {
		t.Error("missing command accepted")
	}
	if err := run([]string{"-c", path, "frobnicate"}, &bytes.Buffer{}); err == nil {
		t.Error("unknown command accepted")
	}
	if err := run([]string{"-c", path, "show", "--from", "soon"}, &bytes.Buffer{}); err == nil {
		t.Error("bad --from accepted")
	}

	var out bytes.Buffer
	if err := run([]string{"version"}, &out); err != nil || !strings.HasPrefix(out.String(), "cyclecal ") {
		t.Errorf("version: %q, %v", out.String(), err)
	}
}
