package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOutOfRange is returned when a cycle number, cycle day, period index
	// or bell index falls outside the configured bounds.
	ErrOutOfRange = errors.New("out of range")
	// ErrInvalid is returned for malformed input (dates, times, enums, config).
	ErrInvalid = errors.New("invalid input")
)

// DayType classifies a calendar date. Absence of an exception means School.
type DayType string

const (
	School  DayType = "School"
	Holiday DayType = "Holiday"
	PD      DayType = "PD"
	Exam    DayType = "Exam"
)

// ParseDayType accepts the canonical names case-insensitively.
func ParseDayType(s string) (DayType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "school":
		return School, nil
	case "holiday":
		return Holiday, nil
	case "pd":
		return PD, nil
	case "exam":
		return Exam, nil
	}
	return "", fmt.Errorf("model: day type %q: %w", s, ErrInvalid)
}

// CycleMode decides what happens to the rotation on exception weekdays.
//
//   - shift: the rotation pauses; the next School day resumes where it left off.
//   - skip:  the rotation keeps moving in the background.
type CycleMode string

const (
	ModeShift CycleMode = "shift"
	ModeSkip  CycleMode = "skip"
)

func ParseCycleMode(s string) (CycleMode, error) {
	switch CycleMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeShift:
		return ModeShift, nil
	case ModeSkip:
		return ModeSkip, nil
	}
	return "", fmt.Errorf("model: cycle mode %q: %w", s, ErrInvalid)
}

// CycleConfiguration is the caller-owned input of one generation pass.
type CycleConfiguration struct {
	StartDate     Date      `yaml:"start_date" json:"start_date"`
	EndDate       Date      `yaml:"end_date" json:"end_date"`
	CycleLength   int       `yaml:"cycle_length" json:"cycle_length" validate:"min=1"`
	StartCycleDay int       `yaml:"start_cycle_day" json:"start_cycle_day" validate:"min=1,ltefield=CycleLength"`
	PeriodsPerDay int       `yaml:"periods_per_day" json:"periods_per_day" validate:"min=1"`
	Mode          CycleMode `yaml:"cycle_mode" json:"cycle_mode" validate:"oneof=shift skip"`
}

// BellPeriod is one instructional time window, "HH:MM" on both ends.
type BellPeriod struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// ClassSlot is what occupies a (cycle day, period) cell. The zero value is
// the empty slot.
type ClassSlot struct {
	Name string `yaml:"name" json:"name"`
	Room string `yaml:"room" json:"room"`
	Note string `yaml:"note" json:"note"`
}

// GeneratedDay is one emitted weekday of a generation pass.
type GeneratedDay struct {
	Date Date    `json:"date"`
	Type DayType `json:"type"`
	// CycleDay is nil on exception days without an override.
	CycleDay *int `json:"cycle_day"`
	// OverrideCycleDay is the manual value for this date, if any.
	OverrideCycleDay *int        `json:"override_cycle_day,omitempty"`
	Classes          []ClassSlot `json:"classes"`
}
