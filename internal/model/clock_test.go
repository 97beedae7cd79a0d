package model

import (
	"errors"
	"testing"
)

func TestParseClock(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in        string
		hour, min int
		wantErr   bool
	}{
		{in: "8:05", hour: 8, min: 5},
		{in: "08:05", hour: 8, min: 5},
		{in: "00:00", hour: 0, min: 0},
		{in: "23:59", hour: 23, min: 59},
		{in: "24:00", wantErr: true},
		{in: "24:30", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "-1:00", wantErr: true},
		{in: "8am", wantErr: true},
		{in: "8:00:00", wantErr: true},
	}
	for _, tt := range tests {
		h, m, err := ParseClock(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("ParseClock(%q): got %v, want ErrInvalid", tt.in, err)
			}
			continue
		}
		if err != nil || h != tt.hour || m != tt.min {
			t.Errorf("ParseClock(%q): got %d:%d, %v; want %d:%d", tt.in, h, m, err, tt.hour, tt.min)
		}
	}
}

func TestFormatClockWraps(t *testing.T) {
	t.Parallel()
	for in, want := range map[int]string{0: "00:00", 8*60 + 5: "08:05", 24 * 60: "00:00", 25*60 + 30: "01:30", -30: "23:30"} {
		if got := FormatClock(in); got != want {
			t.Errorf("FormatClock(%d): got %q, want %q", in, got, want)
		}
	}
}
