package ics

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
	"cyclecal/internal/registry"
)

const (
	// ProductID is written verbatim as the PRODID of every export.
	ProductID = "-//CycleScheduler//EN"
	// uidDomain makes event UIDs globally unique while staying deterministic.
	uidDomain = "cyclescheduler.app"
	// DefaultFileName is the download name suggested to clients.
	DefaultFileName = "school_schedule.ics"
)

// ExportOptions tunes Export. The zero value is usable.
type ExportOptions struct {
	// Now stamps DTSTAMP. Defaults to time.Now.
	Now func() time.Time
}

// Export serializes the generated days as an iCalendar file:
//
//   - every named class on a School day becomes a timed event spanning its
//     bell period, in naive local time;
//   - PD and Exam days become one all-day event titled with the day type;
//   - Holiday days produce nothing.
//
// UIDs depend only on the date and period index, so re-importing an export
// updates events instead of duplicating them. Nothing is written when the
// bell schedule holds an unparsable time.
func Export(w io.Writer, days []model.GeneratedDay, bells registry.BellSchedule, opts ExportOptions) error {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	stamp := now()

	cal := &ical.Calendar{}
	cal.SetVersion("2.0")
	cal.SetProductId(ProductID)

	timed, allDay := 0, 0
	for _, day := range days {
		switch day.Type {
		case model.School:
			for p, cls := range day.Classes {
				if cls.Name == "" {
					continue
				}
				bell, ok := bells.At(p)
				if !ok {
					continue
				}
				start, err := stampTime(bell.Start)
				if err != nil {
					return fmt.Errorf("ics: export period %d: %w", p, err)
				}
				end, err := stampTime(bell.End)
				if err != nil {
					return fmt.Errorf("ics: export period %d: %w", p, err)
				}

				ev := cal.AddEvent(fmt.Sprintf("%s-%d@%s", day.Date.Compact(), p, uidDomain))
				ev.SetDtStampTime(stamp)
				ev.SetProperty(ical.ComponentPropertyDtStart, day.Date.Compact()+"T"+start)
				ev.SetProperty(ical.ComponentPropertyDtEnd, day.Date.Compact()+"T"+end)
				ev.SetSummary(fmt.Sprintf("%s (Day %s)", cls.Name, cycleLabel(day.CycleDay)))
				ev.SetDescription("Room: " + cls.Room + "\nNote: " + cls.Note)
				ev.SetLocation(cls.Room)
				timed++
			}
		case model.PD, model.Exam:
			ev := cal.AddEvent(fmt.Sprintf("%s-type@%s", day.Date.Compact(), uidDomain))
			ev.SetDtStampTime(stamp)
			ev.SetProperty(ical.ComponentPropertyDtStart, day.Date.Compact(), ical.WithValue(string(ical.ValueDataTypeDate)))
			ev.SetSummary(string(day.Type))
			allDay++
		}
	}

	if err := cal.SerializeTo(w, ical.WithNewLineWindows); err != nil {
		return fmt.Errorf("ics: serialize: %w", err)
	}
	appLog.Debug("ics export completed", "days", len(days), "timed_events", timed, "all_day_events", allDay)
	return nil
}

// ExportString is Export into a string.
func ExportString(days []model.GeneratedDay, bells registry.BellSchedule, opts ExportOptions) (string, error) {
	var buf bytes.Buffer
	if err := Export(&buf, days, bells, opts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// stampTime turns "H:MM" / "HH:MM" into the zero-padded "HHMMSS" form.
func stampTime(clock string) (string, error) {
	h, m, err := model.ParseClock(clock)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d%02d00", h, m), nil
}

func cycleLabel(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}
