package attendance

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const clockLayout = "15:04"

var timetableDays = []struct {
	key     string
	weekday time.Weekday
}{
	{"mon", time.Monday},
	{"tue", time.Tuesday},
	{"wed", time.Wednesday},
	{"thu", time.Thursday},
	{"fri", time.Friday},
}

// parseTimetableForm reads pvid and <day>_start/<day>_end pairs. Days with
// both fields empty are days off.
func parseTimetableForm(validate *validator.Validate, form map[string]string) (string, []TimetableEntry, int, error) {
	pvid := strings.TrimSpace(form["pvid"])
	if pvid == "" {
		return "", nil, 0, fmt.Errorf("%w: pvid missing", ErrInvalidInput)
	}
	entries := make([]TimetableEntry, 0, len(timetableDays))
	total := 0
	for _, day := range timetableDays {
		start := strings.TrimSpace(form[day.key+"_start"])
		end := strings.TrimSpace(form[day.key+"_end"])
		if start == "" && end == "" {
			continue
		}
		if err := validate.Var(start, "required,datetime=15:04"); err != nil {
			return "", nil, 0, fmt.Errorf("%w: %s start %q", ErrInvalidInput, day.key, start)
		}
		if err := validate.Var(end, "required,datetime=15:04"); err != nil {
			return "", nil, 0, fmt.Errorf("%w: %s end %q", ErrInvalidInput, day.key, end)
		}
		minutes, err := spanMinutes(start, end)
		if err != nil {
			return "", nil, 0, err
		}
		total += minutes
		entries = append(entries, TimetableEntry{PVID: pvid, Weekday: day.weekday, Start: start, End: end})
	}
	return pvid, entries, total, nil
}

// matchesOccupancy reports whether the planned week fits the contracted
// occupancy, with one minute of rounding slack.
func matchesOccupancy(totalMinutes int, occupancy float64) bool {
	expected := occupancy * FullTimeWeekMinutes
	return math.Abs(float64(totalMinutes)-expected) <= 1
}

func spanMinutes(start, end string) (int, error) {
	from, err := parseClock(start)
	if err != nil {
		return 0, err
	}
	to, err := parseClock(end)
	if err != nil {
		return 0, err
	}
	if to <= from {
		return 0, fmt.Errorf("%w: %s is not after %s", ErrInvalidInput, end, start)
	}
	return to - from, nil
}

func parseClock(value string) (int, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: time %q", ErrInvalidInput, value)
	}
	return t.Hour()*60 + t.Minute(), nil
}
