package shared

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPeriod indicates a period string that is not M-YYYY.
var ErrInvalidPeriod = errors.New("period invalid")

// Period identifies a monthly reporting window, written as "3-2024".
type Period struct {
	Month time.Month
	Year  int
}

// ParsePeriod parses the M-YYYY form used by the attendance screens.
func ParsePeriod(raw string) (Period, error) {
	raw = strings.TrimSpace(raw)
	monthStr, yearStr, ok := strings.Cut(raw, "-")
	if !ok {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %q", ErrInvalidPeriod, monthStr)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 1900 || year > 9999 {
		return Period{}, fmt.Errorf("%w: year %q", ErrInvalidPeriod, yearStr)
	}
	return Period{Month: time.Month(month), Year: year}, nil
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Month: t.Month(), Year: t.Year()}
}

// CurrentPeriod formats the period containing now, without zero padding.
func CurrentPeriod(now time.Time) string {
	return PeriodOf(now).String()
}

// String renders the period as M-YYYY.
func (p Period) String() string {
	return fmt.Sprintf("%d-%d", int(p.Month), p.Year)
}

// FirstDay returns midnight UTC of the first day of the period.
func (p Period) FirstDay() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// LastDay returns midnight UTC of the last day of the period.
func (p Period) LastDay() time.Time {
	return p.FirstDay().AddDate(0, 1, -1)
}

// Days reports how many calendar days the period has.
func (p Period) Days() int {
	return p.LastDay().Day()
}

// Date returns the given day of the period, or an error when it falls outside.
func (p Period) Date(day int) (time.Time, error) {
	if day < 1 || day > p.Days() {
		return time.Time{}, fmt.Errorf("%w: day %d outside %s", ErrInvalidPeriod, day, p)
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC), nil
}
