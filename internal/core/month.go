package core

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// MonthKey identifies a reporting period in YYYY-MM form.
type MonthKey string

var monthKeyPattern = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}$`)

// ErrInvalidMonthKey is returned when a string is not shaped like YYYY-MM.
var ErrInvalidMonthKey = errors.New("invalid month key")

// IsValidMonthKey reports whether s is four digits, a hyphen and two digits.
// The month component is not range checked: "2024-13" is accepted.
func IsValidMonthKey(s string) bool {
	return monthKeyPattern.MatchString(s)
}

// ParseMonthKey validates s and returns it as a MonthKey.
func ParseMonthKey(s string) (MonthKey, error) {
	if !IsValidMonthKey(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthKey(s), nil
}

// CurrentMonthKey formats the calendar month of now.
func CurrentMonthKey(now time.Time) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", now.Year(), int(now.Month())))
}

func (k MonthKey) String() string { return string(k) }

// YearMonth splits the key into numeric components. Unlike IsValidMonthKey it
// rejects months outside 1..12, since storage backends cannot query them.
func (k MonthKey) YearMonth() (year, month int, err error) {
	if !IsValidMonthKey(string(k)) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonthKey, string(k))
	}
	year, _ = strconv.Atoi(string(k[0:4]))
	month, _ = strconv.Atoi(string(k[5:7]))
	if month < 1 || month > 12 {
		return 0, 0, ErrInvalidMonth
	}
	return year, month, nil
}

// Previous returns the calendar month before k. Keys that fail YearMonth are
// returned unchanged.
func (k MonthKey) Previous() MonthKey {
	year, month, err := k.YearMonth()
	if err != nil {
		return k
	}
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return CurrentMonthKey(t)
}

// Contains reports whether d falls within the month.
func (k MonthKey) Contains(d Date) bool {
	if d.IsZero() {
		return false
	}
	return CurrentMonthKey(d.Time) == k
}
