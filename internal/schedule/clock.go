package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	minutesPerDay = 24 * 60

	// EndOfDay is 24:00, valid only as the end of a working window.
	EndOfDay Clock = minutesPerDay

	dateLayout = "2006-01-02"
)

var ErrInvalidClock = errors.New("time of day must be HH:MM between 00:00 and 24:00")

// Clock is a time of day in whole minutes since midnight.
type Clock int

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

func ParseClock(s string) (Clock, error) {
	switch s {
	case "24:00", "24:00:00":
		return EndOfDay, nil
	}
	for _, layout := range []string{"15:04", "15:04:05"} {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Second() != 0 {
			break
		}
		return NewClock(t.Hour(), t.Minute()), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
}

func (c Clock) Valid() bool {
	return c >= 0 && c <= EndOfDay
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// PgTime converts the clock into a Postgres TIME value.
func (c Clock) PgTime() pgtype.Time {
	return pgtype.Time{Microseconds: int64(c) * int64(time.Minute/time.Microsecond), Valid: true}
}

// ClockFromPgTime truncates a Postgres TIME value to whole minutes.
func ClockFromPgTime(t pgtype.Time) Clock {
	return Clock(t.Microseconds / int64(time.Minute/time.Microsecond))
}

// DateOf returns the calendar date of t as UTC midnight.
// All stored and compared dates use this form.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
