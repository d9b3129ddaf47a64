package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// LabelLayout is the time layout of a period label.
	LabelLayout = "2006-01"

	// KeyPrefix is the first segment of every derived key.
	KeyPrefix = "metering"

	// Separator joins key segments.
	Separator = ":"

	// EscapeToken replaces "." inside key components.
	EscapeToken = "_dot_"

	separatorToken  = "_col_"
	underscoreToken = "_us_"
)

// ErrMalformedKey is returned when a key or escaped component cannot be decoded.
var ErrMalformedKey = errors.New("malformed metering key")

// Clock is the single time source used to compute the current period.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// Label returns the canonical period label for t (UTC year and month).
func Label(t time.Time) string {
	return t.UTC().Format(LabelLayout)
}

// Current returns the period label for the clock's current time.
// A nil clock falls back to the system clock.
func Current(c Clock) string {
	if c == nil {
		c = SystemClock{}
	}
	return Label(c.Now())
}

// Bounds returns the first and last instant of the period containing t.
func Bounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// ParseLabel validates a period label and returns the start of that period.
func ParseLabel(label string) (time.Time, error) {
	t, err := time.Parse(LabelLayout, label)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid period label %q: %w", label, err)
	}
	return t, nil
}

// Escape replaces characters that are structurally significant in keys.
func Escape(s string) string {
	if !strings.ContainsAny(s, "._:") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.':
			b.WriteString(EscapeToken)
		case ':':
			b.WriteString(separatorToken)
		case '_':
			b.WriteString(underscoreToken)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Unescape reverses Escape. It fails on input Escape could not have produced.
func Unescape(s string) (string, error) {
	if !strings.Contains(s, "_") {
		if strings.Contains(s, Separator) {
			return "", fmt.Errorf("%w: unescaped separator in %q", ErrMalformedKey, s)
		}
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == ':' {
			return "", fmt.Errorf("%w: unescaped separator in %q", ErrMalformedKey, s)
		}
		if s[i] != '_' {
			b.WriteByte(s[i])
			i++
			continue
		}

		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, EscapeToken):
			b.WriteByte('.')
			i += len(EscapeToken)
		case strings.HasPrefix(rest, separatorToken):
			b.WriteByte(':')
			i += len(separatorToken)
		case strings.HasPrefix(rest, underscoreToken):
			b.WriteByte('_')
			i += len(underscoreToken)
		default:
			return "", fmt.Errorf("%w: dangling escape at offset %d in %q", ErrMalformedKey, i, s)
		}
	}
	return b.String(), nil
}
