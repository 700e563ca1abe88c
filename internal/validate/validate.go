// Package validate turns raw operator input into typed values. Every function
// is pure: it either returns a value or an error wrapping one of the
// sentinel failures below.
package validate

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidFormat = errors.New("invalid format")
	ErrInvalidValue  = errors.New("invalid value")
	ErrUnauthorized  = errors.New("unauthorized")
)

// DateLayout accepts one or two digit day and month and a four digit year.
const DateLayout = "2/1/2006"

// Func is the shape shared by every validator.
type Func[T any] func(raw string) (T, error)

func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", ErrInvalidFormat, s, err)
	}
	// Postgres DATE has no year zero.
	if t.Year() < 1 {
		return time.Time{}, fmt.Errorf("%w: date %q: year out of range", ErrInvalidFormat, s)
	}
	return t, nil
}

// DateRange is an inclusive calendar interval.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func ParseDateRange(raw string) (DateRange, error) {
	parts := strings.Split(raw, "-")
	if len(parts) != 2 {
		return DateRange{}, fmt.Errorf("%w: expected two dates separated by '-'", ErrInvalidFormat)
	}
	start, err := ParseDate(parts[0])
	if err != nil {
		return DateRange{}, err
	}
	end, err := ParseDate(parts[1])
	if err != nil {
		return DateRange{}, err
	}
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("%w: range ends before it starts", ErrInvalidValue)
	}
	return DateRange{Start: start, End: end}, nil
}

func PositiveInt(raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d must be positive", ErrInvalidValue, n)
	}
	return n, nil
}

// PositiveDecimal accepts a decimal point or a decimal comma.
func PositiveDecimal(raw string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, raw)
	}
	if f <= 0 {
		return 0, fmt.Errorf("%w: %v must be positive", ErrInvalidValue, f)
	}
	return f, nil
}

// IntList parses comma separated IDs. Tokens that are not positive integers
// are dropped rather than failing the whole input; repeated IDs keep their
// first position. At least one ID must survive.
func IntList(raw string) ([]int64, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		// One record per worker: a repeated ID would double its production.
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		ids = append(ids, n)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no valid IDs in %q", ErrInvalidValue, raw)
	}
	return ids, nil
}

func NonEmpty(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: blank input", ErrInvalidValue)
	}
	return s, nil
}

// AccessCode returns a validator that accepts only the expected code.
func AccessCode(expected string) Func[string] {
	return func(raw string) (string, error) {
		s := strings.TrimSpace(raw)
		if expected == "" || s != expected {
			return "", ErrUnauthorized
		}
		return s, nil
	}
}

// OneOf returns a validator for button values.
func OneOf(options ...string) Func[string] {
	return func(raw string) (string, error) {
		for _, o := range options {
			if raw == o {
				return o, nil
			}
		}
		return "", fmt.Errorf("%w: %q is not an offered option", ErrInvalidValue, raw)
	}
}
