// Package dateutil parses the date strings accepted in post front matter.
package dateutil

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for date parsing.
var (
	ErrEmptyDate        = errors.New("date is empty")
	ErrUnrecognizedDate = errors.New("unrecognized date")
)

// formats are attempted in order. Front matter written by hand carries
// anything from a bare day to a full RFC 3339 timestamp.
var formats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse converts a front-matter date string to a time.Time.
func Parse(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, ErrEmptyDate
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnrecognizedDate, s)
}
