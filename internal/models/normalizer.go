package models

import (
	"math"
	"strings"
	"time"
)

// SupportedTimestampFormats lists formats we attempt to parse
var SupportedTimestampFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.UnixDate,
}

// Normalize applies field normalization to a ScoredEvent
// - trims DeviceID and Tag
// - upper-cases State
// - converts the timestamp to UTC
//
// The Families map is left untouched: the attribution snapshot on the event
// must survive evaluation byte for byte.
func (e *ScoredEvent) Normalize() {
	e.DeviceID = strings.TrimSpace(e.DeviceID)
	e.Tag = strings.TrimSpace(e.Tag)
	e.State = OperatingState(strings.ToUpper(strings.TrimSpace(string(e.State))))
	e.Timestamp = e.Timestamp.UTC()

	// A NaN score from a broken upstream run means "no signal", not an error
	if math.IsNaN(e.Score) {
		e.Score = 0
	}
}

// ParseTimestamp attempts to parse a timestamp string into time.Time
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)

	for _, format := range SupportedTimestampFormats {
		if t, err := time.Parse(format, ts); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, ErrInvalidTimestamp
}
