package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is the canonical message timestamp. The backend serializes
// java.time.LocalDateTime two different ways depending on the code path:
// the REST layer emits an ISO-8601 string, the push channel emits an array
// of components [year, month, day, hour, minute, second(, nanos)]. Both
// shapes are decoded here, once, at the boundary; everything past this
// package only ever sees a time.Time. Any other shape is a decode error.
type Timestamp struct {
	time.Time
}

// Layouts accepted for the string form. Zone-less values are taken as UTC.
var stringLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// NewTimestamp wraps a time.Time.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// FromUnixMilli converts a unix-millisecond value, as stored in the local cache.
func FromUnixMilli(ms int64) Timestamp {
	return Timestamp{Time: time.UnixMilli(ms).UTC()}
}

// UnmarshalJSON decodes either the string or the component-array form.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		ts.Time = time.Time{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("timestamp string: %w", err)
		}
		return ts.parseString(s)
	case '[':
		var parts []int64
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("timestamp components: %w", err)
		}
		return ts.fromComponents(parts)
	default:
		return fmt.Errorf("timestamp: unsupported JSON shape %q", string(data))
	}
}

// MarshalJSON always emits the string form.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format("2006-01-02T15:04:05.999999999"))
}

func (ts *Timestamp) parseString(s string) error {
	for _, layout := range stringLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ts.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: cannot parse %q", s)
}

func (ts *Timestamp) fromComponents(parts []int64) error {
	if len(parts) < 6 || len(parts) > 7 {
		return fmt.Errorf("timestamp: component array has %d elements, want 6 or 7", len(parts))
	}
	nanos := int64(0)
	if len(parts) == 7 {
		nanos = parts[6]
	}
	ts.Time = time.Date(
		int(parts[0]), time.Month(parts[1]), int(parts[2]),
		int(parts[3]), int(parts[4]), int(parts[5]), int(nanos),
		time.UTC,
	)
	return nil
}
