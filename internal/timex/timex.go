// Package timex holds time helpers shared by storage, sync and config:
// the ISO-8601 layout used for persisted/wire timestamps and a Duration that
// decodes from JSON and YAML as either "3s"-style strings or integer nanoseconds.
package timex

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ISOLayout is a fixed-width UTC layout with millisecond precision. Values in
// this layout sort lexicographically in time order, which the SQL ordering on
// updated_at relies on.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// Epoch is the watermark used before the first successful pull.
var Epoch = time.Unix(0, 0).UTC()

// FormatISO renders t in ISOLayout (converted to UTC).
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ParseISO parses a persisted or remote timestamp. Besides ISOLayout it accepts
// any RFC 3339 value, since remote peers may send offsets or nanoseconds.
func ParseISO(s string) (time.Time, error) {
	if t, err := time.Parse(ISOLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Truncate drops precision below ISOLayout so a value survives a
// format/parse round trip unchanged.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

var errInvalidDuration = errors.New("invalid duration")

// Duration wraps time.Duration for config files.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		return err
	default:
		return errInvalidDuration
	}
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var n int64
	if err := node.Decode(&n); err == nil {
		d.Duration = time.Duration(n)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return errInvalidDuration
	}
	var err error
	d.Duration, err = time.ParseDuration(s)
	return err
}
