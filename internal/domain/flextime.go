package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// flexLayouts are the string representations accepted for schedule entry
// date/time values. Zoneless layouts are interpreted as UTC.
var flexLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"15:04:05",
	"15:04",
}

// FlexTime is a date/time value that may arrive as a typed timestamp, a full
// timestamp string, a bare date string, or a bare time-of-day string. All
// representations normalize to a UTC time.Time; a bare time-of-day parses to
// the zero date (year 1) and must be combined with a date via Combine.
type FlexTime struct {
	t   time.Time
	set bool
}

// NewFlexTime wraps an already-typed value
func NewFlexTime(t time.Time) FlexTime {
	return FlexTime{t: t.UTC(), set: true}
}

// Time returns the normalized value; ok is false when the field was absent
func (f FlexTime) Time() (time.Time, bool) {
	return f.t, f.set
}

// IsSet reports whether the field carried a value
func (f FlexTime) IsSet() bool {
	return f.set
}

// TimeOnly reports whether the value carried a clock time with no date part
func (f FlexTime) TimeOnly() bool {
	return f.set && f.t.Year() == 1 && f.t.Month() == time.January && f.t.Day() == 1
}

// Combine applies f's clock time to the calendar date of d. When f already
// carries a date it is returned unchanged.
func (f FlexTime) Combine(d time.Time) (time.Time, bool) {
	if !f.set {
		return time.Time{}, false
	}
	if !f.TimeOnly() {
		return f.t, true
	}
	d = d.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), f.t.Hour(), f.t.Minute(), f.t.Second(), 0, time.UTC), true
}

func parseFlexString(s string) (time.Time, error) {
	for _, layout := range flexLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			// Clock-only layouts parse to year 0; pin them to year 1 so
			// TimeOnly detection has a single sentinel date.
			if t.Year() == 0 {
				t = time.Date(1, 1, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
			}
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date/time value %q", s)
}

// UnmarshalJSON accepts null, a string in any supported layout, or an
// RFC 3339 timestamp
func (f *FlexTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*f = FlexTime{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		t, err := parseFlexString(s[1 : len(s)-1])
		if err != nil {
			return err
		}
		*f = FlexTime{t: t, set: true}
		return nil
	}
	return fmt.Errorf("unrecognized date/time value %s", s)
}

// MarshalJSON renders the value as an RFC 3339 string, or null when unset
func (f FlexTime) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return []byte(`"` + f.t.Format(time.RFC3339) + `"`), nil
}

// UnmarshalBSONValue accepts a BSON datetime, a string in any supported
// layout, or null
func (f *FlexTime) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}

	switch t {
	case bson.TypeNull, bson.TypeUndefined:
		*f = FlexTime{}
		return nil
	case bson.TypeDateTime:
		*f = FlexTime{t: rv.Time().UTC(), set: true}
		return nil
	case bson.TypeString:
		parsed, err := parseFlexString(rv.StringValue())
		if err != nil {
			return err
		}
		*f = FlexTime{t: parsed, set: true}
		return nil
	default:
		return fmt.Errorf("cannot decode %v into a date/time value", t)
	}
}

// MarshalBSONValue renders the value as a BSON datetime, or null when unset
func (f FlexTime) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if !f.set {
		return bson.TypeNull, nil, nil
	}
	return bson.MarshalValue(f.t)
}
