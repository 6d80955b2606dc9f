package domain

import (
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Weekday is an enumerated day of week, Sunday = 0, matching time.Weekday.
// Schedule entries carry a Weekday value instead of a free-form day-name key
// so a misspelled day cannot silently drop an entry; entries written by the
// surrounding app may encode the day as either a number or a name, and both
// decode here.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var weekdayNames = [7]string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

// String returns the lowercase English day name
func (w Weekday) String() string {
	if w < Sunday || w > Saturday {
		return fmt.Sprintf("weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

// Valid reports whether w is one of the seven defined days
func (w Weekday) Valid() bool {
	return w >= Sunday && w <= Saturday
}

// ParseWeekday parses a day name, tolerant of case and three-letter
// abbreviations ("Mon", "monday", "MONDAY")
func ParseWeekday(s string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, full := range weekdayNames {
		if name == full || (len(name) == 3 && name == full[:3]) {
			return Weekday(i), nil
		}
	}
	return -1, fmt.Errorf("unknown weekday %q", s)
}

// UnmarshalJSON accepts a day index or a day name string
func (w *Weekday) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		parsed, err := ParseWeekday(s[1 : len(s)-1])
		if err != nil {
			return err
		}
		*w = parsed
		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || !Weekday(n).Valid() {
		return fmt.Errorf("unrecognized weekday value %s", s)
	}
	*w = Weekday(n)
	return nil
}

// MarshalJSON renders the lowercase day name
func (w Weekday) MarshalJSON() ([]byte, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("cannot encode invalid weekday %d", int(w))
	}
	return []byte(`"` + w.String() + `"`), nil
}

// UnmarshalBSONValue accepts a BSON int32/int64 day index or a day name
// string
func (w *Weekday) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}

	switch t {
	case bson.TypeString:
		parsed, err := ParseWeekday(rv.StringValue())
		if err != nil {
			return err
		}
		*w = parsed
		return nil
	case bson.TypeInt32, bson.TypeInt64:
		n := Weekday(rv.AsInt64())
		if !n.Valid() {
			return fmt.Errorf("weekday index %d out of range", rv.AsInt64())
		}
		*w = n
		return nil
	default:
		return fmt.Errorf("cannot decode %v into a weekday", t)
	}
}

// MarshalBSONValue renders the lowercase day name
func (w Weekday) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if !w.Valid() {
		return 0, nil, fmt.Errorf("cannot encode invalid weekday %d", int(w))
	}
	return bson.MarshalValue(w.String())
}
