package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in   string
		want Weekday
	}{
		{"monday", Monday},
		{"Monday", Monday},
		{"MONDAY", Monday},
		{"mon", Monday},
		{"sunday", Sunday},
		{"sat", Saturday},
	}

	for _, tt := range tests {
		got, err := ParseWeekday(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseWeekday("funday")
	assert.Error(t, err)
	_, err = ParseWeekday("")
	assert.Error(t, err)
}

func TestWeekdayJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Weekday
	}{
		{`"monday"`, Monday},
		{`"Fri"`, Friday},
		{`0`, Sunday},
		{`6`, Saturday},
	}

	for _, tt := range tests {
		var entry ScheduleEntry
		require.NoError(t, json.Unmarshal([]byte(`{"weekday": `+tt.in+`}`), &entry), tt.in)
		assert.Equal(t, tt.want, entry.Weekday, tt.in)
	}

	for _, in := range []string{`"funday"`, `7`, `-1`, `3.5`} {
		var entry ScheduleEntry
		assert.Error(t, json.Unmarshal([]byte(`{"weekday": `+in+`}`), &entry), in)
	}

	out, err := json.Marshal(Wednesday)
	require.NoError(t, err)
	assert.Equal(t, `"wednesday"`, string(out))
}

func TestWeekdayBSON(t *testing.T) {
	for _, doc := range []bson.M{
		{"weekday": "tuesday"},
		{"weekday": "TUE"},
		{"weekday": int32(2)},
		{"weekday": int64(2)},
	} {
		raw, err := bson.Marshal(doc)
		require.NoError(t, err)

		var entry ScheduleEntry
		require.NoError(t, bson.Unmarshal(raw, &entry))
		assert.Equal(t, Tuesday, entry.Weekday, "%v", doc["weekday"])
	}

	raw, err := bson.Marshal(bson.M{"weekday": "funday"})
	require.NoError(t, err)
	var entry ScheduleEntry
	assert.Error(t, bson.Unmarshal(raw, &entry))
}

func TestWeekdayValid(t *testing.T) {
	for w := Sunday; w <= Saturday; w++ {
		assert.True(t, w.Valid())
	}
	assert.False(t, Weekday(-1).Valid())
	assert.False(t, Weekday(7).Valid())
}
