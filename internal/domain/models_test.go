package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobIDDerivation(t *testing.T) {
	assert.Equal(t, "checkpoint:a@example.com:morning", CheckpointJobID("a@example.com", CheckpointMorning))

	runAt := time.Date(2025, 6, 2, 17, 20, 0, 0, time.UTC)
	assert.Equal(t, "reminder:a@example.com:1748884800", ReminderJobID("a@example.com", runAt))

	// The id is zone-independent: the same instant in any zone derives the
	// same job id.
	est := runAt.In(time.FixedZone("EST", -5*3600))
	assert.Equal(t, ReminderJobID("a@example.com", runAt), ReminderJobID("a@example.com", est))
}

func TestDeviceLockID(t *testing.T) {
	assert.Equal(t, "tok1:morning:2025-06-02", DeviceLockID("tok1", "morning", "2025-06-02"))

	// Distinct reminders on one day claim distinct slots.
	a := DeviceLockID("tok1", "reminder:1748884800", "2025-06-02")
	b := DeviceLockID("tok1", "reminder:1748892000", "2025-06-02")
	assert.NotEqual(t, a, b)
}

func TestCheckpointTypeValid(t *testing.T) {
	for _, cp := range []CheckpointType{CheckpointMorning, CheckpointMidday, CheckpointEvening, CheckpointNight} {
		assert.True(t, cp.Valid(), "checkpoint %s", cp)
	}
	assert.False(t, CheckpointType("brunch").Valid())
	assert.False(t, CheckpointType("").Valid())
}
