package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/shared/logger"
	"github.com/stretchr/testify/assert"
)

func TestCompose_UsesGeneratedBody(t *testing.T) {
	gen := generatorFunc(func(_ context.Context, _ string) (string, error) {
		return "  3 of 5 done today. One more before lunch?  ", nil
	})
	composer := NewComposer(gen, logger.NewLogger())

	msg := composer.Compose(context.Background(), domain.ComposeContext{Checkpoint: domain.CheckpointMidday})

	assert.Equal(t, "Midday check-in", msg.Title)
	assert.Equal(t, "3 of 5 done today. One more before lunch?", msg.Body)
}

func TestCompose_FallbackNeverEmpty(t *testing.T) {
	tests := []struct {
		name string
		gen  generatorFunc
	}{
		{
			name: "generator error",
			gen: func(_ context.Context, _ string) (string, error) {
				return "", errors.New("upstream timeout")
			},
		},
		{
			name: "empty output",
			gen: func(_ context.Context, _ string) (string, error) {
				return "   ", nil
			},
		},
		{
			name: "oversized output",
			gen: func(_ context.Context, _ string) (string, error) {
				return strings.Repeat("x", maxBodyLength+1), nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			composer := NewComposer(tt.gen, logger.NewLogger())
			msg := composer.Compose(context.Background(), domain.ComposeContext{
				Checkpoint: domain.CheckpointMorning,
				StreakDays: 4,
			})

			assert.Equal(t, "Good morning!", msg.Title)
			assert.NotEmpty(t, msg.Body)
			assert.Contains(t, msg.Body, "4-day streak")
		})
	}
}

func TestCompose_NilGeneratorUsesFallback(t *testing.T) {
	composer := NewComposer(nil, logger.NewLogger())

	for checkpoint := range domain.CheckpointTimes {
		msg := composer.Compose(context.Background(), domain.ComposeContext{Checkpoint: checkpoint})
		assert.NotEmpty(t, msg.Title, "checkpoint %s", checkpoint)
		assert.NotEmpty(t, msg.Body, "checkpoint %s", checkpoint)
	}
}

func TestCompose_FallbacksAreCheckpointSpecific(t *testing.T) {
	composer := NewComposer(nil, logger.NewLogger())
	cc := domain.ComposeContext{TodayCompleted: 2, TodayTotal: 6, StreakDays: 3}

	bodies := make(map[string]bool)
	for checkpoint := range domain.CheckpointTimes {
		cc.Checkpoint = checkpoint
		msg := composer.Compose(context.Background(), cc)
		bodies[msg.Body] = true
	}

	assert.Len(t, bodies, len(domain.CheckpointTimes), "each checkpoint gets its own fallback")
}

func TestBuildPrompt_CarriesStatsAndRecentBodies(t *testing.T) {
	prompt := buildPrompt(domain.ComposeContext{
		Checkpoint:     domain.CheckpointEvening,
		TodayCompleted: 3,
		TodayTotal:     5,
		TodayPercent:   60,
		WeeklyPercent:  72,
		StreakDays:     9,
		RecentBodies:   []string{"Keep it up!", "Nice streak."},
		Summary:        "training for a 10k",
	})

	assert.Contains(t, prompt, "3 of 5")
	assert.Contains(t, prompt, "9 days")
	assert.Contains(t, prompt, "training for a 10k")
	assert.Contains(t, prompt, "Keep it up!")
	assert.Contains(t, prompt, "Nice streak.")
}
