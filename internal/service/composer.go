package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/metrics"
	"github.com/pulseplan/go-nudge-service/internal/shared/logger"
)

// maxBodyLength caps a generated body; anything longer is treated as
// malformed output and replaced by the fallback.
const maxBodyLength = 400

// TextGenerator produces a single short message body from a prompt. Any
// implementation failure is absorbed by the composer's fallback.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Composer assembles a checkpoint message. The context is built
// deterministically before the generative step runs, and every failure path
// lands on a checkpoint-specific deterministic fallback: Compose never fails
// and never returns an empty body.
type Composer struct {
	gen TextGenerator
	log *logger.Logger
}

// NewComposer creates a composer; gen may be nil, which disables the
// generative step entirely
func NewComposer(gen TextGenerator, log *logger.Logger) *Composer {
	return &Composer{gen: gen, log: log}
}

var checkpointTitles = map[domain.CheckpointType]string{
	domain.CheckpointMorning: "Good morning!",
	domain.CheckpointMidday:  "Midday check-in",
	domain.CheckpointEvening: "Evening review",
	domain.CheckpointNight:   "Before you wind down",
}

// Compose produces the message for one checkpoint send
func (c *Composer) Compose(ctx context.Context, cc domain.ComposeContext) domain.Message {
	title := checkpointTitles[cc.Checkpoint]
	if title == "" {
		title = "Check-in"
	}

	if c.gen != nil {
		body, err := c.gen.Generate(ctx, buildPrompt(cc))
		body = strings.TrimSpace(body)
		switch {
		case err != nil:
			c.log.Warn("Generative step failed, using fallback", "error", err, "checkpoint", cc.Checkpoint)
		case body == "" || len(body) > maxBodyLength:
			c.log.Warn("Generative step returned unusable output, using fallback", "checkpoint", cc.Checkpoint, "length", len(body))
		default:
			return domain.Message{Title: title, Body: body}
		}
	}

	metrics.ComposeFallbacks.WithLabelValues(string(cc.Checkpoint)).Inc()
	return domain.Message{Title: title, Body: fallbackBody(cc)}
}

// buildPrompt renders the deterministic context into the generation prompt.
// The generative step is asked, but not programmatically verified, to quote
// the literal numbers it is given.
func buildPrompt(cc domain.ComposeContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write one short, encouraging %s health nudge for a mobile notification.\n", cc.Checkpoint)
	b.WriteString("Respond with the notification body only: a single plain-text string, no quotes, no markdown, under 200 characters.\n")
	fmt.Fprintf(&b, "Today: %d of %d action items done (%.0f%%). Week so far: %.0f%%. Current streak: %d days.\n",
		cc.TodayCompleted, cc.TodayTotal, cc.TodayPercent, cc.WeeklyPercent, cc.StreakDays)
	b.WriteString("Quote these numbers exactly as given.\n")

	if cc.Summary != "" {
		fmt.Fprintf(&b, "About the user: %s\n", cc.Summary)
	}
	if len(cc.RecentBodies) > 0 {
		b.WriteString("Do not repeat these recent notifications:\n")
		for _, body := range cc.RecentBodies {
			fmt.Fprintf(&b, "- %s\n", body)
		}
	}

	return b.String()
}

// fallbackBody is the deterministic body used whenever the generative step is
// unavailable or misbehaves
func fallbackBody(cc domain.ComposeContext) string {
	switch cc.Checkpoint {
	case domain.CheckpointMorning:
		if cc.StreakDays > 0 {
			return fmt.Sprintf("A new day on a %d-day streak. Pick one action item and get it done early.", cc.StreakDays)
		}
		return "A fresh day to work on your goals. Start with one small step."
	case domain.CheckpointMidday:
		if cc.TodayTotal > 0 {
			return fmt.Sprintf("You're at %d of %d for today. A quick win now keeps the afternoon easy.", cc.TodayCompleted, cc.TodayTotal)
		}
		return "Halfway through the day. A quick check-in keeps you on track."
	case domain.CheckpointEvening:
		if cc.TodayTotal > 0 {
			return fmt.Sprintf("Today so far: %d of %d done. There's still time to close the gap.", cc.TodayCompleted, cc.TodayTotal)
		}
		return "The day isn't over yet. One more action item before dinner?"
	case domain.CheckpointNight:
		if cc.StreakDays > 0 {
			return fmt.Sprintf("Day done. Your streak stands at %d days. Rest well.", cc.StreakDays)
		}
		return "Day done. Tomorrow is a fresh start. Rest well."
	default:
		return "Time for a quick check-in on your goals."
	}
}
