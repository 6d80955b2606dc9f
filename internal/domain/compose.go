package domain

// ComposeContext is the deterministic context assembled before the generative
// fill step. Every field is typed and populated by the orchestrator up front;
// the generative step only reads it.
type ComposeContext struct {
	Checkpoint     CheckpointType
	TodayCompleted int
	TodayTotal     int
	TodayPercent   float64
	WeeklyPercent  float64
	StreakDays     int
	RecentBodies   []string
	Summary        string
}

// Message is a composed notification title and body
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
