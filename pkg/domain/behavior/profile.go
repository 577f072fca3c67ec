package behavior

import "time"

type Channel string

const (
	ChannelPointer   Channel = "pointer"
	ChannelKeystroke Channel = "keystroke"
	ChannelTouch     Channel = "touch"
)

// Event is a single client interaction sample.
type Event struct {
	Channel   Channel   `json:"channel"`
	X         float64   `json:"x,omitempty"`
	Y         float64   `json:"y,omitempty"`
	Key       string    `json:"key,omitempty"`
	Touches   int       `json:"touches,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PatternStats are the per-batch aggregates computed when a channel buffer
// flushes.
type PatternStats struct {
	Channel           Channel `json:"channel"`
	EventCount        int     `json:"event_count"`
	AvgVelocity       float64 `json:"avg_velocity"`
	VelocityVariance  float64 `json:"velocity_variance"`
	DirectionChanges  int     `json:"direction_changes"`
	StopCount         int     `json:"stop_count"`
	Linearity         float64 `json:"linearity"`
	TimingConsistency float64 `json:"timing_consistency"`
	TypingSpeed       float64 `json:"typing_speed"`
	ReactionTime      float64 `json:"reaction_time"`
	GestureComplexity float64 `json:"gesture_complexity"`
}

// Profile is the rolling, session-scoped behavioral aggregate. Score is in
// [0,100]; higher means more human-like.
type Profile struct {
	SessionID  string    `json:"session_id"`
	Score      float64   `json:"score"`
	IsHuman    bool      `json:"is_human"`
	Indicators []string  `json:"indicators,omitempty"`
	Batches    int       `json:"batches"`
	UpdatedAt  time.Time `json:"updated_at"`
}
