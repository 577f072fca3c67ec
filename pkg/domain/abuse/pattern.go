package abuse

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PatternType string

const (
	PatternSharedIP          PatternType = "shared_ip"
	PatternSharedFingerprint PatternType = "shared_fingerprint"
	PatternHighVelocity      PatternType = "high_velocity"
)

// Pattern is a detected correlation across identifiers, written by the
// periodic detector and consulted read-only by the risk engine.
type Pattern struct {
	ID        string      `json:"id" gorm:"primaryKey"`
	Type      PatternType `json:"type"`
	Target    string      `json:"target" gorm:"index"`
	Evidence  string      `json:"evidence"`
	Score     float64     `json:"score"`
	Active    bool        `json:"active" gorm:"index"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func NewPattern(t PatternType, target, evidence string, score float64, ttl time.Duration) *Pattern {
	now := time.Now()
	return &Pattern{
		ID:        uuid.New().String(),
		Type:      t,
		Target:    target,
		Evidence:  evidence,
		Score:     score,
		Active:    true,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

//go:generate mockery --name=Repository --dir=. --output=../../../mocks --filename=abuse_repository_mock.go --case=underscore --with-expecter
type Repository interface {
	Save(ctx context.Context, p *Pattern) error
	ActiveForTarget(ctx context.Context, target string) ([]Pattern, error)
	DeactivateExpired(ctx context.Context) (int64, error)
}
