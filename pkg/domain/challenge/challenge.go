package challenge

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeCaptcha   Type = "captcha"
	TypeDelay     Type = "delay"
	TypeRateLimit Type = "rate_limit"
	TypeMFA       Type = "mfa"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
	StatusExpired  Status = "expired"
)

// Challenge is one outstanding human-verification task tied to a risk
// assessment. Status transitions exactly once from pending to a terminal
// state; a terminal challenge never changes again.
type Challenge struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	AssessmentID  string    `json:"assessment_id" gorm:"index"`
	DeviceID      string    `json:"device_id" gorm:"index"`
	Type          Type      `json:"type"`
	Payload       string    `json:"payload"`
	Status        Status    `json:"status" gorm:"index"`
	Attempts      int       `json:"attempts"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func New(assessmentID, deviceID string, t Type, payload string, ttl time.Duration) *Challenge {
	now := time.Now()
	return &Challenge{
		ID:           uuid.New().String(),
		AssessmentID: assessmentID,
		DeviceID:     deviceID,
		Type:         t,
		Payload:      payload,
		Status:       StatusPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

func (c *Challenge) Terminal() bool {
	return c.Status != StatusPending
}

func (c *Challenge) Expired(now time.Time) bool {
	return c.Status == StatusPending && now.After(c.ExpiresAt)
}
