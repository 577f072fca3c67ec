package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/config"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/challenge"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/risk"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound        = errors.New("challenge not found")
	ErrAlreadyResolved = errors.New("challenge already resolved")
	ErrAttemptTooSoon  = errors.New("challenge attempt before backoff deadline")
)

const (
	delayWait     = 10 * time.Second
	rateLimitWait = 30 * time.Second
	highFrequency = 10.0
)

// MFAVerifier checks a second-factor response against an external identity
// provider. Deployments without one leave it nil and the mfa type is refused
// at issue time.
type MFAVerifier interface {
	Verify(ctx context.Context, deviceID, response string) (bool, error)
}

// VerifyResult reports the outcome of one verification attempt.
type VerifyResult struct {
	Status     challenge.Status `json:"status"`
	Passed     bool             `json:"passed"`
	RetryAfter time.Duration    `json:"retry_after,omitempty"`
}

//go:generate mockery --name=Manager --dir=. --output=../../../mocks --filename=challenge_manager_mock.go --case=underscore --with-expecter
type Manager interface {
	// Issue creates a pending challenge for the assessment and returns it with
	// a signed token the client echoes back on verification.
	Issue(ctx context.Context, a *risk.Assessment) (*challenge.Challenge, string, error)
	Verify(ctx context.Context, id, response string) (*VerifyResult, error)
	Get(ctx context.Context, id string) (*challenge.Challenge, error)
	ParseToken(token string) (string, error)
	// ClientData is the payload subset safe to hand to the client.
	ClientData(c *challenge.Challenge) map[string]interface{}
}

type manager struct {
	logger *logrus.Logger
	cfg    config.ChallengeConfig
	repo   challenge.Repository
	mfa    MFAVerifier
}

func NewManager(
	logger *logrus.Logger,
	cfg config.ChallengeConfig,
	repo challenge.Repository,
	mfa MFAVerifier,
) Manager {
	return &manager{logger: logger, cfg: cfg, repo: repo, mfa: mfa}
}

func (m *manager) Issue(ctx context.Context, a *risk.Assessment) (*challenge.Challenge, string, error) {
	challengeType := m.chooseType(a)

	payload, err := m.buildPayload(challengeType)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build challenge payload: %w", err)
	}

	c := challenge.New(a.ID, a.DeviceID, challengeType, payload, m.cfg.Timeout)
	if err := m.repo.Save(ctx, c); err != nil {
		return nil, "", fmt.Errorf("failed to save challenge: %w", err)
	}

	token, err := m.signToken(c)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign challenge token: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"challenge_id": c.ID,
		"device_id":    c.DeviceID,
		"type":         c.Type,
	}).Info("challenge issued")

	return c, token, nil
}

// chooseType maps the assessment's dominant signal to a challenge type.
// Behavioral automation gets a compute-bound puzzle, request bursts get a
// cool-down, everything else gets a fixed delay.
func (m *manager) chooseType(a *risk.Assessment) challenge.Type {
	if a.Features.IndicatorCount > 0 || a.Features.AnomalyTagCount > 0 {
		return challenge.TypeCaptcha
	}
	if a.Features.RequestFrequency > highFrequency {
		return challenge.TypeRateLimit
	}
	return challenge.TypeDelay
}

func (m *manager) buildPayload(t challenge.Type) (string, error) {
	switch t {
	case challenge.TypeCaptcha:
		nonce, err := newNonce()
		if err != nil {
			return "", err
		}
		return marshalPayload(map[string]interface{}{
			"nonce":      nonce,
			"difficulty": m.cfg.PoWDifficulty,
		})
	case challenge.TypeDelay:
		return marshalPayload(map[string]interface{}{
			"wait_seconds": int(delayWait.Seconds()),
			"ready_at":     time.Now().Add(delayWait).Unix(),
		})
	case challenge.TypeRateLimit:
		return marshalPayload(map[string]interface{}{
			"retry_after_seconds": int(rateLimitWait.Seconds()),
			"ready_at":            time.Now().Add(rateLimitWait).Unix(),
		})
	case challenge.TypeMFA:
		if m.mfa == nil {
			return "", errors.New("mfa verifier not configured")
		}
		return marshalPayload(map[string]interface{}{"method": "totp"})
	default:
		return "", fmt.Errorf("unknown challenge type %q", t)
	}
}

// Verify evaluates one attempt. A pending challenge moves to a terminal state
// exactly once; expiry is applied lazily on first touch after the deadline.
func (m *manager) Verify(ctx context.Context, id, response string) (*VerifyResult, error) {
	c, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}

	if c.Terminal() {
		return &VerifyResult{Status: c.Status, Passed: c.Status == challenge.StatusVerified}, ErrAlreadyResolved
	}

	now := time.Now()
	if c.Expired(now) {
		if _, err := m.repo.Resolve(ctx, c.ID, challenge.StatusExpired); err != nil {
			return nil, err
		}
		return &VerifyResult{Status: challenge.StatusExpired}, nil
	}

	if now.Before(c.NextAttemptAt) {
		return &VerifyResult{
			Status:     challenge.StatusPending,
			RetryAfter: c.NextAttemptAt.Sub(now),
		}, ErrAttemptTooSoon
	}

	passed, err := m.evaluate(ctx, c, response, now)
	if err != nil {
		return nil, err
	}

	if passed {
		ok, err := m.repo.Resolve(ctx, c.ID, challenge.StatusVerified)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &VerifyResult{Status: challenge.StatusFailed}, ErrAlreadyResolved
		}
		return &VerifyResult{Status: challenge.StatusVerified, Passed: true}, nil
	}

	c.Attempts++
	if c.Attempts >= m.cfg.MaxAttempts {
		if _, err := m.repo.Resolve(ctx, c.ID, challenge.StatusFailed); err != nil {
			return nil, err
		}
		return &VerifyResult{Status: challenge.StatusFailed}, nil
	}

	backoff := m.backoff(c.Attempts)
	c.NextAttemptAt = now.Add(backoff)
	if err := m.repo.RecordAttempt(ctx, c); err != nil {
		return nil, err
	}

	return &VerifyResult{Status: challenge.StatusPending, RetryAfter: backoff}, nil
}

func (m *manager) evaluate(ctx context.Context, c *challenge.Challenge, response string, now time.Time) (bool, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(c.Payload), &payload); err != nil {
		return false, fmt.Errorf("corrupt challenge payload: %w", err)
	}

	switch c.Type {
	case challenge.TypeCaptcha:
		nonce, _ := payload["nonce"].(string)
		difficulty := intField(payload, "difficulty", m.cfg.PoWDifficulty)
		return solvesPuzzle(nonce, response, difficulty), nil
	case challenge.TypeDelay, challenge.TypeRateLimit:
		readyAt := int64(math.Round(floatField(payload, "ready_at")))
		// An early attempt is a failed attempt: waiting out the delay is the
		// challenge.
		return now.Unix() >= readyAt, nil
	case challenge.TypeMFA:
		if m.mfa == nil {
			return false, errors.New("mfa verifier not configured")
		}
		return m.mfa.Verify(ctx, c.DeviceID, response)
	default:
		return false, fmt.Errorf("unknown challenge type %q", c.Type)
	}
}

func (m *manager) Get(ctx context.Context, id string) (*challenge.Challenge, error) {
	return m.repo.Get(ctx, id)
}

func (m *manager) backoff(attempts int) time.Duration {
	d := m.cfg.BackoffBase * time.Duration(1<<(attempts-1))
	if max := m.cfg.Timeout / 2; d > max {
		d = max
	}
	return d
}

type tokenClaims struct {
	ChallengeID string `json:"challenge_id"`
	DeviceID    string `json:"device_id"`
	jwt.RegisteredClaims
}

func (m *manager) signToken(c *challenge.Challenge) (string, error) {
	claims := tokenClaims{
		ChallengeID: c.ID,
		DeviceID:    c.DeviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(c.CreatedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.cfg.SigningKey))
}

// ParseToken validates a challenge token and returns the challenge id.
func (m *manager) ParseToken(tokenString string) (string, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(m.cfg.SigningKey), nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid challenge token: %w", err)
	}
	if !token.Valid || claims.ChallengeID == "" {
		return "", errors.New("invalid challenge token")
	}
	return claims.ChallengeID, nil
}

// ClientData strips the payload down to what the client needs to solve the
// challenge. The captcha solution target stays server side only as far as the
// preimage is concerned; nonce and difficulty must go out.
func (m *manager) ClientData(c *challenge.Challenge) map[string]interface{} {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(c.Payload), &payload); err != nil {
		payload = map[string]interface{}{}
	}
	payload["challenge_id"] = c.ID
	payload["expires_at"] = c.ExpiresAt.Unix()
	return payload
}

func marshalPayload(fields map[string]interface{}) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func intField(payload map[string]interface{}, key string, fallback int) int {
	if v, ok := payload[key].(float64); ok {
		return int(v)
	}
	return fallback
}

func floatField(payload map[string]interface{}, key string) float64 {
	if v, ok := payload[key].(float64); ok {
		return v
	}
	return 0
}
