package challenge_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ShieldWorks/AdmitGate/mocks"
	"github.com/ShieldWorks/AdmitGate/pkg/config"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/challenge"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/risk"
	infrachallenge "github.com/ShieldWorks/AdmitGate/pkg/infra/challenge"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testChallengeConfig() config.ChallengeConfig {
	return config.ChallengeConfig{
		Timeout:       5 * time.Minute,
		MaxAttempts:   3,
		BackoffBase:   2 * time.Second,
		PoWDifficulty: 1,
		SigningKey:    "test-signing-key",
	}
}

func newTestManager(t *testing.T) (infrachallenge.Manager, *mocks.ChallengeRepository) {
	repo := mocks.NewChallengeRepository(t)
	return infrachallenge.NewManager(logrus.New(), testChallengeConfig(), repo, nil), repo
}

func pendingChallenge(t challenge.Type, payload string) *challenge.Challenge {
	return &challenge.Challenge{
		ID:        "ch-1",
		DeviceID:  "device-1",
		Type:      t,
		Payload:   payload,
		Status:    challenge.StatusPending,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
}

// solvePuzzle brute-forces the proof-of-work the way a client would: find a
// solution whose sha256(nonce+solution) digest starts with difficulty zero
// hex digits.
func solvePuzzle(t *testing.T, nonce string, difficulty int) string {
	t.Helper()
	target := strings.Repeat("0", difficulty)
	for i := 0; i < 200000; i++ {
		candidate := strconv.Itoa(i)
		sum := sha256.Sum256([]byte(nonce + candidate))
		if strings.HasPrefix(hex.EncodeToString(sum[:]), target) {
			return candidate
		}
	}
	t.Fatal("no proof-of-work solution found")
	return ""
}

func TestIssuePicksCaptchaForBehavioralIndicators(t *testing.T) {
	m, repo := newTestManager(t)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*challenge.Challenge")).Return(nil)

	a := risk.NewAssessment("device-1")
	a.Features.IndicatorCount = 2

	ch, token, err := m.Issue(context.Background(), a)
	require.NoError(t, err)
	require.NotNil(t, ch)

	assert.Equal(t, challenge.TypeCaptcha, ch.Type)
	assert.Equal(t, challenge.StatusPending, ch.Status)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(ch.Payload), &payload))
	assert.NotEmpty(t, payload["nonce"])
	assert.EqualValues(t, 1, payload["difficulty"])

	id, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, ch.ID, id)
}

func TestIssuePicksRateLimitForBursts(t *testing.T) {
	m, repo := newTestManager(t)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	a := risk.NewAssessment("device-1")
	a.Features.RequestFrequency = 40

	ch, _, err := m.Issue(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, challenge.TypeRateLimit, ch.Type)
}

func TestVerifyCorrectPoWSolution(t *testing.T) {
	m, repo := newTestManager(t)

	nonce := "a1b2c3d4e5f60718"
	payload, _ := json.Marshal(map[string]interface{}{"nonce": nonce, "difficulty": 1})
	ch := pendingChallenge(challenge.TypeCaptcha, string(payload))

	solution := solvePuzzle(t, nonce, 1)

	repo.On("Get", mock.Anything, "ch-1").Return(ch, nil)
	repo.On("Resolve", mock.Anything, "ch-1", challenge.StatusVerified).Return(true, nil)

	result, err := m.Verify(context.Background(), "ch-1", solution)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, challenge.StatusVerified, result.Status)
}

func TestVerifyWrongSolutionRecordsAttemptWithBackoff(t *testing.T) {
	m, repo := newTestManager(t)

	payload, _ := json.Marshal(map[string]interface{}{"nonce": "abc", "difficulty": 6})
	ch := pendingChallenge(challenge.TypeCaptcha, string(payload))

	repo.On("Get", mock.Anything, "ch-1").Return(ch, nil)
	repo.On("RecordAttempt", mock.Anything, mock.MatchedBy(func(c *challenge.Challenge) bool {
		return c.Attempts == 1 && !c.NextAttemptAt.IsZero()
	})).Return(nil)

	result, err := m.Verify(context.Background(), "ch-1", "not-the-answer")
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Equal(t, challenge.StatusPending, result.Status)
	assert.Equal(t, 2*time.Second, result.RetryAfter)
}

func TestVerifyExhaustedAttemptsFails(t *testing.T) {
	m, repo := newTestManager(t)

	payload, _ := json.Marshal(map[string]interface{}{"nonce": "abc", "difficulty": 6})
	ch := pendingChallenge(challenge.TypeCaptcha, string(payload))
	ch.Attempts = 2

	repo.On("Get", mock.Anything, "ch-1").Return(ch, nil)
	repo.On("Resolve", mock.Anything, "ch-1", challenge.StatusFailed).Return(true, nil)

	result, err := m.Verify(context.Background(), "ch-1", "wrong")
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusFailed, result.Status)
}

func TestVerifyDelayChallengePrematureAttemptFails(t *testing.T) {
	m, repo := newTestManager(t)

	payload, _ := json.Marshal(map[string]interface{}{
		"wait_seconds": 10,
		"ready_at":     time.Now().Add(time.Minute).Unix(),
	})
	ch := pendingChallenge(challenge.TypeDelay, string(payload))

	repo.On("Get", mock.Anything, "ch-1").Return(ch, nil)
	repo.On("RecordAttempt", mock.Anything, mock.Anything).Return(nil)

	result, err := m.Verify(context.Background(), "ch-1", "")
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Equal(t, challenge.StatusPending, result.Status)
}

func TestVerifyDelayChallengeAfterWaitSucceeds(t *testing.T) {
	m, repo := newTestManager(t)

	payload, _ := json.Marshal(map[string]interface{}{
		"wait_seconds": 10,
		"ready_at":     time.Now().Add(-time.Second).Unix(),
	})
	ch := pendingChallenge(challenge.TypeDelay, string(payload))

	repo.On("Get", mock.Anything, "ch-1").Return(ch, nil)
	repo.On("Resolve", mock.Anything, "ch-1", challenge.StatusVerified).Return(true, nil)

	result, err := m.Verify(context.Background(), "ch-1", "")
	require.NoError(t, err)
	assert.True(t, result.Passed)
}

func TestVerifyExpiredChallengeResolvesExpired(t *testing.T) {
	m, repo := newTestManager(t)

	ch := pendingChallenge(challenge.TypeDelay, `{"ready_at":0}`)
	ch.ExpiresAt = time.Now().Add(-time.Minute)

	repo.On("Get", mock.Anything, "ch-1").Return(ch, nil)
	repo.On("Resolve", mock.Anything, "ch-1", challenge.StatusExpired).Return(true, nil)

	result, err := m.Verify(context.Background(), "ch-1", "")
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusExpired, result.Status)
	assert.False(t, result.Passed)
}

func TestVerifyTerminalChallengeIsImmutable(t *testing.T) {
	m, repo := newTestManager(t)

	ch := pendingChallenge(challenge.TypeCaptcha, `{}`)
	ch.Status = challenge.StatusVerified

	repo.On("Get", mock.Anything, "ch-1").Return(ch, nil)

	result, err := m.Verify(context.Background(), "ch-1", "anything")
	assert.ErrorIs(t, err, infrachallenge.ErrAlreadyResolved)
	assert.Equal(t, challenge.StatusVerified, result.Status)
	assert.True(t, result.Passed)
}

func TestVerifyLostResolveRaceReportsAlreadyResolved(t *testing.T) {
	m, repo := newTestManager(t)

	payload, _ := json.Marshal(map[string]interface{}{
		"wait_seconds": 10,
		"ready_at":     time.Now().Add(-time.Second).Unix(),
	})
	ch := pendingChallenge(challenge.TypeDelay, string(payload))

	repo.On("Get", mock.Anything, "ch-1").Return(ch, nil)
	repo.On("Resolve", mock.Anything, "ch-1", challenge.StatusVerified).Return(false, nil)

	_, err := m.Verify(context.Background(), "ch-1", "")
	assert.ErrorIs(t, err, infrachallenge.ErrAlreadyResolved)
}

func TestVerifyBackoffDeadlineRejectsEarlyAttempt(t *testing.T) {
	m, repo := newTestManager(t)

	ch := pendingChallenge(challenge.TypeCaptcha, `{"nonce":"abc","difficulty":6}`)
	ch.Attempts = 1
	ch.NextAttemptAt = time.Now().Add(30 * time.Second)

	repo.On("Get", mock.Anything, "ch-1").Return(ch, nil)

	result, err := m.Verify(context.Background(), "ch-1", "wrong")
	assert.ErrorIs(t, err, infrachallenge.ErrAttemptTooSoon)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestVerifyUnknownChallenge(t *testing.T) {
	m, repo := newTestManager(t)
	repo.On("Get", mock.Anything, "missing").Return(nil, nil)

	_, err := m.Verify(context.Background(), "missing", "")
	assert.ErrorIs(t, err, infrachallenge.ErrNotFound)
}

func TestParseTokenRejectsTamperedToken(t *testing.T) {
	m, repo := newTestManager(t)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	a := risk.NewAssessment("device-1")
	_, token, err := m.Issue(context.Background(), a)
	require.NoError(t, err)

	_, err = m.ParseToken(token + "x")
	assert.Error(t, err)

	other := infrachallenge.NewManager(logrus.New(), config.ChallengeConfig{
		Timeout: time.Minute, MaxAttempts: 3, BackoffBase: time.Second,
		PoWDifficulty: 1, SigningKey: "different-key",
	}, repo, nil)
	_, err = other.ParseToken(token)
	assert.Error(t, err)
}
