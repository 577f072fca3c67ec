package abuse

import (
	"context"
	"testing"
	"time"

	"github.com/ShieldWorks/AdmitGate/mocks"
	"github.com/ShieldWorks/AdmitGate/pkg/config"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/abuse"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/fingerprint"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testAbuseConfig() config.AbuseConfig {
	return config.AbuseConfig{
		Interval:      time.Minute,
		Window:        10 * time.Minute,
		DevicesPerIP:  3,
		VelocityLimit: 30,
		PatternTTL:    time.Hour,
	}
}

func newTestDetector(t *testing.T, tracker *mocks.FingerprintTracker, repo *mocks.AbuseRepository) *Detector {
	challenges := mocks.NewChallengeRepository(t)
	challenges.On("ExpireStale", mock.Anything, mock.AnythingOfType("time.Time")).Return(int64(0), nil)
	return NewDetector(logrus.New(), testAbuseConfig(), tracker, repo, challenges)
}

func collectSavedPatterns(repo *mocks.AbuseRepository) *[]*abuse.Pattern {
	saved := &[]*abuse.Pattern{}
	repo.On("Save", mock.Anything, mock.AnythingOfType("*abuse.Pattern")).
		Run(func(args mock.Arguments) {
			*saved = append(*saved, args.Get(1).(*abuse.Pattern))
		}).
		Return(nil).Maybe()
	return saved
}

func TestSweepDetectsSharedIPCluster(t *testing.T) {
	tracker := mocks.NewFingerprintTracker(t)
	repo := mocks.NewAbuseRepository(t)
	saved := collectSavedPatterns(repo)

	devices := []string{"d1", "d2", "d3", "d4"}
	repo.On("DeactivateExpired", mock.Anything).Return(int64(0), nil)
	tracker.On("ScanIPs", mock.Anything).Return([]string{"1.2.3.4"}, nil)
	tracker.On("DevicesByIP", mock.Anything, "1.2.3.4").Return(devices, nil)
	tracker.On("GetFingerprint", mock.Anything, mock.AnythingOfType("string")).Return(nil, nil)
	tracker.On("GetRequestCount", mock.Anything, mock.AnythingOfType("string")).Return(int64(0), nil)

	d := newTestDetector(t, tracker, repo)
	d.Sweep(context.Background())

	require.Len(t, *saved, 1)
	p := (*saved)[0]
	assert.Equal(t, abuse.PatternSharedIP, p.Type)
	assert.Equal(t, "1.2.3.4", p.Target)
	assert.True(t, p.Active)
	assert.GreaterOrEqual(t, p.Score, 0.5)
	assert.Contains(t, p.Evidence, "device_count")
}

func TestSweepDetectsHighVelocityDevice(t *testing.T) {
	tracker := mocks.NewFingerprintTracker(t)
	repo := mocks.NewAbuseRepository(t)
	saved := collectSavedPatterns(repo)

	repo.On("DeactivateExpired", mock.Anything).Return(int64(0), nil)
	tracker.On("ScanIPs", mock.Anything).Return([]string{"1.2.3.4"}, nil)
	tracker.On("DevicesByIP", mock.Anything, "1.2.3.4").Return([]string{"burst"}, nil)
	tracker.On("GetFingerprint", mock.Anything, "burst").Return(nil, nil)
	tracker.On("GetRequestCount", mock.Anything, "burst").Return(int64(90), nil)

	d := newTestDetector(t, tracker, repo)
	d.Sweep(context.Background())

	require.Len(t, *saved, 1)
	p := (*saved)[0]
	assert.Equal(t, abuse.PatternHighVelocity, p.Type)
	assert.Equal(t, "burst", p.Target)
	assert.Equal(t, 1.0, p.Score)
}

func TestSweepDetectsSharedFingerprintHash(t *testing.T) {
	tracker := mocks.NewFingerprintTracker(t)
	repo := mocks.NewAbuseRepository(t)
	saved := collectSavedPatterns(repo)

	devices := []string{"d1", "d2", "d3"}
	repo.On("DeactivateExpired", mock.Anything).Return(int64(0), nil)
	tracker.On("ScanIPs", mock.Anything).Return([]string{"9.9.9.9"}, nil)
	tracker.On("DevicesByIP", mock.Anything, "9.9.9.9").Return(devices, nil)
	for _, id := range devices {
		tracker.On("GetFingerprint", mock.Anything, id).
			Return(&fingerprint.Fingerprint{Hash: "same-hash", DeviceID: id}, nil)
	}
	tracker.On("GetRequestCount", mock.Anything, mock.AnythingOfType("string")).Return(int64(0), nil)

	d := newTestDetector(t, tracker, repo)
	d.Sweep(context.Background())

	var found *abuse.Pattern
	for _, p := range *saved {
		if p.Type == abuse.PatternSharedFingerprint {
			found = p
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "same-hash", found.Target)
}

func TestSweepQuietTrafficProducesNoPatterns(t *testing.T) {
	tracker := mocks.NewFingerprintTracker(t)
	repo := mocks.NewAbuseRepository(t)
	saved := collectSavedPatterns(repo)

	repo.On("DeactivateExpired", mock.Anything).Return(int64(2), nil)
	tracker.On("ScanIPs", mock.Anything).Return([]string{"5.5.5.5"}, nil)
	tracker.On("DevicesByIP", mock.Anything, "5.5.5.5").Return([]string{"solo"}, nil)
	tracker.On("GetFingerprint", mock.Anything, "solo").Return(nil, nil)
	tracker.On("GetRequestCount", mock.Anything, "solo").Return(int64(3), nil)

	d := newTestDetector(t, tracker, repo)
	d.Sweep(context.Background())

	assert.Empty(t, *saved)
}

func TestScoreOverLimitBounds(t *testing.T) {
	assert.Equal(t, 0.5, scoreOverLimit(3, 3))
	assert.Equal(t, 1.0, scoreOverLimit(100, 3))
	assert.Equal(t, 1.0, scoreOverLimit(5, 0))
	assert.InDelta(t, 0.75, scoreOverLimit(6, 3), 0.001)
}
