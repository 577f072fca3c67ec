package behavior

import (
	"context"
	"testing"
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/config"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/behavior"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBehaviorConfig() config.BehaviorConfig {
	return config.BehaviorConfig{
		BatchSize:        10,
		BufferSize:       100,
		Retention:        time.Minute,
		LinearityLimit:   0.95,
		TypingSpeedLimit: 20,
	}
}

// linearPointerEvents moves in a perfectly straight line at machine-regular
// cadence, the signature of synthetic input.
func linearPointerEvents(n int) []behavior.Event {
	base := time.Now()
	events := make([]behavior.Event, n)
	for i := 0; i < n; i++ {
		events[i] = behavior.Event{
			Channel:   behavior.ChannelPointer,
			X:         float64(i) * 100,
			Y:         0,
			Timestamp: base.Add(time.Duration(i) * 50 * time.Millisecond),
		}
	}
	return events
}

// jitteryPointerEvents wanders with uneven spacing and pauses like a human.
func jitteryPointerEvents(n int) []behavior.Event {
	base := time.Now()
	events := make([]behavior.Event, n)
	offsets := []float64{0, 40, 65, 50, 120, 90, 160, 140, 200, 230}
	gaps := []time.Duration{0, 30, 180, 45, 400, 60, 250, 35, 700, 90}

	elapsed := time.Duration(0)
	for i := 0; i < n; i++ {
		elapsed += gaps[i%len(gaps)] * time.Millisecond
		events[i] = behavior.Event{
			Channel:   behavior.ChannelPointer,
			X:         offsets[i%len(offsets)],
			Y:         offsets[(i+3)%len(offsets)],
			Timestamp: base.Add(elapsed),
		}
	}
	return events
}

func TestAnalyzePatternsLinearMovement(t *testing.T) {
	stats := AnalyzePatterns(linearPointerEvents(20))

	assert.Equal(t, behavior.ChannelPointer, stats.Channel)
	assert.Equal(t, 20, stats.EventCount)
	assert.InDelta(t, 1.0, stats.Linearity, 0.001)
	assert.InDelta(t, 1.0, stats.TimingConsistency, 0.001)
	assert.Equal(t, 0, stats.StopCount)
	assert.Equal(t, 0, stats.DirectionChanges)
}

func TestAnalyzePatternsHumanMovement(t *testing.T) {
	stats := AnalyzePatterns(jitteryPointerEvents(10))

	assert.Less(t, stats.Linearity, 0.95)
	assert.Less(t, stats.TimingConsistency, 0.98)
	assert.Greater(t, stats.DirectionChanges, 0)
}

func TestAnalyzePatternsKeystrokes(t *testing.T) {
	base := time.Now()
	batch := make([]behavior.Event, 11)
	for i := range batch {
		batch[i] = behavior.Event{
			Channel:   behavior.ChannelKeystroke,
			Key:       "a",
			Timestamp: base.Add(time.Duration(i) * 20 * time.Millisecond),
		}
	}

	stats := AnalyzePatterns(batch)

	// 11 keys over 200ms is 55 keys/s, far beyond human typing.
	assert.Greater(t, stats.TypingSpeed, 50.0)
	assert.InDelta(t, 20.0, stats.ReactionTime, 0.001)
}

func TestAnalyzePatternsEmptyBatch(t *testing.T) {
	stats := AnalyzePatterns(nil)
	assert.Equal(t, 0, stats.EventCount)
}

func TestDetectBotIndicatorsLinearMovement(t *testing.T) {
	e := NewExtractor(logrus.New(), testBehaviorConfig()).(*extractor)

	stats := AnalyzePatterns(linearPointerEvents(25))
	indicators := e.DetectBotIndicators(stats)

	assert.Contains(t, indicators, IndicatorLinearMovement)
	assert.Contains(t, indicators, IndicatorRegularTiming)
	assert.Contains(t, indicators, IndicatorNoPauses)
}

func TestDetectBotIndicatorsHumanMovementClean(t *testing.T) {
	e := NewExtractor(logrus.New(), testBehaviorConfig()).(*extractor)

	stats := AnalyzePatterns(jitteryPointerEvents(10))
	indicators := e.DetectBotIndicators(stats)

	assert.Empty(t, indicators)
}

func TestDetectBotIndicatorsImpossibleTyping(t *testing.T) {
	e := NewExtractor(logrus.New(), testBehaviorConfig()).(*extractor)

	indicators := e.DetectBotIndicators(behavior.PatternStats{
		Channel:      behavior.ChannelKeystroke,
		EventCount:   4,
		TypingSpeed:  45,
		ReactionTime: 20,
	})

	assert.Contains(t, indicators, IndicatorTypingSpeed)
	assert.Contains(t, indicators, IndicatorInstantReaction)
}

func TestExtractorFlushLowersScoreForBotTraffic(t *testing.T) {
	cfg := testBehaviorConfig()
	e := NewExtractor(logrus.New(), cfg).(*extractor)

	for _, event := range linearPointerEvents(cfg.BatchSize) {
		e.append(queuedEvent{sessionID: "bot-session", event: event})
	}

	profile := e.Profile("bot-session")
	require.NotNil(t, profile)
	assert.Less(t, profile.Score, initialScore)
	assert.NotEmpty(t, profile.Indicators)
	assert.Equal(t, 1, profile.Batches)
}

func TestExtractorFlushRaisesScoreForHumanTraffic(t *testing.T) {
	cfg := testBehaviorConfig()
	e := NewExtractor(logrus.New(), cfg).(*extractor)

	for _, event := range jitteryPointerEvents(cfg.BatchSize) {
		e.append(queuedEvent{sessionID: "human-session", event: event})
	}

	profile := e.Profile("human-session")
	require.NotNil(t, profile)
	assert.Greater(t, profile.Score, initialScore)
	assert.True(t, profile.IsHuman)
}

func TestExtractorScoreClampedAtZero(t *testing.T) {
	cfg := testBehaviorConfig()
	e := NewExtractor(logrus.New(), cfg).(*extractor)

	for i := 0; i < 10; i++ {
		for _, event := range linearPointerEvents(cfg.BatchSize) {
			e.append(queuedEvent{sessionID: "s", event: event})
		}
	}

	profile := e.Profile("s")
	require.NotNil(t, profile)
	assert.GreaterOrEqual(t, profile.Score, 0.0)
	assert.False(t, profile.IsHuman)
}

func TestExtractorUnknownSessionHasNoProfile(t *testing.T) {
	e := NewExtractor(logrus.New(), testBehaviorConfig())
	assert.Nil(t, e.Profile("never-seen"))
}

func TestExtractorIngestDropsWhenQueueFull(t *testing.T) {
	cfg := testBehaviorConfig()
	cfg.BufferSize = 2
	e := NewExtractor(logrus.New(), cfg)

	// Not started, so nothing drains the queue; extra events must drop
	// instead of blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			e.Ingest("s", behavior.Event{Channel: behavior.ChannelPointer})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Ingest blocked on a full queue")
	}
}

func TestExtractorConsumesQueuedEvents(t *testing.T) {
	cfg := testBehaviorConfig()
	e := NewExtractor(logrus.New(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	defer e.Stop()

	for _, event := range linearPointerEvents(cfg.BatchSize) {
		e.Ingest("session-1", event)
	}

	require.Eventually(t, func() bool {
		p := e.Profile("session-1")
		return p != nil && p.Batches >= 1
	}, 2*time.Second, 20*time.Millisecond)
}
