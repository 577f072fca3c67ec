package behavior

import (
	"context"
	"sync"
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/config"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/behavior"
	"github.com/sirupsen/logrus"
)

const (
	IndicatorLinearMovement  = "excessively linear movement"
	IndicatorTypingSpeed     = "impossible typing speed"
	IndicatorRegularTiming   = "machine-regular event timing"
	IndicatorNoPauses        = "no natural pauses in movement"
	IndicatorInstantReaction = "inhuman reaction time"

	initialScore     = 50.0
	indicatorPenalty = 15.0
	humanReward      = 2.0
	humanThreshold   = 40.0

	drainCadence = 250 * time.Millisecond
)

//go:generate mockery --name=Extractor --dir=. --output=../../../mocks --filename=behavior_extractor_mock.go --case=underscore --with-expecter
type Extractor interface {
	// Ingest queues one interaction event. It never blocks: when the queue is
	// full the event is dropped, bounding memory under event floods.
	Ingest(sessionID string, event behavior.Event)
	Profile(sessionID string) *behavior.Profile
	Start(ctx context.Context)
	Stop()
}

type queuedEvent struct {
	sessionID string
	event     behavior.Event
}

type sessionState struct {
	buffers map[behavior.Channel][]behavior.Event
	profile behavior.Profile
}

type extractor struct {
	logger *logrus.Logger
	cfg    config.BehaviorConfig

	events chan queuedEvent
	done   chan struct{}
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*sessionState
}

func NewExtractor(logger *logrus.Logger, cfg config.BehaviorConfig) Extractor {
	return &extractor{
		logger:   logger,
		cfg:      cfg,
		events:   make(chan queuedEvent, cfg.BufferSize),
		done:     make(chan struct{}),
		sessions: make(map[string]*sessionState),
	}
}

func (e *extractor) Ingest(sessionID string, event behavior.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case e.events <- queuedEvent{sessionID: sessionID, event: event}:
	default:
		e.logger.WithField("session_id", sessionID).Debug("behavior event queue full, dropping event")
	}
}

func (e *extractor) Profile(sessionID string) *behavior.Profile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	state, ok := e.sessions[sessionID]
	if !ok {
		return nil
	}
	p := state.profile
	return &p
}

func (e *extractor) Start(ctx context.Context) {
	e.wg.Add(1)
	go e.consume(ctx)
}

func (e *extractor) Stop() {
	close(e.done)
	e.wg.Wait()
}

// consume drains the event queue at a fixed cadence and evicts stale
// sessions. A single consumer goroutine owns all session state, so batch
// analysis needs no per-event locking.
func (e *extractor) consume(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(drainCadence)
	defer ticker.Stop()

	purge := time.NewTicker(e.cfg.Retention / 4)
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case qe := <-e.events:
			e.append(qe)
		case <-ticker.C:
			e.drainQueue()
		case <-purge.C:
			e.purgeStale()
		}
	}
}

func (e *extractor) append(qe queuedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.sessions[qe.sessionID]
	if !ok {
		state = &sessionState{
			buffers: make(map[behavior.Channel][]behavior.Event),
			profile: behavior.Profile{
				SessionID: qe.sessionID,
				Score:     initialScore,
				IsHuman:   true,
				UpdatedAt: time.Now(),
			},
		}
		e.sessions[qe.sessionID] = state
	}

	buf := append(state.buffers[qe.event.Channel], qe.event)
	if len(buf) > e.cfg.BufferSize {
		buf = buf[len(buf)-e.cfg.BufferSize:]
	}
	state.buffers[qe.event.Channel] = buf

	if len(buf) >= e.cfg.BatchSize {
		e.flush(state, qe.event.Channel)
	}
}

func (e *extractor) flush(state *sessionState, ch behavior.Channel) {
	batch := state.buffers[ch]
	state.buffers[ch] = nil

	stats := AnalyzePatterns(batch)
	indicators := e.DetectBotIndicators(stats)

	delta := humanReward
	if len(indicators) > 0 {
		delta = -indicatorPenalty * float64(len(indicators))
	}

	p := &state.profile
	p.Score = clamp(p.Score+delta, 0, 100)
	p.IsHuman = p.Score >= humanThreshold
	p.Indicators = mergeIndicators(p.Indicators, indicators)
	p.Batches++
	p.UpdatedAt = time.Now()

	if len(indicators) > 0 {
		e.logger.WithFields(logrus.Fields{
			"session_id": p.SessionID,
			"channel":    ch,
			"indicators": indicators,
			"score":      p.Score,
		}).Debug("bot indicators fired")
	}
}

// DetectBotIndicators applies the threshold rules to one batch's stats.
func (e *extractor) DetectBotIndicators(stats behavior.PatternStats) []string {
	var indicators []string

	if stats.Channel == behavior.ChannelPointer || stats.Channel == behavior.ChannelTouch {
		if stats.EventCount >= 5 && stats.Linearity > e.cfg.LinearityLimit {
			indicators = append(indicators, IndicatorLinearMovement)
		}
		if stats.EventCount > 20 && stats.StopCount == 0 {
			indicators = append(indicators, IndicatorNoPauses)
		}
	}

	if stats.Channel == behavior.ChannelKeystroke {
		if stats.TypingSpeed > e.cfg.TypingSpeedLimit {
			indicators = append(indicators, IndicatorTypingSpeed)
		}
		if stats.ReactionTime > 0 && stats.ReactionTime < 80 {
			indicators = append(indicators, IndicatorInstantReaction)
		}
	}

	if stats.EventCount >= 5 && stats.TimingConsistency > 0.98 {
		indicators = append(indicators, IndicatorRegularTiming)
	}

	return indicators
}

func (e *extractor) drainQueue() {
	for {
		select {
		case qe := <-e.events:
			e.append(qe)
		default:
			return
		}
	}
}

// purgeStale drops sessions past the retention window regardless of flush
// state, bounding memory.
func (e *extractor) purgeStale() {
	cutoff := time.Now().Add(-e.cfg.Retention)

	e.mu.Lock()
	defer e.mu.Unlock()
	for id, state := range e.sessions {
		if state.profile.UpdatedAt.Before(cutoff) {
			delete(e.sessions, id)
		}
	}
}

func mergeIndicators(existing, fresh []string) []string {
	for _, f := range fresh {
		found := false
		for _, ex := range existing {
			if ex == f {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, f)
		}
	}
	return existing
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
