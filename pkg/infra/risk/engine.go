package risk

import (
	"context"
	"fmt"
	"math"

	"github.com/ShieldWorks/AdmitGate/pkg/config"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/risk"
	"github.com/ShieldWorks/AdmitGate/pkg/infra/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const neutralScore = 0.5

// AuditWriter persists assessments as immutable audit records.
type AuditWriter interface {
	SaveAssessment(ctx context.Context, a *risk.Assessment) error
}

// Alerter receives out-of-band notifications for high-confidence threats.
type Alerter interface {
	ThreatDetected(a *risk.Assessment)
}

//go:generate mockery --name=Engine --dir=. --output=../../../mocks --filename=risk_engine_mock.go --case=underscore --with-expecter
type Engine interface {
	Score(ctx context.Context, deviceID string, features risk.ThreatFeatures) *risk.Assessment
}

type engine struct {
	logger     *logrus.Logger
	cfg        config.RiskConfig
	estimators []Estimator
	weights    map[string]float64
	audit      AuditWriter
	alerter    Alerter
	registry   *metrics.Registry
}

func NewEngine(
	logger *logrus.Logger,
	cfg config.RiskConfig,
	audit AuditWriter,
	alerter Alerter,
	registry *metrics.Registry,
	estimators ...Estimator,
) Engine {
	if len(estimators) == 0 {
		estimators = []Estimator{
			NewTemporalEstimator(),
			NewSpatialEstimator(),
			NewReconstructionEstimator(),
			NewBaselineEstimator(),
		}
	}

	weights := map[string]float64{
		EstimatorTemporal:       cfg.TemporalWeight,
		EstimatorSpatial:        cfg.SpatialWeight,
		EstimatorReconstruction: cfg.ReconstructionWeight,
		EstimatorBaseline:       cfg.BaselineWeight,
	}

	return &engine{
		logger:     logger,
		cfg:        cfg,
		estimators: estimators,
		weights:    weights,
		audit:      audit,
		alerter:    alerter,
		registry:   registry,
	}
}

// Score fans the feature vector out to every estimator, joins the sub-scores
// into a weighted probability and derives the recommended action. A failed or
// slow estimator contributes a neutral sub-score instead of aborting the
// assessment.
func (e *engine) Score(ctx context.Context, deviceID string, features risk.ThreatFeatures) *risk.Assessment {
	assessment := risk.NewAssessment(deviceID)
	assessment.Features = features

	subScores := make([]float64, len(e.estimators))
	failed := make([]bool, len(e.estimators))

	g, gctx := errgroup.WithContext(ctx)
	for i, est := range e.estimators {
		g.Go(func() error {
			estCtx, cancel := context.WithTimeout(gctx, e.cfg.EstimatorTimeout)
			defer cancel()

			score, err := e.predict(estCtx, est, features)
			if err != nil {
				e.logger.WithError(err).WithField("estimator", est.Name()).Warn("estimator failed, substituting neutral score")
				e.registry.EstimatorFailures.WithLabelValues(est.Name()).Inc()
				subScores[i] = neutralScore
				failed[i] = true
				return nil
			}
			subScores[i] = score
			return nil
		})
	}
	_ = g.Wait()

	var weightedSum, weightTotal float64
	for i, est := range e.estimators {
		w := e.weights[est.Name()]
		if w <= 0 {
			w = 1.0 / float64(len(e.estimators))
		}
		assessment.SubScores[est.Name()] = subScores[i]
		weightedSum += subScores[i] * w
		weightTotal += w

		if failed[i] {
			assessment.Degraded = true
			assessment.Explanation = append(assessment.Explanation,
				fmt.Sprintf("estimator %s unavailable, neutral score substituted", est.Name()))
		}
	}

	probability := weightedSum / weightTotal
	assessment.ThreatScore = int(math.Round(probability * 100))
	assessment.Confidence = e.confidence(subScores, assessment.Degraded)
	assessment.IsThreat = assessment.ThreatScore >= e.cfg.ChallengeScore
	assessment.Action = e.decide(assessment.ThreatScore, assessment.Confidence)
	assessment.Explanation = append(assessment.Explanation, e.explain(features)...)

	if err := e.audit.SaveAssessment(ctx, assessment); err != nil {
		e.logger.WithError(err).Error("failed to persist risk assessment")
	}

	if assessment.IsThreat && assessment.Confidence > e.cfg.AlertConfidence {
		e.alerter.ThreatDetected(assessment)
	}

	return assessment
}

// predict shields the engine from estimator panics and timeouts.
func (e *engine) predict(ctx context.Context, est Estimator, features risk.ThreatFeatures) (float64, error) {
	type result struct {
		score float64
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("estimator %s panicked: %v", est.Name(), r)}
			}
		}()
		s, predictErr := est.Predict(ctx, features)
		ch <- result{score: s, err: predictErr}
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("estimator %s timed out: %w", est.Name(), ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return 0, res.err
		}
		if res.score < 0 || res.score > 1 {
			return 0, fmt.Errorf("estimator %s returned out-of-range score %f", est.Name(), res.score)
		}
		return res.score, nil
	}
}

// confidence is derived from inter-model agreement: low variance across
// sub-scores means high confidence. Degraded assessments are capped at the
// neutral 0.5.
func (e *engine) confidence(subScores []float64, degraded bool) float64 {
	if len(subScores) == 0 {
		return neutralScore
	}

	var sum float64
	for _, s := range subScores {
		sum += s
	}
	mean := sum / float64(len(subScores))

	var variance float64
	for _, s := range subScores {
		diff := s - mean
		variance += diff * diff
	}
	variance /= float64(len(subScores))

	// Scores live in [0,1]; 0.25 is the maximum possible variance.
	conf := 1.0 - math.Min(variance/0.25, 1.0)

	if degraded && conf > neutralScore {
		conf = neutralScore
	}
	return conf
}

func (e *engine) decide(score int, confidence float64) risk.Action {
	switch {
	case score >= e.cfg.BlockScore && confidence >= e.cfg.BlockConfidence:
		return risk.ActionBlock
	case score >= e.cfg.ChallengeScore && confidence >= e.cfg.ChallengeConfidence:
		return risk.ActionChallenge
	case score >= e.cfg.MonitorScore:
		return risk.ActionMonitor
	default:
		return risk.ActionAllow
	}
}

func (e *engine) explain(f risk.ThreatFeatures) []string {
	var notes []string
	if f.SimilarBlocked > 0 {
		notes = append(notes, fmt.Sprintf("%d blocked devices share this device's network neighbourhood", f.SimilarBlocked))
	}
	if f.ActivePatterns > 0 {
		notes = append(notes, fmt.Sprintf("%d active abuse patterns reference this device", f.ActivePatterns))
	}
	if f.IndicatorCount > 0 {
		notes = append(notes, fmt.Sprintf("%d behavioral bot indicators fired this session", f.IndicatorCount))
	}
	if f.IsTor {
		notes = append(notes, "request originates from a Tor exit node")
	}
	return notes
}
