package risk

import (
	"context"
	"math"

	"github.com/ShieldWorks/AdmitGate/pkg/domain/risk"
)

// Estimator is one model of the ensemble. Implementations are deterministic
// at inference time; training happens offline and is out of scope here.
//
//go:generate mockery --name=Estimator --dir=. --output=../../../mocks --filename=estimator_mock.go --case=underscore --with-expecter
type Estimator interface {
	Name() string
	// Predict returns a threat probability in [0,1] for the feature vector.
	Predict(ctx context.Context, features risk.ThreatFeatures) (float64, error)
}

const (
	EstimatorTemporal       = "temporal_sequence"
	EstimatorSpatial        = "spatial_pattern"
	EstimatorReconstruction = "reconstruction_error"
	EstimatorBaseline       = "baseline_tabular"
)

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// temporalEstimator scores timing-related signals: odd-hour access, request
// bursts, metronome-regular event cadence and very short sessions.
type temporalEstimator struct{}

func NewTemporalEstimator() Estimator { return &temporalEstimator{} }

func (e *temporalEstimator) Name() string { return EstimatorTemporal }

func (e *temporalEstimator) Predict(_ context.Context, f risk.ThreatFeatures) (float64, error) {
	x := 0.0

	if f.HourOfDay >= 2 && f.HourOfDay <= 6 {
		x += 0.8
	}
	if f.RequestFrequency > 30 {
		x += 2.0
	} else if f.RequestFrequency > 10 {
		x += 0.8
	}
	if f.TimingConsistency > 0.98 {
		x += 2.2
	}
	if f.SessionDuration > 0 && f.SessionDuration < 5 {
		x += 0.6
	}
	if f.ContentSimilarity > 0.8 {
		x += 1.2
	}

	return sigmoid(x - 2.0), nil
}

// spatialEstimator scores correlation signals: the device's neighbourhood of
// similar fingerprints, active abuse patterns and network provenance.
type spatialEstimator struct{}

func NewSpatialEstimator() Estimator { return &spatialEstimator{} }

func (e *spatialEstimator) Name() string { return EstimatorSpatial }

func (e *spatialEstimator) Predict(_ context.Context, f risk.ThreatFeatures) (float64, error) {
	x := 0.0

	x += math.Min(float64(f.SimilarMalicious)*0.9, 2.7)
	x += math.Min(float64(f.SimilarBlocked)*1.1, 3.3)
	x += math.Min(float64(f.ActivePatterns)*0.8, 2.4)
	if f.IsTor {
		x += 1.6
	}
	if f.IsVpn {
		x += 0.7
	}
	x += f.GeoRisk * 1.2

	return sigmoid(x - 2.5), nil
}

// reconstructionEstimator measures distance from a reference profile of
// benign traffic. Large reconstruction error means the request does not look
// like anything the reference was fit on.
type reconstructionEstimator struct {
	centroid []float64
}

// benignCentroid is the reference vector a well-behaved browser session
// produces, in risk.ThreatFeatures.Vector() order.
var benignCentroid = []float64{
	0.1,  // ip reputation
	0.1,  // geo risk
	0,    // tor
	0,    // vpn
	0.65, // behavioral score
	0.6,  // timing consistency
	0,    // indicator count
	0.8,  // fingerprint confidence
	0,    // anomaly tags
	0,    // similar malicious
	0,    // similar blocked
	0,    // active patterns
	0.55, // hour of day
	2,    // request frequency
	120,  // session duration
	0.2,  // file type risk
	0.1,  // size anomaly
	0.05, // content similarity
	0,    // suspicious headers
}

// featureScale normalizes the unbounded vector components before the
// distance computation so no single feature dominates.
var featureScale = []float64{
	1, 1, 1, 1, 1, 1, 5, 1, 5, 5, 5, 5, 1, 60, 600, 1, 1, 1, 3,
}

func NewReconstructionEstimator() Estimator {
	return &reconstructionEstimator{centroid: benignCentroid}
}

func (e *reconstructionEstimator) Name() string { return EstimatorReconstruction }

func (e *reconstructionEstimator) Predict(_ context.Context, f risk.ThreatFeatures) (float64, error) {
	vec := f.Vector()

	var errSum float64
	for i := range vec {
		diff := (vec[i] - e.centroid[i]) / featureScale[i]
		errSum += diff * diff
	}
	rmse := math.Sqrt(errSum / float64(len(vec)))

	return sigmoid(6.0*rmse - 2.0), nil
}

// baselineEstimator is the plain tabular classifier: a weighted sum of the
// strongest individual features.
type baselineEstimator struct{}

func NewBaselineEstimator() Estimator { return &baselineEstimator{} }

func (e *baselineEstimator) Name() string { return EstimatorBaseline }

func (e *baselineEstimator) Predict(_ context.Context, f risk.ThreatFeatures) (float64, error) {
	x := 0.0

	x += f.IPReputation * 2.0
	x += (1.0 - f.BehavioralScore/100.0) * 2.5
	x += float64(f.IndicatorCount) * 0.8
	x += (1.0 - f.FingerprintConfidence) * 1.5
	x += float64(f.AnomalyTagCount) * 0.7
	x += float64(f.SuspiciousHeaders) * 0.5
	x += f.FileTypeRisk * 0.8
	x += f.SizeAnomaly * 0.6

	return sigmoid(x - 3.0), nil
}
