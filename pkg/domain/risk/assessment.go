package risk

import (
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionAllow     Action = "allow"
	ActionMonitor   Action = "monitor"
	ActionChallenge Action = "challenge"
	ActionBlock     Action = "block"
)

// ThreatFeatures is the fixed-width feature vector fed to every estimator.
type ThreatFeatures struct {
	IPReputation          float64 `json:"ip_reputation"`
	GeoRisk               float64 `json:"geo_risk"`
	IsTor                 bool    `json:"is_tor"`
	IsVpn                 bool    `json:"is_vpn"`
	BehavioralScore       float64 `json:"behavioral_score"`
	TimingConsistency     float64 `json:"timing_consistency"`
	IndicatorCount        int     `json:"indicator_count"`
	FingerprintConfidence float64 `json:"fingerprint_confidence"`
	AnomalyTagCount       int     `json:"anomaly_tag_count"`
	SimilarMalicious      int     `json:"similar_malicious"`
	SimilarBlocked        int     `json:"similar_blocked"`
	ActivePatterns        int     `json:"active_patterns"`
	HourOfDay             int     `json:"hour_of_day"`
	RequestFrequency      float64 `json:"request_frequency"`
	SessionDuration       float64 `json:"session_duration"`
	FileTypeRisk          float64 `json:"file_type_risk"`
	SizeAnomaly           float64 `json:"size_anomaly"`
	ContentSimilarity     float64 `json:"content_similarity"`
	SuspiciousHeaders     int     `json:"suspicious_headers"`
}

// Vector flattens the features into the numeric form estimators consume.
// Order is part of the estimator contract and must not change.
func (f ThreatFeatures) Vector() []float64 {
	return []float64{
		f.IPReputation,
		f.GeoRisk,
		boolToFloat(f.IsTor),
		boolToFloat(f.IsVpn),
		f.BehavioralScore / 100.0,
		f.TimingConsistency,
		float64(f.IndicatorCount),
		f.FingerprintConfidence,
		float64(f.AnomalyTagCount),
		float64(f.SimilarMalicious),
		float64(f.SimilarBlocked),
		float64(f.ActivePatterns),
		float64(f.HourOfDay) / 23.0,
		f.RequestFrequency,
		f.SessionDuration,
		f.FileTypeRisk,
		f.SizeAnomaly,
		f.ContentSimilarity,
		float64(f.SuspiciousHeaders),
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

// Assessment is the ensemble output for one request. It is an immutable audit
// artifact: created once, never mutated.
type Assessment struct {
	ID          string             `json:"id"`
	DeviceID    string             `json:"device_id"`
	IsThreat    bool               `json:"is_threat"`
	Confidence  float64            `json:"confidence"`
	ThreatScore int                `json:"threat_score"`
	SubScores   map[string]float64 `json:"sub_scores"`
	Features    ThreatFeatures     `json:"features"`
	Action      Action             `json:"recommended_action"`
	Explanation []string           `json:"explanation,omitempty"`
	Degraded    bool               `json:"degraded"`
	CreatedAt   time.Time          `json:"created_at"`
}

func NewAssessment(deviceID string) *Assessment {
	return &Assessment{
		ID:        uuid.New().String(),
		DeviceID:  deviceID,
		SubScores: make(map[string]float64),
		CreatedAt: time.Now(),
	}
}
