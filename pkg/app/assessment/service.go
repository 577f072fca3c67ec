package assessment

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/cache"
	"github.com/ShieldWorks/AdmitGate/pkg/common"
	"github.com/ShieldWorks/AdmitGate/pkg/config"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/abuse"
	domainfp "github.com/ShieldWorks/AdmitGate/pkg/domain/fingerprint"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/risk"
	infrabehavior "github.com/ShieldWorks/AdmitGate/pkg/infra/behavior"
	infrafp "github.com/ShieldWorks/AdmitGate/pkg/infra/fingerprint"
	"github.com/ShieldWorks/AdmitGate/pkg/infra/metrics"
	infrarisk "github.com/ShieldWorks/AdmitGate/pkg/infra/risk"
	"github.com/ShieldWorks/AdmitGate/pkg/infra/threatintel"
	"github.com/sirupsen/logrus"
)

const (
	neutralBehaviorScore = 50.0
	maliciousThreshold   = 0.5
	blockDuration        = 24 * time.Hour
)

// Input carries everything one admission decision needs about the request.
type Input struct {
	Signals      map[string]interface{}
	Headers      map[string]string
	IP           string
	UserAgent    string
	SessionID    string
	SessionStart time.Time
	FileName     string
	FileSize     int64
	ContentHash  string
}

type Result struct {
	Fingerprint domainfp.Fingerprint
	Assessment  *risk.Assessment
}

//go:generate mockery --name=Service --dir=. --output=../../../mocks --filename=assessment_service_mock.go --case=underscore --with-expecter
type Service interface {
	// Assess runs the full pipeline: fingerprint, correlate, score, decide.
	// It degrades instead of failing; the only returned errors are context
	// cancellation.
	Assess(ctx context.Context, in Input) (*Result, error)
}

type service struct {
	logger    *logrus.Logger
	cfg       *config.Config
	collector infrafp.Collector
	tracker   infrafp.Tracker
	extractor infrabehavior.Extractor
	intel     threatintel.Client
	patterns  abuse.Repository
	engine    infrarisk.Engine
	registry  *metrics.Registry
	cache     *cache.Cache
	// blockCache short-circuits repeat requests from freshly blocked devices
	// without a Redis round trip.
	blockCache *cache.TTLMap
}

func NewService(
	logger *logrus.Logger,
	cfg *config.Config,
	collector infrafp.Collector,
	tracker infrafp.Tracker,
	extractor infrabehavior.Extractor,
	intel threatintel.Client,
	patterns abuse.Repository,
	engine infrarisk.Engine,
	registry *metrics.Registry,
	redisCache *cache.Cache,
) Service {
	return &service{
		logger:     logger,
		cfg:        cfg,
		collector:  collector,
		tracker:    tracker,
		extractor:  extractor,
		intel:      intel,
		patterns:   patterns,
		engine:     engine,
		registry:   registry,
		cache:      redisCache,
		blockCache: redisCache.CreateTTLMap(cache.FingerprintTTLName, common.FingerprintCacheTTL),
	}
}

func (s *service) Assess(ctx context.Context, in Input) (*Result, error) {
	started := time.Now()
	defer func() {
		s.registry.ScoreLatency.Observe(time.Since(started).Seconds())
	}()

	fp := s.collector.Collect(in.Signals, in.IP, in.UserAgent)

	if _, blocked := s.blockCache.Get(fp.ID()); blocked {
		a := s.blockedAssessment(fp.ID())
		s.registry.Decisions.WithLabelValues(string(a.Action)).Inc()
		return &Result{Fingerprint: fp, Assessment: a}, nil
	}

	if blocked, err := s.tracker.IsFingerprintBlocked(ctx, &fp); err != nil {
		s.logger.WithError(err).Warn("block check failed, continuing unblocked")
	} else if blocked {
		a := s.blockedAssessment(fp.ID())
		s.registry.Decisions.WithLabelValues(string(a.Action)).Inc()
		return &Result{Fingerprint: fp, Assessment: a}, nil
	}

	if err := s.tracker.Store(ctx, &fp, s.cfg.Abuse.Window); err != nil {
		s.logger.WithError(err).Warn("failed to store fingerprint")
	}

	features := s.assembleFeatures(ctx, &fp, in)
	a := s.engine.Score(ctx, fp.ID(), features)

	s.registry.Decisions.WithLabelValues(string(a.Action)).Inc()

	if a.Action == risk.ActionBlock {
		s.blockCache.Set(fp.ID(), true)
		if err := s.tracker.BlockFingerprint(ctx, &fp, blockDuration); err != nil {
			s.logger.WithError(err).Error("failed to block fingerprint")
		}
	}
	if a.IsThreat {
		if err := s.tracker.IncrementMaliciousCount(ctx, fp.ID(), s.cfg.Abuse.PatternTTL); err != nil {
			s.logger.WithError(err).Warn("failed to bump malicious count")
		}
	}

	s.publishAssessment(ctx, a)

	return &Result{Fingerprint: fp, Assessment: a}, nil
}

// publishAssessment mirrors the latest verdict per device into Redis so
// sibling nodes and operator tooling can read it without hitting Postgres.
func (s *service) publishAssessment(ctx context.Context, a *risk.Assessment) {
	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, "assessment:"+a.DeviceID, string(data), common.ProfileCacheTTL); err != nil {
		s.logger.WithError(err).Debug("failed to publish assessment to cache")
	}
}

// assembleFeatures gathers every estimator input. Each source is independent
// and best-effort: a failed lookup contributes its neutral value.
func (s *service) assembleFeatures(ctx context.Context, fp *domainfp.Fingerprint, in Input) risk.ThreatFeatures {
	now := time.Now()
	features := risk.ThreatFeatures{
		FingerprintConfidence: fp.Confidence,
		AnomalyTagCount:       len(fp.AnomalyTags),
		BehavioralScore:       neutralBehaviorScore,
		HourOfDay:             now.Hour(),
		FileTypeRisk:          fileTypeRisk(in.FileName),
		SizeAnomaly:           sizeAnomaly(in.FileSize),
		SuspiciousHeaders:     suspiciousHeaderCount(in.Headers),
	}

	if freq, err := s.tracker.RecordRequest(ctx, fp.ID(), s.cfg.Abuse.Window); err != nil {
		s.logger.WithError(err).Warn("failed to record request frequency")
	} else {
		features.RequestFrequency = float64(freq)
	}

	if in.ContentHash != "" {
		if sim, err := s.tracker.RecordContentHash(ctx, fp.ID(), in.ContentHash, s.cfg.Abuse.Window); err != nil {
			s.logger.WithError(err).Warn("failed to record content hash")
		} else {
			features.ContentSimilarity = sim
		}
	}

	if similar, err := s.tracker.FindSimilarFingerprints(ctx, fp); err != nil {
		s.logger.WithError(err).Warn("similar fingerprint lookup failed")
	} else if len(similar) > 0 {
		if n, err := s.tracker.CountMaliciousSimilarFingerprints(ctx, similar, maliciousThreshold); err == nil {
			features.SimilarMalicious = n
		}
		if n, err := s.tracker.CountBlockedSimilarFingerprints(ctx, similar); err == nil {
			features.SimilarBlocked = n
		}
	}

	if profile := s.extractor.Profile(in.SessionID); profile != nil {
		features.BehavioralScore = profile.Score
		features.IndicatorCount = len(profile.Indicators)
		for _, indicator := range profile.Indicators {
			if indicator == infrabehavior.IndicatorRegularTiming {
				features.TimingConsistency = 0.99
			}
		}
	}

	intel := s.intel.Lookup(ctx, fp.IP)
	features.IPReputation = intel.RiskScore
	features.IsTor = intel.IsTor
	features.IsVpn = intel.IsVpn
	features.GeoRisk = geoRisk(intel)

	features.ActivePatterns = s.countPatterns(ctx, fp)

	if !in.SessionStart.IsZero() {
		features.SessionDuration = now.Sub(in.SessionStart).Seconds()
	}

	return features
}

func (s *service) countPatterns(ctx context.Context, fp *domainfp.Fingerprint) int {
	targets := []string{fp.ID(), fp.IP, fp.Hash}
	seen := make(map[string]bool)
	total := 0
	for _, target := range targets {
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		patterns, err := s.patterns.ActiveForTarget(ctx, target)
		if err != nil {
			s.logger.WithError(err).WithField("target", target).Warn("abuse pattern lookup failed")
			continue
		}
		total += len(patterns)
	}
	return total
}

func (s *service) blockedAssessment(deviceID string) *risk.Assessment {
	a := risk.NewAssessment(deviceID)
	a.IsThreat = true
	a.ThreatScore = 100
	a.Confidence = 1.0
	a.Action = risk.ActionBlock
	a.Explanation = []string{"device fingerprint is under an active block"}
	return a
}

func geoRisk(intel threatintel.Intel) float64 {
	if intel.Degraded {
		return 0
	}
	// Country-level risk is folded into the upstream score; proxies add a
	// residual signal here.
	if intel.IsTor {
		return 0.8
	}
	if intel.IsVpn {
		return 0.4
	}
	return intel.RiskScore * 0.5
}

// automationHeaderMarkers are headers some automation frameworks leave on
// their outbound requests.
var automationHeaderMarkers = []string{"x-selenium", "x-puppeteer", "x-automation", "x-headless"}

// suspiciousHeaderCount counts header-level oddities. Browsers always send
// accept and accept-language with a request; automation stacks frequently
// drop them or leak marker headers.
func suspiciousHeaderCount(headers map[string]string) int {
	if len(headers) == 0 {
		return 0
	}
	count := 0
	if headers["accept"] == "" {
		count++
	}
	if headers["accept-language"] == "" {
		count++
	}
	for _, marker := range automationHeaderMarkers {
		if _, ok := headers[marker]; ok {
			count++
		}
	}
	return count
}

var riskyExtensions = map[string]float64{
	".exe": 0.9, ".dll": 0.9, ".scr": 0.9, ".bat": 0.8, ".cmd": 0.8,
	".ps1": 0.8, ".sh": 0.6, ".js": 0.6, ".jar": 0.7, ".vbs": 0.8,
	".zip": 0.4, ".rar": 0.4, ".7z": 0.4, ".iso": 0.5,
}

func fileTypeRisk(name string) float64 {
	if name == "" {
		return 0
	}
	ext := strings.ToLower(filepath.Ext(name))
	if r, ok := riskyExtensions[ext]; ok {
		return r
	}
	return 0.1
}

// sizeAnomaly flags degenerate sizes: empty payloads and outsized uploads.
func sizeAnomaly(size int64) float64 {
	const maxTypical = 500 << 20
	switch {
	case size == 0:
		return 0.7
	case size > maxTypical:
		return 1.0
	case size > maxTypical/2:
		return 0.5
	default:
		return 0
	}
}
