package abuse

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/config"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/abuse"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/challenge"
	"github.com/ShieldWorks/AdmitGate/pkg/infra/fingerprint"
	"github.com/sirupsen/logrus"
)

// Detector runs the periodic correlation sweep over recent identifier
// activity and persists detected abuse patterns. It never sits on the
// request path; the risk engine only reads the patterns it writes.
type Detector struct {
	logger     *logrus.Logger
	cfg        config.AbuseConfig
	tracker    fingerprint.Tracker
	repo       abuse.Repository
	challenges challenge.Repository
	done       chan struct{}
}

func NewDetector(
	logger *logrus.Logger,
	cfg config.AbuseConfig,
	tracker fingerprint.Tracker,
	repo abuse.Repository,
	challenges challenge.Repository,
) *Detector {
	return &Detector{
		logger:     logger,
		cfg:        cfg,
		tracker:    tracker,
		repo:       repo,
		challenges: challenges,
		done:       make(chan struct{}),
	}
}

func (d *Detector) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Detector) Stop() {
	close(d.done)
}

func (d *Detector) run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case <-ticker.C:
			d.Sweep(ctx)
		}
	}
}

// Sweep executes one correlation pass. Exported so operators can trigger it
// out of cycle and tests can drive it directly.
func (d *Detector) Sweep(ctx context.Context) {
	if expired, err := d.repo.DeactivateExpired(ctx); err != nil {
		d.logger.WithError(err).Error("failed to deactivate expired abuse patterns")
	} else if expired > 0 {
		d.logger.WithField("count", expired).Debug("deactivated expired abuse patterns")
	}

	if expired, err := d.challenges.ExpireStale(ctx, time.Now()); err != nil {
		d.logger.WithError(err).Error("failed to expire stale challenges")
	} else if expired > 0 {
		d.logger.WithField("count", expired).Debug("expired stale challenges")
	}

	ips, err := d.tracker.ScanIPs(ctx)
	if err != nil {
		d.logger.WithError(err).Error("abuse sweep failed to enumerate IPs")
		return
	}

	for _, ip := range ips {
		devices, err := d.tracker.DevicesByIP(ctx, ip)
		if err != nil {
			d.logger.WithError(err).WithField("ip", ip).Warn("failed to read device set")
			continue
		}

		d.checkSharedIP(ctx, ip, devices)
		d.checkSharedFingerprint(ctx, devices)
		d.checkVelocity(ctx, devices)
	}
}

// checkSharedFingerprint flags a signal hash reused by several distinct
// device ids, which points at a farmed or replayed fingerprint.
func (d *Detector) checkSharedFingerprint(ctx context.Context, devices []string) {
	byHash := make(map[string][]string)
	for _, id := range devices {
		fp, err := d.tracker.GetFingerprint(ctx, id)
		if err != nil || fp == nil {
			continue
		}
		byHash[fp.Hash] = append(byHash[fp.Hash], id)
	}

	for hash, ids := range byHash {
		if len(ids) < d.cfg.DevicesPerIP {
			continue
		}

		evidence, _ := json.Marshal(map[string]interface{}{
			"device_count": len(ids),
			"devices":      capList(ids, 20),
		})

		score := scoreOverLimit(float64(len(ids)), float64(d.cfg.DevicesPerIP))
		pattern := abuse.NewPattern(abuse.PatternSharedFingerprint, hash, string(evidence), score, d.cfg.PatternTTL)

		if err := d.repo.Save(ctx, pattern); err != nil {
			d.logger.WithError(err).WithField("hash", hash).Error("failed to save shared-fingerprint pattern")
			continue
		}

		d.logger.WithFields(logrus.Fields{
			"hash":         hash,
			"device_count": len(ids),
		}).Warn("shared-fingerprint abuse pattern detected")
	}
}

// checkSharedIP flags an IP once too many distinct devices appear behind it
// inside the tracking window.
func (d *Detector) checkSharedIP(ctx context.Context, ip string, devices []string) {
	if len(devices) < d.cfg.DevicesPerIP {
		return
	}

	evidence, _ := json.Marshal(map[string]interface{}{
		"device_count": len(devices),
		"devices":      capList(devices, 20),
	})

	score := scoreOverLimit(float64(len(devices)), float64(d.cfg.DevicesPerIP))
	pattern := abuse.NewPattern(abuse.PatternSharedIP, ip, string(evidence), score, d.cfg.PatternTTL)

	if err := d.repo.Save(ctx, pattern); err != nil {
		d.logger.WithError(err).WithField("ip", ip).Error("failed to save shared-ip pattern")
		return
	}

	d.logger.WithFields(logrus.Fields{
		"ip":           ip,
		"device_count": len(devices),
		"score":        score,
	}).Warn("shared-ip abuse pattern detected")
}

// checkVelocity flags individual devices whose windowed request count exceeds
// the velocity limit.
func (d *Detector) checkVelocity(ctx context.Context, devices []string) {
	for _, id := range devices {
		count, err := d.tracker.GetRequestCount(ctx, id)
		if err != nil {
			d.logger.WithError(err).WithField("device_id", id).Warn("failed to read request count")
			continue
		}
		if count <= int64(d.cfg.VelocityLimit) {
			continue
		}

		evidence, _ := json.Marshal(map[string]interface{}{
			"request_count": count,
			"window":        d.cfg.Window.String(),
		})

		score := scoreOverLimit(float64(count), float64(d.cfg.VelocityLimit))
		pattern := abuse.NewPattern(abuse.PatternHighVelocity, id, string(evidence), score, d.cfg.PatternTTL)

		if err := d.repo.Save(ctx, pattern); err != nil {
			d.logger.WithError(err).WithField("device_id", id).Error("failed to save velocity pattern")
			continue
		}

		d.logger.WithFields(logrus.Fields{
			"device_id":     id,
			"request_count": count,
		}).Warn("high-velocity abuse pattern detected")
	}
}

// scoreOverLimit maps how far a value sits past its limit onto [0.5, 1.0].
func scoreOverLimit(value, limit float64) float64 {
	if limit <= 0 {
		return 1.0
	}
	ratio := value / limit
	score := 0.5 + (ratio-1.0)*0.25
	if score > 1.0 {
		score = 1.0
	}
	if score < 0.5 {
		score = 0.5
	}
	return score
}

func capList(items []string, max int) []string {
	if len(items) <= max {
		return items
	}
	return items[:max]
}
