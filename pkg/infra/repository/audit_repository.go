package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/domain/risk"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AssessmentRecord is the append-only audit row written for every completed
// risk assessment. Records are created, never updated or deleted.
type AssessmentRecord struct {
	ID          string    `gorm:"primaryKey"`
	DeviceID    string    `gorm:"index"`
	ThreatScore int
	Confidence  float64
	Action      string
	Degraded    bool
	Payload     string
	CreatedAt   time.Time `gorm:"index"`
}

type AuditRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewAuditRepository(db *gorm.DB, logger *logrus.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

func (r *AuditRepository) SaveAssessment(ctx context.Context, a *risk.Assessment) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}

	record := AssessmentRecord{
		ID:          a.ID,
		DeviceID:    a.DeviceID,
		ThreatScore: a.ThreatScore,
		Confidence:  a.Confidence,
		Action:      string(a.Action),
		Degraded:    a.Degraded,
		Payload:     string(payload),
		CreatedAt:   a.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *AuditRepository) RecentForDevice(ctx context.Context, deviceID string, limit int) ([]AssessmentRecord, error) {
	var records []AssessmentRecord
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
