package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/domain/challenge"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type challengeRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewChallengeRepository(db *gorm.DB, logger *logrus.Logger) challenge.Repository {
	return &challengeRepository{db: db, logger: logger}
}

func (r *challengeRepository) Save(ctx context.Context, c *challenge.Challenge) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *challengeRepository) Get(ctx context.Context, id string) (*challenge.Challenge, error) {
	var c challenge.Challenge
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Resolve is a compare-and-swap on the status column. Only a pending row is
// touched, so concurrent resolutions collapse to exactly one winner.
func (r *challengeRepository) Resolve(ctx context.Context, id string, to challenge.Status) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&challenge.Challenge{}).
		Where("id = ? AND status = ?", id, challenge.StatusPending).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *challengeRepository) RecordAttempt(ctx context.Context, c *challenge.Challenge) error {
	result := r.db.WithContext(ctx).
		Model(&challenge.Challenge{}).
		Where("id = ? AND status = ?", c.ID, challenge.StatusPending).
		Updates(map[string]interface{}{
			"attempts":        c.Attempts,
			"next_attempt_at": c.NextAttemptAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		r.logger.WithField("challenge_id", c.ID).Debug("attempt recorded against terminal challenge, ignored")
	}
	return nil
}

// terminal challenges are kept for the audit trail; old pending rows that were
// never touched again are swept here.
func (r *challengeRepository) ExpireStale(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&challenge.Challenge{}).
		Where("status = ? AND expires_at < ?", challenge.StatusPending, olderThan).
		Update("status", challenge.StatusExpired)
	return result.RowsAffected, result.Error
}
