package repository

import (
	"context"
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/domain/abuse"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type abuseRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewAbuseRepository(db *gorm.DB, logger *logrus.Logger) abuse.Repository {
	return &abuseRepository{db: db, logger: logger}
}

func (r *abuseRepository) Save(ctx context.Context, p *abuse.Pattern) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *abuseRepository) ActiveForTarget(ctx context.Context, target string) ([]abuse.Pattern, error) {
	var patterns []abuse.Pattern
	err := r.db.WithContext(ctx).
		Where("target = ? AND active = ? AND expires_at > ?", target, true, time.Now()).
		Find(&patterns).Error
	if err != nil {
		return nil, err
	}
	return patterns, nil
}

func (r *abuseRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&abuse.Pattern{}).
		Where("active = ? AND expires_at <= ?", true, time.Now()).
		Update("active", false)
	return result.RowsAffected, result.Error
}
