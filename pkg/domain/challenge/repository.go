package challenge

import (
	"context"
	"time"
)

//go:generate mockery --name=Repository --dir=. --output=../../../mocks --filename=challenge_repository_mock.go --case=underscore --with-expecter
type Repository interface {
	Save(ctx context.Context, c *Challenge) error
	Get(ctx context.Context, id string) (*Challenge, error)
	// Resolve moves a pending challenge to the given terminal status. It
	// returns false when the challenge was already terminal, without touching
	// the stored row.
	Resolve(ctx context.Context, id string, to Status) (bool, error)
	// RecordAttempt bumps the attempt counter and backoff deadline of a
	// pending challenge.
	RecordAttempt(ctx context.Context, c *Challenge) error
	// ExpireStale marks pending challenges whose deadline passed before any
	// further attempt touched them.
	ExpireStale(ctx context.Context, olderThan time.Time) (int64, error)
}
