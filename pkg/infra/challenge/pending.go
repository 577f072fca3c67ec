package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/cache"
	"github.com/go-redis/redis/v8"
)

const pendingKey = "challenge:pending:%s"

// PendingOperation is the request held back while its challenge is
// outstanding. Once the challenge is verified the operation is replayed
// verbatim.
type PendingOperation struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Body     []byte `json:"body,omitempty"`
	DeviceID string `json:"device_id"`
}

//go:generate mockery --name=PendingStore --dir=. --output=../../../mocks --filename=pending_store_mock.go --case=underscore --with-expecter
type PendingStore interface {
	Save(ctx context.Context, challengeID string, op PendingOperation, ttl time.Duration) error
	// Take returns the stored operation and removes it, so a verified
	// challenge replays its operation at most once. A missing entry returns
	// nil without error.
	Take(ctx context.Context, challengeID string) (*PendingOperation, error)
}

type pendingStore struct {
	cache *cache.Cache
}

func NewPendingStore(c *cache.Cache) PendingStore {
	return &pendingStore{cache: c}
}

func (s *pendingStore) Save(ctx context.Context, challengeID string, op PendingOperation, ttl time.Duration) error {
	data, err := json.Marshal(op)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, fmt.Sprintf(pendingKey, challengeID), string(data), ttl)
}

func (s *pendingStore) Take(ctx context.Context, challengeID string) (*PendingOperation, error) {
	key := fmt.Sprintf(pendingKey, challengeID)

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		return nil, err
	}

	var op PendingOperation
	if err := json.Unmarshal([]byte(data), &op); err != nil {
		return nil, fmt.Errorf("corrupt pending operation for challenge %s: %w", challengeID, err)
	}
	return &op, nil
}
