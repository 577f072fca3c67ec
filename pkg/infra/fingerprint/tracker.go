package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/cache"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/fingerprint"
	"github.com/ShieldWorks/AdmitGate/pkg/utils"
	"github.com/go-redis/redis/v8"
)

const (
	DefaultExpiration = 5 * time.Minute

	fingerPrintKey          = "fp:%s"
	fingerPrintSeenKey      = "fp:%s:seen"
	fingerPrintBlockedKey   = "fp:%s:blocked"
	fingerPrintMaliciousKey = "fp:%s:malicious"
	fingerPrintFreqKey      = "fp:%s:freq"
	fingerPrintContentKey   = "fp:%s:content"
	fingerPrintByIpKey      = "fp_by_ip:%s"
	fingerPrintByUaKey      = "fp_by_ua:%s"

	contentHistorySize = 20
)

//go:generate mockery --name=Tracker --dir=. --output=../../../mocks --filename=fingerprint_tracker_mock.go --case=underscore --with-expecter
type Tracker interface {
	Store(ctx context.Context, fp *fingerprint.Fingerprint, ttl time.Duration) error
	GetFingerprint(ctx context.Context, id string) (*fingerprint.Fingerprint, error)
	FindSimilarFingerprints(ctx context.Context, fp *fingerprint.Fingerprint) ([]fingerprint.Fingerprint, error)
	CountMaliciousSimilarFingerprints(ctx context.Context, fps []fingerprint.Fingerprint, blockThreshold float64) (int, error)
	CountBlockedSimilarFingerprints(ctx context.Context, fps []fingerprint.Fingerprint) (int, error)
	IsFingerprintBlocked(ctx context.Context, fp *fingerprint.Fingerprint) (bool, error)
	BlockFingerprint(ctx context.Context, fp *fingerprint.Fingerprint, duration time.Duration) error
	IncrementMaliciousCount(ctx context.Context, id string, ttl time.Duration) error
	GetMaliciousCount(ctx context.Context, id string) (int, error)
	// RecordRequest bumps the device's windowed request counter and returns
	// the count inside the window, used as the frequency feature.
	RecordRequest(ctx context.Context, id string, window time.Duration) (int64, error)
	// RecordContentHash appends the request's content hash to the device's
	// recent history and returns the share of recent requests carrying the
	// same hash. Replayed payloads converge on 1.
	RecordContentHash(ctx context.Context, id, hash string, window time.Duration) (float64, error)
	// DevicesByIP returns the device ids seen behind one IP, for the abuse
	// correlator.
	DevicesByIP(ctx context.Context, ip string) ([]string, error)
	// ScanIPs enumerates the IPs with a live device set.
	ScanIPs(ctx context.Context) ([]string, error)
	GetRequestCount(ctx context.Context, id string) (int64, error)
}

type tracker struct {
	redis *cache.Cache
}

func NewTracker(redis *cache.Cache) Tracker {
	return &tracker{redis: redis}
}

func (t *tracker) Store(ctx context.Context, fp *fingerprint.Fingerprint, ttl time.Duration) error {
	id := fp.ID()

	data, err := json.Marshal(fp)
	if err != nil {
		return err
	}

	pipe := t.redis.Client().TxPipeline()

	pipe.Set(ctx, fmt.Sprintf(fingerPrintKey, id), data, ttl)

	pipe.Incr(ctx, fmt.Sprintf(fingerPrintSeenKey, id))
	pipe.Expire(ctx, fmt.Sprintf(fingerPrintSeenKey, id), ttl)

	if fp.IP != "" {
		key := fmt.Sprintf(fingerPrintByIpKey, fp.IP)
		pipe.SAdd(ctx, key, id)
		pipe.Expire(ctx, key, ttl)
	}
	if fp.UserAgent != "" {
		key := fmt.Sprintf(fingerPrintByUaKey, fp.UserAgent)
		pipe.SAdd(ctx, key, id)
		pipe.Expire(ctx, key, ttl)
	}

	_, err = pipe.Exec(ctx)
	return err
}

func (t *tracker) GetFingerprint(ctx context.Context, id string) (*fingerprint.Fingerprint, error) {
	data, err := t.redis.Client().Get(ctx, fmt.Sprintf(fingerPrintKey, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var fp fingerprint.Fingerprint
	if err := json.Unmarshal(data, &fp); err != nil {
		return nil, err
	}
	return &fp, nil
}

func (t *tracker) FindSimilarFingerprints(
	ctx context.Context,
	fp *fingerprint.Fingerprint,
) ([]fingerprint.Fingerprint, error) {
	var keys []string

	if fp.IP != "" {
		keys = append(keys, fmt.Sprintf(fingerPrintByIpKey, fp.IP))
	}
	if fp.UserAgent != "" {
		keys = append(keys, fmt.Sprintf(fingerPrintByUaKey, fp.UserAgent))
	}
	if len(keys) < 2 {
		return nil, nil
	}

	ids, err := t.redis.Client().SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var results []fingerprint.Fingerprint
	for _, id := range ids {
		if id == fp.ID() {
			continue
		}
		data, err := t.redis.Client().Get(ctx, fmt.Sprintf(fingerPrintKey, id)).Bytes()
		if err != nil {
			continue
		}
		var other fingerprint.Fingerprint
		if err := json.Unmarshal(data, &other); err != nil {
			continue
		}
		matchCount := 0
		if fp.IP != "" && utils.LevenshteinDistance(fp.IP, other.IP) <= 2 {
			matchCount++
		}
		if fp.UserAgent != "" && utils.LevenshteinDistance(fp.UserAgent, other.UserAgent) <= 2 {
			matchCount++
		}
		if matchCount >= 2 {
			results = append(results, other)
		}
	}

	return results, nil
}

func (t *tracker) CountMaliciousSimilarFingerprints(
	ctx context.Context,
	fps []fingerprint.Fingerprint,
	blockThreshold float64,
) (int, error) {
	malicious := 0
	for _, f := range fps {
		id := f.ID()
		badKey := fmt.Sprintf(fingerPrintMaliciousKey, id)
		seenKey := fmt.Sprintf(fingerPrintSeenKey, id)

		pipe := t.redis.Client().Pipeline()
		bad := pipe.Get(ctx, badKey)
		seen := pipe.Get(ctx, seenKey)
		_, err := pipe.Exec(ctx)
		if err != nil {
			continue
		}

		badCount, err := bad.Int64()
		if err != nil {
			continue
		}
		seenCount, err := seen.Int64()
		if err != nil {
			continue
		}
		if seenCount > 0 && float64(badCount)/float64(seenCount) >= blockThreshold {
			malicious++
		}
	}
	return malicious, nil
}

func (t *tracker) CountBlockedSimilarFingerprints(
	ctx context.Context,
	fps []fingerprint.Fingerprint,
) (int, error) {
	if len(fps) == 0 {
		return 0, nil
	}

	pipe := t.redis.Client().Pipeline()
	cmds := make([]*redis.IntCmd, len(fps))

	for i, f := range fps {
		cmds[i] = pipe.Exists(ctx, fmt.Sprintf(fingerPrintBlockedKey, f.ID()))
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return 0, err
	}

	blocked := 0
	for _, cmd := range cmds {
		exists, err := cmd.Result()
		if err == nil && exists == 1 {
			blocked++
		}
	}

	return blocked, nil
}

func (t *tracker) IsFingerprintBlocked(ctx context.Context, fp *fingerprint.Fingerprint) (bool, error) {
	exists, err := t.redis.Client().Exists(ctx, fmt.Sprintf(fingerPrintBlockedKey, fp.ID())).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

func (t *tracker) BlockFingerprint(
	ctx context.Context,
	fp *fingerprint.Fingerprint,
	duration time.Duration,
) error {
	return t.redis.Client().Set(ctx, fmt.Sprintf(fingerPrintBlockedKey, fp.ID()), "1", duration).Err()
}

func (t *tracker) IncrementMaliciousCount(ctx context.Context, id string, ttl time.Duration) error {
	if err := t.redis.Client().Incr(ctx, fmt.Sprintf(fingerPrintMaliciousKey, id)).Err(); err != nil {
		return err
	}
	return t.redis.Client().Expire(ctx, fmt.Sprintf(fingerPrintMaliciousKey, id), ttl).Err()
}

func (t *tracker) GetMaliciousCount(ctx context.Context, id string) (int, error) {
	count, err := t.redis.Client().Get(ctx, fmt.Sprintf(fingerPrintMaliciousKey, id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (t *tracker) RecordRequest(ctx context.Context, id string, window time.Duration) (int64, error) {
	key := fmt.Sprintf(fingerPrintFreqKey, id)
	pipe := t.redis.Client().TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (t *tracker) RecordContentHash(ctx context.Context, id, hash string, window time.Duration) (float64, error) {
	key := fmt.Sprintf(fingerPrintContentKey, id)

	pipe := t.redis.Client().TxPipeline()
	pipe.LPush(ctx, key, hash)
	pipe.LTrim(ctx, key, 0, contentHistorySize-1)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	hashes, err := t.redis.Client().LRange(ctx, key, 0, contentHistorySize-1).Result()
	if err != nil {
		return 0, err
	}
	if len(hashes) < 2 {
		return 0, nil
	}

	matches := 0
	for _, h := range hashes {
		if h == hash {
			matches++
		}
	}
	return float64(matches) / float64(len(hashes)), nil
}

func (t *tracker) ScanIPs(ctx context.Context) ([]string, error) {
	prefix := fmt.Sprintf(fingerPrintByIpKey, "")
	var (
		ips    []string
		cursor uint64
	)
	for {
		keys, next, err := t.redis.Client().Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			ips = append(ips, key[len(prefix):])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ips, nil
}

func (t *tracker) GetRequestCount(ctx context.Context, id string) (int64, error) {
	count, err := t.redis.Client().Get(ctx, fmt.Sprintf(fingerPrintFreqKey, id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (t *tracker) DevicesByIP(ctx context.Context, ip string) ([]string, error) {
	ids, err := t.redis.Client().SMembers(ctx, fmt.Sprintf(fingerPrintByIpKey, ip)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return ids, nil
}
