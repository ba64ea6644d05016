package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-simple-meetup/internal/pkg/metrics"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

const (
	defaultLockTTL    = 10 * time.Second
	defaultMaxRetries = 5
	defaultRetryDelay = 50 * time.Millisecond
)

var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// DistributedLock は Redis を使用した分散ロック
type DistributedLock struct {
	client  *redis.Client
	key     string
	value   string
	metrics *metrics.Metrics
}

// Key はロックのRedisキーを返す
func (l *DistributedLock) Key() string { return l.key }

// LockManager は分散ロックを管理する
type LockManager struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewLockManager はLockManagerを作成する
// ttl が 0 以下ならデフォルト（10秒）、m が nil ならメトリクスを記録しない
func NewLockManager(client *redis.Client, ttl time.Duration, m *metrics.Metrics) *LockManager {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &LockManager{client: client, ttl: ttl, metrics: m}
}

// EventLockKey はイベントの自然キーに対するロックキーを返す
func EventLockKey(heldOn time.Time, name string) string {
	return fmt.Sprintf("event:%s:%s", heldOn.Format(time.DateOnly), name)
}

// LockEvent はイベントの自然キーをデフォルト設定（TTL・リトライ）でロックする
func (m *LockManager) LockEvent(ctx context.Context, heldOn time.Time, name string) (*DistributedLock, error) {
	return m.AcquireLockWithRetry(ctx, EventLockKey(heldOn, name), m.ttl, defaultMaxRetries, defaultRetryDelay)
}

// AcquireLock はロックを取得する
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	start := time.Now()
	lockKey := fmt.Sprintf("lock:%s", key)
	lockValue := uuid.New().String()

	// SetNX を使用してロックを取得（キーが存在しない場合のみ設定）
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		m.observe("acquire", "failed", start)
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		m.observe("acquire", "failed", start)
		return nil, ErrLockNotAcquired
	}
	m.observe("acquire", "success", start)

	return &DistributedLock{
		client:  m.client,
		key:     lockKey,
		value:   lockValue,
		metrics: m.metrics,
	}, nil
}

// AcquireLockWithRetry はリトライ付きでロックを取得する
// 待ち時間は試行ごとに倍にする
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (*DistributedLock, error) {
	var lastErr error
	delay := retryDelay
	for i := 0; i < maxRetries; i++ {
		lock, err := m.AcquireLock(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

func (m *LockManager) observe(operation, status string, start time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.DistributedLockDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// Release はロックを解放する（Lua スクリプトで安全に解放）
func (l *DistributedLock) Release(ctx context.Context) error {
	start := time.Now()
	// 所有者確認と削除をアトミックに実行
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	status := "success"
	switch {
	case err != nil:
		status = "failed"
		err = fmt.Errorf("ロック解放に失敗: %w", err)
	case result == 0:
		status = "failed"
		err = ErrLockNotOwned
	}
	if l.metrics != nil {
		l.metrics.DistributedLockDuration.WithLabelValues("release", status).Observe(time.Since(start).Seconds())
	}
	return err
}
