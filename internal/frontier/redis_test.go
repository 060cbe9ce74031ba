package frontier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedisClaim(t *testing.T) {
	t.Parallel()

	store := newFakeSetStore()
	r := newRedis(store, RedisConfig{TTL: time.Minute}, "run-1", nil)
	require.Equal(t, defaultKeyPrefix+"run-1", r.Key())

	ok, err := r.Claim(context.Background(), "https://a.test")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Claim(context.Background(), "https://a.test")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = r.Claim(context.Background(), "https://b.test")
	require.NoError(t, err)

	n, err := r.Size(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.EqualValues(t, 1, store.expires.Load())
	require.Equal(t, time.Minute, store.ttl)
}

func TestRedisClaimConcurrent(t *testing.T) {
	t.Parallel()

	r := newRedis(newFakeSetStore(), RedisConfig{KeyPrefix: "test:"}, "run", nil)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := r.Claim(context.Background(), "https://same.test"); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins.Load())
}

func TestRedisClaimError(t *testing.T) {
	t.Parallel()

	store := newFakeSetStore()
	store.err = errors.New("connection refused")
	r := newRedis(store, RedisConfig{}, "run", nil)

	ok, err := r.Claim(context.Background(), "https://a.test")
	require.False(t, ok)
	require.ErrorContains(t, err, "frontier claim https://a.test: connection refused")

	_, err = r.Size(context.Background())
	require.Error(t, err)
}

func TestRedisExpireFailureIsLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	store := newFakeSetStore()
	store.expireErr = errors.New("readonly replica")
	r := newRedis(store, RedisConfig{}, "run", zap.New(core))

	ok, err := r.Claim(context.Background(), "https://a.test")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, logs.FilterMessage("frontier expire failed").Len())
}

func TestRedisClose(t *testing.T) {
	t.Parallel()

	store := newFakeSetStore()
	r := newRedis(store, RedisConfig{}, "run", nil)
	require.NoError(t, r.Close())
	require.True(t, store.closed)
}

type fakeSetStore struct {
	mu        sync.Mutex
	sets      map[string]map[string]struct{}
	err       error
	expireErr error
	expires   atomic.Int32
	ttl       time.Duration
	closed    bool
}

func newFakeSetStore() *fakeSetStore {
	return &fakeSetStore{sets: map[string]map[string]struct{}{}}
}

func (f *fakeSetStore) SAdd(_ context.Context, key string, member string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	set, ok := f.sets[key]
	if !ok {
		set = map[string]struct{}{}
		f.sets[key] = set
	}
	if _, ok := set[member]; ok {
		return 0, nil
	}
	set[member] = struct{}{}
	return 1, nil
}

func (f *fakeSetStore) SCard(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, fmt.Errorf("scard: %w", f.err)
	}
	return int64(len(f.sets[key])), nil
}

func (f *fakeSetStore) Expire(_ context.Context, _ string, ttl time.Duration) (bool, error) {
	f.expires.Add(1)
	f.mu.Lock()
	f.ttl = ttl
	f.mu.Unlock()
	if f.expireErr != nil {
		return false, f.expireErr
	}
	return true, nil
}

func (f *fakeSetStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
