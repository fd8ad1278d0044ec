package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrMiss возвращается, если ключа нет в кэше.
var ErrMiss = errors.New("cache: miss")

// RedisCache реализует domain.ContentCache через Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedis создаёт кэш с префиксом ключей.
func NewRedis(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Get возвращает значение.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

// Set задаёт значение.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Invalidate удаляет ключи.
func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, c.prefix+k)
	}
	return c.client.Del(ctx, full...).Err()
}

// Once выполняет функцию, если ключ ещё не задан.
func (c *RedisCache) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	ok, err := c.client.SetNX(ctx, c.prefix+key, "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		_ = c.client.Del(ctx, c.prefix+key).Err()
		return err
	}
	return nil
}

// releaseScript снимает блокировку только если она всё ещё наша.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock реализует распределённую блокировку на SET NX с токеном владельца.
type RedisLock struct {
	client *redis.Client
	key    string
}

// NewRedisLock создаёт блокировку по ключу.
func NewRedisLock(client *redis.Client, key string) *RedisLock {
	return &RedisLock{client: client, key: key}
}

// extendScript продлевает блокировку только если она всё ещё наша.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// TryLock реализует domain.RefreshLock. Пока блокировка не снята, она продлевается
// на ttl каждые ttl/3, поэтому цикл дольше ttl не теряет её.
func (l *RedisLock) TryLock(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(token, ttl, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err()
		})
	}
	return release, true, nil
}

func (l *RedisLock) keepAlive(token string, ttl time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	period := ttl / 3
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), period)
			held, err := extendScript.Run(ctx, l.client, []string{l.key}, token, ttl.Milliseconds()).Int()
			cancel()
			if err == nil && held == 0 {
				// ключ истёк или перехвачен, продлевать нечего
				return
			}
		}
	}
}
