package probe

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a Redis liveness probe.
type RedisConfig struct {
	// Name is the unique probe name.
	Name string

	// Address is the host:port of the Redis server.
	Address string

	// Password is the optional server password.
	Password string

	// DB is the database number to select.
	DB int

	// Timeout is the per-execution timeout. Default: DefaultTimeout.
	Timeout time.Duration
}

// RedisProbe checks cache liveness with a PING round-trip.
type RedisProbe struct {
	config RedisConfig

	once   sync.Once
	client *redis.Client
}

// NewRedisProbe creates a new Redis probe. The client is created lazily on
// the first execution.
func NewRedisProbe(config RedisConfig) *RedisProbe {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &RedisProbe{config: config}
}

// Name returns the probe name.
func (p *RedisProbe) Name() string {
	return p.config.Name
}

// Probe sends a single PING.
func (p *RedisProbe) Probe(ctx context.Context) Result {
	return execute(ctx, p.config.Name, p.config.Timeout, func(ctx context.Context) Result {
		p.once.Do(func() {
			p.client = redis.NewClient(&redis.Options{
				Addr:     p.config.Address,
				Password: p.config.Password,
				DB:       p.config.DB,
			})
		})

		if err := p.client.Ping(ctx).Err(); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return Fail(p.config.Name, DetailTimeout, ErrTimeout)
			}
			return Fail(p.config.Name, err.Error(), err)
		}
		return Pass(p.config.Name, "PONG")
	})
}

// Close releases the client.
func (p *RedisProbe) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
