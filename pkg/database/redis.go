package database

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// DefaultRedisConfig returns sensible defaults for Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     "localhost",
		Port:     6379,
		Password: "",
		DB:       0,
		PoolSize: 20,
	}
}

// Addr returns the Redis address string.
func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// NewRedisClient creates a Redis client with tracing installed and pings it,
// retrying startup failures. logger may be nil.
func NewRedisClient(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	client.AddHook(RedisTracingHook{})

	always := func(error) bool { return true }
	err := withStartupRetry(ctx, "redis ping", logger, always, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// RedisTracingHook creates a client span per Redis command or pipeline.
// redis.Nil is a cache miss, not an error.
type RedisTracingHook struct{}

var _ redis.Hook = RedisTracingHook{}

func (RedisTracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (RedisTracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, span := startRedisSpan(ctx, cmd.Name(), 1)
		defer span.End()

		err := next(ctx, cmd)
		recordRedisErr(span, err)
		return err
	}
}

func (RedisTracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		names := make([]string, 0, len(cmds))
		for _, c := range cmds {
			names = append(names, c.Name())
		}
		ctx, span := startRedisSpan(ctx, "pipeline "+strings.Join(names, " "), len(cmds))
		defer span.End()

		err := next(ctx, cmds)
		recordRedisErr(span, err)
		return err
	}
}

func startRedisSpan(ctx context.Context, op string, n int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "redis."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", op),
			attribute.Int("db.redis.num_cmd", n),
		),
	)
}

func recordRedisErr(span trace.Span, err error) {
	if err == nil || err == redis.Nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
