package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/proof-receipts/internal/fingerprint"
)

type RedisOpts struct {
	Addr, Password, Namespace string
	DB                        int
	Timeout                   time.Duration
	Retention                 time.Duration // 0 = keys never expire
}

// Redis keeps the ledger in redis so dedup survives restarts and is shared
// between replicas. Claim maps to SET NX.
type Redis struct {
	rdb       redis.Cmdable
	nsPrefix  string
	retention time.Duration
	logger    *slog.Logger
}

func NewRedis(o RedisOpts, logger *slog.Logger) (*Redis, *redis.Client) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.Timeout,
		ReadTimeout:  o.Timeout,
		WriteTimeout: o.Timeout,
	})
	return NewRedisWithClient(rdb, o.Namespace, o.Retention, logger), rdb
}

// NewRedisWithClient wraps an existing client (or cluster client).
func NewRedisWithClient(rdb redis.Cmdable, namespace string, retention time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		rdb:       rdb,
		nsPrefix:  firstNonEmpty(namespace, "proofs"),
		retention: retention,
		logger:    logger,
	}
}

func (r *Redis) key(fp fingerprint.Fingerprint) string {
	return fmt.Sprintf("%s:ledger:%s", r.nsPrefix, fp)
}

func (r *Redis) Contains(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(fp)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", fp.Short(), err)
	}
	return n > 0, nil
}

func (r *Redis) Insert(ctx context.Context, fp fingerprint.Fingerprint) error {
	_, err := r.Claim(ctx, fp)
	return err
}

func (r *Redis) Claim(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, r.key(fp), time.Now().UTC().Format(time.RFC3339), r.retention).Result()
	if err != nil {
		r.logger.Error("ledger.redis.claim_failed", "fingerprint", fp.Short(), "error", err)
		return false, fmt.Errorf("redis setnx %s: %w", fp.Short(), err)
	}
	return ok, nil
}

func firstNonEmpty(s, def string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return def
}
