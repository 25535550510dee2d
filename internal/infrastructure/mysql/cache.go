package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"chainindex/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	txCacheVersionKey = "chainindex:txs:version"
	txCacheKeyPrefix  = "chainindex:txs:v"
	blockCacheKey     = "chainindex:blocks:"
	defaultCacheTTL   = time.Hour
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// CachedRepository wraps the MySQL repository with a redis read-through layer
// for point lookups. Transaction writes bump a version counter instead of
// deleting keys, so stale entries age out under their TTL.
type CachedRepository struct {
	*Repository
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedRepository(base *Repository, cfg CacheConfig) (*CachedRepository, error) {
	if base == nil {
		return nil, errors.New("base repository is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedRepository{Repository: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedRepository{Repository: base, cache: client, ttl: cfg.TTL}, nil
}

func (r *CachedRepository) UpsertTransaction(ctx context.Context, tx domain.Transaction) error {
	if err := r.Repository.UpsertTransaction(ctx, tx); err != nil {
		return err
	}
	r.invalidateTxCache(ctx)
	return nil
}

func (r *CachedRepository) SetFirstMessageType(ctx context.Context, network, hash, msgType string) error {
	if err := r.Repository.SetFirstMessageType(ctx, network, hash, msgType); err != nil {
		return err
	}
	r.invalidateTxCache(ctx)
	return nil
}

func (r *CachedRepository) TransactionByHash(ctx context.Context, network, hash string) (domain.Transaction, bool, error) {
	if r.cache == nil {
		return r.Repository.TransactionByHash(ctx, network, hash)
	}
	version, ok := r.cacheVersion(ctx)
	if !ok {
		return r.Repository.TransactionByHash(ctx, network, hash)
	}
	key := txCacheKeyPrefix + version + ":" + network + ":" + hash
	if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
		var tx domain.Transaction
		if err := json.Unmarshal([]byte(cached), &tx); err == nil {
			return tx, true, nil
		}
	}

	tx, found, err := r.Repository.TransactionByHash(ctx, network, hash)
	if err != nil || !found {
		return tx, found, err
	}
	if payload, err := json.Marshal(tx); err == nil {
		_ = r.cache.Set(ctx, key, payload, r.ttl).Err()
	}
	return tx, true, nil
}

// BlockByHeight caches without versioning: a stored block is immutable, so
// entries can live out their full TTL.
func (r *CachedRepository) BlockByHeight(ctx context.Context, network, height string) (domain.Block, bool, error) {
	if r.cache == nil {
		return r.Repository.BlockByHeight(ctx, network, height)
	}
	key := blockCacheKey + network + ":" + height
	if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
		var block domain.Block
		if err := json.Unmarshal([]byte(cached), &block); err == nil {
			return block, true, nil
		}
	}

	block, found, err := r.Repository.BlockByHeight(ctx, network, height)
	if err != nil || !found {
		return block, found, err
	}
	if block.BlockHash != "" {
		if payload, err := json.Marshal(block); err == nil {
			_ = r.cache.Set(ctx, key, payload, r.ttl).Err()
		}
	}
	return block, true, nil
}

func (r *CachedRepository) cacheVersion(ctx context.Context) (string, bool) {
	version, err := r.cache.Get(ctx, txCacheVersionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

func (r *CachedRepository) invalidateTxCache(ctx context.Context) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Incr(ctx, txCacheVersionKey).Err()
}

func (r *CachedRepository) Close() error {
	if r.cache != nil {
		_ = r.cache.Close()
	}
	return r.Repository.Close()
}
