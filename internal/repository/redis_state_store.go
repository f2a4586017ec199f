package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"MarkWatch/internal/domain/models"
	domrepo "MarkWatch/internal/domain/repository"
	pkgcache "MarkWatch/pkg/cache"
)

const (
	bandKeyPrefix  = "band:"
	stampKey       = "analysis:last_completed"
	jobLastRunsKey = "jobs:last_runs"
)

// RedisStateStore persists the small mutable control state that must survive
// restarts: alert bands, the last-analysis stamp and per-job last runs. None
// of the keys expire; bands are cleared explicitly on close.
type RedisStateStore struct {
	cache  pkgcache.Service
	client *redis.Client
	prefix string
}

func NewRedisStateStore(cache pkgcache.Service, client *redis.Client, prefix string) *RedisStateStore {
	return &RedisStateStore{cache: cache, client: client, prefix: prefix}
}

func (s *RedisStateStore) Get(ctx context.Context, asset string) (*models.AlertBand, error) {
	var band models.AlertBand
	err := s.cache.Get(ctx, bandKeyPrefix+asset, &band)
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get band %s: %w", asset, err)
	}
	return &band, nil
}

func (s *RedisStateStore) List(ctx context.Context, assets []string) (map[string]*models.AlertBand, error) {
	out := make(map[string]*models.AlertBand, len(assets))
	if len(assets) == 0 {
		return out, nil
	}
	keys := make([]string, len(assets))
	for i, asset := range assets {
		keys[i] = bandKeyPrefix + asset
	}
	typed, err := pkgcache.MGetTyped[models.AlertBand](ctx, s.cache, keys...)
	if err != nil {
		return nil, fmt.Errorf("list bands: %w", err)
	}
	for _, asset := range assets {
		if band, ok := typed[bandKeyPrefix+asset]; ok {
			b := band
			out[asset] = &b
		}
	}
	return out, nil
}

func (s *RedisStateStore) Put(ctx context.Context, band *models.AlertBand) error {
	if band == nil || band.Asset == "" {
		return fmt.Errorf("band without asset")
	}
	if err := s.cache.Set(ctx, bandKeyPrefix+band.Asset, band, 0); err != nil {
		return fmt.Errorf("put band %s: %w", band.Asset, err)
	}
	return nil
}

func (s *RedisStateStore) Clear(ctx context.Context, asset string) error {
	if err := s.cache.Delete(ctx, bandKeyPrefix+asset); err != nil {
		return fmt.Errorf("clear band %s: %w", asset, err)
	}
	return nil
}

func (s *RedisStateStore) Load(ctx context.Context) (time.Time, error) {
	var stamp time.Time
	err := s.cache.Get(ctx, stampKey, &stamp)
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load analysis stamp: %w", err)
	}
	return stamp, nil
}

func (s *RedisStateStore) Save(ctx context.Context, t time.Time) error {
	if err := s.cache.Set(ctx, stampKey, t, 0); err != nil {
		return fmt.Errorf("save analysis stamp: %w", err)
	}
	return nil
}

// LoadLastRuns reads the whole job hash; unparseable fields are dropped so a
// corrupt entry degrades to run-immediately for that one job.
func (s *RedisStateStore) LoadLastRuns(ctx context.Context) (map[string]time.Time, error) {
	fields, err := s.client.HGetAll(ctx, s.jobsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("load job runs: %w", err)
	}
	out := make(map[string]time.Time, len(fields))
	for name, raw := range fields {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			continue
		}
		out[name] = t
	}
	return out, nil
}

func (s *RedisStateStore) SaveLastRun(ctx context.Context, name string, t time.Time) error {
	err := s.client.HSet(ctx, s.jobsKey(), name, t.UTC().Format(time.RFC3339Nano)).Err()
	if err != nil {
		return fmt.Errorf("save job run %s: %w", name, err)
	}
	return nil
}

func (s *RedisStateStore) jobsKey() string {
	return s.prefix + ":" + jobLastRunsKey
}

var _ domrepo.BandStore = (*RedisStateStore)(nil)
var _ domrepo.AnalysisStampStore = (*RedisStateStore)(nil)
var _ domrepo.JobStateStore = (*RedisStateStore)(nil)
