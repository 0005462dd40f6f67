package repository

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/filehub/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fh_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш метаданных.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fh_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша метаданных.",
	})
)

// CachedFileRepository — декоратор FileRepository с LRU-кэшем GetByID.
// Записи неизменяемы, поэтому кэш инвалидируется только при Delete.
type CachedFileRepository struct {
	next  FileRepository
	cache *expirable.LRU[string, *model.FileRecord]
}

// NewCachedFileRepository оборачивает репозиторий LRU-кэшем.
// maxSize — максимальное количество записей, ttl — время жизни записи.
func NewCachedFileRepository(next FileRepository, maxSize int, ttl time.Duration) *CachedFileRepository {
	return &CachedFileRepository{
		next:  next,
		cache: expirable.NewLRU[string, *model.FileRecord](maxSize, nil, ttl),
	}
}

func (c *CachedFileRepository) Insert(ctx context.Context, f model.NewFile) (*model.FileRecord, error) {
	rec, err := c.next.Insert(ctx, f)
	if err != nil {
		return nil, err
	}
	c.put(rec)
	return rec, nil
}

// List всегда идёт в хранилище: список меняется при каждой загрузке.
func (c *CachedFileRepository) List(ctx context.Context) ([]*model.FileRecord, error) {
	return c.next.List(ctx)
}

func (c *CachedFileRepository) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	if rec, ok := c.cache.Get(id); ok {
		cacheHitsTotal.Inc()
		copied := *rec
		return &copied, nil
	}
	cacheMissesTotal.Inc()

	rec, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(rec)
	return rec, nil
}

func (c *CachedFileRepository) GetByStorageKey(ctx context.Context, key string) (*model.FileRecord, error) {
	return c.next.GetByStorageKey(ctx, key)
}

func (c *CachedFileRepository) Delete(ctx context.Context, id string) error {
	c.cache.Remove(id)
	return c.next.Delete(ctx, id)
}

// Len возвращает количество записей в кэше.
func (c *CachedFileRepository) Len() int {
	return c.cache.Len()
}

func (c *CachedFileRepository) put(rec *model.FileRecord) {
	copied := *rec
	c.cache.Add(rec.ID, &copied)
}
