package repositories

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"lineageconsolidator/src/domain"
)

// LineageCache é o subconjunto do cliente redis usado pelo cache de lineage.
type LineageCache interface {
	GetKey(ctx context.Context, key string) (string, bool, error)
	SetWithRegistry(ctx context.Context, cacheKey string, cacheValue string, registryKeys []string) error
	GetMultipleSetMembers(ctx context.Context, keys []string) (map[string][]string, error)
	InvalidateKeys(ctx context.Context, keys []string) error
}

type CachedLineageQueryRepository struct {
	logger     *slog.Logger
	repository LineageQuerier
	cache      LineageCache
	// writes roda a escrita no cache; síncrona nos testes.
	writes func(fn func())
}

func NewCachedLineageQueryRepository(logger *slog.Logger, repository LineageQuerier, cache LineageCache) *CachedLineageQueryRepository {
	return &CachedLineageQueryRepository{
		logger:     logger,
		repository: repository,
		cache:      cache,
		writes:     func(fn func()) { go fn() },
	}
}

func (r *CachedLineageQueryRepository) QueryLineage(ctx context.Context, rootID string, direction domain.LineageDirection, depth int) (*domain.LineageGraph, error) {
	cacheKey := r.generateCacheKey(rootID, direction, depth)

	cached, found, err := r.getFromCache(ctx, cacheKey)
	if found && err == nil {
		r.logger.Debug("Cache HIT", "key", cacheKey)
		return cached, nil
	}
	if err != nil {
		// Erro de cache não impede a leitura no store
		r.logger.Warn("Cache error", "key", cacheKey, "error", err)
	}

	r.logger.Debug("Cache MISS", "key", cacheKey)

	lineage, err := r.repository.QueryLineage(ctx, rootID, direction, depth)
	if err != nil {
		return nil, err
	}

	r.writes(func() {
		ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		r.setInCache(ctxWithTimeout, cacheKey, lineage)
	})

	return lineage, nil
}

// InvalidateNodes apaga toda leitura cacheada que contém algum dos nós.
func (r *CachedLineageQueryRepository) InvalidateNodes(ctx context.Context, nodeIDs []string) error {
	if len(nodeIDs) == 0 {
		return nil
	}

	registryKeys := make([]string, len(nodeIDs))
	for i, nodeID := range nodeIDs {
		registryKeys[i] = registryKey(nodeID)
	}

	registryResults, err := r.cache.GetMultipleSetMembers(ctx, registryKeys)
	if err != nil {
		return fmt.Errorf("failed to get registry data: %w", err)
	}

	keysToDelete := make(map[string]bool)
	for registry, relatedKeys := range registryResults {
		if len(relatedKeys) == 0 {
			continue
		}
		keysToDelete[registry] = true
		for _, relatedKey := range relatedKeys {
			keysToDelete[relatedKey] = true
		}
	}

	if len(keysToDelete) == 0 {
		return nil
	}

	keys := make([]string, 0, len(keysToDelete))
	for key := range keysToDelete {
		keys = append(keys, key)
	}

	r.logger.Debug("Invalidating lineage cache", "keys", len(keys), "nodes", len(nodeIDs))
	return r.cache.InvalidateKeys(ctx, keys)
}

func (r *CachedLineageQueryRepository) generateCacheKey(rootID string, direction domain.LineageDirection, depth int) string {
	keyData := fmt.Sprintf("lineage:%s:%s:depth:%d", rootID, direction, depth)
	hash := md5.Sum([]byte(keyData))
	return fmt.Sprintf("lineage:graph:%x", hash)
}

func registryKey(nodeID string) string {
	return "registry:node:" + nodeID
}

func (r *CachedLineageQueryRepository) getFromCache(ctx context.Context, cacheKey string) (*domain.LineageGraph, bool, error) {
	cachedJSON, found, err := r.cache.GetKey(ctx, cacheKey)
	if !found || err != nil {
		return nil, false, err
	}

	var result domain.LineageGraph
	if err := json.Unmarshal([]byte(cachedJSON), &result); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	return &result, true, nil
}

func (r *CachedLineageQueryRepository) setInCache(ctx context.Context, cacheKey string, lineage *domain.LineageGraph) {
	dataJSON, err := json.Marshal(lineage)
	if err != nil {
		r.logger.Warn("Failed to marshal cache data", "key", cacheKey, "error", err)
		return
	}

	registryKeys := make([]string, len(lineage.Vertices))
	for i, vertex := range lineage.Vertices {
		registryKeys[i] = registryKey(vertex.Key)
	}

	if err := r.cache.SetWithRegistry(ctx, cacheKey, string(dataJSON), registryKeys); err != nil {
		r.logger.Warn("Failed to set cache with registry", "key", cacheKey, "error", err)
		return
	}

	r.logger.Debug("Cache SET with registry", "key", cacheKey, "nodes", len(lineage.Vertices))
}
