package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/telemetrydev/datapoint/internal/cache"
	"github.com/telemetrydev/datapoint/internal/definition"
	"github.com/telemetrydev/datapoint/internal/metrics"
	"github.com/telemetrydev/datapoint/internal/storage"
)

// Platform is the application service for platform-preset definitions. It
// maintains two cache views: a hash per product type, and a flat catalog
// hash holding the whole cross-type set for bulk reads.
type Platform struct {
	store    storage.PlatformStore
	cache    *cache.Tiered
	validate definition.SchemaValidator
	logger   *slog.Logger
}

// NewPlatform wires the platform application service.
func NewPlatform(store storage.PlatformStore, tiered *cache.Tiered, validate definition.SchemaValidator, logger *slog.Logger) *Platform {
	return &Platform{store: store, cache: tiered, validate: validate, logger: logger}
}

// GetAll returns every platform definition grouped by product type,
// cache-first over the flat catalog hash.
func (s *Platform) GetAll(ctx context.Context) (map[string][]definition.PlatformDataDefinition, error) {
	catalog, err := s.cache.PlatformCatalog(ctx)
	if err != nil {
		metrics.CacheError(metrics.TierPlatform)
		s.logger.Warn("platform catalog read failed", "error", err)
	} else if len(catalog) > 0 {
		metrics.CacheHit(metrics.TierPlatform)
		return catalog, nil
	}
	metrics.CacheMiss(metrics.TierPlatform)

	return s.RefreshCatalog(ctx)
}

// RefreshCatalog rebuilds the flat catalog hash from the store and returns
// the grouped result. The cache warmer calls this on a timer.
func (s *Platform) RefreshCatalog(ctx context.Context) (map[string][]definition.PlatformDataDefinition, error) {
	defs, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	catalog := make(map[string][]definition.PlatformDataDefinition)
	for _, d := range defs {
		catalog[d.ProductTypeID] = append(catalog[d.ProductTypeID], d)
	}

	if err := s.cache.CachePlatformCatalog(ctx, catalog); err != nil {
		metrics.CacheError(metrics.TierPlatform)
		s.logger.Warn("platform catalog refill failed", "error", err)
	}
	return catalog, nil
}

// GetByProductType serves one product type's presets cache-first.
func (s *Platform) GetByProductType(ctx context.Context, productTypeID string) ([]definition.PlatformDataDefinition, error) {
	cached, err := s.cache.PlatformDefinitions(ctx, productTypeID)
	if err != nil {
		metrics.CacheError(metrics.TierPlatform)
		s.logger.Warn("platform cache read failed", "product_type_id", productTypeID, "error", err)
	} else if len(cached) > 0 {
		metrics.CacheHit(metrics.TierPlatform)
		defs := make([]definition.PlatformDataDefinition, 0, len(cached))
		for _, d := range cached {
			defs = append(defs, d)
		}
		return defs, nil
	}
	metrics.CacheMiss(metrics.TierPlatform)

	defs, err := s.store.FindByProductType(ctx, productTypeID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.CachePlatformDefinitions(ctx, productTypeID, defs); err != nil {
		metrics.CacheError(metrics.TierPlatform)
		s.logger.Warn("platform cache refill failed", "product_type_id", productTypeID, "error", err)
	}
	return defs, nil
}

// Create validates and persists a platform preset, invalidating the type's
// namespace and the flat catalog.
func (s *Platform) Create(ctx context.Context, draft definition.PlatformDraft) (*definition.PlatformDataDefinition, error) {
	if err := s.validate(draft.DataSchema); err != nil {
		return nil, err
	}

	def := &definition.PlatformDataDefinition{
		ID:            uuid.NewString(),
		ProductTypeID: draft.ProductTypeID,
		Name:          draft.Name,
		Description:   draft.Description,
		DataSchema:    draft.DataSchema,
		Openable:      draft.Openable,
		Version:       0,
	}

	if err := s.store.Create(ctx, def); err != nil {
		return nil, err
	}
	s.invalidateType(ctx, draft.ProductTypeID)
	return def, nil
}

// Update applies platform-scope actions under the optimistic lock.
func (s *Platform) Update(ctx context.Context, id string, expectedVersion int, actions []definition.Action) (*definition.PlatformDataDefinition, error) {
	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("%w: have %d, want %d", definition.ErrVersionConflict, current.Version, expectedVersion)
	}

	updated := *current
	if err := definition.ApplyPlatformActions(&updated, actions, s.validate); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, &updated, expectedVersion); err != nil {
		return nil, err
	}
	s.invalidateType(ctx, updated.ProductTypeID)
	return &updated, nil
}

// DeleteByProductType removes a product type's presets.
func (s *Platform) DeleteByProductType(ctx context.Context, productTypeID string) error {
	if _, err := s.store.DeleteByProductType(ctx, productTypeID); err != nil {
		return err
	}
	s.invalidateType(ctx, productTypeID)
	return nil
}

func (s *Platform) invalidateType(ctx context.Context, productTypeID string) {
	metrics.CacheInvalidation(metrics.TierPlatform)
	if err := s.cache.InvalidatePlatformType(ctx, productTypeID); err != nil {
		metrics.CacheError(metrics.TierPlatform)
		s.logger.Warn("platform cache invalidation failed", "product_type_id", productTypeID, "error", err)
	}
}
