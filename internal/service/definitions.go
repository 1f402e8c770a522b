// Package service orchestrates the definition read and write paths and owns
// the cache-consistency protocol: reads are cache-first with a full
// namespace refill on miss, and every store mutation is followed by a
// namespace invalidation so the next read rebuilds a consistent view.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/telemetrydev/datapoint/internal/cache"
	"github.com/telemetrydev/datapoint/internal/definition"
	"github.com/telemetrydev/datapoint/internal/metrics"
	"github.com/telemetrydev/datapoint/internal/storage"
)

// Definitions is the application service for device- and developer-scoped
// data definitions. It holds no mutable state of its own; the store is
// authoritative and the cache is an advisory projection.
type Definitions struct {
	devices    storage.DeviceStore
	developers storage.DeveloperStore
	cache      *cache.Tiered
	validate   definition.SchemaValidator
	logger     *slog.Logger
}

// NewDefinitions wires the definition application service.
func NewDefinitions(
	devices storage.DeviceStore,
	developers storage.DeveloperStore,
	tiered *cache.Tiered,
	validate definition.SchemaValidator,
	logger *slog.Logger,
) *Definitions {
	return &Definitions{
		devices:    devices,
		developers: developers,
		cache:      tiered,
		validate:   validate,
		logger:     logger,
	}
}

// Create validates the draft's schema, assigns identity, persists the
// definition at version 0, and invalidates the product namespace.
func (s *Definitions) Create(ctx context.Context, developerID string, draft definition.Draft) (*definition.DeviceDataDefinition, error) {
	if err := s.validate(draft.DataSchema); err != nil {
		return nil, err
	}

	def := &definition.DeviceDataDefinition{
		ID:          uuid.NewString(),
		DeveloperID: developerID,
		ProductID:   draft.ProductID,
		Name:        draft.Name,
		Description: draft.Description,
		DataSchema:  draft.DataSchema,
		Openable:    draft.Openable,
		Version:     0,
	}

	err := s.mutateProduct(ctx, developerID, draft.ProductID, func() error {
		return s.devices.Create(ctx, def)
	})
	if err != nil {
		return nil, err
	}
	return def, nil
}

// Update loads the entity from the store (not the cache, so the optimistic
// lock sees the current version), applies the actions to a detached copy,
// persists via the store's compare-and-swap, and invalidates the product
// namespace. The version is bumped once per call, not per action.
func (s *Definitions) Update(ctx context.Context, developerID, id string, expectedVersion int, actions []definition.Action) (*definition.DeviceDataDefinition, error) {
	current, err := s.devices.FindByID(ctx, developerID, id)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("%w: have %d, want %d", definition.ErrVersionConflict, current.Version, expectedVersion)
	}

	updated := *current
	if err := definition.ApplyDeviceActions(&updated, actions, s.validate); err != nil {
		return nil, err
	}

	err = s.mutateProduct(ctx, developerID, updated.ProductID, func() error {
		return s.devices.Update(ctx, &updated, expectedVersion)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes one definition and invalidates its product namespace.
func (s *Definitions) Delete(ctx context.Context, developerID, productID, id string) error {
	return s.mutateProduct(ctx, developerID, productID, func() error {
		return s.devices.Delete(ctx, developerID, productID, id)
	})
}

// DeleteByProduct removes every definition under a product scope.
func (s *Definitions) DeleteByProduct(ctx context.Context, developerID, productID string) error {
	return s.mutateProduct(ctx, developerID, productID, func() error {
		_, err := s.devices.DeleteByProduct(ctx, developerID, productID)
		return err
	})
}

// GetByProductID serves a product scope cache-first. On a namespace miss the
// full result set is loaded from the store and written back, so a warm
// namespace mirrors the store exactly until the next mutation.
func (s *Definitions) GetByProductID(ctx context.Context, developerID, productID string) ([]definition.DeviceDataDefinition, error) {
	cached, err := s.cache.ProductDefinitions(ctx, developerID, productID)
	if err != nil {
		metrics.CacheError(metrics.TierDevice)
		s.logger.Warn("device cache read failed",
			"developer_id", developerID, "product_id", productID, "error", err)
	} else if len(cached) > 0 {
		metrics.CacheHit(metrics.TierDevice)
		return sortedDefinitions(cached), nil
	}
	metrics.CacheMiss(metrics.TierDevice)

	defs, err := s.devices.FindByProduct(ctx, developerID, productID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.CacheProductDefinitions(ctx, developerID, productID, defs); err != nil {
		metrics.CacheError(metrics.TierDevice)
		s.logger.Warn("device cache refill failed",
			"developer_id", developerID, "product_id", productID, "error", err)
	}
	return defs, nil
}

// GetByProductIDs serves several product scopes, keyed by product id.
func (s *Definitions) GetByProductIDs(ctx context.Context, developerID string, productIDs []string) (map[string][]definition.DeviceDataDefinition, error) {
	result := make(map[string][]definition.DeviceDataDefinition, len(productIDs))
	for _, productID := range productIDs {
		defs, err := s.GetByProductID(ctx, developerID, productID)
		if err != nil {
			return nil, err
		}
		result[productID] = defs
	}
	return result, nil
}

// Get returns a single definition, refilling the product namespace on miss.
func (s *Definitions) Get(ctx context.Context, developerID, productID, id string) (*definition.DeviceDataDefinition, error) {
	def, ok, err := s.cache.ProductDefinition(ctx, developerID, productID, id)
	if err != nil {
		metrics.CacheError(metrics.TierDevice)
		s.logger.Warn("device cache read failed",
			"developer_id", developerID, "product_id", productID, "id", id, "error", err)
	}
	if ok {
		metrics.CacheHit(metrics.TierDevice)
		return def, nil
	}
	metrics.CacheMiss(metrics.TierDevice)

	defs, err := s.devices.FindByProduct(ctx, developerID, productID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.CacheProductDefinitions(ctx, developerID, productID, defs); err != nil {
		metrics.CacheError(metrics.TierDevice)
		s.logger.Warn("device cache refill failed",
			"developer_id", developerID, "product_id", productID, "error", err)
	}

	for i := range defs {
		if defs[i].ID == id {
			return &defs[i], nil
		}
	}
	return nil, definition.ErrNotFound
}

// GetAllOpenData returns a developer's externally exposed definitions.
func (s *Definitions) GetAllOpenData(ctx context.Context, developerID string) ([]definition.DeviceDataDefinition, error) {
	return s.devices.FindOpenByDeveloper(ctx, developerID)
}

// Copy clones developer-scope definitions into device definitions for each
// target product. Every source is resolved before anything is written, and
// all clones share one transaction: either every (source, target) pair is
// committed or none is. Returns the new ids in pair order.
func (s *Definitions) Copy(ctx context.Context, developerID string, req definition.CopyRequest) ([]string, error) {
	sources := make([]definition.DeveloperDataDefinition, 0, len(req.SourceIDs))
	for _, sourceID := range req.SourceIDs {
		src, err := s.developerSource(ctx, developerID, sourceID)
		if err != nil {
			return nil, fmt.Errorf("copy source %s: %w", sourceID, err)
		}
		sources = append(sources, *src)
	}

	clones := make([]definition.DeviceDataDefinition, 0, len(sources)*len(req.TargetProductIDs))
	ids := make([]string, 0, cap(clones))
	for _, src := range sources {
		for _, productID := range req.TargetProductIDs {
			clone := definition.DeviceDataDefinition{
				ID:          uuid.NewString(),
				DeveloperID: developerID,
				ProductID:   productID,
				Name:        src.Name,
				Description: src.Description,
				DataSchema:  src.DataSchema,
				Openable:    src.Openable,
				Version:     0,
			}
			clones = append(clones, clone)
			ids = append(ids, clone.ID)
		}
	}

	if err := s.devices.CreateAll(ctx, clones); err != nil {
		return nil, err
	}
	for _, productID := range req.TargetProductIDs {
		s.invalidateProduct(ctx, developerID, productID)
	}
	return ids, nil
}

// GetDeveloperDefinition returns one developer-scope definition, serving the
// per-developer namespace cache-first.
func (s *Definitions) GetDeveloperDefinition(ctx context.Context, developerID, id string) (*definition.DeveloperDataDefinition, error) {
	return s.developerSource(ctx, developerID, id)
}

// developerSource resolves one copy source from the developer cache,
// refilling the namespace from the store on miss.
func (s *Definitions) developerSource(ctx context.Context, developerID, id string) (*definition.DeveloperDataDefinition, error) {
	def, ok, err := s.cache.DeveloperDefinition(ctx, developerID, id)
	if err != nil {
		metrics.CacheError(metrics.TierDeveloper)
		s.logger.Warn("developer cache read failed", "developer_id", developerID, "id", id, "error", err)
	}
	if ok {
		metrics.CacheHit(metrics.TierDeveloper)
		return def, nil
	}
	metrics.CacheMiss(metrics.TierDeveloper)

	defs, err := s.developers.FindByDeveloper(ctx, developerID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.CacheDeveloperDefinitions(ctx, developerID, defs); err != nil {
		metrics.CacheError(metrics.TierDeveloper)
		s.logger.Warn("developer cache refill failed", "developer_id", developerID, "error", err)
	}

	for i := range defs {
		if defs[i].ID == id {
			return &defs[i], nil
		}
	}
	return nil, definition.ErrNotFound
}

// mutateProduct runs a store mutation and then always invalidates the
// scope's namespace. Every device write path goes through here so no future
// path can forget the invalidation.
func (s *Definitions) mutateProduct(ctx context.Context, developerID, productID string, mutate func() error) error {
	if err := mutate(); err != nil {
		return err
	}
	s.invalidateProduct(ctx, developerID, productID)
	return nil
}

// invalidateProduct drops a product namespace. A failure here is logged and
// dropped: the store write has already committed and the stale entry will
// be rebuilt by the next read after the cache recovers.
func (s *Definitions) invalidateProduct(ctx context.Context, developerID, productID string) {
	metrics.CacheInvalidation(metrics.TierDevice)
	if err := s.cache.InvalidateProduct(ctx, developerID, productID); err != nil {
		metrics.CacheError(metrics.TierDevice)
		s.logger.Warn("cache invalidation failed",
			"developer_id", developerID, "product_id", productID, "error", err)
	}
}

// sortedDefinitions flattens a cached namespace into the store's read
// order: creation time, then id for entities created in the same instant.
func sortedDefinitions(byID map[string]definition.DeviceDataDefinition) []definition.DeviceDataDefinition {
	defs := make([]definition.DeviceDataDefinition, 0, len(byID))
	for _, d := range byID {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool {
		if !defs[i].CreatedAt.Equal(defs[j].CreatedAt) {
			return defs[i].CreatedAt.Before(defs[j].CreatedAt)
		}
		return defs[i].ID < defs[j].ID
	})
	return defs
}
