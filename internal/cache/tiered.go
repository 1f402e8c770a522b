package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/telemetrydev/datapoint/internal/definition"
)

// Key layout: one hash per scope key. Device and developer namespaces map
// entity id → serialized entity; the platform catalog maps product type id
// → serialized definition list.
const platformCatalogKey = "datapoint:platform:all"

func productKey(developerID, productID string) string {
	return "datapoint:device:" + developerID + ":" + productID
}

func developerKey(developerID string) string {
	return "datapoint:developer:" + developerID
}

func platformKey(productTypeID string) string {
	return "datapoint:platform:" + productTypeID
}

// Tiered is the typed view over the three cache namespaces. It serializes
// entities and owns the key layout; error semantics stay with the caller
// (any error is a miss, the cache is advisory).
type Tiered struct {
	cache HashCache
}

// NewTiered creates the tiered cache over a HashCache backend.
func NewTiered(cache HashCache) *Tiered {
	return &Tiered{cache: cache}
}

// ProductDefinitions returns the cached entry set for one (developer,
// product) scope, keyed by definition id. An empty map means the namespace
// is cold and the store must be consulted.
func (t *Tiered) ProductDefinitions(ctx context.Context, developerID, productID string) (map[string]definition.DeviceDataDefinition, error) {
	fields, err := t.cache.GetAll(ctx, productKey(developerID, productID))
	if err != nil {
		return nil, err
	}

	defs := make(map[string]definition.DeviceDataDefinition, len(fields))
	for id, raw := range fields {
		var d definition.DeviceDataDefinition
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode cached definition %s: %w", id, err)
		}
		defs[id] = d
	}
	return defs, nil
}

// ProductDefinition returns one cached definition. The bool reports a hit.
func (t *Tiered) ProductDefinition(ctx context.Context, developerID, productID, id string) (*definition.DeviceDataDefinition, bool, error) {
	raw, ok, err := t.cache.Get(ctx, productKey(developerID, productID), id)
	if err != nil || !ok {
		return nil, false, err
	}
	var d definition.DeviceDataDefinition
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, false, fmt.Errorf("decode cached definition %s: %w", id, err)
	}
	return &d, true, nil
}

// CacheProductDefinitions rewrites a product namespace with the full result
// set loaded from the store.
func (t *Tiered) CacheProductDefinitions(ctx context.Context, developerID, productID string, defs []definition.DeviceDataDefinition) error {
	fields, err := encodeByID(len(defs), func(i int) (string, any) { return defs[i].ID, defs[i] })
	if err != nil {
		return err
	}
	return t.cache.PutAll(ctx, productKey(developerID, productID), fields)
}

// InvalidateProduct drops the namespace for one (developer, product) scope.
func (t *Tiered) InvalidateProduct(ctx context.Context, developerID, productID string) error {
	return t.cache.Delete(ctx, productKey(developerID, productID))
}

// DeveloperDefinition returns one cached developer-scope definition.
func (t *Tiered) DeveloperDefinition(ctx context.Context, developerID, id string) (*definition.DeveloperDataDefinition, bool, error) {
	raw, ok, err := t.cache.Get(ctx, developerKey(developerID), id)
	if err != nil || !ok {
		return nil, false, err
	}
	var d definition.DeveloperDataDefinition
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, false, fmt.Errorf("decode cached definition %s: %w", id, err)
	}
	return &d, true, nil
}

// CacheDeveloperDefinitions rewrites a developer namespace.
func (t *Tiered) CacheDeveloperDefinitions(ctx context.Context, developerID string, defs []definition.DeveloperDataDefinition) error {
	fields, err := encodeByID(len(defs), func(i int) (string, any) { return defs[i].ID, defs[i] })
	if err != nil {
		return err
	}
	return t.cache.PutAll(ctx, developerKey(developerID), fields)
}

// InvalidateDeveloper drops a developer namespace.
func (t *Tiered) InvalidateDeveloper(ctx context.Context, developerID string) error {
	return t.cache.Delete(ctx, developerKey(developerID))
}

// PlatformDefinitions returns the cached entry set for one product type.
func (t *Tiered) PlatformDefinitions(ctx context.Context, productTypeID string) (map[string]definition.PlatformDataDefinition, error) {
	fields, err := t.cache.GetAll(ctx, platformKey(productTypeID))
	if err != nil {
		return nil, err
	}

	defs := make(map[string]definition.PlatformDataDefinition, len(fields))
	for id, raw := range fields {
		var d definition.PlatformDataDefinition
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode cached definition %s: %w", id, err)
		}
		defs[id] = d
	}
	return defs, nil
}

// CachePlatformDefinitions rewrites a product type namespace.
func (t *Tiered) CachePlatformDefinitions(ctx context.Context, productTypeID string, defs []definition.PlatformDataDefinition) error {
	fields, err := encodeByID(len(defs), func(i int) (string, any) { return defs[i].ID, defs[i] })
	if err != nil {
		return err
	}
	return t.cache.PutAll(ctx, platformKey(productTypeID), fields)
}

// InvalidatePlatformType drops a product type namespace and the flat
// catalog, which embeds that type's definitions.
func (t *Tiered) InvalidatePlatformType(ctx context.Context, productTypeID string) error {
	return t.cache.Delete(ctx, platformKey(productTypeID), platformCatalogKey)
}

// PlatformCatalog returns the cached cross-type platform catalog: product
// type id → definition list. Empty map means cold.
func (t *Tiered) PlatformCatalog(ctx context.Context) (map[string][]definition.PlatformDataDefinition, error) {
	fields, err := t.cache.GetAll(ctx, platformCatalogKey)
	if err != nil {
		return nil, err
	}

	catalog := make(map[string][]definition.PlatformDataDefinition, len(fields))
	for productTypeID, raw := range fields {
		var defs []definition.PlatformDataDefinition
		if err := json.Unmarshal(raw, &defs); err != nil {
			return nil, fmt.Errorf("decode cached catalog entry %s: %w", productTypeID, err)
		}
		catalog[productTypeID] = defs
	}
	return catalog, nil
}

// CachePlatformCatalog rewrites the flat catalog hash.
func (t *Tiered) CachePlatformCatalog(ctx context.Context, catalog map[string][]definition.PlatformDataDefinition) error {
	fields := make(map[string][]byte, len(catalog))
	for productTypeID, defs := range catalog {
		raw, err := json.Marshal(defs)
		if err != nil {
			return fmt.Errorf("encode catalog entry %s: %w", productTypeID, err)
		}
		fields[productTypeID] = raw
	}
	return t.cache.PutAll(ctx, platformCatalogKey, fields)
}

func encodeByID(n int, at func(i int) (string, any)) (map[string][]byte, error) {
	fields := make(map[string][]byte, n)
	for i := 0; i < n; i++ {
		id, v := at(i)
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode definition %s: %w", id, err)
		}
		fields[id] = raw
	}
	return fields, nil
}
