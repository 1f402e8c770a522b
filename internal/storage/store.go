package storage

import (
	"context"

	"github.com/telemetrydev/datapoint/internal/definition"
)

// DeviceStore persists product-scoped data definitions. It is the single
// source of truth for device definitions; all cache content is derived from
// it.
type DeviceStore interface {
	// FindByID returns one definition owned by a developer.
	FindByID(ctx context.Context, developerID, id string) (*definition.DeviceDataDefinition, error)

	// FindByProduct returns every definition under one (developer, product)
	// scope.
	FindByProduct(ctx context.Context, developerID, productID string) ([]definition.DeviceDataDefinition, error)

	// FindOpenByDeveloper returns a developer's definitions with openable set.
	FindOpenByDeveloper(ctx context.Context, developerID string) ([]definition.DeviceDataDefinition, error)

	// Create inserts a new definition.
	Create(ctx context.Context, def *definition.DeviceDataDefinition) error

	// CreateAll inserts a batch of definitions in a single transaction.
	// Either every definition is committed or none is.
	CreateAll(ctx context.Context, defs []definition.DeviceDataDefinition) error

	// Update persists def if the stored version still equals
	// expectedVersion, bumping the version by one. A version mismatch
	// returns definition.ErrVersionConflict; a missing row returns
	// definition.ErrNotFound. The check and the write are one statement.
	Update(ctx context.Context, def *definition.DeviceDataDefinition, expectedVersion int) error

	// Delete removes one definition. Missing rows return
	// definition.ErrNotFound.
	Delete(ctx context.Context, developerID, productID, id string) error

	// DeleteByProduct removes every definition under one scope. Returns the
	// number of rows removed.
	DeleteByProduct(ctx context.Context, developerID, productID string) (int, error)
}

// DeveloperStore persists developer-scoped data definitions (not yet bound
// to a product). Copy requests resolve their sources here.
type DeveloperStore interface {
	FindByID(ctx context.Context, developerID, id string) (*definition.DeveloperDataDefinition, error)
	FindAllByIDs(ctx context.Context, developerID string, ids []string) ([]definition.DeveloperDataDefinition, error)
	FindByDeveloper(ctx context.Context, developerID string) ([]definition.DeveloperDataDefinition, error)
	Create(ctx context.Context, def *definition.DeveloperDataDefinition) error
	Delete(ctx context.Context, developerID, id string) error
}

// PlatformStore persists platform-preset definitions keyed by product type.
type PlatformStore interface {
	FindAll(ctx context.Context) ([]definition.PlatformDataDefinition, error)
	FindByProductType(ctx context.Context, productTypeID string) ([]definition.PlatformDataDefinition, error)
	FindByID(ctx context.Context, id string) (*definition.PlatformDataDefinition, error)
	Create(ctx context.Context, def *definition.PlatformDataDefinition) error
	Update(ctx context.Context, def *definition.PlatformDataDefinition, expectedVersion int) error
	DeleteByProductType(ctx context.Context, productTypeID string) (int, error)
}
