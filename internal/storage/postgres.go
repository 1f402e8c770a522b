package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telemetrydev/datapoint/internal/definition"
)

const deviceColumns = "id, developer_id, product_id, name, description, data_schema, openable, version, created_at, updated_at"

// PostgresDeviceStore implements DeviceStore on PostgreSQL.
type PostgresDeviceStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewPostgresDeviceStore creates a DeviceStore backed by the
// device_data_definitions table. queryTimeout sets the per-query context
// deadline; zero means no timeout.
func NewPostgresDeviceStore(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresDeviceStore {
	return &PostgresDeviceStore{pool: pool, queryTimeout: queryTimeout}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}

func scanDevice(row pgx.Row) (*definition.DeviceDataDefinition, error) {
	var d definition.DeviceDataDefinition
	err := row.Scan(&d.ID, &d.DeveloperID, &d.ProductID, &d.Name, &d.Description,
		&d.DataSchema, &d.Openable, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresDeviceStore) FindByID(ctx context.Context, developerID, id string) (*definition.DeviceDataDefinition, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM device_data_definitions
		WHERE developer_id = $1 AND id = $2
	`, deviceColumns)

	d, err := scanDevice(s.pool.QueryRow(ctx, query, developerID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, definition.ErrNotFound
		}
		return nil, fmt.Errorf("find device definition: %w", err)
	}
	return d, nil
}

func (s *PostgresDeviceStore) FindByProduct(ctx context.Context, developerID, productID string) ([]definition.DeviceDataDefinition, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM device_data_definitions
		WHERE developer_id = $1 AND product_id = $2
		ORDER BY created_at ASC
	`, deviceColumns)

	rows, err := s.pool.Query(ctx, query, developerID, productID)
	if err != nil {
		return nil, fmt.Errorf("find by product: %w", err)
	}
	defer rows.Close()
	return collectDevices(rows)
}

func (s *PostgresDeviceStore) FindOpenByDeveloper(ctx context.Context, developerID string) ([]definition.DeviceDataDefinition, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM device_data_definitions
		WHERE developer_id = $1 AND openable
		ORDER BY created_at ASC
	`, deviceColumns)

	rows, err := s.pool.Query(ctx, query, developerID)
	if err != nil {
		return nil, fmt.Errorf("find open definitions: %w", err)
	}
	defer rows.Close()
	return collectDevices(rows)
}

func collectDevices(rows pgx.Rows) ([]definition.DeviceDataDefinition, error) {
	var defs []definition.DeviceDataDefinition
	for rows.Next() {
		var d definition.DeviceDataDefinition
		if err := rows.Scan(&d.ID, &d.DeveloperID, &d.ProductID, &d.Name, &d.Description,
			&d.DataSchema, &d.Openable, &d.Version, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan device definition: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

func (s *PostgresDeviceStore) Create(ctx context.Context, def *definition.DeviceDataDefinition) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		INSERT INTO device_data_definitions
			(id, developer_id, product_id, name, description, data_schema, openable, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		def.ID, def.DeveloperID, def.ProductID, def.Name, def.Description,
		def.DataSchema, def.Openable, def.Version,
	).Scan(&def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create device definition: %w", err)
	}
	return nil
}

func (s *PostgresDeviceStore) CreateAll(ctx context.Context, defs []definition.DeviceDataDefinition) error {
	if len(defs) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO device_data_definitions
			(id, developer_id, product_id, name, description, data_schema, openable, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, def := range defs {
		if _, err := tx.Exec(ctx, query,
			def.ID, def.DeveloperID, def.ProductID, def.Name, def.Description,
			def.DataSchema, def.Openable, def.Version,
		); err != nil {
			return fmt.Errorf("batch insert definition %s: %w", def.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch insert: %w", err)
	}
	return nil
}

// Update performs the optimistic-lock write as one compare-and-swap
// statement: the row is only touched when the stored version still equals
// expectedVersion.
func (s *PostgresDeviceStore) Update(ctx context.Context, def *definition.DeviceDataDefinition, expectedVersion int) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		UPDATE device_data_definitions
		SET name = $1, description = $2, data_schema = $3, openable = $4,
			version = version + 1, updated_at = now()
		WHERE developer_id = $5 AND id = $6 AND version = $7
		RETURNING version, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		def.Name, def.Description, def.DataSchema, def.Openable,
		def.DeveloperID, def.ID, expectedVersion,
	).Scan(&def.Version, &def.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update device definition: %w", err)
	}

	// No row matched: distinguish a stale version from a missing entity.
	var current int
	err = s.pool.QueryRow(ctx,
		`SELECT version FROM device_data_definitions WHERE developer_id = $1 AND id = $2`,
		def.DeveloperID, def.ID,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return definition.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update device definition: %w", err)
	}
	return fmt.Errorf("%w: have %d, want %d", definition.ErrVersionConflict, current, expectedVersion)
}

func (s *PostgresDeviceStore) Delete(ctx context.Context, developerID, productID, id string) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM device_data_definitions WHERE developer_id = $1 AND product_id = $2 AND id = $3`,
		developerID, productID, id,
	)
	if err != nil {
		return fmt.Errorf("delete device definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return definition.ErrNotFound
	}
	return nil
}

func (s *PostgresDeviceStore) DeleteByProduct(ctx context.Context, developerID, productID string) (int, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM device_data_definitions WHERE developer_id = $1 AND product_id = $2`,
		developerID, productID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete by product: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const developerColumns = "id, developer_id, name, description, data_schema, openable, version, created_at, updated_at"

// PostgresDeveloperStore implements DeveloperStore on PostgreSQL.
type PostgresDeveloperStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

func NewPostgresDeveloperStore(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresDeveloperStore {
	return &PostgresDeveloperStore{pool: pool, queryTimeout: queryTimeout}
}

func (s *PostgresDeveloperStore) FindByID(ctx context.Context, developerID, id string) (*definition.DeveloperDataDefinition, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM developer_data_definitions
		WHERE developer_id = $1 AND id = $2
	`, developerColumns)

	var d definition.DeveloperDataDefinition
	err := s.pool.QueryRow(ctx, query, developerID, id).Scan(
		&d.ID, &d.DeveloperID, &d.Name, &d.Description,
		&d.DataSchema, &d.Openable, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, definition.ErrNotFound
		}
		return nil, fmt.Errorf("find developer definition: %w", err)
	}
	return &d, nil
}

func (s *PostgresDeveloperStore) FindAllByIDs(ctx context.Context, developerID string, ids []string) ([]definition.DeveloperDataDefinition, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM developer_data_definitions
		WHERE developer_id = $1 AND id = ANY($2)
	`, developerColumns)

	rows, err := s.pool.Query(ctx, query, developerID, ids)
	if err != nil {
		return nil, fmt.Errorf("find developer definitions by ids: %w", err)
	}
	defer rows.Close()
	return collectDeveloperDefs(rows)
}

func (s *PostgresDeveloperStore) FindByDeveloper(ctx context.Context, developerID string) ([]definition.DeveloperDataDefinition, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM developer_data_definitions
		WHERE developer_id = $1
		ORDER BY created_at ASC
	`, developerColumns)

	rows, err := s.pool.Query(ctx, query, developerID)
	if err != nil {
		return nil, fmt.Errorf("find by developer: %w", err)
	}
	defer rows.Close()
	return collectDeveloperDefs(rows)
}

func collectDeveloperDefs(rows pgx.Rows) ([]definition.DeveloperDataDefinition, error) {
	var defs []definition.DeveloperDataDefinition
	for rows.Next() {
		var d definition.DeveloperDataDefinition
		if err := rows.Scan(&d.ID, &d.DeveloperID, &d.Name, &d.Description,
			&d.DataSchema, &d.Openable, &d.Version, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan developer definition: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

func (s *PostgresDeveloperStore) Create(ctx context.Context, def *definition.DeveloperDataDefinition) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		INSERT INTO developer_data_definitions
			(id, developer_id, name, description, data_schema, openable, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		def.ID, def.DeveloperID, def.Name, def.Description,
		def.DataSchema, def.Openable, def.Version,
	).Scan(&def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create developer definition: %w", err)
	}
	return nil
}

func (s *PostgresDeveloperStore) Delete(ctx context.Context, developerID, id string) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM developer_data_definitions WHERE developer_id = $1 AND id = $2`,
		developerID, id,
	)
	if err != nil {
		return fmt.Errorf("delete developer definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return definition.ErrNotFound
	}
	return nil
}

const platformColumns = "id, product_type_id, name, description, data_schema, openable, version, created_at, updated_at"

// PostgresPlatformStore implements PlatformStore on PostgreSQL.
type PostgresPlatformStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

func NewPostgresPlatformStore(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresPlatformStore {
	return &PostgresPlatformStore{pool: pool, queryTimeout: queryTimeout}
}

func (s *PostgresPlatformStore) FindAll(ctx context.Context) ([]definition.PlatformDataDefinition, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM platform_data_definitions
		ORDER BY product_type_id, created_at ASC
	`, platformColumns)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find all platform definitions: %w", err)
	}
	defer rows.Close()
	return collectPlatformDefs(rows)
}

func (s *PostgresPlatformStore) FindByProductType(ctx context.Context, productTypeID string) ([]definition.PlatformDataDefinition, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM platform_data_definitions
		WHERE product_type_id = $1
		ORDER BY created_at ASC
	`, platformColumns)

	rows, err := s.pool.Query(ctx, query, productTypeID)
	if err != nil {
		return nil, fmt.Errorf("find by product type: %w", err)
	}
	defer rows.Close()
	return collectPlatformDefs(rows)
}

func (s *PostgresPlatformStore) FindByID(ctx context.Context, id string) (*definition.PlatformDataDefinition, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM platform_data_definitions WHERE id = $1`, platformColumns)

	var d definition.PlatformDataDefinition
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.ProductTypeID, &d.Name, &d.Description,
		&d.DataSchema, &d.Openable, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, definition.ErrNotFound
		}
		return nil, fmt.Errorf("find platform definition: %w", err)
	}
	return &d, nil
}

func collectPlatformDefs(rows pgx.Rows) ([]definition.PlatformDataDefinition, error) {
	var defs []definition.PlatformDataDefinition
	for rows.Next() {
		var d definition.PlatformDataDefinition
		if err := rows.Scan(&d.ID, &d.ProductTypeID, &d.Name, &d.Description,
			&d.DataSchema, &d.Openable, &d.Version, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan platform definition: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

func (s *PostgresPlatformStore) Create(ctx context.Context, def *definition.PlatformDataDefinition) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		INSERT INTO platform_data_definitions
			(id, product_type_id, name, description, data_schema, openable, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		def.ID, def.ProductTypeID, def.Name, def.Description,
		def.DataSchema, def.Openable, def.Version,
	).Scan(&def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create platform definition: %w", err)
	}
	return nil
}

func (s *PostgresPlatformStore) Update(ctx context.Context, def *definition.PlatformDataDefinition, expectedVersion int) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		UPDATE platform_data_definitions
		SET name = $1, description = $2, data_schema = $3, openable = $4,
			version = version + 1, updated_at = now()
		WHERE id = $5 AND version = $6
		RETURNING version, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		def.Name, def.Description, def.DataSchema, def.Openable,
		def.ID, expectedVersion,
	).Scan(&def.Version, &def.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update platform definition: %w", err)
	}

	var current int
	err = s.pool.QueryRow(ctx,
		`SELECT version FROM platform_data_definitions WHERE id = $1`, def.ID,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return definition.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update platform definition: %w", err)
	}
	return fmt.Errorf("%w: have %d, want %d", definition.ErrVersionConflict, current, expectedVersion)
}

func (s *PostgresPlatformStore) DeleteByProductType(ctx context.Context, productTypeID string) (int, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM platform_data_definitions WHERE product_type_id = $1`, productTypeID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete by product type: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
