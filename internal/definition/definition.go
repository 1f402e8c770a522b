package definition

import (
	"encoding/json"
	"time"
)

// DeviceDataDefinition is a telemetry data point definition bound to one
// product of one developer. This is the entity most read and write traffic
// touches.
type DeviceDataDefinition struct {
	ID          string          `json:"id"`
	DeveloperID string          `json:"developer_id"`
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	DataSchema  json.RawMessage `json:"data_schema"`
	Openable    bool            `json:"openable"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// DeveloperDataDefinition is a developer's custom definition that is not yet
// bound to any product. Copy requests resolve their sources from these.
type DeveloperDataDefinition struct {
	ID          string          `json:"id"`
	DeveloperID string          `json:"developer_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	DataSchema  json.RawMessage `json:"data_schema"`
	Openable    bool            `json:"openable"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PlatformDataDefinition is a platform-preset definition shared by every
// developer of a product type.
type PlatformDataDefinition struct {
	ID            string          `json:"id"`
	ProductTypeID string          `json:"product_type_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	DataSchema    json.RawMessage `json:"data_schema"`
	Openable      bool            `json:"openable"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Draft is what a caller provides to create a device data definition.
type Draft struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	DataSchema  json.RawMessage `json:"data_schema"`
	Openable    bool            `json:"openable"`
}

// PlatformDraft is what a caller provides to create a platform-preset
// definition.
type PlatformDraft struct {
	ProductTypeID string          `json:"product_type_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	DataSchema    json.RawMessage `json:"data_schema"`
	Openable      bool            `json:"openable"`
}

// CopyRequest names developer-scope source definitions and the products each
// one should be cloned into.
type CopyRequest struct {
	SourceIDs        []string `json:"source_ids"`
	TargetProductIDs []string `json:"target_product_ids"`
}

// SchemaValidator reports whether a schema document is a structurally valid
// JSON Schema. Action handlers call it before any schema mutation.
type SchemaValidator func(doc json.RawMessage) error
