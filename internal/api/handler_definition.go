package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/telemetrydev/datapoint/internal/definition"
	"github.com/telemetrydev/datapoint/internal/service"
)

// --- Huma Input/Output types ---

type DefinitionResponse struct {
	ID          string          `json:"id" doc:"Definition identifier"`
	DeveloperID string          `json:"developer_id" doc:"Owning developer"`
	ProductID   string          `json:"product_id" doc:"Owning product"`
	Name        string          `json:"name" doc:"Display name"`
	Description string          `json:"description" doc:"Free-form description"`
	DataSchema  json.RawMessage `json:"data_schema" doc:"JSON schema for data point values"`
	Openable    bool            `json:"openable" doc:"Whether the data point may be exposed"`
	Version     int             `json:"version" doc:"Optimistic lock version"`
	CreatedAt   time.Time       `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt   time.Time       `json:"updated_at" doc:"Last modification timestamp"`
}

type CreateDefinitionBody struct {
	ProductID   string          `json:"product_id" doc:"Owning product" required:"true" minLength:"1"`
	Name        string          `json:"name" doc:"Display name" required:"true" minLength:"1"`
	Description string          `json:"description" doc:"Free-form description" required:"false"`
	DataSchema  json.RawMessage `json:"data_schema" doc:"JSON schema for data point values" required:"true"`
	Openable    bool            `json:"openable" doc:"Whether the data point may be exposed" required:"false"`
}

type CreateDefinitionInput struct {
	DeveloperID string `header:"X-Developer-Id" doc:"Developer identity" required:"true"`
	Body        CreateDefinitionBody
}

type CreateDefinitionOutput struct {
	Body DefinitionResponse
}

type UpdateDefinitionBody struct {
	Version int               `json:"version" doc:"Expected current version"`
	Actions []json.RawMessage `json:"actions" doc:"Update actions, each tagged with an \"action\" field" required:"true" minItems:"1"`
}

type UpdateDefinitionInput struct {
	DeveloperID string `header:"X-Developer-Id" doc:"Developer identity" required:"true"`
	ID          string `path:"id" doc:"Definition identifier"`
	Body        UpdateDefinitionBody
}

type UpdateDefinitionOutput struct {
	Body DefinitionResponse
}

type GetDefinitionInput struct {
	DeveloperID string `header:"X-Developer-Id" doc:"Developer identity" required:"true"`
	ID          string `path:"id" doc:"Definition identifier"`
	ProductID   string `query:"product_id" doc:"Owning product" required:"true"`
}

type GetDefinitionOutput struct {
	Body DefinitionResponse
}

type ListDefinitionsInput struct {
	DeveloperID string `header:"X-Developer-Id" doc:"Developer identity" required:"true"`
	ProductID   string `query:"product_id" doc:"Owning product" required:"true"`
}

type ListDefinitionsOutput struct {
	Body []DefinitionResponse
}

type BulkDefinitionsInput struct {
	DeveloperID string   `header:"X-Developer-Id" doc:"Developer identity" required:"true"`
	ProductIDs  []string `query:"product_ids,explode" doc:"Products to fetch definitions for" required:"true"`
}

type BulkDefinitionsOutput struct {
	Body map[string][]DefinitionResponse
}

type OpenDefinitionsInput struct {
	DeveloperID string `header:"X-Developer-Id" doc:"Developer identity" required:"true"`
}

type OpenDefinitionsOutput struct {
	Body []DefinitionResponse
}

type DeleteDefinitionInput struct {
	DeveloperID string `header:"X-Developer-Id" doc:"Developer identity" required:"true"`
	ID          string `path:"id" doc:"Definition identifier"`
	ProductID   string `query:"product_id" doc:"Owning product" required:"true"`
}

type DeleteDefinitionOutput struct{}

type DeleteProductDefinitionsInput struct {
	DeveloperID string `header:"X-Developer-Id" doc:"Developer identity" required:"true"`
	ProductID   string `query:"product_id" doc:"Owning product" required:"true"`
}

type DeleteProductDefinitionsOutput struct{}

type CopyDefinitionsBody struct {
	SourceIDs        []string `json:"source_ids" doc:"Developer definitions to copy from" required:"true" minItems:"1"`
	TargetProductIDs []string `json:"target_product_ids" doc:"Products to copy into" required:"true" minItems:"1"`
}

type CopyDefinitionsInput struct {
	DeveloperID string `header:"X-Developer-Id" doc:"Developer identity" required:"true"`
	Body        CopyDefinitionsBody
}

type CopyDefinitionsOutput struct {
	Body struct {
		IDs []string `json:"ids" doc:"Identifiers of the created definitions, ordered by source then target"`
	}
}

// --- Handler ---

type DefinitionHandler struct {
	definitions *service.Definitions
	logger      *slog.Logger
}

func NewDefinitionHandler(definitions *service.Definitions, logger *slog.Logger) *DefinitionHandler {
	return &DefinitionHandler{definitions: definitions, logger: logger}
}

func registerDefinitionRoutes(api huma.API, h *DefinitionHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-definition",
		Method:        http.MethodPost,
		Path:          "/v1/data-definitions",
		Summary:       "Create a device data definition",
		Tags:          []string{"definitions"},
		DefaultStatus: http.StatusCreated,
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "update-definition",
		Method:      http.MethodPut,
		Path:        "/v1/data-definitions/{id}",
		Summary:     "Apply update actions to a definition",
		Tags:        []string{"definitions"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "get-definition",
		Method:      http.MethodGet,
		Path:        "/v1/data-definitions/{id}",
		Summary:     "Get a single definition",
		Tags:        []string{"definitions"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "list-definitions",
		Method:      http.MethodGet,
		Path:        "/v1/data-definitions",
		Summary:     "List definitions for a product",
		Tags:        []string{"definitions"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "bulk-definitions",
		Method:      http.MethodGet,
		Path:        "/v1/data-definitions/bulk",
		Summary:     "List definitions for several products",
		Tags:        []string{"definitions"},
	}, h.Bulk)

	huma.Register(api, huma.Operation{
		OperationID: "open-definitions",
		Method:      http.MethodGet,
		Path:        "/v1/data-definitions/open",
		Summary:     "List openable definitions for a developer",
		Tags:        []string{"definitions"},
	}, h.Open)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-definition",
		Method:        http.MethodDelete,
		Path:          "/v1/data-definitions/{id}",
		Summary:       "Delete a single definition",
		Tags:          []string{"definitions"},
		DefaultStatus: http.StatusNoContent,
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-product-definitions",
		Method:        http.MethodDelete,
		Path:          "/v1/data-definitions",
		Summary:       "Delete every definition of a product",
		Tags:          []string{"definitions"},
		DefaultStatus: http.StatusNoContent,
	}, h.DeleteByProduct)

	huma.Register(api, huma.Operation{
		OperationID:   "copy-definitions",
		Method:        http.MethodPost,
		Path:          "/v1/data-definitions/copy",
		Summary:       "Copy developer definitions into device products",
		Tags:          []string{"definitions"},
		DefaultStatus: http.StatusCreated,
	}, h.Copy)
}

func (h *DefinitionHandler) Create(ctx context.Context, input *CreateDefinitionInput) (*CreateDefinitionOutput, error) {
	draft := definition.Draft{
		ProductID:   input.Body.ProductID,
		Name:        input.Body.Name,
		Description: input.Body.Description,
		DataSchema:  input.Body.DataSchema,
		Openable:    input.Body.Openable,
	}

	def, err := h.definitions.Create(ctx, input.DeveloperID, draft)
	if err != nil {
		return nil, domainError(h.logger, "create definition", err)
	}

	return &CreateDefinitionOutput{Body: definitionToResponse(def)}, nil
}

func (h *DefinitionHandler) Update(ctx context.Context, input *UpdateDefinitionInput) (*UpdateDefinitionOutput, error) {
	actions, err := definition.DecodeActions(input.Body.Actions)
	if err != nil {
		return nil, domainError(h.logger, "decode actions", err)
	}

	def, err := h.definitions.Update(ctx, input.DeveloperID, input.ID, input.Body.Version, actions)
	if err != nil {
		return nil, domainError(h.logger, "update definition", err)
	}

	return &UpdateDefinitionOutput{Body: definitionToResponse(def)}, nil
}

func (h *DefinitionHandler) Get(ctx context.Context, input *GetDefinitionInput) (*GetDefinitionOutput, error) {
	def, err := h.definitions.Get(ctx, input.DeveloperID, input.ProductID, input.ID)
	if err != nil {
		return nil, domainError(h.logger, "get definition", err)
	}

	return &GetDefinitionOutput{Body: definitionToResponse(def)}, nil
}

func (h *DefinitionHandler) List(ctx context.Context, input *ListDefinitionsInput) (*ListDefinitionsOutput, error) {
	defs, err := h.definitions.GetByProductID(ctx, input.DeveloperID, input.ProductID)
	if err != nil {
		return nil, domainError(h.logger, "list definitions", err)
	}

	return &ListDefinitionsOutput{Body: definitionsToResponse(defs)}, nil
}

func (h *DefinitionHandler) Bulk(ctx context.Context, input *BulkDefinitionsInput) (*BulkDefinitionsOutput, error) {
	byProduct, err := h.definitions.GetByProductIDs(ctx, input.DeveloperID, input.ProductIDs)
	if err != nil {
		return nil, domainError(h.logger, "list definitions by products", err)
	}

	resp := make(map[string][]DefinitionResponse, len(byProduct))
	for productID, defs := range byProduct {
		resp[productID] = definitionsToResponse(defs)
	}

	return &BulkDefinitionsOutput{Body: resp}, nil
}

func (h *DefinitionHandler) Open(ctx context.Context, input *OpenDefinitionsInput) (*OpenDefinitionsOutput, error) {
	defs, err := h.definitions.GetAllOpenData(ctx, input.DeveloperID)
	if err != nil {
		return nil, domainError(h.logger, "list open definitions", err)
	}

	return &OpenDefinitionsOutput{Body: definitionsToResponse(defs)}, nil
}

func (h *DefinitionHandler) Delete(ctx context.Context, input *DeleteDefinitionInput) (*DeleteDefinitionOutput, error) {
	if err := h.definitions.Delete(ctx, input.DeveloperID, input.ProductID, input.ID); err != nil {
		return nil, domainError(h.logger, "delete definition", err)
	}

	return &DeleteDefinitionOutput{}, nil
}

func (h *DefinitionHandler) DeleteByProduct(ctx context.Context, input *DeleteProductDefinitionsInput) (*DeleteProductDefinitionsOutput, error) {
	if err := h.definitions.DeleteByProduct(ctx, input.DeveloperID, input.ProductID); err != nil {
		return nil, domainError(h.logger, "delete product definitions", err)
	}

	return &DeleteProductDefinitionsOutput{}, nil
}

func (h *DefinitionHandler) Copy(ctx context.Context, input *CopyDefinitionsInput) (*CopyDefinitionsOutput, error) {
	ids, err := h.definitions.Copy(ctx, input.DeveloperID, definition.CopyRequest{
		SourceIDs:        input.Body.SourceIDs,
		TargetProductIDs: input.Body.TargetProductIDs,
	})
	if err != nil {
		return nil, domainError(h.logger, "copy definitions", err)
	}

	out := &CopyDefinitionsOutput{}
	out.Body.IDs = ids
	return out, nil
}

func definitionToResponse(d *definition.DeviceDataDefinition) DefinitionResponse {
	return DefinitionResponse{
		ID:          d.ID,
		DeveloperID: d.DeveloperID,
		ProductID:   d.ProductID,
		Name:        d.Name,
		Description: d.Description,
		DataSchema:  d.DataSchema,
		Openable:    d.Openable,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func definitionsToResponse(defs []definition.DeviceDataDefinition) []DefinitionResponse {
	resp := make([]DefinitionResponse, len(defs))
	for i := range defs {
		resp[i] = definitionToResponse(&defs[i])
	}
	return resp
}
