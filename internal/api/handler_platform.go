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

type PlatformDefinitionResponse struct {
	ID            string          `json:"id" doc:"Definition identifier"`
	ProductTypeID string          `json:"product_type_id" doc:"Product type the preset applies to"`
	Name          string          `json:"name" doc:"Display name"`
	Description   string          `json:"description" doc:"Free-form description"`
	DataSchema    json.RawMessage `json:"data_schema" doc:"JSON schema for data point values"`
	Openable      bool            `json:"openable" doc:"Whether the data point may be exposed"`
	Version       int             `json:"version" doc:"Optimistic lock version"`
	CreatedAt     time.Time       `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt     time.Time       `json:"updated_at" doc:"Last modification timestamp"`
}

type PlatformCatalogOutput struct {
	Body map[string][]PlatformDefinitionResponse
}

type PlatformByTypeInput struct {
	ProductTypeID string `path:"product_type_id" doc:"Product type identifier"`
}

type PlatformByTypeOutput struct {
	Body []PlatformDefinitionResponse
}

type CreatePlatformBody struct {
	ProductTypeID string          `json:"product_type_id" doc:"Product type the preset applies to" required:"true" minLength:"1"`
	Name          string          `json:"name" doc:"Display name" required:"true" minLength:"1"`
	Description   string          `json:"description" doc:"Free-form description" required:"false"`
	DataSchema    json.RawMessage `json:"data_schema" doc:"JSON schema for data point values" required:"true"`
	Openable      bool            `json:"openable" doc:"Whether the data point may be exposed" required:"false"`
}

type CreatePlatformInput struct {
	Body CreatePlatformBody
}

type CreatePlatformOutput struct {
	Body PlatformDefinitionResponse
}

type UpdatePlatformInput struct {
	ID   string `path:"id" doc:"Definition identifier"`
	Body UpdateDefinitionBody
}

type UpdatePlatformOutput struct {
	Body PlatformDefinitionResponse
}

type DeletePlatformTypeInput struct {
	ProductTypeID string `path:"product_type_id" doc:"Product type identifier"`
}

type DeletePlatformTypeOutput struct{}

// --- Handler ---

type PlatformHandler struct {
	platform *service.Platform
	logger   *slog.Logger
}

func NewPlatformHandler(platform *service.Platform, logger *slog.Logger) *PlatformHandler {
	return &PlatformHandler{platform: platform, logger: logger}
}

func registerPlatformRoutes(api huma.API, h *PlatformHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "platform-catalog",
		Method:      http.MethodGet,
		Path:        "/v1/platform-definitions",
		Summary:     "Get the full platform preset catalog grouped by product type",
		Tags:        []string{"platform"},
	}, h.Catalog)

	huma.Register(api, huma.Operation{
		OperationID: "platform-by-type",
		Method:      http.MethodGet,
		Path:        "/v1/platform-definitions/types/{product_type_id}",
		Summary:     "Get platform presets for a product type",
		Tags:        []string{"platform"},
	}, h.ByType)

	huma.Register(api, huma.Operation{
		OperationID:   "create-platform-definition",
		Method:        http.MethodPost,
		Path:          "/v1/platform-definitions",
		Summary:       "Create a platform preset definition",
		Tags:          []string{"platform"},
		DefaultStatus: http.StatusCreated,
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "update-platform-definition",
		Method:      http.MethodPut,
		Path:        "/v1/platform-definitions/{id}",
		Summary:     "Apply update actions to a platform preset",
		Tags:        []string{"platform"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-platform-type",
		Method:        http.MethodDelete,
		Path:          "/v1/platform-definitions/types/{product_type_id}",
		Summary:       "Delete every preset of a product type",
		Tags:          []string{"platform"},
		DefaultStatus: http.StatusNoContent,
	}, h.DeleteByType)
}

func (h *PlatformHandler) Catalog(ctx context.Context, _ *struct{}) (*PlatformCatalogOutput, error) {
	catalog, err := h.platform.GetAll(ctx)
	if err != nil {
		return nil, domainError(h.logger, "get platform catalog", err)
	}

	resp := make(map[string][]PlatformDefinitionResponse, len(catalog))
	for productTypeID, defs := range catalog {
		resp[productTypeID] = platformsToResponse(defs)
	}

	return &PlatformCatalogOutput{Body: resp}, nil
}

func (h *PlatformHandler) ByType(ctx context.Context, input *PlatformByTypeInput) (*PlatformByTypeOutput, error) {
	defs, err := h.platform.GetByProductType(ctx, input.ProductTypeID)
	if err != nil {
		return nil, domainError(h.logger, "get platform presets", err)
	}

	return &PlatformByTypeOutput{Body: platformsToResponse(defs)}, nil
}

func (h *PlatformHandler) Create(ctx context.Context, input *CreatePlatformInput) (*CreatePlatformOutput, error) {
	draft := definition.PlatformDraft{
		ProductTypeID: input.Body.ProductTypeID,
		Name:          input.Body.Name,
		Description:   input.Body.Description,
		DataSchema:    input.Body.DataSchema,
		Openable:      input.Body.Openable,
	}

	def, err := h.platform.Create(ctx, draft)
	if err != nil {
		return nil, domainError(h.logger, "create platform preset", err)
	}

	return &CreatePlatformOutput{Body: platformToResponse(def)}, nil
}

func (h *PlatformHandler) Update(ctx context.Context, input *UpdatePlatformInput) (*UpdatePlatformOutput, error) {
	actions, err := definition.DecodeActions(input.Body.Actions)
	if err != nil {
		return nil, domainError(h.logger, "decode actions", err)
	}

	def, err := h.platform.Update(ctx, input.ID, input.Body.Version, actions)
	if err != nil {
		return nil, domainError(h.logger, "update platform preset", err)
	}

	return &UpdatePlatformOutput{Body: platformToResponse(def)}, nil
}

func (h *PlatformHandler) DeleteByType(ctx context.Context, input *DeletePlatformTypeInput) (*DeletePlatformTypeOutput, error) {
	if err := h.platform.DeleteByProductType(ctx, input.ProductTypeID); err != nil {
		return nil, domainError(h.logger, "delete platform presets", err)
	}

	return &DeletePlatformTypeOutput{}, nil
}

func platformToResponse(d *definition.PlatformDataDefinition) PlatformDefinitionResponse {
	return PlatformDefinitionResponse{
		ID:            d.ID,
		ProductTypeID: d.ProductTypeID,
		Name:          d.Name,
		Description:   d.Description,
		DataSchema:    d.DataSchema,
		Openable:      d.Openable,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func platformsToResponse(defs []definition.PlatformDataDefinition) []PlatformDefinitionResponse {
	resp := make([]PlatformDefinitionResponse, len(defs))
	for i := range defs {
		resp[i] = platformToResponse(&defs[i])
	}
	return resp
}
