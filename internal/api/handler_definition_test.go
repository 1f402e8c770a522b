package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/telemetrydev/datapoint/internal/cache"
	"github.com/telemetrydev/datapoint/internal/definition"
	"github.com/telemetrydev/datapoint/internal/schema"
	"github.com/telemetrydev/datapoint/internal/service"
)

// --- Mock stores ---

type mockDeviceStore struct {
	defs map[string]definition.DeviceDataDefinition
	now  time.Time
}

func newMockDeviceStore() *mockDeviceStore {
	return &mockDeviceStore{
		defs: make(map[string]definition.DeviceDataDefinition),
		now:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *mockDeviceStore) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *mockDeviceStore) FindByID(ctx context.Context, developerID, id string) (*definition.DeviceDataDefinition, error) {
	d, ok := m.defs[id]
	if !ok || d.DeveloperID != developerID {
		return nil, definition.ErrNotFound
	}
	return &d, nil
}

func (m *mockDeviceStore) FindByProduct(ctx context.Context, developerID, productID string) ([]definition.DeviceDataDefinition, error) {
	var out []definition.DeviceDataDefinition
	for _, d := range m.defs {
		if d.DeveloperID == developerID && d.ProductID == productID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDeviceStore) FindOpenByDeveloper(ctx context.Context, developerID string) ([]definition.DeviceDataDefinition, error) {
	var out []definition.DeviceDataDefinition
	for _, d := range m.defs {
		if d.DeveloperID == developerID && d.Openable {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDeviceStore) Create(ctx context.Context, def *definition.DeviceDataDefinition) error {
	def.CreatedAt = m.tick()
	def.UpdatedAt = def.CreatedAt
	m.defs[def.ID] = *def
	return nil
}

func (m *mockDeviceStore) CreateAll(ctx context.Context, defs []definition.DeviceDataDefinition) error {
	for i := range defs {
		defs[i].CreatedAt = m.tick()
		defs[i].UpdatedAt = defs[i].CreatedAt
		m.defs[defs[i].ID] = defs[i]
	}
	return nil
}

func (m *mockDeviceStore) Update(ctx context.Context, def *definition.DeviceDataDefinition, expectedVersion int) error {
	stored, ok := m.defs[def.ID]
	if !ok {
		return definition.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%w: have %d, want %d", definition.ErrVersionConflict, stored.Version, expectedVersion)
	}
	def.Version = expectedVersion + 1
	def.UpdatedAt = m.tick()
	m.defs[def.ID] = *def
	return nil
}

func (m *mockDeviceStore) Delete(ctx context.Context, developerID, productID, id string) error {
	d, ok := m.defs[id]
	if !ok || d.DeveloperID != developerID || d.ProductID != productID {
		return definition.ErrNotFound
	}
	delete(m.defs, id)
	return nil
}

func (m *mockDeviceStore) DeleteByProduct(ctx context.Context, developerID, productID string) (int, error) {
	deleted := 0
	for id, d := range m.defs {
		if d.DeveloperID == developerID && d.ProductID == productID {
			delete(m.defs, id)
			deleted++
		}
	}
	return deleted, nil
}

type mockDeveloperStore struct {
	defs map[string]definition.DeveloperDataDefinition
}

func newMockDeveloperStore() *mockDeveloperStore {
	return &mockDeveloperStore{defs: make(map[string]definition.DeveloperDataDefinition)}
}

func (m *mockDeveloperStore) FindByID(ctx context.Context, developerID, id string) (*definition.DeveloperDataDefinition, error) {
	d, ok := m.defs[id]
	if !ok || d.DeveloperID != developerID {
		return nil, definition.ErrNotFound
	}
	return &d, nil
}

func (m *mockDeveloperStore) FindAllByIDs(ctx context.Context, developerID string, ids []string) ([]definition.DeveloperDataDefinition, error) {
	var out []definition.DeveloperDataDefinition
	for _, id := range ids {
		if d, ok := m.defs[id]; ok && d.DeveloperID == developerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDeveloperStore) FindByDeveloper(ctx context.Context, developerID string) ([]definition.DeveloperDataDefinition, error) {
	var out []definition.DeveloperDataDefinition
	for _, d := range m.defs {
		if d.DeveloperID == developerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDeveloperStore) Create(ctx context.Context, def *definition.DeveloperDataDefinition) error {
	m.defs[def.ID] = *def
	return nil
}

func (m *mockDeveloperStore) Delete(ctx context.Context, developerID, id string) error {
	d, ok := m.defs[id]
	if !ok || d.DeveloperID != developerID {
		return definition.ErrNotFound
	}
	delete(m.defs, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestServer(devices *mockDeviceStore, developers *mockDeveloperStore, platforms *mockPlatformStore) http.Handler {
	tiered := cache.NewTiered(cache.NewMemory())
	definitions := service.NewDefinitions(devices, developers, tiered, schema.Validate, testLogger())
	platform := service.NewPlatform(platforms, tiered, schema.Validate, testLogger())
	return NewServer(testLogger(), definitions, platform)
}

const testSchema = `{"type":"object","properties":{"value":{"type":"number"}}}`

func createDefinition(t *testing.T, server http.Handler, productID, name string, openable bool) DefinitionResponse {
	t.Helper()

	body := map[string]any{
		"product_id":  productID,
		"name":        name,
		"data_schema": json.RawMessage(testSchema),
		"openable":    openable,
	}
	data, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/v1/data-definitions", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Developer-Id", "dev-1")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create status: got %d, want %d\nbody: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp DefinitionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

// --- Create ---

func TestCreateDefinition_Success(t *testing.T) {
	server := setupTestServer(newMockDeviceStore(), newMockDeveloperStore(), newMockPlatformStore())

	resp := createDefinition(t, server, "prod-1", "temperature", true)

	if resp.ID == "" {
		t.Error("expected a generated id")
	}
	if resp.DeveloperID != "dev-1" {
		t.Errorf("DeveloperID: got %q, want dev-1", resp.DeveloperID)
	}
	if resp.ProductID != "prod-1" {
		t.Errorf("ProductID: got %q, want prod-1", resp.ProductID)
	}
	if resp.Version != 0 {
		t.Errorf("Version: got %d, want 0", resp.Version)
	}
	if !resp.Openable {
		t.Error("expected openable to be set")
	}
}

func TestCreateDefinition_InvalidSchema(t *testing.T) {
	server := setupTestServer(newMockDeviceStore(), newMockDeveloperStore(), newMockPlatformStore())

	body := map[string]any{
		"product_id":  "prod-1",
		"name":        "temperature",
		"data_schema": json.RawMessage(`{"type": 123}`),
	}
	data, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/v1/data-definitions", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Developer-Id", "dev-1")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400\nbody: %s", w.Code, w.Body.String())
	}
}

func TestCreateDefinition_MissingDeveloperHeader(t *testing.T) {
	server := setupTestServer(newMockDeviceStore(), newMockDeveloperStore(), newMockPlatformStore())

	body := map[string]any{
		"product_id":  "prod-1",
		"name":        "temperature",
		"data_schema": json.RawMessage(testSchema),
	}
	data, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/v1/data-definitions", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want 422\nbody: %s", w.Code, w.Body.String())
	}
}

// --- Update ---

func TestUpdateDefinition_Success(t *testing.T) {
	server := setupTestServer(newMockDeviceStore(), newMockDeveloperStore(), newMockPlatformStore())
	created := createDefinition(t, server, "prod-1", "temperature", false)

	body := map[string]any{
		"version": 0,
		"actions": []map[string]any{
			{"action": "setName", "name": "humidity"},
			{"action": "changeOpenable", "openable": true},
		},
	}
	data, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPut, "/v1/data-definitions/"+created.ID, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Developer-Id", "dev-1")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200\nbody: %s", w.Code, w.Body.String())
	}

	var resp DefinitionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Name != "humidity" {
		t.Errorf("Name: got %q, want humidity", resp.Name)
	}
	if !resp.Openable {
		t.Error("expected openable to be set")
	}
	if resp.Version != 1 {
		t.Errorf("Version: got %d, want 1", resp.Version)
	}
}

func TestUpdateDefinition_UnknownAction(t *testing.T) {
	server := setupTestServer(newMockDeviceStore(), newMockDeveloperStore(), newMockPlatformStore())
	created := createDefinition(t, server, "prod-1", "temperature", false)

	body := map[string]any{
		"version": 0,
		"actions": []map[string]any{
			{"action": "explode"},
		},
	}
	data, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPut, "/v1/data-definitions/"+created.ID, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Developer-Id", "dev-1")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400\nbody: %s", w.Code, w.Body.String())
	}
}

func TestUpdateDefinition_VersionConflict(t *testing.T) {
	server := setupTestServer(newMockDeviceStore(), newMockDeveloperStore(), newMockPlatformStore())
	created := createDefinition(t, server, "prod-1", "temperature", false)

	body := map[string]any{
		"version": 7,
		"actions": []map[string]any{
			{"action": "setName", "name": "humidity"},
		},
	}
	data, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPut, "/v1/data-definitions/"+created.ID, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Developer-Id", "dev-1")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409\nbody: %s", w.Code, w.Body.String())
	}
}

// --- Reads ---

func TestGetDefinition_NotFound(t *testing.T) {
	server := setupTestServer(newMockDeviceStore(), newMockDeveloperStore(), newMockPlatformStore())

	req := httptest.NewRequest(http.MethodGet, "/v1/data-definitions/nope?product_id=prod-1", nil)
	req.Header.Set("X-Developer-Id", "dev-1")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404\nbody: %s", w.Code, w.Body.String())
	}
}

func TestListDefinitions_Success(t *testing.T) {
	server := setupTestServer(newMockDeviceStore(), newMockDeveloperStore(), newMockPlatformStore())
	createDefinition(t, server, "prod-1", "temperature", false)
	createDefinition(t, server, "prod-1", "humidity", false)
	createDefinition(t, server, "prod-2", "pressure", false)

	req := httptest.NewRequest(http.MethodGet, "/v1/data-definitions?product_id=prod-1", nil)
	req.Header.Set("X-Developer-Id", "dev-1")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200\nbody: %s", w.Code, w.Body.String())
	}

	var resp []DefinitionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 2 {
		t.Errorf("definitions: got %d, want 2", len(resp))
	}
}

func TestBulkDefinitions_Success(t *testing.T) {
	server := setupTestServer(newMockDeviceStore(), newMockDeveloperStore(), newMockPlatformStore())
	createDefinition(t, server, "prod-1", "temperature", false)
	createDefinition(t, server, "prod-2", "pressure", false)

	req := httptest.NewRequest(http.MethodGet, "/v1/data-definitions/bulk?product_ids=prod-1&product_ids=prod-2", nil)
	req.Header.Set("X-Developer-Id", "dev-1")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200\nbody: %s", w.Code, w.Body.String())
	}

	var resp map[string][]DefinitionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp["prod-1"]) != 1 || len(resp["prod-2"]) != 1 {
		t.Errorf("bulk result: got %v", resp)
	}
}

func TestOpenDefinitions_Success(t *testing.T) {
	server := setupTestServer(newMockDeviceStore(), newMockDeveloperStore(), newMockPlatformStore())
	createDefinition(t, server, "prod-1", "temperature", true)
	createDefinition(t, server, "prod-1", "humidity", false)

	req := httptest.NewRequest(http.MethodGet, "/v1/data-definitions/open", nil)
	req.Header.Set("X-Developer-Id", "dev-1")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200\nbody: %s", w.Code, w.Body.String())
	}

	var resp []DefinitionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 1 || resp[0].Name != "temperature" {
		t.Errorf("open definitions: got %v", resp)
	}
}

// --- Delete ---

func TestDeleteDefinition_Success(t *testing.T) {
	devices := newMockDeviceStore()
	server := setupTestServer(devices, newMockDeveloperStore(), newMockPlatformStore())
	created := createDefinition(t, server, "prod-1", "temperature", false)

	req := httptest.NewRequest(http.MethodDelete, "/v1/data-definitions/"+created.ID+"?product_id=prod-1", nil)
	req.Header.Set("X-Developer-Id", "dev-1")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204\nbody: %s", w.Code, w.Body.String())
	}
	if len(devices.defs) != 0 {
		t.Errorf("store: %d definitions remain", len(devices.defs))
	}
}

func TestDeleteProductDefinitions_Success(t *testing.T) {
	devices := newMockDeviceStore()
	server := setupTestServer(devices, newMockDeveloperStore(), newMockPlatformStore())
	createDefinition(t, server, "prod-1", "temperature", false)
	createDefinition(t, server, "prod-1", "humidity", false)
	createDefinition(t, server, "prod-2", "pressure", false)

	req := httptest.NewRequest(http.MethodDelete, "/v1/data-definitions?product_id=prod-1", nil)
	req.Header.Set("X-Developer-Id", "dev-1")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204\nbody: %s", w.Code, w.Body.String())
	}
	if len(devices.defs) != 1 {
		t.Errorf("store: got %d definitions, want 1", len(devices.defs))
	}
}

// --- Copy ---

func TestCopyDefinitions_Success(t *testing.T) {
	developers := newMockDeveloperStore()
	developers.defs["src-1"] = definition.DeveloperDataDefinition{
		ID:          "src-1",
		DeveloperID: "dev-1",
		Name:        "temperature",
		DataSchema:  json.RawMessage(testSchema),
		Openable:    true,
	}
	devices := newMockDeviceStore()
	server := setupTestServer(devices, developers, newMockPlatformStore())

	body := map[string]any{
		"source_ids":         []string{"src-1"},
		"target_product_ids": []string{"prod-1", "prod-2"},
	}
	data, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/v1/data-definitions/copy", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Developer-Id", "dev-1")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201\nbody: %s", w.Code, w.Body.String())
	}

	var resp struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.IDs) != 2 {
		t.Errorf("ids: got %d, want 2", len(resp.IDs))
	}
	if len(devices.defs) != 2 {
		t.Errorf("store: got %d definitions, want 2", len(devices.defs))
	}
}

func TestCopyDefinitions_UnknownSource(t *testing.T) {
	devices := newMockDeviceStore()
	server := setupTestServer(devices, newMockDeveloperStore(), newMockPlatformStore())

	body := map[string]any{
		"source_ids":         []string{"nope"},
		"target_product_ids": []string{"prod-1"},
	}
	data, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/v1/data-definitions/copy", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Developer-Id", "dev-1")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404\nbody: %s", w.Code, w.Body.String())
	}
	if len(devices.defs) != 0 {
		t.Errorf("store: %d definitions created on failed copy", len(devices.defs))
	}
}

// --- Health ---

func TestHealthz(t *testing.T) {
	server := setupTestServer(newMockDeviceStore(), newMockDeveloperStore(), newMockPlatformStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", w.Code)
	}
}
