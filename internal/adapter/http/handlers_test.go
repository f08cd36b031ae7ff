package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	adocshttp "github.com/adocshq/adocs/internal/adapter/http"
	"github.com/adocshq/adocs/internal/config"
	"github.com/adocshq/adocs/internal/domain"
	"github.com/adocshq/adocs/internal/domain/docs"
	"github.com/adocshq/adocs/internal/knowledge"
	"github.com/adocshq/adocs/internal/port/llm"
	"github.com/adocshq/adocs/internal/service"
)

const validStructureJSON = `{"sections":[{"title":"Overview","children":[]},{"title":"API Reference","children":[]}]}`

// mockCompleter returns a fixed payload for every model.
type mockCompleter struct {
	response string
	err      error
}

func (m *mockCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

type mockEmbedder struct{}

func (mockEmbedder) Embed(_ context.Context, _, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

// mockDB implements database.Store in memory.
type mockDB struct {
	generated map[string]docs.Structure
	accepted  map[string]docs.Structure
}

func newMockDB() *mockDB {
	return &mockDB{
		generated: make(map[string]docs.Structure),
		accepted:  make(map[string]docs.Structure),
	}
}

func (m *mockDB) SaveStructure(_ context.Context, repoID string, s docs.Structure, _ string) error {
	m.generated[repoID] = s
	return nil
}

func (m *mockDB) GetStructure(_ context.Context, repoID string) (*docs.Structure, error) {
	s, ok := m.generated[repoID]
	if !ok {
		return nil, fmt.Errorf("get structure %s: %w", repoID, domain.ErrNotFound)
	}
	return &s, nil
}

func (m *mockDB) UpsertAcceptedStructure(_ context.Context, repoID string, s docs.Structure) error {
	m.accepted[repoID] = s
	return nil
}

func (m *mockDB) ListAcceptedStructures(_ context.Context) (map[string]docs.Structure, error) {
	return m.accepted, nil
}

// mockContent implements contentstore.Store in memory.
type mockContent struct {
	data map[string][]byte
}

func (m *mockContent) Get(_ context.Context, path string) ([]byte, error) {
	data, ok := m.data[path]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", path, domain.ErrNotFound)
	}
	return data, nil
}

func (m *mockContent) Put(_ context.Context, path string, content []byte) error {
	m.data[path] = content
	return nil
}

type testEnv struct {
	router chi.Router
	db     *mockDB
}

func newTestEnv(t *testing.T, completer *mockCompleter, repoConfigYAML string) *testEnv {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfgPath := filepath.Join(t.TempDir(), "repository_config.yaml")
	if repoConfigYAML != "" {
		if err := os.WriteFile(cfgPath, []byte(repoConfigYAML), 0o600); err != nil {
			t.Fatalf("write repo config: %v", err)
		}
	}
	configs := service.NewRepoConfigStore(cfgPath, log)

	base := knowledge.NewBase([]knowledge.Entry{
		{RepoID: "org/example", Embedding: []float32{1, 0, 0}},
	})

	cfg := config.Defaults()
	cfg.Generator.Models = []string{"model-a"}
	cfg.Knowledge.TopK = 1
	cfg.Generator.ContentDelay = 0

	db := newMockDB()
	content := &mockContent{data: make(map[string][]byte)}

	h := &adocshttp.Handlers{
		Generator: service.NewGenerator(base, mockEmbedder{}, completer, db, cfg, log, nil),
		Injector:  service.NewInjector(configs, content, nil, log, nil),
		Content:   service.NewContentGenerator(completer, content, cfg.Generator, log),
		Configs:   configs,
		DB:        db,
	}

	r := chi.NewRouter()
	adocshttp.MountRoutes(r, h)
	return &testEnv{router: r, db: db}
}

func doRequest(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: validStructureJSON}, "")

	rec := doRequest(t, env.router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestGenerateStructure(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: validStructureJSON}, "")

	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/structures", map[string]string{
		"repo_id":  "org/new",
		"overview": "A service",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result service.GenerationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.RepoID != "org/new" || result.Model != "model-a" {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.Structure.Sections) != 2 {
		t.Errorf("sections = %d", len(result.Structure.Sections))
	}

	if _, ok := env.db.generated["org/new"]; !ok {
		t.Error("structure not persisted")
	}
}

func TestGenerateStructureNoIdentifier(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: validStructureJSON}, "")

	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/structures", map[string]string{
		"overview": "anonymous",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGenerateStructureAllModelsFail(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{err: fmt.Errorf("overloaded")}, "")

	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/structures", map[string]string{
		"repo_id": "org/new",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetStructure(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: validStructureJSON}, "")
	env.db.generated["org/new"] = docs.Structure{Sections: []docs.Section{
		{Title: "Overview", Children: []docs.Section{}},
	}}

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/structures?repo=org%2Fnew", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"Overview"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestGetStructureMissing(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: validStructureJSON}, "")

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/structures?repo=org%2Fabsent", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetStructureRequiresRepo(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: validStructureJSON}, "")

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/structures", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

const docsConfigYAML = `
repositories:
  "org/new":
    custom_sections:
      - name: "Team Guidelines"
        storage_path: "docs/team_guidelines.md"
`

func TestGetDocsWithInjection(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: validStructureJSON}, docsConfigYAML)
	env.db.generated["org/new"] = docs.Structure{Sections: []docs.Section{
		{Title: "Overview", Children: []docs.Section{}},
	}}

	// Inject the custom content through the store used by the injector.
	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/docs?repo=org%2Fnew", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var view service.DocsView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	// Content file is absent, fallback drops the custom section.
	if len(view.Sections) != 1 || view.Sections[0].Title != "Overview" {
		t.Errorf("unexpected sections: %+v", view.Sections)
	}
	if len(view.Navigation) != 1 {
		t.Errorf("navigation = %+v", view.Navigation)
	}
}

func TestGetSectionGenerated(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: validStructureJSON}, "")
	env.db.generated["org/new"] = docs.Structure{Sections: []docs.Section{
		{Title: "Overview", Children: []docs.Section{}},
	}}

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/docs/section?repo=org%2Fnew&name=overview", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"Overview"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestGetSectionMissing(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: validStructureJSON}, "")
	env.db.generated["org/new"] = docs.Structure{Sections: []docs.Section{
		{Title: "Overview", Children: []docs.Section{}},
	}}

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/docs/section?repo=org%2Fnew&name=absent", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGenerateContent(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: "# Content"}, "")
	env.db.generated["org/new"] = docs.Structure{Sections: []docs.Section{
		{Title: "Overview", Children: []docs.Section{}},
	}}

	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/content", map[string]string{
		"repo_id": "org/new",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var job service.ContentJob
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Generated != 1 || job.Failed != 0 {
		t.Errorf("job = %+v", job)
	}
}

func TestGenerateContentWithoutStructure(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: "# Content"}, "")

	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/content", map[string]string{
		"repo_id": "org/absent",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAcceptStructure(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: validStructureJSON}, "")

	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/structures/accepted", map[string]any{
		"repo_id": "org/approved",
		"structure": map[string]any{
			"sections": []map[string]any{
				{"title": "Overview", "children": []any{}},
			},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if _, ok := env.db.accepted["org/approved"]; !ok {
		t.Error("accepted structure not stored")
	}
}

func TestAcceptStructureRejectsInvalid(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: validStructureJSON}, "")

	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/structures/accepted", map[string]any{
		"repo_id": "org/approved",
		"structure": map[string]any{
			"sections": []any{"not an object"},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestKnowledgeStats(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: validStructureJSON}, "")

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/knowledge/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total_entries":1`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestValidateConfig(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: validStructureJSON}, `
repositories:
  "org/bad":
    custom_sections:
      - name: ""
        storage_path: ""
`)

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/config/validate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result struct {
		Valid    bool     `json:"valid"`
		Problems []string `json:"problems"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Valid || len(result.Problems) != 2 {
		t.Errorf("result = %+v", result)
	}
}

func TestReloadConfig(t *testing.T) {
	env := newTestEnv(t, &mockCompleter{response: validStructureJSON}, "")

	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/config/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
