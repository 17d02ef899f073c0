package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/SheetImport/internal/config"
	"github.com/JonMunkholm/SheetImport/internal/core"
	"github.com/JonMunkholm/SheetImport/internal/history"
)

const testContainer = "web-roster"

type player struct {
	ID   string
	Name string
}

type roster struct {
	Players []player
}

var rosterContent = &roster{}

var playerType = core.NewRecordType[player]("Player",
	core.StringField("id", func(p *player, v string) { p.ID = v }),
	core.StringField("name", func(p *player, v string) { p.Name = v }),
)

func init() {
	core.Register(core.ContainerDefinition{
		Info:    core.ContainerInfo{Key: testContainer, Group: "Web", Label: "Web roster", DocumentID: "doc-roster"},
		Content: rosterContent,
		Targets: []core.Target{
			core.ListTarget("Players", "Players", playerType, &rosterContent.Players),
		},
	})
}

// mapFetcher serves pages by name.
type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, src core.PageSource) (core.Page, error) {
	text, ok := m[src.Page]
	if !ok {
		return core.Page{}, &core.FetchError{URL: src.URL("https://sheets.test/d"), StatusCode: http.StatusNotFound}
	}
	return core.Page{Text: text, Bytes: int64(len(text))}, nil
}

// blockingFetcher holds every fetch until release is closed.
type blockingFetcher struct {
	pages   mapFetcher
	release chan struct{}
}

func (b blockingFetcher) Fetch(ctx context.Context, src core.PageSource) (core.Page, error) {
	<-b.release
	return b.pages.Fetch(ctx, src)
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{RequestTimeout: 5 * time.Second},
		Output:  config.OutputConfig{BaseDir: ".", Format: "json"},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, pages mapFetcher) *Server {
	t.Helper()
	svc := core.NewService(pages, history.NewMemoryStore(), core.ServiceConfig{MaxConcurrent: 2})
	srv := NewServer(svc, cfg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func rosterPages() mapFetcher {
	return mapFetcher{"Players": "id,name\np1,Ada\n,skipped\np2,Grace\n"}
}

func do(t *testing.T, srv *Server, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

// startAndWait starts an import of every page and waits for its result.
func startAndWait(t *testing.T, srv *Server) core.RunResult {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/import/"+testContainer, `{"all":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var started map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started["runId"])

	rec = do(t, srv, http.MethodGet, "/api/import/"+started["runId"]+"/result?wait=true", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res core.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, testConfig(), rosterPages())

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"runs":[]`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestHealth_ListsRuns(t *testing.T) {
	srv := newTestServer(t, testConfig(), rosterPages())
	res := startAndWait(t, srv)

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []core.RunProgress `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, res.RunID, body.Runs[0].RunID)
	assert.Equal(t, core.StateCompleted, body.Runs[0].State)
}

func TestSecurityHeaders_CSP(t *testing.T) {
	cfg := testConfig()
	cfg.Security.EnableCSP = true
	srv := newTestServer(t, cfg, rosterPages())

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
}

func TestListContainers(t *testing.T) {
	srv := newTestServer(t, testConfig(), rosterPages())

	rec := do(t, srv, http.MethodGet, "/api/containers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []ContainerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	var found *ContainerResponse
	for i := range got {
		if got[i].Key == testContainer {
			found = &got[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "Web roster", found.Label)
	require.Len(t, found.Pages, 1)
	assert.Equal(t, "Players", found.Pages[0].Page)
	assert.Equal(t, "list", found.Pages[0].Kind)
	assert.Equal(t, []string{"id", "name"}, found.Pages[0].Fields)
}

func TestGetContainer_NotFound(t *testing.T) {
	srv := newTestServer(t, testConfig(), rosterPages())

	rec := do(t, srv, http.MethodGet, "/api/containers/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SET006", body.Code)
}

func TestImport_EndToEnd(t *testing.T) {
	srv := newTestServer(t, testConfig(), rosterPages())

	res := startAndWait(t, srv)
	assert.Equal(t, core.StateCompleted, res.State)
	assert.Equal(t, "doc-roster", res.DocumentID)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, 2, res.Pages[0].Records)
	assert.Equal(t, 1, res.Pages[0].Skipped)
	assert.Equal(t, []player{{"p1", "Ada"}, {"p2", "Grace"}}, rosterContent.Players)
}

func TestImport_SelectionErrors(t *testing.T) {
	srv := newTestServer(t, testConfig(), rosterPages())

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"nothing selected", "/api/import/" + testContainer, `{}`, http.StatusBadRequest, "SET001"},
		{"unknown page", "/api/import/" + testContainer, `{"pages":["Coaches"]}`, http.StatusBadRequest, "SET005"},
		{"unknown container", "/api/import/nope", `{"all":true}`, http.StatusNotFound, "SET006"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestImport_BadBody(t *testing.T) {
	srv := newTestServer(t, testConfig(), rosterPages())

	rec := do(t, srv, http.MethodPost, "/api/import/"+testContainer, `{"every":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestImport_FailedRun(t *testing.T) {
	srv := newTestServer(t, testConfig(), mapFetcher{})

	res := startAndWait(t, srv)
	assert.Equal(t, core.StateFailed, res.State)
	assert.Contains(t, res.Error, "HTTP 404")
}

func TestImportProgress_Stream(t *testing.T) {
	srv := newTestServer(t, testConfig(), rosterPages())

	rec := do(t, srv, http.MethodPost, "/api/import/"+testContainer, `{"pages":["Players"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	rec = do(t, srv, http.MethodGet, "/api/import/"+started["runId"]+"/progress", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: progress")
	assert.Contains(t, body, "id: 100")
	assert.True(t, strings.HasSuffix(body, "\n\n"))
	require.Contains(t, body, "event: complete")
	assert.Contains(t, body[strings.Index(body, "event: complete"):], `"state":"completed"`)
}

func TestImportRun_NotFound(t *testing.T) {
	srv := newTestServer(t, testConfig(), rosterPages())

	for _, path := range []string{"/api/import/missing/result", "/api/import/missing/progress"} {
		rec := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := do(t, srv, http.MethodPost, "/api/import/missing/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RUN003", body.Code)
}

func TestSerialize(t *testing.T) {
	cfg := testConfig()
	cfg.Output.BaseDir = t.TempDir()
	dir := filepath.Join(cfg.Output.BaseDir, "exports")
	require.NoError(t, os.Mkdir(dir, 0o755))

	srv := newTestServer(t, cfg, rosterPages())
	startAndWait(t, srv)

	rec := do(t, srv, http.MethodPost, "/api/serialize/"+testContainer,
		`{"path":"`+filepath.ToSlash(dir)+`","fileName":"roster"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SerializeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "json", resp.Format)
	assert.Equal(t, filepath.Join(dir, "roster.json"), resp.Path)

	data, err := os.ReadFile(resp.Path)
	require.NoError(t, err)
	assert.Equal(t, resp.Bytes, int64(len(data)))
	assert.Contains(t, string(data), `"Grace"`)
}

func TestSerialize_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Output.BaseDir = t.TempDir()
	dir := cfg.Output.BaseDir
	srv := newTestServer(t, cfg, rosterPages())

	rec := do(t, srv, http.MethodPost, "/api/serialize/"+testContainer,
		`{"path":"`+filepath.ToSlash(dir)+`","format":"yaml"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "OUT002")

	rec = do(t, srv, http.MethodPost, "/api/serialize/"+testContainer,
		`{"path":"`+filepath.ToSlash(filepath.Join(dir, "absent"))+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "OUT001")
}

func TestSerialize_StaysInOutputDir(t *testing.T) {
	cfg := testConfig()
	cfg.Output.BaseDir = t.TempDir()
	outside := t.TempDir()
	srv := newTestServer(t, cfg, rosterPages())
	startAndWait(t, srv)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"absolute path elsewhere", `{"path":"` + filepath.ToSlash(outside) + `"}`, "OUT004"},
		{"dot-dot path", `{"path":"../.."}`, "OUT004"},
		{"file name with parent", `{"path":"` + filepath.ToSlash(cfg.Output.BaseDir) + `","fileName":"../escaped"}`, "OUT003"},
		{"file name with directory", `{"path":"` + filepath.ToSlash(cfg.Output.BaseDir) + `","fileName":"sub/roster"}`, "OUT003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/serialize/"+testContainer, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}

	entries, err := os.ReadDir(outside)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = os.Stat(filepath.Join(filepath.Dir(cfg.Output.BaseDir), "escaped.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestSerialize_BusyContainer(t *testing.T) {
	cfg := testConfig()
	cfg.Output.BaseDir = t.TempDir()
	block := make(chan struct{})
	svc := core.NewService(blockingFetcher{pages: rosterPages(), release: block}, history.NewMemoryStore(), core.ServiceConfig{MaxConcurrent: 2})
	srv := NewServer(svc, cfg)
	t.Cleanup(func() {
		close(block)
		_ = srv.Shutdown(context.Background())
	})

	rec := do(t, srv, http.MethodPost, "/api/import/"+testContainer, `{"all":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/serialize/"+testContainer,
		`{"path":"`+filepath.ToSlash(cfg.Output.BaseDir)+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestHistory(t *testing.T) {
	srv := newTestServer(t, testConfig(), rosterPages())
	res := startAndWait(t, srv)

	rec := do(t, srv, http.MethodGet, "/api/history/"+testContainer+"?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []core.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, []string{"Players"}, runs[0].Pages)
	assert.Equal(t, 2, runs[0].Records)
	assert.Equal(t, "192.0.2.1", runs[0].IPAddress)

	rec = do(t, srv, http.MethodGet, "/api/history/"+testContainer+"?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboard(t *testing.T) {
	srv := newTestServer(t, testConfig(), rosterPages())
	startAndWait(t, srv)

	rec := do(t, srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "Web roster")
	assert.Contains(t, body, "Players: list of Player from &#39;Players&#39;")
	assert.Contains(t, body, "completed, 2 records")
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	srv := newTestServer(t, cfg, rosterPages())

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/containers", "").Code)
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodGet, "/api/containers", "", "X-API-Key", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/containers", "", "X-API-Key", "secret").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/containers", "", "Authorization", "Bearer secret").Code)

	// Health checks stay open
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "").Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	srv := newTestServer(t, cfg, rosterPages())

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "").Code)

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE001")
}

func TestRespondError_HTMX(t *testing.T) {
	srv := newTestServer(t, testConfig(), rosterPages())

	rec := do(t, srv, http.MethodGet, "/api/containers/nope", "", "HX-Request", "true")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "SET006")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrContainerNotFound, http.StatusNotFound},
		{core.ErrRunInProgress, http.StatusConflict},
		{core.ErrTooManyRuns, http.StatusServiceUnavailable},
		{core.ErrMissingDocumentID, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{os.ErrPermission, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
