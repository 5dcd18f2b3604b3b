package mcpbridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultbridge/internal/config"
	"github.com/vaultbridge/internal/ingest"
	"github.com/vaultbridge/internal/vaultbackend"
)

type fakeGraphClient struct {
	acceptsGroup bool
	submitted    []ingest.EpisodeSubmission
	err          error
}

func (f *fakeGraphClient) AcceptsGroupID() bool { return f.acceptsGroup }

func (f *fakeGraphClient) SubmitEpisode(_ context.Context, sub ingest.EpisodeSubmission) (string, ingest.EpisodeMetrics, error) {
	if f.err != nil {
		return "", ingest.EpisodeMetrics{}, f.err
	}
	f.submitted = append(f.submitted, sub)
	return "episode-uuid-1", ingest.EpisodeMetrics{EntitiesCount: 1}, nil
}

type fakeQuerier struct {
	nodes []NodeResult
}

func (f *fakeQuerier) SearchNodes(_ context.Context, _ string, _ NodeSearchOptions) ([]NodeResult, error) {
	return f.nodes, nil
}
func (f *fakeQuerier) SearchFacts(_ context.Context, _ string, _ FactSearchOptions) ([]FactResult, error) {
	return nil, nil
}
func (f *fakeQuerier) GetEpisodes(_ context.Context, _ string, _ int) ([]EpisodeResult, error) {
	return nil, nil
}
func (f *fakeQuerier) DeleteEpisode(_ context.Context, _ string) error     { return nil }
func (f *fakeQuerier) DeleteEntityEdge(_ context.Context, _ string) error  { return nil }
func (f *fakeQuerier) GetEntityEdge(_ context.Context, _, _ string) ([]FactResult, error) {
	return nil, nil
}
func (f *fakeQuerier) ClearGraph(_ context.Context) error { return nil }

type fakeBackend struct {
	lastPath string
}

func (f *fakeBackend) SearchNotes(_ context.Context, _, _, _ string, _ int, _ bool, _ string) vaultbackend.Result {
	return vaultbackend.Result{Success: true}
}
func (f *fakeBackend) ReadNote(_ context.Context, _, path string, _ bool) vaultbackend.Result {
	f.lastPath = path
	return vaultbackend.Result{Success: true, Payload: "body"}
}
func (f *fakeBackend) CreateNote(_ context.Context, _, _, _ string) vaultbackend.Result {
	return vaultbackend.Result{Success: true}
}
func (f *fakeBackend) UpdateNote(_ context.Context, _ string, _ vaultbackend.UpdateNoteParams) vaultbackend.Result {
	return vaultbackend.Result{Success: true}
}
func (f *fakeBackend) ListVaults(_ context.Context) vaultbackend.Result {
	return vaultbackend.Result{Success: true, Payload: []string{"vault1"}}
}
func (f *fakeBackend) ExploreFolders(_ context.Context, _, _, _, _ string, _ int) vaultbackend.Result {
	return vaultbackend.Result{Success: true}
}
func (f *fakeBackend) DiscoverTemplates(_ context.Context, _, _ string) vaultbackend.Result {
	return vaultbackend.Result{Success: true, Payload: map[string]any{}}
}
func (f *fakeBackend) CreateNoteWithTemplate(_ context.Context, _ string, _ vaultbackend.CreateWithTemplateParams) vaultbackend.Result {
	return vaultbackend.Result{Success: true}
}
func (f *fakeBackend) ManageNotes(_ context.Context, _, _, _, _ string) vaultbackend.Result {
	return vaultbackend.Result{Success: true}
}
func (f *fakeBackend) ManageFolders(_ context.Context, _, _, _, _ string) vaultbackend.Result {
	return vaultbackend.Result{Success: true}
}

func testConfig() *config.Config {
	return &config.Config{
		DefaultNamespace:    "obsidian-vault",
		AvailableNamespaces: []string{"zz-namespace", "aa-namespace"},
		FolderNamespaceMappings: []config.FolderMapping{
			{FolderPath: "Work", GroupID: "work-group"},
		},
	}
}

func TestHandleRequestInitializeAndListTools(t *testing.T) {
	ready := NewReadiness()
	ready.SignalReady()
	graph := &fakeGraphClient{acceptsGroup: true}
	srv := BuildServer(ServerConfig{}, ServerDeps{
		Config: testConfig(), Graph: graph, Querier: &fakeQuerier{}, Backend: &fakeBackend{}, Ready: ready,
		Status: stubStatus{},
	})

	resp := srv.HandleRequest(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "initialize"})
	require.Nil(t, resp.Error)

	resp = srv.HandleRequest(context.Background(), Request{JSONRPC: "2.0", ID: 2, Method: "tools/list"})
	require.Nil(t, resp.Error)
	list, ok := resp.Result.(listToolsResponse)
	require.True(t, ok)
	assert.Len(t, list.Tools, 19)
}

type stubStatus struct{}

func (stubStatus) GraphitiStatus() string { return "ok" }
func (stubStatus) ObsidianStatus() string { return "ok" }
func (stubStatus) DatabaseKind() string   { return "falkordb" }

func TestHandleRequestReadStatusResource(t *testing.T) {
	ready := NewReadiness()
	ready.SignalReady()
	srv := BuildServer(ServerConfig{}, ServerDeps{
		Config: testConfig(), Graph: &fakeGraphClient{}, Querier: &fakeQuerier{}, Backend: &fakeBackend{}, Ready: ready,
		Status: stubStatus{},
	})

	resp := srv.HandleRequest(context.Background(), Request{
		JSONRPC: "2.0", ID: 1, Method: "resources/read",
		Params: map[string]any{"uri": "mcp://status"},
	})
	require.Nil(t, resp.Error)
}

func TestToolCallAddMemorySubmitsEpisode(t *testing.T) {
	ready := NewReadiness()
	ready.SignalReady()
	graph := &fakeGraphClient{acceptsGroup: true}
	srv := BuildServer(ServerConfig{}, ServerDeps{
		Config: testConfig(), Graph: graph, Querier: &fakeQuerier{}, Backend: &fakeBackend{}, Ready: ready,
		Status: stubStatus{},
	})

	resp := srv.HandleRequest(context.Background(), Request{
		JSONRPC: "2.0", ID: 1, Method: "tools/call",
		Params: map[string]any{"name": "add_memory", "arguments": map[string]any{"content": "hello world"}},
	})
	require.Nil(t, resp.Error)
	require.Len(t, graph.submitted, 1)
	assert.Equal(t, "hello world", graph.submitted[0].Body)
}

func TestToolCallUnknownToolReturnsMethodNotFound(t *testing.T) {
	ready := NewReadiness()
	ready.SignalReady()
	srv := BuildServer(ServerConfig{}, ServerDeps{
		Config: testConfig(), Graph: &fakeGraphClient{}, Querier: &fakeQuerier{}, Backend: &fakeBackend{}, Ready: ready,
		Status: stubStatus{},
	})

	resp := srv.HandleRequest(context.Background(), Request{
		JSONRPC: "2.0", ID: 1, Method: "tools/call",
		Params: map[string]any{"name": "nonexistent_tool", "arguments": map[string]any{}},
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestToolCallRespectsCamelCaseAliasAndOperationRename(t *testing.T) {
	ready := NewReadiness()
	ready.SignalReady()
	backend := &fakeBackend{}
	srv := BuildServer(ServerConfig{}, ServerDeps{
		Config: testConfig(), Graph: &fakeGraphClient{}, Querier: &fakeQuerier{}, Backend: backend, Ready: ready,
		Status: stubStatus{},
	})

	resp := srv.HandleRequest(context.Background(), Request{
		JSONRPC: "2.0", ID: 1, Method: "tools/call",
		Params: map[string]any{"name": "read_obsidian_note", "arguments": map[string]any{"path": "n.md", "vaultId": "v1"}},
	})
	require.Nil(t, resp.Error)
	assert.Equal(t, "n.md", backend.lastPath)

	normalized := normalizeArgs("update_obsidian_note", map[string]any{"operation": "append"})
	assert.Equal(t, "append_only", normalized["editing_mode"])
}

func TestGatedToolTimesOutWhenNeverSignalled(t *testing.T) {
	ready := NewReadiness()
	srv := BuildServer(ServerConfig{}, ServerDeps{
		Config: testConfig(), Graph: &fakeGraphClient{}, Querier: &fakeQuerier{}, Backend: &fakeBackend{}, Ready: ready,
		Status: stubStatus{},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	resp := srv.HandleRequest(ctx, Request{
		JSONRPC: "2.0", ID: 1, Method: "tools/call",
		Params: map[string]any{"name": "add_memory", "arguments": map[string]any{"content": "x"}},
	})
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(callToolResponse)
	require.True(t, ok)
	require.Len(t, result.Content, 1)
	assert.Contains(t, result.Content[0]["text"], "initialization in progress")
}

func TestListGroupIdsDedupesAndSorts(t *testing.T) {
	ready := NewReadiness()
	ready.SignalReady()
	srv := BuildServer(ServerConfig{}, ServerDeps{
		Config: testConfig(), Graph: &fakeGraphClient{}, Querier: &fakeQuerier{}, Backend: &fakeBackend{}, Ready: ready,
		Status: stubStatus{},
	})

	resp := srv.HandleRequest(context.Background(), Request{
		JSONRPC: "2.0", ID: 1, Method: "tools/call",
		Params: map[string]any{"name": "list_group_ids", "arguments": map[string]any{}},
	})
	require.Nil(t, resp.Error)
	result := resp.Result.(callToolResponse)
	text := result.Content[0]["text"].(string)
	assert.Contains(t, text, "aa-namespace")
	assert.Contains(t, text, "work-group")
}
