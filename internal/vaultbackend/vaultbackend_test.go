package vaultbackend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultbridge/internal/hub"
)

type fakeRequester struct {
	reached bool
	env     hub.Envelope
	lastOp  string
	lastVID string
}

func (f *fakeRequester) RequestFileOperation(_ context.Context, vaultID, operation string, _ any, _ time.Duration) (hub.Envelope, bool) {
	f.lastVID = vaultID
	f.lastOp = operation
	return f.env, f.reached
}

func TestHubBackendResolvesVaultIDFallback(t *testing.T) {
	req := &fakeRequester{reached: true, env: hub.Envelope{Success: true}}
	b := &HubBackend{hub: req, defaultVault: func() string { return "fallback-vault" }}

	result := b.ReadNote(context.Background(), "", "note.md", false)
	assert.True(t, result.Success)
	assert.Equal(t, "fallback-vault", req.lastVID)
}

func TestHubBackendNoActiveVaultWhenNoFallback(t *testing.T) {
	req := &fakeRequester{reached: true}
	b := &HubBackend{hub: req, defaultVault: func() string { return "" }}

	result := b.ReadNote(context.Background(), "", "note.md", false)
	assert.False(t, result.Success)
	assert.Equal(t, ErrNoActiveVault, result.ErrorCode)
}

func TestHubBackendNotConnectedWhenHubCannotReach(t *testing.T) {
	req := &fakeRequester{reached: false}
	b := &HubBackend{hub: req, defaultVault: func() string { return "v1" }}

	result := b.SearchNotes(context.Background(), "", "query", "both", 10, true, "")
	assert.False(t, result.Success)
	assert.Equal(t, "VAULT_NOT_CONNECTED", result.ErrorCode)
}

func TestHubBackendUpdateNoteDispatchesCorrectOperationPerMode(t *testing.T) {
	cases := []struct {
		mode     string
		params   UpdateNoteParams
		wantOp   string
		wantsErr bool
	}{
		{mode: "full_file", params: UpdateNoteParams{EditingMode: "full_file", Content: "x"}, wantOp: "file:write"},
		{mode: "full_file missing content", params: UpdateNoteParams{EditingMode: "full_file"}, wantsErr: true},
		{mode: "frontmatter_only", params: UpdateNoteParams{EditingMode: "frontmatter_only", FrontmatterChanges: map[string]any{"k": "v"}}, wantOp: "file:frontmatter_edit"},
		{mode: "append_only", params: UpdateNoteParams{EditingMode: "append_only", AppendContent: "more"}, wantOp: "file:append"},
		{mode: "range_based", params: UpdateNoteParams{EditingMode: "range_based", ReplacementContent: "r"}, wantOp: "file:range_edit"},
		{mode: "editor_based", params: UpdateNoteParams{EditingMode: "editor_based", EditorPayload: map[string]any{"cursor": 3}}, wantOp: "file:editor_edit"},
		{mode: "unknown", params: UpdateNoteParams{EditingMode: "bogus"}, wantsErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.mode, func(t *testing.T) {
			req := &fakeRequester{reached: true, env: hub.Envelope{Success: true}}
			b := &HubBackend{hub: req, defaultVault: func() string { return "v1" }}

			result := b.UpdateNote(context.Background(), "v1", tc.params)
			if tc.wantsErr {
				assert.False(t, result.Success)
				assert.Equal(t, "INVALID_ARGUMENT", result.ErrorCode)
				return
			}
			require.True(t, result.Success)
			assert.Equal(t, tc.wantOp, req.lastOp)
		})
	}
}

func TestHubBackendManageNotesRejectsUnknownOperation(t *testing.T) {
	req := &fakeRequester{reached: true, env: hub.Envelope{Success: true}}
	b := &HubBackend{hub: req, defaultVault: func() string { return "v1" }}

	result := b.ManageNotes(context.Background(), "v1", "explode", "note.md", "")
	assert.False(t, result.Success)
	assert.Equal(t, "INVALID_ARGUMENT", result.ErrorCode)
}

func TestHubBackendManageFoldersDispatchesPerOperation(t *testing.T) {
	req := &fakeRequester{reached: true, env: hub.Envelope{Success: true}}
	b := &HubBackend{hub: req, defaultVault: func() string { return "v1" }}

	b.ManageFolders(context.Background(), "v1", "create", "Folder", "")
	assert.Equal(t, "folder:create", req.lastOp)

	b.ManageFolders(context.Background(), "v1", "rename", "Folder", "Folder2")
	assert.Equal(t, "folder:rename", req.lastOp)

	b.ManageFolders(context.Background(), "v1", "delete", "Folder2", "")
	assert.Equal(t, "folder:delete", req.lastOp)
}

func TestNewRemoteBackendDispatchesThroughRequester(t *testing.T) {
	req := &fakeRequester{reached: true, env: hub.Envelope{Success: true}}
	b := NewRemoteBackend(req, func() string { return "v1" })

	result := b.ReadNote(context.Background(), "", "note.md", false)
	assert.True(t, result.Success)
	assert.Equal(t, "v1", req.lastVID)
}

func TestCLIBackendMissingVaultReturnsNoActiveVault(t *testing.T) {
	b := NewCLIBackend("obsidian-cli", "", 2)
	result := b.ReadNote(context.Background(), "", "note.md", false)
	assert.False(t, result.Success)
	assert.Equal(t, ErrNoActiveVault, result.ErrorCode)
}

func TestCLIUpdateArgsValidatesPerMode(t *testing.T) {
	_, err := cliUpdateArgs(UpdateNoteParams{EditingMode: "append_only"})
	require.NotNil(t, err)
	assert.Equal(t, "INVALID_ARGUMENT", err.ErrorCode)

	args, err := cliUpdateArgs(UpdateNoteParams{EditingMode: "append_only", Path: "n.md", AppendContent: "hi"})
	require.Nil(t, err)
	assert.Contains(t, args, "update:append")
}

func TestCLIBackendIndexVaultEnablesBleveSearch(t *testing.T) {
	b := NewCLIBackend("obsidian-cli", "vault1", 1)
	require.NoError(t, b.IndexVault(map[string]string{
		"daily/today.md": "Meeting notes about the roadmap",
		"ideas/x.md":     "unrelated content",
	}))

	hits, ok := b.searchBleve("vault1", "roadmap", 10)
	require.True(t, ok)
	require.Len(t, hits, 1)
	assert.Equal(t, "daily/today.md", hits[0]["path"])
}
