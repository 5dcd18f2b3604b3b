// Package vaultbackend defines the narrow trait every vault tool
// dispatches through, and provides the two implementations the tool
// dispatcher never distinguishes between: a WebSocket-hub-backed one
// for the host role and a CLI-subprocess-backed one for headless use.
package vaultbackend

import "context"

// Result is the uniform envelope every Backend method returns.
type Result struct {
	Success   bool   `json:"success"`
	Payload   any    `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// ErrNoActiveVault marks the well-known failure when a caller supplies
// no vault_id and the backend has no notion of a default/active vault
// either.
const ErrNoActiveVault = "NO_ACTIVE_VAULT"

func noActiveVault() Result {
	return Result{Success: false, Error: "No vault specified and no active vault connected.", ErrorCode: ErrNoActiveVault}
}

// UpdateNoteParams carries every editing_mode's fields; only the
// subset relevant to the selected mode is read. editor_based is
// deliberately a pass-through: the source does not exhaustively
// enumerate its parameters, so its payload is forwarded unvalidated
// to the backend.
type UpdateNoteParams struct {
	Path                string
	EditingMode         string
	Content             string
	FrontmatterChanges  map[string]any
	AppendContent       string
	ReplacementContent  string
	RangeStartLine      int
	RangeStartChar      int
	RangeEndLine        int
	RangeEndChar        int
	EditorPayload       map[string]any
}

// CreateWithTemplateParams carries create_note_with_template's fields.
type CreateWithTemplateParams struct {
	RequestType  string
	FileName     string
	Content      string
	TargetFolder string
}

// Backend is the ten-method trait every vault tool dispatches
// through. The tool dispatcher never branches on which implementation
// is wired in.
type Backend interface {
	SearchNotes(ctx context.Context, vaultID, query, searchMode string, maxResults int, includeContext bool, path string) Result
	ReadNote(ctx context.Context, vaultID, path string, includeLineMap bool) Result
	CreateNote(ctx context.Context, vaultID, path, content string) Result
	UpdateNote(ctx context.Context, vaultID string, params UpdateNoteParams) Result
	ListVaults(ctx context.Context) Result
	ExploreFolders(ctx context.Context, vaultID, path, query, format string, maxDepth int) Result
	DiscoverTemplates(ctx context.Context, vaultID, requestType string) Result
	CreateNoteWithTemplate(ctx context.Context, vaultID string, params CreateWithTemplateParams) Result
	ManageNotes(ctx context.Context, vaultID, operation, path, newPath string) Result
	ManageFolders(ctx context.Context, vaultID, operation, folderPath, newFolderPath string) Result
}

// resolveVaultID applies the caller-supplied -> default/active ->
// NO_ACTIVE_VAULT fallback chain common to both implementations.
func resolveVaultID(supplied, fallback string) (string, bool) {
	if supplied != "" {
		return supplied, true
	}
	if fallback != "" {
		return fallback, true
	}
	return "", false
}
