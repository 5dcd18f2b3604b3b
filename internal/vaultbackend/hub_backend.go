package vaultbackend

import (
	"context"
	"time"

	"github.com/vaultbridge/internal/hub"
)

const (
	defaultOpTimeout  = 10 * time.Second
	exploreOpTimeout  = 30 * time.Second
)

// requester is the slice of *hub.Hub this package depends on, so tests
// can substitute a fake without standing up real WebSocket plumbing.
type requester interface {
	RequestFileOperation(ctx context.Context, vaultID, operation string, params any, timeout time.Duration) (hub.Envelope, bool)
}

// HubBackend implements Backend by forwarding every call to a
// connected editor session through the vault registry's
// request/response cycle.
type HubBackend struct {
	hub           requester
	defaultVault  func() string
}

// NewHubBackend wraps h. defaultVault, when non-nil, supplies the
// fallback vault id used when a caller omits one (typically the hub's
// own active-vault pointer).
func NewHubBackend(h *hub.Hub, defaultVault func() string) *HubBackend {
	return &HubBackend{hub: h, defaultVault: defaultVault}
}

// NewRemoteBackend wraps r, the loopback HTTP client a process uses
// when it lost process election to an already-running host. r
// satisfies requester the same way *hub.Hub does, so the dispatch
// logic below is shared unchanged between the host and RPC-client
// roles.
func NewRemoteBackend(r requester, defaultVault func() string) *HubBackend {
	return &HubBackend{hub: r, defaultVault: defaultVault}
}

func (b *HubBackend) resolve(vaultID string) (string, Result, bool) {
	fallback := ""
	if b.defaultVault != nil {
		fallback = b.defaultVault()
	}
	resolved, ok := resolveVaultID(vaultID, fallback)
	if !ok {
		return "", noActiveVault(), false
	}
	return resolved, Result{}, true
}

func (b *HubBackend) dispatch(ctx context.Context, vaultID, operation string, params map[string]any, timeout time.Duration) Result {
	resolved, errResult, ok := b.resolve(vaultID)
	if !ok {
		return errResult
	}
	if params == nil {
		params = map[string]any{}
	}
	params["vaultId"] = resolved

	env, reached := b.hub.RequestFileOperation(ctx, resolved, operation, params, timeout)
	if !reached {
		return Result{Success: false, Error: "No connected vault found: " + resolved, ErrorCode: "VAULT_NOT_CONNECTED"}
	}
	return Result{Success: env.Success, Payload: env.Payload, Error: env.Error}
}

func (b *HubBackend) SearchNotes(ctx context.Context, vaultID, query, searchMode string, maxResults int, includeContext bool, path string) Result {
	return b.dispatch(ctx, vaultID, "file:search", map[string]any{
		"query":          query,
		"searchMode":     searchMode,
		"maxResults":     maxResults,
		"includeContext": includeContext,
		"path":           path,
	}, defaultOpTimeout)
}

func (b *HubBackend) ReadNote(ctx context.Context, vaultID, path string, includeLineMap bool) Result {
	return b.dispatch(ctx, vaultID, "file:read", map[string]any{
		"path":           path,
		"includeLineMap": includeLineMap,
	}, defaultOpTimeout)
}

func (b *HubBackend) CreateNote(ctx context.Context, vaultID, path, content string) Result {
	return b.dispatch(ctx, vaultID, "file:create", map[string]any{
		"path":    path,
		"content": content,
	}, defaultOpTimeout)
}

func (b *HubBackend) UpdateNote(ctx context.Context, vaultID string, p UpdateNoteParams) Result {
	operation, params, errResult := updateNoteWireRequest(p)
	if errResult != nil {
		return *errResult
	}
	return b.dispatch(ctx, vaultID, operation, params, defaultOpTimeout)
}

func (b *HubBackend) ListVaults(ctx context.Context) Result {
	vaultID := ""
	if b.defaultVault != nil {
		vaultID = b.defaultVault()
	}
	return b.dispatch(ctx, vaultID, "vault:list", map[string]any{}, defaultOpTimeout)
}

func (b *HubBackend) ExploreFolders(ctx context.Context, vaultID, path, query, format string, maxDepth int) Result {
	return b.dispatch(ctx, vaultID, "folder:explore", map[string]any{
		"path":     path,
		"query":    query,
		"format":   format,
		"maxDepth": maxDepth,
	}, exploreOpTimeout)
}

func (b *HubBackend) DiscoverTemplates(ctx context.Context, vaultID, requestType string) Result {
	return b.dispatch(ctx, vaultID, "templater:check", map[string]any{
		"requestType": requestType,
	}, defaultOpTimeout)
}

func (b *HubBackend) CreateNoteWithTemplate(ctx context.Context, vaultID string, p CreateWithTemplateParams) Result {
	return b.dispatch(ctx, vaultID, "file:create_with_template", map[string]any{
		"requestType":  p.RequestType,
		"fileName":     p.FileName,
		"content":      p.Content,
		"targetFolder": p.TargetFolder,
	}, defaultOpTimeout)
}

func (b *HubBackend) ManageNotes(ctx context.Context, vaultID, operation, path, newPath string) Result {
	switch operation {
	case "delete":
		return b.dispatch(ctx, vaultID, "file:delete", map[string]any{"path": path}, defaultOpTimeout)
	case "rename":
		return b.dispatch(ctx, vaultID, "file:rename", map[string]any{"path": path, "newPath": newPath}, defaultOpTimeout)
	default:
		return Result{Success: false, Error: "invalid operation: " + operation, ErrorCode: "INVALID_ARGUMENT"}
	}
}

func (b *HubBackend) ManageFolders(ctx context.Context, vaultID, operation, folderPath, newFolderPath string) Result {
	switch operation {
	case "create":
		return b.dispatch(ctx, vaultID, "folder:create", map[string]any{"folderPath": folderPath}, defaultOpTimeout)
	case "rename":
		return b.dispatch(ctx, vaultID, "folder:rename", map[string]any{"folderPath": folderPath, "newFolderPath": newFolderPath}, defaultOpTimeout)
	case "delete":
		return b.dispatch(ctx, vaultID, "folder:delete", map[string]any{"folderPath": folderPath}, defaultOpTimeout)
	default:
		return Result{Success: false, Error: "invalid operation: " + operation, ErrorCode: "INVALID_ARGUMENT"}
	}
}

// updateNoteWireRequest validates p's fields against its editing_mode
// and builds the wire operation + payload, mirroring the per-mode
// parameter validation the CLI backend also performs.
func updateNoteWireRequest(p UpdateNoteParams) (string, map[string]any, *Result) {
	switch p.EditingMode {
	case "full_file":
		if p.Content == "" {
			return "", nil, missingFieldsResult("content", p.EditingMode)
		}
		return "file:write", map[string]any{"path": p.Path, "content": p.Content}, nil
	case "frontmatter_only":
		if p.FrontmatterChanges == nil {
			return "", nil, missingFieldsResult("frontmatter_changes", p.EditingMode)
		}
		return "file:frontmatter_edit", map[string]any{"path": p.Path, "frontmatterChanges": p.FrontmatterChanges}, nil
	case "append_only":
		if p.AppendContent == "" {
			return "", nil, missingFieldsResult("append_content", p.EditingMode)
		}
		return "file:append", map[string]any{"path": p.Path, "appendContent": p.AppendContent}, nil
	case "range_based":
		if p.ReplacementContent == "" {
			return "", nil, missingFieldsResult("replacement_content, range_start_line, range_start_char", p.EditingMode)
		}
		params := map[string]any{
			"path":               p.Path,
			"replacementContent": p.ReplacementContent,
			"rangeStartLine":     p.RangeStartLine,
			"rangeStartChar":     p.RangeStartChar,
		}
		if p.RangeEndLine != 0 {
			params["rangeEndLine"] = p.RangeEndLine
		}
		if p.RangeEndChar != 0 {
			params["rangeEndChar"] = p.RangeEndChar
		}
		return "file:range_edit", params, nil
	case "editor_based":
		params := map[string]any{"path": p.Path}
		for k, v := range p.EditorPayload {
			params[k] = v
		}
		return "file:editor_edit", params, nil
	default:
		r := Result{Success: false, Error: "Invalid editing_mode: " + p.EditingMode, ErrorCode: "INVALID_ARGUMENT"}
		return "", nil, &r
	}
}

func missingFieldsResult(fields, mode string) *Result {
	r := Result{Success: false, Error: fields + " required for " + mode + " mode", ErrorCode: "INVALID_ARGUMENT"}
	return &r
}
