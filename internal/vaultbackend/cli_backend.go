package vaultbackend

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/vaultbridge/internal/jsonx"
)

// CLIBackend implements Backend by invoking a configured editor CLI
// binary once per call. A buffered-channel semaphore caps how many
// subprocesses run at once; each call runs its subprocess on the
// caller's goroutine and blocks until it exits (no separate worker
// pool takes the call off the caller's hands). A local
// bleve index gives "content" search mode a fast illustrative path
// when no live editor connection is available to answer it directly.
type CLIBackend struct {
	binary       string
	defaultVault string
	sem          chan struct{}

	mu    sync.Mutex
	index bleve.Index // lazily built per vault root, illustrative only
}

// NewCLIBackend builds a CLIBackend invoking binary, capped to
// maxConcurrent simultaneous subprocesses.
func NewCLIBackend(binary, defaultVault string, maxConcurrent int) *CLIBackend {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &CLIBackend{
		binary:       binary,
		defaultVault: defaultVault,
		sem:          make(chan struct{}, maxConcurrent),
	}
}

func (b *CLIBackend) acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *CLIBackend) release() { <-b.sem }

// run executes `<binary> vault=<vault> <args...>` and parses the
// trailing JSON object the CLI prints on stdout.
func (b *CLIBackend) run(ctx context.Context, vault string, args ...string) (map[string]any, error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.release()

	cmdArgs := append([]string{"vault=" + vault}, args...)
	cmd := exec.CommandContext(ctx, b.binary, cmdArgs...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, err
	}

	out := strings.TrimSpace(stdout.String())
	var payload map[string]any
	if out == "" {
		return map[string]any{}, nil
	}
	if err := jsonx.Unmarshal([]byte(out), &payload); err != nil {
		return map[string]any{"raw": out}, nil
	}
	return payload, nil
}

func (b *CLIBackend) resolve(vaultID string) (string, Result, bool) {
	resolved, ok := resolveVaultID(vaultID, b.defaultVault)
	if !ok {
		return "", noActiveVault(), false
	}
	return resolved, Result{}, true
}

func toEnvelope(payload map[string]any, err error) Result {
	if err != nil {
		return Result{Success: false, Error: err.Error(), ErrorCode: "CLI_ERROR"}
	}
	success, _ := payload["success"].(bool)
	if !success {
		errMsg, _ := payload["error"].(string)
		code, _ := payload["error_code"].(string)
		if code == "" {
			code = "CLI_ERROR"
		}
		return Result{Success: false, Error: errMsg, ErrorCode: code}
	}
	return Result{Success: true, Payload: payload["payload"]}
}

func (b *CLIBackend) SearchNotes(ctx context.Context, vaultID, query, searchMode string, maxResults int, includeContext bool, path string) Result {
	vault, errResult, ok := b.resolve(vaultID)
	if !ok {
		return errResult
	}
	if searchMode == "content" {
		if hits, ok := b.searchBleve(vault, query, maxResults); ok {
			return Result{Success: true, Payload: hits}
		}
	}
	args := []string{"search:context", "query=" + query, "limit=" + strconv.Itoa(maxResults), "format=json"}
	if path != "" {
		args = append(args, "path="+path)
	}
	payload, err := b.run(ctx, vault, args...)
	return toEnvelope(payload, err)
}

func (b *CLIBackend) ReadNote(ctx context.Context, vaultID, path string, includeLineMap bool) Result {
	vault, errResult, ok := b.resolve(vaultID)
	if !ok {
		return errResult
	}
	args := []string{"read:note", "path=" + path}
	if includeLineMap {
		args = append(args, "lineMap=true")
	}
	payload, err := b.run(ctx, vault, args...)
	return toEnvelope(payload, err)
}

func (b *CLIBackend) CreateNote(ctx context.Context, vaultID, path, content string) Result {
	vault, errResult, ok := b.resolve(vaultID)
	if !ok {
		return errResult
	}
	payload, err := b.run(ctx, vault, "create:note", "path="+path, "content="+content)
	return toEnvelope(payload, err)
}

func (b *CLIBackend) UpdateNote(ctx context.Context, vaultID string, p UpdateNoteParams) Result {
	vault, errResult, ok := b.resolve(vaultID)
	if !ok {
		return errResult
	}
	args, validationErr := cliUpdateArgs(p)
	if validationErr != nil {
		return *validationErr
	}
	payload, err := b.run(ctx, vault, args...)
	return toEnvelope(payload, err)
}

func (b *CLIBackend) ListVaults(ctx context.Context) Result {
	if err := b.acquire(ctx); err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	defer b.release()

	cmd := exec.CommandContext(ctx, b.binary, "vaults")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return Result{Success: false, Error: err.Error(), ErrorCode: "CLI_ERROR"}
	}
	return Result{Success: true, Payload: strings.Split(strings.TrimSpace(stdout.String()), "\n")}
}

func (b *CLIBackend) ExploreFolders(ctx context.Context, vaultID, path, query, format string, maxDepth int) Result {
	vault, errResult, ok := b.resolve(vaultID)
	if !ok {
		return errResult
	}
	args := []string{"folder:explore", "format=" + format, "maxDepth=" + strconv.Itoa(maxDepth)}
	if path != "" {
		args = append(args, "path="+path)
	}
	if query != "" {
		args = append(args, "query="+query)
	}
	payload, err := b.run(ctx, vault, args...)
	return toEnvelope(payload, err)
}

func (b *CLIBackend) DiscoverTemplates(ctx context.Context, vaultID, requestType string) Result {
	vault, errResult, ok := b.resolve(vaultID)
	if !ok {
		return errResult
	}
	payload, err := b.run(ctx, vault, "templater:check", "requestType="+requestType)
	return toEnvelope(payload, err)
}

func (b *CLIBackend) CreateNoteWithTemplate(ctx context.Context, vaultID string, p CreateWithTemplateParams) Result {
	vault, errResult, ok := b.resolve(vaultID)
	if !ok {
		return errResult
	}
	args := []string{"create:with_template", "requestType=" + p.RequestType, "fileName=" + p.FileName}
	if p.TargetFolder != "" {
		args = append(args, "targetFolder="+p.TargetFolder)
	}
	if p.Content != "" {
		args = append(args, "content="+p.Content)
	}
	payload, err := b.run(ctx, vault, args...)
	return toEnvelope(payload, err)
}

func (b *CLIBackend) ManageNotes(ctx context.Context, vaultID, operation, path, newPath string) Result {
	vault, errResult, ok := b.resolve(vaultID)
	if !ok {
		return errResult
	}
	switch operation {
	case "delete":
		payload, err := b.run(ctx, vault, "delete:note", "path="+path)
		return toEnvelope(payload, err)
	case "rename":
		payload, err := b.run(ctx, vault, "rename:note", "path="+path, "newPath="+newPath)
		return toEnvelope(payload, err)
	default:
		return Result{Success: false, Error: "invalid operation: " + operation, ErrorCode: "INVALID_ARGUMENT"}
	}
}

func (b *CLIBackend) ManageFolders(ctx context.Context, vaultID, operation, folderPath, newFolderPath string) Result {
	vault, errResult, ok := b.resolve(vaultID)
	if !ok {
		return errResult
	}
	switch operation {
	case "create":
		payload, err := b.run(ctx, vault, "create:folder", "path="+folderPath)
		return toEnvelope(payload, err)
	case "rename":
		payload, err := b.run(ctx, vault, "rename:folder", "path="+folderPath, "newPath="+newFolderPath)
		return toEnvelope(payload, err)
	case "delete":
		payload, err := b.run(ctx, vault, "delete:folder", "path="+folderPath)
		return toEnvelope(payload, err)
	default:
		return Result{Success: false, Error: "invalid operation: " + operation, ErrorCode: "INVALID_ARGUMENT"}
	}
}

// searchBleve answers a content search from an in-process index if one
// has been built for vault via IndexVault; returns ok=false when no
// index is available, so callers fall back to the subprocess path.
func (b *CLIBackend) searchBleve(vault, query string, maxResults int) ([]map[string]any, bool) {
	b.mu.Lock()
	index := b.index
	b.mu.Unlock()
	if index == nil {
		return nil, false
	}

	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), maxResults, 0, false)
	result, err := index.Search(req)
	if err != nil {
		return nil, false
	}

	hits := make([]map[string]any, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, map[string]any{"path": hit.ID, "score": hit.Score})
	}
	return hits, true
}

// IndexVault builds (or replaces) the in-memory bleve index used by
// content search mode from a path -> body map, typically populated by
// walking a vault snapshot once at startup.
func (b *CLIBackend) IndexVault(notes map[string]string) error {
	mapping := bleve.NewIndexMapping()
	index, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return err
	}
	for path, body := range notes {
		if err := index.Index(path, map[string]string{"body": body}); err != nil {
			return err
		}
	}

	b.mu.Lock()
	b.index = index
	b.mu.Unlock()
	return nil
}

func cliUpdateArgs(p UpdateNoteParams) ([]string, *Result) {
	switch p.EditingMode {
	case "full_file":
		if p.Content == "" {
			return nil, missingFieldsResult("content", p.EditingMode)
		}
		return []string{"update:write", "path=" + p.Path, "content=" + p.Content}, nil
	case "frontmatter_only":
		if p.FrontmatterChanges == nil {
			return nil, missingFieldsResult("frontmatter_changes", p.EditingMode)
		}
		encoded, err := jsonx.MarshalToString(p.FrontmatterChanges)
		if err != nil {
			r := Result{Success: false, Error: err.Error(), ErrorCode: "INVALID_ARGUMENT"}
			return nil, &r
		}
		return []string{"update:frontmatter", "path=" + p.Path, "changes=" + encoded}, nil
	case "append_only":
		if p.AppendContent == "" {
			return nil, missingFieldsResult("append_content", p.EditingMode)
		}
		return []string{"update:append", "path=" + p.Path, "content=" + p.AppendContent}, nil
	case "range_based":
		if p.ReplacementContent == "" {
			return nil, missingFieldsResult("replacement_content, range_start_line, range_start_char", p.EditingMode)
		}
		return []string{
			"update:range", "path=" + p.Path, "content=" + p.ReplacementContent,
			"startLine=" + strconv.Itoa(p.RangeStartLine), "startChar=" + strconv.Itoa(p.RangeStartChar),
			"endLine=" + strconv.Itoa(p.RangeEndLine), "endChar=" + strconv.Itoa(p.RangeEndChar),
		}, nil
	case "editor_based":
		args := []string{"update:editor", "path=" + p.Path}
		for k, v := range p.EditorPayload {
			args = append(args, k+"="+toArgString(v))
		}
		return args, nil
	default:
		r := Result{Success: false, Error: "Invalid editing_mode: " + p.EditingMode, ErrorCode: "INVALID_ARGUMENT"}
		return nil, &r
	}
}

func toArgString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		encoded, err := jsonx.MarshalToString(val)
		if err != nil {
			return ""
		}
		return encoded
	}
}
