package mcpbridge

import (
	"context"

	"github.com/vaultbridge/internal/vaultbackend"
)

// vaultTools builds the nine editor-facing tools, every one of them a
// thin argument-unpacking layer over backend. None of these await
// readiness: the editor connection and the graph initialization are
// independent concerns.
func vaultTools(backend vaultbackend.Backend) []Tool {
	return []Tool{
		{
			Definition: ToolDefinition{Name: "search_obsidian_notes", Description: "Search vault notes by filename and/or content.", InputSchema: schemaSearchObsidianNotes()},
			Handler:    handleSearchObsidianNotes(backend),
		},
		{
			Definition: ToolDefinition{Name: "read_obsidian_note", Description: "Read a note's content, optionally with a line map.", InputSchema: schemaReadObsidianNote()},
			Handler:    handleReadObsidianNote(backend),
		},
		{
			Definition: ToolDefinition{Name: "create_obsidian_note", Description: "Create a new note.", InputSchema: schemaCreateObsidianNote()},
			Handler:    handleCreateObsidianNote(backend),
		},
		{
			Definition: ToolDefinition{Name: "update_obsidian_note", Description: "Update an existing note using one of several editing modes.", InputSchema: schemaUpdateObsidianNote()},
			Handler:    handleUpdateObsidianNote(backend),
		},
		{
			Definition: ToolDefinition{Name: "list_obsidian_vaults", Description: "List every connected vault.", InputSchema: schemaListObsidianVaults()},
			Handler:    handleListObsidianVaults(backend),
		},
		{
			Definition: ToolDefinition{Name: "explore_vault_folders", Description: "Explore a vault's folder structure.", InputSchema: schemaExploreVaultFolders()},
			Handler:    handleExploreVaultFolders(backend),
		},
		{
			Definition: ToolDefinition{Name: "create_note_with_template", Description: "Create a note from a discovered template.", InputSchema: schemaCreateNoteWithTemplate()},
			Handler:    handleCreateNoteWithTemplate(backend),
		},
		{
			Definition: ToolDefinition{Name: "manage_obsidian_notes", Description: "Delete or rename a note.", InputSchema: schemaManageObsidianNotes()},
			Handler:    handleManageObsidianNotes(backend),
		},
		{
			Definition: ToolDefinition{Name: "manage_obsidian_folders", Description: "Create, rename, or delete a folder.", InputSchema: schemaManageObsidianFolders()},
			Handler:    handleManageObsidianFolders(backend),
		},
	}
}

func handleSearchObsidianNotes(b vaultbackend.Backend) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		query, _ := args["query"].(string)
		if query == "" {
			return nil, &RPCError{Code: codeInvalidParams, Message: "query is required"}
		}
		searchMode := stringArg(args, "search_mode")
		if searchMode == "" {
			searchMode = "both"
		}
		maxResults := intArg(args, "max_results", 100)
		includeContext := boolArg(args, "include_context", true)
		path := stringArg(args, "path")
		vaultID := stringArg(args, "vault_id")

		return b.SearchNotes(ctx, vaultID, query, searchMode, maxResults, includeContext, path), nil
	}
}

func handleReadObsidianNote(b vaultbackend.Backend) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		path, _ := args["path"].(string)
		if path == "" {
			return nil, &RPCError{Code: codeInvalidParams, Message: "path is required"}
		}
		includeLineMap := boolArg(args, "include_line_map", false)
		vaultID := stringArg(args, "vault_id")
		return b.ReadNote(ctx, vaultID, path, includeLineMap), nil
	}
}

func handleCreateObsidianNote(b vaultbackend.Backend) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		path, _ := args["path"].(string)
		content, _ := args["content"].(string)
		if path == "" {
			return nil, &RPCError{Code: codeInvalidParams, Message: "path is required"}
		}
		vaultID := stringArg(args, "vault_id")
		return b.CreateNote(ctx, vaultID, path, content), nil
	}
}

func handleUpdateObsidianNote(b vaultbackend.Backend) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		path, _ := args["path"].(string)
		editingMode, _ := args["editing_mode"].(string)
		if path == "" || editingMode == "" {
			return nil, &RPCError{Code: codeInvalidParams, Message: "path and editing_mode are required"}
		}
		vaultID := stringArg(args, "vault_id")

		frontmatterChanges, _ := args["frontmatter_changes"].(map[string]any)

		params := vaultbackend.UpdateNoteParams{
			Path:               path,
			EditingMode:        editingMode,
			Content:            stringArg(args, "content"),
			FrontmatterChanges: frontmatterChanges,
			AppendContent:      stringArg(args, "append_content"),
			ReplacementContent: stringArg(args, "replacement_content"),
			RangeStartLine:     intArg(args, "range_start_line", 0),
			RangeStartChar:     intArg(args, "range_start_char", 0),
			RangeEndLine:       intArg(args, "range_end_line", 0),
			RangeEndChar:       intArg(args, "range_end_char", 0),
		}
		if editingMode == "editor_based" {
			params.EditorPayload = args
		}

		return b.UpdateNote(ctx, vaultID, params), nil
	}
}

func handleListObsidianVaults(b vaultbackend.Backend) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		return b.ListVaults(ctx), nil
	}
}

func handleExploreVaultFolders(b vaultbackend.Backend) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		path := stringArg(args, "path")
		query := stringArg(args, "query")
		format := stringArg(args, "format")
		if format == "" {
			format = "smart"
		}
		maxDepth := intArg(args, "max_depth", 3)
		vaultID := stringArg(args, "vault_id")
		return b.ExploreFolders(ctx, vaultID, path, query, format, maxDepth), nil
	}
}

func handleCreateNoteWithTemplate(b vaultbackend.Backend) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		requestType, _ := args["request_type"].(string)
		fileName, _ := args["file_name"].(string)
		if requestType == "" || fileName == "" {
			return nil, &RPCError{Code: codeInvalidParams, Message: "request_type and file_name are required"}
		}
		vaultID := stringArg(args, "vault_id")

		discovery := b.DiscoverTemplates(ctx, vaultID, requestType)
		if payload, ok := discovery.Payload.(map[string]any); ok {
			if _, needsSelection := payload["requiresSelection"]; needsSelection {
				return discovery, nil
			}
		}

		return b.CreateNoteWithTemplate(ctx, vaultID, vaultbackend.CreateWithTemplateParams{
			RequestType:  requestType,
			FileName:     fileName,
			Content:      stringArg(args, "content"),
			TargetFolder: stringArg(args, "target_folder"),
		}), nil
	}
}

func handleManageObsidianNotes(b vaultbackend.Backend) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		operation, _ := args["operation"].(string)
		path, _ := args["path"].(string)
		if operation == "" || path == "" {
			return nil, &RPCError{Code: codeInvalidParams, Message: "operation and path are required"}
		}
		vaultID := stringArg(args, "vault_id")
		newPath := stringArg(args, "newPath")
		return b.ManageNotes(ctx, vaultID, operation, path, newPath), nil
	}
}

func handleManageObsidianFolders(b vaultbackend.Backend) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		operation, _ := args["operation"].(string)
		folderPath, _ := args["folderPath"].(string)
		if operation == "" || folderPath == "" {
			return nil, &RPCError{Code: codeInvalidParams, Message: "operation and folderPath are required"}
		}
		vaultID := stringArg(args, "vault_id")
		newFolderPath := stringArg(args, "newFolderPath")
		return b.ManageFolders(ctx, vaultID, operation, folderPath, newFolderPath), nil
	}
}

func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}
