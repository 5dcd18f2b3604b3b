package mcpbridge

// keyAliases maps a client-supplied camelCase key to the canonical
// snake_case key every handler reads. "operation" is deliberately
// absent here: it means editing_mode on update_obsidian_note but is
// already the canonical key on the manage_* tools, so it is aliased
// per-tool in normalizeArgs instead of unconditionally here.
var keyAliases = map[string]string{
	"vaultId":    "vault_id",
	"searchMode": "search_mode",
	"maxResults": "max_results",
	"maxNodes":   "max_nodes",
	"maxFacts":   "max_facts",
	"groupId":    "group_id",
	"groupIds":   "group_ids",
	"lastN":      "last_n",
}

// toolsWithOperationAsEditingMode is the set of tool names where the
// "operation" argument means editing_mode rather than the literal
// operation name manage_obsidian_notes/manage_obsidian_folders use.
var toolsWithOperationAsEditingMode = map[string]bool{
	"update_obsidian_note": true,
}

// editingModeValueAliases maps a shorthand editing_mode value to its
// canonical long form.
var editingModeValueAliases = map[string]string{
	"frontmatter": "frontmatter_only",
	"append":      "append_only",
	"range":       "range_based",
	"editor":      "editor_based",
	"full":        "full_file",
}

// normalizeArgs rewrites known camelCase aliases to their canonical
// snake_case keys and known shorthand editing_mode values to their
// canonical long form, leaving everything else untouched.
func normalizeArgs(toolName string, args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		canonical, aliased := keyAliases[k]
		if !aliased {
			canonical = k
		}
		if canonical == "operation" && toolsWithOperationAsEditingMode[toolName] {
			canonical = "editing_mode"
		}
		if _, exists := out[canonical]; !exists {
			out[canonical] = v
		}
	}

	if mode, ok := out["editing_mode"].(string); ok {
		if canonical, aliased := editingModeValueAliases[mode]; aliased {
			out["editing_mode"] = canonical
		}
	}

	return out
}
