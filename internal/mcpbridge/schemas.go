package mcpbridge

// schema builders for every registered tool's input shape. Kept as a
// single file, one function per tool, grouped memory-then-vault.

func schemaAddMemory() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":               map[string]any{"type": "string"},
			"content":            map[string]any{"type": "string"},
			"source":             map[string]any{"type": "string"},
			"source_description": map[string]any{"type": "string"},
			"group_id":           map[string]any{"type": "string"},
			"uuid":               map[string]any{"type": "string"},
		},
		"required": []string{"content"},
	}
}

func schemaAddConversationMemory() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"group_id":           map[string]any{"type": "string"},
			"source_description": map[string]any{"type": "string"},
			"conversation": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"role":      map[string]any{"type": "string"},
						"content":   map[string]any{"type": "string"},
						"timestamp": map[string]any{"type": "string"},
					},
					"required": []string{"role", "content"},
				},
			},
		},
		"required": []string{"conversation"},
	}
}

func schemaSearchMemoryNodes() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":            map[string]any{"type": "string"},
			"max_nodes":        map[string]any{"type": "integer", "default": 10},
			"group_ids":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"center_node_uuid": map[string]any{"type": "string"},
			"entity_types":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"query"},
	}
}

func schemaSearchMemoryFacts() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":            map[string]any{"type": "string"},
			"max_facts":        map[string]any{"type": "integer", "default": 10},
			"group_ids":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"center_node_uuid": map[string]any{"type": "string"},
		},
		"required": []string{"query"},
	}
}

func schemaGetEpisodes() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"group_id": map[string]any{"type": "string"},
			"last_n":   map[string]any{"type": "integer", "default": 10},
		},
	}
}

func schemaDeleteEpisode() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"episode_id": map[string]any{"type": "string"}},
		"required":   []string{"episode_id"},
	}
}

func schemaDeleteEntityEdge() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"uuid": map[string]any{"type": "string"}},
		"required":   []string{"uuid"},
	}
}

func schemaGetEntityEdge() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entity_name": map[string]any{"type": "string"},
			"edge_type":   map[string]any{"type": "string"},
		},
		"required": []string{"entity_name"},
	}
}

func schemaClearGraph() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func schemaListGroupIds() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func schemaSearchObsidianNotes() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":           map[string]any{"type": "string"},
			"search_mode":     map[string]any{"type": "string", "enum": []string{"filename", "content", "both"}, "default": "both"},
			"max_results":     map[string]any{"type": "integer", "default": 100},
			"include_context": map[string]any{"type": "boolean", "default": true},
			"path":            map[string]any{"type": "string"},
			"vault_id":        map[string]any{"type": "string"},
		},
		"required": []string{"query"},
	}
}

func schemaReadObsidianNote() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":             map[string]any{"type": "string"},
			"include_line_map": map[string]any{"type": "boolean", "default": false},
			"vault_id":         map[string]any{"type": "string"},
		},
		"required": []string{"path"},
	}
}

func schemaCreateObsidianNote() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":     map[string]any{"type": "string"},
			"content":  map[string]any{"type": "string"},
			"vault_id": map[string]any{"type": "string"},
		},
		"required": []string{"path", "content"},
	}
}

func schemaUpdateObsidianNote() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":                map[string]any{"type": "string"},
			"editing_mode":        map[string]any{"type": "string", "enum": []string{"full_file", "frontmatter_only", "append_only", "range_based", "editor_based"}},
			"content":             map[string]any{"type": "string"},
			"frontmatter_changes": map[string]any{"type": "object"},
			"append_content":      map[string]any{"type": "string"},
			"replacement_content": map[string]any{"type": "string"},
			"range_start_line":    map[string]any{"type": "integer"},
			"range_start_char":    map[string]any{"type": "integer"},
			"range_end_line":      map[string]any{"type": "integer"},
			"range_end_char":      map[string]any{"type": "integer"},
			"vault_id":            map[string]any{"type": "string"},
		},
		"required": []string{"path", "editing_mode"},
	}
}

func schemaListObsidianVaults() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func schemaExploreVaultFolders() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":      map[string]any{"type": "string"},
			"query":     map[string]any{"type": "string"},
			"format":    map[string]any{"type": "string", "enum": []string{"tree", "flat", "paths", "smart"}, "default": "smart"},
			"max_depth": map[string]any{"type": "integer", "default": 3},
			"vault_id":  map[string]any{"type": "string"},
		},
	}
}

func schemaCreateNoteWithTemplate() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"request_type":  map[string]any{"type": "string"},
			"file_name":     map[string]any{"type": "string"},
			"content":       map[string]any{"type": "string"},
			"target_folder": map[string]any{"type": "string"},
			"vault_id":      map[string]any{"type": "string"},
		},
		"required": []string{"request_type", "file_name"},
	}
}

func schemaManageObsidianNotes() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{"type": "string", "enum": []string{"delete", "rename"}},
			"path":      map[string]any{"type": "string"},
			"newPath":   map[string]any{"type": "string"},
			"vault_id":  map[string]any{"type": "string"},
		},
		"required": []string{"operation", "path"},
	}
}

func schemaManageObsidianFolders() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation":     map[string]any{"type": "string", "enum": []string{"create", "rename", "delete"}},
			"folderPath":    map[string]any{"type": "string"},
			"newFolderPath": map[string]any{"type": "string"},
			"vault_id":      map[string]any{"type": "string"},
		},
		"required": []string{"operation", "folderPath"},
	}
}
