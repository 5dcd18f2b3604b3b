package mcpbridge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vaultbridge/internal/config"
	"github.com/vaultbridge/internal/ingest"
)

// memoryTools builds the ten memory tools: nine graph-backed ones plus
// list_group_ids. readiness gates every one of them except
// list_group_ids, which needs nothing but the static config already in
// hand.
func memoryTools(cfg *config.Config, graph ingest.GraphClient, querier GraphQuerier, ready *Readiness) []Tool {
	return []Tool{
		{
			Definition: ToolDefinition{Name: "add_memory", Description: "Add a memory episode to the knowledge graph.", InputSchema: schemaAddMemory()},
			Handler:    gated(ready, handleAddMemory(cfg, graph)),
		},
		{
			Definition: ToolDefinition{Name: "add_conversation_memory", Description: "Add a conversation transcript as a single memory episode.", InputSchema: schemaAddConversationMemory()},
			Handler:    gated(ready, handleAddConversationMemory(cfg, graph)),
		},
		{
			Definition: ToolDefinition{Name: "search_memory_nodes", Description: "Search the knowledge graph for entity nodes.", InputSchema: schemaSearchMemoryNodes()},
			Handler:    gated(ready, handleSearchMemoryNodes(querier)),
		},
		{
			Definition: ToolDefinition{Name: "search_memory_facts", Description: "Search the knowledge graph for relationship facts.", InputSchema: schemaSearchMemoryFacts()},
			Handler:    gated(ready, handleSearchMemoryFacts(querier)),
		},
		{
			Definition: ToolDefinition{Name: "get_episodes", Description: "List the most recent episodes for a group.", InputSchema: schemaGetEpisodes()},
			Handler:    gated(ready, handleGetEpisodes(querier)),
		},
		{
			Definition: ToolDefinition{Name: "delete_episode", Description: "Delete an episode by id.", InputSchema: schemaDeleteEpisode()},
			Handler:    gated(ready, handleDeleteEpisode(querier)),
		},
		{
			Definition: ToolDefinition{Name: "delete_entity_edge", Description: "Delete an entity edge by uuid.", InputSchema: schemaDeleteEntityEdge()},
			Handler:    gated(ready, handleDeleteEntityEdge(querier)),
		},
		{
			Definition: ToolDefinition{Name: "get_entity_edge", Description: "Find edges touching a named entity.", InputSchema: schemaGetEntityEdge()},
			Handler:    gated(ready, handleGetEntityEdge(querier)),
		},
		{
			Definition: ToolDefinition{Name: "clear_graph", Description: "Delete every node and edge in the graph.", InputSchema: schemaClearGraph()},
			Handler:    gated(ready, handleClearGraph(querier)),
		},
		{
			Definition: ToolDefinition{Name: "list_group_ids", Description: "List every configured namespace/group id.", InputSchema: schemaListGroupIds()},
			Handler:    handleListGroupIds(cfg),
		},
	}
}

// gated wraps h so it first awaits ready, surfacing a plain error
// result rather than blocking forever when initialization never
// finishes.
func gated(ready *Readiness, h ToolHandler) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		if err := ready.Await(ctx); err != nil {
			return map[string]any{"success": false, "error": "initialization in progress"}, nil
		}
		return h(ctx, args)
	}
}

func handleAddMemory(cfg *config.Config, graph ingest.GraphClient) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		content, _ := args["content"].(string)
		if content == "" {
			return nil, &RPCError{Code: codeInvalidParams, Message: "content is required"}
		}
		groupID, _ := args["group_id"].(string)
		if groupID == "" {
			groupID = cfg.DefaultNamespace
		}
		sourceDescription, _ := args["source_description"].(string)
		if sourceDescription == "" {
			sourceDescription, _ = args["source"].(string)
		}

		uuid, metrics, err := graph.SubmitEpisode(ctx, ingest.EpisodeSubmission{
			GroupID:           groupIDOrEmpty(graph, groupID),
			Body:              content,
			SourceDescription: sourceDescription,
			ReferenceTime:     time.Now(),
		})
		if err != nil {
			return map[string]any{"success": false, "error": err.Error()}, nil
		}
		return map[string]any{
			"success":      true,
			"episode_uuid": uuid,
			"metrics":      metrics,
		}, nil
	}
}

func handleAddConversationMemory(cfg *config.Config, graph ingest.GraphClient) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		raw, _ := args["conversation"].([]any)
		if len(raw) == 0 {
			return nil, &RPCError{Code: codeInvalidParams, Message: "conversation is required"}
		}

		lines := make([]string, 0, len(raw))
		for _, entry := range raw {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			role, _ := m["role"].(string)
			content, _ := m["content"].(string)
			ts, _ := m["timestamp"].(string)
			if ts == "" {
				ts = time.Now().UTC().Format(time.RFC3339)
			}
			lines = append(lines, fmt.Sprintf("[%s] %s: %s", ts, role, content))
		}

		groupID, _ := args["group_id"].(string)
		if groupID == "" {
			groupID = cfg.DefaultNamespace
		}
		sourceDescription, _ := args["source_description"].(string)
		if sourceDescription == "" {
			sourceDescription = "conversation"
		}

		uuid, metrics, err := graph.SubmitEpisode(ctx, ingest.EpisodeSubmission{
			GroupID:           groupIDOrEmpty(graph, groupID),
			Body:              strings.Join(lines, "\n"),
			SourceDescription: sourceDescription,
			ReferenceTime:     time.Now(),
		})
		if err != nil {
			return map[string]any{"success": false, "error": err.Error()}, nil
		}
		return map[string]any{"success": true, "episode_uuid": uuid, "metrics": metrics}, nil
	}
}

func groupIDOrEmpty(graph ingest.GraphClient, groupID string) string {
	if graph.AcceptsGroupID() {
		return groupID
	}
	return ""
}

func handleSearchMemoryNodes(q GraphQuerier) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		query, _ := args["query"].(string)
		if query == "" {
			return nil, &RPCError{Code: codeInvalidParams, Message: "query is required"}
		}
		opts := NodeSearchOptions{
			MaxNodes:       intArg(args, "max_nodes", 10),
			GroupIDs:       stringSliceArg(args, "group_ids"),
			CenterNodeUUID: stringArg(args, "center_node_uuid"),
			EntityTypes:    stringSliceArg(args, "entity_types"),
		}
		nodes, err := q.SearchNodes(ctx, query, opts)
		if err != nil {
			return map[string]any{"success": false, "error": err.Error()}, nil
		}
		return map[string]any{"success": true, "nodes": nodes}, nil
	}
}

func handleSearchMemoryFacts(q GraphQuerier) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		query, _ := args["query"].(string)
		if query == "" {
			return nil, &RPCError{Code: codeInvalidParams, Message: "query is required"}
		}
		opts := FactSearchOptions{
			MaxFacts:       intArg(args, "max_facts", 10),
			GroupIDs:       stringSliceArg(args, "group_ids"),
			CenterNodeUUID: stringArg(args, "center_node_uuid"),
		}
		facts, err := q.SearchFacts(ctx, query, opts)
		if err != nil {
			return map[string]any{"success": false, "error": err.Error()}, nil
		}
		return map[string]any{"success": true, "facts": facts}, nil
	}
}

func handleGetEpisodes(q GraphQuerier) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		groupID := stringArg(args, "group_id")
		lastN := intArg(args, "last_n", 10)
		episodes, err := q.GetEpisodes(ctx, groupID, lastN)
		if err != nil {
			return map[string]any{"success": false, "error": err.Error()}, nil
		}
		return map[string]any{"success": true, "episodes": episodes}, nil
	}
}

func handleDeleteEpisode(q GraphQuerier) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		episodeID, _ := args["episode_id"].(string)
		if episodeID == "" {
			return nil, &RPCError{Code: codeInvalidParams, Message: "episode_id is required"}
		}
		if err := q.DeleteEpisode(ctx, episodeID); err != nil {
			return map[string]any{"success": false, "error": err.Error()}, nil
		}
		return map[string]any{"success": true}, nil
	}
}

func handleDeleteEntityEdge(q GraphQuerier) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		uuid, _ := args["uuid"].(string)
		if uuid == "" {
			return nil, &RPCError{Code: codeInvalidParams, Message: "uuid is required"}
		}
		if err := q.DeleteEntityEdge(ctx, uuid); err != nil {
			return map[string]any{"success": false, "error": err.Error()}, nil
		}
		return map[string]any{"success": true}, nil
	}
}

func handleGetEntityEdge(q GraphQuerier) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		entityName, _ := args["entity_name"].(string)
		if entityName == "" {
			return nil, &RPCError{Code: codeInvalidParams, Message: "entity_name is required"}
		}
		edgeType := stringArg(args, "edge_type")
		facts, err := q.GetEntityEdge(ctx, entityName, edgeType)
		if err != nil {
			return map[string]any{"success": false, "error": err.Error()}, nil
		}
		return map[string]any{"success": true, "facts": facts}, nil
	}
}

func handleClearGraph(q GraphQuerier) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		if err := q.ClearGraph(ctx); err != nil {
			return map[string]any{"success": false, "error": err.Error()}, nil
		}
		return map[string]any{"success": true}, nil
	}
}

func handleListGroupIds(cfg *config.Config) ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		seen := map[string]bool{}
		var ids []string
		add := func(id string) {
			if id == "" || seen[id] {
				return
			}
			seen[id] = true
			ids = append(ids, id)
		}

		add(cfg.DefaultNamespace)
		for _, ns := range cfg.AvailableNamespaces {
			add(ns)
		}
		for _, fm := range cfg.FolderNamespaceMappings {
			add(fm.GroupID)
		}

		sort.Strings(ids)
		return map[string]any{"success": true, "group_ids": ids}, nil
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, _ := args[key].([]any)
	if raw == nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
