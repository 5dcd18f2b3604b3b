package mcpbridge

import (
	"context"

	"github.com/vaultbridge/internal/config"
	"github.com/vaultbridge/internal/ingest"
	"github.com/vaultbridge/internal/vaultbackend"
)

// ServerDeps wires every collaborator BuildServer needs to construct
// the full tool set. Graph and Querier are typically the same
// concrete client satisfying both narrow interfaces.
type ServerDeps struct {
	Config  *config.Config
	Graph   ingest.GraphClient
	Querier GraphQuerier
	Backend vaultbackend.Backend
	Ready   *Readiness
	Status  StatusSource
}

// StatusSource reports the three fields the mcp://status resource
// exposes. Implementations typically close over the elector's role and
// the graph client's connection state.
type StatusSource interface {
	GraphitiStatus() string // "ok" | "disconnected" | "rpc-mode"
	ObsidianStatus() string // "ok" | "disconnected"
	DatabaseKind() string
}

func statusResourceHandler(s StatusSource) ResourceHandler {
	return func(ctx context.Context) (any, error) {
		return map[string]any{
			"graphiti": s.GraphitiStatus(),
			"obsidian": s.ObsidianStatus(),
			"database": s.DatabaseKind(),
		}, nil
	}
}

// BuildServer assembles the full two-family MCP server: every memory
// and vault tool plus the mcp://status resource, ready to be driven by
// either transport.
func BuildServer(cfg ServerConfig, deps ServerDeps) *Server {
	tools := append(memoryTools(deps.Config, deps.Graph, deps.Querier, deps.Ready), vaultTools(deps.Backend)...)

	cfg.Tools = tools
	cfg.Resources = []ResourceDefinition{
		{URI: "mcp://status", Name: "status", Description: "Bridge connectivity status.", MimeType: "application/json"},
	}
	cfg.ResourceHandlers = map[string]ResourceHandler{
		"mcp://status": statusResourceHandler(deps.Status),
	}

	return NewServer(cfg)
}
