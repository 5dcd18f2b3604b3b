package mcpbridge

import (
	"context"
	"time"
)

// NodeResult is one hybrid-search hit over graph entities.
type NodeResult struct {
	UUID    string
	Name    string
	Summary string
	Labels  []string
	GroupID string
}

// FactResult is one hybrid-search hit over graph edges ("facts").
type FactResult struct {
	UUID           string
	Fact           string
	SourceNodeUUID string
	TargetNodeUUID string
	GroupID        string
	ValidAt        *time.Time
	InvalidAt      *time.Time
}

// EpisodeResult is one ingested episode as reported back to a caller.
type EpisodeResult struct {
	UUID      string
	Name      string
	GroupID   string
	Content   string
	CreatedAt time.Time
}

// NodeSearchOptions narrows a node search.
type NodeSearchOptions struct {
	MaxNodes       int
	GroupIDs       []string
	CenterNodeUUID string
	EntityTypes    []string
}

// FactSearchOptions narrows an edge search.
type FactSearchOptions struct {
	MaxFacts       int
	GroupIDs       []string
	CenterNodeUUID string
}

// GraphQuerier is the read/maintenance surface of the graph backend
// that the memory tool family needs beyond plain episode submission
// (ingest.GraphClient already covers that half).
type GraphQuerier interface {
	SearchNodes(ctx context.Context, query string, opts NodeSearchOptions) ([]NodeResult, error)
	SearchFacts(ctx context.Context, query string, opts FactSearchOptions) ([]FactResult, error)
	GetEpisodes(ctx context.Context, groupID string, lastN int) ([]EpisodeResult, error)
	DeleteEpisode(ctx context.Context, episodeID string) error
	DeleteEntityEdge(ctx context.Context, uuid string) error
	GetEntityEdge(ctx context.Context, entityName, edgeTypeFilter string) ([]FactResult, error)
	ClearGraph(ctx context.Context) error
}
