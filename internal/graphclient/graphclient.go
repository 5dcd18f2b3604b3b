// Package graphclient is the illustrative DGraph-backed implementation
// of the two narrow graph boundaries the rest of the bridge depends
// on: ingest.GraphClient (episode submission) and mcpbridge.GraphQuerier
// (read/maintenance operations for the memory tool family).
package graphclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/dgo/v240"
	"github.com/dgraph-io/dgo/v240/protos/api"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vaultbridge/internal/ingest"
	"github.com/vaultbridge/internal/mcpbridge"
)

// Config configures the connection to a running dgraph alpha.
type Config struct {
	Address        string
	MaxRetries     int
	RetryInterval  time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig gives sensible localhost development defaults.
func DefaultConfig() Config {
	return Config{
		Address:        "localhost:9080",
		MaxRetries:     5,
		RetryInterval:  2 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// Client wraps a dgo client and implements both ingest.GraphClient and
// mcpbridge.GraphQuerier against the episode/entity/fact schema below.
type Client struct {
	conn   *grpc.ClientConn
	dg     *dgo.Dgraph
	logger *zap.Logger
	cfg    Config
}

var (
	_ ingest.GraphClient     = (*Client)(nil)
	_ mcpbridge.GraphQuerier = (*Client)(nil)
)

// New dials addr with retry/backoff, then installs the episode/entity/fact
// schema.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries == 0 {
		cfg = DefaultConfig()
	}

	var conn *grpc.ClientConn
	var err error
	for i := 0; i < cfg.MaxRetries; i++ {
		conn, err = grpc.DialContext(ctx, cfg.Address,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithBlock(),
		)
		if err == nil {
			break
		}
		logger.Warn("failed to connect to dgraph, retrying", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(cfg.RetryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to dgraph after %d attempts: %w", cfg.MaxRetries, err)
	}

	dg := dgo.NewDgraphClient(api.NewDgraphClient(conn))
	client := &Client{conn: conn, dg: dg, logger: logger, cfg: cfg}

	if err := client.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("graph client connected", zap.String("address", cfg.Address))
	return client, nil
}

func (c *Client) initSchema(ctx context.Context) error {
	const schema = `
		type Episode {
			uuid
			name
			group_id
			content
			source_description
			created_at
			saga_name
			saga_previous_uuid
		}

		type Entity {
			uuid
			name
			summary
			labels
			group_id
		}

		type Fact {
			uuid
			fact
			source_node_uuid
			target_node_uuid
			group_id
			valid_at
			invalid_at
		}

		uuid: string @index(exact) .
		name: string @index(term, fulltext) .
		summary: string @index(fulltext) .
		content: string @index(fulltext) .
		fact: string @index(fulltext) .
		group_id: string @index(exact) .
		labels: [string] @index(exact) .
		source_description: string .
		created_at: datetime @index(hour) .
		saga_name: string @index(exact) .
		saga_previous_uuid: string .
		source_node_uuid: string @index(exact) .
		target_node_uuid: string @index(exact) .
		valid_at: datetime .
		invalid_at: datetime .
	`
	return c.dg.Alter(ctx, &api.Operation{Schema: schema})
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// AcceptsGroupID reports true: this backend always partitions episodes
// by group_id.
func (c *Client) AcceptsGroupID() bool { return true }

// SubmitEpisode creates one Episode node via a blank-node-then-mutate
// NQuad mutation.
func (c *Client) SubmitEpisode(ctx context.Context, sub ingest.EpisodeSubmission) (string, ingest.EpisodeMetrics, error) {
	uuid := fmt.Sprintf("episode-%d", time.Now().UnixNano())
	blank := fmt.Sprintf("_:episode_%d", time.Now().UnixNano())

	nquads := fmt.Sprintf(`
		%s <dgraph.type> "Episode" .
		%s <uuid> %q .
		%s <content> %q .
		%s <source_description> %q .
		%s <group_id> %q .
		%s <created_at> %q^^<xs:dateTime> .
	`, blank, blank, uuid, blank, sub.Body, blank, sub.SourceDescription, blank, sub.GroupID, blank, sub.ReferenceTime.Format(time.RFC3339))
	if sub.SagaName != "" {
		nquads += fmt.Sprintf("%s <saga_name> %q .\n", blank, sub.SagaName)
	}
	if sub.SagaPreviousUUID != "" {
		nquads += fmt.Sprintf("%s <saga_previous_uuid> %q .\n", blank, sub.SagaPreviousUUID)
	}

	txn := c.dg.NewTxn()
	defer txn.Discard(ctx)

	_, err := txn.Mutate(ctx, &api.Mutation{SetNquads: []byte(nquads), CommitNow: true})
	if err != nil {
		return "", ingest.EpisodeMetrics{}, fmt.Errorf("failed to submit episode: %w", err)
	}

	metrics := ingest.EpisodeMetrics{
		ContentLength: len(sub.Body),
	}
	if sub.Ontology != nil {
		metrics.EntitiesCount = len(sub.Ontology.EntityTypes)
		metrics.RelationshipsCount = len(sub.Ontology.EdgeTypes)
	}
	return uuid, metrics, nil
}

// SearchNodes runs an anyoftext fulltext search over Entity.name/summary,
// filtered to the requested group ids when present.
func (c *Client) SearchNodes(ctx context.Context, query string, opts mcpbridge.NodeSearchOptions) ([]mcpbridge.NodeResult, error) {
	limit := opts.MaxNodes
	if limit <= 0 {
		limit = 10
	}

	dql := `query Search($text: string, $limit: int) {
		byName(func: anyoftext(name, $text), first: $limit) @filter(type(Entity)) {
			uuid
			name
			summary
			labels
			group_id
		}
		bySummary(func: anyoftext(summary, $text), first: $limit) @filter(type(Entity)) {
			uuid
			name
			summary
			labels
			group_id
		}
	}`

	resp, err := c.dg.NewReadOnlyTxn().QueryWithVars(ctx, dql, map[string]string{
		"$text":  query,
		"$limit": fmt.Sprintf("%d", limit),
	})
	if err != nil {
		return nil, fmt.Errorf("search nodes query failed: %w", err)
	}

	var parsed struct {
		ByName    []mcpbridge.NodeResult `json:"byName"`
		BySummary []mcpbridge.NodeResult `json:"bySummary"`
	}
	if err := json.Unmarshal(resp.Json, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode node search results: %w", err)
	}

	return dedupeNodes(query, append(parsed.ByName, parsed.BySummary...), opts.GroupIDs, opts.EntityTypes, limit), nil
}

func dedupeNodes(_ string, in []mcpbridge.NodeResult, groupIDs, entityTypes []string, limit int) []mcpbridge.NodeResult {
	groupSet := toSet(groupIDs)
	typeSet := toSet(entityTypes)

	seen := make(map[string]bool, len(in))
	out := make([]mcpbridge.NodeResult, 0, len(in))
	for _, n := range in {
		if seen[n.UUID] {
			continue
		}
		if len(groupSet) > 0 && !groupSet[n.GroupID] {
			continue
		}
		if len(typeSet) > 0 && !anyLabelMatches(n.Labels, typeSet) {
			continue
		}
		seen[n.UUID] = true
		out = append(out, n)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func anyLabelMatches(labels []string, set map[string]bool) bool {
	for _, l := range labels {
		if set[l] {
			return true
		}
	}
	return false
}

func toSet(vals []string) map[string]bool {
	if len(vals) == 0 {
		return nil
	}
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}

// SearchFacts runs a fulltext search over Fact.fact.
func (c *Client) SearchFacts(ctx context.Context, query string, opts mcpbridge.FactSearchOptions) ([]mcpbridge.FactResult, error) {
	limit := opts.MaxFacts
	if limit <= 0 {
		limit = 10
	}

	dql := `query Search($text: string, $limit: int) {
		facts(func: anyoftext(fact, $text), first: $limit) @filter(type(Fact)) {
			uuid
			fact
			source_node_uuid
			target_node_uuid
			group_id
			valid_at
			invalid_at
		}
	}`

	resp, err := c.dg.NewReadOnlyTxn().QueryWithVars(ctx, dql, map[string]string{
		"$text":  query,
		"$limit": fmt.Sprintf("%d", limit),
	})
	if err != nil {
		return nil, fmt.Errorf("search facts query failed: %w", err)
	}

	var parsed struct {
		Facts []mcpbridge.FactResult `json:"facts"`
	}
	if err := json.Unmarshal(resp.Json, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode fact search results: %w", err)
	}

	if len(opts.GroupIDs) == 0 {
		return parsed.Facts, nil
	}
	groupSet := toSet(opts.GroupIDs)
	out := make([]mcpbridge.FactResult, 0, len(parsed.Facts))
	for _, f := range parsed.Facts {
		if groupSet[f.GroupID] {
			out = append(out, f)
		}
	}
	return out, nil
}

// GetEpisodes lists the most recent episodes for groupID, ordered by
// created_at descending.
func (c *Client) GetEpisodes(ctx context.Context, groupID string, lastN int) ([]mcpbridge.EpisodeResult, error) {
	if lastN <= 0 {
		lastN = 10
	}

	dql := fmt.Sprintf(`query Episodes($limit: int, $group: string) {
		episodes(func: type(Episode), orderdesc: created_at, first: $limit) %s {
			uuid
			name
			group_id
			content
			created_at
		}
	}`, groupFilter(groupID))

	resp, err := c.dg.NewReadOnlyTxn().QueryWithVars(ctx, dql, map[string]string{
		"$limit": fmt.Sprintf("%d", lastN),
		"$group": groupID,
	})
	if err != nil {
		return nil, fmt.Errorf("get episodes query failed: %w", err)
	}

	var parsed struct {
		Episodes []mcpbridge.EpisodeResult `json:"episodes"`
	}
	if err := json.Unmarshal(resp.Json, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode episodes: %w", err)
	}
	return parsed.Episodes, nil
}

func groupFilter(groupID string) string {
	if groupID == "" {
		return ""
	}
	return "@filter(eq(group_id, $group))"
}

// DeleteEpisode deletes the Episode node matching uuid.
func (c *Client) DeleteEpisode(ctx context.Context, episodeID string) error {
	return c.deleteByUUID(ctx, "Episode", episodeID)
}

// DeleteEntityEdge deletes the Fact node matching uuid.
func (c *Client) DeleteEntityEdge(ctx context.Context, uuid string) error {
	return c.deleteByUUID(ctx, "Fact", uuid)
}

func (c *Client) deleteByUUID(ctx context.Context, typeName, uuid string) error {
	dql := fmt.Sprintf(`query Find($uuid: string) {
		target(func: eq(uuid, $uuid)) @filter(type(%s)) {
			uid
		}
	}`, typeName)

	resp, err := c.dg.NewReadOnlyTxn().QueryWithVars(ctx, dql, map[string]string{"$uuid": uuid})
	if err != nil {
		return fmt.Errorf("failed to locate %s %s: %w", typeName, uuid, err)
	}

	var parsed struct {
		Target []struct {
			UID string `json:"uid"`
		} `json:"target"`
	}
	if err := json.Unmarshal(resp.Json, &parsed); err != nil {
		return fmt.Errorf("failed to decode lookup: %w", err)
	}
	if len(parsed.Target) == 0 {
		return fmt.Errorf("%s not found: %s", typeName, uuid)
	}

	txn := c.dg.NewTxn()
	defer txn.Discard(ctx)

	deleteJSON, err := json.Marshal(map[string]string{"uid": parsed.Target[0].UID})
	if err != nil {
		return err
	}
	_, err = txn.Mutate(ctx, &api.Mutation{DeleteJson: deleteJSON, CommitNow: true})
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", typeName, uuid, err)
	}
	return nil
}

// GetEntityEdge searches Fact nodes touching entityName, optionally
// filtered by a substring match against edgeTypeFilter.
func (c *Client) GetEntityEdge(ctx context.Context, entityName, edgeTypeFilter string) ([]mcpbridge.FactResult, error) {
	facts, err := c.SearchFacts(ctx, entityName, mcpbridge.FactSearchOptions{MaxFacts: 25})
	if err != nil {
		return nil, err
	}
	if edgeTypeFilter == "" {
		return facts, nil
	}

	out := make([]mcpbridge.FactResult, 0, len(facts))
	for _, f := range facts {
		if strings.Contains(strings.ToLower(f.Fact), strings.ToLower(edgeTypeFilter)) {
			out = append(out, f)
		}
	}
	return out, nil
}

// ClearGraph drops every node and predicate, mirroring a DropAll alter
// operation.
func (c *Client) ClearGraph(ctx context.Context) error {
	return c.dg.Alter(ctx, &api.Operation{DropAll: true})
}
