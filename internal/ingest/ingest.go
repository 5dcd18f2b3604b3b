// Package ingest implements the episode assembly and per-group FIFO
// submission pipeline: the single path by which a note becomes a graph
// episode, whether triggered from the MCP tool dispatcher or the
// long-lived ingestion daemon.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vaultbridge/internal/bridgeerr"
	"github.com/vaultbridge/internal/config"
	"github.com/vaultbridge/internal/namespace"
	"github.com/vaultbridge/internal/schema"
)

// NoteReader reads a note's raw markdown from wherever the vault lives —
// hub-backed or CLI-backed, the Service never knows which.
type NoteReader interface {
	ReadNote(ctx context.Context, notePath string) (string, error)
}

// Ontology is the custom-entity payload a GraphClient receives when
// schema loading produced a non-empty entity set.
type Ontology struct {
	EntityTypes        []schema.EntityType
	EdgeTypes          []schema.EdgeType
	AllowedEdgesByPair map[schema.EdgePair][]string
}

// EpisodeSubmission is everything a GraphClient needs to create one
// episode. GroupID is set to "" when the backend does not accept
// per-episode group ids.
type EpisodeSubmission struct {
	GroupID           string
	Body              string
	SourceDescription string
	ReferenceTime     time.Time
	SagaName          string
	SagaPreviousUUID  string
	Ontology          *Ontology // nil => generic text episode
}

// EpisodeMetrics mirrors the "metrics" sub-object of the result envelope.
type EpisodeMetrics struct {
	EntitiesCount      int
	RelationshipsCount int
	ContentLength      int
	MetadataFields     int
}

// GraphClient is the single boundary between this package and whatever
// graph backend is actually wired in.
type GraphClient interface {
	AcceptsGroupID() bool
	SubmitEpisode(ctx context.Context, sub EpisodeSubmission) (episodeUUID string, metrics EpisodeMetrics, err error)
}

// Result is the Go rendering of the episode result envelope.
type Result struct {
	Status                     string // "success" | "failed" | "rate_limited" | "infrastructure_error"
	NotePath                   string
	NoteName                   string
	Namespace                  string
	SagaName                   string
	EpisodeUUID                string
	ReferenceTime              time.Time
	ProcessingDurationSeconds  float64
	StartTime                  time.Time
	EndTime                    time.Time
	Metrics                    *EpisodeMetrics
	Error                      string
	ProviderMessage            string
	RetryAfterSeconds          int
	ResetTimeISO               string
	CancelSync                 bool
}

// Service runs the episode assembly pipeline and the per-group FIFO
// worker pool. One Service instance is shared across every submission
// for a single vault/config pair.
type Service struct {
	cfg       *config.Config
	notes     NoteReader
	graph     GraphClient
	schemaReg *schema.Registry
	logger    *zap.Logger

	mu       sync.Mutex
	queues   map[string]*groupQueue
	syncRecs *syncRecordCache
}

type groupQueue struct {
	mu      sync.Mutex
	pending []func()
	active  bool
}

// New builds a Service. schemaReg may be nil when custom ontology is
// disabled for every vault this Service will ever serve.
func New(cfg *config.Config, notes NoteReader, graph GraphClient, schemaReg *schema.Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		notes:     notes,
		graph:     graph,
		schemaReg: schemaReg,
		logger:    logger,
		queues:    make(map[string]*groupQueue),
		syncRecs:  newSyncRecordCache(),
	}
}

// Submit assembles the episode for notePath synchronously (cheap, local
// work: read note, resolve namespace, build body) and enqueues the
// actual graph submission onto that group's FIFO queue, spawning a
// worker if none is currently draining the group. It returns the
// 1-based position of this submission within its group's queue at the
// moment of enqueue, and a channel that receives exactly one Result.
func (s *Service) Submit(ctx context.Context, notePath string) (int, <-chan Result, error) {
	start := time.Now()

	raw, err := s.notes.ReadNote(ctx, notePath)
	if err != nil {
		return 0, nil, bridgeerr.Wrap(bridgeerr.NotFound, "note not found", err)
	}

	frontmatter, body := config.ExtractFrontmatter(raw)
	groupID := namespace.ResolveNamespace(notePath, frontmatter, s.cfg)
	grouping := namespace.EffectiveSagaGrouping(notePath, s.cfg)
	propertyKey := s.cfg.SagaCustomPropertyKey
	sagaName, _ := namespace.ResolveSaga(grouping, propertyKey, groupID, frontmatter)

	var sagaPreviousUUID string
	if sagaName != "" {
		records := s.syncRecs.Get(s.cfg.VaultPath)
		sagaPreviousUUID, _ = namespace.FindPreviousInSaga(sagaName, records)
	}

	mergedBody := mergeFrontmatterIntoBody(frontmatter, body)
	sourceDescription := sourceDescriptionFor(frontmatter, s.cfg)
	referenceTime := referenceTimeFor(frontmatter)

	ontology := s.buildOntology(notePath)

	resultCh := make(chan Result, 1)
	noteName := noteNameFrom(notePath)

	task := func() {
		result := s.runSubmission(ctx, runInput{
			notePath:          notePath,
			noteName:          noteName,
			groupID:           groupID,
			sagaName:          sagaName,
			sagaPreviousUUID:  sagaPreviousUUID,
			body:              mergedBody,
			sourceDescription: sourceDescription,
			referenceTime:     referenceTime,
			ontology:          ontology,
			metadataFields:    len(frontmatter),
			start:             start,
		})
		resultCh <- result
	}

	position := s.enqueue(groupID, task)
	return position, resultCh, nil
}

// enqueue appends task to group's queue and spawns a worker when none is
// currently active for that group. The worker drains strictly in FIFO
// order and exits once its queue is empty; a later submission to the
// same group spawns a fresh worker.
func (s *Service) enqueue(groupID string, task func()) int {
	s.mu.Lock()
	q, ok := s.queues[groupID]
	if !ok {
		q = &groupQueue{}
		s.queues[groupID] = q
	}
	s.mu.Unlock()

	q.mu.Lock()
	q.pending = append(q.pending, task)
	position := len(q.pending)
	spawn := !q.active
	if spawn {
		q.active = true
	}
	q.mu.Unlock()

	if spawn {
		go s.drain(q)
	}
	return position
}

func (s *Service) drain(q *groupQueue) {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.active = false
			q.mu.Unlock()
			return
		}
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		next()
	}
}

type runInput struct {
	notePath          string
	noteName          string
	groupID           string
	sagaName          string
	sagaPreviousUUID  string
	body              string
	sourceDescription string
	referenceTime     time.Time
	ontology          *Ontology
	metadataFields    int
	start             time.Time
}

func (s *Service) runSubmission(ctx context.Context, in runInput) Result {
	sub := EpisodeSubmission{
		Body:              in.body,
		SourceDescription: in.sourceDescription,
		ReferenceTime:     in.referenceTime,
		SagaName:          in.sagaName,
		SagaPreviousUUID:  in.sagaPreviousUUID,
		Ontology:          in.ontology,
	}
	if s.graph.AcceptsGroupID() {
		sub.GroupID = in.groupID
	}

	uuid, metrics, err := s.graph.SubmitEpisode(ctx, sub)

	// Custom-ontology submissions fall back to a generic episode on any
	// failure, retried once before the failure is classified.
	if err != nil && in.ontology != nil {
		s.logger.Warn("custom ontology submission failed, retrying as generic text episode",
			zap.String("note_path", in.notePath), zap.Error(err))
		sub.Ontology = nil
		uuid, metrics, err = s.graph.SubmitEpisode(ctx, sub)
	}

	end := time.Now()
	result := Result{
		NotePath:                  in.notePath,
		NoteName:                  in.noteName,
		Namespace:                 in.groupID,
		SagaName:                  in.sagaName,
		ReferenceTime:             in.referenceTime,
		ProcessingDurationSeconds: end.Sub(in.start).Seconds(),
		StartTime:                 in.start,
		EndTime:                   end,
	}

	if err == nil {
		result.Status = "success"
		result.EpisodeUUID = uuid
		metrics.MetadataFields = in.metadataFields
		result.Metrics = &metrics
		return result
	}

	return classifyFailure(result, err)
}

func (s *Service) buildOntology(notePath string) *Ontology {
	if !s.cfg.UseCustomOntology || s.schemaReg == nil {
		return nil
	}
	loader := s.schemaReg.LoaderFor(s.cfg.VaultPath, "")
	loaded, err := loader.Load()
	if err != nil || loaded.IsEmpty() {
		return nil
	}
	return &Ontology{
		EntityTypes:        loaded.EntityTypes,
		EdgeTypes:          loaded.EdgeTypes,
		AllowedEdgesByPair: loaded.EdgeTypeMap,
	}
}

func sourceDescriptionFor(frontmatter map[string]any, cfg *config.Config) string {
	if v, ok := frontmatter["type"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if cfg.SourceDescription != "" {
		return cfg.SourceDescription
	}
	return "obsidian-note"
}

// referenceTimeKeys is the exact scan order the note's frontmatter is
// searched for a timestamp.
var referenceTimeKeys = []string{"date", "created", "created_at", "timestamp", "modified"}

var referenceTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func referenceTimeFor(frontmatter map[string]any) time.Time {
	for _, key := range referenceTimeKeys {
		v, ok := frontmatter[key]
		if !ok {
			continue
		}
		s := fmt.Sprintf("%v", v)
		if s == "" {
			continue
		}
		for _, layout := range referenceTimeLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Now().UTC()
}

func noteNameFrom(notePath string) string {
	p := strings.ReplaceAll(notePath, "\\", "/")
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		p = p[idx+1:]
	}
	return strings.TrimSuffix(p, ".md")
}

// mergeFrontmatterIntoBody re-serializes frontmatter as a --- delimited
// block at the top of body: scalars render as bare YAML-ish tokens,
// anything else (maps, slices) renders as a JSON literal on the same
// line, matching the episode body the graph ultimately extracts from.
func mergeFrontmatterIntoBody(frontmatter map[string]any, body string) string {
	if len(frontmatter) == 0 {
		return body
	}

	keys := make([]string, 0, len(frontmatter))
	for k := range frontmatter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("---\n")
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(scalarOrJSON(frontmatter[k]))
		sb.WriteString("\n")
	}
	sb.WriteString("---\n\n")
	sb.WriteString(body)
	return sb.String()
}

func scalarOrJSON(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool, int, int64, float64:
		return fmt.Sprintf("%v", t)
	default:
		return jsonLiteral(v)
	}
}
