package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultbridge/internal/bridgeerr"
	"github.com/vaultbridge/internal/config"
)

type fakeNoteReader struct {
	notes map[string]string
}

func (f *fakeNoteReader) ReadNote(_ context.Context, notePath string) (string, error) {
	n, ok := f.notes[notePath]
	if !ok {
		return "", errors.New("not found")
	}
	return n, nil
}

type fakeGraphClient struct {
	mu           sync.Mutex
	acceptsGroup bool
	calls        []EpisodeSubmission
	order        []string
	err          error
}

func (f *fakeGraphClient) AcceptsGroupID() bool { return f.acceptsGroup }

func (f *fakeGraphClient) SubmitEpisode(_ context.Context, sub EpisodeSubmission) (string, EpisodeMetrics, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sub)
	f.order = append(f.order, sub.Body)
	f.mu.Unlock()
	if f.err != nil {
		return "", EpisodeMetrics{}, f.err
	}
	return "episode-uuid-1", EpisodeMetrics{EntitiesCount: 2, RelationshipsCount: 1, ContentLength: len(sub.Body)}, nil
}

func baseConfig() *config.Config {
	return &config.Config{DefaultNamespace: "books", SagaGrouping: "none"}
}

func TestSubmitSuccessPopulatesResult(t *testing.T) {
	notes := &fakeNoteReader{notes: map[string]string{"a.md": "---\ntype: journal\n---\nhello world"}}
	graph := &fakeGraphClient{acceptsGroup: true}
	svc := New(baseConfig(), notes, graph, nil, nil)

	pos, ch, err := svc.Submit(context.Background(), "a.md")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	select {
	case result := <-ch:
		assert.Equal(t, "success", result.Status)
		assert.Equal(t, "episode-uuid-1", result.EpisodeUUID)
		assert.Equal(t, "a", result.NoteName)
		require.NotNil(t, result.Metrics)
		assert.Equal(t, 2, result.Metrics.EntitiesCount)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}

	require.Len(t, graph.calls, 1)
	assert.Equal(t, "books", graph.calls[0].GroupID)
}

func TestSubmitGroupIDOmittedWhenBackendDoesNotAcceptIt(t *testing.T) {
	notes := &fakeNoteReader{notes: map[string]string{"a.md": "body only"}}
	graph := &fakeGraphClient{acceptsGroup: false}
	svc := New(baseConfig(), notes, graph, nil, nil)

	_, ch, err := svc.Submit(context.Background(), "a.md")
	require.NoError(t, err)
	<-ch

	require.Len(t, graph.calls, 1)
	assert.Empty(t, graph.calls[0].GroupID)
}

func TestSubmitMissingNoteIsNotFoundError(t *testing.T) {
	notes := &fakeNoteReader{notes: map[string]string{}}
	graph := &fakeGraphClient{}
	svc := New(baseConfig(), notes, graph, nil, nil)

	_, _, err := svc.Submit(context.Background(), "missing.md")
	require.Error(t, err)
	assert.Equal(t, bridgeerr.NotFound, bridgeerr.KindOf(err))
}

func TestSubmitSerializesWithinGroupAcrossGoroutines(t *testing.T) {
	notes := &fakeNoteReader{notes: map[string]string{
		"a.md": "first", "b.md": "second", "c.md": "third",
	}}
	graph := &fakeGraphClient{acceptsGroup: true}
	svc := New(baseConfig(), notes, graph, nil, nil)

	var wg sync.WaitGroup
	chans := make([]<-chan Result, 3)
	for i, path := range []string{"a.md", "b.md", "c.md"} {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			_, ch, err := svc.Submit(context.Background(), path)
			require.NoError(t, err)
			chans[i] = ch
		}(i, path)
	}
	wg.Wait()

	for _, ch := range chans {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for result")
		}
	}

	assert.Len(t, graph.order, 3, "all three submissions for the same group must have run")
}

func TestSubmitCrossGroupConcurrency(t *testing.T) {
	notes := &fakeNoteReader{notes: map[string]string{"g1/a.md": "x", "g2/a.md": "y"}}
	graph := &fakeGraphClient{acceptsGroup: true}

	cfg := &config.Config{
		DefaultNamespace:        "default",
		SagaGrouping:            "none",
		EnableFolderNamespacing: true,
		FolderNamespaceMappings: []config.FolderMapping{
			{FolderPath: "g1", GroupID: "group-one"},
			{FolderPath: "g2", GroupID: "group-two"},
		},
	}
	svc := New(cfg, notes, graph, nil, nil)

	_, ch1, err := svc.Submit(context.Background(), "g1/a.md")
	require.NoError(t, err)
	_, ch2, err := svc.Submit(context.Background(), "g2/a.md")
	require.NoError(t, err)

	<-ch1
	<-ch2
	assert.Len(t, graph.calls, 2)
}

func TestReferenceTimeFallsBackToFrontmatterScanOrder(t *testing.T) {
	got := referenceTimeFor(map[string]any{"modified": "2030-05-01", "created": "2029-01-01T10:00:00"})
	assert.Equal(t, 2029, got.Year())
	assert.Equal(t, time.January, got.Month())
}

func TestReferenceTimeDefaultsToNowWhenAbsent(t *testing.T) {
	before := time.Now().UTC()
	got := referenceTimeFor(map[string]any{})
	assert.True(t, !got.Before(before))
}

func TestMergeFrontmatterIntoBodyProducesDelimitedBlock(t *testing.T) {
	merged := mergeFrontmatterIntoBody(map[string]any{"type": "journal", "tags": []any{"a", "b"}}, "body text")
	assert.Contains(t, merged, "---\n")
	assert.Contains(t, merged, "type: journal")
	assert.Contains(t, merged, "body text")
}

func TestMergeFrontmatterIntoBodyNoOpWhenEmpty(t *testing.T) {
	assert.Equal(t, "body text", mergeFrontmatterIntoBody(nil, "body text"))
}

func TestClassifyFailureRateLimitedParsesResetTime(t *testing.T) {
	result := classifyFailure(Result{}, errors.New("You will regain access on 2030-01-02 at 03:04 UTC"))
	assert.Equal(t, "rate_limited", result.Status)
	assert.NotEmpty(t, result.ResetTimeISO)
	assert.Greater(t, result.RetryAfterSeconds, 0)
}

func TestClassifyFailureInfrastructureErrorSetsCancelSync(t *testing.T) {
	result := classifyFailure(Result{}, errors.New("<html><body>Internal Server Error</body></html>"))
	assert.Equal(t, "infrastructure_error", result.Status)
	assert.True(t, result.CancelSync)
}

func TestClassifyFailureOtherPassesThroughVerbatim(t *testing.T) {
	result := classifyFailure(Result{}, errors.New("note already deleted"))
	assert.Equal(t, "failed", result.Status)
	assert.Equal(t, "note already deleted", result.Error)
}

func TestRunSubmissionFallsBackToGenericOnCustomOntologyFailure(t *testing.T) {
	notes := &fakeNoteReader{}
	graph := &fakeGraphClientOntologyFallback{}
	svc := New(baseConfig(), notes, graph, nil, nil)

	result := svc.runSubmission(context.Background(), runInput{
		notePath: "a.md",
		noteName: "a",
		groupID:  "books",
		body:     "body",
		ontology: &Ontology{EntityTypes: nil},
		start:    time.Now(),
	})
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 2, graph.calls, "must retry once as generic after the ontology-aware call fails")
}

type fakeGraphClientOntologyFallback struct {
	calls int
}

func TestEnvelopeOmitsUnsetOptionalFields(t *testing.T) {
	result := Result{Status: "success", NotePath: "a.md", NoteName: "a", Namespace: "books"}
	env := result.Envelope()
	_, hasSaga := env["saga_name"]
	_, hasError := env["error"]
	assert.False(t, hasSaga)
	assert.False(t, hasError)
	assert.Equal(t, "success", env["status"])
}

func TestEnvelopeIncludesRateLimitFields(t *testing.T) {
	result := Result{Status: "rate_limited", RetryAfterSeconds: 30, ResetTimeISO: "2030-01-02T03:04:00Z"}
	env := result.Envelope()
	assert.Equal(t, 30, env["retry_after"])
	assert.Equal(t, "2030-01-02T03:04:00Z", env["reset_time"])
}

func (f *fakeGraphClientOntologyFallback) AcceptsGroupID() bool { return false }

func (f *fakeGraphClientOntologyFallback) SubmitEpisode(_ context.Context, sub EpisodeSubmission) (string, EpisodeMetrics, error) {
	f.calls++
	if sub.Ontology != nil {
		return "", EpisodeMetrics{}, errors.New("ontology rejected")
	}
	return "fallback-uuid", EpisodeMetrics{}, nil
}
