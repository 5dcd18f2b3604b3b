// Package eventpub optionally publishes episode-completion events over
// NATS for external observability pipelines. Nothing in the ingestion
// daemon's protocol correctness depends on a publish succeeding, or on
// a Publisher being configured at all.
package eventpub

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/vaultbridge/internal/jsonx"
)

const episodeCompletedSubject = "bridge.episode.completed"

// Publisher emits episode lifecycle events. Daemon holds one only when
// NATS_URL is configured; a nil Publisher means "don't bother".
type Publisher interface {
	PublishEpisodeCompleted(event EpisodeCompletedEvent) error
	Close()
}

// EpisodeCompletedEvent is the payload published once a sync command's
// episode submission finishes, success or failure alike.
type EpisodeCompletedEvent struct {
	Status      string `json:"status"`
	NotePath    string `json:"notePath"`
	Namespace   string `json:"namespace"`
	EpisodeUUID string `json:"episodeUuid,omitempty"`
	DurationMs  int64  `json:"durationMs"`
}

// NATSPublisher publishes EpisodeCompletedEvent to bridge.episode.completed.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// Connect dials url with retry-on-failed-connect dial options so a
// slow-starting NATS server doesn't fail the whole daemon startup.
func Connect(url string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn, logger: logger}, nil
}

// PublishEpisodeCompleted marshals event and publishes it. A publish
// failure is logged here and also returned to the caller.
func (p *NATSPublisher) PublishEpisodeCompleted(event EpisodeCompletedEvent) error {
	body, err := jsonx.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(episodeCompletedSubject, body); err != nil {
		p.logger.Warn("failed to publish episode.completed event", zap.Error(err))
		return err
	}
	return nil
}

// Close closes the NATS connection without draining it.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
