package ingest

import "time"

// Envelope renders result into the wire shape shared by the MCP tool
// result, the WebSocket response, and the ingestion daemon's sync
// response: a flat map of exactly the fields the result actually has.
func (r Result) Envelope() map[string]any {
	out := map[string]any{
		"status":                      r.Status,
		"note_path":                   r.NotePath,
		"note_name":                   r.NoteName,
		"namespace":                   r.Namespace,
		"reference_time":              r.ReferenceTime.Format(time.RFC3339),
		"processing_duration_seconds": r.ProcessingDurationSeconds,
		"start_time":                  r.StartTime.Format(time.RFC3339),
		"end_time":                    r.EndTime.Format(time.RFC3339),
	}
	if r.SagaName != "" {
		out["saga_name"] = r.SagaName
	}
	if r.EpisodeUUID != "" {
		out["episode_uuid"] = r.EpisodeUUID
	}
	if r.Metrics != nil {
		out["metrics"] = map[string]any{
			"entities_count":      r.Metrics.EntitiesCount,
			"relationships_count": r.Metrics.RelationshipsCount,
			"content_length":      r.Metrics.ContentLength,
			"metadata_fields":     r.Metrics.MetadataFields,
		}
	}
	if r.Error != "" {
		out["error"] = r.Error
	}
	if r.ProviderMessage != "" {
		out["provider_message"] = r.ProviderMessage
	}
	if r.RetryAfterSeconds != 0 {
		out["retry_after"] = r.RetryAfterSeconds
	}
	if r.ResetTimeISO != "" {
		out["reset_time"] = r.ResetTimeISO
	}
	if r.CancelSync {
		out["cancel_sync"] = r.CancelSync
	}
	return out
}
