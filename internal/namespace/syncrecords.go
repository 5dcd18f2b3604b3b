package namespace

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/vaultbridge/internal/jsonx"
)

// PluginID names the plugin directory under .obsidian/plugins that owns
// the sync-records and schema files. This project invents its own id
// rather than carrying over the original source's hardcoded plugin
// identifier.
const PluginID = "vaultbridge"

// Sync is one saga/episode pairing recorded by the plugin after a
// successful ingestion.
type Sync struct {
	SagaName    string `json:"saga_name"`
	EpisodeUUID string `json:"episode_uuid"`
	LastSync    string `json:"last_sync"` // ISO 8601, compared lexically
}

type syncRecordEntry struct {
	Syncs []Sync `json:"syncs"`
}

type syncRecordsFile struct {
	SyncRecords []syncRecordEntry `json:"sync_records"`
}

// LoadSyncRecords reads <vault>/.obsidian/plugins/<plugin-id>/sync.json.
// Any failure — missing file, unreadable, malformed JSON — yields an
// empty slice rather than an error; this file is optional, best-effort
// state the plugin itself owns.
func LoadSyncRecords(vaultPath string) []Sync {
	path := filepath.Join(vaultPath, ".obsidian", "plugins", PluginID, "sync.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var f syncRecordsFile
	if err := jsonx.Unmarshal(raw, &f); err != nil {
		return nil
	}
	var all []Sync
	for _, entry := range f.SyncRecords {
		all = append(all, entry.Syncs...)
	}
	return all
}

// FindPreviousInSaga selects every record whose SagaName matches and
// whose EpisodeUUID is non-empty, then returns the EpisodeUUID of the
// one with the lexically greatest LastSync (ISO 8601 timestamps sort
// lexically by recency). Returns ("", false) when nothing matches.
func FindPreviousInSaga(sagaName string, records []Sync) (string, bool) {
	var matches []Sync
	for _, r := range records {
		if r.SagaName == sagaName && r.EpisodeUUID != "" {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].LastSync > matches[j].LastSync
	})
	return matches[0].EpisodeUUID, true
}
