package ingest

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/vaultbridge/internal/namespace"
)

// syncRecordCacheTTL bounds how long a vault's sync.json stays cached
// before the next saga lookup re-reads it from disk. Short enough that a
// long ingestion daemon run still picks up records the plugin writes
// mid-session, long enough that a burst of notes in the same saga
// doesn't re-parse the file on every submission.
const syncRecordCacheTTL = 30 * time.Second

// syncRecordCache memoizes namespace.LoadSyncRecords per vault path. It
// is a thin, exact-key cache (not score-weighted), so Ristretto here
// plays the same narrow Get/Set role the schema loader gives
// golang-lru/v2 — chosen instead because this value churns on a TTL
// rather than capacity pressure, which Ristretto expresses natively via
// SetWithTTL.
type syncRecordCache struct {
	cache *ristretto.Cache
}

func newSyncRecordCache() *syncRecordCache {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return &syncRecordCache{}
	}
	return &syncRecordCache{cache: c}
}

func (c *syncRecordCache) Get(vaultPath string) []namespace.Sync {
	if c == nil || c.cache == nil {
		return namespace.LoadSyncRecords(vaultPath)
	}
	if v, ok := c.cache.Get(vaultPath); ok {
		records, _ := v.([]namespace.Sync)
		return records
	}
	records := namespace.LoadSyncRecords(vaultPath)
	c.cache.SetWithTTL(vaultPath, records, 1, syncRecordCacheTTL)
	c.cache.Wait()
	return records
}
