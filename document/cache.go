package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/maypok86/otter"
	"github.com/spf13/afero"
)

const snapshotCacheCapacity = 128

// SnapshotCache keeps the latest tree per session in memory and mirrors it
// to a snapshot file so an open session survives a reload. Writes are
// best-effort; a failed file write is logged and dropped.
type SnapshotCache struct {
	cache *otter.Cache[uuid.UUID, []Element]
	fs    afero.Fs
	dir   string
}

func NewSnapshotCache(fs afero.Fs, dir string) (*SnapshotCache, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	cache, err := otter.MustBuilder[uuid.UUID, []Element](snapshotCacheCapacity).Build()
	if err != nil {
		return nil, err
	}

	return &SnapshotCache{
		cache: &cache,
		fs:    fs,
		dir:   dir,
	}, nil
}

// Store records the snapshot. It satisfies the Subscriber signature so the
// cache can be wired directly into a store's subscriber list.
func (c *SnapshotCache) Store(ctx context.Context, snapshot Snapshot) {
	c.cache.Set(snapshot.SessionID, snapshot.Elements)

	data, err := json.Marshal(snapshot.Elements)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode tree snapshot",
			"session_id", snapshot.SessionID,
			"error", err,
		)
		return
	}

	if err := afero.WriteFile(c.fs, c.snapshotPath(snapshot.SessionID), data, 0o644); err != nil {
		slog.WarnContext(ctx, "failed to persist tree snapshot",
			"session_id", snapshot.SessionID,
			"error", err,
		)
	}
}

// Load returns the latest known tree for the session, falling back to the
// snapshot file when the in-memory entry is gone.
func (c *SnapshotCache) Load(sessionID uuid.UUID) ([]Element, bool) {
	if elements, ok := c.cache.Get(sessionID); ok {
		return cloneElements(elements), true
	}

	data, err := afero.ReadFile(c.fs, c.snapshotPath(sessionID))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read tree snapshot", "session_id", sessionID, "error", err)
		}
		return nil, false
	}

	var elements []Element
	if err := json.Unmarshal(data, &elements); err != nil {
		slog.Warn("failed to decode tree snapshot", "session_id", sessionID, "error", err)
		return nil, false
	}

	c.cache.Set(sessionID, elements)
	return cloneElements(elements), true
}

// Evict drops the session from memory and removes its snapshot file.
func (c *SnapshotCache) Evict(sessionID uuid.UUID) {
	c.cache.Delete(sessionID)
	if err := c.fs.Remove(c.snapshotPath(sessionID)); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove tree snapshot", "session_id", sessionID, "error", err)
	}
}

func (c *SnapshotCache) snapshotPath(sessionID uuid.UUID) string {
	return filepath.Join(c.dir, sessionID.String()+".json")
}
