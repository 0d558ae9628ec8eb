// Package registry tracks source identifiers already collected in prior
// runs so collectors never emit the same post twice.
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Registry is the cross-run set of already-seen "source:source_id" keys.
// It is advisory: a missing or corrupt file loads as empty rather than
// blocking collection. Safe for concurrent use by multiple collectors.
type Registry struct {
	path string

	mu      sync.RWMutex
	seenIDs map[string]struct{}
}

type registryFile struct {
	SeenIDs     []string `json:"seen_ids"`
	LastUpdated string   `json:"last_updated"`
	TotalCount  int      `json:"total_count"`
}

// Load reads the registry file at path. A missing or unreadable file is
// treated as an empty registry.
func Load(path string) *Registry {
	r := &Registry{
		path:    path,
		seenIDs: make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("registry: unreadable file, starting empty",
				zap.String("path", path), zap.Error(err))
		}
		return r
	}

	var f registryFile
	if err := json.Unmarshal(data, &f); err != nil {
		zap.L().Warn("registry: corrupt file, starting empty",
			zap.String("path", path), zap.Error(err))
		return r
	}

	for _, id := range f.SeenIDs {
		r.seenIDs[id] = struct{}{}
	}
	return r
}

// IsDuplicate reports whether the (source, id) pair was seen before.
func (r *Registry) IsDuplicate(source, id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.seenIDs[source+":"+id]
	return ok
}

// MarkSeen records the pair; it takes effect immediately for subsequent
// lookups in the same run.
func (r *Registry) MarkSeen(source, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seenIDs[source+":"+id] = struct{}{}
}

// Size returns the number of tracked identifiers.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.seenIDs)
}

// Save writes the full set plus metadata, replacing prior state. The write
// goes through a temp file and rename so a crash never leaves a truncated
// registry behind.
func (r *Registry) Save() error {
	r.mu.RLock()
	ids := make([]string, 0, len(r.seenIDs))
	for id := range r.seenIDs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	f := registryFile{
		SeenIDs:     ids,
		LastUpdated: time.Now().Format(time.RFC3339),
		TotalCount:  len(ids),
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return eris.Wrap(err, "registry: marshal")
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return eris.Wrap(err, "registry: mkdir")
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "registry: write temp")
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return eris.Wrap(err, "registry: rename")
	}
	return nil
}
