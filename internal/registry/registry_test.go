package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	r := Load(filepath.Join(t.TempDir(), "seen_ids.json"))
	assert.Equal(t, 0, r.Size())
	assert.False(t, r.IsDuplicate("hackernews", "123"))
}

func TestLoadCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen_ids.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	r := Load(path)
	assert.Equal(t, 0, r.Size())
}

func TestMarkSeenAndIsDuplicate(t *testing.T) {
	r := Load(filepath.Join(t.TempDir(), "seen_ids.json"))

	assert.False(t, r.IsDuplicate("reddit:sysadmin", "abc"))
	r.MarkSeen("reddit:sysadmin", "abc")
	assert.True(t, r.IsDuplicate("reddit:sysadmin", "abc"))

	// Same id under a different source is a different record.
	assert.False(t, r.IsDuplicate("reddit:startups", "abc"))
	assert.Equal(t, 1, r.Size())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "seen_ids.json")

	r := Load(path)
	r.MarkSeen("hackernews", "39001")
	r.MarkSeen("github:acme/widgets", "42")
	require.NoError(t, r.Save())

	// No temp file left behind.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	reloaded := Load(path)
	assert.Equal(t, 2, reloaded.Size())
	assert.True(t, reloaded.IsDuplicate("hackernews", "39001"))
	assert.True(t, reloaded.IsDuplicate("github:acme/widgets", "42"))
}

func TestSaveWritesMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen_ids.json")

	r := Load(path)
	r.MarkSeen("hackernews", "1")
	require.NoError(t, r.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var f struct {
		SeenIDs     []string `json:"seen_ids"`
		LastUpdated string   `json:"last_updated"`
		TotalCount  int      `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(data, &f))
	assert.Equal(t, []string{"hackernews:1"}, f.SeenIDs)
	assert.Equal(t, 1, f.TotalCount)
	assert.NotEmpty(t, f.LastUpdated)
}

func TestConcurrentMarkSeen(t *testing.T) {
	r := Load(filepath.Join(t.TempDir(), "seen_ids.json"))

	var wg sync.WaitGroup
	for _, source := range []string{"hackernews", "reddit:sysadmin", "github:a/b"} {
		source := source
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := string(rune('a' + i%26))
				r.MarkSeen(source, id)
				_ = r.IsDuplicate(source, id)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3*26, r.Size())
}
