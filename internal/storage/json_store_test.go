package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Names []string `json:"names"`
}

func TestJSONStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	js, err := NewJSONStore(dir, "data.json")
	require.NoError(t, err)

	var empty doc
	require.NoError(t, js.Load(&empty))
	assert.Nil(t, empty.Names)

	require.NoError(t, js.Save(doc{Names: []string{"alice", "bob"}}))

	var got doc
	require.NoError(t, js.Load(&got))
	assert.Equal(t, []string{"alice", "bob"}, got.Names)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestJSONStoreLoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.json"), []byte("{nope"), 0o600))

	js, err := NewJSONStore(dir, "data.json")
	require.NoError(t, err)

	var got doc
	assert.Error(t, js.Load(&got))
}
