package dcache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyslice/pkg/pyast"
	"pyslice/pkg/refs"
)

func sampleDefUse() refs.DefUse {
	du := refs.NewDefUse()
	du.Definition.Add(refs.Ref{
		Name:     "x",
		Kind:     refs.KindVariable,
		Level:    refs.LevelDefinition,
		Location: pyast.Location{FirstLine: 1, FirstColumn: 1, LastLine: 1, LastColumn: 2, Path: "cell1"},
	})
	du.Use.Add(refs.Ref{
		Name:     "y",
		Kind:     refs.KindVariable,
		Level:    refs.LevelUse,
		Location: pyast.Location{FirstLine: 2, FirstColumn: 1, LastLine: 2, LastColumn: 2, Path: "cell1"},
	})
	return du
}

func TestCache_SetGet(t *testing.T) {
	c := New()
	du := sampleDefUse()
	c.Set("loc1", du)

	got, ok := c.Get("loc1")
	require.True(t, ok)
	assert.True(t, got.Equals(du))
}

func TestCache_GetMissingReturnsFalse(t *testing.T) {
	c := New()
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestCache_ResetClearsEntries(t *testing.T) {
	c := New()
	c.Set("loc1", sampleDefUse())
	require.Equal(t, 1, c.Len())

	c.Reset()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("loc1")
	assert.False(t, ok)
}

func TestCache_SaveLoadRoundTrip(t *testing.T) {
	c := New()
	c.Set("loc1", sampleDefUse())

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	restored := New()
	require.NoError(t, restored.Load(&buf))

	got, ok := restored.Get("loc1")
	require.True(t, ok)
	assert.True(t, got.Equals(sampleDefUse()))
}

func TestCache_LoadReplacesExistingEntries(t *testing.T) {
	c := New()
	c.Set("stale", sampleDefUse())

	var buf bytes.Buffer
	fresh := New()
	fresh.Set("loc1", sampleDefUse())
	require.NoError(t, fresh.Save(&buf))

	require.NoError(t, c.Load(&buf))
	_, ok := c.Get("stale")
	assert.False(t, ok, "Load replaces the cache wholesale rather than merging")
}

func TestCache_LoadInvalidDataReturnsError(t *testing.T) {
	c := New()
	err := c.Load(bytes.NewReader([]byte("not msgpack data at all, definitely invalid \x00\x01")))
	assert.Error(t, err)
}

func TestPersistToFileAndLoadFromFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.msgpack")

	c := New()
	c.Set("loc1", sampleDefUse())
	require.NoError(t, PersistToFile(c, path))

	restored := New()
	require.NoError(t, LoadFromFile(restored, path))

	got, ok := restored.Get("loc1")
	require.True(t, ok)
	assert.True(t, got.Equals(sampleDefUse()))
}

func TestLoadFromFile_MissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.msgpack")

	c := New()
	err := LoadFromFile(c, path)
	assert.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestLoadFromFile_UnreadableFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad-perms.msgpack")
	require.NoError(t, os.WriteFile(path, []byte("xx"), 0000))
	defer os.Chmod(path, 0644)

	if os.Getuid() == 0 {
		t.Skip("running as root bypasses file permission checks")
	}

	c := New()
	err := LoadFromFile(c, path)
	assert.Error(t, err)
}
