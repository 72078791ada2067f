package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresetManagerSetGetDelete(t *testing.T) {
	dir := t.TempDir()
	m, err := NewPresetManager(dir)
	require.NoError(t, err)

	err = m.Set("luma1", Preset{"id": "luma1", "resource": "luma01.pgm"})
	require.NoError(t, err)

	got, ok := m.Get("luma1")
	require.True(t, ok)
	require.Equal(t, "luma01.pgm", got["resource"])

	require.FileExists(t, filepath.Join(dir, "luma1.json"))

	require.NoError(t, m.Delete("luma1"))
	_, ok = m.Get("luma1")
	require.False(t, ok)

	err = m.Delete("luma1")
	require.True(t, errors.Is(err, ErrPresetNotExist))
}

func TestPresetManagerReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	m, err := NewPresetManager(dir)
	require.NoError(t, err)
	require.NoError(t, m.Set("a", Preset{"id": "a"}))

	m2, err := NewPresetManager(dir)
	require.NoError(t, err)
	require.Contains(t, m2.Names(), "a")
}
