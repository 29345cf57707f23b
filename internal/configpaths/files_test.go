package configpaths

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigDir_Override(t *testing.T) {
	t.Setenv("NSCON_CONFIG_DIR", "/tmp/nscon-test")
	dir, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/nscon-test", dir)
}

func TestConfigCandidatePaths_UserPathFirst(t *testing.T) {
	t.Setenv("NSCON_CONFIG_DIR", t.TempDir())

	j, y, tm := ConfigCandidatePaths("/srv/pad.yml")
	assert.Equal(t, "/srv/pad.yml", y[0])
	assert.NotContains(t, j, "/srv/pad.yml")

	j, _, tm = ConfigCandidatePaths("/srv/pad.toml")
	assert.Equal(t, "/srv/pad.toml", tm[0])

	j, _, _ = ConfigCandidatePaths("/srv/pad.conf")
	assert.Equal(t, "/srv/pad.conf", j[0], "unknown extensions go to the json loader")
}

func TestConfigCandidatePaths_SearchOrder(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NSCON_CONFIG_DIR", dir)

	j, _, _ := ConfigCandidatePaths("")
	require.NotEmpty(t, j)
	assert.Equal(t, "nscon.json", filepath.Base(j[0]))
	assert.Contains(t, j, filepath.Join(dir, "config.json"))
}

func TestExt(t *testing.T) {
	assert.Equal(t, "yaml", Ext("yml"))
	assert.Equal(t, "toml", Ext("toml"))
	assert.Equal(t, "json", Ext("xml"))
}

func TestLoadOrCreateKey(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NSCON_CONFIG_DIR", dir)

	_, err := ReadKey()
	assert.ErrorIs(t, err, fs.ErrNotExist)

	calls := 0
	gen := func() (string, error) {
		calls++
		return "s3cret-key", nil
	}
	key, path, created, err := LoadOrCreateKey(gen)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "s3cret-key", key)
	assert.Equal(t, filepath.Join(dir, KeyFileName), path)

	require.NoError(t, os.WriteFile(path, []byte(" edited \n"), 0o600))
	key, _, created, err = LoadOrCreateKey(gen)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "edited", key)
	assert.Equal(t, 1, calls)
}

func TestLoadOrCreateKey_GenerateFails(t *testing.T) {
	t.Setenv("NSCON_CONFIG_DIR", t.TempDir())
	_, _, _, err := LoadOrCreateKey(func() (string, error) { return "", errors.New("no entropy") })
	assert.ErrorContains(t, err, "no entropy")
}

func TestReadKey_Empty(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NSCON_CONFIG_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyFileName), []byte("\n"), 0o600))
	_, err := ReadKey()
	assert.ErrorContains(t, err, "empty")
}
