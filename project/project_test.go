package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("output", "o", "assets", "")
	fs.StringP("name", "n", "cubemap", "")
	fs.Float64("clamp", 1.0, "")
	fs.String("blend-file", "", "")
	fs.String("script", "", "")
	fs.Bool("keep-intermediate", false, "")
	return fs
}

func TestFindConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	got, err := FindConfig(nested)
	require.NoError(t, err)
	assert.Empty(t, got)

	writeConfig(t, root, "name: sky\n")
	got, err = FindConfig(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ConfigFileName), got)
}

func TestLoadDefaults(t *testing.T) {
	l, err := NewLoader(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, l.ConfigPath())

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
name: from-file
output: out
clamp: 4
blend_file: scenes/eq2cube.blend
tools:
  ktx: /opt/ktx/bin/ktx
`)

	t.Run("file", func(t *testing.T) {
		l, err := NewLoader(dir)
		require.NoError(t, err)
		cfg, err := l.Load()
		require.NoError(t, err)

		assert.Equal(t, "from-file", cfg.Name)
		assert.Equal(t, 4.0, cfg.Clamp)
		assert.Equal(t, filepath.Join(dir, "out"), cfg.Output)
		assert.Equal(t, filepath.Join(dir, "scenes", "eq2cube.blend"), cfg.BlendFile)
		assert.Equal(t, "/opt/ktx/bin/ktx", cfg.Tools.KTX)
		assert.Equal(t, "blender", cfg.Tools.Blender)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("BLENDER_ENVMAP_NAME", "from-env")
		t.Setenv("BLENDER_ENVMAP_TOOLS_BLENDER", "/usr/local/bin/blender")
		t.Setenv("BLENDER_ENVMAP_OUTPUT", "env-out")

		l, err := NewLoader(dir)
		require.NoError(t, err)
		cfg, err := l.Load()
		require.NoError(t, err)

		assert.Equal(t, "from-env", cfg.Name)
		assert.Equal(t, "/usr/local/bin/blender", cfg.Tools.Blender)
		assert.Equal(t, "env-out", cfg.Output)
	})

	t.Run("flag over env", func(t *testing.T) {
		t.Setenv("BLENDER_ENVMAP_NAME", "from-env")

		fs := testFlags()
		require.NoError(t, fs.Parse([]string{"--name", "from-flag", "--clamp", "2.5", "-o", "flag-out"}))

		l, err := NewLoader(dir)
		require.NoError(t, err)
		require.NoError(t, l.BindFlags(fs))
		cfg, err := l.Load()
		require.NoError(t, err)

		assert.Equal(t, "from-flag", cfg.Name)
		assert.Equal(t, 2.5, cfg.Clamp)
		assert.Equal(t, "flag-out", cfg.Output)
	})

	t.Run("unset flags keep file values", func(t *testing.T) {
		fs := testFlags()
		require.NoError(t, fs.Parse(nil))

		l, err := NewLoader(dir)
		require.NoError(t, err)
		require.NoError(t, l.BindFlags(fs))
		cfg, err := l.Load()
		require.NoError(t, err)

		assert.Equal(t, "from-file", cfg.Name)
		assert.Equal(t, 4.0, cfg.Clamp)
	})
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "name: [unterminated\n")

	l, err := NewLoader(dir)
	require.NoError(t, err)
	_, err = l.Load()
	assert.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteDefault(dir, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, "cubemap", cfg.Name)
	assert.Equal(t, "assets", cfg.Output)
	assert.Equal(t, 1.0, cfg.Clamp)
	assert.Equal(t, "eq2cube.blend", cfg.BlendFile)
	assert.Equal(t, "ktx", cfg.Tools.KTX)

	_, err = WriteDefault(dir, false)
	assert.ErrorIs(t, err, ErrConfigExists)

	_, err = WriteDefault(dir, true)
	assert.NoError(t, err)
}
