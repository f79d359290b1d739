package bake

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/bloodmagesoftware/blender-envmap/ktx"
	"github.com/bloodmagesoftware/blender-envmap/tools"
	"github.com/bloodmagesoftware/blender-envmap/tools/toolstest"
	"github.com/bloodmagesoftware/blender-envmap/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	binDir  string
	workDir string
	opts    Options
	marker  string
	out     *bytes.Buffer
	errOut  *bytes.Buffer
	console *ui.Console
}

// newFixture installs fake tools and returns options pointing at a fresh
// environment map and blend file.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		binDir:  toolstest.Setup(t),
		workDir: t.TempDir(),
		out:     &bytes.Buffer{},
		errOut:  &bytes.Buffer{},
	}
	f.console = ui.New(f.out, f.errOut, true)
	f.marker = filepath.Join(f.workDir, "blender-ran")
	t.Setenv("XDG_DATA_HOME", filepath.Join(f.workDir, "data"))

	envmap := filepath.Join(f.workDir, "sky.exr")
	require.NoError(t, os.WriteFile(envmap, []byte("exr"), 0644))
	blend := filepath.Join(f.workDir, "eq2cube.blend")
	require.NoError(t, os.WriteFile(blend, []byte("blend"), 0644))

	toolstest.Script(t, f.binDir, "blender", fmt.Sprintf(": > %q\n", f.marker)+toolstest.Blender)
	toolstest.Script(t, f.binDir, "oiiotool", toolstest.OIIOTool)
	toolstest.Script(t, f.binDir, "ktx", toolstest.KTX)

	f.opts = DefaultOptions(envmap)
	f.opts.BlendFile = blend
	f.opts.Output = filepath.Join(f.workDir, "assets")
	f.opts.CacheDir = filepath.Join(f.workDir, "cache")
	return f
}

func (f *fixture) run(t *testing.T) (*Result, error) {
	t.Helper()
	f.out.Reset()
	f.errOut.Reset()
	return Run(context.Background(), f.opts, f.console)
}

func (f *fixture) blenderRan() bool {
	_, err := os.Stat(f.marker)
	return err == nil
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunDefaults(t *testing.T) {
	f := newFixture(t)

	res, err := f.run(t)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Empty(t, res.WorkDir)

	assert.ElementsMatch(t, []string{"cubemap-specular.ktx2", "cubemap-diffuse.ktx2"}, listDir(t, f.opts.Output))
	require.Len(t, res.Artifacts, 2)
	assert.Equal(t, ktx.Specular, res.Artifacts[0].Kind)
	assert.Equal(t, ktx.Diffuse, res.Artifacts[1].Kind)
	assert.Equal(t, int64(5), res.Artifacts[0].Size)

	out := f.out.String()
	assert.Contains(t, out, "Blender Environment Map Baker")
	assert.Contains(t, out, "Successfully created environment map")
	assert.Contains(t, out, "cubemap-specular.ktx2")
	assert.Contains(t, f.errOut.String(), "Baking cubemap (diffuse)... 100%")
	assert.NotContains(t, f.errOut.String(), "......")
}

func TestRunNameAndOutput(t *testing.T) {
	f := newFixture(t)
	f.opts.Name = "foo"
	f.opts.Output = filepath.Join(f.workDir, "nested", "textures")

	_, err := f.run(t)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"foo-specular.ktx2", "foo-diffuse.ktx2"}, listDir(t, f.opts.Output))
}

func TestRunKeepIntermediate(t *testing.T) {
	f := newFixture(t)
	f.opts.KeepIntermediate = true

	res, err := f.run(t)
	require.NoError(t, err)
	require.NotEmpty(t, res.WorkDir)
	t.Cleanup(func() { os.RemoveAll(res.WorkDir) })

	assert.FileExists(t, filepath.Join(res.WorkDir, "baked", "cubemap_mip0.hdr"))
	assert.FileExists(t, filepath.Join(res.WorkDir, "cropped", "diffuse", "0006.exr"))
	assert.Contains(t, f.out.String(), res.WorkDir)
}

func TestRunKeepIntermediateOnFailure(t *testing.T) {
	f := newFixture(t)
	f.opts.KeepIntermediate = true
	toolstest.Script(t, f.binDir, "oiiotool", toolstest.Failing("oiiotool ERROR: could not open file", "3"))

	res, err := f.run(t)
	require.Error(t, err)
	require.NotNil(t, res)
	require.NotEmpty(t, res.WorkDir)
	t.Cleanup(func() { os.RemoveAll(res.WorkDir) })

	assert.DirExists(t, res.WorkDir)
	assert.Contains(t, f.out.String(), "Intermediate files kept in "+res.WorkDir)
}

func TestRunMissingTool(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(f.binDir, "ktx")))

	_, err := f.run(t)
	var nf *tools.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, tools.KTX, nf.Tool)
	assert.Contains(t, err.Error(), "KTX-Software")
	assert.False(t, f.blenderRan(), "no tool may run when one is missing")
	assert.Empty(t, listDir(t, f.opts.Output))
}

func TestRunToolFailure(t *testing.T) {
	f := newFixture(t)
	toolstest.Script(t, f.binDir, "oiiotool", toolstest.Failing("oiiotool ERROR: could not open file", "3"))

	_, err := f.run(t)
	var exitErr *tools.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, exitErr.Stderr, "oiiotool ERROR: could not open file")
	assert.True(t, f.blenderRan())
	assert.Empty(t, listDir(t, f.opts.Output))
}

func TestRunCache(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t)
	require.NoError(t, err)

	require.NoError(t, os.Remove(f.marker))
	res, err := f.run(t)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.False(t, f.blenderRan())
	assert.Contains(t, f.out.String(), "up to date")
	require.Len(t, res.Artifacts, 2)

	f.opts.Force = true
	res, err = f.run(t)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.True(t, f.blenderRan())

	// A changed clamp value invalidates the entry.
	require.NoError(t, os.Remove(f.marker))
	f.opts.Force = false
	f.opts.Clamp = 8
	res, err = f.run(t)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.True(t, f.blenderRan())
}

func TestValidate(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		modify func(o *Options)
		usage  bool
		errMsg string
	}{
		{
			name:   "missing input",
			modify: func(o *Options) { o.EnvironmentMap = filepath.Join(f.workDir, "nope.exr") },
			errMsg: "environment map not found",
		},
		{
			name:   "input is a directory",
			modify: func(o *Options) { o.EnvironmentMap = f.workDir },
			errMsg: "is a directory",
		},
		{
			name: "bad extension",
			modify: func(o *Options) {
				p := filepath.Join(f.workDir, "sky.png")
				require.NoError(t, os.WriteFile(p, nil, 0644))
				o.EnvironmentMap = p
			},
			usage:  true,
			errMsg: "expected a .hdr or .exr file",
		},
		{
			name:   "zero clamp",
			modify: func(o *Options) { o.Clamp = 0 },
			usage:  true,
			errMsg: "invalid clamp value",
		},
		{
			name:   "infinite clamp",
			modify: func(o *Options) { o.Clamp = math.Inf(1) },
			usage:  true,
			errMsg: "invalid clamp value",
		},
		{
			name:   "empty name",
			modify: func(o *Options) { o.Name = "" },
			usage:  true,
			errMsg: "name must not be empty",
		},
		{
			name:   "name with separator",
			modify: func(o *Options) { o.Name = "a/b" },
			usage:  true,
			errMsg: "invalid name",
		},
		{
			name:   "missing blend file",
			modify: func(o *Options) { o.BlendFile = filepath.Join(f.workDir, "missing.blend") },
			errMsg: "blend file not found",
		},
		{
			name:   "missing script",
			modify: func(o *Options) { o.Script = filepath.Join(f.workDir, "missing.py") },
			errMsg: "bake script not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := f.opts
			tt.modify(&opts)

			_, err := Run(context.Background(), opts, f.console)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Equal(t, tt.usage, IsUsageError(err))
			assert.False(t, f.blenderRan())
		})
	}
}

func TestValidateUppercaseExtension(t *testing.T) {
	f := newFixture(t)
	p := filepath.Join(f.workDir, "SKY.HDR")
	require.NoError(t, os.WriteFile(p, nil, 0644))
	f.opts.EnvironmentMap = p

	_, err := Validate(f.opts)
	assert.NoError(t, err)
}

func TestValidateCreatesOutput(t *testing.T) {
	f := newFixture(t)
	f.opts.Output = filepath.Join(f.workDir, "a", "b", "c")

	_, err := Validate(f.opts)
	require.NoError(t, err)
	assert.DirExists(t, f.opts.Output)
	assert.Empty(t, listDir(t, f.opts.Output))
}

func TestResolveBlendFile(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("data directory is not XDG based")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	dataHome := filepath.Join(dir, "data")
	t.Setenv("XDG_DATA_HOME", dataHome)

	_, err := ResolveBlendFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "install --blend-file")

	// Found in the user data directory.
	installed := filepath.Join(dataHome, "blender-envmap", DefaultBlendFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(installed), 0755))
	require.NoError(t, os.WriteFile(installed, nil, 0644))
	got, err := ResolveBlendFile("")
	require.NoError(t, err)
	assert.Equal(t, installed, got)

	// The working directory wins.
	require.NoError(t, os.WriteFile(DefaultBlendFile, nil, 0644))
	got, err = ResolveBlendFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBlendFile, got)

	got, err = ResolveBlendFile(installed)
	require.NoError(t, err)
	assert.Equal(t, installed, got)
}
