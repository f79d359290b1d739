package bake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bloodmagesoftware/blender-envmap/blender"
	"github.com/bloodmagesoftware/blender-envmap/cache"
	"github.com/bloodmagesoftware/blender-envmap/ktx"
	"github.com/bloodmagesoftware/blender-envmap/logger"
	"github.com/bloodmagesoftware/blender-envmap/oiio"
	"github.com/bloodmagesoftware/blender-envmap/platform"
	"github.com/bloodmagesoftware/blender-envmap/project"
	"github.com/bloodmagesoftware/blender-envmap/tools"
	"github.com/bloodmagesoftware/blender-envmap/ui"
)

// ToolPaths holds the resolved executables.
type ToolPaths struct {
	Blender  string
	OIIOTool string
	KTX      string
}

// Preflight resolves every tool the pipeline needs, failing on the first
// missing one.
func Preflight(overrides project.Tools) (ToolPaths, error) {
	var paths ToolPaths
	for _, t := range []struct {
		name     string
		override string
		dst      *string
	}{
		{tools.Blender, overrides.Blender, &paths.Blender},
		{tools.OIIOTool, overrides.OIIOTool, &paths.OIIOTool},
		{tools.KTX, overrides.KTX, &paths.KTX},
	} {
		p, err := tools.Lookup(t.name, t.override)
		if err != nil {
			return paths, err
		}
		logger.Debug().Str("tool", t.name).Str("path", p).Msg("resolved tool")
		*t.dst = p
	}
	return paths, nil
}

// Result describes a finished run.
type Result struct {
	Artifacts []ktx.Artifact
	Skipped   bool   // outputs were up to date
	WorkDir   string // kept intermediate files, if requested
}

// Outputs returns the two texture paths for opts.
func Outputs(opts Options) []string {
	out := make([]string, 0, len(ktx.Kinds))
	for _, k := range ktx.Kinds {
		out = append(out, ktx.OutputPath(opts.Output, opts.Name, k))
	}
	return out
}

// geometry identifies the bake layout in cache hashes.
var geometry = fmt.Sprintf("%d/%d/%d", blender.BaseFaceSize, blender.SpecularLevels, blender.DiffuseFaceSize)

// Run validates opts, checks the tools and runs the bake, crop and
// packaging steps. Nothing external runs when validation fails.
func Run(ctx context.Context, opts Options, c *ui.Console) (*Result, error) {
	opts, err := Validate(opts)
	if err != nil {
		return nil, err
	}

	paths, err := Preflight(opts.Tools)
	if err != nil {
		return nil, err
	}

	c.Header("Blender Environment Map Baker", "Converting HDR to PBR Cubemaps")
	c.Settings(settingsRows(opts))

	store, key, hash := openCache(opts)
	if store != nil && !opts.Force && store.UpToDate(key, hash, Outputs(opts)) {
		artifacts, err := existingArtifacts(opts)
		if err == nil {
			c.Success(fmt.Sprintf("Environment map in %s is up to date (use --force to rebake)", opts.Output))
			printArtifacts(c, artifacts)
			return &Result{Artifacts: artifacts, Skipped: true}, nil
		}
		logger.Debug().Err(err).Msg("cached outputs unreadable, rebaking")
	}

	workDir, err := os.MkdirTemp("", platform.AppName+"-*")
	if err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}
	result := &Result{}
	if opts.KeepIntermediate {
		result.WorkDir = workDir
	} else {
		defer func() {
			if err := os.RemoveAll(workDir); err != nil {
				logger.Warn().Err(err).Str("dir", workDir).Msg("failed to remove work directory")
			}
		}()
	}

	artifacts, err := runSteps(ctx, c, opts, paths, workDir)
	if err != nil {
		if opts.KeepIntermediate {
			c.Muted("Intermediate files kept in %s", workDir)
		}
		return result, err
	}
	result.Artifacts = artifacts

	if store != nil {
		if err := store.Record(key, hash); err != nil {
			logger.Warn().Err(err).Msg("failed to update bake cache")
		}
	}

	c.Success(fmt.Sprintf("Successfully created environment map in %s directory", opts.Output))
	printArtifacts(c, artifacts)
	if opts.KeepIntermediate {
		c.Muted("Intermediate files kept in %s", workDir)
	}

	return result, nil
}

// runSteps bakes, crops and packages inside workDir.
func runSteps(ctx context.Context, c *ui.Console, opts Options, paths ToolPaths, workDir string) ([]ktx.Artifact, error) {
	bakedDir := filepath.Join(workDir, "baked")
	croppedDir := filepath.Join(workDir, "cropped")

	if err := bakeStep(ctx, c, opts, paths, workDir, bakedDir); err != nil {
		return nil, err
	}
	if err := cropStep(ctx, c, paths, bakedDir, croppedDir); err != nil {
		return nil, err
	}
	return packageStep(ctx, c, opts, paths, croppedDir)
}

func bakeStep(ctx context.Context, c *ui.Console, opts Options, paths ToolPaths, workDir, bakedDir string) error {
	cfg := blender.Config{
		BlenderPath:    paths.Blender,
		BlendFile:      opts.BlendFile,
		Script:         opts.Script,
		EnvironmentMap: opts.EnvironmentMap,
		WhitePoint:     opts.Clamp,
		OutDir:         bakedDir,
		WorkDir:        workDir,
	}
	script := opts.Script
	if script == "" {
		script = filepath.Join(workDir, blender.ScriptName)
	}
	c.Step("Baking cubemap", tools.Cmd{Tool: tools.Blender, Args: blender.Args(cfg, script)}.String())

	pb := c.NewProgressBar(blender.Steps, "Baking cubemap")
	pb.Set(0, "")
	err := blender.Bake(ctx, cfg, func(p blender.Progress) {
		pb.Set(p.Done, fmt.Sprintf("Baking cubemap (%s)", p.Label))
	})
	if err != nil {
		pb.Abort()
		return err
	}
	pb.Finish()
	return nil
}

func cropStep(ctx context.Context, c *ui.Console, paths ToolPaths, bakedDir, croppedDir string) error {
	c.Step("Cropping cubemap faces", "")

	pb := c.NewProgressBar(blender.Steps*oiio.FacesPerCube, "Cropping cubemap faces")
	pb.Set(0, "")
	err := oiio.CropAll(ctx, oiio.Config{
		ToolPath:   paths.OIIOTool,
		BakedDir:   bakedDir,
		CroppedDir: croppedDir,
	}, func(p oiio.Progress) {
		pb.Set(p.Done, "")
	})
	if err != nil {
		pb.Abort()
		return err
	}
	pb.Finish()
	return nil
}

func packageStep(ctx context.Context, c *ui.Console, opts Options, paths ToolPaths, croppedDir string) ([]ktx.Artifact, error) {
	jobs := []ktx.Job{
		ktx.SpecularJob(croppedDir, opts.Output, opts.Name),
		ktx.DiffuseJob(croppedDir, opts.Output, opts.Name),
	}

	c.Step("Creating KTX files", "")
	pb := c.NewProgressBar(len(jobs), "Creating KTX files")
	pb.Set(0, "")

	artifacts := make([]ktx.Artifact, 0, len(jobs))
	for i, job := range jobs {
		log := logger.WithTool(tools.KTX)
		log.Debug().Msgf("%s %s", tools.KTX, strings.Join(job.Args(), " "))
		art, err := ktx.Create(ctx, paths.KTX, job)
		if err != nil {
			pb.Abort()
			return nil, err
		}
		artifacts = append(artifacts, *art)
		pb.Set(i+1, fmt.Sprintf("Creating KTX files (%s)", job.Kind))
	}
	pb.Finish()
	return artifacts, nil
}

// openCache returns the bake cache together with the key and input hash of
// this run. A nil store disables caching.
func openCache(opts Options) (*cache.Store, string, string) {
	dir := opts.CacheDir
	if dir == "" {
		d, err := platform.CacheDir()
		if err != nil {
			logger.Debug().Err(err).Msg("bake cache disabled")
			return nil, "", ""
		}
		dir = d
	}

	script := blender.Script()
	if opts.Script != "" {
		data, err := os.ReadFile(opts.Script)
		if err != nil {
			logger.Debug().Err(err).Msg("bake cache disabled")
			return nil, "", ""
		}
		script = data
	}

	hash, err := cache.Hash(cache.Inputs{
		EnvironmentMap: opts.EnvironmentMap,
		BlendFile:      opts.BlendFile,
		Script:         script,
		WhitePoint:     opts.Clamp,
		Geometry:       geometry,
	})
	if err != nil {
		logger.Debug().Err(err).Msg("bake cache disabled")
		return nil, "", ""
	}

	absOut, err := filepath.Abs(opts.Output)
	if err != nil {
		return nil, "", ""
	}

	store := cache.Open(dir)
	logger.Debug().Str("cache", store.Path()).Msg("using bake cache")
	return store, filepath.Join(absOut, opts.Name), hash
}

func existingArtifacts(opts Options) ([]ktx.Artifact, error) {
	artifacts := make([]ktx.Artifact, 0, len(ktx.Kinds))
	for _, k := range ktx.Kinds {
		p := ktx.OutputPath(opts.Output, opts.Name, k)
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, ktx.Artifact{Kind: k, Path: p, Size: info.Size()})
	}
	return artifacts, nil
}

func settingsRows(opts Options) [][2]string {
	script := "(built-in)"
	if opts.Script != "" {
		script = opts.Script
	}
	return [][2]string{
		{"Environment Map", opts.EnvironmentMap},
		{"Output Directory", opts.Output},
		{"Base Name", opts.Name},
		{"Blend File", opts.BlendFile},
		{"Bake Script", script},
		{"Clamp", fmt.Sprintf("%g", opts.Clamp)},
	}
}

func printArtifacts(c *ui.Console, artifacts []ktx.Artifact) {
	rows := make([][]string, 0, len(artifacts))
	for _, a := range artifacts {
		rows = append(rows, []string{filepath.Base(a.Path), fmt.Sprintf("%.2f MB", a.SizeMB())})
	}
	c.Info("%s", c.Table([]string{"Output Files", "Size"}, rows))
}
