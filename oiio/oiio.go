package oiio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/bloodmagesoftware/blender-envmap/blender"
	"github.com/bloodmagesoftware/blender-envmap/exrinfo"
	"github.com/bloodmagesoftware/blender-envmap/logger"
	"github.com/bloodmagesoftware/blender-envmap/tools"
	"golang.org/x/sync/errgroup"
)

// Face is one cube face inside a 4x3 cross image.
type Face struct {
	File string // output file name, e.g. "0001.exr"
	X, Y int    // top-left corner in pixels
}

// Cross positions in face units. The order is the order ktx expects the
// faces in.
var crossCells = []struct {
	file     string
	col, row int
}{
	{"0001.exr", 3, 1},
	{"0002.exr", 1, 1},
	{"0003.exr", 2, 0},
	{"0004.exr", 2, 2},
	{"0005.exr", 2, 1},
	{"0006.exr", 0, 1},
}

// FacesPerCube is the number of faces cut from every cross.
const FacesPerCube = 6

// Layout returns the six faces of a cross whose faces are size pixels wide.
func Layout(size int) []Face {
	faces := make([]Face, len(crossCells))
	for i, c := range crossCells {
		faces[i] = Face{File: c.file, X: c.col * size, Y: c.row * size}
	}
	return faces
}

// FaceFiles returns the six face paths inside dir in cube order.
func FaceFiles(dir string) []string {
	files := make([]string, len(crossCells))
	for i, c := range crossCells {
		files[i] = filepath.Join(dir, c.file)
	}
	return files
}

// CutArgs builds the oiiotool arguments that cut face f out of in.
// The end coordinates are inclusive.
func CutArgs(in, out string, f Face, size int) []string {
	return []string{
		in,
		"--cut", fmt.Sprintf("%d,%d,%d,%d", f.X, f.Y, f.X+size-1, f.Y+size-1),
		"-o", out,
	}
}

// MipDir returns the directory holding the faces of a specular mip level.
func MipDir(croppedDir string, level int) string {
	return filepath.Join(croppedDir, fmt.Sprintf("mip%d", level))
}

// DiffuseDir returns the directory holding the diffuse faces.
func DiffuseDir(croppedDir string) string {
	return filepath.Join(croppedDir, "diffuse")
}

// Job cuts one baked cross into its faces.
type Job struct {
	Label  string
	Input  string
	OutDir string
	Size   int
}

// Jobs lists the crop jobs for every image a bake produces.
func Jobs(bakedDir, croppedDir string) []Job {
	jobs := make([]Job, 0, blender.Steps)
	for level := 0; level < blender.SpecularLevels; level++ {
		jobs = append(jobs, Job{
			Label:  fmt.Sprintf("mip %d", level),
			Input:  filepath.Join(bakedDir, blender.MipImage(level)),
			OutDir: MipDir(croppedDir, level),
			Size:   blender.FaceSize(level),
		})
	}
	return append(jobs, Job{
		Label:  "diffuse",
		Input:  filepath.Join(bakedDir, blender.DiffuseImage),
		OutDir: DiffuseDir(croppedDir),
		Size:   blender.DiffuseFaceSize,
	})
}

// Config holds the configuration for cropping.
type Config struct {
	ToolPath    string // Resolved oiiotool executable
	BakedDir    string // Directory with the baked cross images
	CroppedDir  string // Directory receiving per-level face directories
	Concurrency int    // Parallel oiiotool processes; 0 uses NumCPU
}

// Progress reports how many faces have been cut.
type Progress struct {
	Done  int
	Total int
	Label string
}

// CropAll cuts every baked cross into faces, running oiiotool concurrently.
// onProgress may be nil; calls to it are serialized.
func CropAll(ctx context.Context, cfg Config, onProgress func(Progress)) error {
	jobs := Jobs(cfg.BakedDir, cfg.CroppedDir)

	for _, job := range jobs {
		if _, err := os.Stat(job.Input); err != nil {
			return fmt.Errorf("baked image not found: %s", job.Input)
		}
		if err := os.MkdirAll(job.OutDir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", job.OutDir, err)
		}
	}

	limit := cfg.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	done := 0
	total := len(jobs) * FacesPerCube

	for _, job := range jobs {
		for _, face := range Layout(job.Size) {
			g.Go(func() error {
				if err := cutFace(gctx, cfg.ToolPath, job, face); err != nil {
					return fmt.Errorf("cropping %s face %s: %w", job.Label, face.File, err)
				}

				mu.Lock()
				defer mu.Unlock()
				done++
				if onProgress != nil {
					onProgress(Progress{Done: done, Total: total, Label: job.Label})
				}
				return nil
			})
		}
	}

	return g.Wait()
}

func cutFace(ctx context.Context, toolPath string, job Job, face Face) error {
	out := filepath.Join(job.OutDir, face.File)

	_, err := tools.Run(ctx, tools.Cmd{
		Tool: tools.OIIOTool,
		Path: toolPath,
		Args: CutArgs(job.Input, out, face, job.Size),
	})
	if err != nil {
		return err
	}

	// A wrong size only degrades the result; ktx reports real mismatches.
	if err := exrinfo.CheckSquare(out, job.Size); err != nil {
		logger.Warn().Err(err).Str("face", out).Msg("could not verify cropped face")
	}
	return nil
}
