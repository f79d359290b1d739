package blender

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bloodmagesoftware/blender-envmap/logger"
	"github.com/bloodmagesoftware/blender-envmap/tools"
)

//go:embed bake.py
var bakeScript []byte

// ScriptName is the file name the embedded bake script is written as.
const ScriptName = "bake.py"

// Bake geometry shared with the crop and packaging steps.
const (
	BaseFaceSize    = 512 // face size of mip 0
	SpecularLevels  = 9   // mips 0..8, 512px down to 2px
	DiffuseFaceSize = 32
)

// DiffuseImage is the file name of the baked diffuse cross.
const DiffuseImage = "cubemap_diffuse.hdr"

// Config holds the configuration for a Blender bake.
type Config struct {
	BlenderPath    string  // Resolved blender executable
	BlendFile      string  // Scene containing the probe and world setup
	Script         string  // Bake script; empty uses the embedded one
	EnvironmentMap string  // Input .hdr/.exr
	WhitePoint     float64 // Value for the WhitePoint world node
	OutDir         string  // Directory receiving the baked cross images
	WorkDir        string  // Working directory for blender
}

// Progress reports how many of the Steps bake passes have finished.
type Progress struct {
	Done  int
	Total int
	Label string
}

// Steps is the number of bake passes: every specular mip plus the diffuse map.
const Steps = SpecularLevels + 1

var (
	mipPattern     = regexp.MustCompile(`envmap: baked mip (\d+)`)
	diffusePattern = regexp.MustCompile(`envmap: baked diffuse`)
)

// MipImage returns the file name of the baked cross for a specular mip level.
func MipImage(level int) string {
	return fmt.Sprintf("cubemap_mip%d.hdr", level)
}

// FaceSize returns the cube face edge length for a specular mip level.
func FaceSize(level int) int {
	return max(1, BaseFaceSize>>level)
}

// ExpectedOutputs lists every cross image a bake writes into dir.
func ExpectedOutputs(dir string) []string {
	out := make([]string, 0, Steps)
	for level := 0; level < SpecularLevels; level++ {
		out = append(out, filepath.Join(dir, MipImage(level)))
	}
	return append(out, filepath.Join(dir, DiffuseImage))
}

// Args builds the blender command line for cfg using the given script.
func Args(cfg Config, scriptPath string) []string {
	return []string{
		"-b", cfg.BlendFile,
		"--python-exit-code", "1",
		"--python", scriptPath,
		"--",
		"--envmap", cfg.EnvironmentMap,
		"--out", cfg.OutDir,
		"--white-point", strconv.FormatFloat(cfg.WhitePoint, 'g', -1, 64),
		"--base-size", strconv.Itoa(BaseFaceSize),
		"--levels", strconv.Itoa(SpecularLevels),
		"--diffuse-size", strconv.Itoa(DiffuseFaceSize),
	}
}

// WriteScript writes the embedded bake script into dir and returns its path.
func WriteScript(dir string) (string, error) {
	path := filepath.Join(dir, ScriptName)
	if err := os.WriteFile(path, bakeScript, 0644); err != nil {
		return "", fmt.Errorf("writing bake script: %w", err)
	}
	return path, nil
}

// Script returns the embedded bake script.
func Script() []byte {
	return bytes.Clone(bakeScript)
}

// Bake runs blender headless to render the specular mip chain and the diffuse
// cross into cfg.OutDir. onProgress may be nil.
func Bake(ctx context.Context, cfg Config, onProgress func(Progress)) error {
	cfg, err := absolutize(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return fmt.Errorf("creating bake directory: %w", err)
	}

	scriptPath := cfg.Script
	if scriptPath == "" {
		scriptPath, err = WriteScript(cfg.WorkDir)
		if err != nil {
			return err
		}
	}

	tracker := &progressTracker{onProgress: onProgress}
	lines := &lineWriter{fn: tracker.line}

	_, err = tools.Run(ctx, tools.Cmd{
		Tool:   tools.Blender,
		Path:   cfg.BlenderPath,
		Args:   Args(cfg, scriptPath),
		Dir:    cfg.WorkDir,
		Stdout: lines,
	})
	lines.Flush()
	if err != nil {
		return err
	}

	var missing []string
	for _, p := range ExpectedOutputs(cfg.OutDir) {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, filepath.Base(p))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("blender finished but did not write %s", strings.Join(missing, ", "))
	}

	return nil
}

// absolutize makes every path in cfg absolute since blender runs in WorkDir.
func absolutize(cfg Config) (Config, error) {
	paths := []*string{&cfg.BlendFile, &cfg.EnvironmentMap, &cfg.OutDir, &cfg.WorkDir}
	if cfg.Script != "" {
		paths = append(paths, &cfg.Script)
	}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return cfg, fmt.Errorf("resolving %s: %w", *p, err)
		}
		*p = abs
	}
	return cfg, nil
}

// progressTracker turns blender stdout lines into Progress updates.
type progressTracker struct {
	onProgress func(Progress)
	done       int
}

func (p *progressTracker) line(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	log := logger.WithTool(tools.Blender)
	if strings.Contains(line, "Error") || strings.Contains(line, "Exception") {
		log.Error().Msg(line)
	} else {
		log.Debug().Msg(line)
	}

	if m := mipPattern.FindStringSubmatch(line); m != nil {
		level, err := strconv.Atoi(m[1])
		if err == nil && level+1 > p.done {
			p.report(level+1, fmt.Sprintf("mip %d", level))
		}
		return
	}
	if diffusePattern.MatchString(line) {
		p.report(Steps, "diffuse")
	}
}

func (p *progressTracker) report(done int, label string) {
	p.done = min(done, Steps)
	if p.onProgress != nil {
		p.onProgress(Progress{Done: p.done, Total: Steps, Label: label})
	}
}

// lineWriter calls fn for every complete line written to it.
type lineWriter struct {
	fn  func(string)
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.fn(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.fn(string(w.buf))
		w.buf = nil
	}
}
