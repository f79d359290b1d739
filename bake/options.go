package bake

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/bloodmagesoftware/blender-envmap/platform"
	"github.com/bloodmagesoftware/blender-envmap/project"
)

// DefaultBlendFile is looked up in the working directory and then in the
// user data directory when no blend file is given.
const DefaultBlendFile = "eq2cube.blend"

// Options are the parameters of one bake.
type Options struct {
	EnvironmentMap   string
	Clamp            float64
	Output           string
	Name             string
	BlendFile        string // empty searches for DefaultBlendFile
	Script           string // empty uses the embedded bake script
	Tools            project.Tools
	KeepIntermediate bool
	Force            bool
	CacheDir         string // empty uses the user cache directory
}

// DefaultOptions returns options for envmap with every other value at its
// default.
func DefaultOptions(envmap string) Options {
	return FromConfig(envmap, project.DefaultConfig())
}

// FromConfig builds options for envmap from loaded settings.
func FromConfig(envmap string, cfg *project.Config) Options {
	return Options{
		EnvironmentMap:   envmap,
		Clamp:            cfg.Clamp,
		Output:           cfg.Output,
		Name:             cfg.Name,
		BlendFile:        cfg.BlendFile,
		Script:           cfg.Script,
		Tools:            cfg.Tools,
		KeepIntermediate: cfg.KeepIntermediate,
	}
}

// UsageError reports invalid arguments. The command prints usage for it.
type UsageError struct {
	msg string
}

func (e *UsageError) Error() string {
	return e.msg
}

func usageErrorf(format string, args ...any) error {
	return &UsageError{msg: fmt.Sprintf(format, args...)}
}

// IsUsageError reports whether err is caused by invalid arguments.
func IsUsageError(err error) bool {
	var u *UsageError
	return errors.As(err, &u)
}

var inputExtensions = []string{".hdr", ".exr"}

// Validate checks the options and returns them with the blend file
// resolved. It creates the output directory. No external tool is run.
func Validate(opts Options) (Options, error) {
	if opts.EnvironmentMap == "" {
		return opts, usageErrorf("an environment map is required")
	}

	info, err := os.Stat(opts.EnvironmentMap)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return opts, fmt.Errorf("environment map not found: %s", opts.EnvironmentMap)
		}
		return opts, fmt.Errorf("reading environment map: %w", err)
	}
	if info.IsDir() {
		return opts, fmt.Errorf("environment map is a directory: %s", opts.EnvironmentMap)
	}

	ext := strings.ToLower(filepath.Ext(opts.EnvironmentMap))
	if !isInputExtension(ext) {
		return opts, usageErrorf("unsupported environment map %q: expected a .hdr or .exr file", opts.EnvironmentMap)
	}

	if math.IsNaN(opts.Clamp) || math.IsInf(opts.Clamp, 0) || opts.Clamp <= 0 {
		return opts, usageErrorf("invalid clamp value %v: must be a positive number", opts.Clamp)
	}

	if err := validateName(opts.Name); err != nil {
		return opts, err
	}

	if opts.Output == "" {
		return opts, usageErrorf("output directory must not be empty")
	}

	blendFile, err := ResolveBlendFile(opts.BlendFile)
	if err != nil {
		return opts, err
	}
	opts.BlendFile = blendFile

	if opts.Script != "" {
		info, err := os.Stat(opts.Script)
		if err != nil || info.IsDir() {
			return opts, fmt.Errorf("bake script not found: %s", opts.Script)
		}
	}

	if err := ensureWritable(opts.Output); err != nil {
		return opts, err
	}

	return opts, nil
}

func isInputExtension(ext string) bool {
	for _, e := range inputExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return usageErrorf("name must not be empty")
	case strings.ContainsAny(name, `/\`), name == ".", name == "..":
		return usageErrorf("invalid name %q: must be a file name without directories", name)
	}
	return nil
}

// ResolveBlendFile returns the blend file to bake with. An explicit path must
// exist. Otherwise DefaultBlendFile is searched in the working directory and
// then in the user data directory.
func ResolveBlendFile(explicit string) (string, error) {
	if explicit != "" {
		info, err := os.Stat(explicit)
		if err != nil {
			return "", fmt.Errorf("blend file not found: %s", explicit)
		}
		if info.IsDir() {
			return "", fmt.Errorf("blend file is a directory: %s", explicit)
		}
		return explicit, nil
	}

	candidates := []string{DefaultBlendFile}
	if dataDir, err := platform.DataDir(); err == nil {
		candidates = append(candidates, filepath.Join(dataDir, DefaultBlendFile))
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}

	return "", fmt.Errorf("blend file not found: looked for %s; pass --blend-file or run `%s install --blend-file <path>`",
		strings.Join(candidates, ", "), platform.AppName)
}

// ensureWritable creates dir and checks a file can be created in it.
func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".blender-envmap-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("cleaning up write probe: %w", err)
	}
	return nil
}
