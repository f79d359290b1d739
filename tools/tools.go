package tools

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bloodmagesoftware/blender-envmap/logger"
	"github.com/bloodmagesoftware/blender-envmap/platform"
)

// Names of the external tools driven by the pipeline.
const (
	Blender  = "blender"
	OIIOTool = "oiiotool"
	KTX      = "ktx"
)

// All lists the required tools in the order they run.
var All = []string{Blender, OIIOTool, KTX}

var installHints = map[string]string{
	Blender: "Install Blender (4.x or newer) and put it on your PATH.\n" +
		"  Download from: https://www.blender.org/download/\n" +
		"  macOS: ln -s /Applications/Blender.app/Contents/MacOS/Blender /usr/local/bin/blender",
	OIIOTool: "Install OpenImageIO's oiiotool.\n" +
		"  macOS: brew install openimageio\n" +
		"  Linux: apt install openimageio-tools",
	KTX: "Install the KTX-Software command line tools (ktx 4.3 or newer).\n" +
		"  Download from: https://github.com/KhronosGroup/KTX-Software/releases",
}

// NotFoundError reports a tool missing from the execution path.
type NotFoundError struct {
	Tool string
	Path string // explicit override that was tried, if any
	Hint string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s not found", e.Tool)
	if e.Path != "" && e.Path != e.Tool {
		msg = fmt.Sprintf("%s not found at %s", e.Tool, e.Path)
	}
	if e.Hint != "" {
		msg += ". " + e.Hint
	}
	return msg
}

// ExitError reports a tool that ran but exited with a non-zero status.
// Stderr holds the tool's diagnostic output verbatim.
type ExitError struct {
	Tool   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.Code)
	if stderr := strings.TrimRight(e.Stderr, "\n"); stderr != "" {
		msg += "\n" + stderr
	}
	return msg
}

// Lookup resolves a tool to an executable path. A non-empty override is
// either a path (when it contains a separator) or another name to search for.
func Lookup(name, override string) (string, error) {
	target := name
	if override != "" {
		target = override
	}

	if strings.ContainsRune(target, filepath.Separator) || strings.Contains(target, "/") {
		info, err := os.Stat(target)
		if err != nil || info.IsDir() {
			return "", &NotFoundError{Tool: name, Path: target, Hint: installHints[name]}
		}
		abs, err := filepath.Abs(target)
		if err != nil {
			return "", fmt.Errorf("resolving %s: %w", target, err)
		}
		return abs, nil
	}

	path, err := exec.LookPath(platform.ExecutableName(target))
	if err != nil {
		return "", &NotFoundError{Tool: name, Path: target, Hint: installHints[name]}
	}
	return path, nil
}

// Cmd describes a single tool invocation.
type Cmd struct {
	Tool   string    // display name, e.g. "ktx"
	Path   string    // resolved executable
	Args   []string
	Dir    string
	Env    []string  // extra KEY=VALUE pairs appended to the process environment
	Stdout io.Writer // optional tee for streamed stdout
}

// String renders the command line for display.
func (c Cmd) String() string {
	parts := append([]string{c.Tool}, c.Args...)
	return strings.Join(parts, " ")
}

// Run executes the command to completion and returns its stdout.
func Run(ctx context.Context, c Cmd) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	if c.Stdout != nil {
		cmd.Stdout = io.MultiWriter(&stdout, c.Stdout)
	} else {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	log := logger.WithTool(c.Tool)
	log.Debug().Str("dir", c.Dir).Msgf("running: %s", c)

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), classify(ctx, c.Tool, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func classify(ctx context.Context, tool string, err error, stderr string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", tool, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code <= 0 {
			code = 1
		}
		return &ExitError{Tool: tool, Code: code, Stderr: stderr}
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return &NotFoundError{Tool: tool, Hint: installHints[tool]}
	}

	return fmt.Errorf("running %s: %w", tool, err)
}

// Version returns the first non-empty line printed by `<path> --version`.
func Version(ctx context.Context, tool, path string) (string, error) {
	out, err := Run(ctx, Cmd{Tool: tool, Path: path, Args: []string{"--version"}})
	if err != nil {
		return "", err
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	return "", nil
}

// Hint returns the installation hint for a tool.
func Hint(tool string) string {
	return installHints[tool]
}
