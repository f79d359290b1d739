package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AppName is the executable and directory name used for installed files.
const AppName = "blender-envmap"

// Supported completion shells.
var shells = []string{"bash", "zsh", "fish", "powershell"}

// ExecutableName returns the on-disk name of an executable for the current OS.
func ExecutableName(name string) string {
	return executableName(runtime.GOOS, name)
}

func executableName(goos, name string) string {
	if goos == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name + ".exe"
	}
	return name
}

// BinDir returns the per-user directory executables are installed into.
func BinDir() (string, error) {
	return binDir(runtime.GOOS)
}

func binDir(goos string) (string, error) {
	if goos == "windows" {
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			return "", fmt.Errorf("LOCALAPPDATA is not set")
		}
		return filepath.Join(base, "Programs", AppName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".local", "bin"), nil
}

// DataDir returns the per-user directory for shared data such as the default blend file.
func DataDir() (string, error) {
	return dataDir(runtime.GOOS)
}

func dataDir(goos string) (string, error) {
	switch goos {
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			return "", fmt.Errorf("LOCALAPPDATA is not set")
		}
		return filepath.Join(base, AppName), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", AppName), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, ".local", "share", AppName), nil
	}
}

// CacheDir returns the per-user cache directory for this tool.
func CacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("getting user cache directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// DetectShell guesses the user's shell from $SHELL, falling back to bash
// (powershell on Windows).
func DetectShell() string {
	return detectShell(runtime.GOOS, os.Getenv("SHELL"))
}

func detectShell(goos, shellEnv string) string {
	if shellEnv != "" {
		name := filepath.Base(shellEnv)
		for _, s := range shells {
			if name == s {
				return s
			}
		}
	}
	if goos == "windows" {
		return "powershell"
	}
	return "bash"
}

// Shells returns the shells completion files can be installed for.
func Shells() []string {
	out := make([]string, len(shells))
	copy(out, shells)
	return out
}

// CompletionPath returns where the completion script for shell is installed.
func CompletionPath(shell string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	switch shell {
	case "bash":
		base := os.Getenv("XDG_DATA_HOME")
		if base == "" {
			base = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(base, "bash-completion", "completions", AppName), nil
	case "zsh":
		return filepath.Join(home, ".zsh", "completions", "_"+AppName), nil
	case "fish":
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, "fish", "completions", AppName+".fish"), nil
	case "powershell":
		dir, err := DataDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName+".ps1"), nil
	default:
		return "", fmt.Errorf("unsupported shell: %s (supported: %s)", shell, strings.Join(shells, ", "))
	}
}
