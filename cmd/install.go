package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bloodmagesoftware/blender-envmap/bake"
	"github.com/bloodmagesoftware/blender-envmap/logger"
	"github.com/bloodmagesoftware/blender-envmap/platform"
	"github.com/bloodmagesoftware/blender-envmap/ui"
	"github.com/spf13/cobra"
)

var (
	installBinDir       string
	installShell        string
	installBlendFile    string
	installNoCompletion bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install blender-envmap for the current user",
	Long: `Copies the running executable into the user bin directory, installs shell
completion and optionally copies a blend file into the user data directory
so bakes find it without --blend-file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := ui.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), noColor)

		shell := installShell
		if shell == "" {
			shell = platform.DetectShell()
		}
		if !installNoCompletion && !slices.Contains(platform.Shells(), shell) {
			return FlagErrorf("unsupported shell %q (supported: %s)", shell, strings.Join(platform.Shells(), ", "))
		}

		var rows [][]string

		binPath, err := installExecutable(installBinDir)
		if err != nil {
			return err
		}
		rows = append(rows, []string{"Executable", binPath})

		if !installNoCompletion {
			completionPath, err := installCompletion(cmd.Root(), shell)
			if err != nil {
				return err
			}
			rows = append(rows, []string{shell + " completion", completionPath})
		}

		if installBlendFile != "" {
			blendPath, err := installBlend(installBlendFile)
			if err != nil {
				return err
			}
			rows = append(rows, []string{"Blend file", blendPath})
		}

		c.Success("Installed " + platform.AppName)
		c.Info("%s", c.Table([]string{"Component", "Path"}, rows))

		if !onPath(filepath.Dir(binPath)) {
			c.Warn("%s is not on your PATH", filepath.Dir(binPath))
		}
		if shell == "zsh" && !installNoCompletion {
			c.Muted("Add ~/.zsh/completions to fpath in ~/.zshrc before compinit")
		}
		return nil
	},
}

func init() {
	installCmd.Flags().StringVar(&installBinDir, "bin-dir", "", "Directory for the executable (default: user bin directory)")
	installCmd.Flags().StringVar(&installShell, "shell", "", "Shell to install completion for: "+strings.Join(platform.Shells(), ", ")+" (default: from $SHELL)")
	installCmd.Flags().StringVar(&installBlendFile, "blend-file", "", "Blend file to install as the default scene")
	installCmd.Flags().BoolVar(&installNoCompletion, "no-completion", false, "Skip installing shell completion")

	_ = installCmd.MarkFlagDirname("bin-dir")
	_ = installCmd.MarkFlagFilename("blend-file", "blend")
	_ = installCmd.RegisterFlagCompletionFunc("shell", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return platform.Shells(), cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(installCmd)
}

// installExecutable copies the running executable into binDir.
func installExecutable(binDir string) (string, error) {
	if binDir == "" {
		dir, err := platform.BinDir()
		if err != nil {
			return "", err
		}
		binDir = dir
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating running executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	if err := os.MkdirAll(binDir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", binDir, err)
	}

	dst := filepath.Join(binDir, platform.ExecutableName(platform.AppName))
	if sameFile(exe, dst) {
		logger.Debug().Str("path", dst).Msg("executable already installed in place")
		return dst, nil
	}

	if err := copyFile(exe, dst, 0755); err != nil {
		return "", fmt.Errorf("installing executable: %w", err)
	}
	return dst, nil
}

// installCompletion writes the completion script for shell.
func installCompletion(root *cobra.Command, shell string) (string, error) {
	path, err := platform.CompletionPath(shell)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating completion directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating completion file: %w", err)
	}
	defer f.Close()

	if err := genCompletion(root, shell, f); err != nil {
		return "", fmt.Errorf("generating %s completion: %w", shell, err)
	}
	return path, nil
}

func genCompletion(root *cobra.Command, shell string, w io.Writer) error {
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(w, true)
	case "zsh":
		return root.GenZshCompletion(w)
	case "fish":
		return root.GenFishCompletion(w, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(w)
	default:
		return fmt.Errorf("unsupported shell: %s", shell)
	}
}

// installBlend copies src into the user data directory as the default scene.
func installBlend(src string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("blend file not found: %s", src)
	}
	if info.IsDir() {
		return "", fmt.Errorf("blend file is a directory: %s", src)
	}

	dataDir, err := platform.DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dataDir, err)
	}

	dst := filepath.Join(dataDir, bake.DefaultBlendFile)
	if err := copyFile(src, dst, 0644); err != nil {
		return "", fmt.Errorf("installing blend file: %w", err)
	}
	return dst, nil
}

// copyFile copies src to dst with the given permissions. dst is replaced
// through a temporary file so a running executable can be overwritten.
func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("reading source file: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("writing destination file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing destination file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("replacing %s: %w", dst, err)
	}
	return nil
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func onPath(dir string) bool {
	for _, p := range filepath.SplitList(os.Getenv("PATH")) {
		if filepath.Clean(p) == filepath.Clean(dir) {
			return true
		}
	}
	return false
}
