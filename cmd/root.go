package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/bloodmagesoftware/blender-envmap/bake"
	"github.com/bloodmagesoftware/blender-envmap/logger"
	"github.com/bloodmagesoftware/blender-envmap/project"
	"github.com/bloodmagesoftware/blender-envmap/tools"
	"github.com/bloodmagesoftware/blender-envmap/ui"
	"github.com/spf13/cobra"
)

const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130
)

var (
	bakeClamp            float64
	bakeWhitePoint       float64
	bakeOutput           string
	bakeName             string
	bakeBlendFile        string
	bakeScript           string
	bakeKeepIntermediate bool
	bakeForce            bool

	debug   bool
	noColor bool

	// invocationArgs holds the raw arguments of the current run.
	invocationArgs []string
)

var rootCmd = &cobra.Command{
	Use:   "blender-envmap <environment-map>",
	Short: "Bake an HDR/EXR environment map into KTX2 cubemaps",
	Long: `blender-envmap converts an equirectangular HDR or EXR environment map into
two KTX2 cubemaps for physically based rendering:

  <name>-specular.ktx2  prefiltered specular radiance, 9 mip levels (512px to 2px)
  <name>-diffuse.ktx2   diffuse irradiance, 32px faces

It drives Blender to bake the cube faces, oiiotool to cut them out and the
KTX-Software ktx tool to encode them. Settings can also come from an
envmap.yaml in the current directory or a parent, or from BLENDER_ENVMAP_*
environment variables.`,
	Example: `  blender-envmap sky.exr
  blender-envmap sky.hdr --clamp 4 --output assets/env --name sky`,
	Args:              bakeArgs,
	ValidArgsFunction: completeEnvironmentMap,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.InitWithWriter(cmd.ErrOrStderr(), debug, noColor)
		return nil
	},
	RunE: runBake,
}

func init() {
	rootCmd.Version = Format(Version, BuildDate)
	rootCmd.SetVersionTemplate("{{.Version}}")

	flags := rootCmd.Flags()
	flags.Float64Var(&bakeClamp, "clamp", 1.0, "White point of the world shader; brighter values are clamped")
	flags.Float64Var(&bakeWhitePoint, "white-point", 1.0, "Deprecated alias of --clamp")
	flags.StringVarP(&bakeOutput, "output", "o", "assets", "Output directory for the KTX2 files")
	flags.StringVarP(&bakeName, "name", "n", "cubemap", "Base name of the output files")
	flags.StringVar(&bakeBlendFile, "blend-file", "", "Blender scene used for baking (default: ./eq2cube.blend, then the installed one)")
	flags.StringVar(&bakeScript, "script", "", "Alternative Blender bake script (default: built-in)")
	flags.BoolVar(&bakeKeepIntermediate, "keep-intermediate", false, "Keep the baked and cropped images")
	flags.BoolVar(&bakeForce, "force", false, "Bake even if the outputs are up to date")
	_ = flags.MarkHidden("white-point")

	_ = rootCmd.MarkFlagDirname("output")
	_ = rootCmd.MarkFlagFilename("blend-file", "blend")
	_ = rootCmd.MarkFlagFilename("script", "py")

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		if helpRequested(invocationArgs) {
			return cmd.Help()
		}
		return FlagErrorWrap(err)
	})
}

// helpRequested reports whether args ask for help before a "--" terminator.
func helpRequested(args []string) bool {
	for _, a := range args {
		switch a {
		case "--":
			return false
		case "-h", "--help":
			return true
		}
	}
	return false
}

// bakeArgs requires exactly one environment map.
func bakeArgs(cmd *cobra.Command, args []string) error {
	switch {
	case len(args) == 0:
		return FlagErrorf("missing required argument <environment-map>")
	case len(args) > 1:
		return FlagErrorf("expected one environment map, got %d arguments", len(args))
	}
	return nil
}

func completeEnvironmentMap(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return []string{"hdr", "exr"}, cobra.ShellCompDirectiveFilterFileExt
}

func runBake(cmd *cobra.Command, args []string) error {
	c := ui.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), noColor)

	flags := cmd.Flags()
	if flags.Changed("white-point") {
		c.Warn("--white-point is deprecated, use --clamp instead")
		if !flags.Changed("clamp") {
			// Mark --clamp as set so it outranks config and environment.
			if err := flags.Set("clamp", strconv.FormatFloat(bakeWhitePoint, 'g', -1, 64)); err != nil {
				return FlagErrorWrap(err)
			}
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := bake.FromConfig(args[0], cfg)
	opts.Force = bakeForce

	if _, err := bake.Run(cmd.Context(), opts, c); err != nil {
		if bake.IsUsageError(err) {
			return FlagErrorWrap(err)
		}
		return err
	}
	return nil
}

// loadConfig merges envmap.yaml, the environment and the flags of cmd.
func loadConfig(cmd *cobra.Command) (*project.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}

	loader, err := project.NewLoader(cwd)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", project.ConfigFileName, err)
	}
	if err := loader.BindFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}
	if p := loader.ConfigPath(); p != "" {
		logger.Debug().Str("config", p).Msg("loaded project config")
	}
	return cfg, nil
}

// Execute runs the root command and exits the process.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI with args and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args == nil {
		args = []string{}
	}
	invocationArgs = args
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return exitOK
	}
	return handleError(cmd, err, stdout, stderr)
}

func handleError(cmd *cobra.Command, err error, stdout, stderr io.Writer) int {
	c := ui.New(stdout, stderr, noColor)

	if errors.Is(err, ErrSilent) {
		return exitError
	}

	if cmd == nil {
		cmd = rootCmd
	}

	var flagErr *FlagError
	if errors.As(err, &flagErr) {
		c.Error(err.Error())
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, cmd.UsageString())
		return exitError
	}

	var exitErr *tools.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Stderr != "" {
			c.Raw(exitErr.Stderr)
			if exitErr.Stderr[len(exitErr.Stderr)-1] != '\n' {
				c.Raw("\n")
			}
		}
		// Keep the pipeline context that wraps the tool failure.
		var prefix string
		if msg := err.Error(); strings.HasSuffix(msg, exitErr.Error()) {
			prefix = strings.TrimSuffix(msg, exitErr.Error())
		}
		c.Error(fmt.Sprintf("%s%s exited with status %d", prefix, exitErr.Tool, exitErr.Code))
		return exitErr.Code
	}

	c.Error(err.Error())
	if errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	return exitError
}
