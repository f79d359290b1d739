package cmd

import (
	"strings"

	"github.com/bloodmagesoftware/blender-envmap/bake"
	"github.com/bloodmagesoftware/blender-envmap/tools"
	"github.com/bloodmagesoftware/blender-envmap/ui"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that blender, oiiotool and ktx are installed",
	Long: `Looks up every external tool the bake needs, honoring tool overrides from
envmap.yaml and BLENDER_ENVMAP_TOOLS_* variables, and prints its path and
version. Exits with status 1 when a tool is missing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		c := ui.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), noColor)
		overrides := map[string]string{
			tools.Blender:  cfg.Tools.Blender,
			tools.OIIOTool: cfg.Tools.OIIOTool,
			tools.KTX:      cfg.Tools.KTX,
		}

		var rows [][]string
		var missing []string
		for _, name := range tools.All {
			path, err := tools.Lookup(name, overrides[name])
			if err != nil {
				rows = append(rows, []string{name, "not found", "", ""})
				missing = append(missing, name)
				continue
			}

			version, err := tools.Version(cmd.Context(), name, path)
			if err != nil || version == "" {
				version = "unknown"
			}
			rows = append(rows, []string{name, "ok", path, version})
		}

		blendStatus, blendPath := "ok", ""
		if p, err := bake.ResolveBlendFile(cfg.BlendFile); err != nil {
			blendStatus = "not found"
		} else {
			blendPath = p
		}
		rows = append(rows, []string{bake.DefaultBlendFile, blendStatus, blendPath, ""})

		c.Info("%s", c.Table([]string{"Tool", "Status", "Path", "Version"}, rows))

		if blendStatus != "ok" {
			c.Warn("no blend file found; pass --blend-file when baking or run `blender-envmap install --blend-file <path>`")
		}

		if len(missing) > 0 {
			for _, name := range missing {
				c.Error(name + " not found. " + tools.Hint(name))
			}
			c.Error("missing tools: " + strings.Join(missing, ", "))
			return ErrSilent
		}

		c.Success("All tools found")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
