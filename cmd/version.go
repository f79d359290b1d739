package cmd

import (
	"fmt"
	"strings"

	"github.com/bloodmagesoftware/blender-envmap/platform"
	"github.com/spf13/cobra"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	BuildDate = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of blender-envmap",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), Format(Version, BuildDate))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Format returns the version string for display.
func Format(version, buildDate string) string {
	version = strings.TrimPrefix(version, "v")

	var dateStr string
	if buildDate != "" {
		dateStr = fmt.Sprintf(" (%s)", buildDate)
	}

	return fmt.Sprintf("%s version %s%s\n", platform.AppName, version, dateStr)
}
