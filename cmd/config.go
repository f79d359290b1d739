package cmd

import (
	"fmt"
	"os"

	"github.com/bloodmagesoftware/blender-envmap/project"
	"github.com/bloodmagesoftware/blender-envmap/ui"
	"github.com/spf13/cobra"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the envmap.yaml project configuration",
	Args:  cobra.NoArgs,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default envmap.yaml into the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}

		path, err := project.WriteDefault(cwd, configInitForce)
		if err != nil {
			return err
		}

		c := ui.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), noColor)
		c.Info("Wrote %s", path)
		c.Muted("Override any key with BLENDER_ENVMAP_<KEY>, e.g. BLENDER_ENVMAP_TOOLS_BLENDER")
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing envmap.yaml")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
