package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/opswatch/pkg/config"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit, and build time of opsctl.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionJSON {
			return printJSON(config.GetBuildInfo())
		}
		fmt.Println(config.VersionString())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(versionCmd)
}
