package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "remolder",
	Short: "Remolder: rewrite structured resources across formats",
	Long: `Remolder applies a manifest of remolders to every resource of a pack.
Each resource is decoded by the format its extension names, run through the
remolders whose targets match its location, and encoded back. A resource
whose chain fails is kept as it was.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
