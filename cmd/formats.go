package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/remolder/internal/format"
	"github.com/agentic-research/remolder/internal/molding"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the registered formats and their extensions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listFormats(cmd.OutOrStdout(), format.Defaults())
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func listFormats(w io.Writer, registry *format.Registry) error {
	for _, d := range registry.Descriptors() {
		if _, err := fmt.Fprintf(w, "%-6s %s\n", d.Name(), strings.Join(d.Extensions(), " ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\nremolder kinds: %s\n", strings.Join(molding.Standard[any]().Names(), ", "))
	return err
}
