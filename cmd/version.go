package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/viewstream/internal/version"
)

// CreateVersionCmd creates the version command.
func CreateVersionCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			if !verbose {
				fmt.Fprintln(cmd.OutOrStdout(), "viewstream", version.String())
				return
			}
			v := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "viewstream %s\n  commit:   %s\n  built:    %s\n  build id: %s\n  go:       %s (%s)\n  platform: %s\n",
				v.Version, v.GitCommit, v.BuildDate, v.BuildID, v.GoVersion, v.Compiler, v.Platform)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print build details")
	return cmd
}
