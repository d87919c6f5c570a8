package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of manifestctl",
		Long:  `All software has versions. This is manifestctl's.`,
		Run: func(cmd *cobra.Command, args []string) {
			// Same output as the --version flag, see the template in Execute
			fmt.Fprintf(cmd.OutOrStdout(), "manifestctl version %s\n", rootCmd.Version)
		},
	}
}
