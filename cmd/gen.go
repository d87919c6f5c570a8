package cmd

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"manifestctl/internal/app"
)

func newGenCmd() *cobra.Command {
	var flags selectionFlags

	cmd := &cobra.Command{
		Use:   "gen [DIR]",
		Short: "Render the templates of a project",
		Long: `Validate and render every template visible to the selected cluster and
environment, writing one YAML stream to stdout.

Nothing is written unless every template is valid; the failed templates are
listed on stderr instead. DIR defaults to the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(args)
			if err != nil {
				return err
			}
			return runGen(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	flags.register(cmd, true)
	return cmd
}

func runGen(out, errOut io.Writer, opts app.Options) error {
	ctx, err := app.Load(opts)
	if err != nil {
		return err
	}

	report, err := ctx.Generate(out)
	if errors.Is(err, app.ErrValidationFailed) {
		printReport(errOut, report, false)
	}
	return err
}
