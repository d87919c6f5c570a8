package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"manifestctl/internal/app"
	"manifestctl/internal/color"
	"manifestctl/internal/validation"
	"manifestctl/pkg/logging"
)

func newValidateCmd() *cobra.Command {
	var flags selectionFlags

	cmd := &cobra.Command{
		Use:   "validate [DIR]",
		Short: "Validate the templates of a project",
		Long: `Validate every template visible to the selected cluster and environment.

A template is invalid when it uses a value that is not defined, uses a
reserved name, or requests secrets while no secrets provider is configured.
DIR defaults to the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(args)
			if err != nil {
				return err
			}
			return runValidate(cmd.OutOrStdout(), opts)
		},
	}

	flags.register(cmd, true)
	return cmd
}

func runValidate(w io.Writer, opts app.Options) error {
	ctx, err := app.Load(opts)
	if err != nil {
		return err
	}

	report, err := ctx.ValidateAll()
	if err != nil {
		return err
	}

	printReport(w, report, true)
	if !report.OK() {
		logging.Debug("CLI", "invalid templates: %v", report.Failed())
		return app.ErrValidationFailed
	}
	return nil
}

// printReport writes one line per template followed by the reasons it
// failed. With all unset only the failed templates are listed.
func printReport(w io.Writer, report validation.Report, all bool) {
	for _, outcome := range report.Outcomes {
		if outcome.Valid() {
			if all {
				fmt.Fprintln(w, color.Valid(outcome.Template))
			}
			continue
		}
		fmt.Fprintln(w, color.Invalid(outcome.Template))
		for _, reason := range outcome.Errors() {
			fmt.Fprintln(w, color.Reason(reason))
		}
	}
}
