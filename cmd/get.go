package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"manifestctl/internal/app"
	"manifestctl/internal/project"
)

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "List the clusters, environments or templates of a project",
	}

	cmd.AddCommand(newGetClustersCmd())
	cmd.AddCommand(newGetEnvironmentsCmd())
	cmd.AddCommand(newGetTemplatesCmd())
	return cmd
}

func newGetClustersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clusters [DIR]",
		Short: "List the clusters of a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot(args)
			if err != nil {
				return err
			}
			if err := project.CheckDirectory(root); err != nil {
				return err
			}
			clusters, err := project.ListClusters(root)
			if err != nil {
				return err
			}
			printNames(cmd.OutOrStdout(), clusters)
			return nil
		},
	}
}

func newGetEnvironmentsCmd() *cobra.Command {
	var cluster string

	cmd := &cobra.Command{
		Use:   "environments [DIR]",
		Short: "List the environments of a project or one of its clusters",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot(args)
			if err != nil {
				return err
			}
			if err := project.CheckDirectory(root); err != nil {
				return err
			}
			base, err := project.BaseDirectory(project.Selector{Root: root, Cluster: cluster})
			if err != nil {
				return err
			}
			environments, err := project.ListEnvironments(base)
			if err != nil {
				return err
			}
			printNames(cmd.OutOrStdout(), environments)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cluster, "cluster", "c", "", "Cluster whose environments to list")
	_ = cmd.RegisterFlagCompletionFunc("cluster", completeClusters)
	return cmd
}

func newGetTemplatesCmd() *cobra.Command {
	var flags selectionFlags

	cmd := &cobra.Command{
		Use:   "templates [DIR]",
		Short: "List the templates visible to a cluster and environment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(args)
			if err != nil {
				return err
			}
			ctx, err := app.Load(opts)
			if err != nil {
				return err
			}
			names, err := ctx.ListTemplates()
			if err != nil {
				return err
			}
			printNames(cmd.OutOrStdout(), names)
			return nil
		},
	}

	flags.register(cmd, false)
	return cmd
}

func printNames(w io.Writer, names []string) {
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
}
