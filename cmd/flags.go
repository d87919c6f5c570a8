package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"manifestctl/internal/app"
	"manifestctl/internal/config"
	"manifestctl/internal/merge"
	"manifestctl/internal/project"
)

// For mocking in tests
var osGetwd = os.Getwd

// policyValue is a pflag.Value holding a merge policy.
type policyValue merge.Policy

var _ pflag.Value = (*policyValue)(nil)

func (p *policyValue) String() string {
	return merge.Policy(*p).String()
}

func (p *policyValue) Set(s string) error {
	policy, err := merge.ParsePolicy(s)
	if err != nil {
		return err
	}
	*p = policyValue(policy)
	return nil
}

func (p *policyValue) Type() string {
	return "policy"
}

// selectionFlags are the flags that select a project, cluster and environment
// and add extra values.
type selectionFlags struct {
	cluster     string
	environment string
	policy      policyValue
	valueFiles  []string
	values      []string
}

// register adds the selection flags to cmd. Commands that do not merge values
// only get the cluster and environment flags.
func (f *selectionFlags) register(cmd *cobra.Command, withValues bool) {
	cmd.Flags().StringVarP(&f.cluster, "cluster", "c", "", "Cluster context to use")
	cmd.Flags().StringVarP(&f.environment, "environment", "e", "", "Deployment environment to use")
	_ = cmd.RegisterFlagCompletionFunc("cluster", completeClusters)

	if !withValues {
		return
	}

	f.policy = policyValue(merge.LeftToRight)
	cmd.Flags().VarP(&f.policy, "method", "m", fmt.Sprintf("Value file merge method (%s)", strings.Join(merge.PolicyNames, ", ")))
	cmd.Flags().StringArrayVar(&f.valueFiles, "value-file", nil, "Additional value file to include")
	cmd.Flags().StringArrayVar(&f.values, "value", nil, "Additional value to include, as KEY=VALUE")
	_ = cmd.RegisterFlagCompletionFunc("method", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return merge.PolicyNames, cobra.ShellCompDirectiveNoFileComp
	})
}

// options builds the load options from the flags and the optional directory argument.
func (f *selectionFlags) options(args []string) (app.Options, error) {
	root, err := projectRoot(args)
	if err != nil {
		return app.Options{}, err
	}

	opts := app.NewOptions(root, f.cluster, f.environment)
	opts.Policy = merge.Policy(f.policy)
	opts.ValueFiles = f.valueFiles

	for _, value := range f.values {
		kv, err := config.ParseKeyValue(value)
		if err != nil {
			return app.Options{}, err
		}
		opts.Values = append(opts.Values, kv)
	}
	return opts, nil
}

// projectRoot returns the directory argument, or the working directory.
func projectRoot(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	dir, err := osGetwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}
	return dir, nil
}

// completeClusters suggests the clusters of the project in the directory
// argument or the working directory.
func completeClusters(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	root, err := projectRoot(args)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	clusters, err := project.ListClusters(root)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return clusters, cobra.ShellCompDirectiveNoFileComp
}
