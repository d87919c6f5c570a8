package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"manifestctl/internal/color"
	"manifestctl/pkg/logging"
)

// envPrefix is the prefix of environment variables that set flags, e.g.
// MANIFESTCTL_LOG_LEVEL or MANIFESTCTL_METHOD.
const envPrefix = "MANIFESTCTL"

// envFlags are the flags that can be set from the environment.
var envFlags = []string{"debug", "log-level", "trace", "method", "cluster", "environment"}

var (
	debug    bool
	logLevel string
	trace    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "manifestctl",
	Short: "Validate and generate manifests from layered values and templates",
	Long: `manifestctl merges values and configuration from a project, its clusters
and their environments, checks every template for undefined values, reserved
names and unconfigured secrets, and renders the templates into manifests.

A project is a directory containing a .manifestctl marker file:

  values.yaml  config.yaml  templates/
  clusters/<cluster>/{values.yaml,config.yaml,templates/,environments/<env>/}
  environments/<env>/{values.yaml,config.yaml,templates/}`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. invalid selections, failed validation)
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "manifestctl version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		if trace {
			printErrorChain(os.Stderr, err)
		}
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging, same as --log-level=debug")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "Print the full error chain on failure")

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newGenCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}

// setup applies environment overrides to unset flags and initializes
// logging and colors.
func setup(cmd *cobra.Command, args []string) error {
	if err := applyEnv(cmd); err != nil {
		return err
	}

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	if debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())
	color.Configure()
	return nil
}

// applyEnv sets every flag in envFlags that was not given on the command
// line from its MANIFESTCTL_<NAME> environment variable.
func applyEnv(cmd *cobra.Command) error {
	v := viper.New()

	for _, name := range envFlags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || flag.Changed {
			continue
		}
		if err := v.BindEnv(name, envPrefix+"_"+flagEnvName(name)); err != nil {
			return err
		}
		if !v.IsSet(name) {
			continue
		}
		if err := cmd.Flags().Set(name, v.GetString(name)); err != nil {
			return fmt.Errorf("invalid value for %s_%s: %w", envPrefix, flagEnvName(name), err)
		}
	}
	return nil
}

func flagEnvName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// printErrorChain prints err and every error it wraps.
func printErrorChain(w io.Writer, err error) {
	for depth := 0; err != nil; depth++ {
		fmt.Fprintf(w, "%*s%T: %v\n", depth*2, "", err, err)
		err = errors.Unwrap(err)
	}
}
