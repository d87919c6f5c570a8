package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"manifestctl/internal/config"
	"manifestctl/internal/merge"
	"manifestctl/internal/project"
	"manifestctl/internal/secrets"
	"manifestctl/internal/templates"
	"manifestctl/pkg/logging"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir

// Context is the resolved state of one selection. It is built once by Load
// and never modified afterwards.
type Context struct {
	selector project.Selector
	values   merge.Tree

	// config is nil when configErr is set
	config    merge.Tree
	configErr error

	engine *templates.Engine
}

// Load resolves the values, configuration and templates of a selection.
//
// An invalid configuration does not fail Load, so commands that do not need
// it keep working; ValidateAll and Generate report it instead.
func Load(opts Options) (*Context, error) {
	sel := opts.Selector
	if err := project.CheckDirectory(sel.Root); err != nil {
		return nil, err
	}

	values, err := config.LoadValues(sel, opts.Policy, opts.overrides())
	if err != nil {
		logging.Error("App", err, "Failed to load values")
		return nil, fmt.Errorf("failed to load values: %w", err)
	}

	ctx := &Context{selector: sel, values: values}

	var settings config.Settings
	cfg, err := config.LoadConfig(sel, opts.Policy)
	var invalid *config.InvalidConfigurationError
	switch {
	case errors.As(err, &invalid):
		logging.Warn("App", "%v", err)
		ctx.configErr = err
	case err != nil:
		logging.Error("App", err, "Failed to load configuration")
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	default:
		ctx.config = cfg
		settings, err = config.ParseSettings(cfg)
		if err != nil {
			return nil, err
		}
	}

	searchPath, err := templates.SearchPath(sel)
	if err != nil {
		return nil, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = secrets.DefaultRegistry()
	}
	resolver := secrets.NewResolver(registry, resolveSecretPaths(sel.Root, settings.Secrets))

	ctx.engine = templates.NewEngine(searchPath, resolver)

	logging.Debug("App", "loaded %s with values %v", describe(sel), merge.Keys(values))
	return ctx, nil
}

// resolveSecretPaths makes the provider files of the secrets settings
// absolute. Relative paths are relative to the project root.
func resolveSecretPaths(root string, settings *config.SecretsSettings) *config.SecretsSettings {
	if settings == nil {
		return nil
	}
	resolved := *settings
	resolved.File = resolvePath(root, resolved.File)
	resolved.Identity = resolvePath(root, resolved.Identity)
	return &resolved
}

func resolvePath(root, path string) string {
	switch {
	case path == "":
		return ""
	case path == "~" || strings.HasPrefix(path, "~/"):
		home, err := osUserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	case filepath.IsAbs(path):
		return path
	default:
		return filepath.Join(root, path)
	}
}

func describe(sel project.Selector) string {
	parts := []string{sel.Root}
	if sel.Cluster != "" {
		parts = append(parts, "cluster "+sel.Cluster)
	}
	if sel.Environment != "" {
		parts = append(parts, "environment "+sel.Environment)
	}
	return strings.Join(parts, ", ")
}
