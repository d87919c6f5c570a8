package app

import (
	"manifestctl/internal/config"
	"manifestctl/internal/merge"
	"manifestctl/internal/project"
	"manifestctl/internal/secrets"
)

// Options holds everything needed to load a project selection
type Options struct {
	// Project selection
	Selector project.Selector

	// Merge policy for all overlays
	Policy merge.Policy

	// Extra value overlays, merged after the project files
	ValueFiles []string
	Values     []config.KeyValue
	EnvPrefix  string

	// Secret providers; nil uses the built-in providers
	Registry *secrets.Registry
}

// NewOptions creates options for a selection with the default policy and
// environment prefix
func NewOptions(root, cluster, environment string) Options {
	return Options{
		Selector:  project.Selector{Root: root, Cluster: cluster, Environment: environment},
		Policy:    merge.LeftToRight,
		EnvPrefix: config.DefaultEnvPrefix,
	}
}

func (o Options) overrides() config.Overrides {
	return config.Overrides{
		ValueFiles: o.ValueFiles,
		Values:     o.Values,
		EnvPrefix:  o.EnvPrefix,
	}
}
