// Package config loads the value and config overlays of a project.
//
// Overlay files are resolved with the project package and merged in order of
// increasing specificity, so later (more specific) files override earlier ones
// under the default LeftToRight merge policy.
//
// # Overlay Layers
//
// For values.yaml the layers are, in merge order:
//
//  1. Selector seed: {cluster: <name>, environment: <name>} when selected
//  2. <root>/values.yaml
//  3. <root>/environments/<env>/values.yaml (only without a cluster)
//  4. <root>/clusters/<cluster>/values.yaml
//  5. <root>/clusters/<cluster>/environments/<env>/values.yaml
//  6. Value files given on the command line (--value-file), in order
//  7. Single overrides given on the command line (--value key=value)
//  8. Environment variables named MANIFESTCTL_VALUE_<NAME>
//
// config.yaml follows the same hierarchy without the seed and extra layers.
//
// # Configuration Structure
//
//	secrets:
//	  provider: age          # required whenever a secrets section exists
//	  prefix: myapp/         # optional key prefix
//	  file: secrets.age      # age provider: encrypted YAML map of key -> secret
//	  identity: ~/.age/key   # age provider: identity file
//
// A missing or empty overlay file is an empty layer. A file that does not
// contain a YAML mapping fails with a MalformedDocumentError.
package config
