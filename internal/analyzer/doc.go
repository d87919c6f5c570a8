// Package analyzer determines, without rendering, which values and secrets a
// template needs.
//
// The analysis works on the Tree interface, so any templating backend that can
// report free variables, filter applications, existence tests, assignments and
// calls can be analyzed. For a template the required variables are
//
//	free variables
//	  - (engine globals - prohibited names)
//	  - variables guarded by the "default" filter
//	  - variables guarded by an existence test
//	  - locally assigned names
//
// Required names that are prohibited are reported as Invalid instead of
// Undefined. Secret keys are taken from the first argument of get_secret
// calls; a literal is used as-is, a single-placeholder format over one
// variable is reported as e.g. "$env-db". Any other argument fails the
// analysis with UnparsableSecretArgumentError.
package analyzer
