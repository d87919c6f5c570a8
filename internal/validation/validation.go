// Package validation decides per template whether it can be rendered with
// the merged values and configuration of a selection.
package validation

import (
	"fmt"

	"manifestctl/internal/analyzer"
	"manifestctl/internal/merge"
)

// ReasonNoSecretsProvider is the reason reported for templates that use secrets
// while no provider is configured.
const ReasonNoSecretsProvider = "no secrets provider configured"

// Outcome is the verdict for one template.
type Outcome struct {
	Template          string
	Undefined         []string
	Invalid           []string
	Unused            []string
	Secrets           []string
	SecretsConfigured bool
}

// Validate checks an analysis result against the merged configuration.
func Validate(path string, result analyzer.Result, config merge.Tree) Outcome {
	return Outcome{
		Template:          path,
		Undefined:         result.Undefined,
		Invalid:           result.Invalid,
		Unused:            result.Unused,
		Secrets:           result.Secrets,
		SecretsConfigured: SecretsConfigured(config),
	}
}

// SecretsConfigured reports whether config names a secrets provider.
func SecretsConfigured(config merge.Tree) bool {
	_, ok := merge.Lookup(config, "secrets.provider")
	return ok
}

// Valid reports whether the template can be rendered. Unused values never
// fail a template.
func (o Outcome) Valid() bool {
	if len(o.Invalid) > 0 || len(o.Undefined) > 0 {
		return false
	}
	return len(o.Secrets) == 0 || o.SecretsConfigured
}

// Errors returns the reasons the template failed, in a stable order.
func (o Outcome) Errors() []string {
	var errors []string
	for _, name := range o.Undefined {
		errors = append(errors, fmt.Sprintf("undefined variable: %s", name))
	}
	for _, name := range o.Invalid {
		errors = append(errors, fmt.Sprintf("invalid variable: %s", name))
	}
	if len(o.Secrets) > 0 && !o.SecretsConfigured {
		errors = append(errors, ReasonNoSecretsProvider)
	}
	return errors
}

// Report holds the outcomes of every template of a selection.
type Report struct {
	Outcomes []Outcome
}

// Add appends an outcome.
func (r *Report) Add(outcome Outcome) {
	r.Outcomes = append(r.Outcomes, outcome)
}

// OK reports whether every template is valid.
func (r Report) OK() bool {
	for _, outcome := range r.Outcomes {
		if !outcome.Valid() {
			return false
		}
	}
	return true
}

// Failed returns the names of the invalid templates.
func (r Report) Failed() []string {
	var failed []string
	for _, outcome := range r.Outcomes {
		if !outcome.Valid() {
			failed = append(failed, outcome.Template)
		}
	}
	return failed
}
