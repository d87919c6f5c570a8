package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"manifestctl/internal/analyzer"
	"manifestctl/internal/merge"
	"manifestctl/internal/project"
	"manifestctl/internal/templates"
	"manifestctl/internal/validation"
	"manifestctl/pkg/logging"
)

// ErrValidationFailed is returned by Generate when any template is invalid.
var ErrValidationFailed = errors.New("failed to validate all templates")

// Selector returns the selection the context was loaded for.
func (c *Context) Selector() project.Selector {
	return c.selector
}

// ResolveOverlay returns a copy of the merged values.
func (c *Context) ResolveOverlay() merge.Tree {
	return merge.Clone(c.values)
}

// Config returns a copy of the merged configuration, or the reason it is unusable.
func (c *Context) Config() (merge.Tree, error) {
	if c.configErr != nil {
		return nil, c.configErr
	}
	return merge.Clone(c.config), nil
}

// ListTemplates returns the template names visible to the selection.
func (c *Context) ListTemplates() ([]string, error) {
	return c.engine.ListTemplates()
}

// AnalyzeTemplate analyzes one template against the merged values.
func (c *Context) AnalyzeTemplate(name string) (analyzer.Result, error) {
	tree, err := c.engine.Parse(name)
	if err != nil {
		return analyzer.Result{}, err
	}

	result, err := analyzer.Analyze(tree, merge.Keys(c.values), c.engine.Globals(), templates.ReservedNames)
	if err != nil {
		return analyzer.Result{}, fmt.Errorf("failed to analyze %s: %w", name, err)
	}

	if len(result.Unused) > 0 {
		logging.Debug("App", "%s does not use values %v", name, result.Unused)
	}
	return result, nil
}

// ValidateAll validates every template. Invalid templates are reported in the
// returned report; an error means validation itself could not run.
func (c *Context) ValidateAll() (validation.Report, error) {
	if c.configErr != nil {
		return validation.Report{}, c.configErr
	}

	names, err := c.ListTemplates()
	if err != nil {
		return validation.Report{}, err
	}

	var report validation.Report
	for _, name := range names {
		result, err := c.AnalyzeTemplate(name)
		if err != nil {
			return validation.Report{}, err
		}
		outcome := validation.Validate(name, result, c.config)
		if !outcome.Valid() {
			logging.Debug("App", "template %s failed validation: %v", name, outcome.Errors())
		}
		report.Add(outcome)
	}
	return report, nil
}

// Generate validates every template and, when all are valid, writes them
// rendered to w as one multi-document stream. Nothing is written unless
// every template renders.
func (c *Context) Generate(w io.Writer) (validation.Report, error) {
	report, err := c.ValidateAll()
	if err != nil {
		return report, err
	}
	if !report.OK() {
		return report, ErrValidationFailed
	}

	var buf bytes.Buffer
	for _, outcome := range report.Outcomes {
		out, err := c.engine.Render(outcome.Template, c.values)
		if err != nil {
			return report, err
		}

		fmt.Fprintf(&buf, "---\n# Source: %s\n", outcome.Template)
		buf.WriteString(out)
		if !strings.HasSuffix(out, "\n") {
			buf.WriteString("\n")
		}
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return report, fmt.Errorf("failed to write manifests: %w", err)
	}
	return report, nil
}
