package templates

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/Masterminds/sprig/v3"
	k8syaml "k8s.io/apimachinery/pkg/util/yaml"

	"manifestctl/internal/merge"
	"manifestctl/internal/project"
	"manifestctl/internal/secrets"
	"manifestctl/pkg/logging"
)

// DirectoryName is the name of template directories at every project level.
const DirectoryName = "templates"

// TemplateGlobal is the data key the engine sets to the name and path of the
// template being rendered.
const TemplateGlobal = "Template"

// ReservedNames are names that cannot be used as values: the text/template
// keywords and builtin functions.
var ReservedNames = []string{
	// keywords
	"block", "break", "continue", "define", "else", "end", "if", "nil", "range", "template", "with",
	// builtin functions
	"and", "call", "eq", "ge", "gt", "html", "index", "js", "le", "len", "lt", "ne", "not", "or",
	"print", "printf", "println", "slice", "urlquery",
}

// For mocking in tests
var osReadDir = os.ReadDir
var osReadFile = os.ReadFile

// SecretSource resolves the keys looked up with get_secret.
type SecretSource interface {
	Secret(key string, length int) (string, error)
}

// NotFoundError is returned when no search directory contains a template.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template not found: %s", e.Name)
}

// SyntaxError is returned when a template cannot be parsed.
type SyntaxError struct {
	Name string
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in template %s: %v", e.Name, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// InvalidOutputError is returned when a rendered template is not valid YAML.
type InvalidOutputError struct {
	Name string
	Err  error
}

func (e *InvalidOutputError) Error() string {
	return fmt.Sprintf("template %s did not render valid YAML: %v", e.Name, e.Err)
}

func (e *InvalidOutputError) Unwrap() error {
	return e.Err
}

// Engine loads, analyzes and renders the templates of one selection.
type Engine struct {
	searchPath []string
	secrets    SecretSource
}

// SearchPath returns the template directories of a selection, most specific first.
func SearchPath(sel project.Selector) ([]string, error) {
	dirs, err := project.FindFiles(sel, DirectoryName, project.KindDir)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(dirs)-1; i < j; i, j = i+1, j-1 {
		dirs[i], dirs[j] = dirs[j], dirs[i]
	}
	return dirs, nil
}

// NewEngine returns an engine over searchPath. source may be nil, in which
// case get_secret fails with secrets.ErrProviderNotConfigured.
func NewEngine(searchPath []string, source SecretSource) *Engine {
	logging.Debug("Templates", "template search path: %v", searchPath)
	return &Engine{searchPath: searchPath, secrets: source}
}

// SearchPath returns the directories templates are looked up in, most specific first.
func (e *Engine) SearchPath() []string {
	return e.searchPath
}

// Globals returns the data names the engine provides to every template.
func (e *Engine) Globals() []string {
	return []string{TemplateGlobal}
}

// ListTemplates returns the sorted names of all templates on the search path.
// Templates in subdirectories are named by their slash separated path
// relative to the search directory, e.g. "apps/deployment.yaml".
func (e *Engine) ListTemplates() ([]string, error) {
	seen := map[string]struct{}{}
	for _, dir := range e.searchPath {
		if err := listDir(dir, "", seen); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// listDir adds the templates below dir/prefix to seen.
func listDir(dir, prefix string, seen map[string]struct{}) error {
	current := filepath.Join(dir, filepath.FromSlash(prefix))
	entries, err := osReadDir(current)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to list templates in %s: %w", current, err)
	}

	for _, entry := range entries {
		name := path.Join(prefix, entry.Name())
		if entry.IsDir() {
			if err := listDir(dir, name, seen); err != nil {
				return err
			}
			continue
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Source returns the text and path of the most specific template called name.
// Names are slash separated and may not leave the search directories.
func (e *Engine) Source(name string) (string, string, error) {
	if !fs.ValidPath(name) || name == "." || strings.Contains(name, `\`) {
		return "", "", &NotFoundError{Name: name}
	}

	for _, dir := range e.searchPath {
		file := filepath.Join(dir, filepath.FromSlash(name))
		data, err := osReadFile(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", "", fmt.Errorf("failed to read template %s: %w", file, err)
		}
		return string(data), file, nil
	}
	return "", "", &NotFoundError{Name: name}
}

// Parse parses a template for static analysis.
func (e *Engine) Parse(name string) (*Tree, error) {
	tmpl, _, err := e.load(name)
	if err != nil {
		return nil, err
	}
	return analysisTree(tmpl), nil
}

// Render executes a template with values. Referencing a missing value fails,
// except for names guarded with default, which render as the default.
func (e *Engine) Render(name string, values merge.Tree) (string, error) {
	tmpl, file, err := e.load(name)
	if err != nil {
		return "", err
	}

	data := merge.Clone(values)
	for _, application := range analysisTree(tmpl).FilterApplications() {
		if application.Filter != "default" || application.Subject == "" {
			continue
		}
		if _, ok := data[application.Subject]; !ok {
			data[application.Subject] = nil
		}
	}
	if _, ok := data[TemplateGlobal]; ok {
		logging.Warn("Templates", "value %s is replaced by the template global", TemplateGlobal)
	}
	data[TemplateGlobal] = map[string]any{"Name": name, "Path": file}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}

	if err := checkOutput(buf.Bytes()); err != nil {
		return "", &InvalidOutputError{Name: name, Err: err}
	}
	return buf.String(), nil
}

func (e *Engine) load(name string) (*template.Template, string, error) {
	source, file, err := e.Source(name)
	if err != nil {
		return nil, "", err
	}

	tmpl, err := template.New(name).
		Funcs(e.funcs()).
		Option("missingkey=error").
		Parse(source)
	if err != nil {
		return nil, "", &SyntaxError{Name: name, Err: err}
	}
	return tmpl, file, nil
}

func (e *Engine) funcs() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["b64encode"] = b64encode
	funcs["b64decode"] = b64decode
	funcs["hash"] = hashValue
	funcs["bool"] = toBool
	funcs["sanitize_label"] = sanitizeLabel
	funcs["sanitize_cpu"] = sanitizeCPU
	funcs["sanitize_memory"] = sanitizeMemory
	funcs["standardize_cpu"] = standardizeCPU
	funcs["standardize_memory"] = standardizeMemory
	funcs["random_password"] = randomPassword
	funcs["env"] = envValue
	funcs["get_secret"] = e.getSecret
	return funcs
}

// getSecret backs get_secret. The optional length is checked by the provider.
func (e *Engine) getSecret(key string, length ...int) (string, error) {
	if e.secrets == nil {
		return "", secrets.ErrProviderNotConfigured
	}
	n := 0
	if len(length) > 0 {
		n = length[0]
	}
	return e.secrets.Secret(key, n)
}

// analysisTree covers the template and every template it defines.
func analysisTree(tmpl *template.Template) *Tree {
	associated := tmpl.Templates()
	sort.Slice(associated, func(i, j int) bool { return associated[i].Name() < associated[j].Name() })
	trees := make([]*parse.Tree, 0, len(associated))
	for _, t := range associated {
		trees = append(trees, t.Tree)
	}
	return newTree(trees...)
}

// checkOutput decodes every document of a rendered template.
func checkOutput(out []byte) error {
	decoder := k8syaml.NewYAMLOrJSONDecoder(bytes.NewReader(out), 4096)
	for {
		var doc any
		if err := decoder.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
