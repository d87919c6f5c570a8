package templates

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifestctl/internal/merge"
	"manifestctl/internal/project"
	"manifestctl/internal/secrets"
)

func writeTemplate(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// newProject creates templates at the project and cluster levels and
// returns an engine for the cluster selection.
func newProject(t *testing.T, source SecretSource) *Engine {
	t.Helper()
	root := t.TempDir()
	projectDir := filepath.Join(root, "templates")
	clusterDir := filepath.Join(root, "clusters", "eu", "templates")

	writeTemplate(t, projectDir, "deployment.yaml", "name: project\n")
	writeTemplate(t, projectDir, "service.yaml", "name: {{ .name }}\nport: {{ .port | default 80 }}\n")
	writeTemplate(t, clusterDir, "deployment.yaml", "name: {{ .name }}\nregion: {{ .region }}\n")
	writeTemplate(t, clusterDir, "secret.yaml", "password: {{ get_secret \"db\" 8 }}\n")
	writeTemplate(t, clusterDir, "broken.yaml", "key: [unclosed\n")
	require.NoError(t, os.MkdirAll(filepath.Join(clusterDir, "partials"), 0755))

	searchPath, err := SearchPath(project.Selector{Root: root, Cluster: "eu"})
	require.NoError(t, err)
	require.Equal(t, []string{clusterDir, projectDir}, searchPath)

	return NewEngine(searchPath, source)
}

func TestEngine_ListTemplates(t *testing.T) {
	engine := newProject(t, nil)

	names, err := engine.ListTemplates()
	require.NoError(t, err)
	assert.Equal(t, []string{"broken.yaml", "deployment.yaml", "secret.yaml", "service.yaml"}, names)
}

func TestEngine_SourceShadowing(t *testing.T) {
	engine := newProject(t, nil)

	source, path, err := engine.Source("deployment.yaml")
	require.NoError(t, err)
	assert.Contains(t, source, "region")
	assert.Equal(t, filepath.Join(engine.SearchPath()[0], "deployment.yaml"), path)

	_, _, err = engine.Source("missing.yaml")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, _, err = engine.Source("../values.yaml")
	assert.ErrorAs(t, err, &notFound)
}

func TestEngine_NestedTemplates(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "templates")
	clusterDir := filepath.Join(root, "clusters", "eu", "templates")

	writeTemplate(t, projectDir, "top.yaml", "a: 1\n")
	writeTemplate(t, filepath.Join(projectDir, "apps"), "nested.yaml", "name: project\n")
	writeTemplate(t, filepath.Join(projectDir, "apps", "db"), "deep.yaml", "b: 2\n")
	writeTemplate(t, filepath.Join(clusterDir, "apps"), "nested.yaml", "name: cluster\n")

	searchPath, err := SearchPath(project.Selector{Root: root, Cluster: "eu"})
	require.NoError(t, err)
	engine := NewEngine(searchPath, nil)

	names, err := engine.ListTemplates()
	require.NoError(t, err)
	assert.Equal(t, []string{"apps/db/deep.yaml", "apps/nested.yaml", "top.yaml"}, names)

	source, path, err := engine.Source("apps/nested.yaml")
	require.NoError(t, err)
	assert.Equal(t, "name: cluster\n", source)
	assert.Equal(t, filepath.Join(clusterDir, "apps", "nested.yaml"), path)

	out, err := engine.Render("apps/db/deep.yaml", merge.Tree{})
	require.NoError(t, err)
	assert.Equal(t, "b: 2\n", out)

	var notFound *NotFoundError
	for _, name := range []string{"", ".", "apps/../../values.yaml", "/etc/passwd", "apps/", "apps\\nested.yaml"} {
		_, _, err := engine.Source(name)
		assert.ErrorAs(t, err, &notFound, "name %q", name)
	}
}

func TestEngine_ListTemplatesReadError(t *testing.T) {
	original := osReadDir
	defer func() { osReadDir = original }()

	denied := errors.New("permission denied")
	osReadDir = func(string) ([]os.DirEntry, error) { return nil, denied }

	_, err := NewEngine([]string{"templates"}, nil).ListTemplates()
	assert.ErrorIs(t, err, denied)
}

func TestEngine_Parse(t *testing.T) {
	engine := newProject(t, nil)

	tree, err := engine.Parse("deployment.yaml")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"name", "region"}, tree.FreeVariables())

	writeTemplate(t, engine.SearchPath()[0], "bad.yaml", "{{ .name ")
	_, err = engine.Parse("bad.yaml")
	var syntax *SyntaxError
	assert.ErrorAs(t, err, &syntax)

	writeTemplate(t, engine.SearchPath()[0], "unknown.yaml", "{{ nosuchfunc .x }}")
	_, err = engine.Parse("unknown.yaml")
	assert.ErrorAs(t, err, &syntax)
}

func TestEngine_Render(t *testing.T) {
	engine := newProject(t, nil)

	out, err := engine.Render("deployment.yaml", merge.Tree{"name": "web", "region": "eu-west-1"})
	require.NoError(t, err)
	assert.Equal(t, "name: web\nregion: eu-west-1\n", out)
}

func TestEngine_RenderDefaultGuard(t *testing.T) {
	engine := newProject(t, nil)

	out, err := engine.Render("service.yaml", merge.Tree{"name": "web"})
	require.NoError(t, err)
	assert.Equal(t, "name: web\nport: 80\n", out)

	out, err = engine.Render("service.yaml", merge.Tree{"name": "web", "port": 8080})
	require.NoError(t, err)
	assert.Equal(t, "name: web\nport: 8080\n", out)
}

func TestEngine_RenderDoesNotMutateValues(t *testing.T) {
	engine := newProject(t, nil)
	values := merge.Tree{"name": "web"}

	_, err := engine.Render("service.yaml", values)
	require.NoError(t, err)
	assert.Equal(t, merge.Tree{"name": "web"}, values)
}

func TestEngine_RenderMissingValue(t *testing.T) {
	engine := newProject(t, nil)

	_, err := engine.Render("deployment.yaml", merge.Tree{"name": "web"})
	assert.ErrorContains(t, err, "region")
}

func TestEngine_RenderInvalidOutput(t *testing.T) {
	engine := newProject(t, nil)

	_, err := engine.Render("broken.yaml", merge.Tree{})
	var invalid *InvalidOutputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "broken.yaml", invalid.Name)
}

func TestEngine_RenderTemplateGlobal(t *testing.T) {
	engine := newProject(t, nil)
	writeTemplate(t, engine.SearchPath()[0], "global.yaml", "source: {{ .Template.Name }}\n")

	out, err := engine.Render("global.yaml", merge.Tree{})
	require.NoError(t, err)
	assert.Equal(t, "source: global.yaml\n", out)
}

type staticSecrets map[string]string

func (s staticSecrets) Secret(key string, length int) (string, error) {
	value, ok := s[key]
	if !ok {
		return "", &secrets.NotFoundError{Key: key}
	}
	if length > 0 && len(value) != length {
		return "", &secrets.LengthMismatchError{Key: key, Expected: length, Actual: len(value)}
	}
	return value, nil
}

func TestEngine_RenderSecrets(t *testing.T) {
	engine := newProject(t, staticSecrets{"db": "hunter22"})

	out, err := engine.Render("secret.yaml", merge.Tree{})
	require.NoError(t, err)
	assert.Equal(t, "password: hunter22\n", out)

	engine = newProject(t, staticSecrets{"db": "short"})
	_, err = engine.Render("secret.yaml", merge.Tree{})
	var mismatch *secrets.LengthMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestEngine_RenderSecretsNotConfigured(t *testing.T) {
	engine := newProject(t, nil)

	_, err := engine.Render("secret.yaml", merge.Tree{})
	assert.ErrorIs(t, err, secrets.ErrProviderNotConfigured)
}
