package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifestctl/internal/analyzer"
	"manifestctl/internal/config"
	"manifestctl/internal/merge"
	"manifestctl/internal/project"
)

// createProject writes files below a new project root. Keys are slash
// separated paths relative to the root.
func createProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	files[project.MarkerFile] = ""
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func load(t *testing.T, root, cluster, environment string) *Context {
	t.Helper()
	ctx, err := Load(NewOptions(root, cluster, environment))
	require.NoError(t, err)
	return ctx
}

func TestLoad_NotAProject(t *testing.T) {
	_, err := Load(NewOptions(t.TempDir(), "", ""))
	assert.ErrorContains(t, err, "not a valid project")
}

func TestLoad_SelectorErrors(t *testing.T) {
	root := createProject(t, map[string]string{})

	_, err := Load(NewOptions(root, "nope", ""))
	var clusterErr *project.NoSuchClusterError
	assert.ErrorAs(t, err, &clusterErr)
}

func TestLoad_MalformedValues(t *testing.T) {
	root := createProject(t, map[string]string{"values.yaml": "a: [b\n"})

	_, err := Load(NewOptions(root, "", ""))
	var malformed *config.MalformedDocumentError
	assert.ErrorAs(t, err, &malformed)
}

func TestContext_ResolveOverlay(t *testing.T) {
	root := createProject(t, map[string]string{
		"values.yaml":                            "name: web\nreplicas: 1\n",
		"clusters/eu/values.yaml":                "replicas: 3\n",
		"clusters/eu/environments/prod/.gitkeep": "",
	})

	ctx := load(t, root, "eu", "prod")
	values := ctx.ResolveOverlay()
	assert.Equal(t, merge.Tree{"cluster": "eu", "environment": "prod", "name": "web", "replicas": 3}, values)

	values["name"] = "changed"
	assert.Equal(t, "web", ctx.ResolveOverlay()["name"])
}

func TestContext_ExtraValues(t *testing.T) {
	root := createProject(t, map[string]string{"values.yaml": "name: web\n"})

	opts := NewOptions(root, "", "")
	opts.Values = []config.KeyValue{{Key: "name", Value: "api"}}
	ctx, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "api", ctx.ResolveOverlay()["name"])
}

func TestContext_AnalyzeTemplate(t *testing.T) {
	root := createProject(t, map[string]string{
		"values.yaml":             "name: web\nunused: 1\n",
		"templates/service.yaml":  "name: {{ .name }}\nport: {{ .port }}\n",
		"templates/guarded.yaml":  "port: {{ .port | default 80 }}\n",
		"templates/secret.yaml":   "password: {{ get_secret (printf \"%s-db\" .name) }}\n",
		"templates/reserved.yaml": "x: {{ .range }}\n",
		"templates/unparsed.yaml": "x: {{ get_secret .name }}\n",
		"templates/syntax.yaml":   "x: {{ .name \n",
	})
	ctx := load(t, root, "", "")

	result, err := ctx.AnalyzeTemplate("service.yaml")
	require.NoError(t, err)
	assert.Equal(t, analyzer.Result{
		Required:  []string{"name", "port"},
		Undefined: []string{"port"},
		Unused:    []string{"unused"},
		Invalid:   []string{},
		Secrets:   []string{},
	}, result)

	result, err = ctx.AnalyzeTemplate("guarded.yaml")
	require.NoError(t, err)
	assert.Empty(t, result.Undefined)

	result, err = ctx.AnalyzeTemplate("secret.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"$name-db"}, result.Secrets)

	result, err = ctx.AnalyzeTemplate("reserved.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"range"}, result.Invalid)
	assert.Empty(t, result.Undefined)

	_, err = ctx.AnalyzeTemplate("unparsed.yaml")
	var unparsable *analyzer.UnparsableSecretArgumentError
	assert.ErrorAs(t, err, &unparsable)

	_, err = ctx.AnalyzeTemplate("syntax.yaml")
	assert.Error(t, err)
}

func TestContext_ValidateAll(t *testing.T) {
	root := createProject(t, map[string]string{
		"values.yaml":            "name: web\n",
		"templates/ok.yaml":      "name: {{ .name }}\n",
		"templates/missing.yaml": "name: {{ .nope }}\n",
		"templates/secret.yaml":  "password: {{ get_secret \"db\" }}\n",
	})
	ctx := load(t, root, "", "")

	report, err := ctx.ValidateAll()
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []string{"missing.yaml", "secret.yaml"}, report.Failed())
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, []string{"undefined variable: nope"}, report.Outcomes[0].Errors())
}

func TestContext_ValidateAllIncludesNestedTemplates(t *testing.T) {
	root := createProject(t, map[string]string{
		"templates/top.yaml":         "a: b\n",
		"templates/apps/nested.yaml": "name: {{ .missing }}\n",
	})
	ctx := load(t, root, "", "")

	report, err := ctx.ValidateAll()
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, []string{"apps/nested.yaml"}, report.Failed())
}

func TestContext_VariablesDoNotHideValues(t *testing.T) {
	root := createProject(t, map[string]string{
		"templates/replicas.yaml": "{{ $replicas := 3 }}replicas: {{ .replicas }}\n",
	})
	ctx := load(t, root, "", "")

	report, err := ctx.ValidateAll()
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []string{"undefined variable: replicas"}, report.Outcomes[0].Errors())
}

func TestContext_InvalidConfiguration(t *testing.T) {
	root := createProject(t, map[string]string{
		"config.yaml":       "secrets:\n  prefix: app/\n",
		"templates/ok.yaml": "a: b\n",
	})
	ctx := load(t, root, "", "")

	names, err := ctx.ListTemplates()
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.yaml"}, names)

	var invalid *config.InvalidConfigurationError
	_, err = ctx.ValidateAll()
	assert.ErrorAs(t, err, &invalid)
	_, err = ctx.Config()
	assert.ErrorAs(t, err, &invalid)
	_, err = ctx.Generate(&bytes.Buffer{})
	assert.ErrorAs(t, err, &invalid)
}

func TestContext_Generate(t *testing.T) {
	root := createProject(t, map[string]string{
		"values.yaml":                        "name: web\n",
		"config.yaml":                        "secrets:\n  provider: random\n",
		"templates/a.yaml":                   "name: {{ .name }}",
		"templates/b.yaml":                   "password: {{ get_secret \"db\" 12 }}\n",
		"clusters/eu/templates/a.yaml":       "name: {{ .name }}-{{ .cluster }}\n",
		"clusters/eu/environments/dev/.keep": "",
	})
	ctx := load(t, root, "eu", "dev")

	var out bytes.Buffer
	report, err := ctx.Generate(&out)
	require.NoError(t, err)
	assert.True(t, report.OK())

	lines := strings.Split(out.String(), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, []string{"---", "# Source: a.yaml", "name: web-eu", "---", "# Source: b.yaml"}, lines[:5])
	assert.Regexp(t, `^password: [a-z0-9]{12}$`, lines[5])
	assert.Equal(t, "", lines[6])
}

func TestContext_GenerateRefusesInvalidTemplates(t *testing.T) {
	root := createProject(t, map[string]string{
		"templates/ok.yaml":      "a: b\n",
		"templates/missing.yaml": "name: {{ .nope }}\n",
	})
	ctx := load(t, root, "", "")

	var out bytes.Buffer
	report, err := ctx.Generate(&out)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, []string{"missing.yaml"}, report.Failed())
	assert.Empty(t, out.String())
}

func TestResolvePath(t *testing.T) {
	original := osUserHomeDir
	defer func() { osUserHomeDir = original }()
	osUserHomeDir = func() (string, error) { return "/home/user", nil }

	tests := []struct {
		path     string
		expected string
	}{
		{"", ""},
		{"secrets.age", "/project/secrets.age"},
		{"keys/key.txt", "/project/keys/key.txt"},
		{"/etc/key.txt", "/etc/key.txt"},
		{"~/.age/key.txt", "/home/user/.age/key.txt"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, resolvePath("/project", tt.path), "path %q", tt.path)
	}

	assert.Nil(t, resolveSecretPaths("/project", nil))
	resolved := resolveSecretPaths("/project", &config.SecretsSettings{Provider: "age", File: "s.age"})
	assert.Equal(t, "/project/s.age", resolved.File)
	assert.Equal(t, "age", resolved.Provider)
}
