package project

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createProject lays out a project tree. Paths ending in "/" become directories,
// everything else becomes an empty file.
func createProject(t *testing.T, paths ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		if p[len(p)-1] == '/' {
			require.NoError(t, os.MkdirAll(full, 0755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, nil, 0644))
	}
	return root
}

func TestFindFiles_Ordering(t *testing.T) {
	root := createProject(t,
		"values.yaml",
		"environments/staging/values.yaml",
		"clusters/eu/values.yaml",
		"clusters/eu/environments/staging/values.yaml",
	)

	tests := []struct {
		name string
		sel  Selector
		want []string
	}{
		{
			name: "project only",
			sel:  Selector{Root: root},
			want: []string{"values.yaml"},
		},
		{
			name: "project environment",
			sel:  Selector{Root: root, Environment: "staging"},
			want: []string{"values.yaml", "environments/staging/values.yaml"},
		},
		{
			name: "cluster",
			sel:  Selector{Root: root, Cluster: "eu"},
			want: []string{"values.yaml", "clusters/eu/values.yaml"},
		},
		{
			name: "cluster environment skips project environment",
			sel:  Selector{Root: root, Cluster: "eu", Environment: "staging"},
			want: []string{"values.yaml", "clusters/eu/values.yaml", "clusters/eu/environments/staging/values.yaml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindFiles(tt.sel, "values.yaml", KindFile)
			require.NoError(t, err)

			want := make([]string, len(tt.want))
			for i, p := range tt.want {
				want[i] = filepath.Join(root, filepath.FromSlash(p))
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestFindFiles_MissingFilesAreSkipped(t *testing.T) {
	root := createProject(t, "clusters/eu/environments/prod/values.yaml")

	got, err := FindFiles(Selector{Root: root, Cluster: "eu", Environment: "prod"}, "values.yaml", KindFile)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "clusters", "eu", "environments", "prod", "values.yaml")}, got)
}

func TestFindFiles_Kind(t *testing.T) {
	root := createProject(t, "templates/", "clusters/eu/templates/", "clusters/eu/values.yaml")

	dirs, err := FindFiles(Selector{Root: root, Cluster: "eu"}, "templates", KindDir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "templates"), filepath.Join(root, "clusters", "eu", "templates")}, dirs)

	files, err := FindFiles(Selector{Root: root, Cluster: "eu"}, "templates", KindFile)
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = FindFiles(Selector{Root: root, Cluster: "eu"}, "values.yaml", KindDir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFindFiles_NoSuchCluster(t *testing.T) {
	root := createProject(t, "values.yaml", "clusters/eu/")

	_, err := FindFiles(Selector{Root: root, Cluster: "nope"}, "values.yaml", KindFile)
	var clusterErr *NoSuchClusterError
	require.ErrorAs(t, err, &clusterErr)
	assert.Equal(t, "nope", clusterErr.Name)
	assert.Equal(t, "no such cluster: nope", err.Error())
}

func TestFindFiles_NoSuchEnvironment(t *testing.T) {
	root := createProject(t, "values.yaml", "environments/staging/", "clusters/eu/environments/prod/")

	tests := []struct {
		name string
		sel  Selector
	}{
		{"unknown project environment", Selector{Root: root, Environment: "nope"}},
		{"unknown cluster environment", Selector{Root: root, Cluster: "eu", Environment: "nope"}},
		{"project environment is not examined with a cluster", Selector{Root: root, Cluster: "eu", Environment: "staging"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FindFiles(tt.sel, "values.yaml", KindFile)
			var envErr *NoSuchEnvironmentError
			require.ErrorAs(t, err, &envErr)
			assert.Equal(t, tt.sel.Environment, envErr.Name)
		})
	}
}

func TestFindFiles_EnvironmentWithoutFileIsFound(t *testing.T) {
	root := createProject(t, "values.yaml", "environments/staging/")

	got, err := FindFiles(Selector{Root: root, Environment: "staging"}, "values.yaml", KindFile)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "values.yaml")}, got)
}

func TestFindFiles_PropagatesStatErrors(t *testing.T) {
	original := osStat
	defer func() { osStat = original }()

	denied := errors.New("permission denied")
	osStat = func(string) (fs.FileInfo, error) { return nil, denied }

	_, err := FindFiles(Selector{Root: "/anywhere"}, "values.yaml", KindFile)
	assert.ErrorIs(t, err, denied)
}

func TestBaseDirectory(t *testing.T) {
	root := createProject(t, "environments/dev/", "clusters/eu/environments/prod/")

	tests := []struct {
		name    string
		sel     Selector
		want    string
		wantErr error
	}{
		{"root", Selector{Root: root}, root, nil},
		{"project environment", Selector{Root: root, Environment: "dev"}, filepath.Join(root, "environments", "dev"), nil},
		{"cluster", Selector{Root: root, Cluster: "eu"}, filepath.Join(root, "clusters", "eu"), nil},
		{"cluster environment", Selector{Root: root, Cluster: "eu", Environment: "prod"}, filepath.Join(root, "clusters", "eu", "environments", "prod"), nil},
		{"missing cluster", Selector{Root: root, Cluster: "us"}, "", &NoSuchClusterError{Name: "us"}},
		{"missing environment", Selector{Root: root, Cluster: "eu", Environment: "dev"}, "", &NoSuchEnvironmentError{Name: "dev"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BaseDirectory(tt.sel)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckDirectory(t *testing.T) {
	assert.NoError(t, CheckDirectory(createProject(t, MarkerFile)))

	err := CheckDirectory(createProject(t, "values.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid project")
}

func TestListClustersAndEnvironments(t *testing.T) {
	root := createProject(t,
		"clusters/us/",
		"clusters/eu/environments/prod/",
		"clusters/eu/environments/dev/",
		"clusters/README.md",
		"environments/local/",
	)

	clusters, err := ListClusters(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"eu", "us"}, clusters)

	envs, err := ListEnvironments(filepath.Join(root, "clusters", "eu"))
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "prod"}, envs)

	envs, err = ListEnvironments(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, envs)

	none, err := ListEnvironments(filepath.Join(root, "clusters", "us"))
	require.NoError(t, err)
	assert.Empty(t, none)
}
