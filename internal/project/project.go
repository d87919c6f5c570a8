package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"manifestctl/pkg/logging"
)

const (
	// MarkerFile identifies a project root.
	MarkerFile = ".manifestctl"

	clustersDir     = "clusters"
	environmentsDir = "environments"
)

// For mocking in tests
var osStat = os.Stat

// Selector chooses which part of the overlay hierarchy to resolve.
// An empty Cluster or Environment means "not selected".
type Selector struct {
	Root        string
	Cluster     string
	Environment string
}

// Kind restricts which filesystem entries FindFiles accepts.
type Kind int

const (
	KindFile Kind = 1 << iota
	KindDir
	KindAny = KindFile | KindDir
)

// NoSuchClusterError is returned when a selected cluster has no directory.
type NoSuchClusterError struct {
	Name string
}

func (e *NoSuchClusterError) Error() string {
	return fmt.Sprintf("no such cluster: %s", e.Name)
}

// NoSuchEnvironmentError is returned when a selected environment is not found
// at any level that was examined.
type NoSuchEnvironmentError struct {
	Name string
}

func (e *NoSuchEnvironmentError) Error() string {
	return fmt.Sprintf("no such environment: %s", e.Name)
}

// FindFiles returns the existing candidates for name ordered from least to most specific:
//
//	<root>/<name>
//	<root>/environments/<env>/<name>                   (no cluster selected)
//	<root>/clusters/<cluster>/<name>
//	<root>/clusters/<cluster>/environments/<env>/<name>
//
// A selected environment must exist as a directory at one of the examined
// environment locations, even if other candidates matched.
func FindFiles(sel Selector, name string, kind Kind) ([]string, error) {
	logging.Debug("Project", "finding %s in %s for cluster=%q environment=%q", name, sel.Root, sel.Cluster, sel.Environment)

	var files []string
	add := func(path string) error {
		ok, err := matches(path, kind)
		if err != nil {
			return err
		}
		if ok {
			files = append(files, path)
		}
		return nil
	}

	if err := add(filepath.Join(sel.Root, name)); err != nil {
		return nil, err
	}

	envFound := sel.Environment == ""

	if sel.Cluster == "" && sel.Environment != "" {
		envPath := filepath.Join(sel.Root, environmentsDir, sel.Environment)
		found, err := isDir(envPath)
		if err != nil {
			return nil, err
		}
		if found {
			envFound = true
			if err := add(filepath.Join(envPath, name)); err != nil {
				return nil, err
			}
		}
	}

	if sel.Cluster != "" {
		clusterPath := filepath.Join(sel.Root, clustersDir, sel.Cluster)
		found, err := isDir(clusterPath)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, &NoSuchClusterError{Name: sel.Cluster}
		}

		if err := add(filepath.Join(clusterPath, name)); err != nil {
			return nil, err
		}

		if sel.Environment != "" {
			envPath := filepath.Join(clusterPath, environmentsDir, sel.Environment)
			found, err := isDir(envPath)
			if err != nil {
				return nil, err
			}
			if found {
				envFound = true
				if err := add(filepath.Join(envPath, name)); err != nil {
					return nil, err
				}
			}
		}
	}

	if !envFound {
		return nil, &NoSuchEnvironmentError{Name: sel.Environment}
	}

	logging.Debug("Project", "found %s candidates: %v", name, files)
	return files, nil
}

// BaseDirectory walks root -> clusters/<cluster> -> environments/<environment>
// and returns the most specific directory of the selection.
func BaseDirectory(sel Selector) (string, error) {
	base := sel.Root

	if sel.Cluster != "" {
		base = filepath.Join(base, clustersDir, sel.Cluster)
		found, err := isDir(base)
		if err != nil {
			return "", err
		}
		if !found {
			return "", &NoSuchClusterError{Name: sel.Cluster}
		}
	}

	if sel.Environment != "" {
		base = filepath.Join(base, environmentsDir, sel.Environment)
		found, err := isDir(base)
		if err != nil {
			return "", err
		}
		if !found {
			return "", &NoSuchEnvironmentError{Name: sel.Environment}
		}
	}

	return base, nil
}

// CheckDirectory reports whether root is a project, i.e. contains the marker file.
func CheckDirectory(root string) error {
	if _, err := osStat(filepath.Join(root, MarkerFile)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("not a valid project: %s", root)
		}
		return err
	}
	return nil
}

// ListClusters returns the sorted names of the clusters defined under root.
func ListClusters(root string) ([]string, error) {
	return listDirs(filepath.Join(root, clustersDir))
}

// ListEnvironments returns the sorted names of the environments defined under base,
// which is a project root or a cluster directory (see BaseDirectory).
func ListEnvironments(base string) ([]string, error) {
	return listDirs(filepath.Join(base, environmentsDir))
}

func listDirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func matches(path string, kind Kind) (bool, error) {
	info, err := osStat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %s: %w", path, err)
	}
	if info.IsDir() {
		return kind&KindDir != 0, nil
	}
	return kind&KindFile != 0 && info.Mode().IsRegular(), nil
}

func isDir(path string) (bool, error) {
	info, err := osStat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %s: %w", path, err)
	}
	return info.IsDir(), nil
}
