package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"manifestctl/internal/merge"
	"manifestctl/internal/project"
	"manifestctl/pkg/logging"
)

// For mocking in tests
var osReadFile = os.ReadFile
var osEnviron = os.Environ

// LoadValues resolves and merges every values overlay for the selection,
// followed by the extra overlays.
func LoadValues(sel project.Selector, policy merge.Policy, extra Overrides) (merge.Tree, error) {
	files, err := project.FindFiles(sel, ValuesFileName, project.KindFile)
	if err != nil {
		return nil, err
	}
	logging.Debug("Config", "using value files: %v", files)

	seed := merge.Tree{}
	if sel.Cluster != "" {
		seed["cluster"] = sel.Cluster
	}
	if sel.Environment != "" {
		seed["environment"] = sel.Environment
	}

	layers := []merge.Tree{seed}
	for _, file := range files {
		doc, err := LoadDocument(file)
		if err != nil {
			return nil, err
		}
		layers = append(layers, doc)
	}

	extraLayers, err := extra.layers()
	if err != nil {
		return nil, err
	}
	layers = append(layers, extraLayers...)

	values, err := merge.DeepMergeAll(policy, layers...)
	if err != nil {
		return nil, fmt.Errorf("failed to merge values: %w", err)
	}
	return values, nil
}

// LoadConfig resolves and merges every config overlay for the selection and
// validates the result.
func LoadConfig(sel project.Selector, policy merge.Policy) (merge.Tree, error) {
	files, err := project.FindFiles(sel, ConfigFileName, project.KindFile)
	if err != nil {
		return nil, err
	}
	logging.Debug("Config", "using config files: %v", files)

	layers := make([]merge.Tree, 0, len(files))
	for _, file := range files {
		doc, err := LoadDocument(file)
		if err != nil {
			return nil, err
		}
		layers = append(layers, doc)
	}

	cfg, err := merge.DeepMergeAll(policy, layers...)
	if err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that a secrets section, if present, names its provider.
func Validate(cfg merge.Tree) error {
	section, exists := cfg["secrets"]
	if !exists {
		return nil
	}
	secrets, ok := section.(map[string]any)
	if !ok {
		return &InvalidConfigurationError{Reason: "secrets must be a mapping"}
	}
	if _, ok := secrets["provider"]; !ok {
		return &InvalidConfigurationError{Reason: "no secrets provider configured"}
	}
	return nil
}

// LoadDocument loads a YAML mapping from path. A missing or empty file yields
// an empty tree.
func LoadDocument(path string) (merge.Tree, error) {
	logging.Debug("Config", "loading file: %s", path)

	data, err := osReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return merge.Tree{}, nil
		}
		return nil, fmt.Errorf("error loading %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedDocumentError{Path: path, Err: err}
	}
	if doc == nil {
		return merge.Tree{}, nil
	}
	return normalize(doc), nil
}

// EnvValues collects the environment variables starting with prefix. The
// remainder of each name, lowercased, becomes the value key.
func EnvValues(prefix string) merge.Tree {
	values := merge.Tree{}
	if prefix == "" {
		return values
	}

	for _, env := range osEnviron() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, prefix))
		if key == "" {
			continue
		}
		values[key] = value
	}
	return values
}

// ParseKeyValue splits a "key=value" override.
func ParseKeyValue(s string) (KeyValue, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return KeyValue{}, fmt.Errorf("invalid value %q, expected KEY=VALUE", s)
	}
	return KeyValue{Key: strings.TrimSpace(key), Value: value}, nil
}

func (o Overrides) layers() ([]merge.Tree, error) {
	var layers []merge.Tree

	for _, file := range o.ValueFiles {
		if _, err := os.Stat(file); err != nil {
			return nil, fmt.Errorf("value file %s: %w", file, err)
		}
		doc, err := LoadDocument(file)
		if err != nil {
			return nil, err
		}
		layers = append(layers, doc)
	}

	if len(o.Values) > 0 {
		values := merge.Tree{}
		for _, kv := range o.Values {
			merge.SetPath(values, kv.Key, kv.Value)
		}
		layers = append(layers, values)
	}

	if env := EnvValues(o.EnvPrefix); len(env) > 0 {
		keys := merge.Keys(env)
		logging.Debug("Config", "using environment values: %v", keys)
		layers = append(layers, env)
	}

	return layers, nil
}

// normalize converts nested map[interface{}]interface{} nodes, produced for
// mappings with non-string keys, into string keyed trees.
func normalize(value map[string]any) map[string]any {
	for key, v := range value {
		value[key] = normalizeValue(v)
	}
	return value
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return normalize(v)
	case map[any]any:
		converted := make(map[string]any, len(v))
		for key, nested := range v {
			converted[fmt.Sprint(key)] = normalizeValue(nested)
		}
		return converted
	case []any:
		for i := range v {
			v[i] = normalizeValue(v[i])
		}
		return v
	default:
		return value
	}
}
