package merge

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"manifestctl/pkg/logging"
)

// Tree is a configuration document: string keys mapping to nested trees or scalar values.
type Tree = map[string]any

// Policy decides what happens when two overlays define the same scalar key differently.
type Policy int

const (
	// LeftToRight lets the later overlay win.
	LeftToRight Policy = iota
	// RightToLeft keeps the value of the earlier overlay.
	RightToLeft
	// Ask would resolve conflicts interactively. It is declared but unsupported.
	Ask
	// Crash turns every scalar conflict into an error.
	Crash
)

// PolicyNames lists the accepted policy names in display order.
var PolicyNames = []string{"ltr", "rtl", "ask", "crash"}

// ErrUnsupportedOperation is returned when the Ask policy hits a conflict.
var ErrUnsupportedOperation = errors.New("merge policy \"ask\" is not supported")

// ConflictError reports a scalar conflict under the Crash policy.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict at %s", e.Path)
}

// String returns the short policy name.
func (p Policy) String() string {
	if int(p) >= 0 && int(p) < len(PolicyNames) {
		return PolicyNames[p]
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy converts a policy name ("ltr", "rtl", "ask", "crash") into a Policy.
func ParsePolicy(name string) (Policy, error) {
	for i, candidate := range PolicyNames {
		if strings.EqualFold(name, candidate) {
			return Policy(i), nil
		}
	}
	return 0, fmt.Errorf("invalid merge method %q, must be one of %s", name, strings.Join(PolicyNames, ", "))
}

// Merge combines overlay into a deep copy of base according to policy.
// Neither input is modified.
func Merge(base, overlay Tree, policy Policy) (Tree, error) {
	return mergeAt(base, overlay, policy, nil)
}

func mergeAt(base, overlay Tree, policy Policy, path []string) (Tree, error) {
	result := Clone(base)
	if result == nil {
		result = Tree{}
	}

	for key, overlayValue := range overlay {
		baseValue, exists := result[key]
		if !exists {
			result[key] = cloneValue(overlayValue)
			continue
		}

		baseTree, baseIsTree := asTree(baseValue)
		overlayTree, overlayIsTree := asTree(overlayValue)
		if baseIsTree && overlayIsTree {
			merged, err := mergeAt(baseTree, overlayTree, policy, append(path, key))
			if err != nil {
				return nil, err
			}
			result[key] = merged
			continue
		}

		if reflect.DeepEqual(baseValue, overlayValue) {
			continue
		}

		switch policy {
		case LeftToRight:
			result[key] = cloneValue(overlayValue)
		case RightToLeft:
			// keep base value
		case Ask:
			return nil, ErrUnsupportedOperation
		case Crash:
			full := make([]string, 0, len(path)+1)
			full = append(full, path...)
			return nil, &ConflictError{Path: strings.Join(append(full, key), ".")}
		default:
			return nil, fmt.Errorf("invalid merge method: %s", policy)
		}
	}

	return result, nil
}

// DeepMergeAll folds Merge over layers from left to right. Nil layers are skipped
// and an empty sequence yields an empty tree.
func DeepMergeAll(policy Policy, layers ...Tree) (Tree, error) {
	logging.Debug("Merge", "%q merging %d trees", policy, len(layers))

	result := Tree{}
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		merged, err := Merge(result, layer, policy)
		if err != nil {
			return nil, err
		}
		result = merged
	}
	return result, nil
}

// Keys returns the sorted top-level keys of tree.
func Keys(tree Tree) []string {
	keys := make([]string, 0, len(tree))
	for key := range tree {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Lookup retrieves a value from a nested tree using a dot-separated path.
func Lookup(tree Tree, path string) (any, bool) {
	var current any = tree
	for _, part := range strings.Split(path, ".") {
		node, ok := asTree(current)
		if !ok {
			return nil, false
		}
		value, exists := node[part]
		if !exists {
			return nil, false
		}
		current = value
	}
	return current, true
}

// SetPath sets a value in tree using a dot-separated path, creating
// intermediate trees as needed. Existing scalars on the way are replaced.
func SetPath(tree Tree, path string, value any) {
	parts := strings.Split(path, ".")
	current := tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := asTree(current[part])
		if !ok {
			next = Tree{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// asTree reports whether value is a nested tree.
func asTree(value any) (Tree, bool) {
	tree, ok := value.(map[string]any)
	return tree, ok
}
