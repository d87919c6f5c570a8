package analyzer

import (
	"fmt"
	"regexp"
	"sort"
)

// SecretFunction is the template function whose first argument names a secret.
const SecretFunction = "get_secret"

const defaultFilter = "default"

// placeholderPattern matches printf-style placeholders and the "%%" escape.
var placeholderPattern = regexp.MustCompile(`%%|%[-+# 0]*[0-9]*(?:\.[0-9]+)?[a-zA-Z]`)

// Result is the outcome of analyzing one template against a set of defined values.
// All slices are sorted and free of duplicates.
type Result struct {
	Required  []string // variables the template needs from the values
	Undefined []string // required but not defined, excluding Invalid
	Unused    []string // defined but not required
	Invalid   []string // required names that are prohibited
	Secrets   []string // secret keys looked up by the template
}

// HasSecrets reports whether the template looks up any secret.
func (r Result) HasSecrets() bool {
	return len(r.Secrets) > 0
}

// UnparsableSecretArgumentError is returned when a secret lookup is called
// with an argument whose key cannot be determined statically.
type UnparsableSecretArgumentError struct {
	Source string
}

func (e *UnparsableSecretArgumentError) Error() string {
	return fmt.Sprintf("unable to parse secret key argument %q of %s", e.Source, SecretFunction)
}

// Analyze computes the variables and secrets tree needs.
//
// Globals are names the engine provides itself; they are not required
// unless they are also prohibited, in which case they are reported as invalid.
func Analyze(tree Tree, defined, globals, prohibited []string) (Result, error) {
	required := RequiredVariables(tree, globals, prohibited)

	secrets, err := SecretReferences(tree)
	if err != nil {
		return Result{}, err
	}

	definedSet := toSet(defined)
	prohibitedSet := toSet(prohibited)

	invalid := intersect(required, prohibitedSet)

	return Result{
		Required:  sorted(required),
		Undefined: sorted(subtract(subtract(required, definedSet), invalid)),
		Unused:    sorted(subtract(definedSet, required)),
		Invalid:   sorted(invalid),
		Secrets:   sorted(secrets),
	}, nil
}

// RequiredVariables returns the free variables of tree that the template does
// not guard, bind or receive from the engine.
func RequiredVariables(tree Tree, globals, prohibited []string) map[string]struct{} {
	required := toSet(tree.FreeVariables())

	prohibitedSet := toSet(prohibited)
	for _, name := range globals {
		if _, reserved := prohibitedSet[name]; !reserved {
			delete(required, name)
		}
	}

	for _, application := range tree.FilterApplications() {
		if application.Filter == defaultFilter && application.Subject != "" {
			delete(required, application.Subject)
		}
	}

	for _, name := range tree.DefinedTests() {
		delete(required, name)
	}

	for _, name := range tree.Assignments() {
		delete(required, name)
	}

	return required
}

// SecretReferences returns the keys passed to SecretFunction. Keys built from a
// format with a single placeholder and a single variable are reported with the
// placeholder replaced by "$<variable>".
func SecretReferences(tree Tree) (map[string]struct{}, error) {
	secrets := map[string]struct{}{}

	for _, call := range tree.Calls() {
		if call.Function != SecretFunction {
			continue
		}
		if len(call.Args) == 0 {
			return nil, &UnparsableSecretArgumentError{Source: SecretFunction + "()"}
		}

		key, err := secretKey(call.Args[0])
		if err != nil {
			return nil, err
		}
		secrets[key] = struct{}{}
	}

	return secrets, nil
}

func secretKey(arg Expr) (string, error) {
	switch arg.Kind {
	case ExprLiteral:
		return arg.Value, nil
	case ExprFormat:
		if len(arg.Args) == 1 && arg.Args[0].Kind == ExprVariable {
			if key, ok := substitute(arg.Value, arg.Args[0].Value); ok {
				return key, nil
			}
		}
	}
	return "", &UnparsableSecretArgumentError{Source: arg.Source}
}

// substitute replaces the only placeholder of format with "$<variable>".
func substitute(format, variable string) (string, bool) {
	count := 0
	key := placeholderPattern.ReplaceAllStringFunc(format, func(match string) string {
		if match == "%%" {
			return "%"
		}
		count++
		return "$" + variable
	})
	return key, count == 1
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func subtract(a, b map[string]struct{}) map[string]struct{} {
	result := make(map[string]struct{}, len(a))
	for name := range a {
		if _, ok := b[name]; !ok {
			result[name] = struct{}{}
		}
	}
	return result
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	result := map[string]struct{}{}
	for name := range a {
		if _, ok := b[name]; ok {
			result[name] = struct{}{}
		}
	}
	return result
}

func sorted(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
