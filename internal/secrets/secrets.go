package secrets

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"manifestctl/internal/config"
	"manifestctl/pkg/logging"
)

// ErrProviderNotConfigured is returned when a secret is requested but the
// configuration names no provider.
var ErrProviderNotConfigured = errors.New("secrets provider not configured")

// Provider looks up secrets by key. A length of zero means any length.
type Provider interface {
	Secret(key string, length int) (string, error)
}

// Factory creates a provider from the secrets settings.
type Factory func(settings config.SecretsSettings) (Provider, error)

// UnknownProviderError is returned for a provider name with no registered factory.
type UnknownProviderError struct {
	Name      string
	Available []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("secret provider %s does not exist (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// NotFoundError is returned when a provider has no secret for a key.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("secret %q not found", e.Key)
}

// LengthMismatchError is returned when a secret does not have the requested length.
type LengthMismatchError struct {
	Key      string
	Expected int
	Actual   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("secret %q did not have expected length of %d (got %d)", e.Key, e.Expected, e.Actual)
}

// Registry maps provider names to factories. Names are case insensitive.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the built-in providers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(RandomProviderName, NewRandomProvider)
	r.Register(AgeProviderName, NewAgeProvider)
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[strings.ToLower(name)] = factory
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the provider the settings name.
func (r *Registry) New(settings *config.SecretsSettings) (Provider, error) {
	if settings == nil || settings.Provider == "" {
		return nil, ErrProviderNotConfigured
	}

	name := strings.ToLower(settings.Provider)
	factory, ok := r.factories[name]
	if !ok {
		return nil, &UnknownProviderError{Name: name, Available: r.Names()}
	}

	provider, err := factory(*settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret provider %s: %w", name, err)
	}
	return provider, nil
}

// Resolver serves secret lookups for one configuration. The provider is
// created on the first lookup, so a misconfigured provider only fails
// templates that actually use secrets.
type Resolver struct {
	registry *Registry
	settings *config.SecretsSettings

	once     sync.Once
	provider Provider
	err      error
}

// NewResolver returns a resolver for settings, which may be nil.
func NewResolver(registry *Registry, settings *config.SecretsSettings) *Resolver {
	return &Resolver{registry: registry, settings: settings}
}

// Secret returns the secret for key, with the configured prefix applied.
func (r *Resolver) Secret(key string, length int) (string, error) {
	r.once.Do(func() {
		r.provider, r.err = r.registry.New(r.settings)
	})
	if r.err != nil {
		return "", r.err
	}

	fullKey := r.settings.Prefix + key
	logging.Debug("Secrets", "requesting secret %s", fullKey)
	return r.provider.Secret(fullKey, length)
}

// checkLength enforces a requested length on a secret value.
func checkLength(key, value string, length int) error {
	if length > 0 && len(value) != length {
		return &LengthMismatchError{Key: key, Expected: length, Actual: len(value)}
	}
	return nil
}
