package secrets

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"manifestctl/internal/config"
)

// RandomProviderName is the registry name of the random provider.
const RandomProviderName = "random"

const (
	randomAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	randomMinLength = 12
	randomMaxLength = 32
)

// RandomProvider generates a random secret the first time a key is requested
// and returns the same value for that key afterwards.
type RandomProvider struct {
	mu    sync.Mutex
	store map[string]string
}

// NewRandomProvider is the Factory of the random provider. It takes no settings.
func NewRandomProvider(config.SecretsSettings) (Provider, error) {
	return &RandomProvider{store: make(map[string]string)}, nil
}

func (p *RandomProvider) Secret(key string, length int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	value, ok := p.store[key]
	if !ok {
		n := length
		if n <= 0 {
			extra, err := rand.Int(rand.Reader, big.NewInt(randomMaxLength-randomMinLength+1))
			if err != nil {
				return "", err
			}
			n = randomMinLength + int(extra.Int64())
		}

		var err error
		value, err = RandomString(n)
		if err != nil {
			return "", err
		}
		p.store[key] = value
	}

	if err := checkLength(key, value, length); err != nil {
		return "", err
	}
	return value, nil
}

// RandomString returns a string of lowercase letters and digits read from
// crypto/rand.
func RandomString(length int) (string, error) {
	if length < 0 {
		return "", fmt.Errorf("invalid length: %d", length)
	}

	max := big.NewInt(int64(len(randomAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random string: %w", err)
		}
		b[i] = randomAlphabet[n.Int64()]
	}
	return string(b), nil
}
