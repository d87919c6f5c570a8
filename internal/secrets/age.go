package secrets

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"filippo.io/age"
	"filippo.io/age/armor"
	"gopkg.in/yaml.v3"

	"manifestctl/internal/config"
	"manifestctl/pkg/logging"
)

// AgeProviderName is the registry name of the age provider.
const AgeProviderName = "age"

// AgeIdentityEnv names an identity file used when the settings give none.
const AgeIdentityEnv = "MANIFESTCTL_AGE_IDENTITY"

// For mocking in tests
var osReadFile = os.ReadFile
var osGetenv = os.Getenv

// AgeProvider serves secrets from an age encrypted YAML mapping of key to
// secret. The file is decrypted once, on the first lookup.
type AgeProvider struct {
	file     string
	identity string

	once    sync.Once
	secrets map[string]string
	err     error
}

// NewAgeProvider is the Factory of the age provider. settings.File is the
// encrypted file and settings.Identity the identity file; the identity falls
// back to the file named by MANIFESTCTL_AGE_IDENTITY.
func NewAgeProvider(settings config.SecretsSettings) (Provider, error) {
	if settings.File == "" {
		return nil, errors.New("age provider requires secrets.file")
	}

	identity := settings.Identity
	if identity == "" {
		identity = osGetenv(AgeIdentityEnv)
	}
	if identity == "" {
		return nil, fmt.Errorf("age provider requires secrets.identity or %s", AgeIdentityEnv)
	}

	return &AgeProvider{file: settings.File, identity: identity}, nil
}

func (p *AgeProvider) Secret(key string, length int) (string, error) {
	p.once.Do(func() {
		p.secrets, p.err = p.load()
	})
	if p.err != nil {
		return "", p.err
	}

	value, ok := p.secrets[key]
	if !ok {
		return "", &NotFoundError{Key: key}
	}
	if err := checkLength(key, value, length); err != nil {
		return "", err
	}
	return value, nil
}

func (p *AgeProvider) load() (map[string]string, error) {
	logging.Debug("Secrets", "decrypting %s", p.file)

	keyData, err := osReadFile(p.identity)
	if err != nil {
		return nil, fmt.Errorf("reading age identity: %w", err)
	}
	identities, err := age.ParseIdentities(bytes.NewReader(keyData))
	if err != nil {
		return nil, fmt.Errorf("parsing age identity %s: %w", p.identity, err)
	}

	ciphertext, err := osReadFile(p.file)
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}

	var src io.Reader = bytes.NewReader(ciphertext)
	if bytes.HasPrefix(bytes.TrimSpace(ciphertext), []byte(armor.Header)) {
		src = armor.NewReader(bufio.NewReader(bytes.NewReader(ciphertext)))
	}

	reader, err := age.Decrypt(src, identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", p.file, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}

	secrets := map[string]string{}
	if err := yaml.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("secrets file %s is not a mapping of strings: %w", p.file, err)
	}
	return secrets, nil
}
