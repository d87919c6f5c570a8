package templates

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/validation"

	"manifestctl/internal/secrets"
)

var labelInvalidChars = regexp.MustCompile(`(^[^a-zA-Z0-9]|[^a-zA-Z0-9]$|[^a-zA-Z0-9_.-])`)

// cpuPattern accepts cores ("0.5", "2") and millicores ("250m") only.
var cpuPattern = regexp.MustCompile(`^([0-9]+(\.[0-9]+)?|[0-9]+m)$`)

var hashMethods = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha224": sha256.New224,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

// For mocking in tests
var osLookupEnv = os.LookupEnv

func b64encode(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return base64.StdEncoding.EncodeToString([]byte(v)), nil
	case []byte:
		return base64.StdEncoding.EncodeToString(v), nil
	case int, int64, uint64:
		return base64.StdEncoding.EncodeToString([]byte(fmt.Sprint(v))), nil
	default:
		return "", fmt.Errorf("b64encode: invalid input: %v", value)
	}
}

func b64decode(value any) (string, error) {
	var encoded string
	switch v := value.(type) {
	case string:
		encoded = v
	case []byte:
		encoded = string(v)
	default:
		return "", fmt.Errorf("b64decode: invalid input: %v", value)
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("b64decode: %w", err)
	}
	return string(decoded), nil
}

// hashValue returns the hex digest of the last argument. An optional leading
// argument names the method, sha256 by default:
//
//	{{ .x | hash }}
//	{{ .x | hash "sha1" }}
func hashValue(args ...any) (string, error) {
	method := "sha256"
	switch len(args) {
	case 1:
	case 2:
		name, ok := args[0].(string)
		if !ok {
			return "", fmt.Errorf("hash: method must be a string, got %T", args[0])
		}
		method = strings.ToLower(name)
	default:
		return "", fmt.Errorf("hash: expected 1 or 2 arguments, got %d", len(args))
	}

	newHash, ok := hashMethods[method]
	if !ok {
		return "", fmt.Errorf("hash: no such hash method: %s", method)
	}

	h := newHash()
	switch v := args[len(args)-1].(type) {
	case string:
		h.Write([]byte(v))
	case []byte:
		h.Write(v)
	default:
		return "", fmt.Errorf("hash: invalid input: %v", v)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func toBool(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case int:
		return v == 1
	case string:
		switch strings.ToLower(v) {
		case "yes", "on", "1", "true":
			return true
		}
	}
	return false
}

// sanitizeLabel truncates value to the maximum label length and replaces
// characters not allowed in a label value with "X".
func sanitizeLabel(value string) string {
	if len(value) > validation.LabelValueMaxLength {
		value = value[:validation.LabelValueMaxLength]
	}
	return labelInvalidChars.ReplaceAllString(value, "X")
}

// standardizeCPU converts a cpu quantity to millicores.
func standardizeCPU(value any) (int64, error) {
	str := fmt.Sprint(value)
	if !cpuPattern.MatchString(str) {
		return 0, fmt.Errorf("invalid cpu value: %v", value)
	}
	q, err := resource.ParseQuantity(str)
	if err != nil {
		return 0, fmt.Errorf("invalid cpu value: %v", value)
	}
	millis := q.MilliValue()
	if millis < 1 {
		return 0, fmt.Errorf("invalid cpu value: %d is less than 1", millis)
	}
	return millis, nil
}

func sanitizeCPU(value any) (string, error) {
	millis, err := standardizeCPU(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%dm", millis), nil
}

// standardizeMemory converts a memory quantity to megabytes, rounding down.
func standardizeMemory(value any) (int64, error) {
	q, err := resource.ParseQuantity(fmt.Sprint(value))
	if err != nil {
		return 0, fmt.Errorf("invalid memory value: %v", value)
	}
	mb := q.Value() / 1000 / 1000
	if mb < 1 {
		return 0, fmt.Errorf("invalid memory value: %d is less than one MB", mb)
	}
	return mb, nil
}

func sanitizeMemory(value any) (string, error) {
	mb, err := standardizeMemory(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%dM", mb), nil
}

func randomPassword(length int) (string, error) {
	return secrets.RandomString(length)
}

// envValue returns an environment variable, or the optional default when
// it is unset.
func envValue(key string, def ...string) string {
	if value, ok := osLookupEnv(key); ok {
		return value
	}
	if len(def) > 0 {
		return def[0]
	}
	return ""
}
