package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingSecret       = errors.New("server secret is not configured")
	ErrMissingPasswordHash = errors.New("password hash is not configured")
	ErrInvalidHashFormat   = errors.New("invalid password hash format")
)

const (
	argon2Variant = "argon2id"
	argon2Version = "v=19"

	argon2Memory      uint32 = 64 * 1024
	argon2Iterations  uint32 = 3
	argon2Parallelism uint8  = 2
	argon2SaltLength         = 16
	argon2KeyLength   uint32 = 32

	tokenBytes = 32
)

// HashPassword returns a salted argon2id hash in the form
// argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<hash>.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}

	salt := make([]byte, argon2SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, argon2Iterations, argon2Memory, argon2Parallelism, argon2KeyLength)

	return strings.Join([]string{
		argon2Variant,
		argon2Version,
		fmt.Sprintf("m=%d,t=%d,p=%d", argon2Memory, argon2Iterations, argon2Parallelism),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	}, "$"), nil
}

// LegacyHashPassword is the unsalted SHA-256 digest older deployments stored.
// Only use it to verify existing hashes.
func LegacyHashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// CheckPassword verifies a password against an argon2id, bcrypt or legacy hash.
func CheckPassword(hash string, password string) bool {
	if hash == "" || password == "" {
		return false
	}

	switch {
	case strings.HasPrefix(hash, argon2Variant+"$"):
		ok, err := verifyArgon2(hash, password)
		return err == nil && ok
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	case len(hash) == sha256.Size*2:
		return CompareTokens(strings.ToLower(hash), LegacyHashPassword(password))
	default:
		return false
	}
}

func verifyArgon2(encoded string, password string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != argon2Variant || parts[1] != argon2Version {
		return false, ErrInvalidHashFormat
	}

	var memory, iterations uint32
	var parallelism uint8

	for _, entry := range strings.Split(parts[2], ",") {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return false, ErrInvalidHashFormat
		}
		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return false, fmt.Errorf("%w: %w", ErrInvalidHashFormat, err)
			}
			memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return false, fmt.Errorf("%w: %w", ErrInvalidHashFormat, err)
			}
			iterations = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return false, fmt.Errorf("%w: %w", ErrInvalidHashFormat, err)
			}
			parallelism = uint8(v)
		default:
			return false, ErrInvalidHashFormat
		}
	}

	if memory == 0 || iterations == 0 || parallelism == 0 {
		return false, ErrInvalidHashFormat
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidHashFormat, err)
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(expected) == 0 {
		return false, ErrInvalidHashFormat
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// DeriveToken computes the session token for a credential triple. The same
// inputs always yield the same token, so it can be recomputed on every request.
func DeriveToken(username string, passwordHash string, secret string) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}

	if passwordHash == "" {
		return "", ErrMissingPasswordHash
	}

	mac := hmac.New(sha256.New, []byte(secret))
	// length prefixes keep ("ab", "c") and ("a", "bc") apart
	fmt.Fprintf(mac, "%d:%s:%d:%s", len(username), username, len(passwordHash), passwordHash)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func CompareTokens(a string, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func GetSecret(conf string, file string) string {
	if conf == "" && file == "" {
		return ""
	}

	if conf != "" {
		return conf
	}

	contents, err := ReadFile(file)
	if err != nil {
		return ""
	}

	return ParseSecretFile(contents)
}

func ParseSecretFile(contents string) string {
	lines := strings.Split(contents, "\n")

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		return strings.TrimSpace(line)
	}

	return ""
}
