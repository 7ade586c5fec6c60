package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"echo/internal/config"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// PasswordParams tunes argon2id. Higher values slow down every login on purpose.
type PasswordParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultPasswordParams is the second recommended profile from RFC 9106.
var DefaultPasswordParams = PasswordParams{Time: 3, Memory: 64 * 1024, Threads: 4, SaltLen: 16, KeyLen: 32}

// PasswordHasher produces and checks PHC-formatted argon2id hashes.
type PasswordHasher struct {
	params PasswordParams
}

// PasswordParamsFromConfig reads the cost settings from cfg.
func PasswordParamsFromConfig(cfg *config.Config) PasswordParams {
	return PasswordParams{
		Time:    cfg.PasswordHashTime,
		Memory:  cfg.PasswordHashMemoryKB,
		Threads: cfg.PasswordHashThreads,
	}
}

// NewPasswordHasher fills unset params from DefaultPasswordParams.
func NewPasswordHasher(p PasswordParams) *PasswordHasher {
	if p.Time == 0 {
		p.Time = DefaultPasswordParams.Time
	}
	if p.Memory == 0 {
		p.Memory = DefaultPasswordParams.Memory
	}
	if p.Threads == 0 {
		p.Threads = DefaultPasswordParams.Threads
	}
	if p.SaltLen == 0 {
		p.SaltLen = DefaultPasswordParams.SaltLen
	}
	if p.KeyLen == 0 {
		p.KeyLen = DefaultPasswordParams.KeyLen
	}
	return &PasswordHasher{params: p}
}

// Hash returns $argon2id$v=19$m=..,t=..,p=..$salt$key.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify is false on mismatch and on any hash it cannot parse.
// Legacy bcrypt hashes are still accepted.
func (h *PasswordHasher) Verify(encoded, password string) bool {
	if strings.HasPrefix(encoded, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}
	if memory == 0 || time == 0 || threads == 0 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
