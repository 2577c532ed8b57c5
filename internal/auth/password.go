package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"quic-chat-system/internal/errors"
)

// Argon2id parameters. Every hash records its own parameters, so these can
// change without invalidating stored hashes.
const (
	argonMemory  = 64 * 1024
	argonTime    = 1
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// HashPassword hashes a plain text password with Argon2id and a fresh
// random salt, encoded in PHC string format.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, errors.KindPasswordInvalid)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))

	return encoded, nil
}

// VerifyPassword compares a plain text password against a PHC-encoded
// Argon2id hash in constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	salt, key, memory, time, threads, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

func decodeHash(encoded string) (salt, key []byte, memory, time uint32, threads uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, errors.Newf(errors.KindPasswordInvalid, "malformed hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, 0, 0, 0, errors.Newf(errors.KindPasswordInvalid, "malformed hash version")
	}
	if version != argon2.Version {
		return nil, nil, 0, 0, 0, errors.Newf(errors.KindPasswordInvalid, "incompatible hash version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, nil, 0, 0, 0, errors.Newf(errors.KindPasswordInvalid, "malformed hash parameters")
	}

	salt, serr := base64.RawStdEncoding.DecodeString(parts[4])
	if serr != nil {
		return nil, nil, 0, 0, 0, errors.Newf(errors.KindPasswordInvalid, "malformed hash salt")
	}
	key, kerr := base64.RawStdEncoding.DecodeString(parts[5])
	if kerr != nil {
		return nil, nil, 0, 0, 0, errors.Newf(errors.KindPasswordInvalid, "malformed hash key")
	}

	return salt, key, memory, time, threads, nil
}
