// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// argon2idParams are the parameters every new hash is written with. Stored
// hashes carry their own parameters, so changing these only affects accounts
// as they next log in.
var argon2idParams = passwordHash{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
}

const saltLength = 16

var errMalformedHash = errors.New("malformed password hash")

// passwordHash is the decoded form of
// $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>.
type passwordHash struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
	salt    []byte
	key     []byte
}

func (p passwordHash) derive(password string) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, p.keyLen)
}

func (p passwordHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key),
	)
}

func (p passwordHash) outdated() bool {
	return p.memory != argon2idParams.memory ||
		p.time != argon2idParams.time ||
		p.threads != argon2idParams.threads ||
		p.keyLen != argon2idParams.keyLen
}

func parsePasswordHash(encoded string) (passwordHash, error) {
	var p passwordHash

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, fmt.Errorf("%w: version: %w", errMalformedHash, err)
	}
	if version != argon2.Version {
		return p, fmt.Errorf("%w: argon2 version %d", errMalformedHash, version)
	}

	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads)
	if err != nil {
		return p, fmt.Errorf("%w: params: %w", errMalformedHash, err)
	}

	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, fmt.Errorf("%w: salt: %w", errMalformedHash, err)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, fmt.Errorf("%w: key: %w", errMalformedHash, err)
	}

	//nolint:gosec // G115: argon2id keys are 32 bytes
	p.keyLen = uint32(len(p.key))
	return p, nil
}

// HashPassword returns an encoded argon2id hash with a fresh random salt.
func HashPassword(password string) (string, error) {
	p := argon2idParams
	p.salt = make([]byte, saltLength)
	if _, err := rand.Read(p.salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	p.key = p.derive(password)
	return p.String(), nil
}

// VerifyPassword accepts argon2id hashes and the bcrypt hashes of accounts
// created before the switch to argon2id.
func VerifyPassword(password, encoded string) (bool, error) {
	if isBcryptHash(encoded) {
		return verifyBcrypt(password, encoded)
	}

	p, err := parsePasswordHash(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(p.key, p.derive(password)) == 1, nil
}

// needsRehash is true for bcrypt hashes and for argon2id hashes written
// with other parameters.
func needsRehash(encoded string) bool {
	if isBcryptHash(encoded) {
		return true
	}
	p, err := parsePasswordHash(encoded)
	return err != nil || p.outdated()
}

var dummyHash = sync.OnceValue(func() string {
	hash, err := HashPassword("roadwatch-unknown-account")
	if err != nil {
		panic(fmt.Sprintf("security: generate dummy hash: %v", err))
	}
	return hash
})

// VerifyPasswordTimingSafe spends the same argon2id work whether or not the
// account exists, so login latency does not reveal registered emails. On a
// successful match against an outdated hash it also returns the upgraded
// hash to persist; rehash is "" otherwise.
func VerifyPasswordTimingSafe(
	password string,
	encoded *string,
) (ok bool, rehash string, err error) {
	if encoded == nil || *encoded == "" {
		_, _ = VerifyPassword(password, dummyHash()) //nolint:errcheck // timing only
		return false, "", nil
	}

	ok, err = VerifyPassword(password, *encoded)
	if err != nil || !ok {
		return false, "", err
	}

	if needsRehash(*encoded) {
		upgraded, hashErr := HashPassword(password)
		if hashErr == nil {
			rehash = upgraded
		}
	}
	return true, rehash, nil
}

func isBcryptHash(encoded string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, prefix) {
			return true
		}
	}
	return false
}

func verifyBcrypt(password, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("verify bcrypt hash: %w", err)
	}
}
