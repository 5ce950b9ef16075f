package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrEmptyPassphrase = errors.New("passphrase cannot be empty")
	ErrInvalidSealed   = errors.New("invalid sealed value format")
	ErrUnsealFailed    = errors.New("unseal failed: wrong passphrase or corrupted value")
)

const sealAlgorithm = "xchacha20poly1305"

// Sealer encrypts small secrets (the persisted bearer token) under a key
// derived from a passphrase with argon2id.
//
// Sealed values are self-describing:
//
//	$xchacha20poly1305$v=19$m=65536,t=3,p=2$<salt>$<nonce||ciphertext>
type Sealer struct {
	Memory      uint32 // Memory cost in KiB
	Iterations  uint32 // Number of iterations (time cost)
	Parallelism uint8  // Number of parallel threads
	SaltLength  uint32 // Length of random salt. Ignored during Open()

	passphrase []byte
}

// NewSealer uses the OWASP argon2id baseline
//
// @ref https://cheatsheetseries.owasp.org/cheatsheets/Password_Storage_Cheat_Sheet.html
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return &Sealer{
		Memory:      64 * 1024, // 64 MB
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		passphrase:  []byte(passphrase),
	}, nil
}

func (s *Sealer) key(salt []byte, memory, iterations uint32, parallelism uint8) []byte {
	return argon2.IDKey(s.passphrase, salt, iterations, memory, parallelism, chacha20poly1305.KeySize)
}

func (s *Sealer) Seal(plaintext []byte) (string, error) {
	salt, err := randomBytes(int(s.SaltLength))
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce, err := randomBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.key(salt, s.Memory, s.Iterations, s.Parallelism))
	if err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, plaintext, []byte(sealAlgorithm))

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		sealAlgorithm,
		argon2.Version,
		s.Memory,
		s.Iterations,
		s.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sealed)), nil
}

// Open reverses Seal. Cost parameters are read from the value itself so
// values sealed with older settings stay readable.
func (s *Sealer) Open(encoded string) ([]byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != sealAlgorithm {
		return nil, ErrInvalidSealed
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: version %q", ErrInvalidSealed, parts[2])
	}

	var memory, iterations uint32
	var parallelism int
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return nil, fmt.Errorf("%w: parameters: %v", ErrInvalidSealed, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: salt encoding: %v", ErrInvalidSealed, err)
	}
	sealed, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, fmt.Errorf("%w: payload encoding: %v", ErrInvalidSealed, err)
	}
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, ErrInvalidSealed
	}

	aead, err := chacha20poly1305.NewX(s.key(salt, memory, iterations, uint8(parallelism)))
	if err != nil {
		return nil, err
	}
	nonce, ciphertext := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(sealAlgorithm))
	if err != nil {
		return nil, ErrUnsealFailed
	}
	return plaintext, nil
}
