// Package cryptox holds the vault's cryptographic primitives: argon2id key
// derivation, passcode verifiers, AES-256-GCM sealing of blobs and JSON
// documents, and X25519 sealed boxes that wrap per-file keys for a user.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/saveme/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/box"
)

const (
	KeySize  = 32
	SaltSize = 16
)

// ErrDecrypt is returned when a ciphertext fails authentication.
var ErrDecrypt = errors.New("decryption failed")

func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// VerifierMatches compares two verifiers in constant time.
func VerifierMatches(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// WrappingKey derives the key that seals a user's private key from the
// passcode master key. It is independent of the stored verifier.
func WrappingKey(masterKey []byte) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte("saveme key wrap")), key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateKeyPair returns a fresh X25519 key pair.
func GenerateKeyPair() (publicKey, privateKey *[32]byte, err error) {
	return box.GenerateKey(rand.Reader)
}

// WrapKey seals key so that only the holder of the private half of
// recipient can recover it.
func WrapKey(key []byte, recipient *[32]byte) ([]byte, error) {
	return box.SealAnonymous(nil, key, recipient, rand.Reader)
}

// UnwrapKey reverses WrapKey.
func UnwrapKey(wrapped []byte, publicKey, privateKey *[32]byte) ([]byte, error) {
	key, ok := box.OpenAnonymous(nil, wrapped, publicKey, privateKey)
	if !ok {
		return nil, fmt.Errorf("%w: key unwrap", ErrDecrypt)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with key under a fresh random nonce.
func Seal(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = common.GenerateRandByteArray(aead.NonceSize())
	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open reverses Seal.
func Open(ciphertext, nonce, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce size %d", ErrDecrypt, len(nonce))
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

// EncryptEntry marshals entry to JSON and seals it with key.
//
//	ct, nonce, err := cryptox.EncryptEntry(snapshot, key)
func EncryptEntry(entry any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(entry)
	if err != nil {
		return nil, nil, err
	}
	defer common.WipeByteArray(plaintext)
	return Seal(plaintext, key)
}

// DecryptEntry opens ciphertext and unmarshals the JSON into v.
func DecryptEntry(ciphertext, nonce, key []byte, v any) error {
	plaintext, err := Open(ciphertext, nonce, key)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)
	return json.Unmarshal(plaintext, v)
}

type EncryptedFile struct {
	Cyphertext []byte
	Key        []byte
	Nonce      []byte
}

// EncryptFile reads path and seals it with a fresh random file key.
func EncryptFile(path string) (*EncryptedFile, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)

	key := common.GenerateRandByteArray(KeySize)
	ciphertext, nonce, err := Seal(plaintext, key)
	if err != nil {
		return nil, err
	}
	return &EncryptedFile{Cyphertext: ciphertext, Key: key, Nonce: nonce}, nil
}
