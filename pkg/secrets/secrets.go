// Package secrets implements the API Credential encryption the User and
// API Credential entities require (§3: "Ciphertext is AES-GCM of the raw
// key under a key derived from a process-wide pepper and the owning user
// id"). The cipher construction (AES-256-GCM via the standard library) is
// grounded on rakunlabs-at/internal/crypto.Encrypt/Decrypt, adapted from
// its single encoded "enc:<base64>" string to domain.APICredential's three
// separate Ciphertext/IV/AuthTag fields and its single-passphrase
// DeriveKey to a per-user derivation over a process-wide pepper.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
	"github.com/inkwell-ai/chatcore/pkg/chatid"
)

// Keyring derives per-user AES-256 keys from one process-wide pepper,
// never persisting a derived key itself.
type Keyring struct {
	pepper []byte
}

// NewKeyring returns a Keyring over pepper, which should come from
// Config.EncryptionMasterPepper (§6's ENCRYPTION_MASTER_PEPPER).
func NewKeyring(pepper string) (*Keyring, error) {
	if pepper == "" {
		return nil, &chaterrors.ConfigurationError{Missing: []string{"ENCRYPTION_MASTER_PEPPER"}}
	}
	return &Keyring{pepper: []byte(pepper)}, nil
}

// deriveKey mirrors the teacher's DeriveKey (single SHA-256 hash), but
// folds in the owning user's id so no two users' credentials share a key
// even if the pepper is ever compromised for one.
func (k *Keyring) deriveKey(userID chatid.ID) []byte {
	h := sha256.New()
	h.Write(k.pepper)
	h.Write([]byte(userID.String()))
	sum := h.Sum(nil)
	return sum[:]
}

// Seal encrypts plaintext under userID's derived key, returning the
// ciphertext, nonce (IV), and authentication tag as the three separate
// fields domain.APICredential stores.
func (k *Keyring) Seal(userID chatid.ID, plaintext string) (ciphertext, iv, authTag []byte, err error) {
	block, err := aes.NewCipher(k.deriveKey(userID))
	if err != nil {
		return nil, nil, nil, &chaterrors.EncryptionError{Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, &chaterrors.EncryptionError{Err: err}
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, nil, &chaterrors.EncryptionError{Err: err}
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	tagStart := len(sealed) - gcm.Overhead()
	return sealed[:tagStart], nonce, sealed[tagStart:], nil
}

// Open decrypts a value previously produced by Seal for the same userID.
func (k *Keyring) Open(userID chatid.ID, ciphertext, iv, authTag []byte) (string, error) {
	block, err := aes.NewCipher(k.deriveKey(userID))
	if err != nil {
		return "", &chaterrors.EncryptionError{Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", &chaterrors.EncryptionError{Err: err}
	}
	if len(iv) != gcm.NonceSize() {
		return "", &chaterrors.EncryptionError{Err: fmt.Errorf("unexpected nonce size %d", len(iv))}
	}
	sealed := append(append([]byte{}, ciphertext...), authTag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", &chaterrors.EncryptionError{Err: err}
	}
	return string(plaintext), nil
}
