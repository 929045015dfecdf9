package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/ports"
	"github.com/zeebo/blake3"
)

const (
	// envelopeID is the id of the single entry written in place of an encrypted snapshot.
	envelopeID = "__envelope__"
	// envelopeField holds the base64 ciphertext inside the envelope entry.
	envelopeField = "__encrypted__"
	// keyField names the fingerprint of the key that sealed the envelope.
	keyField = "__key__"
)

// ErrNoKey is returned when a snapshot was sealed with a key that is not configured.
var ErrNoKey = errors.New("snapshot was encrypted with an unknown key")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys can still open snapshots sealed before a key rotation.
	FallbackKeys [][]byte
}

// sealKey is an AES-GCM key with the fingerprint recorded in envelopes.
type sealKey struct {
	fingerprint string
	aead        cipher.AEAD
}

func newSealKey(key []byte) (sealKey, error) {
	if len(key) != 32 {
		return sealKey{}, errors.New("must be 32 bytes (AES-256)")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return sealKey{}, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return sealKey{}, err
	}
	sum := blake3.Sum256(key)
	return sealKey{fingerprint: hex.EncodeToString(sum[:8]), aead: aead}, nil
}

// seal encrypts plaintext bound to the snapshot name, so an envelope copied
// under another name does not open.
func (k sealKey) seal(name string, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return k.aead.Seal(nonce, nonce, plaintext, []byte(name)), nil
}

func (k sealKey) open(name string, sealed []byte) ([]byte, error) {
	n := k.aead.NonceSize()
	if len(sealed) < n {
		return nil, errors.New("ciphertext too short")
	}
	return k.aead.Open(nil, sealed[:n], sealed[n:], []byte(name))
}

type encryptionMiddleware struct {
	next   ports.SnapshotStore
	active sealKey
	keys   map[string]sealKey
}

// NewEncryptionMiddleware creates a middleware that encrypts snapshots using AES-GCM.
// The wrapped store only ever sees one envelope entry carrying the ciphertext
// and the fingerprint of the key that sealed it.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	active, err := newSealKey(config.ActiveKey)
	if err != nil {
		return nil, fmt.Errorf("active key %w", err)
	}
	keys := map[string]sealKey{active.fingerprint: active}
	for i, raw := range config.FallbackKeys {
		k, err := newSealKey(raw)
		if err != nil {
			return nil, fmt.Errorf("fallback key %d %w", i, err)
		}
		if _, dup := keys[k.fingerprint]; !dup {
			keys[k.fingerprint] = k
		}
	}

	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &encryptionMiddleware{next: next, active: active, keys: keys}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, name string, entries []domain.Entry) error {
	if entries == nil {
		entries = []domain.Entry{}
	}
	plaintext, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	sealed, err := m.active.seal(name, plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}

	return m.next.Save(ctx, name, []domain.Entry{{
		ID:    envelopeID,
		Label: "encrypted",
		Fields: map[string]any{
			envelopeField: base64.StdEncoding.EncodeToString(sealed),
			keyField:      m.active.fingerprint,
		},
	}})
}

func (m *encryptionMiddleware) Load(ctx context.Context, name string) ([]domain.Entry, error) {
	stored, err := m.next.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	// Fail closed: a plain snapshot behind an encrypting store is an error.
	if len(stored) != 1 || stored[0].ID != envelopeID {
		return nil, errors.New("snapshot is missing encrypted data envelope")
	}
	encoded, ok := stored[0].Fields[envelopeField].(string)
	if !ok {
		return nil, errors.New("snapshot is missing encrypted data envelope")
	}
	fingerprint, _ := stored[0].Fields[keyField].(string)
	key, ok := m.keys[fingerprint]
	if !ok {
		return nil, fmt.Errorf("%w (fingerprint %q)", ErrNoKey, fingerprint)
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plaintext, err := key.open(name, sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt snapshot: %w", err)
	}

	var entries []domain.Entry
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted snapshot: %w", err)
	}
	return entries, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, name string) error {
	return m.next.Delete(ctx, name)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
