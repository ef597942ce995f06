// Package filestore persists the session to a single file, the client-side
// equivalent of secure cookie storage. When a secret is provided the payload
// is sealed with XChaCha20-Poly1305 so credentials are never written to disk
// in the clear.
package filestore

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/jrsteele09/go-auth-client/session"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	saltLength = 16
	keyInfo    = "go-auth-client/session-store"
	fileMode   = 0o600
)

var _ session.Store = (*FileStore)(nil)

// FileStore stores the session as a single JSON document, written atomically
// via a temp file and rename so readers never observe a partial group.
type FileStore struct {
	path   string
	secret []byte // empty means plaintext storage
}

// Option defines a function type to modify the FileStore instance.
type Option func(*FileStore)

// WithSecret enables sealing of the stored session with a key derived from
// the given secret.
func WithSecret(secret []byte) Option {
	return func(fs *FileStore) {
		fs.secret = secret
	}
}

// New creates a file store at path.
func New(path string, options ...Option) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[filestore.New] path is required")
	}
	fs := &FileStore{path: path}
	for _, opt := range options {
		opt(fs)
	}
	return fs, nil
}

func (fs *FileStore) Get() (*session.Session, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileStore.Get] read")
	}

	if len(fs.secret) > 0 {
		data, err = fs.open(data)
		if err != nil {
			return nil, errors.Wrap(err, "[FileStore.Get] unseal")
		}
	}

	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "[FileStore.Get] unmarshal")
	}
	return &s, nil
}

func (fs *FileStore) Put(s *session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "[FileStore.Put] marshal")
	}

	if len(fs.secret) > 0 {
		data, err = fs.seal(data)
		if err != nil {
			return errors.Wrap(err, "[FileStore.Put] seal")
		}
	}

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return errors.Wrap(err, "[FileStore.Put] mkdir")
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return errors.Wrap(err, "[FileStore.Put] write")
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return errors.Wrap(err, "[FileStore.Put] rename")
	}
	return nil
}

func (fs *FileStore) Clear() error {
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.Clear] remove")
	}
	return nil
}

// seal produces salt || nonce || ciphertext.
func (fs *FileStore) seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	aead, err := fs.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltLength+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

func (fs *FileStore) open(sealed []byte) ([]byte, error) {
	const minLength = saltLength + chacha20poly1305.NonceSizeX
	if len(sealed) < minLength {
		return nil, errors.New("sealed session too short")
	}

	aead, err := fs.aead(sealed[:saltLength])
	if err != nil {
		return nil, err
	}
	nonce := sealed[saltLength:minLength]
	return aead.Open(nil, nonce, sealed[minLength:], nil)
}

func (fs *FileStore) aead(salt []byte) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, fs.secret, salt, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}
