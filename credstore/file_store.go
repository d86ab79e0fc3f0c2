package credstore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	saltLength = 16

	// scrypt parameters (N, r, p). Interactive-level cost: the key is
	// derived once per process, not per keystroke.
	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

// FileStore persists credentials in a single encrypted file. The file holds
// a random salt, an XChaCha20-Poly1305 nonce and the sealed JSON document of
// all entries; the sealing key is derived from the configured secret with
// scrypt. Writes go through a temp-file rename so readers never observe a
// partially written store.
type FileStore struct {
	path   string
	secret []byte

	mu      sync.Mutex
	salt    []byte
	entries map[string]string
	loaded  bool
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store backed by the file at path. The parent
// directory is created if needed. The secret must be non-empty; it is the
// only input capable of unsealing the file.
func NewFileStore(path string, secret []byte) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[NewFileStore] path is required")
	}
	if len(secret) == 0 {
		return nil, errors.New("[NewFileStore] secret is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(ErrStorage, err.Error())
	}
	return &FileStore{path: path, secret: secret}, nil
}

// Get returns the value stored under key, or ErrNotFound.
func (fs *FileStore) Get(key string) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.load(); err != nil {
		return "", err
	}
	value, ok := fs.entries[key]
	if !ok {
		return "", errors.Wrapf(ErrNotFound, "[FileStore.Get] %q", key)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (fs *FileStore) Set(key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.load(); err != nil {
		return err
	}
	fs.entries[key] = value
	return fs.save()
}

// Delete removes the value stored under key. Absent keys are a no-op.
func (fs *FileStore) Delete(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.load(); err != nil {
		return err
	}
	if _, ok := fs.entries[key]; !ok {
		return nil
	}
	delete(fs.entries, key)
	return fs.save()
}

// Clear removes every stored entry and the backing file.
func (fs *FileStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.entries = map[string]string{}
	fs.salt = nil
	fs.loaded = true
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(ErrStorage, err.Error())
	}
	return nil
}

// load reads and unseals the backing file into memory. Called under fs.mu.
func (fs *FileStore) load() error {
	if fs.loaded {
		return nil
	}

	raw, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		fs.entries = map[string]string{}
		fs.loaded = true
		return nil
	}
	if err != nil {
		return errors.Wrap(ErrStorage, err.Error())
	}

	if len(raw) < saltLength+chacha20poly1305.NonceSizeX {
		return errors.Wrap(ErrStorage, "[FileStore.load] file truncated")
	}
	salt := raw[:saltLength]
	nonce := raw[saltLength : saltLength+chacha20poly1305.NonceSizeX]
	sealed := raw[saltLength+chacha20poly1305.NonceSizeX:]

	aead, err := fs.aead(salt)
	if err != nil {
		return err
	}
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return errors.Wrap(ErrStorage, "[FileStore.load] unseal failed")
	}

	entries := map[string]string{}
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return errors.Wrap(ErrStorage, "[FileStore.load] corrupt store document")
	}

	fs.salt = salt
	fs.entries = entries
	fs.loaded = true
	return nil
}

// save seals the in-memory entries and atomically replaces the backing
// file. Called under fs.mu.
func (fs *FileStore) save() error {
	if fs.salt == nil {
		salt := make([]byte, saltLength)
		if _, err := rand.Read(salt); err != nil {
			return errors.Wrap(ErrStorage, err.Error())
		}
		fs.salt = salt
	}

	plaintext, err := json.Marshal(fs.entries)
	if err != nil {
		return errors.Wrap(ErrStorage, err.Error())
	}

	aead, err := fs.aead(fs.salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(ErrStorage, err.Error())
	}

	raw := make([]byte, 0, saltLength+len(nonce)+len(plaintext)+aead.Overhead())
	raw = append(raw, fs.salt...)
	raw = append(raw, nonce...)
	raw = aead.Seal(raw, nonce, plaintext, nil)

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".credstore-*")
	if err != nil {
		return errors.Wrap(ErrStorage, err.Error())
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(ErrStorage, err.Error())
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(ErrStorage, err.Error())
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(ErrStorage, err.Error())
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(ErrStorage, err.Error())
	}
	return nil
}

func (fs *FileStore) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(fs.secret, salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, errors.Wrap(ErrStorage, err.Error())
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(ErrStorage, err.Error())
	}
	return aead, nil
}
