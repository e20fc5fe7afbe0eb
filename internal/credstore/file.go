package credstore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	deviceKeyFile = "device.key"
	tokenFile     = "refresh_token"

	deviceKeyLen = 32
	keyInfo      = "rider refresh credential v1"
)

// tokenAD binds the ciphertext to the key it is stored under.
var tokenAD = []byte("refreshToken")

// FileStore keeps the refresh credential encrypted in a directory. The key is
// derived from a random per-install device key that never leaves the directory.
type FileStore struct {
	dir string
	log *slog.Logger

	mu sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir. The directory is created on
// first write.
func NewFileStore(dir string, log *slog.Logger) *FileStore {
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{dir: dir, log: log.With("component", "credstore")}
}

func (s *FileStore) Get(context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := os.ReadFile(filepath.Join(s.dir, tokenFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("read credential", "err", err)
		}
		return "", false
	}
	aead, err := s.aead(false)
	if err != nil {
		s.log.Warn("load device key", "err", err)
		return "", false
	}
	if len(sealed) < aead.NonceSize() {
		s.log.Warn("credential file truncated")
		return "", false
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, tokenAD)
	if err != nil {
		s.log.Warn("decrypt credential", "err", err)
		return "", false
	}
	if len(plain) == 0 {
		return "", false
	}
	return string(plain), true
}

func (s *FileStore) Set(_ context.Context, token string) {
	if token == "" {
		s.Clear(context.Background())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(token); err != nil {
		s.log.Warn("write credential", "err", err)
	}
}

func (s *FileStore) Clear(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(filepath.Join(s.dir, tokenFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("clear credential", "err", err)
	}
}

func (s *FileStore) write(token string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	aead, err := s.aead(true)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(token)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(token), tokenAD)
	return writeFileAtomic(filepath.Join(s.dir, tokenFile), sealed)
}

// aead loads the device key. With create set, a missing or malformed key is
// replaced by a new one; nothing sealed under a malformed key can be opened.
func (s *FileStore) aead(create bool) (cipher.AEAD, error) {
	path := filepath.Join(s.dir, deviceKeyFile)
	ikm, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && create:
		if ikm, err = newDeviceKey(path); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case len(ikm) != deviceKeyLen && create:
		s.log.Warn("replacing malformed device key", "bytes", len(ikm))
		if ikm, err = newDeviceKey(path); err != nil {
			return nil, err
		}
	case len(ikm) != deviceKeyLen:
		return nil, fmt.Errorf("device key has %d bytes, want %d", len(ikm), deviceKeyLen)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}

func newDeviceKey(path string) ([]byte, error) {
	ikm := make([]byte, deviceKeyLen)
	if _, err := io.ReadFull(rand.Reader, ikm); err != nil {
		return nil, fmt.Errorf("generate device key: %w", err)
	}
	if err := writeFileAtomic(path, ikm); err != nil {
		return nil, fmt.Errorf("save device key: %w", err)
	}
	return ikm, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
