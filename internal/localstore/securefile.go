package localstore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// SecureFile persists the key-value view as a single sealed JSON document.
// The sealing key is derived from the app secret with scrypt and the payload
// is encrypted with nacl/secretbox, mirroring the encrypted local storage of
// the wallet clients.
type SecureFile struct {
	mu     sync.Mutex
	path   string
	key    [32]byte
	salt   []byte
	values map[string]string
}

type secureFileEnvelope struct {
	Salt   string `json:"salt"`
	Nonce  string `json:"nonce"`
	Sealed string `json:"sealed"`
}

const scryptN = 1 << 15

// OpenSecureFile loads (or initializes) the sealed store at path using the
// given app secret. A missing file is a fresh store, not an error; a file
// that cannot be opened with this secret is.
func OpenSecureFile(path, secret string) (*SecureFile, error) {
	s := &SecureFile{path: path, values: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.salt = make([]byte, 16)
		if _, err := rand.Read(s.salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		if err := s.deriveKey(secret); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store file: %w", err)
	}

	var env secureFileEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode store file: %w", err)
	}
	if s.salt, err = base64.StdEncoding.DecodeString(env.Salt); err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	if err := s.deriveKey(secret); err != nil {
		return nil, err
	}

	nonceBytes, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil || len(nonceBytes) != 24 {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Sealed)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	var nonce [24]byte
	copy(nonce[:], nonceBytes)
	plain, ok := secretbox.Open(nil, sealed, &nonce, &s.key)
	if !ok {
		return nil, errors.New("open store: wrong secret or corrupted file")
	}
	if err := json.Unmarshal(plain, &s.values); err != nil {
		return nil, fmt.Errorf("decode store values: %w", err)
	}
	return s, nil
}

func (s *SecureFile) deriveKey(secret string) error {
	derived, err := scrypt.Key([]byte(secret), s.salt, scryptN, 8, 1, 32)
	if err != nil {
		return fmt.Errorf("derive store key: %w", err)
	}
	copy(s.key[:], derived)
	return nil
}

func (s *SecureFile) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *SecureFile) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.values[key]; ok && current == value {
		return nil
	}
	s.values[key] = value
	return s.flushLocked()
}

func (s *SecureFile) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flushLocked()
}

func (s *SecureFile) flushLocked() error {
	plain, err := json.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode store values: %w", err)
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nil, plain, &nonce, &s.key)
	env := secureFileEnvelope{
		Salt:   base64.StdEncoding.EncodeToString(s.salt),
		Nonce:  base64.StdEncoding.EncodeToString(nonce[:]),
		Sealed: base64.StdEncoding.EncodeToString(sealed),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	return nil
}
