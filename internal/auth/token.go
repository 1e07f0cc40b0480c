// Package auth stores the bearer token attached to backend requests.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/npratt/pipeboard/internal/config"
)

// ErrNoToken is returned by Load when no token has been saved.
var ErrNoToken = errors.New("no auth token stored")

// TokenSource yields the current bearer token. An empty token with a nil
// error means requests go out unauthenticated.
type TokenSource interface {
	Token() (string, error)
}

// Store is a persisted TokenSource that can also be written.
type Store interface {
	TokenSource
	Save(token string) error
	Clear() error
	Describe() string
}

// StaticToken is a fixed token, used for --token overrides.
type StaticToken string

func (s StaticToken) Token() (string, error) { return string(s), nil }

// NewStore builds the store selected by cfg.Source.
func NewStore(cfg config.AuthConfig) (Store, error) {
	switch cfg.Source {
	case config.TokenSourceKeyring:
		return &KeyringStore{Service: cfg.KeyringService, User: cfg.KeyringUser}, nil
	case config.TokenSourceFile:
		return &FileStore{Path: cfg.TokenFile}, nil
	case config.TokenSourceNone, "":
		return noneStore{}, nil
	default:
		return nil, fmt.Errorf("unknown token source %q", cfg.Source)
	}
}

// KeyringStore keeps the token in the OS keyring.
type KeyringStore struct {
	Service string
	User    string
}

func (k *KeyringStore) Token() (string, error) {
	tok, err := keyring.Get(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read keyring %s/%s: %w", k.Service, k.User, err)
	}
	return tok, nil
}

func (k *KeyringStore) Save(token string) error {
	if err := keyring.Set(k.Service, k.User, token); err != nil {
		return fmt.Errorf("write keyring %s/%s: %w", k.Service, k.User, err)
	}
	return nil
}

func (k *KeyringStore) Clear() error {
	err := keyring.Delete(k.Service, k.User)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete keyring %s/%s: %w", k.Service, k.User, err)
	}
	return nil
}

func (k *KeyringStore) Describe() string {
	return fmt.Sprintf("keyring (%s/%s)", k.Service, k.User)
}

// FileStore keeps the token in a 0600 file.
type FileStore struct {
	Path string
}

func (f *FileStore) Token() (string, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *FileStore) Save(token string) error {
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}
	if err := os.WriteFile(f.Path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

func (f *FileStore) Describe() string { return "file (" + f.Path + ")" }

type noneStore struct{}

func (noneStore) Token() (string, error) { return "", nil }
func (noneStore) Save(string) error      { return errors.New("token storage is disabled (auth.source=none)") }
func (noneStore) Clear() error           { return nil }
func (noneStore) Describe() string       { return "none" }

// Load returns the stored token or ErrNoToken.
func Load(s TokenSource) (string, error) {
	tok, err := s.Token()
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}
