package secretstore

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

// Store is a small encrypted-at-rest KV wrapper (Badger).
// Note: encryption is provided by Badger options (value log + key registry), not by this wrapper.
// Multi-key operations run in a single transaction, so readers see all of the keys or none.
type Store struct {
	db *badger.DB
}

type OpenOptions struct {
	Path          string
	EncryptionKey []byte // 32 bytes; if nil, DB is opened without encryption
	ReadOnly      bool
	InMemory      bool // Path is ignored; used by tests and ephemeral sessions
}

var errNotOpened = errors.New("secretstore: not opened")

func Open(opts OpenOptions) (*Store, error) {
	if !opts.InMemory && strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("secretstore: path is required")
	}
	path := opts.Path
	if opts.InMemory {
		path = ""
	}
	bopts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithInMemory(opts.InMemory).
		WithReadOnly(opts.ReadOnly)
	if len(opts.EncryptionKey) > 0 {
		// Badger requires index cache for encrypted workloads
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(16 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func normalizeKey(key string) ([]byte, error) {
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return nil, errors.New("secretstore: key is empty")
	}
	return k, nil
}

func (s *Store) GetString(key string) (string, bool, error) {
	vals, err := s.GetMany(key)
	if err != nil {
		return "", false, err
	}
	v, ok := vals[strings.TrimSpace(key)]
	return v, ok, nil
}

// GetMany reads all keys in one read transaction. Missing keys are absent from the result.
func (s *Store) GetMany(keys ...string) (map[string]string, error) {
	if s == nil || s.db == nil {
		return nil, errNotOpened
	}
	out := make(map[string]string, len(keys))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			k, err := normalizeKey(key)
			if err != nil {
				return err
			}
			item, err := txn.Get(k)
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			if err := item.Value(func(val []byte) error {
				out[string(k)] = string(val)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) SetString(key string, val string) error {
	return s.SetMany(map[string]string{key: val})
}

// SetMany writes every pair in one transaction.
func (s *Store) SetMany(kv map[string]string) error {
	if s == nil || s.db == nil {
		return errNotOpened
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for key, val := range kv {
			k, err := normalizeKey(key)
			if err != nil {
				return err
			}
			if err := txn.Set(k, []byte(val)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteMany removes keys in one transaction. Deleting a missing key is not an error.
func (s *Store) DeleteMany(keys ...string) error {
	if s == nil || s.db == nil {
		return errNotOpened
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			k, err := normalizeKey(key)
			if err != nil {
				return err
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// ParseKey expects 32 bytes (base64 or hex). Returns nil if input is empty.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	// Prefer hex so 64-char hex strings are not misread as base64
	rawHex := strings.TrimPrefix(raw, "0x")
	if b, err := hex.DecodeString(rawHex); err == nil {
		if len(b) == 32 {
			return b, nil
		}
		return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	return nil, errors.New("key must be base64(32 bytes) or hex(32 bytes)")
}
