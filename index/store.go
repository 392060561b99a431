package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arloliu/go-stdf/logger"
	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const keyPrefix = "stdf-index/v1/"

// Store persists indexes in a badger database, keyed by file fingerprint.
type Store struct {
	db     *badger.DB
	logger logger.Logger
}

// OpenStore opens or creates an index store in dir.
func OpenStore(dir string, l logger.Logger) (*Store, error) {
	if l == nil {
		l = logger.GetLogger()
	}

	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{l: l.With("component", "badger")})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open index store: %w", err)
	}

	return &Store{db: db, logger: l}, nil
}

// Fingerprint returns the store key of a file. It changes whenever the file is replaced,
// resized or touched.
func Fingerprint(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%s|%d|%d", keyPrefix, abs, fi.Size(), fi.ModTime().UnixNano()), nil
}

// Load returns the index stored under key. A missing or unreadable entry returns false;
// unreadable entries are logged.
func (s *Store) Load(key string) (*MemIndex, bool) {
	var snap Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Warn("index store read error", "key", key, "error", err)
		}
		return nil, false
	}

	idx, err := FromSnapshot(&snap)
	if err != nil {
		s.logger.Warn("discard stored index", "key", key, "error", err)
		return nil, false
	}

	return idx, true
}

// Save stores idx under key.
func (s *Store) Save(key string, idx *MemIndex) error {
	data, err := msgpack.Marshal(idx.Snapshot())
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Delete removes the entry stored under key.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger adapts a Logger to badger's printf style logger.
type badgerLogger struct {
	l logger.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...))
}
