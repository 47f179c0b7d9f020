// Package store is the authoritative object store behind the object API.
// State lives in one SQLite file per board directory; every write runs in a
// transaction and publishes invalidation events after commit.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"rankboard/internal/model"
)

const (
	dirName        = ".rankboard"
	sqliteFileName = "board.sqlite"
)

var timeNow = func() time.Time { return time.Now().UTC() }

// Publisher receives events after the write that produced them commits.
type Publisher interface {
	Publish(ev model.Event)
}

type Store struct {
	Dir string

	db  *sql.DB
	log *zap.Logger
	pub Publisher

	// SQLite allows one writer; serializing here keeps read-modify-write
	// cycles from interleaving inside the process.
	mu sync.Mutex
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.pub = p }
}

// Open opens (creating if needed) the store in dir.
func Open(ctx context.Context, dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("missing store dir")
	}
	s := &Store{Dir: dir, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := openSQLite(ctx, s.sqlitePath())
	if err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetPublisher swaps the event sink; used when the feed hub is built after
// the store.
func (s *Store) SetPublisher(p Publisher) {
	s.mu.Lock()
	s.pub = p
	s.mu.Unlock()
}

func (s *Store) sqlitePath() string {
	return filepath.Join(s.Dir, sqliteFileName)
}

// DiscoverDir walks up from start looking for a .rankboard directory.
func DiscoverDir(start string) (string, bool) {
	dir := start
	for {
		candidate := filepath.Join(dir, dirName)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// DefaultDir is the nearest .rankboard above the working directory, or a new
// one in it.
func DefaultDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if found, ok := DiscoverDir(cwd); ok {
		return found, nil
	}
	return filepath.Join(cwd, dirName), nil
}
