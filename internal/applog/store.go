// Package applog provides the append-only JSON array logs for payments,
// deployments, social posts and audit requests.
package applog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/buildswift/orchestrator/internal/models"
)

// Errors returned by the log store.
var (
	ErrUnknownLog = errors.New("unknown log")
	ErrStorage    = errors.New("log storage failure")
)

// Record is a log entry. Stamp assigns id and timestamp when unset.
type Record interface {
	Stamp(now time.Time, id string)
}

// Store is the append-only record log.
type Store interface {
	// Append adds rec to the end of the named log. Existing entries are never
	// rewritten, reordered or dropped.
	Append(ctx context.Context, name models.LogName, rec Record) error
	// List returns every entry of the named log, oldest first.
	List(ctx context.Context, name models.LogName) ([]json.RawMessage, error)
	// Tail returns at most the last n entries, oldest first.
	Tail(ctx context.Context, name models.LogName, n int) ([]json.RawMessage, error)
}

// FileStore keeps each log as a JSON array file in a directory. Each log file
// has its own lock guarding the read-append-write cycle; files are replaced
// atomically so a failed write never corrupts existing entries.
type FileStore struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[models.LogName]*sync.Mutex

	now      func() time.Time
	newID    func() string
	onAppend func(models.LogName)
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) {
		s.now = now
	}
}

// WithAppendHook registers a callback invoked after each successful append.
func WithAppendHook(fn func(models.LogName)) Option {
	return func(s *FileStore) {
		s.onAppend = fn
	}
}

// NewFileStore creates the directory if needed and returns a store rooted at it.
func NewFileStore(dir string, logger *slog.Logger, opts ...Option) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating log directory: %v", ErrStorage, err)
	}

	s := &FileStore{
		dir:    dir,
		logger: logger,
		locks:  make(map[models.LogName]*sync.Mutex),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the directory holding the log files.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file backing the named log.
func (s *FileStore) Path(name models.LogName) string {
	return filepath.Join(s.dir, string(name)+".json")
}

func (s *FileStore) lockFor(name models.LogName) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// Append implements Store.
func (s *FileStore) Append(ctx context.Context, name models.LogName, rec Record) error {
	if !name.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownLog, name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	entries, err := s.read(name)
	if err != nil {
		return err
	}

	rec.Stamp(s.now(), s.newID())
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", name, err)
	}
	entries = append(entries, raw)

	if err := s.write(name, entries); err != nil {
		return err
	}

	s.logger.Debug("log entry appended", "log", name, "entries", len(entries))
	if s.onAppend != nil {
		s.onAppend(name)
	}
	return nil
}

// List implements Store.
func (s *FileStore) List(ctx context.Context, name models.LogName) ([]json.RawMessage, error) {
	if !name.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLog, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	return s.read(name)
}

// Tail implements Store.
func (s *FileStore) Tail(ctx context.Context, name models.LogName, n int) ([]json.RawMessage, error) {
	entries, err := s.List(ctx, name)
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// read loads the log file. A missing file is an empty log; a file that does
// not hold a JSON array is reported and left untouched.
func (s *FileStore) read(name models.LogName) ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrStorage, name, err)
	}

	entries := []json.RawMessage{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s is not a JSON array: %v", ErrStorage, name, err)
	}
	return entries, nil
}

// write replaces the log file with entries via a synced temp file and rename.
func (s *FileStore) write(name models.LogName, entries []json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+string(name)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file for %s: %v", ErrStorage, name, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		cleanup()
		return fmt.Errorf("%w: writing %s: %v", ErrStorage, name, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: syncing %s: %v", ErrStorage, name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing %s: %v", ErrStorage, name, err)
	}
	if err := os.Rename(tmpPath, s.Path(name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: replacing %s: %v", ErrStorage, name, err)
	}
	return nil
}

// Decode unmarshals raw log entries into typed records.
func Decode[T any](entries []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(entries))
	for i, raw := range entries {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding entry %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ListAs lists the named log and decodes every entry into T.
func ListAs[T any](ctx context.Context, s Store, name models.LogName) ([]T, error) {
	entries, err := s.List(ctx, name)
	if err != nil {
		return nil, err
	}
	return Decode[T](entries)
}
