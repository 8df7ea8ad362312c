// Package counter persists the per-context build counters in a Java
// properties file, the format Gradle's Properties.store writes.
//
// The store is loaded once, mutated in memory and written back as a whole.
// Writes go to a temporary file in the same directory which is then renamed
// over the original, so a crash leaves either the old or the new content.
package counter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/magiconair/properties"

	"github.com/leapstack-labs/shipver/internal/buildctx"
	"github.com/leapstack-labs/shipver/internal/fsutil"
)

// Header is written at the top of every saved counter file.
const Header = `#
# Build counters maintained by shipver.
# One <context>_count entry per release channel. Values only ever grow;
# lowering one risks reissuing a version code that was already shipped.
#
`

// ErrReadOnly is returned by Save on a store opened with ReadOnly.
var ErrReadOnly = errors.New("counter store opened read-only")

// StoreError reports a failure to create, read or write the counter file.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("counter store: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ParseWarning describes a counter value that could not be used.
type ParseWarning struct {
	Key   string
	Value string
}

// Entry is one key of the store as it appears on disk.
type Entry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
	Valid bool   `json:"valid" yaml:"valid"`
}

// Store is an in-memory view of the counter file.
type Store struct {
	path     string
	values   map[string]string
	exists   bool
	readOnly bool
	locking  bool
	dirty    bool
	warned   map[string]bool
	warnings []ParseWarning
	lock     *fileLock
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used for parse warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for the save timestamp.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithLock holds an exclusive advisory lock on "<path>.lock" from Open until
// Close, serializing read-modify-write cycles between processes.
func WithLock() Option {
	return func(s *Store) { s.locking = true }
}

// ReadOnly opens the store without creating a missing file. Save fails.
func ReadOnly() Option {
	return func(s *Store) { s.readOnly = true }
}

// Open loads the counter file at path, creating an empty one if it is absent.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		values: make(map[string]string),
		warned: make(map[string]bool),
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.locking && !s.readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, &StoreError{Op: "create directory for", Path: path, Err: err}
		}
		lock, err := acquireLock(path + ".lock")
		if err != nil {
			return nil, &StoreError{Op: "lock", Path: path, Err: err}
		}
		s.lock = lock
	}

	if err := s.load(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	flags := os.O_RDONLY
	if !s.readOnly {
		flags |= os.O_CREATE
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return &StoreError{Op: "create directory for", Path: s.path, Err: err}
		}
	}

	f, err := os.OpenFile(s.path, flags, 0o644)
	if err != nil {
		if s.readOnly && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &StoreError{Op: "open", Path: s.path, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return &StoreError{Op: "read", Path: s.path, Err: err}
	}
	values, err := parse(data)
	if err != nil {
		return &StoreError{Op: "parse", Path: s.path, Err: err}
	}
	s.exists = true
	s.values = values
	s.logger.Debug("loaded counter store", "path", s.path, "keys", len(s.values))
	return nil
}

// encoding of the counter file. java.util.Properties.store escapes every
// character outside ASCII as \uXXXX, so its output decodes the same way.
const encoding = properties.UTF8

// parse decodes a properties file: escapes, line continuations and the
// "=", ":" and whitespace separators. Values are taken literally; "${...}"
// is not expanded.
func parse(data []byte) (map[string]string, error) {
	loader := &properties.Loader{Encoding: encoding, DisableExpansion: true}
	p, err := loader.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, p.Len())
	for _, key := range p.Keys() {
		if key == "" {
			continue
		}
		values[key], _ = p.Get(key)
	}
	return values, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Exists reports whether the backing file was present (or created) on Open.
func (s *Store) Exists() bool { return s.exists }

// Count returns the counter for c. Missing keys count as 0; malformed or
// negative values also count as 0 and produce a warning.
func (s *Store) Count(c buildctx.Context) int {
	key := c.CounterKey()
	raw, ok := s.values[key]
	if !ok {
		return 0
	}
	n, ok := parseCount(raw)
	if !ok {
		s.warn(key, raw)
		return 0
	}
	return n
}

func parseCount(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (s *Store) warn(key, raw string) {
	if s.warned[key] {
		return
	}
	s.warned[key] = true
	s.warnings = append(s.warnings, ParseWarning{Key: key, Value: raw})
	s.logger.Warn("malformed counter value, treating as 0",
		"key", key, "value", raw, "path", s.path)
}

// Warnings returns the malformed values encountered so far.
func (s *Store) Warnings() []ParseWarning {
	return append([]ParseWarning(nil), s.warnings...)
}

// Increment advances the counter for c by one and returns the new value.
// The change is held in memory until Save.
func (s *Store) Increment(c buildctx.Context) int {
	next := s.Count(c) + 1
	s.values[c.CounterKey()] = strconv.Itoa(next)
	s.dirty = true
	return next
}

// Entries returns every key of the store sorted by key.
func (s *Store) Entries() []Entry {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		n, ok := parseCount(s.values[k])
		entries = append(entries, Entry{Key: k, Value: s.values[k], Count: n, Valid: ok})
	}
	return entries
}

// Save writes the whole store back to disk, replacing the previous file.
func (s *Store) Save() error {
	if s.readOnly {
		return &StoreError{Op: "write", Path: s.path, Err: ErrReadOnly}
	}

	data, err := s.render()
	if err != nil {
		return &StoreError{Op: "encode", Path: s.path, Err: err}
	}
	if err := fsutil.WriteFile(s.path, data, 0o644); err != nil {
		return &StoreError{Op: "write", Path: s.path, Err: err}
	}
	s.dirty = false
	s.exists = true
	s.logger.Debug("saved counter store", "path", s.path)
	return nil
}

// Dirty reports whether there are unsaved changes.
func (s *Store) Dirty() bool { return s.dirty }

func (s *Store) render() ([]byte, error) {
	p := properties.NewProperties()
	p.DisableExpansion = true
	p.WriteSeparator = "="
	for _, e := range s.Entries() {
		if _, _, err := p.Set(e.Key, e.Value); err != nil {
			return nil, err
		}
	}

	var b bytes.Buffer
	b.WriteString(Header)
	fmt.Fprintf(&b, "# updated %s\n", s.now().Format(time.RFC3339))
	if _, err := p.Write(&b, encoding); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Close releases the file lock, if one is held.
func (s *Store) Close() error {
	if s.lock == nil {
		return nil
	}
	err := s.lock.release()
	s.lock = nil
	return err
}
