// Package playlists persists playlist records in a date-partitioned
// directory tree: <root>/<YYYY>/<MM>/<DD>[_<timeslot>][_<N>].json.
package playlists

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pevans/rageplaylists/archive"
	"github.com/pevans/rageplaylists/dates"
	"github.com/pevans/rageplaylists/metrics"
	"golang.org/x/sync/errgroup"
)

// ErrNoDate means a record without a date was written.
var ErrNoDate = errors.New("record has no date")

const (
	recordExt         = ".json"
	defaultProbeBatch = 4
)

// WriteError describes a failed record write.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ReadError describes a failure to read a single record file.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

// ListResult contains the records of one day, including any per-file
// errors that occurred while reading them.
type ListResult struct {
	Playlists []archive.Playlist
	Errors    []ReadError
}

// StoreConfig holds optional Store settings.
type StoreConfig struct {
	// ProbeBatch is how many collision suffixes are checked concurrently.
	// The smallest free suffix is always chosen regardless of batch size.
	ProbeBatch int
	Metrics    *metrics.Metrics
}

// Store writes playlist records under a root directory. Directories are
// created on demand. Records are never overwritten.
type Store struct {
	root       string
	probeBatch int
	metrics    *metrics.Metrics
}

// NewStore creates a store rooted at root. config may be nil.
func NewStore(root string, config *StoreConfig) *Store {
	s := &Store{root: root, probeBatch: defaultProbeBatch}
	if config != nil {
		if config.ProbeBatch > 0 {
			s.probeBatch = config.ProbeBatch
		}
		s.metrics = config.Metrics
	}
	return s
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Add writes p under its entry's date and timeslot and returns the path.
func (s *Store) Add(p archive.Playlist) (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal playlist: %w", err)
	}

	return s.Write(p.Date, p.Timeslot, data)
}

// Write stores record at the first free path for date and timeslot and
// returns that path. When <DD>[_<timeslot>].json already exists, suffixes
// _2, _3, ... are probed in order and the smallest unused one is taken.
func (s *Store) Write(date dates.Date, timeslot string, record []byte) (string, error) {
	if date.IsZero() {
		return "", &WriteError{Path: s.root, Err: ErrNoDate}
	}

	dir := s.monthDir(date)

	stem := filepath.Join(dir, fmt.Sprintf("%02d", date.Day))
	if ts := SanitizeTimeslot(timeslot); ts != "" {
		stem += "_" + ts
	}

	base := stem + recordExt
	exists, err := fileExists(base)
	if err != nil {
		return "", &WriteError{Path: base, Err: err}
	}

	if !exists {
		// Safe when the month directory already exists
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", &WriteError{Path: dir, Err: err}
		}

		err := createExclusive(base, record)
		if err == nil {
			s.metrics.RecordWritten(false)
			return base, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", &WriteError{Path: base, Err: err}
		}
		// Another writer took the base path first; fall through to suffixes
	}

	next := 2
	for {
		path, n, err := s.probe(stem, next)
		if err != nil {
			return "", &WriteError{Path: path, Err: err}
		}

		err = createExclusive(path, record)
		if err == nil {
			s.metrics.RecordWritten(true)
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", &WriteError{Path: path, Err: err}
		}
		next = n + 1
	}
}

// probe returns the smallest suffix >= from whose path does not exist.
// Existence checks within one batch run concurrently.
func (s *Store) probe(stem string, from int) (string, int, error) {
	for {
		exists := make([]bool, s.probeBatch)

		var g errgroup.Group
		for i := range s.probeBatch {
			path := suffixedPath(stem, from+i)
			g.Go(func() error {
				ok, err := fileExists(path)
				if err != nil {
					return err
				}
				exists[i] = ok
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return suffixedPath(stem, from), from, err
		}

		for i, taken := range exists {
			if !taken {
				return suffixedPath(stem, from+i), from + i, nil
			}
		}
		from += s.probeBatch
	}
}

// ListDay reads every record stored for date, in directory order.
func (s *Store) ListDay(date dates.Date) (*ListResult, error) {
	dir := s.monthDir(date)
	result := &ListResult{Playlists: []archive.Playlist{}}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	day := fmt.Sprintf("%02d", date.Day)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != recordExt {
			continue
		}
		stem := strings.TrimSuffix(name, recordExt)
		if stem != day && !strings.HasPrefix(stem, day+"_") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			result.Errors = append(result.Errors, ReadError{Filename: name, Err: err})
			continue
		}

		var p archive.Playlist
		if err := json.Unmarshal(data, &p); err != nil {
			result.Errors = append(result.Errors, ReadError{Filename: name, Err: err})
			continue
		}

		result.Playlists = append(result.Playlists, p)
	}

	return result, nil
}

func (s *Store) monthDir(date dates.Date) string {
	return filepath.Join(s.root, fmt.Sprintf("%04d", date.Year), fmt.Sprintf("%02d", date.Month))
}

func suffixedPath(stem string, n int) string {
	return fmt.Sprintf("%s_%d%s", stem, n, recordExt)
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// createExclusive writes data to a new file, failing with fs.ErrExist if
// path is already taken. A file that cannot be fully written is removed.
func createExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	whitespace  = regexp.MustCompile(`\s+`)
	edgeJunk    = regexp.MustCompile(`^[-.]+|[-.]+$`)
)

// SanitizeTimeslot turns a timeslot label into a filename-safe, lower-case
// token ("Saturday Night" becomes "saturday-night").
func SanitizeTimeslot(timeslot string) string {
	s := strings.ToLower(strings.TrimSpace(timeslot))
	s = unsafeChars.ReplaceAllString(s, "-")
	s = whitespace.ReplaceAllString(s, "-")
	return edgeJunk.ReplaceAllString(s, "")
}
