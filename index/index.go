// Package index reads and writes the archive index: the ordered list of
// every playlist already persisted, used to decide what is new.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pevans/rageplaylists/archive"
	"github.com/pevans/rageplaylists/dates"
)

// Custom errors for index operations
var (
	ErrIndexNotFound      = errors.New("index file not found")
	ErrEmptyIndex         = errors.New("index has no playlists")
	ErrAnchorUnresolvable = errors.New("latest index entry has no resolvable date")
)

// IndexError describes an index that cannot be used as the starting point
// of a discovery run.
type IndexError struct {
	Path string
	Err  error
}

func (e *IndexError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("index: %v", e.Err)
	}
	return fmt.Sprintf("index %s: %v", e.Path, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// Index is the persisted, append-only list of known playlists in discovery
// order. The last element is the most recently known entry.
type Index struct {
	Playlists []archive.Entry `json:"playlists"`

	path string
}

// New returns an empty index that will report path in its errors.
func New(path string) *Index {
	return &Index{Playlists: []archive.Entry{}, path: path}
}

// Load reads the index at path. A missing, unreadable, malformed or empty
// index is an *IndexError.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &IndexError{Path: path, Err: ErrIndexNotFound}
		}
		return nil, &IndexError{Path: path, Err: fmt.Errorf("failed to read index: %w", err)}
	}

	idx := &Index{path: path}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, &IndexError{Path: path, Err: fmt.Errorf("failed to parse index: %w", err)}
	}

	if len(idx.Playlists) == 0 {
		return nil, &IndexError{Path: path, Err: ErrEmptyIndex}
	}

	return idx, nil
}

// Path returns the file the index was loaded from.
func (idx *Index) Path() string {
	return idx.path
}

// Len returns the number of known playlists.
func (idx *Index) Len() int {
	return len(idx.Playlists)
}

// Last returns the most recently known entry.
func (idx *Index) Last() (archive.Entry, bool) {
	if len(idx.Playlists) == 0 {
		return archive.Entry{}, false
	}
	return idx.Playlists[len(idx.Playlists)-1], true
}

// Anchor returns the date of the most recently known entry. Entries written
// without a date fall back to resolving their caption, which then must carry
// a year.
func (idx *Index) Anchor() (dates.Date, error) {
	last, ok := idx.Last()
	if !ok {
		return dates.Date{}, &IndexError{Path: idx.path, Err: ErrEmptyIndex}
	}

	if !last.Date.IsZero() {
		return last.Date, nil
	}

	date, err := dates.Resolve(last.Caption, dates.Date{})
	if err != nil {
		return dates.Date{}, &IndexError{
			Path: idx.path,
			Err:  fmt.Errorf("%w: %v", ErrAnchorUnresolvable, err),
		}
	}
	return date, nil
}

// URLs returns the set of known entry URLs.
func (idx *Index) URLs() map[string]struct{} {
	urls := make(map[string]struct{}, len(idx.Playlists))
	for _, p := range idx.Playlists {
		urls[p.URL] = struct{}{}
	}
	return urls
}

// Contains reports whether an entry with url is known.
func (idx *Index) Contains(url string) bool {
	for _, p := range idx.Playlists {
		if p.URL == url {
			return true
		}
	}
	return false
}

// Append adds entries to the end of the index.
func (idx *Index) Append(entries ...archive.Entry) {
	idx.Playlists = append(idx.Playlists, entries...)
}

// Save writes the index to path via a temporary file and rename, so a
// failed write never leaves a truncated index behind.
func (idx *Index) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".index-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary index: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write index: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace index: %w", err)
	}

	idx.path = path
	return nil
}
