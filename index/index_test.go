package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pevans/rageplaylists/archive"
	"github.com/pevans/rageplaylists/dates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIndexFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeIndexFile(t, `{"playlists":[
		{"url":"https://example.com/p/1","caption":"Friday night 3 January 2020","date":"2020-01-03"},
		{"url":"https://example.com/p/2","caption":"Saturday morning 4th January 2020","date":"2020-01-04","timeslot":"morning"}
	]}`)

	idx, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, path, idx.Path())

	last, ok := idx.Last()
	require.True(t, ok)
	assert.Equal(t, "morning", last.Timeslot)
	assert.True(t, idx.Contains("https://example.com/p/1"))
	assert.False(t, idx.Contains("https://example.com/p/3"))
	assert.Len(t, idx.URLs(), 2)
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.json") },
			wantErr: ErrIndexNotFound,
		},
		{
			name:    "empty playlists",
			path:    func(t *testing.T) string { return writeIndexFile(t, `{"playlists":[]}`) },
			wantErr: ErrEmptyIndex,
		},
		{
			name:    "no playlists key",
			path:    func(t *testing.T) string { return writeIndexFile(t, `{}`) },
			wantErr: ErrEmptyIndex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := Load(tt.path(t))
			assert.Nil(t, idx)

			var indexErr *IndexError
			require.ErrorAs(t, err, &indexErr)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load(writeIndexFile(t, `{"playlists": [`))

	var indexErr *IndexError
	require.ErrorAs(t, err, &indexErr)
	assert.Contains(t, err.Error(), "failed to parse index")
}

func TestAnchor(t *testing.T) {
	idx := New("index.json")
	_, err := idx.Anchor()
	assert.ErrorIs(t, err, ErrEmptyIndex)

	idx.Append(archive.Entry{URL: "u1", Caption: "Sunday night 22 November 2020 on ABC 1"})
	anchor, err := idx.Anchor()
	require.NoError(t, err)
	assert.Equal(t, dates.Date{Year: 2020, Month: time.November, Day: 22}, anchor, "caption is used when date is missing")

	idx.Append(archive.Entry{URL: "u2", Caption: "whatever", Date: dates.Date{Year: 2021, Month: time.March, Day: 5}})
	anchor, err = idx.Anchor()
	require.NoError(t, err)
	assert.Equal(t, 2021, anchor.Year)

	idx.Append(archive.Entry{URL: "u3", Caption: "Sunday night 22 November"})
	_, err = idx.Anchor()

	var indexErr *IndexError
	require.ErrorAs(t, err, &indexErr)
	assert.ErrorIs(t, err, ErrAnchorUnresolvable)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.json")

	idx := New(path)
	idx.Append(
		archive.Entry{URL: "u1", Caption: "c1", Date: dates.Date{Year: 2020, Month: time.January, Day: 3}},
		archive.Entry{URL: "u2", Caption: "c2", Date: dates.Date{Year: 2020, Month: time.January, Day: 4}, Timeslot: "night"},
	)
	require.NoError(t, idx.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, idx.Playlists, loaded.Playlists)

	// No temporary files should be left next to the index
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
