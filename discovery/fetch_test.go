package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestFetcher(t *testing.T, handler http.HandlerFunc) (*HTTPFetcher, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	fetcher := NewHTTPFetcher(FetchConfig{
		MonthURLTemplate:     server.URL + "/archive/{year}/{month}",
		UserAgent:            "rage-test",
		Timeout:              5 * time.Second,
		MaxRetries:           2,
		RetryInitialInterval: time.Millisecond,
	}, nil)
	return fetcher, server
}

func TestHTTPFetcher_MonthURL(t *testing.T) {
	fetcher := NewHTTPFetcher(DefaultFetchConfig(), nil)
	assert.Equal(t, "https://www.abc.net.au/rage/playlists/archive/2020/03", fetcher.MonthURL(2020, time.March))
	assert.Equal(t, "https://www.abc.net.au/rage/playlists/archive/2019/12", fetcher.MonthURL(2019, time.December))
}

func TestHTTPFetcher_FetchMonth(t *testing.T) {
	var gotPath, gotAgent string
	fetcher, _ := setupTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte("<html>listing</html>"))
	})

	body, err := fetcher.FetchMonth(context.Background(), 2020, time.January)
	require.NoError(t, err)
	assert.Equal(t, "<html>listing</html>", string(body))
	assert.Equal(t, "/archive/2020/01", gotPath)
	assert.Equal(t, "rage-test", gotAgent)
}

func TestHTTPFetcher_NotFoundIsEmptyMonth(t *testing.T) {
	fetcher, _ := setupTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	body, err := fetcher.FetchMonth(context.Background(), 2031, time.May)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestHTTPFetcher_NotFoundPageIsError(t *testing.T) {
	fetcher, server := setupTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := fetcher.FetchPage(context.Background(), server.URL+"/rage/playlist/1")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	fetcher, server := setupTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	body, err := fetcher.FetchPage(context.Background(), server.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestHTTPFetcher_GivesUpAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	fetcher, server := setupTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := fetcher.FetchPage(context.Background(), server.URL+"/page")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
	// One attempt plus two retries.
	assert.Equal(t, int32(3), attempts.Load())
}

func TestHTTPFetcher_ClientErrorsAreNotRetried(t *testing.T) {
	var attempts atomic.Int32
	fetcher, server := setupTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := fetcher.FetchPage(context.Background(), server.URL+"/page")
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestHTTPFetcher_ContextCanceled(t *testing.T) {
	fetcher, server := setupTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.FetchPage(ctx, server.URL+"/page")
	assert.ErrorIs(t, err, context.Canceled)
}
