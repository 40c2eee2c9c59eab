package kitsu

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(serverURL string) *Client {
	return NewClient(ClientConfig{
		APIURL:       serverURL,
		AccessToken:  "token-123",
		RateLimiter:  rate.NewLimiter(rate.Inf, 1),
		InitialDelay: time.Millisecond,
	})
}

func TestClient_GetLibraryEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/library-entries", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("filter[userId]"))
		assert.Equal(t, "anime", r.URL.Query().Get("include"))
		assert.Equal(t, "20", r.URL.Query().Get("page[offset]"))
		assert.Equal(t, "10", r.URL.Query().Get("page[limit]"))
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", contentType)
		io.WriteString(w, sampleLibraryPage)
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).GetLibraryEntries(context.Background(), "42", 20, 10)
	require.NoError(t, err)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "libraryEntries", resp.Data[0].Type)
	assert.Len(t, resp.Included, 1)
	assert.Equal(t, 2, resp.Meta.Count)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, sampleAnime)
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).GetAnime(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "1", resp.Data.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetAnime(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 429")
	assert.Equal(t, int32(maxRetries+1), atomic.LoadInt32(&calls))
}

func TestClient_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetAnime(context.Background(), 999)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetAnime(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_UpdateLibraryEntry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/library-entries/77", r.URL.Path)
		assert.Equal(t, contentType, r.Header.Get("Content-Type"))

		var body struct {
			Data struct {
				ID         string             `json:"id"`
				Type       string             `json:"type"`
				Attributes LibraryEntryUpdate `json:"attributes"`
			} `json:"data"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "77", body.Data.ID)
		assert.Equal(t, "libraryEntries", body.Data.Type)
		assert.Equal(t, "on_hold", body.Data.Attributes.Status)
		assert.Equal(t, "3.5", body.Data.Attributes.Rating)
		assert.Equal(t, 12, body.Data.Attributes.Progress)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := newTestClient(server.URL).UpdateLibraryEntry(context.Background(), 77, LibraryEntryUpdate{
		Status:   "on_hold",
		Progress: 12,
		Rating:   "3.5",
	})
	assert.NoError(t, err)
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).GetAnime(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

const sampleAnime = `{
  "data": {
    "id": "1",
    "type": "anime",
    "attributes": {
      "slug": "cowboy-bebop",
      "canonicalTitle": "Cowboy Bebop",
      "synopsis": "  In the year 2071...  ",
      "averageRating": 4.4,
      "startDate": "1998-04-03",
      "endDate": "1999-04-24",
      "ageRating": "R",
      "showType": "TV",
      "episodeCount": 26,
      "posterImage": {"original": "https://media.kitsu.io/anime/poster_images/1/original.jpg"}
    }
  }
}`

const sampleLibraryPage = `{
  "data": [
    {
      "id": "100",
      "type": "libraryEntries",
      "attributes": {
        "status": "current",
        "progress": 5,
        "reconsuming": false,
        "reconsumeCount": 0,
        "rating": "4.5",
        "startedAt": "2016-07-01T00:00:00.000Z",
        "finishedAt": null,
        "updatedAt": "2016-07-02T10:00:00.000Z"
      },
      "relationships": {"anime": {"data": {"type": "anime", "id": "1"}}}
    },
    {
      "id": "101",
      "type": "libraryEntries",
      "attributes": {
        "status": "watching",
        "progress": 0,
        "rating": null,
        "updatedAt": "garbage"
      },
      "relationships": {"anime": {"data": {"type": "anime", "id": "2"}}}
    }
  ],
  "included": [
    {
      "id": "1",
      "type": "anime",
      "attributes": {
        "slug": "cowboy-bebop",
        "canonicalTitle": "Cowboy Bebop",
        "averageRating": 4.4,
        "startDate": "1998-04-03",
        "ageRating": "R",
        "showType": "TV",
        "episodeCount": 26
      }
    }
  ],
  "links": {},
  "meta": {"count": 2}
}`
