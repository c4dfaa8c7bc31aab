package records

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient(context.Background(), srv.URL, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}), 1000)
	return c
}

func TestParseNextLink(t *testing.T) {
	header := `<https://api.example.com/records?page=3>; rel="next", <https://api.example.com/records?page=9>; rel="last"`
	assert.Equal(t, "https://api.example.com/records?page=3", parseNextLink(header))

	assert.Empty(t, parseNextLink(`<https://api.example.com/records?page=9>; rel="last"`))
	assert.Empty(t, parseNextLink(""))
}

func TestListRecordIDs_FollowsPagination(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/records", func(w http.ResponseWriter, r *http.Request) {
		// Bearer auth must reach the server.
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		if r.URL.Query().Get("page") == "2" {
			json.NewEncoder(w).Encode(recordPage{Records: []Record{{ID: "T-3"}}})
			return
		}
		w.Header().Set("Link", `<`+srv.URL+`/records?page=2>; rel="next"`)
		json.NewEncoder(w).Encode(recordPage{Records: []Record{{ID: "T-1"}, {ID: "T-2"}}})
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	ids, err := newTestClient(srv).ListRecordIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"T-1", "T-2", "T-3"}, ids)
}

func TestGetRecord(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/records/T-42", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Record{
			ID:       "T-42",
			Title:    "Login loop after upgrade",
			BodyHTML: "<p>Clear the session cookie.</p>",
			URL:      "https://support.example.com/tickets/T-42",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	record, err := newTestClient(srv).GetRecord(context.Background(), "T-42")
	require.NoError(t, err)
	assert.Equal(t, "Login loop after upgrade", record.Title)
	assert.Equal(t, "<p>Clear the session cookie.</p>", record.BodyHTML)
}

func TestGetRecord_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestClient(srv).GetRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetRecord_ServerErrorWrapsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GetRecord(context.Background(), "T-1")
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestGetRecord_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GetRecord(context.Background(), "T-1")
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestThrottle_ObserveUpdatesQuota(t *testing.T) {
	th := newThrottle(1000)

	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"X-Ratelimit-Remaining": []string{"42"},
			"X-Ratelimit-Reset":     []string{"1767225600"},
		},
	}
	require.NoError(t, th.observe(resp))
	assert.Equal(t, 42, th.remaining)
	assert.False(t, th.resetTime.IsZero())
}
