package records

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/records", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(recordPage{Records: []Record{{ID: "T-1"}, {ID: "T-2"}}})
	})
	mux.HandleFunc("/records/T-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Record{
			ID:        "T-1",
			Title:     "Password reset fails",
			BodyHTML:  "<h2>Workaround</h2><p>Use the admin console.</p>",
			URL:       "https://support.example.com/tickets/T-1",
			UpdatedAt: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRecordsConnector(t *testing.T, srv *httptest.Server) *Connector {
	t.Helper()
	conn, err := New(context.Background(), Config{
		SourceID:          "support",
		DisplayName:       "Support Desk",
		BaseURL:           srv.URL,
		APIToken:          "test-token",
		RequestsPerSecond: 1000,
	}, nil)
	require.NoError(t, err)
	return conn
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), Config{BaseURL: "https://x", APIToken: "t"}, nil)
	assert.ErrorIs(t, err, domain.ErrConfig)

	_, err = New(context.Background(), Config{SourceID: "support", APIToken: "t"}, nil)
	assert.ErrorIs(t, err, domain.ErrConfig)

	_, err = New(context.Background(), Config{SourceID: "support", BaseURL: "https://x"}, nil)
	assert.ErrorIs(t, err, domain.ErrConfig)

	conn, err := New(context.Background(), Config{SourceID: "support", BaseURL: "https://x", APIToken: "t"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "support", conn.CollectionName())
	assert.Equal(t, domain.KindRecords, conn.Source().Kind)
}

func TestListContent(t *testing.T) {
	conn := newTestRecordsConnector(t, newTestServer(t))

	ids, err := conn.ListContent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"T-1", "T-2"}, ids)
}

func TestFetchContent_PartialResults(t *testing.T) {
	conn := newTestRecordsConnector(t, newTestServer(t))

	docs, fails := conn.FetchContent(context.Background(), []string{"T-1", "T-404"})

	require.Len(t, docs, 1)
	assert.Equal(t, "T-1", docs[0].ContentID)
	assert.Equal(t, "Password reset fails", docs[0].Title)
	assert.NotEmpty(t, docs[0].ContentHash)

	require.Len(t, fails, 1)
	assert.Equal(t, "T-404", fails[0].ContentID)
	assert.True(t, errors.Is(fails[0], domain.ErrNotFound))
}

func TestExtractMetaText(t *testing.T) {
	conn := newTestRecordsConnector(t, newTestServer(t))

	docs, fails := conn.FetchContent(context.Background(), []string{"T-1"})
	require.Empty(t, fails)
	require.Len(t, docs, 1)

	meta, text, err := conn.ExtractMetaText(&docs[0])
	require.NoError(t, err)

	assert.Contains(t, text, "## Workaround")
	assert.Contains(t, text, "Use the admin console.")

	title, _ := meta.Get("title")
	updated, _ := meta.Get("updated_at")
	assert.Equal(t, "Password reset fails", title)
	assert.Equal(t, "2025-03-14", updated)
}

func TestGenerateQuestions_HeadingFallback(t *testing.T) {
	conn := newTestRecordsConnector(t, newTestServer(t))

	meta := domain.NewMetadata()
	meta.Set("title", "Password reset fails")

	qs, err := conn.GenerateQuestions(context.Background(), meta, "## Workaround\n\nUse the admin console.")
	require.NoError(t, err)
	require.NotEmpty(t, qs)
	assert.Contains(t, qs[0], "Password reset fails")
}
