package feargreed

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/sentiment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ sentiment.Provider = (*Client)(nil)

// 2024-01-03, 2024-01-02, 2024-01-01 at 00:00 UTC, newest first like the live API
const payload = `{
	"name": "Fear and Greed Index",
	"data": [
		{"value": "71", "value_classification": "Greed", "timestamp": "1704240000", "time_until_update": "3600"},
		{"value": "65", "value_classification": "Greed", "timestamp": "1704153600"},
		{"value": "40", "value_classification": "Fear", "timestamp": "1704067200"}
	],
	"metadata": {"error": null}
}`

func newTestClient(t *testing.T, body string, status int) (*Client, *string) {
	t.Helper()
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c := New(Config{Endpoint: srv.URL + "/fng/", MaxRetries: -1})
	return c, &query
}

func TestClient_Entries(t *testing.T) {
	c, query := newTestClient(t, payload, http.StatusOK)

	entries, err := c.Entries(t.Context(), 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "limit=3", *query)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), entries[0].Time)
	assert.Equal(t, 40.0, entries[0].Value)
	assert.Equal(t, "Fear", entries[0].Classification)
	assert.Equal(t, 71.0, entries[2].Value)
	assert.Equal(t, time.Hour, entries[2].UntilUpdate)
}

func TestClient_Entries_InvalidLimit(t *testing.T) {
	c, _ := newTestClient(t, payload, http.StatusOK)

	_, err := c.Entries(t.Context(), 0)
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))
}

func TestClient_Entries_APIError(t *testing.T) {
	c, _ := newTestClient(t, `{"data": [], "metadata": {"error": "rate limited"}}`, http.StatusOK)

	_, err := c.Entries(t.Context(), 1)
	assert.True(t, errors.Is(err, core.ErrProviderFailed))
}

func TestClient_Entries_HTTPError(t *testing.T) {
	c, _ := newTestClient(t, "", http.StatusInternalServerError)

	_, err := c.Entries(t.Context(), 1)
	assert.True(t, errors.Is(err, core.ErrProviderFailed))
}

func TestClient_Entries_BadValue(t *testing.T) {
	c, _ := newTestClient(t, `{"data": [{"value": "high", "timestamp": "1704067200"}]}`, http.StatusOK)

	_, err := c.Entries(t.Context(), 1)
	assert.True(t, errors.Is(err, core.ErrProviderFailed))
}

func TestClient_History(t *testing.T) {
	c, _ := newTestClient(t, payload, http.StatusOK)

	history, err := c.History(t.Context(), 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{40, 65, 71}, history.Values())
}

func TestClient_Score(t *testing.T) {
	c, query := newTestClient(t, payload, http.StatusOK)
	c.now = func() time.Time { return time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC) }

	s, err := c.Score(t.Context(), time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	v, ok := s.Value()
	assert.True(t, ok)
	assert.Equal(t, 65.0, v)
	assert.Equal(t, "limit=2", *query)
}

func TestClient_Score_MissingDay(t *testing.T) {
	c, _ := newTestClient(t, payload, http.StatusOK)
	c.now = func() time.Time { return time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC) }

	s, err := c.Score(t.Context(), time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, s.IsSet())
}
