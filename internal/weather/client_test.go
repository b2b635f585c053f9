package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(server.Client(), server.URL, "secret", BreakerConfig{})
	c.SetClock(func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) })
	return c
}

func TestFetchByRegion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/forecast/region/sul", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"region":"sul","data":[{"date_br":"01/01","text":"ensolarado"}]}`))
	})

	rec, err := c.FetchByRegion(context.Background(), "sul")
	require.NoError(t, err)

	assert.Equal(t, SubjectRegion, rec.Kind)
	assert.Equal(t, "sul", rec.Label)
	assert.Equal(t, "2024-01-01", rec.GeneratedAt)

	block := rec.Block()
	assert.True(t, strings.HasPrefix(block, "* Métricas da região sul\n    - Data: 01/01\n    - ensolarado\n\n"))
	assert.True(t, strings.HasSuffix(block, Separator))
}

func TestFetchByRegionFallsBackToImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"region":"norte","data":[{"date_br":"02/01","image":"https://img/1.png"},{"date_br":"03/01","text":"chuva"}]}`))
	})

	rec, err := c.FetchByRegion(context.Background(), "norte")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Date: "02/01", Text: "https://img/1.png"}, {Date: "03/01", Text: "chuva"}}, rec.Entries)
}

func TestFetchByCountry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/anl/synoptic/locale/BR", r.URL.Path)
		w.Write([]byte(`[{"country":"BR","date":"2024-01-01","text":"quente"},{"country":"BR","date":"2023-12-31","text":"ignored"}]`))
	})

	rec, err := c.Fetch(context.Background(), Subject{Kind: SubjectCountry, Code: "BR"})
	require.NoError(t, err)

	assert.Equal(t, "* Métricas do país, abreviação: BR\n    - Data: 2024-01-01\n    - quente\n\n"+Separator, rec.Block())
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name    string
		subject Subject
		status  int
		body    string
	}{
		{"server error", Subject{SubjectRegion, "sul"}, http.StatusInternalServerError, `{}`},
		{"not found", Subject{SubjectRegion, "sul"}, http.StatusNotFound, `{}`},
		{"rate limited", Subject{SubjectCountry, "BR"}, http.StatusTooManyRequests, `[]`},
		{"invalid json", Subject{SubjectRegion, "sul"}, http.StatusOK, `{"region":`},
		{"missing data", Subject{SubjectRegion, "sul"}, http.StatusOK, `{"region":"sul"}`},
		{"entry without text or image", Subject{SubjectRegion, "sul"}, http.StatusOK, `{"region":"sul","data":[{"date_br":"01/01"}]}`},
		{"empty country list", Subject{SubjectCountry, "BR"}, http.StatusOK, `[]`},
		{"country missing text", Subject{SubjectCountry, "BR"}, http.StatusOK, `[{"country":"BR","date":"2024-01-01"}]`},
		{"unknown kind", Subject{"city", "x"}, http.StatusOK, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Fetch(context.Background(), tt.subject)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFetch), "expected ErrFetch, got %v", err)
		})
	}
}

func TestFetchNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClient(http.DefaultClient, url, "t", BreakerConfig{})
	_, err := c.FetchByRegion(context.Background(), "sul")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := atomic.NewInt32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Inc()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL, "t", BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Hour})
	for i := 0; i < 3; i++ {
		_, err := c.FetchByRegion(context.Background(), "sul")
		assert.ErrorIs(t, err, ErrFetch)
	}

	assert.Equal(t, int32(2), calls.Load())
	_, err := c.FetchByRegion(context.Background(), "sul")
	assert.ErrorIs(t, err, errCircuitOpen)
}

func TestSplitBlocks(t *testing.T) {
	b1 := ReportRecord{Kind: SubjectRegion, Label: "sul"}.Block()
	b2 := ReportRecord{Kind: SubjectCountry, Label: "BR", Entries: []Entry{{"d", "t"}}}.Block()

	assert.Equal(t, []string{b2, b1}, SplitBlocks(b2+b1))
	assert.Empty(t, SplitBlocks(""))
	assert.Equal(t, []string{"partial"}, SplitBlocks("partial"))
}
