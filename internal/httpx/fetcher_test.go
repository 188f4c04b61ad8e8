package httpx_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/tabscrape/internal/httpx"
)

const testAgent = "tabscrape-test/1.0"

func backends(opts httpx.Options) map[string]httpx.Fetcher {
	return map[string]httpx.Fetcher{
		httpx.BackendColly: httpx.NewCollyFetcher(opts),
		httpx.BackendResty: httpx.NewRestyFetcher(opts),
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"limit":%q,"agent":%q}`, r.URL.Query().Get("$limit"), r.UserAgent())
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
		}
		fmt.Fprint(w, "late")
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/private/page", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "secret")
	})
	mux.HandleFunc("/public/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<p>hello</p>")
	})
	mux.HandleFunc("/rows.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, "a,b\n1,2\n3,4\n5,6\n7,8\n")
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		fmt.Fprint(w, "<p>caf\xe9</p>")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_QueryAndContentType(t *testing.T) {
	srv := newTestServer(t)
	for name, f := range backends(httpx.Options{UserAgent: testAgent}) {
		t.Run(name, func(t *testing.T) {
			res, err := f.Fetch(context.Background(), srv.URL+"/data.json", map[string]string{"$limit": "5000"})
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, "application/json", res.ContentType)
			assert.JSONEq(t, `{"limit":"5000","agent":"tabscrape-test/1.0"}`, string(res.Body))
			assert.Contains(t, res.URL, "limit=5000")
		})
	}
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	srv := newTestServer(t)
	for name, f := range backends(httpx.Options{}) {
		t.Run(name, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), srv.URL+"/missing", nil)
			var ne *httpx.NetworkError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, http.StatusNotFound, ne.Status)
		})
	}
}

func TestFetch_BodyLimit(t *testing.T) {
	srv := newTestServer(t)
	for name, f := range backends(httpx.Options{MaxBodyBytes: 12}) {
		t.Run(name, func(t *testing.T) {
			res, err := f.Fetch(context.Background(), srv.URL+"/rows.csv", nil)
			assert.Nil(t, res)
			var ne *httpx.NetworkError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, http.StatusOK, ne.Status)
			assert.ErrorContains(t, err, "body exceeds 12 bytes")
		})
	}

	// The 20-byte body fits a 20-byte cap exactly.
	for name, f := range backends(httpx.Options{MaxBodyBytes: 20}) {
		t.Run(name+"/exact", func(t *testing.T) {
			res, err := f.Fetch(context.Background(), srv.URL+"/rows.csv", nil)
			require.NoError(t, err)
			assert.Equal(t, "a,b\n1,2\n3,4\n5,6\n7,8\n", string(res.Body))
		})
	}
}

func TestCollyFetcher_TranscodedCharset(t *testing.T) {
	srv := newTestServer(t)
	res, err := httpx.NewCollyFetcher(httpx.Options{}).Fetch(context.Background(), srv.URL+"/latin1", nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>café</p>", string(res.Body))
	assert.Equal(t, "text/html; charset=utf-8", res.ContentType)
}

func TestFetch_Timeout(t *testing.T) {
	srv := newTestServer(t)
	for name, f := range backends(httpx.Options{Timeout: 50 * time.Millisecond}) {
		t.Run(name, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), srv.URL+"/slow", nil)
			var ne *httpx.NetworkError
			require.ErrorAs(t, err, &ne)
			assert.Zero(t, ne.Status)
			assert.True(t, ne.Timeout())
		})
	}
}

func TestFetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	for name, f := range backends(httpx.Options{Timeout: time.Second}) {
		t.Run(name, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), addr, nil)
			var ne *httpx.NetworkError
			require.ErrorAs(t, err, &ne)
		})
	}
}

func TestFetch_Robots(t *testing.T) {
	srv := newTestServer(t)
	for name, f := range backends(httpx.Options{RespectRobots: true}) {
		t.Run(name, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), srv.URL+"/private/page", nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, httpx.ErrRobotsDisallowed))

			res, err := f.Fetch(context.Background(), srv.URL+"/public/page", nil)
			require.NoError(t, err)
			assert.Equal(t, "<p>hello</p>", string(res.Body))
		})
	}
}

func TestFetch_RobotsIgnoredByDefault(t *testing.T) {
	srv := newTestServer(t)
	f := httpx.NewCollyFetcher(httpx.Options{})
	res, err := f.Fetch(context.Background(), srv.URL+"/private/page", nil)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(res.Body))
}

func TestFetch_RepeatedCallsAreIndependent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, "a,b\n1,2\n")
	}))
	t.Cleanup(srv.Close)

	for name, f := range backends(httpx.Options{}) {
		t.Run(name, func(t *testing.T) {
			before := hits.Load()
			q := map[string]string{"x": "1"}
			first, err := f.Fetch(context.Background(), srv.URL, q)
			require.NoError(t, err)
			second, err := f.Fetch(context.Background(), srv.URL, q)
			require.NoError(t, err)
			assert.Equal(t, first, second)
			assert.Equal(t, before+2, hits.Load())
			assert.Equal(t, map[string]string{"x": "1"}, q)
		})
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		query   map[string]string
		want    string
		wantErr bool
	}{
		{name: "plain", raw: "https://example.com/a", want: "https://example.com/a"},
		{name: "default scheme", raw: "example.com/a", want: "https://example.com/a"},
		{
			name:  "merges query",
			raw:   "https://data.city.gov/resource/x.json?b=2",
			query: map[string]string{"$limit": "5000"},
			want:  "https://data.city.gov/resource/x.json?%24limit=5000&b=2",
		},
		{name: "empty", raw: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := httpx.BuildURL(tt.raw, tt.query)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	f, err := httpx.New("", httpx.Options{})
	require.NoError(t, err)
	assert.IsType(t, &httpx.CollyFetcher{}, f)

	f, err = httpx.New("RESTY", httpx.Options{})
	require.NoError(t, err)
	assert.IsType(t, &httpx.RestyFetcher{}, f)

	_, err = httpx.New("curl", httpx.Options{})
	require.Error(t, err)
}
