package portal

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(endpoint string) Config {
	form := url.Values{}
	form.Set("folderId", "132")
	form.Set("rowsPerPage", "100")
	return Config{
		Endpoint:  endpoint,
		Origin:    "https://civic.example",
		Referer:   "https://civic.example/DocumentCenter",
		UserAgent: "agenda-test/1.0",
		Form:      form,
		Timeout:   5 * time.Second,
	}
}

func TestCollyFetcherPostsFolderQuery(t *testing.T) {
	t.Parallel()

	var (
		gotMethod  string
		gotHeaders http.Header
		gotForm    url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeaders = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(raw))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Documents":[{"ID":1,"DisplayName":"Agenda"}]}`))
	}))
	defer srv.Close()

	body, err := NewCollyFetcher(testConfig(srv.URL)).Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"Documents":[{"ID":1,"DisplayName":"Agenda"}]}`, string(body))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/x-www-form-urlencoded; charset=UTF-8", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "application/json, text/plain, */*", gotHeaders.Get("Accept"))
	assert.Equal(t, "XMLHttpRequest", gotHeaders.Get("X-Requested-With"))
	assert.Equal(t, "https://civic.example", gotHeaders.Get("Origin"))
	assert.Equal(t, "https://civic.example/DocumentCenter", gotHeaders.Get("Referer"))
	assert.Equal(t, "agenda-test/1.0", gotHeaders.Get("User-Agent"))
	assert.Equal(t, "132", gotForm.Get("folderId"))
	assert.Equal(t, "100", gotForm.Get("rowsPerPage"))
}

func TestCollyFetcherRepeatsIdenticalRequests(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := NewCollyFetcher(testConfig(srv.URL))
	for range 2 {
		_, err := f.Fetch(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestCollyFetcherErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantErr: "HTTP 500"},
		{name: "forbidden", status: http.StatusForbidden, body: "", wantErr: "HTTP 403"},
		{name: "html body", status: http.StatusOK, body: "<html>maintenance</html>", wantErr: ErrInvalidJSON.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewCollyFetcher(testConfig(srv.URL)).Fetch(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCollyFetcherContextCanceled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCollyFetcher(testConfig(srv.URL)).Fetch(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
