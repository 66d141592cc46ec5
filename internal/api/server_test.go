package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/gp-agenda-watcher/internal/metrics"
	"github.com/JakeFAU/gp-agenda-watcher/internal/schedule"
	"github.com/JakeFAU/gp-agenda-watcher/internal/watcher"
)

type fakeRunner struct {
	result watcher.Result
	err    error
	last   *watcher.Result
	panics bool
}

func (f *fakeRunner) RunNow(context.Context) (watcher.Result, error) {
	if f.panics {
		panic("boom")
	}
	f.last = &f.result
	return f.result, f.err
}

func (f *fakeRunner) Last() (watcher.Result, bool) {
	if f.last == nil {
		return watcher.Result{}, false
	}
	return *f.last, true
}

func serve(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(&fakeRunner{}, zap.NewNop()), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		last       *watcher.Result
		wantStatus int
		wantState  string
	}{
		{name: "no run yet", wantStatus: http.StatusOK, wantState: "pending"},
		{name: "last run ok", last: &watcher.Result{RunID: "r1", Outcome: watcher.OutcomeNoChange},
			wantStatus: http.StatusOK, wantState: "ready"},
		{name: "last run failed", last: &watcher.Result{RunID: "r2", Outcome: watcher.OutcomeFailed, Error: "portal down"},
			wantStatus: http.StatusServiceUnavailable, wantState: "failing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, NewServer(&fakeRunner{last: tt.last}, zap.NewNop()), http.MethodGet, "/readyz")
			require.Equal(t, tt.wantStatus, rec.Code)

			var body readiness
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantState, body.Status)
			if tt.last != nil {
				require.NotNil(t, body.LastRun)
				assert.Equal(t, tt.last.RunID, body.LastRun.RunID)
			}
		})
	}
}

func TestServer_TriggerRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		runner     *fakeRunner
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			runner:     &fakeRunner{result: watcher.Result{RunID: "run-1", Outcome: watcher.OutcomeNewDocuments}},
			wantStatus: http.StatusOK,
			wantBody:   `"outcome":"new_documents"`,
		},
		{
			name:       "busy",
			runner:     &fakeRunner{err: schedule.ErrBusy},
			wantStatus: http.StatusConflict,
			wantBody:   "already in progress",
		},
		{
			name:       "shutting down",
			runner:     &fakeRunner{err: schedule.ErrDrained},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "shutting down",
		},
		{
			name: "failed",
			runner: &fakeRunner{
				result: watcher.Result{RunID: "run-2", Outcome: watcher.OutcomeFailed, Error: "fetch documents: timeout"},
				err:    errors.New("fetch documents: timeout"),
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `"outcome":"failed"`,
		},
		{
			name:       "panic",
			runner:     &fakeRunner{panics: true},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, NewServer(tt.runner, zap.NewNop()), http.MethodPost, "/v1/runs")
			require.Equal(t, tt.wantStatus, rec.Code)
			require.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestServer_RunsRejectsGet(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(&fakeRunner{}, zap.NewNop()), http.MethodGet, "/v1/runs")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	metrics.Init()
	s := NewServer(&fakeRunner{}, zap.NewNop())
	serve(t, s, http.MethodGet, "/healthz")

	rec := serve(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}
