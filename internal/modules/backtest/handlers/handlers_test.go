package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/backtest"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	req    backtest.Request
	result *backtest.Result
	err    error
}

func (s *stubRunner) Run(_ context.Context, req backtest.Request) (*backtest.Result, error) {
	s.req = req
	return s.result, s.err
}

func newRouter(runner Runner) http.Handler {
	r := chi.NewRouter()
	NewHandler(runner, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func post(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/backtest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleRun(t *testing.T) {
	runner := &stubRunner{result: &backtest.Result{Start: "2024-01-31", End: "2024-05-29"}}

	rec := post(newRouter(runner), `{"symbols":["BTCUSDT"],"start":"2024-01-01","lookback_days":30,"rebalance":"weekly","fee_bps":0,"linkage":"single"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"BTCUSDT"}, runner.req.Symbols)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), runner.req.Start)
	assert.True(t, runner.req.End.IsZero())
	assert.Equal(t, 30, runner.req.LookbackDays)
	assert.Equal(t, backtest.RebalanceWeekly, runner.req.Rebalance)
	assert.Zero(t, runner.req.FeeBps)
	assert.Equal(t, optimization.LinkageSingle, runner.req.Linkage)
	assert.Equal(t, 10000.0, runner.req.InitialCapital)

	var resp struct {
		Data backtest.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-01-31", resp.Data.Start)
}

func TestHandleRun_EmptyBodyUsesDefaults(t *testing.T) {
	runner := &stubRunner{result: &backtest.Result{}}

	rec := post(newRouter(runner), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, backtest.DefaultConfig(), runner.req.Config)
}

func TestHandleRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"bad date", `{"start":"01/01/2024"}`, nil, http.StatusBadRequest},
		{"bad linkage", `{"linkage":"centroid"}`, nil, http.StatusBadRequest},
		{"invalid config", `{}`, fmt.Errorf("%w: unknown rebalance frequency", backtest.ErrInvalidConfig), http.StatusBadRequest},
		{"insufficient data", `{}`, fmt.Errorf("%w: too short", optimization.ErrInsufficientData), http.StatusUnprocessableEntity},
		{"internal", `{}`, fmt.Errorf("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(newRouter(&stubRunner{err: tt.err}), tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}
