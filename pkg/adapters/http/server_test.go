package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tessera/internal/logging"
	"github.com/quantfold/tessera/pkg/domain"
)

type fakeEngine struct {
	patterns    map[string]*domain.PatternSpec
	overrides   map[string]domain.OwnershipOverride
	breakers    map[string]string
	resetCalls  []string
	runErr      error
	lastRunID   string
	lastRequest domain.RequestContext
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		patterns: map[string]*domain.PatternSpec{
			"portfolio-overview": {
				ID:          "portfolio-overview",
				Version:     2,
				Description: "Holdings overview",
				Steps:       []domain.Step{{Capability: "portfolio.holdings", As: "holdings"}},
				Outputs:     []string{"holdings"},
			},
		},
		overrides: map[string]domain.OwnershipOverride{},
		breakers:  map[string]string{"analytics": "closed"},
	}
}

func (f *fakeEngine) Run(_ context.Context, patternID string, inputs map[string]any, req domain.RequestContext) (*domain.RunResult, error) {
	f.lastRunID = patternID
	f.lastRequest = req
	trace := &domain.ExecutionTrace{
		PatternID: patternID,
		RequestID: req.RequestID,
		StartedAt: time.Now().UTC(),
	}
	if f.runErr != nil {
		if _, ok := f.runErr.(*domain.PatternNotFoundError); ok {
			return nil, f.runErr
		}
		return &domain.RunResult{Trace: trace}, f.runErr
	}
	return &domain.RunResult{
		Outputs: map[string]any{"holdings": inputs["portfolio_id"]},
		Trace:   trace,
	}, nil
}

func (f *fakeEngine) Patterns() []*domain.PatternSpec {
	specs := make([]*domain.PatternSpec, 0, len(f.patterns))
	for _, s := range f.patterns {
		specs = append(specs, s)
	}
	return specs
}

func (f *fakeEngine) Pattern(id string) (*domain.PatternSpec, error) {
	spec, ok := f.patterns[id]
	if !ok {
		return nil, &domain.PatternNotFoundError{ID: id}
	}
	return spec, nil
}

func (f *fakeEngine) Ownership(context.Context) (map[string]domain.OwnershipOverride, error) {
	return f.overrides, nil
}

func (f *fakeEngine) SetOwnership(_ context.Context, capability string, override *domain.OwnershipOverride) error {
	if override == nil {
		delete(f.overrides, capability)
		return nil
	}
	f.overrides[capability] = *override
	return nil
}

func (f *fakeEngine) ResetBreaker(agent string) {
	f.resetCalls = append(f.resetCalls, agent)
}

func (f *fakeEngine) BreakerStates() map[string]string { return f.breakers }

func (f *fakeEngine) Version() string { return "test" }

func setupServer(t *testing.T) (*fakeEngine, *httptest.Server) {
	t.Helper()
	engine := newFakeEngine()
	srv := httptest.NewServer(NewHandler(engine, WithLogger(logging.NewNop())))
	t.Cleanup(srv.Close)
	return engine, srv
}

func TestRunPattern(t *testing.T) {
	engine, srv := setupServer(t)

	body := `{"inputs": {"portfolio_id": "pf-1"}, "request_id": "req-1", "data_snapshot_id": "snap-1"}`
	resp, err := http.Post(srv.URL+"/patterns/portfolio-overview/run", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result RunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "pf-1", result.Outputs["holdings"])
	require.NotNil(t, result.Trace)
	assert.Equal(t, "portfolio-overview", result.Trace.PatternID)

	assert.Equal(t, "req-1", engine.lastRequest.RequestID)
	assert.Equal(t, "snap-1", engine.lastRequest.DataSnapshotID)
}

func TestRunPatternInvalidBody(t *testing.T) {
	_, srv := setupServer(t)

	resp, err := http.Post(srv.URL+"/patterns/portfolio-overview/run", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunPatternNotFound(t *testing.T) {
	engine, srv := setupServer(t)
	engine.runErr = &domain.PatternNotFoundError{ID: "missing"}

	resp, err := http.Post(srv.URL+"/patterns/missing/run", "application/json", strings.NewReader(`{"inputs": {}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunPatternValidationFailure(t *testing.T) {
	engine, srv := setupServer(t)
	engine.runErr = &domain.InputValidationError{
		PatternID: "portfolio-overview",
		Err:       assert.AnError,
	}

	resp, err := http.Post(srv.URL+"/patterns/portfolio-overview/run", "application/json", strings.NewReader(`{"inputs": {}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var result RunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Contains(t, result.Error, "invalid inputs")
}

func TestRunPatternExecutionFailureKeepsTrace(t *testing.T) {
	engine, srv := setupServer(t)
	engine.runErr = &domain.PatternExecutionError{
		PatternID: "portfolio-overview",
		StepIndex: 0,
		Err:       assert.AnError,
	}

	resp, err := http.Post(srv.URL+"/patterns/portfolio-overview/run", "application/json", strings.NewReader(`{"inputs": {}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var result RunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Nil(t, result.Outputs)
	require.NotNil(t, result.Trace)
	assert.NotEmpty(t, result.Error)
}

func TestListAndGetPatterns(t *testing.T) {
	_, srv := setupServer(t)

	resp, err := http.Get(srv.URL + "/patterns")
	require.NoError(t, err)
	defer resp.Body.Close()

	var summaries []PatternSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "portfolio-overview", summaries[0].ID)
	assert.Equal(t, 2, summaries[0].Version)

	resp2, err := http.Get(srv.URL + "/patterns/portfolio-overview")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	resp3, err := http.Get(srv.URL + "/patterns/missing")
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)
}

func TestOwnershipLifecycle(t *testing.T) {
	engine, srv := setupServer(t)
	client := srv.Client()

	put := func(capability, body string) *http.Response {
		req, err := http.NewRequest(http.MethodPut, srv.URL+"/ownership/"+capability, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := put("analytics.compare", `{"target_agent": "analytics-v2", "rollout_percentage": 25, "enabled": true}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "analytics-v2", engine.overrides["analytics.compare"].TargetAgent)

	resp = put("analytics.compare", `{"target_agent": "", "rollout_percentage": 25, "enabled": true}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = put("analytics.compare", `{"target_agent": "x", "rollout_percentage": 150, "enabled": true}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	listResp, err := http.Get(srv.URL + "/ownership")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var overrides map[string]domain.OwnershipOverride
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&overrides))
	assert.Contains(t, overrides, "analytics.compare")

	delReq, err := http.NewRequest(http.MethodDelete, srv.URL+"/ownership/analytics.compare", nil)
	require.NoError(t, err)
	delResp, err := client.Do(delReq)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)
	assert.NotContains(t, engine.overrides, "analytics.compare")
}

func TestBreakerEndpoints(t *testing.T) {
	engine, srv := setupServer(t)

	resp, err := http.Get(srv.URL + "/breakers")
	require.NoError(t, err)
	defer resp.Body.Close()

	var states map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&states))
	assert.Equal(t, "closed", states["analytics"])

	resetResp, err := http.Post(srv.URL+"/breakers/analytics/reset", "application/json", nil)
	require.NoError(t, err)
	resetResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resetResp.StatusCode)
	assert.Equal(t, []string{"analytics"}, engine.resetCalls)
}

func TestHealthAndInfo(t *testing.T) {
	_, srv := setupServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	infoResp, err := http.Get(srv.URL + "/info")
	require.NoError(t, err)
	defer infoResp.Body.Close()

	var info map[string]string
	require.NoError(t, json.NewDecoder(infoResp.Body).Decode(&info))
	assert.Equal(t, "tessera-http", info["app"])
	assert.Equal(t, "1.0.0", info["api_version"])
}

func TestMetricsEndpoint(t *testing.T) {
	engine := newFakeEngine()
	reg := prometheus.NewRegistry()
	srv := httptest.NewServer(NewHandler(engine, WithLogger(logging.NewNop()), WithMetrics(reg)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEmbeddedSpecIsValid(t *testing.T) {
	doc, err := loadSpec()
	require.NoError(t, err)
	require.NotNil(t, doc.Paths.Find("/patterns/{id}/run"))
	assert.Equal(t, "1.0.0", doc.Info.Version)

	again, err := loadSpec()
	require.NoError(t, err)
	assert.Same(t, doc, again, "the embedded document is parsed once and reused")
}
