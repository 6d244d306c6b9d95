package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/sunwatch/internal/export"
	"github.com/nerrad567/sunwatch/internal/infrastructure/config"
	"github.com/nerrad567/sunwatch/internal/infrastructure/logging"
	"github.com/nerrad567/sunwatch/internal/infrastructure/metrics"
	"github.com/nerrad567/sunwatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/sunwatch/internal/refresh"
)

// =============================================================================
// Test Fixtures
// =============================================================================

// csvFor renders fields as a single-row annotated CSV response.
func csvFor(fields map[string]string) string {
	header := ",result,table,_start,_stop,_time,_measurement,device"
	row := ",_result,0,s,e,t,m,d"
	for name, value := range fields {
		header += "," + name
		row += "," + value
	}
	return header + "\n" + row + "\n"
}

var sampleFields = map[string]string{
	"Power.Production.Total":      "4200",
	"Power.Consumption.Total":     "1500",
	"Energy.Battery.Charge.Level": "76.5",
	"Inverter.State":              "running",
}

type fakeSource struct {
	mu        sync.Mutex
	text      string
	err       error
	connected bool
	calls     int
}

func (f *fakeSource) QueryLatest(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

func (f *fakeSource) TestConnection(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSource) set(text string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text, f.err = text, err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEnv struct {
	srv    *Server
	ts     *httptest.Server
	cache  *refresh.Cache
	source *fakeSource
	dir    string
}

func newTestEnv(t *testing.T, src *fakeSource, apiCfg config.APIConfig) *testEnv {
	t.Helper()

	cache := refresh.New(src, refresh.Options{
		Interval: time.Minute,
		Logger:   logging.Discard(),
	})
	dir := t.TempDir()

	srv, err := New(Deps{
		Config: apiCfg,
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:   logging.Discard(),
		Cache:    cache,
		Exporter: export.NewWriter(dir),
		Metrics:  metrics.New(),
		Version:  "test",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.startHub(ctx)

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, ts: ts, cache: cache, source: src, dir: dir}
}

func onlineEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnv(t, &fakeSource{text: csvFor(sampleFields), connected: true}, config.APIConfig{})
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	return e.do(t, http.MethodGet, path)
}

func (e *testEnv) do(t *testing.T, method, path string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, e.ts.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var doc map[string]any
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &doc), "body: %s", body)
	}
	return resp, doc
}

// =============================================================================
// Snapshot Endpoints
// =============================================================================

func TestComprehensive_EmptyCacheRefreshes(t *testing.T) {
	env := onlineEnv(t)

	resp, doc := env.get(t, "/api/comprehensive")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	power, ok := doc["power"].(map[string]any)
	require.True(t, ok, "power category missing: %v", doc)
	assert.Equal(t, 4.2, power["production_total"])
	assert.Contains(t, doc, "raw_data")
	assert.Contains(t, doc, "timestamp")

	meta, ok := doc["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(len(sampleFields)), meta["total_fields_captured"])
	assert.Equal(t, 1, env.source.callCount())
}

func TestComprehensive_ServesFromCache(t *testing.T) {
	env := onlineEnv(t)

	env.get(t, "/api/comprehensive")
	env.get(t, "/api/comprehensive")
	env.get(t, "/api/power")

	assert.Equal(t, 1, env.source.callCount(), "only the first request should reach the store")
}

func TestComprehensive_OfflineWhenRefreshFails(t *testing.T) {
	env := newTestEnv(t, &fakeSource{err: errors.New("connection refused")}, config.APIConfig{})

	resp, doc := env.get(t, "/api/comprehensive")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotEmpty(t, doc["error"])
	assert.NotEmpty(t, doc["timestamp"])
	status, ok := doc["status"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, status["online"])
}

func TestComprehensive_HugeValuesStillEncode(t *testing.T) {
	env := newTestEnv(t, &fakeSource{text: csvFor(map[string]string{
		"Voltage.Battery":   "1.0e308",
		"Current.Battery":   "1.0e308",
		"Energy.Battery.Ah": "1.0e308",
	}), connected: true}, config.APIConfig{})

	resp, doc := env.get(t, "/api/comprehensive")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	battery, ok := doc["battery"].(map[string]any)
	require.True(t, ok, "battery category missing: %v", doc)
	assert.Equal(t, 0.0, battery["power_kw"])
}

func TestCategoryEndpoints(t *testing.T) {
	env := onlineEnv(t)

	for _, name := range []string{"power", "energy", "voltage", "current", "temperature", "battery"} {
		t.Run(name, func(t *testing.T) {
			resp, doc := env.get(t, "/api/"+name)

			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, name, doc["category"])
			data, ok := doc["data"].(map[string]any)
			require.True(t, ok)
			assert.NotEmpty(t, data)
			assert.Equal(t, float64(len(data)), doc["total_fields"])
			assert.NotEmpty(t, doc["timestamp"])
		})
	}
}

func TestCategory_OfflineWhenEmpty(t *testing.T) {
	env := newTestEnv(t, &fakeSource{text: ""}, config.APIConfig{})

	resp, doc := env.get(t, "/api/battery")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	status, _ := doc["status"].(map[string]any)
	assert.Equal(t, false, status["online"])
}

func TestRawEndpoint(t *testing.T) {
	env := onlineEnv(t)

	resp, doc := env.get(t, "/api/raw")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "raw", doc["category"])
	data, ok := doc["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(4200), data["Power.Production.Total"])
	assert.Equal(t, "running", data["Inverter.State"])
	assert.Equal(t, float64(len(sampleFields)), doc["total_fields"])
}

func TestDashboardEndpoint(t *testing.T) {
	env := onlineEnv(t)

	resp, doc := env.get(t, "/api/data")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, key := range []string{"energy_flow", "battery", "strings", "system", "daily", "calculated"} {
		assert.Contains(t, doc, key)
	}

	battery, ok := doc["battery"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 76.5, battery["soc"])

	flow, ok := doc["energy_flow"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 4.2, flow["pv_power"])

	status, ok := doc["status"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, status["online"])
	assert.Contains(t, status, "data_age_seconds")
	assert.NotEmpty(t, status["last_update"])
}

func TestExportEndpoint(t *testing.T) {
	env := onlineEnv(t)

	resp, doc := env.get(t, "/api/export")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	path, ok := doc["export_file"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(path, env.dir), "export written outside %s: %s", env.dir, path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	var exported map[string]any
	require.NoError(t, json.Unmarshal(content, &exported))
	assert.Contains(t, exported, "power")

	data, ok := doc["data"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, data, "raw_data")
}

func TestExportEndpoint_AlwaysRefreshes(t *testing.T) {
	env := onlineEnv(t)

	env.get(t, "/api/comprehensive")
	env.get(t, "/api/export")

	assert.Equal(t, 2, env.source.callCount())
}

func TestExportEndpoint_Offline(t *testing.T) {
	env := newTestEnv(t, &fakeSource{err: errors.New("timeout")}, config.APIConfig{})

	resp, doc := env.get(t, "/api/export")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotEmpty(t, doc["error"])

	entries, err := os.ReadDir(env.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// =============================================================================
// Status, Health and Refresh
// =============================================================================

func TestStatusEndpoint(t *testing.T) {
	env := onlineEnv(t)
	_, err := env.cache.ForceRefresh(context.Background())
	require.NoError(t, err)

	resp, doc := env.get(t, "/api/status")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ServerName, doc["server"])
	assert.Equal(t, "test", doc["version"])
	assert.Equal(t, true, doc["cached_data_available"])
	assert.Equal(t, true, doc["influxdb_connection"])
	assert.Equal(t, float64(len(sampleFields)), doc["total_fields_captured"])
	assert.Equal(t, float64(60), doc["update_interval"])
	assert.Equal(t, string(refresh.StateFresh), doc["state"])
	assert.Equal(t, false, doc["stale"])
	assert.NotNil(t, doc["last_update"])
}

func TestStatusEndpoint_Empty(t *testing.T) {
	env := newTestEnv(t, &fakeSource{}, config.APIConfig{})

	resp, doc := env.get(t, "/api/status")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, doc["cached_data_available"])
	assert.Equal(t, false, doc["influxdb_connection"])
	assert.Equal(t, string(refresh.StateEmpty), doc["state"])
	assert.Nil(t, doc["last_update"])
	assert.Equal(t, 0, env.source.callCount(), "status must not trigger a refresh")
}

func TestHealthEndpoint(t *testing.T) {
	env := onlineEnv(t)

	resp, doc := env.get(t, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, false, doc["healthy"])
	assert.Equal(t, 0, env.source.callCount(), "health must not query the store")

	_, err := env.cache.ForceRefresh(context.Background())
	require.NoError(t, err)

	resp, doc = env.get(t, "/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, doc["healthy"])
	assert.Equal(t, false, doc["stale"])
	assert.Contains(t, doc, "uptime_seconds")
	assert.NotEmpty(t, doc["timestamp"])
	assert.NotNil(t, doc["last_update"])
}

func TestRefreshEndpoint(t *testing.T) {
	env := onlineEnv(t)

	resp, doc := env.do(t, http.MethodPost, "/api/refresh")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, doc["cached_data_available"])
	assert.Equal(t, 1, env.source.callCount())

	snap, ok := env.cache.Current()
	require.True(t, ok)
	assert.Equal(t, len(sampleFields), snap.FieldCount())
}

func TestRefreshEndpoint_Failure(t *testing.T) {
	env := onlineEnv(t)
	env.source.set("", errors.New("bucket not found"))

	resp, doc := env.do(t, http.MethodPost, "/api/refresh")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, float64(1), doc["consecutive_failures"])
	assert.Contains(t, doc["last_error"], "bucket not found")
}

func TestRefreshEndpoint_MethodNotAllowed(t *testing.T) {
	env := onlineEnv(t)

	resp, doc := env.get(t, "/api/refresh")

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, ErrCodeMethodNotAllow, doc["code"])
}

func TestSystemMetricsEndpoint(t *testing.T) {
	env := onlineEnv(t)
	_, err := env.cache.ForceRefresh(context.Background())
	require.NoError(t, err)

	resp, doc := env.get(t, "/api/system/metrics")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "test", doc["version"])

	rt, ok := doc["runtime"].(map[string]any)
	require.True(t, ok)
	assert.Greater(t, rt["goroutines"], float64(0))

	cache, ok := doc["cache"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(refresh.StateFresh), cache["state"])
	assert.Equal(t, float64(len(sampleFields)), cache["fields"])

	mq, ok := doc["mqtt"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, mq["enabled"])
}

func TestSystemMetricsEndpoint_MQTT(t *testing.T) {
	env := onlineEnv(t)
	env.srv.mqtt = &mqtt.Client{}

	resp, doc := env.get(t, "/api/system/metrics")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	mq, ok := doc["mqtt"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, mq["enabled"])
	assert.Equal(t, false, mq["connected"])
	assert.Equal(t, float64(0), mq["subscriptions"])
}

// =============================================================================
// Middleware
// =============================================================================

func TestNotFound(t *testing.T) {
	env := onlineEnv(t)

	resp, doc := env.get(t, "/api/nope")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, ErrCodeNotFound, doc["code"])
}

func TestDashboardPage(t *testing.T) {
	env := onlineEnv(t)

	resp, err := http.Get(env.ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<!DOCTYPE html>")
	assert.Equal(t, 0, env.source.callCount(), "serving the page must not query the store")
}

func TestRequestID(t *testing.T) {
	env := onlineEnv(t)

	resp, _ := env.get(t, "/api/health")
	_, err := uuid.Parse(resp.Header.Get("X-Request-ID"))
	assert.NoError(t, err, "generated request ID should be a UUID")

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "client-supplied")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, "client-supplied", resp2.Header.Get("X-Request-ID"))
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, &fakeSource{}, config.APIConfig{
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://dash.local"}},
	})

	tests := []struct {
		origin string
		want   string
	}{
		{"http://dash.local", "http://dash.local"},
		{"http://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/health", nil)
			require.NoError(t, err)
			req.Header.Set("Origin", tt.origin)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.want, resp.Header.Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestGzip(t *testing.T) {
	fields := make(map[string]string, 200)
	for k, v := range sampleFields {
		fields[k] = v
	}
	for i := 0; i < 200; i++ {
		fields[fmt.Sprintf("Extra.Sensor.%03d", i)] = fmt.Sprintf("%d.5", i)
	}
	env := newTestEnv(t, &fakeSource{text: csvFor(fields)}, config.APIConfig{})

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/comprehensive", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
}

func TestRecoveryMiddleware(t *testing.T) {
	env := onlineEnv(t)

	handler := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/comprehensive", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrCodeInternal, body.Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	env := onlineEnv(t)

	env.get(t, "/api/health")
	env.get(t, "/api/comprehensive")

	resp, err := http.Get(env.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `sunwatch_http_requests_total{route="/api/health",status="503"} 1`)
	assert.Contains(t, text, `sunwatch_http_requests_total{route="/api/comprehensive",status="200"} 1`)
}

// =============================================================================
// Server Lifecycle
// =============================================================================

func TestNew_RequiresDependencies(t *testing.T) {
	cache := refresh.New(&fakeSource{}, refresh.Options{Logger: logging.Discard()})
	writer := export.NewWriter(t.TempDir())

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Cache: cache, Exporter: writer}},
		{"no cache", Deps{Logger: logging.Discard(), Exporter: writer}},
		{"no exporter", Deps{Logger: logging.Discard(), Cache: cache}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.deps)
			assert.Error(t, err)
		})
	}
}

func TestServer_StartClose(t *testing.T) {
	src := &fakeSource{text: csvFor(sampleFields)}
	cache := refresh.New(src, refresh.Options{Logger: logging.Discard()})

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:       config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logger:   logging.Discard(),
		Cache:    cache,
		Exporter: export.NewWriter(t.TempDir()),
	})
	require.NoError(t, err)

	assert.Error(t, srv.HealthCheck(context.Background()), "not started yet")

	require.NoError(t, srv.Start(context.Background()))
	require.NotEmpty(t, srv.Addr())
	assert.NoError(t, srv.HealthCheck(context.Background()))

	resp, err := http.Get("http://" + srv.Addr() + "/api/comprehensive")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.NoError(t, srv.Close())
}

// =============================================================================
// Response Helpers
// =============================================================================

func TestWriteJSON_UnencodableValue(t *testing.T) {
	w := httptest.NewRecorder()

	writeJSON(w, http.StatusOK, map[string]float64{"x": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var doc Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, ErrCodeInternal, doc.Code)
}

func TestWriteOffline(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"fetch failure", fmt.Errorf("%w: timeout", refresh.ErrFetchFailed), http.StatusServiceUnavailable},
		{"empty result", refresh.ErrEmptyResult, http.StatusServiceUnavailable},
		{"other error", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeOffline(w, tt.err)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
