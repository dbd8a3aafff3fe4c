package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaron8/netmon/analytics"
	"github.com/yaron8/netmon/dashboard/config"
	"github.com/yaron8/netmon/dashboard/instrument"
	"github.com/yaron8/netmon/dashboard/stream"
	"github.com/yaron8/netmon/metrics"
	"github.com/yaron8/netmon/telemetrics"
)

var base = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fakeConnection struct{ state stream.ConnState }

func (f fakeConnection) State() stream.ConnState { return f.state }

type fakeViews struct {
	views map[string]analytics.View
	at    time.Time
}

func (f fakeViews) View(metric string) (analytics.View, bool) {
	v, ok := f.views[metric]
	return v, ok
}

func (f fakeViews) Views() (map[string]analytics.View, time.Time) { return f.views, f.at }

type fixture struct {
	router    *gin.Engine
	store     *metrics.Store
	attack    *metrics.AttackFlag
	collector *instrument.Collector
}

func newFixture(t *testing.T, conn stream.ConnState, views map[string]analytics.View) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	f := &fixture{
		store:     metrics.NewStore(metrics.DefaultCapacity),
		attack:    metrics.NewAttackFlag(),
		collector: instrument.NewCollector(),
	}
	api := NewAPIServer(cfg, Sources{
		Store:      f.store,
		Attack:     f.attack,
		Deriver:    analytics.NewDeriver(analytics.DefaultInterval, nil, nil),
		Connection: fakeConnection{state: conn},
		Views:      fakeViews{views: views, at: base},
		Collector:  f.collector,
	})
	f.router = api.Router()
	return f
}

func (f *fixture) get(t *testing.T, target string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)

	if out != nil && resp.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), out), resp.Body.String())
	}
	return resp
}

func (f *fixture) appendSeries(name string, values ...float64) {
	for i, v := range values {
		f.store.Append(name, metrics.Point{Timestamp: base.Add(time.Duration(i) * 2 * time.Second), Value: v})
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, stream.ConnState{}, nil)

	resp := f.get(t, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "OK", resp.Body.String())
}

func TestListMetrics(t *testing.T) {
	f := newFixture(t, stream.ConnState{}, nil)
	f.appendSeries(telemetrics.BytesSent, 10, 20)

	var got map[string]*metrics.Point
	resp := f.get(t, "/telemetry/ListMetrics", &got)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, got, len(telemetrics.GetMetricNames()))
	require.NotNil(t, got[telemetrics.BytesSent])
	assert.Equal(t, 20.0, got[telemetrics.BytesSent].Value)
	assert.Nil(t, got[telemetrics.LocalLatency])
}

func TestGetMetric(t *testing.T) {
	f := newFixture(t, stream.ConnState{}, nil)
	f.appendSeries(telemetrics.LocalLatency, 1, 2, 3)

	var got MetricResponse
	resp := f.get(t, "/telemetry/GetMetric?metric=local_latency", &got)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, telemetrics.LocalLatency, got.Metric)
	require.Len(t, got.Points, 3)
	assert.Equal(t, 3.0, got.Points[2].Value)

	// known but empty metric is an empty list, not an error
	resp = f.get(t, "/telemetry/GetMetric?metric=bytes_recv", &got)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, got.Points)
	assert.Contains(t, resp.Body.String(), `"points":[]`)
}

func TestMetricParamErrors(t *testing.T) {
	f := newFixture(t, stream.ConnState{}, nil)

	for _, path := range []string{"/telemetry/GetMetric", "/telemetry/Aggregate", "/telemetry/Classify", "/telemetry/Threshold"} {
		assert.Equal(t, http.StatusBadRequest, f.get(t, path, nil).Code, path)
		assert.Equal(t, http.StatusNotFound, f.get(t, path+"?metric=cpu", nil).Code, path)
	}
}

func TestAggregate(t *testing.T) {
	f := newFixture(t, stream.ConnState{}, nil)
	f.appendSeries(telemetrics.ExternalLatency, 10, 20, 30, 40)

	var got AggregateResponse
	resp := f.get(t, "/telemetry/Aggregate?metric=external_latency", &got)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "5m0s", got.Interval)
	require.Len(t, got.Buckets, 1)
	assert.Equal(t, 25.0, got.Buckets[0].Mean)
	assert.Equal(t, 4, got.Buckets[0].Count)

	resp = f.get(t, "/telemetry/Aggregate?metric=external_latency&interval=4s", &got)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, got.Buckets, 2)
	assert.Equal(t, 15.0, got.Buckets[0].Mean)
	assert.Equal(t, 35.0, got.Buckets[1].Mean)

	resp = f.get(t, "/telemetry/Aggregate?metric=external_latency&interval=1500us", &got)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "1.5ms", got.Interval)
	require.Len(t, got.Buckets, 4)
	assert.Equal(t, base.Add(1333*1500*time.Microsecond), got.Buckets[1].Start)

	for _, bad := range []string{"soon", "-1s", "0s"} {
		resp = f.get(t, "/telemetry/Aggregate?metric=external_latency&interval="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code, bad)
	}
}

func TestClassify(t *testing.T) {
	f := newFixture(t, stream.ConnState{}, nil)
	f.appendSeries(telemetrics.ExternalPacketLoss, 0, 0, 0.2, 0)

	var got ClassifyResponse
	resp := f.get(t, "/telemetry/Classify?metric=external_packet_loss", &got)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []string{"No Loss", "Loss"}, got.Labels)
	assert.Equal(t, []float64{75, 25}, got.Shares)
}

func TestThreshold(t *testing.T) {
	f := newFixture(t, stream.ConnState{}, nil)
	f.appendSeries(telemetrics.ExternalLatency, 50, 101)

	var got ThresholdResponse
	resp := f.get(t, "/telemetry/Threshold?metric=external_latency", &got)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, got.Limits)
	assert.Equal(t, analytics.Limits{Avg: 75, Max: 100}, *got.Limits)
	require.NotNil(t, got.Latest)
	assert.Equal(t, 101.0, got.Latest.Value)
	assert.True(t, got.Exceeded)
	assert.True(t, got.BucketExceeded, "mean 75.5 is above avg 75")

	// no limits configured
	f.appendSeries(telemetrics.BytesSent, 1e9)
	got = ThresholdResponse{}
	resp = f.get(t, "/telemetry/Threshold?metric=bytes_sent", &got)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, got.Limits)
	assert.False(t, got.Exceeded)
}

func TestView(t *testing.T) {
	views := map[string]analytics.View{
		telemetrics.LocalLatency: {Metric: telemetrics.LocalLatency, Samples: 3},
	}
	f := newFixture(t, stream.ConnState{}, views)

	var all ViewsResponse
	resp := f.get(t, "/telemetry/View", &all)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, all.RefreshedAt.Equal(base))
	assert.Equal(t, 3, all.Views[telemetrics.LocalLatency].Samples)

	var one analytics.View
	resp = f.get(t, "/telemetry/View?metric=local_latency", &one)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, telemetrics.LocalLatency, one.Metric)

	resp = f.get(t, "/telemetry/View?metric=bytes_sent", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAttack(t *testing.T) {
	f := newFixture(t, stream.ConnState{}, nil)
	f.attack.Set(true, "Port Scan")

	var got metrics.AttackStatus
	resp := f.get(t, "/telemetry/Attack", &got)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, got.Detected)
	assert.Equal(t, "Port Scan", got.Details)
	assert.Contains(t, resp.Body.String(), `"attack_detected":true`)
}

func TestConnection(t *testing.T) {
	f := newFixture(t, stream.ConnState{State: stream.Error, Attempt: 3, Delay: 4 * time.Second}, nil)

	var got map[string]any
	resp := f.get(t, "/telemetry/Connection", &got)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "error", got["state"])
	assert.Equal(t, 3.0, got["attempt"])
	assert.Equal(t, 4000.0, got["next_delay_ms"])

	f = newFixture(t, stream.ConnState{State: stream.Connected}, nil)
	resp = f.get(t, "/telemetry/Connection", &got)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "connected", got["state"])
	assert.Equal(t, 0.0, got["next_delay_ms"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, stream.ConnState{}, nil)
	f.collector.FrameReceived(telemetrics.TypeMetrics)

	resp := f.get(t, "/metrics", nil)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `netmon_frames_received_total{type="metrics"} 1`)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, stream.ConnState{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/telemetry/ListMetrics", nil)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
}
