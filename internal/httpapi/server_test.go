package httpapi

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/alertack/internal/domain"
	apimw "github.com/hamed0406/alertack/internal/httpapi/middleware"
	"github.com/hamed0406/alertack/internal/reconcile"
	"github.com/hamed0406/alertack/internal/repo/memory"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fixedState reconcile.State

func (f fixedState) State() reconcile.State { return reconcile.State(f) }

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New()
	rows := []domain.AckOutcome{
		{RunID: "r1", HostName: "db01", ServiceName: "Disk", Status: domain.StatusWarning, Success: true,
			LatencyMS: domain.Float64(100), AcknowledgedAt: testNow.Add(-time.Hour)},
		{RunID: "r1", HostName: "db02", ServiceName: "Load", Status: domain.StatusWarning, Success: true,
			LatencyMS: domain.Float64(300), AcknowledgedAt: testNow.Add(-30 * time.Minute)},
		{RunID: "r1", HostName: "web01", ServiceName: "HTTP, TLS", Status: domain.StatusCritical, Success: false,
			ErrorMessage: "HTTP 500", LatencyMS: domain.Float64(200), AcknowledgedAt: testNow.Add(-2 * time.Hour)},
		{RunID: "r0", HostName: "old", ServiceName: "Ping", Status: domain.StatusWarning, Success: true,
			LatencyMS: domain.Float64(50), AcknowledgedAt: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)},
	}
	for i := range rows {
		_, err := st.RecordAck(context.Background(), &rows[i])
		require.NoError(t, err)
	}
	_, err := st.RecordRun(context.Background(), &domain.RunMetrics{RunID: "r0", TotalAlerts: 1, SuccessfulAcks: 1})
	require.NoError(t, err)
	_, err = st.RecordRun(context.Background(), &domain.RunMetrics{RunID: "r1", TotalAlerts: 3, SuccessfulAcks: 2, FailedAcks: 1})
	require.NoError(t, err)
	return st
}

func newTestServer(t *testing.T, opt RouterOptions) *httptest.Server {
	t.Helper()
	srv := NewServer(zap.NewNop(), seededStore(t), fixedState(reconcile.Acknowledging))
	srv.now = func() time.Time { return testNow }
	if opt.PublicRPM == 0 {
		opt.PublicRPM, opt.PublicBurst = 10_000, 10_000
	}
	ts := httptest.NewServer(srv.Router(opt))
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, ts *httptest.Server, path string, hdr ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthz_ReportsRunState(t *testing.T) {
	ts := newTestServer(t, RouterOptions{Keys: apimw.Keys{Public: []string{"k"}}})
	var out map[string]string
	decode(t, get(t, ts, "/healthz"), &out)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "acknowledging", out["run_state"])
}

func TestStats(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	var out statsResponse
	decode(t, get(t, ts, "/api/stats"), &out)

	assert.EqualValues(t, 3, out.Last24h.Total)
	assert.EqualValues(t, 2, out.Last24h.Successful)
	assert.EqualValues(t, 1, out.Last24h.Failed)
	assert.Equal(t, 66.67, out.Last24h.SuccessRate)
	assert.EqualValues(t, 4, out.AllTime.Total)
	assert.Equal(t, 200.0, out.Performance.AvgResponseTime)
}

func TestHourlyChart(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	var out chartResponse
	decode(t, get(t, ts, "/api/charts/hourly"), &out)

	require.Len(t, out.Labels, 24)
	assert.Equal(t, "00:00", out.Labels[0])
	assert.Equal(t, "23:00", out.Labels[23])
	require.Len(t, out.Datasets, 2)
	assert.EqualValues(t, 2, out.Datasets[0].Data[11])
	assert.EqualValues(t, 1, out.Datasets[1].Data[10])

	var sum int64
	for _, ds := range out.Datasets {
		for _, n := range ds.Data {
			sum += n
		}
	}
	assert.EqualValues(t, 3, sum)
}

func TestHistory_Filters(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	cases := []struct {
		query string
		total int64
		rows  int
	}{
		{"", 3, 3}, // last seven days
		{"?start_date=2025-03-01&end_date=2025-03-10", 4, 4},
		{"?start_date=2025-03-10&end_date=2025-03-10&success=false", 1, 1},
		{"?start_date=2025-03-01&end_date=2025-03-10&status=critical", 1, 1},
		{"?start_date=2025-03-02&end_date=2025-03-09", 0, 0},
	}
	for _, c := range cases {
		t.Run(c.query, func(t *testing.T) {
			var out historyResponse
			decode(t, get(t, ts, "/api/history"+c.query), &out)
			assert.Equal(t, c.total, out.Total)
			assert.Len(t, out.Rows, c.rows)
			assert.NotNil(t, out.Rows)
		})
	}
}

func TestHistory_DefaultRangeEchoed(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	var out historyResponse
	decode(t, get(t, ts, "/api/history"), &out)
	assert.Equal(t, "2025-03-04", out.StartDate)
	assert.Equal(t, "2025-03-10", out.EndDate)
	assert.Equal(t, "db02", out.Rows[0].HostName)
}

func TestHistory_BadParams(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	for _, q := range []string{
		"?start_date=10/03/2025",
		"?start_date=2025-03-11&end_date=2025-03-10",
		"?success=maybe",
	} {
		resp := get(t, ts, "/api/history"+q)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestHistoryExport_CSV(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	resp := get(t, ts, "/api/history/export?start_date=2025-03-10&end_date=2025-03-10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "acknowledgments_2025-03-10_2025-03-10.csv")

	recs, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, csvHeader, recs[0])

	var failed []string
	for _, rec := range recs[1:] {
		if rec[6] == "false" {
			failed = rec
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "HTTP, TLS", failed[4])
	assert.Equal(t, "200.000", failed[7])
	assert.Equal(t, "HTTP 500", failed[8])
}

func TestRecentAcks_Limit(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	var rows []domain.AckOutcome
	decode(t, get(t, ts, "/api/acknowledgments/recent?limit=2"), &rows)
	require.Len(t, rows, 2)
	assert.Equal(t, "db02", rows[0].HostName)
	assert.Equal(t, "db01", rows[1].HostName)

	decode(t, get(t, ts, "/api/acknowledgments/recent?limit=1000"), &rows)
	assert.Len(t, rows, 4)

	assert.Equal(t, http.StatusBadRequest, get(t, ts, "/api/acknowledgments/recent?limit=abc").StatusCode)
	assert.Equal(t, http.StatusBadRequest, get(t, ts, "/api/acknowledgments/recent?limit=0").StatusCode)
}

func TestRecentRuns(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	var runs []domain.RunMetrics
	decode(t, get(t, ts, "/api/runs/recent"), &runs)
	require.Len(t, runs, 2)
	assert.Equal(t, "r1", runs[0].RunID)
	assert.Equal(t, runs[0].TotalAlerts, runs[0].SuccessfulAcks+runs[0].FailedAcks)
}

func TestAPIKeys(t *testing.T) {
	ts := newTestServer(t, RouterOptions{Keys: apimw.Keys{Public: []string{"pub"}, Admin: []string{"adm"}}})

	assert.Equal(t, http.StatusUnauthorized, get(t, ts, "/api/stats").StatusCode)
	assert.Equal(t, http.StatusOK, get(t, ts, "/api/stats", "X-API-Key", "pub").StatusCode)
	assert.Equal(t, http.StatusOK, get(t, ts, "/api/stats", "Authorization", "Bearer adm").StatusCode)

	assert.Equal(t, http.StatusForbidden, get(t, ts, "/metrics", "X-API-Key", "pub").StatusCode)
	assert.Equal(t, http.StatusOK, get(t, ts, "/metrics", "X-API-Key", "adm").StatusCode)
	assert.Equal(t, http.StatusOK, get(t, ts, "/healthz").StatusCode)
}

func TestRateLimitApplied(t *testing.T) {
	ts := newTestServer(t, RouterOptions{PublicRPM: 1, PublicBurst: 1})
	assert.Equal(t, http.StatusOK, get(t, ts, "/api/stats").StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, get(t, ts, "/api/stats").StatusCode)
	assert.Equal(t, http.StatusOK, get(t, ts, "/healthz").StatusCode)
}

func TestCORS_AllowedOrigins(t *testing.T) {
	ts := newTestServer(t, RouterOptions{AllowedOrigins: []string{"https://dash.example.com"}})

	resp := get(t, ts, "/api/stats", "Origin", "https://dash.example.com")
	assert.Equal(t, "https://dash.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = get(t, ts, "/api/stats", "Origin", "https://evil.example.com")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
