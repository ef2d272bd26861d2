package httpapi

import (
	"encoding/csv"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/alertack/internal/domain"
	"github.com/hamed0406/alertack/internal/repo"
)

const (
	defaultRecent = 10
	maxRecent     = 100
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"status": "ok"}
	if s.Runner != nil {
		out["run_state"] = s.Runner.State().String()
	}
	writeJSON(w, http.StatusOK, out)
}

type statsResponse struct {
	Last24h struct {
		Total       int64   `json:"total_acks"`
		Successful  int64   `json:"successful_acks"`
		Failed      int64   `json:"failed_acks"`
		SuccessRate float64 `json:"success_rate"`
	} `json:"last_24h"`
	AllTime struct {
		Total int64 `json:"total_acks"`
	} `json:"all_time"`
	Performance struct {
		AvgResponseTime float64 `json:"avg_response_time"`
	} `json:"performance"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Store.Stats(r.Context(), repo.Last(24*time.Hour, s.now()))
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	total, err := s.Store.TotalAcks(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	var out statsResponse
	out.Last24h.Total = st.Total
	out.Last24h.Successful = st.Successful
	out.Last24h.Failed = st.Failed
	out.Last24h.SuccessRate = st.SuccessRate
	out.AllTime.Total = total
	out.Performance.AvgResponseTime = math.Round(st.AvgLatencyMS*1000) / 1000
	writeJSON(w, http.StatusOK, out)
}

type dataset struct {
	Label           string  `json:"label"`
	Data            []int64 `json:"data"`
	BackgroundColor string  `json:"backgroundColor"`
	BorderColor     string  `json:"borderColor"`
	BorderWidth     int     `json:"borderWidth"`
}

type chartResponse struct {
	Labels   []string  `json:"labels"`
	Datasets []dataset `json:"datasets"`
}

// hourlyChart shapes buckets for a bar chart with one dataset per outcome.
func hourlyChart(b [24]repo.HourBucket) chartResponse {
	labels := make([]string, 24)
	ok := make([]int64, 24)
	ko := make([]int64, 24)
	for i, h := range b {
		labels[i] = fmt.Sprintf("%02d:00", i)
		ok[i] = h.Success
		ko[i] = h.Failure
	}
	return chartResponse{
		Labels: labels,
		Datasets: []dataset{
			{Label: "Successful acknowledgments", Data: ok, BackgroundColor: "rgba(40, 167, 69, 0.8)", BorderColor: "rgba(40, 167, 69, 1)", BorderWidth: 1},
			{Label: "Failed acknowledgments", Data: ko, BackgroundColor: "rgba(220, 53, 69, 0.8)", BorderColor: "rgba(220, 53, 69, 1)", BorderWidth: 1},
		},
	}
}

func (s *Server) handleHourly(w http.ResponseWriter, r *http.Request) {
	b, err := s.Store.HourlyBuckets(r.Context(), repo.Last(24*time.Hour, s.now()))
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hourlyChart(b))
}

// parseHistoryFilter reads start_date, end_date, status and success.
func parseHistoryFilter(r *http.Request, now time.Time) (repo.HistoryFilter, error) {
	q := r.URL.Query()
	return repo.NewHistoryFilter(q.Get("start_date"), q.Get("end_date"), q.Get("status"), q.Get("success"), now)
}

type historyResponse struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	repo.HistoryPage
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	f, err := parseHistoryFilter(r, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.Store.History(r.Context(), f)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if page.Rows == nil {
		page.Rows = []domain.AckOutcome{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		StartDate:   f.StartDate.Format("2006-01-02"),
		EndDate:     f.EndDate.Format("2006-01-02"),
		HistoryPage: page,
	})
}

var csvHeader = []string{
	"id", "run_id", "acknowledged_at", "host_name", "service_name",
	"status", "success", "response_time_ms", "error_message",
}

func csvRecord(o *domain.AckOutcome) []string {
	lat := ""
	if o.LatencyMS != nil {
		lat = strconv.FormatFloat(*o.LatencyMS, 'f', 3, 64)
	}
	return []string{
		strconv.FormatInt(o.ID, 10),
		o.RunID,
		o.AcknowledgedAt.UTC().Format(time.RFC3339),
		o.HostName,
		o.ServiceName,
		string(o.Status),
		strconv.FormatBool(o.Success),
		lat,
		o.ErrorMessage,
	}
}

func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	f, err := parseHistoryFilter(r, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.Store.History(r.Context(), f)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	name := fmt.Sprintf("acknowledgments_%s_%s.csv",
		f.StartDate.Format("2006-01-02"), f.EndDate.Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)

	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	for i := range page.Rows {
		_ = cw.Write(csvRecord(&page.Rows[i]))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.Logger.Warn("csv_export_failed", zap.Error(err)) // headers already sent
	}
}

// parseLimit reads ?limit=, defaulting to defaultRecent and capping at maxRecent.
func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultRecent, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	return min(n, maxRecent), nil
}

func (s *Server) handleRecentAcks(w http.ResponseWriter, r *http.Request) {
	n, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.Store.Recent(r.Context(), n)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if rows == nil {
		rows = []domain.AckOutcome{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleRecentRuns(w http.ResponseWriter, r *http.Request) {
	n, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.Store.RecentRuns(r.Context(), n)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if runs == nil {
		runs = []domain.RunMetrics{}
	}
	writeJSON(w, http.StatusOK, runs)
}
