package centreon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/alertack/internal/domain"
)

// resource is the subset of a /monitoring/resources entry we use. Newer
// API versions expose service_id/host_id; older ones only id/parent.id.
type resource struct {
	ID          int64  `json:"id"`
	ServiceID   int64  `json:"service_id"`
	HostID      int64  `json:"host_id"`
	Name        string `json:"name"`
	Information string `json:"information"`
	Parent      *struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"parent"`
	Status *struct {
		Name string `json:"name"`
	} `json:"status"`
}

type resourcesResponse struct {
	Result []json.RawMessage `json:"result"`
}

// UnknownName is shown in place of a missing service or host name.
const UnknownName = "Unknown"

// DecodeAlert converts one raw resource into an Alert. Missing names fall
// back to UnknownName and a missing status to UNKNOWN. A missing host also
// sets HostMissing, so a host really named "Unknown" stays distinguishable.
func DecodeAlert(raw json.RawMessage) (domain.Alert, error) {
	var r resource
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.Alert{}, err
	}
	a := domain.Alert{
		ServiceID:   r.ServiceID,
		HostID:      r.HostID,
		ServiceName: r.Name,
		Information: r.Information,
		Status:      domain.StatusUnknown,
		Raw:         raw,
	}
	if a.ServiceID == 0 {
		a.ServiceID = r.ID
	}
	if r.Parent != nil {
		if a.HostID == 0 {
			a.HostID = r.Parent.ID
		}
		a.HostName = r.Parent.Name
	}
	if r.Status != nil && r.Status.Name != "" {
		a.Status = domain.Status(r.Status.Name)
	}
	if a.ServiceName == "" {
		a.ServiceName = UnknownName
	}
	if a.HostName == "" {
		a.HostName = UnknownName
		a.HostMissing = true
	}
	return a, nil
}

// EncodeAlert is the inverse of DecodeAlert for alerts that carry no raw
// resource, producing the same shape the API returns.
func EncodeAlert(a domain.Alert) (json.RawMessage, error) {
	type named struct {
		ID   int64  `json:"id,omitempty"`
		Name string `json:"name"`
	}
	host := a.HostName
	if a.HostMissing {
		host = ""
	}
	return json.Marshal(struct {
		ID          int64  `json:"id"`
		ServiceID   int64  `json:"service_id"`
		HostID      int64  `json:"host_id"`
		Name        string `json:"name"`
		Information string `json:"information"`
		Parent      named  `json:"parent"`
		Status      named  `json:"status"`
	}{
		ID:          a.ServiceID,
		ServiceID:   a.ServiceID,
		HostID:      a.HostID,
		Name:        a.ServiceName,
		Information: a.Information,
		Parent:      named{ID: a.HostID, Name: host},
		Status:      named{Name: string(a.Status)},
	})
}

// FetchUnhandled returns the first page (at most limit entries) of
// unhandled service problems. It does not paginate: alerts beyond limit
// are picked up by a later run once earlier ones are acknowledged.
func (c *Client) FetchUnhandled(ctx context.Context, token domain.AuthToken, limit int, timeout time.Duration) ([]domain.Alert, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	statuses := make([]string, 0, len(c.statuses))
	for _, s := range c.statuses {
		statuses = append(statuses, string(s))
	}
	q := map[string][]string{
		"page":       {"1"},
		"limit":      {strconv.Itoa(limit)},
		"states[]":   {"unhandled_problems"},
		"types[]":    {"service"},
		"statuses[]": statuses,
	}

	status, raw, lat, err := c.do(ctx, http.MethodGet, "/monitoring/resources", token, q, nil)
	if err != nil {
		kind := FetchNetwork
		if isTimeout(err) {
			kind = FetchTimeout
		}
		return nil, &FetchError{Kind: kind, Err: err}
	}
	switch {
	case status == http.StatusUnauthorized:
		return nil, &FetchError{Kind: FetchUnauthorized, StatusCode: status}
	case status < 200 || status > 299:
		return nil, &FetchError{Kind: FetchUnknown, StatusCode: status,
			Err: fmt.Errorf("HTTP %d: %s", status, snippet(raw))}
	}

	var rr resourcesResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return nil, &FetchError{Kind: FetchUnknown, StatusCode: status, Err: fmt.Errorf("decode resources: %w", err)}
	}

	alerts := make([]domain.Alert, 0, len(rr.Result))
	for i, item := range rr.Result {
		a, err := DecodeAlert(item)
		if err != nil {
			// Keep the slot so it is counted and recorded as a failed ack.
			c.log.Warn("centreon_resource_decode_error", zap.Int("index", i), zap.Error(err))
			a = domain.Alert{ServiceName: UnknownName, HostName: UnknownName, HostMissing: true, Status: domain.StatusUnknown, Raw: item}
		}
		alerts = append(alerts, a)
	}

	c.log.Info("centreon_alerts_fetched",
		zap.Int("count", len(alerts)),
		zap.Int("limit", limit),
		zap.Float64("latency_ms", lat),
	)
	if len(alerts) >= limit {
		c.log.Warn("centreon_alert_limit_reached",
			zap.Int("limit", limit),
			zap.String("note", "only the first page is processed this run"),
		)
	}
	return alerts, nil
}
