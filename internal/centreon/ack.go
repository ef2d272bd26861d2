package centreon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hamed0406/alertack/internal/domain"
)

type ackOptions struct {
	Comment             string `json:"comment"`
	IsNotifyContacts    bool   `json:"is_notify_contacts"`
	IsPersistentComment bool   `json:"is_persistent_comment"`
	IsSticky            bool   `json:"is_sticky"`
	WithServices        bool   `json:"with_services"`
}

type ackParent struct {
	ID int64 `json:"id"`
}

type ackResource struct {
	Type   string    `json:"type"`
	ID     int64     `json:"id"`
	Parent ackParent `json:"parent"`
}

type ackRequest struct {
	Acknowledgement ackOptions    `json:"acknowledgement"`
	Resources       []ackResource `json:"resources"`
}

// AckResult is the outcome of a single acknowledgment call.
type AckResult struct {
	Success   bool
	Error     string // human-readable; empty on success
	LatencyMS float64
	Err       *AcknowledgeError
}

func newAckRequest(a domain.Alert, comment string) ackRequest {
	return ackRequest{
		// Sticky + persistent + silent: acknowledging twice is a no-op on
		// the backend.
		Acknowledgement: ackOptions{
			Comment:             comment,
			IsNotifyContacts:    false,
			IsPersistentComment: true,
			IsSticky:            true,
			WithServices:        false,
		},
		Resources: []ackResource{{
			Type:   "service",
			ID:     a.ServiceID,
			Parent: ackParent{ID: a.HostID},
		}},
	}
}

// Acknowledge acknowledges one service alert. It never returns an error
// value: failures, including timeouts, are reported in the result so the
// caller can move on to the next alert.
func (c *Client) Acknowledge(ctx context.Context, token domain.AuthToken, a domain.Alert, comment string, timeout time.Duration) AckResult {
	if !a.HasIdentity() {
		e := &AcknowledgeError{Kind: AckOther, ServiceID: a.ServiceID, HostID: a.HostID, Err: errors.New("missing service or host id")}
		return AckResult{Error: "missing service or host id", Err: e}
	}

	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	status, raw, lat, err := c.do(ctx, http.MethodPost, "/monitoring/resources/acknowledge", token, nil, newAckRequest(a, comment))
	if err != nil {
		kind := AckNetwork
		if isTimeout(err) {
			kind = AckTimeout
		}
		e := &AcknowledgeError{Kind: kind, ServiceID: a.ServiceID, HostID: a.HostID, Err: err}
		return AckResult{Error: e.Error(), LatencyMS: lat, Err: e}
	}
	if status < 200 || status > 299 {
		e := &AcknowledgeError{Kind: AckOther, ServiceID: a.ServiceID, HostID: a.HostID, StatusCode: status,
			Err: fmt.Errorf("HTTP %d: %s", status, snippet(raw))}
		return AckResult{Error: e.Error(), LatencyMS: lat, Err: e}
	}
	return AckResult{Success: true, LatencyMS: lat}
}
