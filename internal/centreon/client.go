// Package centreon talks to the monitoring backend's REST API: login,
// unhandled resource listing and service acknowledgment.
package centreon

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/alertack/internal/domain"
)

const tokenHeader = "X-AUTH-TOKEN"

// Options tune a Client. Zero values are usable.
type Options struct {
	Statuses    []domain.Status // statuses[] filter for FetchUnhandled
	InsecureTLS bool
	HTTPClient  *http.Client // overrides the default transport
	Logger      *zap.Logger
}

type Client struct {
	creds    domain.Credentials
	statuses []domain.Status
	http     *http.Client
	log      *zap.Logger
}

// ErrMissingCredentials is returned by New when login material is absent.
var ErrMissingCredentials = errors.New("centreon: base URL, login and password are required")

func New(creds domain.Credentials, opts Options) (*Client, error) {
	if creds.BaseURL == "" || creds.Login == "" || creds.Password == "" {
		return nil, ErrMissingCredentials
	}
	creds.BaseURL = strings.TrimRight(creds.BaseURL, "/")

	hc := opts.HTTPClient
	if hc == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureTLS {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed pollers
		}
		// Per-call deadlines come from the context; no client-wide timeout.
		hc = &http.Client{Transport: tr}
	}
	statuses := opts.Statuses
	if len(statuses) == 0 {
		statuses = []domain.Status{domain.StatusWarning, domain.StatusCritical}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{creds: creds, statuses: statuses, http: hc, log: log}, nil
}

// do sends one request and returns status, body and the elapsed time in ms.
func (c *Client) do(ctx context.Context, method, path string, token domain.AuthToken, query map[string][]string, payload any) (int, []byte, float64, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.creds.BaseURL+path, body)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(tokenHeader, string(token))
	}
	if len(query) > 0 {
		q := req.URL.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, msSince(start), err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	lat := msSince(start)
	if err != nil {
		return resp.StatusCode, nil, lat, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, b, lat, nil
}

func msSince(t time.Time) float64 { return time.Since(t).Seconds() * 1000 }

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// snippet trims a response body for error messages.
func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
