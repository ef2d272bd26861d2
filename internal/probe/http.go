package probe

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"
)

// HTTPChecker treats any response below 500 as reachable: the API root
// commonly answers 401 or 404 to anonymous requests.
type HTTPChecker struct {
	Client *http.Client
}

func NewHTTPChecker(timeout time.Duration, insecureTLS bool) *HTTPChecker {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if insecureTLS {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed pollers
	}
	return &HTTPChecker{Client: &http.Client{Timeout: timeout, Transport: tr}}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	code, status, err := h.do(ctx, http.MethodHead, target)
	if err == nil && code == http.StatusMethodNotAllowed {
		code, status, err = h.do(ctx, http.MethodGet, target)
	}
	latency := time.Since(start).Seconds() * 1000
	if err != nil {
		return CheckResult{Message: err.Error(), LatencyMS: latency}
	}
	return CheckResult{
		Success:    code < 500,
		StatusCode: code,
		Message:    status,
		LatencyMS:  latency,
	}
}

func (h *HTTPChecker) do(ctx context.Context, method, target string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return 0, "", err
	}
	resp.Body.Close()
	return resp.StatusCode, resp.Status, nil
}
