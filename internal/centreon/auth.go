package centreon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/alertack/internal/domain"
)

type loginRequest struct {
	Security struct {
		Credentials struct {
			Login    string `json:"login"`
			Password string `json:"password"`
		} `json:"credentials"`
	} `json:"security"`
}

type loginResponse struct {
	Security struct {
		Token string `json:"token"`
	} `json:"security"`
}

// Authenticate obtains a session token. It never retries; a failure is an
// *AuthError whose Kind separates 401, 403, timeouts and transport errors.
func (c *Client) Authenticate(ctx context.Context, timeout time.Duration) (domain.AuthToken, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	var body loginRequest
	body.Security.Credentials.Login = c.creds.Login
	body.Security.Credentials.Password = c.creds.Password

	c.log.Info("centreon_login", zap.String("url", c.creds.BaseURL))
	status, raw, lat, err := c.do(ctx, http.MethodPost, "/login", "", nil, body)
	if err != nil {
		kind := AuthNetwork
		if isTimeout(err) {
			kind = AuthTimeout
		}
		return "", &AuthError{Kind: kind, Err: err}
	}

	switch {
	case status == http.StatusUnauthorized:
		return "", &AuthError{Kind: AuthInvalidCredentials, StatusCode: status}
	case status == http.StatusForbidden:
		return "", &AuthError{Kind: AuthForbidden, StatusCode: status}
	case status < 200 || status > 299:
		return "", &AuthError{Kind: AuthUnknown, StatusCode: status,
			Err: fmt.Errorf("HTTP %d: %s", status, snippet(raw))}
	}

	var lr loginResponse
	if err := json.Unmarshal(raw, &lr); err != nil {
		return "", &AuthError{Kind: AuthUnknown, StatusCode: status, Err: fmt.Errorf("decode login response: %w", err)}
	}
	if lr.Security.Token == "" {
		return "", &AuthError{Kind: AuthUnknown, StatusCode: status, Err: errors.New("login response has no token")}
	}

	c.log.Info("centreon_login_ok", zap.Float64("latency_ms", lat))
	return domain.AuthToken(lr.Security.Token), nil
}
