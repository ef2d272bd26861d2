package centreon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/alertack/internal/domain"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(domain.Credentials{Login: "svc", Password: "pw", BaseURL: url + "/"}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(domain.Credentials{BaseURL: "http://x"}, Options{})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("want ErrMissingCredentials, got %v", err)
	}
}

func TestAuthenticate_OK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/login" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body loginRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Security.Credentials.Login != "svc" || body.Security.Credentials.Password != "pw" {
			t.Errorf("credentials not sent: %+v", body)
		}
		_, _ = w.Write([]byte(`{"contact":{"id":1},"security":{"token":"tok-123"}}`))
	}))
	defer s.Close()

	tok, err := newTestClient(t, s.URL).Authenticate(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if tok != "tok-123" {
		t.Fatalf("token: %q", tok)
	}
}

func TestAuthenticate_ClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   AuthErrorKind
	}{
		{"bad credentials", http.StatusUnauthorized, `{"code":401}`, AuthInvalidCredentials},
		{"forbidden", http.StatusForbidden, `{"code":403}`, AuthForbidden},
		{"server error", http.StatusInternalServerError, `boom`, AuthUnknown},
		{"no token", http.StatusOK, `{"security":{}}`, AuthUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer s.Close()

			_, err := newTestClient(t, s.URL).Authenticate(context.Background(), time.Second)
			var ae *AuthError
			if !errors.As(err, &ae) {
				t.Fatalf("want *AuthError, got %v", err)
			}
			if ae.Kind != tc.want {
				t.Fatalf("kind=%s want %s", ae.Kind, tc.want)
			}
		})
	}
}

func TestAuthenticate_TimeoutAndNetwork(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()

	_, err := newTestClient(t, slow.URL).Authenticate(context.Background(), 30*time.Millisecond)
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Kind != AuthTimeout {
		t.Fatalf("want timeout, got %v", err)
	}

	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()
	_, err = newTestClient(t, url).Authenticate(context.Background(), time.Second)
	if !errors.As(err, &ae) || ae.Kind != AuthNetwork {
		t.Fatalf("want network error, got %v", err)
	}
}

const resourcesJSON = `{
  "result": [
    {"id": 11, "service_id": 11, "host_id": 5, "name": "Disk /var", "information": "CRITICAL - 97% used",
     "parent": {"id": 5, "name": "db01"}, "status": {"code": 2, "name": "CRITICAL"}},
    {"id": 12, "name": "Load", "information": "WARNING - load 9",
     "parent": {"id": 6, "name": "web01"}, "status": {"code": 1, "name": "WARNING"}},
    {"name": "orphan"}
  ],
  "meta": {"page": 1, "limit": 100, "total": 3}
}`

func TestFetchUnhandled_SinglePageWithFilters(t *testing.T) {
	var calls int
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("X-AUTH-TOKEN") != "tok" {
			t.Errorf("token header missing")
		}
		q := r.URL.Query()
		if q.Get("page") != "1" || q.Get("limit") != "50" {
			t.Errorf("paging: %v", q)
		}
		if q.Get("states[]") != "unhandled_problems" || q.Get("types[]") != "service" {
			t.Errorf("filters: %v", q)
		}
		if got := q["statuses[]"]; len(got) != 2 || got[0] != "WARNING" || got[1] != "CRITICAL" {
			t.Errorf("statuses: %v", got)
		}
		_, _ = w.Write([]byte(resourcesJSON))
	}))
	defer s.Close()

	alerts, err := newTestClient(t, s.URL).FetchUnhandled(context.Background(), "tok", 50, time.Second)
	if err != nil {
		t.Fatalf("FetchUnhandled: %v", err)
	}
	if calls != 1 {
		t.Fatalf("want exactly one request, got %d", calls)
	}
	if len(alerts) != 3 {
		t.Fatalf("want 3 alerts, got %d", len(alerts))
	}
	a := alerts[0]
	if a.ServiceID != 11 || a.HostID != 5 || a.HostName != "db01" || a.Status != domain.StatusCritical {
		t.Fatalf("first alert: %+v", a)
	}
	if !strings.Contains(string(a.Raw), `"Disk /var"`) {
		t.Fatalf("raw resource not kept")
	}
	// id/parent.id fallback
	if alerts[1].ServiceID != 12 || alerts[1].HostID != 6 {
		t.Fatalf("fallback ids: %+v", alerts[1])
	}
	if alerts[2].HasIdentity() || alerts[2].HostName != UnknownName || !alerts[2].HostMissing || alerts[2].Status != domain.StatusUnknown {
		t.Fatalf("orphan: %+v", alerts[2])
	}
	if alerts[0].HostMissing || alerts[1].HostMissing {
		t.Fatalf("named hosts flagged missing")
	}
}

func TestFetchUnhandled_EmptyAndUnauthorized(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[],"meta":{"total":0}}`))
	}))
	defer empty.Close()

	alerts, err := newTestClient(t, empty.URL).FetchUnhandled(context.Background(), "tok", 10, time.Second)
	if err != nil || len(alerts) != 0 {
		t.Fatalf("empty result should be ok: %v %v", alerts, err)
	}

	stale := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer stale.Close()

	_, err = newTestClient(t, stale.URL).FetchUnhandled(context.Background(), "old", 10, time.Second)
	if !IsUnauthorized(err) {
		t.Fatalf("want unauthorized, got %v", err)
	}
}

func TestAcknowledge_SendsStickySilentBody(t *testing.T) {
	var got map[string]any
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/monitoring/resources/acknowledge" {
			t.Errorf("path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer s.Close()

	c := newTestClient(t, s.URL)
	alert := domain.Alert{ServiceID: 11, HostID: 5, ServiceName: "Disk", HostName: "db01"}
	res := c.Acknowledge(context.Background(), "tok", alert, "Auto ACK", time.Second)
	if !res.Success || res.Error != "" {
		t.Fatalf("want success, got %+v", res)
	}
	if res.LatencyMS < 0 {
		t.Fatalf("latency should be >= 0, got %f", res.LatencyMS)
	}

	ack := got["acknowledgement"].(map[string]any)
	if ack["is_sticky"] != true || ack["is_persistent_comment"] != true ||
		ack["is_notify_contacts"] != false || ack["with_services"] != false || ack["comment"] != "Auto ACK" {
		t.Fatalf("ack options: %v", ack)
	}
	resources := got["resources"].([]any)
	r0 := resources[0].(map[string]any)
	if r0["type"] != "service" || r0["id"].(float64) != 11 || r0["parent"].(map[string]any)["id"].(float64) != 5 {
		t.Fatalf("resource: %v", r0)
	}

	// Acknowledging again is accepted by the backend and reported the same way.
	if again := c.Acknowledge(context.Background(), "tok", alert, "Auto ACK", time.Second); !again.Success {
		t.Fatalf("re-ack should succeed: %+v", again)
	}
}

func TestAcknowledge_Failures(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()

	alert := domain.Alert{ServiceID: 42, HostID: 5}
	res := newTestClient(t, slow.URL).Acknowledge(context.Background(), "tok", alert, "c", 30*time.Millisecond)
	if res.Success || res.Error != "acknowledgment timeout for service 42" {
		t.Fatalf("want timeout message, got %+v", res)
	}
	if res.Err == nil || res.Err.Kind != AckTimeout {
		t.Fatalf("kind: %+v", res.Err)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "resource not found", http.StatusNotFound)
	}))
	defer broken.Close()
	res = newTestClient(t, broken.URL).Acknowledge(context.Background(), "tok", alert, "c", time.Second)
	if res.Success || res.Err.Kind != AckOther || res.Err.StatusCode != 404 {
		t.Fatalf("want HTTP failure, got %+v", res)
	}

	res = newTestClient(t, broken.URL).Acknowledge(context.Background(), "tok", domain.Alert{HostID: 5}, "c", time.Second)
	if res.Success || res.Error != "missing service or host id" {
		t.Fatalf("want missing id, got %+v", res)
	}
}

func TestEncodeAlert_DecodesBack(t *testing.T) {
	in := domain.Alert{ServiceID: 11, HostID: 7, ServiceName: "Disk /", HostName: "db01", Status: domain.StatusDown, Information: "x"}
	raw, err := EncodeAlert(in)
	if err != nil {
		t.Fatalf("EncodeAlert: %v", err)
	}
	out, err := DecodeAlert(raw)
	if err != nil {
		t.Fatalf("DecodeAlert: %v", err)
	}
	out.Raw = nil
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestDecodeAlert_HostNamedUnknownIsNotMissing(t *testing.T) {
	named, err := DecodeAlert(json.RawMessage(`{"id":3,"name":"Ping","parent":{"id":9,"name":"Unknown"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if named.HostName != "Unknown" || named.HostMissing {
		t.Fatalf("real host flagged missing: %+v", named)
	}

	orphan, err := DecodeAlert(json.RawMessage(`{"id":3,"name":"Ping","parent":{"id":9}}`))
	if err != nil {
		t.Fatal(err)
	}
	if !orphan.HostMissing {
		t.Fatalf("missing host not flagged: %+v", orphan)
	}
	raw, err := EncodeAlert(orphan)
	if err != nil {
		t.Fatal(err)
	}
	back, err := DecodeAlert(raw)
	if err != nil || !back.HostMissing {
		t.Fatalf("missing host lost in round trip: %+v %v", back, err)
	}
}
