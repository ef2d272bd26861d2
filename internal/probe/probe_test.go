package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeChecker struct {
	results []CheckResult
	i       int
}

func (f *fakeChecker) Check(ctx context.Context, target string) CheckResult {
	if f.i >= len(f.results) {
		return CheckResult{Success: false, Message: "no more"}
	}
	r := f.results[f.i]
	f.i++
	return r
}

func TestRetryChecker_SucceedsAfterRetry(t *testing.T) {
	f := &fakeChecker{results: []CheckResult{
		{Success: false, Message: "first fail"},
		{Success: true, Message: "ok"},
	}}
	rc := &RetryChecker{Inner: f, Attempts: 3, Backoff: 10 * time.Millisecond}
	out := rc.Check(context.Background(), "https://centreon.local")
	if !out.Success || out.Message != "ok" {
		t.Fatalf("expected success after retry, got %+v", out)
	}
	if f.i != 2 {
		t.Fatalf("want 2 attempts, got %d", f.i)
	}
}

func TestRetryChecker_AllFailAnnotates(t *testing.T) {
	f := &fakeChecker{results: []CheckResult{
		{Success: false, Message: "fail1"},
		{Success: false, Message: "fail2"},
	}}
	rc := &RetryChecker{Inner: f, Attempts: 2}
	out := rc.Check(context.Background(), "https://centreon.local")
	if out.Success || out.Message != "fail2 (after retries)" {
		t.Fatalf("got %+v", out)
	}
}

func TestRetryChecker_StopsOnCancel(t *testing.T) {
	f := &fakeChecker{results: []CheckResult{{Message: "down"}, {Success: true}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rc := &RetryChecker{Inner: f, Attempts: 5, Backoff: time.Hour}
	out := rc.Check(ctx, "x")
	if out.Success || f.i != 1 {
		t.Fatalf("want one attempt then stop, got %+v after %d", out, f.i)
	}
}

func TestHTTPChecker(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		success bool
		code    int
	}{
		{"ok", func(w http.ResponseWriter, r *http.Request) {}, true, 200},
		{"unauthorized still reachable", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}, true, 401},
		{"head not allowed falls back to get", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
		}, true, 200},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}, false, 503},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ts := httptest.NewServer(c.handler)
			defer ts.Close()
			out := NewHTTPChecker(2*time.Second, false).Check(context.Background(), ts.URL)
			if out.Success != c.success || out.StatusCode != c.code {
				t.Fatalf("got %+v", out)
			}
		})
	}
}

func TestHTTPChecker_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close()
	out := NewHTTPChecker(time.Second, false).Check(context.Background(), url)
	if out.Success || out.StatusCode != 0 || out.Message == "" {
		t.Fatalf("got %+v", out)
	}
}

type fakeResolver struct {
	ips   []net.IP
	ipErr error
	ns    []*net.NS
}

func (f fakeResolver) LookupIP(context.Context, string, string) ([]net.IP, error) {
	return f.ips, f.ipErr
}
func (f fakeResolver) LookupCNAME(_ context.Context, host string) (string, error) {
	return host + ".", nil
}
func (f fakeResolver) LookupNS(context.Context, string) ([]*net.NS, error) {
	if len(f.ns) == 0 {
		return nil, errors.New("no ns")
	}
	return f.ns, nil
}

func TestCheckDNS(t *testing.T) {
	nx := &net.DNSError{Err: "no such host", Name: "x", IsNotFound: true}
	tmp := &net.DNSError{Err: "server misbehaving", Name: "x", IsTemporary: true}
	cases := []struct {
		name string
		host string
		r    fakeResolver
		want DNSClass
	}{
		{"resolves", "centreon.local", fakeResolver{ips: []net.IP{net.IPv4(10, 0, 0, 1)}}, DNSResolves},
		{"nxdomain", "nope.local", fakeResolver{ipErr: nx}, DNSNXDomain},
		{"zone without address", "zone.local", fakeResolver{ipErr: nx, ns: []*net.NS{{Host: "ns1.local."}}}, DNSNoAddress},
		{"resolver trouble", "flaky.local", fakeResolver{ipErr: tmp}, DNSUnavailable},
		{"ip literal", "192.0.2.10", fakeResolver{}, DNSIPLiteral},
		{"invalid", "https://x", fakeResolver{}, DNSInvalid},
		{"empty", " ", fakeResolver{}, DNSInvalid},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CheckDNS(context.Background(), c.r, c.host)
			if got.Class != c.want {
				t.Fatalf("class = %s, want %s (%+v)", got.Class, c.want, got)
			}
		})
	}
}

func TestDiagnose(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	d := &Diagnoser{Checker: NewHTTPChecker(time.Second, false), Resolver: fakeResolver{}}

	rep := d.Diagnose(context.Background(), up.URL+"/centreon/api/latest")
	if !rep.Reachable() || rep.DNS != nil {
		t.Fatalf("reachable api: %+v", rep)
	}

	rep = d.Diagnose(context.Background(), down.URL)
	if rep.Reachable() || rep.DNS == nil || rep.DNS.Class != DNSIPLiteral {
		t.Fatalf("failing api: %+v", rep)
	}
}
