package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTTL is how long a client's limiter survives without requests.
const idleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterSet struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	sweptAt  time.Time
}

func (s *limiterSet) allow(ip string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.sweptAt) > idleTTL {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) > idleTTL {
				delete(s.visitors, k)
			}
		}
		s.sweptAt = now
	}

	v, ok := s.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Proxies is the set of reverse proxies whose X-Forwarded-For is believed.
type Proxies []*net.IPNet

// ParseProxies accepts bare IPs and CIDR ranges.
func ParseProxies(list []string) (Proxies, error) {
	var out Proxies
	for _, s := range list {
		if !strings.Contains(s, "/") {
			ip := net.ParseIP(s)
			if ip == nil {
				return nil, fmt.Errorf("trusted proxy %q is not an IP or CIDR", s)
			}
			bits := 8 * net.IPv6len
			if ip4 := ip.To4(); ip4 != nil {
				ip, bits = ip4, 8*net.IPv4len
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (p Proxies) contains(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	for _, n := range p {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// RateLimit allows reqPerMin requests per minute per client IP with the
// given burst. A non-positive reqPerMin disables limiting. The client IP
// comes from X-Forwarded-For only when the peer is one of trusted.
func RateLimit(reqPerMin, burst int, trusted Proxies) func(http.Handler) http.Handler {
	if burst <= 0 {
		burst = 1
	}
	set := &limiterSet{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(reqPerMin) / 60),
		burst:    burst,
		sweptAt:  time.Now(),
	}
	return func(next http.Handler) http.Handler {
		if reqPerMin <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !set.allow(clientIP(r, trusted), time.Now()) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the peer address, or, when the peer is a trusted proxy,
// the rightmost X-Forwarded-For hop that is not itself trusted.
func clientIP(r *http.Request, trusted Proxies) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	xff := r.Header.Values("X-Forwarded-For")
	if len(xff) == 0 || !trusted.contains(peer) {
		return peer
	}
	hops := strings.Split(strings.Join(xff, ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !trusted.contains(hop) {
			return hop
		}
	}
	return peer
}
