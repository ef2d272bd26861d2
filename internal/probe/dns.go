package probe

import (
	"context"
	"errors"
	"net"
	"strings"
)

// DNSClass summarises why a name does or does not resolve.
type DNSClass string

const (
	DNSResolves    DNSClass = "RESOLVES"
	DNSNoAddress   DNSClass = "NO_A_RECORD"
	DNSNXDomain    DNSClass = "NXDOMAIN"
	DNSUnavailable DNSClass = "SERVFAIL_or_TIMEOUT"
	DNSInvalid     DNSClass = "INVALID_NAME"
	DNSIPLiteral   DNSClass = "IP_LITERAL"
)

type DNSStatus struct {
	Host          string
	Class         DNSClass
	IPs           []net.IP
	CNAME         string
	Nameservers   []string
	ResolverError string
}

// Resolver is the subset of *net.Resolver used here.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

// CheckDNS classifies host using r (net.DefaultResolver when nil).
func CheckDNS(ctx context.Context, r Resolver, host string) DNSStatus {
	s := DNSStatus{Host: strings.TrimSpace(host)}
	switch {
	case s.Host == "" || strings.Contains(s.Host, "://"):
		s.Class = DNSInvalid
		return s
	case net.ParseIP(s.Host) != nil:
		s.Class = DNSIPLiteral
		s.IPs = []net.IP{net.ParseIP(s.Host)}
		return s
	}
	if r == nil {
		r = net.DefaultResolver
	}

	ips, err := r.LookupIP(ctx, "ip", s.Host)
	if err == nil && len(ips) > 0 {
		s.IPs = ips
		s.Class = DNSResolves
	} else if err != nil {
		s.ResolverError = err.Error()
		var de *net.DNSError
		if errors.As(err, &de) {
			switch {
			case de.IsNotFound:
				s.Class = DNSNXDomain
			case de.IsTemporary || de.Timeout():
				s.Class = DNSUnavailable
			}
		}
	}

	if cname, err := r.LookupCNAME(ctx, s.Host); err == nil && !strings.EqualFold(cname, s.Host+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}
	if ns, err := r.LookupNS(ctx, s.Host); err == nil && len(ns) > 0 {
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
		if s.Class == DNSNXDomain {
			s.Class = DNSNoAddress
		}
	}

	if s.Class == "" {
		switch {
		case len(s.Nameservers) > 0:
			s.Class = DNSNoAddress
		case s.ResolverError != "":
			s.Class = DNSUnavailable
		default:
			s.Class = DNSNXDomain
		}
	}
	return s
}
