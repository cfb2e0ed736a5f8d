package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// DNS classes reported by DNSDiagnoser.
const (
	DNSResolves      = "RESOLVES"
	DNSNXDomain      = "NXDOMAIN"
	DNSNoAddress     = "NO_A_RECORD"
	DNSServfail      = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName   = "INVALID_NAME"
	defaultDNSBudget = 3 * time.Second
)

// Resolver is the subset of *net.Resolver the diagnoser needs.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

// DNSDiagnoser explains failed HTTP checks by classifying the target host's
// DNS state. It succeeds only when the host resolves.
type DNSDiagnoser struct {
	Resolver Resolver
	Timeout  time.Duration
}

func NewDNSDiagnoser() *DNSDiagnoser {
	return &DNSDiagnoser{Resolver: net.DefaultResolver, Timeout: defaultDNSBudget}
}

func (d *DNSDiagnoser) Check(ctx context.Context, target string) CheckResult {
	class := d.Classify(ctx, hostOf(target))
	return CheckResult{Name: "DNS", Success: class == DNSResolves, Message: class}
}

// Classify gives up after d.Timeout or when ctx ends, whichever comes first.
func (d *DNSDiagnoser) Classify(ctx context.Context, host string) string {
	host = strings.TrimSpace(host)
	if host == "" || strings.Contains(host, "://") || strings.ContainsAny(host, " /") {
		return DNSInvalidName
	}
	if net.ParseIP(host) != nil {
		return DNSResolves
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultDNSBudget
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ips, err := d.Resolver.LookupIP(ctx, "ip", host)
	if err == nil && len(ips) > 0 {
		return DNSResolves
	}
	var de *net.DNSError
	if err != nil && (!errors.As(err, &de) || !de.IsNotFound) {
		return DNSServfail
	}

	// the name has no addresses; a delegated zone means the record is missing
	if ns, err := d.Resolver.LookupNS(ctx, host); err == nil && len(ns) > 0 {
		return DNSNoAddress
	}
	return DNSNXDomain
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
