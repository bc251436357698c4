package recipient

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	defaultUpstream = "8.8.8.8:53"
	dnssecTimeout   = 10 * time.Second
	edns0BufSize    = 4096
)

// DNSSECResolver is a DNSResolver that only accepts answers the upstream
// recursive resolver has authenticated (AD flag set).
type DNSSECResolver struct {
	Upstream string
}

// NewDNSSECResolver creates a DNSSECResolver. An empty upstream means 8.8.8.8:53.
func NewDNSSECResolver(upstream string) *DNSSECResolver {
	if upstream == "" {
		upstream = defaultUpstream
	}
	return &DNSSECResolver{Upstream: upstream}
}

// LookupSRV queries SRV records with the DO bit set. NXDOMAIN is reported as
// a not-found *net.DNSError so callers can fall back to the bare domain.
func (r *DNSSECResolver) LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error) {
	qname := fmt.Sprintf("_%s._%s.%s", service, proto, name)

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(qname), dns.TypeSRV)
	msg.RecursionDesired = true
	msg.SetEdns0(edns0BufSize, true)

	client := &dns.Client{Timeout: dnssecTimeout}
	resp, _, err := client.ExchangeContext(ctx, msg, r.Upstream)
	if err != nil {
		return "", nil, fmt.Errorf("%w: query %s SRV: %w", ErrDNSLookupFailed, qname, err)
	}
	if resp.Rcode == dns.RcodeNameError {
		return "", nil, &net.DNSError{Err: "no such host", Name: qname, IsNotFound: true}
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", nil, fmt.Errorf("%w: query %s SRV: rcode %s",
			ErrDNSLookupFailed, qname, dns.RcodeToString[resp.Rcode])
	}
	if !resp.AuthenticatedData {
		return "", nil, fmt.Errorf("%w: AD flag not set for %s", ErrDNSSECValidationFailed, qname)
	}

	var srvs []*net.SRV
	for _, rr := range resp.Answer {
		if srv, ok := rr.(*dns.SRV); ok {
			srvs = append(srvs, &net.SRV{
				Target:   strings.TrimSuffix(srv.Target, "."),
				Port:     srv.Port,
				Priority: srv.Priority,
				Weight:   srv.Weight,
			})
		}
	}
	if len(srvs) == 0 {
		return "", nil, &net.DNSError{Err: "no SRV records", Name: qname, IsNotFound: true}
	}
	return "", srvs, nil
}
