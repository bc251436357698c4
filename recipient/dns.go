package recipient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
)

// DNSResolver looks up SRV records. Tests substitute their own.
type DNSResolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// DefaultDNSResolver uses the system resolver.
var DefaultDNSResolver DNSResolver = net.DefaultResolver

// srvPaymail is the service name of paymail host records: _bsvalias._tcp.{domain}.
const srvPaymail = "bsvalias"

// paymailHost returns the host:port serving paymail for domain, preferring
// the lowest priority and then the highest weight. Without an SRV record the
// domain itself on port 443 is used.
func paymailHost(ctx context.Context, resolver DNSResolver, domain string) (string, error) {
	_, addrs, err := resolver.LookupSRV(ctx, srvPaymail, "tcp", domain)
	if err != nil || len(addrs) == 0 {
		var dnsErr *net.DNSError
		if err == nil || (errors.As(err, &dnsErr) && dnsErr.IsNotFound) {
			return domain + ":443", nil
		}
		return "", fmt.Errorf("%w: SRV lookup for _%s._tcp.%s: %w", ErrDNSLookupFailed, srvPaymail, domain, err)
	}

	sort.SliceStable(addrs, func(i, j int) bool {
		if addrs[i].Priority != addrs[j].Priority {
			return addrs[i].Priority < addrs[j].Priority
		}
		return addrs[i].Weight > addrs[j].Weight
	})
	host := strings.TrimSuffix(addrs[0].Target, ".")
	return fmt.Sprintf("%s:%d", host, addrs[0].Port), nil
}
