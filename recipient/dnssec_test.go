package recipient

import (
	"context"
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDNSSECResolver_ImplementsDNSResolver(t *testing.T) {
	var _ DNSResolver = (*DNSSECResolver)(nil)
}

func TestNewDNSSECResolver_Defaults(t *testing.T) {
	assert.Equal(t, "8.8.8.8:53", NewDNSSECResolver("").Upstream)
	assert.Equal(t, "1.1.1.1:53", NewDNSSECResolver("1.1.1.1:53").Upstream)
}

// startDNS runs a local UDP server answering with handler.
func startDNS(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func srvAnswer(ad bool) dns.HandlerFunc {
	return func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		m.AuthenticatedData = ad
		q := req.Question[0]
		if q.Name != "_bsvalias._tcp.example.com." {
			m.Rcode = dns.RcodeNameError
			_ = w.WriteMsg(m)
			return
		}
		m.Answer = append(m.Answer, &dns.SRV{
			Hdr:      dns.RR_Header{Name: q.Name, Rrtype: dns.TypeSRV, Class: dns.ClassINET, Ttl: 60},
			Priority: 10,
			Weight:   5,
			Port:     443,
			Target:   "pay.example.com.",
		})
		_ = w.WriteMsg(m)
	}
}

func TestDNSSECResolver_LookupSRV(t *testing.T) {
	r := NewDNSSECResolver(startDNS(t, srvAnswer(true)))

	_, srvs, err := r.LookupSRV(context.Background(), "bsvalias", "tcp", "example.com")
	require.NoError(t, err)
	require.Len(t, srvs, 1)
	assert.Equal(t, "pay.example.com", srvs[0].Target)
	assert.Equal(t, uint16(443), srvs[0].Port)

	host, err := paymailHost(context.Background(), r, "example.com")
	require.NoError(t, err)
	assert.Equal(t, "pay.example.com:443", host)
}

func TestDNSSECResolver_NotAuthenticated(t *testing.T) {
	r := NewDNSSECResolver(startDNS(t, srvAnswer(false)))
	_, _, err := r.LookupSRV(context.Background(), "bsvalias", "tcp", "example.com")
	assert.ErrorIs(t, err, ErrDNSSECValidationFailed)
}

func TestDNSSECResolver_NXDomainFallsBack(t *testing.T) {
	r := NewDNSSECResolver(startDNS(t, srvAnswer(true)))
	host, err := paymailHost(context.Background(), r, "other.org")
	require.NoError(t, err)
	assert.Equal(t, "other.org:443", host)
}
