package recipient

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDNS struct {
	srvs map[string][]*net.SRV
	err  error
}

func (f *fakeDNS) LookupSRV(_ context.Context, service, proto, name string) (string, []*net.SRV, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	recs, ok := f.srvs["_"+service+"._"+proto+"."+name]
	if !ok {
		return "", nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return "", recs, nil
}

// fakeHTTP serves canned bodies keyed by URL.
type fakeHTTP struct {
	bodies   map[string]string
	requests []string
}

func (f *fakeHTTP) Do(req *http.Request) (*http.Response, error) {
	url := req.URL.String()
	f.requests = append(f.requests, url)
	body, ok := f.bodies[url]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body))}, nil
}

func newKey(t *testing.T) *ec.PrivateKey {
	t.Helper()
	k, err := ec.NewPrivateKey()
	require.NoError(t, err)
	return k
}

func TestParseHandle(t *testing.T) {
	tests := []struct {
		in      string
		want    Handle
		wantErr bool
	}{
		{in: "alice@example.com", want: Handle{"alice", "example.com"}},
		{in: "a.b+c@Sub.Example.ORG", want: Handle{"a.b+c", "sub.example.org"}},
		{in: "alice", wantErr: true},
		{in: "@example.com", wantErr: true},
		{in: "alice@", wantErr: true},
		{in: "al ice@example.com", wantErr: true},
		{in: "alice@localhost", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHandle(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidHandle)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	addr, err := script.NewAddressFromPublicKey(newKey(t).PubKey(), true)
	require.NoError(t, err)

	assert.NoError(t, Validate(addr.AddressString))
	assert.NoError(t, Validate("alice@example.com"))
	assert.ErrorIs(t, Validate("not-an-address"), ErrInvalidHandle)
	assert.ErrorIs(t, Validate("bad@"), ErrInvalidHandle)
}

func TestResolve_Address(t *testing.T) {
	addr, err := script.NewAddressFromPublicKey(newKey(t).PubKey(), false)
	require.NoError(t, err)

	r := &Resolver{HTTP: &fakeHTTP{}, DNS: &fakeDNS{}}
	got, err := r.Resolve(context.Background(), addr.AddressString)
	require.NoError(t, err)
	assert.Equal(t, addr.AddressString, got.AddressString)
}

func TestResolve_PaymailViaSRV(t *testing.T) {
	key := newKey(t)
	pubHex := hex.EncodeToString(key.PubKey().Compressed())

	dnsr := &fakeDNS{srvs: map[string][]*net.SRV{
		"_bsvalias._tcp.example.com": {
			{Target: "backup.example.net.", Port: 443, Priority: 20, Weight: 0},
			{Target: "pay.example.net.", Port: 8443, Priority: 10, Weight: 5},
		},
	}}
	client := &fakeHTTP{bodies: map[string]string{
		"https://pay.example.net:8443/.well-known/bsvalias": `{"bsvalias":"1.0","capabilities":{"pki":"https://pay.example.net:8443/api/{alias}@{domain.tld}/id"}}`,
		"https://pay.example.net:8443/api/alice@example.com/id": `{"bsvalias":"1.0","handle":"alice@example.com","pubkey":"` + pubHex + `"}`,
	}}

	r := &Resolver{HTTP: client, DNS: dnsr, Mainnet: true}
	got, err := r.Resolve(context.Background(), "alice@example.com")
	require.NoError(t, err)

	want, err := script.NewAddressFromPublicKey(key.PubKey(), true)
	require.NoError(t, err)
	assert.Equal(t, want.AddressString, got.AddressString)
	assert.Len(t, client.requests, 2)
}

func TestResolve_PaymailWithoutSRV(t *testing.T) {
	key := newKey(t)
	client := &fakeHTTP{bodies: map[string]string{
		"https://example.com/.well-known/bsvalias": `{"capabilities":{"6745385c3fc0":"https://example.com/pki/{alias}"}}`,
		"https://example.com/pki/bob":              `{"pubkey":"` + hex.EncodeToString(key.PubKey().Compressed()) + `"}`,
	}}
	r := &Resolver{HTTP: client, DNS: &fakeDNS{}}
	_, err := r.Resolve(context.Background(), "bob@example.com")
	require.NoError(t, err)
}

func TestResolve_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("dns failure", func(t *testing.T) {
		r := &Resolver{HTTP: &fakeHTTP{}, DNS: &fakeDNS{err: errors.New("timeout")}}
		_, err := r.Resolve(ctx, "alice@example.com")
		assert.ErrorIs(t, err, ErrDNSLookupFailed)
		assert.ErrorIs(t, err, ErrPKIResolution)
	})

	t.Run("discovery 404", func(t *testing.T) {
		r := &Resolver{HTTP: &fakeHTTP{}, DNS: &fakeDNS{}}
		_, err := r.Resolve(ctx, "alice@example.com")
		assert.ErrorIs(t, err, ErrDiscovery)
	})

	t.Run("no pki capability", func(t *testing.T) {
		client := &fakeHTTP{bodies: map[string]string{
			"https://example.com/.well-known/bsvalias": `{"capabilities":{"f12f968c92d6":"https://example.com/profile"}}`,
		}}
		r := &Resolver{HTTP: client, DNS: &fakeDNS{}}
		_, err := r.Resolve(ctx, "alice@example.com")
		assert.ErrorIs(t, err, ErrPKIResolution)
	})

	t.Run("bad pubkey", func(t *testing.T) {
		client := &fakeHTTP{bodies: map[string]string{
			"https://example.com/.well-known/bsvalias": `{"capabilities":{"pki":"https://example.com/pki/{alias}"}}`,
			"https://example.com/pki/alice":            `{"pubkey":"04abcd"}`,
		}}
		r := &Resolver{HTTP: client, DNS: &fakeDNS{}}
		_, err := r.Resolve(ctx, "alice@example.com")
		assert.ErrorIs(t, err, ErrInvalidPubKey)
	})

	t.Run("malformed", func(t *testing.T) {
		r := &Resolver{HTTP: &fakeHTTP{}, DNS: &fakeDNS{}}
		_, err := r.Resolve(ctx, "zzz")
		assert.ErrorIs(t, err, ErrInvalidHandle)
	})
}
