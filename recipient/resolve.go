package recipient

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
)

// HTTPClient is the subset of *http.Client the resolver needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver turns shard recipients into payable P2PKH addresses. A recipient
// is either a base58 address or a paymail handle (alias@domain), in which
// case the alias's identity key is fetched through the domain's PKI
// capability and paid to directly.
type Resolver struct {
	HTTP    HTTPClient
	DNS     DNSResolver
	Mainnet bool
}

// NewResolver creates a Resolver using the default HTTP client and DNS.
func NewResolver(mainnet bool) *Resolver {
	return &Resolver{HTTP: http.DefaultClient, DNS: DefaultDNSResolver, Mainnet: mainnet}
}

var (
	aliasRe  = regexp.MustCompile(`^[a-zA-Z0-9._+-]+$`)
	domainRe = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)
)

// Handle is a parsed paymail handle.
type Handle struct {
	Alias  string
	Domain string
}

func (h Handle) String() string { return h.Alias + "@" + h.Domain }

// ParseHandle splits and checks alias@domain. The domain is lowercased.
func ParseHandle(s string) (Handle, error) {
	alias, domain, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok || alias == "" || domain == "" {
		return Handle{}, fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
	if !aliasRe.MatchString(alias) || !domainRe.MatchString(domain) {
		return Handle{}, fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
	return Handle{Alias: alias, Domain: strings.ToLower(domain)}, nil
}

// Validate checks the form of a recipient without touching the network.
func Validate(s string) error {
	if strings.Contains(s, "@") {
		_, err := ParseHandle(s)
		return err
	}
	if _, err := script.NewAddressFromString(s); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidHandle, s, err)
	}
	return nil
}

// Resolve returns the address to pay for recipient.
func (r *Resolver) Resolve(ctx context.Context, recipient string) (*script.Address, error) {
	if !strings.Contains(recipient, "@") {
		addr, err := script.NewAddressFromString(recipient)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidHandle, recipient, err)
		}
		return addr, nil
	}

	h, err := ParseHandle(recipient)
	if err != nil {
		return nil, err
	}
	pub, err := r.resolvePKI(ctx, h)
	if err != nil {
		return nil, err
	}
	key, err := ec.PublicKeyFromBytes(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPubKey, err)
	}
	addr, err := script.NewAddressFromPublicKey(key, r.Mainnet)
	if err != nil {
		return nil, fmt.Errorf("%w: address from pubkey: %w", ErrPKIResolution, err)
	}
	return addr, nil
}

// Capabilities holds the capability URL templates a paymail host advertises.
type Capabilities struct {
	PKI string
}

type wellKnownResponse struct {
	BSVAlias     string                 `json:"bsvalias"`
	Capabilities map[string]interface{} `json:"capabilities"`
}

type pkiResponse struct {
	BSVAlias string `json:"bsvalias"`
	Handle   string `json:"handle"`
	PubKey   string `json:"pubkey"`
}

// Discover fetches https://{host}/.well-known/bsvalias for domain, where
// host comes from the domain's _bsvalias._tcp SRV record.
func (r *Resolver) Discover(ctx context.Context, domain string) (*Capabilities, error) {
	host, err := paymailHost(ctx, r.dns(), domain)
	if err != nil {
		return nil, err
	}
	host = strings.TrimSuffix(host, ":443")

	url := "https://" + host + "/.well-known/bsvalias"
	var wk wellKnownResponse
	if err := r.getJSON(ctx, url, &wk); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	caps := &Capabilities{}
	for key, val := range wk.Capabilities {
		urlStr, ok := val.(string)
		if !ok {
			continue
		}
		if key == "pki" || key == "6745385c3fc0" || strings.Contains(key, "pki") {
			caps.PKI = urlStr
		}
	}
	return caps, nil
}

func (r *Resolver) resolvePKI(ctx context.Context, h Handle) ([]byte, error) {
	caps, err := r.Discover(ctx, h.Domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPKIResolution, err)
	}
	if caps.PKI == "" {
		return nil, fmt.Errorf("%w: no PKI capability for %s", ErrPKIResolution, h.Domain)
	}

	pkiURL := strings.ReplaceAll(caps.PKI, "{alias}", h.Alias)
	pkiURL = strings.ReplaceAll(pkiURL, "{domain.tld}", h.Domain)

	var pki pkiResponse
	if err := r.getJSON(ctx, pkiURL, &pki); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPKIResolution, err)
	}
	if pki.PubKey == "" {
		return nil, fmt.Errorf("%w: empty public key for %s", ErrPKIResolution, h)
	}
	pub, err := hex.DecodeString(pki.PubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex: %w", ErrInvalidPubKey, err)
	}
	if len(pub) != 33 || (pub[0] != 0x02 && pub[0] != 0x03) {
		return nil, fmt.Errorf("%w: want 33-byte compressed key, got %d bytes", ErrInvalidPubKey, len(pub))
	}
	return pub, nil
}

func (r *Resolver) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	client := r.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading %s: %w", url, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing %s: %w", url, err)
	}
	return nil
}

func (r *Resolver) dns() DNSResolver {
	if r.DNS == nil {
		return DefaultDNSResolver
	}
	return r.DNS
}
