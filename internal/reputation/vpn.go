// Package reputation classifies network endpoints: VPN/proxy addresses and
// phishing-looking URLs.
package reputation

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"modscan/internal/shared"
)

const (
	DefaultVpnListURL = "https://raw.githubusercontent.com/X4BNet/lists_vpn/main/output/vpn/ipv4.txt"
	DefaultLookupURL  = "https://ipapi.co/%s/json/"

	maxListBytes   = 32 << 20
	maxLookupBytes = 64 << 10
)

// AddressSet is the cached reputation list: exact textual addresses plus
// CIDR prefixes. It is immutable once built.
type AddressSet struct {
	exact    map[string]struct{}
	prefixes []netip.Prefix
}

// ParseAddressSet reads a newline-delimited list. Empty lines and lines
// starting with '#' are ignored. Lines that parse as a prefix are kept as
// prefixes; everything else is kept as exact text.
func ParseAddressSet(r io.Reader) (*AddressSet, error) {
	set := &AddressSet{exact: make(map[string]struct{})}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, "/") {
			if p, err := netip.ParsePrefix(line); err == nil {
				set.prefixes = append(set.prefixes, p.Masked())
				continue
			}
		}
		set.exact[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// Contains reports membership by exact text or prefix containment.
func (s *AddressSet) Contains(ip string) bool {
	if s == nil {
		return false
	}
	if _, ok := s.exact[ip]; ok {
		return true
	}
	if len(s.prefixes) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range s.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Len is the number of entries (exact + prefixes).
func (s *AddressSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.exact) + len(s.prefixes)
}

type VpnOptions struct {
	ListURL   string
	LookupURL string
	Timeout   time.Duration
	Client    *http.Client
}

// VpnChecker answers VPN/proxy questions from the cached list first and the
// per-IP lookup API second. Misses are never cached.
type VpnChecker struct {
	set       *AddressSet
	lookupURL string
	client    *http.Client
	log       *zap.Logger

	loadFailure *shared.Failure
}

// NewVpnChecker downloads the reputation list once. A failed download yields
// an empty set; the checker still works through the lookup API.
func NewVpnChecker(ctx context.Context, opts VpnOptions, log *zap.Logger) *VpnChecker {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ListURL == "" {
		opts.ListURL = DefaultVpnListURL
	}
	if opts.LookupURL == "" {
		opts.LookupURL = DefaultLookupURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	c := &VpnChecker{
		lookupURL: opts.LookupURL,
		client:    client,
		log:       log,
	}

	set, err := c.fetchList(ctx, opts.ListURL)
	if err != nil {
		log.Warn("reputation list unavailable, starting with empty cache",
			zap.String("url", opts.ListURL), zap.Error(err))
		c.loadFailure = shared.NewFailure(shared.FailureTransient, err)
		set = &AddressSet{exact: map[string]struct{}{}}
	} else {
		log.Info("reputation list loaded", zap.Int("entries", set.Len()))
	}
	c.set = set

	return c
}

// NewVpnCheckerWithSet builds a checker around an already loaded set.
func NewVpnCheckerWithSet(set *AddressSet, opts VpnOptions, log *zap.Logger) *VpnChecker {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.LookupURL == "" {
		opts.LookupURL = DefaultLookupURL
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if set == nil {
		set = &AddressSet{exact: map[string]struct{}{}}
	}
	return &VpnChecker{set: set, lookupURL: opts.LookupURL, client: client, log: log}
}

func (c *VpnChecker) fetchList(ctx context.Context, listURL string) (*AddressSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("list fetch: status %d", resp.StatusCode)
	}
	return ParseAddressSet(io.LimitReader(resp.Body, maxListBytes))
}

// CachedCount is the size of the cached list.
func (c *VpnChecker) CachedCount() int {
	return c.set.Len()
}

// LoadFailure is non-nil when the list download failed at construction.
func (c *VpnChecker) LoadFailure() *shared.Failure {
	return c.loadFailure
}

// ValidateAddress trims ip and checks that it is a literal IPv4 or IPv6
// address. The error wraps shared.ErrInvalidInput.
func ValidateAddress(ip string) (string, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "", shared.Invalid("empty address")
	}
	if _, err := netip.ParseAddr(ip); err != nil {
		return "", shared.Invalid("address %q: %v", ip, err)
	}
	return ip, nil
}

// Check classifies ip. Only an empty or unparsable address is returned as an
// error; lookup faults come back as Flagged=false with Failure set.
func (c *VpnChecker) Check(ctx context.Context, ip string) (shared.VpnVerdict, error) {
	ip, err := ValidateAddress(ip)
	if err != nil {
		return shared.VpnVerdict{}, err
	}

	if c.set.Contains(ip) {
		return shared.VpnVerdict{Address: ip, Flagged: true, Source: shared.VpnSourceCache}, nil
	}

	v := shared.VpnVerdict{Address: ip, Source: shared.VpnSourceRemote}
	flagged, f := c.lookup(ctx, ip)
	if f != nil {
		c.log.Warn("reputation lookup failed", zap.String("ip", ip), zap.String("kind", string(f.Kind)), zap.String("reason", f.Reason))
		v.Failure = f
		return v, nil
	}
	v.Flagged = flagged
	return v, nil
}

// CheckVpn is the plain boolean form of Check.
func (c *VpnChecker) CheckVpn(ctx context.Context, ip string) bool {
	v, err := c.Check(ctx, ip)
	return err == nil && v.Flagged
}

// lookupResponse is the subset of the per-IP API response we read.
type lookupResponse struct {
	Proxy  *flexBool `json:"proxy"`
	VPN    *flexBool `json:"vpn"`
	Error  *flexBool `json:"error"`
	Reason string    `json:"reason"`
}

func (c *VpnChecker) lookup(ctx context.Context, ip string) (bool, *shared.Failure) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(c.lookupURL, ip), nil)
	if err != nil {
		return false, shared.NewFailure(shared.FailureInvalidInput, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, shared.NewFailure(shared.FailureTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, shared.NewFailure(shared.FailureTransient, fmt.Errorf("lookup status %d", resp.StatusCode))
	}

	var body lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxLookupBytes)).Decode(&body); err != nil {
		return false, shared.NewFailure(shared.FailureMalformed, err)
	}
	if body.Error != nil && bool(*body.Error) {
		return false, shared.NewFailure(shared.FailureTransient, fmt.Errorf("lookup refused: %s", body.Reason))
	}
	if body.Proxy == nil && body.VPN == nil {
		return false, shared.NewFailure(shared.FailureMalformed, fmt.Errorf("response has neither proxy nor vpn field"))
	}

	return (body.Proxy != nil && bool(*body.Proxy)) || (body.VPN != nil && bool(*body.VPN)), nil
}

// flexBool accepts true/false, "true"/"yes"/"1" strings and numbers.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*b = false
	case bool:
		*b = flexBool(x)
	case float64:
		*b = x != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		if s == "yes" || s == "y" {
			*b = true
			return nil
		}
		parsed, err := strconv.ParseBool(s)
		if err != nil {
			*b = false
			return nil
		}
		*b = flexBool(parsed)
	default:
		return fmt.Errorf("unexpected boolean value %s", string(data))
	}
	return nil
}
