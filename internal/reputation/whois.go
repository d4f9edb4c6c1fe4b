package reputation

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"modscan/internal/shared"
)

// WhoisRegistrar looks hosts up over WHOIS and parses the registry answer.
type WhoisRegistrar struct {
	client *whois.Client
}

func NewWhoisRegistrar(timeout time.Duration) *WhoisRegistrar {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WhoisRegistrar{client: whois.NewClient().SetTimeout(timeout)}
}

type whoisResult struct {
	text string
	err  error
}

func (w *WhoisRegistrar) Lookup(ctx context.Context, host string) (*shared.Registration, error) {
	domain := strings.TrimPrefix(strings.ToLower(host), "www.")
	if domain == "" {
		return nil, shared.Invalid("empty host")
	}

	// The whois client has no context support; the query finishes on its own
	// timeout if we stop waiting.
	done := make(chan whoisResult, 1)
	go func() {
		text, err := w.client.Whois(domain)
		done <- whoisResult{text: text, err: err}
	}()

	var res whoisResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("whois %s: %w", domain, res.err)
	}

	// IP hosts get a raw RIR answer that whois-parser does not understand.
	if _, err := netip.ParseAddr(domain); err == nil {
		return &shared.Registration{Domain: domain, FetchedAt: time.Now().UTC()}, nil
	}

	info, err := whoisparser.Parse(res.text)
	if err != nil {
		return nil, fmt.Errorf("parse whois %s: %w", domain, err)
	}

	reg := &shared.Registration{Domain: domain, FetchedAt: time.Now().UTC()}
	if info.Domain != nil {
		if info.Domain.Domain != "" {
			reg.Domain = info.Domain.Domain
		}
		reg.Created = info.Domain.CreatedDate
		reg.Expires = info.Domain.ExpirationDate
		reg.NameServers = info.Domain.NameServers
		reg.Status = info.Domain.Status
	}
	if info.Registrar != nil {
		reg.Registrar = info.Registrar.Name
	}
	return reg, nil
}
