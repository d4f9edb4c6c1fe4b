package reputation

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"modscan/internal/shared"
)

// PhishingKeywords are matched against the lowercased full URL.
var PhishingKeywords = []string{"login", "account", "verify", "secure"}

const phishingReason = "contains phishing keywords"

// Registrar resolves domain-registration metadata for a host.
type Registrar interface {
	Lookup(ctx context.Context, host string) (*shared.Registration, error)
}

type UrlScanner struct {
	registrar Registrar
	log       *zap.Logger
}

func NewUrlScanner(registrar Registrar, log *zap.Logger) *UrlScanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &UrlScanner{registrar: registrar, log: log}
}

// ScanURL classifies raw. Keyword matches win over the registration lookup
// and skip it entirely.
func (s *UrlScanner) ScanURL(ctx context.Context, raw string) shared.UrlVerdict {
	v := shared.UrlVerdict{URL: raw}

	host, err := parseHost(raw)
	if err != nil {
		v.Status = shared.UrlError
		v.Reason = err.Error()
		v.Failure = shared.NewFailure(shared.FailureInvalidInput, err)
		return v
	}
	v.Host = host

	lower := strings.ToLower(raw)
	for _, kw := range PhishingKeywords {
		if strings.Contains(lower, kw) {
			v.Status = shared.UrlSuspicious
			v.Reason = phishingReason
			return v
		}
	}

	if s.registrar == nil {
		v.Status = shared.UrlError
		v.Reason = "no registration lookup configured"
		v.Failure = &shared.Failure{Kind: shared.FailureLookup, Reason: v.Reason}
		return v
	}

	reg, err := s.registrar.Lookup(ctx, host)
	if err != nil {
		s.log.Warn("registration lookup failed", zap.String("host", host), zap.Error(err))
		v.Status = shared.UrlError
		v.Reason = err.Error()
		v.Failure = shared.NewFailure(shared.FailureLookup, err)
		return v
	}

	v.Status = shared.UrlClean
	v.Registration = reg
	return v
}

func parseHost(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", shared.Invalid("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", shared.Invalid("parse url: %v", err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return "", shared.Invalid("url %q has no scheme or host", raw)
	}
	return strings.ToLower(u.Hostname()), nil
}
