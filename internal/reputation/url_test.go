package reputation

import (
	"context"
	"errors"
	"testing"

	"modscan/internal/shared"
)

type fakeRegistrar struct {
	calls int
	reg   *shared.Registration
	err   error
}

func (f *fakeRegistrar) Lookup(ctx context.Context, host string) (*shared.Registration, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := *f.reg
	r.Domain = host
	return &r, nil
}

func TestKeywordTakesPrecedenceOverLookup(t *testing.T) {
	reg := &fakeRegistrar{reg: &shared.Registration{}}
	v := NewUrlScanner(reg, nil).ScanURL(context.Background(), "http://example.com/login")

	if v.Status != shared.UrlSuspicious || v.Reason != "contains phishing keywords" {
		t.Fatalf("verdict = %+v", v)
	}
	if reg.calls != 0 {
		t.Fatalf("registrar called %d times", reg.calls)
	}
}

func TestKeywordMatchIsCaseInsensitive(t *testing.T) {
	v := NewUrlScanner(nil, nil).ScanURL(context.Background(), "https://pay.example.net/VERIFY?id=1")
	if v.Status != shared.UrlSuspicious {
		t.Fatalf("verdict = %+v", v)
	}
}

func TestUnparsableURLIsError(t *testing.T) {
	reg := &fakeRegistrar{reg: &shared.Registration{}}
	s := NewUrlScanner(reg, nil)

	for _, raw := range []string{"not a url", "", "http://%zz", "example.com/page"} {
		v := s.ScanURL(context.Background(), raw)
		if v.Status != shared.UrlError || v.Failure == nil || v.Failure.Kind != shared.FailureInvalidInput {
			t.Fatalf("%q: verdict = %+v", raw, v)
		}
	}
	if reg.calls != 0 {
		t.Fatalf("registrar called %d times", reg.calls)
	}
}

func TestCleanCarriesRegistration(t *testing.T) {
	reg := &fakeRegistrar{reg: &shared.Registration{Registrar: "Example Registrar, Inc."}}
	v := NewUrlScanner(reg, nil).ScanURL(context.Background(), "https://Example.org/about")

	if v.Status != shared.UrlClean || v.Registration == nil {
		t.Fatalf("verdict = %+v", v)
	}
	if v.Host != "example.org" || v.Registration.Domain != "example.org" || v.Registration.Registrar != "Example Registrar, Inc." {
		t.Fatalf("registration = %+v", v.Registration)
	}
}

func TestLookupErrorIsError(t *testing.T) {
	reg := &fakeRegistrar{err: errors.New("whois: connect timeout")}
	v := NewUrlScanner(reg, nil).ScanURL(context.Background(), "https://example.org/")

	if v.Status != shared.UrlError || v.Failure.Kind != shared.FailureLookup || v.Reason != "whois: connect timeout" {
		t.Fatalf("verdict = %+v", v)
	}
}
