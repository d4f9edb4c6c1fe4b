package reputation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"modscan/internal/shared"
)

const testList = "# x4b vpn list\r\n203.0.113.7\r\n\r\n198.51.100.0/24\r\n"

type apiServer struct {
	*httptest.Server
	listHits   atomic.Int32
	lookupHits atomic.Int32
}

func newAPIServer(t *testing.T, lookup http.HandlerFunc) *apiServer {
	t.Helper()
	s := &apiServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/list.txt", func(w http.ResponseWriter, r *http.Request) {
		s.listHits.Add(1)
		fmt.Fprint(w, testList)
	})
	mux.HandleFunc("/ip/", func(w http.ResponseWriter, r *http.Request) {
		s.lookupHits.Add(1)
		lookup(w, r)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *apiServer) checker(t *testing.T) *VpnChecker {
	t.Helper()
	return NewVpnChecker(context.Background(), VpnOptions{
		ListURL:   s.URL + "/list.txt",
		LookupURL: s.URL + "/ip/%s/json/",
		Timeout:   2 * time.Second,
	}, nil)
}

func TestCachedAddressNeedsNoLookup(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected lookup %s", r.URL.Path)
	})
	c := srv.checker(t)

	for _, ip := range []string{"203.0.113.7", "198.51.100.42"} {
		v, err := c.Check(context.Background(), ip)
		if err != nil {
			t.Fatal(err)
		}
		if !v.Flagged || v.Source != shared.VpnSourceCache {
			t.Fatalf("%s: verdict = %+v", ip, v)
		}
	}
	if n := srv.lookupHits.Load(); n != 0 {
		t.Fatalf("lookups = %d, want 0", n)
	}
	if c.CachedCount() != 2 {
		t.Fatalf("cached = %d", c.CachedCount())
	}
}

func TestMissIssuesExactlyOneLookupEachTime(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ip":"192.0.2.1","proxy":false,"vpn":"yes"}`)
	})
	c := srv.checker(t)

	if !c.CheckVpn(context.Background(), "192.0.2.1") {
		t.Fatal("expected flagged")
	}
	if n := srv.lookupHits.Load(); n != 1 {
		t.Fatalf("lookups = %d, want 1", n)
	}
	c.CheckVpn(context.Background(), "192.0.2.1")
	if n := srv.lookupHits.Load(); n != 2 {
		t.Fatalf("lookups = %d, want 2 (no negative caching)", n)
	}
	if n := srv.listHits.Load(); n != 1 {
		t.Fatalf("list fetched %d times", n)
	}
}

func TestLookupFailuresReturnFalse(t *testing.T) {
	cases := map[string]struct {
		handler http.HandlerFunc
		kind    shared.FailureKind
	}{
		"status": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
			},
			kind: shared.FailureTransient,
		},
		"garbage": {
			handler: func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "<html>") },
			kind:    shared.FailureMalformed,
		},
		"missing fields": {
			handler: func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"ip":"192.0.2.1"}`) },
			kind:    shared.FailureMalformed,
		},
		"api error": {
			handler: func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"error":true,"reason":"RateLimited"}`) },
			kind:    shared.FailureTransient,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := newAPIServer(t, tc.handler).checker(t)
			v, err := c.Check(context.Background(), "192.0.2.1")
			if err != nil {
				t.Fatal(err)
			}
			if v.Flagged || v.Failure == nil || v.Failure.Kind != tc.kind {
				t.Fatalf("verdict = %+v", v)
			}
		})
	}
}

func TestLookupTimeoutReturnsFalse(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	c := NewVpnCheckerWithSet(nil, VpnOptions{
		LookupURL: srv.URL + "/ip/%s/json/",
		Client:    &http.Client{Timeout: 100 * time.Millisecond},
	}, nil)

	start := time.Now()
	if c.CheckVpn(context.Background(), "192.0.2.9") {
		t.Fatal("timeout must not flag")
	}
	if time.Since(start) > time.Second {
		t.Fatal("lookup not bounded by client timeout")
	}
}

func TestListFailureYieldsEmptyCache(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewVpnChecker(context.Background(), VpnOptions{
		ListURL:   srv.URL + "/list.txt",
		LookupURL: srv.URL + "/ip/%s/json/",
	}, nil)
	if c.CachedCount() != 0 || c.LoadFailure() == nil {
		t.Fatalf("cached=%d failure=%v", c.CachedCount(), c.LoadFailure())
	}
}

func TestCheckRejectsBadInput(t *testing.T) {
	c := NewVpnCheckerWithSet(nil, VpnOptions{}, nil)
	for _, ip := range []string{"", "  ", "not-an-ip"} {
		if _, err := c.Check(context.Background(), ip); !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("Check(%q) err = %v", ip, err)
		}
	}
}

func TestValidateAddress(t *testing.T) {
	for in, want := range map[string]string{" 203.0.113.7 ": "203.0.113.7", "2001:db8::1": "2001:db8::1"} {
		got, err := ValidateAddress(in)
		if err != nil || got != want {
			t.Fatalf("ValidateAddress(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ValidateAddress("example.com"); !errors.Is(err, shared.ErrInvalidInput) {
		t.Fatalf("hostname err = %v", err)
	}
}

func TestParseAddressSet(t *testing.T) {
	set, err := ParseAddressSet(strings.NewReader(testList))
	if err != nil {
		t.Fatal(err)
	}
	for ip, want := range map[string]bool{
		"203.0.113.7":    true,
		"198.51.100.1":   true,
		"198.51.101.1":   false,
		"203.0.113.8":    false,
		"# x4b vpn list": false,
	} {
		if got := set.Contains(ip); got != want {
			t.Errorf("Contains(%q) = %v, want %v", ip, got, want)
		}
	}
}
