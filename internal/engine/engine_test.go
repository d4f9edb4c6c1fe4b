package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"modscan/internal/fsscan"
	"modscan/internal/history"
	"modscan/internal/netstat"
	"modscan/internal/procscan"
	"modscan/internal/remote"
	"modscan/internal/reputation"
	"modscan/internal/shared"
	"modscan/internal/signatures"
)

type staticSource []shared.ProcessRecord

func (s staticSource) Processes(ctx context.Context) ([]shared.ProcessRecord, error) {
	return append([]shared.ProcessRecord(nil), s...), nil
}

func (s staticSource) Inspect(ctx context.Context, rec *shared.ProcessRecord) error {
	return nil
}

type okRegistrar struct{}

func (okRegistrar) Lookup(ctx context.Context, host string) (*shared.Registration, error) {
	return &shared.Registration{Domain: host, Registrar: "Example Registrar"}, nil
}

func newEngine(t *testing.T, vpnBuilds *int) (*Engine, *history.Store) {
	t.Helper()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/list.txt") {
			fmt.Fprint(w, "203.0.113.7\n")
			return
		}
		fmt.Fprint(w, `{"proxy":false,"vpn":false}`)
	}))
	t.Cleanup(api.Close)

	store, err := history.Open(filepath.Join(t.TempDir(), "history"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	db := signatures.Default()
	e := New(Deps{
		Signatures: db,
		Processes: procscan.New(db, staticSource{
			{Pid: 10, Name: "Wurst.exe"},
			{Pid: 11, Name: "Horion.exe"},
			{Pid: 12, Name: "bash"},
		}, nil),
		Files: fsscan.New(db),
		Vpn: func() *reputation.VpnChecker {
			*vpnBuilds++
			return reputation.NewVpnChecker(context.Background(), reputation.VpnOptions{
				ListURL:   api.URL + "/list.txt",
				LookupURL: api.URL + "/ip/%s/json/",
				Timeout:   time.Second,
			}, nil)
		},
		Urls:   reputation.NewUrlScanner(okRegistrar{}, nil),
		Remote: remote.NewClient(500 * time.Millisecond),
		Connections: netstat.SourceFunc(func(ctx context.Context) ([]shared.ConnectionInfo, error) {
			return []shared.ConnectionInfo{
				{Pid: 40, RemoteAddress: "203.0.113.7", State: shared.StateEstablished},
				{Pid: 41, RemoteAddress: "192.168.1.10", State: shared.StateEstablished},
			}, nil
		}),
		History: store,
	})
	return e, store
}

func TestEngineRoutesAndRecords(t *testing.T) {
	builds := 0
	e, _ := newEngine(t, &builds)
	ctx := context.Background()

	java := e.ScanProcesses(ctx, signatures.Java)
	if labels := shared.Labels(java.Hits); len(labels) != 1 || labels[0] != "Wurst" {
		t.Fatalf("java labels = %v", labels)
	}

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "zephyr.dll"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	files := e.ScanFilesystem(ctx, root)
	if len(files.Hits) != 1 || files.Hits[0].Label != "Zephyr" {
		t.Fatalf("file hits = %+v", files.Hits)
	}

	v, err := e.CheckVpn(ctx, "203.0.113.7")
	if err != nil || !v.Flagged {
		t.Fatalf("vpn = %+v, %v", v, err)
	}
	if _, err := e.CheckVpn(ctx, "192.0.2.1"); err != nil {
		t.Fatal(err)
	}
	if builds != 1 {
		t.Fatalf("vpn checker built %d times", builds)
	}

	if u := e.ScanURL(ctx, "http://example.com/account"); u.Status != shared.UrlSuspicious {
		t.Fatalf("url = %+v", u)
	}
	if u := e.ScanURL(ctx, "https://example.com/"); u.Status != shared.UrlClean {
		t.Fatalf("url = %+v", u)
	}

	st, err := e.Stats()
	if err != nil {
		t.Fatal(err)
	}
	want := shared.Stats{TotalScans: 2, TotalHits: 2, VpnChecks: 2, VpnFlagged: 1, UrlScans: 2, UrlSuspicious: 1}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}

	recent, err := e.Recent(1)
	if err != nil || len(recent) != 1 || recent[0].Kind != history.KindURL {
		t.Fatalf("recent = %+v, %v", recent, err)
	}
}

func TestLocalHitsUnionsPlatforms(t *testing.T) {
	builds := 0
	e, _ := newEngine(t, &builds)

	hits, err := e.LocalHits(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	labels := shared.Labels(hits)
	if len(labels) != 2 {
		t.Fatalf("labels = %v", labels)
	}
	if builds != 0 {
		t.Fatal("vpn checker built for a process scan")
	}
}

func TestCheckVpnRejectsBadAddressBeforeListLoad(t *testing.T) {
	builds := 0
	e, store := newEngine(t, &builds)
	ctx := context.Background()

	for _, ip := range []string{"not-an-ip", "", "   ", "10.0.0.256"} {
		if _, err := e.CheckVpn(ctx, ip); !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("CheckVpn(%q) err = %v", ip, err)
		}
	}
	if builds != 0 {
		t.Fatalf("vpn checker built %d times for invalid input", builds)
	}
	if recent, _ := store.Recent(10); len(recent) != 0 {
		t.Fatalf("invalid checks recorded: %+v", recent)
	}

	if _, err := e.CheckVpn(ctx, " 203.0.113.7 "); err != nil {
		t.Fatal(err)
	}
	if builds != 1 {
		t.Fatalf("vpn checker built %d times", builds)
	}
}

func TestAuditConnectionsChecksExternalPeersOnly(t *testing.T) {
	builds := 0
	e, _ := newEngine(t, &builds)

	out, err := e.AuditConnections(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].RemoteAddress != "203.0.113.7" || !out[0].Verdict.Flagged {
		t.Fatalf("audit = %+v", out)
	}
}

func TestRemoteScanAllKeepsOrder(t *testing.T) {
	builds := 0
	e, _ := newEngine(t, &builds)

	peer := httptest.NewServer(remote.NewHandler(func(ctx context.Context) ([]shared.DetectionHit, error) {
		return []shared.DetectionHit{{Label: "Beton", Evidence: "/opt/beton"}}, nil
	}, nil))
	defer peer.Close()

	reports := e.RemoteScanAll(context.Background(), []string{
		strings.TrimPrefix(peer.URL, "http://"),
		"",
	})
	if len(reports) != 2 {
		t.Fatalf("reports = %d", len(reports))
	}
	if reports[0].Status() != shared.StatusHitsFound {
		t.Fatalf("first = %+v", reports[0])
	}
	if reports[1].Failure == nil || reports[1].Failure.Kind != shared.FailureInvalidInput {
		t.Fatalf("second = %+v", reports[1])
	}
}

func TestUnconfiguredComponents(t *testing.T) {
	e := New(Deps{Signatures: signatures.Default()})
	ctx := context.Background()

	if r := e.ScanProcesses(ctx, signatures.Java); r.Status() != shared.StatusFailed {
		t.Fatalf("status = %s", r.Status())
	}
	if _, err := e.CheckVpn(ctx, "192.0.2.1"); !errors.Is(err, errNotConfigured) {
		t.Fatalf("err = %v", err)
	}
	if v := e.ScanURL(ctx, "https://example.com"); v.Status != shared.UrlError {
		t.Fatalf("url = %+v", v)
	}
	if st, err := e.Stats(); err != nil || st != (shared.Stats{}) {
		t.Fatalf("stats = %+v, %v", st, err)
	}
}
