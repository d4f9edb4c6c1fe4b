package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"modscan/internal/shared"
)

func hostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	addr := strings.TrimPrefix(rawURL, "http://")
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	var p int
	fmt.Sscanf(port, "%d", &p)
	return host, p
}

func TestScanParsesHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ScanPath || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `[{"label":"Wurst","evidence":"C:\\mods\\wurst.jar"},{"label":"Horion"}]`)
	}))
	defer srv.Close()

	host, port := hostPort(t, srv.URL)
	report := NewClient(time.Second, WithPort(port)).Scan(context.Background(), host)

	if report.Failure != nil {
		t.Fatalf("failure = %v", report.Failure)
	}
	if len(report.Hits) != 2 {
		t.Fatalf("hits = %+v", report.Hits)
	}
	if report.Hits[0].Evidence != `C:\mods\wurst.jar` || report.Hits[1].Evidence != shared.UnknownEvidence {
		t.Fatalf("evidence = %+v", report.Hits)
	}
	if report.Status() != shared.StatusHitsFound {
		t.Fatalf("status = %s", report.Status())
	}
}

func TestScanExplicitPortOverridesDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	report := NewClient(time.Second).Scan(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	if report.Failure != nil || report.Status() != shared.StatusNoHits {
		t.Fatalf("status=%s failure=%v", report.Status(), report.Failure)
	}
}

func TestScanUnreachableIsBoundedFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	start := time.Now()
	report := NewClient(500*time.Millisecond).Scan(context.Background(), addr)
	if time.Since(start) > 3*time.Second {
		t.Fatal("scan not bounded")
	}
	if len(report.Hits) != 0 || report.Failure == nil || report.Failure.Kind != shared.FailureTransient {
		t.Fatalf("report = %+v", report)
	}
	if report.Status() != shared.StatusFailed {
		t.Fatalf("status = %s", report.Status())
	}
}

func TestScanMalformedResponses(t *testing.T) {
	for name, body := range map[string]string{
		"not json":      `<html>`,
		"wrong shape":   `{"hits":[]}`,
		"missing label": `[{"evidence":"x"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer srv.Close()

			host, port := hostPort(t, srv.URL)
			report := NewClient(time.Second, WithPort(port)).Scan(context.Background(), host)
			if len(report.Hits) != 0 || report.Failure == nil || report.Failure.Kind != shared.FailureMalformed {
				t.Fatalf("report = %+v", report)
			}
		})
	}
}

func TestScanNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	host, port := hostPort(t, srv.URL)
	report := NewClient(time.Second, WithPort(port)).Scan(context.Background(), host)
	if report.Failure == nil || report.Failure.Kind != shared.FailureTransient {
		t.Fatalf("report = %+v", report)
	}
}

func TestScanRejectsEmptyAddress(t *testing.T) {
	report := NewClient(time.Second).Scan(context.Background(), "  ")
	if report.Failure == nil || report.Failure.Kind != shared.FailureInvalidInput {
		t.Fatalf("report = %+v", report)
	}
}

func TestHandlerRoundTripWithClient(t *testing.T) {
	handler := NewHandler(func(ctx context.Context) ([]shared.DetectionHit, error) {
		return []shared.DetectionHit{{Label: "Zephyr", Evidence: "/opt/zephyr", Pid: 77, Source: shared.SourceName}}, nil
	}, nil)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	host, port := hostPort(t, srv.URL)
	report := NewClient(time.Second, WithPort(port)).Scan(context.Background(), host)
	if len(report.Hits) != 1 || report.Hits[0].Label != "Zephyr" || report.Hits[0].Pid != 77 {
		t.Fatalf("hits = %+v", report.Hits)
	}
	if report.Hits[0].Source != shared.SourceRemote {
		t.Fatalf("source = %s", report.Hits[0].Source)
	}
}

func TestHandlerMethodsAndErrors(t *testing.T) {
	handler := NewHandler(func(ctx context.Context) ([]shared.DetectionHit, error) {
		return nil, errors.New("snapshot failed")
	}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, ScanPath, nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST code = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ScanPath, nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("GET code = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestServeListenerStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeListener(ctx, ln, NewHandler(func(ctx context.Context) ([]shared.DetectionHit, error) {
			return nil, nil
		}, nil), nil)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + ScanPath)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
