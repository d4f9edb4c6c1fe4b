package main

import (
	"bytes"
	"strings"
	"testing"

	"modscan/internal/shared"
)

func capture(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	defer func() { stdout = prev }()
	fn()
	return buf.String()
}

func TestPrintReportKeyValue(t *testing.T) {
	r := shared.NewReport(shared.KindProcess, "java")
	r.Hits = append(r.Hits, shared.DetectionHit{Label: "Kami Blue", Evidence: `C:\Program Files\kami.exe`, Pid: 12, Source: shared.SourceName})
	r.Inspected = 3
	r.Finish()

	out := capture(t, func() { printReport(r) })
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("output = %q", out)
	}
	if !strings.HasPrefix(lines[0], `label="Kami Blue" evidence="C:\\Program Files\\kami.exe" pid=12 source=name`) {
		t.Fatalf("hit line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "status=hits-found") || !strings.Contains(lines[1], "inspected=3") {
		t.Fatalf("summary = %q", lines[1])
	}
}

func TestPrintVpnFailure(t *testing.T) {
	out := capture(t, func() {
		printVpn(shared.VpnVerdict{
			Address: "192.0.2.1",
			Source:  shared.VpnSourceRemote,
			Failure: &shared.Failure{Kind: shared.FailureTransient, Reason: "timeout"},
		})
	})
	want := "ip=192.0.2.1 vpn=false source=remote failure=transient reason=timeout\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestKVQuotesEmpty(t *testing.T) {
	out := capture(t, func() { kv("a", "", "b", "x=y") })
	if out != "a=\"\" b=\"x=y\"\n" {
		t.Fatalf("output = %q", out)
	}
}
