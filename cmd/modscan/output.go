package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"modscan/internal/history"
	"modscan/internal/shared"
)

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// kv prints one machine-friendly key=value line. Values containing spaces
// are quoted.
func kv(pairs ...string) {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		v := pairs[i+1]
		if v == "" || strings.ContainsAny(v, " \t\"=") {
			v = strconv.Quote(v)
		}
		b.WriteString(pairs[i])
		b.WriteByte('=')
		b.WriteString(v)
	}
	fmt.Fprintln(stdout, b.String())
}

func printReport(r *shared.ScanReport) {
	for _, h := range r.Hits {
		pairs := []string{"label", h.Label, "evidence", h.Evidence}
		if h.Pid != 0 {
			pairs = append(pairs, "pid", strconv.Itoa(h.Pid))
		}
		if h.Source != "" {
			pairs = append(pairs, "source", h.Source)
		}
		kv(pairs...)
	}
	summary := []string{
		"kind", string(r.Kind),
		"target", r.Target,
		"status", r.Status(),
		"hits", strconv.Itoa(len(r.Hits)),
		"inspected", strconv.Itoa(r.Inspected),
		"skipped", strconv.Itoa(r.Skipped),
		"duration_ms", strconv.FormatInt(r.Duration().Milliseconds(), 10),
	}
	if r.Failure != nil {
		summary = append(summary, "failure", string(r.Failure.Kind), "reason", r.Failure.Reason)
	}
	kv(summary...)
}

func printVpn(v shared.VpnVerdict) {
	pairs := []string{"ip", v.Address, "vpn", strconv.FormatBool(v.Flagged), "source", v.Source}
	if v.Failure != nil {
		pairs = append(pairs, "failure", string(v.Failure.Kind), "reason", v.Failure.Reason)
	}
	kv(pairs...)
}

func printURL(v shared.UrlVerdict) {
	pairs := []string{"url", v.URL, "status", string(v.Status)}
	if v.Reason != "" {
		pairs = append(pairs, "reason", v.Reason)
	}
	if reg := v.Registration; reg != nil {
		pairs = append(pairs, "domain", reg.Domain, "registrar", reg.Registrar, "created", reg.Created)
	}
	kv(pairs...)
}

func printConnections(out []shared.ConnectionVerdict) {
	for _, cv := range out {
		pids := make([]string, len(cv.Pids))
		for i, p := range cv.Pids {
			pids[i] = strconv.Itoa(p)
		}
		pairs := []string{
			"remote", cv.RemoteAddress,
			"pids", strings.Join(pids, ","),
			"vpn", strconv.FormatBool(cv.Verdict.Flagged),
			"source", cv.Verdict.Source,
		}
		if cv.Verdict.Failure != nil {
			pairs = append(pairs, "failure", string(cv.Verdict.Failure.Kind))
		}
		kv(pairs...)
	}
}

func printHistory(st shared.Stats, recent []history.Entry) {
	kv(
		"total_scans", strconv.Itoa(st.TotalScans),
		"hacks_detected", strconv.Itoa(st.TotalHits),
		"vpn_checks", strconv.Itoa(st.VpnChecks),
		"vpns_blocked", strconv.Itoa(st.VpnFlagged),
		"url_scans", strconv.Itoa(st.UrlScans),
		"urls_suspicious", strconv.Itoa(st.UrlSuspicious),
	)
	for _, e := range recent {
		kv(
			"at", e.At.Format("2006-01-02T15:04:05Z07:00"),
			"kind", e.Kind,
			"target", e.Target,
			"status", e.Status,
			"hits", strconv.Itoa(e.Hits),
		)
	}
}
