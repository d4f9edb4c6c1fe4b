package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"modscan/internal/shared"
	"modscan/internal/signatures"
)

type menuItem struct {
	label  string
	prompt string // empty: run without input
	run    func(ctx context.Context, eng Engine, input string) jobResult
}

type jobResult struct {
	title  string
	lines  []ResultLine
	op     string
	record any

	stats    *shared.Stats
	statsErr error
}

var menu = []menuItem{
	{
		label: "Scan processes (Java)",
		run: func(ctx context.Context, eng Engine, _ string) jobResult {
			return reportResult("Java process scan", "scan_processes", eng.ScanProcesses(ctx, signatures.Java))
		},
	},
	{
		label: "Scan processes (Bedrock)",
		run: func(ctx context.Context, eng Engine, _ string) jobResult {
			return reportResult("Bedrock process scan", "scan_processes", eng.ScanProcesses(ctx, signatures.Bedrock))
		},
	},
	{
		label:  "Scan directory",
		prompt: "Directory",
		run: func(ctx context.Context, eng Engine, input string) jobResult {
			return reportResult("Filesystem scan: "+input, "scan_filesystem", eng.ScanFilesystem(ctx, input))
		},
	},
	{
		label:  "Check IP for VPN/proxy",
		prompt: "IP address",
		run: func(ctx context.Context, eng Engine, input string) jobResult {
			v, err := eng.CheckVpn(ctx, input)
			if err != nil {
				return errorResult("VPN check", err)
			}
			return jobResult{title: "VPN check: " + input, lines: vpnLines(v), op: "check_vpn", record: v}
		},
	},
	{
		label:  "Scan URL",
		prompt: "URL",
		run: func(ctx context.Context, eng Engine, input string) jobResult {
			v := eng.ScanURL(ctx, input)
			return jobResult{title: "URL scan", lines: urlLines(v), op: "scan_url", record: v}
		},
	},
	{
		label:  "Remote scan",
		prompt: "Peer address",
		run: func(ctx context.Context, eng Engine, input string) jobResult {
			r := eng.RemoteScan(ctx, input)
			res := reportResult("Remote scan: "+input, "remote_scan", r)
			// Remote pids belong to another host.
			for i := range res.lines {
				res.lines[i].Pid = 0
			}
			return res
		},
	},
	{
		label: "Audit network connections",
		run: func(ctx context.Context, eng Engine, _ string) jobResult {
			out, err := eng.AuditConnections(ctx)
			if err != nil {
				return errorResult("Connection audit", err)
			}
			return jobResult{title: "Connection audit", lines: auditLines(out), op: "audit_connections", record: out}
		},
	},
}

func errorResult(title string, err error) jobResult {
	return jobResult{title: title, lines: []ResultLine{{Text: "error: " + err.Error()}}}
}

func reportResult(title, op string, r *shared.ScanReport) jobResult {
	return jobResult{title: title, lines: reportLines(r), op: op, record: r}
}

func reportLines(r *shared.ScanReport) []ResultLine {
	lines := []ResultLine{{
		Text: fmt.Sprintf("status: %s  hits: %d  inspected: %d  skipped: %d  took: %s",
			r.Status(), len(r.Hits), r.Inspected, r.Skipped, r.Duration().Round(time.Millisecond)),
	}}
	if r.Failure != nil {
		lines = append(lines, ResultLine{Text: "failure: " + r.Failure.Error()})
	}
	if len(r.Hits) == 0 && r.Failure == nil {
		lines = append(lines, ResultLine{Text: "No known modification tools found."})
	}
	for _, h := range r.Hits {
		text := fmt.Sprintf("[%s] %s", h.Label, h.Evidence)
		if h.Pid != 0 {
			text += fmt.Sprintf("  (pid %d, %s)", h.Pid, h.Source)
		}
		lines = append(lines, ResultLine{Text: text, Pid: h.Pid, Name: h.Label})
	}
	return lines
}

func vpnLines(v shared.VpnVerdict) []ResultLine {
	var lines []ResultLine
	if v.Flagged {
		lines = append(lines, ResultLine{Text: fmt.Sprintf("IP %s is associated with VPN/proxy (%s)", v.Address, v.Source)})
	} else {
		lines = append(lines, ResultLine{Text: fmt.Sprintf("IP %s is not flagged (%s)", v.Address, v.Source)})
	}
	if v.Failure != nil {
		lines = append(lines, ResultLine{Text: "lookup failed: " + v.Failure.Error()})
	}
	return lines
}

func urlLines(v shared.UrlVerdict) []ResultLine {
	lines := []ResultLine{{Text: fmt.Sprintf("%s: %s", strings.ToUpper(string(v.Status)), v.URL)}}
	if v.Reason != "" {
		lines = append(lines, ResultLine{Text: "reason: " + v.Reason})
	}
	if reg := v.Registration; reg != nil {
		lines = append(lines, ResultLine{Text: "domain: " + reg.Domain})
		if reg.Registrar != "" {
			lines = append(lines, ResultLine{Text: "registrar: " + reg.Registrar})
		}
		if reg.Created != "" {
			lines = append(lines, ResultLine{Text: "created: " + reg.Created})
		}
		if reg.Expires != "" {
			lines = append(lines, ResultLine{Text: "expires: " + reg.Expires})
		}
		if len(reg.NameServers) > 0 {
			lines = append(lines, ResultLine{Text: "name servers: " + strings.Join(reg.NameServers, ", ")})
		}
	}
	return lines
}

func auditLines(out []shared.ConnectionVerdict) []ResultLine {
	if len(out) == 0 {
		return []ResultLine{{Text: "No established external connections."}}
	}
	lines := make([]ResultLine, 0, len(out))
	for _, cv := range out {
		verdict := "clean"
		switch {
		case cv.Verdict.Flagged:
			verdict = "VPN/PROXY"
		case cv.Verdict.Failure != nil:
			verdict = "unknown (" + string(cv.Verdict.Failure.Kind) + ")"
		}
		line := ResultLine{Text: fmt.Sprintf("%-39s %-18s pids %v", cv.RemoteAddress, verdict, cv.Pids)}
		if len(cv.Pids) == 1 {
			line.Pid = cv.Pids[0]
			line.Name = cv.RemoteAddress
		}
		lines = append(lines, line)
	}
	return lines
}
