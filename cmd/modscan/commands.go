package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"modscan/internal/auth"
	"modscan/internal/remote"
	"modscan/internal/shared"
	"modscan/internal/signatures"
	"modscan/internal/ui"
)

func runTUI(ctx context.Context, args []string) error {
	fs, c := newFlagSet("tui")
	interval := fs.Duration("interval", 0, "Dashboard refresh interval (e.g. 500ms, 2s)")
	fs.Parse(args)

	a, err := setup(ctx, c, true)
	if err != nil {
		return err
	}
	defer a.Close()

	state := ui.NewAppState()
	state.RefreshInt = a.cfg.UI.Refresh
	if *interval > 0 {
		state.RefreshInt = *interval
	}
	state.Report = a.report

	return ui.Run(ctx, state, a.eng)
}

func runProcs(ctx context.Context, args []string) error {
	fs, c := newFlagSet("procs")
	platform := fs.String("platform", "all", "java, bedrock or all")
	fs.Parse(args)

	platforms := signatures.Platforms()
	if *platform != "all" {
		p, err := signatures.ParsePlatform(*platform)
		if err != nil {
			return err
		}
		platforms = []signatures.Platform{p}
	}

	a, err := setup(ctx, c, false)
	if err != nil {
		return err
	}
	defer a.Close()

	reports := make([]*shared.ScanReport, 0, len(platforms))
	for _, p := range platforms {
		r := a.eng.ScanProcesses(ctx, p)
		a.record("scan_processes", r)
		reports = append(reports, r)
	}

	if c.json {
		return printJSON(reports)
	}
	for _, r := range reports {
		printReport(r)
	}
	return nil
}

func runFiles(ctx context.Context, args []string) error {
	fs, c := newFlagSet("files")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: modscan files <directory>")
	}

	a, err := setup(ctx, c, false)
	if err != nil {
		return err
	}
	defer a.Close()

	r := a.eng.ScanFilesystem(ctx, fs.Arg(0))
	a.record("scan_filesystem", r)
	if c.json {
		return printJSON(r)
	}
	printReport(r)
	return nil
}

func runVpn(ctx context.Context, args []string) error {
	fs, c := newFlagSet("vpn")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("usage: modscan vpn <ip>...")
	}

	a, err := setup(ctx, c, false)
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		verdicts []shared.VpnVerdict
		errs     []error
	)
	for _, ip := range fs.Args() {
		v, err := a.eng.CheckVpn(ctx, ip)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		a.record("check_vpn", v)
		verdicts = append(verdicts, v)
	}

	if c.json {
		if err := printJSON(verdicts); err != nil {
			return err
		}
	} else {
		for _, v := range verdicts {
			printVpn(v)
		}
	}
	return errors.Join(errs...)
}

func runURL(ctx context.Context, args []string) error {
	fs, c := newFlagSet("url")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("usage: modscan url <url>...")
	}

	a, err := setup(ctx, c, false)
	if err != nil {
		return err
	}
	defer a.Close()

	verdicts := make([]shared.UrlVerdict, 0, fs.NArg())
	for _, raw := range fs.Args() {
		v := a.eng.ScanURL(ctx, raw)
		a.record("scan_url", v)
		verdicts = append(verdicts, v)
	}

	if c.json {
		return printJSON(verdicts)
	}
	for _, v := range verdicts {
		printURL(v)
	}
	return nil
}

func runRemote(ctx context.Context, args []string) error {
	fs, c := newFlagSet("remote")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("usage: modscan remote <host[:port]>...")
	}

	a, err := setup(ctx, c, false)
	if err != nil {
		return err
	}
	defer a.Close()

	reports := a.eng.RemoteScanAll(ctx, fs.Args())
	for _, r := range reports {
		a.record("remote_scan", r)
	}

	if c.json {
		return printJSON(reports)
	}
	for _, r := range reports {
		printReport(r)
	}
	return nil
}

func runConns(ctx context.Context, args []string) error {
	fs, c := newFlagSet("conns")
	fs.Parse(args)

	a, err := setup(ctx, c, false)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.eng.AuditConnections(ctx)
	if err != nil {
		return err
	}
	a.record("audit_connections", out)

	if c.json {
		return printJSON(out)
	}
	printConnections(out)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs, c := newFlagSet("serve")
	listen := fs.String("listen", "", "Listen address (default from config, :5000)")
	fs.Parse(args)

	a, err := setup(ctx, c, false)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Remote.Listen
	if *listen != "" {
		addr = *listen
	}

	handler := remote.NewHandler(a.eng.LocalHits, a.log)
	a.log.Info("serving peer scans", zap.String("addr", addr))
	return remote.Serve(ctx, addr, handler, a.log)
}

func runHistory(ctx context.Context, args []string) error {
	fs, c := newFlagSet("history")
	n := fs.Int("n", 20, "Number of recent entries")
	fs.Parse(args)

	a, err := setup(ctx, c, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.store == nil {
		return errors.New("history is disabled or unavailable")
	}
	st, err := a.eng.Stats()
	if err != nil {
		return err
	}
	recent, err := a.eng.Recent(*n)
	if err != nil {
		return err
	}

	if c.json {
		return printJSON(struct {
			Stats  shared.Stats `json:"stats"`
			Recent any          `json:"recent"`
		}{st, recent})
	}
	printHistory(st, recent)
	return nil
}

func authClient(a *app) (*auth.Client, error) {
	return auth.NewClient(a.cfg.Auth.BaseURL, 10*time.Second, a.log)
}

func runLogin(ctx context.Context, args []string) error {
	fs, c := newFlagSet("login")
	user := fs.String("user", "", "Username")
	fs.Parse(args)

	a, err := setup(ctx, c, false)
	if err != nil {
		return err
	}
	defer a.Close()

	client, err := authClient(a)
	if err != nil {
		return err
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	ok, err := client.Login(ctx, *user, password)
	if err != nil {
		return err
	}
	if c.json {
		return printJSON(map[string]bool{"success": ok})
	}
	kv("user", *user, "success", fmt.Sprint(ok))
	if !ok {
		return errors.New("invalid credentials")
	}
	return nil
}

func runLicense(ctx context.Context, args []string) error {
	fs, c := newFlagSet("license")
	key := fs.String("key", "", "License key")
	fs.Parse(args)

	a, err := setup(ctx, c, false)
	if err != nil {
		return err
	}
	defer a.Close()

	client, err := authClient(a)
	if err != nil {
		return err
	}
	ok, err := client.ValidateLicense(ctx, *key)
	if err != nil {
		return err
	}
	if c.json {
		return printJSON(map[string]bool{"valid": ok})
	}
	kv("valid", fmt.Sprint(ok))
	if !ok {
		return errors.New("invalid license key")
	}
	return nil
}

// readPassword takes MODSCAN_PASSWORD when set, otherwise prompts without
// echo on an interactive terminal.
func readPassword() (string, error) {
	if p := os.Getenv("MODSCAN_PASSWORD"); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal for password prompt; set MODSCAN_PASSWORD")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}
