package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const version = "0.3.0"

func usage() {
	fmt.Fprintf(os.Stderr, `modscan - modification tool and network reputation scanner

Usage:
  modscan [tui]                       Interactive dashboard (default)
  modscan procs [-platform java|bedrock|all]
                                      Match running processes against signatures
  modscan files <directory>           Match file names under a directory
  modscan vpn <ip>...                 Classify addresses as VPN/proxy
  modscan url <url>...                Classify URLs (keywords + WHOIS)
  modscan remote <host[:port]>...     Ask peers running 'modscan serve' for their hits
  modscan conns                       VPN-check peers of established TCP connections
  modscan serve [-listen :5000]       Serve this host's process hits to peers
  modscan history [-n 20]             Show totals and recent scans
  modscan login -user <name>          Log in (password from MODSCAN_PASSWORD or prompt)
  modscan license -key <key>          Validate a license key
  modscan version

Common flags:
  -config <path>    YAML configuration (default: modscan.yaml if present)
  -json             JSON output instead of key=value lines
  -report <path>    Append every result to a JSON array file ("-" for stdout)
`)
}

func main() {
	flag.Usage = usage

	cmd := "tui"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "tui":
		err = runTUI(ctx, args)
	case "procs":
		err = runProcs(ctx, args)
	case "files":
		err = runFiles(ctx, args)
	case "vpn":
		err = runVpn(ctx, args)
	case "url":
		err = runURL(ctx, args)
	case "remote":
		err = runRemote(ctx, args)
	case "conns":
		err = runConns(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "history":
		err = runHistory(ctx, args)
	case "login":
		err = runLogin(ctx, args)
	case "license":
		err = runLicense(ctx, args)
	case "version":
		fmt.Println("modscan", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
