package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"modscan/internal/config"
	"modscan/internal/engine"
	"modscan/internal/fsscan"
	"modscan/internal/history"
	"modscan/internal/logging"
	"modscan/internal/metrics"
	"modscan/internal/netstat"
	"modscan/internal/procscan"
	"modscan/internal/remote"
	"modscan/internal/reputation"
	"modscan/internal/shared"
	"modscan/internal/signatures"
	"modscan/internal/telemetry"
)

const defaultConfigFile = "modscan.yaml"

type commonFlags struct {
	config string
	json   bool
	report string
}

func newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = usage
	c := &commonFlags{}
	fs.StringVar(&c.config, "config", "", "Path to YAML configuration")
	fs.BoolVar(&c.json, "json", false, "JSON output")
	fs.StringVar(&c.report, "report", "", "Append results to a JSON array file")
	return fs, c
}

type app struct {
	cfg     *config.Config
	log     *zap.Logger
	eng     *engine.Engine
	store   *history.Store
	metrics *metrics.Provider
	report  *shared.JSONLogger
}

// setup loads configuration and builds the engine. forTUI keeps log output
// off the terminal unless a log file is configured.
func setup(ctx context.Context, c *commonFlags, forTUI bool) (*app, error) {
	path := c.config
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logCfg := logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development, File: cfg.Log.File}
	var log *zap.Logger
	if forTUI {
		log, err = logging.ForTUI(logCfg)
	} else {
		log, err = logging.New(logCfg)
	}
	if err != nil {
		return nil, err
	}

	db, err := signatures.Load(cfg.Signatures.File)
	if err != nil {
		return nil, err
	}
	log.Debug("signatures loaded", zap.Int("labels", db.Size()), zap.String("file", cfg.Signatures.File))

	policy, err := fsscan.ParseFaultPolicy(cfg.Filesystem.FaultPolicy)
	if err != nil {
		return nil, err
	}

	mp, err := metrics.NewProvider(ctx, metrics.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  "modscan",
		Version:  version,
	}, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, metrics: mp}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path, log)
		if err != nil {
			log.Warn("history disabled", zap.Error(err))
		} else {
			a.store = store
		}
	}

	if c.report != "" {
		if a.report, err = shared.NewJSONLogger(c.report, true); err != nil {
			a.Close()
			return nil, err
		}
	}

	repOpts := reputation.VpnOptions{
		ListURL:   cfg.Reputation.VpnListURL,
		LookupURL: cfg.Reputation.LookupURL,
		Timeout:   cfg.Reputation.Timeout,
	}

	a.eng = engine.New(engine.Deps{
		Signatures: db,
		Processes:  procscan.New(db, telemetry.NewSource(log), log),
		Files:      fsscan.New(db, fsscan.WithPolicy(policy), fsscan.WithLogger(log)),
		Vpn: func() *reputation.VpnChecker {
			return reputation.NewVpnChecker(ctx, repOpts, log)
		},
		Urls: reputation.NewUrlScanner(reputation.NewWhoisRegistrar(cfg.Whois.Timeout), log),
		Remote: remote.NewClient(cfg.Remote.Timeout,
			remote.WithPort(cfg.Remote.Port),
			remote.WithLogger(log)),
		Connections:       netstat.Host(),
		History:           a.store,
		Metrics:           mp,
		Log:               log,
		FilesystemTimeout: cfg.Filesystem.Timeout,
	})

	return a, nil
}

func (a *app) Close() {
	if a.report != nil {
		_ = a.report.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	a.metrics.Shutdown(context.Background())
	_ = a.log.Sync()
}

func (a *app) record(op string, v any) {
	if a.report == nil {
		return
	}
	if err := a.report.Write(op, v); err != nil {
		a.log.Warn("report write failed", zap.Error(err))
	}
}
