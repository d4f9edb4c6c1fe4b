// Package engine is the single entry point the CLI, the TUI and the peer
// server use to run scans and checks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"modscan/internal/fsscan"
	"modscan/internal/history"
	"modscan/internal/metrics"
	"modscan/internal/netstat"
	"modscan/internal/procscan"
	"modscan/internal/remote"
	"modscan/internal/reputation"
	"modscan/internal/shared"
	"modscan/internal/signatures"
)

const remoteConcurrency = 4

// Deps are the components the engine routes to. History and Metrics are
// optional.
type Deps struct {
	Signatures *signatures.Database
	Processes  *procscan.Scanner
	Files      *fsscan.Scanner
	// Vpn is called once, on the first VPN check, so the reputation list is
	// only downloaded when needed.
	Vpn         func() *reputation.VpnChecker
	Urls        *reputation.UrlScanner
	Remote      *remote.Client
	Connections netstat.Source
	History     *history.Store
	Metrics     *metrics.Provider
	Log         *zap.Logger

	// FilesystemTimeout bounds a filesystem walk; zero means no limit.
	FilesystemTimeout time.Duration
}

type Engine struct {
	db      *signatures.Database
	procs   *procscan.Scanner
	files   *fsscan.Scanner
	vpn     func() *reputation.VpnChecker
	urls    *reputation.UrlScanner
	remote  *remote.Client
	conns   netstat.Source
	history *history.Store
	metrics *metrics.Provider
	tracer  trace.Tracer
	log     *zap.Logger

	fsTimeout time.Duration
}

func New(d Deps) *Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Noop()
	}
	e := &Engine{
		db:        d.Signatures,
		procs:     d.Processes,
		files:     d.Files,
		urls:      d.Urls,
		remote:    d.Remote,
		conns:     d.Connections,
		history:   d.History,
		metrics:   d.Metrics,
		tracer:    d.Metrics.Tracer(),
		log:       d.Log,
		fsTimeout: d.FilesystemTimeout,
	}
	if d.Vpn != nil {
		e.vpn = sync.OnceValue(d.Vpn)
	}
	return e
}

var errNotConfigured = errors.New("component not configured")

func (e *Engine) Signatures() *signatures.Database {
	return e.db
}

// ScanProcesses matches running processes against one platform's signatures.
func (e *Engine) ScanProcesses(ctx context.Context, platform signatures.Platform) *shared.ScanReport {
	ctx, span := e.tracer.Start(ctx, "engine.scan_processes",
		trace.WithAttributes(attribute.String("platform", string(platform))))
	defer span.End()

	if e.procs == nil {
		return e.finishReport(ctx, span, unavailable(shared.KindProcess, string(platform)))
	}
	return e.finishReport(ctx, span, e.procs.Scan(ctx, platform))
}

// ScanFilesystem walks root and matches file names.
func (e *Engine) ScanFilesystem(ctx context.Context, root string) *shared.ScanReport {
	ctx, span := e.tracer.Start(ctx, "engine.scan_filesystem")
	defer span.End()

	if e.files == nil {
		return e.finishReport(ctx, span, unavailable(shared.KindFilesystem, root))
	}
	if e.fsTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.fsTimeout)
		defer cancel()
	}
	return e.finishReport(ctx, span, e.files.Scan(ctx, root))
}

// RemoteScan asks one peer for its hits.
func (e *Engine) RemoteScan(ctx context.Context, address string) *shared.ScanReport {
	ctx, span := e.tracer.Start(ctx, "engine.remote_scan",
		trace.WithAttributes(attribute.String("address", address)))
	defer span.End()

	if e.remote == nil {
		return e.finishReport(ctx, span, unavailable(shared.KindRemote, address))
	}
	return e.finishReport(ctx, span, e.remote.Scan(ctx, address))
}

// RemoteScanAll scans several peers concurrently. Reports keep input order.
func (e *Engine) RemoteScanAll(ctx context.Context, addresses []string) []*shared.ScanReport {
	out := make([]*shared.ScanReport, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(remoteConcurrency)
	for i, addr := range addresses {
		g.Go(func() error {
			out[i] = e.RemoteScan(gctx, addr)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// LocalHits scans processes for every platform and returns the union of
// hits. It fails only when every platform scan failed.
func (e *Engine) LocalHits(ctx context.Context) ([]shared.DetectionHit, error) {
	hits := make([]shared.DetectionHit, 0)
	var failures []error
	platforms := signatures.Platforms()
	for _, p := range platforms {
		r := e.ScanProcesses(ctx, p)
		if r.Failure != nil {
			failures = append(failures, fmt.Errorf("%s: %w", p, r.Failure))
		}
		hits = append(hits, r.Hits...)
	}
	if len(failures) == len(platforms) {
		return nil, errors.Join(failures...)
	}
	return hits, nil
}

// CheckVpn classifies ip as VPN/proxy. Only invalid input is an error.
func (e *Engine) CheckVpn(ctx context.Context, ip string) (shared.VpnVerdict, error) {
	ctx, span := e.tracer.Start(ctx, "engine.check_vpn")
	defer span.End()

	if e.vpn == nil {
		return shared.VpnVerdict{}, errNotConfigured
	}
	ip, err := reputation.ValidateAddress(ip)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return shared.VpnVerdict{}, err
	}
	v, err := e.vpn().Check(ctx, ip)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return v, err
	}

	e.metrics.RecordVpnCheck(ctx, v.Flagged, v.Source)
	status := "clean"
	if v.Flagged {
		status = "flagged"
	} else if v.Failure != nil {
		status = "error"
	}
	e.record(history.Entry{
		ID:      uuid.New().String(),
		Kind:    history.KindVpn,
		Target:  v.Address,
		Status:  status,
		Flagged: v.Flagged,
	})
	return v, nil
}

// ScanURL classifies a URL.
func (e *Engine) ScanURL(ctx context.Context, raw string) shared.UrlVerdict {
	ctx, span := e.tracer.Start(ctx, "engine.scan_url")
	defer span.End()

	var v shared.UrlVerdict
	if e.urls == nil {
		v = shared.UrlVerdict{URL: raw, Status: shared.UrlError, Reason: errNotConfigured.Error()}
	} else {
		v = e.urls.ScanURL(ctx, raw)
	}
	if v.Status == shared.UrlError {
		span.SetStatus(codes.Error, v.Reason)
	}

	e.metrics.RecordUrlScan(ctx, string(v.Status))
	e.record(history.Entry{
		ID:      uuid.New().String(),
		Kind:    history.KindURL,
		Target:  raw,
		Status:  string(v.Status),
		Flagged: v.Status == shared.UrlSuspicious,
	})
	return v
}

// AuditConnections VPN-checks the external peers of established TCP
// connections on this host.
func (e *Engine) AuditConnections(ctx context.Context) ([]shared.ConnectionVerdict, error) {
	ctx, span := e.tracer.Start(ctx, "engine.audit_connections")
	defer span.End()

	if e.conns == nil || e.vpn == nil {
		return nil, errNotConfigured
	}
	conns, err := e.conns.Connections(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	external := netstat.Established(conns)
	span.SetAttributes(attribute.Int("connections", len(external)))
	if len(external) == 0 {
		return nil, nil
	}

	out, err := e.vpn().AuditConnections(ctx, external)
	for _, cv := range out {
		e.metrics.RecordVpnCheck(ctx, cv.Verdict.Flagged, cv.Verdict.Source)
	}
	return out, err
}

// Stats returns dashboard totals. Without a history store they are zero.
func (e *Engine) Stats() (shared.Stats, error) {
	if e.history == nil {
		return shared.Stats{}, nil
	}
	return e.history.Stats()
}

func (e *Engine) Recent(n int) ([]history.Entry, error) {
	if e.history == nil {
		return nil, nil
	}
	return e.history.Recent(n)
}

func (e *Engine) finishReport(ctx context.Context, span trace.Span, r *shared.ScanReport) *shared.ScanReport {
	status := r.Status()
	span.SetAttributes(
		attribute.String("status", status),
		attribute.Int("hits", len(r.Hits)),
		attribute.Int("skipped", r.Skipped),
	)
	if r.Failure != nil {
		span.SetStatus(codes.Error, r.Failure.Error())
	}

	e.metrics.RecordScan(ctx, string(r.Kind), status, len(r.Hits), float64(r.Duration().Milliseconds()))
	e.record(history.FromReport(r))
	return r
}

func (e *Engine) record(entry history.Entry) {
	if e.history == nil {
		return
	}
	if err := e.history.Record(entry); err != nil {
		e.log.Warn("history write failed", zap.String("kind", entry.Kind), zap.Error(err))
	}
}

func unavailable(kind shared.ScanKind, target string) *shared.ScanReport {
	return shared.NewReport(kind, target).Fail(shared.NewFailure(shared.FailureInvalidInput, errNotConfigured))
}
