// Package procscan matches live processes against the signature database.
package procscan

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"modscan/internal/shared"
	"modscan/internal/signatures"
	"modscan/internal/telemetry"
)

type Scanner struct {
	db     *signatures.Database
	source telemetry.Source
	log    *zap.Logger
}

func New(db *signatures.Database, source telemetry.Source, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{db: db, source: source, log: log}
}

// Scan enumerates running processes and matches each one against the
// signatures of platform. A process that cannot be inspected is skipped and
// counted; it never produces a hit. Name and command line are checked
// independently, so one process may yield two hits for the same label.
func (s *Scanner) Scan(ctx context.Context, platform signatures.Platform) *shared.ScanReport {
	report := shared.NewReport(shared.KindProcess, string(platform))

	if !s.db.Has(platform) {
		return report.Fail(shared.NewFailure(shared.FailureInvalidInput,
			shared.Invalid("unknown platform %q", platform)))
	}
	sigs := s.db.Lookup(platform)

	procs, err := s.source.Processes(ctx)
	if err != nil {
		s.log.Warn("process enumeration failed", zap.Error(err))
		return report.Fail(shared.NewFailure(failureKind(err), err))
	}

	for i := range procs {
		if err := ctx.Err(); err != nil {
			return report.Fail(shared.NewFailure(shared.FailureCanceled, err))
		}

		rec := procs[i]
		if err := s.source.Inspect(ctx, &rec); err != nil {
			report.Skipped++
			s.log.Debug("process skipped", zap.Int("pid", rec.Pid), zap.Error(err))
			continue
		}
		if rec.Name == "" {
			report.Skipped++
			continue
		}
		report.Inspected++

		report.Hits = append(report.Hits, match(rec, sigs)...)
	}

	s.log.Info("process scan complete",
		zap.String("platform", string(platform)),
		zap.Int("inspected", report.Inspected),
		zap.Int("skipped", report.Skipped),
		zap.Int("hits", len(report.Hits)))

	return report.Finish()
}

func match(rec shared.ProcessRecord, sigs []signatures.Signature) []shared.DetectionHit {
	var hits []shared.DetectionHit
	for _, sig := range sigs {
		if sig.Matches(rec.Name) {
			hits = append(hits, shared.DetectionHit{
				Label:    sig.Label,
				Evidence: rec.Evidence(),
				Pid:      rec.Pid,
				Source:   shared.SourceName,
			})
		}
		if rec.CommandLine != nil && sig.Matches(*rec.CommandLine) {
			hits = append(hits, shared.DetectionHit{
				Label:    sig.Label,
				Evidence: rec.Evidence(),
				Pid:      rec.Pid,
				Source:   shared.SourceCmdline,
			})
		}
	}
	return hits
}

func failureKind(err error) shared.FailureKind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return shared.FailureCanceled
	}
	return shared.FailureBulk
}
