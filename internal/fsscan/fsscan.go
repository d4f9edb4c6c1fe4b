// Package fsscan walks a directory tree and matches file names against the
// combined signature set.
package fsscan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"modscan/internal/shared"
	"modscan/internal/signatures"
)

// FaultPolicy decides what an I/O error during the walk does.
type FaultPolicy string

const (
	// AbortOnError stops the walk at the first I/O error and reports the hits
	// collected so far together with a bulk-fault failure.
	AbortOnError FaultPolicy = "abort"
	// SkipOnError skips the unreadable entry, counts it and keeps walking.
	SkipOnError FaultPolicy = "skip"
)

// ParseFaultPolicy accepts "abort", "skip" or "" (abort).
func ParseFaultPolicy(s string) (FaultPolicy, error) {
	switch FaultPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", AbortOnError:
		return AbortOnError, nil
	case SkipOnError:
		return SkipOnError, nil
	}
	return "", shared.Invalid("unknown fault policy %q", s)
}

type Scanner struct {
	db     *signatures.Database
	policy FaultPolicy
	open   func(root string) fs.FS
	log    *zap.Logger
}

type Option func(*Scanner)

func WithPolicy(p FaultPolicy) Option {
	return func(s *Scanner) { s.policy = p }
}

// WithFS replaces os.DirFS, mainly for fault injection.
func WithFS(open func(root string) fs.FS) Option {
	return func(s *Scanner) { s.open = open }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Scanner) {
		if log != nil {
			s.log = log
		}
	}
}

func New(db *signatures.Database, opts ...Option) *Scanner {
	s := &Scanner{
		db:     db,
		policy: AbortOnError,
		open:   os.DirFS,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Scan walks root recursively. Each file whose name contains a keyword of a
// signature yields one hit for that label, with the absolute path as
// evidence. Directories are traversed but never matched.
func (s *Scanner) Scan(ctx context.Context, root string) *shared.ScanReport {
	report := shared.NewReport(shared.KindFilesystem, root)

	if strings.TrimSpace(root) == "" {
		return report.Fail(shared.NewFailure(shared.FailureInvalidInput, shared.Invalid("empty root path")))
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return report.Fail(shared.NewFailure(shared.FailureInvalidInput, shared.Invalid("root path %q: %v", root, err)))
	}
	report.Target = abs

	sigs := s.db.Combined()
	fsys := s.open(abs)

	walkErr := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			if s.policy == SkipOnError && path != "." {
				report.Skipped++
				s.log.Debug("unreadable entry skipped", zap.String("path", path), zap.Error(err))
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}

		report.Inspected++
		name := d.Name()
		for _, sig := range sigs {
			if sig.Matches(name) {
				report.Hits = append(report.Hits, shared.DetectionHit{
					Label:    sig.Label,
					Evidence: filepath.Join(abs, filepath.FromSlash(path)),
					Source:   shared.SourceFile,
				})
			}
		}
		return nil
	})

	if walkErr != nil {
		kind := shared.FailureBulk
		if ctx.Err() != nil {
			kind = shared.FailureCanceled
		}
		s.log.Warn("filesystem scan aborted",
			zap.String("root", abs),
			zap.Int("hits", len(report.Hits)),
			zap.Error(walkErr))
		return report.Fail(shared.NewFailure(kind, walkErr))
	}

	s.log.Info("filesystem scan complete",
		zap.String("root", abs),
		zap.Int("files", report.Inspected),
		zap.Int("skipped", report.Skipped),
		zap.Int("hits", len(report.Hits)))

	return report.Finish()
}
