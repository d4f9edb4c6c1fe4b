//go:build !windows
// +build !windows

package telemetry

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"modscan/internal/shared"
)

type psSource struct {
	log *zap.Logger
}

// NewSource returns the gopsutil backed process source.
func NewSource(log *zap.Logger) Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &psSource{log: log}
}

func (s *psSource) Processes(ctx context.Context) ([]shared.ProcessRecord, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pids: %w", err)
	}

	procs := make([]shared.ProcessRecord, 0, len(pids))
	for _, pid := range pids {
		if pid == 0 {
			continue
		}
		procs = append(procs, shared.ProcessRecord{Pid: int(pid)})
	}
	return procs, nil
}

func (s *psSource) Inspect(ctx context.Context, rec *shared.ProcessRecord) error {
	p, err := process.NewProcessWithContext(ctx, int32(rec.Pid))
	if err != nil {
		return fmt.Errorf("%w: pid %d: %v", ErrProcessGone, rec.Pid, err)
	}

	if rec.Name == "" {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			return fmt.Errorf("%w: pid %d name: %v", ErrProcessGone, rec.Pid, err)
		}
		rec.Name = name
	}

	if exe, err := p.ExeWithContext(ctx); err == nil && exe != "" {
		rec.ImagePath = shared.StringPtr(exe)
	}
	// Kernel threads and processes owned by other users without privileges
	// report an empty or unreadable cmdline: leave it nil.
	if cmd, err := p.CmdlineWithContext(ctx); err == nil && cmd != "" {
		rec.CommandLine = shared.StringPtr(cmd)
	}
	return nil
}
