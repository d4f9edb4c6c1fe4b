//go:build !windows
// +build !windows

package telemetry

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// KillProcess terminates the process with the given PID.
func KillProcess(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid: %d", pid)
	}

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return fmt.Errorf("open process: %w", err)
	}
	if err := p.KillWithContext(context.Background()); err != nil {
		return fmt.Errorf("terminate process: %w", err)
	}
	return nil
}
