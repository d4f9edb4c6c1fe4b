//go:build windows
// +build windows

package telemetry

import (
	"context"
	"fmt"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"modscan/internal/shared"
)

type windowsSource struct {
	log *zap.Logger
}

// NewSource returns the ToolHelp/WMI backed process source.
func NewSource(log *zap.Logger) Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &windowsSource{log: log}
}

func (s *windowsSource) Processes(ctx context.Context) ([]shared.ProcessRecord, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("process snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	if err := windows.Process32First(snap, &entry); err != nil {
		return nil, fmt.Errorf("process snapshot: %w", err)
	}

	// One WMI round trip per scan. When WMI is unavailable every record keeps
	// a nil CommandLine and only name matching applies.
	cmdlines, err := queryCommandLines()
	if err != nil {
		s.log.Debug("command line introspection unavailable", zap.Error(err))
	}

	var procs []shared.ProcessRecord
	for {
		if ctx.Err() != nil {
			return procs, ctx.Err()
		}

		pid := int(entry.ProcessID)
		if pid != 0 {
			rec := shared.ProcessRecord{
				Pid:  pid,
				Name: windows.UTF16ToString(entry.ExeFile[:]),
			}
			if cl, ok := cmdlines[pid]; ok && cl != "" {
				rec.CommandLine = shared.StringPtr(cl)
			}
			procs = append(procs, rec)
		}

		if err := windows.Process32Next(snap, &entry); err != nil {
			break
		}
	}

	return procs, nil
}

func (s *windowsSource) Inspect(ctx context.Context, rec *shared.ProcessRecord) error {
	if rec.Pid == 0 || rec.Pid == 4 {
		// System Idle / System never expose an image path.
		return nil
	}

	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(rec.Pid))
	if err != nil {
		if err == windows.ERROR_INVALID_PARAMETER {
			return fmt.Errorf("%w: pid %d", ErrProcessGone, rec.Pid)
		}
		// Access denied: the record stays name-only with unknown evidence.
		return nil
	}
	defer windows.CloseHandle(h)

	if path := exePath(h); path != "" {
		rec.ImagePath = shared.StringPtr(path)
	}
	return nil
}

func exePath(h windows.Handle) string {
	size := uint32(260)
	for i := 0; i < 4; i++ {
		buf := make([]uint16, size)
		sz := size
		err := windows.QueryFullProcessImageName(h, 0, &buf[0], &sz)
		if err == nil {
			if sz > 0 {
				return windows.UTF16ToString(buf[:sz])
			}
			return ""
		}
		if size < 32768 && err == windows.ERROR_INSUFFICIENT_BUFFER {
			size *= 2
			continue
		}
		return ""
	}
	return ""
}
