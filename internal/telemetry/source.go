// Package telemetry reads live process state from the host.
package telemetry

import (
	"context"
	"errors"

	"modscan/internal/shared"
)

// ErrProcessGone is returned by Inspect when the process exited or can no
// longer be opened at all.
var ErrProcessGone = errors.New("process no longer inspectable")

// Source enumerates processes and completes their records on demand.
//
// Processes returns one record per live process; Name may be empty when the
// platform resolves it lazily. Inspect fills Name, ImagePath and CommandLine
// where the platform allows. ImagePath and CommandLine stay nil when they are
// unavailable; that is not an error. Inspect returns an error only when the
// process cannot be introspected at all.
type Source interface {
	Processes(ctx context.Context) ([]shared.ProcessRecord, error)
	Inspect(ctx context.Context, rec *shared.ProcessRecord) error
}
