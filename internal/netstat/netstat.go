// Package netstat lists the host's TCP connections with their owning PIDs.
package netstat

import (
	"context"

	"modscan/internal/shared"
)

// Source returns the current TCP connection table.
type Source interface {
	Connections(ctx context.Context) ([]shared.ConnectionInfo, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]shared.ConnectionInfo, error)

func (f SourceFunc) Connections(ctx context.Context) ([]shared.ConnectionInfo, error) {
	return f(ctx)
}

// Host returns the platform connection table.
func Host() Source {
	return SourceFunc(hostConnections)
}

// Established keeps connections in the ESTABLISHED state whose remote side is
// a routable, non-internal address.
func Established(conns []shared.ConnectionInfo) []shared.ConnectionInfo {
	out := make([]shared.ConnectionInfo, 0, len(conns))
	for _, c := range conns {
		if c.State != shared.StateEstablished {
			continue
		}
		if !shared.IsExternalIP(c.RemoteAddress) {
			continue
		}
		out = append(out, c)
	}
	return out
}
