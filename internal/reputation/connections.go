package reputation

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"modscan/internal/shared"
)

const auditConcurrency = 8

// AuditConnections VPN-checks each distinct remote address in conns.
// Callers pass connections already filtered to external peers.
func (c *VpnChecker) AuditConnections(ctx context.Context, conns []shared.ConnectionInfo) ([]shared.ConnectionVerdict, error) {
	byAddr := make(map[string][]int)
	for _, conn := range conns {
		pids := byAddr[conn.RemoteAddress]
		if !containsInt(pids, conn.Pid) {
			byAddr[conn.RemoteAddress] = append(pids, conn.Pid)
		}
	}

	addrs := make([]string, 0, len(byAddr))
	for a := range byAddr {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	out := make([]shared.ConnectionVerdict, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(auditConcurrency)

	for i, addr := range addrs {
		g.Go(func() error {
			v, err := c.Check(gctx, addr)
			if err != nil {
				v = shared.VpnVerdict{
					Address: addr,
					Failure: shared.NewFailure(shared.FailureInvalidInput, err),
				}
			}
			pids := append([]int(nil), byAddr[addr]...)
			sort.Ints(pids)
			out[i] = shared.ConnectionVerdict{RemoteAddress: addr, Pids: pids, Verdict: v}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
