//go:build !windows
// +build !windows

package netstat

import (
	"context"
	"fmt"
	"strings"

	psnet "github.com/shirou/gopsutil/v4/net"

	"modscan/internal/shared"
)

func hostConnections(ctx context.Context) ([]shared.ConnectionInfo, error) {
	stats, err := psnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, fmt.Errorf("tcp connections: %w", err)
	}

	conns := make([]shared.ConnectionInfo, 0, len(stats))
	for _, s := range stats {
		state := strings.ToUpper(s.Status)
		if state == "LISTEN" {
			state = "LISTENING"
		}
		conns = append(conns, shared.ConnectionInfo{
			Pid:           int(s.Pid),
			LocalAddress:  s.Laddr.IP,
			LocalPort:     int(s.Laddr.Port),
			RemoteAddress: s.Raddr.IP,
			RemotePort:    int(s.Raddr.Port),
			State:         state,
		})
	}
	return conns, nil
}
