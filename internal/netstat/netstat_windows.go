//go:build windows
// +build windows

package netstat

import (
	"context"
	"fmt"
	"net/netip"
	"unsafe"

	"golang.org/x/sys/windows"

	"modscan/internal/shared"
)

var (
	iphlpapi           = windows.NewLazySystemDLL("iphlpapi.dll")
	procGetExtendedTcp = iphlpapi.NewProc("GetExtendedTcpTable")
)

const (
	afInet                = 2
	afInet6               = 23
	tcpTableOwnerPIDAll   = 5
	errInsufficientBuffer = 122
)

type tcpRow4 struct {
	State      uint32
	LocalAddr  [4]byte
	LocalPort  uint32
	RemoteAddr [4]byte
	RemotePort uint32
	OwningPID  uint32
}

type tcpRow6 struct {
	State         uint32
	LocalAddr     [16]byte
	LocalScopeId  uint32
	LocalPort     uint32
	RemoteAddr    [16]byte
	RemoteScopeId uint32
	RemotePort    uint32
	OwningPID     uint32
}

func hostConnections(ctx context.Context) ([]shared.ConnectionInfo, error) {
	v4, err := tcpTable(afInet)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	v6, err := tcpTable(afInet6)
	if err != nil {
		// Hosts without an IPv6 stack still produce a usable v4 table.
		return v4, nil
	}
	return append(v4, v6...), nil
}

func tcpTable(family uint32) ([]shared.ConnectionInfo, error) {
	var size uint32
	r0, _, _ := procGetExtendedTcp.Call(
		0,
		uintptr(unsafe.Pointer(&size)),
		0,
		uintptr(family),
		uintptr(tcpTableOwnerPIDAll),
		0,
	)
	if r0 != errInsufficientBuffer && r0 != 0 {
		return nil, fmt.Errorf("GetExtendedTcpTable size query failed: %d", r0)
	}
	if size == 0 {
		return nil, nil
	}

	buf := make([]byte, size)
	r0, _, e1 := procGetExtendedTcp.Call(
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&size)),
		0,
		uintptr(family),
		uintptr(tcpTableOwnerPIDAll),
		0,
	)
	if r0 != 0 {
		return nil, fmt.Errorf("GetExtendedTcpTable failed: %v (code=%d)", e1, r0)
	}

	base := unsafe.Pointer(&buf[0])
	num := *(*uint32)(base)
	first := unsafe.Add(base, unsafe.Sizeof(num))

	conns := make([]shared.ConnectionInfo, 0, num)
	if family == afInet {
		rows := unsafe.Slice((*tcpRow4)(first), num)
		for _, r := range rows {
			conns = append(conns, shared.ConnectionInfo{
				Pid:           int(r.OwningPID),
				LocalAddress:  netip.AddrFrom4(r.LocalAddr).String(),
				LocalPort:     ntohs(r.LocalPort),
				RemoteAddress: netip.AddrFrom4(r.RemoteAddr).String(),
				RemotePort:    ntohs(r.RemotePort),
				State:         tcpState(r.State),
			})
		}
		return conns, nil
	}

	rows := unsafe.Slice((*tcpRow6)(first), num)
	for _, r := range rows {
		conns = append(conns, shared.ConnectionInfo{
			Pid:           int(r.OwningPID),
			LocalAddress:  netip.AddrFrom16(r.LocalAddr).Unmap().String(),
			LocalPort:     ntohs(r.LocalPort),
			RemoteAddress: netip.AddrFrom16(r.RemoteAddr).Unmap().String(),
			RemotePort:    ntohs(r.RemotePort),
			State:         tcpState(r.State),
		})
	}
	return conns, nil
}

func ntohs(p uint32) int {
	v := uint16(p)
	return int((v >> 8) | (v << 8))
}

var tcpStates = [...]string{
	1:  "CLOSED",
	2:  "LISTENING",
	3:  "SYN_SENT",
	4:  "SYN_RECEIVED",
	5:  shared.StateEstablished,
	6:  "FIN_WAIT_1",
	7:  "FIN_WAIT_2",
	8:  "CLOSE_WAIT",
	9:  "CLOSING",
	10: "LAST_ACK",
	11: "TIME_WAIT",
	12: "DELETE_TCB",
}

func tcpState(s uint32) string {
	if s == 0 || int(s) >= len(tcpStates) {
		return "UNKNOWN"
	}
	return tcpStates[s]
}
