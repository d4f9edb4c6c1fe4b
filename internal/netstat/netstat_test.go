package netstat

import (
	"context"
	"testing"

	"modscan/internal/shared"
)

func TestEstablishedFiltersStateAndInternal(t *testing.T) {
	conns := []shared.ConnectionInfo{
		{Pid: 1, RemoteAddress: "203.0.113.9", State: shared.StateEstablished},
		{Pid: 2, RemoteAddress: "10.0.0.5", State: shared.StateEstablished},
		{Pid: 3, RemoteAddress: "127.0.0.1", State: shared.StateEstablished},
		{Pid: 4, RemoteAddress: "198.51.100.1", State: "TIME_WAIT"},
		{Pid: 5, RemoteAddress: "0.0.0.0", State: "LISTENING"},
		{Pid: 6, RemoteAddress: "2001:4860:4860::8888", State: shared.StateEstablished},
	}

	got := Established(conns)
	if len(got) != 2 {
		t.Fatalf("got %d connections, want 2: %+v", len(got), got)
	}
	if got[0].Pid != 1 || got[1].Pid != 6 {
		t.Fatalf("unexpected pids: %d, %d", got[0].Pid, got[1].Pid)
	}
}

func TestSourceFunc(t *testing.T) {
	src := SourceFunc(func(ctx context.Context) ([]shared.ConnectionInfo, error) {
		return []shared.ConnectionInfo{{Pid: 7}}, nil
	})
	conns, err := src.Connections(context.Background())
	if err != nil || len(conns) != 1 || conns[0].Pid != 7 {
		t.Fatalf("unexpected result: %v %v", conns, err)
	}
}
