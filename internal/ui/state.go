package ui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"

	"modscan/internal/shared"
	"modscan/internal/signatures"
)

type AppMode int

const (
	ModeDashboard AppMode = iota
	ModePrompt
	ModeResults
)

// Engine is what the UI needs from the detection engine.
type Engine interface {
	ScanProcesses(ctx context.Context, platform signatures.Platform) *shared.ScanReport
	ScanFilesystem(ctx context.Context, root string) *shared.ScanReport
	CheckVpn(ctx context.Context, ip string) (shared.VpnVerdict, error)
	ScanURL(ctx context.Context, raw string) shared.UrlVerdict
	RemoteScan(ctx context.Context, address string) *shared.ScanReport
	AuditConnections(ctx context.Context) ([]shared.ConnectionVerdict, error)
	Stats() (shared.Stats, error)
}

// ResultLine is one row of the results view. Pid is non-zero when the row
// refers to a live process that can be terminated.
type ResultLine struct {
	Text string
	Pid  int
	Name string
}

type AppState struct {
	Screen tcell.Screen

	LastError  string
	LastUpdate time.Time
	RefreshInt time.Duration
	Stats      shared.Stats

	Mode        AppMode
	SelectedIdx int

	// Prompt mode.
	PromptItem  int
	PromptInput string

	// Results mode.
	Title     string
	Lines     []ResultLine
	ResultIdx int
	Busy      bool
	BusySince time.Time

	ConfirmKill         bool
	ConfirmKillTimeout  time.Duration
	ConfirmKillPID      int
	ConfirmKillDeadline time.Time

	// Kill terminates a process; defaults to telemetry.KillProcess.
	Kill func(pid int) error
	// Report receives every finished operation when set.
	Report *shared.JSONLogger
}

func NewAppState() *AppState {
	return &AppState{
		RefreshInt:         time.Second,
		ConfirmKillTimeout: 3 * time.Second,
		ResultIdx:          -1,
	}
}

/* ---------- helpers ---------- */

func PutString(s tcell.Screen, x, y int, text string) {
	putStyled(s, x, y, text, tcell.StyleDefault)
}

func putStyled(s tcell.Screen, x, y int, text string, style tcell.Style) {
	col := 0
	for _, r := range text {
		s.SetContent(x+col, y, r, nil, style)
		col++
	}
}

func TruncateToWidth(s string, w int) string {
	r := []rune(s)
	if w <= 0 || len(r) <= w {
		return s
	}
	if w <= 3 {
		return string(r[:w])
	}
	return string(r[:w-3]) + "..."
}

func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
