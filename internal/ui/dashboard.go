package ui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
)

func DrawDashboard(app *AppState) {
	s := app.Screen
	s.Clear()

	w, h := s.Size()
	nowUTC := time.Now().UTC()

	PutString(s, 0, 0,
		TruncateToWidth(fmt.Sprintf("modscan  UTC: %s", nowUTC.Format("2006-01-02 15:04:05")), w),
	)

	st := app.Stats
	PutString(s, 0, 2, TruncateToWidth(fmt.Sprintf(
		"Total scans: %d   Hacks detected: %d   VPNs blocked: %d/%d   Suspicious URLs: %d/%d",
		st.TotalScans, st.TotalHits, st.VpnFlagged, st.VpnChecks, st.UrlSuspicious, st.UrlScans), w))

	y := 4
	for i, item := range menu {
		arrow := " "
		style := tcell.StyleDefault
		if i == app.SelectedIdx {
			arrow = ">"
			style = style.Reverse(true)
		}
		putStyled(s, 0, y, TruncateToWidth(fmt.Sprintf("%s %d. %s", arrow, i+1, item.label), w), style)
		y++
	}

	if app.Mode == ModePrompt {
		y++
		label := menu[app.PromptItem].prompt
		PutString(s, 0, y, TruncateToWidth(fmt.Sprintf("%s: %s_", label, app.PromptInput), w))
	}

	if app.LastError != "" && h >= 2 {
		PutString(s, 0, h-2, TruncateToWidth("Status: "+app.LastError, w))
	}

	help := "UP/DOWN select | ENTER or 1-7 run | q quit"
	if app.Mode == ModePrompt {
		help = "type input | ENTER run | ESC cancel"
	}
	PutString(s, 0, h-1, TruncateToWidth(help, w))
}
