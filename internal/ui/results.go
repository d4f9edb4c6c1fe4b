package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
)

var spinner = []rune{'|', '/', '-', '\\'}

func DrawResults(app *AppState) {
	s := app.Screen
	s.Clear()

	w, h := s.Size()

	title := " " + app.Title + " "
	sep := strings.Repeat("─", MinInt(len([]rune(title)), w))
	PutString(s, 0, 0, sep)
	PutString(s, 0, 1, TruncateToWidth(title, w))
	PutString(s, 0, 2, sep)

	y := 4
	if app.Busy {
		elapsed := time.Since(app.BusySince)
		frame := spinner[int(elapsed/(250*time.Millisecond))%len(spinner)]
		PutString(s, 0, y, fmt.Sprintf("%c running... %s", frame, elapsed.Round(time.Second)))
	} else {
		for i, line := range app.Lines {
			if y >= h-3 {
				PutString(s, 0, y, fmt.Sprintf("... %d more", len(app.Lines)-i))
				break
			}
			arrow := " "
			style := tcell.StyleDefault
			if i == app.ResultIdx {
				arrow = ">"
				style = style.Reverse(true)
			}
			if app.ConfirmKill && line.Pid == app.ConfirmKillPID && line.Pid != 0 {
				style = style.Foreground(tcell.ColorRed)
			}
			putStyled(s, 0, y, TruncateToWidth(arrow+" "+line.Text, w), style)
			y++
		}
	}

	if app.LastError != "" && h >= 2 {
		PutString(s, 0, h-2, TruncateToWidth("Status: "+app.LastError, w))
	}
	PutString(s, 0, h-1, TruncateToWidth("ESC return | UP/DOWN select | k terminate process | q quit", w))
}
