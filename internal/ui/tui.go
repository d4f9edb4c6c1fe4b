package ui

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"modscan/internal/shared"
	"modscan/internal/telemetry"
)

// Run drives the terminal UI until the user quits or ctx is canceled.
// Scans run on a background goroutine; the event loop stays responsive.
func Run(ctx context.Context, app *AppState, eng Engine) error {
	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	defer s.Fini()

	app.Screen = s
	if app.RefreshInt <= 0 {
		app.RefreshInt = time.Second
	}
	if app.Kill == nil {
		app.Kill = telemetry.KillProcess
	}
	app.Mode = ModeDashboard
	app.refreshStats(eng)

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := s.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()

	jobCh := make(chan jobResult, 1)
	startJob := func(item menuItem, input string) {
		if app.Busy {
			app.LastError = "a scan is already running"
			return
		}
		app.Busy = true
		app.BusySince = time.Now()
		app.Mode = ModeResults
		app.Title = item.label
		app.Lines = nil
		app.ResultIdx = -1
		app.LastError = ""
		go func() {
			jobCh <- runJob(jobCtx, eng, item, input)
		}()
	}

	tick := time.NewTicker(app.RefreshInt)
	defer tick.Stop()

	for {
		switch app.Mode {
		case ModeDashboard, ModePrompt:
			DrawDashboard(app)
		case ModeResults:
			DrawResults(app)
		}
		s.Show()

		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			switch tev := ev.(type) {
			case *tcell.EventResize:
				s.Sync()
			case *tcell.EventKey:
				quit, item, input := app.handleKey(tev.Key(), tev.Rune(), time.Now())
				if quit {
					return nil
				}
				if item != nil {
					startJob(*item, input)
				}
			}

		case <-tick.C:
			app.expireConfirm(time.Now())

		case res := <-jobCh:
			app.finishJob(res)
		}
	}
}

// runJob runs item off the event loop and reads the updated totals with it.
func runJob(ctx context.Context, eng Engine, item menuItem, input string) jobResult {
	res := item.run(ctx, eng, input)
	if st, err := eng.Stats(); err != nil {
		res.statsErr = err
	} else {
		res.stats = &st
	}
	return res
}

func (app *AppState) refreshStats(eng Engine) {
	st, err := eng.Stats()
	if err != nil {
		app.LastError = "history: " + err.Error()
		return
	}
	app.applyStats(st)
}

func (app *AppState) applyStats(st shared.Stats) {
	app.Stats = st
	app.LastUpdate = time.Now().UTC()
}

func (app *AppState) finishJob(res jobResult) {
	app.Busy = false
	app.Title = res.title
	app.Lines = res.lines
	app.ResultIdx = -1
	switch {
	case res.statsErr != nil:
		app.LastError = "history: " + res.statsErr.Error()
	case res.stats != nil:
		app.applyStats(*res.stats)
	}
	for i, l := range app.Lines {
		if l.Pid != 0 {
			app.ResultIdx = i
			break
		}
	}
	if app.Report != nil && res.record != nil {
		if err := app.Report.Write(res.op, res.record); err != nil {
			app.LastError = "report write failed: " + err.Error()
		}
	}
}

// handleKey applies one key press. It returns quit=true to leave the UI, or
// the menu item to run with its input.
func (app *AppState) handleKey(key tcell.Key, r rune, now time.Time) (quit bool, item *menuItem, input string) {
	switch app.Mode {
	case ModeDashboard:
		switch key {
		case tcell.KeyUp:
			if app.SelectedIdx > 0 {
				app.SelectedIdx--
			}
		case tcell.KeyDown:
			if app.SelectedIdx < len(menu)-1 {
				app.SelectedIdx++
			}
		case tcell.KeyEnter:
			return app.choose(app.SelectedIdx)
		case tcell.KeyRune:
			if r == 'q' {
				return true, nil, ""
			}
			if r >= '1' && r <= '9' {
				if idx := int(r - '1'); idx < len(menu) {
					app.SelectedIdx = idx
					return app.choose(idx)
				}
			}
		}

	case ModePrompt:
		switch key {
		case tcell.KeyEscape:
			app.Mode = ModeDashboard
			app.PromptInput = ""
		case tcell.KeyEnter:
			in := strings.TrimSpace(app.PromptInput)
			if in == "" {
				app.LastError = menu[app.PromptItem].prompt + " is required"
				return false, nil, ""
			}
			app.PromptInput = ""
			return false, &menu[app.PromptItem], in
		case tcell.KeyBackspace, tcell.KeyBackspace2:
			if r := []rune(app.PromptInput); len(r) > 0 {
				app.PromptInput = string(r[:len(r)-1])
			}
		case tcell.KeyRune:
			app.PromptInput += string(r)
		}

	case ModeResults:
		switch key {
		case tcell.KeyEscape:
			if !app.Busy {
				app.Mode = ModeDashboard
				app.ConfirmKill = false
			}
		case tcell.KeyUp:
			app.moveResult(-1)
		case tcell.KeyDown:
			app.moveResult(1)
		case tcell.KeyRune:
			switch r {
			case 'q':
				return true, nil, ""
			case 'k', 'K':
				app.killSelected(now)
			}
		}
	}
	return false, nil, ""
}

func (app *AppState) choose(idx int) (bool, *menuItem, string) {
	if idx < 0 || idx >= len(menu) {
		return false, nil, ""
	}
	if menu[idx].prompt != "" {
		app.Mode = ModePrompt
		app.PromptItem = idx
		app.PromptInput = ""
		app.LastError = ""
		return false, nil, ""
	}
	return false, &menu[idx], ""
}

func (app *AppState) moveResult(delta int) {
	if len(app.Lines) == 0 {
		return
	}
	i := app.ResultIdx + delta
	if i < 0 || i >= len(app.Lines) {
		return
	}
	app.ResultIdx = i
	app.ConfirmKill = false
}

// killSelected asks for confirmation on the first press and terminates the
// process on a second press for the same PID before the deadline.
func (app *AppState) killSelected(now time.Time) {
	if app.ResultIdx < 0 || app.ResultIdx >= len(app.Lines) {
		return
	}
	line := app.Lines[app.ResultIdx]
	if line.Pid == 0 {
		app.LastError = "selected line has no local process"
		return
	}

	if !app.ConfirmKill || app.ConfirmKillPID != line.Pid || now.After(app.ConfirmKillDeadline) {
		app.ConfirmKill = true
		app.ConfirmKillPID = line.Pid
		app.ConfirmKillDeadline = now.Add(app.ConfirmKillTimeout)
		app.LastError = "press k again to terminate PID " + strconv.Itoa(line.Pid) + " (" + line.Name + ")"
		return
	}

	app.ConfirmKill = false
	kill := app.Kill
	if kill == nil {
		kill = telemetry.KillProcess
	}
	if err := kill(line.Pid); err != nil {
		app.LastError = "Kill failed: " + err.Error()
		return
	}
	app.LastError = "Killed PID " + strconv.Itoa(line.Pid) + " (" + line.Name + ")"
	for i := range app.Lines {
		if app.Lines[i].Pid == line.Pid {
			app.Lines[i].Text += "  [terminated]"
			app.Lines[i].Pid = 0
		}
	}
}

func (app *AppState) expireConfirm(now time.Time) {
	if app.ConfirmKill && now.After(app.ConfirmKillDeadline) {
		app.ConfirmKill = false
		app.LastError = ""
	}
}
