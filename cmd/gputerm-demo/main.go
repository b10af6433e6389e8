// Command gputerm-demo wires the terminal core's non-GPU components
// together and runs them headlessly: a Terminal driving a real PTY/shell,
// a widget Manager dispatching the OSC 99999 extension protocol, and a
// frame ticker calling DrainPTY on a fixed interval.
//
// GPU device and surface acquisition, window creation, and input
// dispatch are an explicit Non-goal of the core (spec §1) and are left to
// whatever application embeds it; this command only demonstrates how the
// pieces fit together, printing a one-line summary of the live screen to
// stdout each tick instead of rendering it.
package main

import (
	"fmt"
	"os"
	"time"

	"gputerm/internal/termlog"
	"gputerm/src/term"
	"gputerm/src/widget"
	"gputerm/src/widget/builtin"
)

const (
	demoCols = 80
	demoRows = 24
	tickRate = 33 * time.Millisecond
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gputerm-demo:", err)
		os.Exit(1)
	}
}

func run() error {
	log := termlog.New("./gputerm-demo-logs")
	defer log.Close()

	wm := widget.NewManager(demoCols, demoRows)
	builtin.RegisterAll(wm)

	tm := term.New(demoCols, demoRows, nil, log, "demo")
	if err := tm.Start(""); err != nil {
		return fmt.Errorf("start shell: %w", err)
	}
	defer tm.Close()

	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	for range ticker.C {
		if err := tm.DrainPTY(wm); err != nil {
			return fmt.Errorf("drain pty: %w", err)
		}
		if !tm.Running() {
			return nil
		}
		tm.UpdateBlink(time.Now())
		printSummary(tm)
	}
	return nil
}

// printSummary stands in for the GPU render pass: it prints the cursor
// position and the first non-blank line of the live grid, just enough to
// show the decoder is actually parsing shell output.
func printSummary(tm *term.Terminal) {
	grid := tm.Grid()
	cols, rows := grid.Size()
	pos := tm.CursorPos()

	for row := 0; row < rows; row++ {
		line := make([]rune, 0, cols)
		for col := 0; col < cols; col++ {
			c := grid.Cell(col, row)
			r := rune(c.Glyph)
			if r == 0 {
				r = ' '
			}
			line = append(line, r)
		}
		text := trimTrailingSpace(line)
		if len(text) > 0 {
			fmt.Printf("\rcursor=(%d,%d) row %d: %s\033[K", pos.Col, pos.Row, row, string(text))
			break
		}
	}
}

func trimTrailingSpace(line []rune) []rune {
	end := len(line)
	for end > 0 && line[end-1] == ' ' {
		end--
	}
	return line[:end]
}
