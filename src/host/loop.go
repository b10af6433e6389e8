// Package host implements the per-frame orchestration spec §2 and §5
// describe: drain the PTY, advance widget animation state, then render the
// cell grid and widget pass, all on a single cooperative thread with no
// suspension points.
package host

import (
	"fmt"
	"time"

	"github.com/gogpu/wgpu/hal"

	"gputerm/src/render"
	"gputerm/src/term"
	"gputerm/src/widget"
)

// Loop ties a Terminal, a widget Manager, and a CellRenderer together into
// one frame tick. It owns none of the three — construction/teardown of the
// PTY, GPU device, and window stay the caller's responsibility (spec §1
// Non-goals: window/input layer, GPU device/surface acquisition).
type Loop struct {
	Terminal *term.Terminal
	Widgets  *widget.Manager
	Renderer *render.CellRenderer
	Font     render.Font

	lastFrame time.Time
}

// NewLoop builds a Loop from its three already-constructed components.
func NewLoop(t *term.Terminal, w *widget.Manager, r *render.CellRenderer, font render.Font) *Loop {
	return &Loop{Terminal: t, Widgets: w, Renderer: r, Font: font}
}

// Tick runs exactly one frame: drain_pty, widget update, render_grid,
// render_widgets (spec §2 control-flow diagram). now drives both the
// cursor blink timer and each widget's deltaTime.
func (l *Loop) Tick(now time.Time, encoder hal.CommandEncoder, target hal.TextureView, screenW, screenH float32) error {
	if err := l.Terminal.DrainPTY(l.Widgets); err != nil {
		return fmt.Errorf("drain pty: %w", err)
	}

	var dt float64
	if !l.lastFrame.IsZero() {
		dt = now.Sub(l.lastFrame).Seconds()
	}
	l.lastFrame = now
	l.Widgets.UpdateAll(dt)

	l.Terminal.UpdateBlink(now)
	l.applyCursor()

	prepCtx := render.RenderContext{Device: l.Renderer.Device(), Queue: l.Renderer.Queue()}
	if err := l.Widgets.PrepareAll(prepCtx); err != nil {
		return fmt.Errorf("prepare widgets: %w", err)
	}

	widgets := l.collectWidgetDraws(screenH)
	if err := l.Renderer.RenderFrame(encoder, target, screenW, screenH, l.Terminal.Grid(), widgets); err != nil {
		return fmt.Errorf("render frame: %w", err)
	}
	return nil
}

func (l *Loop) applyCursor() {
	pos := l.Terminal.CursorPos()
	visible := l.Terminal.CursorVisible() && !l.Terminal.CursorBlinkPhase()
	l.Renderer.SetCursor(pos.Col, pos.Row, visible, mapCursorStyle(l.Terminal.CursorStyle()))
}

func mapCursorStyle(s term.CursorStyle) render.CursorStyle {
	switch s {
	case term.CursorUnderline:
		return render.CursorStyleUnderline
	case term.CursorBar:
		return render.CursorStyleBar
	default:
		return render.CursorStyleBlock
	}
}

// collectWidgetDraws computes each visible widget's screen-pixel rectangle,
// applying the viewport scroll offset to Relative widgets (spec §4.4
// "accounting for scroll offset on Relative widgets").
func (l *Loop) collectWidgetDraws(screenH float32) []render.WidgetDraw {
	cellW, cellH := l.Font.CellSize()
	offset := l.Terminal.ScrollOffset()

	visible := l.Widgets.VisibleWidgets()
	draws := make([]render.WidgetDraw, 0, len(visible))
	for _, wg := range visible {
		row := wg.Y
		if wg.Mode == widget.PositionRelative {
			// Mirrors syncToGrid's screen_row = plane_row + scroll_offset:
			// wg.Y tracks the plane row (OnScroll keeps it in step with
			// push_line/pop_line), so the viewport offset is added here,
			// not subtracted.
			row += offset
		}
		draws = append(draws, render.WidgetDraw{
			Plugin: wg.Plugin,
			PixelX: float32(wg.X) * cellW,
			PixelY: float32(row) * cellH,
			PixelW: float32(wg.W) * cellW,
			PixelH: float32(wg.H) * cellH,
		})
	}
	return draws
}
