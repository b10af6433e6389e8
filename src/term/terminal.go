// Package term implements the terminal state machine: PTY lifecycle,
// ANSI/VT escape-sequence decoding, damage tracking, scrollback, the
// alternate screen, selection, and the private OSC 99999 dispatch point
// that the widget manager hooks into.
package term

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"gputerm/internal/termlog"
	"gputerm/src/cellgrid"
	"gputerm/src/scrollback"
)

// oscVendorID is the private OSC command number the widget protocol rides
// on (spec §4.3, §6).
const oscVendorID = 99999

// cursorBlinkInterval is the cursor blink half-period (spec §4.2).
const cursorBlinkInterval = 500 * time.Millisecond

// readChunk is the byte count at which DrainPTY stops taking further
// chunks from the reader goroutine in one tick. The chunk that crosses it
// is fed whole, and the reader goroutine reads up to 32 KiB at a time, so
// one tick can feed more than readChunk bytes.
const readChunk = 4096

// CursorStyle is the shape the renderer should draw the cursor in.
type CursorStyle uint8

const (
	CursorBlock CursorStyle = iota
	CursorUnderline
	CursorBar
)

// SelectionMode is the unit a selection drag extends by.
type SelectionMode uint8

const (
	SelectionNone SelectionMode = iota
	SelectionCharacter
	SelectionWord
	SelectionLine
)

// Pos is a (row,col) grid coordinate.
type Pos struct{ Row, Col int }

// GlyphResolver maps a decoded codepoint to a glyph index in the MSDF
// atlas's address space. Font parsing and atlas packing are an external
// collaborator (spec §1); Terminal only needs this narrow interface.
type GlyphResolver interface {
	GlyphIndex(r rune) cellgrid.GlyphIndex
}

type identityResolver struct{}

func (identityResolver) GlyphIndex(r rune) cellgrid.GlyphIndex {
	if r < 0 || uint32(r) > cellgrid.MaxMSDFGlyph {
		return cellgrid.GlyphIndex('?')
	}
	return cellgrid.GlyphIndex(r)
}

// WidgetHost is the set of widget-manager operations the terminal state
// machine needs to call into. Terminal never stores one of these as owned
// state — it is threaded through DrainPTY as a parameter (Resize syncs
// with no WidgetHost, and ScrollUp/ScrollDown take none), so the widget manager can hold a *Terminal (or not) without
// creating an ownership cycle between the two components (spec §9 "Cyclic
// shape avoidance").
type WidgetHost interface {
	// HandleOSC processes one OSC-99999 payload (seq is "99999;...").
	// Returns an optional PTY response, a count of deferred newlines the
	// terminal should advance past the widget (R-mode placement), and
	// whether the sequence was recognised at all.
	HandleOSC(seq string, grid *cellgrid.Grid, cursorCol, cursorRow int) (response string, linesToAdvance uint32, handled bool)
	// OnScroll notifies that the main screen moved by delta lines
	// (positive = content scrolled up, i.e. a push_line).
	OnScroll(delta int, grid *cellgrid.Grid)
	// OnAltScreenChange notifies of an alt-screen toggle.
	OnAltScreenChange(altScreen bool)
	// OnCellSync lets a custom-glyph plugin claim a cell during grid
	// sync; returns 0 if no plugin claims it.
	OnCellSync(col, row int, codepoint rune, width int) cellgrid.GlyphIndex
}

// Terminal owns a PTY, an escape-sequence decoder, a presentation
// cellgrid.Grid, and a scrollback.Ring (spec §2 Component C).
type Terminal struct {
	mu sync.Mutex

	cols, rows int
	main, alt  *plane
	active     *plane
	altScreen  bool

	cursorRow, cursorCol int
	cursorVisible        bool
	cursorStyle          CursorStyle
	cursorBlinkPhase     bool
	lastBlink            time.Time
	savedCursor          Pos
	applicationCursorKeys bool

	pen termCell

	mouseReportingMode uint32

	scrollOffset int

	pendingAdvanceLines uint32

	useDamageTracking bool
	fullDamage        bool
	damage            []cellgrid.Rect

	selActive bool
	selMode   SelectionMode
	selAnchor Pos
	selCursor Pos

	title   string
	onTitle func(string)

	state        parserState
	params       []int
	intermediate string
	oscBuilder   strings.Builder
	utf8Buf      [4]byte
	utf8Len      int
	utf8Need     int

	grid       *cellgrid.Grid
	scrollback *scrollback.Ring
	font       GlyphResolver

	ptyFile  *os.File
	cmd      *exec.Cmd
	running  bool
	readCh   chan []byte
	stopCh   chan struct{}
	waitDone chan struct{}
	waitErr  error

	log     *termlog.Logger
	session string
}

// New creates a Terminal at the given size. font may be nil, in which case
// codepoints up to cellgrid.MaxMSDFGlyph are used directly as glyph indices
// and higher codepoints map to '?' (suitable for tests and for callers that
// have not yet wired a real Font).
func New(cols, rows int, font GlyphResolver, log *termlog.Logger, session string) *Terminal {
	if font == nil {
		font = identityResolver{}
	}
	t := &Terminal{
		cols: cols, rows: rows,
		cursorVisible:     true,
		pen:               defaultPen,
		useDamageTracking: true,
		fullDamage:        true,
		params:            make([]int, 0, 16),
		grid:              cellgrid.New(cols, rows),
		scrollback:        scrollback.New(scrollback.DefaultCapacity),
		font:              font,
		log:               log,
		session:           session,
	}
	t.main = newPlane(cols, rows)
	t.alt = newPlane(cols, rows)
	t.active = t.main
	t.lastBlink = time.Time{}
	return t
}

// Grid returns the presentation grid GPU upload reads from.
func (t *Terminal) Grid() *cellgrid.Grid { return t.grid }

// Scrollback returns the retired-line ring.
func (t *Terminal) Scrollback() *scrollback.Ring { return t.scrollback }

// SetOnTitle registers a window-title-changed callback (OSC 0/1/2).
func (t *Terminal) SetOnTitle(fn func(string)) { t.onTitle = fn }

// Title returns the last-set window title.
func (t *Terminal) Title() string { return t.title }

// Running reports whether the child shell is still alive.
func (t *Terminal) Running() bool { return t.running }

// Start opens a PTY and execs shellSpec's program with its arguments (spec
// §4.2 "start(shell_spec)"). Decision (spec §9 open question, shell with
// arguments): shellSpec is split on spaces with no quoting, matching the
// source's own behaviour; callers that need quoting must pre-resolve it.
func (t *Terminal) Start(shellSpec string) error {
	if shellSpec == "" {
		shellSpec = os.Getenv("SHELL")
		if shellSpec == "" {
			shellSpec = "/bin/sh"
		}
	}
	parts := strings.Fields(shellSpec)
	if len(parts) == 0 {
		return fmt.Errorf("term: empty shell command")
	}

	t.cmd = exec.Command(parts[0], parts[1:]...)
	t.cmd.Env = append(os.Environ(), "TERM=xterm-256color", "COLORTERM=truecolor")

	ptmx, err := pty.StartWithSize(t.cmd, &pty.Winsize{Cols: uint16(t.cols), Rows: uint16(t.rows)})
	if err != nil {
		return fmt.Errorf("term: forkpty failed: %w", err)
	}
	t.ptyFile = ptmx
	t.running = true
	t.readCh = make(chan []byte, 64)
	t.stopCh = make(chan struct{})
	t.waitDone = make(chan struct{})

	go t.readLoop()
	go func() {
		err := t.cmd.Wait()
		t.waitErr = err
		close(t.waitDone)
	}()

	if t.log != nil {
		t.log.Event(t.session, termlog.EventStart, shellSpec)
	}
	return nil
}

func (t *Terminal) readLoop() {
	buf := make([]byte, 32*1024)
	for {
		n, err := t.ptyFile.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case t.readCh <- chunk:
			case <-t.stopCh:
				return
			}
		}
		if err != nil {
			close(t.readCh)
			return
		}
	}
}

// DrainPTY is the per-frame PTY step (spec §4.2, §5 ordering guarantee 1):
// it consumes any pending deferred newlines, takes buffered PTY output
// until at least readChunk bytes are gathered or none is left (the total
// can exceed readChunk), feeds it to the decoder, and leaves the grid
// synced.
func (t *Terminal) DrainPTY(wm WidgetHost) error {
	if !t.running {
		return nil
	}

	select {
	case <-t.waitDone:
		t.running = false
		if t.log != nil {
			t.log.Event(t.session, termlog.EventEnd, fmt.Sprint(t.waitErr))
		}
		return nil
	default:
	}

	if t.pendingAdvanceLines > 0 {
		n := t.pendingAdvanceLines
		t.pendingAdvanceLines = 0
		nl := bytes.Repeat([]byte{'\n'}, int(n))
		t.feed(nl, wm)
	}

	var buf bytes.Buffer
drain:
	for buf.Len() < readChunk {
		select {
		case chunk, ok := <-t.readCh:
			if !ok {
				t.running = false
				break drain
			}
			buf.Write(chunk)
		default:
			break drain
		}
	}

	if buf.Len() > 0 {
		if t.log != nil {
			t.log.Event(t.session, termlog.EventOutput, "")
		}
		t.feed(buf.Bytes(), wm)
	} else if t.fullDamage {
		t.syncToGrid(wm)
	}

	return nil
}

// SendKey forwards a printable keypress to the PTY (spec §4.2
// "send_key(codepoint, mods)"). Modifier-aware encoding beyond plain UTF-8
// is out of scope for the core's input surface.
func (t *Terminal) SendKey(r rune) {
	if !t.running {
		return
	}
	t.writeRaw([]byte(string(r)))
}

// SpecialKey names a non-printable key (spec §4.2 "send_special_key").
type SpecialKey uint8

const (
	KeyUp SpecialKey = iota
	KeyDown
	KeyRight
	KeyLeft
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyInsert
	KeyDelete
	KeyBackspace
	KeyTab
	KeyEnter
	KeyEscape
	KeyF1
	KeyF2
	KeyF3
	KeyF4
)

var specialSeq = map[SpecialKey]string{
	KeyUp: "A", KeyDown: "B", KeyRight: "C", KeyLeft: "D",
	KeyHome: "H", KeyEnd: "F",
}

// SendSpecialKey forwards a named key (arrows, navigation, function keys)
// to the PTY as the appropriate control sequence.
func (t *Terminal) SendSpecialKey(key SpecialKey) {
	if !t.running {
		return
	}
	switch key {
	case KeyUp, KeyDown, KeyRight, KeyLeft, KeyHome, KeyEnd:
		lead := byte('[')
		if t.applicationCursorKeys {
			lead = 'O'
		}
		t.writeRaw([]byte{0x1b, lead, specialSeq[key][0]})
	case KeyPageUp:
		t.writeRaw([]byte("\x1b[5~"))
	case KeyPageDown:
		t.writeRaw([]byte("\x1b[6~"))
	case KeyInsert:
		t.writeRaw([]byte("\x1b[2~"))
	case KeyDelete:
		t.writeRaw([]byte("\x1b[3~"))
	case KeyBackspace:
		t.writeRaw([]byte{0x7f})
	case KeyTab:
		t.writeRaw([]byte{0x09})
	case KeyEnter:
		t.writeRaw([]byte{0x0d})
	case KeyEscape:
		t.writeRaw([]byte{0x1b})
	case KeyF1:
		t.writeRaw([]byte("\x1bOP"))
	case KeyF2:
		t.writeRaw([]byte("\x1bOQ"))
	case KeyF3:
		t.writeRaw([]byte("\x1bOR"))
	case KeyF4:
		t.writeRaw([]byte("\x1bOS"))
	}
}

// SendRaw writes bytes directly to the PTY (paste, OSC query responses).
func (t *Terminal) SendRaw(data []byte) {
	if !t.running {
		return
	}
	t.writeRaw(data)
}

func (t *Terminal) writeRaw(data []byte) {
	if t.ptyFile == nil || len(data) == 0 {
		return
	}
	t.ptyFile.Write(data)
	if t.log != nil {
		t.log.Event(t.session, termlog.EventInput, string(data))
	}
}

// Resize changes the terminal's cell dimensions, propagating to the
// decoder planes, the presentation grid, and the PTY window size.
func (t *Terminal) Resize(cols, rows int) {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	t.cols, t.rows = cols, rows
	t.main.resize(cols, rows, t.pen)
	t.alt.resize(cols, rows, t.pen)
	t.grid.Resize(cols, rows)
	t.cursorRow = clampInt(t.cursorRow, 0, rows-1)
	t.cursorCol = clampInt(t.cursorCol, 0, cols-1)

	if t.ptyFile != nil {
		pty.Setsize(t.ptyFile, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	}
	t.fullDamage = true
	t.syncToGrid(nil)
}

// Close terminates the child shell and releases the PTY (spec §4.2
// "Destructor").
func (t *Terminal) Close() error {
	if t.stopCh != nil {
		close(t.stopCh)
	}
	if t.ptyFile != nil {
		t.ptyFile.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		t.cmd.Process.Signal(syscall.SIGTERM)
		<-t.waitDone
	}
	if t.log != nil {
		t.log.CloseSession(t.session)
	}
	return nil
}

// UpdateBlink flips the cursor blink phase if the interval elapsed,
// reporting whether a redraw is needed (spec §4.2 "Cursor blink").
func (t *Terminal) UpdateBlink(now time.Time) bool {
	if now.Sub(t.lastBlink) < cursorBlinkInterval {
		return false
	}
	t.cursorBlinkPhase = !t.cursorBlinkPhase
	t.lastBlink = now
	return true
}

// ScrollUp moves the viewport into scrollback (spec §4.2 "scroll_up(n)").
func (t *Terminal) ScrollUp(n int) {
	max := t.scrollback.Count()
	t.scrollOffset = minInt(t.scrollOffset+n, max)
	t.fullDamage = true
}

// ScrollDown moves the viewport toward the live screen.
func (t *Terminal) ScrollDown(n int) {
	t.scrollOffset = maxInt(t.scrollOffset-n, 0)
	t.fullDamage = true
}

// ScrollOffset returns the current scrollback viewport offset.
func (t *Terminal) ScrollOffset() int { return t.scrollOffset }

// AltScreen reports whether the alternate screen is active.
func (t *Terminal) AltScreen() bool { return t.altScreen }

// CursorPos returns the current cursor position.
func (t *Terminal) CursorPos() Pos { return Pos{Row: t.cursorRow, Col: t.cursorCol} }

// CursorVisible reports whether DECTCEM is enabled.
func (t *Terminal) CursorVisible() bool { return t.cursorVisible }

// CursorBlinkPhase reports the current blink phase (true = cursor hidden
// half of the cycle is up to the renderer to interpret).
func (t *Terminal) CursorBlinkPhase() bool { return t.cursorBlinkPhase }

// CursorStyle reports the shape DECSCUSR last selected.
func (t *Terminal) CursorStyle() CursorStyle { return t.cursorStyle }

// MouseReportingMode returns the last DECSET mouse mode the decoder parsed
// (1000, 1002, 1003, or 0 when reporting is off).
func (t *Terminal) MouseReportingMode() uint32 { return t.mouseReportingMode }

// ShouldForwardMouse reports whether the host should encode mouse events
// and write them to the PTY instead of using them for local selection
// (open question "mouse modes", resolved as option (b): match the
// source's existing behavior of prioritising local selection over PTY
// reporting — forwarding only kicks in once reporting is enabled and no
// selection is in progress). Widget hit-testing and modifier keys such as
// Shift are not consulted here; this method only answers "is PTY
// forwarding even on the table right now" for the current decoder state.
func (t *Terminal) ShouldForwardMouse() bool {
	return t.mouseReportingMode != 0 && !t.selActive
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
