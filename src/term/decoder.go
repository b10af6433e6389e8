package term

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"gputerm/src/cellgrid"
)

const (
	maxIntermediateLen = 64
	maxOSCStringLen    = 64 * 1024
)

type parserState uint8

const (
	stateGround parserState = iota
	stateEscape
	stateEscapeIntermediate
	stateCSI
	stateCSIParam
	stateCSIIntermediate
	stateOSC
	stateOSCString
)

// feed pushes bytes through the escape-sequence decoder (spec §4.2
// "Escape sequence decoding"). Each callback mutates Terminal state
// directly and synchronously; feed always ends with a grid sync (spec §5
// ordering guarantee 2).
func (t *Terminal) feed(data []byte, wm WidgetHost) {
	for _, b := range data {
		t.parseByte(b, wm)
	}
	t.syncToGrid(wm)
}

func (t *Terminal) parseByte(b byte, wm WidgetHost) {
	switch t.state {
	case stateGround:
		t.parseGround(b, wm)
	case stateEscape:
		t.parseEscape(b, wm)
	case stateEscapeIntermediate:
		t.parseEscapeIntermediate(b)
	case stateCSI:
		t.parseCSI(b, wm)
	case stateCSIParam:
		t.parseCSIParam(b, wm)
	case stateCSIIntermediate:
		t.parseCSIIntermediate(b, wm)
	case stateOSC:
		t.parseOSC(b)
	case stateOSCString:
		t.parseOSCString(b, wm)
	default:
		t.state = stateGround
		t.parseGround(b, wm)
	}
}

func (t *Terminal) parseGround(b byte, wm WidgetHost) {
	if t.utf8Need > 0 {
		if b >= 0x80 && b < 0xC0 {
			t.utf8Buf[t.utf8Len] = b
			t.utf8Len++
			if t.utf8Len == t.utf8Need {
				r, _ := utf8.DecodeRune(t.utf8Buf[:t.utf8Len])
				if r != utf8.RuneError {
					t.writeRune(r, wm)
				}
				t.utf8Need, t.utf8Len = 0, 0
			}
			return
		}
		t.utf8Need, t.utf8Len = 0, 0
	}

	switch {
	case b == 0x1b:
		t.state = stateEscape
	case b == 0x07:
		// BEL (spec §4.2 "bell"): the host frame loop, not this
		// library, owns stdout; nothing to do here beyond the
		// decoder contract, which has no bell callback of its own
		// surface area to the host — left as a no-op hook point.
	case b == 0x08:
		if t.cursorCol > 0 {
			t.cursorCol--
		}
	case b == 0x09:
		t.cursorCol = (t.cursorCol + 8) &^ 7
		if t.cursorCol >= t.cols {
			t.cursorCol = t.cols - 1
		}
	case b == 0x0a, b == 0x0b, b == 0x0c:
		t.lineFeed(wm)
	case b == 0x0d:
		t.cursorCol = 0
	case b >= 0x20 && b < 0x7f:
		t.writeRune(rune(b), wm)
	case b >= 0xC0 && b < 0xE0:
		t.utf8Buf[0], t.utf8Len, t.utf8Need = b, 1, 2
	case b >= 0xE0 && b < 0xF0:
		t.utf8Buf[0], t.utf8Len, t.utf8Need = b, 1, 3
	case b >= 0xF0 && b < 0xF8:
		t.utf8Buf[0], t.utf8Len, t.utf8Need = b, 1, 4
	}
}

// writeRune writes r at the cursor with the current pen, advancing the
// cursor and, for wide runes, writing a continuation sentinel cell to its
// right (consumed at sync time, spec §4.2 "Wide-character continuation").
func (t *Terminal) writeRune(r rune, wm WidgetHost) {
	w := runeWidth(r)
	if t.cursorCol+w > t.cols {
		t.cursorCol = 0
		t.lineFeed(wm)
	}
	cell := termCell{Ch: r, FG: t.pen.FG, BG: t.pen.BG, Attrs: t.pen.Attrs, Width: w}
	t.active.setCell(t.cursorCol, t.cursorRow, cell)
	t.onDamage(cellgrid.Rect{MinCol: t.cursorCol, MinRow: t.cursorRow, MaxCol: t.cursorCol + 1, MaxRow: t.cursorRow + 1})
	t.cursorCol++
	if w == 2 {
		if t.cursorCol < t.cols {
			t.active.setCell(t.cursorCol, t.cursorRow, termCell{Ch: 0, FG: t.pen.FG, BG: t.pen.BG, Attrs: t.pen.Attrs, Width: 1})
			t.onDamage(cellgrid.Rect{MinCol: t.cursorCol, MinRow: t.cursorRow, MaxCol: t.cursorCol + 1, MaxRow: t.cursorRow + 1})
		}
		t.cursorCol++
	}
}

func (t *Terminal) lineFeed(wm WidgetHost) {
	if t.cursorRow >= t.active.scrollBot {
		off := t.active.scrollUp(1, t.pen)
		if !t.altScreen {
			for _, line := range off {
				t.pushScrollbackLine(line)
			}
			if wm != nil && len(off) > 0 {
				wm.OnScroll(len(off), t.grid)
			}
		}
		t.fullDamage = true
	} else {
		t.cursorRow++
	}
}

func (t *Terminal) pushScrollbackLine(cells []termCell) {
	line := compressTermLine(cells)
	t.scrollback.Push(line)
}

func (t *Terminal) parseEscape(b byte, wm WidgetHost) {
	switch {
	case b == '[':
		t.state = stateCSI
		t.params = t.params[:0]
		t.intermediate = ""
	case b == ']':
		t.state = stateOSC
		t.oscBuilder.Reset()
	case b == '\\':
		t.state = stateGround
	case b == 'c':
		t.active.clearAll(defaultPen)
		t.pen = defaultPen
		t.cursorRow, t.cursorCol = 0, 0
		t.fullDamage = true
		t.state = stateGround
	case b == 'D':
		t.lineFeed(wm)
		t.state = stateGround
	case b == 'E':
		t.cursorCol = 0
		t.lineFeed(wm)
		t.state = stateGround
	case b == 'M':
		if t.cursorRow <= t.active.scrollTop {
			t.active.scrollDown(1, t.pen)
			t.fullDamage = true
		} else {
			t.cursorRow--
		}
		t.state = stateGround
	case b == '7':
		t.savedCursor = Pos{Row: t.cursorRow, Col: t.cursorCol}
		t.state = stateGround
	case b == '8':
		t.cursorRow, t.cursorCol = t.savedCursor.Row, t.savedCursor.Col
		t.state = stateGround
	case b == '=', b == '>':
		t.state = stateGround
	case b >= 0x20 && b <= 0x2f:
		t.intermediate = string(b)
		t.state = stateEscapeIntermediate
	default:
		t.state = stateGround
	}
}

func (t *Terminal) parseEscapeIntermediate(b byte) {
	switch {
	case b >= 0x20 && b <= 0x2f:
		if len(t.intermediate) >= maxIntermediateLen {
			t.intermediate = ""
			t.state = stateGround
			return
		}
		t.intermediate += string(b)
	default:
		t.state = stateGround
	}
}

func (t *Terminal) parseCSI(b byte, wm WidgetHost) {
	switch {
	case b >= '0' && b <= '9':
		t.params = append(t.params, int(b-'0'))
		t.state = stateCSIParam
	case b == ';':
		t.params = append(t.params, 0)
		t.state = stateCSIParam
	case b == '?' || b == '>' || b == '!':
		t.intermediate = string(b)
		t.state = stateCSIParam
	case b >= 0x40 && b <= 0x7e:
		t.executeCSI(b, wm)
		t.state = stateGround
	default:
		t.state = stateGround
	}
}

func (t *Terminal) parseCSIParam(b byte, wm WidgetHost) {
	switch {
	case b >= '0' && b <= '9':
		if len(t.params) == 0 {
			t.params = append(t.params, 0)
		}
		t.params[len(t.params)-1] = t.params[len(t.params)-1]*10 + int(b-'0')
	case b == ';' || b == ':':
		if len(t.params) == 0 {
			t.params = append(t.params, 0)
		}
		t.params = append(t.params, 0)
	case b >= 0x20 && b <= 0x2f:
		if len(t.intermediate) >= maxIntermediateLen {
			t.intermediate = ""
			t.state = stateGround
			return
		}
		t.intermediate += string(b)
		t.state = stateCSIIntermediate
	case b >= 0x40 && b <= 0x7e:
		t.executeCSI(b, wm)
		t.state = stateGround
	default:
		t.state = stateGround
	}
}

func (t *Terminal) parseCSIIntermediate(b byte, wm WidgetHost) {
	switch {
	case b >= 0x20 && b <= 0x2f:
		if len(t.intermediate) >= maxIntermediateLen {
			t.intermediate = ""
			t.state = stateGround
			return
		}
		t.intermediate += string(b)
	case b >= 0x40 && b <= 0x7e:
		t.executeCSI(b, wm)
		t.state = stateGround
	default:
		t.state = stateGround
	}
}

func (t *Terminal) parseOSC(b byte) {
	switch {
	case b >= '0' && b <= '9':
		t.oscBuilder.WriteByte(b)
	case b == ';':
		t.oscBuilder.WriteByte(b)
		t.state = stateOSCString
	default:
		t.state = stateGround
	}
}

func (t *Terminal) parseOSCString(b byte, wm WidgetHost) {
	switch {
	case b == 0x07:
		t.executeOSC(wm)
		t.state = stateGround
	case b == 0x1b:
		t.executeOSC(wm)
		t.state = stateEscape
	default:
		if t.oscBuilder.Len() >= maxOSCStringLen {
			t.oscBuilder.Reset()
			t.state = stateGround
			return
		}
		t.oscBuilder.WriteByte(b)
	}
}

func (t *Terminal) executeCSI(final byte, wm WidgetHost) {
	param := func(i, def int) int {
		if i < len(t.params) && t.params[i] > 0 {
			return t.params[i]
		}
		return def
	}
	private := len(t.intermediate) > 0 && t.intermediate[0] == '?'

	switch final {
	case 'A':
		t.cursorRow = maxInt(0, t.cursorRow-param(0, 1))
	case 'B':
		t.cursorRow = minInt(t.rows-1, t.cursorRow+param(0, 1))
	case 'C':
		t.cursorCol = minInt(t.cols-1, t.cursorCol+param(0, 1))
	case 'D':
		t.cursorCol = maxInt(0, t.cursorCol-param(0, 1))
	case 'E':
		t.cursorCol = 0
		t.cursorRow = minInt(t.rows-1, t.cursorRow+param(0, 1))
	case 'F':
		t.cursorCol = 0
		t.cursorRow = maxInt(0, t.cursorRow-param(0, 1))
	case 'G':
		t.cursorCol = clampInt(param(0, 1)-1, 0, t.cols-1)
	case 'H', 'f':
		row, col := param(0, 1), param(1, 1)
		t.cursorRow = clampInt(row-1, 0, t.rows-1)
		t.cursorCol = clampInt(col-1, 0, t.cols-1)
	case 'J':
		t.clearDisplay(param(0, 0))
	case 'K':
		t.clearLine(param(0, 0))
	case 'L':
		t.insertLines(param(0, 1), wm)
	case 'M':
		t.deleteLines(param(0, 1), wm)
	case 'P':
		t.deleteChars(param(0, 1))
	case 'S':
		off := t.active.scrollUp(param(0, 1), t.pen)
		if !t.altScreen {
			for _, line := range off {
				t.pushScrollbackLine(line)
			}
			if wm != nil && len(off) > 0 {
				wm.OnScroll(len(off), t.grid)
			}
		}
		t.fullDamage = true
	case 'T':
		n := param(0, 1)
		var popped []termCell
		if !t.altScreen {
			if line, ok := t.scrollback.PopBack(); ok {
				popped = expandScrollbackLine(line, t.cols)
			}
		}
		if popped != nil {
			// pushBackLine shifts by the last line itself.
			t.active.scrollDown(n-1, t.pen)
			t.active.pushBackLine(popped)
		} else {
			t.active.scrollDown(n, t.pen)
		}
		if !t.altScreen && wm != nil {
			wm.OnScroll(-n, t.grid)
		}
		t.fullDamage = true
	case 'X':
		n := param(0, 1)
		for i := 0; i < n && t.cursorCol+i < t.cols; i++ {
			t.active.setCell(t.cursorCol+i, t.cursorRow, blankCell(t.pen))
		}
		t.onDamage(cellgrid.Rect{MinCol: t.cursorCol, MinRow: t.cursorRow, MaxCol: t.cursorCol + n, MaxRow: t.cursorRow + 1})
	case '@':
		t.insertChars(param(0, 1))
	case 'd':
		t.cursorRow = clampInt(param(0, 1)-1, 0, t.rows-1)
	case 'h':
		t.setMode(true, private, wm)
	case 'l':
		t.setMode(false, private, wm)
	case 'm':
		t.executeSGR()
	case 'r':
		top, bot := param(0, 1), param(1, t.rows)
		t.setScrollRegion(top-1, bot-1)
		t.cursorRow, t.cursorCol = 0, 0
	case 'q':
		if t.intermediate == " " {
			switch param(0, 1) {
			case 0, 1, 2:
				t.cursorStyle = CursorBlock
			case 3, 4:
				t.cursorStyle = CursorUnderline
			case 5, 6:
				t.cursorStyle = CursorBar
			}
		}
	}
}

func (t *Terminal) setScrollRegion(top, bot int) {
	top = clampInt(top, 0, t.rows-1)
	bot = clampInt(bot, 0, t.rows-1)
	if top < bot {
		t.active.scrollTop, t.active.scrollBot = top, bot
	}
}

func (t *Terminal) clearLine(mode int) {
	y := t.cursorRow
	switch mode {
	case 0:
		for x := t.cursorCol; x < t.cols; x++ {
			t.active.setCell(x, y, blankCell(t.pen))
		}
	case 1:
		for x := 0; x <= t.cursorCol && x < t.cols; x++ {
			t.active.setCell(x, y, blankCell(t.pen))
		}
	case 2:
		for x := 0; x < t.cols; x++ {
			t.active.setCell(x, y, blankCell(t.pen))
		}
	}
	t.onDamage(cellgrid.Rect{MinCol: 0, MinRow: y, MaxCol: t.cols, MaxRow: y + 1})
}

func (t *Terminal) clearDisplay(mode int) {
	switch mode {
	case 0:
		t.clearLine(0)
		for y := t.cursorRow + 1; y < t.rows; y++ {
			for x := 0; x < t.cols; x++ {
				t.active.setCell(x, y, blankCell(t.pen))
			}
		}
	case 1:
		for y := 0; y < t.cursorRow; y++ {
			for x := 0; x < t.cols; x++ {
				t.active.setCell(x, y, blankCell(t.pen))
			}
		}
		t.clearLine(1)
	case 2, 3:
		t.active.clearAll(t.pen)
		t.cursorRow, t.cursorCol = 0, 0
	}
	t.fullDamage = true
}

func (t *Terminal) insertChars(n int) {
	row := t.cursorRow
	for x := t.cols - 1; x >= t.cursorCol+n; x-- {
		t.active.setCell(x, row, t.active.cell(x-n, row))
	}
	for x := t.cursorCol; x < t.cursorCol+n && x < t.cols; x++ {
		t.active.setCell(x, row, blankCell(t.pen))
	}
	t.onDamage(cellgrid.Rect{MinCol: t.cursorCol, MinRow: row, MaxCol: t.cols, MaxRow: row + 1})
}

func (t *Terminal) deleteChars(n int) {
	row := t.cursorRow
	for x := t.cursorCol; x < t.cols-n; x++ {
		t.active.setCell(x, row, t.active.cell(x+n, row))
	}
	for x := t.cols - n; x < t.cols; x++ {
		t.active.setCell(x, row, blankCell(t.pen))
	}
	t.onDamage(cellgrid.Rect{MinCol: t.cursorCol, MinRow: row, MaxCol: t.cols, MaxRow: row + 1})
}

func (t *Terminal) insertLines(n int, wm WidgetHost) {
	if t.cursorRow < t.active.scrollTop || t.cursorRow > t.active.scrollBot {
		return
	}
	saved := t.active.scrollTop
	t.active.scrollTop = t.cursorRow
	t.active.scrollDown(n, t.pen)
	t.active.scrollTop = saved
	if wm != nil {
		wm.OnScroll(-n, t.grid)
	}
	t.fullDamage = true
}

func (t *Terminal) deleteLines(n int, wm WidgetHost) {
	if t.cursorRow < t.active.scrollTop || t.cursorRow > t.active.scrollBot {
		return
	}
	saved := t.active.scrollTop
	t.active.scrollTop = t.cursorRow
	t.active.scrollUp(n, t.pen)
	t.active.scrollTop = saved
	if wm != nil {
		wm.OnScroll(n, t.grid)
	}
	t.fullDamage = true
}

func (t *Terminal) setMode(set bool, private bool, wm WidgetHost) {
	if !private {
		return
	}
	for _, mode := range t.params {
		switch mode {
		case 1: // DECCKM
			t.applicationCursorKeys = set
		case 25: // DECTCEM
			t.cursorVisible = set
		case 1000, 1002, 1003: // mouse reporting
			if set {
				t.mouseReportingMode = uint32(mode)
			} else {
				t.mouseReportingMode = 0
			}
		case 1049, 47, 1047: // alternate screen buffer
			t.setAltScreen(set, wm)
		}
	}
}

func (t *Terminal) setAltScreen(on bool, wm WidgetHost) {
	if t.altScreen == on {
		return
	}
	t.altScreen = on
	if on {
		t.active = t.alt
		t.active.clearAll(defaultPen)
		// Decision (spec §9 open question): snap the scrollback
		// viewport to zero on alt-screen entry.
		t.scrollOffset = 0
	} else {
		t.active = t.main
		t.scrollOffset = 0
	}
	t.fullDamage = true
	if wm != nil {
		wm.OnAltScreenChange(on)
	}
}

func (t *Terminal) executeSGR() {
	if len(t.params) == 0 {
		t.pen = termCell{FG: defaultFG, BG: defaultBG}
		return
	}
	i := 0
	for i < len(t.params) {
		p := t.params[i]
		i++
		switch p {
		case 0:
			t.pen = termCell{FG: defaultFG, BG: defaultBG}
		case 1:
			t.pen.Attrs |= attrBold
		case 2:
			t.pen.Attrs |= attrDim
		case 3:
			t.pen.Attrs |= attrItalic
		case 4:
			t.pen.Attrs |= attrUnderline
		case 5:
			t.pen.Attrs |= attrBlink
		case 7:
			t.pen.Attrs |= attrReverse
		case 8:
			t.pen.Attrs |= attrHidden
		case 9:
			t.pen.Attrs |= attrStrikethrough
		case 21:
			t.pen.Attrs |= attrDoubleUnderline
		case 22:
			t.pen.Attrs &^= attrBold | attrDim
		case 23:
			t.pen.Attrs &^= attrItalic
		case 24:
			t.pen.Attrs &^= attrUnderline | attrDoubleUnderline | attrCurlyUnderline
		case 25:
			t.pen.Attrs &^= attrBlink
		case 27:
			t.pen.Attrs &^= attrReverse
		case 28:
			t.pen.Attrs &^= attrHidden
		case 29:
			t.pen.Attrs &^= attrStrikethrough
		case 30, 31, 32, 33, 34, 35, 36, 37:
			t.pen.FG = indexedColor(uint8(p - 30))
		case 38:
			i = t.parseExtendedColor(&t.pen.FG, i)
		case 39:
			t.pen.FG = defaultFG
		case 40, 41, 42, 43, 44, 45, 46, 47:
			t.pen.BG = indexedColor(uint8(p - 40))
		case 48:
			i = t.parseExtendedColor(&t.pen.BG, i)
		case 49:
			t.pen.BG = defaultBG
		case 90, 91, 92, 93, 94, 95, 96, 97:
			t.pen.FG = indexedColor(uint8(p - 90 + 8))
		case 100, 101, 102, 103, 104, 105, 106, 107:
			t.pen.BG = indexedColor(uint8(p - 100 + 8))
		}
	}
}

func (t *Terminal) parseExtendedColor(c *termColor, i int) int {
	if i >= len(t.params) {
		return i
	}
	mode := t.params[i]
	i++
	switch mode {
	case 5:
		if i < len(t.params) {
			*c = indexedColor(uint8(t.params[i]))
			i++
		}
	case 2:
		if i+2 < len(t.params) {
			*c = rgbColor(uint8(t.params[i]), uint8(t.params[i+1]), uint8(t.params[i+2]))
			i += 3
		}
	}
	return i
}

func (t *Terminal) executeOSC(wm WidgetHost) {
	s := t.oscBuilder.String()
	t.oscBuilder.Reset()

	parts := strings.SplitN(s, ";", 2)
	cmd, err := strconv.Atoi(parts[0])
	if err != nil {
		return
	}

	if cmd == oscVendorID {
		rest := ""
		if len(parts) > 1 {
			rest = parts[1]
		}
		if wm == nil {
			return
		}
		response, advance, handled := wm.HandleOSC(strconv.Itoa(oscVendorID)+";"+rest, t.grid, t.cursorCol, t.cursorRow)
		if handled {
			t.fullDamage = true
			if response != "" {
				t.writeRaw([]byte(response))
			}
			if advance > 0 {
				t.pendingAdvanceLines += advance
			}
		}
		return
	}

	if cmd >= 0 && cmd <= 2 && len(parts) > 1 {
		t.title = parts[1]
		if t.onTitle != nil {
			t.onTitle(t.title)
		}
	}
}

// --- decoder callbacks (spec §4.2 table) ---

func (t *Terminal) onDamage(r cellgrid.Rect) {
	t.damage = append(t.damage, r)
}
