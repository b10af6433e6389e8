package term

// termAttr is the decoder-side attribute bit field (distinct from
// cellgrid.Cell.Style, which is the packed GPU-facing form; converted at
// sync time).
type termAttr uint8

const (
	attrBold termAttr = 1 << iota
	attrDim
	attrItalic
	attrUnderline
	attrDoubleUnderline
	attrCurlyUnderline
	attrBlink
	attrReverse
	attrHidden
	attrStrikethrough
)

// termCell is one cell of the decoder's own screen buffer, the thing the
// escape-sequence state machine actually writes into. It is reconciled into
// the presentation cellgrid.Grid by syncToGrid/syncDamageToGrid (spec §4.2).
type termCell struct {
	Ch    rune
	FG    termColor
	BG    termColor
	Attrs termAttr
	// Width is 1 for a normal cell, 2 for the left half of a wide
	// character. The right half is a distinct cell with Ch == 0 so the
	// sync path can tell it apart from an explicit space.
	Width int
}

func blankCell(pen termCell) termCell {
	return termCell{Ch: ' ', FG: pen.FG, BG: pen.BG, Attrs: pen.Attrs, Width: 1}
}

var defaultPen = termCell{FG: defaultFG, BG: defaultBG}

// plane is one of the two cell buffers the decoder maintains: the main
// screen and the alternate screen (spec §3 "alt_screen: when true ... the
// alt-screen has its own cell plane").
type plane struct {
	cols, rows int
	cells      [][]termCell
	scrollTop  int
	scrollBot  int
}

func newPlane(cols, rows int) *plane {
	p := &plane{cols: cols, rows: rows, scrollTop: 0, scrollBot: rows - 1}
	p.cells = make([][]termCell, rows)
	for y := range p.cells {
		p.cells[y] = make([]termCell, cols)
		for x := range p.cells[y] {
			p.cells[y][x] = blankCell(defaultPen)
		}
	}
	return p
}

func (p *plane) cell(x, y int) termCell {
	if x < 0 || x >= p.cols || y < 0 || y >= p.rows {
		return blankCell(defaultPen)
	}
	return p.cells[y][x]
}

func (p *plane) setCell(x, y int, c termCell) {
	if x < 0 || x >= p.cols || y < 0 || y >= p.rows {
		return
	}
	p.cells[y][x] = c
}

// scrollUp shifts the scroll region up by n lines, returning the lines that
// fell off the top (for the caller to push into scrollback).
func (p *plane) scrollUp(n int, pen termCell) [][]termCell {
	if n <= 0 {
		return nil
	}
	off := make([][]termCell, 0, n)
	for i := 0; i < n && p.scrollTop+i <= p.scrollBot; i++ {
		line := make([]termCell, p.cols)
		copy(line, p.cells[p.scrollTop+i])
		off = append(off, line)
	}
	for y := p.scrollTop; y <= p.scrollBot; y++ {
		if y+n <= p.scrollBot {
			copy(p.cells[y], p.cells[y+n])
		} else {
			for x := range p.cells[y] {
				p.cells[y][x] = blankCell(pen)
			}
		}
	}
	return off
}

func (p *plane) scrollDown(n int, pen termCell) {
	if n <= 0 {
		return
	}
	for y := p.scrollBot; y >= p.scrollTop; y-- {
		if y-n >= p.scrollTop {
			copy(p.cells[y], p.cells[y-n])
		} else {
			for x := range p.cells[y] {
				p.cells[y][x] = blankCell(pen)
			}
		}
	}
}

// pushBackLine restores a previously scrolled-off line at the top of the
// scroll region, shifting the rest down by one (the mirror of scrollUp,
// used when a scrollback line is popped back onto the screen).
func (p *plane) pushBackLine(line []termCell) {
	for y := p.scrollBot; y > p.scrollTop; y-- {
		copy(p.cells[y], p.cells[y-1])
	}
	n := len(line)
	if n > p.cols {
		n = p.cols
	}
	copy(p.cells[p.scrollTop], line[:n])
	for x := n; x < p.cols; x++ {
		p.cells[p.scrollTop][x] = blankCell(defaultPen)
	}
}

func (p *plane) clearAll(pen termCell) {
	for y := 0; y < p.rows; y++ {
		for x := 0; x < p.cols; x++ {
			p.cells[y][x] = blankCell(pen)
		}
	}
}

func (p *plane) resize(cols, rows int, pen termCell) {
	newCells := make([][]termCell, rows)
	for y := 0; y < rows; y++ {
		newCells[y] = make([]termCell, cols)
		for x := 0; x < cols; x++ {
			if y < p.rows && x < p.cols {
				newCells[y][x] = p.cells[y][x]
			} else {
				newCells[y][x] = blankCell(pen)
			}
		}
	}
	p.cells = newCells
	p.cols = cols
	p.rows = rows
	p.scrollTop = 0
	p.scrollBot = rows - 1
}

// runeWidth reports the terminal column width of r: 2 for codepoints in the
// common East-Asian-wide blocks, 1 otherwise. No third-party Unicode
// East-Asian-Width table is present anywhere in the example pack, so this is
// a small hand-rolled range table rather than a hand-rolled reimplementation
// of a library that exists elsewhere in the corpus.
func runeWidth(r rune) int {
	switch {
	case r >= 0x1100 && r <= 0x115F, // Hangul Jamo
		r >= 0x2E80 && r <= 0xA4CF, // CJK radicals .. Yi
		r >= 0xAC00 && r <= 0xD7A3, // Hangul syllables
		r >= 0xF900 && r <= 0xFAFF, // CJK compatibility ideographs
		r >= 0xFF00 && r <= 0xFF60, // Fullwidth forms
		r >= 0xFFE0 && r <= 0xFFE6,
		r >= 0x20000 && r <= 0x3FFFD: // CJK extension planes
		return 2
	default:
		return 1
	}
}

// isEmoji reports whether r falls in one of the codepoint blocks that set
// the cell's emoji style bit
// (spec §4.2 "emoji bit set iff the codepoint falls in a predeclared emoji
// range"); which atlas actually renders them is an external collaborator.
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF,
		r >= 0x2600 && r <= 0x27BF,
		r >= 0x1F1E6 && r <= 0x1F1FF:
		return true
	default:
		return false
	}
}
