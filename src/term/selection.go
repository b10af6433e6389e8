package term

import "strings"

// StartSelection begins a selection at (row,col) in the given mode (spec
// §4.2 "start_selection"). Word and line modes immediately expand the
// initial anchor/cursor pair to their natural boundary, mirroring a
// double/triple click rather than a plain drag.
func (t *Terminal) StartSelection(row, col int, mode SelectionMode) {
	t.selActive = true
	t.selMode = mode
	t.selAnchor = Pos{Row: row, Col: col}
	t.selCursor = t.selAnchor
	switch mode {
	case SelectionWord:
		t.selAnchor, t.selCursor = t.wordBounds(row, col)
	case SelectionLine:
		t.selAnchor = Pos{Row: row, Col: 0}
		t.selCursor = Pos{Row: row, Col: t.cols - 1}
	}
}

// ExtendSelection moves the selection cursor to (row,col), re-expanding to
// word/line boundaries in those modes (spec §4.2 "extend_selection").
func (t *Terminal) ExtendSelection(row, col int) {
	if !t.selActive {
		return
	}
	switch t.selMode {
	case SelectionWord:
		_, cursor := t.wordBounds(row, col)
		t.selCursor = cursor
	case SelectionLine:
		t.selCursor = Pos{Row: row, Col: t.cols - 1}
	default:
		t.selCursor = Pos{Row: row, Col: col}
	}
}

// ClearSelection drops the active selection (spec §4.2 "clear_selection").
func (t *Terminal) ClearSelection() {
	t.selActive = false
	t.selMode = SelectionNone
}

// normalizedSelection returns the anchor/cursor pair in document order
// (earlier position first), matching the C++ source's vterm_pos_cmp swap.
func (t *Terminal) normalizedSelection() (start, end Pos) {
	a, b := t.selAnchor, t.selCursor
	if a.Row > b.Row || (a.Row == b.Row && a.Col > b.Col) {
		a, b = b, a
	}
	return a, b
}

// isInSelection reports whether (row,col) falls within the active
// selection, used at sync time to swap fg/bg for the highlighted span
// (spec §4.2 "isInSelection").
func (t *Terminal) isInSelection(row, col int) bool {
	if !t.selActive {
		return false
	}
	start, end := t.normalizedSelection()
	if row < start.Row || row > end.Row {
		return false
	}
	if row == start.Row && col < start.Col {
		return false
	}
	if row == end.Row && col > end.Col {
		return false
	}
	return true
}

// wordBounds expands (row,col) outward to the enclosing run of non-blank
// characters, stopping at a space or tab on either side (spec §4.2
// "word selection"). A click on whitespace selects just that one cell.
func (t *Terminal) wordBounds(row, col int) (start, end Pos) {
	isBoundary := func(c termCell) bool { return c.Ch == ' ' || c.Ch == '\t' || c.Ch == 0 }
	if isBoundary(t.active.cell(col, row)) {
		return Pos{Row: row, Col: col}, Pos{Row: row, Col: col}
	}

	left := col
	for left > 0 && !isBoundary(t.active.cell(left-1, row)) {
		left--
	}
	right := col
	for right < t.cols-1 && !isBoundary(t.active.cell(right+1, row)) {
		right++
	}
	return Pos{Row: row, Col: left}, Pos{Row: row, Col: right}
}

// SelectedText renders the active selection's characters as a newline-
// joined string, reading directly from the decoder's active plane (spec
// §4.2 "get_selected_text: ask the decoder for the raw UTF-8 of the
// relevant column range; join with \n").
func (t *Terminal) SelectedText() string {
	if !t.selActive {
		return ""
	}
	start, end := t.normalizedSelection()

	var lines []string
	for row := start.Row; row <= end.Row; row++ {
		fromCol, toCol := 0, t.cols-1
		if row == start.Row {
			fromCol = start.Col
		}
		if row == end.Row {
			toCol = end.Col
		}

		var b strings.Builder
		skipNext := false
		for col := fromCol; col <= toCol && col < t.cols; col++ {
			if skipNext {
				skipNext = false
				continue
			}
			c := t.active.cell(col, row)
			if c.Ch == 0 {
				b.WriteRune(' ')
				continue
			}
			b.WriteRune(c.Ch)
			if c.Width == 2 {
				skipNext = true
			}
		}
		lines = append(lines, strings.TrimRight(b.String(), " "))
	}
	return strings.Join(lines, "\n")
}
