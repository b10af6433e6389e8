package term

import (
	"gputerm/src/cellgrid"
	"gputerm/src/scrollback"
)

// compressTermLine converts a row of decoder cells into a scrollback.Line,
// RLE-compressing runs of identical (fg,bg,style) (spec §3 "Scrollback
// Line").
func compressTermLine(cells []termCell) scrollback.Line {
	gridCells := make([]cellgrid.Cell, len(cells))
	for i, c := range cells {
		gridCells[i] = cellgrid.Cell{
			Glyph: cellgrid.GlyphIndex(c.Ch),
			FG:    append4(c.FG.resolve(false)),
			BG:    c.BG.resolve(true),
			Style: styleFromAttrs(c.Attrs, c.Ch),
		}
	}
	runeOf := func(c cellgrid.Cell) rune { return rune(c.Glyph) }
	return scrollback.CompressLine(gridCells, runeOf)
}

func append4(rgb [3]uint8) [4]uint8 {
	return [4]uint8{rgb[0], rgb[1], rgb[2], 255}
}

// expandScrollbackLine rebuilds decoder cells from a popped scrollback
// line, for splicing a line back into the live screen on scroll-down
// (spec §4.5 "Pop-back moves the most recently pushed line back onto the
// decoder's top row").
func expandScrollbackLine(l scrollback.Line, cols int) []termCell {
	cells := make([]termCell, cols)
	attrs := l.Expand()
	for x := 0; x < cols; x++ {
		cells[x] = blankCell(defaultPen)
		if x >= len(l.Chars) {
			continue
		}
		ch := l.Chars[x]
		if ch == 0 {
			ch = ' '
		}
		cells[x].Ch = ch
		if x < len(attrs) {
			a := attrs[x]
			cells[x].FG = rgbColor(a.FG[0], a.FG[1], a.FG[2])
			cells[x].BG = rgbColor(a.BG[0], a.BG[1], a.BG[2])
		}
	}
	return cells
}

// styleFromAttrs packs the decoder's termAttr bits into the GPU-facing
// style byte (spec §3 Cell "style" field).
func styleFromAttrs(a termAttr, ch rune) uint8 {
	underline := cellgrid.UnderlineNone
	switch {
	case a&attrCurlyUnderline != 0:
		underline = cellgrid.UnderlineCurly
	case a&attrDoubleUnderline != 0:
		underline = cellgrid.UnderlineDouble
	case a&attrUnderline != 0:
		underline = cellgrid.UnderlineSingle
	}
	return cellgrid.PackStyle(a&attrBold != 0, a&attrItalic != 0, a&attrStrikethrough != 0, isEmoji(ch), underline)
}

// syncToGrid reconciles the full visible screen into the presentation grid
// (spec §4.2 "Full sync"). Used whenever full_damage is set, damage
// tracking is disabled, or the viewport is scrolled back (scroll-offset
// reads can't be expressed as damage rectangles over the live screen).
func (t *Terminal) syncToGrid(wm WidgetHost) {
	if t.useDamageTracking && !t.fullDamage && t.scrollOffset == 0 {
		t.syncDamageToGrid(wm)
		return
	}

	sbCount := t.scrollback.Count()
	effOffset := minInt(t.scrollOffset, sbCount)

	for row := 0; row < t.rows; row++ {
		lineIndex := row - effOffset
		if lineIndex < 0 {
			t.syncScrollbackRow(row, sbCount+lineIndex)
			continue
		}
		for col := 0; col < t.cols; col++ {
			t.syncCell(col, row, lineIndex, wm)
		}
	}

	t.grid.MarkFullDamage()
	t.fullDamage = false
	t.damage = t.damage[:0]
}

// syncDamageToGrid reconciles only the accumulated damage rectangles (spec
// §4.2 "Damage sync").
func (t *Terminal) syncDamageToGrid(wm WidgetHost) {
	for _, d := range t.damage {
		for row := d.MinRow; row < d.MaxRow && row < t.rows; row++ {
			for col := d.MinCol; col < d.MaxCol && col < t.cols; col++ {
				t.syncCell(col, row, row, wm)
			}
		}
		t.grid.AddDamage(d)
	}
	t.damage = t.damage[:0]
}

func (t *Terminal) syncScrollbackRow(gridRow, sbIndex int) {
	line, ok := t.scrollback.Line(sbIndex)
	if !ok {
		for col := 0; col < t.cols; col++ {
			t.grid.SetCell(col, gridRow, cellgrid.SpaceCell)
		}
		return
	}
	attrs := line.Expand()
	for col := 0; col < t.cols; col++ {
		if col >= len(line.Chars) {
			t.grid.SetCell(col, gridRow, cellgrid.SpaceCell)
			continue
		}
		ch := line.Chars[col]
		glyph := t.font.GlyphIndex(ch)
		fg, bg, style := [4]uint8{255, 255, 255, 255}, [3]uint8{}, uint8(0)
		if col < len(attrs) {
			fg, bg, style = attrs[col].FG, attrs[col].BG, attrs[col].Style
		}
		t.grid.SetCell(col, gridRow, cellgrid.Cell{Glyph: glyph, FG: fg, BG: bg, Style: style})
	}
}

func (t *Terminal) syncCell(col, row, planeRow int, wm WidgetHost) {
	c := t.active.cell(col, planeRow)
	fg, bg := t.resolveColors(c, row, col)

	if c.Ch == 0 {
		// Right half of a wide character (spec §4.2 "Wide-character
		// continuation cells ... are written with glyph_index = 0xFFFE").
		t.grid.SetCell(col, row, cellgrid.Cell{
			Glyph: cellgrid.WideContinuation,
			FG:    fg,
			BG:    bg,
			Style: styleFromAttrs(c.Attrs, ' '),
		})
		return
	}

	ch := c.Ch
	glyph := t.font.GlyphIndex(ch)
	if wm != nil {
		if custom := wm.OnCellSync(col, row, ch, c.Width); custom != 0 {
			glyph = custom
		}
	}

	t.grid.SetCell(col, row, cellgrid.Cell{
		Glyph: glyph,
		FG:    fg,
		BG:    bg,
		Style: styleFromAttrs(c.Attrs, ch),
	})
}

// resolveColors converts a decoder cell's colors to RGB, applying the
// reverse-video attribute and then selection-membership inversion on top
// (spec §4.2 "Color conversion").
func (t *Terminal) resolveColors(c termCell, row, col int) (fg [4]uint8, bg [3]uint8) {
	fgRGB := c.FG.resolve(false)
	bgRGB := c.BG.resolve(true)
	if c.Attrs&attrReverse != 0 {
		fgRGB, bgRGB = bgRGB, fgRGB
	}
	if t.isInSelection(row, col) {
		fgRGB, bgRGB = bgRGB, fgRGB
	}
	return [4]uint8{fgRGB[0], fgRGB[1], fgRGB[2], 255}, bgRGB
}
