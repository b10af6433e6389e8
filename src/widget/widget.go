package widget

// Widget is one live instance of a Plugin, bound to a grid rectangle
// (spec §3 Widget, §4.3). The Manager's id map and focus/hover slots hold
// non-owning references to it; the Plugin is the only owner (spec §9
// "Widget back-references").
type Widget struct {
	ID     uint32
	HashID string

	PluginName string
	Plugin     Plugin

	Mode PositionMode
	// X, Y are cell coordinates: for PositionAbsolute these are fixed;
	// for PositionRelative, Y is adjusted by OnScroll as content scrolls.
	X, Y int
	W, H int

	// AltScreen records which screen the widget belongs to (spec §4.3
	// "Screen toggle"): a widget only renders while this matches the
	// terminal's current screen.
	AltScreen bool

	Running bool
	Visible bool
	Focused bool

	// customGlyph is true for the single-cell widgets OnCellSync creates
	// lazily; they are never grid-marked with WIDGET_GLYPH (spec §4.3
	// "Custom-glyph plugins" occupies the reserved custom glyph range
	// instead) and are tracked in the position-keyed glyphByPos map as
	// well as the regular id map.
	customGlyph bool
	codepoint   rune
}

// Rect returns the widget's cell rectangle as (minCol, minRow, maxCol,
// maxRow), exclusive on the max side.
func (w *Widget) Rect() (minCol, minRow, maxCol, maxRow int) {
	return w.X, w.Y, w.X + w.W, w.Y + w.H
}
