package term

// colorKind says how a termColor should be resolved to RGB.
type colorKind uint8

const (
	colorDefault colorKind = iota
	colorIndexed
	colorRGB
)

// termColor is the decoder-side color representation, resolved to RGB only
// at grid-sync time (spec §4.2 "Color conversion").
type termColor struct {
	kind  colorKind
	index uint8
	r, g, b uint8
}

var defaultFG = termColor{kind: colorDefault}
var defaultBG = termColor{kind: colorDefault}

func indexedColor(i uint8) termColor { return termColor{kind: colorIndexed, index: i} }

func rgbColor(r, g, b uint8) termColor { return termColor{kind: colorRGB, r: r, g: g, b: b} }

// resolve converts a termColor to concrete RGB. Default-fg resolves to white,
// default-bg to black (spec §9 "Color semantics").
func (c termColor) resolve(isBG bool) [3]uint8 {
	switch c.kind {
	case colorIndexed:
		return palette256[c.index]
	case colorRGB:
		return [3]uint8{c.r, c.g, c.b}
	default:
		if isBG {
			return [3]uint8{0, 0, 0}
		}
		return [3]uint8{255, 255, 255}
	}
}

// palette256 is the xterm 256-color palette, standard-16 entries using the
// classic VGA/ANSI intensities (grounded on teacher src/emulator/cell.go's
// palette256, re-expressed as plain RGB byte triples instead of
// image/color.NRGBA since the grid only ever needs raw bytes).
var palette256 [256][3]uint8

func init() {
	standard := [16][3]uint8{
		{0, 0, 0}, {170, 0, 0}, {0, 170, 0}, {170, 85, 0},
		{0, 0, 170}, {170, 0, 170}, {0, 170, 170}, {170, 170, 170},
		{85, 85, 85}, {255, 85, 85}, {85, 255, 85}, {255, 255, 85},
		{85, 85, 255}, {255, 85, 255}, {85, 255, 255}, {255, 255, 255},
	}
	copy(palette256[:16], standard[:])

	levels := [6]uint8{0, 95, 135, 175, 215, 255}
	for r := 0; r < 6; r++ {
		for g := 0; g < 6; g++ {
			for b := 0; b < 6; b++ {
				palette256[16+r*36+g*6+b] = [3]uint8{levels[r], levels[g], levels[b]}
			}
		}
	}

	for i := 0; i < 24; i++ {
		level := uint8(8 + i*10)
		palette256[232+i] = [3]uint8{level, level, level}
	}
}
