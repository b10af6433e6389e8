package term

import "testing"

func TestDefaultColorsResolve(t *testing.T) {
	if got := defaultFG.resolve(false); got != [3]uint8{255, 255, 255} {
		t.Errorf("default fg = %v, want white", got)
	}
	if got := defaultBG.resolve(true); got != [3]uint8{0, 0, 0} {
		t.Errorf("default bg = %v, want black", got)
	}
}

func TestPalette16Red(t *testing.T) {
	got := indexedColor(1).resolve(false)
	want := [3]uint8{170, 0, 0}
	if got != want {
		t.Errorf("palette256[1] = %v, want %v", got, want)
	}
}

func TestPalette256ColorCube(t *testing.T) {
	// index 16 is the (0,0,0) corner of the 6x6x6 cube.
	if got := indexedColor(16).resolve(false); got != [3]uint8{0, 0, 0} {
		t.Errorf("palette256[16] = %v, want black", got)
	}
	// index 231 is the (5,5,5) corner: pure white.
	if got := indexedColor(231).resolve(false); got != [3]uint8{255, 255, 255} {
		t.Errorf("palette256[231] = %v, want white", got)
	}
}

func TestPalette256Grayscale(t *testing.T) {
	got := indexedColor(232).resolve(false)
	want := [3]uint8{8, 8, 8}
	if got != want {
		t.Errorf("palette256[232] = %v, want %v", got, want)
	}
}

func TestRGBColorResolve(t *testing.T) {
	got := rgbColor(12, 34, 56).resolve(false)
	if got != [3]uint8{12, 34, 56} {
		t.Errorf("rgbColor resolve = %v, want {12,34,56}", got)
	}
}
