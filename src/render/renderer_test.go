package render

import "testing"

func TestBoolToU32(t *testing.T) {
	if boolToU32(true) != 1 {
		t.Errorf("boolToU32(true) = %d, want 1", boolToU32(true))
	}
	if boolToU32(false) != 0 {
		t.Errorf("boolToU32(false) = %d, want 0", boolToU32(false))
	}
}

func TestWidgetDrawOffScreenCulling(t *testing.T) {
	const screenH = 480.0

	cases := []struct {
		name    string
		w       WidgetDraw
		visible bool
	}{
		{"fully above", WidgetDraw{PixelY: -100, PixelH: 50}, false},
		{"fully below", WidgetDraw{PixelY: 500, PixelH: 50}, false},
		{"zero height", WidgetDraw{PixelY: 10, PixelH: 0}, false},
		{"straddles top edge", WidgetDraw{PixelY: -10, PixelH: 30}, true},
		{"fully inside", WidgetDraw{PixelY: 100, PixelH: 40}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			off := widgetOffScreen(tc.w, screenH)
			if off == tc.visible {
				t.Errorf("widgetOffScreen(%+v) = %v, want visible=%v", tc.w, off, tc.visible)
			}
		})
	}
}

func TestCursorStyleConstants(t *testing.T) {
	if CursorStyleBlock != 0 || CursorStyleUnderline != 1 || CursorStyleBar != 2 {
		t.Errorf("cursor style ordinals changed: block=%d underline=%d bar=%d",
			CursorStyleBlock, CursorStyleUnderline, CursorStyleBar)
	}
}

func TestUniformBufferSizeIsWordAligned(t *testing.T) {
	if uniformBufferSize%4 != 0 {
		t.Errorf("uniformBufferSize = %d must be a multiple of 4", uniformBufferSize)
	}
}
