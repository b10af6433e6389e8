package host

import (
	"fmt"
	"testing"

	"github.com/gogpu/wgpu/hal"

	"gputerm/src/cellgrid"
	"gputerm/src/render"
	"gputerm/src/scrollback"
	"gputerm/src/term"
	"gputerm/src/widget"
)

type fakeFont struct{}

func (fakeFont) GlyphIndex(r rune) cellgrid.GlyphIndex { return cellgrid.GlyphIndex(r) }
func (fakeFont) MSDFAtlasView() hal.TextureView { return nil }
func (fakeFont) MSDFSampler() hal.Sampler       { return nil }
func (fakeFont) GlyphMetadata() []byte          { return nil }
func (fakeFont) EmojiAtlasView() hal.TextureView { return nil }
func (fakeFont) EmojiSampler() hal.Sampler      { return nil }
func (fakeFont) EmojiMetadata() []byte          { return nil }
func (fakeFont) CellSize() (w, h float32)       { return 10, 20 }
func (fakeFont) PixelRange() float32            { return 2 }
func (fakeFont) Version() uint64                { return 1 }

type fakePlugin struct {
	widget.BasePlugin
}

func (fakePlugin) Name() string                     { return "fake" }
func (fakePlugin) Init(payload []byte) error         { return nil }
func (fakePlugin) Render(ctx widget.GPUContext, x, y, w, h float32) {}

func TestMapCursorStyle(t *testing.T) {
	cases := []struct {
		in   term.CursorStyle
		want render.CursorStyle
	}{
		{term.CursorBlock, render.CursorStyleBlock},
		{term.CursorUnderline, render.CursorStyleUnderline},
		{term.CursorBar, render.CursorStyleBar},
	}
	for _, tc := range cases {
		if got := mapCursorStyle(tc.in); got != tc.want {
			t.Errorf("mapCursorStyle(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCollectWidgetDrawsAbsolute(t *testing.T) {
	tm := term.New(80, 24, nil, nil, "test")
	wm := widget.NewManager(80, 24)
	wm.Register("fake", func() widget.Plugin { return fakePlugin{} })

	seq := fmt.Sprintf("99999;fake;A;2;3;4;5;%s", widget.Encode(nil))
	if _, _, ok := wm.HandleOSC(seq, tm.Grid(), 0, 0); !ok {
		t.Fatalf("widget create failed")
	}

	l := NewLoop(tm, wm, nil, fakeFont{})
	draws := l.collectWidgetDraws(480)
	if len(draws) != 1 {
		t.Fatalf("expected 1 widget draw, got %d", len(draws))
	}
	d := draws[0]
	if d.PixelX != 20 || d.PixelY != 60 || d.PixelW != 40 || d.PixelH != 100 {
		t.Errorf("draw rect = %+v, want X=20 Y=60 W=40 H=100", d)
	}
}

func TestCollectWidgetDrawsRelativeFollowsScrollOffset(t *testing.T) {
	tm := term.New(80, 24, nil, nil, "test")
	wm := widget.NewManager(80, 24)
	wm.Register("fake", func() widget.Plugin { return fakePlugin{} })

	seq := fmt.Sprintf("99999;fake;R;0;0;4;1;%s", widget.Encode(nil))
	if _, _, ok := wm.HandleOSC(seq, tm.Grid(), 0, 10); !ok {
		t.Fatalf("widget create failed")
	}

	for i := 0; i < 5; i++ {
		tm.Scrollback().Push(scrollback.Line{})
	}

	l := NewLoop(tm, wm, nil, fakeFont{})
	before := l.collectWidgetDraws(480)[0].PixelY

	tm.ScrollUp(3)
	after := l.collectWidgetDraws(480)[0].PixelY

	cellH := float32(20)
	if after-before != 3*cellH {
		t.Errorf("scrolling up by 3 should move the relative widget down on screen by 3 cell heights: before=%v after=%v", before, after)
	}
}
