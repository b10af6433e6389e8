package cellgrid

import "testing"

func TestNewGrid(t *testing.T) {
	g := New(80, 24)

	cols, rows := g.Size()
	if cols != 80 || rows != 24 {
		t.Errorf("Size() = (%d, %d), want (80, 24)", cols, rows)
	}
	if !g.FullDamage() {
		t.Error("a freshly created grid should start fully damaged")
	}
	if g.Cell(0, 0) != SpaceCell {
		t.Errorf("Cell(0,0) = %+v, want SpaceCell", g.Cell(0, 0))
	}
}

func TestGridClampsDimensions(t *testing.T) {
	g := New(0, 0)
	cols, rows := g.Size()
	if cols != 1 || rows != 1 {
		t.Errorf("Size() = (%d, %d), want (1, 1)", cols, rows)
	}

	g2 := New(MaxCols+100, MaxRows+100)
	cols2, rows2 := g2.Size()
	if cols2 != MaxCols || rows2 != MaxRows {
		t.Errorf("Size() = (%d, %d), want (%d, %d)", cols2, rows2, MaxCols, MaxRows)
	}
}

func TestSetCellOutOfBoundsIsNoOp(t *testing.T) {
	g := New(10, 10)
	g.SetCell(-1, 0, Cell{Glyph: 'X'})
	g.SetCell(0, -1, Cell{Glyph: 'X'})
	g.SetCell(10, 0, Cell{Glyph: 'X'})
	g.SetCell(0, 10, Cell{Glyph: 'X'})
	// None of the above should have panicked or mutated anything in bounds.
	if g.Cell(0, 0) != SpaceCell {
		t.Errorf("Cell(0,0) = %+v, want unchanged SpaceCell", g.Cell(0, 0))
	}
}

func TestWidgetIDAgreement(t *testing.T) {
	g := New(10, 5)
	g.SetWidgetID(2, 2, 7)

	if g.WidgetIDAt(2, 2) != 7 {
		t.Errorf("WidgetIDAt(2,2) = %d, want 7", g.WidgetIDAt(2, 2))
	}
	if g.Cell(2, 2).Glyph != WidgetGlyph {
		t.Errorf("Cell(2,2).Glyph = %#x, want WidgetGlyph", g.Cell(2, 2).Glyph)
	}

	g.ClearWidgetID(2, 2)
	if g.WidgetIDAt(2, 2) != 0 {
		t.Errorf("WidgetIDAt(2,2) after clear = %d, want 0", g.WidgetIDAt(2, 2))
	}
	if g.Cell(2, 2) != SpaceCell {
		t.Errorf("Cell(2,2) after clear = %+v, want SpaceCell", g.Cell(2, 2))
	}
}

func TestResizePreservesTopLeftOverlap(t *testing.T) {
	g := New(5, 5)
	for row := 0; row < 5; row++ {
		for col := 0; col < 5; col++ {
			g.SetCell(col, row, Cell{Glyph: GlyphIndex('A' + row*5 + col)})
		}
	}
	g.ClearDamage()

	g.Resize(3, 3)

	cols, rows := g.Size()
	if cols != 3 || rows != 3 {
		t.Fatalf("Size() = (%d,%d), want (3,3)", cols, rows)
	}
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			want := GlyphIndex('A' + row*5 + col)
			if got := g.Cell(col, row).Glyph; got != want {
				t.Errorf("Cell(%d,%d) = %#x, want %#x", col, row, got, want)
			}
		}
	}
	if !g.FullDamage() {
		t.Error("Resize should set full damage")
	}
}

func TestResizeIsIdempotent(t *testing.T) {
	g := New(4, 4)
	g.SetCell(1, 1, Cell{Glyph: 'Z'})
	g.Resize(6, 6)
	first := append([]Cell(nil), g.cells...)

	g.Resize(6, 6)
	second := g.cells

	if len(first) != len(second) {
		t.Fatalf("cell count changed across idempotent resize: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("cell %d changed across idempotent resize: %+v vs %+v", i, first[i], second[i])
		}
	}
	if !g.FullDamage() {
		t.Error("Resize should leave full damage set")
	}
}

func TestDamageClamp(t *testing.T) {
	g := New(10, 10)
	g.ClearDamage()
	g.AddDamage(Rect{MinCol: -5, MinRow: -5, MaxCol: 100, MaxRow: 100})
	if len(g.Damage()) != 1 {
		t.Fatalf("expected one clamped damage rect, got %d", len(g.Damage()))
	}
	r := g.Damage()[0]
	if r.MinCol != 0 || r.MinRow != 0 || r.MaxCol != 10 || r.MaxRow != 10 {
		t.Errorf("damage rect = %+v, want clamped to grid bounds", r)
	}
}

func TestPackedBytesLength(t *testing.T) {
	g := New(3, 2)
	b := g.PackedBytes()
	if len(b) != 3*2*12 {
		t.Errorf("PackedBytes length = %d, want %d", len(b), 3*2*12)
	}
}
