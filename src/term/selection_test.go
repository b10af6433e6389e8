package term

import "testing"

func TestSelectionCharacterMode(t *testing.T) {
	tm := newTestTerminal(20, 5)
	tm.feed([]byte("hello world"), nil)

	tm.StartSelection(0, 0, SelectionCharacter)
	tm.ExtendSelection(0, 4)

	got := tm.SelectedText()
	if got != "hello" {
		t.Errorf("SelectedText() = %q, want %q", got, "hello")
	}
}

func TestSelectionWordModeStopsAtSpace(t *testing.T) {
	tm := newTestTerminal(20, 5)
	tm.feed([]byte("hello world"), nil)

	tm.StartSelection(0, 8, SelectionWord) // click inside "world"

	got := tm.SelectedText()
	if got != "world" {
		t.Errorf("SelectedText() = %q, want %q", got, "world")
	}
}

func TestSelectionLineModeSpansFullRow(t *testing.T) {
	tm := newTestTerminal(10, 5)
	tm.feed([]byte("abc"), nil)

	tm.StartSelection(0, 1, SelectionLine)
	if !tm.isInSelection(0, 0) || !tm.isInSelection(0, 9) {
		t.Errorf("line-mode selection should span the whole row")
	}
}

func TestClearSelectionDisablesMembership(t *testing.T) {
	tm := newTestTerminal(10, 5)
	tm.StartSelection(0, 0, SelectionCharacter)
	tm.ExtendSelection(0, 5)
	tm.ClearSelection()

	if tm.isInSelection(0, 2) {
		t.Errorf("isInSelection should be false after ClearSelection")
	}
	if tm.SelectedText() != "" {
		t.Errorf("SelectedText should be empty after ClearSelection")
	}
}

func TestSelectionNormalizesReversedDrag(t *testing.T) {
	tm := newTestTerminal(20, 5)
	tm.feed([]byte("hello world"), nil)

	// Drag from right to left: anchor after cursor in document order.
	tm.StartSelection(0, 10, SelectionCharacter)
	tm.ExtendSelection(0, 6)

	got := tm.SelectedText()
	if got != "world" {
		t.Errorf("SelectedText() = %q, want %q", got, "world")
	}
}
