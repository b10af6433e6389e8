package term

import "testing"

func TestMouseReportingModeTracksDECSET(t *testing.T) {
	tm := newTestTerminal(80, 24)
	if tm.MouseReportingMode() != 0 {
		t.Fatalf("expected mouse reporting off by default, got mode %d", tm.MouseReportingMode())
	}

	tm.feed([]byte("\x1b[?1002h"), nil)
	if tm.MouseReportingMode() != 1002 {
		t.Errorf("MouseReportingMode() = %d, want 1002 after DECSET 1002", tm.MouseReportingMode())
	}

	tm.feed([]byte("\x1b[?1002l"), nil)
	if tm.MouseReportingMode() != 0 {
		t.Errorf("MouseReportingMode() = %d, want 0 after DECRST 1002", tm.MouseReportingMode())
	}
}

func TestShouldForwardMouseRequiresReportingAndNoSelection(t *testing.T) {
	tm := newTestTerminal(80, 24)
	if tm.ShouldForwardMouse() {
		t.Errorf("should not forward mouse with reporting disabled")
	}

	tm.feed([]byte("\x1b[?1000h"), nil)
	if !tm.ShouldForwardMouse() {
		t.Errorf("should forward mouse once reporting is enabled and no selection is active")
	}

	tm.StartSelection(0, 0, SelectionCharacter)
	if tm.ShouldForwardMouse() {
		t.Errorf("an active local selection should take priority over PTY mouse reporting")
	}

	tm.ClearSelection()
	if !tm.ShouldForwardMouse() {
		t.Errorf("clearing the selection should re-enable forwarding")
	}
}
