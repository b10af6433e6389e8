package widget

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"gputerm/src/cellgrid"
)

const oscVendorID = 99999

// hashIDAlphabet is the alphanumeric charset widget hash ids are drawn
// from (spec §6 "Hash id: [A-Za-z0-9]{8}").
const hashIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// customGlyphRegistration is one registered codepoint range for the
// custom-glyph dispatch path (spec §4.3 "Custom-glyph plugins").
type customGlyphRegistration struct {
	lo, hi  rune
	factory Factory
}

// Manager is the widget system: plugin registry, live widget table, grid
// marking, input routing, and the OSC 99999 dispatch point. It implements
// term.WidgetHost, but does not import the term package — spec §9's
// "Cyclic shape avoidance" note is satisfied by Terminal taking a
// WidgetHost interface value rather than Manager depending on Terminal.
type Manager struct {
	mu sync.Mutex

	cols, rows int

	factories     map[string]Factory
	customGlyphs  []customGlyphRegistration
	glyphByPos    map[uint64]*Widget // (row<<32|col) -> lazily-created custom-glyph widget

	widgets map[uint32]*Widget
	byHash  map[string]*Widget
	nextID  uint32

	altScreen bool
	focused   *Widget
	hovered   *Widget
}

// NewManager creates an empty widget manager sized to the terminal's
// current grid.
func NewManager(cols, rows int) *Manager {
	return &Manager{
		cols:       cols,
		rows:       rows,
		factories:  make(map[string]Factory),
		glyphByPos: make(map[uint64]*Widget),
		widgets:    make(map[uint32]*Widget),
		byHash:     make(map[string]*Widget),
	}
}

// Register adds a plugin factory under name, used by the `A`/`R`/`U`
// create/update OSC commands.
func (m *Manager) Register(name string, f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[name] = f
}

// RegisterCustomGlyph claims codepoints in [lo,hi] for the custom-glyph
// dispatch path (spec §4.3 "A distinct registration path allows a plugin
// to claim a codepoint range").
func (m *Manager) RegisterCustomGlyph(lo, hi rune, f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customGlyphs = append(m.customGlyphs, customGlyphRegistration{lo: lo, hi: hi, factory: f})
}

// Resize updates the terminal dimensions the manager resolves stretch
// width/height against.
func (m *Manager) Resize(cols, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cols, m.rows = cols, rows
}

// --- term.WidgetHost implementation ---

// HandleOSC dispatches one OSC-99999 payload (spec §4.3 "Extension
// protocol"). seq is "99999;..."; grid is marked in place for create,
// destroy and kill.
func (m *Manager) HandleOSC(seq string, grid *cellgrid.Grid, cursorCol, cursorRow int) (response string, linesToAdvance uint32, handled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rest := strings.TrimPrefix(seq, strconv.Itoa(oscVendorID)+";")
	if rest == seq {
		return "", 0, false
	}
	parts := strings.Split(rest, ";")
	if len(parts) == 0 {
		return "", 0, false
	}

	switch parts[0] {
	case "list":
		all := len(parts) > 1 && parts[1] == "--all"
		return m.listResponse(all), 0, true
	case "plugins":
		return m.pluginsResponse(), 0, true
	case "stop":
		m.setRunning(parts[1:], false)
		return "", 0, true
	case "start":
		m.setRunning(parts[1:], true)
		return "", 0, true
	case "kill":
		m.killMatching(grid, parts[1:])
		return "", 0, true
	}

	// Positional create/update/destroy: <plugin>;<A|R|U|D>;...
	if len(parts) < 2 {
		return "", 0, false
	}
	plugin, mode := parts[0], parts[1]
	switch mode {
	case "A", "R":
		return m.create(grid, plugin, mode, parts[2:], cursorCol, cursorRow)
	case "U":
		m.update(parts[2:])
		return "", 0, true
	case "D":
		m.destroy(grid, parts[2:])
		return "", 0, true
	}
	return "", 0, false
}

func (m *Manager) create(grid *cellgrid.Grid, pluginName, mode string, args []string, cursorCol, cursorRow int) (string, uint32, bool) {
	if len(args) < 5 {
		return "", 0, false
	}
	factory, ok := m.factories[pluginName]
	if !ok {
		return "", 0, false
	}
	x, errX := strconv.Atoi(args[0])
	y, errY := strconv.Atoi(args[1])
	rawW, errW := strconv.Atoi(args[2])
	rawH, errH := strconv.Atoi(args[3])
	if errX != nil || errY != nil || errW != nil || errH != nil {
		return "", 0, false
	}
	payload, err := Decode(args[4])
	if err != nil {
		return "", 0, false
	}

	absX, absY := x, y
	if mode == "R" {
		absX, absY = cursorCol+x, cursorRow+y
	}
	w := resolveDim(rawW, absX, m.cols)
	h := resolveDim(rawH, absY, m.rows)
	if w <= 0 || h <= 0 {
		return "", 0, false
	}

	p := factory()
	if err := p.Init(payload); err != nil {
		// Construction error: no partial widget left in the grid
		// (spec §7 "Widget init failure").
		return "", 0, false
	}

	wg := &Widget{
		ID:         m.allocID(),
		HashID:     m.allocHashID(),
		PluginName: pluginName,
		Plugin:     p,
		Mode:       positionModeOf(mode),
		X:          absX, Y: absY, W: w, H: h,
		AltScreen: m.altScreen,
		Running:   true,
		Visible:   true,
	}
	m.widgets[wg.ID] = wg
	m.byHash[wg.HashID] = wg
	m.mark(grid, wg)

	if mode == "R" {
		return "", uint32(h), true
	}
	return "", 0, true
}

func (m *Manager) update(args []string) {
	if len(args) < 2 {
		return
	}
	wg, ok := m.byHash[args[0]]
	if !ok {
		return
	}
	payload, err := Decode(args[1])
	if err != nil {
		return
	}
	wg.Plugin.Init(payload)
}

func (m *Manager) destroy(grid *cellgrid.Grid, args []string) {
	if len(args) < 1 {
		return
	}
	wg, ok := m.byHash[args[0]]
	if !ok {
		return
	}
	m.removeWidget(grid, wg)
}

func (m *Manager) removeWidget(grid *cellgrid.Grid, wg *Widget) {
	m.unmark(grid, wg)
	wg.Plugin.Dispose()
	delete(m.widgets, wg.ID)
	delete(m.byHash, wg.HashID)
	if m.focused == wg {
		m.focused = nil
	}
	if m.hovered == wg {
		m.hovered = nil
	}
}

func (m *Manager) setRunning(args []string, running bool) {
	for _, wg := range m.matching(args) {
		wg.Running = running
	}
}

func (m *Manager) killMatching(grid *cellgrid.Grid, args []string) {
	for _, wg := range m.matching(args) {
		m.removeWidget(grid, wg)
	}
}

// matching resolves "--id=<hash>" or "--plugin=<name>" selector args
// against the live widget table.
func (m *Manager) matching(args []string) []*Widget {
	var out []*Widget
	for _, a := range args {
		switch {
		case strings.HasPrefix(a, "--id="):
			if wg, ok := m.byHash[strings.TrimPrefix(a, "--id=")]; ok {
				out = append(out, wg)
			}
		case strings.HasPrefix(a, "--plugin="):
			name := strings.TrimPrefix(a, "--plugin=")
			for _, wg := range m.widgets {
				if wg.PluginName == name {
					out = append(out, wg)
				}
			}
		}
	}
	return out
}

type widgetInfo struct {
	HashID  string `json:"hashId"`
	Plugin  string `json:"plugin"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	W       int    `json:"w"`
	H       int    `json:"h"`
	Running bool   `json:"running"`
}

func (m *Manager) listResponse(all bool) string {
	var infos []widgetInfo
	for _, wg := range m.widgets {
		if !all && !wg.Running {
			continue
		}
		infos = append(infos, widgetInfo{
			HashID: wg.HashID, Plugin: wg.PluginName,
			X: wg.X, Y: wg.Y, W: wg.W, H: wg.H, Running: wg.Running,
		})
	}
	b, err := json.Marshal(infos)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func (m *Manager) pluginsResponse() string {
	names := make([]string, 0, len(m.factories))
	for name := range m.factories {
		names = append(names, name)
	}
	b, err := json.Marshal(names)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// OnScroll re-flows every Relative widget by delta lines (spec §4.3
// "Scroll re-flow"). Absolute widgets are untouched.
func (m *Manager) OnScroll(delta int, grid *cellgrid.Grid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if delta == 0 {
		return
	}
	for _, wg := range m.widgets {
		if wg.Mode != PositionRelative {
			continue
		}
		m.unmark(grid, wg)
		wg.Y -= delta
		m.mark(grid, wg)
	}
}

// OnAltScreenChange updates the active-screen flag, clearing focus and
// hover if they point at a widget on the screen being left (spec §4.3
// "Screen toggle").
func (m *Manager) OnAltScreenChange(altScreen bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.altScreen = altScreen
	if m.focused != nil && m.focused.AltScreen != altScreen {
		m.focused.Plugin.OnMouseButton(-1, false)
		m.focused.Focused = false
		m.focused = nil
	}
	m.hovered = nil
}

// OnCellSync lets a custom-glyph plugin claim (col,row); see spec §4.3
// "Custom-glyph plugins". Returns 0 if nothing claims the cell.
func (m *Manager) OnCellSync(col, row int, codepoint rune, width int) cellgrid.GlyphIndex {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := posKey(col, row)
	if existing, ok := m.glyphByPos[key]; ok {
		if existing.codepoint == codepoint {
			return customGlyphIndex(existing.codepoint, m.customGlyphs)
		}
		existing.Plugin.Dispose()
		delete(m.glyphByPos, key)
		delete(m.widgets, existing.ID)
	}

	for _, reg := range m.customGlyphs {
		if codepoint < reg.lo || codepoint > reg.hi {
			continue
		}
		p := reg.factory()
		if err := p.Init([]byte(string(codepoint))); err != nil {
			return 0
		}
		wg := &Widget{
			ID: m.allocID(), HashID: m.allocHashID(),
			Plugin: p, X: col, Y: row, W: 1, H: 1,
			Running: true, Visible: true,
			customGlyph: true, codepoint: codepoint,
		}
		m.widgets[wg.ID] = wg
		m.glyphByPos[key] = wg
		return customGlyphIndex(codepoint, m.customGlyphs)
	}
	return 0
}

func posKey(col, row int) uint64 {
	return uint64(uint32(row))<<32 | uint64(uint32(col))
}

// customGlyphIndex maps a claimed codepoint into the reserved per-position
// custom glyph range (spec §6 "0xF000..=0xFFFD reserved for per-position
// custom glyphs").
func customGlyphIndex(codepoint rune, regs []customGlyphRegistration) cellgrid.GlyphIndex {
	for _, reg := range regs {
		if codepoint >= reg.lo && codepoint <= reg.hi {
			offset := cellgrid.GlyphIndex(codepoint - reg.lo)
			idx := cellgrid.CustomGlyphLow + offset
			if idx > cellgrid.CustomGlyphHigh {
				idx = cellgrid.CustomGlyphHigh
			}
			return idx
		}
	}
	return 0
}

// --- grid marking ---

func (m *Manager) mark(grid *cellgrid.Grid, wg *Widget) {
	if grid == nil || wg.customGlyph {
		return
	}
	minCol, minRow, maxCol, maxRow := wg.Rect()
	for row := minRow; row < maxRow; row++ {
		for col := minCol; col < maxCol; col++ {
			grid.SetWidgetID(col, row, uint16(wg.ID))
		}
	}
}

func (m *Manager) unmark(grid *cellgrid.Grid, wg *Widget) {
	if grid == nil || wg.customGlyph {
		return
	}
	minCol, minRow, maxCol, maxRow := wg.Rect()
	for row := minRow; row < maxRow; row++ {
		for col := minCol; col < maxCol; col++ {
			grid.ClearWidgetID(col, row)
		}
	}
}

// VisibleWidgets returns every non-custom-glyph widget belonging to the
// currently active screen and marked visible and running, for the host
// frame loop's widget render pass (spec §4.4 "each visible widget whose
// screen matches the active screen").
func (m *Manager) VisibleWidgets() []*Widget {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Widget, 0, len(m.widgets))
	for _, wg := range m.widgets {
		if wg.customGlyph || !wg.Visible || !wg.Running || wg.AltScreen != m.altScreen {
			continue
		}
		out = append(out, wg)
	}
	return out
}

// UpdateAll advances every running widget's animation/timer state by
// deltaTime (spec §4.3 Plugin.Update, called once per frame).
func (m *Manager) UpdateAll(deltaTime float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, wg := range m.widgets {
		if wg.Running {
			wg.Plugin.Update(deltaTime)
		}
	}
}

// PrepareAll runs the pre-render phase for every visible, running widget
// on the active screen, ahead of the grid pass (spec's pre-render phase:
// "let plugins render to their intermediate textures before the shared
// render pass"). The first error aborts the remaining widgets' Prepare
// calls for this frame; widgets already drawn keep last frame's texture.
func (m *Manager) PrepareAll(ctx GPUContext) error {
	m.mu.Lock()
	widgets := make([]*Widget, 0, len(m.widgets))
	for _, wg := range m.widgets {
		if wg.customGlyph || !wg.Visible || !wg.Running || wg.AltScreen != m.altScreen {
			continue
		}
		widgets = append(widgets, wg)
	}
	m.mu.Unlock()

	for _, wg := range widgets {
		if err := wg.Plugin.Prepare(ctx); err != nil {
			return err
		}
	}
	return nil
}

// --- input routing (spec §4.3 "Input routing") ---

// widgetAt returns the visible widget on the active screen occupying
// (col,row), or nil.
func (m *Manager) widgetAt(col, row int) *Widget {
	for _, wg := range m.widgets {
		if wg.customGlyph || wg.AltScreen != m.altScreen || !wg.Visible {
			continue
		}
		minCol, minRow, maxCol, maxRow := wg.Rect()
		if col >= minCol && col < maxCol && row >= minRow && row < maxRow {
			return wg
		}
	}
	return nil
}

// HandleMouseMove hit-tests (col,row) — already adjusted by the caller
// for scroll_offset per spec §4.3 — and forwards to the widget under the
// cursor iff it wants mouse input.
func (m *Manager) HandleMouseMove(col, row int, localX, localY float32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	wg := m.widgetAt(col, row)
	m.hovered = wg
	if wg == nil || !wg.Plugin.WantsMouse() {
		return false
	}
	return wg.Plugin.OnMouseMove(localX, localY)
}

// HandleMouseButton changes focus on a left-button press to the widget
// under the cursor (spec §4.3 "Button events change focus").
func (m *Manager) HandleMouseButton(col, row int, button int, pressed bool, localX, localY float32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	wg := m.widgetAt(col, row)

	if button == 0 && pressed && wg != m.focused {
		if m.focused != nil {
			m.focused.Plugin.OnMouseButton(-1, false)
			m.focused.Focused = false
		}
		m.focused = nil
		if wg != nil && (wg.Plugin.WantsMouse() || wg.Plugin.WantsKeyboard()) {
			wg.Plugin.OnMouseMove(localX, localY)
			wg.Focused = true
			m.focused = wg
		}
	}

	if wg == nil || !wg.Plugin.WantsMouse() {
		return false
	}
	return wg.Plugin.OnMouseButton(button, pressed)
}

// HandleMouseScroll forwards to the widget under the cursor.
func (m *Manager) HandleMouseScroll(col, row int, dx, dy float32, mods int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	wg := m.widgetAt(col, row)
	if wg == nil || !wg.Plugin.WantsMouse() {
		return false
	}
	return wg.Plugin.OnMouseScroll(dx, dy, mods)
}

// HandleKey forwards to the focused widget iff it wants keyboard input.
func (m *Manager) HandleKey(key, scancode, action, mods int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.focused == nil || !m.focused.Plugin.WantsKeyboard() {
		return false
	}
	return m.focused.Plugin.OnKey(key, scancode, action, mods)
}

// HandleChar forwards to the focused widget iff it wants keyboard input.
func (m *Manager) HandleChar(codepoint rune) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.focused == nil || !m.focused.Plugin.WantsKeyboard() {
		return false
	}
	return m.focused.Plugin.OnChar(codepoint)
}

// --- helpers ---

func resolveDim(raw, pos, total int) int {
	switch {
	case raw == 0:
		return total - pos
	case raw < 0:
		return total + raw
	default:
		return raw
	}
}

func positionModeOf(mode string) PositionMode {
	if mode == "R" {
		return PositionRelative
	}
	return PositionAbsolute
}

func (m *Manager) allocID() uint32 {
	m.nextID++
	id := m.nextID
	for {
		if _, taken := m.widgets[id]; !taken {
			return id
		}
		id++
	}
}

func (m *Manager) allocHashID() string {
	for {
		id := randomHashID()
		if _, taken := m.byHash[id]; !taken {
			return id
		}
	}
}

func randomHashID() string {
	// A uuid gives 16 bytes of randomness per spec §4.3's "a uuid is
	// generated and folded down to 8 alphanumeric characters"; fold it by
	// mapping each of the first 8 bytes through hashIDAlphabet.
	u := uuid.New()
	out := make([]byte, 8)
	for i := range out {
		out[i] = hashIDAlphabet[int(u[i])%len(hashIDAlphabet)]
	}
	return string(out)
}
