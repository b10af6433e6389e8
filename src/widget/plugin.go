// Package widget implements the terminal's widget system: the OSC 99999
// extension protocol, the plugin registry, per-widget lifecycle, grid
// marking, input routing, and the custom-glyph dispatch path (spec §4.3).
package widget

// PositionMode says whether a widget's cell position is fixed or tracks
// the content it was created next to (spec §4.3 "Grid marking").
type PositionMode uint8

const (
	// PositionAbsolute is a fixed grid position; it never moves.
	PositionAbsolute PositionMode = iota
	// PositionRelative was created relative to the cursor and scrolls
	// with the content above it.
	PositionRelative
)

// GPUContext is the renderer's drawing surface, opaque from the widget
// manager's point of view (spec §9 "Grid vs widget storage" applies the
// same separation to rendering: a Plugin's render call receives whatever
// the concrete renderer hands it, without the widget package needing to
// import the renderer). Concrete renderers type-assert to their own
// context type.
type GPUContext interface{}

// Plugin is the contract every widget type implements (spec §4.3 "Widget
// contract"), grounded on original_source's yetty::Plugin base class —
// generalized from virtual methods with default bodies to a plain Go
// interface plus an embeddable BasePlugin for the common no-op defaults.
type Plugin interface {
	Name() string
	Init(payload []byte) error
	Dispose()
	Update(deltaTime float64)
	// Prepare runs once per frame, before the grid pass, for widgets that
	// render into their own offscreen texture first (spec's pre-render
	// phase, grounded on original_source's ShaderToy/Image plugins). Most
	// plugins draw straight into the shared pass in Render and leave this
	// as a no-op.
	Prepare(ctx GPUContext) error
	Render(ctx GPUContext, pixelX, pixelY, pixelW, pixelH float32)
	OnResize(newPixelW, newPixelH uint32)
	OnMouseMove(localX, localY float32) (consumed bool)
	OnMouseButton(button int, pressed bool) (consumed bool)
	OnMouseScroll(dx, dy float32, mods int) (consumed bool)
	OnKey(key, scancode, action, mods int) (consumed bool)
	OnChar(codepoint rune) (consumed bool)
	WantsKeyboard() bool
	WantsMouse() bool
}

// BasePlugin supplies the no-op defaults original_source's Plugin base
// class gives each virtual method, so concrete plugins only override what
// they need.
type BasePlugin struct{}

func (BasePlugin) Dispose()                                             {}
func (BasePlugin) Prepare(ctx GPUContext) error                         { return nil }
func (BasePlugin) Update(deltaTime float64)                             {}
func (BasePlugin) OnResize(newPixelW, newPixelH uint32)                  {}
func (BasePlugin) OnMouseMove(localX, localY float32) bool               { return false }
func (BasePlugin) OnMouseButton(button int, pressed bool) bool           { return false }
func (BasePlugin) OnMouseScroll(dx, dy float32, mods int) bool           { return false }
func (BasePlugin) OnKey(key, scancode, action, mods int) bool            { return false }
func (BasePlugin) OnChar(codepoint rune) bool                            { return false }
func (BasePlugin) WantsKeyboard() bool                                   { return false }
func (BasePlugin) WantsMouse() bool                                      { return false }

// Factory constructs a fresh Plugin instance for one widget.
type Factory func() Plugin
