package builtin

import "gputerm/src/widget"

// RegisterAll adds every plugin the core ships by default to m. Embedding
// applications call this once at startup, alongside any of their own
// plugin registrations (widget.Manager.Register takes either indifferently
// — there is nothing privileged about a "built-in").
func RegisterAll(m *widget.Manager) {
	m.Register(ShaderPluginName, NewShaderPlugin)
}
