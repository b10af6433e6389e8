package builtin

import (
	"strings"
	"testing"

	"gputerm/src/widget"
)

func TestWrapFragmentShaderEmbedsUserCode(t *testing.T) {
	user := "fn mainImage(fragCoord: vec2<f32>) -> vec4<f32> { return vec4<f32>(1.0, 0.0, 0.0, 1.0); }"
	wrapped := wrapFragmentShader(user)

	if !strings.Contains(wrapped, user) {
		t.Errorf("wrapped shader does not contain user code verbatim")
	}
	if !strings.Contains(wrapped, "fn fs_main(") {
		t.Errorf("wrapped shader missing fs_main entry point")
	}
	if !strings.Contains(wrapped, "fn vs_main(") {
		t.Errorf("wrapped shader missing vs_main entry point")
	}
	if !strings.Contains(wrapped, "struct Uniforms") {
		t.Errorf("wrapped shader missing Uniforms struct")
	}
}

func TestClampF32(t *testing.T) {
	cases := []struct {
		v, lo, hi, want float32
	}{
		{-1, 0, 5, 0},
		{10, 0, 5, 5},
		{2.5, 0, 5, 2.5},
	}
	for _, tc := range cases {
		if got := clampF32(tc.v, tc.lo, tc.hi); got != tc.want {
			t.Errorf("clampF32(%v, %v, %v) = %v, want %v", tc.v, tc.lo, tc.hi, got, tc.want)
		}
	}
}

func TestShaderPluginOnMouseScrollZoomVsParam(t *testing.T) {
	p := NewShaderPlugin().(*ShaderPlugin)

	p.OnMouseScroll(0, 1, 0x0002) // ctrl held -> zoom
	if p.zoom <= 1.0 {
		t.Errorf("ctrl+scroll should increase zoom, got %v", p.zoom)
	}
	if p.param != 0 {
		t.Errorf("ctrl+scroll should not touch param, got %v", p.param)
	}

	p2 := NewShaderPlugin().(*ShaderPlugin)
	p2.OnMouseScroll(0, 1, 0) // no mods -> param
	if p2.param <= 0 {
		t.Errorf("plain scroll should increase param, got %v", p2.param)
	}
	if p2.zoom != 1.0 {
		t.Errorf("plain scroll should not touch zoom, got %v", p2.zoom)
	}
}

func TestShaderPluginInitRejectsEmptyPayload(t *testing.T) {
	p := NewShaderPlugin()
	if err := p.Init(nil); err == nil {
		t.Errorf("expected error for empty payload")
	}
}

func TestShaderPluginPrepareRejectsWrongContextType(t *testing.T) {
	p := NewShaderPlugin()
	if err := p.Init([]byte("fn mainImage(fragCoord: vec2<f32>) -> vec4<f32> { return vec4<f32>(0.0); }")); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := p.Prepare(struct{}{}); err == nil {
		t.Errorf("expected error for non-RenderContext GPUContext")
	}
}

func TestRegisterAllAddsShaderPlugin(t *testing.T) {
	m := widget.NewManager(80, 24)
	RegisterAll(m)

	seq := "99999;plugins"
	resp, _, ok := m.HandleOSC(seq, nil, 0, 0)
	if !ok {
		t.Fatalf("plugins command not handled")
	}
	if !strings.Contains(resp, ShaderPluginName) {
		t.Errorf("plugins response %q does not list %q", resp, ShaderPluginName)
	}
}
