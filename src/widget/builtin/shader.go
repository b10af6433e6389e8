// Package builtin holds the widget plugins the core ships by default,
// grounded on original_source/src/yetty/plugins (ShaderToy, Image): a
// plugin that needs its own GPU pipeline rather than the terminal's cell
// shader, registered alongside whatever the embedding application adds.
package builtin

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"gputerm/src/render"
	"gputerm/src/widget"
)

// ShaderPluginName is the OSC plugin name user payloads address
// ("99999;shader;A;...").
const ShaderPluginName = "shader"

const shaderUniformSize = 64 // time, param, zoom, pad, resolution, pad, rect, mouse

// ShaderPlugin compiles a user-supplied WGSL fragment shader body from its
// OSC payload and draws it into its own quad each frame — the "shader"
// plugin from original_source's ShaderToy, generalized from a WebGPU C++
// class to a Plugin implementation. Compilation is deferred to the
// pre-render phase (Prepare) so a bad shader fails once, not every frame.
type ShaderPlugin struct {
	widget.BasePlugin

	fragmentBody string
	time         float32
	param        float32
	zoom         float32
	mouseX       float32
	mouseY       float32
	mouseGrabbed bool
	mouseDown    bool

	pipeline     hal.RenderPipeline
	bindGroup    hal.BindGroup
	uniformBuf   hal.Buffer
	compiled     bool
	failed       bool

	pixelW, pixelH float32
}

// NewShaderPlugin is registered as the "shader" factory (widget.Factory).
func NewShaderPlugin() widget.Plugin {
	return &ShaderPlugin{zoom: 1}
}

func (p *ShaderPlugin) Name() string { return ShaderPluginName }

func (p *ShaderPlugin) Init(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("shader: empty payload")
	}
	p.fragmentBody = string(payload)
	p.compiled = false
	p.failed = false
	p.time = 0
	return nil
}

func (p *ShaderPlugin) Dispose() {
	p.pipeline = nil
	p.bindGroup = nil
	p.uniformBuf = nil
	p.compiled = false
}

func (p *ShaderPlugin) Update(deltaTime float64) { p.time += float32(deltaTime) }

func (p *ShaderPlugin) OnResize(newPixelW, newPixelH uint32) {
	p.pixelW, p.pixelH = float32(newPixelW), float32(newPixelH)
}

func (p *ShaderPlugin) OnMouseMove(localX, localY float32) bool {
	if p.pixelW > 0 {
		p.mouseX = localX / p.pixelW
	}
	if p.pixelH > 0 {
		p.mouseY = localY / p.pixelH
	}
	return true
}

func (p *ShaderPlugin) OnMouseButton(button int, pressed bool) bool {
	if button == 0 {
		p.mouseDown = pressed
		p.mouseGrabbed = pressed
		return true
	}
	if button == -1 {
		p.mouseGrabbed = false
	}
	return false
}

func (p *ShaderPlugin) OnMouseScroll(dx, dy float32, mods int) bool {
	const modControl = 0x0002
	if mods&modControl != 0 {
		p.zoom = clampF32(p.zoom+dy*0.1, 0.1, 5.0)
	} else {
		p.param = clampF32(p.param+dy*0.1, 0.0, 1.0)
	}
	return true
}

func (p *ShaderPlugin) WantsMouse() bool { return true }

// Prepare compiles the shader once, the first frame after Init or
// Dispose/re-Init, matching original_source's "first time: compile shader"
// guard in render().
func (p *ShaderPlugin) Prepare(ctx widget.GPUContext) error {
	if p.compiled || p.failed {
		return nil
	}
	rc, ok := ctx.(render.RenderContext)
	if !ok {
		return fmt.Errorf("shader: unexpected GPUContext type %T", ctx)
	}
	if err := p.compile(rc); err != nil {
		p.failed = true
		return err
	}
	p.compiled = true
	return nil
}

func (p *ShaderPlugin) compile(rc render.RenderContext) error {
	buf, err := rc.Device.CreateBuffer(&hal.BufferDescriptor{
		Label: "shader_widget_uniforms",
		Size:  shaderUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("shader: create uniform buffer: %w", err)
	}
	p.uniformBuf = buf

	layout, err := rc.Device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "shader_widget_bind_layout",
		Entries: []hal.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageFragment | gputypes.ShaderStageVertex,
				Buffer: &hal.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		},
	})
	if err != nil {
		return fmt.Errorf("shader: create bind group layout: %w", err)
	}

	bindGroup, err := rc.Device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "shader_widget_bind_group",
		Layout: layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.uniformBuf.NativeHandle(), Offset: 0, Size: shaderUniformSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("shader: create bind group: %w", err)
	}
	p.bindGroup = bindGroup

	module, err := rc.Device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: "shader_widget_module",
		Code:  wrapFragmentShader(p.fragmentBody),
	})
	if err != nil {
		return fmt.Errorf("shader: compile user shader: %w", err)
	}

	pipeline, err := rc.Device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:            "shader_widget_pipeline",
		VertexShader:     module,
		VertexEntry:      "vs_main",
		FragmentShader:   module,
		FragmentEntry:    "fs_main",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
		Topology:         gputypes.PrimitiveTopologyTriangleList,
	})
	if err != nil {
		return fmt.Errorf("shader: create pipeline: %w", err)
	}
	p.pipeline = pipeline
	return nil
}

// Render draws the compiled quad into the shared render pass (spec's
// pre-render phase note: the widget pass runs "same command encoder, same
// render pass, loadOp = Load", so this draws into rc.Pass rather than
// opening its own pass the way original_source's C++ render() did).
func (p *ShaderPlugin) Render(ctx widget.GPUContext, pixelX, pixelY, pixelW, pixelH float32) {
	if p.failed || !p.compiled {
		return
	}
	rc, ok := ctx.(render.RenderContext)
	if !ok || rc.Pass == nil {
		return
	}

	screenW, screenH := p.pixelW, p.pixelH
	if screenW == 0 || screenH == 0 {
		screenW, screenH = pixelX+pixelW, pixelY+pixelH
	}
	ndcX := (pixelX/screenW)*2 - 1
	ndcY := 1 - (pixelY/screenH)*2
	ndcW := (pixelW / screenW) * 2
	ndcH := (pixelH / screenH) * 2

	buf := make([]byte, shaderUniformSize)
	off := 0
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	grabbed, down := float32(0), float32(0)
	if p.mouseGrabbed {
		grabbed = 1
	}
	if p.mouseDown {
		down = 1
	}
	putF32(p.time)
	putF32(p.param)
	putF32(p.zoom)
	putF32(0) // _pad1
	putF32(pixelW)
	putF32(pixelH)
	putF32(0) // _pad2
	putF32(0)
	putF32(ndcX)
	putF32(ndcY)
	putF32(ndcW)
	putF32(ndcH)
	putF32(p.mouseX)
	putF32(p.mouseY)
	putF32(grabbed)
	putF32(down)

	rc.Queue.WriteBuffer(p.uniformBuf, 0, buf)
	rc.Pass.SetPipeline(p.pipeline)
	rc.Pass.SetBindGroup(0, p.bindGroup, nil)
	rc.Pass.Draw(6, 1, 0, 0)
}

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// wrapFragmentShader prepends the Uniforms struct and iTime/iResolution/
// iMouse-style convenience functions original_source's wrapFragmentShader
// generated, then appends the dispatching fs_main. userCode must define
// mainImage(fragCoord: vec2<f32>) -> vec4<f32>.
func wrapFragmentShader(userCode string) string {
	return vertexAndPreludeWGSL + userCode + fsMainWGSL
}

const vertexAndPreludeWGSL = `
struct Uniforms {
    time: f32,
    param: f32,
    zoom: f32,
    _pad1: f32,
    resolution: vec2<f32>,
    _pad2: vec2<f32>,
    rect: vec4<f32>,
    mouse: vec4<f32>,
}

@group(0) @binding(0) var<uniform> u: Uniforms;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) vertexIndex: u32) -> VertexOutput {
    var positions = array<vec2<f32>, 6>(
        vec2<f32>(0.0, 0.0), vec2<f32>(1.0, 0.0), vec2<f32>(1.0, 1.0),
        vec2<f32>(0.0, 0.0), vec2<f32>(1.0, 1.0), vec2<f32>(0.0, 1.0),
    );
    let pos = positions[vertexIndex];
    let ndcX = u.rect.x + pos.x * u.rect.z;
    let ndcY = u.rect.y - pos.y * u.rect.w;
    var out: VertexOutput;
    out.position = vec4<f32>(ndcX, ndcY, 0.0, 1.0);
    out.uv = pos;
    return out;
}

fn iTime() -> f32 { return u.time; }
fn iResolution() -> vec2<f32> { return u.resolution; }
fn iMouse() -> vec4<f32> { return u.mouse; }
fn iParam() -> f32 { return u.param; }
fn iZoom() -> f32 { return u.zoom; }
fn iGrabbed() -> bool { return u.mouse.z > 0.5; }
fn iMouseDown() -> bool { return u.mouse.w > 0.5; }

`

const fsMainWGSL = `

@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    let fragCoord = uv * u.resolution;
    var col = mainImage(fragCoord);

    let border = 3.0;
    let res = u.resolution;
    let onBorder = fragCoord.x < border || fragCoord.x > res.x - border ||
                   fragCoord.y < border || fragCoord.y > res.y - border;
    if (onBorder) {
        if (iGrabbed()) {
            col = vec4<f32>(0.2, 0.9, 0.3, 1.0);
        } else {
            col = vec4<f32>(0.4, 0.4, 0.4, 1.0);
        }
    }
    return col;
}
`
