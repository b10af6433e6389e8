// Package render implements the single-pass GPU cell renderer (spec §4.4):
// one fullscreen draw that samples the cell storage buffer and dispatches
// per-fragment to the MSDF atlas or the emoji atlas, followed by a widget
// compositing pass in the same render pass. Cells in the shader-glyph
// range are drawn as background only; no shader-glyph functions are
// called.
package render

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"gputerm/src/cellgrid"
	"gputerm/src/widget"
)

// frameClearColor is the background the grid pass clears to before any
// cell is drawn (spec §6 "Frame target clear color").
var frameClearColor = gputypes.Color{R: 0.1, G: 0.1, B: 0.1, A: 1}

// CursorStyle selects how the cursor cell is overlaid (spec §4.4 "Overlays
// the cursor").
type CursorStyle int

const (
	CursorStyleBlock CursorStyle = iota
	CursorStyleUnderline
	CursorStyleBar
)

// Font is the renderer's external collaborator (spec §1 Non-goals: "font
// file parsing and atlas packing" stay outside the core). It supplies a
// codepoint-to-glyph-index mapping plus the GPU-side resources the cell
// shader samples.
type Font interface {
	GlyphIndex(r rune) cellgrid.GlyphIndex

	MSDFAtlasView() hal.TextureView
	MSDFSampler() hal.Sampler
	GlyphMetadata() []byte

	EmojiAtlasView() hal.TextureView
	EmojiSampler() hal.Sampler
	EmojiMetadata() []byte

	CellSize() (w, h float32)
	PixelRange() float32

	// Version bumps whenever the atlas is regenerated or glyphs are added,
	// telling the renderer to rebuild its bind group (spec §4.4 "Re-bind on
	// font atlas version changes too").
	Version() uint64
}

// WidgetDraw is one visible widget's computed screen rectangle, handed to
// CellRenderer.RenderFrame by the host frame loop after it has resolved
// scroll offset and screen affinity (spec §4.4 "Widget pass").
type WidgetDraw struct {
	Plugin                         widget.Plugin
	PixelX, PixelY, PixelW, PixelH float32
}

// RenderContext is the concrete GPUContext a Plugin.Render call receives
// during the widget pass; it satisfies widget.GPUContext without the
// widget package needing to import render (spec §9 "Cyclic shape
// avoidance").
type RenderContext struct {
	Device hal.Device
	Queue  hal.Queue
	Pass   hal.RenderPassEncoder
}

// CellRenderer owns the GPU pipeline, bind group, and per-frame buffers for
// the cell grid pass (spec §4.4 "Resource bindings"). It does not own the
// font atlas or the PTY/decoder; those are supplied per frame or at
// construction.
type CellRenderer struct {
	device hal.Device
	queue  hal.Queue
	font   Font

	pipeline        hal.RenderPipeline
	bindGroupLayout hal.BindGroupLayout
	bindGroup       hal.BindGroup

	uniformBuf   hal.Buffer
	cellBuf      hal.Buffer
	glyphMetaBuf hal.Buffer
	emojiMetaBuf hal.Buffer

	cols, rows  int
	fontVersion uint64
	bindDirty   bool

	cursorCol, cursorRow int
	cursorVisible        bool
	cursorStyle          CursorStyle
}

const uniformBufferSize = 48 // spec §4.4 uniform list, padded to 16-byte alignment

// NewCellRenderer creates the renderer's pipeline and bind group layout.
// Per-frame buffers are allocated lazily by RenderFrame once the grid size
// and font are known.
func NewCellRenderer(device hal.Device, queue hal.Queue, font Font) (*CellRenderer, error) {
	r := &CellRenderer{device: device, queue: queue, font: font, bindDirty: true}
	if err := r.ensurePipeline(); err != nil {
		return nil, fmt.Errorf("cell renderer: %w", err)
	}
	return r, nil
}

func (r *CellRenderer) ensurePipeline() error {
	if r.pipeline != nil {
		return nil
	}

	shader, err := r.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: "cell_shader",
		Code:  cellShaderWGSL,
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}

	layout, err := r.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "cell_bind_layout",
		Entries: []hal.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageFragment, Buffer: &hal.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageFragment, Texture: &hal.TextureBindingLayout{}},
			{Binding: 2, Visibility: gputypes.ShaderStageFragment, Sampler: &hal.SamplerBindingLayout{}},
			{Binding: 3, Visibility: gputypes.ShaderStageFragment, Buffer: &hal.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 4, Visibility: gputypes.ShaderStageFragment, Buffer: &hal.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 5, Visibility: gputypes.ShaderStageFragment, Texture: &hal.TextureBindingLayout{}},
			{Binding: 6, Visibility: gputypes.ShaderStageFragment, Sampler: &hal.SamplerBindingLayout{}},
			{Binding: 7, Visibility: gputypes.ShaderStageFragment, Buffer: &hal.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	r.bindGroupLayout = layout

	pipeline, err := r.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:            "cell_pipeline",
		VertexShader:     shader,
		VertexEntry:      "vs_main",
		FragmentShader:   shader,
		FragmentEntry:    "fs_main",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
		Topology:         gputypes.PrimitiveTopologyTriangleList,
	})
	if err != nil {
		return fmt.Errorf("create render pipeline: %w", err)
	}
	r.pipeline = pipeline
	return nil
}

// ensureSized (re)allocates the cell storage buffer when (cols,rows)
// changes, and marks the bind group for rebuild (spec §4.4 "Resize").
func (r *CellRenderer) ensureSized(cols, rows int) error {
	if cols == r.cols && rows == r.rows && r.cellBuf != nil {
		return nil
	}
	if r.cellBuf != nil {
		r.device.DestroyBuffer(r.cellBuf)
	}
	size := uint64(cols * rows * cellgrid.BytesPerCell)
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cell_storage",
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create cell buffer: %w", err)
	}
	r.cellBuf = buf
	r.cols, r.rows = cols, rows
	r.bindDirty = true
	return nil
}

// ensureFontBound rebinds the atlas textures, samplers, and metadata
// buffers when the font's atlas version changes.
func (r *CellRenderer) ensureFontBound() error {
	if !r.bindDirty && r.fontVersion == r.font.Version() && r.bindGroup != nil {
		return nil
	}

	if r.uniformBuf == nil {
		buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "cell_uniforms",
			Size:  uniformBufferSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create uniform buffer: %w", err)
		}
		r.uniformBuf = buf
	}

	if err := r.uploadMetadataBuffers(); err != nil {
		return err
	}

	bindGroup, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "cell_bind_group",
		Layout: r.bindGroupLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: r.uniformBuf.NativeHandle(), Offset: 0, Size: uniformBufferSize}},
			{Binding: 1, Resource: r.font.MSDFAtlasView()},
			{Binding: 2, Resource: r.font.MSDFSampler()},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: r.glyphMetaBuf.NativeHandle(), Offset: 0, Size: uint64(len(r.font.GlyphMetadata()))}},
			{Binding: 4, Resource: gputypes.BufferBinding{Buffer: r.cellBuf.NativeHandle(), Offset: 0, Size: uint64(r.cols * r.rows * cellgrid.BytesPerCell)}},
			{Binding: 5, Resource: r.font.EmojiAtlasView()},
			{Binding: 6, Resource: r.font.EmojiSampler()},
			{Binding: 7, Resource: gputypes.BufferBinding{Buffer: r.emojiMetaBuf.NativeHandle(), Offset: 0, Size: uint64(len(r.font.EmojiMetadata()))}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	r.bindGroup = bindGroup
	r.fontVersion = r.font.Version()
	r.bindDirty = false
	return nil
}

func (r *CellRenderer) uploadMetadataBuffers() error {
	glyphMeta := r.font.GlyphMetadata()
	if r.glyphMetaBuf != nil {
		r.device.DestroyBuffer(r.glyphMetaBuf)
	}
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "glyph_metadata",
		Size:  uint64(len(glyphMeta)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create glyph metadata buffer: %w", err)
	}
	r.queue.WriteBuffer(buf, 0, glyphMeta)
	r.glyphMetaBuf = buf

	emojiMeta := r.font.EmojiMetadata()
	if r.emojiMetaBuf != nil {
		r.device.DestroyBuffer(r.emojiMetaBuf)
	}
	ebuf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "emoji_metadata",
		Size:  uint64(len(emojiMeta)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create emoji metadata buffer: %w", err)
	}
	r.queue.WriteBuffer(ebuf, 0, emojiMeta)
	r.emojiMetaBuf = ebuf
	return nil
}

// Device returns the GPU device the renderer was constructed with, for
// collaborators (the host frame loop's widget pre-render phase) that need
// to hand plugins a RenderContext outside of RenderFrame's own render pass.
func (r *CellRenderer) Device() hal.Device { return r.device }

// Queue returns the renderer's command queue, for the same reason as Device.
func (r *CellRenderer) Queue() hal.Queue { return r.queue }

// SetCursor records the cursor's current position and visibility; applied
// in the uniform upload of the next RenderFrame call.
func (r *CellRenderer) SetCursor(col, row int, visible bool, style CursorStyle) {
	r.cursorCol, r.cursorRow = col, row
	r.cursorVisible = visible
	r.cursorStyle = style
}

func (r *CellRenderer) uploadUniforms(screenW, screenH float32) error {
	cellW, cellH := r.font.CellSize()
	buf := make([]byte, uniformBufferSize)
	off := 0
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[off:], v)
		off += 4
	}

	putF32(screenW)
	putF32(screenH)
	putF32(cellW)
	putF32(cellH)
	putU32(uint32(r.cols))
	putU32(uint32(r.rows))
	putF32(r.font.PixelRange())
	putF32(1.0) // scale factor; DPI scaling is the window layer's concern
	putU32(uint32(r.cursorCol))
	putU32(uint32(r.cursorRow))
	putU32(boolToU32(r.cursorVisible))
	putU32(uint32(r.cursorStyle))

	r.queue.WriteBuffer(r.uniformBuf, 0, buf)
	return nil
}

// widgetOffScreen reports whether w needs no draw call this frame (spec
// §4.4 "skip if fully off-screen").
func widgetOffScreen(w WidgetDraw, screenH float32) bool {
	return w.PixelH <= 0 || w.PixelY+w.PixelH < 0 || w.PixelY > screenH
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// RenderFrame draws the cell grid and then every visible widget into the
// given target view, in one command encoder and one render pass (spec
// §4.4: the widget pass uses "the same command encoder, same render pass,
// loadOp = Load" — expressed here as a single BeginRenderPass, since
// nothing else draws between the grid pass and the widget pass).
func (r *CellRenderer) RenderFrame(encoder hal.CommandEncoder, target hal.TextureView, screenW, screenH float32, grid *cellgrid.Grid, widgets []WidgetDraw) error {
	cols, rows := grid.Size()
	if err := r.ensureSized(cols, rows); err != nil {
		return err
	}
	if err := r.ensureFontBound(); err != nil {
		return err
	}

	if grid.FullDamage() || len(grid.Damage()) > 0 {
		r.queue.WriteBuffer(r.cellBuf, 0, grid.PackedBytes())
		grid.ClearDamage()
	}
	if err := r.uploadUniforms(screenW, screenH); err != nil {
		return err
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "cell_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: frameClearColor,
		}},
	})

	rp.SetPipeline(r.pipeline)
	rp.SetBindGroup(0, r.bindGroup, nil)
	rp.Draw(3, 1, 0, 0) // fullscreen triangle; the shader clips to the viewport

	ctx := RenderContext{Device: r.device, Queue: r.queue, Pass: rp}
	for _, w := range widgets {
		if widgetOffScreen(w, screenH) {
			continue
		}
		w.Plugin.Render(ctx, w.PixelX, w.PixelY, w.PixelW, w.PixelH)
	}

	rp.End()
	return nil
}

// Destroy releases the bind group and the buffers the renderer created, in
// reverse order of creation (spec §5). The pipeline and bind group layout
// are not released.
func (r *CellRenderer) Destroy() {
	if r.bindGroup != nil {
		r.device.DestroyBindGroup(r.bindGroup)
	}
	if r.emojiMetaBuf != nil {
		r.device.DestroyBuffer(r.emojiMetaBuf)
	}
	if r.glyphMetaBuf != nil {
		r.device.DestroyBuffer(r.glyphMetaBuf)
	}
	if r.uniformBuf != nil {
		r.device.DestroyBuffer(r.uniformBuf)
	}
	if r.cellBuf != nil {
		r.device.DestroyBuffer(r.cellBuf)
	}
}
