package render

// cellShaderWGSL is the fullscreen cell-grid fragment shader described in
// spec §4.4: one fragment per screen pixel, dispatching on the glyph index
// read from the per-cell storage buffer. The vertex stage emits a single
// fullscreen triangle (no vertex buffer needed).
//
// The pipeline is built from this string as it stands. It covers the
// grid/MSDF/emoji/cursor dispatch; it contains no shader_glyph_<id>
// functions, so the procedural shader-glyph range is not dispatched.
const cellShaderWGSL = `
struct Uniforms {
    screen_size: vec2<f32>,
    cell_size: vec2<f32>,
    grid_size: vec2<u32>,
    msdf_pixel_range: f32,
    scale: f32,
    cursor_pos: vec2<u32>,
    cursor_visible: u32,
    cursor_style: u32,
};

// Cell mirrors cellgrid.Grid.PackedBytes' 12-byte-per-cell layout exactly:
// glyph (u32 LE), fg (4 packed u8), bg+style (3 packed u8 + 1 u8). Plain u32
// fields keep the struct's storage-buffer stride at 12 bytes; a vec4<f32>
// or vec3<f32> member here would force 16-byte alignment and desync
// array<Cell> from the upload.
struct Cell {
    glyph: u32,
    packed_fg: u32,
    packed_bg_style: u32,
};

const GLYPH_WIDGET: u32 = 0x0000FFFFu;
const GLYPH_WIDE_CONT: u32 = 0x0000FFFEu;
const GLYPH_SHADER_LOW: u32 = 0x00100000u;

@group(0) @binding(0) var<uniform> u: Uniforms;
@group(0) @binding(1) var msdf_atlas: texture_2d<f32>;
@group(0) @binding(2) var msdf_sampler: sampler;
@group(0) @binding(3) var<storage, read> glyph_meta: array<vec4<f32>>;
@group(0) @binding(4) var<storage, read> cells: array<Cell>;
@group(0) @binding(5) var emoji_atlas: texture_2d<f32>;
@group(0) @binding(6) var emoji_sampler: sampler;
@group(0) @binding(7) var<storage, read> emoji_meta: array<vec4<f32>>;

struct VertexOut {
    @builtin(position) position: vec4<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> VertexOut {
    var out: VertexOut;
    let x = f32(i32(idx) - 1) * 3.0;
    let y = f32(i32(idx & 1u) * 2 - 1) * 3.0;
    out.position = vec4<f32>(x, y, 0.0, 1.0);
    return out;
}

fn median3(c: vec3<f32>) -> f32 {
    return max(min(c.r, c.g), min(max(c.r, c.g), c.b));
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    let pixel = in.position.xy;
    let cell_xy = vec2<u32>(floor(pixel / u.cell_size));
    if (cell_xy.x >= u.grid_size.x || cell_xy.y >= u.grid_size.y) {
        discard;
    }
    let idx = cell_xy.y * u.grid_size.x + cell_xy.x;
    var cell = cells[idx];

    if (cell.glyph == GLYPH_WIDE_CONT && cell_xy.x > 0u) {
        cell = cells[idx - 1u];
    }

    // fg/bg are packed as 4x/3x u8 in cell.packed_fg/packed_bg_style, the
    // same bytes PackedBytes writes; unpack4x8unorm reads them back in the
    // same byte order. style lives in packed_bg_style's top byte and is a
    // bitmask, not a color channel, so it comes back via a plain shift
    // rather than through the unorm normalization.
    let fg = unpack4x8unorm(cell.packed_fg);
    let bg = unpack4x8unorm(cell.packed_bg_style).rgb;
    let style = (cell.packed_bg_style >> 24u) & 0xFFu;

    var color = bg;
    var alpha = 1.0;

    if (cell.glyph != GLYPH_WIDGET) {
        let local_uv = fract(pixel / u.cell_size);
        let emoji_bit = (style & 0x20u) != 0u;
        if (emoji_bit) {
            let meta = emoji_meta[cell.glyph];
            let uv = meta.xy + local_uv * meta.zw;
            let sample = textureSample(emoji_atlas, emoji_sampler, uv);
            color = mix(color, sample.rgb, sample.a);
        } else if (cell.glyph < GLYPH_SHADER_LOW) {
            let meta = glyph_meta[cell.glyph];
            let uv = meta.xy + local_uv * meta.zw;
            let sd = textureSample(msdf_atlas, msdf_sampler, uv).rgb;
            let dist = median3(sd) - 0.5;
            let aa = fwidth(dist) * u.msdf_pixel_range;
            let coverage = clamp(dist / max(aa, 0.0001) + 0.5, 0.0, 1.0);
            color = mix(bg, fg.rgb, coverage);
        }
        // Shader-glyph range (>= GLYPH_SHADER_LOW) without the emoji bit:
        // no glyph function is called, so the cell renders background only.
    }

    if (u.cursor_visible != 0u && cell_xy.x == u.cursor_pos.x && cell_xy.y == u.cursor_pos.y) {
        if (u.cursor_style == 0u) {
            // Block: invert fg/bg for the whole cell.
            color = fg.rgb + bg - color;
        } else if (u.cursor_style == 1u) {
            if (fract(pixel.y / u.cell_size.y) > 0.85) {
                color = fg.rgb;
            }
        } else {
            if (fract(pixel.x / u.cell_size.x) < 0.12) {
                color = fg.rgb;
            }
        }
    }

    return vec4<f32>(color, alpha);
}
`
