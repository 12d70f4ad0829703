package ramfb

import (
	"time"
)

// FourCC pixel format codes. XR24 (little-endian xRGB, 32bpp) is the only
// code defined here and the only one this device accepts.
const (
	FourCCXR24 = 0x34325258 // 'X','R','2','4' little-endian
)

// MaxWidth and MaxHeight bound what this device considers a valid spec.
const (
	MaxWidth  = 1920
	MaxHeight = 1200
)

// FramebufferSpec is the public, host-endian projection of Config.
type FramebufferSpec struct {
	Width  uint32
	Height uint32
	Stride uint32
	FourCC uint32
}

// Valid reports whether the spec is in range and uses the one pixel format
// this device understands.
func (s FramebufferSpec) Valid() bool {
	return s.Width >= 1 && s.Width <= MaxWidth &&
		s.Height >= 1 && s.Height <= MaxHeight &&
		s.FourCC == FourCCXR24
}

// SpecOf projects a Config into its FramebufferSpec.
func SpecOf(c Config) FramebufferSpec {
	return FramebufferSpec{
		Width:  c.Width,
		Height: c.Height,
		Stride: c.Stride,
		FourCC: c.FourCC,
	}
}

// Frame is a self-contained, host-packed snapshot of the framebuffer.
type Frame struct {
	Spec FramebufferSpec
	Data []byte
	When time.Time
}

// readFrame extracts a Frame from mem per the config/bpp, following the
// precondition and copy-discipline rules in spec §4.2. It returns ok=false if
// any precondition fails; no error is surfaced past this boundary (spec §7).
func readFrame(config Config, bpp int, mem MemAccessor) (*Frame, bool) {
	if config.Height == 0 || config.Width == 0 || bpp <= 0 {
		return nil, false
	}

	linesize, ok := mulOverflowSafe(uint64(config.Width), uint64(bpp))
	if !ok {
		return nil, false
	}
	linesize /= 8

	effStride := uint64(config.Stride)
	if effStride == 0 {
		effStride = linesize
	}

	rows, ok := mulOverflowSafe(uint64(config.Height-1), effStride)
	if !ok {
		return nil, false
	}
	regionLen := rows + linesize
	if regionLen > uint64(int(^uint(0)>>1)) {
		return nil, false
	}

	mapping, ok := mem.ReadableRegion(config.Addr, int(regionLen))
	if !ok {
		return nil, false
	}

	spec := SpecOf(config)
	var data []byte
	if effStride <= linesize {
		data = make([]byte, regionLen)
		if err := mapping.ReadAt(data, 0); err != nil {
			return nil, false
		}
	} else {
		height := int(config.Height)
		line := int(linesize)
		stride := int(effStride)
		data = make([]byte, height*line)
		for row := 0; row < height; row++ {
			if err := mapping.ReadAt(data[row*line:(row+1)*line], row*stride); err != nil {
				return nil, false
			}
		}
		spec.Stride = 0
	}

	return &Frame{Spec: spec, Data: data, When: time.Now()}, true
}

// mulOverflowSafe multiplies a*b, reporting ok=false on uint64 overflow.
func mulOverflowSafe(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/a != b {
		return 0, false
	}
	return product, true
}

// BlankFrame synthesizes a zeroed black filler frame at the given resolution,
// 32bpp XR24, contiguous (stride 0). This is the "Generated" filler a VNC
// session falls back to when the device is unconfigured or invalid (spec
// §3 ClientSession, §4.4.5).
func BlankFrame(width, height uint32) *Frame {
	data := make([]byte, int(width)*int(height)*4)
	return &Frame{
		Spec: FramebufferSpec{Width: width, Height: height, Stride: 0, FourCC: FourCCXR24},
		Data: data,
		When: time.Now(),
	}
}

