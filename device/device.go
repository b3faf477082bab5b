// Package device declares the abstract rendering-device contract.
// Concrete backends (core provides the Vulkan one) implement Device and
// register themselves through a Driver entry. Callers hold only the types
// declared here; no native handles ever cross this boundary.
package device

import "github.com/go-gl/mathgl/mgl32"

// SurfaceFormat enumerates the color formats a backbuffer or texture
// can be created with.
type SurfaceFormat int

const (
	SurfaceFormatColor SurfaceFormat = iota
	SurfaceFormatBgr565
	SurfaceFormatBgra5551
	SurfaceFormatBgra4444
	SurfaceFormatDxt1
	SurfaceFormatDxt3
	SurfaceFormatDxt5
	SurfaceFormatNormalizedByte2
	SurfaceFormatNormalizedByte4
	SurfaceFormatRgba1010102
	SurfaceFormatRg32
	SurfaceFormatRgba64
	SurfaceFormatAlpha8
	SurfaceFormatSingle
	SurfaceFormatVector2
	SurfaceFormatVector4
	SurfaceFormatHalfSingle
	SurfaceFormatHalfVector2
	SurfaceFormatHalfVector4
	SurfaceFormatHdrBlendable
	SurfaceFormatColorBgraEXT
	SurfaceFormatColorSrgbEXT
)

// DepthFormat enumerates depth/stencil buffer formats.
type DepthFormat int

const (
	DepthFormatNone DepthFormat = iota
	DepthFormatD16
	DepthFormatD24
	DepthFormatD24S8
)

// ClearOptions selects which backbuffer aspects a Clear call touches.
type ClearOptions uint32

const (
	ClearTarget ClearOptions = 1 << iota
	ClearDepthBuffer
	ClearStencil
)

// PrimitiveType selects the primitive topology for draw calls.
type PrimitiveType int

const (
	PrimitiveTypeTriangleList PrimitiveType = iota
	PrimitiveTypeTriangleStrip
	PrimitiveTypeLineList
	PrimitiveTypeLineStrip
	PrimitiveTypePointListEXT
)

// BufferUsage is a hint for how often buffer contents will be rewritten.
type BufferUsage int

const (
	BufferUsageNone BufferUsage = iota
	BufferUsageWriteOnly
)

// IndexElementSize is the width of one index buffer element.
type IndexElementSize int

const (
	IndexElementSize16Bit IndexElementSize = iota
	IndexElementSize32Bit
)

// Texture is an opaque handle to a GPU texture. The zero value is the
// null handle; disposing it is a no-op.
type Texture uint64

// Buffer is an opaque handle to a GPU vertex or index buffer. The zero
// value is the null handle; disposing it is a no-op.
type Buffer uint64

// Viewport describes the active render viewport in pixels.
type Viewport struct {
	X, Y, W, H         int32
	MinDepth, MaxDepth float32
}

// Rect is an integer pixel rectangle.
type Rect struct {
	X, Y, W, H int32
}

// Color is an 8-bit RGBA color.
type Color struct {
	R, G, B, A uint8
}

// PresentationParameters configures the backbuffer and the presentation
// surface at device creation and on ResetBackbuffer.
type PresentationParameters struct {
	BackBufferWidth    int32
	BackBufferHeight   int32
	BackBufferFormat   SurfaceFormat
	DepthStencilFormat DepthFormat
	MultiSampleCount   int32

	// DeviceWindowHandle is the platform window the device presents to.
	// The Vulkan backend expects an *sdl.Window.
	DeviceWindowHandle interface{}
}

// Device is the fixed contract every graphics backend implements.
// State setters and draw calls append to the frame's recording context
// and are only valid between BeginFrame and EndFrame. Capability
// queries are static and never touch frame state.
type Device interface {
	// Destroy tears the device down. It blocks until all in-flight GPU
	// work is complete and must be called exactly once.
	Destroy()

	// BeginFrame opens the next frame's recording context, blocking
	// while all frame slots are still owned by the GPU.
	BeginFrame() error

	// EndFrame closes the recording context, submits it and presents
	// the acquired image.
	EndFrame() error

	// SwapBuffers is the classic present entry point: it ends the
	// current frame and immediately begins the next one.
	SwapBuffers() error

	// ResetBackbuffer resizes the presentation surface.
	ResetBackbuffer(params PresentationParameters) error
	GetBackbufferSize() (width, height int32)
	GetBackbufferSurfaceFormat() SurfaceFormat
	GetBackbufferDepthFormat() DepthFormat

	Clear(options ClearOptions, color mgl32.Vec4, depth float32, stencil int32)

	// ApplyVertexBufferBinding selects the vertex buffer subsequent
	// draw calls read from. Buffer zero clears the binding.
	ApplyVertexBufferBinding(buffer Buffer, offsetInBytes int32)
	DrawPrimitives(primitiveType PrimitiveType, vertexStart, primitiveCount int32)
	DrawIndexedPrimitives(
		primitiveType PrimitiveType,
		baseVertex, minVertexIndex, numVertices, startIndex, primitiveCount int32,
		indices Buffer, indexElementSize IndexElementSize,
	)

	SetViewport(viewport Viewport)
	SetScissorRect(scissor Rect)
	BlendFactor() Color
	SetBlendFactor(blendFactor Color)
	MultiSampleMask() int32
	SetMultiSampleMask(mask int32)
	ReferenceStencil() int32
	SetReferenceStencil(ref int32)

	CreateTexture2D(format SurfaceFormat, width, height, levelCount int32, renderTarget bool) (Texture, error)
	AddDisposeTexture(texture Texture)
	GenVertexBuffer(dynamic bool, usage BufferUsage, sizeInBytes int32) (Buffer, error)
	AddDisposeVertexBuffer(buffer Buffer)
	SetVertexBufferData(buffer Buffer, offsetInBytes int32, data []byte)
	GenIndexBuffer(dynamic bool, usage BufferUsage, sizeInBytes int32) (Buffer, error)
	AddDisposeIndexBuffer(buffer Buffer)
	SetIndexBufferData(buffer Buffer, offsetInBytes int32, data []byte)

	SupportsDXT1() bool
	SupportsS3TC() bool
	SupportsBC7() bool
	SupportsHardwareInstancing() bool
	SupportsNoOverwrite() bool
	SupportsSRGBRenderTargets() bool
	GetMaxTextureSlots() (textures, vertexTextures int32)
	GetMaxMultiSampleCount(format SurfaceFormat, multiSampleCount int32) int32
}
