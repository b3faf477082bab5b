package core

import (
	"github.com/RotatingArtDev/FNA3D/device"
	vk "github.com/vulkan-go/vulkan"
)

// surfaceFormatToVk maps the portable color formats onto their native
// counterparts. Indexed by device.SurfaceFormat.
var surfaceFormatToVk = [...]vk.Format{
	device.SurfaceFormatColor:           vk.FormatR8g8b8a8Unorm,
	device.SurfaceFormatBgr565:          vk.FormatR5g6b5UnormPack16,
	device.SurfaceFormatBgra5551:        vk.FormatA1r5g5b5UnormPack16,
	device.SurfaceFormatBgra4444:        vk.FormatB4g4r4a4UnormPack16,
	device.SurfaceFormatDxt1:            vk.FormatBc1RgbaUnormBlock,
	device.SurfaceFormatDxt3:            vk.FormatBc2UnormBlock,
	device.SurfaceFormatDxt5:            vk.FormatBc3UnormBlock,
	device.SurfaceFormatNormalizedByte2: vk.FormatR8g8Snorm,
	device.SurfaceFormatNormalizedByte4: vk.FormatR8g8b8a8Snorm,
	device.SurfaceFormatRgba1010102:     vk.FormatA2r10g10b10UnormPack32,
	device.SurfaceFormatRg32:            vk.FormatR16g16Unorm,
	device.SurfaceFormatRgba64:          vk.FormatR16g16b16a16Unorm,
	device.SurfaceFormatAlpha8:          vk.FormatR8Unorm,
	device.SurfaceFormatSingle:          vk.FormatR32Sfloat,
	device.SurfaceFormatVector2:         vk.FormatR32g32Sfloat,
	device.SurfaceFormatVector4:         vk.FormatR32g32b32a32Sfloat,
	device.SurfaceFormatHalfSingle:      vk.FormatR16Sfloat,
	device.SurfaceFormatHalfVector2:     vk.FormatR16g16Sfloat,
	device.SurfaceFormatHalfVector4:     vk.FormatR16g16b16a16Sfloat,
	device.SurfaceFormatHdrBlendable:    vk.FormatR16g16b16a16Sfloat,
	device.SurfaceFormatColorBgraEXT:    vk.FormatB8g8r8a8Unorm,
	device.SurfaceFormatColorSrgbEXT:    vk.FormatR8g8b8a8Srgb,
}

var depthFormatToVk = [...]vk.Format{
	device.DepthFormatNone:  vk.FormatUndefined,
	device.DepthFormatD16:   vk.FormatD16Unorm,
	device.DepthFormatD24:   vk.FormatX8D24UnormPack32,
	device.DepthFormatD24S8: vk.FormatD24UnormS8Uint,
}

var indexTypeToVk = [...]vk.IndexType{
	device.IndexElementSize16Bit: vk.IndexTypeUint16,
	device.IndexElementSize32Bit: vk.IndexTypeUint32,
}

// primitiveVertexCount converts a primitive count into the vertex
// count a draw call needs for the given topology.
func primitiveVertexCount(primitiveType device.PrimitiveType, primitiveCount int32) uint32 {
	switch primitiveType {
	case device.PrimitiveTypeTriangleList:
		return uint32(primitiveCount * 3)
	case device.PrimitiveTypeTriangleStrip:
		return uint32(primitiveCount + 2)
	case device.PrimitiveTypeLineList:
		return uint32(primitiveCount * 2)
	case device.PrimitiveTypeLineStrip:
		return uint32(primitiveCount + 1)
	case device.PrimitiveTypePointListEXT:
		return uint32(primitiveCount)
	}
	return 0
}
