package core

import (
	"errors"

	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// vulkanTexture is the device side of a texture handle.
type vulkanTexture struct {
	image      vk.Image
	view       vk.ImageView
	allocation *deviceAllocation
	width      int32
	height     int32
	format     vk.Format
	levelCount int32
}

// vulkanBuffer is the device side of a vertex or index buffer handle.
// Dynamic buffers stay host visible and persistently mapped so
// per-frame writes skip the staging path.
type vulkanBuffer struct {
	buffer     vk.Buffer
	allocation *deviceAllocation
	size       vk.DeviceSize
	dynamic    bool
	mapped     []byte
}

// resourceTracker owns every texture and buffer the device has handed
// out. Disposal is deliberately heavy: the device is drained before
// anything backing a handle is destroyed, so no in-flight frame can be
// reading a resource as it dies.
type resourceTracker struct {
	api      *API
	device   vk.Device
	alloc    *allocator
	textures *handleTable
	buffers  *handleTable
}

func newResourceTracker(api *API, device vk.Device, alloc *allocator) *resourceTracker {
	return &resourceTracker{
		api:      api,
		device:   device,
		alloc:    alloc,
		textures: newHandleTable(),
		buffers:  newHandleTable(),
	}
}

func (rt *resourceTracker) createTexture2D(format vk.Format, width, height, levelCount int32, renderTarget bool) (uint64, error) {
	usage := vk.ImageUsageFlags(vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit | vk.ImageUsageTransferSrcBit)
	if renderTarget {
		usage |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}

	createInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: uint32(width), Height: uint32(height), Depth: 1},
		MipLevels:     uint32(levelCount),
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var image vk.Image
	result := rt.api.CreateImage(rt.device, &createInfo, nil, &image)
	if result != vk.Success {
		return 0, errors.New("vk.CreateImage(): " + vk.Error(result).Error())
	}

	var reqs vk.MemoryRequirements
	rt.api.GetImageMemoryRequirements(rt.device, image, &reqs)
	allocation, err := rt.alloc.alloc(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		rt.api.DestroyImage(rt.device, image, nil)
		return 0, err
	}
	result = rt.api.BindImageMemory(rt.device, image, allocation.memory, 0)
	if result != vk.Success {
		rt.alloc.free(allocation)
		rt.api.DestroyImage(rt.device, image, nil)
		return 0, errors.New("vk.BindImageMemory(): " + vk.Error(result).Error())
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: uint32(levelCount),
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	result = rt.api.CreateImageView(rt.device, &viewInfo, nil, &view)
	if result != vk.Success {
		rt.alloc.free(allocation)
		rt.api.DestroyImage(rt.device, image, nil)
		return 0, errors.New("vk.CreateImageView(): " + vk.Error(result).Error())
	}

	texture := &vulkanTexture{
		image:      image,
		view:       view,
		allocation: allocation,
		width:      width,
		height:     height,
		format:     format,
		levelCount: levelCount,
	}
	return rt.textures.acquire(texture), nil
}

func (rt *resourceTracker) createBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags, dynamic bool) (uint64, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage | vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	result := rt.api.CreateBuffer(rt.device, &createInfo, nil, &handle)
	if result != vk.Success {
		return 0, errors.New("vk.CreateBuffer(): " + vk.Error(result).Error())
	}

	props := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if dynamic {
		props = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	var reqs vk.MemoryRequirements
	rt.api.GetBufferMemoryRequirements(rt.device, handle, &reqs)
	allocation, err := rt.alloc.alloc(reqs, props)
	if err != nil {
		rt.api.DestroyBuffer(rt.device, handle, nil)
		return 0, err
	}
	result = rt.api.BindBufferMemory(rt.device, handle, allocation.memory, 0)
	if result != vk.Success {
		rt.alloc.free(allocation)
		rt.api.DestroyBuffer(rt.device, handle, nil)
		return 0, errors.New("vk.BindBufferMemory(): " + vk.Error(result).Error())
	}

	buffer := &vulkanBuffer{
		buffer:     handle,
		allocation: allocation,
		size:       size,
		dynamic:    dynamic,
	}
	if dynamic {
		mapped, err := rt.alloc.mapPersistent(allocation)
		if err != nil {
			rt.alloc.free(allocation)
			rt.api.DestroyBuffer(rt.device, handle, nil)
			return 0, err
		}
		buffer.mapped = mapped
	}
	return rt.buffers.acquire(buffer), nil
}

func (rt *resourceTracker) lookupBuffer(handle uint64) (*vulkanBuffer, bool) {
	value, ok := rt.buffers.lookup(handle)
	if !ok {
		return nil, false
	}
	return value.(*vulkanBuffer), true
}

func (rt *resourceTracker) lookupTexture(handle uint64) (*vulkanTexture, bool) {
	value, ok := rt.textures.lookup(handle)
	if !ok {
		return nil, false
	}
	return value.(*vulkanTexture), true
}

// disposeTexture drains the device and destroys the texture. The zero
// handle is a no-op; a handle that was already disposed logs and
// returns without error rather than tearing down someone else's slot.
func (rt *resourceTracker) disposeTexture(handle uint64) error {
	if handle == 0 {
		return nil
	}
	value, ok := rt.textures.release(handle)
	if !ok {
		log.WithField("handle", handle).Warn("dispose of unknown texture handle ignored")
		return nil
	}
	texture := value.(*vulkanTexture)

	if err := rt.drain(); err != nil {
		return err
	}
	rt.api.DestroyImageView(rt.device, texture.view, nil)
	rt.api.DestroyImage(rt.device, texture.image, nil)
	rt.alloc.free(texture.allocation)
	return nil
}

// disposeBuffer drains the device and destroys the buffer, unmapping a
// dynamic buffer before its memory goes away.
func (rt *resourceTracker) disposeBuffer(handle uint64) error {
	if handle == 0 {
		return nil
	}
	value, ok := rt.buffers.release(handle)
	if !ok {
		log.WithField("handle", handle).Warn("dispose of unknown buffer handle ignored")
		return nil
	}
	buffer := value.(*vulkanBuffer)

	if err := rt.drain(); err != nil {
		return err
	}
	rt.api.DestroyBuffer(rt.device, buffer.buffer, nil)
	rt.alloc.free(buffer.allocation)
	return nil
}

// drain is the barrier between a dispose request and the destruction
// it triggers: nothing is freed until the device proves it is idle.
func (rt *resourceTracker) drain() error {
	result := rt.api.DeviceWaitIdle(rt.device)
	if result != vk.Success {
		return errors.New("vk.DeviceWaitIdle(): " + vk.Error(result).Error())
	}
	return nil
}

// destroyAll tears down every live resource. Called during device
// teardown after the device has been drained once.
func (rt *resourceTracker) destroyAll() {
	rt.textures.each(func(_ uint64, value interface{}) {
		texture := value.(*vulkanTexture)
		rt.api.DestroyImageView(rt.device, texture.view, nil)
		rt.api.DestroyImage(rt.device, texture.image, nil)
		rt.alloc.free(texture.allocation)
	})
	rt.buffers.each(func(_ uint64, value interface{}) {
		buffer := value.(*vulkanBuffer)
		rt.api.DestroyBuffer(rt.device, buffer.buffer, nil)
		rt.alloc.free(buffer.allocation)
	})
}
