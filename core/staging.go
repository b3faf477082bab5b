package core

import (
	"errors"

	vk "github.com/vulkan-go/vulkan"
)

// stagingBuffer is a host visible scratch buffer owned by a frame
// slot. Uploads recorded during the frame bump-allocate out of it;
// the whole buffer is reclaimed in one move once the slot's fence
// proves the GPU is done with it.
type stagingBuffer struct {
	buffer     vk.Buffer
	allocation *deviceAllocation
	data       []byte
	offset     int
}

func newStagingBuffer(api *API, device vk.Device, alloc *allocator, size vk.DeviceSize) (*stagingBuffer, error) {
	sb := &stagingBuffer{}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		SharingMode: vk.SharingModeExclusive,
	}
	result := api.CreateBuffer(device, &createInfo, nil, &sb.buffer)
	if result != vk.Success {
		return nil, errors.New("vk.CreateBuffer(): " + vk.Error(result).Error())
	}

	var reqs vk.MemoryRequirements
	api.GetBufferMemoryRequirements(device, sb.buffer, &reqs)
	allocation, err := alloc.alloc(reqs, vk.MemoryPropertyFlags(
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		api.DestroyBuffer(device, sb.buffer, nil)
		return nil, err
	}
	sb.allocation = allocation

	result = api.BindBufferMemory(device, sb.buffer, allocation.memory, 0)
	if result != vk.Success {
		alloc.free(allocation)
		api.DestroyBuffer(device, sb.buffer, nil)
		return nil, errors.New("vk.BindBufferMemory(): " + vk.Error(result).Error())
	}

	data, err := alloc.mapPersistent(allocation)
	if err != nil {
		alloc.free(allocation)
		api.DestroyBuffer(device, sb.buffer, nil)
		return nil, err
	}
	sb.data = data
	return sb, nil
}

// push copies src into the buffer and returns the offset it landed at.
// It fails when the frame's uploads no longer fit; callers are expected
// to flush the frame and try again.
func (sb *stagingBuffer) push(src []byte) (vk.DeviceSize, error) {
	if sb.offset+len(src) > len(sb.data) {
		return 0, errors.New("core: staging buffer exhausted for this frame")
	}
	offset := sb.offset
	copy(sb.data[offset:], src)
	sb.offset += len(src)
	return vk.DeviceSize(offset), nil
}

// reset reclaims the whole buffer. Only safe once the owning slot's
// fence has signaled.
func (sb *stagingBuffer) reset() {
	sb.offset = 0
}

func (sb *stagingBuffer) destroy(api *API, device vk.Device, alloc *allocator) {
	if sb.buffer != vk.Buffer(vk.NullHandle) {
		api.DestroyBuffer(device, sb.buffer, nil)
		sb.buffer = vk.Buffer(vk.NullHandle)
	}
	if sb.allocation != nil {
		alloc.free(sb.allocation)
		sb.allocation = nil
	}
	sb.data = nil
}
