package core

import (
	"errors"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// memoryTypeNotFound is the sentinel findMemoryType returns when no
// memory type satisfies the request. vk.MaxUint32 is a variable in the
// binding, so this cannot be a constant.
var memoryTypeNotFound = vk.MaxUint32

// findMemoryType picks the lowest memory type index that is both
// permitted by typeFilter (bit i set means type i is acceptable) and
// offers every flag in required. Callers must check for
// memoryTypeNotFound before allocating.
func findMemoryType(props vk.PhysicalDeviceMemoryProperties, typeFilter uint32, required vk.MemoryPropertyFlags) uint32 {
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		if typeFilter&(1<<i) == 0 {
			continue
		}
		props.MemoryTypes[i].Deref()
		if props.MemoryTypes[i].PropertyFlags&required == required {
			return i
		}
	}
	return memoryTypeNotFound
}

// deviceAllocation is a single backing allocation with an optional
// persistent mapping for host visible memory.
type deviceAllocation struct {
	memory vk.DeviceMemory
	size   vk.DeviceSize
	mapped []byte
}

// allocator owns device memory bookkeeping for one logical device. It
// is deliberately simple: one allocation per resource, matching the
// one-buffer-one-allocation layout the rest of the package assumes.
type allocator struct {
	api      *API
	device   vk.Device
	memProps vk.PhysicalDeviceMemoryProperties
}

func newAllocator(api *API, device vk.Device, physical vk.PhysicalDevice) *allocator {
	a := &allocator{api: api, device: device}
	a.api.GetPhysicalDeviceMemoryProperties(physical, &a.memProps)
	a.memProps.Deref()
	return a
}

// alloc satisfies requirements with the given property flags and binds
// nothing; the caller binds it to a buffer or image.
func (a *allocator) alloc(reqs vk.MemoryRequirements, required vk.MemoryPropertyFlags) (*deviceAllocation, error) {
	reqs.Deref()
	typeIndex := findMemoryType(a.memProps, reqs.MemoryTypeBits, required)
	if typeIndex == memoryTypeNotFound {
		return nil, errors.New("core: no memory type satisfies the allocation request")
	}
	var memory vk.DeviceMemory
	result := a.api.AllocateMemory(a.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &memory)
	if result != vk.Success {
		return nil, errors.New("vk.AllocateMemory(): " + vk.Error(result).Error())
	}
	return &deviceAllocation{memory: memory, size: reqs.Size}, nil
}

// mapPersistent maps the full allocation and keeps it mapped for the
// allocation's lifetime. Only valid for host visible memory.
func (a *allocator) mapPersistent(da *deviceAllocation) ([]byte, error) {
	if da.mapped != nil {
		return da.mapped, nil
	}
	var data unsafe.Pointer
	result := a.api.MapMemory(a.device, da.memory, 0, da.size, 0, &data)
	if result != vk.Success {
		return nil, errors.New("vk.MapMemory(): " + vk.Error(result).Error())
	}
	da.mapped = unsafe.Slice((*byte)(data), int(da.size))
	return da.mapped, nil
}

// free releases the allocation, unmapping first if it is mapped.
func (a *allocator) free(da *deviceAllocation) {
	if da == nil || da.memory == vk.DeviceMemory(vk.NullHandle) {
		return
	}
	if da.mapped != nil {
		a.api.UnmapMemory(a.device, da.memory)
		da.mapped = nil
	}
	a.api.FreeMemory(a.device, da.memory, nil)
	da.memory = vk.DeviceMemory(vk.NullHandle)
}
