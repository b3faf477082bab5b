package core

import (
	"fmt"
	"reflect"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// API is the bound table of native entry points the device calls. It is
// resolved exactly once at device creation (see bindAPI) and passed down
// to every component, so nothing in this package reaches for the driver
// behind the device's back. Tests substitute a synthetic table.
type API struct {
	CreateInstance                         func(*vk.InstanceCreateInfo, *vk.AllocationCallbacks, *vk.Instance) vk.Result
	DestroyInstance                        func(vk.Instance, *vk.AllocationCallbacks)
	EnumeratePhysicalDevices               func(vk.Instance, *uint32, []vk.PhysicalDevice) vk.Result
	GetPhysicalDeviceProperties            func(vk.PhysicalDevice, *vk.PhysicalDeviceProperties)
	GetPhysicalDeviceQueueFamilyProperties func(vk.PhysicalDevice, *uint32, []vk.QueueFamilyProperties)
	GetPhysicalDeviceMemoryProperties      func(vk.PhysicalDevice, *vk.PhysicalDeviceMemoryProperties)
	GetPhysicalDeviceSurfaceSupport        func(vk.PhysicalDevice, uint32, vk.Surface, *vk.Bool32) vk.Result
	GetPhysicalDeviceSurfaceCapabilities   func(vk.PhysicalDevice, vk.Surface, *vk.SurfaceCapabilities) vk.Result
	GetPhysicalDeviceSurfaceFormats        func(vk.PhysicalDevice, vk.Surface, *uint32, []vk.SurfaceFormat) vk.Result
	GetPhysicalDeviceSurfacePresentModes   func(vk.PhysicalDevice, vk.Surface, *uint32, []vk.PresentMode) vk.Result
	CreateDevice                           func(vk.PhysicalDevice, *vk.DeviceCreateInfo, *vk.AllocationCallbacks, *vk.Device) vk.Result
	DestroyDevice                          func(vk.Device, *vk.AllocationCallbacks)
	GetDeviceQueue                         func(vk.Device, uint32, uint32, *vk.Queue)
	DeviceWaitIdle                         func(vk.Device) vk.Result
	DestroySurface                         func(vk.Instance, vk.Surface, *vk.AllocationCallbacks)

	CreateSwapchain    func(vk.Device, *vk.SwapchainCreateInfo, *vk.AllocationCallbacks, *vk.Swapchain) vk.Result
	DestroySwapchain   func(vk.Device, vk.Swapchain, *vk.AllocationCallbacks)
	GetSwapchainImages func(vk.Device, vk.Swapchain, *uint32, []vk.Image) vk.Result
	AcquireNextImage   func(vk.Device, vk.Swapchain, uint64, vk.Semaphore, vk.Fence, *uint32) vk.Result
	QueuePresent       func(vk.Queue, *vk.PresentInfo) vk.Result
	CreateImageView    func(vk.Device, *vk.ImageViewCreateInfo, *vk.AllocationCallbacks, *vk.ImageView) vk.Result
	DestroyImageView   func(vk.Device, vk.ImageView, *vk.AllocationCallbacks)

	CreateCommandPool      func(vk.Device, *vk.CommandPoolCreateInfo, *vk.AllocationCallbacks, *vk.CommandPool) vk.Result
	DestroyCommandPool     func(vk.Device, vk.CommandPool, *vk.AllocationCallbacks)
	ResetCommandPool       func(vk.Device, vk.CommandPool, vk.CommandPoolResetFlags) vk.Result
	AllocateCommandBuffers func(vk.Device, *vk.CommandBufferAllocateInfo, []vk.CommandBuffer) vk.Result
	FreeCommandBuffers     func(vk.Device, vk.CommandPool, uint32, []vk.CommandBuffer)
	BeginCommandBuffer     func(vk.CommandBuffer, *vk.CommandBufferBeginInfo) vk.Result
	EndCommandBuffer       func(vk.CommandBuffer) vk.Result

	CreateFence      func(vk.Device, *vk.FenceCreateInfo, *vk.AllocationCallbacks, *vk.Fence) vk.Result
	DestroyFence     func(vk.Device, vk.Fence, *vk.AllocationCallbacks)
	WaitForFences    func(vk.Device, uint32, []vk.Fence, vk.Bool32, uint64) vk.Result
	ResetFences      func(vk.Device, uint32, []vk.Fence) vk.Result
	CreateSemaphore  func(vk.Device, *vk.SemaphoreCreateInfo, *vk.AllocationCallbacks, *vk.Semaphore) vk.Result
	DestroySemaphore func(vk.Device, vk.Semaphore, *vk.AllocationCallbacks)
	QueueSubmit      func(vk.Queue, uint32, []vk.SubmitInfo, vk.Fence) vk.Result

	CreateBuffer                func(vk.Device, *vk.BufferCreateInfo, *vk.AllocationCallbacks, *vk.Buffer) vk.Result
	DestroyBuffer               func(vk.Device, vk.Buffer, *vk.AllocationCallbacks)
	GetBufferMemoryRequirements func(vk.Device, vk.Buffer, *vk.MemoryRequirements)
	CreateImage                 func(vk.Device, *vk.ImageCreateInfo, *vk.AllocationCallbacks, *vk.Image) vk.Result
	DestroyImage                func(vk.Device, vk.Image, *vk.AllocationCallbacks)
	GetImageMemoryRequirements  func(vk.Device, vk.Image, *vk.MemoryRequirements)
	AllocateMemory              func(vk.Device, *vk.MemoryAllocateInfo, *vk.AllocationCallbacks, *vk.DeviceMemory) vk.Result
	FreeMemory                  func(vk.Device, vk.DeviceMemory, *vk.AllocationCallbacks)
	MapMemory                   func(vk.Device, vk.DeviceMemory, vk.DeviceSize, vk.DeviceSize, vk.MemoryMapFlags, *unsafe.Pointer) vk.Result
	UnmapMemory                 func(vk.Device, vk.DeviceMemory)
	BindBufferMemory            func(vk.Device, vk.Buffer, vk.DeviceMemory, vk.DeviceSize) vk.Result
	BindImageMemory             func(vk.Device, vk.Image, vk.DeviceMemory, vk.DeviceSize) vk.Result

	CreatePipelineCache  func(vk.Device, *vk.PipelineCacheCreateInfo, *vk.AllocationCallbacks, *vk.PipelineCache) vk.Result
	DestroyPipelineCache func(vk.Device, vk.PipelineCache, *vk.AllocationCallbacks)
	GetPipelineCacheData func(vk.Device, vk.PipelineCache, *uint, unsafe.Pointer) vk.Result

	CmdClearAttachments    func(vk.CommandBuffer, uint32, []vk.ClearAttachment, uint32, []vk.ClearRect)
	CmdSetViewport         func(vk.CommandBuffer, uint32, uint32, []vk.Viewport)
	CmdSetScissor          func(vk.CommandBuffer, uint32, uint32, []vk.Rect2D)
	CmdSetBlendConstants   func(vk.CommandBuffer, *[4]float32)
	CmdSetStencilReference func(vk.CommandBuffer, vk.StencilFaceFlags, uint32)
	CmdDraw                func(vk.CommandBuffer, uint32, uint32, uint32, uint32)
	CmdDrawIndexed         func(vk.CommandBuffer, uint32, uint32, uint32, int32, uint32)
	CmdBindVertexBuffers   func(vk.CommandBuffer, uint32, uint32, []vk.Buffer, []vk.DeviceSize)
	CmdBindIndexBuffer     func(vk.CommandBuffer, vk.Buffer, vk.DeviceSize, vk.IndexType)
}

// bindAPI resolves the full table from the loaded Vulkan library.
// vk.Init must have succeeded before this is called.
func bindAPI() *API {
	return &API{
		CreateInstance:                         vk.CreateInstance,
		DestroyInstance:                        vk.DestroyInstance,
		EnumeratePhysicalDevices:               vk.EnumeratePhysicalDevices,
		GetPhysicalDeviceProperties:            vk.GetPhysicalDeviceProperties,
		GetPhysicalDeviceQueueFamilyProperties: vk.GetPhysicalDeviceQueueFamilyProperties,
		GetPhysicalDeviceMemoryProperties:      vk.GetPhysicalDeviceMemoryProperties,
		GetPhysicalDeviceSurfaceSupport:        vk.GetPhysicalDeviceSurfaceSupport,
		GetPhysicalDeviceSurfaceCapabilities:   vk.GetPhysicalDeviceSurfaceCapabilities,
		GetPhysicalDeviceSurfaceFormats:        vk.GetPhysicalDeviceSurfaceFormats,
		GetPhysicalDeviceSurfacePresentModes:   vk.GetPhysicalDeviceSurfacePresentModes,
		CreateDevice:                           vk.CreateDevice,
		DestroyDevice:                          vk.DestroyDevice,
		GetDeviceQueue:                         vk.GetDeviceQueue,
		DeviceWaitIdle:                         vk.DeviceWaitIdle,
		DestroySurface:                         vk.DestroySurface,

		CreateSwapchain:    vk.CreateSwapchain,
		DestroySwapchain:   vk.DestroySwapchain,
		GetSwapchainImages: vk.GetSwapchainImages,
		AcquireNextImage:   vk.AcquireNextImage,
		QueuePresent:       vk.QueuePresent,
		CreateImageView:    vk.CreateImageView,
		DestroyImageView:   vk.DestroyImageView,

		CreateCommandPool:      vk.CreateCommandPool,
		DestroyCommandPool:     vk.DestroyCommandPool,
		ResetCommandPool:       vk.ResetCommandPool,
		AllocateCommandBuffers: vk.AllocateCommandBuffers,
		FreeCommandBuffers:     vk.FreeCommandBuffers,
		BeginCommandBuffer:     vk.BeginCommandBuffer,
		EndCommandBuffer:       vk.EndCommandBuffer,

		CreateFence:      vk.CreateFence,
		DestroyFence:     vk.DestroyFence,
		WaitForFences:    vk.WaitForFences,
		ResetFences:      vk.ResetFences,
		CreateSemaphore:  vk.CreateSemaphore,
		DestroySemaphore: vk.DestroySemaphore,
		QueueSubmit:      vk.QueueSubmit,

		CreateBuffer:                vk.CreateBuffer,
		DestroyBuffer:               vk.DestroyBuffer,
		GetBufferMemoryRequirements: vk.GetBufferMemoryRequirements,
		CreateImage:                 vk.CreateImage,
		DestroyImage:                vk.DestroyImage,
		GetImageMemoryRequirements:  vk.GetImageMemoryRequirements,
		AllocateMemory:              vk.AllocateMemory,
		FreeMemory:                  vk.FreeMemory,
		MapMemory:                   vk.MapMemory,
		UnmapMemory:                 vk.UnmapMemory,
		BindBufferMemory:            vk.BindBufferMemory,
		BindImageMemory:             vk.BindImageMemory,

		CreatePipelineCache:  vk.CreatePipelineCache,
		DestroyPipelineCache: vk.DestroyPipelineCache,
		GetPipelineCacheData: vk.GetPipelineCacheData,

		CmdClearAttachments:    vk.CmdClearAttachments,
		CmdSetViewport:         vk.CmdSetViewport,
		CmdSetScissor:          vk.CmdSetScissor,
		CmdSetBlendConstants:   vk.CmdSetBlendConstants,
		CmdSetStencilReference: vk.CmdSetStencilReference,
		CmdDraw:                vk.CmdDraw,
		CmdDrawIndexed:         vk.CmdDrawIndexed,
		CmdBindVertexBuffers:   vk.CmdBindVertexBuffers,
		CmdBindIndexBuffer:     vk.CmdBindIndexBuffer,
	}
}

// MissingEntryError reports a native entry point that failed to resolve.
type MissingEntryError struct {
	Entry string
}

func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("core: native entry point %s is not bound", e.Entry)
}

// validate returns a MissingEntryError for the first nil entry in the
// table. Every entry is required; the device refuses to come up without
// a complete binding.
func (a *API) validate() error {
	v := reflect.ValueOf(*a)
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).IsNil() {
			return &MissingEntryError{Entry: t.Field(i).Name}
		}
	}
	return nil
}
