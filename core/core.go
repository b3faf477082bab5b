// Package core implements the Vulkan rendering device. The hard part of
// the package is the frame lifecycle: pacing CPU submission against a
// bounded ring of in-flight frames, recreating the swapchain when the
// surface goes stale, and never releasing memory the GPU may still read.
package core

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Fixed limits of the backend.
const (
	// maxFramesInFlight is the frame slot ring size: at most this many
	// frames are ever simultaneously owned by the GPU.
	maxFramesInFlight = 3

	maxTextureSamplers = 16
	maxVertexSamplers  = 4

	// stagingBufferSize is the per-slot scratch region for transient
	// uploads recorded during that slot's frame.
	stagingBufferSize = 8 * 1024 * 1024
)

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        uint
}

// Instance describes a Vulkan API instance and supporting methods.
// Once created it is ready to use.
type Instance interface {
	// PhysicalDevicesInfo returns a struct for each Physical Device
	// along with info about those devices
	PhysicalDevicesInfo() []PhysicalDeviceInfo

	// AvailableDevices returns handles of Physical Devices
	// from the Vulkan API
	AvailableDevices() []vk.PhysicalDevice

	// SetSurface sets the window surface for rendering
	SetSurface(unsafe.Pointer)

	// Surface returns the window surface, if it's not set
	// it should return a valid but empty surface
	Surface() vk.Surface

	// Extensions returns enabled instance extensions
	Extensions() []string

	// Handle returns the inner vk.Instance
	Handle() vk.Instance

	// Destroy destroys internal members
	Destroy()
}

// Destroyable is anything that owns native handles which must be
// released explicitly.
type Destroyable interface {
	Destroy()
}
