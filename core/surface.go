package core

import (
	"errors"

	vk "github.com/vulkan-go/vulkan"
)

// surfaceSupport is a snapshot of what the window surface can do on a
// particular physical device. It is re-queried on every swapchain
// build because capabilities change whenever the window does.
type surfaceSupport struct {
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

func querySurfaceSupport(api *API, physical vk.PhysicalDevice, surface vk.Surface) (surfaceSupport, error) {
	var support surfaceSupport
	result := api.GetPhysicalDeviceSurfaceCapabilities(physical, surface, &support.capabilities)
	if result != vk.Success {
		return support, errors.New("vk.GetPhysicalDeviceSurfaceCapabilities(): " + vk.Error(result).Error())
	}
	support.capabilities.Deref()
	support.capabilities.CurrentExtent.Deref()
	support.capabilities.MinImageExtent.Deref()
	support.capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	result = api.GetPhysicalDeviceSurfaceFormats(physical, surface, &formatCount, nil)
	if result != vk.Success {
		return support, errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + vk.Error(result).Error())
	}
	if formatCount == 0 {
		return support, errors.New("core: surface reports no formats")
	}
	support.formats = make([]vk.SurfaceFormat, formatCount)
	result = api.GetPhysicalDeviceSurfaceFormats(physical, surface, &formatCount, support.formats)
	if result != vk.Success {
		return support, errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + vk.Error(result).Error())
	}
	for i := range support.formats {
		support.formats[i].Deref()
	}

	var modeCount uint32
	result = api.GetPhysicalDeviceSurfacePresentModes(physical, surface, &modeCount, nil)
	if result != vk.Success {
		return support, errors.New("vk.GetPhysicalDeviceSurfacePresentModes(): " + vk.Error(result).Error())
	}
	if modeCount == 0 {
		return support, errors.New("core: surface reports no present modes")
	}
	support.presentModes = make([]vk.PresentMode, modeCount)
	result = api.GetPhysicalDeviceSurfacePresentModes(physical, surface, &modeCount, support.presentModes)
	if result != vk.Success {
		return support, errors.New("vk.GetPhysicalDeviceSurfacePresentModes(): " + vk.Error(result).Error())
	}
	return support, nil
}

// chooseSurfaceFormat prefers 8-bit BGRA with an sRGB nonlinear color
// space and otherwise takes whatever the surface lists first.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorspaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

// choosePresentMode prefers mailbox for its low latency and falls back
// to FIFO, which every conforming driver provides.
func choosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, m := range modes {
		if m == vk.PresentModeMailbox {
			return m
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent resolves the swapchain extent. When the surface pins the
// extent it wins outright; when it leaves it free (width is the
// all-ones sentinel) the requested size is clamped into the supported
// range.
func chooseExtent(caps vk.SurfaceCapabilities, requestedWidth, requestedHeight uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  clampU32(requestedWidth, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clampU32(requestedHeight, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// chooseImageCount asks for one image beyond the minimum so acquisition
// rarely blocks, respecting the maximum when the surface has one.
func chooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func clampU32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
