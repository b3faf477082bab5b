package core

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// DefaultApplicationInfo describes the application to the driver.
var DefaultApplicationInfo = &vk.ApplicationInfo{
	SType:              vk.StructureTypeApplicationInfo,
	ApiVersion:         vk.MakeVersion(1, 0, 0),
	ApplicationVersion: vk.MakeVersion(1, 0, 0),
	PApplicationName:   "FNA3D\x00",
	PEngineName:        "FNA3D\x00",
}

// InstanceConfiguration holds the instance level switches.
type InstanceConfiguration struct {
	DebugMode  bool
	Extensions []string
	Layers     []string
}

// NewVulkanInstance loads the Vulkan library, creates an instance and
// enumerates the physical devices. window is the proc address source
// from the windowing layer; pass nil to use the system loader.
func NewVulkanInstance(appInfo *vk.ApplicationInfo, window unsafe.Pointer, cfg InstanceConfiguration) (Instance, error) {
	if cfg.DebugMode {
		cfg.Layers = append(cfg.Layers, "VK_LAYER_KHRONOS_validation\x00")
		cfg.Extensions = append(cfg.Extensions, "VK_EXT_debug_report\x00")
	}

	if window == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.New("vk.InstanceProcAddr(): " + err.Error())
		}
	} else {
		vk.SetGetInstanceProcAddr(window)
	}

	if err := vk.Init(); err != nil {
		return nil, errors.New("vk.Init(): " + err.Error())
	}

	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: cfg.Extensions,
		EnabledLayerCount:       uint32(len(cfg.Layers)),
		PpEnabledLayerNames:     cfg.Layers,
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return nil, errors.New("vk.CreateInstance(): " + err.Error())
	}
	vk.InitInstance(instance)

	physicalDevices, err := enumerateDevices(instance)
	if err != nil {
		return nil, errors.New("core.enumerateDevices(): " + err.Error())
	}

	return &VulkanInstance{
		configuration:    cfg,
		instance:         instance,
		availableDevices: physicalDevices,
	}, nil
}

// VulkanInstance describes a Vulkan API Instance
type VulkanInstance struct {
	Destroyable

	configuration InstanceConfiguration

	availableDevices []vk.PhysicalDevice
	surface          vk.Surface
	instance         vk.Instance
}

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	availableDevices := make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, availableDevices)); err != nil {
		return nil, fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	return availableDevices, nil
}

// PhysicalDevicesInfo implements interface
func (v VulkanInstance) PhysicalDevicesInfo() []PhysicalDeviceInfo {
	infos := make([]PhysicalDeviceInfo, len(v.availableDevices))
	for i, dev := range v.availableDevices {
		infos[i] = describePhysicalDevice(dev)
	}
	return infos
}

// describePhysicalDevice collects the identity, heap memory total and
// the extension and layer names of one device.
func describePhysicalDevice(dev vk.PhysicalDevice) PhysicalDeviceInfo {
	var info PhysicalDeviceInfo

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(dev, &props)
	props.Deref()
	info.ID = int(props.DeviceID)
	info.VendorID = int(props.VendorID)
	info.DriverVersion = int(props.DriverVersion)
	info.Name = vk.ToString(props.DeviceName[:])

	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(dev, &memProps)
	memProps.Deref()
	for heap := uint32(0); heap < memProps.MemoryHeapCount; heap++ {
		memProps.MemoryHeaps[heap].Deref()
		info.Memory += uint(memProps.MemoryHeaps[heap].Size)
	}

	var extCount uint32
	if vk.EnumerateDeviceExtensionProperties(dev, "", &extCount, nil) != vk.Success {
		info.Invalid = true
		return info
	}
	extensions := make([]vk.ExtensionProperties, extCount)
	if vk.EnumerateDeviceExtensionProperties(dev, "", &extCount, extensions) != vk.Success {
		info.Invalid = true
		return info
	}
	for _, ext := range extensions {
		ext.Deref()
		info.Extensions = append(info.Extensions, vk.ToString(ext.ExtensionName[:]))
	}

	var layerCount uint32
	if vk.EnumerateDeviceLayerProperties(dev, &layerCount, nil) != vk.Success {
		info.Invalid = true
		return info
	}
	layers := make([]vk.LayerProperties, layerCount)
	if vk.EnumerateDeviceLayerProperties(dev, &layerCount, layers) != vk.Success {
		info.Invalid = true
		return info
	}
	for _, layer := range layers {
		layer.Deref()
		info.Layers = append(info.Layers, vk.ToString(layer.LayerName[:]))
	}
	return info
}

// SetSurface implements interface
func (v *VulkanInstance) SetSurface(pSurface unsafe.Pointer) {
	v.surface = vk.SurfaceFromPointer(uintptr(pSurface))
}

// Surface implements interface
func (v VulkanInstance) Surface() vk.Surface {
	if v.surface == nil {
		return vk.NullSurface
	}
	return v.surface
}

// Handle implements interface
func (v *VulkanInstance) Handle() vk.Instance {
	return v.instance
}

// Extensions implements interface
func (v VulkanInstance) Extensions() []string {
	return v.configuration.Extensions
}

// AvailableDevices implements interface
func (v VulkanInstance) AvailableDevices() []vk.PhysicalDevice {
	return v.availableDevices
}

// Destroy implements interface
func (v VulkanInstance) Destroy() {
	v.availableDevices = nil
	vk.DestroyInstance(v.instance, nil)
}

// selectPhysicalDevice prefers a discrete GPU and otherwise settles
// for the first enumerated device.
func selectPhysicalDevice(api *API, devices []vk.PhysicalDevice) (vk.PhysicalDevice, error) {
	if len(devices) == 0 {
		return nil, errors.New("core: no Vulkan capable devices found")
	}
	for _, dev := range devices {
		var props vk.PhysicalDeviceProperties
		api.GetPhysicalDeviceProperties(dev, &props)
		props.Deref()
		if props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			return dev, nil
		}
	}
	return devices[0], nil
}

// findQueueFamily locates a queue family that supports both graphics
// and presentation to the surface. A single family keeps submission
// and presentation on one queue, which the frame protocol assumes.
func findQueueFamily(api *API, physical vk.PhysicalDevice, surface vk.Surface) (uint32, error) {
	var count uint32
	api.GetPhysicalDeviceQueueFamilyProperties(physical, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	api.GetPhysicalDeviceQueueFamilyProperties(physical, &count, families)
	for i := range families {
		families[i].Deref()
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}
		var supported vk.Bool32
		result := api.GetPhysicalDeviceSurfaceSupport(physical, uint32(i), surface, &supported)
		if result != vk.Success {
			return 0, errors.New("vk.GetPhysicalDeviceSurfaceSupport(): " + vk.Error(result).Error())
		}
		if supported == vk.True {
			return uint32(i), nil
		}
	}
	return 0, errors.New("core: no queue family supports graphics and presentation")
}
