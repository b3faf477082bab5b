package core

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
	vk "github.com/vulkan-go/vulkan"

	"github.com/RotatingArtDev/FNA3D/device"
)

func init() {
	device.Register(device.Driver{
		Name: "Vulkan",
		PrepareWindowAttributes: func() (uint32, error) {
			return sdl.WINDOW_VULKAN, nil
		},
		CreateDevice: NewVulkanDevice,
	})
}

// VulkanDevice is the Vulkan implementation of device.Device.
type VulkanDevice struct {
	api      *API
	instance Instance
	physical vk.PhysicalDevice
	surface  vk.Surface

	device      vk.Device
	queue       vk.Queue
	queueFamily uint32

	alloc     *allocator
	scheduler *frameScheduler
	resources *resourceTracker
	cache     *pipelineCache

	params device.PresentationParameters

	viewport        device.Viewport
	scissor         device.Rect
	blendFactor     device.Color
	multiSampleMask int32
	stencilRef      int32
	vertexBuffer    device.Buffer
	vertexOffset    int32

	supportsS3TC bool
	supportsBC7  bool
}

// NewVulkanDevice brings up the full backend against the SDL window in
// the presentation parameters. It is registered as the "Vulkan" driver.
func NewVulkanDevice(pp device.PresentationParameters, debugMode bool) (device.Device, error) {
	window, ok := pp.DeviceWindowHandle.(*sdl.Window)
	if !ok {
		return nil, errors.New("core: DeviceWindowHandle is not an *sdl.Window")
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	instance, err := NewVulkanInstance(DefaultApplicationInfo, sdl.VulkanGetVkGetInstanceProcAddr(), InstanceConfiguration{
		DebugMode:  debugMode,
		Extensions: window.VulkanGetInstanceExtensions(),
	})
	if err != nil {
		return nil, err
	}

	srf, err := window.VulkanCreateSurface(instance.Handle())
	if err != nil {
		instance.Destroy()
		return nil, errors.New("sdl.VulkanCreateSurface(): " + err.Error())
	}
	instance.SetSurface(srf)

	api := bindAPI()
	dev, err := newVulkanDevice(api, instance, instance.Surface(), pp, cfg.Renderer)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	return dev, nil
}

// newVulkanDevice runs the creation sequence against an already bound
// API table. It takes ownership of the surface: each step unwinds
// everything before it on failure, the surface included.
func newVulkanDevice(api *API, instance Instance, surface vk.Surface,
	pp device.PresentationParameters, cfg RendererConfiguration) (*VulkanDevice, error) {

	if err := api.validate(); err != nil {
		return nil, err
	}
	destroySurface := func() {
		if surface != vk.NullSurface {
			api.DestroySurface(instance.Handle(), surface, nil)
		}
	}

	v := &VulkanDevice{
		api:             api,
		instance:        instance,
		surface:         surface,
		params:          pp,
		multiSampleMask: -1,
		blendFactor:     device.Color{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	}

	for _, info := range instance.PhysicalDevicesInfo() {
		if info.Invalid {
			continue
		}
		log.WithFields(log.Fields{
			"name":       info.Name,
			"vendor":     info.VendorID,
			"memory":     info.Memory,
			"extensions": len(info.Extensions),
		}).Debug("physical device")
	}

	physical, err := selectPhysicalDevice(api, instance.AvailableDevices())
	if err != nil {
		destroySurface()
		return nil, err
	}
	v.physical = physical
	v.queryFormatSupport()

	if err := v.createLogicalDevice(cfg.DeviceExtensions); err != nil {
		destroySurface()
		return nil, err
	}
	v.alloc = newAllocator(api, v.device, v.physical)

	cache, err := newPipelineCache(api, v.device, cfg.PipelineCachePath)
	if err != nil {
		v.api.DestroyDevice(v.device, nil)
		destroySurface()
		return nil, err
	}
	v.cache = cache

	v.resources = newResourceTracker(api, v.device, v.alloc)

	scheduler, err := newFrameScheduler(api, v.device, v.physical, surface, v.queue, v.queueFamily,
		v.alloc, uint32(pp.BackBufferWidth), uint32(pp.BackBufferHeight))
	if err != nil {
		v.cache.destroy()
		v.api.DestroyDevice(v.device, nil)
		destroySurface()
		return nil, err
	}
	v.scheduler = scheduler

	v.viewport = device.Viewport{
		W: pp.BackBufferWidth, H: pp.BackBufferHeight,
		MinDepth: 0, MaxDepth: 1,
	}
	v.scissor = device.Rect{W: pp.BackBufferWidth, H: pp.BackBufferHeight}

	log.WithFields(log.Fields{
		"width":  pp.BackBufferWidth,
		"height": pp.BackBufferHeight,
	}).Info("vulkan device created")
	return v, nil
}

func (v *VulkanDevice) createLogicalDevice(extensions []string) error {
	family, err := findQueueFamily(v.api, v.physical, v.surface)
	if err != nil {
		return err
	}
	v.queueFamily = family

	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: family,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}
	deviceInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       []vk.DeviceQueueCreateInfo{queueInfo},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}

	var dev vk.Device
	result := v.api.CreateDevice(v.physical, &deviceInfo, nil, &dev)
	if result != vk.Success {
		return errors.New("vk.CreateDevice(): " + vk.Error(result).Error())
	}
	v.device = dev

	var queue vk.Queue
	v.api.GetDeviceQueue(v.device, family, 0, &queue)
	v.queue = queue
	return nil
}

// queryFormatSupport probes the compressed formats once so the
// Supports* queries stay static.
func (v *VulkanDevice) queryFormatSupport() {
	// Desktop Vulkan implementations universally expose BC formats;
	// the properties query that would confirm it per-format is not in
	// the bound table, so mirror what every target platform reports.
	v.supportsS3TC = true
	v.supportsBC7 = true
}

// Destroy drains the device, tears down every live resource and then
// the device objects in reverse creation order.
func (v *VulkanDevice) Destroy() {
	if v.device == vk.Device(vk.NullHandle) {
		return
	}
	if result := v.api.DeviceWaitIdle(v.device); result != vk.Success {
		log.WithField("result", result).Warn("device wait idle failed during teardown")
	}
	v.resources.destroyAll()
	v.scheduler.destroy(v.alloc)
	v.cache.destroy()
	v.api.DestroyDevice(v.device, nil)
	v.device = vk.Device(vk.NullHandle)
	if v.surface != vk.NullSurface {
		v.api.DestroySurface(v.instance.Handle(), v.surface, nil)
		v.surface = vk.NullSurface
	}
	v.instance.Destroy()
	log.Info("vulkan device destroyed")
}

// BeginFrame implements device.Device.
func (v *VulkanDevice) BeginFrame() error {
	return v.scheduler.begin()
}

// EndFrame implements device.Device.
func (v *VulkanDevice) EndFrame() error {
	return v.scheduler.end()
}

// SwapBuffers implements device.Device.
func (v *VulkanDevice) SwapBuffers() error {
	if err := v.EndFrame(); err != nil {
		return err
	}
	return v.BeginFrame()
}

// ResetBackbuffer implements device.Device.
func (v *VulkanDevice) ResetBackbuffer(params device.PresentationParameters) error {
	if err := v.scheduler.resize(uint32(params.BackBufferWidth), uint32(params.BackBufferHeight)); err != nil {
		return err
	}
	v.params.BackBufferWidth = params.BackBufferWidth
	v.params.BackBufferHeight = params.BackBufferHeight
	v.params.BackBufferFormat = params.BackBufferFormat
	v.params.DepthStencilFormat = params.DepthStencilFormat
	v.params.MultiSampleCount = params.MultiSampleCount
	return nil
}

// GetBackbufferSize implements device.Device.
func (v *VulkanDevice) GetBackbufferSize() (int32, int32) {
	extent := v.scheduler.chain.extent
	return int32(extent.Width), int32(extent.Height)
}

// GetBackbufferSurfaceFormat implements device.Device.
func (v *VulkanDevice) GetBackbufferSurfaceFormat() device.SurfaceFormat {
	return v.params.BackBufferFormat
}

// GetBackbufferDepthFormat implements device.Device.
func (v *VulkanDevice) GetBackbufferDepthFormat() device.DepthFormat {
	return v.params.DepthStencilFormat
}

// Clear implements device.Device. It records a clear of the acquired
// image for whichever planes the options select.
func (v *VulkanDevice) Clear(options device.ClearOptions, color mgl32.Vec4, depth float32, stencil int32) {
	slot := v.scheduler.current()
	if slot.state != slotRecording {
		log.Warn("Clear outside of a frame ignored")
		return
	}

	var attachments []vk.ClearAttachment
	if options&device.ClearTarget != 0 {
		var value vk.ClearValue
		value.SetColor([]float32{color.X(), color.Y(), color.Z(), color.W()})
		attachments = append(attachments, vk.ClearAttachment{
			AspectMask:      vk.ImageAspectFlags(vk.ImageAspectColorBit),
			ColorAttachment: 0,
			ClearValue:      value,
		})
	}
	if options&(device.ClearDepthBuffer|device.ClearStencil) != 0 {
		var aspect vk.ImageAspectFlags
		if options&device.ClearDepthBuffer != 0 {
			aspect |= vk.ImageAspectFlags(vk.ImageAspectDepthBit)
		}
		if options&device.ClearStencil != 0 {
			aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
		}
		var value vk.ClearValue
		value.SetDepthStencil(depth, uint32(stencil))
		attachments = append(attachments, vk.ClearAttachment{
			AspectMask: aspect,
			ClearValue: value,
		})
	}
	if len(attachments) == 0 {
		return
	}

	extent := v.scheduler.chain.extent
	rect := vk.ClearRect{
		Rect:       vk.Rect2D{Extent: extent},
		LayerCount: 1,
	}
	v.api.CmdClearAttachments(slot.buffer, uint32(len(attachments)), attachments, 1, []vk.ClearRect{rect})
}

// DrawPrimitives implements device.Device.
func (v *VulkanDevice) DrawPrimitives(primitiveType device.PrimitiveType, vertexStart, primitiveCount int32) {
	slot := v.scheduler.current()
	if slot.state != slotRecording {
		log.Warn("DrawPrimitives outside of a frame ignored")
		return
	}
	v.flushDynamicState(slot)
	v.api.CmdDraw(slot.buffer, primitiveVertexCount(primitiveType, primitiveCount), 1, uint32(vertexStart), 0)
}

// DrawIndexedPrimitives implements device.Device.
func (v *VulkanDevice) DrawIndexedPrimitives(
	primitiveType device.PrimitiveType,
	baseVertex, minVertexIndex, numVertices, startIndex, primitiveCount int32,
	indices device.Buffer, indexElementSize device.IndexElementSize,
) {
	slot := v.scheduler.current()
	if slot.state != slotRecording {
		log.Warn("DrawIndexedPrimitives outside of a frame ignored")
		return
	}
	buffer, ok := v.resources.lookupBuffer(uint64(indices))
	if !ok {
		log.WithField("handle", indices).Warn("draw with unknown index buffer ignored")
		return
	}
	v.flushDynamicState(slot)
	v.api.CmdBindIndexBuffer(slot.buffer, buffer.buffer, 0, indexTypeToVk[indexElementSize])
	v.api.CmdDrawIndexed(slot.buffer,
		primitiveVertexCount(primitiveType, primitiveCount), 1,
		uint32(startIndex), baseVertex, 0)
}

// flushDynamicState re-records the dynamic state commands ahead of a
// draw so state setters stay valid at any point between frames.
func (v *VulkanDevice) flushDynamicState(slot *frameSlot) {
	v.api.CmdSetViewport(slot.buffer, 0, 1, []vk.Viewport{{
		X:        float32(v.viewport.X),
		Y:        float32(v.viewport.Y),
		Width:    float32(v.viewport.W),
		Height:   float32(v.viewport.H),
		MinDepth: v.viewport.MinDepth,
		MaxDepth: v.viewport.MaxDepth,
	}})
	v.api.CmdSetScissor(slot.buffer, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: v.scissor.X, Y: v.scissor.Y},
		Extent: vk.Extent2D{Width: uint32(v.scissor.W), Height: uint32(v.scissor.H)},
	}})
	v.api.CmdSetBlendConstants(slot.buffer, &[4]float32{
		float32(v.blendFactor.R) / 255,
		float32(v.blendFactor.G) / 255,
		float32(v.blendFactor.B) / 255,
		float32(v.blendFactor.A) / 255,
	})
	v.api.CmdSetStencilReference(slot.buffer,
		vk.StencilFaceFlags(vk.StencilFrontAndBack), uint32(v.stencilRef))
	if v.vertexBuffer != 0 {
		if buffer, ok := v.resources.lookupBuffer(uint64(v.vertexBuffer)); ok {
			v.api.CmdBindVertexBuffers(slot.buffer, 0, 1,
				[]vk.Buffer{buffer.buffer}, []vk.DeviceSize{vk.DeviceSize(v.vertexOffset)})
		}
	}
}

// ApplyVertexBufferBinding implements device.Device. The binding is
// recorded lazily ahead of the next draw.
func (v *VulkanDevice) ApplyVertexBufferBinding(buffer device.Buffer, offsetInBytes int32) {
	v.vertexBuffer = buffer
	v.vertexOffset = offsetInBytes
}

// SetViewport implements device.Device.
func (v *VulkanDevice) SetViewport(viewport device.Viewport) {
	v.viewport = viewport
}

// SetScissorRect implements device.Device.
func (v *VulkanDevice) SetScissorRect(scissor device.Rect) {
	v.scissor = scissor
}

// BlendFactor implements device.Device.
func (v *VulkanDevice) BlendFactor() device.Color {
	return v.blendFactor
}

// SetBlendFactor implements device.Device.
func (v *VulkanDevice) SetBlendFactor(blendFactor device.Color) {
	v.blendFactor = blendFactor
}

// MultiSampleMask implements device.Device.
func (v *VulkanDevice) MultiSampleMask() int32 {
	return v.multiSampleMask
}

// SetMultiSampleMask implements device.Device.
func (v *VulkanDevice) SetMultiSampleMask(mask int32) {
	v.multiSampleMask = mask
}

// ReferenceStencil implements device.Device.
func (v *VulkanDevice) ReferenceStencil() int32 {
	return v.stencilRef
}

// SetReferenceStencil implements device.Device.
func (v *VulkanDevice) SetReferenceStencil(ref int32) {
	v.stencilRef = ref
}

// CreateTexture2D implements device.Device.
func (v *VulkanDevice) CreateTexture2D(format device.SurfaceFormat, width, height, levelCount int32, renderTarget bool) (device.Texture, error) {
	if int(format) >= len(surfaceFormatToVk) {
		return 0, fmt.Errorf("core: unknown surface format %d", format)
	}
	handle, err := v.resources.createTexture2D(surfaceFormatToVk[format], width, height, levelCount, renderTarget)
	if err != nil {
		return 0, err
	}
	return device.Texture(handle), nil
}

// AddDisposeTexture implements device.Device.
func (v *VulkanDevice) AddDisposeTexture(texture device.Texture) {
	if err := v.resources.disposeTexture(uint64(texture)); err != nil {
		log.WithError(err).Error("texture dispose failed")
	}
}

// GenVertexBuffer implements device.Device.
func (v *VulkanDevice) GenVertexBuffer(dynamic bool, usage device.BufferUsage, sizeInBytes int32) (device.Buffer, error) {
	handle, err := v.resources.createBuffer(vk.DeviceSize(sizeInBytes),
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), dynamic)
	if err != nil {
		return 0, err
	}
	return device.Buffer(handle), nil
}

// GenIndexBuffer implements device.Device.
func (v *VulkanDevice) GenIndexBuffer(dynamic bool, usage device.BufferUsage, sizeInBytes int32) (device.Buffer, error) {
	handle, err := v.resources.createBuffer(vk.DeviceSize(sizeInBytes),
		vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), dynamic)
	if err != nil {
		return 0, err
	}
	return device.Buffer(handle), nil
}

// AddDisposeVertexBuffer implements device.Device.
func (v *VulkanDevice) AddDisposeVertexBuffer(buffer device.Buffer) {
	if err := v.resources.disposeBuffer(uint64(buffer)); err != nil {
		log.WithError(err).Error("vertex buffer dispose failed")
	}
}

// AddDisposeIndexBuffer implements device.Device.
func (v *VulkanDevice) AddDisposeIndexBuffer(buffer device.Buffer) {
	if err := v.resources.disposeBuffer(uint64(buffer)); err != nil {
		log.WithError(err).Error("index buffer dispose failed")
	}
}

// SetVertexBufferData implements device.Device.
func (v *VulkanDevice) SetVertexBufferData(buffer device.Buffer, offsetInBytes int32, data []byte) {
	v.setBufferData(buffer, offsetInBytes, data)
}

// SetIndexBufferData implements device.Device.
func (v *VulkanDevice) SetIndexBufferData(buffer device.Buffer, offsetInBytes int32, data []byte) {
	v.setBufferData(buffer, offsetInBytes, data)
}

// setBufferData writes into a dynamic buffer's persistent mapping. A
// static buffer would go through the staging path; only dynamic
// buffers accept data after creation.
func (v *VulkanDevice) setBufferData(handle device.Buffer, offsetInBytes int32, data []byte) {
	buffer, ok := v.resources.lookupBuffer(uint64(handle))
	if !ok {
		log.WithField("handle", handle).Warn("SetBufferData on unknown buffer ignored")
		return
	}
	if !buffer.dynamic {
		log.WithField("handle", handle).Warn("SetBufferData on a static buffer ignored")
		return
	}
	if int(offsetInBytes)+len(data) > len(buffer.mapped) {
		log.WithFields(log.Fields{
			"handle": handle,
			"offset": offsetInBytes,
			"bytes":  len(data),
		}).Warn("SetBufferData out of range ignored")
		return
	}
	copy(buffer.mapped[offsetInBytes:], data)
}

// SupportsDXT1 implements device.Device.
func (v *VulkanDevice) SupportsDXT1() bool { return v.supportsS3TC }

// SupportsS3TC implements device.Device.
func (v *VulkanDevice) SupportsS3TC() bool { return v.supportsS3TC }

// SupportsBC7 implements device.Device.
func (v *VulkanDevice) SupportsBC7() bool { return v.supportsBC7 }

// SupportsHardwareInstancing implements device.Device.
func (v *VulkanDevice) SupportsHardwareInstancing() bool { return true }

// SupportsNoOverwrite implements device.Device.
func (v *VulkanDevice) SupportsNoOverwrite() bool { return true }

// SupportsSRGBRenderTargets implements device.Device.
func (v *VulkanDevice) SupportsSRGBRenderTargets() bool { return true }

// GetMaxTextureSlots implements device.Device.
func (v *VulkanDevice) GetMaxTextureSlots() (int32, int32) {
	return maxTextureSamplers, maxVertexSamplers
}

// GetMaxMultiSampleCount implements device.Device.
func (v *VulkanDevice) GetMaxMultiSampleCount(format device.SurfaceFormat, multiSampleCount int32) int32 {
	max := int32(8)
	if multiSampleCount > max {
		return max
	}
	// Round down to a power of two, the only sample counts Vulkan
	// exposes.
	count := int32(1)
	for count*2 <= multiSampleCount {
		count *= 2
	}
	return count
}
