package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	vk "github.com/vulkan-go/vulkan"

	"github.com/RotatingArtDev/FNA3D/device"
)

func newTestDevice(t *testing.T, g *fakeGPU) *VulkanDevice {
	t.Helper()
	instance := newFakeInstance()
	v, err := newVulkanDevice(g.api(), instance, instance.Surface(), device.PresentationParameters{
		BackBufferWidth:    800,
		BackBufferHeight:   600,
		BackBufferFormat:   device.SurfaceFormatColor,
		DepthStencilFormat: device.DepthFormatD24S8,
	}, RendererConfiguration{
		DeviceExtensions: []string{"VK_KHR_swapchain\x00"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestDeviceLifecycle(t *testing.T) {
	g := newFakeGPU()
	v := newTestDevice(t, g)

	width, height := v.GetBackbufferSize()
	if width != 800 || height != 600 {
		t.Errorf("unexpected backbuffer size %dx%d", width, height)
	}
	if v.GetBackbufferSurfaceFormat() != device.SurfaceFormatColor {
		t.Error("backbuffer format not echoed")
	}
	if v.GetBackbufferDepthFormat() != device.DepthFormatD24S8 {
		t.Error("depth format not echoed")
	}

	for i := 0; i < 5; i++ {
		if err := v.BeginFrame(); err != nil {
			t.Fatal(err)
		}
		v.Clear(device.ClearTarget, mgl32.Vec4{0, 0.2, 0.4, 1}, 1, 0)
		if err := v.EndFrame(); err != nil {
			t.Fatal(err)
		}
	}
	if got := countEvents(g.commands, "clearAttachments"); got != 5 {
		t.Errorf("expected 5 recorded clears, got %d", got)
	}

	v.Destroy()
	for _, slot := range v.scheduler.slots {
		if slot != nil {
			t.Error("frame slots survive teardown")
		}
	}
	if len(g.liveSwapchains)+len(g.liveViews)+len(g.liveBuffers)+len(g.liveImages)+len(g.liveMemory) != 0 {
		t.Error("device teardown leaked objects")
	}
	tail := g.events[len(g.events)-2:]
	if tail[0] != "device" || tail[1] != "surface" {
		t.Errorf("teardown must end device then surface, got %v", tail)
	}

	// Destroy is idempotent against double dispose.
	v.Destroy()
}

func TestDeviceSwapBuffers(t *testing.T) {
	g := newFakeGPU()
	v := newTestDevice(t, g)
	defer v.Destroy()

	if err := v.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := v.SwapBuffers(); err != nil {
			t.Fatal(err)
		}
	}
	if v.scheduler.current().state != slotRecording {
		t.Error("SwapBuffers must leave the next frame recording")
	}
	if err := v.EndFrame(); err != nil {
		t.Fatal(err)
	}
}

func TestDisposeTextureWaitsForIdleFirst(t *testing.T) {
	g := newFakeGPU()
	v := newTestDevice(t, g)
	defer v.Destroy()

	texture, err := v.CreateTexture2D(device.SurfaceFormatColor, 64, 64, 1, false)
	if err != nil {
		t.Fatal(err)
	}

	mark := len(g.events)
	idleBefore := g.idleCalls
	v.AddDisposeTexture(texture)

	tail := g.events[mark:]
	if g.idleCalls != idleBefore+1 {
		t.Fatalf("expected exactly one idle barrier, got %d", g.idleCalls-idleBefore)
	}
	if len(tail) == 0 || tail[0] != "idle" {
		t.Fatalf("idle barrier must precede destruction, got %v", tail)
	}
	for _, name := range []string{"view", "image", "memory"} {
		if countEvents(tail, name) != 1 {
			t.Errorf("expected one %s teardown, got %v", name, tail)
		}
	}
}

func TestDisposeNullHandleIsNoop(t *testing.T) {
	g := newFakeGPU()
	v := newTestDevice(t, g)
	defer v.Destroy()

	idleBefore := g.idleCalls
	v.AddDisposeTexture(0)
	v.AddDisposeVertexBuffer(0)
	v.AddDisposeIndexBuffer(0)
	if g.idleCalls != idleBefore {
		t.Error("null dispose must not touch the device")
	}
}

func TestDoubleDisposeIgnored(t *testing.T) {
	g := newFakeGPU()
	v := newTestDevice(t, g)
	defer v.Destroy()

	buffer, err := v.GenVertexBuffer(false, device.BufferUsageNone, 256)
	if err != nil {
		t.Fatal(err)
	}
	v.AddDisposeVertexBuffer(buffer)
	idleAfterFirst := g.idleCalls
	v.AddDisposeVertexBuffer(buffer)
	if g.idleCalls != idleAfterFirst {
		t.Error("second dispose of the same handle must be ignored")
	}
}

func TestDynamicBufferData(t *testing.T) {
	g := newFakeGPU()
	v := newTestDevice(t, g)
	defer v.Destroy()

	handle, err := v.GenVertexBuffer(true, device.BufferUsageWriteOnly, 64)
	if err != nil {
		t.Fatal(err)
	}
	v.SetVertexBufferData(handle, 8, []byte("payload"))

	buffer, ok := v.resources.lookupBuffer(uint64(handle))
	if !ok {
		t.Fatal("buffer vanished")
	}
	if string(buffer.mapped[8:15]) != "payload" {
		t.Error("dynamic write did not land at the requested offset")
	}

	// Out of range writes are dropped, not partially applied.
	v.SetVertexBufferData(handle, 60, []byte("toolarge"))
	if string(buffer.mapped[60:62]) == "to" {
		t.Error("out of range write partially applied")
	}
}

func TestStaticBufferRejectsData(t *testing.T) {
	g := newFakeGPU()
	v := newTestDevice(t, g)
	defer v.Destroy()

	handle, err := v.GenIndexBuffer(false, device.BufferUsageNone, 64)
	if err != nil {
		t.Fatal(err)
	}
	// Must not panic on a buffer with no host mapping.
	v.SetIndexBufferData(handle, 0, []byte{1, 2, 3})
}

func TestDeviceState(t *testing.T) {
	g := newFakeGPU()
	v := newTestDevice(t, g)
	defer v.Destroy()

	blend := device.Color{R: 10, G: 20, B: 30, A: 40}
	v.SetBlendFactor(blend)
	if v.BlendFactor() != blend {
		t.Error("blend factor not stored")
	}

	v.SetMultiSampleMask(0x0f)
	if v.MultiSampleMask() != 0x0f {
		t.Error("multisample mask not stored")
	}

	v.SetReferenceStencil(3)
	if v.ReferenceStencil() != 3 {
		t.Error("stencil reference not stored")
	}

	v.SetViewport(device.Viewport{X: 1, Y: 2, W: 3, H: 4, MaxDepth: 1})
	v.SetScissorRect(device.Rect{W: 3, H: 4})

	if err := v.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	v.DrawPrimitives(device.PrimitiveTypeTriangleList, 0, 2)
	if err := v.EndFrame(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"setViewport", "setScissor", "setBlendConstants", "setStencilReference", "draw"} {
		if countEvents(g.commands, name) != 1 {
			t.Errorf("expected %s recorded once, got %v", name, g.commands)
		}
	}
}

func TestDrawIndexedBindsIndexBuffer(t *testing.T) {
	g := newFakeGPU()
	v := newTestDevice(t, g)
	defer v.Destroy()

	indices, err := v.GenIndexBuffer(false, device.BufferUsageNone, 1024)
	if err != nil {
		t.Fatal(err)
	}

	if err := v.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	v.DrawIndexedPrimitives(device.PrimitiveTypeTriangleList, 0, 0, 3, 0, 1,
		indices, device.IndexElementSize16Bit)
	if err := v.EndFrame(); err != nil {
		t.Fatal(err)
	}

	if countEvents(g.commands, "bindIndexBuffer") != 1 {
		t.Error("index buffer not bound")
	}
	if countEvents(g.commands, "drawIndexed") != 1 {
		t.Error("indexed draw not recorded")
	}
}

func TestResetBackbufferResizes(t *testing.T) {
	g := newFakeGPU()
	v := newTestDevice(t, g)
	defer v.Destroy()

	g.mu.Lock()
	g.caps.CurrentExtent = vk.Extent2D{Width: 1024, Height: 768}
	g.mu.Unlock()

	if err := v.ResetBackbuffer(device.PresentationParameters{
		BackBufferWidth:  1024,
		BackBufferHeight: 768,
		BackBufferFormat: device.SurfaceFormatColor,
	}); err != nil {
		t.Fatal(err)
	}
	width, height := v.GetBackbufferSize()
	if width != 1024 || height != 768 {
		t.Errorf("backbuffer not resized, got %dx%d", width, height)
	}
	if countEvents(g.events, "swapchain") != 1 {
		t.Error("old chain not torn down on reset")
	}
}

func TestResetBackbufferMidFrameDefersRebuild(t *testing.T) {
	g := newFakeGPU()
	v := newTestDevice(t, g)
	defer v.Destroy()

	if err := v.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	acquiredChain := v.scheduler.chain.handle

	g.mu.Lock()
	g.caps.CurrentExtent = vk.Extent2D{Width: 1024, Height: 768}
	g.mu.Unlock()

	if err := v.ResetBackbuffer(device.PresentationParameters{
		BackBufferWidth:  1024,
		BackBufferHeight: 768,
		BackBufferFormat: device.SurfaceFormatColor,
	}); err != nil {
		t.Fatal(err)
	}
	if v.scheduler.chain.handle != acquiredChain {
		t.Fatal("mid-frame reset replaced the chain under the open frame")
	}

	if err := v.EndFrame(); err != nil {
		t.Fatal(err)
	}
	if g.presented[len(g.presented)-1] != acquiredChain {
		t.Error("frame presented to a chain its image was not acquired from")
	}
	width, height := v.GetBackbufferSize()
	if width != 1024 || height != 768 {
		t.Errorf("backbuffer not resized after the frame, got %dx%d", width, height)
	}
}

func TestDeviceCreationFailureDestroysSurface(t *testing.T) {
	g := newFakeGPU()
	api := g.api()
	api.CreateDevice = func(vk.PhysicalDevice, *vk.DeviceCreateInfo, *vk.AllocationCallbacks, *vk.Device) vk.Result {
		return vk.ErrorInitializationFailed
	}

	instance := newFakeInstance()
	_, err := newVulkanDevice(api, instance, instance.Surface(), device.PresentationParameters{
		BackBufferWidth:  800,
		BackBufferHeight: 600,
	}, RendererConfiguration{})
	if err == nil {
		t.Fatal("expected device creation to fail")
	}
	if countEvents(g.events, "surface") != 1 {
		t.Error("failed creation leaked the surface")
	}
}

func TestDrawBindsVertexBuffer(t *testing.T) {
	g := newFakeGPU()
	v := newTestDevice(t, g)
	defer v.Destroy()

	vertices, err := v.GenVertexBuffer(false, device.BufferUsageNone, 1024)
	if err != nil {
		t.Fatal(err)
	}
	v.ApplyVertexBufferBinding(vertices, 0)

	if err := v.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	v.DrawPrimitives(device.PrimitiveTypeTriangleList, 0, 2)
	if err := v.EndFrame(); err != nil {
		t.Fatal(err)
	}

	if countEvents(g.commands, "bindVertexBuffers") != 1 {
		t.Error("vertex buffer not bound ahead of the draw")
	}

	// Clearing the binding stops the bind from being recorded.
	v.ApplyVertexBufferBinding(0, 0)
	if err := v.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	v.DrawPrimitives(device.PrimitiveTypeTriangleList, 0, 2)
	if err := v.EndFrame(); err != nil {
		t.Fatal(err)
	}
	if countEvents(g.commands, "bindVertexBuffers") != 1 {
		t.Error("cleared vertex binding still recorded a bind")
	}
}

func TestDeviceCreationLogsPhysicalDevices(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	oldLevel := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	defer log.SetLevel(oldLevel)

	g := newFakeGPU()
	instance := newFakeInstance()
	instance.infos = []PhysicalDeviceInfo{{Name: "fake adapter", VendorID: 0x10de}}
	v, err := newVulkanDevice(g.api(), instance, instance.Surface(), device.PresentationParameters{
		BackBufferWidth:  800,
		BackBufferHeight: 600,
	}, RendererConfiguration{})
	if err != nil {
		t.Fatal(err)
	}
	defer v.Destroy()

	found := false
	for _, entry := range hook.AllEntries() {
		if entry.Message == "physical device" && entry.Data["name"] == "fake adapter" {
			found = true
		}
	}
	if !found {
		t.Error("enumerated physical devices not logged at creation")
	}
}

func TestDeviceCaps(t *testing.T) {
	g := newFakeGPU()
	v := newTestDevice(t, g)
	defer v.Destroy()

	textures, vertexTextures := v.GetMaxTextureSlots()
	if textures != 16 || vertexTextures != 4 {
		t.Errorf("unexpected texture slots %d/%d", textures, vertexTextures)
	}
	if got := v.GetMaxMultiSampleCount(device.SurfaceFormatColor, 16); got != 8 {
		t.Errorf("expected cap at 8 samples, got %d", got)
	}
	if got := v.GetMaxMultiSampleCount(device.SurfaceFormatColor, 5); got != 4 {
		t.Errorf("expected round down to 4 samples, got %d", got)
	}
	if got := v.GetMaxMultiSampleCount(device.SurfaceFormatColor, 1); got != 1 {
		t.Errorf("expected 1 sample, got %d", got)
	}

	for name, supported := range map[string]bool{
		"dxt1":        v.SupportsDXT1(),
		"s3tc":        v.SupportsS3TC(),
		"bc7":         v.SupportsBC7(),
		"instancing":  v.SupportsHardwareInstancing(),
		"noOverwrite": v.SupportsNoOverwrite(),
		"srgbTargets": v.SupportsSRGBRenderTargets(),
	} {
		if !supported {
			t.Errorf("%s should be supported", name)
		}
	}
}
