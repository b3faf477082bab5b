package core

import (
	"errors"

	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// slotState tracks where a frame slot is in its lifecycle.
type slotState int

const (
	slotIdle slotState = iota
	slotRecording
	slotSubmitted
)

// frameSlot owns everything one in-flight frame needs: its command
// pool and buffer, the two semaphores ordering acquisition against
// presentation, the fence the CPU waits on before reusing the slot,
// and a staging buffer for uploads recorded that frame. Fences start
// signaled so the first pass through the ring never blocks.
type frameSlot struct {
	pool           vk.CommandPool
	buffer         vk.CommandBuffer
	imageAvailable vk.Semaphore
	renderFinished vk.Semaphore
	inFlight       vk.Fence
	staging        *stagingBuffer
	state          slotState
	submitted      bool
	imageIndex     uint32
}

func newFrameSlot(api *API, device vk.Device, queueFamily uint32, alloc *allocator) (*frameSlot, error) {
	slot := &frameSlot{}

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamily,
	}
	result := api.CreateCommandPool(device, &poolInfo, nil, &slot.pool)
	if result != vk.Success {
		return nil, errors.New("vk.CreateCommandPool(): " + vk.Error(result).Error())
	}

	buffers := make([]vk.CommandBuffer, 1)
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        slot.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	result = api.AllocateCommandBuffers(device, &allocInfo, buffers)
	if result != vk.Success {
		slot.destroy(api, device, nil)
		return nil, errors.New("vk.AllocateCommandBuffers(): " + vk.Error(result).Error())
	}
	slot.buffer = buffers[0]

	semInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	result = api.CreateSemaphore(device, &semInfo, nil, &slot.imageAvailable)
	if result != vk.Success {
		slot.destroy(api, device, nil)
		return nil, errors.New("vk.CreateSemaphore(): " + vk.Error(result).Error())
	}
	result = api.CreateSemaphore(device, &semInfo, nil, &slot.renderFinished)
	if result != vk.Success {
		slot.destroy(api, device, nil)
		return nil, errors.New("vk.CreateSemaphore(): " + vk.Error(result).Error())
	}

	fenceInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
	}
	result = api.CreateFence(device, &fenceInfo, nil, &slot.inFlight)
	if result != vk.Success {
		slot.destroy(api, device, nil)
		return nil, errors.New("vk.CreateFence(): " + vk.Error(result).Error())
	}

	staging, err := newStagingBuffer(api, device, alloc, stagingBufferSize)
	if err != nil {
		slot.destroy(api, device, nil)
		return nil, err
	}
	slot.staging = staging
	return slot, nil
}

func (s *frameSlot) destroy(api *API, device vk.Device, alloc *allocator) {
	if s.staging != nil && alloc != nil {
		s.staging.destroy(api, device, alloc)
		s.staging = nil
	}
	if s.inFlight != vk.NullFence {
		api.DestroyFence(device, s.inFlight, nil)
		s.inFlight = vk.NullFence
	}
	if s.renderFinished != vk.NullSemaphore {
		api.DestroySemaphore(device, s.renderFinished, nil)
		s.renderFinished = vk.NullSemaphore
	}
	if s.imageAvailable != vk.NullSemaphore {
		api.DestroySemaphore(device, s.imageAvailable, nil)
		s.imageAvailable = vk.NullSemaphore
	}
	if s.pool != vk.CommandPool(vk.NullHandle) {
		if s.buffer != nil {
			api.FreeCommandBuffers(device, s.pool, 1, []vk.CommandBuffer{s.buffer})
			s.buffer = nil
		}
		api.DestroyCommandPool(device, s.pool, nil)
		s.pool = vk.CommandPool(vk.NullHandle)
	}
}

// frameScheduler drives the slot ring through the per-frame protocol:
// wait for the slot's previous submission, acquire a swapchain image,
// record, submit, present, advance. Surface staleness reported by the
// driver at either acquire or present triggers a swapchain rebuild.
type frameScheduler struct {
	api      *API
	device   vk.Device
	physical vk.PhysicalDevice
	surface  vk.Surface
	queue    vk.Queue

	chain *swapchain
	slots [maxFramesInFlight]*frameSlot
	frame int

	requestedWidth  uint32
	requestedHeight uint32

	// pendingResize defers a rebuild requested while the current slot
	// is recording; the acquired image must be presented to the chain
	// it came from before the chain is replaced.
	pendingResize bool
}

func newFrameScheduler(api *API, device vk.Device, physical vk.PhysicalDevice, surface vk.Surface,
	queue vk.Queue, queueFamily uint32, alloc *allocator, width, height uint32) (*frameScheduler, error) {

	chain, err := newSwapchain(api, device, physical, surface, width, height, vk.NullSwapchain)
	if err != nil {
		return nil, err
	}

	fs := &frameScheduler{
		api:             api,
		device:          device,
		physical:        physical,
		surface:         surface,
		queue:           queue,
		chain:           chain,
		requestedWidth:  width,
		requestedHeight: height,
	}
	for i := range fs.slots {
		slot, err := newFrameSlot(api, device, queueFamily, alloc)
		if err != nil {
			fs.destroy(alloc)
			return nil, err
		}
		fs.slots[i] = slot
	}
	return fs, nil
}

// current returns the slot the scheduler is working on this frame.
func (fs *frameScheduler) current() *frameSlot {
	return fs.slots[fs.frame]
}

// begin blocks until the current slot's last submission has retired,
// then acquires a swapchain image and opens the slot's command buffer
// for recording. A stale surface is handled by rebuilding the chain
// and skipping the frame; the caller simply calls begin again next
// frame. The fence is reset only after a successful acquire so a
// skipped frame leaves it signaled and the slot reusable.
func (fs *frameScheduler) begin() error {
	slot := fs.current()

	result := fs.api.WaitForFences(fs.device, 1, []vk.Fence{slot.inFlight}, vk.True, vk.MaxUint64)
	if result != vk.Success {
		return errors.New("vk.WaitForFences(): " + vk.Error(result).Error())
	}
	slot.submitted = false
	slot.state = slotIdle

	var imageIndex uint32
	result = fs.api.AcquireNextImage(fs.device, fs.chain.handle, vk.MaxUint64,
		slot.imageAvailable, vk.Fence(vk.NullHandle), &imageIndex)
	switch result {
	case vk.Success:
	case vk.ErrorOutOfDate, vk.Suboptimal:
		log.Debug("surface stale at acquire, rebuilding swapchain")
		return fs.rebuildChain()
	default:
		return errors.New("vk.AcquireNextImage(): " + vk.Error(result).Error())
	}
	slot.imageIndex = imageIndex

	result = fs.api.ResetFences(fs.device, 1, []vk.Fence{slot.inFlight})
	if result != vk.Success {
		return errors.New("vk.ResetFences(): " + vk.Error(result).Error())
	}
	result = fs.api.ResetCommandPool(fs.device, slot.pool, 0)
	if result != vk.Success {
		return errors.New("vk.ResetCommandPool(): " + vk.Error(result).Error())
	}
	slot.staging.reset()

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	result = fs.api.BeginCommandBuffer(slot.buffer, &beginInfo)
	if result != vk.Success {
		return errors.New("vk.BeginCommandBuffer(): " + vk.Error(result).Error())
	}
	slot.state = slotRecording
	return nil
}

// end closes the slot's command buffer, submits it gated on image
// acquisition, queues the present gated on the render, and advances
// the ring. Staleness reported at present rebuilds the chain but the
// frame still counts as presented.
func (fs *frameScheduler) end() error {
	slot := fs.current()
	if slot.state != slotRecording {
		fs.advance()
		return nil
	}

	result := fs.api.EndCommandBuffer(slot.buffer)
	if result != vk.Success {
		return errors.New("vk.EndCommandBuffer(): " + vk.Error(result).Error())
	}

	waitStage := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{slot.imageAvailable},
		PWaitDstStageMask:    []vk.PipelineStageFlags{waitStage},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{slot.buffer},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{slot.renderFinished},
	}
	result = fs.api.QueueSubmit(fs.queue, 1, []vk.SubmitInfo{submitInfo}, slot.inFlight)
	if result != vk.Success {
		return errors.New("vk.QueueSubmit(): " + vk.Error(result).Error())
	}
	slot.submitted = true
	slot.state = slotSubmitted

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{slot.renderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{fs.chain.handle},
		PImageIndices:      []uint32{slot.imageIndex},
	}
	result = fs.api.QueuePresent(fs.queue, &presentInfo)
	switch result {
	case vk.Success:
	case vk.ErrorOutOfDate, vk.Suboptimal:
		log.Debug("surface stale at present, rebuilding swapchain")
		if err := fs.rebuildChain(); err != nil {
			return err
		}
	default:
		return errors.New("vk.QueuePresent(): " + vk.Error(result).Error())
	}

	fs.advance()
	if fs.pendingResize {
		return fs.rebuildChain()
	}
	return nil
}

func (fs *frameScheduler) advance() {
	fs.frame = (fs.frame + 1) % maxFramesInFlight
}

// rebuildChain waits the device idle and replaces the swapchain at the
// last requested dimensions.
func (fs *frameScheduler) rebuildChain() error {
	result := fs.api.DeviceWaitIdle(fs.device)
	if result != vk.Success {
		return errors.New("vk.DeviceWaitIdle(): " + vk.Error(result).Error())
	}
	chain, err := recreateSwapchain(fs.api, fs.device, fs.physical, fs.surface,
		fs.requestedWidth, fs.requestedHeight, fs.chain)
	if err != nil {
		return err
	}
	fs.chain = chain
	fs.pendingResize = false
	return nil
}

// resize rebuilds the chain for new backbuffer dimensions. Mid-frame
// the rebuild waits until end has presented the frame's image.
func (fs *frameScheduler) resize(width, height uint32) error {
	fs.requestedWidth = width
	fs.requestedHeight = height
	if fs.current().state == slotRecording {
		fs.pendingResize = true
		return nil
	}
	return fs.rebuildChain()
}

// waitAllFrames blocks until every slot's submission has retired.
func (fs *frameScheduler) waitAllFrames() error {
	fences := make([]vk.Fence, 0, maxFramesInFlight)
	for _, slot := range fs.slots {
		if slot != nil {
			fences = append(fences, slot.inFlight)
		}
	}
	if len(fences) == 0 {
		return nil
	}
	result := fs.api.WaitForFences(fs.device, uint32(len(fences)), fences, vk.True, vk.MaxUint64)
	if result != vk.Success {
		return errors.New("vk.WaitForFences(): " + vk.Error(result).Error())
	}
	for _, slot := range fs.slots {
		if slot != nil {
			slot.submitted = false
			slot.state = slotIdle
		}
	}
	return nil
}

func (fs *frameScheduler) destroy(alloc *allocator) {
	for i, slot := range fs.slots {
		if slot != nil {
			slot.destroy(fs.api, fs.device, alloc)
			fs.slots[i] = nil
		}
	}
	if fs.chain != nil {
		fs.chain.Destroy()
		fs.chain = nil
	}
}
