package core

import (
	"errors"

	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// swapchain bundles the presentable image chain with the per-image
// views the renderer attaches to. Rebuilds go through recreate so the
// old chain can seed the new one before it is torn down.
type swapchain struct {
	api    *API
	device vk.Device

	handle vk.Swapchain
	images []vk.Image
	views  []vk.ImageView
	format vk.SurfaceFormat
	extent vk.Extent2D
}

// newSwapchain builds a chain for the surface sized to the requested
// dimensions (subject to what the surface allows). oldChain may be the
// null handle on first creation.
func newSwapchain(api *API, device vk.Device, physical vk.PhysicalDevice, surface vk.Surface,
	width, height uint32, oldChain vk.Swapchain) (*swapchain, error) {

	support, err := querySurfaceSupport(api, physical, surface)
	if err != nil {
		return nil, err
	}

	sc := &swapchain{
		api:    api,
		device: device,
		format: chooseSurfaceFormat(support.formats),
		extent: chooseExtent(support.capabilities, width, height),
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    chooseImageCount(support.capabilities),
		ImageFormat:      sc.format.Format,
		ImageColorSpace:  sc.format.ColorSpace,
		ImageExtent:      sc.extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     support.capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      choosePresentMode(support.presentModes),
		Clipped:          vk.True,
		OldSwapchain:     oldChain,
	}

	var handle vk.Swapchain
	result := api.CreateSwapchain(device, &createInfo, nil, &handle)
	if result != vk.Success {
		return nil, errors.New("vk.CreateSwapchain(): " + vk.Error(result).Error())
	}
	sc.handle = handle

	if err := sc.fetchImages(); err != nil {
		api.DestroySwapchain(device, handle, nil)
		return nil, err
	}
	if err := sc.createViews(); err != nil {
		sc.destroyViews()
		api.DestroySwapchain(device, handle, nil)
		return nil, err
	}

	log.WithFields(log.Fields{
		"images": len(sc.images),
		"width":  sc.extent.Width,
		"height": sc.extent.Height,
	}).Debug("swapchain built")
	return sc, nil
}

func (sc *swapchain) fetchImages() error {
	var count uint32
	result := sc.api.GetSwapchainImages(sc.device, sc.handle, &count, nil)
	if result != vk.Success {
		return errors.New("vk.GetSwapchainImages(): " + vk.Error(result).Error())
	}
	sc.images = make([]vk.Image, count)
	result = sc.api.GetSwapchainImages(sc.device, sc.handle, &count, sc.images)
	if result != vk.Success {
		return errors.New("vk.GetSwapchainImages(): " + vk.Error(result).Error())
	}
	return nil
}

func (sc *swapchain) createViews() error {
	sc.views = make([]vk.ImageView, len(sc.images))
	for i, image := range sc.images {
		createInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   sc.format.Format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		var view vk.ImageView
		result := sc.api.CreateImageView(sc.device, &createInfo, nil, &view)
		if result != vk.Success {
			sc.views = sc.views[:i]
			return errors.New("vk.CreateImageView(): " + vk.Error(result).Error())
		}
		sc.views[i] = view
	}
	return nil
}

func (sc *swapchain) destroyViews() {
	for _, view := range sc.views {
		sc.api.DestroyImageView(sc.device, view, nil)
	}
	sc.views = nil
}

// Destroy releases the views and then the chain itself. The caller is
// responsible for making sure no frame is still using them.
func (sc *swapchain) Destroy() {
	if sc.handle == vk.NullSwapchain {
		return
	}
	sc.destroyViews()
	sc.api.DestroySwapchain(sc.device, sc.handle, nil)
	sc.handle = vk.NullSwapchain
	sc.images = nil
}

// recreateSwapchain builds a replacement chain seeded with the old one
// and only then tears the old one down, so the driver can recycle the
// images. The old chain survives untouched if the rebuild fails.
func recreateSwapchain(api *API, device vk.Device, physical vk.PhysicalDevice, surface vk.Surface,
	width, height uint32, old *swapchain) (*swapchain, error) {

	oldHandle := vk.NullSwapchain
	if old != nil {
		oldHandle = old.handle
	}
	next, err := newSwapchain(api, device, physical, surface, width, height, oldHandle)
	if err != nil {
		return nil, err
	}
	if old != nil {
		old.Destroy()
	}
	return next, nil
}
