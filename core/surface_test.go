package core

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestChooseExtentPinnedBySurface(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: 800, Height: 600},
		MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
	}
	extent := chooseExtent(caps, 1920, 1080)
	if extent.Width != 800 || extent.Height != 600 {
		t.Errorf("expected surface extent to win, got %dx%d", extent.Width, extent.Height)
	}
}

func TestChooseExtentClampsRequest(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: vk.MaxUint32, Height: 600},
		MinImageExtent: vk.Extent2D{Width: 200, Height: 200},
		MaxImageExtent: vk.Extent2D{Width: 1000, Height: 1000},
	}

	extent := chooseExtent(caps, 4000, 100)
	if extent.Width != 1000 {
		t.Errorf("width not clamped to max, got %d", extent.Width)
	}
	if extent.Height != 200 {
		t.Errorf("height not clamped to min, got %d", extent.Height)
	}

	extent = chooseExtent(caps, 500, 500)
	if extent.Width != 500 || extent.Height != 500 {
		t.Errorf("in-range request modified, got %dx%d", extent.Width, extent.Height)
	}
}

func TestChooseSurfaceFormatPrefersBgraSrgb(t *testing.T) {
	formats := []vk.SurfaceFormat{
		{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorspaceSrgbNonlinear},
		{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorspaceSrgbNonlinear},
	}
	chosen := chooseSurfaceFormat(formats)
	if chosen.Format != vk.FormatB8g8r8a8Unorm {
		t.Errorf("expected preferred format, got %d", chosen.Format)
	}
}

func TestChooseSurfaceFormatFallsBackToFirst(t *testing.T) {
	formats := []vk.SurfaceFormat{
		{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorspaceSrgbNonlinear},
		{Format: vk.FormatR32g32b32a32Sfloat, ColorSpace: vk.ColorspaceSrgbNonlinear},
	}
	chosen := chooseSurfaceFormat(formats)
	if chosen.Format != vk.FormatR8g8b8a8Srgb {
		t.Errorf("expected first listed format, got %d", chosen.Format)
	}
}

func TestChoosePresentMode(t *testing.T) {
	mode := choosePresentMode([]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox})
	if mode != vk.PresentModeMailbox {
		t.Errorf("expected mailbox, got %d", mode)
	}
	mode = choosePresentMode([]vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifo})
	if mode != vk.PresentModeFifo {
		t.Errorf("expected fifo fallback, got %d", mode)
	}
}

func TestChooseImageCount(t *testing.T) {
	count := chooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2})
	if count != 3 {
		t.Errorf("expected min+1 with no max, got %d", count)
	}
	count = chooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2})
	if count != 2 {
		t.Errorf("expected clamp to max, got %d", count)
	}
}
