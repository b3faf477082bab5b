package core

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestSwapchainBuild(t *testing.T) {
	g := newFakeGPU()
	dev := vk.Device(mint())

	sc, err := newSwapchain(g.api(), dev, vk.PhysicalDevice(mint()), vk.Surface(mint()),
		800, 600, vk.NullSwapchain)
	if err != nil {
		t.Fatal(err)
	}
	if sc.extent.Width != 800 || sc.extent.Height != 600 {
		t.Errorf("unexpected extent %dx%d", sc.extent.Width, sc.extent.Height)
	}
	if len(sc.images) != 3 || len(sc.views) != 3 {
		t.Errorf("expected 3 images and views, got %d/%d", len(sc.images), len(sc.views))
	}
	if g.lastOldSwapchain != vk.NullSwapchain {
		t.Error("first build should not reference an old chain")
	}

	sc.Destroy()
	if len(g.liveSwapchains) != 0 || len(g.liveViews) != 0 {
		t.Error("destroy leaked swapchain objects")
	}
}

func TestSwapchainRecreateSeedsOldChain(t *testing.T) {
	g := newFakeGPU()
	dev := vk.Device(mint())
	phys := vk.PhysicalDevice(mint())
	surf := vk.Surface(mint())

	old, err := newSwapchain(g.api(), dev, phys, surf, 800, 600, vk.NullSwapchain)
	if err != nil {
		t.Fatal(err)
	}
	oldHandle := old.handle

	next, err := recreateSwapchain(g.api(), dev, phys, surf, 800, 600, old)
	if err != nil {
		t.Fatal(err)
	}
	if g.lastOldSwapchain != oldHandle {
		t.Error("old chain was not handed to the replacement build")
	}
	if next.handle == oldHandle {
		t.Error("recreate returned the old chain")
	}
	if len(g.liveSwapchains) != 1 {
		t.Errorf("expected exactly one live chain, got %d", len(g.liveSwapchains))
	}
	if len(g.liveViews) != 3 {
		t.Errorf("expected exactly the new chain's views, got %d", len(g.liveViews))
	}
}

func TestSwapchainRecreateDestroysViewsBeforeChain(t *testing.T) {
	g := newFakeGPU()
	dev := vk.Device(mint())
	phys := vk.PhysicalDevice(mint())
	surf := vk.Surface(mint())

	old, err := newSwapchain(g.api(), dev, phys, surf, 800, 600, vk.NullSwapchain)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := recreateSwapchain(g.api(), dev, phys, surf, 800, 600, old); err != nil {
		t.Fatal(err)
	}

	want := []string{"view", "view", "view", "swapchain"}
	if len(g.events) != len(want) {
		t.Fatalf("unexpected teardown sequence %v", g.events)
	}
	for i, name := range want {
		if g.events[i] != name {
			t.Fatalf("teardown out of order at %d: %v", i, g.events)
		}
	}
}

func TestSwapchainDoubleRecreateNoLeak(t *testing.T) {
	g := newFakeGPU()
	dev := vk.Device(mint())
	phys := vk.PhysicalDevice(mint())
	surf := vk.Surface(mint())

	chain, err := newSwapchain(g.api(), dev, phys, surf, 800, 600, vk.NullSwapchain)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		chain, err = recreateSwapchain(g.api(), dev, phys, surf, 800, 600, chain)
		if err != nil {
			t.Fatal(err)
		}
	}
	if len(g.liveSwapchains) != 1 {
		t.Errorf("expected one live chain after double recreate, got %d", len(g.liveSwapchains))
	}
	if len(g.liveViews) != 3 {
		t.Errorf("expected 3 live views after double recreate, got %d", len(g.liveViews))
	}
	if got := countEvents(g.events, "swapchain"); got != 2 {
		t.Errorf("expected 2 chain teardowns, got %d", got)
	}
}
