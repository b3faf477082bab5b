package core

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func testMemoryProps() vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = 3
	props.MemoryTypes[0] = vk.MemoryType{
		PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	}
	props.MemoryTypes[1] = vk.MemoryType{
		PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit),
	}
	props.MemoryTypes[2] = vk.MemoryType{
		PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit),
	}
	return props
}

func TestFindMemoryTypeRequiresFlagSuperset(t *testing.T) {
	props := testMemoryProps()
	index := findMemoryType(props, 0b111,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if index != 2 {
		t.Errorf("expected type 2, got %d", index)
	}
}

func TestFindMemoryTypeHonorsFilterBits(t *testing.T) {
	props := testMemoryProps()
	// Type 1 satisfies the flags but the filter only admits type 2.
	index := findMemoryType(props, 0b100, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
	if index != 2 {
		t.Errorf("expected type 2, got %d", index)
	}
	index = findMemoryType(props, 0b001, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
	if index != memoryTypeNotFound {
		t.Errorf("expected no match, got %d", index)
	}
}

func TestFindMemoryTypePicksLowestIndex(t *testing.T) {
	props := testMemoryProps()
	index := findMemoryType(props, 0b110, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
	if index != 1 {
		t.Errorf("expected lowest matching index 1, got %d", index)
	}
}

func TestFindMemoryTypeSentinel(t *testing.T) {
	props := testMemoryProps()
	index := findMemoryType(props, 0b111, vk.MemoryPropertyFlags(vk.MemoryPropertyLazilyAllocatedBit))
	if index != memoryTypeNotFound {
		t.Errorf("expected sentinel, got %d", index)
	}
}

func TestAllocatorRejectsImpossibleRequest(t *testing.T) {
	g := newFakeGPU()
	alloc := newAllocator(g.api(), vk.Device(mint()), vk.PhysicalDevice(mint()))

	_, err := alloc.alloc(vk.MemoryRequirements{Size: 64, MemoryTypeBits: 0b11},
		vk.MemoryPropertyFlags(vk.MemoryPropertyLazilyAllocatedBit))
	if err == nil {
		t.Error("expected allocation to fail with no matching memory type")
	}
}

func TestAllocatorPersistentMapping(t *testing.T) {
	g := newFakeGPU()
	dev := vk.Device(mint())
	alloc := newAllocator(g.api(), dev, vk.PhysicalDevice(mint()))

	da, err := alloc.alloc(vk.MemoryRequirements{Size: 128, MemoryTypeBits: 0b11},
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		t.Fatal(err)
	}
	mapped, err := alloc.mapPersistent(da)
	if err != nil {
		t.Fatal(err)
	}
	if len(mapped) != 128 {
		t.Errorf("expected full allocation mapped, got %d bytes", len(mapped))
	}

	again, err := alloc.mapPersistent(da)
	if err != nil {
		t.Fatal(err)
	}
	if &again[0] != &mapped[0] {
		t.Error("expected the persistent mapping to be reused")
	}

	alloc.free(da)
	if len(g.liveMemory) != 0 {
		t.Error("allocation not freed")
	}
	if len(g.mappings) != 0 {
		t.Error("mapping not released before free")
	}
}
