// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"unsafe"

	"github.com/devblok/korender/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// safeString terminates s for the C side.
func safeString(s string) string {
	return s + "\x00"
}

func safeStrings(ss []string) []string {
	safe := make([]string, 0, len(ss))
	for _, s := range ss {
		safe = append(safe, safeString(s))
	}
	return safe
}

// sliceUint32 reslices SPIR-V bytes as words without copying.
func sliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

func bool32(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func extent2D(e gpu.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func fromExtent2D(e vk.Extent2D) gpu.Extent2D {
	e.Deref()
	return gpu.Extent2D{Width: e.Width, Height: e.Height}
}

func extent3D(e gpu.Extent3D) vk.Extent3D {
	return vk.Extent3D{Width: e.Width, Height: e.Height, Depth: e.Depth}
}

func rect2D(r gpu.Rect2D) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.Offset.X, Y: r.Offset.Y},
		Extent: extent2D(r.Extent),
	}
}

func viewport(v gpu.Viewport) vk.Viewport {
	return vk.Viewport{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}
}

func subresourceRange(aspect gpu.ImageAspect) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(aspect),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func clearValues(values []gpu.ClearValue) []vk.ClearValue {
	out := make([]vk.ClearValue, len(values))
	for i, v := range values {
		if v.IsDepth {
			out[i].SetDepthStencil(v.Depth, v.Stencil)
		} else {
			out[i].SetColor(v.Color[:])
		}
	}
	return out
}

func adapterType(t vk.PhysicalDeviceType) gpu.AdapterType {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return gpu.AdapterIntegrated
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return gpu.AdapterDiscrete
	case vk.PhysicalDeviceTypeVirtualGpu:
		return gpu.AdapterVirtual
	case vk.PhysicalDeviceTypeCpu:
		return gpu.AdapterCPU
	}
	return gpu.AdapterOther
}

func surfaceCapabilities(c vk.SurfaceCapabilities) gpu.SurfaceCapabilities {
	c.Deref()
	return gpu.SurfaceCapabilities{
		MinImageCount:           c.MinImageCount,
		MaxImageCount:           c.MaxImageCount,
		CurrentExtent:           fromExtent2D(c.CurrentExtent),
		MinImageExtent:          fromExtent2D(c.MinImageExtent),
		MaxImageExtent:          fromExtent2D(c.MaxImageExtent),
		CurrentTransform:        gpu.SurfaceTransform(c.CurrentTransform),
		SupportedCompositeAlpha: gpu.CompositeAlpha(c.SupportedCompositeAlpha),
	}
}

// memoryFlags returns the property flags memory of the given usage must
// have and those it should have if the device offers them.
func memoryFlags(usage gpu.MemoryUsage) (required, preferred vk.MemoryPropertyFlags) {
	const (
		local    = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
		visible  = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
		coherent = vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
		cached   = vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit)
	)
	switch usage {
	case gpu.MemoryGPUOnly:
		return local, 0
	case gpu.MemoryCPUOnly:
		return visible | coherent, 0
	case gpu.MemoryCPUToGPU:
		return visible | coherent, local
	case gpu.MemoryGPUToCPU:
		return visible, cached
	}
	return 0, 0
}

// findMemoryType picks a memory type allowed by filter that carries the
// required flags, favoring one that also carries the preferred flags.
func findMemoryType(props vk.PhysicalDeviceMemoryProperties, filter uint32, required, preferred vk.MemoryPropertyFlags) (uint32, bool) {
	search := func(want vk.MemoryPropertyFlags) (uint32, bool) {
		for idx := uint32(0); idx < props.MemoryTypeCount; idx++ {
			flags := props.MemoryTypes[idx].PropertyFlags
			if filter&(1<<idx) != 0 && flags&want == want {
				return idx, true
			}
		}
		return 0, false
	}
	if preferred != 0 {
		if idx, ok := search(required | preferred); ok {
			return idx, true
		}
	}
	return search(required)
}
