// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/korender/gpu"
)

// undefinedExtent in CurrentExtent means the surface size follows the
// swapchain.
const undefinedExtent = 0xFFFFFFFF

// ChooseSurfaceFormat prefers 8 bit sRGB BGRA, else takes the first format.
func ChooseSurfaceFormat(formats []gpu.SurfaceFormat) gpu.SurfaceFormat {
	for _, f := range formats {
		if f.Format == gpu.FormatB8G8R8A8Srgb && f.ColorSpace == gpu.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	if len(formats) == 0 {
		return gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8Srgb}
	}
	return formats[0]
}

// ChoosePresentMode prefers mailbox. FIFO is always available.
func ChoosePresentMode(modes []gpu.PresentMode) gpu.PresentMode {
	for _, m := range modes {
		if m == gpu.PresentModeMailbox {
			return m
		}
	}
	return gpu.PresentModeFifo
}

// ChooseExtent uses the extent the surface dictates, or the requested one
// clamped to what the surface allows.
func ChooseExtent(caps gpu.SurfaceCapabilities, width, height uint32) gpu.Extent2D {
	if caps.CurrentExtent.Width != undefinedExtent {
		return caps.CurrentExtent
	}
	return gpu.Extent2D{
		Width:  clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for the preferred number of images, or one more than
// the minimum when there is no preference. A zero maximum means there is none.
func ChooseImageCount(caps gpu.SurfaceCapabilities, preferred uint32) uint32 {
	count := preferred
	if count == 0 {
		count = caps.MinImageCount + 1
	}
	return clamp(count, caps.MinImageCount, caps.MaxImageCount)
}

// ChooseCompositeAlpha takes the first supported mode of opaque,
// pre-multiplied, post-multiplied and inherit.
func ChooseCompositeAlpha(supported gpu.CompositeAlpha) gpu.CompositeAlpha {
	for _, a := range []gpu.CompositeAlpha{
		gpu.CompositeAlphaOpaque,
		gpu.CompositeAlphaPreMultiplied,
		gpu.CompositeAlphaPostMultiplied,
		gpu.CompositeAlphaInherit,
	} {
		if supported&a != 0 {
			return a
		}
	}
	return gpu.CompositeAlphaOpaque
}

// SwapchainFor negotiates a swapchain for the surface of an adapter.
func SwapchainFor(info gpu.PhysicalDeviceInfo, caps gpu.SurfaceCapabilities, surface gpu.Surface, width, height, images uint32) gpu.SwapchainDescriptor {
	format := ChooseSurfaceFormat(info.SurfaceFormats)
	transform := caps.CurrentTransform
	if transform == 0 {
		transform = gpu.SurfaceTransformIdentity
	}
	return gpu.SwapchainDescriptor{
		Surface:        surface,
		MinImageCount:  ChooseImageCount(caps, images),
		Format:         format.Format,
		ColorSpace:     format.ColorSpace,
		Extent:         ChooseExtent(caps, width, height),
		Usage:          gpu.ImageUsageColorAttachment,
		Transform:      transform,
		CompositeAlpha: ChooseCompositeAlpha(caps.SupportedCompositeAlpha),
		PresentMode:    ChoosePresentMode(info.PresentModes),
	}
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
