// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"testing"

	"github.com/devblok/korender/core"
	"github.com/devblok/korender/gpu"
	"github.com/devblok/korender/gpu/gputest"
	"github.com/stretchr/testify/assert"
)

func TestChooseSurfaceFormat(t *testing.T) {
	srgb := gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear}
	unorm := gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear}

	assert.Equal(t, srgb, core.ChooseSurfaceFormat([]gpu.SurfaceFormat{unorm, srgb}))
	assert.Equal(t, unorm, core.ChooseSurfaceFormat([]gpu.SurfaceFormat{unorm}))
	assert.Equal(t, gpu.FormatB8G8R8A8Srgb, core.ChooseSurfaceFormat(nil).Format)
}

func TestChoosePresentMode(t *testing.T) {
	assert.Equal(t, gpu.PresentModeMailbox, core.ChoosePresentMode([]gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox}))
	assert.Equal(t, gpu.PresentModeFifo, core.ChoosePresentMode([]gpu.PresentMode{gpu.PresentModeFifo}))
	assert.Equal(t, gpu.PresentModeFifo, core.ChoosePresentMode(nil))
}

func TestChooseExtent(t *testing.T) {
	caps := gputest.DiscreteAdapter().Capabilities

	cases := []struct {
		name          string
		width, height uint32
		want          gpu.Extent2D
	}{
		{"fits", 1700, 900, gpu.Extent2D{Width: 1700, Height: 900}},
		{"too large", 8000, 900, gpu.Extent2D{Width: 4096, Height: 900}},
		{"too small", 0, 0, gpu.Extent2D{Width: 1, Height: 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, core.ChooseExtent(caps, c.width, c.height))
		})
	}

	caps.CurrentExtent = gpu.Extent2D{Width: 800, Height: 600}
	assert.Equal(t, caps.CurrentExtent, core.ChooseExtent(caps, 1700, 900))
}

func TestChooseImageCount(t *testing.T) {
	caps := gpu.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 3}
	assert.Equal(t, uint32(3), core.ChooseImageCount(caps, 0))
	assert.Equal(t, uint32(3), core.ChooseImageCount(caps, 5))
	assert.Equal(t, uint32(2), core.ChooseImageCount(caps, 1))

	caps.MaxImageCount = 2
	assert.Equal(t, uint32(2), core.ChooseImageCount(caps, 0))

	// no upper bound
	caps.MaxImageCount = 0
	assert.Equal(t, uint32(3), core.ChooseImageCount(caps, 0))
	assert.Equal(t, uint32(6), core.ChooseImageCount(caps, 6))
}

func TestChooseCompositeAlpha(t *testing.T) {
	assert.Equal(t, gpu.CompositeAlphaOpaque, core.ChooseCompositeAlpha(gpu.CompositeAlphaOpaque|gpu.CompositeAlphaInherit))
	assert.Equal(t, gpu.CompositeAlphaPostMultiplied, core.ChooseCompositeAlpha(gpu.CompositeAlphaPostMultiplied|gpu.CompositeAlphaInherit))
	assert.Equal(t, gpu.CompositeAlphaInherit, core.ChooseCompositeAlpha(gpu.CompositeAlphaInherit))
	assert.Equal(t, gpu.CompositeAlphaOpaque, core.ChooseCompositeAlpha(0))
}

func TestSwapchainFor(t *testing.T) {
	info := gputest.DiscreteAdapter()
	desc := core.SwapchainFor(info, info.Capabilities, 7, 1700, 900, 0)

	assert.Equal(t, gpu.Surface(7), desc.Surface)
	assert.Equal(t, uint32(3), desc.MinImageCount)
	assert.Equal(t, gpu.FormatB8G8R8A8Srgb, desc.Format)
	assert.Equal(t, gpu.Extent2D{Width: 1700, Height: 900}, desc.Extent)
	assert.Equal(t, gpu.PresentModeMailbox, desc.PresentMode)
	assert.Equal(t, gpu.ImageUsageColorAttachment, desc.Usage)
	assert.Equal(t, gpu.SurfaceTransformIdentity, desc.Transform)
	assert.Equal(t, gpu.CompositeAlphaOpaque, desc.CompositeAlpha)
	assert.Equal(t, gpu.Swapchain(0), desc.Old)
}
