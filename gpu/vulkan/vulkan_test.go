// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"math"
	"testing"
	"time"

	"github.com/devblok/korender/gpu"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestResult(t *testing.T) {
	assert.NoError(t, Result(vk.Success))
	assert.Equal(t, gpu.ErrTimeout, Result(vk.Timeout))
	assert.Equal(t, gpu.ErrTimeout, Result(vk.NotReady))
	assert.Equal(t, gpu.ErrSuboptimal, Result(vk.Suboptimal))
	assert.Equal(t, gpu.ErrOutOfDate, Result(vk.ErrorOutOfDate))
	assert.Equal(t, gpu.ErrDeviceLost, Result(vk.ErrorDeviceLost))
	assert.Error(t, Result(vk.ErrorOutOfDeviceMemory))
}

func TestCheck(t *testing.T) {
	assert.NoError(t, check("vk.QueueSubmit", vk.Success))

	err := check("vk.AcquireNextImage", vk.ErrorOutOfDate)
	require.Error(t, err)
	assert.Equal(t, gpu.ErrOutOfDate, errors.Cause(err))
	assert.Contains(t, err.Error(), "vk.AcquireNextImage(): ")
}

func TestTimeout(t *testing.T) {
	assert.Equal(t, uint64(time.Second), timeout(time.Second))
	assert.Equal(t, uint64(0), timeout(0))
	assert.Equal(t, uint64(math.MaxUint64), timeout(-1))
}

func TestObjects(t *testing.T) {
	o := newObjects()
	a := o.add(gpu.ObjectFence, "a")
	b := o.add(gpu.ObjectSemaphore, "b")
	assert.NotEqual(t, gpu.Null, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, o.len())

	v, ok := o.get(gpu.ObjectFence, a)
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	// the type has to match
	_, ok = o.get(gpu.ObjectSemaphore, a)
	assert.False(t, ok)
	_, ok = o.remove(gpu.ObjectSemaphore, a)
	assert.False(t, ok)

	_, ok = o.remove(gpu.ObjectFence, a)
	assert.True(t, ok)
	_, ok = o.get(gpu.ObjectFence, a)
	assert.False(t, ok)
	assert.Equal(t, 1, o.len())

	// handles are never reused
	assert.True(t, o.add(gpu.ObjectFence, "c") > b)
}

func memoryProperties(flags ...vk.MemoryPropertyFlagBits) vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = uint32(len(flags))
	for i, f := range flags {
		props.MemoryTypes[i].PropertyFlags = vk.MemoryPropertyFlags(f)
	}
	return props
}

func TestFindMemoryType(t *testing.T) {
	props := memoryProperties(
		vk.MemoryPropertyDeviceLocalBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCachedBit,
		vk.MemoryPropertyDeviceLocalBit|vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit,
	)
	cases := []struct {
		usage  gpu.MemoryUsage
		filter uint32
		want   uint32
		found  bool
	}{
		{gpu.MemoryGPUOnly, 0xf, 0, true},
		{gpu.MemoryCPUOnly, 0xf, 1, true},
		{gpu.MemoryGPUToCPU, 0xf, 2, true},
		// preferred device local host visible memory
		{gpu.MemoryCPUToGPU, 0xf, 3, true},
		// falls back when the preferred type is filtered out
		{gpu.MemoryCPUToGPU, 0x7, 1, true},
		{gpu.MemoryGPUOnly, 0x6, 0, false},
	}
	for _, c := range cases {
		t.Run(c.usage.String(), func(t *testing.T) {
			required, preferred := memoryFlags(c.usage)
			idx, ok := findMemoryType(props, c.filter, required, preferred)
			assert.Equal(t, c.found, ok)
			if c.found {
				assert.Equal(t, c.want, idx)
			}
		})
	}
}

func TestSafeStrings(t *testing.T) {
	assert.Equal(t, "main\x00", safeString("main"))
	assert.Equal(t, []string{"VK_KHR_swapchain\x00", ValidationLayer + "\x00"},
		safeStrings([]string{"VK_KHR_swapchain", ValidationLayer}))
	assert.Empty(t, safeStrings(nil))
}

func TestSliceUint32(t *testing.T) {
	words := sliceUint32([]byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0})
	require.Len(t, words, 2)
	assert.Equal(t, uint32(0x07230203), words[0])
	assert.Equal(t, uint32(0x00010000), words[1])
	assert.Nil(t, sliceUint32([]byte{1, 2}))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, logrus.ErrorLevel, level(vk.DebugReportFlags(vk.DebugReportErrorBit|vk.DebugReportWarningBit)))
	assert.Equal(t, logrus.WarnLevel, level(vk.DebugReportFlags(vk.DebugReportWarningBit)))
	assert.Equal(t, logrus.InfoLevel, level(vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit)))
	assert.Equal(t, logrus.DebugLevel, level(vk.DebugReportFlags(vk.DebugReportInformationBit)))
}

func TestAdapterType(t *testing.T) {
	assert.Equal(t, gpu.AdapterDiscrete, adapterType(vk.PhysicalDeviceTypeDiscreteGpu))
	assert.Equal(t, gpu.AdapterIntegrated, adapterType(vk.PhysicalDeviceTypeIntegratedGpu))
	assert.Equal(t, gpu.AdapterOther, adapterType(vk.PhysicalDeviceTypeOther))
}

func TestSurfaceCapabilities(t *testing.T) {
	caps := surfaceCapabilities(vk.SurfaceCapabilities{
		MinImageCount:           2,
		MaxImageCount:           8,
		CurrentExtent:           vk.Extent2D{Width: 1700, Height: 900},
		MaxImageExtent:          vk.Extent2D{Width: 4096, Height: 4096},
		CurrentTransform:        vk.SurfaceTransformIdentityBit,
		SupportedCompositeAlpha: vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit),
	})
	assert.Equal(t, uint32(2), caps.MinImageCount)
	assert.Equal(t, gpu.Extent2D{Width: 1700, Height: 900}, caps.CurrentExtent)
	assert.Equal(t, gpu.Extent2D{Width: 4096, Height: 4096}, caps.MaxImageExtent)
	assert.Equal(t, gpu.SurfaceTransformIdentity, caps.CurrentTransform)
	assert.Equal(t, gpu.CompositeAlphaOpaque, caps.SupportedCompositeAlpha)
}
