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
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var extensions = []string{core.SwapchainExtension, core.ShaderDrawParametersExtension}

func TestScore(t *testing.T) {
	assert.Equal(t, 16384+1000, core.Score(gputest.DiscreteAdapter()))
	assert.Equal(t, 8192, core.Score(gputest.IntegratedAdapter()))
}

func TestRate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*gpu.PhysicalDeviceInfo)
		reason string
	}{
		{"suitable", func(*gpu.PhysicalDeviceInfo) {}, ""},
		{"vulkan 1.0", func(i *gpu.PhysicalDeviceInfo) {
			i.APIVersion = gpu.MakeVersion(1, 0, 61)
		}, "API version 1.0.61 is older than 1.1.0"},
		{"no present queue", func(i *gpu.PhysicalDeviceInfo) {
			i.QueueFamilies = []gpu.QueueFamily{{Index: 0, QueueCount: 1, Graphics: true}}
		}, "no queue family with graphics and present support"},
		{"no geometry shader", func(i *gpu.PhysicalDeviceInfo) {
			i.Features.GeometryShader = false
		}, "geometry shaders not supported"},
		{"no formats", func(i *gpu.PhysicalDeviceInfo) {
			i.SurfaceFormats = nil
		}, "no surface formats"},
		{"no present modes", func(i *gpu.PhysicalDeviceInfo) {
			i.PresentModes = nil
		}, "no present modes"},
		{"no draw parameters", func(i *gpu.PhysicalDeviceInfo) {
			i.Extensions = []string{core.SwapchainExtension}
		}, "missing extension " + core.ShaderDrawParametersExtension},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			info := gputest.DiscreteAdapter()
			c.modify(&info)
			rated := core.Rate(info, extensions)
			assert.Equal(t, c.reason, rated.Reason)
			assert.Equal(t, c.reason == "", rated.Suitable())
		})
	}
}

func TestRateQueueFamily(t *testing.T) {
	info := gputest.DiscreteAdapter()
	info.QueueFamilies = []gpu.QueueFamily{
		{Index: 0, QueueCount: 1, Graphics: true},
		{Index: 1, QueueCount: 1, Present: true},
		{Index: 2, QueueCount: 4, Graphics: true, Present: true},
	}
	rated := core.Rate(info, extensions)
	require.True(t, rated.Suitable())
	assert.Equal(t, uint32(2), rated.Queue)
}

func TestSelectDevice(t *testing.T) {
	old := gputest.DiscreteAdapter()
	old.Name = "Old Discrete GPU"
	old.APIVersion = gpu.MakeVersion(1, 0, 0)

	c, err := core.SelectDevice([]gpu.PhysicalDeviceInfo{
		gputest.IntegratedAdapter(),
		old,
		gputest.DiscreteAdapter(),
	}, extensions)
	require.NoError(t, err)
	assert.Equal(t, "Mock Discrete GPU", c.Info.Name)

	rated := core.RateAll([]gpu.PhysicalDeviceInfo{old, gputest.IntegratedAdapter()}, extensions)
	require.Len(t, rated, 2)
	assert.Equal(t, "Mock Integrated GPU", rated[0].Info.Name)
	assert.False(t, rated[1].Suitable())
}

func TestSelectDeviceNone(t *testing.T) {
	_, err := core.SelectDevice(nil, extensions)
	assert.Equal(t, gpu.ErrNoAdapter, errors.Cause(err))

	old := gputest.DiscreteAdapter()
	old.APIVersion = gpu.MakeVersion(1, 0, 0)
	_, err = core.SelectDevice([]gpu.PhysicalDeviceInfo{old}, extensions)
	assert.Equal(t, gpu.ErrNoAdapter, errors.Cause(err))
	assert.Contains(t, err.Error(), "older than")
}
