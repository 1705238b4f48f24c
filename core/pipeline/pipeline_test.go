// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline_test

import (
	"testing"

	"github.com/devblok/korender/core/pipeline"
	"github.com/devblok/korender/core/teardown"
	"github.com/devblok/korender/gpu"
	"github.com/devblok/korender/gpu/gputest"
	"github.com/devblok/korender/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlign(t *testing.T) {
	cases := []struct {
		size, alignment, want uint64
	}{
		{200, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{0, 256, 0},
		{80, 64, 128},
		{80, 0, 80},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, pipeline.Align(c.size, c.alignment), "Align(%d, %d)", c.size, c.alignment)
	}

	for _, a := range []uint64{1, 4, 16, 64, 256} {
		for size := uint64(0); size < 1024; size += 7 {
			got := pipeline.Align(size, a)
			assert.Zero(t, got%a)
			assert.True(t, got >= size)
			assert.True(t, got-size < a)
			assert.Equal(t, got, pipeline.Align(got, a))
		}
	}
}

type env struct {
	driver   *gputest.Driver
	instance gpu.Instance
	device   gpu.Device
	registry *teardown.Registry
}

func newEnv(t *testing.T) *env {
	drv := gputest.NewDriver()
	inst, err := drv.CreateInstance(gpu.InstanceDescriptor{})
	require.NoError(t, err)
	dev, err := inst.CreateDevice(1, gpu.DeviceDescriptor{})
	require.NoError(t, err)
	log, _ := test.NewNullLogger()
	return &env{driver: drv, instance: inst, device: dev, registry: teardown.New(log)}
}

func (e *env) close(t *testing.T) {
	e.registry.Flush(teardown.Split{Instance: e.instance, Device: e.device})
	assert.Empty(t, e.driver.Violations())
}

func (e *env) meshBuilder(t *testing.T) (pipeline.Builder, gpu.RenderPass) {
	rp, err := e.device.CreateRenderPass(pipeline.RenderPassDescriptor(gpu.FormatB8G8R8A8Srgb))
	require.NoError(t, err)
	e.registry.Push(gpu.ObjectRenderPass, gpu.Handle(rp))

	code := make([]byte, 16)
	vert, err := e.device.CreateShaderModule(code)
	require.NoError(t, err)
	e.registry.Push(gpu.ObjectShaderModule, gpu.Handle(vert))
	frag, err := e.device.CreateShaderModule(code)
	require.NoError(t, err)
	e.registry.Push(gpu.ObjectShaderModule, gpu.Handle(frag))

	sets, err := pipeline.CreateDescriptors(e.device, e.registry)
	require.NoError(t, err)
	layout, err := pipeline.CreateLayout(e.device, e.registry, sets.Layouts(), model.PushConstantsSize)
	require.NoError(t, err)

	b := pipeline.NewBuilder().
		WithStage(gpu.ShaderStageVertex, vert).
		WithStage(gpu.ShaderStageFragment, frag).
		WithVertexInput(model.VertexDescription()).
		WithExtent(gpu.Extent2D{Width: 1700, Height: 900}).
		WithDepthStencil(pipeline.DepthStencil(true, true, gpu.CompareOpLessOrEqual)).
		WithLayout(layout)
	return b, rp
}

func TestBuild(t *testing.T) {
	e := newEnv(t)
	b, rp := e.meshBuilder(t)

	desc, err := b.Descriptor(rp)
	require.NoError(t, err)
	require.Len(t, desc.Stages, 2)
	assert.Equal(t, "main", desc.Stages[0].Entry)
	assert.Equal(t, gpu.TopologyTriangleList, desc.InputAssembly.Topology)
	assert.Equal(t, float32(1700), desc.Viewport.Width)
	assert.Equal(t, gpu.Extent2D{Width: 1700, Height: 900}, desc.Scissor.Extent)
	require.NotNil(t, desc.DepthStencil)
	assert.Equal(t, gpu.CompareOpLessOrEqual, desc.DepthStencil.CompareOp)

	p, err := b.Build(e.device, 0, rp)
	require.NoError(t, err)
	assert.NotZero(t, p)
	e.registry.Push(gpu.ObjectPipeline, gpu.Handle(p))
	e.close(t)
	assert.Zero(t, e.driver.Live()[gpu.ObjectPipeline])
}

func TestVariantsShareFragments(t *testing.T) {
	e := newEnv(t)
	base, rp := e.meshBuilder(t)
	wire := base.WithRasterization(pipeline.Rasterization(gpu.PolygonModeLine))

	assert.Equal(t, gpu.PolygonModeFill, base.Rasterization.PolygonMode)
	assert.Equal(t, gpu.PolygonModeLine, wire.Rasterization.PolygonMode)

	// adding a stage to a variant leaves the base alone
	extra := wire.WithStage(gpu.ShaderStageGeometry, base.Stages[0].Module)
	assert.Len(t, base.Stages, 2)
	assert.Len(t, extra.Stages, 3)

	for _, b := range []pipeline.Builder{base, wire} {
		p, err := b.Build(e.device, 0, rp)
		require.NoError(t, err)
		e.registry.Push(gpu.ObjectPipeline, gpu.Handle(p))
	}
	e.close(t)
}

func TestBuildIncomplete(t *testing.T) {
	e := newEnv(t)
	full, rp := e.meshBuilder(t)

	cases := map[string]pipeline.Builder{
		"stages":   pipeline.NewBuilder().WithLayout(full.Layout).WithExtent(gpu.Extent2D{Width: 1, Height: 1}),
		"layout":   full.WithLayout(0),
		"viewport": full.WithExtent(gpu.Extent2D{}),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := b.Build(e.device, 0, rp)
			assert.Equal(t, pipeline.ErrIncompleteBuilder, errors.Cause(err))
			assert.Zero(t, p)
		})
	}
	_, err := full.Build(e.device, 0, 0)
	assert.Equal(t, pipeline.ErrIncompleteBuilder, errors.Cause(err))
	e.close(t)
}

func TestBuildReportsCompileFailure(t *testing.T) {
	e := newEnv(t)
	b, rp := e.meshBuilder(t)
	e.driver.FailNext("CreateGraphicsPipeline", errors.New("layout mismatch"))

	p, err := b.Build(e.device, 0, rp)
	assert.Error(t, err)
	assert.Zero(t, p)
	e.close(t)
}

func TestDescriptorLayout(t *testing.T) {
	global := pipeline.GlobalBindings()
	require.Len(t, global, 2)
	assert.Equal(t, gpu.DescriptorTypeUniformBuffer, global[0].Type)
	assert.Equal(t, gpu.DescriptorTypeUniformBufferDynamic, global[1].Type)
	assert.Equal(t, gpu.ShaderStageVertex|gpu.ShaderStageFragment, global[1].Stages)

	object := pipeline.ObjectBindings()
	require.Len(t, object, 1)
	assert.Equal(t, gpu.DescriptorTypeStorageBuffer, object[0].Type)

	pool := pipeline.PoolDescriptor()
	assert.Equal(t, uint32(10), pool.MaxSets)
	assert.Len(t, pool.Sizes, 3)
}
