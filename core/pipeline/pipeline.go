// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pipeline assembles graphics pipeline state and the descriptor set
// layouts the renderer's shaders expect.
package pipeline

import (
	"github.com/devblok/korender/gpu"
	"github.com/pkg/errors"
)

// ErrIncompleteBuilder is returned by Build when a required fragment is
// missing.
var ErrIncompleteBuilder = errors.New("pipeline: incomplete builder")

// EntryPoint of every shader module
const EntryPoint = "main"

// Builder accumulates fixed function and programmable state. A Builder is a
// value, copying it shares every fragment set so far, so variants can start
// from a common base.
type Builder struct {
	Stages        []gpu.ShaderStageDescriptor
	VertexInput   gpu.VertexInput
	InputAssembly gpu.InputAssembly
	Viewport      gpu.Viewport
	Scissor       gpu.Rect2D
	Rasterization gpu.Rasterization
	Multisample   gpu.Multisample
	ColorBlend    gpu.ColorBlendAttachment
	DepthStencil  *gpu.DepthStencil
	Layout        gpu.PipelineLayout
}

// NewBuilder returns a builder for filled, unculled triangle lists without
// multisampling or blending.
func NewBuilder() Builder {
	return Builder{
		InputAssembly: InputAssembly(gpu.TopologyTriangleList),
		Rasterization: Rasterization(gpu.PolygonModeFill),
		Multisample:   Multisample(),
		ColorBlend:    ColorBlendAttachment(),
	}
}

// ShaderStage returns a stage entry using the common entry point.
func ShaderStage(stage gpu.ShaderStage, module gpu.ShaderModule) gpu.ShaderStageDescriptor {
	return gpu.ShaderStageDescriptor{
		Stage:  stage,
		Module: module,
		Entry:  EntryPoint,
	}
}

// InputAssembly without primitive restart
func InputAssembly(topology gpu.PrimitiveTopology) gpu.InputAssembly {
	return gpu.InputAssembly{Topology: topology}
}

// Rasterization with no culling and counter clockwise front faces.
func Rasterization(mode gpu.PolygonMode) gpu.Rasterization {
	return gpu.Rasterization{
		PolygonMode: mode,
		CullMode:    gpu.CullModeNone,
		FrontFace:   gpu.FrontFaceCounterClockwise,
		LineWidth:   1,
	}
}

// Multisample state for a single sample.
func Multisample() gpu.Multisample {
	return gpu.Multisample{Samples: 1, MinSampleShading: 1}
}

// ColorBlendAttachment writes all channels without blending.
func ColorBlendAttachment() gpu.ColorBlendAttachment {
	return gpu.ColorBlendAttachment{WriteMask: gpu.ColorComponentAll}
}

// DepthStencil state. With test disabled the compare op is ALWAYS.
func DepthStencil(test, write bool, op gpu.CompareOp) *gpu.DepthStencil {
	if !test {
		op = gpu.CompareOpAlways
	}
	return &gpu.DepthStencil{
		DepthTest:  test,
		DepthWrite: write,
		CompareOp:  op,
	}
}

// WithStage adds a programmable stage.
func (b Builder) WithStage(stage gpu.ShaderStage, module gpu.ShaderModule) Builder {
	b.Stages = append(append([]gpu.ShaderStageDescriptor(nil), b.Stages...), ShaderStage(stage, module))
	return b
}

// WithVertexInput sets the vertex buffer layout.
func (b Builder) WithVertexInput(in gpu.VertexInput) Builder {
	b.VertexInput = in
	return b
}

// WithTopology changes the primitive topology.
func (b Builder) WithTopology(t gpu.PrimitiveTopology) Builder {
	b.InputAssembly = InputAssembly(t)
	return b
}

// WithRasterization replaces the rasterizer state.
func (b Builder) WithRasterization(r gpu.Rasterization) Builder {
	b.Rasterization = r
	return b
}

// WithColorBlend replaces the color blend attachment state.
func (b Builder) WithColorBlend(c gpu.ColorBlendAttachment) Builder {
	b.ColorBlend = c
	return b
}

// WithMultisample replaces the multisample state.
func (b Builder) WithMultisample(m gpu.Multisample) Builder {
	b.Multisample = m
	return b
}

// WithDepthStencil enables the depth stencil stage.
func (b Builder) WithDepthStencil(ds *gpu.DepthStencil) Builder {
	b.DepthStencil = ds
	return b
}

// WithExtent sets a viewport and scissor covering the whole extent.
func (b Builder) WithExtent(e gpu.Extent2D) Builder {
	b.Viewport = gpu.Viewport{
		Width:    float32(e.Width),
		Height:   float32(e.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	b.Scissor = gpu.Rect2D{Extent: e}
	return b
}

// WithLayout sets the pipeline layout.
func (b Builder) WithLayout(l gpu.PipelineLayout) Builder {
	b.Layout = l
	return b
}

// Descriptor assembles the accumulated state for subpass 0 of rp.
func (b Builder) Descriptor(rp gpu.RenderPass) (*gpu.GraphicsPipelineDescriptor, error) {
	switch {
	case len(b.Stages) == 0:
		return nil, errors.Wrap(ErrIncompleteBuilder, "no shader stages")
	case b.Layout == 0:
		return nil, errors.Wrap(ErrIncompleteBuilder, "no pipeline layout")
	case rp == 0:
		return nil, errors.Wrap(ErrIncompleteBuilder, "no render pass")
	case b.Scissor.Extent.Width == 0 || b.Scissor.Extent.Height == 0:
		return nil, errors.Wrap(ErrIncompleteBuilder, "no viewport")
	}

	desc := &gpu.GraphicsPipelineDescriptor{
		Stages:        append([]gpu.ShaderStageDescriptor(nil), b.Stages...),
		VertexInput:   b.VertexInput,
		InputAssembly: b.InputAssembly,
		Viewport:      b.Viewport,
		Scissor:       b.Scissor,
		Rasterization: b.Rasterization,
		Multisample:   b.Multisample,
		ColorBlend:    b.ColorBlend,
		Layout:        b.Layout,
		RenderPass:    rp,
	}
	if b.DepthStencil != nil {
		ds := *b.DepthStencil
		desc.DepthStencil = &ds
	}
	return desc, nil
}

// Build compiles the pipeline. The caller owns the returned pipeline.
func (b Builder) Build(dev gpu.Device, cache gpu.PipelineCache, rp gpu.RenderPass) (gpu.Pipeline, error) {
	desc, err := b.Descriptor(rp)
	if err != nil {
		return 0, err
	}
	p, err := dev.CreateGraphicsPipeline(cache, desc)
	if err != nil {
		return 0, errors.Wrap(err, "pipeline: build")
	}
	return p, nil
}
