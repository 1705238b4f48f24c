// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"fmt"

	"github.com/devblok/korender/gpu"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// CreateShaderModule implements gpu.Device
func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, fmt.Errorf("vulkan: shader code of %d bytes is not word aligned", len(code))
	}
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}
	var module vk.ShaderModule
	if err := check("vk.CreateShaderModule", vk.CreateShaderModule(d.device, &smci, nil, &module)); err != nil {
		return 0, err
	}
	return gpu.ShaderModule(d.objects.add(gpu.ObjectShaderModule, module)), nil
}

// CreateDescriptorSetLayout implements gpu.Device
func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	native := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		native[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(native)),
		PBindings:    native,
	}
	var layout vk.DescriptorSetLayout
	if err := check("vk.CreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(d.device, &dslci, nil, &layout)); err != nil {
		return 0, err
	}
	return gpu.DescriptorSetLayout(d.objects.add(gpu.ObjectDescriptorSetLayout, layout)), nil
}

// CreatePipelineLayout implements gpu.Device
func (d *Device) CreatePipelineLayout(desc gpu.PipelineLayoutDescriptor) (gpu.PipelineLayout, error) {
	sets := make([]vk.DescriptorSetLayout, len(desc.SetLayouts))
	for i, l := range desc.SetLayouts {
		v, ok := d.lookup(gpu.ObjectDescriptorSetLayout, gpu.Handle(l)).(vk.DescriptorSetLayout)
		if !ok {
			return 0, fmt.Errorf("vulkan: unknown descriptor set layout %d", l)
		}
		sets[i] = v
	}
	ranges := make([]vk.PushConstantRange, len(desc.PushConstants))
	for i, r := range desc.PushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(sets)),
		PSetLayouts:            sets,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var layout vk.PipelineLayout
	if err := check("vk.CreatePipelineLayout", vk.CreatePipelineLayout(d.device, &plci, nil, &layout)); err != nil {
		return 0, err
	}
	return gpu.PipelineLayout(d.objects.add(gpu.ObjectPipelineLayout, layout)), nil
}

// CreatePipelineCache implements gpu.Device
func (d *Device) CreatePipelineCache() (gpu.PipelineCache, error) {
	pcci := vk.PipelineCacheCreateInfo{SType: vk.StructureTypePipelineCacheCreateInfo}
	var cache vk.PipelineCache
	if err := check("vk.CreatePipelineCache", vk.CreatePipelineCache(d.device, &pcci, nil, &cache)); err != nil {
		return 0, err
	}
	return gpu.PipelineCache(d.objects.add(gpu.ObjectPipelineCache, cache)), nil
}

// CreateGraphicsPipeline implements gpu.Device. Viewport and scissor are baked
// into the pipeline, so it is rebuilt whenever the target extent changes.
func (d *Device) CreateGraphicsPipeline(cache gpu.PipelineCache, desc *gpu.GraphicsPipelineDescriptor) (gpu.Pipeline, error) {
	if len(desc.Stages) == 0 {
		return 0, errors.New("vulkan: pipeline without shader stages")
	}
	stages := make([]vk.PipelineShaderStageCreateInfo, len(desc.Stages))
	for i, s := range desc.Stages {
		module, ok := d.lookup(gpu.ObjectShaderModule, gpu.Handle(s.Module)).(vk.ShaderModule)
		if !ok {
			return 0, fmt.Errorf("vulkan: unknown shader module %d", s.Module)
		}
		entry := s.Entry
		if entry == "" {
			entry = "main"
		}
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(s.Stage),
			Module: module,
			PName:  safeString(entry),
		}
	}
	layout, ok := d.lookup(gpu.ObjectPipelineLayout, gpu.Handle(desc.Layout)).(vk.PipelineLayout)
	if !ok {
		return 0, fmt.Errorf("vulkan: unknown pipeline layout %d", desc.Layout)
	}
	rp, ok := d.lookup(gpu.ObjectRenderPass, gpu.Handle(desc.RenderPass)).(vk.RenderPass)
	if !ok {
		return 0, fmt.Errorf("vulkan: unknown render pass %d", desc.RenderPass)
	}
	var nativeCache vk.PipelineCache
	if cache != 0 {
		if nativeCache, ok = d.lookup(gpu.ObjectPipelineCache, gpu.Handle(cache)).(vk.PipelineCache); !ok {
			return 0, fmt.Errorf("vulkan: unknown pipeline cache %d", cache)
		}
	}

	bindings := make([]vk.VertexInputBindingDescription, len(desc.VertexInput.Bindings))
	for i, b := range desc.VertexInput.Bindings {
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: vk.VertexInputRate(b.Rate),
		}
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(desc.VertexInput.Attributes))
	for i, a := range desc.VertexInput.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   vk.Format(a.Format),
			Offset:   a.Offset,
		}
	}

	samples := vk.SampleCount1Bit
	if desc.Multisample.Samples > 1 {
		samples = vk.SampleCountFlagBits(desc.Multisample.Samples)
	}
	lineWidth := desc.Rasterization.LineWidth
	if lineWidth == 0 {
		lineWidth = 1
	}

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(bindings)),
			PVertexBindingDescriptions:      bindings,
			VertexAttributeDescriptionCount: uint32(len(attributes)),
			PVertexAttributeDescriptions:    attributes,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology:               vk.PrimitiveTopology(desc.InputAssembly.Topology),
			PrimitiveRestartEnable: bool32(desc.InputAssembly.PrimitiveRestart),
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			PViewports:    []vk.Viewport{viewport(desc.Viewport)},
			ScissorCount:  1,
			PScissors:     []vk.Rect2D{rect2D(desc.Scissor)},
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonMode(desc.Rasterization.PolygonMode),
			CullMode:    vk.CullModeFlags(desc.Rasterization.CullMode),
			FrontFace:   vk.FrontFace(desc.Rasterization.FrontFace),
			LineWidth:   lineWidth,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: samples,
			MinSampleShading:     desc.Multisample.MinSampleShading,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{{
				ColorWriteMask: vk.ColorComponentFlags(desc.ColorBlend.WriteMask),
				BlendEnable:    bool32(desc.ColorBlend.BlendEnable),
			}},
		},
		Layout:     layout,
		RenderPass: rp,
		Subpass:    desc.Subpass,
	}}
	if ds := desc.DepthStencil; ds != nil {
		keep := vk.StencilOpState{
			FailOp:    vk.StencilOpKeep,
			PassOp:    vk.StencilOpKeep,
			CompareOp: vk.CompareOpAlways,
		}
		gpci[0].PDepthStencilState = &vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  bool32(ds.DepthTest),
			DepthWriteEnable: bool32(ds.DepthWrite),
			DepthCompareOp:   vk.CompareOp(ds.CompareOp),
			Front:            keep,
			Back:             keep,
		}
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := check("vk.CreateGraphicsPipelines", vk.CreateGraphicsPipelines(d.device, nativeCache, 1, gpci, nil, pipelines)); err != nil {
		return 0, err
	}
	return gpu.Pipeline(d.objects.add(gpu.ObjectPipeline, pipelines[0])), nil
}

func attachment(a gpu.Attachment) vk.AttachmentDescription {
	return vk.AttachmentDescription{
		Format:         vk.Format(a.Format),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOp(a.LoadOp),
		StoreOp:        vk.AttachmentStoreOp(a.StoreOp),
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayout(a.InitialLayout),
		FinalLayout:    vk.ImageLayout(a.FinalLayout),
	}
}

// CreateRenderPass implements gpu.Device
func (d *Device) CreateRenderPass(desc gpu.RenderPassDescriptor) (gpu.RenderPass, error) {
	attachments := []vk.AttachmentDescription{attachment(desc.Color)}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
	}
	if desc.Depth != nil {
		attachments = append(attachments, attachment(*desc.Depth))
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}
	deps := make([]vk.SubpassDependency, len(desc.Dependencies))
	for i, dep := range desc.Dependencies {
		deps[i] = vk.SubpassDependency{
			SrcSubpass:    dep.SrcSubpass,
			DstSubpass:    dep.DstSubpass,
			SrcStageMask:  vk.PipelineStageFlags(dep.SrcStage),
			DstStageMask:  vk.PipelineStageFlags(dep.DstStage),
			SrcAccessMask: vk.AccessFlags(dep.SrcAccess),
			DstAccessMask: vk.AccessFlags(dep.DstAccess),
		}
	}
	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(deps)),
		PDependencies:   deps,
	}
	var rp vk.RenderPass
	if err := check("vk.CreateRenderPass", vk.CreateRenderPass(d.device, &rpci, nil, &rp)); err != nil {
		return 0, err
	}
	return gpu.RenderPass(d.objects.add(gpu.ObjectRenderPass, rp)), nil
}

// CreateFramebuffer implements gpu.Device
func (d *Device) CreateFramebuffer(desc gpu.FramebufferDescriptor) (gpu.Framebuffer, error) {
	rp, ok := d.lookup(gpu.ObjectRenderPass, gpu.Handle(desc.RenderPass)).(vk.RenderPass)
	if !ok {
		return 0, fmt.Errorf("vulkan: unknown render pass %d", desc.RenderPass)
	}
	views := make([]vk.ImageView, len(desc.Attachments))
	for i, a := range desc.Attachments {
		if views[i], ok = d.lookup(gpu.ObjectImageView, gpu.Handle(a)).(vk.ImageView); !ok {
			return 0, fmt.Errorf("vulkan: unknown image view %d", a)
		}
	}
	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           desc.Extent.Width,
		Height:          desc.Extent.Height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if err := check("vk.CreateFramebuffer", vk.CreateFramebuffer(d.device, &fci, nil, &fb)); err != nil {
		return 0, err
	}
	return gpu.Framebuffer(d.objects.add(gpu.ObjectFramebuffer, fb)), nil
}

// CreateDescriptorPool implements gpu.Device
func (d *Device) CreateDescriptorPool(desc gpu.DescriptorPoolDescriptor) (gpu.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, len(desc.Sizes))
	for i, s := range desc.Sizes {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	dpci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       desc.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if err := check("vk.CreateDescriptorPool", vk.CreateDescriptorPool(d.device, &dpci, nil, &pool)); err != nil {
		return 0, err
	}
	return gpu.DescriptorPool(d.objects.add(gpu.ObjectDescriptorPool, &descriptorPool{handle: pool})), nil
}

// AllocateDescriptorSet implements gpu.Device
func (d *Device) AllocateDescriptorSet(pool gpu.DescriptorPool, layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	p, ok := d.lookup(gpu.ObjectDescriptorPool, gpu.Handle(pool)).(*descriptorPool)
	if !ok {
		return 0, fmt.Errorf("vulkan: unknown descriptor pool %d", pool)
	}
	l, ok := d.lookup(gpu.ObjectDescriptorSetLayout, gpu.Handle(layout)).(vk.DescriptorSetLayout)
	if !ok {
		return 0, fmt.Errorf("vulkan: unknown descriptor set layout %d", layout)
	}
	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{l},
	}
	var set vk.DescriptorSet
	if err := check("vk.AllocateDescriptorSets", vk.AllocateDescriptorSets(d.device, &dsai, &set)); err != nil {
		return 0, err
	}
	h := gpu.DescriptorSet(d.objects.add(gpu.ObjectDescriptorSet, set))
	p.sets = append(p.sets, h)
	return h, nil
}

// UpdateDescriptorSets implements gpu.Device. Writes naming unknown objects
// are skipped.
func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	native := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		set, ok := d.lookup(gpu.ObjectDescriptorSet, gpu.Handle(w.Set)).(vk.DescriptorSet)
		if !ok {
			d.log.WithField("set", w.Set).Warn("descriptor write to unknown set")
			continue
		}
		buf, err := d.buffer(w.Buffer)
		if err != nil {
			d.log.WithError(err).Warn("descriptor write of unknown buffer")
			continue
		}
		native = append(native, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      w.Binding,
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorType(w.Type),
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: buf.handle,
				Offset: vk.DeviceSize(w.Offset),
				Range:  vk.DeviceSize(w.Range),
			}},
		})
	}
	if len(native) == 0 {
		return
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(native)), native, 0, nil)
}
