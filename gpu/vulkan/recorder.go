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

// Recorder records into one command buffer. Unknown handles are logged and
// the command dropped, the validation layer reports the rest.
type Recorder struct {
	device *Device
	cb     vk.CommandBuffer
}

func (r *Recorder) missing(t gpu.ObjectType, h gpu.Handle) {
	r.device.log.WithField("handle", h).Warnf("recorded command names unknown %s", t)
}

func (r *Recorder) buffer(h gpu.Buffer) (vk.Buffer, bool) {
	b, err := r.device.buffer(h)
	if err != nil {
		r.missing(gpu.ObjectBuffer, gpu.Handle(h))
		return vk.NullBuffer, false
	}
	return b.handle, true
}

func (r *Recorder) image(h gpu.Image) (vk.Image, bool) {
	img, err := r.device.image(h)
	if err != nil {
		r.missing(gpu.ObjectImage, gpu.Handle(h))
		return vk.NullImage, false
	}
	return img.handle, true
}

func (r *Recorder) pipelineLayout(h gpu.PipelineLayout) (vk.PipelineLayout, bool) {
	l, ok := r.device.lookup(gpu.ObjectPipelineLayout, gpu.Handle(h)).(vk.PipelineLayout)
	if !ok {
		r.missing(gpu.ObjectPipelineLayout, gpu.Handle(h))
	}
	return l, ok
}

// CopyBuffer implements gpu.Recorder
func (r *Recorder) CopyBuffer(src, dst gpu.Buffer, regions ...gpu.BufferCopy) {
	s, ok := r.buffer(src)
	if !ok {
		return
	}
	d, ok := r.buffer(dst)
	if !ok {
		return
	}
	native := make([]vk.BufferCopy, len(regions))
	for i, c := range regions {
		native[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(c.SrcOffset),
			DstOffset: vk.DeviceSize(c.DstOffset),
			Size:      vk.DeviceSize(c.Size),
		}
	}
	vk.CmdCopyBuffer(r.cb, s, d, uint32(len(native)), native)
}

// CopyBufferToImage implements gpu.Recorder
func (r *Recorder) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, layout gpu.ImageLayout, region gpu.BufferImageCopy) {
	s, ok := r.buffer(src)
	if !ok {
		return
	}
	d, ok := r.image(dst)
	if !ok {
		return
	}
	bic := vk.BufferImageCopy{
		BufferOffset: vk.DeviceSize(region.BufferOffset),
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(region.Aspect),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{},
		ImageExtent: extent3D(region.Extent),
	}
	vk.CmdCopyBufferToImage(r.cb, s, d, vk.ImageLayout(layout), 1, []vk.BufferImageCopy{bic})
}

// PipelineBarrier implements gpu.Recorder
func (r *Recorder) PipelineBarrier(src, dst gpu.PipelineStage, barriers ...gpu.ImageBarrier) {
	native := make([]vk.ImageMemoryBarrier, 0, len(barriers))
	for _, b := range barriers {
		img, ok := r.image(b.Image)
		if !ok {
			continue
		}
		native = append(native, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
			DstAccessMask:       vk.AccessFlags(b.DstAccess),
			OldLayout:           vk.ImageLayout(b.OldLayout),
			NewLayout:           vk.ImageLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img,
			SubresourceRange:    subresourceRange(b.Aspect),
		})
	}
	vk.CmdPipelineBarrier(r.cb, vk.PipelineStageFlags(src), vk.PipelineStageFlags(dst),
		vk.DependencyFlags(0), 0, nil, 0, nil, uint32(len(native)), native)
}

// BeginRenderPass implements gpu.Recorder
func (r *Recorder) BeginRenderPass(begin gpu.RenderPassBegin) {
	rp, ok := r.device.lookup(gpu.ObjectRenderPass, gpu.Handle(begin.RenderPass)).(vk.RenderPass)
	if !ok {
		r.missing(gpu.ObjectRenderPass, gpu.Handle(begin.RenderPass))
		return
	}
	fb, ok := r.device.lookup(gpu.ObjectFramebuffer, gpu.Handle(begin.Framebuffer)).(vk.Framebuffer)
	if !ok {
		r.missing(gpu.ObjectFramebuffer, gpu.Handle(begin.Framebuffer))
		return
	}
	clear := clearValues(begin.ClearValues)
	rpbi := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      rp,
		Framebuffer:     fb,
		RenderArea:      rect2D(begin.Area),
		ClearValueCount: uint32(len(clear)),
		PClearValues:    clear,
	}
	vk.CmdBeginRenderPass(r.cb, &rpbi, vk.SubpassContentsInline)
}

// EndRenderPass implements gpu.Recorder
func (r *Recorder) EndRenderPass() {
	vk.CmdEndRenderPass(r.cb)
}

// BindPipeline implements gpu.Recorder
func (r *Recorder) BindPipeline(p gpu.Pipeline) {
	pipeline, ok := r.device.lookup(gpu.ObjectPipeline, gpu.Handle(p)).(vk.Pipeline)
	if !ok {
		r.missing(gpu.ObjectPipeline, gpu.Handle(p))
		return
	}
	vk.CmdBindPipeline(r.cb, vk.PipelineBindPointGraphics, pipeline)
}

// BindDescriptorSets implements gpu.Recorder
func (r *Recorder) BindDescriptorSets(layout gpu.PipelineLayout, firstSet uint32, sets []gpu.DescriptorSet, dynamicOffsets []uint32) {
	l, ok := r.pipelineLayout(layout)
	if !ok {
		return
	}
	native := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		if native[i], ok = r.device.lookup(gpu.ObjectDescriptorSet, gpu.Handle(s)).(vk.DescriptorSet); !ok {
			r.missing(gpu.ObjectDescriptorSet, gpu.Handle(s))
			return
		}
	}
	vk.CmdBindDescriptorSets(r.cb, vk.PipelineBindPointGraphics, l, firstSet,
		uint32(len(native)), native, uint32(len(dynamicOffsets)), dynamicOffsets)
}

// BindVertexBuffer implements gpu.Recorder
func (r *Recorder) BindVertexBuffer(b gpu.Buffer, offset uint64) {
	buf, ok := r.buffer(b)
	if !ok {
		return
	}
	vk.CmdBindVertexBuffers(r.cb, 0, 1, []vk.Buffer{buf}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

// BindIndexBuffer implements gpu.Recorder
func (r *Recorder) BindIndexBuffer(b gpu.Buffer, offset uint64, t gpu.IndexType) {
	buf, ok := r.buffer(b)
	if !ok {
		return
	}
	vk.CmdBindIndexBuffer(r.cb, buf, vk.DeviceSize(offset), vk.IndexType(t))
}

// PushConstants implements gpu.Recorder
func (r *Recorder) PushConstants(layout gpu.PipelineLayout, stages gpu.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	l, ok := r.pipelineLayout(layout)
	if !ok {
		return
	}
	vk.CmdPushConstants(r.cb, l, vk.ShaderStageFlags(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

// Draw implements gpu.Recorder
func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(r.cb, vertexCount, instanceCount, firstVertex, firstInstance)
}

// DrawIndexed implements gpu.Recorder
func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(r.cb, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}
