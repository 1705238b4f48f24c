// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gputest

import (
	"github.com/devblok/korender/gpu"
)

// Command is one recorded command.
type Command struct {
	Op        string
	Handles   []gpu.Handle
	Values    []uint64
	Data      []byte
	Copies    []gpu.BufferCopy
	ImageCopy gpu.BufferImageCopy
	Layout    gpu.ImageLayout
	Barriers  []gpu.ImageBarrier
	Stages    [2]gpu.PipelineStage
	Clear     []gpu.ClearValue
}

// Recorder implements gpu.Recorder. A Recorder created by NewRecorder keeps
// its commands in Commands, one returned by Device.Begin records into the
// command buffer.
type Recorder struct {
	Commands []Command

	driver *Driver
	cb     gpu.Handle
}

// NewRecorder returns a free standing recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Ops lists the recorded operation names.
func (r *Recorder) Ops() []string {
	ops := make([]string, len(r.Commands))
	for i, c := range r.Commands {
		ops[i] = c.Op
	}
	return ops
}

// Count returns how many times op was recorded.
func (r *Recorder) Count(op string) int {
	var n int
	for _, c := range r.Commands {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (r *Recorder) add(c Command) {
	if r.driver == nil {
		r.Commands = append(r.Commands, c)
		return
	}
	r.driver.mu.Lock()
	defer r.driver.mu.Unlock()
	o, ok := r.driver.objects[r.cb]
	if !ok {
		r.driver.violatef("record into dead command buffer %d", r.cb)
		return
	}
	if !o.recording {
		r.driver.violatef("record %s into command buffer %d that is not recording", c.Op, r.cb)
	}
	o.commands = append(o.commands, c)
}

// CopyBuffer implements gpu.Recorder
func (r *Recorder) CopyBuffer(src, dst gpu.Buffer, regions ...gpu.BufferCopy) {
	r.add(Command{
		Op:      "CopyBuffer",
		Handles: []gpu.Handle{gpu.Handle(src), gpu.Handle(dst)},
		Copies:  append([]gpu.BufferCopy(nil), regions...),
	})
}

// CopyBufferToImage implements gpu.Recorder
func (r *Recorder) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, layout gpu.ImageLayout, region gpu.BufferImageCopy) {
	r.add(Command{
		Op:        "CopyBufferToImage",
		Handles:   []gpu.Handle{gpu.Handle(src), gpu.Handle(dst)},
		ImageCopy: region,
		Layout:    layout,
	})
}

// PipelineBarrier implements gpu.Recorder
func (r *Recorder) PipelineBarrier(src, dst gpu.PipelineStage, barriers ...gpu.ImageBarrier) {
	r.add(Command{
		Op:       "PipelineBarrier",
		Barriers: append([]gpu.ImageBarrier(nil), barriers...),
		Stages:   [2]gpu.PipelineStage{src, dst},
	})
}

// BeginRenderPass implements gpu.Recorder
func (r *Recorder) BeginRenderPass(begin gpu.RenderPassBegin) {
	r.add(Command{
		Op:      "BeginRenderPass",
		Handles: []gpu.Handle{gpu.Handle(begin.RenderPass), gpu.Handle(begin.Framebuffer)},
		Values:  []uint64{uint64(begin.Area.Extent.Width), uint64(begin.Area.Extent.Height)},
		Clear:   append([]gpu.ClearValue(nil), begin.ClearValues...),
	})
}

// EndRenderPass implements gpu.Recorder
func (r *Recorder) EndRenderPass() {
	r.add(Command{Op: "EndRenderPass"})
}

// BindPipeline implements gpu.Recorder
func (r *Recorder) BindPipeline(p gpu.Pipeline) {
	r.add(Command{Op: "BindPipeline", Handles: []gpu.Handle{gpu.Handle(p)}})
}

// BindDescriptorSets implements gpu.Recorder
func (r *Recorder) BindDescriptorSets(layout gpu.PipelineLayout, firstSet uint32, sets []gpu.DescriptorSet, dynamicOffsets []uint32) {
	hs := []gpu.Handle{gpu.Handle(layout)}
	for _, s := range sets {
		hs = append(hs, gpu.Handle(s))
	}
	vs := []uint64{uint64(firstSet)}
	for _, o := range dynamicOffsets {
		vs = append(vs, uint64(o))
	}
	r.add(Command{Op: "BindDescriptorSets", Handles: hs, Values: vs})
}

// BindVertexBuffer implements gpu.Recorder
func (r *Recorder) BindVertexBuffer(b gpu.Buffer, offset uint64) {
	r.add(Command{Op: "BindVertexBuffer", Handles: []gpu.Handle{gpu.Handle(b)}, Values: []uint64{offset}})
}

// BindIndexBuffer implements gpu.Recorder
func (r *Recorder) BindIndexBuffer(b gpu.Buffer, offset uint64, t gpu.IndexType) {
	r.add(Command{Op: "BindIndexBuffer", Handles: []gpu.Handle{gpu.Handle(b)}, Values: []uint64{offset, uint64(t)}})
}

// PushConstants implements gpu.Recorder
func (r *Recorder) PushConstants(layout gpu.PipelineLayout, stages gpu.ShaderStage, offset uint32, data []byte) {
	r.add(Command{
		Op:      "PushConstants",
		Handles: []gpu.Handle{gpu.Handle(layout)},
		Values:  []uint64{uint64(stages), uint64(offset)},
		Data:    append([]byte(nil), data...),
	})
}

// Draw implements gpu.Recorder
func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.add(Command{
		Op:     "Draw",
		Values: []uint64{uint64(vertexCount), uint64(instanceCount), uint64(firstVertex), uint64(firstInstance)},
	})
}

// DrawIndexed implements gpu.Recorder
func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	r.add(Command{
		Op:     "DrawIndexed",
		Values: []uint64{uint64(indexCount), uint64(instanceCount), uint64(firstIndex), uint64(vertexOffset), uint64(firstInstance)},
	})
}
