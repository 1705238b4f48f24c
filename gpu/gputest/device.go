// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gputest

import (
	"fmt"
	"time"

	"github.com/devblok/korender/gpu"
)

// Device is a fake gpu.Device.
type Device struct {
	driver *Driver
	handle gpu.Handle
	limits gpu.Limits
	desc   gpu.DeviceDescriptor
}

// Descriptor returns the descriptor the device was created with.
func (dev *Device) Descriptor() gpu.DeviceDescriptor {
	return dev.desc
}

// Handle implements gpu.Device
func (dev *Device) Handle() gpu.Handle {
	return dev.handle
}

// Limits implements gpu.Device
func (dev *Device) Limits() gpu.Limits {
	return dev.limits
}

func (dev *Device) create(op string, t gpu.ObjectType, deps ...gpu.Handle) (*object, error) {
	d := dev.driver
	if err := d.failLocked(op); err != nil {
		return nil, err
	}
	o := d.newLocked(t, append([]gpu.Handle{dev.handle}, deps...)...)
	d.logLocked(op, nil, o.handle)
	return o, nil
}

// CreateBuffer implements gpu.Device
func (dev *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	dev.driver.mu.Lock()
	defer dev.driver.mu.Unlock()
	if desc.Size == 0 {
		return 0, fmt.Errorf("gputest: zero sized buffer")
	}
	o, err := dev.create("CreateBuffer", gpu.ObjectBuffer)
	if err != nil {
		return 0, err
	}
	o.data = make([]byte, desc.Size)
	o.memory = desc.Memory
	return gpu.Buffer(o.handle), nil
}

func bytesPerPixel(f gpu.Format) uint32 {
	switch f {
	case gpu.FormatR32G32Sfloat:
		return 8
	case gpu.FormatR32G32B32Sfloat:
		return 12
	case gpu.FormatR32G32B32A32Sfloat:
		return 16
	}
	return 4
}

// CreateImage implements gpu.Device
func (dev *Device) CreateImage(desc gpu.ImageDescriptor) (gpu.Image, error) {
	dev.driver.mu.Lock()
	defer dev.driver.mu.Unlock()
	o, err := dev.create("CreateImage", gpu.ObjectImage)
	if err != nil {
		return 0, err
	}
	depth := desc.Extent.Depth
	if depth == 0 {
		depth = 1
	}
	o.data = make([]byte, desc.Extent.Width*desc.Extent.Height*depth*bytesPerPixel(desc.Format))
	o.format = desc.Format
	o.extent = desc.Extent
	o.memory = desc.Memory
	o.layout = gpu.ImageLayoutUndefined
	return gpu.Image(o.handle), nil
}

// CreateImageView implements gpu.Device
func (dev *Device) CreateImageView(desc gpu.ImageViewDescriptor) (gpu.ImageView, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	img, err := d.lookupLocked(gpu.Handle(desc.Image), gpu.ObjectImage)
	if err != nil {
		return 0, err
	}
	deps := []gpu.Handle{img.handle}
	if img.owner != gpu.Null {
		deps = []gpu.Handle{img.owner}
	}
	o, err := dev.create("CreateImageView", gpu.ObjectImageView, deps...)
	if err != nil {
		return 0, err
	}
	return gpu.ImageView(o.handle), nil
}

// Map implements gpu.Device
func (dev *Device) Map(b gpu.Buffer) ([]byte, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failLocked("Map"); err != nil {
		return nil, err
	}
	o, err := d.lookupLocked(gpu.Handle(b), gpu.ObjectBuffer)
	if err != nil {
		return nil, err
	}
	if !o.memory.HostVisible() {
		d.violatef("map of %s buffer %d", o.memory, b)
		return nil, gpu.ErrUnsupported
	}
	if o.mapped {
		d.violatef("buffer %d mapped twice", b)
	}
	o.mapped = true
	d.logLocked("Map", nil, o.handle)
	return o.data, nil
}

// Unmap implements gpu.Device
func (dev *Device) Unmap(b gpu.Buffer) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if o, err := d.lookupLocked(gpu.Handle(b), gpu.ObjectBuffer); err == nil {
		if !o.mapped {
			d.violatef("unmap of unmapped buffer %d", b)
		}
		o.mapped = false
	}
	d.logLocked("Unmap", nil, gpu.Handle(b))
}

// CreateFence implements gpu.Device
func (dev *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	dev.driver.mu.Lock()
	defer dev.driver.mu.Unlock()
	o, err := dev.create("CreateFence", gpu.ObjectFence)
	if err != nil {
		return 0, err
	}
	o.signaled = signaled
	o.observed = signaled
	return gpu.Fence(o.handle), nil
}

// CreateSemaphore implements gpu.Device
func (dev *Device) CreateSemaphore() (gpu.Semaphore, error) {
	dev.driver.mu.Lock()
	defer dev.driver.mu.Unlock()
	o, err := dev.create("CreateSemaphore", gpu.ObjectSemaphore)
	if err != nil {
		return 0, err
	}
	return gpu.Semaphore(o.handle), nil
}

// WaitForFences implements gpu.Device. Work completes at submission, so an
// unsignaled fence can never become signaled and waiting on it times out.
func (dev *Device) WaitForFences(fences []gpu.Fence, timeout time.Duration) error {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	hs := fenceHandles(fences)
	if err := d.failLocked("WaitForFences"); err != nil {
		return err
	}
	for _, f := range fences {
		o, err := d.lookupLocked(gpu.Handle(f), gpu.ObjectFence)
		if err != nil {
			return err
		}
		if !o.signaled {
			d.logLocked("WaitForFences", gpu.ErrTimeout, hs...)
			return gpu.ErrTimeout
		}
	}
	for _, f := range fences {
		d.objects[gpu.Handle(f)].observed = true
	}
	d.logLocked("WaitForFences", nil, hs...)
	return nil
}

// ResetFences implements gpu.Device
func (dev *Device) ResetFences(fences ...gpu.Fence) error {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failLocked("ResetFences"); err != nil {
		return err
	}
	for _, f := range fences {
		o, err := d.lookupLocked(gpu.Handle(f), gpu.ObjectFence)
		if err != nil {
			return err
		}
		o.signaled = false
	}
	d.logLocked("ResetFences", nil, fenceHandles(fences)...)
	return nil
}

func fenceHandles(fences []gpu.Fence) []gpu.Handle {
	hs := make([]gpu.Handle, len(fences))
	for i, f := range fences {
		hs[i] = gpu.Handle(f)
	}
	return hs
}

// CreateCommandPool implements gpu.Device
func (dev *Device) CreateCommandPool(flags gpu.CommandPoolFlags) (gpu.CommandPool, error) {
	dev.driver.mu.Lock()
	defer dev.driver.mu.Unlock()
	o, err := dev.create("CreateCommandPool", gpu.ObjectCommandPool)
	if err != nil {
		return 0, err
	}
	return gpu.CommandPool(o.handle), nil
}

// checkIdleLocked reports a command buffer whose last submission was never
// observed complete through its fence.
func (d *Driver) checkIdleLocked(op string, cb *object) {
	if cb.pending == 0 {
		return
	}
	if f, ok := d.objects[gpu.Handle(cb.pending)]; ok && !f.observed {
		d.violatef("%s of command buffer %d while fence %d was not observed signaled", op, cb.handle, cb.pending)
	}
}

// ResetCommandPool implements gpu.Device
func (dev *Device) ResetCommandPool(pool gpu.CommandPool) error {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failLocked("ResetCommandPool"); err != nil {
		return err
	}
	if _, err := d.lookupLocked(gpu.Handle(pool), gpu.ObjectCommandPool); err != nil {
		return err
	}
	for _, o := range d.objects {
		if o.typ == gpu.ObjectCommandBuffer && o.pool == gpu.Handle(pool) {
			d.checkIdleLocked("ResetCommandPool", o)
			o.commands = nil
			o.pending = 0
			o.recording = false
		}
	}
	d.logLocked("ResetCommandPool", nil, gpu.Handle(pool))
	return nil
}

// AllocateCommandBuffer implements gpu.Device
func (dev *Device) AllocateCommandBuffer(pool gpu.CommandPool) (gpu.CommandBuffer, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.lookupLocked(gpu.Handle(pool), gpu.ObjectCommandPool); err != nil {
		return 0, err
	}
	if err := d.failLocked("AllocateCommandBuffer"); err != nil {
		return 0, err
	}
	o := d.newLocked(gpu.ObjectCommandBuffer)
	o.owner = gpu.Handle(pool)
	o.pool = gpu.Handle(pool)
	d.logLocked("AllocateCommandBuffer", nil, o.handle)
	return gpu.CommandBuffer(o.handle), nil
}

// ResetCommandBuffer implements gpu.Device
func (dev *Device) ResetCommandBuffer(cb gpu.CommandBuffer) error {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failLocked("ResetCommandBuffer"); err != nil {
		return err
	}
	o, err := d.lookupLocked(gpu.Handle(cb), gpu.ObjectCommandBuffer)
	if err != nil {
		return err
	}
	d.checkIdleLocked("ResetCommandBuffer", o)
	o.commands = nil
	o.pending = 0
	o.recording = false
	d.logLocked("ResetCommandBuffer", nil, o.handle)
	return nil
}

// Begin implements gpu.Device
func (dev *Device) Begin(cb gpu.CommandBuffer, usage gpu.CommandBufferUsage) (gpu.Recorder, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failLocked("Begin"); err != nil {
		return nil, err
	}
	o, err := d.lookupLocked(gpu.Handle(cb), gpu.ObjectCommandBuffer)
	if err != nil {
		return nil, err
	}
	d.checkIdleLocked("Begin", o)
	if o.recording {
		d.violatef("begin of command buffer %d while recording", cb)
	}
	o.commands = nil
	o.pending = 0
	o.recording = true
	d.logLocked("Begin", nil, o.handle)
	return &Recorder{driver: d, cb: o.handle}, nil
}

// End implements gpu.Device
func (dev *Device) End(cb gpu.CommandBuffer) error {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failLocked("End"); err != nil {
		return err
	}
	o, err := d.lookupLocked(gpu.Handle(cb), gpu.ObjectCommandBuffer)
	if err != nil {
		return err
	}
	if !o.recording {
		d.violatef("end of command buffer %d that is not recording", cb)
	}
	o.recording = false
	d.logLocked("End", nil, o.handle)
	return nil
}

// Submit implements gpu.Device. Commands execute before Submit returns.
func (dev *Device) Submit(batches []gpu.SubmitInfo, fence gpu.Fence) error {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failLocked("Submit"); err != nil {
		return err
	}
	var fo *object
	if fence != 0 {
		o, err := d.lookupLocked(gpu.Handle(fence), gpu.ObjectFence)
		if err != nil {
			return err
		}
		if o.signaled {
			d.violatef("submit with already signaled fence %d", fence)
		}
		fo = o
	}
	var hs []gpu.Handle
	for _, b := range batches {
		if len(b.WaitStages) != len(b.WaitSemaphores) {
			d.violatef("submit with %d wait semaphores and %d stages", len(b.WaitSemaphores), len(b.WaitStages))
		}
		for _, s := range b.WaitSemaphores {
			so, err := d.lookupLocked(gpu.Handle(s), gpu.ObjectSemaphore)
			if err != nil {
				return err
			}
			if !so.signaled {
				d.violatef("submit waits on unsignaled semaphore %d", s)
			}
			so.signaled = false
		}
		for _, cb := range b.CommandBuffers {
			o, err := d.lookupLocked(gpu.Handle(cb), gpu.ObjectCommandBuffer)
			if err != nil {
				return err
			}
			if o.recording {
				d.violatef("submit of command buffer %d that is still recording", cb)
			}
			d.executeLocked(o)
			o.pending = fence
			hs = append(hs, o.handle)
		}
		for _, s := range b.SignalSemaphores {
			so, err := d.lookupLocked(gpu.Handle(s), gpu.ObjectSemaphore)
			if err != nil {
				return err
			}
			if so.signaled {
				d.violatef("submit signals already signaled semaphore %d", s)
			}
			so.signaled = true
		}
	}
	if fo != nil {
		fo.signaled = true
		fo.observed = false
	}
	d.logLocked("Submit", nil, append(hs, gpu.Handle(fence))...)
	return nil
}

func (d *Driver) executeLocked(cb *object) {
	d.executed = append(d.executed, cb.commands...)
	for _, c := range cb.commands {
		switch c.Op {
		case "CopyBuffer":
			src, errS := d.lookupLocked(c.Handles[0], gpu.ObjectBuffer)
			dst, errD := d.lookupLocked(c.Handles[1], gpu.ObjectBuffer)
			if errS != nil || errD != nil {
				continue
			}
			for _, r := range c.Copies {
				if r.SrcOffset+r.Size > uint64(len(src.data)) || r.DstOffset+r.Size > uint64(len(dst.data)) {
					d.violatef("copy of %d bytes out of buffer bounds", r.Size)
					continue
				}
				copy(dst.data[r.DstOffset:r.DstOffset+r.Size], src.data[r.SrcOffset:r.SrcOffset+r.Size])
			}
		case "CopyBufferToImage":
			src, errS := d.lookupLocked(c.Handles[0], gpu.ObjectBuffer)
			dst, errD := d.lookupLocked(c.Handles[1], gpu.ObjectImage)
			if errS != nil || errD != nil {
				continue
			}
			if dst.layout != gpu.ImageLayoutTransferDstOptimal || c.Layout != gpu.ImageLayoutTransferDstOptimal {
				d.violatef("copy into image %d in layout %d", dst.handle, dst.layout)
			}
			if c.ImageCopy.BufferOffset < uint64(len(src.data)) {
				copy(dst.data, src.data[c.ImageCopy.BufferOffset:])
			}
		case "PipelineBarrier":
			for _, b := range c.Barriers {
				img, err := d.lookupLocked(gpu.Handle(b.Image), gpu.ObjectImage)
				if err != nil {
					continue
				}
				if b.OldLayout != gpu.ImageLayoutUndefined && b.OldLayout != img.layout {
					d.violatef("barrier on image %d from layout %d, image is in %d", img.handle, b.OldLayout, img.layout)
				}
				img.layout = b.NewLayout
			}
		}
	}
}

// CreateSwapchain implements gpu.Device
func (dev *Device) CreateSwapchain(desc gpu.SwapchainDescriptor) (gpu.Swapchain, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.lookupLocked(gpu.Handle(desc.Surface), gpu.ObjectSurface); err != nil {
		return 0, err
	}
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 {
		return 0, fmt.Errorf("gputest: zero swapchain extent")
	}
	o, err := dev.create("CreateSwapchain", gpu.ObjectSwapchain, gpu.Handle(desc.Surface))
	if err != nil {
		return 0, err
	}
	for i := uint32(0); i < desc.MinImageCount; i++ {
		img := d.newLocked(gpu.ObjectImage)
		img.owner = o.handle
		img.format = desc.Format
		img.extent = gpu.Extent3D{Width: desc.Extent.Width, Height: desc.Extent.Height, Depth: 1}
		o.images = append(o.images, img.handle)
	}
	return gpu.Swapchain(o.handle), nil
}

// SwapchainImages implements gpu.Device
func (dev *Device) SwapchainImages(sc gpu.Swapchain) ([]gpu.Image, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	o, err := d.lookupLocked(gpu.Handle(sc), gpu.ObjectSwapchain)
	if err != nil {
		return nil, err
	}
	images := make([]gpu.Image, len(o.images))
	for i, h := range o.images {
		images[i] = gpu.Image(h)
	}
	return images, nil
}

// AcquireNextImage implements gpu.Device
func (dev *Device) AcquireNextImage(sc gpu.Swapchain, timeout time.Duration, sem gpu.Semaphore) (uint32, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failLocked("AcquireNextImage"); err != nil {
		return 0, err
	}
	o, err := d.lookupLocked(gpu.Handle(sc), gpu.ObjectSwapchain)
	if err != nil {
		return 0, err
	}
	so, err := d.lookupLocked(gpu.Handle(sem), gpu.ObjectSemaphore)
	if err != nil {
		return 0, err
	}
	if so.signaled {
		d.violatef("acquire signals already signaled semaphore %d", sem)
	}
	so.signaled = true
	idx := o.next
	o.next = (o.next + 1) % uint32(len(o.images))
	d.logLocked("AcquireNextImage", nil, o.handle, gpu.Handle(idx))
	return idx, nil
}

// Present implements gpu.Device
func (dev *Device) Present(sc gpu.Swapchain, imageIndex uint32, wait gpu.Semaphore) error {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	o, err := d.lookupLocked(gpu.Handle(sc), gpu.ObjectSwapchain)
	if err != nil {
		return err
	}
	if int(imageIndex) >= len(o.images) {
		d.violatef("present of image %d out of %d", imageIndex, len(o.images))
	}
	so, err := d.lookupLocked(gpu.Handle(wait), gpu.ObjectSemaphore)
	if err != nil {
		return err
	}
	if !so.signaled {
		d.violatef("present waits on unsignaled semaphore %d", wait)
	}
	// the wait executes even when the presentation request is rejected
	so.signaled = false
	if err := d.failLocked("Present"); err != nil {
		return err
	}
	d.logLocked("Present", nil, o.handle, gpu.Handle(imageIndex))
	return nil
}

// CreateShaderModule implements gpu.Device
func (dev *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	dev.driver.mu.Lock()
	defer dev.driver.mu.Unlock()
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, fmt.Errorf("gputest: shader code of %d bytes is not word aligned", len(code))
	}
	o, err := dev.create("CreateShaderModule", gpu.ObjectShaderModule)
	if err != nil {
		return 0, err
	}
	return gpu.ShaderModule(o.handle), nil
}

// CreateDescriptorSetLayout implements gpu.Device
func (dev *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	dev.driver.mu.Lock()
	defer dev.driver.mu.Unlock()
	o, err := dev.create("CreateDescriptorSetLayout", gpu.ObjectDescriptorSetLayout)
	if err != nil {
		return 0, err
	}
	return gpu.DescriptorSetLayout(o.handle), nil
}

// CreatePipelineLayout implements gpu.Device
func (dev *Device) CreatePipelineLayout(desc gpu.PipelineLayoutDescriptor) (gpu.PipelineLayout, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	var deps []gpu.Handle
	for _, l := range desc.SetLayouts {
		if _, err := d.lookupLocked(gpu.Handle(l), gpu.ObjectDescriptorSetLayout); err != nil {
			return 0, err
		}
		deps = append(deps, gpu.Handle(l))
	}
	o, err := dev.create("CreatePipelineLayout", gpu.ObjectPipelineLayout, deps...)
	if err != nil {
		return 0, err
	}
	return gpu.PipelineLayout(o.handle), nil
}

// CreatePipelineCache implements gpu.Device
func (dev *Device) CreatePipelineCache() (gpu.PipelineCache, error) {
	dev.driver.mu.Lock()
	defer dev.driver.mu.Unlock()
	o, err := dev.create("CreatePipelineCache", gpu.ObjectPipelineCache)
	if err != nil {
		return 0, err
	}
	return gpu.PipelineCache(o.handle), nil
}

// CreateGraphicsPipeline implements gpu.Device
func (dev *Device) CreateGraphicsPipeline(cache gpu.PipelineCache, desc *gpu.GraphicsPipelineDescriptor) (gpu.Pipeline, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(desc.Stages) == 0 {
		return 0, fmt.Errorf("gputest: pipeline without shader stages")
	}
	for _, s := range desc.Stages {
		if _, err := d.lookupLocked(gpu.Handle(s.Module), gpu.ObjectShaderModule); err != nil {
			return 0, err
		}
	}
	if _, err := d.lookupLocked(gpu.Handle(desc.Layout), gpu.ObjectPipelineLayout); err != nil {
		return 0, err
	}
	if _, err := d.lookupLocked(gpu.Handle(desc.RenderPass), gpu.ObjectRenderPass); err != nil {
		return 0, err
	}
	o, err := dev.create("CreateGraphicsPipeline", gpu.ObjectPipeline, gpu.Handle(desc.Layout), gpu.Handle(desc.RenderPass))
	if err != nil {
		return 0, err
	}
	return gpu.Pipeline(o.handle), nil
}

// CreateRenderPass implements gpu.Device
func (dev *Device) CreateRenderPass(desc gpu.RenderPassDescriptor) (gpu.RenderPass, error) {
	dev.driver.mu.Lock()
	defer dev.driver.mu.Unlock()
	o, err := dev.create("CreateRenderPass", gpu.ObjectRenderPass)
	if err != nil {
		return 0, err
	}
	return gpu.RenderPass(o.handle), nil
}

// CreateFramebuffer implements gpu.Device
func (dev *Device) CreateFramebuffer(desc gpu.FramebufferDescriptor) (gpu.Framebuffer, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	deps := []gpu.Handle{gpu.Handle(desc.RenderPass)}
	for _, v := range desc.Attachments {
		if _, err := d.lookupLocked(gpu.Handle(v), gpu.ObjectImageView); err != nil {
			return 0, err
		}
		deps = append(deps, gpu.Handle(v))
	}
	o, err := dev.create("CreateFramebuffer", gpu.ObjectFramebuffer, deps...)
	if err != nil {
		return 0, err
	}
	return gpu.Framebuffer(o.handle), nil
}

// CreateDescriptorPool implements gpu.Device
func (dev *Device) CreateDescriptorPool(desc gpu.DescriptorPoolDescriptor) (gpu.DescriptorPool, error) {
	dev.driver.mu.Lock()
	defer dev.driver.mu.Unlock()
	o, err := dev.create("CreateDescriptorPool", gpu.ObjectDescriptorPool)
	if err != nil {
		return 0, err
	}
	o.next = desc.MaxSets
	return gpu.DescriptorPool(o.handle), nil
}

// AllocateDescriptorSet implements gpu.Device
func (dev *Device) AllocateDescriptorSet(pool gpu.DescriptorPool, layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	po, err := d.lookupLocked(gpu.Handle(pool), gpu.ObjectDescriptorPool)
	if err != nil {
		return 0, err
	}
	if _, err := d.lookupLocked(gpu.Handle(layout), gpu.ObjectDescriptorSetLayout); err != nil {
		return 0, err
	}
	if err := d.failLocked("AllocateDescriptorSet"); err != nil {
		return 0, err
	}
	if po.next == 0 {
		return 0, fmt.Errorf("gputest: descriptor pool %d exhausted", pool)
	}
	po.next--
	o := d.newLocked(gpu.ObjectDescriptorSet)
	o.owner = po.handle
	d.logLocked("AllocateDescriptorSet", nil, o.handle)
	return gpu.DescriptorSet(o.handle), nil
}

// UpdateDescriptorSets implements gpu.Device
func (dev *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range writes {
		b, err := d.lookupLocked(gpu.Handle(w.Buffer), gpu.ObjectBuffer)
		if err != nil {
			continue
		}
		if w.Offset+w.Range > uint64(len(b.data)) {
			d.violatef("descriptor write past the end of buffer %d", w.Buffer)
		}
		d.logLocked("UpdateDescriptorSet", nil, gpu.Handle(w.Set), gpu.Handle(w.Buffer))
	}
}

// WaitIdle implements gpu.Device
func (dev *Device) WaitIdle() error {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failLocked("WaitIdle"); err != nil {
		return err
	}
	for _, o := range d.objects {
		if o.typ == gpu.ObjectFence && o.signaled {
			o.observed = true
		}
	}
	d.logLocked("WaitIdle", nil, dev.handle)
	return nil
}

// Destroy implements gpu.Destroyer for device level objects.
func (dev *Device) Destroy(t gpu.ObjectType, h gpu.Handle) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.InstanceLevel() {
		d.violatef("device asked to destroy instance level %s %d", t, h)
	}
	if t == gpu.ObjectCommandPool {
		for _, o := range d.objects {
			if o.typ == gpu.ObjectCommandBuffer && o.pool == h {
				d.checkIdleLocked("destroy", o)
			}
		}
	}
	if o, ok := d.objects[h]; ok && o.mapped {
		d.violatef("destroy of mapped buffer %d", h)
	}
	d.destroyLocked(t, h)
}
