// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/devblok/korender/gpu"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// Device is a logical device with a single graphics and present queue.
type Device struct {
	device vk.Device
	queue  vk.Queue
	family uint32
	memory vk.PhysicalDeviceMemoryProperties
	limits gpu.Limits

	self    gpu.Handle
	objects *objects
	log     logrus.FieldLogger
}

type buffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	size   uint64
	mapped []byte
}

type image struct {
	handle vk.Image
	// null for images owned by a swapchain
	memory vk.DeviceMemory
}

type swapchain struct {
	handle vk.Swapchain
	images []gpu.Image
}

type commandPool struct {
	handle  vk.CommandPool
	buffers []gpu.CommandBuffer
}

type descriptorPool struct {
	handle vk.DescriptorPool
	sets   []gpu.DescriptorSet
}

// Handle implements gpu.Device
func (d *Device) Handle() gpu.Handle {
	return d.self
}

// Limits implements gpu.Device
func (d *Device) Limits() gpu.Limits {
	return d.limits
}

func (d *Device) allocate(reqs vk.MemoryRequirements, usage gpu.MemoryUsage) (vk.DeviceMemory, error) {
	reqs.Deref()
	required, preferred := memoryFlags(usage)
	idx, ok := findMemoryType(d.memory, reqs.MemoryTypeBits, required, preferred)
	if !ok {
		return vk.NullDeviceMemory, fmt.Errorf("vulkan: no memory type for %s allocation", usage)
	}
	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: idx,
	}
	var memory vk.DeviceMemory
	if err := check("vk.AllocateMemory", vk.AllocateMemory(d.device, &mai, nil, &memory)); err != nil {
		return vk.NullDeviceMemory, err
	}
	return memory, nil
}

// CreateBuffer implements gpu.Device
func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return 0, errors.New("vulkan: zero sized buffer")
	}
	bci := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vk.BufferUsageFlags(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if err := check("vk.CreateBuffer", vk.CreateBuffer(d.device, &bci, nil, &handle)); err != nil {
		return 0, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, handle, &reqs)
	memory, err := d.allocate(reqs, desc.Memory)
	if err != nil {
		vk.DestroyBuffer(d.device, handle, nil)
		return 0, err
	}
	if err := check("vk.BindBufferMemory", vk.BindBufferMemory(d.device, handle, memory, 0)); err != nil {
		vk.FreeMemory(d.device, memory, nil)
		vk.DestroyBuffer(d.device, handle, nil)
		return 0, err
	}
	b := &buffer{handle: handle, memory: memory, size: desc.Size}
	return gpu.Buffer(d.objects.add(gpu.ObjectBuffer, b)), nil
}

// CreateImage implements gpu.Device
func (d *Device) CreateImage(desc gpu.ImageDescriptor) (gpu.Image, error) {
	ici := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        vk.Format(desc.Format),
		Extent:        extent3D(desc.Extent),
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var handle vk.Image
	if err := check("vk.CreateImage", vk.CreateImage(d.device, &ici, nil, &handle)); err != nil {
		return 0, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, handle, &reqs)
	memory, err := d.allocate(reqs, desc.Memory)
	if err != nil {
		vk.DestroyImage(d.device, handle, nil)
		return 0, err
	}
	if err := check("vk.BindImageMemory", vk.BindImageMemory(d.device, handle, memory, 0)); err != nil {
		vk.FreeMemory(d.device, memory, nil)
		vk.DestroyImage(d.device, handle, nil)
		return 0, err
	}
	return gpu.Image(d.objects.add(gpu.ObjectImage, &image{handle: handle, memory: memory})), nil
}

// CreateImageView implements gpu.Device
func (d *Device) CreateImageView(desc gpu.ImageViewDescriptor) (gpu.ImageView, error) {
	img, err := d.image(desc.Image)
	if err != nil {
		return 0, err
	}
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.handle,
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(desc.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: subresourceRange(desc.Aspect),
	}
	var view vk.ImageView
	if err := check("vk.CreateImageView", vk.CreateImageView(d.device, &ivci, nil, &view)); err != nil {
		return 0, err
	}
	return gpu.ImageView(d.objects.add(gpu.ObjectImageView, view)), nil
}

// Map implements gpu.Device
func (d *Device) Map(b gpu.Buffer) ([]byte, error) {
	buf, err := d.buffer(b)
	if err != nil {
		return nil, err
	}
	if buf.mapped != nil {
		return buf.mapped, nil
	}
	var ptr unsafe.Pointer
	if err := check("vk.MapMemory", vk.MapMemory(d.device, buf.memory, 0, vk.DeviceSize(buf.size), 0, &ptr)); err != nil {
		return nil, err
	}
	buf.mapped = unsafe.Slice((*byte)(ptr), buf.size)
	return buf.mapped, nil
}

// Unmap implements gpu.Device
func (d *Device) Unmap(b gpu.Buffer) {
	buf, err := d.buffer(b)
	if err != nil || buf.mapped == nil {
		return
	}
	vk.UnmapMemory(d.device, buf.memory)
	buf.mapped = nil
}

// CreateFence implements gpu.Device
func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	fci := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := check("vk.CreateFence", vk.CreateFence(d.device, &fci, nil, &fence)); err != nil {
		return 0, err
	}
	return gpu.Fence(d.objects.add(gpu.ObjectFence, fence)), nil
}

// CreateSemaphore implements gpu.Device
func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	sci := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var sem vk.Semaphore
	if err := check("vk.CreateSemaphore", vk.CreateSemaphore(d.device, &sci, nil, &sem)); err != nil {
		return 0, err
	}
	return gpu.Semaphore(d.objects.add(gpu.ObjectSemaphore, sem)), nil
}

func (d *Device) fences(fences []gpu.Fence) ([]vk.Fence, error) {
	out := make([]vk.Fence, len(fences))
	for i, f := range fences {
		v, ok := d.objects.get(gpu.ObjectFence, gpu.Handle(f))
		if !ok {
			return nil, fmt.Errorf("vulkan: unknown fence %d", f)
		}
		out[i] = v.(vk.Fence)
	}
	return out, nil
}

// WaitForFences implements gpu.Device
func (d *Device) WaitForFences(fences []gpu.Fence, t time.Duration) error {
	native, err := d.fences(fences)
	if err != nil {
		return err
	}
	return check("vk.WaitForFences", vk.WaitForFences(d.device, uint32(len(native)), native, vk.True, timeout(t)))
}

// ResetFences implements gpu.Device
func (d *Device) ResetFences(fences ...gpu.Fence) error {
	native, err := d.fences(fences)
	if err != nil {
		return err
	}
	return check("vk.ResetFences", vk.ResetFences(d.device, uint32(len(native)), native))
}

// CreateCommandPool implements gpu.Device
func (d *Device) CreateCommandPool(flags gpu.CommandPoolFlags) (gpu.CommandPool, error) {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.family,
		Flags:            vk.CommandPoolCreateFlags(flags),
	}
	var pool vk.CommandPool
	if err := check("vk.CreateCommandPool", vk.CreateCommandPool(d.device, &cpci, nil, &pool)); err != nil {
		return 0, err
	}
	return gpu.CommandPool(d.objects.add(gpu.ObjectCommandPool, &commandPool{handle: pool})), nil
}

// ResetCommandPool implements gpu.Device
func (d *Device) ResetCommandPool(pool gpu.CommandPool) error {
	p, err := d.commandPool(pool)
	if err != nil {
		return err
	}
	return check("vk.ResetCommandPool", vk.ResetCommandPool(d.device, p.handle, 0))
}

// AllocateCommandBuffer implements gpu.Device
func (d *Device) AllocateCommandBuffer(pool gpu.CommandPool) (gpu.CommandBuffer, error) {
	p, err := d.commandPool(pool)
	if err != nil {
		return 0, err
	}
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if err := check("vk.AllocateCommandBuffers", vk.AllocateCommandBuffers(d.device, &cbai, buffers)); err != nil {
		return 0, err
	}
	cb := gpu.CommandBuffer(d.objects.add(gpu.ObjectCommandBuffer, buffers[0]))
	p.buffers = append(p.buffers, cb)
	return cb, nil
}

// ResetCommandBuffer implements gpu.Device
func (d *Device) ResetCommandBuffer(cb gpu.CommandBuffer) error {
	native, err := d.commandBuffer(cb)
	if err != nil {
		return err
	}
	return check("vk.ResetCommandBuffer", vk.ResetCommandBuffer(native, 0))
}

// Begin implements gpu.Device
func (d *Device) Begin(cb gpu.CommandBuffer, usage gpu.CommandBufferUsage) (gpu.Recorder, error) {
	native, err := d.commandBuffer(cb)
	if err != nil {
		return nil, err
	}
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(usage),
	}
	if err := check("vk.BeginCommandBuffer", vk.BeginCommandBuffer(native, &cbbi)); err != nil {
		return nil, err
	}
	return &Recorder{device: d, cb: native}, nil
}

// End implements gpu.Device
func (d *Device) End(cb gpu.CommandBuffer) error {
	native, err := d.commandBuffer(cb)
	if err != nil {
		return err
	}
	return check("vk.EndCommandBuffer", vk.EndCommandBuffer(native))
}

// Submit implements gpu.Device
func (d *Device) Submit(batches []gpu.SubmitInfo, fence gpu.Fence) error {
	infos := make([]vk.SubmitInfo, len(batches))
	for i, b := range batches {
		wait, err := d.semaphores(b.WaitSemaphores)
		if err != nil {
			return err
		}
		signal, err := d.semaphores(b.SignalSemaphores)
		if err != nil {
			return err
		}
		stages := make([]vk.PipelineStageFlags, len(b.WaitStages))
		for j, s := range b.WaitStages {
			stages[j] = vk.PipelineStageFlags(s)
		}
		cbs := make([]vk.CommandBuffer, len(b.CommandBuffers))
		for j, cb := range b.CommandBuffers {
			if cbs[j], err = d.commandBuffer(cb); err != nil {
				return err
			}
		}
		infos[i] = vk.SubmitInfo{
			SType:                vk.StructureTypeSubmitInfo,
			WaitSemaphoreCount:   uint32(len(wait)),
			PWaitSemaphores:      wait,
			PWaitDstStageMask:    stages,
			CommandBufferCount:   uint32(len(cbs)),
			PCommandBuffers:      cbs,
			SignalSemaphoreCount: uint32(len(signal)),
			PSignalSemaphores:    signal,
		}
	}

	nativeFence := vk.NullFence
	if fence != 0 {
		fences, err := d.fences([]gpu.Fence{fence})
		if err != nil {
			return err
		}
		nativeFence = fences[0]
	}
	return check("vk.QueueSubmit", vk.QueueSubmit(d.queue, uint32(len(infos)), infos, nativeFence))
}

func (d *Device) semaphores(sems []gpu.Semaphore) ([]vk.Semaphore, error) {
	out := make([]vk.Semaphore, len(sems))
	for i, s := range sems {
		v, ok := d.objects.get(gpu.ObjectSemaphore, gpu.Handle(s))
		if !ok {
			return nil, fmt.Errorf("vulkan: unknown semaphore %d", s)
		}
		out[i] = v.(vk.Semaphore)
	}
	return out, nil
}

// CreateSwapchain implements gpu.Device
func (d *Device) CreateSwapchain(desc gpu.SwapchainDescriptor) (gpu.Swapchain, error) {
	surface, ok := d.objects.get(gpu.ObjectSurface, gpu.Handle(desc.Surface))
	if !ok {
		return 0, fmt.Errorf("vulkan: unknown surface %d", desc.Surface)
	}
	old := vk.NullSwapchain
	if desc.Old != 0 {
		sc, err := d.swapchain(desc.Old)
		if err != nil {
			return 0, err
		}
		old = sc.handle
	}

	scci := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface.(vk.Surface),
		MinImageCount:    desc.MinImageCount,
		ImageFormat:      vk.Format(desc.Format),
		ImageColorSpace:  vk.ColorSpace(desc.ColorSpace),
		ImageExtent:      extent2D(desc.Extent),
		ImageUsage:       vk.ImageUsageFlags(desc.Usage),
		PreTransform:     vk.SurfaceTransformFlagBits(desc.Transform),
		CompositeAlpha:   vk.CompositeAlphaFlagBits(desc.CompositeAlpha),
		PresentMode:      vk.PresentMode(desc.PresentMode),
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     old,
	}
	var handle vk.Swapchain
	if err := check("vk.CreateSwapchain", vk.CreateSwapchain(d.device, &scci, nil, &handle)); err != nil {
		return 0, err
	}

	var count uint32
	if err := check("vk.GetSwapchainImages", vk.GetSwapchainImages(d.device, handle, &count, nil)); err != nil {
		vk.DestroySwapchain(d.device, handle, nil)
		return 0, err
	}
	images := make([]vk.Image, count)
	if err := check("vk.GetSwapchainImages", vk.GetSwapchainImages(d.device, handle, &count, images)); err != nil {
		vk.DestroySwapchain(d.device, handle, nil)
		return 0, err
	}

	sc := &swapchain{handle: handle}
	for _, img := range images {
		sc.images = append(sc.images, gpu.Image(d.objects.add(gpu.ObjectImage, &image{handle: img})))
	}
	return gpu.Swapchain(d.objects.add(gpu.ObjectSwapchain, sc)), nil
}

// SwapchainImages implements gpu.Device
func (d *Device) SwapchainImages(sc gpu.Swapchain) ([]gpu.Image, error) {
	s, err := d.swapchain(sc)
	if err != nil {
		return nil, err
	}
	return append([]gpu.Image(nil), s.images...), nil
}

// AcquireNextImage implements gpu.Device. A suboptimal swapchain still hands
// out a usable image, so it is not reported here.
func (d *Device) AcquireNextImage(sc gpu.Swapchain, t time.Duration, sem gpu.Semaphore) (uint32, error) {
	s, err := d.swapchain(sc)
	if err != nil {
		return 0, err
	}
	sems, err := d.semaphores([]gpu.Semaphore{sem})
	if err != nil {
		return 0, err
	}
	var idx uint32
	r := vk.AcquireNextImage(d.device, s.handle, timeout(t), sems[0], vk.NullFence, &idx)
	if r == vk.Suboptimal {
		return idx, nil
	}
	if err := check("vk.AcquireNextImage", r); err != nil {
		return 0, err
	}
	return idx, nil
}

// Present implements gpu.Device
func (d *Device) Present(sc gpu.Swapchain, imageIndex uint32, wait gpu.Semaphore) error {
	s, err := d.swapchain(sc)
	if err != nil {
		return err
	}
	sems, err := d.semaphores([]gpu.Semaphore{wait})
	if err != nil {
		return err
	}
	pi := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    sems,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.handle},
		PImageIndices:      []uint32{imageIndex},
	}
	return check("vk.QueuePresent", vk.QueuePresent(d.queue, &pi))
}

// WaitIdle implements gpu.Device
func (d *Device) WaitIdle() error {
	return check("vk.DeviceWaitIdle", vk.DeviceWaitIdle(d.device))
}

func (d *Device) buffer(h gpu.Buffer) (*buffer, error) {
	if v, ok := d.objects.get(gpu.ObjectBuffer, gpu.Handle(h)); ok {
		return v.(*buffer), nil
	}
	return nil, fmt.Errorf("vulkan: unknown buffer %d", h)
}

func (d *Device) image(h gpu.Image) (*image, error) {
	if v, ok := d.objects.get(gpu.ObjectImage, gpu.Handle(h)); ok {
		return v.(*image), nil
	}
	return nil, fmt.Errorf("vulkan: unknown image %d", h)
}

func (d *Device) swapchain(h gpu.Swapchain) (*swapchain, error) {
	if v, ok := d.objects.get(gpu.ObjectSwapchain, gpu.Handle(h)); ok {
		return v.(*swapchain), nil
	}
	return nil, fmt.Errorf("vulkan: unknown swapchain %d", h)
}

func (d *Device) commandPool(h gpu.CommandPool) (*commandPool, error) {
	if v, ok := d.objects.get(gpu.ObjectCommandPool, gpu.Handle(h)); ok {
		return v.(*commandPool), nil
	}
	return nil, fmt.Errorf("vulkan: unknown command pool %d", h)
}

func (d *Device) commandBuffer(h gpu.CommandBuffer) (vk.CommandBuffer, error) {
	if v, ok := d.objects.get(gpu.ObjectCommandBuffer, gpu.Handle(h)); ok {
		return v.(vk.CommandBuffer), nil
	}
	return nil, fmt.Errorf("vulkan: unknown command buffer %d", h)
}

// lookup resolves a handle whose native object is stored as is.
func (d *Device) lookup(t gpu.ObjectType, h gpu.Handle) interface{} {
	v, _ := d.objects.get(t, h)
	return v
}

// Destroy implements gpu.Destroyer for device level objects. Command
// buffers and descriptor sets go with their pools.
func (d *Device) Destroy(t gpu.ObjectType, h gpu.Handle) {
	if t.InstanceLevel() {
		d.log.WithFields(logrus.Fields{"type": t, "handle": h}).Warn("device asked to destroy instance level object")
		return
	}
	if t == gpu.ObjectImage {
		// swapchain images are released with the swapchain
		if img, err := d.image(gpu.Image(h)); err != nil || img.memory == vk.NullDeviceMemory {
			return
		}
	}
	v, ok := d.objects.remove(t, h)
	if !ok {
		return
	}
	switch t {
	case gpu.ObjectBuffer:
		b := v.(*buffer)
		if b.mapped != nil {
			vk.UnmapMemory(d.device, b.memory)
		}
		vk.DestroyBuffer(d.device, b.handle, nil)
		vk.FreeMemory(d.device, b.memory, nil)
	case gpu.ObjectImage:
		img := v.(*image)
		vk.DestroyImage(d.device, img.handle, nil)
		vk.FreeMemory(d.device, img.memory, nil)
	case gpu.ObjectSwapchain:
		sc := v.(*swapchain)
		for _, img := range sc.images {
			d.objects.remove(gpu.ObjectImage, gpu.Handle(img))
		}
		vk.DestroySwapchain(d.device, sc.handle, nil)
	case gpu.ObjectImageView:
		vk.DestroyImageView(d.device, v.(vk.ImageView), nil)
	case gpu.ObjectFence:
		vk.DestroyFence(d.device, v.(vk.Fence), nil)
	case gpu.ObjectSemaphore:
		vk.DestroySemaphore(d.device, v.(vk.Semaphore), nil)
	case gpu.ObjectCommandPool:
		p := v.(*commandPool)
		for _, cb := range p.buffers {
			d.objects.remove(gpu.ObjectCommandBuffer, gpu.Handle(cb))
		}
		vk.DestroyCommandPool(d.device, p.handle, nil)
	case gpu.ObjectRenderPass:
		vk.DestroyRenderPass(d.device, v.(vk.RenderPass), nil)
	case gpu.ObjectFramebuffer:
		vk.DestroyFramebuffer(d.device, v.(vk.Framebuffer), nil)
	case gpu.ObjectShaderModule:
		vk.DestroyShaderModule(d.device, v.(vk.ShaderModule), nil)
	case gpu.ObjectDescriptorSetLayout:
		vk.DestroyDescriptorSetLayout(d.device, v.(vk.DescriptorSetLayout), nil)
	case gpu.ObjectDescriptorPool:
		p := v.(*descriptorPool)
		for _, set := range p.sets {
			d.objects.remove(gpu.ObjectDescriptorSet, gpu.Handle(set))
		}
		vk.DestroyDescriptorPool(d.device, p.handle, nil)
	case gpu.ObjectPipelineLayout:
		vk.DestroyPipelineLayout(d.device, v.(vk.PipelineLayout), nil)
	case gpu.ObjectPipeline:
		vk.DestroyPipeline(d.device, v.(vk.Pipeline), nil)
	case gpu.ObjectPipelineCache:
		vk.DestroyPipelineCache(d.device, v.(vk.PipelineCache), nil)
	default:
		d.log.WithFields(logrus.Fields{"type": t, "handle": h}).Warn("object cannot be destroyed on its own")
	}
}
