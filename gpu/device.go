// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gpu

import (
	"time"
	"unsafe"
)

// Window is a platform window that can create a presentation surface.
// *sdl.Window satisfies it.
type Window interface {
	VulkanCreateSurface(instance interface{}) (unsafe.Pointer, error)
}

// InstanceDescriptor configures instance creation.
type InstanceDescriptor struct {
	AppName    string
	APIVersion Version
	// Extensions required by the platform window.
	Extensions []string
	// Debug enables validation layers and the debug report callback.
	Debug bool
}

// DeviceDescriptor configures logical device creation.
type DeviceDescriptor struct {
	QueueFamily uint32
	Extensions  []string
	Features    Features
}

// Destroyer destroys backend objects by type and handle.
type Destroyer interface {
	Destroy(t ObjectType, h Handle)
}

// Driver is the entry point of a backend.
type Driver interface {
	// CreateInstance loads the API and creates an instance
	CreateInstance(desc InstanceDescriptor) (Instance, error)
}

// Instance is a created API instance.
type Instance interface {
	Destroyer

	// DebugCallback returns the installed debug callback, if any
	DebugCallback() DebugCallback

	// CreateSurface creates a presentation surface for the window
	CreateSurface(w Window) (Surface, error)

	// PhysicalDevices describes all adapters, including presentation
	// support for the surface when one is given
	PhysicalDevices(s Surface) ([]PhysicalDeviceInfo, error)

	// SurfaceCapabilities queries the current surface capabilities
	SurfaceCapabilities(pd PhysicalDevice, s Surface) (SurfaceCapabilities, error)

	// CreateDevice creates the logical device with a single queue
	CreateDevice(pd PhysicalDevice, desc DeviceDescriptor) (Device, error)

	// Release destroys the instance itself
	Release()
}

// Device is a logical device with one queue. Objects it creates are released
// with Destroy.
type Device interface {
	Destroyer

	// Handle identifies the device for instance level destruction
	Handle() Handle

	// Limits of the physical device the device was created on
	Limits() Limits

	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	CreateImage(desc ImageDescriptor) (Image, error)
	CreateImageView(desc ImageViewDescriptor) (ImageView, error)

	// Map returns the host visible memory backing the buffer
	Map(b Buffer) ([]byte, error)
	Unmap(b Buffer)

	CreateFence(signaled bool) (Fence, error)
	CreateSemaphore() (Semaphore, error)

	// WaitForFences blocks until all fences are signaled, or returns
	// ErrTimeout once the timeout expires
	WaitForFences(fences []Fence, timeout time.Duration) error
	ResetFences(fences ...Fence) error

	CreateCommandPool(flags CommandPoolFlags) (CommandPool, error)
	ResetCommandPool(pool CommandPool) error
	AllocateCommandBuffer(pool CommandPool) (CommandBuffer, error)
	ResetCommandBuffer(cb CommandBuffer) error

	// Begin starts recording and returns a recorder bound to cb
	Begin(cb CommandBuffer, usage CommandBufferUsage) (Recorder, error)
	End(cb CommandBuffer) error

	// Submit submits batches to the queue, signaling fence on completion
	Submit(batches []SubmitInfo, fence Fence) error

	CreateSwapchain(desc SwapchainDescriptor) (Swapchain, error)
	SwapchainImages(sc Swapchain) ([]Image, error)

	// AcquireNextImage returns the index of the next presentable image,
	// signaling sem once it is available
	AcquireNextImage(sc Swapchain, timeout time.Duration, sem Semaphore) (uint32, error)

	// Present queues the image for presentation after wait is signaled
	Present(sc Swapchain, imageIndex uint32, wait Semaphore) error

	CreateShaderModule(code []byte) (ShaderModule, error)
	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	CreatePipelineLayout(desc PipelineLayoutDescriptor) (PipelineLayout, error)
	CreatePipelineCache() (PipelineCache, error)
	CreateGraphicsPipeline(cache PipelineCache, desc *GraphicsPipelineDescriptor) (Pipeline, error)
	CreateRenderPass(desc RenderPassDescriptor) (RenderPass, error)
	CreateFramebuffer(desc FramebufferDescriptor) (Framebuffer, error)
	CreateDescriptorPool(desc DescriptorPoolDescriptor) (DescriptorPool, error)
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	// WaitIdle blocks until the queue has no work outstanding
	WaitIdle() error
}

// Recorder records commands into one command buffer.
type Recorder interface {
	CopyBuffer(src, dst Buffer, regions ...BufferCopy)
	CopyBufferToImage(src Buffer, dst Image, layout ImageLayout, region BufferImageCopy)
	PipelineBarrier(src, dst PipelineStage, barriers ...ImageBarrier)

	BeginRenderPass(begin RenderPassBegin)
	EndRenderPass()

	BindPipeline(p Pipeline)
	BindDescriptorSets(layout PipelineLayout, firstSet uint32, sets []DescriptorSet, dynamicOffsets []uint32)
	BindVertexBuffer(b Buffer, offset uint64)
	BindIndexBuffer(b Buffer, offset uint64, t IndexType)
	PushConstants(layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)

	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}
