// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gpu is the contract between the renderer and a graphics backend.
// Every object the backend creates is identified by an opaque Handle and
// destroyed through Destroy with its ObjectType, so all teardown can be
// described as plain data.
package gpu

import (
	"fmt"

	"github.com/pkg/errors"
)

// Handle is an opaque backend object identifier. Zero is never a valid object.
type Handle uint64

// Null is the invalid handle.
const Null Handle = 0

// Typed handles for every object kind the renderer deals with.
type (
	PhysicalDevice      Handle
	Surface             Handle
	Swapchain           Handle
	Buffer              Handle
	Image               Handle
	ImageView           Handle
	Fence               Handle
	Semaphore           Handle
	CommandPool         Handle
	CommandBuffer       Handle
	RenderPass          Handle
	Framebuffer         Handle
	ShaderModule        Handle
	DescriptorSetLayout Handle
	DescriptorPool      Handle
	DescriptorSet       Handle
	PipelineLayout      Handle
	Pipeline            Handle
	PipelineCache       Handle
	DebugCallback       Handle
)

// ObjectType tags a Handle with the kind of object it refers to.
type ObjectType int

// Destroyable object kinds
const (
	ObjectUnknown ObjectType = iota
	ObjectInstance
	ObjectDebugCallback
	ObjectSurface
	ObjectDevice
	ObjectSwapchain
	ObjectBuffer
	ObjectImage
	ObjectImageView
	ObjectFence
	ObjectSemaphore
	ObjectCommandPool
	ObjectRenderPass
	ObjectFramebuffer
	ObjectShaderModule
	ObjectDescriptorSetLayout
	ObjectDescriptorPool
	ObjectPipelineLayout
	ObjectPipeline
	ObjectPipelineCache
	// Freed together with the pool they were allocated from.
	ObjectCommandBuffer
	ObjectDescriptorSet
)

var objectTypeNames = [...]string{
	ObjectUnknown:             "unknown",
	ObjectInstance:            "instance",
	ObjectDebugCallback:       "debug-callback",
	ObjectSurface:             "surface",
	ObjectDevice:              "device",
	ObjectSwapchain:           "swapchain",
	ObjectBuffer:              "buffer",
	ObjectImage:               "image",
	ObjectImageView:           "image-view",
	ObjectFence:               "fence",
	ObjectSemaphore:           "semaphore",
	ObjectCommandPool:         "command-pool",
	ObjectRenderPass:          "render-pass",
	ObjectFramebuffer:         "framebuffer",
	ObjectShaderModule:        "shader-module",
	ObjectDescriptorSetLayout: "descriptor-set-layout",
	ObjectDescriptorPool:      "descriptor-pool",
	ObjectPipelineLayout:      "pipeline-layout",
	ObjectPipeline:            "pipeline",
	ObjectPipelineCache:       "pipeline-cache",
	ObjectCommandBuffer:       "command-buffer",
	ObjectDescriptorSet:       "descriptor-set",
}

func (o ObjectType) String() string {
	if o < 0 || int(o) >= len(objectTypeNames) {
		return fmt.Sprintf("ObjectType(%d)", int(o))
	}
	return objectTypeNames[o]
}

// Instance level objects are owned by the Instance rather than a Device.
func (o ObjectType) InstanceLevel() bool {
	switch o {
	case ObjectInstance, ObjectDebugCallback, ObjectSurface, ObjectDevice:
		return true
	}
	return false
}

// Sentinel errors reported by backends.
var (
	ErrTimeout     = errors.New("gpu: timeout expired")
	ErrOutOfDate   = errors.New("gpu: swapchain out of date")
	ErrSuboptimal  = errors.New("gpu: swapchain suboptimal")
	ErrDeviceLost  = errors.New("gpu: device lost")
	ErrNoAdapter   = errors.New("gpu: no suitable physical device")
	ErrUnsupported = errors.New("gpu: unsupported operation")
)

// Version is a packed API version number.
type Version uint32

// MakeVersion packs a version the same way the driver does.
func MakeVersion(major, minor, patch uint32) Version {
	return Version(major<<22 | minor<<12 | patch)
}

// Major version part
func (v Version) Major() uint32 { return uint32(v) >> 22 }

// Minor version part
func (v Version) Minor() uint32 { return (uint32(v) >> 12) & 0x3ff }

// Patch version part
func (v Version) Patch() uint32 { return uint32(v) & 0xfff }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}
