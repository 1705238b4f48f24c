// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"github.com/devblok/korender/core/teardown"
	"github.com/devblok/korender/gpu"
	"github.com/pkg/errors"
)

// Descriptor set numbers used by the mesh shaders
const (
	GlobalSet = 0
	ObjectSet = 1
)

// Bindings of the global set
const (
	CameraBinding = 0
	SceneBinding  = 1
)

// ObjectBinding is the storage buffer binding of the object set.
const ObjectBinding = 0

// poolCapacity is the number of descriptors of each type in the pool.
const poolCapacity = 10

// GlobalBindings holds the camera uniform and the scene parameters. The scene
// parameters live in one buffer shared by all frames and are selected with a
// dynamic offset.
func GlobalBindings() []gpu.DescriptorBinding {
	return []gpu.DescriptorBinding{{
		Binding: CameraBinding,
		Type:    gpu.DescriptorTypeUniformBuffer,
		Count:   1,
		Stages:  gpu.ShaderStageVertex,
	}, {
		Binding: SceneBinding,
		Type:    gpu.DescriptorTypeUniformBufferDynamic,
		Count:   1,
		Stages:  gpu.ShaderStageVertex | gpu.ShaderStageFragment,
	}}
}

// ObjectBindings holds one storage buffer of per object data, indexed by the
// instance index.
func ObjectBindings() []gpu.DescriptorBinding {
	return []gpu.DescriptorBinding{{
		Binding: ObjectBinding,
		Type:    gpu.DescriptorTypeStorageBuffer,
		Count:   1,
		Stages:  gpu.ShaderStageVertex,
	}}
}

// PoolDescriptor sizes the descriptor pool all sets are allocated from.
func PoolDescriptor() gpu.DescriptorPoolDescriptor {
	return gpu.DescriptorPoolDescriptor{
		MaxSets: poolCapacity,
		Sizes: []gpu.DescriptorPoolSize{
			{Type: gpu.DescriptorTypeUniformBuffer, Count: poolCapacity},
			{Type: gpu.DescriptorTypeUniformBufferDynamic, Count: poolCapacity},
			{Type: gpu.DescriptorTypeStorageBuffer, Count: poolCapacity},
		},
	}
}

// Align rounds size up to the next multiple of alignment, which the device
// reports as a power of two. A zero alignment leaves size as is.
func Align(size, alignment uint64) uint64 {
	if alignment == 0 {
		return size
	}
	return (size + alignment - 1) &^ (alignment - 1)
}

// Descriptors are the set layouts and the pool sets are allocated from.
type Descriptors struct {
	Global gpu.DescriptorSetLayout
	Object gpu.DescriptorSetLayout
	Pool   gpu.DescriptorPool
}

// CreateDescriptors creates both set layouts and the pool, registering their
// teardown.
func CreateDescriptors(dev gpu.Device, reg *teardown.Registry) (Descriptors, error) {
	var d Descriptors
	var err error

	if d.Global, err = dev.CreateDescriptorSetLayout(GlobalBindings()); err != nil {
		return d, errors.Wrap(err, "pipeline: global set layout")
	}
	reg.Push(gpu.ObjectDescriptorSetLayout, gpu.Handle(d.Global))

	if d.Object, err = dev.CreateDescriptorSetLayout(ObjectBindings()); err != nil {
		return d, errors.Wrap(err, "pipeline: object set layout")
	}
	reg.Push(gpu.ObjectDescriptorSetLayout, gpu.Handle(d.Object))

	if d.Pool, err = dev.CreateDescriptorPool(PoolDescriptor()); err != nil {
		return d, errors.Wrap(err, "pipeline: descriptor pool")
	}
	reg.Push(gpu.ObjectDescriptorPool, gpu.Handle(d.Pool))
	return d, nil
}

// Layouts returns the set layouts in set number order.
func (d Descriptors) Layouts() []gpu.DescriptorSetLayout {
	return []gpu.DescriptorSetLayout{d.Global, d.Object}
}

// CreateLayout creates a pipeline layout over the descriptor sets with one
// vertex stage push constant range of pushSize bytes, registering its
// teardown. A zero pushSize omits the range.
func CreateLayout(dev gpu.Device, reg *teardown.Registry, sets []gpu.DescriptorSetLayout, pushSize uint32) (gpu.PipelineLayout, error) {
	desc := gpu.PipelineLayoutDescriptor{SetLayouts: sets}
	if pushSize > 0 {
		desc.PushConstants = []gpu.PushConstantRange{{
			Stages: gpu.ShaderStageVertex,
			Offset: 0,
			Size:   pushSize,
		}}
	}
	layout, err := dev.CreatePipelineLayout(desc)
	if err != nil {
		return 0, errors.Wrap(err, "pipeline: layout")
	}
	reg.Push(gpu.ObjectPipelineLayout, gpu.Handle(layout))
	return layout, nil
}
