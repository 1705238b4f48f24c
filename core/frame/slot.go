// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame

import (
	"github.com/devblok/korender/core/alloc"
	"github.com/devblok/korender/core/teardown"
	"github.com/devblok/korender/gpu"
	"github.com/pkg/errors"
)

// FramesInFlight is the number of frame slots.
const FramesInFlight = 2

// SlotIndex returns the slot used by the given frame number.
func SlotIndex(frame uint64) int {
	return int(frame % FramesInFlight)
}

// Slot is the set of objects one frame in flight records and synchronizes
// with. The GPU may only be using a slot's resources until its Fence
// signals.
type Slot struct {
	// Present is signaled once the acquired image is available.
	Present gpu.Semaphore
	// Render is signaled once rendering finished.
	Render gpu.Semaphore
	// Fence is signaled once the slot's command buffer finished executing.
	Fence gpu.Fence

	Pool    gpu.CommandPool
	Command gpu.CommandBuffer

	// Per frame data, written by the CPU through mapping.
	Camera  alloc.Buffer
	Objects alloc.Buffer

	GlobalSet gpu.DescriptorSet
	ObjectSet gpu.DescriptorSet

	// unsubmitted is set while Fence is unsignaled with no work behind it,
	// waiting on it would never return.
	unsubmitted bool
}

// NewSlot creates the synchronization and command objects of a slot and
// registers their teardown. The fence starts signaled so the first wait
// returns right away.
func NewSlot(dev gpu.Device, reg *teardown.Registry) (*Slot, error) {
	s := &Slot{}
	var err error

	if s.Pool, err = dev.CreateCommandPool(gpu.PoolResetCommandBuffer); err != nil {
		return nil, errors.Wrap(err, "frame: command pool")
	}
	reg.Push(gpu.ObjectCommandPool, gpu.Handle(s.Pool))

	if s.Command, err = dev.AllocateCommandBuffer(s.Pool); err != nil {
		return nil, errors.Wrap(err, "frame: command buffer")
	}

	if s.Fence, err = dev.CreateFence(true); err != nil {
		return nil, errors.Wrap(err, "frame: render fence")
	}
	reg.Push(gpu.ObjectFence, gpu.Handle(s.Fence))

	if s.Present, err = dev.CreateSemaphore(); err != nil {
		return nil, errors.Wrap(err, "frame: present semaphore")
	}
	reg.Push(gpu.ObjectSemaphore, gpu.Handle(s.Present))

	if s.Render, err = dev.CreateSemaphore(); err != nil {
		return nil, errors.Wrap(err, "frame: render semaphore")
	}
	reg.Push(gpu.ObjectSemaphore, gpu.Handle(s.Render))
	return s, nil
}

// Busy reports if work may still be outstanding against the slot.
func (s *Slot) Busy() bool {
	return !s.unsubmitted
}
