// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame_test

import (
	"testing"
	"time"

	"github.com/devblok/korender/core/frame"
	"github.com/devblok/korender/core/teardown"
	"github.com/devblok/korender/gpu"
	"github.com/devblok/korender/gpu/gputest"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	driver   *gputest.Driver
	instance gpu.Instance
	device   gpu.Device
	registry *teardown.Registry
	hook     *test.Hook
	loop     *frame.Loop
	target   *frame.Target
}

func setup(t *testing.T) *fixture {
	drv := gputest.NewDriver()
	inst, err := drv.CreateInstance(gpu.InstanceDescriptor{})
	require.NoError(t, err)
	log, hook := test.NewNullLogger()
	reg := teardown.New(log)
	reg.PushOwner("instance", inst)

	surface, err := inst.CreateSurface(gputest.Window{})
	require.NoError(t, err)
	reg.Push(gpu.ObjectSurface, gpu.Handle(surface))

	dev, err := inst.CreateDevice(1, gpu.DeviceDescriptor{})
	require.NoError(t, err)
	reg.Push(gpu.ObjectDevice, dev.Handle())

	extent := gpu.Extent2D{Width: 4, Height: 4}
	sc, err := dev.CreateSwapchain(gpu.SwapchainDescriptor{
		Surface:       surface,
		MinImageCount: 3,
		Format:        gpu.FormatB8G8R8A8Srgb,
		Extent:        extent,
	})
	require.NoError(t, err)
	reg.Push(gpu.ObjectSwapchain, gpu.Handle(sc))

	rp, err := dev.CreateRenderPass(gpu.RenderPassDescriptor{})
	require.NoError(t, err)
	reg.Push(gpu.ObjectRenderPass, gpu.Handle(rp))

	images, err := dev.SwapchainImages(sc)
	require.NoError(t, err)
	target := &frame.Target{Swapchain: sc, RenderPass: rp, Extent: extent}
	for _, img := range images {
		view, err := dev.CreateImageView(gpu.ImageViewDescriptor{Image: img, Aspect: gpu.AspectColor})
		require.NoError(t, err)
		reg.Push(gpu.ObjectImageView, gpu.Handle(view))
		fb, err := dev.CreateFramebuffer(gpu.FramebufferDescriptor{RenderPass: rp, Attachments: []gpu.ImageView{view}, Extent: extent})
		require.NoError(t, err)
		reg.Push(gpu.ObjectFramebuffer, gpu.Handle(fb))
		target.Framebuffers = append(target.Framebuffers, fb)
	}

	var slots []*frame.Slot
	for i := 0; i < frame.FramesInFlight; i++ {
		s, err := frame.NewSlot(dev, reg)
		require.NoError(t, err)
		slots = append(slots, s)
	}
	loop, err := frame.NewLoop(dev, slots, frame.Options{
		ClearValues: []gpu.ClearValue{gpu.ClearColor(0.1, 0.2, 0.3, 1), gpu.ClearDepth(1, 0)},
	}, log)
	require.NoError(t, err)

	return &fixture{
		driver:   drv,
		instance: inst,
		device:   dev,
		registry: reg,
		hook:     hook,
		loop:     loop,
		target:   target,
	}
}

func (f *fixture) close(t *testing.T) {
	require.NoError(t, f.loop.Wait())
	require.NoError(t, f.device.WaitIdle())
	f.registry.Flush(teardown.Split{Instance: f.instance, Device: f.device})
	assert.Zero(t, f.driver.LiveCount())
	assert.Empty(t, f.driver.Violations())
}

func draw(frame.Frame, gpu.Recorder) error {
	return nil
}

func TestSlotIndex(t *testing.T) {
	for f := uint64(0); f < 10; f++ {
		assert.Equal(t, int(f%2), frame.SlotIndex(f))
	}
}

func TestNewLoopRejectsSlotCount(t *testing.T) {
	_, err := frame.NewLoop(nil, []*frame.Slot{{}}, frame.Options{}, nil)
	assert.Error(t, err)
}

func TestSlotsCycle(t *testing.T) {
	f := setup(t)
	var seen []int
	record := func(fr frame.Frame, rec gpu.Recorder) error {
		for i, s := range f.loop.Slots() {
			if s == fr.Slot {
				seen = append(seen, i)
			}
		}
		assert.Equal(t, frame.Recording, f.loop.State())
		return nil
	}

	for i := 0; i < 6; i++ {
		require.NoError(t, f.loop.Run(f.target, record))
		assert.Equal(t, frame.Idle, f.loop.State())
	}
	assert.Equal(t, []int{0, 1, 0, 1, 0, 1}, seen)
	assert.Equal(t, uint64(6), f.loop.Number())
	assert.Empty(t, f.driver.Violations(), "no command buffer reset before its fence was observed")
	f.close(t)
}

func TestWaitBeforeReset(t *testing.T) {
	f := setup(t)
	f.driver.ClearEvents()
	for i := 0; i < 4; i++ {
		require.NoError(t, f.loop.Run(f.target, draw))
	}

	// every reset of a slot's command buffer follows a wait on that slot's fence
	waited := map[gpu.Handle]bool{}
	fenceOf := map[gpu.Handle]gpu.Handle{}
	for _, s := range f.loop.Slots() {
		fenceOf[gpu.Handle(s.Command)] = gpu.Handle(s.Fence)
	}
	for _, e := range f.driver.Events() {
		switch e.Op {
		case "WaitForFences":
			for _, h := range e.Handles {
				waited[h] = true
			}
		case "ResetCommandBuffer":
			fence := fenceOf[e.Handles[0]]
			assert.True(t, waited[fence], "reset of %d before waiting on %d", e.Handles[0], fence)
			waited[fence] = false
		}
	}
	f.close(t)
}

func TestRenderPassClears(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.loop.Run(f.target, func(_ frame.Frame, rec gpu.Recorder) error {
		rec.Draw(3, 1, 0, 0)
		return nil
	}))
	cmds := f.driver.Executed()
	require.Len(t, cmds, 3)
	assert.Equal(t, "BeginRenderPass", cmds[0].Op)
	assert.Equal(t, "Draw", cmds[1].Op)
	assert.Equal(t, "EndRenderPass", cmds[2].Op)
	require.Len(t, cmds[0].Clear, 2)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1}, cmds[0].Clear[0].Color)
	assert.True(t, cmds[0].Clear[1].IsDepth)
	f.close(t)
}

func TestFailuresDropTheFrame(t *testing.T) {
	ops := []string{"WaitForFences", "AcquireNextImage", "ResetCommandBuffer", "Begin", "End", "ResetFences", "Submit", "Present"}
	for _, op := range ops {
		t.Run(op, func(t *testing.T) {
			f := setup(t)
			require.NoError(t, f.loop.Run(f.target, draw))
			require.NoError(t, f.loop.Run(f.target, draw))

			f.driver.FailNext(op, gpu.ErrTimeout)
			err := f.loop.Run(f.target, draw)
			require.Error(t, err)
			assert.Equal(t, gpu.ErrTimeout, errors.Cause(err))
			assert.Equal(t, uint64(2), f.loop.Number(), "dropped frames do not advance")
			assert.Equal(t, uint64(1), f.loop.Dropped())
			assert.Equal(t, frame.Idle, f.loop.State())

			// the next frames proceed normally
			for i := 0; i < 3; i++ {
				require.NoError(t, f.loop.Run(f.target, draw))
			}
			assert.Equal(t, uint64(5), f.loop.Number())
			f.close(t)
		})
	}
}

func TestRecordErrorDropsTheFrame(t *testing.T) {
	f := setup(t)
	err := f.loop.Run(f.target, func(frame.Frame, gpu.Recorder) error {
		return errors.New("no mesh")
	})
	assert.Error(t, err)
	assert.Zero(t, f.loop.Number())
	require.NoError(t, f.loop.Run(f.target, draw))
	f.close(t)
}

func TestOutOfDateIsReported(t *testing.T) {
	f := setup(t)
	f.driver.FailNext("AcquireNextImage", gpu.ErrOutOfDate)
	err := f.loop.Run(f.target, draw)
	assert.Equal(t, gpu.ErrOutOfDate, errors.Cause(err))
	f.close(t)
}

func TestSuboptimalPresentCounts(t *testing.T) {
	f := setup(t)
	f.driver.FailNext("Present", gpu.ErrSuboptimal)
	assert.NoError(t, f.loop.Run(f.target, draw))
	assert.Equal(t, uint64(1), f.loop.Number())
	f.close(t)
}

func TestDroppedFramesAreRateLimited(t *testing.T) {
	f := setup(t)
	for i := 0; i < 5; i++ {
		f.driver.FailNext("AcquireNextImage", gpu.ErrTimeout)
		assert.Error(t, f.loop.Run(f.target, draw))
	}
	assert.Equal(t, uint64(5), f.loop.Dropped())

	var warnings int
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "frame dropped" {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings, "drops within a second are logged once")
	f.close(t)
}

func TestWaitWithoutFrames(t *testing.T) {
	f := setup(t)
	start := time.Now()
	assert.NoError(t, f.loop.Wait())
	assert.True(t, time.Since(start) < time.Second)
	f.close(t)
}
