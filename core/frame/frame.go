// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package frame drives the per frame state machine: wait for the slot,
// acquire an image, record, submit and present. A frame that fails at any
// step is dropped and the next one starts over from Idle.
package frame

import (
	"time"

	"github.com/devblok/korender/gpu"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// State of the frame state machine
type State int

// Frame states
const (
	Idle State = iota
	Acquiring
	Recording
	Submitted
	Presenting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acquiring:
		return "acquiring"
	case Recording:
		return "recording"
	case Submitted:
		return "submitted"
	case Presenting:
		return "presenting"
	}
	return "unknown"
}

// DefaultTimeout bounds every wait of a frame.
const DefaultTimeout = time.Second

// dropLogInterval limits how often dropped frames are logged.
const dropLogInterval = time.Second

// Target is what frames render into. Framebuffers are indexed by swapchain
// image.
type Target struct {
	Swapchain    gpu.Swapchain
	RenderPass   gpu.RenderPass
	Framebuffers []gpu.Framebuffer
	Extent       gpu.Extent2D
}

// Frame is handed to the record callback.
type Frame struct {
	Number uint64
	Slot   *Slot
	Image  uint32
	Extent gpu.Extent2D
}

// RecordFunc records the contents of the render pass.
type RecordFunc func(f Frame, rec gpu.Recorder) error

// Options of a Loop
type Options struct {
	Timeout     time.Duration
	ClearValues []gpu.ClearValue
}

// Loop cycles through the frame slots.
type Loop struct {
	device  gpu.Device
	log     logrus.FieldLogger
	slots   []*Slot
	timeout time.Duration
	clear   []gpu.ClearValue

	frame   uint64
	state   State
	dropped uint64

	lastDropLog time.Time
	// now is replaced in tests.
	now func() time.Time
}

// NewLoop creates a loop over exactly FramesInFlight slots.
func NewLoop(dev gpu.Device, slots []*Slot, opts Options, log logrus.FieldLogger) (*Loop, error) {
	if len(slots) != FramesInFlight {
		return nil, errors.Errorf("frame: need %d slots, got %d", FramesInFlight, len(slots))
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Loop{
		device:  dev,
		log:     log,
		slots:   slots,
		timeout: opts.Timeout,
		clear:   opts.ClearValues,
		now:     time.Now,
	}, nil
}

// Number of frames presented so far
func (l *Loop) Number() uint64 {
	return l.frame
}

// State the loop is in. Outside of Run it is always Idle.
func (l *Loop) State() State {
	return l.state
}

// Dropped is the number of frames dropped so far.
func (l *Loop) Dropped() uint64 {
	return l.dropped
}

// Slots returns the frame slots.
func (l *Loop) Slots() []*Slot {
	return l.slots
}

// Current returns the slot the next frame will use.
func (l *Loop) Current() *Slot {
	return l.slots[SlotIndex(l.frame)]
}

// Run renders one frame into t. The returned error tells why the frame was
// dropped, the loop itself is ready for the next frame either way.
func (l *Loop) Run(t *Target, fn RecordFunc) (err error) {
	slot := l.Current()
	defer func() {
		l.state = Idle
		if err != nil {
			l.drop(err)
		}
	}()

	l.state = Acquiring
	if slot.Busy() {
		if err := l.device.WaitForFences([]gpu.Fence{slot.Fence}, l.timeout); err != nil {
			return errors.Wrap(err, "wait for slot")
		}
	}

	image, err := l.device.AcquireNextImage(t.Swapchain, l.timeout, slot.Present)
	if err != nil {
		return errors.Wrap(err, "acquire")
	}
	if int(image) >= len(t.Framebuffers) {
		l.drain(slot)
		return errors.Errorf("acquired image %d without a framebuffer", image)
	}

	l.state = Recording
	if err := l.record(slot, t, image, fn); err != nil {
		l.drain(slot)
		return err
	}

	// The fence is reset only now, so a frame dropped earlier leaves it
	// signaled.
	if err := l.device.ResetFences(slot.Fence); err != nil {
		l.drain(slot)
		return errors.Wrap(err, "reset fence")
	}
	slot.unsubmitted = true

	l.state = Submitted
	batch := []gpu.SubmitInfo{{
		WaitSemaphores:   []gpu.Semaphore{slot.Present},
		WaitStages:       []gpu.PipelineStage{gpu.StageColorAttachmentOutput},
		CommandBuffers:   []gpu.CommandBuffer{slot.Command},
		SignalSemaphores: []gpu.Semaphore{slot.Render},
	}}
	if err := l.device.Submit(batch, slot.Fence); err != nil {
		l.drain(slot)
		return errors.Wrap(err, "submit")
	}
	slot.unsubmitted = false

	l.state = Presenting
	if err := l.device.Present(t.Swapchain, image, slot.Render); err != nil && errors.Cause(err) != gpu.ErrSuboptimal {
		return errors.Wrap(err, "present")
	}
	l.frame++
	return nil
}

func (l *Loop) record(slot *Slot, t *Target, image uint32, fn RecordFunc) error {
	if err := l.device.ResetCommandBuffer(slot.Command); err != nil {
		return errors.Wrap(err, "reset command buffer")
	}
	rec, err := l.device.Begin(slot.Command, gpu.UsageOneTimeSubmit)
	if err != nil {
		return errors.Wrap(err, "begin")
	}

	rec.BeginRenderPass(gpu.RenderPassBegin{
		RenderPass:  t.RenderPass,
		Framebuffer: t.Framebuffers[image],
		Area:        gpu.Rect2D{Extent: t.Extent},
		ClearValues: l.clear,
	})
	recErr := fn(Frame{
		Number: l.frame,
		Slot:   slot,
		Image:  image,
		Extent: t.Extent,
	}, rec)
	rec.EndRenderPass()

	if err := l.device.End(slot.Command); err != nil {
		return errors.Wrap(err, "end")
	}
	return errors.Wrap(recErr, "record")
}

// drain consumes the present semaphore of a frame that acquired an image but
// never submitted, so the next acquire may signal it again.
func (l *Loop) drain(slot *Slot) {
	batch := []gpu.SubmitInfo{{
		WaitSemaphores: []gpu.Semaphore{slot.Present},
		WaitStages:     []gpu.PipelineStage{gpu.StageColorAttachmentOutput},
	}}
	if err := l.device.Submit(batch, 0); err != nil {
		l.log.WithError(err).Warn("failed to drain present semaphore")
	}
}

func (l *Loop) drop(err error) {
	l.dropped++
	now := l.now()
	if now.Sub(l.lastDropLog) < dropLogInterval {
		return
	}
	l.lastDropLog = now
	l.log.WithFields(logrus.Fields{
		"frame":   l.frame,
		"slot":    SlotIndex(l.frame),
		"dropped": l.dropped,
	}).WithError(err).Warn("frame dropped")
}

// Wait blocks until no slot has work outstanding.
func (l *Loop) Wait() error {
	var fences []gpu.Fence
	for _, s := range l.slots {
		if s.Busy() {
			fences = append(fences, s.Fence)
		}
	}
	if len(fences) == 0 {
		return nil
	}
	return errors.Wrap(l.device.WaitForFences(fences, l.timeout), "frame: wait")
}
