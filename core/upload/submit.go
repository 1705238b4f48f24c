// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package upload moves CPU side asset data into device local memory. All
// transfers go through a Submitter, which records one command buffer, submits
// it and blocks until the GPU is done with it.
package upload

import (
	"context"
	"time"

	"github.com/devblok/korender/core/teardown"
	"github.com/devblok/korender/gpu"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Transfer errors
var (
	ErrTransferFailed  = errors.New("upload: transfer failed")
	ErrTransferTimeout = errors.New("upload: transfer timed out")
)

// DefaultTimeout bounds the wait for one transfer.
const DefaultTimeout = 10 * time.Second

// RecordFunc records transfer commands.
type RecordFunc func(rec gpu.Recorder)

// Submitter owns the upload context: a command pool, a command buffer and a
// fence used for nothing else.
type Submitter struct {
	device  gpu.Device
	log     logrus.FieldLogger
	timeout time.Duration

	pool  gpu.CommandPool
	cmd   gpu.CommandBuffer
	fence gpu.Fence

	sema *semaphore.Weighted
	// inflight is set when waiting on the last submission failed and its
	// fence was never observed.
	inflight bool
	// onFailure is called with every transfer error, before it is returned.
	onFailure func(error)
}

// NewSubmitter creates the upload context on dev and registers its teardown.
func NewSubmitter(dev gpu.Device, reg *teardown.Registry, timeout time.Duration, log logrus.FieldLogger) (*Submitter, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Submitter{
		device:  dev,
		log:     log,
		timeout: timeout,
		sema:    semaphore.NewWeighted(1),
	}

	fence, err := dev.CreateFence(false)
	if err != nil {
		return nil, errors.Wrap(err, "upload: fence")
	}
	reg.Push(gpu.ObjectFence, gpu.Handle(fence))
	s.fence = fence

	pool, err := dev.CreateCommandPool(0)
	if err != nil {
		return nil, errors.Wrap(err, "upload: command pool")
	}
	reg.Push(gpu.ObjectCommandPool, gpu.Handle(pool))
	s.pool = pool

	cmd, err := dev.AllocateCommandBuffer(pool)
	if err != nil {
		return nil, errors.Wrap(err, "upload: command buffer")
	}
	s.cmd = cmd
	return s, nil
}

// OnFailure installs a hook that sees every transfer error.
func (s *Submitter) OnFailure(fn func(error)) {
	s.onFailure = fn
}

// Device returns the device transfers are submitted to.
func (s *Submitter) Device() gpu.Device {
	return s.device
}

// Submit records with fn and executes the commands, returning once the GPU
// has finished. Calls are serialized. A cancelled context is only honoured
// while waiting for a previous transfer, never once commands are submitted.
func (s *Submitter) Submit(ctx context.Context, fn RecordFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.sema.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sema.Release(1)

	if err := s.submit(fn); err != nil {
		s.log.WithError(err).Error("one-shot submission failed")
		if s.onFailure != nil {
			s.onFailure(err)
		}
		return err
	}
	return nil
}

func (s *Submitter) submit(fn RecordFunc) error {
	if s.inflight {
		if err := s.device.WaitForFences([]gpu.Fence{s.fence}, s.timeout); err != nil {
			return errors.Wrap(ErrTransferTimeout, "previous transfer still running")
		}
		s.inflight = false
		if err := s.reset(); err != nil {
			return err
		}
	}

	rec, err := s.device.Begin(s.cmd, gpu.UsageOneTimeSubmit)
	if err != nil {
		return s.abort(errors.Wrapf(ErrTransferFailed, "begin: %v", err))
	}
	fn(rec)
	if err := s.device.End(s.cmd); err != nil {
		return s.abort(errors.Wrapf(ErrTransferFailed, "end: %v", err))
	}

	batch := []gpu.SubmitInfo{{CommandBuffers: []gpu.CommandBuffer{s.cmd}}}
	if err := s.device.Submit(batch, s.fence); err != nil {
		return s.abort(errors.Wrapf(ErrTransferFailed, "submit: %v", err))
	}

	if err := s.device.WaitForFences([]gpu.Fence{s.fence}, s.timeout); err != nil {
		if errors.Cause(err) == gpu.ErrTimeout {
			s.inflight = true
			return errors.Wrapf(ErrTransferTimeout, "waited %s", s.timeout)
		}
		s.inflight = true
		return errors.Wrapf(ErrTransferFailed, "wait: %v", err)
	}
	return s.reset()
}

// InFlight reports if the last submission may still be executing, because
// waiting for it failed. Resources it used must not be destroyed yet.
func (s *Submitter) InFlight() bool {
	return s.inflight
}

// abort returns the context to a reusable state after a failure that happened
// before anything reached the queue.
func (s *Submitter) abort(cause error) error {
	if err := s.reset(); err != nil {
		s.log.WithError(err).Warn("upload context reset failed")
	}
	return cause
}

func (s *Submitter) reset() error {
	if err := s.device.ResetFences(s.fence); err != nil {
		return errors.Wrapf(ErrTransferFailed, "reset fence: %v", err)
	}
	if err := s.device.ResetCommandPool(s.pool); err != nil {
		return errors.Wrapf(ErrTransferFailed, "reset pool: %v", err)
	}
	return nil
}
