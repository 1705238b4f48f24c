// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core ties the renderer together: device selection, swapchain
// negotiation, initialization in dependency order and the per frame draw.
package core

import (
	"os"

	"github.com/devblok/korender/asset"
	"github.com/devblok/korender/core/alloc"
	"github.com/devblok/korender/core/frame"
	"github.com/devblok/korender/core/pipeline"
	"github.com/devblok/korender/core/scene"
	"github.com/devblok/korender/core/teardown"
	"github.com/devblok/korender/core/upload"
	"github.com/devblok/korender/gpu"
	"github.com/devblok/korender/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Lifecycle errors
var (
	ErrNotInitialized     = errors.New("renderer not initialized")
	ErrAlreadyInitialized = errors.New("renderer already initialized")
)

// InitParams are the platform inputs of Init.
type InitParams struct {
	// Width and Height default to the configured screen size.
	Width, Height uint32
	AppName       string
	Window        gpu.Window
	// Extensions the window system needs on the instance.
	Extensions []string
}

// Renderer owns every GPU object of one window. It is driven from a single
// goroutine.
type Renderer struct {
	driver gpu.Driver
	cfg    RendererConfiguration
	log    logrus.FieldLogger
	exit   func(code int)

	shaders     asset.Source
	ownsShaders bool

	registry  *teardown.Registry
	instance  gpu.Instance
	surface   gpu.Surface
	adapter   Candidate
	device    gpu.Device
	alloc     *alloc.Allocator
	submitter *upload.Submitter

	width, height uint32
	swap          *swapchain
	renderPass    gpu.RenderPass
	slots         []*frame.Slot
	loop          *frame.Loop

	descriptors pipeline.Descriptors
	cache       gpu.PipelineCache
	layout      gpu.PipelineLayout
	sceneBuffer alloc.Buffer
	sceneStride uint64

	scene    *scene.Scene
	camera   Camera
	override int
	stats    scene.Stats
	model    *model.Model

	started  bool
	ready    bool
	recreate bool
}

// NewRenderer creates a renderer that is not initialized yet. A nil logger
// means the standard logger.
func NewRenderer(driver gpu.Driver, cfg RendererConfiguration, log logrus.FieldLogger) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Renderer{
		driver: driver,
		cfg:    cfg,
		log:    log,
		exit:   os.Exit,
		camera: DefaultCamera(),
	}, nil
}

// SetShaderSource overrides the configured shader source. The renderer does
// not close it.
func (r *Renderer) SetShaderSource(src asset.Source) {
	r.shaders = src
	r.ownsShaders = false
}

// SetExitFunc replaces os.Exit, which aborting transfers call.
func (r *Renderer) SetExitFunc(fn func(code int)) {
	r.exit = fn
}

// Initialized reports if Init completed and frames can be drawn.
func (r *Renderer) Initialized() bool {
	return r.ready
}

// FrameNumber is the number of frames presented since Init.
func (r *Renderer) FrameNumber() uint64 {
	if r.loop == nil {
		return 0
	}
	return r.loop.Number()
}

// Dropped is the number of frames dropped since Init.
func (r *Renderer) Dropped() uint64 {
	if r.loop == nil {
		return 0
	}
	return r.loop.Dropped()
}

// Stats of the last recorded frame
func (r *Renderer) Stats() scene.Stats {
	return r.stats
}

// Scene returns what is drawn, nil before Init.
func (r *Renderer) Scene() *scene.Scene {
	return r.scene
}

// Adapter returns the selected physical device.
func (r *Renderer) Adapter() Candidate {
	return r.adapter
}

// Extent of the swapchain
func (r *Renderer) Extent() gpu.Extent2D {
	if r.swap == nil {
		return gpu.Extent2D{}
	}
	return r.swap.desc.Extent
}

// Draw renders one frame. Failures drop the frame and are only logged, the
// next Draw starts over. Draw before Init does nothing.
func (r *Renderer) Draw() {
	if !r.ready {
		return
	}
	if r.recreate {
		if err := r.recreateSwapchain(); err != nil {
			r.log.WithError(err).Warn("swapchain recreation failed")
			return
		}
		r.recreate = false
	}

	err := r.loop.Run(r.swap.target(r.renderPass), r.record)
	if err != nil && errors.Cause(err) == gpu.ErrOutOfDate && r.cfg.RecreateOnOutOfDate {
		r.recreate = true
	}
}

func (r *Renderer) record(f frame.Frame, rec gpu.Recorder) error {
	cam := r.camera.Data(f.Extent)
	if err := r.alloc.Write(f.Slot.Camera, 0, cam.Bytes()); err != nil {
		return errors.Wrap(err, "camera")
	}

	offset := r.sceneStride * uint64(frame.SlotIndex(f.Number))
	params := SceneData(f.Number)
	if err := r.alloc.Write(r.sceneBuffer, offset, params.Bytes()); err != nil {
		return errors.Wrap(err, "scene parameters")
	}

	objs := r.scene.Objects
	if len(objs) > r.cfg.MaxObjects {
		objs = objs[:r.cfg.MaxObjects]
	}
	if len(objs) > 0 {
		if err := r.alloc.Write(f.Slot.Objects, 0, model.ObjectBytes(scene.ObjectData(objs))); err != nil {
			return errors.Wrap(err, "objects")
		}
	}

	b := scene.Bindings{
		GlobalSet:   f.Slot.GlobalSet,
		ObjectSet:   f.Slot.ObjectSet,
		SceneOffset: uint32(offset),
	}
	if r.override > 0 {
		b.Override = r.scene.Materials()[r.override]
	}
	r.stats = scene.Draw(rec, objs, b)
	return nil
}

// ToggleShader switches every object over to the next configured material.
// After the last one objects go back to their own materials.
func (r *Renderer) ToggleShader() {
	if r.scene == nil {
		return
	}
	n := len(r.scene.Materials())
	if n <= 1 {
		return
	}
	r.override = (r.override + 1) % n
	r.log.WithField("material", r.ActiveMaterial()).Info("shader toggled")
}

// ActiveMaterial names the material overriding every object, empty when
// objects use their own.
func (r *Renderer) ActiveMaterial() string {
	if r.scene == nil || r.override == 0 {
		return ""
	}
	return r.scene.Materials()[r.override].Name
}

// Resize schedules a swapchain recreation for the new window size.
func (r *Renderer) Resize(width, height uint32) {
	if width == 0 || height == 0 || (width == r.width && height == r.height) {
		return
	}
	r.width, r.height = width, height
	r.recreate = r.ready
}

// Shutdown waits for the GPU and destroys everything Init created, also
// after a failed Init. Calling it again does nothing.
func (r *Renderer) Shutdown() {
	if r.registry == nil {
		return
	}
	if r.loop != nil {
		if err := r.loop.Wait(); err != nil {
			r.log.WithError(err).Warn("frames still in flight at shutdown")
		}
	}
	if r.device != nil {
		if err := r.device.WaitIdle(); err != nil {
			r.log.WithError(err).Warn("device did not go idle")
		}
	}
	r.registry.Flush(teardown.Split{Instance: r.instance, Device: r.device})

	if r.ownsShaders {
		if err := asset.Close(r.shaders); err != nil {
			r.log.WithError(err).Warn("closing shader source")
		}
		r.shaders, r.ownsShaders = nil, false
	}

	*r = Renderer{
		driver:  r.driver,
		cfg:     r.cfg,
		log:     r.log,
		exit:    r.exit,
		shaders: r.shaders,
		camera:  r.camera,
	}
	r.log.Info("renderer shut down")
}

// onTransferFailure applies the transfer error policy.
func (r *Renderer) onTransferFailure(err error) {
	if !r.cfg.AbortOnTransferError {
		return
	}
	r.log.WithError(err).Error("aborting on transfer failure")
	r.exit(1)
}
