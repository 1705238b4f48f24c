// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/korender/core/alloc"
	"github.com/devblok/korender/core/frame"
	"github.com/devblok/korender/core/pipeline"
	"github.com/devblok/korender/gpu"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// swapchain is everything sized by the window.
type swapchain struct {
	desc   gpu.SwapchainDescriptor
	handle gpu.Swapchain
	views  []gpu.ImageView

	depth     alloc.Image
	depthView gpu.ImageView

	framebuffers []gpu.Framebuffer
}

func (sc *swapchain) target(rp gpu.RenderPass) *frame.Target {
	return &frame.Target{
		Swapchain:    sc.handle,
		RenderPass:   rp,
		Framebuffers: sc.framebuffers,
		Extent:       sc.desc.Extent,
	}
}

// objects lists the objects of sc in creation order.
func (sc *swapchain) objects() (types []gpu.ObjectType, handles []gpu.Handle) {
	add := func(t gpu.ObjectType, h gpu.Handle) {
		if h != gpu.Null {
			types = append(types, t)
			handles = append(handles, h)
		}
	}
	add(gpu.ObjectSwapchain, gpu.Handle(sc.handle))
	for _, v := range sc.views {
		add(gpu.ObjectImageView, gpu.Handle(v))
	}
	add(gpu.ObjectImage, gpu.Handle(sc.depth.Handle))
	add(gpu.ObjectImageView, gpu.Handle(sc.depthView))
	for _, fb := range sc.framebuffers {
		add(gpu.ObjectFramebuffer, gpu.Handle(fb))
	}
	return types, handles
}

// buildSwapchain creates a swapchain for the current surface state together
// with its views and depth buffer. Framebuffers are left to the caller since
// they need the render pass. On failure nothing is left behind.
func (r *Renderer) buildSwapchain(old gpu.Swapchain) (*swapchain, error) {
	caps, err := r.instance.SurfaceCapabilities(r.adapter.Info.Device, r.surface)
	if err != nil {
		return nil, errors.Wrap(err, "surface capabilities")
	}
	sc := &swapchain{desc: SwapchainFor(r.adapter.Info, caps, r.surface, r.width, r.height, r.cfg.SwapchainSize)}
	sc.desc.Old = old

	if err := r.populateSwapchain(sc); err != nil {
		r.destroySwapchain(sc)
		return nil, err
	}
	r.log.WithFields(logrus.Fields{
		"images":  len(sc.views),
		"width":   sc.desc.Extent.Width,
		"height":  sc.desc.Extent.Height,
		"format":  sc.desc.Format,
		"present": sc.desc.PresentMode,
	}).Debug("swapchain created")
	return sc, nil
}

func (r *Renderer) populateSwapchain(sc *swapchain) error {
	var err error
	if sc.handle, err = r.device.CreateSwapchain(sc.desc); err != nil {
		return err
	}
	images, err := r.device.SwapchainImages(sc.handle)
	if err != nil {
		return errors.Wrap(err, "swapchain images")
	}
	for _, img := range images {
		view, err := r.alloc.CreateView(alloc.Image{Handle: img, Format: sc.desc.Format, Aspect: gpu.AspectColor})
		if err != nil {
			return err
		}
		sc.views = append(sc.views, view)
	}

	extent := gpu.Extent3D{Width: sc.desc.Extent.Width, Height: sc.desc.Extent.Height, Depth: 1}
	if sc.depth, err = r.alloc.TemporaryImage(pipeline.DepthFormat, extent,
		gpu.ImageUsageDepthStencilAttachment, gpu.AspectDepth, gpu.MemoryGPUOnly); err != nil {
		return errors.Wrap(err, "depth image")
	}
	if sc.depthView, err = r.alloc.CreateView(sc.depth); err != nil {
		return errors.Wrap(err, "depth image")
	}
	return nil
}

// buildFramebuffers creates one framebuffer per swapchain image.
func (r *Renderer) buildFramebuffers(sc *swapchain) error {
	for _, view := range sc.views {
		fb, err := r.device.CreateFramebuffer(gpu.FramebufferDescriptor{
			RenderPass:  r.renderPass,
			Attachments: []gpu.ImageView{view, sc.depthView},
			Extent:      sc.desc.Extent,
		})
		if err != nil {
			return errors.Wrap(err, "framebuffer")
		}
		sc.framebuffers = append(sc.framebuffers, fb)
	}
	return nil
}

// destroySwapchain destroys the objects of sc in reverse creation order.
func (r *Renderer) destroySwapchain(sc *swapchain) {
	types, handles := sc.objects()
	for i := len(handles) - 1; i >= 0; i-- {
		r.device.Destroy(types[i], handles[i])
	}
}

// recreateSwapchain replaces the swapchain after the window changed. The old
// swapchain stays in use if the new one cannot be built.
func (r *Renderer) recreateSwapchain() error {
	if err := r.loop.Wait(); err != nil {
		return err
	}
	if err := r.device.WaitIdle(); err != nil {
		return err
	}

	old := r.swap
	next, err := r.buildSwapchain(old.handle)
	if err != nil {
		return err
	}
	if err := r.buildFramebuffers(next); err != nil {
		r.destroySwapchain(next)
		return err
	}

	if next.desc.Extent != old.desc.Extent {
		if err := r.rebuildPipelines(next.desc.Extent); err != nil {
			r.destroySwapchain(next)
			return err
		}
	}

	r.track(old, next)
	r.destroySwapchain(old)
	r.swap = next

	r.log.WithFields(logrus.Fields{
		"width":  next.desc.Extent.Width,
		"height": next.desc.Extent.Height,
	}).Info("swapchain recreated")
	return nil
}

// track moves the teardown entries of old over to next. With a matching image
// count every entry keeps its place, else next is registered anew.
func (r *Renderer) track(old, next *swapchain) {
	_, olds := old.objects()
	types, news := next.objects()
	if len(olds) == len(news) {
		for i := range olds {
			r.registry.Replace(olds[i], news[i])
		}
		return
	}
	for _, h := range olds {
		r.registry.Forget(h)
	}
	for i, h := range news {
		r.registry.Push(types[i], h)
	}
}

// rebuildPipelines rebuilds every material for a new extent. Materials are
// updated in place so render objects keep pointing at them.
func (r *Renderer) rebuildPipelines(extent gpu.Extent2D) error {
	pipelines, err := r.buildPipelines(extent)
	if err != nil {
		return err
	}
	for i, m := range r.scene.Materials() {
		old := m.Pipeline
		r.registry.Replace(gpu.Handle(old), gpu.Handle(pipelines[i]))
		r.device.Destroy(gpu.ObjectPipeline, gpu.Handle(old))
		m.Pipeline = pipelines[i]
	}
	return nil
}
