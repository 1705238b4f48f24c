// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"context"
	"fmt"

	"github.com/devblok/korender/asset"
	"github.com/devblok/korender/core/alloc"
	"github.com/devblok/korender/core/frame"
	"github.com/devblok/korender/core/pipeline"
	"github.com/devblok/korender/core/scene"
	"github.com/devblok/korender/core/teardown"
	"github.com/devblok/korender/core/upload"
	"github.com/devblok/korender/gpu"
	"github.com/devblok/korender/model"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// APIVersion requested from the driver
var APIVersion = gpu.MakeVersion(1, 1, 0)

// Init creates every GPU object the renderer needs, in dependency order.
// Each object's destruction is registered as soon as it exists, so after a
// failure Shutdown releases whatever was created.
func (r *Renderer) Init(p InitParams) error {
	if r.started {
		return ErrAlreadyInitialized
	}
	r.started = true
	r.registry = teardown.New(r.log)
	r.scene = scene.New()

	r.width, r.height = p.Width, p.Height
	if r.width == 0 || r.height == 0 {
		r.width, r.height = r.cfg.ScreenWidth, r.cfg.ScreenHeight
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"instance", func() error { return r.createInstance(p) }},
		{"surface", func() error { return r.createSurface(p.Window) }},
		{"device", r.createDevice},
		{"swapchain", r.createSwapchain},
		{"frames", r.createFrames},
		{"render pass", r.createRenderPass},
		{"framebuffers", r.createFramebuffers},
		{"descriptors", r.createDescriptors},
		{"pipelines", r.createPipelines},
		{"assets", r.uploadAssets},
		{"scene", r.populateScene},
		{"loop", r.createLoop},
	}
	for _, s := range steps {
		r.log.WithField("stage", s.name).Debug("initializing")
		if err := s.fn(); err != nil {
			return errors.Wrapf(err, "init %s", s.name)
		}
	}

	r.ready = true
	r.log.WithFields(logrus.Fields{
		"adapter": r.adapter.Info.Name,
		"extent":  fmt.Sprintf("%dx%d", r.swap.desc.Extent.Width, r.swap.desc.Extent.Height),
		"objects": len(r.scene.Objects),
	}).Info("renderer initialized")
	return nil
}

func (r *Renderer) createInstance(p InitParams) error {
	name := p.AppName
	if name == "" {
		name = "korender"
	}
	inst, err := r.driver.CreateInstance(gpu.InstanceDescriptor{
		AppName:    name,
		APIVersion: APIVersion,
		Extensions: p.Extensions,
		Debug:      r.cfg.Debug,
	})
	if err != nil {
		return err
	}
	r.instance = inst
	r.registry.PushOwner("instance", inst)
	r.registry.Push(gpu.ObjectDebugCallback, gpu.Handle(inst.DebugCallback()))
	return nil
}

func (r *Renderer) createSurface(w gpu.Window) error {
	if w == nil {
		return errors.New("no window")
	}
	s, err := r.instance.CreateSurface(w)
	if err != nil {
		return err
	}
	r.surface = s
	r.registry.Push(gpu.ObjectSurface, gpu.Handle(s))
	return nil
}

func (r *Renderer) createDevice() error {
	infos, err := r.instance.PhysicalDevices(r.surface)
	if err != nil {
		return err
	}
	c, err := SelectDevice(infos, r.cfg.DeviceExtensions)
	if err != nil {
		return err
	}
	r.adapter = c
	r.log.WithFields(logrus.Fields{
		"adapter": c.Info.Name,
		"type":    c.Info.Type,
		"score":   c.Score,
	}).Debug("adapter selected")

	dev, err := r.instance.CreateDevice(c.Info.Device, gpu.DeviceDescriptor{
		QueueFamily: c.Queue,
		Extensions:  r.cfg.DeviceExtensions,
		Features:    gpu.Features{GeometryShader: true},
	})
	if err != nil {
		return err
	}
	r.device = dev
	r.registry.Push(gpu.ObjectDevice, dev.Handle())

	r.alloc = alloc.NewAllocator(dev, r.registry)
	if r.submitter, err = upload.NewSubmitter(dev, r.registry, r.cfg.UploadTimeout, r.log); err != nil {
		return err
	}
	r.submitter.OnFailure(r.onTransferFailure)
	return nil
}

func (r *Renderer) createSwapchain() error {
	sc, err := r.buildSwapchain(0)
	if err != nil {
		return err
	}
	r.swap = sc
	types, handles := sc.objects()
	for i, h := range handles {
		r.registry.Push(types[i], h)
	}
	return nil
}

func (r *Renderer) createFrames() error {
	objects := uint64(r.cfg.MaxObjects) * model.ObjectDataSize
	for i := 0; i < r.cfg.FramesInFlight; i++ {
		s, err := frame.NewSlot(r.device, r.registry)
		if err != nil {
			return err
		}
		if s.Camera, err = r.alloc.CreateBuffer(model.CameraDataSize, gpu.BufferUsageUniform, gpu.MemoryCPUToGPU); err != nil {
			return errors.Wrap(err, "camera buffer")
		}
		if s.Objects, err = r.alloc.CreateBuffer(objects, gpu.BufferUsageStorage, gpu.MemoryCPUToGPU); err != nil {
			return errors.Wrap(err, "object buffer")
		}
		r.slots = append(r.slots, s)
	}
	return nil
}

func (r *Renderer) createRenderPass() error {
	rp, err := r.device.CreateRenderPass(pipeline.RenderPassDescriptor(r.swap.desc.Format))
	if err != nil {
		return err
	}
	r.renderPass = rp
	r.registry.Push(gpu.ObjectRenderPass, gpu.Handle(rp))
	return nil
}

func (r *Renderer) createFramebuffers() error {
	err := r.buildFramebuffers(r.swap)
	for _, fb := range r.swap.framebuffers {
		r.registry.Push(gpu.ObjectFramebuffer, gpu.Handle(fb))
	}
	return err
}

// createDescriptors creates the set layouts, the pool and the scene
// parameter buffer, then points every slot's sets at its buffers.
func (r *Renderer) createDescriptors() error {
	var err error
	if r.descriptors, err = pipeline.CreateDescriptors(r.device, r.registry); err != nil {
		return err
	}

	r.sceneStride = pipeline.Align(model.SceneDataSize, r.device.Limits().MinUniformBufferOffsetAlignment)
	size := uint64(r.cfg.FramesInFlight) * r.sceneStride
	if r.sceneBuffer, err = r.alloc.CreateBuffer(size, gpu.BufferUsageUniform, gpu.MemoryCPUToGPU); err != nil {
		return errors.Wrap(err, "scene buffer")
	}

	for _, s := range r.slots {
		if s.GlobalSet, err = r.device.AllocateDescriptorSet(r.descriptors.Pool, r.descriptors.Global); err != nil {
			return errors.Wrap(err, "global set")
		}
		if s.ObjectSet, err = r.device.AllocateDescriptorSet(r.descriptors.Pool, r.descriptors.Object); err != nil {
			return errors.Wrap(err, "object set")
		}
		r.device.UpdateDescriptorSets([]gpu.DescriptorWrite{
			{
				Set:     s.GlobalSet,
				Binding: pipeline.CameraBinding,
				Type:    gpu.DescriptorTypeUniformBuffer,
				Buffer:  s.Camera.Handle,
				Range:   model.CameraDataSize,
			},
			{
				Set:     s.GlobalSet,
				Binding: pipeline.SceneBinding,
				Type:    gpu.DescriptorTypeUniformBufferDynamic,
				Buffer:  r.sceneBuffer.Handle,
				Range:   model.SceneDataSize,
			},
			{
				Set:     s.ObjectSet,
				Binding: pipeline.ObjectBinding,
				Type:    gpu.DescriptorTypeStorageBuffer,
				Buffer:  s.Objects.Handle,
				Range:   s.Objects.Size,
			},
		})
	}
	return nil
}

func (r *Renderer) createPipelines() error {
	if r.shaders == nil {
		src, err := asset.ParseSource(r.cfg.ShaderSource)
		if err != nil {
			return err
		}
		r.shaders, r.ownsShaders = src, true
	}

	cache, err := r.device.CreatePipelineCache()
	if err != nil {
		return err
	}
	r.cache = cache
	r.registry.Push(gpu.ObjectPipelineCache, gpu.Handle(cache))

	if r.layout, err = pipeline.CreateLayout(r.device, r.registry, r.descriptors.Layouts(), model.PushConstantsSize); err != nil {
		return err
	}

	pipelines, err := r.buildPipelines(r.swap.desc.Extent)
	if err != nil {
		return err
	}
	for i, m := range r.cfg.Materials {
		r.registry.Push(gpu.ObjectPipeline, gpu.Handle(pipelines[i]))
		r.scene.AddMaterial(m.Name, pipelines[i], r.layout)
	}
	return nil
}

// buildPipelines builds one pipeline per configured material. Shader modules
// only live for the duration of the call. On failure nothing is left behind.
func (r *Renderer) buildPipelines(extent gpu.Extent2D) (pipelines []gpu.Pipeline, err error) {
	modules := make(map[string]gpu.ShaderModule)
	defer func() {
		for _, m := range modules {
			r.device.Destroy(gpu.ObjectShaderModule, gpu.Handle(m))
		}
		if err != nil {
			for _, p := range pipelines {
				r.device.Destroy(gpu.ObjectPipeline, gpu.Handle(p))
			}
			pipelines = nil
		}
	}()
	load := func(name string) (gpu.ShaderModule, error) {
		if m, ok := modules[name]; ok {
			return m, nil
		}
		m, err := asset.LoadShader(r.device, r.shaders, name)
		if err != nil {
			return 0, err
		}
		modules[name] = m
		return m, nil
	}

	base := pipeline.NewBuilder().
		WithVertexInput(model.VertexDescription()).
		WithDepthStencil(pipeline.DepthStencil(true, true, gpu.CompareOpLessOrEqual)).
		WithExtent(extent).
		WithLayout(r.layout)

	for _, m := range r.cfg.Materials {
		vert, err := load(m.Vertex)
		if err != nil {
			return pipelines, err
		}
		frag, err := load(m.Fragment)
		if err != nil {
			return pipelines, err
		}
		b := base.WithStage(gpu.ShaderStageVertex, vert).WithStage(gpu.ShaderStageFragment, frag)
		if m.Wireframe {
			b = b.WithRasterization(pipeline.Rasterization(gpu.PolygonModeLine))
		}
		p, err := b.Build(r.device, r.cache, r.renderPass)
		if err != nil {
			return pipelines, errors.Wrapf(err, "material %s", m.Name)
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, nil
}

func (r *Renderer) uploadAssets() error {
	ctx := context.Background()

	tri := model.Triangle()
	if err := upload.UploadMesh(ctx, r.submitter, r.alloc, tri); err != nil {
		return errors.Wrap(err, "triangle")
	}
	r.scene.AddMesh("triangle", tri)

	if r.cfg.ModelPath == "" {
		return nil
	}
	m, err := model.Load(r.cfg.ModelPath)
	if err != nil {
		return err
	}
	if len(m.Meshes) == 0 {
		return errors.Errorf("%s has no meshes", r.cfg.ModelPath)
	}
	for i, mesh := range m.Meshes {
		if err := upload.UploadMesh(ctx, r.submitter, r.alloc, mesh); err != nil {
			return errors.Wrapf(err, "mesh %d", i)
		}
		r.scene.AddMesh(MeshName(i), mesh)
	}
	for i, px := range m.Textures {
		tex, err := upload.UploadPixels(ctx, r.submitter, r.alloc, px)
		if err != nil {
			return errors.Wrapf(err, "texture %d", i)
		}
		r.registry.PushOwner(fmt.Sprintf("texture %d", i), tex)
		r.log.WithFields(logrus.Fields{
			"texture": i,
			"bytes":   px.Width * px.Height * 4,
		}).Debug("texture uploaded")
	}
	r.model = m
	return nil
}

// MeshName is the scene name of the i-th mesh of the loaded model.
func MeshName(i int) string {
	return fmt.Sprintf("shiba_%d", i+1)
}

func (r *Renderer) populateScene() error {
	mat, ok := r.scene.Material(r.cfg.Materials[0].Name)
	if !ok {
		return errors.New("no default material")
	}
	if r.model != nil {
		for i := range r.model.Meshes {
			mesh, _ := r.scene.Mesh(MeshName(i))
			r.scene.Add(scene.RenderObject{Mesh: mesh, Material: mat, Transform: glm.Ident4()})
		}
	}
	tri, _ := r.scene.Mesh("triangle")
	for _, t := range GridTransforms() {
		r.scene.Add(scene.RenderObject{Mesh: tri, Material: mat, Transform: t})
	}
	r.scene.Sort()
	if len(r.scene.Objects) > r.cfg.MaxObjects {
		r.log.WithField("objects", len(r.scene.Objects)).Warn("scene exceeds the object buffer, extra objects are not drawn")
	}
	return nil
}

func (r *Renderer) createLoop() error {
	c := r.cfg.ClearColor
	loop, err := frame.NewLoop(r.device, r.slots, frame.Options{
		Timeout:     r.cfg.FrameTimeout,
		ClearValues: []gpu.ClearValue{gpu.ClearColor(c[0], c[1], c[2], c[3]), gpu.ClearDepth(1, 0)},
	}, r.log)
	if err != nil {
		return err
	}
	r.loop = loop
	return nil
}
