// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package upload

import (
	"context"

	"github.com/devblok/korender/core/alloc"
	"github.com/devblok/korender/gpu"
	"github.com/devblok/korender/model"
	"github.com/pkg/errors"
)

// noCopy makes go vet flag copies of the struct it is embedded in.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Texture is an uploaded, shader readable image and its view. Exactly one
// Texture owns the GPU objects: Move hands them to a new Texture and leaves
// the old one empty, releasing an empty Texture does nothing.
type Texture struct {
	noCopy noCopy

	device gpu.Device
	image  alloc.Image
	view   gpu.ImageView
}

// Image returns the uploaded image.
func (t *Texture) Image() alloc.Image {
	return t.image
}

// View returns the shader view of the image.
func (t *Texture) View() gpu.ImageView {
	return t.view
}

// Valid reports if the texture still owns its GPU objects.
func (t *Texture) Valid() bool {
	return t != nil && t.device != nil
}

// Move transfers ownership to the returned Texture.
func (t *Texture) Move() *Texture {
	moved := &Texture{
		device: t.device,
		image:  t.image,
		view:   t.view,
	}
	t.device = nil
	t.image = alloc.Image{}
	t.view = 0
	return moved
}

// Release destroys the view and the image.
func (t *Texture) Release() {
	if !t.Valid() {
		return
	}
	if t.view != 0 {
		t.device.Destroy(gpu.ObjectImageView, gpu.Handle(t.view))
	}
	if t.image.Valid() {
		t.device.Destroy(gpu.ObjectImage, gpu.Handle(t.image.Handle))
	}
	t.device = nil
	t.image = alloc.Image{}
	t.view = 0
}

func texelSize(f gpu.Format) int {
	switch f {
	case gpu.FormatR32G32Sfloat:
		return 8
	case gpu.FormatR32G32B32Sfloat:
		return 12
	case gpu.FormatR32G32B32A32Sfloat:
		return 16
	}
	return 4
}

// UploadTexture stages pixels through a host visible buffer into a device
// local image, leaving it in the shader read-only layout. The texture is
// ready for sampling when the call returns. RGB data must be widened to
// four channels by the caller.
func UploadTexture(ctx context.Context, s *Submitter, a *alloc.Allocator, pixels []byte, width, height uint32, format gpu.Format) (*Texture, error) {
	if width == 0 || height == 0 {
		return nil, errors.New("upload: empty texture")
	}
	if want := int(width*height) * texelSize(format); len(pixels) != want {
		return nil, errors.Errorf("upload: %dx%d texture needs %d bytes, got %d", width, height, want, len(pixels))
	}

	staging, err := a.Temporary(uint64(len(pixels)), gpu.BufferUsageTransferSrc, gpu.MemoryCPUOnly)
	if err != nil {
		return nil, err
	}
	if err := a.Write(staging, 0, pixels); err != nil {
		a.Destroy(staging)
		return nil, err
	}

	extent := gpu.Extent3D{Width: width, Height: height, Depth: 1}
	img, err := a.TemporaryImage(format, extent, gpu.ImageUsageSampled|gpu.ImageUsageTransferDst, gpu.AspectColor, gpu.MemoryGPUOnly)
	if err != nil {
		a.Destroy(staging)
		return nil, err
	}

	err = s.Submit(ctx, func(rec gpu.Recorder) {
		rec.PipelineBarrier(gpu.StageTopOfPipe, gpu.StageTransfer, gpu.ImageBarrier{
			Image:     img.Handle,
			OldLayout: gpu.ImageLayoutUndefined,
			NewLayout: gpu.ImageLayoutTransferDstOptimal,
			SrcAccess: gpu.AccessNone,
			DstAccess: gpu.AccessTransferWrite,
			Aspect:    gpu.AspectColor,
		})
		rec.CopyBufferToImage(staging.Handle, img.Handle, gpu.ImageLayoutTransferDstOptimal, gpu.BufferImageCopy{
			Aspect: gpu.AspectColor,
			Extent: extent,
		})
		rec.PipelineBarrier(gpu.StageTransfer, gpu.StageFragmentShader, gpu.ImageBarrier{
			Image:     img.Handle,
			OldLayout: gpu.ImageLayoutTransferDstOptimal,
			NewLayout: gpu.ImageLayoutShaderReadOnlyOptimal,
			SrcAccess: gpu.AccessTransferWrite,
			DstAccess: gpu.AccessShaderRead,
			Aspect:    gpu.AspectColor,
		})
	})
	if err != nil {
		if s.InFlight() {
			// the GPU may still read both, leave them to the registry
			a.Retire(staging)
			a.RetireImage(img)
			return nil, err
		}
		a.Destroy(staging)
		a.DestroyImage(img)
		return nil, err
	}
	a.Destroy(staging)

	view, err := a.CreateView(img)
	if err != nil {
		a.DestroyImage(img)
		return nil, err
	}
	return &Texture{
		device: a.Device(),
		image:  img,
		view:   view,
	}, nil
}

// UploadPixels uploads decoded pixels as an R8G8B8A8_UNORM texture, widening
// RGB data first.
func UploadPixels(ctx context.Context, s *Submitter, a *alloc.Allocator, px model.Pixels) (*Texture, error) {
	px = px.RGBA()
	return UploadTexture(ctx, s, a, px.Data, uint32(px.Width), uint32(px.Height), gpu.FormatR8G8B8A8Unorm)
}
