// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package alloc is the request/result facade for memory backed buffers and
// images. Residency is expressed as a gpu.MemoryUsage intent and resolved to
// concrete memory types by the backend.
package alloc

import (
	"github.com/devblok/korender/core/teardown"
	"github.com/devblok/korender/gpu"
	"github.com/pkg/errors"
)

// Buffer is a memory backed buffer.
type Buffer struct {
	Handle gpu.Buffer
	Size   uint64
	Usage  gpu.BufferUsage
	Memory gpu.MemoryUsage
}

// Valid reports if the buffer refers to an object.
func (b Buffer) Valid() bool {
	return b.Handle != 0
}

// Image is a memory backed 2D image.
type Image struct {
	Handle gpu.Image
	Format gpu.Format
	Extent gpu.Extent3D
	Aspect gpu.ImageAspect
}

// Valid reports if the image refers to an object.
func (i Image) Valid() bool {
	return i.Handle != 0
}

// NewAllocator creates an allocator for dev. Objects created through the
// registered calls have their destruction pushed to reg.
func NewAllocator(dev gpu.Device, reg *teardown.Registry) *Allocator {
	return &Allocator{
		device:   dev,
		registry: reg,
	}
}

// Allocator creates buffers and images on one device.
type Allocator struct {
	device   gpu.Device
	registry *teardown.Registry
}

// Device returns the device the allocator allocates on.
func (a *Allocator) Device() gpu.Device {
	return a.device
}

// CreateBuffer allocates a buffer whose lifetime ends with the registry.
func (a *Allocator) CreateBuffer(size uint64, usage gpu.BufferUsage, memory gpu.MemoryUsage) (Buffer, error) {
	b, err := a.Temporary(size, usage, memory)
	if err != nil {
		return Buffer{}, err
	}
	if a.registry != nil {
		a.registry.Push(gpu.ObjectBuffer, gpu.Handle(b.Handle))
	}
	return b, nil
}

// Temporary allocates a buffer that the caller destroys with Destroy, such as
// a staging buffer.
func (a *Allocator) Temporary(size uint64, usage gpu.BufferUsage, memory gpu.MemoryUsage) (Buffer, error) {
	handle, err := a.device.CreateBuffer(gpu.BufferDescriptor{
		Size:   size,
		Usage:  usage,
		Memory: memory,
	})
	if err != nil {
		return Buffer{}, errors.Wrapf(err, "alloc: %d byte %s buffer", size, memory)
	}
	return Buffer{
		Handle: handle,
		Size:   size,
		Usage:  usage,
		Memory: memory,
	}, nil
}

// CreateImage allocates a 2D image whose lifetime ends with the registry.
func (a *Allocator) CreateImage(format gpu.Format, extent gpu.Extent3D, usage gpu.ImageUsage, aspect gpu.ImageAspect, memory gpu.MemoryUsage) (Image, error) {
	img, err := a.TemporaryImage(format, extent, usage, aspect, memory)
	if err != nil {
		return Image{}, err
	}
	if a.registry != nil {
		a.registry.Push(gpu.ObjectImage, gpu.Handle(img.Handle))
	}
	return img, nil
}

// TemporaryImage allocates an image the caller destroys itself.
func (a *Allocator) TemporaryImage(format gpu.Format, extent gpu.Extent3D, usage gpu.ImageUsage, aspect gpu.ImageAspect, memory gpu.MemoryUsage) (Image, error) {
	if extent.Depth == 0 {
		extent.Depth = 1
	}
	handle, err := a.device.CreateImage(gpu.ImageDescriptor{
		Format: format,
		Extent: extent,
		Usage:  usage,
		Memory: memory,
	})
	if err != nil {
		return Image{}, errors.Wrapf(err, "alloc: %dx%d image", extent.Width, extent.Height)
	}
	return Image{
		Handle: handle,
		Format: format,
		Extent: extent,
		Aspect: aspect,
	}, nil
}

// CreateView creates a view over the whole image.
func (a *Allocator) CreateView(img Image) (gpu.ImageView, error) {
	view, err := a.device.CreateImageView(gpu.ImageViewDescriptor{
		Image:  img.Handle,
		Format: img.Format,
		Aspect: img.Aspect,
	})
	if err != nil {
		return 0, errors.Wrap(err, "alloc: image view")
	}
	return view, nil
}

// Write copies data into a host visible buffer at offset.
func (a *Allocator) Write(b Buffer, offset uint64, data []byte) error {
	if offset+uint64(len(data)) > b.Size {
		return errors.Errorf("alloc: write of %d bytes at %d overflows %d byte buffer", len(data), offset, b.Size)
	}
	mem, err := a.device.Map(b.Handle)
	if err != nil {
		return errors.Wrap(err, "alloc: map")
	}
	copy(mem[offset:], data)
	a.device.Unmap(b.Handle)
	return nil
}

// Destroy releases a buffer created with Temporary.
func (a *Allocator) Destroy(b Buffer) {
	if b.Valid() {
		a.device.Destroy(gpu.ObjectBuffer, gpu.Handle(b.Handle))
	}
}

// Retire hands a temporary buffer that may still be in use by the GPU to the
// registry, which destroys it after the final wait. Without a registry it is
// destroyed right away.
func (a *Allocator) Retire(b Buffer) {
	if !b.Valid() {
		return
	}
	if a.registry == nil {
		a.Destroy(b)
		return
	}
	a.registry.Push(gpu.ObjectBuffer, gpu.Handle(b.Handle))
}

// RetireImage is Retire for images.
func (a *Allocator) RetireImage(img Image) {
	if !img.Valid() {
		return
	}
	if a.registry == nil {
		a.DestroyImage(img)
		return
	}
	a.registry.Push(gpu.ObjectImage, gpu.Handle(img.Handle))
}

// DestroyImage releases an image created with TemporaryImage.
func (a *Allocator) DestroyImage(img Image) {
	if img.Valid() {
		a.device.Destroy(gpu.ObjectImage, gpu.Handle(img.Handle))
	}
}
