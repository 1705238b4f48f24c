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

// UploadMesh copies the mesh vertices, and its indices when it has any, into
// device local buffers and stores them on the mesh. The buffers are destroyed
// by the allocator's registry.
func UploadMesh(ctx context.Context, s *Submitter, a *alloc.Allocator, mesh *model.Mesh) error {
	if len(mesh.Vertices) == 0 {
		return errors.New("upload: mesh without vertices")
	}
	vb, err := uploadBuffer(ctx, s, a, model.VertexBytes(mesh.Vertices), gpu.BufferUsageVertex)
	if err != nil {
		return errors.Wrap(err, "vertices")
	}
	mesh.VertexBuffer = vb

	if len(mesh.Indices) == 0 {
		return nil
	}
	ib, err := uploadBuffer(ctx, s, a, model.IndexBytes(mesh.Indices), gpu.BufferUsageIndex)
	if err != nil {
		return errors.Wrap(err, "indices")
	}
	mesh.IndexBuffer = ib
	return nil
}

// uploadBuffer stages data into a new device local buffer of the given usage.
func uploadBuffer(ctx context.Context, s *Submitter, a *alloc.Allocator, data []byte, usage gpu.BufferUsage) (alloc.Buffer, error) {
	size := uint64(len(data))
	staging, err := a.Temporary(size, gpu.BufferUsageTransferSrc, gpu.MemoryCPUOnly)
	if err != nil {
		return alloc.Buffer{}, err
	}
	if err := a.Write(staging, 0, data); err != nil {
		a.Destroy(staging)
		return alloc.Buffer{}, err
	}

	dst, err := a.CreateBuffer(size, usage|gpu.BufferUsageTransferDst, gpu.MemoryGPUOnly)
	if err != nil {
		a.Destroy(staging)
		return alloc.Buffer{}, err
	}

	err = s.Submit(ctx, func(rec gpu.Recorder) {
		rec.CopyBuffer(staging.Handle, dst.Handle, gpu.BufferCopy{Size: size})
	})
	switch {
	case err != nil && s.InFlight():
		a.Retire(staging)
		return alloc.Buffer{}, err
	case err != nil:
		a.Destroy(staging)
		return alloc.Buffer{}, err
	}
	a.Destroy(staging)
	return dst, nil
}
