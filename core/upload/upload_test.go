// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package upload_test

import (
	"context"
	"testing"
	"time"

	"github.com/devblok/korender/core/alloc"
	"github.com/devblok/korender/core/teardown"
	"github.com/devblok/korender/core/upload"
	"github.com/devblok/korender/gpu"
	"github.com/devblok/korender/gpu/gputest"
	"github.com/devblok/korender/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	driver    *gputest.Driver
	instance  gpu.Instance
	device    gpu.Device
	registry  *teardown.Registry
	allocator *alloc.Allocator
	submitter *upload.Submitter
}

func setup(t *testing.T) *fixture {
	drv := gputest.NewDriver()
	inst, err := drv.CreateInstance(gpu.InstanceDescriptor{AppName: "upload"})
	require.NoError(t, err)
	dev, err := inst.CreateDevice(1, gpu.DeviceDescriptor{})
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	reg := teardown.New(log)
	sub, err := upload.NewSubmitter(dev, reg, time.Second, log)
	require.NoError(t, err)

	return &fixture{
		driver:    drv,
		instance:  inst,
		device:    dev,
		registry:  reg,
		allocator: alloc.NewAllocator(dev, reg),
		submitter: sub,
	}
}

func (f *fixture) close(t *testing.T) {
	f.registry.Flush(teardown.Split{Instance: f.instance, Device: f.device})
	assert.Equal(t, 0, f.driver.Live()[gpu.ObjectBuffer])
	assert.Equal(t, 0, f.driver.Live()[gpu.ObjectImage])
	assert.Equal(t, 0, f.driver.Live()[gpu.ObjectFence])
	assert.Equal(t, 0, f.driver.Live()[gpu.ObjectCommandPool])
	assert.Empty(t, f.driver.Violations())
}

// readBack copies a device local buffer into a host visible one.
func (f *fixture) readBack(t *testing.T, src alloc.Buffer) []byte {
	rb, err := f.allocator.Temporary(src.Size, gpu.BufferUsageTransferDst, gpu.MemoryGPUToCPU)
	require.NoError(t, err)
	defer f.allocator.Destroy(rb)
	require.NoError(t, f.submitter.Submit(context.Background(), func(rec gpu.Recorder) {
		rec.CopyBuffer(src.Handle, rb.Handle, gpu.BufferCopy{Size: src.Size})
	}))
	return f.driver.Bytes(gpu.Handle(rb.Handle))
}

func TestSubmitExecutesAndResets(t *testing.T) {
	f := setup(t)
	src, err := f.allocator.CreateBuffer(4, gpu.BufferUsageTransferSrc, gpu.MemoryCPUOnly)
	require.NoError(t, err)
	dst, err := f.allocator.CreateBuffer(4, gpu.BufferUsageTransferDst, gpu.MemoryGPUToCPU)
	require.NoError(t, err)
	require.NoError(t, f.allocator.Write(src, 0, []byte{1, 2, 3, 4}))

	for i := 0; i < 3; i++ {
		require.NoError(t, f.submitter.Submit(context.Background(), func(rec gpu.Recorder) {
			rec.CopyBuffer(src.Handle, dst.Handle, gpu.BufferCopy{Size: 4})
		}))
	}
	assert.Equal(t, []byte{1, 2, 3, 4}, f.driver.Bytes(gpu.Handle(dst.Handle)))
	f.close(t)
}

func TestSubmitFailures(t *testing.T) {
	for _, op := range []string{"Begin", "End", "Submit"} {
		t.Run(op, func(t *testing.T) {
			f := setup(t)
			var hooked error
			f.submitter.OnFailure(func(err error) { hooked = err })

			f.driver.FailNext(op, errors.New("device says no"))
			err := f.submitter.Submit(context.Background(), func(gpu.Recorder) {})
			require.Error(t, err)
			assert.Equal(t, upload.ErrTransferFailed, errors.Cause(err))
			assert.Equal(t, err, hooked)

			// the context is reusable afterwards
			assert.NoError(t, f.submitter.Submit(context.Background(), func(gpu.Recorder) {}))
			f.close(t)
		})
	}
}

func TestSubmitTimeout(t *testing.T) {
	f := setup(t)
	f.driver.FailNext("WaitForFences", gpu.ErrTimeout)

	err := f.submitter.Submit(context.Background(), func(gpu.Recorder) {})
	require.Error(t, err)
	assert.Equal(t, upload.ErrTransferTimeout, errors.Cause(err))

	// the next submission first waits for the one that timed out
	assert.NoError(t, f.submitter.Submit(context.Background(), func(gpu.Recorder) {}))
	f.close(t)
}

func TestSubmitCancelledContext(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.driver.ClearEvents()
	called := false
	err := f.submitter.Submit(ctx, func(gpu.Recorder) { called = true })
	assert.Equal(t, context.Canceled, err)
	assert.False(t, called)
	for _, e := range f.driver.Events() {
		assert.NotEqual(t, "Begin", e.Op)
	}
	f.close(t)
}

func TestUploadMeshRoundTrip(t *testing.T) {
	f := setup(t)
	mesh := model.Triangle()
	require.NoError(t, upload.UploadMesh(context.Background(), f.submitter, f.allocator, mesh))

	assert.True(t, mesh.Uploaded())
	assert.False(t, mesh.Indexed())
	assert.Equal(t, gpu.MemoryGPUOnly, mesh.VertexBuffer.Memory)
	assert.Equal(t, mesh.Vertices, model.VerticesFromBytes(f.readBack(t, mesh.VertexBuffer)))

	// only the registered vertex buffer survives the upload
	assert.Equal(t, 1, f.driver.Live()[gpu.ObjectBuffer])
	f.close(t)
}

func TestUploadIndexedMesh(t *testing.T) {
	f := setup(t)
	mesh := model.Triangle()
	mesh.Indices = []uint32{0, 1, 2}
	require.NoError(t, upload.UploadMesh(context.Background(), f.submitter, f.allocator, mesh))

	assert.True(t, mesh.Indexed())
	assert.Equal(t, uint64(12), mesh.IndexBuffer.Size)
	assert.Equal(t, model.IndexBytes(mesh.Indices), f.readBack(t, mesh.IndexBuffer))
	f.close(t)
}

func TestUploadEmptyMesh(t *testing.T) {
	f := setup(t)
	assert.Error(t, upload.UploadMesh(context.Background(), f.submitter, f.allocator, &model.Mesh{}))
	f.close(t)
}

func TestUploadTextureBarriers(t *testing.T) {
	f := setup(t)
	pixels := make([]byte, 2*2*4)
	for i := range pixels {
		pixels[i] = byte(i)
	}

	tex, err := upload.UploadTexture(context.Background(), f.submitter, f.allocator, pixels, 2, 2, gpu.FormatR8G8B8A8Unorm)
	require.NoError(t, err)

	cmds := f.driver.Executed()
	require.Len(t, cmds, 3)
	assert.Equal(t, "PipelineBarrier", cmds[0].Op)
	assert.Equal(t, "CopyBufferToImage", cmds[1].Op)
	assert.Equal(t, "PipelineBarrier", cmds[2].Op)

	first := cmds[0].Barriers[0]
	assert.Equal(t, gpu.ImageLayoutUndefined, first.OldLayout)
	assert.Equal(t, gpu.ImageLayoutTransferDstOptimal, first.NewLayout)
	assert.Equal(t, gpu.AccessNone, first.SrcAccess)
	assert.Equal(t, gpu.AccessTransferWrite, first.DstAccess)
	assert.Equal(t, [2]gpu.PipelineStage{gpu.StageTopOfPipe, gpu.StageTransfer}, cmds[0].Stages)

	second := cmds[2].Barriers[0]
	assert.Equal(t, gpu.ImageLayoutTransferDstOptimal, second.OldLayout)
	assert.Equal(t, gpu.ImageLayoutShaderReadOnlyOptimal, second.NewLayout)
	assert.Equal(t, gpu.AccessTransferWrite, second.SrcAccess)
	assert.Equal(t, gpu.AccessShaderRead, second.DstAccess)
	assert.Equal(t, [2]gpu.PipelineStage{gpu.StageTransfer, gpu.StageFragmentShader}, cmds[2].Stages)

	img := tex.Image().Handle
	assert.Equal(t, gpu.ImageLayoutShaderReadOnlyOptimal, f.driver.Layout(img))
	assert.Equal(t, pixels, f.driver.Bytes(gpu.Handle(img)))
	assert.Equal(t, 0, f.driver.Live()[gpu.ObjectBuffer], "staging buffer is destroyed")
	assert.Equal(t, 1, f.driver.Live()[gpu.ObjectImageView])

	tex.Release()
	assert.False(t, tex.Valid())
	f.close(t)
}

func TestTextureMove(t *testing.T) {
	f := setup(t)
	tex, err := upload.UploadTexture(context.Background(), f.submitter, f.allocator, make([]byte, 4), 1, 1, gpu.FormatR8G8B8A8Unorm)
	require.NoError(t, err)

	moved := tex.Move()
	assert.False(t, tex.Valid())
	assert.True(t, moved.Valid())

	tex.Release()
	assert.Equal(t, 1, f.driver.Live()[gpu.ObjectImage], "releasing the moved-from texture is a no-op")

	moved.Release()
	moved.Release()
	assert.Equal(t, 0, f.driver.Live()[gpu.ObjectImage])
	assert.Equal(t, 0, f.driver.Live()[gpu.ObjectImageView])
	f.close(t)
}

func TestUploadPixelsExpandsRGB(t *testing.T) {
	f := setup(t)
	px := model.Pixels{Width: 2, Height: 1, Channels: 3, Data: []byte{1, 2, 3, 4, 5, 6}}
	tex, err := upload.UploadPixels(context.Background(), f.submitter, f.allocator, px)
	require.NoError(t, err)
	defer tex.Release()

	data := f.driver.Bytes(gpu.Handle(tex.Image().Handle))
	require.Len(t, data, 2*1*4)
	assert.Equal(t, []byte{1, 2, 3}, data[0:3])
	assert.Equal(t, []byte{4, 5, 6}, data[4:7])
	assert.Equal(t, gpu.FormatR8G8B8A8Unorm, tex.Image().Format)
}

func TestUploadTextureRejectsShortData(t *testing.T) {
	f := setup(t)
	_, err := upload.UploadTexture(context.Background(), f.submitter, f.allocator, make([]byte, 3), 1, 1, gpu.FormatR8G8B8A8Unorm)
	assert.Error(t, err)
	f.close(t)
}

func TestFailedWaitKeepsStaging(t *testing.T) {
	cases := []struct {
		name   string
		upload func(f *fixture) error
		// live buffers and images right after the failed upload
		buffers, images int
	}{
		{"texture", func(f *fixture) error {
			_, err := upload.UploadTexture(context.Background(), f.submitter, f.allocator, make([]byte, 4), 1, 1, gpu.FormatR8G8B8A8Unorm)
			return err
		}, 1, 1},
		{"mesh", func(f *fixture) error {
			return upload.UploadMesh(context.Background(), f.submitter, f.allocator, model.Triangle())
		}, 2, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := setup(t)
			f.driver.FailNext("WaitForFences", gpu.ErrDeviceLost)

			err := c.upload(f)
			require.Error(t, err)
			assert.Equal(t, upload.ErrTransferFailed, errors.Cause(err))
			assert.True(t, f.submitter.InFlight())

			// nothing the submission used is destroyed before the GPU is idle
			assert.Equal(t, c.buffers, f.driver.Live()[gpu.ObjectBuffer])
			assert.Equal(t, c.images, f.driver.Live()[gpu.ObjectImage])

			require.NoError(t, f.device.WaitIdle())
			f.close(t)
		})
	}
}
