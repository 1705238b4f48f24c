// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package teardown_test

import (
	"testing"

	"github.com/devblok/korender/core/teardown"
	"github.com/devblok/korender/gpu"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
}

func (r *recorder) Destroy(t gpu.ObjectType, h gpu.Handle) {
	r.calls = append(r.calls, t.String())
}

type owner struct {
	name string
	rec  *recorder
}

func (o owner) Release() {
	o.rec.calls = append(o.rec.calls, o.name)
}

func TestFlushReverseOrder(t *testing.T) {
	log, _ := test.NewNullLogger()
	reg := teardown.New(log)
	rec := &recorder{}

	reg.Push(gpu.ObjectBuffer, 1)
	reg.Push(gpu.ObjectImage, 2)
	reg.Push(gpu.ObjectPipeline, 3)

	reg.Flush(rec)
	assert.Equal(t, []string{"pipeline", "image", "buffer"}, rec.calls)
	assert.Equal(t, 0, reg.Len())

	reg.Flush(rec)
	assert.Len(t, rec.calls, 3, "second flush must not run anything")
}

func TestOwnerEntries(t *testing.T) {
	reg := teardown.New(nil)
	rec := &recorder{}

	reg.PushOwner("A", owner{"A", rec})
	reg.Push(gpu.ObjectSurface, 7)
	reg.PushOwner("C", owner{"C", rec})
	reg.PushOwner("nil", nil)

	require.Equal(t, 3, reg.Len())
	reg.Flush(rec)
	assert.Equal(t, []string{"C", "surface", "A"}, rec.calls)
}

func TestNullHandlesIgnored(t *testing.T) {
	reg := teardown.New(nil)
	reg.Push(gpu.ObjectFence, gpu.Null)
	assert.Equal(t, 0, reg.Len())
}

func TestEntriesAndReplace(t *testing.T) {
	reg := teardown.New(nil)
	reg.Push(gpu.ObjectSwapchain, 10)
	reg.Push(gpu.ObjectImageView, 11)
	reg.Push(gpu.ObjectFramebuffer, 12)

	assert.True(t, reg.Replace(11, 21))
	assert.False(t, reg.Replace(99, 100))

	entries := reg.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, gpu.ObjectSwapchain, entries[0].Type)
	assert.Equal(t, gpu.Handle(21), entries[1].Handle)
	assert.Equal(t, gpu.ObjectImageView, entries[1].Type)
	assert.Equal(t, gpu.Handle(12), entries[2].Handle)
}

func TestForget(t *testing.T) {
	reg := teardown.New(nil)
	rec := &recorder{}
	reg.Push(gpu.ObjectBuffer, 1)
	reg.Push(gpu.ObjectBuffer, 2)

	assert.True(t, reg.Forget(1))
	assert.False(t, reg.Forget(1))
	reg.Flush(rec)
	assert.Equal(t, []string{"buffer"}, rec.calls)
}

func TestFlushLogsEntries(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	reg := teardown.New(log)
	reg.Push(gpu.ObjectFence, 1)
	reg.Push(gpu.ObjectSemaphore, 2)
	reg.Flush(&recorder{})

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "semaphore", entries[0].Data["object"])
	assert.Equal(t, "fence", entries[1].Data["object"])
}

func TestSplit(t *testing.T) {
	inst, dev := &recorder{}, &recorder{}
	reg := teardown.New(nil)
	reg.Push(gpu.ObjectSurface, 1)
	reg.Push(gpu.ObjectDevice, 2)
	reg.Push(gpu.ObjectBuffer, 3)
	reg.Flush(teardown.Split{Instance: inst, Device: dev})

	assert.Equal(t, []string{"device", "surface"}, inst.calls)
	assert.Equal(t, []string{"buffer"}, dev.calls)
}
