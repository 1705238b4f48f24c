// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/devblok/korender/gpu"
	"github.com/devblok/korender/model"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutSizes(t *testing.T) {
	assert.Equal(t, uint32(36), model.VertexSize)
	assert.Equal(t, uint32(80), model.PushConstantsSize)
	assert.Equal(t, uint64(192), model.CameraDataSize)
	assert.Equal(t, uint64(80), model.SceneDataSize)
	assert.Equal(t, uint64(64), model.ObjectDataSize)
}

func TestVertexDescription(t *testing.T) {
	desc := model.VertexDescription()
	require.Len(t, desc.Bindings, 1)
	assert.Equal(t, model.VertexSize, desc.Bindings[0].Stride)
	require.Len(t, desc.Attributes, 3)
	for i, a := range desc.Attributes {
		assert.Equal(t, uint32(i), a.Location)
		assert.Equal(t, uint32(i*12), a.Offset)
		assert.Equal(t, gpu.FormatR32G32B32Sfloat, a.Format)
	}
}

func TestVertexBytesRoundTrip(t *testing.T) {
	vs := model.Triangle().Vertices
	bts := model.VertexBytes(vs)
	assert.Len(t, bts, 3*int(model.VertexSize))
	assert.Equal(t, vs, model.VerticesFromBytes(bts))
	assert.Nil(t, model.VertexBytes(nil))
}

func TestPushConstantBytes(t *testing.T) {
	pc := model.MeshPushConstants{RenderMatrix: glm.Ident4()}
	bts := pc.Bytes()
	require.Len(t, bts, int(model.PushConstantsSize))
	// first diagonal element of the matrix follows the vec4
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, bts[16:20])
}

func TestExpandRGB(t *testing.T) {
	const w, h = 3, 2
	rgb := make([]byte, w*h*3)
	for i := range rgb {
		rgb[i] = byte(i + 1)
	}
	rgba := model.ExpandRGB(rgb, w, h)
	require.Len(t, rgba, w*h*4)
	for p := 0; p < w*h; p++ {
		assert.Equal(t, rgb[p*3:p*3+3], rgba[p*4:p*4+3], "pixel %d", p)
	}
}

func TestPixelsRGBA(t *testing.T) {
	px := model.Pixels{Width: 2, Height: 2, Channels: 3, Data: make([]byte, 12)}
	out := px.RGBA()
	assert.Equal(t, 4, out.Channels)
	assert.Len(t, out.Data, 16)

	same := model.Pixels{Width: 1, Height: 1, Channels: 4, Data: []byte{1, 2, 3, 4}}
	assert.Equal(t, same, same.RGBA())
}

func TestPixelsFromImage(t *testing.T) {
	opaque := image.NewRGBA(image.Rect(0, 0, 2, 1))
	opaque.Set(0, 0, color.RGBA{10, 20, 30, 255})
	opaque.Set(1, 0, color.RGBA{40, 50, 60, 255})
	px := model.PixelsFromImage(opaque)
	assert.Equal(t, 3, px.Channels)
	assert.Equal(t, []byte{10, 20, 30, 40, 50, 60}, px.Data)

	translucent := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	translucent.Set(0, 0, color.NRGBA{255, 255, 255, 0})
	px = model.PixelsFromImage(translucent)
	assert.Equal(t, 4, px.Channels)
	assert.Len(t, px.Data, 4)
}

func TestMeshIndexed(t *testing.T) {
	m := model.Triangle()
	assert.False(t, m.Indexed())
	m.Indices = []uint32{0, 1, 2}
	assert.False(t, m.Indexed(), "indices without a buffer are not drawable")
	m.IndexBuffer.Handle = 5
	assert.True(t, m.Indexed())
}

func TestFromGLTFMergesPrimitives(t *testing.T) {
	doc := gltf.NewDocument()
	pos0 := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	nrm0 := modeler.WriteNormal(doc, [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
	idx0 := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	pos1 := modeler.WritePosition(doc, [][3]float32{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}})
	idx1 := modeler.WriteIndices(doc, []uint16{2, 1, 0})

	doc.Meshes = []*gltf.Mesh{{
		Primitives: []*gltf.Primitive{
			{Attributes: map[string]int{"POSITION": pos0, "NORMAL": nrm0}, Indices: gltf.Index(idx0)},
			{Attributes: map[string]int{"POSITION": pos1}, Indices: gltf.Index(idx1)},
		},
	}}
	doc.Nodes = []*gltf.Node{
		{Children: []int{1}},
		{Mesh: gltf.Index(0)},
	}
	doc.Scenes[0].Nodes = []int{0}

	m, err := model.FromGLTF(doc, "")
	require.NoError(t, err)
	require.Len(t, m.Meshes, 1)

	mesh := m.Meshes[0]
	assert.Len(t, mesh.Vertices, 6)
	assert.Equal(t, []uint32{0, 1, 2, 5, 4, 3}, mesh.Indices)
	assert.Equal(t, glm.Vec3{0, 0, 1}, mesh.Vertices[0].Color, "color follows the normal")
	assert.Equal(t, glm.Vec3{}, mesh.Vertices[3].Normal)
	assert.Empty(t, m.Textures)
}
