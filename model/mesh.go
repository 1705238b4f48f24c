// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"github.com/devblok/korender/core/alloc"
	glm "github.com/go-gl/mathgl/mgl32"
)

// Mesh is geometry plus the GPU buffers it was uploaded to. It does not
// change after upload.
type Mesh struct {
	Vertices []Vertex
	// Indices are optional, without them the mesh is drawn non-indexed.
	Indices []uint32

	VertexBuffer alloc.Buffer
	IndexBuffer  alloc.Buffer
}

// Indexed reports if the mesh is drawn with an index buffer.
func (m *Mesh) Indexed() bool {
	return len(m.Indices) > 0 && m.IndexBuffer.Valid()
}

// Uploaded reports if the vertex data lives on the GPU.
func (m *Mesh) Uploaded() bool {
	return m.VertexBuffer.Valid()
}

// Triangle is a single white triangle.
func Triangle() *Mesh {
	white := glm.Vec3{1, 1, 1}
	return &Mesh{
		Vertices: []Vertex{
			{Position: glm.Vec3{1, 1, 0}, Color: white},
			{Position: glm.Vec3{-1, 1, 0}, Color: white},
			{Position: glm.Vec3{0, -1, 0}, Color: white},
		},
	}
}

// Model is what an asset loader hands to the renderer.
type Model struct {
	Meshes   []*Mesh
	Textures []Pixels
}
