// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package model holds the CPU side layout of everything the renderer sends to
// the GPU: vertices, uniform blocks and push constants, meshes and textures.
// Every struct here matches a shader interface block byte for byte.
package model

import (
	"unsafe"

	"github.com/devblok/korender/gpu"
	glm "github.com/go-gl/mathgl/mgl32"
)

// Vertex is a model vertex
type Vertex struct {
	Position glm.Vec3
	Normal   glm.Vec3
	Color    glm.Vec3
}

// VertexSize is the stride of one Vertex in a vertex buffer.
const VertexSize = uint32(unsafe.Sizeof(Vertex{}))

// VertexDescription describes the single per-vertex binding: position at
// location 0, normal at 1 and color at 2.
func VertexDescription() gpu.VertexInput {
	return gpu.VertexInput{
		Bindings: []gpu.VertexBinding{{
			Binding: 0,
			Stride:  VertexSize,
			Rate:    gpu.InputRateVertex,
		}},
		Attributes: []gpu.VertexAttribute{
			{
				Binding:  0,
				Location: 0,
				Format:   gpu.FormatR32G32B32Sfloat,
				Offset:   uint32(unsafe.Offsetof(Vertex{}.Position)),
			},
			{
				Binding:  0,
				Location: 1,
				Format:   gpu.FormatR32G32B32Sfloat,
				Offset:   uint32(unsafe.Offsetof(Vertex{}.Normal)),
			},
			{
				Binding:  0,
				Location: 2,
				Format:   gpu.FormatR32G32B32Sfloat,
				Offset:   uint32(unsafe.Offsetof(Vertex{}.Color)),
			},
		},
	}
}

// VertexBytes views vertices as raw bytes without copying.
func VertexBytes(vs []Vertex) []byte {
	if len(vs) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vs[0])), len(vs)*int(VertexSize))
}

// VerticesFromBytes copies raw vertex buffer contents back into vertices.
// Trailing bytes that do not form a whole vertex are ignored.
func VerticesFromBytes(b []byte) []Vertex {
	vs := make([]Vertex, len(b)/int(VertexSize))
	copy(VertexBytes(vs), b)
	return vs
}

// IndexBytes views 32-bit indices as raw bytes without copying.
func IndexBytes(is []uint32) []byte {
	if len(is) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&is[0])), len(is)*4)
}

// MeshPushConstants is pushed once per render object.
type MeshPushConstants struct {
	Data         glm.Vec4
	RenderMatrix glm.Mat4
}

// PushConstantsSize is the byte size of MeshPushConstants.
const PushConstantsSize = uint32(unsafe.Sizeof(MeshPushConstants{}))

// Bytes views the push constants as raw bytes.
func (p *MeshPushConstants) Bytes() []byte {
	return (*[unsafe.Sizeof(MeshPushConstants{})]byte)(unsafe.Pointer(p))[:]
}

// GPUCameraData is the per frame camera uniform.
type GPUCameraData struct {
	View     glm.Mat4
	Proj     glm.Mat4
	ViewProj glm.Mat4
}

// CameraDataSize is the byte size of GPUCameraData.
const CameraDataSize = uint64(unsafe.Sizeof(GPUCameraData{}))

// Bytes views the camera block as raw bytes.
func (c *GPUCameraData) Bytes() []byte {
	return (*[unsafe.Sizeof(GPUCameraData{})]byte)(unsafe.Pointer(c))[:]
}

// GPUSceneData holds scene wide lighting parameters.
type GPUSceneData struct {
	FogColor          glm.Vec4
	FogDistances      glm.Vec4
	AmbientColor      glm.Vec4
	SunlightDirection glm.Vec4
	SunlightColor     glm.Vec4
}

// SceneDataSize is the byte size of GPUSceneData.
const SceneDataSize = uint64(unsafe.Sizeof(GPUSceneData{}))

// Bytes views the scene block as raw bytes.
func (s *GPUSceneData) Bytes() []byte {
	return (*[unsafe.Sizeof(GPUSceneData{})]byte)(unsafe.Pointer(s))[:]
}

// GPUObjectData is one record of the per object storage buffer.
type GPUObjectData struct {
	Model glm.Mat4
}

// ObjectDataSize is the byte size of GPUObjectData.
const ObjectDataSize = uint64(unsafe.Sizeof(GPUObjectData{}))

// ObjectBytes views object records as raw bytes without copying.
func ObjectBytes(objs []GPUObjectData) []byte {
	if len(objs) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&objs[0])), len(objs)*int(ObjectDataSize))
}
