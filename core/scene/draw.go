// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package scene

import (
	"github.com/devblok/korender/core/pipeline"
	"github.com/devblok/korender/gpu"
	"github.com/devblok/korender/model"
	glm "github.com/go-gl/mathgl/mgl32"
)

// Bindings are the per frame descriptor sets every material binds.
type Bindings struct {
	GlobalSet gpu.DescriptorSet
	ObjectSet gpu.DescriptorSet
	// SceneOffset selects this frame's scene parameters.
	SceneOffset uint32

	// Override, when set, replaces the material of every object.
	Override *Material
}

// Stats counts the state changes of one traversal.
type Stats struct {
	Pipelines     int
	Descriptors   int
	VertexBuffers int
	Draws         int
}

// Draw records objs. Pipeline and descriptor sets are rebound only when the
// material changes and vertex buffers only when the mesh changes. Object i
// is drawn as instance i, which the shaders use to index the object storage
// buffer.
func Draw(rec gpu.Recorder, objs []RenderObject, b Bindings) Stats {
	var (
		stats    Stats
		lastMat  *Material
		lastMesh *model.Mesh
	)
	for i, obj := range objs {
		mat := obj.Material
		if b.Override != nil {
			mat = b.Override
		}
		if mat == nil || obj.Mesh == nil || !obj.Mesh.Uploaded() {
			continue
		}

		if mat != lastMat {
			rec.BindPipeline(mat.Pipeline)
			rec.BindDescriptorSets(mat.Layout, pipeline.GlobalSet,
				[]gpu.DescriptorSet{b.GlobalSet, b.ObjectSet},
				[]uint32{b.SceneOffset})
			stats.Pipelines++
			stats.Descriptors++
			lastMat = mat
		}

		pc := model.MeshPushConstants{
			Data:         glm.Vec4{},
			RenderMatrix: obj.Transform,
		}
		rec.PushConstants(mat.Layout, gpu.ShaderStageVertex, 0, pc.Bytes())

		mesh := obj.Mesh
		if mesh != lastMesh {
			rec.BindVertexBuffer(mesh.VertexBuffer.Handle, 0)
			if mesh.Indexed() {
				rec.BindIndexBuffer(mesh.IndexBuffer.Handle, 0, gpu.IndexTypeUint32)
			}
			stats.VertexBuffers++
			lastMesh = mesh
		}

		if mesh.Indexed() {
			rec.DrawIndexed(uint32(len(mesh.Indices)), 1, 0, 0, uint32(i))
		} else {
			rec.Draw(uint32(len(mesh.Vertices)), 1, 0, uint32(i))
		}
		stats.Draws++
	}
	return stats
}
