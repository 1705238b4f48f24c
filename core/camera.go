// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"math"

	"github.com/devblok/korender/gpu"
	"github.com/devblok/korender/model"
	glm "github.com/go-gl/mathgl/mgl32"
)

// Camera is a fixed perspective camera.
type Camera struct {
	Position glm.Vec3
	// FieldOfView is vertical, in degrees.
	FieldOfView float32
	Near, Far   float32
}

// DefaultCamera looks at the triangle grid from above and behind.
func DefaultCamera() Camera {
	return Camera{
		Position:    glm.Vec3{0, -6, -10},
		FieldOfView: 70,
		Near:        0.1,
		Far:         200,
	}
}

// Data returns the camera uniform for a target of the given extent. The
// projection is flipped vertically, clip space Y points down.
func (c Camera) Data(extent gpu.Extent2D) model.GPUCameraData {
	aspect := float32(1)
	if extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	view := glm.Translate3D(c.Position.X(), c.Position.Y(), c.Position.Z())
	proj := glm.Perspective(glm.DegToRad(c.FieldOfView), aspect, c.Near, c.Far)
	proj.Set(1, 1, -proj.At(1, 1))
	return model.GPUCameraData{
		View:     view,
		Proj:     proj,
		ViewProj: proj.Mul4(view),
	}
}

// SceneData returns the scene parameters of a frame. The ambient color
// slowly cycles.
func SceneData(frame uint64) model.GPUSceneData {
	f := float64(frame) / 120
	return model.GPUSceneData{
		AmbientColor: glm.Vec4{float32(math.Sin(f)), 1, float32(math.Cos(f)), 1},
	}
}

// gridExtent is how far the triangle grid reaches from the origin.
const gridExtent = 20

// GridTransforms places small triangles on every integer point of the XZ
// plane within the grid.
func GridTransforms() []glm.Mat4 {
	scale := glm.Scale3D(0.2, 0.2, 0.2)
	out := make([]glm.Mat4, 0, (2*gridExtent+1)*(2*gridExtent+1))
	for x := -gridExtent; x <= gridExtent; x++ {
		for z := -gridExtent; z <= gridExtent; z++ {
			out = append(out, glm.Translate3D(float32(x), 0, float32(z)).Mul4(scale))
		}
	}
	return out
}
