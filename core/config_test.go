// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"math"
	"testing"
	"time"

	"github.com/devblok/korender/core"
	"github.com/devblok/korender/gpu"
	"github.com/gobuffalo/envy"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfiguration(t *testing.T) {
	cfg := core.DefaultConfiguration()
	require.NoError(t, cfg.Renderer.Validate())

	assert.Equal(t, 2, cfg.Renderer.FramesInFlight)
	assert.Equal(t, time.Second, cfg.Renderer.FrameTimeout)
	assert.Equal(t, 10*time.Second, cfg.Renderer.UploadTimeout)
	assert.Equal(t, 10000, cfg.Renderer.MaxObjects)
	assert.Equal(t, core.DefaultMaterial, cfg.Renderer.Materials[0].Name)
	assert.False(t, cfg.Renderer.AbortOnTransferError)
	assert.False(t, cfg.Renderer.RecreateOnOutOfDate)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*core.RendererConfiguration)
	}{
		{"frames in flight", func(c *core.RendererConfiguration) { c.FramesInFlight = 3 }},
		{"zero width", func(c *core.RendererConfiguration) { c.ScreenWidth = 0 }},
		{"no materials", func(c *core.RendererConfiguration) { c.Materials = nil }},
		{"incomplete material", func(c *core.RendererConfiguration) { c.Materials[1].Fragment = "" }},
		{"duplicate material", func(c *core.RendererConfiguration) { c.Materials[1].Name = core.DefaultMaterial }},
		{"no objects", func(c *core.RendererConfiguration) { c.MaxObjects = 0 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := core.DefaultConfiguration().Renderer
			c.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigurationFromEnv(t *testing.T) {
	envy.Temp(func() {
		envy.Set(core.EnvWidth, "800")
		envy.Set(core.EnvHeight, "600")
		envy.Set(core.EnvShaders, "pack:assets.kar")
		envy.Set(core.EnvModel, "shiba/scene.gltf")
		envy.Set(core.EnvDebug, "true")
		envy.Set(core.EnvFPS, "144")
		envy.Set(core.EnvAbortOnTransferError, "1")

		cfg, err := core.ConfigurationFromEnv(core.DefaultConfiguration())
		require.NoError(t, err)
		assert.Equal(t, uint32(800), cfg.Renderer.ScreenWidth)
		assert.Equal(t, uint32(600), cfg.Renderer.ScreenHeight)
		assert.Equal(t, "pack:assets.kar", cfg.Renderer.ShaderSource)
		assert.Equal(t, "shiba/scene.gltf", cfg.Renderer.ModelPath)
		assert.True(t, cfg.Renderer.Debug)
		assert.True(t, cfg.Renderer.AbortOnTransferError)
		assert.Equal(t, 144, cfg.Time.FramesPerSecond)
	})
}

func TestConfigurationFromEnvInvalid(t *testing.T) {
	envy.Temp(func() {
		envy.Set(core.EnvWidth, "wide")
		_, err := core.ConfigurationFromEnv(core.DefaultConfiguration())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), core.EnvWidth)
	})
}

func TestTime(t *testing.T) {
	tm := core.NewTime(core.TimeConfiguration{FramesPerSecond: 1000})
	defer tm.Stop()

	assert.Equal(t, 1000, tm.Fps())
	<-tm.FpsTicker().C
	<-tm.EventTicker().C
	assert.True(t, tm.Elapsed() > 0)
}

func TestCameraData(t *testing.T) {
	cam := core.DefaultCamera()
	data := cam.Data(gpu.Extent2D{Width: 1700, Height: 900})

	assert.Equal(t, glm.Translate3D(0, -6, -10), data.View)
	assert.True(t, data.Proj.At(1, 1) < 0, "projection is flipped")
	assert.True(t, data.ViewProj.ApproxEqual(data.Proj.Mul4(data.View)))

	squashed := cam.Data(gpu.Extent2D{Width: 900, Height: 900})
	assert.InDelta(t, squashed.Proj.At(0, 0), -squashed.Proj.At(1, 1), 1e-5)
}

func TestSceneData(t *testing.T) {
	assert.Equal(t, glm.Vec4{0, 1, 1, 1}, core.SceneData(0).AmbientColor)

	at := core.SceneData(240).AmbientColor
	assert.InDelta(t, math.Sin(2), float64(at[0]), 1e-6)
	assert.InDelta(t, math.Cos(2), float64(at[2]), 1e-6)
}

func TestGridTransforms(t *testing.T) {
	grid := core.GridTransforms()
	require.Len(t, grid, 41*41)

	first := grid[0].Mul4x1(glm.Vec4{0, 0, 0, 1})
	assert.Equal(t, glm.Vec4{-20, 0, -20, 1}, first)
	corner := grid[len(grid)-1].Mul4x1(glm.Vec4{1, 0, 0, 1})
	assert.True(t, corner.ApproxEqual(glm.Vec4{20.2, 0, 20, 1}))
}
