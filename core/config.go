// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"strconv"
	"time"

	"github.com/devblok/korender/core/frame"
	"github.com/devblok/korender/core/upload"
	"github.com/gobuffalo/envy"
	"github.com/pkg/errors"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Renderer RendererConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventsPerSecond is how often window events are polled
	EventsPerSecond int
}

// MaterialConfiguration names a material and the shaders it is built from.
type MaterialConfiguration struct {
	Name     string
	Vertex   string
	Fragment string
	// Wireframe rasterizes polygon edges only.
	Wireframe bool
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	// SwapchainSize is the preferred number of swapchain images, zero
	// means one more than the surface minimum.
	SwapchainSize    uint32
	DeviceExtensions []string

	ScreenWidth  uint32
	ScreenHeight uint32

	// FramesInFlight must equal frame.FramesInFlight.
	FramesInFlight int
	FrameTimeout   time.Duration
	UploadTimeout  time.Duration

	// ShaderSource is an asset source URI, see asset.ParseSource.
	ShaderSource string
	// Materials are built in order, the first one is the default.
	Materials []MaterialConfiguration
	// ModelPath is an optional glTF or Collada model to load.
	ModelPath string

	RecreateOnOutOfDate  bool
	AbortOnTransferError bool

	// Debug enables validation layers.
	Debug      bool
	MaxObjects int
	ClearColor [4]float32
}

// Required device extensions
const (
	SwapchainExtension            = "VK_KHR_swapchain"
	ShaderDrawParametersExtension = "VK_KHR_shader_draw_parameters"
)

// DefaultMaterial is the material every render object starts with.
const DefaultMaterial = "default"

// DefaultConfiguration returns the configuration the binaries start from.
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 60,
			EventsPerSecond: 120,
		},
		Renderer: RendererConfiguration{
			SwapchainSize:    3,
			DeviceExtensions: []string{SwapchainExtension, ShaderDrawParametersExtension},
			ScreenWidth:      1700,
			ScreenHeight:     900,
			FramesInFlight:   frame.FramesInFlight,
			FrameTimeout:     frame.DefaultTimeout,
			UploadTimeout:    upload.DefaultTimeout,
			ShaderSource:     "dir:shaders",
			Materials: []MaterialConfiguration{
				{Name: DefaultMaterial, Vertex: "mesh_triangle.vert", Fragment: "default_lit.frag"},
				{Name: "colored", Vertex: "mesh_triangle.vert", Fragment: "colored_triangle.frag"},
				{Name: "wireframe", Vertex: "mesh_triangle.vert", Fragment: "default_lit.frag", Wireframe: true},
			},
			MaxObjects: 10000,
			ClearColor: [4]float32{0.1, 0.2, 0.3, 1},
		},
	}
}

// Environment variables read by ConfigurationFromEnv
const (
	EnvWidth                = "KORENDER_WIDTH"
	EnvHeight               = "KORENDER_HEIGHT"
	EnvShaders              = "KORENDER_SHADERS"
	EnvModel                = "KORENDER_MODEL"
	EnvDebug                = "KORENDER_DEBUG"
	EnvFPS                  = "KORENDER_FPS"
	EnvAbortOnTransferError = "KORENDER_ABORT_ON_TRANSFER_ERROR"
)

// ConfigurationFromEnv overlays environment variables, and whatever .env
// file envy picked up, onto cfg.
func ConfigurationFromEnv(cfg Configuration) (Configuration, error) {
	var err error
	uintVar := func(key string, dst *uint32) {
		if v := envy.Get(key, ""); v != "" && err == nil {
			var n uint64
			if n, err = strconv.ParseUint(v, 10, 32); err != nil {
				err = errors.Wrapf(err, "%s", key)
				return
			}
			*dst = uint32(n)
		}
	}
	boolVar := func(key string, dst *bool) {
		if v := envy.Get(key, ""); v != "" && err == nil {
			if *dst, err = strconv.ParseBool(v); err != nil {
				err = errors.Wrapf(err, "%s", key)
			}
		}
	}

	uintVar(EnvWidth, &cfg.Renderer.ScreenWidth)
	uintVar(EnvHeight, &cfg.Renderer.ScreenHeight)
	boolVar(EnvDebug, &cfg.Renderer.Debug)
	boolVar(EnvAbortOnTransferError, &cfg.Renderer.AbortOnTransferError)
	if v := envy.Get(EnvFPS, ""); v != "" && err == nil {
		if cfg.Time.FramesPerSecond, err = strconv.Atoi(v); err != nil {
			err = errors.Wrapf(err, "%s", EnvFPS)
		}
	}
	cfg.Renderer.ShaderSource = envy.Get(EnvShaders, cfg.Renderer.ShaderSource)
	cfg.Renderer.ModelPath = envy.Get(EnvModel, cfg.Renderer.ModelPath)
	return cfg, err
}

// Validate reports configuration the renderer cannot run with.
func (c RendererConfiguration) Validate() error {
	if c.FramesInFlight != frame.FramesInFlight {
		return errors.Errorf("config: %d frames in flight, only %d is supported", c.FramesInFlight, frame.FramesInFlight)
	}
	if c.ScreenWidth == 0 || c.ScreenHeight == 0 {
		return errors.Errorf("config: screen size %dx%d", c.ScreenWidth, c.ScreenHeight)
	}
	if len(c.Materials) == 0 {
		return errors.New("config: no materials")
	}
	seen := make(map[string]bool, len(c.Materials))
	for _, m := range c.Materials {
		if m.Name == "" || m.Vertex == "" || m.Fragment == "" {
			return errors.Errorf("config: incomplete material %+v", m)
		}
		if seen[m.Name] {
			return errors.Errorf("config: material %q defined twice", m.Name)
		}
		seen[m.Name] = true
	}
	if c.MaxObjects <= 0 {
		return errors.Errorf("config: max objects %d", c.MaxObjects)
	}
	return nil
}
