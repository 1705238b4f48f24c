// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command korender opens a window and renders the demo scene until it is
// closed. Space cycles the shader override.
package main

import (
	"flag"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/devblok/korender/asset"
	"github.com/devblok/korender/core"
	"github.com/devblok/korender/gpu/vulkan"
	"github.com/gobuffalo/envy"
	"github.com/gobuffalo/packr"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
)

func init() {
	runtime.LockOSThread()
}

var (
	width      = flag.Uint("width", 0, "Window width, overrides "+core.EnvWidth)
	height     = flag.Uint("height", 0, "Window height, overrides "+core.EnvHeight)
	shaders    = flag.String("shaders", "", "Shader source URI (dir:, pack: or box:), overrides "+core.EnvShaders)
	modelPath  = flag.String("model", "", "glTF model to render, overrides "+core.EnvModel)
	vkDebug    = flag.Bool("vkdbg", false, "Enable validation layers")
	envFile    = flag.String("env", "", "Load environment from this file")
	frames     = flag.Uint64("frames", 0, "Exit after this many frames, 0 runs until closed")
	cpuProfile = flag.String("cpuprofile", "", "Write a CPU profile to this file")
	traceFile  = flag.String("trace", "", "Write an execution trace to this file")
	verbose    = flag.Bool("v", false, "Verbose logging")
)

func main() {
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := run(log); err != nil {
		log.WithError(err).Fatal("korender")
	}
}

func configure() (core.Configuration, error) {
	if *envFile != "" {
		if err := envy.Load(*envFile); err != nil {
			return core.Configuration{}, errors.Wrap(err, "env")
		}
	}
	cfg, err := core.ConfigurationFromEnv(core.DefaultConfiguration())
	if err != nil {
		return cfg, err
	}
	if *width > 0 {
		cfg.Renderer.ScreenWidth = uint32(*width)
	}
	if *height > 0 {
		cfg.Renderer.ScreenHeight = uint32(*height)
	}
	if *shaders != "" {
		cfg.Renderer.ShaderSource = *shaders
	}
	if *modelPath != "" {
		cfg.Renderer.ModelPath = *modelPath
	}
	if *vkDebug {
		cfg.Renderer.Debug = true
	}
	return cfg, nil
}

func profile(log logrus.FieldLogger) (stop func(), err error) {
	var stops []func()
	stop = func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			return stop, errors.Wrap(err, "cpuprofile")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return stop, errors.Wrap(err, "cpuprofile")
		}
		stops = append(stops, func() {
			pprof.StopCPUProfile()
			f.Close()
		})
		log.WithField("file", *cpuProfile).Info("cpu profiling")
	}
	if *traceFile != "" {
		f, err := os.Create(*traceFile)
		if err != nil {
			return stop, errors.Wrap(err, "trace")
		}
		if err := trace.Start(f); err != nil {
			f.Close()
			return stop, errors.Wrap(err, "trace")
		}
		stops = append(stops, func() {
			trace.Stop()
			f.Close()
		})
		log.WithField("file", *traceFile).Info("tracing")
	}
	return stop, nil
}

func run(log *logrus.Logger) error {
	cfg, err := configure()
	if err != nil {
		return err
	}

	stop, err := profile(log)
	defer stop()
	if err != nil {
		return err
	}

	// packr resolves the path relative to this file
	asset.RegisterBox("shaders", packr.NewBox("../../shaders"))

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return errors.Wrap(err, "sdl")
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		return errors.Wrap(err, "sdl: vulkan library")
	}
	defer sdl.VulkanUnloadLibrary()

	window, err := sdl.CreateWindow("korender",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.Renderer.ScreenWidth),
		int32(cfg.Renderer.ScreenHeight),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return errors.Wrap(err, "sdl: window")
	}
	defer window.Destroy()

	driver := vulkan.NewDriver(sdl.VulkanGetVkGetInstanceProcAddr(), log)
	renderer, err := core.NewRenderer(driver, cfg.Renderer, log)
	if err != nil {
		return err
	}
	defer renderer.Shutdown()

	if err := renderer.Init(core.InitParams{
		AppName:    "korender",
		Window:     window,
		Extensions: window.VulkanGetInstanceExtensions(),
	}); err != nil {
		return err
	}

	time := core.NewTime(cfg.Time)
	defer time.Stop()

EventLoop:
	for {
		select {
		case <-time.EventTicker().C:
			for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Type != sdl.KEYDOWN {
						continue
					}
					switch et.Keysym.Sym {
					case sdl.K_ESCAPE:
						break EventLoop
					case sdl.K_SPACE:
						renderer.ToggleShader()
					}
				case *sdl.WindowEvent:
					if et.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
						renderer.Resize(uint32(et.Data1), uint32(et.Data2))
					}
				case *sdl.QuitEvent:
					break EventLoop
				}
			}
		case <-time.FpsTicker().C:
			renderer.Draw()
			if *frames > 0 && renderer.FrameNumber() >= *frames {
				break EventLoop
			}
		}
	}

	log.WithFields(logrus.Fields{
		"frames":  renderer.FrameNumber(),
		"dropped": renderer.Dropped(),
		"elapsed": time.Elapsed(),
	}).Info("event loop exited")
	return nil
}
