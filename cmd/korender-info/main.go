// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command korender-info prints every adapter as JSON, rated the way the
// renderer would rate it. Without -surface presentation support can not be
// queried and no adapter is suitable.
package main

import (
	"encoding/json"
	"flag"
	"os"
	"runtime"
	"unsafe"

	"github.com/devblok/korender/core"
	"github.com/devblok/korender/gpu"
	"github.com/devblok/korender/gpu/vulkan"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
)

func init() {
	runtime.LockOSThread()
}

type report struct {
	Name      string
	Suitable  bool
	Reason    string `json:",omitempty"`
	Score     int
	Queue     uint32
	Extension []string `json:",omitempty"`
	Info      gpu.PhysicalDeviceInfo
}

var (
	surface = flag.Bool("surface", true, "Query presentation support through a hidden window")
	verbose = flag.Bool("v", false, "Verbose logging")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	reports, err := rate(log, *surface)
	if err != nil {
		log.WithError(err).Fatal("korender-info")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		log.WithError(err).Fatal("korender-info")
	}
}

func rate(log logrus.FieldLogger, withSurface bool) ([]report, error) {
	var (
		procAddr   unsafe.Pointer
		window     *sdl.Window
		extensions []string
	)
	if withSurface {
		if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
			return nil, errors.Wrap(err, "sdl")
		}
		defer sdl.Quit()
		if err := sdl.VulkanLoadLibrary(""); err != nil {
			return nil, errors.Wrap(err, "sdl: vulkan library")
		}
		defer sdl.VulkanUnloadLibrary()

		var err error
		window, err = sdl.CreateWindow("korender-info", 0, 0, 64, 64, sdl.WINDOW_VULKAN|sdl.WINDOW_HIDDEN)
		if err != nil {
			return nil, errors.Wrap(err, "sdl: window")
		}
		defer window.Destroy()
		procAddr = sdl.VulkanGetVkGetInstanceProcAddr()
		extensions = window.VulkanGetInstanceExtensions()
	}

	instance, err := vulkan.NewDriver(procAddr, log).CreateInstance(gpu.InstanceDescriptor{
		AppName:    "korender-info",
		APIVersion: core.APIVersion,
		Extensions: extensions,
	})
	if err != nil {
		return nil, err
	}
	defer instance.Release()

	s := gpu.Surface(gpu.Null)
	if window != nil {
		if s, err = instance.CreateSurface(window); err != nil {
			return nil, err
		}
		defer instance.Destroy(gpu.ObjectSurface, gpu.Handle(s))
	}

	infos, err := instance.PhysicalDevices(s)
	if err != nil {
		return nil, err
	}

	required := core.DefaultConfiguration().Renderer.DeviceExtensions
	rated := core.RateAll(infos, required)
	reports := make([]report, len(rated))
	for i, c := range rated {
		reports[i] = report{
			Name:      c.Info.Name,
			Suitable:  c.Suitable(),
			Reason:    c.Reason,
			Score:     c.Score,
			Queue:     c.Queue,
			Extension: required,
			Info:      c.Info,
		}
	}
	return reports, nil
}
