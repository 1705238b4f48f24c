// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"sort"

	"github.com/devblok/korender/gpu"
	"github.com/pkg/errors"
)

// MinAPIVersion is the oldest API version a device may report.
var MinAPIVersion = gpu.MakeVersion(1, 1, 0)

// discreteBonus is how much a discrete GPU is preferred over any other.
const discreteBonus = 1000

// Candidate is an adapter rated for rendering to a surface.
type Candidate struct {
	Info gpu.PhysicalDeviceInfo
	// Queue is the family used for both graphics and presentation.
	Queue uint32
	Score int
	// Reason tells why the adapter is unsuitable, empty if it is suitable.
	Reason string `json:",omitempty"`
}

// Suitable reports if c can be used.
func (c Candidate) Suitable() bool {
	return c.Reason == ""
}

// Score rates an adapter: discrete GPUs first, then by the largest texture
// they support.
func Score(info gpu.PhysicalDeviceInfo) int {
	score := int(info.Limits.MaxImageDimension2D)
	if info.Type == gpu.AdapterDiscrete {
		score += discreteBonus
	}
	return score
}

// Rate checks an adapter against what the renderer requires.
func Rate(info gpu.PhysicalDeviceInfo, extensions []string) Candidate {
	c := Candidate{Info: info, Score: Score(info)}

	queue, ok := graphicsPresentQueue(info.QueueFamilies)
	c.Queue = queue
	switch {
	case info.APIVersion < MinAPIVersion:
		c.Reason = fmt.Sprintf("API version %s is older than %s", info.APIVersion, MinAPIVersion)
	case !ok:
		c.Reason = "no queue family with graphics and present support"
	case !info.Features.GeometryShader:
		c.Reason = "geometry shaders not supported"
	case len(info.SurfaceFormats) == 0:
		c.Reason = "no surface formats"
	case len(info.PresentModes) == 0:
		c.Reason = "no present modes"
	}
	if c.Reason != "" {
		return c
	}
	for _, ext := range extensions {
		if !info.HasExtension(ext) {
			c.Reason = "missing extension " + ext
			return c
		}
	}
	return c
}

func graphicsPresentQueue(families []gpu.QueueFamily) (uint32, bool) {
	for _, f := range families {
		if f.Graphics && f.Present && f.QueueCount > 0 {
			return f.Index, true
		}
	}
	return 0, false
}

// RateAll rates every adapter, best first. Unsuitable adapters sort last.
func RateAll(infos []gpu.PhysicalDeviceInfo, extensions []string) []Candidate {
	out := make([]Candidate, len(infos))
	for i, info := range infos {
		out[i] = Rate(info, extensions)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Suitable() != out[j].Suitable() {
			return out[i].Suitable()
		}
		return out[i].Score > out[j].Score
	})
	return out
}

// SelectDevice picks the best suitable adapter.
func SelectDevice(infos []gpu.PhysicalDeviceInfo, extensions []string) (Candidate, error) {
	rated := RateAll(infos, extensions)
	if len(rated) == 0 || !rated[0].Suitable() {
		reasons := make([]string, len(rated))
		for i, c := range rated {
			reasons[i] = c.Info.Name + ": " + c.Reason
		}
		return Candidate{}, errors.Wrapf(gpu.ErrNoAdapter, "%d adapters %v", len(rated), reasons)
	}
	return rated[0], nil
}
