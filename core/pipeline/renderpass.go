// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import "github.com/devblok/korender/gpu"

// DepthFormat of the depth attachment
const DepthFormat = gpu.FormatD32Sfloat

// RenderPassDescriptor describes the single subpass render pass: a cleared
// color attachment handed to presentation and a cleared depth attachment.
func RenderPassDescriptor(color gpu.Format) gpu.RenderPassDescriptor {
	return gpu.RenderPassDescriptor{
		Color: gpu.Attachment{
			Format:        color,
			LoadOp:        gpu.LoadOpClear,
			StoreOp:       gpu.StoreOpStore,
			InitialLayout: gpu.ImageLayoutUndefined,
			FinalLayout:   gpu.ImageLayoutPresentSrc,
		},
		Depth: &gpu.Attachment{
			Format:        DepthFormat,
			LoadOp:        gpu.LoadOpClear,
			StoreOp:       gpu.StoreOpStore,
			InitialLayout: gpu.ImageLayoutUndefined,
			FinalLayout:   gpu.ImageLayoutDepthStencilAttachmentOptimal,
		},
		Dependencies: []gpu.SubpassDependency{{
			SrcSubpass: gpu.SubpassExternal,
			DstSubpass: 0,
			SrcStage:   gpu.StageColorAttachmentOutput,
			DstStage:   gpu.StageColorAttachmentOutput,
			DstAccess:  gpu.AccessColorAttachmentRead | gpu.AccessColorAttachmentWrite,
		}, {
			SrcSubpass: gpu.SubpassExternal,
			DstSubpass: 0,
			SrcStage:   gpu.StageEarlyFragmentTests | gpu.StageLateFragmentTests,
			DstStage:   gpu.StageEarlyFragmentTests | gpu.StageLateFragmentTests,
			DstAccess:  gpu.AccessDepthStencilAttachmentWrite,
		}},
	}
}
