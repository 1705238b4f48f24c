// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gpu

// Enumerations keep the numeric values of the underlying Vulkan enums so
// that a backend can convert them with a plain cast.

// Format is a pixel or vertex attribute format.
type Format uint32

// Formats used by the renderer
const (
	FormatUndefined          Format = 0
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR32G32Sfloat       Format = 103
	FormatR32G32B32Sfloat    Format = 106
	FormatR32G32B32A32Sfloat Format = 109
	FormatD32Sfloat          Format = 126
)

// ColorSpace of a presentable surface
type ColorSpace uint32

// ColorSpaceSrgbNonlinear is the only color space required everywhere.
const ColorSpaceSrgbNonlinear ColorSpace = 0

// PresentMode of a swapchain
type PresentMode uint32

// Present modes
const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

// ImageLayout of an image subresource
type ImageLayout uint32

// Image layouts
const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutGeneral                       ImageLayout = 1
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferSrcOptimal            ImageLayout = 6
	ImageLayoutTransferDstOptimal            ImageLayout = 7
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

// Access is a memory access mask.
type Access uint32

// Access bits
const (
	AccessNone                        Access = 0
	AccessShaderRead                  Access = 0x20
	AccessColorAttachmentRead         Access = 0x80
	AccessColorAttachmentWrite        Access = 0x100
	AccessDepthStencilAttachmentRead  Access = 0x200
	AccessDepthStencilAttachmentWrite Access = 0x400
	AccessTransferRead                Access = 0x800
	AccessTransferWrite               Access = 0x1000
)

// PipelineStage is a pipeline stage mask.
type PipelineStage uint32

// Pipeline stage bits
const (
	StageTopOfPipe             PipelineStage = 0x1
	StageVertexShader          PipelineStage = 0x8
	StageFragmentShader        PipelineStage = 0x80
	StageEarlyFragmentTests    PipelineStage = 0x100
	StageLateFragmentTests     PipelineStage = 0x200
	StageColorAttachmentOutput PipelineStage = 0x400
	StageTransfer              PipelineStage = 0x1000
	StageBottomOfPipe          PipelineStage = 0x2000
)

// BufferUsage flags
type BufferUsage uint32

// Buffer usage bits
const (
	BufferUsageTransferSrc BufferUsage = 0x1
	BufferUsageTransferDst BufferUsage = 0x2
	BufferUsageUniform     BufferUsage = 0x10
	BufferUsageStorage     BufferUsage = 0x20
	BufferUsageIndex       BufferUsage = 0x40
	BufferUsageVertex      BufferUsage = 0x80
)

// ImageUsage flags
type ImageUsage uint32

// Image usage bits
const (
	ImageUsageTransferSrc            ImageUsage = 0x1
	ImageUsageTransferDst            ImageUsage = 0x2
	ImageUsageSampled                ImageUsage = 0x4
	ImageUsageColorAttachment        ImageUsage = 0x10
	ImageUsageDepthStencilAttachment ImageUsage = 0x20
)

// ImageAspect selects color or depth data of an image.
type ImageAspect uint32

// Image aspects
const (
	AspectColor ImageAspect = 0x1
	AspectDepth ImageAspect = 0x2
)

// ShaderStage flags
type ShaderStage uint32

// Shader stage bits
const (
	ShaderStageVertex   ShaderStage = 0x1
	ShaderStageGeometry ShaderStage = 0x8
	ShaderStageFragment ShaderStage = 0x10
)

// DescriptorType of a descriptor set binding
type DescriptorType uint32

// Descriptor types
const (
	DescriptorTypeUniformBuffer        DescriptorType = 6
	DescriptorTypeStorageBuffer        DescriptorType = 7
	DescriptorTypeUniformBufferDynamic DescriptorType = 8
)

// IndexType of an index buffer
type IndexType uint32

// Index types
const (
	IndexTypeUint16 IndexType = 0
	IndexTypeUint32 IndexType = 1
)

// PrimitiveTopology for input assembly
type PrimitiveTopology uint32

// Topologies
const (
	TopologyPointList    PrimitiveTopology = 0
	TopologyLineList     PrimitiveTopology = 1
	TopologyTriangleList PrimitiveTopology = 3
)

// PolygonMode for rasterization
type PolygonMode uint32

// Polygon modes
const (
	PolygonModeFill PolygonMode = 0
	PolygonModeLine PolygonMode = 1
)

// CullMode for rasterization
type CullMode uint32

// Cull modes
const (
	CullModeNone  CullMode = 0
	CullModeFront CullMode = 1
	CullModeBack  CullMode = 2
)

// FrontFace winding
type FrontFace uint32

// Windings
const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

// CompareOp for depth testing
type CompareOp uint32

// Compare operations
const (
	CompareOpNever       CompareOp = 0
	CompareOpLess        CompareOp = 1
	CompareOpLessOrEqual CompareOp = 3
	CompareOpAlways      CompareOp = 7
)

// ColorComponent write mask
type ColorComponent uint32

// ColorComponentAll enables writes to all four channels.
const ColorComponentAll ColorComponent = 0xf

// AttachmentLoadOp of a render pass attachment
type AttachmentLoadOp uint32

// Load ops
const (
	LoadOpLoad     AttachmentLoadOp = 0
	LoadOpClear    AttachmentLoadOp = 1
	LoadOpDontCare AttachmentLoadOp = 2
)

// AttachmentStoreOp of a render pass attachment
type AttachmentStoreOp uint32

// Store ops
const (
	StoreOpStore    AttachmentStoreOp = 0
	StoreOpDontCare AttachmentStoreOp = 1
)

// VertexInputRate of a vertex binding
type VertexInputRate uint32

// Input rates
const (
	InputRateVertex   VertexInputRate = 0
	InputRateInstance VertexInputRate = 1
)

// AdapterType is the physical device category.
type AdapterType uint32

// Adapter types
const (
	AdapterOther      AdapterType = 0
	AdapterIntegrated AdapterType = 1
	AdapterDiscrete   AdapterType = 2
	AdapterVirtual    AdapterType = 3
	AdapterCPU        AdapterType = 4
)

func (t AdapterType) String() string {
	switch t {
	case AdapterIntegrated:
		return "integrated"
	case AdapterDiscrete:
		return "discrete"
	case AdapterVirtual:
		return "virtual"
	case AdapterCPU:
		return "cpu"
	}
	return "other"
}

// CompositeAlpha mode of a swapchain
type CompositeAlpha uint32

// Composite alpha bits
const (
	CompositeAlphaOpaque         CompositeAlpha = 0x1
	CompositeAlphaPreMultiplied  CompositeAlpha = 0x2
	CompositeAlphaPostMultiplied CompositeAlpha = 0x4
	CompositeAlphaInherit        CompositeAlpha = 0x8
)

// SurfaceTransform of a swapchain
type SurfaceTransform uint32

// SurfaceTransformIdentity leaves the image as is.
const SurfaceTransformIdentity SurfaceTransform = 0x1

// CommandBufferUsage passed when recording begins
type CommandBufferUsage uint32

// Command buffer usage bits
const (
	UsageOneTimeSubmit CommandBufferUsage = 0x1
)

// CommandPoolFlags of a command pool
type CommandPoolFlags uint32

// Command pool bits
const (
	PoolTransient          CommandPoolFlags = 0x1
	PoolResetCommandBuffer CommandPoolFlags = 0x2
)

// MemoryUsage expresses where an allocation should live. The backend maps it
// to concrete memory property flags.
type MemoryUsage int

// Residency intents
const (
	MemoryUnknown MemoryUsage = iota
	// MemoryGPUOnly is device-local and not host visible.
	MemoryGPUOnly
	// MemoryCPUOnly is host visible and coherent, used for staging.
	MemoryCPUOnly
	// MemoryCPUToGPU is host visible, written every frame and read by the GPU.
	MemoryCPUToGPU
	// MemoryGPUToCPU is host visible and cached, used for readback.
	MemoryGPUToCPU
)

func (m MemoryUsage) String() string {
	switch m {
	case MemoryGPUOnly:
		return "gpu-only"
	case MemoryCPUOnly:
		return "cpu-only"
	case MemoryCPUToGPU:
		return "cpu-to-gpu"
	case MemoryGPUToCPU:
		return "gpu-to-cpu"
	}
	return "unknown"
}

// HostVisible reports if the CPU can map memory of this usage.
func (m MemoryUsage) HostVisible() bool {
	return m == MemoryCPUOnly || m == MemoryCPUToGPU || m == MemoryGPUToCPU
}

// SubpassExternal refers to commands outside of the render pass.
const SubpassExternal = ^uint32(0)

// Extent2D is a size in pixels.
type Extent2D struct {
	Width, Height uint32
}

// Extent3D is a size in texels.
type Extent3D struct {
	Width, Height, Depth uint32
}

// Offset2D is a signed pixel offset.
type Offset2D struct {
	X, Y int32
}

// Rect2D is a pixel rectangle.
type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

// Viewport transform
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// BufferDescriptor describes a buffer allocation request.
type BufferDescriptor struct {
	Size   uint64
	Usage  BufferUsage
	Memory MemoryUsage
}

// ImageDescriptor describes a 2D image allocation request.
type ImageDescriptor struct {
	Format Format
	Extent Extent3D
	Usage  ImageUsage
	Memory MemoryUsage
}

// ImageViewDescriptor describes a 2D view over a whole image.
type ImageViewDescriptor struct {
	Image  Image
	Format Format
	Aspect ImageAspect
}

// SubmitInfo is one batch of a queue submission.
type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

// SwapchainDescriptor describes a swapchain to create.
type SwapchainDescriptor struct {
	Surface        Surface
	MinImageCount  uint32
	Format         Format
	ColorSpace     ColorSpace
	Extent         Extent2D
	Usage          ImageUsage
	Transform      SurfaceTransform
	CompositeAlpha CompositeAlpha
	PresentMode    PresentMode
	Old            Swapchain
}

// Attachment of a render pass
type Attachment struct {
	Format        Format
	LoadOp        AttachmentLoadOp
	StoreOp       AttachmentStoreOp
	InitialLayout ImageLayout
	FinalLayout   ImageLayout
}

// SubpassDependency is an execution and memory dependency of the subpass.
type SubpassDependency struct {
	SrcSubpass, DstSubpass uint32
	SrcStage, DstStage     PipelineStage
	SrcAccess, DstAccess   Access
}

// RenderPassDescriptor describes a single subpass render pass with one color
// attachment and an optional depth attachment.
type RenderPassDescriptor struct {
	Color        Attachment
	Depth        *Attachment
	Dependencies []SubpassDependency
}

// FramebufferDescriptor binds image views to a render pass.
type FramebufferDescriptor struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Extent      Extent2D
}

// DescriptorBinding is one binding of a descriptor set layout.
type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

// DescriptorPoolSize is the capacity for one descriptor type.
type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

// DescriptorPoolDescriptor describes a descriptor pool.
type DescriptorPoolDescriptor struct {
	MaxSets uint32
	Sizes   []DescriptorPoolSize
}

// DescriptorWrite points a buffer binding of a set at a buffer range.
type DescriptorWrite struct {
	Set     DescriptorSet
	Binding uint32
	Type    DescriptorType
	Buffer  Buffer
	Offset  uint64
	Range   uint64
}

// PushConstantRange of a pipeline layout
type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

// PipelineLayoutDescriptor describes a pipeline layout.
type PipelineLayoutDescriptor struct {
	SetLayouts    []DescriptorSetLayout
	PushConstants []PushConstantRange
}

// ShaderStageDescriptor is one programmable stage of a pipeline.
type ShaderStageDescriptor struct {
	Stage  ShaderStage
	Module ShaderModule
	Entry  string
}

// VertexBinding describes one vertex buffer binding.
type VertexBinding struct {
	Binding uint32
	Stride  uint32
	Rate    VertexInputRate
}

// VertexAttribute describes one attribute read from a binding.
type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

// VertexInput state of a pipeline
type VertexInput struct {
	Bindings   []VertexBinding
	Attributes []VertexAttribute
}

// InputAssembly state of a pipeline
type InputAssembly struct {
	Topology         PrimitiveTopology
	PrimitiveRestart bool
}

// Rasterization state of a pipeline
type Rasterization struct {
	PolygonMode PolygonMode
	CullMode    CullMode
	FrontFace   FrontFace
	LineWidth   float32
}

// Multisample state of a pipeline
type Multisample struct {
	Samples          uint32
	MinSampleShading float32
}

// ColorBlendAttachment state of a pipeline
type ColorBlendAttachment struct {
	WriteMask   ColorComponent
	BlendEnable bool
}

// DepthStencil state of a pipeline
type DepthStencil struct {
	DepthTest  bool
	DepthWrite bool
	CompareOp  CompareOp
}

// GraphicsPipelineDescriptor is the complete state of a graphics pipeline.
type GraphicsPipelineDescriptor struct {
	Stages        []ShaderStageDescriptor
	VertexInput   VertexInput
	InputAssembly InputAssembly
	Viewport      Viewport
	Scissor       Rect2D
	Rasterization Rasterization
	Multisample   Multisample
	ColorBlend    ColorBlendAttachment
	DepthStencil  *DepthStencil
	Layout        PipelineLayout
	RenderPass    RenderPass
	Subpass       uint32
}

// ClearValue for one attachment
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
	IsDepth bool
}

// ClearColor returns a color clear value.
func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

// ClearDepth returns a depth/stencil clear value.
func ClearDepth(depth float32, stencil uint32) ClearValue {
	return ClearValue{Depth: depth, Stencil: stencil, IsDepth: true}
}

// RenderPassBegin describes how a render pass instance starts.
type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Area        Rect2D
	ClearValues []ClearValue
}

// BufferCopy region
type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// BufferImageCopy region, always the first mip level and layer.
type BufferImageCopy struct {
	BufferOffset uint64
	Aspect       ImageAspect
	Extent       Extent3D
}

// ImageBarrier is an image memory barrier with a layout transition.
type ImageBarrier struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcAccess Access
	DstAccess Access
	Aspect    ImageAspect
}

// SurfaceFormat pairs a format with a color space.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// SurfaceCapabilities of a physical device for a surface
type SurfaceCapabilities struct {
	MinImageCount           uint32
	MaxImageCount           uint32
	CurrentExtent           Extent2D
	MinImageExtent          Extent2D
	MaxImageExtent          Extent2D
	CurrentTransform        SurfaceTransform
	SupportedCompositeAlpha CompositeAlpha
}

// QueueFamily capabilities
type QueueFamily struct {
	Index      uint32
	QueueCount uint32
	Graphics   bool
	Present    bool
}

// Limits are the device limits the renderer depends on.
type Limits struct {
	MaxImageDimension2D             uint32
	MinUniformBufferOffsetAlignment uint64
}

// Features are the optional device features the renderer depends on.
type Features struct {
	GeometryShader bool
}

// PhysicalDeviceInfo describes an adapter and, when a surface was given, its
// presentation support for that surface.
type PhysicalDeviceInfo struct {
	Device        PhysicalDevice `json:"-"`
	Name          string
	Type          AdapterType
	ID            uint32
	VendorID      uint32
	DriverVersion uint32
	APIVersion    Version
	Memory        uint64
	Limits        Limits
	Features      Features
	Extensions    []string
	Layers        []string
	QueueFamilies []QueueFamily

	SurfaceFormats []SurfaceFormat
	PresentModes   []PresentMode
	Capabilities   SurfaceCapabilities
}

// HasExtension reports if the device advertises the named extension.
func (p *PhysicalDeviceInfo) HasExtension(name string) bool {
	for _, ext := range p.Extensions {
		if ext == name {
			return true
		}
	}
	return false
}
