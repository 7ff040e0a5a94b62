package render

import (
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/spinegpu/shaders"
	"github.com/gekko3d/spinegpu/spine"
)

func vertexBufferLayout() wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(unsafe.Sizeof(Vertex{})),
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{ShaderLocation: 0, Offset: 0, Format: wgpu.VertexFormatFloat32x2},  // pos0
			{ShaderLocation: 1, Offset: 8, Format: wgpu.VertexFormatFloat32x2},  // pos1
			{ShaderLocation: 2, Offset: 16, Format: wgpu.VertexFormatFloat32x2}, // pos2
			{ShaderLocation: 3, Offset: 24, Format: wgpu.VertexFormatFloat32x2}, // pos3
			{ShaderLocation: 4, Offset: 32, Format: wgpu.VertexFormatFloat32x4}, // bone weights
			{ShaderLocation: 5, Offset: 48, Format: wgpu.VertexFormatSint32x4},  // bone indices
			{ShaderLocation: 6, Offset: 64, Format: wgpu.VertexFormatSint32x4},  // attachment descriptor
			{ShaderLocation: 7, Offset: 80, Format: wgpu.VertexFormatFloat32x4}, // color
			{ShaderLocation: 8, Offset: 96, Format: wgpu.VertexFormatFloat32x2}, // uv
		},
	}
}

type pipelineKey struct {
	mode spine.BlendMode
	pma  bool
}

// Pipelines builds and caches one render pipeline per (blend mode,
// premultiplied-alpha) combination. wgpu fixes blend state at pipeline
// creation, so per-slot blend resolution selects a pipeline instead of
// mutating render state.
type Pipelines struct {
	device *wgpu.Device
	format wgpu.TextureFormat

	shader        *wgpu.ShaderModule
	layout        *wgpu.PipelineLayout
	UniformLayout *wgpu.BindGroupLayout
	TextureLayout *wgpu.BindGroupLayout

	byBlend map[pipelineKey]*wgpu.RenderPipeline
}

// NewPipelines compiles the skinning shader and creates the bind group
// layouts. Pipelines themselves are created lazily per blend state.
func NewPipelines(device *wgpu.Device, surfaceFormat wgpu.TextureFormat) (*Pipelines, error) {
	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "SkinningShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.SkinningWGSL},
	})
	if err != nil {
		return nil, err
	}

	uniformLayout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "SkinningUniformBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: uint64(unsafe.Sizeof(FrameUniforms{})),
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	textureLayout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "SkinningTextureBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	layout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{uniformLayout, textureLayout},
	})
	if err != nil {
		return nil, err
	}

	return &Pipelines{
		device:        device,
		format:        surfaceFormat,
		shader:        shader,
		layout:        layout,
		UniformLayout: uniformLayout,
		TextureLayout: textureLayout,
		byBlend:       map[pipelineKey]*wgpu.RenderPipeline{},
	}, nil
}

// Get returns the pipeline for a blend mode and alpha convention, creating it
// on first use. At most 8 pipelines exist.
func (p *Pipelines) Get(mode spine.BlendMode, premultipliedAlpha bool) (*wgpu.RenderPipeline, error) {
	key := pipelineKey{mode, premultipliedAlpha}
	if pipeline, ok := p.byBlend[key]; ok {
		return pipeline, nil
	}

	blendState := ResolveBlend(mode, premultipliedAlpha)
	pipeline, err := p.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "SkinningPipeline",
		Layout: p.layout,
		Vertex: wgpu.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{vertexBufferLayout()},
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    p.format,
					Blend:     &blendState,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			// Bones flip via negative scale all the time in 2D rigs, so
			// culling stays off; the baked winding still matters for hosts
			// that enable it.
			CullMode: wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count:                  1,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
	})
	if err != nil {
		return nil, err
	}
	p.byBlend[key] = pipeline
	return pipeline, nil
}

// Release frees the shader, layouts and every cached pipeline.
func (p *Pipelines) Release() {
	for _, pipeline := range p.byBlend {
		pipeline.Release()
	}
	p.byBlend = map[pipelineKey]*wgpu.RenderPipeline{}
	p.layout.Release()
	p.TextureLayout.Release()
	p.UniformLayout.Release()
	p.shader.Release()
}
