package render

import (
	"github.com/cogentcore/webgpu/wgpu"

	spinegpu "github.com/gekko3d/spinegpu"
	"github.com/gekko3d/spinegpu/spine"
)

func blend(colorSrc, colorDst, alphaSrc, alphaDst wgpu.BlendFactor) wgpu.BlendState {
	return wgpu.BlendState{
		Color: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: colorSrc,
			DstFactor: colorDst,
		},
		Alpha: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: alphaSrc,
			DstFactor: alphaDst,
		},
	}
}

// ResolveBlend maps a slot blend mode and the skeleton's premultiplied-alpha
// convention to explicit blend factors. All 4x2 combinations are hardcoded;
// there is no failure mode. Values outside the known modes degrade to normal
// blending, which ResolveBlendLogged reports.
func ResolveBlend(mode spine.BlendMode, premultipliedAlpha bool) wgpu.BlendState {
	switch mode {
	case spine.BlendAdditive:
		if premultipliedAlpha {
			return blend(
				wgpu.BlendFactorOne, wgpu.BlendFactorOne,
				wgpu.BlendFactorOne, wgpu.BlendFactorOne,
			)
		}
		return blend(
			wgpu.BlendFactorSrcAlpha, wgpu.BlendFactorOne,
			wgpu.BlendFactorOne, wgpu.BlendFactorOne,
		)

	case spine.BlendMultiply:
		// Identical for both alpha conventions.
		return blend(
			wgpu.BlendFactorDst, wgpu.BlendFactorOneMinusSrcAlpha,
			wgpu.BlendFactorOneMinusSrcAlpha, wgpu.BlendFactorOneMinusSrcAlpha,
		)

	case spine.BlendScreen:
		// Identical for both alpha conventions.
		return blend(
			wgpu.BlendFactorOne, wgpu.BlendFactorOneMinusSrcAlpha,
			wgpu.BlendFactorOneMinusSrc, wgpu.BlendFactorOneMinusSrcAlpha,
		)

	case spine.BlendNormal:
		if premultipliedAlpha {
			return blend(
				wgpu.BlendFactorOne, wgpu.BlendFactorOneMinusSrcAlpha,
				wgpu.BlendFactorOne, wgpu.BlendFactorOneMinusSrcAlpha,
			)
		}
		return blend(
			wgpu.BlendFactorSrcAlpha, wgpu.BlendFactorOneMinusSrcAlpha,
			wgpu.BlendFactorOne, wgpu.BlendFactorOneMinusSrcAlpha,
		)
	}

	return ResolveBlend(spine.BlendNormal, premultipliedAlpha)
}

// ResolveBlendLogged is ResolveBlend with a warning when the mode is outside
// the known table. The dispatcher uses this variant so degraded assets are
// visible in logs without failing the frame.
func ResolveBlendLogged(mode spine.BlendMode, premultipliedAlpha bool, log spinegpu.Logger) wgpu.BlendState {
	if mode < spine.BlendNormal || mode > spine.BlendScreen {
		log.Warnf("unsupported blend mode %d, using normal", mode)
		mode = spine.BlendNormal
	}
	return ResolveBlend(mode, premultipliedAlpha)
}
