package shaders

import (
	_ "embed"
)

//go:embed skinning.wgsl
var SkinningWGSL string
