package render

// Per-draw uniform table capacities. These are a consequence of the uniform
// block size ceiling on the lowest targeted backends; a storage-buffer backend
// could size them per skeleton instead. The FrameUniforms memory layout
// depends on them, so they are compile-time constants rather than Limits
// fields.
const (
	MaxBones        = 100
	MaxSlots        = 100
	MaxAttachments  = 100
	MaxDeformFloats = 2000
)

// MaxBakedVertices is the hard ceiling on baked vertices: indices upload in
// uint16 format, so no bake can address more. Bake caps Limits.MaxVertices
// here regardless of configuration.
const MaxBakedVertices = 1 << 16

// Limits configures bake-time buffer capacities. Baking never grows past
// them; content that does not fit is rejected with a CapacityError.
// MaxVertices is capped at MaxBakedVertices, the uint16 index-format ceiling.
type Limits struct {
	MaxVertices int
	MaxIndices  int
}

// DefaultLimits covers every stock Spine example skeleton with room to spare
// while keeping indices in uint16 range.
func DefaultLimits() Limits {
	return Limits{
		MaxVertices: 16384,
		MaxIndices:  49152,
	}
}
