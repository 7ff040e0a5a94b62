package render

import (
	"sort"

	"github.com/chewxy/math32"

	spinegpu "github.com/gekko3d/spinegpu"
	"github.com/gekko3d/spinegpu/spine"
)

// Attachment type tags baked into each vertex and read by the vertex shader
// to decide how bone binding and deform offsets apply.
const (
	tagRegion         int32 = 0
	tagMeshUnweighted int32 = 1
	tagMeshWeighted   int32 = 2
)

const weightEpsilon = 1e-4

// Vertex is the baked GPU vertex. Field order and types define the vertex
// buffer layout; vertexBufferLayout() must stay in sync.
//
// Positions holds up to 4 candidate local positions, one per bone influence.
// Attachment is the descriptor (attachment index, type tag, within-attachment
// vertex index, unused) the shader uses to resolve the slot, bone and deform
// offset for this vertex each frame.
type Vertex struct {
	Positions   [8]float32
	BoneWeights [4]float32
	BoneIndices [4]int32
	Attachment  [4]int32
	Color       [4]float32
	UV          [2]float32
}

// AttachmentMeta locates one baked attachment inside the shared buffers.
type AttachmentMeta struct {
	Name      string
	SlotIndex int
	// AttachmentIndex is the position of this entry in Baked.Meta and the
	// value written into each vertex's attachment descriptor.
	AttachmentIndex int32
	TypeTag         int32
	Page            spine.PageID
	// SlotBoneBinding marks attachments that draw with whatever bone owns the
	// slot at frame time (regions and unweighted meshes) instead of the baked
	// per-vertex bone indices.
	SlotBoneBinding bool

	VertexStart uint32
	VertexCount uint32
	IndexStart  uint32
	IndexCount  uint32
}

type metaKey struct {
	slot int
	name string
}

// Baked is the immutable result of baking one skeleton+skin: the flat vertex
// and index data and per-attachment metadata. Safe for concurrent reads.
type Baked struct {
	Vertices []Vertex
	Indices  []uint16
	Meta     []AttachmentMeta

	byKey map[metaKey]int32
}

// MetaFor returns the metadata for the named attachment baked under the given
// slot, or nil if it was not baked (e.g. a clipping attachment).
func (b *Baked) MetaFor(slotIndex int, name string) *AttachmentMeta {
	if i, ok := b.byKey[metaKey{slotIndex, name}]; ok {
		return &b.Meta[i]
	}
	return nil
}

type baker struct {
	limits Limits
	log    spinegpu.Logger
	out    *Baked
}

// Bake walks every attachment of the skeleton's active skin and flattens them
// into a single vertex/index buffer pair plus per-attachment metadata. It runs
// once per loaded skeleton; a skin or topology change requires a full re-bake.
//
// The walk order is deterministic: slots by slot index, then each slot's skin
// attachments by name. That order fixes every attachment's buffer range, so
// repeated bakes of the same data are identical.
//
// Content whose topology cannot fit the per-frame uniform tables (too many
// bones, slots or attachments) is rejected here rather than left to truncate
// every frame: baked vertices address those tables directly, so an overflowed
// index would sample some other slot's bindings at draw time.
func Bake(sk *spine.Skeleton, limits Limits, log spinegpu.Logger) (*Baked, error) {
	if n := len(sk.Bones); n > MaxBones {
		return nil, &CapacityError{Resource: "bones", Limit: MaxBones, Needed: n}
	}
	if n := len(sk.Slots); n > MaxSlots {
		return nil, &CapacityError{Resource: "slots", Limit: MaxSlots, Needed: n}
	}
	if limits.MaxVertices > MaxBakedVertices {
		log.Warnf("vertex limit %d exceeds the uint16 index ceiling, capping at %d",
			limits.MaxVertices, MaxBakedVertices)
		limits.MaxVertices = MaxBakedVertices
	}

	b := &baker{
		limits: limits,
		log:    log,
		out:    &Baked{byKey: map[metaKey]int32{}},
	}

	if sk.Skin == nil {
		return b.out, nil
	}

	for _, slot := range sk.Slots {
		bySlot := sk.Skin.Attachments[slot.Data.Index]
		if len(bySlot) == 0 {
			continue
		}
		names := make([]string, 0, len(bySlot))
		for name := range bySlot {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if err := b.bakeAttachment(slot, bySlot[name]); err != nil {
				return nil, err
			}
		}
	}

	log.Debugf("baked %d attachments: %d vertices, %d indices",
		len(b.out.Meta), len(b.out.Vertices), len(b.out.Indices))
	return b.out, nil
}

func (b *baker) bakeAttachment(slot *spine.Slot, attachment spine.Attachment) error {
	vertexStart := uint32(len(b.out.Vertices))
	indexStart := uint32(len(b.out.Indices))
	attachmentIndex := int32(len(b.out.Meta))
	if attachmentIndex >= MaxAttachments {
		return &CapacityError{
			Resource:   "attachments",
			Attachment: attachment.Name(),
			Limit:      MaxAttachments,
			Needed:     int(attachmentIndex) + 1,
		}
	}

	var typeTag int32
	var page spine.PageID
	slotBone := false

	switch a := attachment.(type) {
	case *spine.RegionAttachment:
		if err := b.checkCapacity(a.AttachmentName, 4, 6); err != nil {
			return err
		}
		b.bakeRegion(slot, a, attachmentIndex)
		typeTag, page, slotBone = tagRegion, a.Page, true

	case *spine.MeshAttachment:
		vc := a.VertexCount()
		if err := b.checkCapacity(a.AttachmentName, vc, len(a.Triangles)); err != nil {
			return err
		}
		if a.Weighted() {
			b.bakeWeightedMesh(a, attachmentIndex)
			typeTag = tagMeshWeighted
		} else {
			b.bakeUnweightedMesh(slot, a, attachmentIndex)
			typeTag = tagMeshUnweighted
			slotBone = true
		}
		page = a.Page

	default:
		// Clipping attachments contribute nothing to the baked geometry.
		return nil
	}

	b.out.Meta = append(b.out.Meta, AttachmentMeta{
		Name:            attachment.Name(),
		SlotIndex:       slot.Data.Index,
		AttachmentIndex: attachmentIndex,
		TypeTag:         typeTag,
		Page:            page,
		SlotBoneBinding: slotBone,
		VertexStart:     vertexStart,
		VertexCount:     uint32(len(b.out.Vertices)) - vertexStart,
		IndexStart:      indexStart,
		IndexCount:      uint32(len(b.out.Indices)) - indexStart,
	})
	b.out.byKey[metaKey{slot.Data.Index, attachment.Name()}] = attachmentIndex
	return nil
}

func (b *baker) checkCapacity(name string, vertices, indices int) error {
	if need := len(b.out.Vertices) + vertices; need > b.limits.MaxVertices {
		return &CapacityError{Resource: "vertices", Attachment: name, Limit: b.limits.MaxVertices, Needed: need}
	}
	if need := len(b.out.Indices) + indices; need > b.limits.MaxIndices {
		return &CapacityError{Resource: "indices", Attachment: name, Limit: b.limits.MaxIndices, Needed: need}
	}
	return nil
}

// bakeRegion emits the fixed two-triangle quad. The diagonal split and CCW
// winding match the pipeline's front-face convention; changing either flips
// backface culling for every region in every skeleton.
func (b *baker) bakeRegion(slot *spine.Slot, a *spine.RegionAttachment, attachmentIndex int32) {
	base := uint16(len(b.out.Vertices))
	boneIndex := int32(slot.Bone.Data.Index)

	for i := 0; i < 4; i++ {
		v := Vertex{
			BoneWeights: [4]float32{1, 0, 0, 0},
			BoneIndices: [4]int32{boneIndex, boneIndex, boneIndex, boneIndex},
			Attachment:  [4]int32{attachmentIndex, tagRegion, int32(i), 0},
			Color:       a.Color,
			UV:          [2]float32{a.UVs[i*2], a.UVs[i*2+1]},
		}
		v.Positions[0] = a.Offset[i*2]
		v.Positions[1] = a.Offset[i*2+1]
		b.out.Vertices = append(b.out.Vertices, v)
	}
	b.out.Indices = append(b.out.Indices,
		base, base+1, base+2,
		base+2, base+3, base,
	)
}

func (b *baker) bakeUnweightedMesh(slot *spine.Slot, a *spine.MeshAttachment, attachmentIndex int32) {
	base := uint16(len(b.out.Vertices))
	boneIndex := int32(slot.Bone.Data.Index)

	for i := 0; i < a.VertexCount(); i++ {
		v := Vertex{
			BoneWeights: [4]float32{1, 0, 0, 0},
			BoneIndices: [4]int32{boneIndex, boneIndex, boneIndex, boneIndex},
			Attachment:  [4]int32{attachmentIndex, tagMeshUnweighted, int32(i), 0},
			Color:       a.Color,
			UV:          [2]float32{a.UVs[i*2], a.UVs[i*2+1]},
		}
		v.Positions[0] = a.Vertices[i*2]
		v.Positions[1] = a.Vertices[i*2+1]
		b.out.Vertices = append(b.out.Vertices, v)
	}
	for _, idx := range a.Triangles {
		b.out.Indices = append(b.out.Indices, base+idx)
	}
}

// bakeWeightedMesh parses the count-prefixed influence stream. Vertices with
// more than 4 influences keep the 4 first ones and are renormalized; weight
// sums off by more than weightEpsilon are renormalized as well rather than
// trusted.
func (b *baker) bakeWeightedMesh(a *spine.MeshAttachment, attachmentIndex int32) {
	base := uint16(len(b.out.Vertices))

	boneCursor := 0
	vertCursor := 0
	for i := 0; i < a.VertexCount(); i++ {
		n := int(a.Bones[boneCursor])
		boneCursor++

		v := Vertex{
			Attachment: [4]int32{attachmentIndex, tagMeshWeighted, int32(i), 0},
			Color:      a.Color,
			UV:         [2]float32{a.UVs[i*2], a.UVs[i*2+1]},
		}

		kept := n
		if kept > 4 {
			kept = 4
			b.log.Warnf("mesh %q vertex %d has %d bone influences, keeping the first 4",
				a.AttachmentName, i, n)
		}
		var sum float32
		for j := 0; j < kept; j++ {
			v.Positions[j*2] = a.Vertices[vertCursor]
			v.Positions[j*2+1] = a.Vertices[vertCursor+1]
			v.BoneWeights[j] = a.Vertices[vertCursor+2]
			v.BoneIndices[j] = a.Bones[boneCursor+j]
			sum += v.BoneWeights[j]
			vertCursor += 3
		}
		vertCursor += (n - kept) * 3
		boneCursor += n

		if math32.Abs(sum-1) > weightEpsilon && sum > 0 {
			for j := 0; j < kept; j++ {
				v.BoneWeights[j] /= sum
			}
		}
		// Unused influence lanes keep bone 0 with weight 0; the weighted sum
		// in the shader makes them no-ops.

		b.out.Vertices = append(b.out.Vertices, v)
	}

	for _, idx := range a.Triangles {
		b.out.Indices = append(b.out.Indices, base+idx)
	}
}
