package render

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	spinegpu "github.com/gekko3d/spinegpu"
	"github.com/gekko3d/spinegpu/spine"
)

// FrameUniforms is the per-draw uniform block. Its memory layout is exactly
// the WGSL Uniforms struct in shaders/skinning.wgsl: the flat int32 and
// float32 arrays are viewed there as arrays of vec4 (same bytes, stride 16),
// which keeps this struct free of padding while satisfying uniform-buffer
// array alignment.
//
// A FrameUniforms value is transient: Extract rebuilds it every frame and the
// renderer uploads it once per view. Reuse one value across frames to avoid
// per-frame allocation.
type FrameUniforms struct {
	World mgl32.Mat4
	View  mgl32.Mat4

	// Bones maps bone index -> 4x4 world transform. Indices never written
	// hold identity so that stale vertex references stay harmless.
	Bones [MaxBones]mgl32.Mat4

	// Deform is the flattened deform float pool; DeformOffsets maps slot
	// index -> start offset in it, or -1 for slots without an active deform.
	Deform        [MaxDeformFloats]float32
	DeformOffsets [MaxSlots]int32

	// SlotBones maps slot index -> bone index; AttachmentSlots maps baked
	// attachment index -> slot index (or -1 when the attachment is not bound
	// this frame). Both are rebuilt every frame because skins may rebind
	// attachments between frames.
	SlotBones       [MaxSlots]int32
	AttachmentSlots [MaxAttachments]int32
}

// NewFrameUniforms returns a FrameUniforms with identity matrices and empty
// tables, ready for the first Extract.
func NewFrameUniforms() *FrameUniforms {
	u := &FrameUniforms{
		World: mgl32.Ident4(),
		View:  mgl32.Ident4(),
	}
	for i := range u.Bones {
		u.Bones[i] = mgl32.Ident4()
	}
	u.clearTables()
	return u
}

func (u *FrameUniforms) clearTables() {
	for i := range u.DeformOffsets {
		u.DeformOffsets[i] = -1
	}
	for i := range u.SlotBones {
		u.SlotBones[i] = 0
	}
	for i := range u.AttachmentSlots {
		u.AttachmentSlots[i] = -1
	}
}

// Bytes returns the raw uniform block contents for queue.WriteBuffer. The
// slice aliases u and must not outlive it.
func (u *FrameUniforms) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(u)), int(unsafe.Sizeof(*u)))
}

// boneMat promotes a bone's 2D affine world transform to a 4x4 matrix
// (column-major, translation in the last column).
func boneMat(b *spine.Bone) mgl32.Mat4 {
	return mgl32.Mat4{
		b.A, b.C, 0, 0,
		b.B, b.D, 0, 0,
		0, 0, 1, 0,
		b.WorldX, b.WorldY, 0, 1,
	}
}

// Extract reads the live skeleton pose into the uniform tables: bone world
// transforms by bone index, then slot->bone and attachment->slot bindings and
// deform data in draw order. baked supplies the attachment->index mapping.
//
// Extraction is deterministic: calling it twice on an unchanged pose yields
// bit-identical tables. If the pose exceeds a table capacity the overflow is
// skipped and a CapacityError describing the first overflow is returned; the
// tables stay valid and the frame remains drawable.
func Extract(sk *spine.Skeleton, baked *Baked, u *FrameUniforms, log spinegpu.Logger) error {
	u.clearTables()
	var capErr error
	report := func(resource string, limit, needed int) {
		if capErr == nil {
			capErr = &CapacityError{Resource: resource, Limit: limit, Needed: needed}
		}
		log.Warnf("frame extraction: %s table full (need %d, capacity %d), truncating", resource, needed, limit)
	}

	// Bone pass, by bone index: that is the addressing scheme baked into the
	// vertices. Inactive bones keep their previous table entry so every other
	// index stays valid.
	if len(sk.Bones) > MaxBones {
		report("bones", MaxBones, len(sk.Bones))
	}
	for i, bone := range sk.Bones {
		if i >= MaxBones {
			break
		}
		if !bone.Active {
			continue
		}
		u.Bones[i] = boneMat(bone)
	}

	// Slot pass, in draw order. Attachment identity cannot be baked to a
	// slot because the active skin may rebind it between frames; the
	// attachment->slot table re-resolves it every frame.
	for _, slot := range sk.DrawOrder {
		slotIndex := slot.Data.Index
		if slotIndex >= MaxSlots {
			report("slots", MaxSlots, slotIndex+1)
			continue
		}
		u.SlotBones[slotIndex] = int32(slot.Bone.Data.Index)

		attachment := slot.Attachment()
		if attachment == nil {
			continue
		}
		meta := baked.MetaFor(slotIndex, attachment.Name())
		if meta == nil {
			continue
		}
		if int(meta.AttachmentIndex) >= MaxAttachments {
			report("attachments", MaxAttachments, int(meta.AttachmentIndex)+1)
			continue
		}
		u.AttachmentSlots[meta.AttachmentIndex] = int32(slotIndex)
	}

	// Deform pass, in draw order: append each active slot's deform floats to
	// the pool and record its start offset. Ranges never overlap because the
	// cursor only moves forward.
	cursor := 0
	for _, slot := range sk.DrawOrder {
		slotIndex := slot.Data.Index
		if slotIndex >= MaxSlots || len(slot.Deform) == 0 {
			continue
		}
		if cursor+len(slot.Deform) > MaxDeformFloats {
			report("deform", MaxDeformFloats, cursor+len(slot.Deform))
			continue
		}
		u.DeformOffsets[slotIndex] = int32(cursor)
		copy(u.Deform[cursor:], slot.Deform)
		cursor += len(slot.Deform)
	}

	return capErr
}
