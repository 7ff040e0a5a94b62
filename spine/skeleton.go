package spine

import (
	"github.com/chewxy/math32"
)

// Bone is the live pose state of one bone. The world transform is the 2D
// affine matrix
//
//	| A  B  WorldX |
//	| C  D  WorldY |
//
// recomputed by Skeleton.UpdateWorldTransform from the local transform and the
// parent chain.
type Bone struct {
	Data   *BoneData
	Parent *Bone
	Active bool

	X, Y     float32
	Rotation float32
	ScaleX   float32
	ScaleY   float32

	A, B, C, D     float32
	WorldX, WorldY float32
}

// SetToSetupPose resets the local transform to the setup pose from BoneData.
func (b *Bone) SetToSetupPose() {
	b.X = b.Data.X
	b.Y = b.Data.Y
	b.Rotation = b.Data.Rotation
	b.ScaleX = b.Data.ScaleX
	b.ScaleY = b.Data.ScaleY
}

func (b *Bone) updateWorldTransform() {
	cos := math32.Cos(b.Rotation * degRad)
	sin := math32.Sin(b.Rotation * degRad)
	la := cos * b.ScaleX
	lb := -sin * b.ScaleY
	lc := sin * b.ScaleX
	ld := cos * b.ScaleY

	p := b.Parent
	if p == nil {
		b.A, b.B, b.C, b.D = la, lb, lc, ld
		b.WorldX, b.WorldY = b.X, b.Y
		return
	}
	b.A = p.A*la + p.B*lc
	b.B = p.A*lb + p.B*ld
	b.C = p.C*la + p.D*lc
	b.D = p.C*lb + p.D*ld
	b.WorldX = p.A*b.X + p.B*b.Y + p.WorldX
	b.WorldY = p.C*b.X + p.D*b.Y + p.WorldY
}

// Slot is the live pose state of one slot: the currently bound attachment
// (which a skin change can rebind between frames) and the deform array a
// deform timeline writes into. An empty Deform means no active deform.
type Slot struct {
	Data       *SlotData
	Bone       *Bone
	Color      Color
	attachment Attachment
	Deform     []float32
}

// Attachment returns the currently bound attachment, or nil.
func (s *Slot) Attachment() Attachment { return s.attachment }

// SetAttachment rebinds the slot's attachment and discards any deform state,
// which is only meaningful for the attachment it was keyed against.
func (s *Slot) SetAttachment(attachment Attachment) {
	if s.attachment != attachment {
		s.attachment = attachment
		s.Deform = s.Deform[:0]
	}
}

// Skeleton is a live, animatable skeleton pose. Bones and Slots are indexed by
// their data index; DrawOrder holds the same slots in visual layering order.
type Skeleton struct {
	Data      *SkeletonData
	Bones     []*Bone
	Slots     []*Slot
	DrawOrder []*Slot
	Skin      *Skin

	// PremultipliedAlpha records the color convention of the skeleton's atlas
	// textures and selects the matching blend-factor table at draw time.
	PremultipliedAlpha bool
}

// NewSkeleton instantiates a live pose from skeleton data, at the setup pose,
// with the first skin (if any) applied.
func NewSkeleton(data *SkeletonData) *Skeleton {
	sk := &Skeleton{Data: data}

	sk.Bones = make([]*Bone, len(data.Bones))
	for i, bd := range data.Bones {
		bone := &Bone{Data: bd, Active: true}
		if bd.Parent != nil {
			bone.Parent = sk.Bones[bd.Parent.Index]
		}
		sk.Bones[i] = bone
	}

	sk.Slots = make([]*Slot, len(data.Slots))
	sk.DrawOrder = make([]*Slot, len(data.Slots))
	for i, sd := range data.Slots {
		slot := &Slot{Data: sd, Bone: sk.Bones[sd.BoneData.Index]}
		sk.Slots[i] = slot
		sk.DrawOrder[i] = slot
	}

	if len(data.Skins) > 0 {
		sk.Skin = data.Skins[0]
	}
	sk.SetToSetupPose()
	sk.UpdateWorldTransform()
	return sk
}

// SetToSetupPose resets every bone local transform and slot binding to the
// setup pose described by the skeleton data.
func (sk *Skeleton) SetToSetupPose() {
	for _, b := range sk.Bones {
		b.SetToSetupPose()
	}
	for _, s := range sk.Slots {
		s.Color = s.Data.Color
		s.Deform = s.Deform[:0]
		s.attachment = nil
		if sk.Skin != nil && s.Data.AttachmentName != "" {
			s.attachment = sk.Skin.Attachment(s.Data.Index, s.Data.AttachmentName)
		}
	}
}

// SetSkin switches the active skin and rebinds every slot whose setup
// attachment name resolves in the new skin.
func (sk *Skeleton) SetSkin(name string) bool {
	skin := sk.Data.FindSkin(name)
	if skin == nil {
		return false
	}
	sk.Skin = skin
	for _, s := range sk.Slots {
		if s.Data.AttachmentName == "" {
			continue
		}
		if a := skin.Attachment(s.Data.Index, s.Data.AttachmentName); a != nil {
			s.SetAttachment(a)
		}
	}
	return true
}

// SetAttachment binds the named attachment from the active skin to the named
// slot. An empty attachment name clears the slot.
func (sk *Skeleton) SetAttachment(slotName, attachmentName string) bool {
	sd := sk.Data.FindSlot(slotName)
	if sd == nil {
		return false
	}
	slot := sk.Slots[sd.Index]
	if attachmentName == "" {
		slot.SetAttachment(nil)
		return true
	}
	if sk.Skin == nil {
		return false
	}
	a := sk.Skin.Attachment(sd.Index, attachmentName)
	if a == nil {
		return false
	}
	slot.SetAttachment(a)
	return true
}

// UpdateWorldTransform recomputes every bone's world affine transform.
// Bones are stored parent-first, so a single index-order pass suffices.
// Inactive bones keep their last-known world transform so that their table
// slots stay valid for vertices that still index them.
func (sk *Skeleton) UpdateWorldTransform() {
	for _, b := range sk.Bones {
		if !b.Active {
			continue
		}
		b.updateWorldTransform()
	}
}
