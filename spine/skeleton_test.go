package spine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rigData() *SkeletonData {
	root := &BoneData{Index: 0, Name: "root", ScaleX: 1, ScaleY: 1}
	arm := &BoneData{Index: 1, Name: "arm", Parent: root, X: 10, Rotation: 90, ScaleX: 1, ScaleY: 1}
	hand := &BoneData{Index: 2, Name: "hand", Parent: arm, X: 5, ScaleX: 1, ScaleY: 1}

	data := &SkeletonData{
		Bones: []*BoneData{root, arm, hand},
		Slots: []*SlotData{
			{Index: 0, Name: "front", BoneData: hand, Color: ColorWhite, AttachmentName: "fist"},
			{Index: 1, Name: "back", BoneData: arm, Color: Color{0.5, 0.5, 0.5, 1}},
		},
	}

	fist := &RegionAttachment{AttachmentName: "fist", ScaleX: 1, ScaleY: 1, Width: 8, Height: 8, Color: ColorWhite}
	fist.UpdateOffset()
	open := &RegionAttachment{AttachmentName: "open", ScaleX: 1, ScaleY: 1, Width: 8, Height: 8, Color: ColorWhite}
	open.UpdateOffset()

	base := NewSkin("default")
	base.SetAttachment(0, "fist", fist)
	base.SetAttachment(0, "open", open)

	alt := NewSkin("robot")
	alt.SetAttachment(0, "fist", open)

	data.Skins = []*Skin{base, alt}
	return data
}

func TestNewSkeletonSetupPose(t *testing.T) {
	sk := NewSkeleton(rigData())

	require.Len(t, sk.Bones, 3)
	require.Len(t, sk.Slots, 2)
	assert.Equal(t, sk.Slots[0], sk.DrawOrder[0], "setup draw order is slot index order")

	assert.Equal(t, "default", sk.Skin.Name, "first skin applies automatically")
	require.NotNil(t, sk.Slots[0].Attachment())
	assert.Equal(t, "fist", sk.Slots[0].Attachment().Name())
	assert.Nil(t, sk.Slots[1].Attachment(), "slot without setup attachment stays empty")

	assert.Equal(t, Color{0.5, 0.5, 0.5, 1}, sk.Slots[1].Color)
	for _, b := range sk.Bones {
		assert.True(t, b.Active)
	}
}

func TestUpdateWorldTransformComposition(t *testing.T) {
	sk := NewSkeleton(rigData())

	// arm: translate 10 along x, rotate 90. hand: 5 along arm's local x,
	// which now points along world +y.
	hand := sk.Bones[2]
	assert.InDelta(t, 10.0, hand.WorldX, 1e-4)
	assert.InDelta(t, 5.0, hand.WorldY, 1e-4)

	// The hand inherits the 90-degree rotation: its world x axis is (0, 1).
	assert.InDelta(t, 0.0, hand.A, 1e-4)
	assert.InDelta(t, 1.0, hand.C, 1e-4)

	// Moving the root drags the whole chain.
	sk.Bones[0].X = 100
	sk.UpdateWorldTransform()
	assert.InDelta(t, 110.0, hand.WorldX, 1e-4)
}

func TestUpdateWorldTransformNegativeScale(t *testing.T) {
	sk := NewSkeleton(rigData())
	sk.Bones[0].ScaleX = -1
	sk.UpdateWorldTransform()

	// Mirroring flips the x axis of every descendant.
	hand := sk.Bones[2]
	assert.InDelta(t, -10.0, hand.WorldX, 1e-4)
	assert.InDelta(t, 5.0, hand.WorldY, 1e-4)
}

func TestInactiveBoneFreezesWorldTransform(t *testing.T) {
	sk := NewSkeleton(rigData())
	arm := sk.Bones[1]
	frozenX := arm.WorldX

	arm.Active = false
	sk.Bones[0].X = 50
	sk.UpdateWorldTransform()

	assert.Equal(t, frozenX, arm.WorldX, "inactive bones keep their last world transform")
	assert.InDelta(t, 50.0, sk.Bones[0].WorldX, 1e-4, "active bones keep updating")
}

func TestSetSkinRebindsSlots(t *testing.T) {
	sk := NewSkeleton(rigData())
	sk.Slots[0].Deform = []float32{1, 2, 3}

	require.True(t, sk.SetSkin("robot"))
	assert.Equal(t, "robot", sk.Skin.Name)

	// Same attachment name, different geometry object from the new skin.
	a := sk.Slots[0].Attachment()
	require.NotNil(t, a)
	assert.Equal(t, "open", a.Name())
	assert.Empty(t, sk.Slots[0].Deform, "rebinding discards stale deform state")

	assert.False(t, sk.SetSkin("ghost"))
	assert.Equal(t, "robot", sk.Skin.Name, "failed switch leaves the active skin alone")
}

func TestSetAttachment(t *testing.T) {
	sk := NewSkeleton(rigData())

	require.True(t, sk.SetAttachment("front", "open"))
	assert.Equal(t, "open", sk.Slots[0].Attachment().Name())

	require.True(t, sk.SetAttachment("front", ""))
	assert.Nil(t, sk.Slots[0].Attachment())

	assert.False(t, sk.SetAttachment("front", "ghost"))
	assert.False(t, sk.SetAttachment("ghost", "fist"))
}

func TestSlotSetAttachmentKeepsDeformForSameAttachment(t *testing.T) {
	sk := NewSkeleton(rigData())
	slot := sk.Slots[0]
	a := slot.Attachment()

	slot.Deform = []float32{1, 2}
	slot.SetAttachment(a)
	assert.Equal(t, []float32{1, 2}, slot.Deform, "re-binding the same attachment is a no-op")

	slot.SetAttachment(nil)
	assert.Empty(t, slot.Deform)
}

func TestSetToSetupPoseResets(t *testing.T) {
	sk := NewSkeleton(rigData())
	sk.Bones[1].Rotation = 0
	sk.Slots[0].SetAttachment(nil)
	sk.Slots[0].Deform = []float32{9}
	sk.Slots[1].Color = ColorWhite

	sk.SetToSetupPose()

	assert.Equal(t, float32(90), sk.Bones[1].Rotation)
	require.NotNil(t, sk.Slots[0].Attachment())
	assert.Equal(t, "fist", sk.Slots[0].Attachment().Name())
	assert.Empty(t, sk.Slots[0].Deform)
	assert.Equal(t, Color{0.5, 0.5, 0.5, 1}, sk.Slots[1].Color)
}

func TestParseBlendMode(t *testing.T) {
	cases := []struct {
		in    string
		want  BlendMode
		known bool
	}{
		{"", BlendNormal, true},
		{"normal", BlendNormal, true},
		{"additive", BlendAdditive, true},
		{"multiply", BlendMultiply, true},
		{"screen", BlendScreen, true},
		{"overlay", BlendNormal, false},
	}
	for _, tc := range cases {
		got, known := ParseBlendMode(tc.in)
		if got != tc.want || known != tc.known {
			t.Errorf("ParseBlendMode(%q) = (%v, %v), want (%v, %v)", tc.in, got, known, tc.want, tc.known)
		}
	}
}
