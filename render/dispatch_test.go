package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/spinegpu/spine"
)

func TestSlotMetaSkipsInactiveBone(t *testing.T) {
	sk := testRig(testRegion("head"), testRegion("hand"))
	baked, err := Bake(sk, DefaultLimits(), &recordLogger{})
	require.NoError(t, err)

	// Both slots draw while the shared bone is active.
	assert.NotNil(t, slotMeta(sk.DrawOrder[0], baked))
	assert.NotNil(t, slotMeta(sk.DrawOrder[1], baked))

	// Deactivating the bone silences every slot riding it; nothing errors.
	sk.Bones[1].Active = false
	assert.Nil(t, slotMeta(sk.DrawOrder[0], baked))
	assert.Nil(t, slotMeta(sk.DrawOrder[1], baked))
}

func TestSlotMetaSkipsUnboundAndClipping(t *testing.T) {
	clip := &spine.ClippingAttachment{AttachmentName: "mask", Vertices: []float32{0, 0, 1, 0, 1, 1}}
	sk := testRig(testRegion("head"), clip)
	baked, err := Bake(sk, DefaultLimits(), &recordLogger{})
	require.NoError(t, err)

	assert.NotNil(t, slotMeta(sk.DrawOrder[0], baked))
	assert.Nil(t, slotMeta(sk.DrawOrder[1], baked), "clipping attachments never draw")

	sk.Slots[0].SetAttachment(nil)
	assert.Nil(t, slotMeta(sk.DrawOrder[0], baked), "empty slots never draw")
}

func TestSlotMetaFollowsDrawOrder(t *testing.T) {
	sk := testRig(testRegion("head"), testRegion("hand"), testRegion("foot"))
	baked, err := Bake(sk, DefaultLimits(), &recordLogger{})
	require.NoError(t, err)

	// Reversing the draw order reverses the emitted ranges without touching
	// slot indices or the baked buffers.
	sk.DrawOrder[0], sk.DrawOrder[2] = sk.DrawOrder[2], sk.DrawOrder[0]

	var names []string
	for _, slot := range sk.DrawOrder {
		if meta := slotMeta(slot, baked); meta != nil {
			names = append(names, meta.Name)
		}
	}
	assert.Equal(t, []string{"foot", "hand", "head"}, names)
}

func TestSlotMetaSkipsOutOfRangeTableIndices(t *testing.T) {
	// Metadata pointing past the uniform tables must never reach DrawIndexed:
	// Extract cannot have written bindings for it, so the shader would clamp
	// the lookup into another slot's entry.
	bone := &spine.Bone{Data: &spine.BoneData{Index: 0}, Active: true}
	overflowed := &Baked{
		Meta: []AttachmentMeta{{
			Name:            "spill",
			SlotIndex:       0,
			AttachmentIndex: MaxAttachments,
			IndexCount:      6,
		}},
		byKey: map[metaKey]int32{{0, "spill"}: 0},
	}
	slot := &spine.Slot{Data: &spine.SlotData{Index: 0}, Bone: bone}
	slot.SetAttachment(testRegion("spill"))
	assert.Nil(t, slotMeta(slot, overflowed))

	// Same for a slot index beyond the slot->bone table.
	sk := testRig(testRegion("head"))
	baked, err := Bake(sk, DefaultLimits(), &recordLogger{})
	require.NoError(t, err)

	farSlot := &spine.Slot{Data: &spine.SlotData{Index: MaxSlots}, Bone: bone}
	farSlot.SetAttachment(testRegion("head"))
	assert.Nil(t, slotMeta(farSlot, baked))
}

func TestSlotMetaUnbakedAttachment(t *testing.T) {
	sk := testRig(testRegion("head"))
	baked, err := Bake(sk, DefaultLimits(), &recordLogger{})
	require.NoError(t, err)

	// Bind an attachment the bake never saw; the slot is skipped, not drawn
	// with stale ranges.
	sk.Slots[0].SetAttachment(testRegion("phantom"))
	assert.Nil(t, slotMeta(sk.DrawOrder[0], baked))
}
