package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDeterministic(t *testing.T) {
	sk := testRig(testRegion("head"), testRegion("hand"))
	sk.Bones[1].Rotation = 33
	sk.UpdateWorldTransform()

	baked, err := Bake(sk, DefaultLimits(), &recordLogger{})
	require.NoError(t, err)

	a := NewFrameUniforms()
	b := NewFrameUniforms()
	require.NoError(t, Extract(sk, baked, a, &recordLogger{}))
	require.NoError(t, Extract(sk, baked, b, &recordLogger{}))

	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("two extractions of an unchanged pose differ")
	}
}

func TestExtractBoneMatrices(t *testing.T) {
	sk := testRig(testRegion("head"))
	sk.UpdateWorldTransform()

	baked, err := Bake(sk, DefaultLimits(), &recordLogger{})
	require.NoError(t, err)

	u := NewFrameUniforms()
	require.NoError(t, Extract(sk, baked, u, &recordLogger{}))

	// Child bone sits 10 units along the root's X axis; translation lives in
	// the last column of the column-major matrix.
	assert.InDelta(t, 10.0, u.Bones[1][12], 1e-5)
	assert.InDelta(t, 0.0, u.Bones[1][13], 1e-5)

	// Untouched table entries stay identity so stale vertex references are
	// harmless.
	assert.Equal(t, float32(1), u.Bones[MaxBones-1][0])
	assert.Equal(t, float32(1), u.Bones[MaxBones-1][5])
}

func TestExtractInactiveBoneKeepsLastTransform(t *testing.T) {
	sk := testRig(testRegion("head"))
	sk.UpdateWorldTransform()

	baked, err := Bake(sk, DefaultLimits(), &recordLogger{})
	require.NoError(t, err)

	u := NewFrameUniforms()
	require.NoError(t, Extract(sk, baked, u, &recordLogger{}))
	before := u.Bones[1]

	// Deactivate and keep animating the local transform; the table entry must
	// not move.
	sk.Bones[1].Active = false
	sk.Bones[1].X = 999
	sk.UpdateWorldTransform()
	require.NoError(t, Extract(sk, baked, u, &recordLogger{}))

	assert.Equal(t, before, u.Bones[1])
}

func TestExtractBindingTables(t *testing.T) {
	sk := testRig(testRegion("head"), testRegion("hand"))
	baked, err := Bake(sk, DefaultLimits(), &recordLogger{})
	require.NoError(t, err)

	u := NewFrameUniforms()
	require.NoError(t, Extract(sk, baked, u, &recordLogger{}))

	// Both slots ride the child bone.
	assert.Equal(t, int32(1), u.SlotBones[0])
	assert.Equal(t, int32(1), u.SlotBones[1])

	head := baked.MetaFor(0, "head")
	hand := baked.MetaFor(1, "hand")
	require.NotNil(t, head)
	require.NotNil(t, hand)
	assert.Equal(t, int32(0), u.AttachmentSlots[head.AttachmentIndex])
	assert.Equal(t, int32(1), u.AttachmentSlots[hand.AttachmentIndex])

	// Unbinding a slot's attachment disables it on the next extraction.
	require.True(t, sk.SetAttachment("slot0", ""))
	require.NoError(t, Extract(sk, baked, u, &recordLogger{}))
	assert.Equal(t, int32(-1), u.AttachmentSlots[head.AttachmentIndex])
	assert.Equal(t, int32(1), u.AttachmentSlots[hand.AttachmentIndex])
}

func TestExtractDeformRanges(t *testing.T) {
	sk := testRig(testRegion("head"), testRegion("hand"), testRegion("foot"))
	baked, err := Bake(sk, DefaultLimits(), &recordLogger{})
	require.NoError(t, err)

	sk.Slots[0].Deform = []float32{1, 2, 3, 4, 5, 6}
	sk.Slots[2].Deform = []float32{7, 8}

	u := NewFrameUniforms()
	require.NoError(t, Extract(sk, baked, u, &recordLogger{}))

	assert.Equal(t, int32(0), u.DeformOffsets[0])
	assert.Equal(t, int32(-1), u.DeformOffsets[1], "slot without deform stays unset")
	assert.Equal(t, int32(6), u.DeformOffsets[2], "ranges are contiguous, never overlapping")

	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, u.Deform[0:6])
	assert.Equal(t, []float32{7, 8}, u.Deform[6:8])

	// Clearing a deform frees its range on the next extraction.
	sk.Slots[0].Deform = nil
	require.NoError(t, Extract(sk, baked, u, &recordLogger{}))
	assert.Equal(t, int32(-1), u.DeformOffsets[0])
	assert.Equal(t, int32(0), u.DeformOffsets[2])
}

func TestExtractDeformOverflowTruncates(t *testing.T) {
	sk := testRig(testRegion("head"), testRegion("hand"))
	baked, err := Bake(sk, DefaultLimits(), &recordLogger{})
	require.NoError(t, err)

	sk.Slots[0].Deform = make([]float32, MaxDeformFloats+1)
	sk.Slots[1].Deform = []float32{1, 2}

	u := NewFrameUniforms()
	log := &recordLogger{}
	err = Extract(sk, baked, u, log)
	require.Error(t, err)

	capErr, ok := err.(*CapacityError)
	require.True(t, ok, "want *CapacityError, got %T", err)
	assert.Equal(t, "deform", capErr.Resource)
	assert.NotEmpty(t, log.warnings)

	// The oversized deform is dropped but the frame stays drawable: the small
	// one still lands, and the binding tables are intact.
	assert.Equal(t, int32(-1), u.DeformOffsets[0])
	assert.Equal(t, int32(0), u.DeformOffsets[1])
	assert.Equal(t, int32(0), u.AttachmentSlots[0])
}
