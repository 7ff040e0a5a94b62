package spine

import (
	"github.com/chewxy/math32"
)

// BlendMode is the per-slot compositing mode. The renderer maps each mode
// (together with the premultiplied-alpha flag) to explicit blend factors.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendAdditive
	BlendMultiply
	BlendScreen
)

func (m BlendMode) String() string {
	switch m {
	case BlendNormal:
		return "normal"
	case BlendAdditive:
		return "additive"
	case BlendMultiply:
		return "multiply"
	case BlendScreen:
		return "screen"
	}
	return "unknown"
}

// ParseBlendMode maps the JSON blend mode name to a BlendMode. Unknown names
// fall back to BlendNormal; the caller decides whether to warn.
func ParseBlendMode(name string) (BlendMode, bool) {
	switch name {
	case "", "normal":
		return BlendNormal, true
	case "additive":
		return BlendAdditive, true
	case "multiply":
		return BlendMultiply, true
	case "screen":
		return BlendScreen, true
	}
	return BlendNormal, false
}

type Color [4]float32

// ColorWhite is the default attachment/slot tint.
var ColorWhite = Color{1, 1, 1, 1}

// BoneData is the static description of one bone: its index in the skeleton's
// bone list, its parent, and the local setup-pose transform.
type BoneData struct {
	Index    int
	Name     string
	Parent   *BoneData
	Length   float32
	X, Y     float32
	Rotation float32
	ScaleX   float32
	ScaleY   float32
}

// SlotData is the static description of one slot. Index is the slot's position
// in the skeleton's slot list; the setup draw order equals index order.
type SlotData struct {
	Index          int
	Name           string
	BoneData       *BoneData
	Color          Color
	AttachmentName string
	Blend          BlendMode
}

type AttachmentType int

const (
	AttachmentRegion AttachmentType = iota
	AttachmentMesh
	AttachmentClipping
)

func (t AttachmentType) String() string {
	switch t {
	case AttachmentRegion:
		return "region"
	case AttachmentMesh:
		return "mesh"
	case AttachmentClipping:
		return "clipping"
	}
	return "unknown"
}

// Attachment is a renderable geometry unit belonging to a skin. Concrete types
// are RegionAttachment, MeshAttachment and ClippingAttachment.
type Attachment interface {
	Name() string
	Type() AttachmentType
}

// RegionAttachment is a textured quad positioned relative to its slot's bone.
type RegionAttachment struct {
	AttachmentName string
	Path           string
	Page           PageID

	X, Y          float32
	ScaleX        float32
	ScaleY        float32
	Rotation      float32
	Width, Height float32
	Color         Color

	// Offset holds the four local-space corner positions (BL, UL, UR, BR as
	// x,y pairs) computed from the region transform by UpdateOffset.
	Offset [8]float32
	// UVs holds the atlas-space texture coordinates for the same four corners.
	UVs [8]float32
}

func (r *RegionAttachment) Name() string         { return r.AttachmentName }
func (r *RegionAttachment) Type() AttachmentType { return AttachmentRegion }

const degRad = math32.Pi / 180

// UpdateOffset recomputes the local corner positions from the region's
// translation, rotation and scale. Corner order matches UVs.
func (r *RegionAttachment) UpdateOffset() {
	localX := -r.Width / 2 * r.ScaleX
	localY := -r.Height / 2 * r.ScaleY
	localX2 := -localX
	localY2 := -localY
	cos := math32.Cos(r.Rotation * degRad)
	sin := math32.Sin(r.Rotation * degRad)

	corners := [4][2]float32{
		{localX, localY},   // BL
		{localX, localY2},  // UL
		{localX2, localY2}, // UR
		{localX2, localY},  // BR
	}
	for i, c := range corners {
		r.Offset[i*2] = c[0]*cos - c[1]*sin + r.X
		r.Offset[i*2+1] = c[0]*sin + c[1]*cos + r.Y
	}
}

// MeshAttachment is a textured triangle mesh. An unweighted mesh stores two
// floats per vertex in Vertices and leaves Bones empty. A weighted mesh stores
// a count-prefixed bone-index stream in Bones and, per influence, a local
// position and weight triple (x, y, w) in Vertices.
type MeshAttachment struct {
	AttachmentName string
	Path           string
	Page           PageID

	Vertices  []float32
	Bones     []int32
	UVs       []float32
	Triangles []uint16
	Color     Color
	HullLen   int
}

func (m *MeshAttachment) Name() string         { return m.AttachmentName }
func (m *MeshAttachment) Type() AttachmentType { return AttachmentMesh }

// Weighted reports whether the mesh carries per-vertex bone influences.
func (m *MeshAttachment) Weighted() bool { return len(m.Bones) > 0 }

// VertexCount returns the number of mesh vertices, derived from the UV list
// which always holds one pair per vertex regardless of weighting.
func (m *MeshAttachment) VertexCount() int { return len(m.UVs) / 2 }

// ClippingAttachment is parsed so skins round-trip, but the renderer excludes
// it from baking and drawing.
type ClippingAttachment struct {
	AttachmentName string
	EndSlot        string
	Vertices       []float32
}

func (c *ClippingAttachment) Name() string         { return c.AttachmentName }
func (c *ClippingAttachment) Type() AttachmentType { return AttachmentClipping }

// Skin maps slot index -> attachment name -> attachment.
type Skin struct {
	Name        string
	Attachments map[int]map[string]Attachment
}

func NewSkin(name string) *Skin {
	return &Skin{Name: name, Attachments: map[int]map[string]Attachment{}}
}

func (s *Skin) SetAttachment(slotIndex int, name string, attachment Attachment) {
	bySlot := s.Attachments[slotIndex]
	if bySlot == nil {
		bySlot = map[string]Attachment{}
		s.Attachments[slotIndex] = bySlot
	}
	bySlot[name] = attachment
}

// Attachment returns the named attachment for a slot, or nil.
func (s *Skin) Attachment(slotIndex int, name string) Attachment {
	if bySlot := s.Attachments[slotIndex]; bySlot != nil {
		return bySlot[name]
	}
	return nil
}

// SkeletonData is the immutable, shareable description of a skeleton: bones,
// slots and skins. Live Skeleton instances reference it without copying.
type SkeletonData struct {
	Name   string
	Bones  []*BoneData
	Slots  []*SlotData
	Skins  []*Skin
	Width  float32
	Height float32
}

// FindBone returns the bone data with the given name, or nil.
func (d *SkeletonData) FindBone(name string) *BoneData {
	for _, b := range d.Bones {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// FindSlot returns the slot data with the given name, or nil.
func (d *SkeletonData) FindSlot(name string) *SlotData {
	for _, s := range d.Slots {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// FindSkin returns the skin with the given name, or nil.
func (d *SkeletonData) FindSkin(name string) *Skin {
	for _, s := range d.Skins {
		if s.Name == name {
			return s
		}
	}
	return nil
}
