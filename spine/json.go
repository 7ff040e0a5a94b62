package spine

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	spinegpu "github.com/gekko3d/spinegpu"
)

// jsonSkeleton mirrors the Spine JSON export format, covering the subset this
// renderer consumes: bones, slots and skin attachments. Animation timelines
// are the animation engine's concern and are not parsed here.
type jsonSkeleton struct {
	Skeleton struct {
		Width  float32 `json:"width"`
		Height float32 `json:"height"`
	} `json:"skeleton"`
	Bones []jsonBone      `json:"bones"`
	Slots []jsonSlot      `json:"slots"`
	Skins json.RawMessage `json:"skins"`
}

type jsonBone struct {
	Name     string   `json:"name"`
	Parent   string   `json:"parent"`
	Length   float32  `json:"length"`
	X        float32  `json:"x"`
	Y        float32  `json:"y"`
	Rotation float32  `json:"rotation"`
	ScaleX   *float32 `json:"scaleX"`
	ScaleY   *float32 `json:"scaleY"`
}

type jsonSlot struct {
	Name       string `json:"name"`
	Bone       string `json:"bone"`
	Attachment string `json:"attachment"`
	Blend      string `json:"blend"`
	Color      string `json:"color"`
}

type jsonAttachment struct {
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	X         float32   `json:"x"`
	Y         float32   `json:"y"`
	Rotation  float32   `json:"rotation"`
	ScaleX    *float32  `json:"scaleX"`
	ScaleY    *float32  `json:"scaleY"`
	Width     float32   `json:"width"`
	Height    float32   `json:"height"`
	Color     string    `json:"color"`
	UVs       []float32 `json:"uvs"`
	Triangles []uint16  `json:"triangles"`
	Vertices  []float32 `json:"vertices"`
	Hull      int       `json:"hull"`
	End       string    `json:"end"`
	VertexCnt int       `json:"vertexCount"`
}

// jsonSkin covers the 3.8+ array form; the older map form is handled
// separately in parseSkins.
type jsonSkin struct {
	Name        string                               `json:"name"`
	Attachments map[string]map[string]jsonAttachment `json:"attachments"`
}

// LoadSkeletonJSON reads a Spine JSON export and resolves its attachment
// geometry against the given atlas. No partially constructed SkeletonData is
// ever returned: any parse or resolution failure yields (nil, *AssetError).
func LoadSkeletonJSON(path string, atlas *Atlas, log spinegpu.Logger) (*SkeletonData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, assetErr(path, "read skeleton", err)
	}
	return ParseSkeletonJSON(raw, path, atlas, log)
}

// ParseSkeletonJSON parses skeleton JSON bytes. path is used for error
// reporting only.
func ParseSkeletonJSON(raw []byte, path string, atlas *Atlas, log spinegpu.Logger) (*SkeletonData, error) {
	var doc jsonSkeleton
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, assetErr(path, "decode json", err)
	}
	if len(doc.Bones) == 0 {
		return nil, assetErrf(path, "bones", "skeleton has no bones")
	}

	data := &SkeletonData{
		Name:   path,
		Width:  doc.Skeleton.Width,
		Height: doc.Skeleton.Height,
	}

	for i, jb := range doc.Bones {
		bd := &BoneData{
			Index:    i,
			Name:     jb.Name,
			Length:   jb.Length,
			X:        jb.X,
			Y:        jb.Y,
			Rotation: jb.Rotation,
			ScaleX:   scaleOrOne(jb.ScaleX),
			ScaleY:   scaleOrOne(jb.ScaleY),
		}
		if jb.Parent != "" {
			bd.Parent = data.FindBone(jb.Parent)
			if bd.Parent == nil {
				return nil, assetErrf(path, "bones", "bone %q references unknown parent %q", jb.Name, jb.Parent)
			}
		}
		data.Bones = append(data.Bones, bd)
	}

	for i, js := range doc.Slots {
		bone := data.FindBone(js.Bone)
		if bone == nil {
			return nil, assetErrf(path, "slots", "slot %q references unknown bone %q", js.Name, js.Bone)
		}
		blend, known := ParseBlendMode(js.Blend)
		if !known {
			log.Warnf("skeleton %s: slot %q has unsupported blend mode %q, using normal", path, js.Name, js.Blend)
		}
		data.Slots = append(data.Slots, &SlotData{
			Index:          i,
			Name:           js.Name,
			BoneData:       bone,
			Color:          parseColor(js.Color),
			AttachmentName: js.Attachment,
			Blend:          blend,
		})
	}

	if err := parseSkins(doc.Skins, data, atlas, path, log); err != nil {
		return nil, err
	}
	return data, nil
}

func parseSkins(raw json.RawMessage, data *SkeletonData, atlas *Atlas, path string, log spinegpu.Logger) error {
	if len(raw) == 0 {
		return nil
	}

	var skins []jsonSkin
	if err := json.Unmarshal(raw, &skins); err != nil {
		// Pre-3.8 exports use a map of skin name -> slot -> attachments.
		var m map[string]map[string]map[string]jsonAttachment
		if err := json.Unmarshal(raw, &m); err != nil {
			return assetErr(path, "skins", err)
		}
		names := make([]string, 0, len(m))
		for name := range m {
			names = append(names, name)
		}
		sort.Strings(names)
		// Keep "default" first so NewSkeleton picks it up.
		sort.SliceStable(names, func(i, j int) bool { return names[i] == "default" && names[j] != "default" })
		for _, name := range names {
			skins = append(skins, jsonSkin{Name: name, Attachments: m[name]})
		}
	}

	for _, js := range skins {
		skin := NewSkin(js.Name)
		for slotName, bySlot := range js.Attachments {
			sd := data.FindSlot(slotName)
			if sd == nil {
				return assetErrf(path, "skins", "skin %q references unknown slot %q", js.Name, slotName)
			}
			for attachmentName, ja := range bySlot {
				a, err := buildAttachment(attachmentName, ja, atlas, path)
				if err != nil {
					return err
				}
				skin.SetAttachment(sd.Index, attachmentName, a)
			}
		}
		data.Skins = append(data.Skins, skin)
	}
	return nil
}

func buildAttachment(name string, ja jsonAttachment, atlas *Atlas, path string) (Attachment, error) {
	regionName := ja.Path
	if regionName == "" {
		regionName = name
	}

	switch ja.Type {
	case "", "region":
		region := atlas.FindRegion(regionName)
		if region == nil {
			return nil, assetErrf(path, "skins", "attachment %q: atlas region %q not found", name, regionName)
		}
		r := &RegionAttachment{
			AttachmentName: name,
			Path:           ja.Path,
			Page:           region.Page.ID,
			X:              ja.X,
			Y:              ja.Y,
			Rotation:       ja.Rotation,
			ScaleX:         scaleOrOne(ja.ScaleX),
			ScaleY:         scaleOrOne(ja.ScaleY),
			Width:          ja.Width,
			Height:         ja.Height,
			Color:          parseColor(ja.Color),
			UVs:            region.RegionUVs(),
		}
		r.UpdateOffset()
		return r, nil

	case "mesh":
		region := atlas.FindRegion(regionName)
		if region == nil {
			return nil, assetErrf(path, "skins", "attachment %q: atlas region %q not found", name, regionName)
		}
		if len(ja.UVs) == 0 || len(ja.UVs)%2 != 0 {
			return nil, assetErrf(path, "skins", "mesh %q: invalid uvs length %d", name, len(ja.UVs))
		}
		if len(ja.Triangles)%3 != 0 {
			return nil, assetErrf(path, "skins", "mesh %q: triangle list length %d not a multiple of 3", name, len(ja.Triangles))
		}
		m := &MeshAttachment{
			AttachmentName: name,
			Path:           ja.Path,
			Page:           region.Page.ID,
			Triangles:      ja.Triangles,
			Color:          parseColor(ja.Color),
			HullLen:        ja.Hull,
		}
		m.UVs = make([]float32, len(ja.UVs))
		for i := 0; i < len(ja.UVs); i += 2 {
			m.UVs[i], m.UVs[i+1] = region.MapUV(ja.UVs[i], ja.UVs[i+1])
		}
		if err := splitMeshVertices(m, ja.Vertices, len(ja.UVs)/2); err != nil {
			return nil, assetErrf(path, "skins", "mesh %q: %v", name, err)
		}
		return m, nil

	case "clipping":
		return &ClippingAttachment{
			AttachmentName: name,
			EndSlot:        ja.End,
			Vertices:       ja.Vertices,
		}, nil
	}

	return nil, assetErrf(path, "skins", "attachment %q: unsupported type %q", name, ja.Type)
}

// splitMeshVertices separates the JSON vertex array into the unweighted
// (x,y per vertex) or weighted (count-prefixed influence stream) form. For a
// weighted mesh the bone counts and indices are pulled into m.Bones and the
// per-influence (x, y, weight) triples stay in m.Vertices, matching the
// packed layout the baker consumes.
func splitMeshVertices(m *MeshAttachment, verts []float32, vertexCount int) error {
	if len(verts) == vertexCount*2 {
		m.Vertices = verts
		return nil
	}

	i := 0
	for v := 0; v < vertexCount; v++ {
		if i >= len(verts) {
			return fmt.Errorf("influence stream truncated at vertex %d", v)
		}
		n := int(verts[i])
		if n <= 0 {
			return fmt.Errorf("vertex %d declares %d bone influences", v, n)
		}
		i++
		m.Bones = append(m.Bones, int32(n))
		for j := 0; j < n; j++ {
			if i+4 > len(verts) {
				return fmt.Errorf("influence stream truncated at vertex %d", v)
			}
			m.Bones = append(m.Bones, int32(verts[i]))
			m.Vertices = append(m.Vertices, verts[i+1], verts[i+2], verts[i+3])
			i += 4
		}
	}
	if i != len(verts) {
		return fmt.Errorf("influence stream has %d trailing floats", len(verts)-i)
	}
	return nil
}

func scaleOrOne(v *float32) float32 {
	if v == nil {
		return 1
	}
	return *v
}

func parseColor(s string) Color {
	if len(s) != 8 {
		return ColorWhite
	}
	var c Color
	for i := 0; i < 4; i++ {
		n, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return ColorWhite
		}
		c[i] = float32(n) / 255
	}
	return c
}
