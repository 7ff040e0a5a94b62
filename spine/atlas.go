package spine

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	spinegpu "github.com/gekko3d/spinegpu"
)

type AtlasFilter int

const (
	FilterNearest AtlasFilter = iota
	FilterLinear
	FilterMipMap
)

type AtlasWrap int

const (
	WrapClampToEdge AtlasWrap = iota
	WrapRepeat
	WrapMirroredRepeat
)

type AtlasFormat int

const (
	FormatRGBA8888 AtlasFormat = iota
	FormatRGB888
	FormatAlpha
)

// PageID identifies one atlas page for the lifetime of the process. Texture
// caches key their state on it instead of punning renderer pointers into the
// page struct.
type PageID string

func makePageID() PageID { return PageID(uuid.NewString()) }

// AtlasPage describes one texture page of an atlas: the image file plus the
// sampler configuration the exporter requested.
type AtlasPage struct {
	ID            PageID
	Name          string
	TexturePath   string
	Width, Height int
	Format        AtlasFormat
	MinFilter     AtlasFilter
	MagFilter     AtlasFilter
	UWrap         AtlasWrap
	VWrap         AtlasWrap
	PMA           bool
}

// AtlasRegion locates one packed image inside a page, in pixels.
type AtlasRegion struct {
	Name           string
	Page           *AtlasPage
	X, Y           int
	Width, Height  int
	OrigW, OrigH   int
	OffsetX        int
	OffsetY        int
	Rotate         bool
	U, V, U2, V2   float32
	Index          int
}

// Atlas is a parsed .atlas file: its pages and regions, in file order.
type Atlas struct {
	Pages   []*AtlasPage
	Regions []*AtlasRegion
}

// FindRegion returns the named region, or nil.
func (a *Atlas) FindRegion(name string) *AtlasRegion {
	for _, r := range a.Regions {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// PMA reports whether any page carries premultiplied-alpha texels. The
// renderer uses it to pick the matching blend-factor table.
func (a *Atlas) PMA() bool {
	for _, p := range a.Pages {
		if p.PMA {
			return true
		}
	}
	return false
}

func parseFilter(s string, log spinegpu.Logger) AtlasFilter {
	switch strings.TrimSpace(s) {
	case "Nearest":
		return FilterNearest
	case "Linear":
		return FilterLinear
	case "MipMap", "MipMapNearestNearest", "MipMapLinearNearest", "MipMapNearestLinear", "MipMapLinearLinear":
		return FilterMipMap
	}
	log.Warnf("atlas: unsupported texture filter %q, using linear", s)
	return FilterLinear
}

func parseWrap(s string, log spinegpu.Logger) (u, v AtlasWrap) {
	one := func(s string) AtlasWrap {
		switch s {
		case "none", "":
			return WrapClampToEdge
		case "x", "y", "xy", "repeat":
			return WrapRepeat
		case "mirror":
			return WrapMirroredRepeat
		}
		log.Warnf("atlas: unsupported wrap mode %q, using clamp", s)
		return WrapClampToEdge
	}
	s = strings.TrimSpace(s)
	switch s {
	case "x":
		return WrapRepeat, WrapClampToEdge
	case "y":
		return WrapClampToEdge, WrapRepeat
	default:
		w := one(s)
		return w, w
	}
}

func parseFormat(s string, log spinegpu.Logger) AtlasFormat {
	switch strings.TrimSpace(s) {
	case "RGBA8888", "":
		return FormatRGBA8888
	case "RGB888":
		return FormatRGB888
	case "Alpha":
		return FormatAlpha
	}
	log.Warnf("atlas: unsupported texture format %q, using RGBA8888", s)
	return FormatRGBA8888
}

// LoadAtlas reads and parses a Spine .atlas text file. Page image paths are
// resolved relative to the atlas file's directory.
func LoadAtlas(path string, log spinegpu.Logger) (*Atlas, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, assetErr(path, "open atlas", err)
	}
	defer f.Close()

	atlas, err := ParseAtlas(bufio.NewScanner(f), filepath.Dir(path), log)
	if err != nil {
		return nil, assetErr(path, "parse atlas", err)
	}
	return atlas, nil
}

// ParseAtlas parses atlas lines from a scanner. dir is prepended to page image
// names to form TexturePath.
func ParseAtlas(scanner *bufio.Scanner, dir string, log spinegpu.Logger) (*Atlas, error) {
	atlas := &Atlas{}
	var page *AtlasPage
	var region *AtlasRegion
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			// Blank line starts a new page section.
			page = nil
			region = nil
			continue
		}

		if !strings.Contains(trimmed, ":") {
			if page == nil {
				page = &AtlasPage{
					ID:          makePageID(),
					Name:        trimmed,
					TexturePath: filepath.Join(dir, trimmed),
					Format:      FormatRGBA8888,
					MinFilter:   FilterLinear,
					MagFilter:   FilterLinear,
				}
				atlas.Pages = append(atlas.Pages, page)
			} else {
				region = &AtlasRegion{Name: trimmed, Page: page, Index: -1}
				atlas.Regions = append(atlas.Regions, region)
			}
			continue
		}

		key, value, _ := strings.Cut(trimmed, ":")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if page == nil {
			return nil, fmt.Errorf("line %d: property %q before any page", lineNo, key)
		}

		if region == nil {
			switch key {
			case "size":
				page.Width, page.Height = parsePair(value)
			case "format":
				page.Format = parseFormat(value, log)
			case "filter":
				minS, magS, _ := strings.Cut(value, ",")
				page.MinFilter = parseFilter(minS, log)
				page.MagFilter = parseFilter(magS, log)
			case "repeat":
				page.UWrap, page.VWrap = parseWrap(value, log)
			case "pma":
				page.PMA = value == "true"
			}
			continue
		}

		switch key {
		case "rotate":
			region.Rotate = value == "true" || value == "90"
		case "xy":
			region.X, region.Y = parsePair(value)
		case "size":
			region.Width, region.Height = parsePair(value)
		case "orig":
			region.OrigW, region.OrigH = parsePair(value)
		case "offset":
			region.OffsetX, region.OffsetY = parsePair(value)
		case "index":
			region.Index, _ = strconv.Atoi(value)
		case "bounds":
			// 4.x single-line form: x, y, width, height
			vals := parseInts(value, 4)
			region.X, region.Y, region.Width, region.Height = vals[0], vals[1], vals[2], vals[3]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(atlas.Pages) == 0 {
		return nil, fmt.Errorf("no pages found")
	}

	for _, r := range atlas.Regions {
		r.computeUVs()
	}
	return atlas, nil
}

func parsePair(s string) (int, int) {
	vals := parseInts(s, 2)
	return vals[0], vals[1]
}

func parseInts(s string, n int) []int {
	parts := strings.Split(s, ",")
	vals := make([]int, n)
	for i := 0; i < n && i < len(parts); i++ {
		vals[i], _ = strconv.Atoi(strings.TrimSpace(parts[i]))
	}
	return vals
}

func (r *AtlasRegion) computeUVs() {
	pw := float32(r.Page.Width)
	ph := float32(r.Page.Height)
	if pw == 0 || ph == 0 {
		return
	}
	r.U = float32(r.X) / pw
	r.V = float32(r.Y) / ph
	if r.Rotate {
		r.U2 = float32(r.X+r.Height) / pw
		r.V2 = float32(r.Y+r.Width) / ph
	} else {
		r.U2 = float32(r.X+r.Width) / pw
		r.V2 = float32(r.Y+r.Height) / ph
	}
}

// RegionUVs returns the four corner texture coordinates (BL, UL, UR, BR as
// x,y pairs) matching RegionAttachment.Offset corner order.
func (r *AtlasRegion) RegionUVs() [8]float32 {
	if r.Rotate {
		return [8]float32{
			r.U2, r.V2, // BL
			r.U, r.V2, // UL
			r.U, r.V, // UR
			r.U2, r.V, // BR
		}
	}
	return [8]float32{
		r.U, r.V2, // BL
		r.U, r.V, // UL
		r.U2, r.V, // UR
		r.U2, r.V2, // BR
	}
}

// MapUV maps a mesh-local (u,v) in [0,1] into atlas-space coordinates inside
// this region, honoring 90-degree packing rotation.
func (r *AtlasRegion) MapUV(u, v float32) (float32, float32) {
	if r.Rotate {
		return r.U + v*(r.U2-r.U), r.V + (1-u)*(r.V2-r.V)
	}
	return r.U + u*(r.U2-r.U), r.V + v*(r.V2-r.V)
}
