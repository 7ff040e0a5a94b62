package spine

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type warnLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *warnLogger) DebugEnabled() bool                { return false }
func (l *warnLogger) SetDebug(bool)                     {}
func (l *warnLogger) Debugf(format string, args ...any) {}
func (l *warnLogger) Infof(format string, args ...any)  {}
func (l *warnLogger) Errorf(format string, args ...any) {}

func (l *warnLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func parseAtlasString(t *testing.T, text string) *Atlas {
	t.Helper()
	atlas, err := ParseAtlas(bufio.NewScanner(strings.NewReader(text)), "assets", &warnLogger{})
	require.NoError(t, err)
	return atlas
}

const sampleAtlas = `
page1.png
size: 256,256
format: RGBA8888
filter: Linear,Linear
repeat: none
pma: true
head
  rotate: false
  xy: 0, 0
  size: 128, 64
  orig: 128, 64
  offset: 0, 0
  index: -1
arm
  rotate: true
  xy: 128, 0
  size: 32, 64
  orig: 32, 64
  offset: 0, 0
  index: -1

page2.png
size: 64,64
format: RGB888
filter: Nearest,Nearest
repeat: xy
eye
  bounds: 4, 8, 16, 16
`

func TestParseAtlasPages(t *testing.T) {
	atlas := parseAtlasString(t, sampleAtlas)
	require.Len(t, atlas.Pages, 2)

	p1 := atlas.Pages[0]
	assert.Equal(t, "page1.png", p1.Name)
	assert.Equal(t, filepath.Join("assets", "page1.png"), p1.TexturePath)
	assert.Equal(t, 256, p1.Width)
	assert.Equal(t, FormatRGBA8888, p1.Format)
	assert.Equal(t, FilterLinear, p1.MinFilter)
	assert.Equal(t, WrapClampToEdge, p1.UWrap)
	assert.True(t, p1.PMA)
	assert.NotEmpty(t, p1.ID)

	p2 := atlas.Pages[1]
	assert.Equal(t, FormatRGB888, p2.Format)
	assert.Equal(t, FilterNearest, p2.MagFilter)
	assert.Equal(t, WrapRepeat, p2.UWrap)
	assert.Equal(t, WrapRepeat, p2.VWrap)
	assert.False(t, p2.PMA)
	assert.NotEqual(t, p1.ID, p2.ID, "every page gets its own identity")

	assert.True(t, atlas.PMA(), "one pma page marks the whole atlas")
}

func TestParseAtlasRegions(t *testing.T) {
	atlas := parseAtlasString(t, sampleAtlas)
	require.Len(t, atlas.Regions, 3)

	head := atlas.FindRegion("head")
	require.NotNil(t, head)
	assert.Same(t, atlas.Pages[0], head.Page)
	assert.InDelta(t, 0.0, head.U, 1e-6)
	assert.InDelta(t, 0.5, head.U2, 1e-6)
	assert.InDelta(t, 0.25, head.V2, 1e-6)

	uvs := head.RegionUVs()
	assert.Equal(t, [8]float32{0, 0.25, 0, 0, 0.5, 0, 0.5, 0.25}, uvs)

	// Rotated regions swap width/height in atlas space and reorder corners.
	arm := atlas.FindRegion("arm")
	require.NotNil(t, arm)
	assert.True(t, arm.Rotate)
	assert.InDelta(t, float32(128+64)/256, arm.U2, 1e-6)
	assert.InDelta(t, float32(32)/256, arm.V2, 1e-6)

	// The 4.x bounds form expands to xy+size.
	eye := atlas.FindRegion("eye")
	require.NotNil(t, eye)
	assert.Equal(t, 4, eye.X)
	assert.Equal(t, 8, eye.Y)
	assert.Equal(t, 16, eye.Width)
	assert.Equal(t, 16, eye.Height)

	assert.Nil(t, atlas.FindRegion("missing"))
}

func TestParseAtlasUnknownEnumsFallBack(t *testing.T) {
	log := &warnLogger{}
	text := `
page.png
size: 64,64
format: ETC1
filter: Cubic,Cubic
repeat: diagonal
`
	atlas, err := ParseAtlas(bufio.NewScanner(strings.NewReader(text)), ".", log)
	require.NoError(t, err)

	p := atlas.Pages[0]
	assert.Equal(t, FormatRGBA8888, p.Format)
	assert.Equal(t, FilterLinear, p.MinFilter)
	assert.Equal(t, WrapClampToEdge, p.UWrap)
	assert.GreaterOrEqual(t, len(log.warnings), 3, "each unknown enum value warns")
}

func TestParseAtlasErrors(t *testing.T) {
	_, err := ParseAtlas(bufio.NewScanner(strings.NewReader("")), ".", &warnLogger{})
	if err == nil {
		t.Error("empty atlas must fail")
	}

	_, err = ParseAtlas(bufio.NewScanner(strings.NewReader("size: 1,1\n")), ".", &warnLogger{})
	if err == nil {
		t.Error("property before any page must fail")
	}
}

func TestMapUV(t *testing.T) {
	atlas := parseAtlasString(t, sampleAtlas)

	head := atlas.FindRegion("head")
	u, v := head.MapUV(0, 0)
	assert.InDelta(t, 0.0, u, 1e-6)
	assert.InDelta(t, 0.0, v, 1e-6)
	u, v = head.MapUV(1, 1)
	assert.InDelta(t, 0.5, u, 1e-6)
	assert.InDelta(t, 0.25, v, 1e-6)

	// Rotated mapping: mesh-space u runs along the packed v axis.
	arm := atlas.FindRegion("arm")
	u, v = arm.MapUV(0, 0)
	assert.InDelta(t, arm.U, u, 1e-6)
	assert.InDelta(t, arm.V2, v, 1e-6)
	u, v = arm.MapUV(1, 1)
	assert.InDelta(t, arm.U2, u, 1e-6)
	assert.InDelta(t, arm.V, v, 1e-6)
}
