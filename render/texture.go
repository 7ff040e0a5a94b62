package render

import (
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	spinegpu "github.com/gekko3d/spinegpu"
	"github.com/gekko3d/spinegpu/spine"
)

// PendingTexture describes an atlas-page texture that has been registered but
// not decoded yet: everything an Uploader needs to produce a GPU texture.
type PendingTexture struct {
	Path      string
	MinFilter spine.AtlasFilter
	MagFilter spine.AtlasFilter
	UWrap     spine.AtlasWrap
	VWrap     spine.AtlasWrap
	Format    spine.AtlasFormat
}

// PageTexture is a fully uploaded atlas-page texture with the bind group the
// skinning pipeline samples it through.
type PageTexture struct {
	Texture   *wgpu.Texture
	View      *wgpu.TextureView
	Sampler   *wgpu.Sampler
	BindGroup *wgpu.BindGroup
}

func (t *PageTexture) release() {
	if t.BindGroup != nil {
		t.BindGroup.Release()
	}
	if t.Sampler != nil {
		t.Sampler.Release()
	}
	if t.View != nil {
		t.View.Release()
	}
	if t.Texture != nil {
		t.Texture.Release()
	}
}

// Uploader decodes and uploads one pending texture. Implementations live
// outside the render core (the app package provides an image/x-image + wgpu
// one); tests substitute fakes. Upload may run off the render thread as long
// as the result is handed over via TextureCache.Publish.
type Uploader interface {
	Upload(pending PendingTexture) (*PageTexture, error)
}

type textureStateKind int

const (
	texturePending textureStateKind = iota
	textureReady
	textureFailed
)

// textureState is a tagged variant: exactly one of pending/ready is
// meaningful depending on kind. Keeping the variant in a map keyed by page id
// replaces the renderer-object pointer punning the usual runtimes do.
type textureState struct {
	kind    textureStateKind
	pending PendingTexture
	ready   *PageTexture
}

// TextureCache owns the deferred load/dispose lifecycle of atlas-page
// textures. It is a value owned by the Renderer and passed by reference where
// needed; there is no package-level state.
//
// The render thread is the sole consumer: it resolves textures during the
// draw pass and drains the delete queue at the frame-start boundary. Release
// and Publish may be called from other goroutines.
type TextureCache struct {
	mu       sync.Mutex
	states   map[spine.PageID]*textureState
	deleting []*PageTexture

	uploader Uploader
	log      spinegpu.Logger
}

func NewTextureCache(uploader Uploader, log spinegpu.Logger) *TextureCache {
	return &TextureCache{
		states:   map[spine.PageID]*textureState{},
		uploader: uploader,
		log:      log,
	}
}

// RegisterAtlas registers every page of an atlas as pending. Loading is
// deferred until the first draw pass touches an attachment on that page.
func (c *TextureCache) RegisterAtlas(atlas *spine.Atlas) {
	for _, page := range atlas.Pages {
		c.Register(page)
	}
}

func (c *TextureCache) Register(page *spine.AtlasPage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.states[page.ID]; ok {
		return
	}
	c.states[page.ID] = &textureState{
		kind: texturePending,
		pending: PendingTexture{
			Path:      page.TexturePath,
			MinFilter: page.MinFilter,
			MagFilter: page.MagFilter,
			UWrap:     page.UWrap,
			VWrap:     page.VWrap,
			Format:    page.Format,
		},
	}
}

// Resolve returns the uploaded texture for a page, lazily uploading it on
// first touch. It returns nil while the page is unknown, still pending with
// no uploader, or failed; the caller skips that attachment for the frame.
// A failed decode poisons only its own page.
func (c *TextureCache) Resolve(id spine.PageID) *PageTexture {
	c.mu.Lock()
	state, ok := c.states[id]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	kind, ready, pending := state.kind, state.ready, state.pending
	c.mu.Unlock()

	switch kind {
	case textureReady:
		return ready
	case textureFailed:
		return nil
	}

	if c.uploader == nil {
		return nil
	}
	tex, err := c.uploader.Upload(pending)
	c.mu.Lock()
	defer c.mu.Unlock()
	if state.kind != texturePending {
		// A concurrent Publish won; keep its texture.
		if tex != nil {
			c.deleting = append(c.deleting, tex)
		}
		return state.ready
	}
	if err != nil {
		state.kind = textureFailed
		c.log.Errorf("%v", &DecodeError{Path: pending.Path, Err: err})
		return nil
	}
	state.kind = textureReady
	state.ready = tex
	return tex
}

// Publish hands over an externally uploaded texture (e.g. from a decode
// goroutine). It is ignored if the page already resolved or failed.
func (c *TextureCache) Publish(id spine.PageID, tex *PageTexture) {
	c.mu.Lock()
	state, ok := c.states[id]
	if !ok || state.kind != texturePending {
		c.mu.Unlock()
		tex.release()
		return
	}
	state.kind = textureReady
	state.ready = tex
	c.mu.Unlock()
}

// Release queues the page's texture for deletion and forgets the page.
// Deletion is never immediate: the handles stay alive until the render thread
// drains the queue at the start of the next draw pass, so a texture still
// bound from the previous frame is never destroyed under it.
func (c *TextureCache) Release(id spine.PageID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.states[id]
	if !ok {
		return
	}
	delete(c.states, id)
	if state.kind == textureReady && state.ready != nil {
		c.deleting = append(c.deleting, state.ready)
	}
}

// DrainDeleteQueue destroys every queued texture. Call at frame start, before
// any binding is issued.
func (c *TextureCache) DrainDeleteQueue() {
	c.mu.Lock()
	doomed := c.deleting
	c.deleting = nil
	c.mu.Unlock()

	for _, tex := range doomed {
		tex.release()
	}
}

// PendingCount reports how many registered pages are still waiting for an
// upload. Useful for load screens and tests.
func (c *TextureCache) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.states {
		if s.kind == texturePending {
			n++
		}
	}
	return n
}
