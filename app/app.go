package app

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	spinegpu "github.com/gekko3d/spinegpu"
	"github.com/gekko3d/spinegpu/render"
	"github.com/gekko3d/spinegpu/spine"
)

type Config struct {
	Width  int
	Height int
	Title  string
	Debug  bool
}

func DefaultConfig() Config {
	return Config{Width: 800, Height: 600, Title: "spineview", Debug: false}
}

// Demo names one skeleton to load and how to place it on screen.
type Demo struct {
	AtlasPath    string
	SkeletonPath string
	Skin         string
	Position     mgl32.Vec2
	Scale        float32
}

// PoseDriver advances the skeleton pose each frame. The animation engine owns
// timeline evaluation; the stage only hands it the elapsed time and then
// recomputes world transforms. A nil driver leaves the setup pose.
type PoseDriver func(sk *spine.Skeleton, elapsed float64)

// Stage is the demo frame loop: it owns the window, the GPU state, the
// renderer and the currently loaded demo. Press +/- to grow/shrink the grid
// of instances, space to cycle demos.
type Stage struct {
	cfg    Config
	log    spinegpu.Logger
	window *WindowState
	gpu    *GpuState

	renderer *render.Renderer
	uniforms *render.FrameUniforms

	demos   []Demo
	current int
	driver  PoseDriver

	skeleton *spine.Skeleton
	atlas    *spine.Atlas
	buffers  *render.Buffers
	world    mgl32.Mat4

	gridSize     int
	lastTime     float64
	lastFPSPrint float64
	frameCount   int
}

// Run opens a window and drives the demo loop until it is closed.
func Run(cfg Config, demos []Demo, driver PoseDriver) error {
	if len(demos) == 0 {
		return fmt.Errorf("no demos to run")
	}
	log := spinegpu.NewDefaultLogger("spineview", cfg.Debug)

	window, err := createWindowState(cfg.Width, cfg.Height, cfg.Title)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer glfw.Terminate()

	gpu, err := createGpuState(window)
	if err != nil {
		return fmt.Errorf("create gpu state: %w", err)
	}
	defer gpu.release()

	uploader := &wgpuUploader{device: gpu.device, queue: gpu.queue}
	renderer, err := render.NewRenderer(gpu.device, gpu.queue, gpu.surfaceConfig.Format, uploader, log)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	defer renderer.Release()

	stage := &Stage{
		cfg:      cfg,
		log:      log,
		window:   window,
		gpu:      gpu,
		renderer: renderer,
		uniforms: render.NewFrameUniforms(),
		demos:    demos,
		driver:   driver,
		gridSize: 1,
		lastTime: glfw.GetTime(),
	}
	if err := stage.loadDemo(0); err != nil {
		return err
	}

	window.windowGlfw.SetKeyCallback(stage.onKey)
	window.windowGlfw.SetSizeCallback(func(_ *glfw.Window, w, h int) {
		window.WindowWidth = w
		window.WindowHeight = h
		gpu.resize(w, h)
	})

	for !window.windowGlfw.ShouldClose() {
		glfw.PollEvents()

		now := glfw.GetTime()
		dt := now - stage.lastTime
		stage.lastTime = now

		if stage.driver != nil {
			stage.driver(stage.skeleton, now)
		}
		stage.skeleton.UpdateWorldTransform()
		stage.renderFrame()

		stage.frameCount++
		if now-stage.lastFPSPrint >= 0.5 {
			instances := stage.gridSize * stage.gridSize
			log.Infof("%.2f FPS -- %d instances", 1.0/max(dt, 0.001), instances)
			stage.lastFPSPrint = now
		}
	}
	return nil
}

func (s *Stage) loadDemo(index int) error {
	demo := s.demos[index]

	atlas, err := spine.LoadAtlas(demo.AtlasPath, s.log)
	if err != nil {
		return err
	}
	data, err := spine.LoadSkeletonJSON(demo.SkeletonPath, atlas, s.log)
	if err != nil {
		return err
	}

	skeleton := spine.NewSkeleton(data)
	skeleton.PremultipliedAlpha = atlas.PMA()
	if demo.Skin != "" && !skeleton.SetSkin(demo.Skin) {
		s.log.Warnf("skin %q not found in %s", demo.Skin, demo.SkeletonPath)
	}
	skeleton.UpdateWorldTransform()

	baked, err := render.Bake(skeleton, render.DefaultLimits(), s.log)
	if err != nil {
		return fmt.Errorf("bake %s: %w", demo.SkeletonPath, err)
	}
	buffers, err := s.renderer.UploadBuffers(baked)
	if err != nil {
		return err
	}

	// Retire the previous demo's resources. Textures go through the delete
	// queue and die at the next frame start, never mid-frame.
	if s.atlas != nil {
		for _, page := range s.atlas.Pages {
			s.renderer.Textures.Release(page.ID)
		}
	}
	if s.buffers != nil {
		s.buffers.Release()
	}

	s.renderer.Textures.RegisterAtlas(atlas)
	s.atlas = atlas
	s.skeleton = skeleton
	s.buffers = buffers
	s.current = index
	s.world = mgl32.Translate3D(demo.Position.X(), demo.Position.Y(), 0).
		Mul4(mgl32.Scale3D(demo.Scale, demo.Scale, 1))
	s.log.Infof("loaded %s: %d bones, %d slots, %d baked attachments",
		demo.SkeletonPath, len(skeleton.Bones), len(skeleton.Slots), len(baked.Meta))
	return nil
}

func (s *Stage) onKey(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	switch key {
	case glfw.KeyEqual, glfw.KeyKPAdd:
		s.gridSize = min(s.gridSize+1, 12)
	case glfw.KeyMinus, glfw.KeyKPSubtract:
		s.gridSize = max(s.gridSize-1, 1)
	case glfw.KeySpace:
		next := (s.current + 1) % len(s.demos)
		if err := s.loadDemo(next); err != nil {
			s.log.Errorf("load demo %d: %v", next, err)
		}
	case glfw.KeyEscape:
		s.window.windowGlfw.SetShouldClose(true)
	}
}

// cellView builds the per-cell view matrix for grid rendering: the base
// orthographic projection translated to the cell center and scaled down so
// all instances fit the window.
func (s *Stage) cellView(row, col int) mgl32.Mat4 {
	w := float32(s.window.WindowWidth)
	h := float32(s.window.WindowHeight)
	grid := float32(s.gridSize)

	ortho := mgl32.Ortho(-w*0.5, w*0.5, -h*0.5, h*0.5, -1, 1)
	cellW := w / grid
	cellH := h / grid
	cx := float32(col)*cellW + cellW*0.75 - w*0.5
	cy := float32(row)*cellH + cellH*0.75 - h*0.5

	return ortho.
		Mul4(mgl32.Translate3D(cx, cy, 0)).
		Mul4(mgl32.Scale3D(1/grid, 1/grid, 1))
}

func (s *Stage) renderFrame() {
	s.renderer.BeginFrame()

	// One extraction per frame; the grid cells reuse the same pose and only
	// swap the view matrix.
	if err := render.Extract(s.skeleton, s.buffers.Baked, s.uniforms, s.log); err != nil {
		s.log.Debugf("extract: %v", err)
	}

	nextTexture, err := s.gpu.surface.GetCurrentTexture()
	if err != nil {
		s.log.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		s.log.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	// Each cell writes its own view matrix into the shared uniform buffer,
	// so each gets its own submit.
	first := true
	for row := 0; row < s.gridSize; row++ {
		for col := 0; col < s.gridSize; col++ {
			s.uniforms.World = s.world
			s.uniforms.View = s.cellView(row, col)
			if err := s.renderer.WriteUniforms(s.uniforms); err != nil {
				s.log.Errorf("write uniforms: %v", err)
				return
			}

			encoder, err := s.gpu.device.CreateCommandEncoder(nil)
			if err != nil {
				s.log.Errorf("CreateCommandEncoder failed: %v", err)
				return
			}

			loadOp := wgpu.LoadOpLoad
			if first {
				loadOp = wgpu.LoadOpClear
				first = false
			}
			pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
				ColorAttachments: []wgpu.RenderPassColorAttachment{{
					View:       view,
					LoadOp:     loadOp,
					StoreOp:    wgpu.StoreOpStore,
					ClearValue: wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1},
				}},
			})
			s.renderer.DrawFrame(pass, s.skeleton, s.buffers, s.uniforms)
			if err := pass.End(); err != nil {
				s.log.Errorf("render pass End failed: %v", err)
			}

			cmd, err := encoder.Finish(nil)
			if err != nil {
				s.log.Errorf("encoder Finish failed: %v", err)
				return
			}
			s.gpu.queue.Submit(cmd)
		}
	}

	s.gpu.surface.Present()
}
