package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/spinegpu/app"
	"github.com/gekko3d/spinegpu/spine"
)

func main() {
	atlasPath := flag.String("atlas", "assets/spineboy/spineboy.atlas", "atlas file")
	skeletonPath := flag.String("skeleton", "assets/spineboy/spineboy-pro.json", "skeleton json file")
	skin := flag.String("skin", "", "skin name (default: first skin)")
	scale := flag.Float64("scale", 0.5, "render scale")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg := app.DefaultConfig()
	cfg.Debug = *debug

	demos := []app.Demo{
		{
			AtlasPath:    *atlasPath,
			SkeletonPath: *skeletonPath,
			Skin:         *skin,
			Position:     mgl32.Vec2{0, -220},
			Scale:        float32(*scale),
		},
	}

	// Without a timeline engine attached, sway the non-root bones so the GPU
	// skinning is visible.
	driver := func(sk *spine.Skeleton, elapsed float64) {
		for i, bone := range sk.Bones {
			if bone.Parent == nil {
				continue
			}
			phase := float32(elapsed) + float32(i)*0.3
			bone.Rotation = bone.Data.Rotation + math32.Sin(phase)*4
		}
	}

	if err := app.Run(cfg, demos, driver); err != nil {
		fmt.Fprintf(os.Stderr, "spineview: %v\n", err)
		os.Exit(1)
	}
}
