package engine

import (
	"github.com/spaghettifunk/tessera/engine/renderer"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnPrepare         Prepare
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

// Initialize runs once after the renderer has an output. Pipelines,
// descriptors and textures are created here.
type Initialize func(e *Engine) error

// Update runs on the simulation goroutine at the fixed tick. It must not
// touch the renderer.
type Update func(deltaTime float64) error

// Prepare runs on the render goroutine before each frame is acquired.
// Staging copies and descriptor writes requested here reach the GPU ahead
// of that frame's draws.
type Prepare func(r *renderer.Renderer, deltaTime float64) error

// Render records into frame on the render goroutine.
type Render func(r *renderer.Renderer, frame *renderer.Frame, deltaTime float64) error

type OnResize func(width uint32, height uint32) error

type Shutdown func() error
