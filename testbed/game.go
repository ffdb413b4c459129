package testbed

import (
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/tessera/engine"
	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/components"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
	"github.com/spaghettifunk/tessera/engine/systems"
)

const (
	maxQuads     = 1024
	maxBatches   = 8
	spriteSize   = 128
	orbitRadius  = 150
	orbitSpeed   = 0.8
	moveSpeed    = 300
	zoomSpeed    = 1.5
	spriteName   = "tessera"
	shaderName   = "sprite"
	fontSize     = 24
	updateBuffer = 16
)

type TestGame struct {
	*engine.Game
}

// spriteState is what the simulation hands to the render goroutine each tick.
type spriteState struct {
	Position math.Vec2
	Rotation float32
	Zoom     float32
}

type batch struct {
	texture *renderer.Texture
	set     gpu.DescriptorSet
	first   uint32
	count   uint32
	// drawn in screen space instead of through the camera
	overlay bool
}

type gameState struct {
	engine *engine.Engine

	// simulation side
	elapsed float64
	offset  math.Vec2
	zoom    float32
	updates *containers.SwapQueue[spriteState]

	// render side
	current  spriteState
	camera   *components.Camera
	width    uint32
	height   uint32
	pipeline *renderer.PipelineBuilder
	layout   gpu.DescriptorSetLayout
	sampler  gpu.Sampler
	sprite   *renderer.Texture
	font     *systems.Font
	vertices gpu.Buffer
	indices  gpu.Buffer
	batches  []batch
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:       "Tessera Testbed",
				ConfigPath: "tessera.toml",
				TickRate:   60,
			},
			State: &gameState{
				zoom:    1,
				updates: containers.NewSwapQueue[spriteState](updateBuffer),
				camera:  components.NewCamera(),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnPrepare = tg.Prepare
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogDebug("TestGame Initialize fn....")

	state := g.State.(*gameState)
	state.engine = e
	r := e.Renderer()
	sm := e.Systems()

	b := r.NewPipelineBuilder()
	layout, err := b.NewDescriptorSetLayout(gpu.DescriptorBinding{
		Binding: 0,
		Type:    gpu.DescriptorCombinedImageSampler,
		Count:   1,
		Stages:  gpu.ShaderStageFragment,
	})
	if err != nil {
		return err
	}
	if err := sm.Shaders().Bind(shaderName, b); err != nil {
		return err
	}
	b.SetVertexFormat(math.Vertex2DSize,
		gpu.VertexAttribute{Location: 0, Format: gpu.FormatRG32Float, Offset: math.Vertex2DPositionOffset},
		gpu.VertexAttribute{Location: 1, Format: gpu.FormatRG32Float, Offset: math.Vertex2DTexcoordOffset},
		gpu.VertexAttribute{Location: 2, Format: gpu.FormatRGBA32Float, Offset: math.Vertex2DColourOffset},
	).
		Blending(renderer.BlendAlpha).
		SetPushConstants(gpu.PushConstantRange{Stages: gpu.ShaderStageVertex, Offset: 0, Size: 64})
	if err := r.CompilePipelines(b); err != nil {
		return err
	}
	state.pipeline = b
	state.layout = layout

	if err := r.DeclareDescriptors(renderer.DescriptorLayoutDesc{Layout: layout, MaxSets: maxBatches}); err != nil {
		return err
	}
	if state.sampler, err = r.NewSampler(gpu.FilterLinear, gpu.AddressModeClampToEdge); err != nil {
		return err
	}

	if state.sprite, err = sm.Textures().Acquire(spriteName); err != nil {
		return err
	}
	sm.Textures().OnReload(func(name string, tex *renderer.Texture) {
		if name == spriteName {
			state.sprite = tex
		}
	})
	if state.font, err = sm.Fonts().LoadSystem(systems.DefaultFontName, fontSize); err != nil {
		return err
	}

	if state.vertices, err = r.NewVertexBuffer(maxQuads * 4 * math.Vertex2DSize); err != nil {
		return err
	}
	if state.indices, err = r.NewIndexBuffer(maxQuads * 6 * 2); err != nil {
		return err
	}

	core.EventRegister(core.EVENT_CODE_KEY_RELEASED, g.gameOnKey)
	return nil
}

// Update moves the sprite on the simulation goroutine and publishes the
// result. The arrow keys push it off its orbit, W and S zoom.
func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.elapsed += deltaTime

	step := float32(moveSpeed * deltaTime)
	if core.InputIsKeyDown(core.KEY_LEFT) {
		state.offset.X -= step
	}
	if core.InputIsKeyDown(core.KEY_RIGHT) {
		state.offset.X += step
	}
	if core.InputIsKeyDown(core.KEY_UP) {
		state.offset.Y -= step
	}
	if core.InputIsKeyDown(core.KEY_DOWN) {
		state.offset.Y += step
	}
	if core.InputIsKeyDown(core.KEY_W) {
		state.zoom *= float32(1 + zoomSpeed*deltaTime)
	}
	if core.InputIsKeyDown(core.KEY_S) {
		state.zoom /= float32(1 + zoomSpeed*deltaTime)
	}
	state.zoom = math.Clamp(state.zoom, components.MinZoom, components.MaxZoom)
	if core.InputKeyReleased(core.KEY_SPACE) {
		state.offset = math.Vec2{}
		state.zoom = 1
	}

	angle := state.elapsed * orbitSpeed
	state.updates.Push(spriteState{
		Position: math.NewVec2(
			float32(gomath.Cos(angle)*orbitRadius)+state.offset.X,
			float32(gomath.Sin(angle)*orbitRadius)+state.offset.Y,
		),
		Rotation: float32(angle),
		Zoom:     state.zoom,
	})
	return nil
}

// Prepare builds this frame's geometry and stages it, so AcquireFrame
// records the uploads ahead of the draws.
func (g *TestGame) Prepare(r *renderer.Renderer, deltaTime float64) error {
	state := g.State.(*gameState)
	if updates := state.updates.Drain(); len(updates) > 0 {
		state.current = updates[len(updates)-1]
		state.camera.SetZoom(state.current.Zoom)
	}

	var vertices []math.Vertex2D
	var indices []uint16
	state.batches = state.batches[:0]
	add := func(tex *renderer.Texture, overlay bool, vs []math.Vertex2D, is []uint16) {
		if len(vs) == 0 || len(state.batches) == maxBatches || len(vertices)+len(vs) > maxQuads*4 {
			return
		}
		base := uint16(len(vertices))
		first := uint32(len(indices))
		vertices = append(vertices, vs...)
		for _, i := range is {
			indices = append(indices, base+i)
		}
		state.batches = append(state.batches, batch{texture: tex, first: first, count: uint32(len(is)), overlay: overlay})
	}

	add(state.sprite, false, spriteQuad(state.current), []uint16{0, 1, 2, 2, 3, 0})

	fps, ms := state.engine.Metrics().Frame()
	text := fmt.Sprintf("FPS: %5.1f (%4.1fms)\nTimeline: %d  Zoom: %.2f\nArrows move, W/S zoom, space resets",
		fps, ms, r.TimelineValue(), state.camera.Zoom)
	for _, tg := range state.font.Layout(text, math.NewVec2(16, 16), math.NewVec4(1, 1, 1, 1)) {
		add(state.font.Pages[tg.Page], true, tg.Vertices, tg.Indices)
	}
	if len(vertices) == 0 {
		return nil
	}

	err := r.Staging().VertexBufferCopy(math.AppendVertex2D(nil, vertices...), state.vertices)
	if err == nil {
		err = r.Staging().IndexBufferCopy(math.AppendUint16(nil, indices...), state.indices)
	}
	if core.IsCapacity(err) {
		// staging is full this frame, draw nothing rather than stale geometry
		state.batches = state.batches[:0]
		return nil
	}
	if err != nil {
		return err
	}

	// the previous frame has completed by the time its sets are rewritten
	r.Descriptors().Reset(state.layout)
	for i := range state.batches {
		set, err := r.Descriptors().WriteSet(state.layout, renderer.ImageResource(state.batches[i].texture.View, state.sampler))
		if err != nil {
			return err
		}
		state.batches[i].set = set
	}
	return nil
}

// spriteQuad returns the four world space corners of the sprite, rotated
// around its centre.
func spriteQuad(s spriteState) []math.Vertex2D {
	half := float32(spriteSize) / 2
	rot := math.NewMat4RotationZ(s.Rotation)
	white := math.NewVec4(1, 1, 1, 1)
	corners := [4]math.Vertex2D{
		{Position: math.NewVec2(-half, -half), Texcoord: math.NewVec2(0, 0), Colour: white},
		{Position: math.NewVec2(half, -half), Texcoord: math.NewVec2(1, 0), Colour: white},
		{Position: math.NewVec2(half, half), Texcoord: math.NewVec2(1, 1), Colour: white},
		{Position: math.NewVec2(-half, half), Texcoord: math.NewVec2(0, 1), Colour: white},
	}
	for i := range corners {
		p := rot.TransformPoint(corners[i].Position)
		corners[i].Position = p.Add(s.Position)
	}
	return corners[:]
}

func (g *TestGame) Render(r *renderer.Renderer, frame *renderer.Frame, deltaTime float64) error {
	state := g.State.(*gameState)
	if len(state.batches) == 0 {
		return nil
	}
	cmd := frame.Commands
	world := state.camera.ViewProjection(frame.Extent.Width, frame.Extent.Height).Bytes()
	screen := math.NewMat4Orthographic(0, float32(frame.Extent.Width), 0, float32(frame.Extent.Height), -1, 1).Bytes()

	cmd.BindPipeline(state.pipeline.Pipeline())
	cmd.BindVertexBuffer(state.vertices, 0)
	cmd.BindIndexBuffer(state.indices, 0, gpu.IndexTypeUint16)
	for _, b := range state.batches {
		projection := world
		if b.overlay {
			projection = screen
		}
		cmd.PushConstants(state.pipeline.Layout(), gpu.ShaderStageVertex, 0, projection)
		cmd.BindDescriptorSets(state.pipeline.Layout(), 0, b.set)
		cmd.DrawIndexed(b.count, 1, b.first, 0, 0)
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	if state.engine != nil && state.engine.Systems() != nil {
		state.engine.Systems().Textures().Release(spriteName)
	}
	return nil
}

func (g *TestGame) gameOnKey(context core.EventContext) {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		return
	}
	if ke.KeyCode == core.KEY_P {
		state := g.State.(*gameState)
		core.LogDebug("sprite at [%.1f, %.1f], rotation %.2f", state.current.Position.X, state.current.Position.Y, state.current.Rotation)
	}
}
