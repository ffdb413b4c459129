package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/tessera/engine/assets"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/platform"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/vulkan"
	"github.com/spaghettifunk/tessera/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// how often frame metrics are logged
const metricsInterval = 5.0

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *core.Config
	isRunning     atomic.Bool
	isSuspended   bool
	platform      *platform.Platform
	context       *vulkan.Context
	renderer      *renderer.Renderer
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	width         uint32
	height        uint32
	clock         *core.Clock
	metrics       *core.Metrics
	lastTime      float64

	simDone chan struct{}
	simWG   sync.WaitGroup
}

// New boots the engine: it loads the configuration and applies the log level.
// Nothing touches the window or the GPU before Initialize.
func New(g *Game) (*Engine, error) {
	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		platform:     platform.New(),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		simDone:      make(chan struct{}),
	}
	cfg, err := core.LoadConfig(g.ApplicationConfig.ConfigPath)
	if err != nil {
		return nil, err
	}
	if g.ApplicationConfig.Name != "" {
		cfg.Window.Title = g.ApplicationConfig.Name
	}
	core.SetLogLevel(core.ParseLogLevel(cfg.Log.Level))
	e.config = cfg
	e.width, e.height = cfg.Window.Width, cfg.Window.Height
	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if err := core.InputInitialize(); err != nil {
		return err
	}
	if !core.EventSystemInitialize() {
		return core.NewError(core.KindInit, "failed to initialize the event system")
	}
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e.onResized)

	if err := e.platform.Startup(e.config.Window); err != nil {
		return err
	}
	e.width, e.height = e.platform.FramebufferSize()

	var err error
	e.context, err = vulkan.NewContext(vulkan.ContextConfig{
		AppName:    e.config.Window.Title,
		Validation: e.config.Renderer.Validation,
		Extensions: e.platform.RequiredExtensions(),
	})
	if err != nil {
		return err
	}
	if e.renderer, err = renderer.New(e.context, e.config.Renderer); err != nil {
		return err
	}
	if err := e.renderer.SetOutput(e.platform.Window(), e.width, e.height); err != nil {
		return err
	}

	if e.assetManager, err = assets.NewAssetManager(e.config.Assets); err != nil {
		return err
	}
	if e.systemManager, err = systems.NewSystemManager(systems.DefaultSystemManagerConfig(e.config), e.renderer, e.assetManager); err != nil {
		return err
	}

	if err := e.gameInstance.FnInitialize(e); err != nil {
		return err
	}
	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives the render loop on the calling goroutine, which must be the
// main thread, and the simulation on a second goroutine. It returns when
// the application quits or a frame fails.
func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.simWG.Add(1)
	go e.simulate(e.gameInstance.ApplicationConfig.tick())

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()
	lastReport := e.lastTime

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}
		core.EventDispatch()
		if !e.isRunning.Load() {
			break
		}
		if e.isSuspended {
			e.platform.Sleep(10)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := platform.GetAbsoluteTime()

		e.systemManager.Update()
		if err := e.drawFrame(delta); err != nil {
			core.LogError("frame failed, shutting down: %v", err)
			e.isRunning.Store(false)
			return err
		}

		e.metrics.Update(platform.GetAbsoluteTime() - frameStartTime)
		if currentTime-lastReport >= metricsInterval {
			fps, ms := e.metrics.Frame()
			core.LogDebug("%.0f fps, %.2f ms/frame, timeline %d", fps, ms, e.renderer.TimelineValue())
			lastReport = currentTime
		}
		e.lastTime = currentTime
	}
	return nil
}

func (e *Engine) drawFrame(delta float64) error {
	if e.gameInstance.FnPrepare != nil && e.renderer.FrameReady() {
		if err := e.gameInstance.FnPrepare(e.renderer, delta); err != nil {
			return err
		}
	}
	status, frame, err := e.renderer.AcquireFrame()
	if err != nil {
		return err
	}
	switch status {
	case renderer.FrameInvalid:
		e.platform.Sleep(1)
	case renderer.FrameRebuild:
		return e.renderer.Rebuild()
	case renderer.FrameRender:
		if err := e.gameInstance.FnRender(e.renderer, frame, delta); err != nil {
			// the frame still has to be submitted to keep the timeline consistent
			if serr := e.renderer.SubmitFrame(); serr != nil {
				core.LogError("submitting after a failed render: %v", serr)
			}
			return err
		}
		return e.renderer.SubmitFrame()
	}
	return nil
}

// simulate calls FnUpdate every tick until Shutdown. Input snapshots roll
// over after each update so pressed/released edges are seen exactly once.
func (e *Engine) simulate(tick time.Duration) {
	defer e.simWG.Done()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-e.simDone:
			return
		case now := <-ticker.C:
			if err := e.gameInstance.FnUpdate(now.Sub(last).Seconds()); err != nil {
				core.LogError("game update failed, shutting down: %v", err)
				core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
				return
			}
			core.InputUpdate()
			last = now
		}
	}
}

// Quit asks the render loop to stop. It is safe to call from any goroutine.
func (e *Engine) Quit() {
	core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}

// Shutdown tears everything down in reverse order of creation. It must run
// on the render goroutine after Run returned.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)
	select {
	case <-e.simDone:
	default:
		close(e.simDone)
	}
	e.simWG.Wait()

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("game shutdown: %v", err)
		}
	}
	if e.systemManager != nil {
		if err := e.systemManager.Shutdown(); err != nil {
			core.LogError("systems shutdown: %v", err)
		}
	}
	if e.renderer != nil {
		e.renderer.Shutdown()
	}
	if e.context != nil {
		e.context.Destroy()
	}
	if e.assetManager != nil {
		if err := e.assetManager.Close(); err != nil {
			core.LogError("closing asset manager: %v", err)
		}
	}
	e.platform.Shutdown()
	if err := core.EventSystemShutdown(); err != nil {
		return err
	}
	if err := core.InputShutdown(); err != nil {
		return err
	}
	e.currentStage = EngineStageUninitialized
	core.LogInfo("Engine shut down.")
	return nil
}

func (e *Engine) Config() *core.Config                 { return e.config }
func (e *Engine) Renderer() *renderer.Renderer         { return e.renderer }
func (e *Engine) Systems() *systems.SystemManager      { return e.systemManager }
func (e *Engine) Assets() *assets.AssetManager         { return e.assetManager }
func (e *Engine) Metrics() *core.Metrics               { return e.metrics }
func (e *Engine) Stage() Stage                         { return e.currentStage }
func (e *Engine) GetFramebufferSize() (uint32, uint32) { return e.width, e.height }

func (e *Engine) onEvent(context core.EventContext) {
	if context.Type == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
	}
}

func (e *Engine) onKey(context core.EventContext) {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		// other listeners may care about the quit too
		e.Quit()
	}
}

func (e *Engine) onResized(context core.EventContext) {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	width, height := se.WindowWidth, se.WindowHeight
	if width == e.width && height == e.height {
		return
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// the renderer reports FrameInvalid for a zero extent on its own
	e.renderer.ResizeOutput(width, height)
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if err := e.gameInstance.FnOnResize(width, height); err != nil {
		core.LogError("game resize: %v", err)
	}
}
