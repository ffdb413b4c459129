package platform

import (
	"runtime"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	window *glfw.Window
}

func New() *Platform {
	return &Platform{}
}

func (p *Platform) Startup(cfg core.WindowConfig) error {
	if err := glfw.Init(); err != nil {
		return core.WrapError(err, core.KindInit, "initializing glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return core.NewError(core.KindInit, "glfw reports no Vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return core.WrapError(err, core.KindInit, "creating window")
	}
	p.window = window

	p.window.SetKeyCallback(keyCallback)
	p.window.SetMouseButtonCallback(mouseButtonCallback)
	p.window.SetCursorPosCallback(cursorPosCallback)
	p.window.SetScrollCallback(scrollCallback)
	p.window.SetFramebufferSizeCallback(framebufferSizeCallback)
	p.window.SetCloseCallback(closeCallback)
	p.window.SetPos(int(cfg.X), int(cfg.Y))
	p.window.Show()

	core.LogInfo("Window '%s' created at %dx%d.", cfg.Title, cfg.Width, cfg.Height)
	return nil
}

func (p *Platform) Shutdown() {
	if p.window != nil {
		p.window.Destroy()
		p.window = nil
	}
	glfw.Terminate()
}

// PumpMessages polls the window system and reports whether the window is still open.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.window.ShouldClose()
}

// Window is the surface source handed to the renderer.
func (p *Platform) Window() gpu.Window {
	return p.window
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// RequiredExtensions lists the instance extensions the window needs to present.
func (p *Platform) RequiredExtensions() []string {
	return p.window.GetRequiredInstanceExtensions()
}

func GetAbsoluteTime() float64 {
	return glfw.GetTime()
}

func (p *Platform) Sleep(ms float64) {
	time.Sleep(time.Duration(ms * float64(time.Millisecond)))
}

func keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	code, ok := translateKey(key)
	if !ok || action == glfw.Repeat {
		return
	}
	pressed := action == glfw.Press
	core.InputProcessKey(code, pressed)
	ev := core.EventContext{Type: core.EVENT_CODE_KEY_RELEASED, Data: &core.KeyEvent{KeyCode: code}}
	if pressed {
		ev.Type = core.EVENT_CODE_KEY_PRESSED
	}
	core.EventFire(ev)
}

func mouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	b, ok := translateButton(button)
	if !ok {
		return
	}
	pressed := action == glfw.Press
	core.InputProcessButton(b, pressed)
	x, y := w.GetCursorPos()
	ev := core.EventContext{
		Type: core.EVENT_CODE_BUTTON_RELEASED,
		Data: &core.MouseEvent{Button: b, PosX: uint16(x), PosY: uint16(y)},
	}
	if pressed {
		ev.Type = core.EVENT_CODE_BUTTON_PRESSED
	}
	core.EventFire(ev)
}

func cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	x, y := uint16(max(xpos, 0)), uint16(max(ypos, 0))
	core.InputProcessMouseMove(x, y)
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_MOUSE_MOVED,
		Data: &core.MouseEvent{PosX: x, PosY: y},
	})
}

func scrollCallback(w *glfw.Window, xoff, yoff float64) {
	delta := scrollDelta(yoff)
	if delta == 0 {
		return
	}
	core.InputProcessMouseWheel(delta)
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_MOUSE_WHEEL,
		Data: &core.MouseEvent{Scroll: delta},
	})
}

func framebufferSizeCallback(w *glfw.Window, width, height int) {
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.SystemEvent{WindowWidth: uint32(width), WindowHeight: uint32(height)},
	})
}

func closeCallback(w *glfw.Window) {
	core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}

func scrollDelta(yoff float64) int8 {
	switch {
	case yoff > 0:
		return 1
	case yoff < 0:
		return -1
	}
	return 0
}
