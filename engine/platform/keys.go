package platform

import (
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/tessera/engine/core"
)

var namedKeys = map[glfw.Key]core.KeyCode{
	glfw.KeyBackspace:    core.KEY_BACKSPACE,
	glfw.KeyTab:          core.KEY_TAB,
	glfw.KeyEnter:        core.KEY_ENTER,
	glfw.KeyLeftShift:    core.KEY_SHIFT,
	glfw.KeyRightShift:   core.KEY_SHIFT,
	glfw.KeyLeftControl:  core.KEY_CONTROL,
	glfw.KeyRightControl: core.KEY_CONTROL,
	glfw.KeyPause:        core.KEY_PAUSE,
	glfw.KeyEscape:       core.KEY_ESCAPE,
	glfw.KeySpace:        core.KEY_SPACE,
	glfw.KeyLeft:         core.KEY_LEFT,
	glfw.KeyUp:           core.KEY_UP,
	glfw.KeyRight:        core.KEY_RIGHT,
	glfw.KeyDown:         core.KEY_DOWN,
}

// translateKey maps a glfw key onto the engine's virtual-key codes.
// Letters, digits and F1-F12 map by offset.
func translateKey(key glfw.Key) (core.KeyCode, bool) {
	if code, ok := namedKeys[key]; ok {
		return code, true
	}
	switch {
	case key >= glfw.KeyA && key <= glfw.KeyZ:
		return core.KEY_A + core.KeyCode(key-glfw.KeyA), true
	case key >= glfw.Key0 && key <= glfw.Key9:
		return core.KEY_0 + core.KeyCode(key-glfw.Key0), true
	case key >= glfw.KeyF1 && key <= glfw.KeyF12:
		return core.KEY_F1 + core.KeyCode(key-glfw.KeyF1), true
	}
	return 0, false
}

func translateButton(b glfw.MouseButton) (core.Button, bool) {
	switch b {
	case glfw.MouseButtonLeft:
		return core.BUTTON_LEFT, true
	case glfw.MouseButtonRight:
		return core.BUTTON_RIGHT, true
	case glfw.MouseButtonMiddle:
		return core.BUTTON_MIDDLE, true
	}
	return 0, false
}
