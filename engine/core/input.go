package core

import "sync"

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// Key codes follow the virtual-key numbering; the platform layer translates into these.
type KeyCode uint16

const (
	KEY_BACKSPACE KeyCode = 0x08
	KEY_TAB       KeyCode = 0x09
	KEY_ENTER     KeyCode = 0x0D
	KEY_SHIFT     KeyCode = 0x10
	KEY_CONTROL   KeyCode = 0x11
	KEY_PAUSE     KeyCode = 0x13
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28
	KEY_0         KeyCode = 0x30
	KEY_9         KeyCode = 0x39
	KEY_A         KeyCode = 0x41
	KEY_D         KeyCode = 0x44
	KEY_F         KeyCode = 0x46
	KEY_I         KeyCode = 0x49
	KEY_P         KeyCode = 0x50
	KEY_Q         KeyCode = 0x51
	KEY_R         KeyCode = 0x52
	KEY_S         KeyCode = 0x53
	KEY_V         KeyCode = 0x56
	KEY_W         KeyCode = 0x57
	KEY_Z         KeyCode = 0x5A
	KEY_F1        KeyCode = 0x70
	KEY_F12       KeyCode = 0x7B

	KEYS_MAX_KEYS KeyCode = 0xFF
)

type MouseState struct {
	X       uint16
	Y       uint16
	Buttons [BUTTON_MAX_BUTTONS]bool
}

type KeyboardState struct {
	Keys [KEYS_MAX_KEYS + 1]bool
}

// Input state holds current and previous states for keyboard and mouse.
// Writes come from the platform callbacks, reads from the simulation goroutine.
type InputState struct {
	mu               sync.RWMutex
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState
	MouseCurrent     MouseState
	MousePrevious    MouseState
}

var inputState *InputState

func InputInitialize() error {
	inputState = &InputState{}
	LogInfo("Input subsystem initialized.")
	return nil
}

func InputShutdown() error {
	inputState = nil
	return nil
}

// InputUpdate copies current states to previous states. Call once per frame after input was recorded.
func InputUpdate() {
	if inputState == nil {
		return
	}
	inputState.mu.Lock()
	inputState.KeyboardPrevious = inputState.KeyboardCurrent
	inputState.MousePrevious = inputState.MouseCurrent
	inputState.mu.Unlock()
}

func readInput[T any](fn func(s *InputState) T) T {
	var zero T
	if inputState == nil {
		return zero
	}
	inputState.mu.RLock()
	defer inputState.mu.RUnlock()
	return fn(inputState)
}

func InputIsKeyDown(key KeyCode) bool {
	return readInput(func(s *InputState) bool { return s.KeyboardCurrent.Keys[key] })
}

func InputIsKeyUp(key KeyCode) bool {
	return !InputIsKeyDown(key)
}

func InputWasKeyDown(key KeyCode) bool {
	return readInput(func(s *InputState) bool { return s.KeyboardPrevious.Keys[key] })
}

// InputKeyReleased reports a key that went down last frame and is up now.
func InputKeyReleased(key KeyCode) bool {
	return InputIsKeyUp(key) && InputWasKeyDown(key)
}

func InputProcessKey(key KeyCode, pressed bool) {
	if inputState == nil || key > KEYS_MAX_KEYS {
		return
	}
	inputState.mu.Lock()
	changed := inputState.KeyboardCurrent.Keys[key] != pressed
	inputState.KeyboardCurrent.Keys[key] = pressed
	inputState.mu.Unlock()
	if !changed {
		return
	}

	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	EventFire(EventContext{
		Type: code,
		Data: &KeyEvent{KeyCode: key},
	})
}

func InputIsButtonDown(button Button) bool {
	return readInput(func(s *InputState) bool { return s.MouseCurrent.Buttons[button] })
}

func InputWasButtonDown(button Button) bool {
	return readInput(func(s *InputState) bool { return s.MousePrevious.Buttons[button] })
}

func InputGetMousePosition() (int32, int32) {
	pos := readInput(func(s *InputState) [2]int32 {
		return [2]int32{int32(s.MouseCurrent.X), int32(s.MouseCurrent.Y)}
	})
	return pos[0], pos[1]
}

func InputProcessButton(button Button, pressed bool) {
	if inputState == nil || button >= BUTTON_MAX_BUTTONS {
		return
	}
	inputState.mu.Lock()
	changed := inputState.MouseCurrent.Buttons[button] != pressed
	inputState.MouseCurrent.Buttons[button] = pressed
	inputState.mu.Unlock()
	if !changed {
		return
	}

	code := EVENT_CODE_BUTTON_RELEASED
	if pressed {
		code = EVENT_CODE_BUTTON_PRESSED
	}
	EventFire(EventContext{
		Type: code,
		Data: &MouseEvent{Button: button},
	})
}

func InputProcessMouseMove(x uint16, y uint16) {
	if inputState == nil {
		return
	}
	inputState.mu.Lock()
	changed := inputState.MouseCurrent.X != x || inputState.MouseCurrent.Y != y
	inputState.MouseCurrent.X = x
	inputState.MouseCurrent.Y = y
	inputState.mu.Unlock()
	if !changed {
		return
	}
	EventFire(EventContext{
		Type: EVENT_CODE_MOUSE_MOVED,
		Data: &MouseEvent{PosX: x, PosY: y},
	})
}

func InputProcessMouseWheel(zDelta int8) {
	EventFire(EventContext{
		Type: EVENT_CODE_MOUSE_WHEEL,
		Data: &MouseEvent{Scroll: zDelta},
	})
}
