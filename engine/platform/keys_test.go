package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/tessera/engine/core"
)

func TestTranslateKey(t *testing.T) {
	tests := []struct {
		key  glfw.Key
		want core.KeyCode
		ok   bool
	}{
		{glfw.KeyEscape, core.KEY_ESCAPE, true},
		{glfw.KeyA, core.KEY_A, true},
		{glfw.KeyD, core.KEY_D, true},
		{glfw.KeyZ, core.KEY_Z, true},
		{glfw.Key0, core.KEY_0, true},
		{glfw.Key9, core.KEY_9, true},
		{glfw.KeyF1, core.KEY_F1, true},
		{glfw.KeyF12, core.KEY_F12, true},
		{glfw.KeyRightShift, core.KEY_SHIFT, true},
		{glfw.KeyGraveAccent, 0, false},
	}
	for _, tt := range tests {
		have, ok := translateKey(tt.key)
		if ok != tt.ok || have != tt.want {
			t.Errorf("translateKey(%d): have (%#x, %v), want (%#x, %v)", tt.key, have, ok, tt.want, tt.ok)
		}
	}
}

func TestTranslateButton(t *testing.T) {
	if have, ok := translateButton(glfw.MouseButtonRight); !ok || have != core.BUTTON_RIGHT {
		t.Errorf("have (%d, %v), want (%d, true)", have, ok, core.BUTTON_RIGHT)
	}
	if _, ok := translateButton(glfw.MouseButton4); ok {
		t.Error("extra mouse buttons must not translate")
	}
}

func TestScrollDelta(t *testing.T) {
	for yoff, want := range map[float64]int8{2.5: 1, -0.1: -1, 0: 0} {
		if have := scrollDelta(yoff); have != want {
			t.Errorf("scrollDelta(%v): have %d, want %d", yoff, have, want)
		}
	}
}
