package core

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func TestMain(m *testing.M) {
	SetLogOutput(io.Discard)
	m.Run()
}

func TestErrorKinds(t *testing.T) {
	err := NewError(KindCapacity, "slot %d taken", 3)
	if KindOf(err) != KindCapacity {
		t.Fatalf("KindOf: have %v, want capacity", KindOf(err))
	}
	if !IsCapacity(err) {
		t.Fatal("IsCapacity: have false, want true")
	}
	if err.Error() != "slot 3 taken" {
		t.Fatalf("message: have %q", err.Error())
	}
	if loc := ErrorLocation(err); !strings.Contains(loc, "core_test.go") {
		t.Fatalf("ErrorLocation: have %q, want a core_test.go location", loc)
	}
}

func TestWrapErrorKeepsCause(t *testing.T) {
	if WrapError(nil, KindInit, "nothing") != nil {
		t.Fatal("WrapError(nil): want nil")
	}

	base := errors.Mark(errors.New("vkCreateDevice failed"), ErrNoSuitableDevice)
	err := WrapError(base, KindInit, "creating device")
	if !errors.Is(err, ErrNoSuitableDevice) {
		t.Fatal("wrapped error lost its sentinel")
	}
	if KindOf(err) != KindInit {
		t.Fatalf("KindOf: have %v, want init", KindOf(err))
	}
	if !strings.HasPrefix(err.Error(), "creating device: ") {
		t.Fatalf("message: have %q", err.Error())
	}

	// init outranks capacity when both are present in the chain
	err = WrapError(NewError(KindCapacity, "full"), KindInit, "startup")
	if KindOf(err) != KindInit {
		t.Fatalf("KindOf: have %v, want init", KindOf(err))
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatal("plain error should be unknown")
	}
}

func TestDecodeConfig(t *testing.T) {
	cfg := DefaultConfig()
	data := []byte(`
[window]
title = "demo"
width = 1024
height = 768

[renderer]
immediate = true
sample_count = 4
clear_color = [1.0, 0.0, 0.0, 1.0]
`)
	if err := DecodeConfig(data, cfg); err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Window.Title != "demo" || cfg.Window.Width != 1024 || cfg.Window.Height != 768 {
		t.Fatalf("window: have %+v", cfg.Window)
	}
	if !cfg.Renderer.Immediate || cfg.Renderer.SampleCount != 4 {
		t.Fatalf("renderer: have %+v", cfg.Renderer)
	}
	if cfg.Renderer.ClearColor != [4]float32{1, 0, 0, 1} {
		t.Fatalf("clear color: have %v", cfg.Renderer.ClearColor)
	}
	// untouched keys keep their defaults
	if cfg.Renderer.StagingMemoryMB != 16 || cfg.Log.Level != "info" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestDecodeConfigRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "[window]\nfullscreen = true\n",
		"sample count": "[renderer]\nsample_count = 3\n",
		"zero width":   "[window]\nwidth = 0\n",
		"zero staging": "[renderer]\nstaging_memory_mb = 0\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if err := DecodeConfig([]byte(data), DefaultConfig()); err == nil {
				t.Fatal("want error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir() + "/absent.toml")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Window.Width != 800 || cfg.Window.Height != 600 {
		t.Fatalf("want defaults, have %+v", cfg.Window)
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"debug":   DebugLevel,
		" WARN ":  WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
		"warning": WarnLevel,
	} {
		if have := ParseLogLevel(in); have != want {
			t.Errorf("ParseLogLevel(%q): have %v, want %v", in, have, want)
		}
	}
}

func TestEventDispatchOrder(t *testing.T) {
	EventSystemInitialize()
	defer EventSystemShutdown()

	var got []uint32
	EventRegister(EVENT_CODE_RESIZED, func(ctx EventContext) {
		got = append(got, ctx.Data.(*SystemEvent).WindowWidth)
	})

	EventFire(EventContext{Type: EVENT_CODE_RESIZED, Data: &SystemEvent{WindowWidth: 1}})
	EventFire(EventContext{Type: EVENT_CODE_KEY_PRESSED, Data: &KeyEvent{KeyCode: KEY_A}})
	EventFire(EventContext{Type: EVENT_CODE_RESIZED, Data: &SystemEvent{WindowWidth: 2}})
	if len(got) != 0 {
		t.Fatal("listeners ran before dispatch")
	}

	if n := EventDispatch(); n != 3 {
		t.Fatalf("EventDispatch: have %d, want 3", n)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("have %v, want [1 2]", got)
	}
	if n := EventDispatch(); n != 0 {
		t.Fatalf("second dispatch: have %d, want 0", n)
	}
}

func TestInputKeyTransitions(t *testing.T) {
	EventSystemInitialize()
	defer EventSystemShutdown()
	InputInitialize()
	defer InputShutdown()

	var pressed int
	EventRegister(EVENT_CODE_KEY_PRESSED, func(EventContext) { pressed++ })

	InputProcessKey(KEY_SPACE, true)
	InputProcessKey(KEY_SPACE, true)
	EventDispatch()
	if pressed != 1 {
		t.Fatalf("pressed events: have %d, want 1", pressed)
	}
	if !InputIsKeyDown(KEY_SPACE) {
		t.Fatal("space should be down")
	}

	InputUpdate()
	InputProcessKey(KEY_SPACE, false)
	if !InputKeyReleased(KEY_SPACE) {
		t.Fatal("space should read as released")
	}
	InputUpdate()
	if InputKeyReleased(KEY_SPACE) {
		t.Fatal("release must only be reported for one frame")
	}
}

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(0.010)
	}
	for i := 0; i < 2*AVG_COUNT; i++ {
		m.Update(0.020)
	}
	_, avg := m.Frame()
	if avg < 19.999 || avg > 20.001 {
		t.Fatalf("average: have %f, want 20", avg)
	}
	fps, _ := m.Frame()
	if fps == 0 {
		t.Fatal("fps should be measured after one second of frames")
	}
}

func TestClock(t *testing.T) {
	now := time.Unix(100, 0)
	c := &Clock{now: func() time.Time { return now }}
	c.Update()
	if c.Elapsed() != 0 {
		t.Fatal("stopped clock must not advance")
	}
	c.Start()
	now = now.Add(1500 * time.Millisecond)
	c.Update()
	if c.Elapsed() != 1.5 {
		t.Fatalf("elapsed: have %f, want 1.5", c.Elapsed())
	}
}

func TestRaiseMatchesSentinel(t *testing.T) {
	err := Raise(ErrStagingExhausted, KindCapacity, "need %d bytes", 64)
	if !errors.Is(err, ErrStagingExhausted) || !IsCapacity(err) {
		t.Fatalf("Raise lost its sentinel or kind: %v", err)
	}
	if loc := ErrorLocation(err); !strings.Contains(loc, "core_test.go") {
		t.Fatalf("ErrorLocation: have %q", loc)
	}
}
