package core

import (
	"sync"

	"github.com/spaghettifunk/tessera/engine/containers"
)

// System internal event codes. Application should use codes beyond 255.
type EventCode uint16

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01
	// Data: *KeyEvent
	EVENT_CODE_KEY_PRESSED EventCode = 0x02
	// Data: *KeyEvent
	EVENT_CODE_KEY_RELEASED EventCode = 0x03
	// Data: *MouseEvent
	EVENT_CODE_BUTTON_PRESSED EventCode = 0x04
	// Data: *MouseEvent
	EVENT_CODE_BUTTON_RELEASED EventCode = 0x05
	// Data: *MouseEvent
	EVENT_CODE_MOUSE_MOVED EventCode = 0x06
	// Data: *MouseEvent
	EVENT_CODE_MOUSE_WHEEL EventCode = 0x07
	// Framebuffer size changed. Data: *SystemEvent
	EVENT_CODE_RESIZED EventCode = 0x08
	// A watched asset changed on disk. Data: *AssetEvent
	EVENT_CODE_ASSET_CHANGED EventCode = 0x09

	MAX_EVENT_CODE EventCode = 0xFF
)

type EventContext struct {
	Type EventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type MouseEvent struct {
	Button Button
	PosX   uint16
	PosY   uint16
	Scroll int8
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type AssetEvent struct {
	Path string
}

type FnOnEvent func(context EventContext)

type eventSystemState struct {
	mu         sync.RWMutex
	registered map[EventCode][]FnOnEvent
	queue      *containers.SwapQueue[EventContext]
}

var eventState *eventSystemState

func EventSystemInitialize() bool {
	if eventState != nil {
		return false
	}
	eventState = &eventSystemState{
		registered: make(map[EventCode][]FnOnEvent),
		queue:      containers.NewSwapQueue[EventContext](64),
	}
	return true
}

func EventSystemShutdown() error {
	eventState = nil
	return nil
}

// EventRegister adds a listener for code. Listeners run in registration order.
func EventRegister(code EventCode, onEvent FnOnEvent) bool {
	if eventState == nil || onEvent == nil {
		return false
	}
	eventState.mu.Lock()
	eventState.registered[code] = append(eventState.registered[code], onEvent)
	eventState.mu.Unlock()
	return true
}

// EventUnregisterAll drops every listener for code.
func EventUnregisterAll(code EventCode) {
	if eventState == nil {
		return
	}
	eventState.mu.Lock()
	delete(eventState.registered, code)
	eventState.mu.Unlock()
}

// EventFire queues an event. It is safe to call from any goroutine; listeners
// run on the goroutine that calls EventDispatch.
func EventFire(context EventContext) bool {
	if eventState == nil {
		return false
	}
	eventState.queue.Push(context)
	return true
}

// EventDispatch delivers every queued event, in fire order, and reports how many were delivered.
func EventDispatch() int {
	if eventState == nil {
		return 0
	}
	events := eventState.queue.Drain()
	for _, ev := range events {
		eventState.mu.RLock()
		listeners := eventState.registered[ev.Type]
		eventState.mu.RUnlock()
		for _, fn := range listeners {
			fn(ev)
		}
	}
	return len(events)
}
