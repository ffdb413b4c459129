package core

import (
	"sync"

	"github.com/spaghettifunk/tessera/engine/containers"
)

const AVG_COUNT = 30

// Frame timing over a sliding window. Updated by the render loop, read by anyone.
type Metrics struct {
	mu                 sync.Mutex
	frameTimes         *containers.RingQueue[float64]
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewMetrics() *Metrics {
	return &Metrics{
		frameTimes: containers.NewRingQueue[float64](AVG_COUNT),
	}
}

// Update records one frame that took frameElapsedTime seconds.
func (m *Metrics) Update(frameElapsedTime float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameMS := frameElapsedTime * 1000.0
	m.frameTimes.Push(frameMS)

	var sum float64
	m.frameTimes.Each(func(v float64) { sum += v })
	m.msAvg = sum / float64(m.frameTimes.Len())

	// Frames per second.
	m.accumulatedFrameMS += frameMS
	m.frames++
	if m.accumulatedFrameMS >= 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}
}

// Frame returns the last measured FPS and the average frame time in ms.
func (m *Metrics) Frame() (float64, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps, m.msAvg
}
