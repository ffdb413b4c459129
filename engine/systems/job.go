package systems

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
)

// JobTask runs Run on a worker. OnComplete or OnFailure then runs on the
// goroutine calling Update, so it may touch the renderer.
type JobTask struct {
	Name       string
	Run        func() (interface{}, error)
	OnComplete func(result interface{})
	OnFailure  func(err error)
}

type jobResult struct {
	task   JobTask
	result interface{}
	err    error
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	results    *containers.SwapQueue[jobResult]
	pending    atomic.Int64
	wg         sync.WaitGroup

	// guards closed against sends on the closed queue
	mu     sync.RWMutex
	closed bool
}

var ErrNoWorkers = errors.New("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = errors.New("job system is shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
		results:    containers.NewSwapQueue[jobResult](channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				res, err := job.Run()
				if err != nil {
					core.LogError("job '%s' failed: %v", job.Name, err)
				}
				js.results.Push(jobResult{task: job, result: res, err: err})
			}
		}()
	}
}

// Shutdown stops the workers after the queued jobs ran. Their callbacks are
// dropped.
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mu.Unlock()
	js.wg.Wait()
	js.results.Drain()
	js.pending.Store(0)
	return nil
}

// Update delivers finished jobs to their callbacks. Call it once per frame
// from the render goroutine. It returns the number of jobs delivered.
func (js *JobSystem) Update() int {
	done := js.results.Drain()
	for _, r := range done {
		js.pending.Add(-1)
		if r.err != nil {
			if r.task.OnFailure != nil {
				r.task.OnFailure(r.err)
			}
			continue
		}
		if r.task.OnComplete != nil {
			r.task.OnComplete(r.result)
		}
	}
	return len(done)
}

// Pending reports jobs submitted but not yet delivered by Update.
func (js *JobSystem) Pending() int {
	return int(js.pending.Load())
}

// Submit queues jt, blocking while the queue is full.
func (js *JobSystem) Submit(jt JobTask) error {
	if jt.Run == nil {
		return core.NewError(core.KindUsage, "job '%s' has nothing to run", jt.Name)
	}
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	js.pending.Add(1)
	js.jobQueue <- jt
	return nil
}
