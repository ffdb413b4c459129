package vulkan

import "sync"

type LockGroup string

const (
	CommandPoolManagement LockGroup = "command_pool_management"
	DescriptorManagement  LockGroup = "descriptor_management"
	PipelineManagement    LockGroup = "pipeline_management"
	SwapchainManagement   LockGroup = "swapchain_management"
)

// LockPool hands out one mutex per object group that Vulkan requires to be
// externally synchronized, plus one per queue family.
type LockPool struct {
	mu     sync.Mutex
	locks  map[LockGroup]*sync.Mutex
	queues map[uint32]*sync.Mutex
}

func NewLockPool() *LockPool {
	return &LockPool{
		locks:  make(map[LockGroup]*sync.Mutex),
		queues: make(map[uint32]*sync.Mutex),
	}
}

func (lp *LockPool) group(g LockGroup) *sync.Mutex {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	l, ok := lp.locks[g]
	if !ok {
		l = &sync.Mutex{}
		lp.locks[g] = l
	}
	return l
}

func (lp *LockPool) queue(family uint32) *sync.Mutex {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	l, ok := lp.queues[family]
	if !ok {
		l = &sync.Mutex{}
		lp.queues[family] = l
	}
	return l
}

// SafeCall runs fn while holding the group's mutex.
func (lp *LockPool) SafeCall(g LockGroup, fn func() error) error {
	l := lp.group(g)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// SafeQueueCall runs fn while holding the mutex of the queue family.
func (lp *LockPool) SafeQueueCall(family uint32, fn func() error) error {
	l := lp.queue(family)
	l.Lock()
	defer l.Unlock()
	return fn()
}
