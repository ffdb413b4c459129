package renderer

import (
	"sync"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type ResourceKind int

const (
	ResourceImage ResourceKind = iota
	ResourceBuffer
)

// DescriptorResource is one shader-visible resource: Image is read when Kind
// is ResourceImage, Buffer when it is ResourceBuffer.
type DescriptorResource struct {
	Kind   ResourceKind
	Image  gpu.DescriptorImageInfo
	Buffer gpu.DescriptorBufferInfo
}

func ImageResource(view gpu.ImageView, sampler gpu.Sampler) DescriptorResource {
	return DescriptorResource{
		Kind:  ResourceImage,
		Image: gpu.DescriptorImageInfo{View: view, Sampler: sampler, Layout: gpu.ImageLayoutShaderReadOnly},
	}
}

func BufferResource(buf gpu.Buffer, offset, size uint64) DescriptorResource {
	return DescriptorResource{
		Kind:   ResourceBuffer,
		Buffer: gpu.DescriptorBufferInfo{Buffer: buf, Offset: offset, Range: size},
	}
}

func (r DescriptorResource) matches(t gpu.DescriptorType) bool {
	switch r.Kind {
	case ResourceImage:
		return t.IsImage()
	case ResourceBuffer:
		return !t.IsImage()
	default:
		return false
	}
}

type pendingWrite struct {
	set     gpu.DescriptorSet
	binding uint32
	typ     gpu.DescriptorType
	first   int
	count   int
}

type writeBatch struct {
	images  []gpu.DescriptorImageInfo
	buffers []gpu.DescriptorBufferInfo
	writes  []pendingWrite
}

func (b *writeBatch) clear() {
	clear(b.images)
	clear(b.buffers)
	clear(b.writes)
	b.images = b.images[:0]
	b.buffers = b.buffers[:0]
	b.writes = b.writes[:0]
}

// PendingWrites collects descriptor writes from any module until the frame
// controller flushes them in one device call. The lock is never held across
// that call.
type PendingWrites struct {
	mu    sync.Mutex
	back  writeBatch
	spare writeBatch
}

func NewPendingWrites() *PendingWrites {
	return &PendingWrites{}
}

// Add stages one write of resources to binding. Resources must all fit typ.
func (p *PendingWrites) Add(set gpu.DescriptorSet, binding uint32, typ gpu.DescriptorType, resources []DescriptorResource) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w := pendingWrite{set: set, binding: binding, typ: typ, count: len(resources)}
	if typ.IsImage() {
		w.first = len(p.back.images)
		for _, r := range resources {
			p.back.images = append(p.back.images, r.Image)
		}
	} else {
		w.first = len(p.back.buffers)
		for _, r := range resources {
			p.back.buffers = append(p.back.buffers, r.Buffer)
		}
	}
	p.back.writes = append(p.back.writes, w)
}

func (p *PendingWrites) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.back.writes)
}

// Flush hands every staged write to the device and clears the batch.
func (p *PendingWrites) Flush(device gpu.Device) int {
	p.mu.Lock()
	batch := p.back
	p.back, p.spare = p.spare, writeBatch{}
	p.mu.Unlock()

	if len(batch.writes) > 0 {
		writes := make([]gpu.DescriptorWrite, len(batch.writes))
		for i, w := range batch.writes {
			writes[i] = gpu.DescriptorWrite{Set: w.set, Binding: w.binding, Type: w.typ}
			if w.typ.IsImage() {
				writes[i].Images = batch.images[w.first : w.first+w.count]
			} else {
				writes[i].Buffers = batch.buffers[w.first : w.first+w.count]
			}
		}
		device.UpdateDescriptorSets(writes)
	}
	n := len(batch.writes)

	batch.clear()
	p.mu.Lock()
	p.spare = batch
	p.mu.Unlock()
	return n
}

// DescriptorCollection is the pre-allocated run of sets for one layout.
type DescriptorCollection struct {
	layout gpu.DescriptorSetLayout
	sets   []gpu.DescriptorSet
	next   int
}

func (c *DescriptorCollection) Reset() { c.next = 0 }

func (c *DescriptorCollection) Len() int { return len(c.sets) }

func (c *DescriptorCollection) Used() int { return c.next }

func (c *DescriptorCollection) Layout() gpu.DescriptorSetLayout { return c.layout }

// take returns the set at the cursor and advances it.
func (c *DescriptorCollection) take() (gpu.DescriptorSet, error) {
	if c.next == len(c.sets) {
		return nil, core.Raise(core.ErrDescriptorsExhausted, core.KindCapacity,
			"all %d descriptor sets of the layout are in use this frame", len(c.sets))
	}
	s := c.sets[c.next]
	c.next++
	return s, nil
}

type DescriptorLayoutDesc struct {
	Layout  gpu.DescriptorSetLayout
	MaxSets uint32
}

// DescriptorAllocator sizes one pool for every declared layout and allocates
// all sets up front.
type DescriptorAllocator struct {
	device      gpu.Device
	pool        gpu.DescriptorPool
	collections map[gpu.DescriptorSetLayout]*DescriptorCollection
	pending     *PendingWrites
}

func poolSizes(descs []DescriptorLayoutDesc) (uint32, []gpu.DescriptorPoolSize) {
	var counts [gpu.DescriptorTypeCount]uint32
	var maxSets uint32
	for _, d := range descs {
		maxSets += d.MaxSets
		for _, b := range d.Layout.Bindings() {
			counts[b.Type] += b.Count * d.MaxSets
		}
	}
	var sizes []gpu.DescriptorPoolSize
	for t, n := range counts {
		if n > 0 {
			sizes = append(sizes, gpu.DescriptorPoolSize{Type: gpu.DescriptorType(t), Count: n})
		}
	}
	return maxSets, sizes
}

func NewDescriptorAllocator(device gpu.Device, pending *PendingWrites, descs []DescriptorLayoutDesc) (*DescriptorAllocator, error) {
	if len(descs) == 0 {
		return nil, core.NewError(core.KindUsage, "no descriptor layouts declared")
	}
	maxSets, sizes := poolSizes(descs)
	pool, err := device.NewDescriptorPool(maxSets, sizes)
	if err != nil {
		return nil, core.WrapError(err, core.KindInit, "creating descriptor pool for %d sets", maxSets)
	}

	a := &DescriptorAllocator{
		device:      device,
		pool:        pool,
		collections: make(map[gpu.DescriptorSetLayout]*DescriptorCollection, len(descs)),
		pending:     pending,
	}
	for _, d := range descs {
		if _, dup := a.collections[d.Layout]; dup {
			pool.Destroy()
			return nil, core.NewError(core.KindUsage, "descriptor layout declared twice")
		}
		sets, err := pool.Allocate(d.Layout, int(d.MaxSets))
		if err != nil {
			pool.Destroy()
			return nil, core.WrapError(err, core.KindInit, "allocating %d descriptor sets", d.MaxSets)
		}
		a.collections[d.Layout] = &DescriptorCollection{layout: d.Layout, sets: sets}
	}
	core.LogDebug("descriptor pool sized for %d sets across %d layouts", maxSets, len(descs))
	return a, nil
}

func (a *DescriptorAllocator) Collection(layout gpu.DescriptorSetLayout) *DescriptorCollection {
	return a.collections[layout]
}

// Reset rewinds the collection of layout. Sets handed out before are reused
// by the next WriteSet calls.
func (a *DescriptorAllocator) Reset(layout gpu.DescriptorSetLayout) {
	if c := a.collections[layout]; c != nil {
		c.Reset()
	}
}

// WriteSet takes the next set of layout and stages writes binding resources
// to it in binding order; a binding with Count n consumes n resources. On
// error nothing is taken or staged.
func (a *DescriptorAllocator) WriteSet(layout gpu.DescriptorSetLayout, resources ...DescriptorResource) (gpu.DescriptorSet, error) {
	c := a.collections[layout]
	if c == nil {
		return nil, core.NewError(core.KindUsage, "descriptor layout was not declared")
	}

	bindings := layout.Bindings()
	var want int
	for _, b := range bindings {
		want += int(b.Count)
	}
	if len(resources) != want {
		return nil, core.NewError(core.KindUsage, "layout takes %d resources, got %d", want, len(resources))
	}
	i := 0
	for _, b := range bindings {
		for _, r := range resources[i : i+int(b.Count)] {
			if !r.matches(b.Type) {
				return nil, core.NewError(core.KindUsage, "binding %d does not accept this resource kind", b.Binding)
			}
		}
		i += int(b.Count)
	}

	set, err := c.take()
	if err != nil {
		return nil, err
	}
	i = 0
	for _, b := range bindings {
		a.pending.Add(set, b.Binding, b.Type, resources[i:i+int(b.Count)])
		i += int(b.Count)
	}
	return set, nil
}

// Flush writes every staged descriptor update in one device call.
func (a *DescriptorAllocator) Flush() int {
	return a.pending.Flush(a.device)
}

func (a *DescriptorAllocator) Destroy() {
	if a.pool != nil {
		a.pool.Destroy()
		a.pool = nil
	}
	a.collections = nil
}
