package renderer

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu/gputest"
)

func spriteLayout(t *testing.T, dev gpu.Device) gpu.DescriptorSetLayout {
	t.Helper()
	l, err := dev.NewDescriptorSetLayout([]gpu.DescriptorBinding{
		{Binding: 0, Type: gpu.DescriptorCombinedImageSampler, Count: 1, Stages: gpu.ShaderStageFragment},
		{Binding: 1, Type: gpu.DescriptorUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertex},
	})
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func spriteResources(t *testing.T, dev gpu.Device) []DescriptorResource {
	t.Helper()
	s, err := dev.NewSampler(gpu.SamplerDesc{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := dev.NewBuffer(256, gpu.BufferUsageUniform)
	if err != nil {
		t.Fatal(err)
	}
	return []DescriptorResource{ImageResource(nil, s), BufferResource(b, 0, 256)}
}

func TestDescriptorPoolSizing(t *testing.T) {
	dev := gputest.NewDevice()
	sprite := spriteLayout(t, dev)
	text, err := dev.NewDescriptorSetLayout([]gpu.DescriptorBinding{
		{Binding: 0, Type: gpu.DescriptorCombinedImageSampler, Count: 4, Stages: gpu.ShaderStageFragment},
	})
	if err != nil {
		t.Fatal(err)
	}

	a, err := NewDescriptorAllocator(dev, NewPendingWrites(), []DescriptorLayoutDesc{
		{Layout: sprite, MaxSets: 3},
		{Layout: text, MaxSets: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Destroy()

	pool := a.pool.(*gputest.DescriptorPool)
	if pool.MaxSets != 5 {
		t.Fatalf("MaxSets: have %d, want 5", pool.MaxSets)
	}
	if n := pool.Sizes[gpu.DescriptorCombinedImageSampler]; n != 3+8 {
		t.Fatalf("image samplers: have %d, want 11", n)
	}
	if n := pool.Sizes[gpu.DescriptorUniformBuffer]; n != 3 {
		t.Fatalf("uniform buffers: have %d, want 3", n)
	}
	if a.Collection(sprite).Len() != 3 || a.Collection(text).Len() != 2 {
		t.Fatal("collections not allocated eagerly")
	}
}

func TestWriteSetOrderAndExhaustion(t *testing.T) {
	dev := gputest.NewDevice()
	layout := spriteLayout(t, dev)
	pending := NewPendingWrites()
	a, err := NewDescriptorAllocator(dev, pending, []DescriptorLayoutDesc{{Layout: layout, MaxSets: 3}})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Destroy()
	res := spriteResources(t, dev)
	c := a.Collection(layout)

	for round := 0; round < 2; round++ {
		for i := 0; i < 3; i++ {
			set, err := a.WriteSet(layout, res...)
			if err != nil {
				t.Fatalf("round %d set %d: %v", round, i, err)
			}
			if set != c.sets[i] {
				t.Fatalf("round %d: have %v, want pre-allocated set %d", round, set, i)
			}
		}
		staged := pending.Len()
		_, err := a.WriteSet(layout, res...)
		if !errors.Is(err, core.ErrDescriptorsExhausted) || !core.IsCapacity(err) {
			t.Fatalf("round %d: have %v, want descriptors exhausted", round, err)
		}
		if c.Used() != 3 || pending.Len() != staged {
			t.Fatal("failed WriteSet changed state")
		}
		a.Reset(layout)
		if c.Used() != 0 {
			t.Fatal("Reset did not rewind")
		}
	}
}

func TestWriteSetValidatesBeforeTaking(t *testing.T) {
	dev := gputest.NewDevice()
	layout := spriteLayout(t, dev)
	pending := NewPendingWrites()
	a, err := NewDescriptorAllocator(dev, pending, []DescriptorLayoutDesc{{Layout: layout, MaxSets: 1}})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Destroy()
	res := spriteResources(t, dev)

	tests := []struct {
		name      string
		resources []DescriptorResource
	}{
		{"too few", res[:1]},
		{"swapped kinds", []DescriptorResource{res[1], res[0]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.WriteSet(layout, tt.resources...)
			if core.KindOf(err) != core.KindUsage {
				t.Fatalf("have %v, want a usage error", err)
			}
			if a.Collection(layout).Used() != 0 || pending.Len() != 0 {
				t.Fatal("invalid WriteSet took a set")
			}
		})
	}

	other := spriteLayout(t, dev)
	if _, err := a.WriteSet(other, res...); core.KindOf(err) != core.KindUsage {
		t.Fatalf("undeclared layout: have %v", err)
	}
}

func TestDescriptorAllocatorRejectsBadDeclarations(t *testing.T) {
	dev := gputest.NewDevice()
	layout := spriteLayout(t, dev)
	if _, err := NewDescriptorAllocator(dev, NewPendingWrites(), nil); core.KindOf(err) != core.KindUsage {
		t.Fatalf("empty: have %v", err)
	}
	_, err := NewDescriptorAllocator(dev, NewPendingWrites(), []DescriptorLayoutDesc{
		{Layout: layout, MaxSets: 1},
		{Layout: layout, MaxSets: 1},
	})
	if core.KindOf(err) != core.KindUsage {
		t.Fatalf("duplicate: have %v", err)
	}
	if n := dev.Live("descriptor-pool"); n != 0 {
		t.Fatalf("%d pools leaked", n)
	}
}

func TestFlushMakesOneDeviceCall(t *testing.T) {
	dev := gputest.NewDevice()
	layout := spriteLayout(t, dev)
	a, err := NewDescriptorAllocator(dev, NewPendingWrites(), []DescriptorLayoutDesc{{Layout: layout, MaxSets: 2}})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Destroy()
	res := spriteResources(t, dev)
	set0, _ := a.WriteSet(layout, res...)
	set1, _ := a.WriteSet(layout, res...)

	if n := a.Flush(); n != 4 {
		t.Fatalf("Flush: have %d writes, want 4", n)
	}
	if len(dev.DescriptorWrites) != 1 {
		t.Fatalf("device calls: have %d, want 1", len(dev.DescriptorWrites))
	}
	writes := dev.DescriptorWrites[0]
	want := []struct {
		set     gpu.DescriptorSet
		binding uint32
	}{{set0, 0}, {set0, 1}, {set1, 0}, {set1, 1}}
	for i, w := range want {
		if writes[i].Set != w.set || writes[i].Binding != w.binding {
			t.Fatalf("write %d: have set %v binding %d", i, writes[i].Set, writes[i].Binding)
		}
	}
	if len(writes[0].Images) != 1 || writes[0].Images[0].Sampler != res[0].Image.Sampler {
		t.Fatal("image info not carried")
	}
	if len(writes[1].Buffers) != 1 || writes[1].Buffers[0].Range != 256 {
		t.Fatal("buffer info not carried")
	}

	if n := a.Flush(); n != 0 || len(dev.DescriptorWrites) != 1 {
		t.Fatal("empty flush called the device")
	}
}

func TestPendingWritesConcurrentAdd(t *testing.T) {
	dev := gputest.NewDevice()
	layout := spriteLayout(t, dev)
	sets, err := func() ([]gpu.DescriptorSet, error) {
		pool, err := dev.NewDescriptorPool(1, []gpu.DescriptorPoolSize{
			{Type: gpu.DescriptorCombinedImageSampler, Count: 1},
			{Type: gpu.DescriptorUniformBuffer, Count: 1},
		})
		if err != nil {
			return nil, err
		}
		return pool.Allocate(layout, 1)
	}()
	if err != nil {
		t.Fatal(err)
	}
	res := spriteResources(t, dev)

	p := NewPendingWrites()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				p.Add(sets[0], 1, gpu.DescriptorUniformBuffer, res[1:])
			}
		}()
	}
	wg.Wait()
	if n := p.Flush(dev); n != 400 {
		t.Fatalf("have %d writes, want 400", n)
	}
	for _, w := range dev.DescriptorWrites[0] {
		if len(w.Buffers) != 1 {
			t.Fatal("write lost its buffer info")
		}
	}
}
