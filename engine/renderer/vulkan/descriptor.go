package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type descriptorSetLayout struct {
	ctx      *Context
	handle   vk.DescriptorSetLayout
	bindings []gpu.DescriptorBinding
}

func (c *Context) NewDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	vb := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vb[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vkDescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vkShaderStages(b.Stages),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vb)),
		PBindings:    vb,
	}
	l := &descriptorSetLayout{ctx: c, bindings: append([]gpu.DescriptorBinding(nil), bindings...)}
	if err := check(vk.CreateDescriptorSetLayout(c.device, &info, nil, &l.handle), core.KindInit, "vkCreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *descriptorSetLayout) Bindings() []gpu.DescriptorBinding { return l.bindings }

func (l *descriptorSetLayout) Destroy() {
	if l.handle != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(l.ctx.device, l.handle, nil)
		l.handle = vk.NullDescriptorSetLayout
	}
}

type descriptorPool struct {
	ctx    *Context
	handle vk.DescriptorPool
}

func (c *Context) NewDescriptorPool(maxSets uint32, sizes []gpu.DescriptorPoolSize) (gpu.DescriptorPool, error) {
	vs := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		vs[i] = vk.DescriptorPoolSize{Type: vkDescriptorType(s.Type), DescriptorCount: s.Count}
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(vs)),
		PPoolSizes:    vs,
	}
	p := &descriptorPool{ctx: c}
	if err := check(vk.CreateDescriptorPool(c.device, &info, nil, &p.handle), core.KindInit, "vkCreateDescriptorPool"); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *descriptorPool) Allocate(layout gpu.DescriptorSetLayout, count int) ([]gpu.DescriptorSet, error) {
	if count == 0 {
		return nil, nil
	}
	l := layout.(*descriptorSetLayout)
	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = l.handle
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.handle,
		DescriptorSetCount: uint32(count),
		PSetLayouts:        layouts,
	}
	handles := make([]vk.DescriptorSet, count)
	var res vk.Result
	p.ctx.locks.SafeCall(DescriptorManagement, func() error {
		res = vk.AllocateDescriptorSets(p.ctx.device, &info, &handles[0])
		return nil
	})
	if res == vk.ErrorOutOfPoolMemory || res == vk.ErrorFragmentedPool {
		return nil, core.Raise(core.ErrDescriptorsExhausted, core.KindCapacity, "allocating %d sets: %s", count, VulkanResultString(res))
	}
	if err := check(res, core.KindInit, "vkAllocateDescriptorSets"); err != nil {
		return nil, err
	}
	sets := make([]gpu.DescriptorSet, count)
	for i, h := range handles {
		sets[i] = &descriptorSet{handle: h, layout: l}
	}
	return sets, nil
}

func (p *descriptorPool) Destroy() {
	if p.handle != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(p.ctx.device, p.handle, nil)
		p.handle = vk.NullDescriptorPool
	}
}

// Sets are freed with their pool.
type descriptorSet struct {
	handle vk.DescriptorSet
	layout *descriptorSetLayout
}

func (s *descriptorSet) Layout() gpu.DescriptorSetLayout { return s.layout }

func (c *Context) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	if len(writes) == 0 {
		return
	}
	vw := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		vw[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          w.Set.(*descriptorSet).handle,
			DstBinding:      w.Binding,
			DstArrayElement: w.ArrayElement,
			DescriptorType:  vkDescriptorType(w.Type),
		}
		if w.Type.IsImage() {
			infos := make([]vk.DescriptorImageInfo, len(w.Images))
			for j, img := range w.Images {
				if img.Sampler != nil {
					infos[j].Sampler = img.Sampler.(*sampler).handle
				}
				if img.View != nil {
					infos[j].ImageView = img.View.(*imageView).handle
				}
				infos[j].ImageLayout = vkImageLayout(img.Layout)
			}
			vw[i].DescriptorCount = uint32(len(infos))
			vw[i].PImageInfo = infos
			continue
		}
		infos := make([]vk.DescriptorBufferInfo, len(w.Buffers))
		for j, b := range w.Buffers {
			infos[j] = vk.DescriptorBufferInfo{
				Buffer: b.Buffer.(*buffer).handle,
				Offset: vk.DeviceSize(b.Offset),
				Range:  vk.DeviceSize(b.Range),
			}
		}
		vw[i].DescriptorCount = uint32(len(infos))
		vw[i].PBufferInfo = infos
	}
	c.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(c.device, uint32(len(vw)), vw, 0, nil)
		return nil
	})
}
