package renderer

import (
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gpu"
)

type bufferCopy struct {
	dst    gpu.Buffer
	region gpu.BufferCopyRegion
}

type imageCopy struct {
	dst    gpu.Image
	region gpu.BufferImageCopy
}

// Staging collects the uploads of one frame and replays them into the upload
// command buffer. Memory is split into two regions used by alternate frames,
// so writes for the next frame never land in the region an in-flight upload
// is still reading.
type Staging struct {
	regions   [2]*MappedAllocator
	current   int
	copyAlign uint64

	bufferCopies []bufferCopy
	prepare      []gpu.ImageBarrier
	imageCopies  []imageCopy
	finalize     []gpu.ImageBarrier
	// images already bracketed by barriers this frame
	transitioned map[gpu.Image]struct{}
	// images that received a recorded copy and rest in the shader read layout
	readable map[gpu.Image]struct{}

	dropped int
}

// NewStaging allocates two host-visible regions of size/2 bytes each.
func NewStaging(device gpu.Device, size uint64) (*Staging, error) {
	s := &Staging{
		copyAlign:    max(device.Limits().OptimalBufferCopyOffsetAlignment, 1),
		transitioned: make(map[gpu.Image]struct{}),
		readable:     make(map[gpu.Image]struct{}),
	}
	for i := range s.regions {
		r, err := NewMappedAllocator(device, size/2)
		if err != nil {
			s.Destroy()
			return nil, core.WrapError(err, core.KindInit, "creating staging region %d", i)
		}
		s.regions[i] = r
	}
	return s, nil
}

func (s *Staging) region() *MappedAllocator { return s.regions[s.current] }

// CopyData copies data into the current staging region and returns its offset
// inside the region buffer, a multiple of max(align, the adapter's optimal copy
// offset alignment).
func (s *Staging) CopyData(data []byte, align uint64) (uint64, error) {
	r := s.region()
	offset, err := r.Allocate(uint64(len(data)), max(align, s.copyAlign))
	if err != nil {
		return 0, err
	}
	r.Write(offset, data)
	return offset, nil
}

// SourceBuffer is the buffer copies recorded this frame read from.
func (s *Staging) SourceBuffer() gpu.Buffer { return s.region().Buffer() }

func (s *Staging) drop(err error, what string) error {
	s.dropped++
	core.LogWarn("staging: dropping %s: %v", what, err)
	return err
}

// BufferCopy schedules data to be copied into dst at dstOffset. When the
// region is full the copy is dropped and a capacity error returned.
func (s *Staging) BufferCopy(data []byte, dst gpu.Buffer, dstOffset uint64) error {
	if len(data) == 0 {
		return nil
	}
	if dstOffset+uint64(len(data)) > dst.Size() {
		return core.NewError(core.KindUsage, "copy of %d bytes at %d overruns a buffer of %d", len(data), dstOffset, dst.Size())
	}
	offset, err := s.CopyData(data, 4)
	if err != nil {
		return s.drop(err, "buffer copy")
	}
	s.bufferCopies = append(s.bufferCopies, bufferCopy{
		dst:    dst,
		region: gpu.BufferCopyRegion{SrcOffset: offset, DstOffset: dstOffset, Size: uint64(len(data))},
	})
	return nil
}

func (s *Staging) VertexBufferCopy(vertices []byte, dst gpu.Buffer) error {
	return s.BufferCopy(vertices, dst, 0)
}

func (s *Staging) IndexBufferCopy(indices []byte, dst gpu.Buffer) error {
	return s.BufferCopy(indices, dst, 0)
}

// ImageCopy schedules an upload of the whole image. Previous contents are discarded.
func (s *Staging) ImageCopy(pixels []byte, dst gpu.Image) error {
	return s.imageCopy(pixels, dst, gpu.Offset2D{}, dst.Extent(), gpu.ImageLayoutUndefined)
}

// ImageRegionCopy schedules an upload into a sub-rectangle of an image. The
// rest of the image keeps its contents once an earlier copy into it has been
// recorded; before that it is undefined.
func (s *Staging) ImageRegionCopy(pixels []byte, dst gpu.Image, offset gpu.Offset2D, extent gpu.Extent2D) error {
	from := gpu.ImageLayoutUndefined
	if _, ok := s.readable[dst]; ok {
		from = gpu.ImageLayoutShaderReadOnly
	}
	return s.imageCopy(pixels, dst, offset, extent, from)
}

func (s *Staging) imageCopy(pixels []byte, dst gpu.Image, offset gpu.Offset2D, extent gpu.Extent2D, from gpu.ImageLayout) error {
	bpp := dst.Format().BytesPerPixel()
	if want := int(extent.Width) * int(extent.Height) * bpp; want == 0 || len(pixels) != want {
		return core.Raise(core.ErrInvalidTexture, core.KindUsage,
			"%dx%d %s region needs %d bytes, got %d", extent.Width, extent.Height, dst.Format(), want, len(pixels))
	}
	full := dst.Extent()
	if offset.X < 0 || offset.Y < 0 || uint32(offset.X)+extent.Width > full.Width || uint32(offset.Y)+extent.Height > full.Height {
		return core.NewError(core.KindUsage, "region %+v %dx%d is outside a %dx%d image", offset, extent.Width, extent.Height, full.Width, full.Height)
	}

	// buffer offsets of image copies must be a multiple of both 4 and the texel size
	src, err := s.CopyData(pixels, uint64(max(bpp, 4)))
	if err != nil {
		return s.drop(err, "image copy")
	}
	if _, seen := s.transitioned[dst]; !seen {
		s.transitioned[dst] = struct{}{}
		s.prepare = append(s.prepare, gpu.ImageBarrier{Image: dst, OldLayout: from, NewLayout: gpu.ImageLayoutTransferDst})
		s.finalize = append(s.finalize, gpu.ImageBarrier{Image: dst, OldLayout: gpu.ImageLayoutTransferDst, NewLayout: gpu.ImageLayoutShaderReadOnly})
	}
	s.imageCopies = append(s.imageCopies, imageCopy{
		dst:    dst,
		region: gpu.BufferImageCopy{BufferOffset: src, ImageOffset: offset, ImageExtent: extent},
	})
	return nil
}

// Pending is the number of copies waiting for the next Record.
func (s *Staging) Pending() int {
	return len(s.bufferCopies) + len(s.imageCopies)
}

// Dropped is the number of copies dropped for lack of space since creation.
func (s *Staging) Dropped() int {
	return s.dropped
}

// Record replays the frame's uploads into cmd: buffer copies, prepare
// barriers, image copies, then finalize barriers. The queues are cleared and
// the next region becomes current.
func (s *Staging) Record(cmd gpu.CommandBuffer) {
	src := s.region().Buffer()
	for _, c := range s.bufferCopies {
		cmd.CopyBuffer(src, c.dst, c.region)
	}
	if len(s.prepare) > 0 {
		cmd.Transition(s.prepare...)
	}
	for _, c := range s.imageCopies {
		cmd.CopyBufferToImage(src, c.dst, c.region)
		s.readable[c.dst] = struct{}{}
	}
	if len(s.finalize) > 0 {
		cmd.Transition(s.finalize...)
	}

	clear(s.bufferCopies)
	clear(s.imageCopies)
	clear(s.prepare)
	clear(s.finalize)
	s.bufferCopies = s.bufferCopies[:0]
	s.imageCopies = s.imageCopies[:0]
	s.prepare = s.prepare[:0]
	s.finalize = s.finalize[:0]
	clear(s.transitioned)

	// the other region was last read by the upload before this one, which has completed
	s.current = 1 - s.current
	s.region().Reset()
}

// Forget drops queued copies that target dst, for resources destroyed before the next Record.
func (s *Staging) Forget(dst gpu.Destroyer) {
	bc := s.bufferCopies[:0]
	for _, c := range s.bufferCopies {
		if gpu.Destroyer(c.dst) != dst {
			bc = append(bc, c)
		}
	}
	s.bufferCopies = bc
	ic := s.imageCopies[:0]
	for _, c := range s.imageCopies {
		if gpu.Destroyer(c.dst) != dst {
			ic = append(ic, c)
		}
	}
	s.imageCopies = ic
	filter := func(bs []gpu.ImageBarrier) []gpu.ImageBarrier {
		out := bs[:0]
		for _, b := range bs {
			if gpu.Destroyer(b.Image) != dst {
				out = append(out, b)
			}
		}
		return out
	}
	s.prepare = filter(s.prepare)
	s.finalize = filter(s.finalize)
	if img, ok := dst.(gpu.Image); ok {
		delete(s.transitioned, img)
		delete(s.readable, img)
	}
}

func (s *Staging) Destroy() {
	for i, r := range s.regions {
		if r != nil {
			r.Destroy()
			s.regions[i] = nil
		}
	}
}
