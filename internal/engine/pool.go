// ABOUTME: Preallocated capture storage for the recorder
// ABOUTME: The callback takes blocks without blocking; the control loop refills
package engine

import "github.com/choirless/rehearsal/pkg/audio"

// CapturePool hands fixed-size sample blocks to the recorder. Gets are
// non-blocking; when the pool is dry the recorder allocates and counts it.
type CapturePool struct {
	blockSize int
	listCap   int
	blocks    chan []float32
	lists     chan [][]float32
}

// NewCapturePool creates a pool of blocks holding blockQuanta quanta each.
// depth bounds how many idle blocks are kept.
func NewCapturePool(blockQuanta, depth int) *CapturePool {
	if blockQuanta < 1 {
		blockQuanta = 1
	}
	if depth < 1 {
		depth = 1
	}
	return &CapturePool{
		blockSize: blockQuanta * audio.QuantumSize,
		listCap:   depth,
		blocks:    make(chan []float32, depth),
		lists:     make(chan [][]float32, 4),
	}
}

// BlockSize returns the block length in samples.
func (p *CapturePool) BlockSize() int {
	return p.blockSize
}

// Available returns the number of idle blocks.
func (p *CapturePool) Available() int {
	return len(p.blocks)
}

// Replenish fills the pool up to target idle blocks. Called from the
// control loop; it may allocate.
func (p *CapturePool) Replenish(target int) int {
	added := 0
	for len(p.blocks) < min(target, cap(p.blocks)) {
		select {
		case p.blocks <- make([]float32, p.blockSize):
			added++
		default:
			return added
		}
	}
	for len(p.lists) < cap(p.lists) {
		select {
		case p.lists <- make([][]float32, 0, p.listCap):
		default:
			return added
		}
	}
	return added
}

// Recycle returns blocks to the pool once a take has been copied out.
func (p *CapturePool) Recycle(blocks [][]float32) {
	for _, b := range blocks {
		if len(b) != p.blockSize {
			continue
		}
		select {
		case p.blocks <- b:
		default:
			return
		}
	}
}

func (p *CapturePool) getBlock() ([]float32, bool) {
	select {
	case b := <-p.blocks:
		return b, true
	default:
		return make([]float32, p.blockSize), false
	}
}

func (p *CapturePool) getList() ([][]float32, bool) {
	select {
	case l := <-p.lists:
		return l[:0], true
	default:
		return make([][]float32, 0, p.listCap), false
	}
}

// Assemble copies a take into one contiguous buffer, dropping the latency
// compensation prefix, and recycles its blocks.
func (p *CapturePool) Assemble(t Take) []float32 {
	out := make([]float32, t.Len())
	skip := t.Skip
	n := 0
	remaining := t.Samples
	for _, b := range t.Blocks {
		if remaining <= 0 {
			break
		}
		chunk := b[:min(len(b), remaining)]
		remaining -= len(chunk)
		if skip >= len(chunk) {
			skip -= len(chunk)
			continue
		}
		n += copy(out[n:], chunk[skip:])
		skip = 0
	}
	p.Recycle(t.Blocks)
	return out
}
