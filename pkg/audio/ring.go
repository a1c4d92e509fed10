// ABOUTME: Fixed-size circular sample buffer
// ABOUTME: Provides wrap-around indexing, overdub and cyclic reads
package audio

// Ring is a fixed-length circular buffer addressed by absolute position.
// Position p maps to index p mod Len, so a reader driven by a frame counter
// loops over the buffer forever.
type Ring struct {
	data []float32
}

// NewRing allocates a silent ring of size samples.
func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{data: make([]float32, size)}
}

// Len returns the ring length in samples.
func (r *Ring) Len() int {
	return len(r.data)
}

// Index maps an absolute position (possibly negative) into the ring.
func (r *Ring) Index(pos int64) int {
	n := int64(len(r.data))
	m := pos % n
	if m < 0 {
		m += n
	}
	return int(m)
}

// At returns the sample at absolute position pos.
func (r *Ring) At(pos int64) float32 {
	return r.data[r.Index(pos)]
}

// Overdub mixes src into the ring starting at offset, scaled by gain,
// wrapping past the end.
func (r *Ring) Overdub(src []float32, offset int64, gain float32) {
	idx := r.Index(offset)
	for _, s := range src {
		r.data[idx] += s * gain
		idx++
		if idx == len(r.data) {
			idx = 0
		}
	}
}

// ReadAt copies len(dst) samples starting at absolute position pos.
func (r *Ring) ReadAt(dst []float32, pos int64) {
	idx := r.Index(pos)
	for i := range dst {
		dst[i] = r.data[idx]
		idx++
		if idx == len(r.data) {
			idx = 0
		}
	}
}

// Reset silences the ring.
func (r *Ring) Reset() {
	clear(r.data)
}
