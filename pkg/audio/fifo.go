// ABOUTME: Bounded sample queue over a circular buffer
// ABOUTME: Adapts arbitrary device periods to fixed quanta without allocating
package audio

// FIFO is a bounded first-in first-out sample queue. It is not safe for
// concurrent use; the audio callback owns it.
type FIFO struct {
	buf   []float32
	head  int
	count int
}

// NewFIFO creates a queue holding at most capacity samples.
func NewFIFO(capacity int) *FIFO {
	if capacity < 1 {
		capacity = 1
	}
	return &FIFO{buf: make([]float32, capacity)}
}

// Len returns the number of queued samples.
func (f *FIFO) Len() int {
	return f.count
}

// Cap returns the queue capacity.
func (f *FIFO) Cap() int {
	return len(f.buf)
}

// Write appends as many samples as fit and returns how many were written.
func (f *FIFO) Write(p []float32) int {
	n := 0
	tail := (f.head + f.count) % len(f.buf)
	for n < len(p) && f.count < len(f.buf) {
		f.buf[tail] = p[n]
		tail++
		if tail == len(f.buf) {
			tail = 0
		}
		f.count++
		n++
	}
	return n
}

// Read removes up to len(p) samples into p and returns how many were read.
func (f *FIFO) Read(p []float32) int {
	n := 0
	for n < len(p) && f.count > 0 {
		p[n] = f.buf[f.head]
		f.head++
		if f.head == len(f.buf) {
			f.head = 0
		}
		f.count--
		n++
	}
	return n
}

// Reset drops all queued samples.
func (f *FIFO) Reset() {
	f.head = 0
	f.count = 0
}
