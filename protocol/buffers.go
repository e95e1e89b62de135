package protocol

// InputBuffer is a source of received bytes.
type InputBuffer interface {
	Data() []byte
	Available() int
	// Pop drops n bytes from the front.
	Pop(n int)
}

// OutputBuffer accumulates blocks being encoded. Update and DataSince let
// the encoder patch the length byte and checksum a block in place.
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// SliceInputBuffer is an InputBuffer over a fixed slice.
type SliceInputBuffer struct {
	data []byte
}

func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput is an OutputBuffer with a fixed MessageMax capacity.
// Output past the end is truncated.
type ScratchOutput struct {
	buf [MessageMax]byte
	pos int
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	s.pos += copy(s.buf[s.pos:], data)
}

func (s *ScratchOutput) CurPosition() int { return s.pos }

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns everything written since the last Reset.
func (s *ScratchOutput) Result() []byte { return s.buf[:s.pos] }

func (s *ScratchOutput) Reset() { s.pos = 0 }

// FifoBuffer is a byte ring of fixed capacity. It is not safe for
// concurrent use.
type FifoBuffer struct {
	buf   []byte
	head  int // next byte to read
	count int
}

// NewFifoBuffer returns an empty ring holding up to capacity bytes.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count.
func (f *FifoBuffer) Write(data []byte) int {
	n := 0
	for _, b := range data {
		if f.count == len(f.buf) {
			break
		}
		f.buf[(f.head+f.count)%len(f.buf)] = b
		f.count++
		n++
	}
	return n
}

// Read moves up to len(data) bytes out of the ring.
func (f *FifoBuffer) Read(data []byte) int {
	n := 0
	for n < len(data) && f.count > 0 {
		data[n] = f.buf[f.head]
		f.head = (f.head + 1) % len(f.buf)
		f.count--
		n++
	}
	return n
}

func (f *FifoBuffer) Available() int { return f.count }
func (f *FifoBuffer) Free() int      { return len(f.buf) - f.count }
func (f *FifoBuffer) IsEmpty() bool  { return f.count == 0 }

// Data returns the buffered bytes in order. When the content wraps it is
// copied into a new slice.
func (f *FifoBuffer) Data() []byte {
	end := f.head + f.count
	if end <= len(f.buf) {
		return f.buf[f.head:end]
	}
	out := make([]byte, f.count)
	n := copy(out, f.buf[f.head:])
	copy(out[n:], f.buf[:end-len(f.buf)])
	return out
}

// Pop drops up to n bytes from the front.
func (f *FifoBuffer) Pop(n int) {
	if n > f.count {
		n = f.count
	}
	if n <= 0 {
		return
	}
	f.head = (f.head + n) % len(f.buf)
	f.count -= n
}

func (f *FifoBuffer) Reset() {
	f.head = 0
	f.count = 0
}
