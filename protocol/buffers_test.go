package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})

	if buf.Available() != 5 {
		t.Errorf("Expected 5 bytes available, got %d", buf.Available())
	}

	buf.Pop(2)
	if buf.Available() != 3 || buf.Data()[0] != 3 {
		t.Errorf("After popping 2, expected [3 4 5], got %v", buf.Data())
	}

	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("Expected over-pop to empty the buffer, got %d", buf.Available())
	}
}

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()

	scratch.Output([]byte{1, 2, 3})
	scratch.Output([]byte{4, 5})
	if scratch.CurPosition() != 5 {
		t.Errorf("Expected position 5, got %d", scratch.CurPosition())
	}

	scratch.Update(0, 99)
	if scratch.Result()[0] != 99 {
		t.Errorf("Expected first byte to be 99, got %d", scratch.Result()[0])
	}

	// Positions past the end are ignored.
	scratch.Update(7, 1)
	if scratch.CurPosition() != 5 {
		t.Errorf("Expected Update past end to be ignored, position %d", scratch.CurPosition())
	}

	if since := scratch.DataSince(2); !bytes.Equal(since, []byte{3, 4, 5}) {
		t.Errorf("DataSince(2): expected [3 4 5], got %v", since)
	}

	scratch.Reset()
	if scratch.CurPosition() != 0 {
		t.Errorf("After reset, expected position 0, got %d", scratch.CurPosition())
	}
}

func TestScratchOutputTruncates(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output(make([]byte, MessageMax+10))
	if scratch.CurPosition() != MessageMax {
		t.Errorf("Expected output capped at %d, got %d", MessageMax, scratch.CurPosition())
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)

	if !fifo.IsEmpty() || fifo.Available() != 0 {
		t.Fatal("New FIFO should be empty")
	}

	if written := fifo.Write([]byte{1, 2, 3, 4, 5}); written != 5 {
		t.Errorf("Expected to write 5 bytes, wrote %d", written)
	}

	readBuf := make([]byte, 3)
	if n := fifo.Read(readBuf); n != 3 || !bytes.Equal(readBuf, []byte{1, 2, 3}) {
		t.Errorf("Expected to read [1 2 3], got %v (%d)", readBuf, n)
	}

	fifo.Pop(1)
	if fifo.Available() != 1 {
		t.Errorf("After popping 1, expected 1 available, got %d", fifo.Available())
	}

	fifo.Reset()
	if written := fifo.Write(make([]byte, 12)); written != 10 {
		t.Errorf("Expected a size-10 FIFO to take 10 bytes, took %d", written)
	}
	if fifo.Free() != 0 {
		t.Errorf("Expected no free space, got %d", fifo.Free())
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)

	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Read(make([]byte, 2))

	if written := fifo.Write([]byte{5, 6, 7}); written != 3 {
		t.Errorf("Expected to write 3 bytes, wrote %d", written)
	}

	// Data copies the wrapped content into order.
	if got := fifo.Data(); !bytes.Equal(got, []byte{3, 4, 5, 6, 7}) {
		t.Errorf("Wrap-around Data mismatch: got %v", got)
	}

	fifo.Pop(3)
	if got := fifo.Data(); !bytes.Equal(got, []byte{6, 7}) {
		t.Errorf("After Pop(3), expected [6 7], got %v", got)
	}
}
