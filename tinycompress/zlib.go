// Package tinycompress writes and reads zlib streams made of stored
// (uncompressed) deflate blocks. The output is valid zlib that any
// inflater accepts, without a compressor on the firmware side.
package tinycompress

import (
	"errors"
	"hash/adler32"
	"io"
)

const maxStoredBlock = 0xFFFF

var zlibHeader = [2]byte{0x78, 0x01}

var (
	ErrHeader   = errors.New("tinycompress: invalid zlib header")
	ErrBlock    = errors.New("tinycompress: unsupported or corrupt block")
	ErrChecksum = errors.New("tinycompress: adler32 mismatch")
)

// Writer buffers everything written and emits the zlib stream on Close.
type Writer struct {
	output io.Writer
	buf    []byte
	closed bool
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{output: w, buf: make([]byte, 0, 1024)}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Close writes the stream. The Writer cannot be used afterwards.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_, err := w.output.Write(Compress(w.buf))
	return err
}

// Compress returns data wrapped in a zlib stream of stored blocks.
func Compress(data []byte) []byte {
	blocks := len(data)/maxStoredBlock + 1
	out := make([]byte, 0, len(zlibHeader)+len(data)+5*blocks+4)
	out = append(out, zlibHeader[:]...)

	rest := data
	for {
		n := len(rest)
		if n > maxStoredBlock {
			n = maxStoredBlock
		}
		final := byte(0)
		if n == len(rest) {
			final = 1
		}
		l := uint16(n)
		out = append(out, final, byte(l), byte(l>>8), byte(^l), byte(^l>>8))
		out = append(out, rest[:n]...)
		rest = rest[n:]
		if final == 1 {
			break
		}
	}

	sum := adler32.Checksum(data)
	return append(out, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}

// Decompress unpacks a zlib stream of stored blocks, as produced by
// Compress. Compressed (Huffman) blocks are rejected.
func Decompress(stream []byte) ([]byte, error) {
	if len(stream) < 2+5+4 || stream[0]&0x0F != 8 || (uint16(stream[0])<<8|uint16(stream[1]))%31 != 0 {
		return nil, ErrHeader
	}
	if stream[1]&0x20 != 0 {
		// Preset dictionary.
		return nil, ErrHeader
	}

	pos := 2
	var out []byte
	for {
		if pos+5 > len(stream) {
			return nil, ErrBlock
		}
		hdr := stream[pos]
		if hdr>>1&0x03 != 0 {
			return nil, ErrBlock
		}
		n := int(stream[pos+1]) | int(stream[pos+2])<<8
		nn := int(stream[pos+3]) | int(stream[pos+4])<<8
		if n != ^nn&0xFFFF || pos+5+n > len(stream) {
			return nil, ErrBlock
		}
		out = append(out, stream[pos+5:pos+5+n]...)
		pos += 5 + n
		if hdr&1 != 0 {
			break
		}
	}

	if pos+4 > len(stream) {
		return nil, ErrChecksum
	}
	want := uint32(stream[pos])<<24 | uint32(stream[pos+1])<<16 | uint32(stream[pos+2])<<8 | uint32(stream[pos+3])
	if adler32.Checksum(out) != want {
		return nil, ErrChecksum
	}
	return out, nil
}
