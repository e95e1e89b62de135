package protocol

// Frame is one decoded block.
type Frame struct {
	Sequence uint8
	Payload  []byte // between header and trailer; aliases the input
}

// IsAck reports whether f carries no payload, which makes it an ACK/NAK.
func (f Frame) IsAck() bool { return len(f.Payload) == 0 }

// Decoder splits a byte stream into frames. After a corrupt block it
// drops bytes up to the next sync byte.
type Decoder struct {
	lost bool

	// OnResync runs each time the decoder regains sync.
	OnResync func()
}

// Synchronized reports whether the decoder is aligned on block boundaries.
func (d *Decoder) Synchronized() bool { return !d.lost }

// Reset puts the decoder back in sync.
func (d *Decoder) Reset() { d.lost = false }

// Decode calls fn for every complete frame at the front of data and
// returns the number of bytes consumed. An incomplete trailing block is
// left for the next call.
func (d *Decoder) Decode(data []byte, fn func(Frame)) int {
	total := len(data)
	for len(data) > 0 {
		if d.lost {
			i := indexSync(data)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			d.lost = false
			if d.OnResync != nil {
				d.OnResync()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		n := int(data[MessagePositionLen])
		if n < MessageLengthMin || n > MessageLengthMax {
			d.lost = true
			continue
		}
		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			d.lost = true
			continue
		}
		if len(data) < n {
			break
		}
		if data[n-MessageTrailerSync] != MessageValueSync {
			d.lost = true
			continue
		}
		crc := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
		if crc != CRC16(data[:n-MessageTrailerSize]) {
			d.lost = true
			continue
		}

		f := Frame{Sequence: seq, Payload: data[MessageHeaderSize : n-MessageTrailerSize]}
		data = data[n:]
		fn(f)
	}
	return total - len(data)
}

func indexSync(data []byte) int {
	for i, b := range data {
		if b == MessageValueSync {
			return i
		}
	}
	return -1
}

// EncodeFrame appends a block with sequence seq to output. body writes
// the payload.
func EncodeFrame(output OutputBuffer, seq uint8, body func(output OutputBuffer)) {
	cursor := output.CurPosition()
	output.Output([]byte{0, seq})
	if body != nil {
		body(output)
	}

	n := len(output.DataSince(cursor)) + MessageTrailerSize
	output.Update(cursor, uint8(n))

	crc := CRC16(output.DataSince(cursor))
	output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// EncodeAck appends an empty block carrying seq.
func EncodeAck(output OutputBuffer, seq uint8) {
	EncodeFrame(output, seq, nil)
}
