package protocol

import "sync/atomic"

// CommandHandler decodes and runs one command. It must consume its own
// arguments from data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware side of the link: it decodes host blocks,
// dispatches their commands in order and answers every block with an
// ACK carrying the next expected sequence.
type Transport struct {
	nextSequence uint32 // expected host sequence, 0x10..0x1F

	dec     Decoder
	output  OutputBuffer
	handler CommandHandler

	resetCallback func()
	flushCallback func()
	errorCallback func(cmdID uint16, err error)
}

// NewTransport creates a transport writing responses to output.
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
	t.dec.OnResync = t.encodeAckNak
	return t
}

// Receive processes whatever complete blocks input holds and pops them.
func (t *Transport) Receive(input InputBuffer) {
	n := t.dec.Decode(input.Data(), t.receiveFrame)
	if n > 0 {
		input.Pop(n)
	}
}

func (t *Transport) receiveFrame(f Frame) {
	expected := t.Sequence()
	if f.Sequence == MessageDest && expected != MessageDest {
		// Host restarted its sequence.
		atomic.StoreUint32(&t.nextSequence, MessageDest)
		expected = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}

	if f.Sequence == expected {
		atomic.StoreUint32(&t.nextSequence, uint32(NextSequence(f.Sequence)))
		t.dispatch(f.Payload)
	}
	// A mismatched sequence gets the same ACK, which the host reads as NAK.
	t.encodeAckNak()
}

func (t *Transport) dispatch(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.dec.lost = true
		}
	}()

	for len(payload) > 0 {
		cmdID, err := DecodeVLQUint(&payload)
		if err != nil {
			t.dec.lost = true
			return
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			if t.errorCallback != nil {
				t.errorCallback(uint16(cmdID), err)
			}
			return
		}
	}
}

func (t *Transport) encodeAckNak() {
	EncodeAck(t.output, t.Sequence())
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// SendCommand writes one response block: the command ID followed by
// whatever args encodes.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	EncodeFrame(t.output, t.Sequence(), func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Sequence returns the next expected host sequence.
func (t *Transport) Sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.nextSequence))
}

// Synchronized reports whether the decoder is aligned on block boundaries.
func (t *Transport) Synchronized() bool {
	return t.dec.Synchronized()
}

// Reset restores the initial sequence and sync state.
func (t *Transport) Reset() {
	t.dec.Reset()
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets the function run when the host restarts.
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets the function run after every ACK is queued.
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// SetErrorCallback sets the function run when a handler fails. The rest
// of the block is dropped.
func (t *Transport) SetErrorCallback(callback func(cmdID uint16, err error)) {
	t.errorCallback = callback
}
