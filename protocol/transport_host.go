package protocol

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrTransportClosed = errors.New("transport closed")
	ErrAckTimeout      = errors.New("ack timeout")
	ErrNak             = errors.New("sequence rejected")
	ErrResponseTimeout = errors.New("response timeout")
	ErrMessageTooLong  = errors.New("message too long")
)

// DefaultAckTimeout bounds SendCommand.
const DefaultAckTimeout = 2 * time.Second

// ResponseHandler observes every response block as it arrives.
type ResponseHandler func(cmdID uint16, data *[]byte) error

// Message is one response block received by the host.
type Message struct {
	Sequence uint8
	ID       uint16 // response command ID
	Args     []byte // encoded arguments after the ID
}

// HostTransport is the host side of the link. It sends command blocks,
// waits for their ACK and queues response blocks for ReceiveResponse.
type HostTransport struct {
	port io.ReadWriteCloser

	currentSeq uint32 // sequence of the next block we send

	dec   Decoder
	input *FifoBuffer

	ackChan      chan uint8
	responseChan chan *Message

	responseHandler ResponseHandler

	writeMutex sync.Mutex

	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

// NewHostTransport starts a transport over port. Close stops it and
// closes the port.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		currentSeq:   MessageDest,
		input:        NewFifoBuffer(1024),
		ackChan:      make(chan uint8, 1),
		responseChan: make(chan *Message, 32),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends one command and waits for its ACK.
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, DefaultAckTimeout)
}

// SendCommandWithTimeout is SendCommand with an explicit ACK timeout.
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	seq := t.Sequence()
	msg, err := buildCommand(seq, cmdID, args)
	if err != nil {
		return err
	}

	// A stale ACK from an earlier timeout would be mistaken for ours.
	select {
	case <-t.ackChan:
	default:
	}

	if _, err := t.port.Write(msg); err != nil {
		return fmt.Errorf("write command %d: %w", cmdID, err)
	}
	return t.waitForAck(seq, timeout)
}

func buildCommand(seq uint8, cmdID uint16, args func(output OutputBuffer)) ([]byte, error) {
	out := NewScratchOutput()
	EncodeFrame(out, seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
	msg := out.Result()
	if len(msg) > MessageLengthMax {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLong, len(msg), MessageLengthMax)
	}
	return append([]byte(nil), msg...), nil
}

// waitForAck waits for the ACK of the block sent with seq. The firmware
// acknowledges with the sequence it expects next.
func (t *HostTransport) waitForAck(seq uint8, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack := <-t.ackChan:
		want := NextSequence(seq)
		atomic.StoreUint32(&t.currentSeq, uint32(ack))
		if ack != want {
			return fmt.Errorf("%w: sent 0x%02x, firmware expects 0x%02x", ErrNak, seq, ack)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrAckTimeout, timeout)
	case <-t.stopChan:
		return ErrTransportClosed
	}
}

// ReceiveResponse returns the oldest queued response.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w after %v", ErrResponseTimeout, timeout)
	case <-t.stopChan:
		return nil, ErrTransportClosed
	}
}

// DrainResponses discards queued responses.
func (t *HostTransport) DrainResponses() {
	for {
		select {
		case <-t.responseChan:
		default:
			return
		}
	}
}

// SetResponseHandler sets a callback run for each response block before
// it is queued. Set it before sending the first command.
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.responseHandler = handler
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			t.input.Write(buf[:n])
			consumed := t.dec.Decode(t.input.Data(), t.dispatch)
			t.input.Pop(consumed)
		}
		if err == nil {
			continue
		}

		select {
		case <-t.stopChan:
			return
		default:
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (t *HostTransport) dispatch(f Frame) {
	if f.IsAck() {
		select {
		case t.ackChan <- f.Sequence:
		default:
		}
		return
	}

	payload := append([]byte(nil), f.Payload...)
	id, err := DecodeVLQUint(&payload)
	if err != nil {
		return
	}
	msg := &Message{Sequence: f.Sequence, ID: uint16(id), Args: payload}

	if t.responseHandler != nil {
		args := msg.Args
		_ = t.responseHandler(msg.ID, &args)
	}

	select {
	case t.responseChan <- msg:
	default:
		// Drop the oldest response to make room.
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- msg
	}
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}

// Reset restores the initial sequence and drops queued input.
func (t *HostTransport) Reset() {
	atomic.StoreUint32(&t.currentSeq, MessageDest)
	select {
	case <-t.ackChan:
	default:
	}
	t.DrainResponses()
}

// Sequence returns the sequence of the next block to be sent.
func (t *HostTransport) Sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}
