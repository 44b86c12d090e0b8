package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrNak              = errors.New("block not accepted by firmware")
	ErrTransportStopped = errors.New("transport stopped")
)

// DefaultTimeout bounds the wait for an ACK or a response
const DefaultTimeout = 2 * time.Second

// ResponseHandler is called from the read loop for every response block
type ResponseHandler func(cmdID uint16, data *[]byte) error

// TraceFunc observes raw blocks; dir is "tx" or "rx"
type TraceFunc func(dir string, block []byte)

// Message is one block received from the firmware
type Message struct {
	Sequence uint8
	Payload  []byte // Owned copy
}

// HostTransport is the host side of the channel: it frames commands, waits
// for their ACK and collects responses read by a background goroutine.
type HostTransport struct {
	port io.ReadWriteCloser

	currentSeq     uint32 // atomic, sequence of the next block we send
	isSynchronized uint32 // atomic bool

	inputBuffer *FifoBuffer
	ackChan     chan *Message
	respChan    chan *Message

	responseHandler ResponseHandler
	trace           TraceFunc

	writeMutex sync.Mutex

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewHostTransport starts reading from port
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:           port,
		currentSeq:     MessageDest,
		isSynchronized: 1,
		inputBuffer:    NewFifoBuffer(1024),
		ackChan:        make(chan *Message, 4),
		respChan:       make(chan *Message, 16),
		stopChan:       make(chan struct{}),
		doneChan:       make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SetTrace installs a raw block observer; call before the first command
func (t *HostTransport) SetTrace(trace TraceFunc) {
	t.trace = trace
}

// SetResponseHandler installs a callback run for every response
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.responseHandler = handler
}

// SendCommand sends one command and waits for its ACK
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, DefaultTimeout)
}

// SendCommandWithTimeout sends one command and waits up to timeout for its ACK.
// On a NAK the firmware's expected sequence is adopted and ErrNak returned.
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	seq := uint8(atomic.LoadUint32(&t.currentSeq))

	out := NewScratchOutput()
	err := EncodeFrame(out, seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", CommandName(cmdID), err)
	}

	if err := t.write(out.Result()); err != nil {
		return fmt.Errorf("write %s: %w", CommandName(cmdID), err)
	}

	return t.waitForAck(seq, timeout)
}

// Request sends a command and returns the first response that follows it.
// A NAK is retried once with the sequence the firmware asked for.
func (t *HostTransport) Request(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) (*Message, error) {
	t.drainResponses()

	err := t.SendCommandWithTimeout(cmdID, args, timeout)
	if errors.Is(err, ErrNak) {
		err = t.SendCommandWithTimeout(cmdID, args, timeout)
	}
	if err != nil {
		return nil, err
	}
	return t.ReceiveResponse(timeout)
}

func (t *HostTransport) write(block []byte) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	if t.trace != nil {
		t.trace("tx", block)
	}
	n, err := t.port.Write(block)
	if err != nil {
		return err
	}
	if n != len(block) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(block))
	}
	return nil
}

func (t *HostTransport) waitForAck(sent uint8, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack := <-t.ackChan:
		atomic.StoreUint32(&t.currentSeq, uint32(ack.Sequence))
		if ack.Sequence != nextSeq(sent) {
			return fmt.Errorf("%w: sent 0x%02x, firmware expects 0x%02x", ErrNak, sent, ack.Sequence)
		}
		return nil

	case <-timer.C:
		return fmt.Errorf("ACK timeout after %v", timeout)

	case <-t.stopChan:
		return ErrTransportStopped
	}
}

// ReceiveResponse returns the next response block
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-t.respChan:
		return resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("response timeout after %v", timeout)
	case <-t.stopChan:
		return nil, ErrTransportStopped
	}
}

func (t *HostTransport) drainResponses() {
	for {
		select {
		case <-t.respChan:
		default:
			return
		}
	}
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buf := make([]byte, 256)
	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			t.inputBuffer.Write(buf[:n])
			t.processMessages()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) processMessages() {
	data := t.inputBuffer.Data()

	for len(data) > 0 {
		if !t.getSynchronized() {
			var found bool
			data, found = skipToSync(data)
			if found {
				t.setSynchronized(true)
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		frame, n, err := ParseFrame(data)
		if err == ErrFrameIncomplete {
			break
		}
		if err != nil {
			t.setSynchronized(false)
			continue
		}

		if t.trace != nil {
			t.trace("rx", data[:n])
		}
		msg := &Message{
			Sequence: frame.Sequence,
			Payload:  append([]byte(nil), frame.Payload...),
		}
		data = data[n:]
		t.dispatchMessage(msg)
	}

	if consumed := t.inputBuffer.Available() - len(data); consumed > 0 {
		t.inputBuffer.Pop(consumed)
	}
}

func (t *HostTransport) dispatchMessage(msg *Message) {
	if len(msg.Payload) == 0 {
		select {
		case t.ackChan <- msg:
		default:
		}
		return
	}

	if t.responseHandler != nil {
		payload := msg.Payload
		if cmdID, err := DecodeVLQUint(&payload); err == nil {
			_ = t.responseHandler(uint16(cmdID), &payload)
		}
	}

	select {
	case t.respChan <- msg:
	default:
		// Full: drop the oldest
		select {
		case <-t.respChan:
		default:
		}
		t.respChan <- msg
	}
}

// Close stops the read loop and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}

// Reset restarts the sequence and drops anything buffered
func (t *HostTransport) Reset() {
	atomic.StoreUint32(&t.isSynchronized, 1)
	atomic.StoreUint32(&t.currentSeq, MessageDest)
	for len(t.ackChan) > 0 {
		<-t.ackChan
	}
	t.drainResponses()
}

// CurrentSequence returns the sequence of the next block to be sent
func (t *HostTransport) CurrentSequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}

func (t *HostTransport) getSynchronized() bool {
	return atomic.LoadUint32(&t.isSynchronized) != 0
}

func (t *HostTransport) setSynchronized(val bool) {
	var v uint32
	if val {
		v = 1
	}
	atomic.StoreUint32(&t.isSynchronized, v)
}
