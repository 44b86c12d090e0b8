package protocol

import "sync/atomic"

// CommandHandler handles one decoded command; it consumes its arguments from data
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware side of the channel: it validates incoming
// blocks, dispatches their commands, acknowledges them and frames responses.
// Receive and SendCommand run in the foreground loop only.
type Transport struct {
	isSynchronized uint32 // atomic bool
	nextSequence   uint32 // atomic, expected sequence from host (0x10-0x1F)

	output        OutputBuffer
	handler       CommandHandler
	resetCallback func()
	flushCallback func()

	errors uint32 // Handler errors since start
}

// NewTransport creates a synchronized transport expecting sequence MessageDest
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		isSynchronized: 1,
		nextSequence:   MessageDest,
		output:         output,
		handler:        handler,
	}
}

// Receive consumes every complete block in input
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !t.getSynchronized() {
			var found bool
			data, found = skipToSync(data)
			if found {
				t.setSynchronized(true)
				t.sendAck()
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
		if err != nil || frame.Sequence&^MessageSeqMask != MessageDest {
			t.setSynchronized(false)
			continue
		}
		data = data[n:]

		expected := uint8(atomic.LoadUint32(&t.nextSequence))
		if frame.Sequence == MessageDest && expected != MessageDest {
			// Host restarted its sequence
			atomic.StoreUint32(&t.nextSequence, MessageDest)
			expected = MessageDest
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}

		// A repeated or out-of-order block is not executed; the ACK below
		// then acts as a NAK carrying the sequence we still expect.
		if frame.Sequence == expected {
			atomic.StoreUint32(&t.nextSequence, uint32(nextSeq(expected)))
			t.sendAck()
			t.dispatch(frame.Payload)
			continue
		}
		t.sendAck()
	}

	if consumed := input.Available() - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

// dispatch runs every command in a block payload
func (t *Transport) dispatch(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddUint32(&t.errors, 1)
		}
	}()

	for len(payload) > 0 {
		cmdID, err := DecodeVLQUint(&payload)
		if err != nil {
			t.setSynchronized(false)
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			// The rest of the block cannot be decoded once one command failed
			atomic.AddUint32(&t.errors, 1)
			return
		}
	}
}

// sendAck goes out before any response to the block it acknowledges
func (t *Transport) sendAck() {
	t.output.Output(EncodeAck(uint8(atomic.LoadUint32(&t.nextSequence))))
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// SendCommand frames one response with the current sequence
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	seq := uint8(atomic.LoadUint32(&t.nextSequence))
	_ = EncodeFrame(t.output, seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns to the power-on state
func (t *Transport) Reset() {
	atomic.StoreUint32(&t.isSynchronized, 1)
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets the function called when the host restarts its sequence
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets the function that pushes an ACK out immediately
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// Errors returns how many commands failed since start
func (t *Transport) Errors() uint32 {
	return atomic.LoadUint32(&t.errors)
}

// Synchronized reports whether the transport is aligned on block boundaries
func (t *Transport) Synchronized() bool {
	return t.getSynchronized()
}

func (t *Transport) getSynchronized() bool {
	return atomic.LoadUint32(&t.isSynchronized) != 0
}

func (t *Transport) setSynchronized(val bool) {
	var v uint32
	if val {
		v = 1
	}
	atomic.StoreUint32(&t.isSynchronized, v)
}
