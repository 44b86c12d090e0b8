package protocol

import "errors"

var (
	ErrFrameTooLong    = errors.New("frame exceeds maximum message length")
	ErrFrameIncomplete = errors.New("frame incomplete")
	ErrFrameCorrupt    = errors.New("frame corrupt")
)

// Frame is one validated message block
type Frame struct {
	Sequence uint8
	Payload  []byte // Aliases the input; copy before keeping it
}

// IsAck reports whether the frame carries no payload
func (f *Frame) IsAck() bool {
	return len(f.Payload) == 0
}

// ParseFrame validates the block at the start of data.
// It returns the frame and the number of bytes it occupies. ErrFrameIncomplete
// means more input is needed; ErrFrameCorrupt means the caller must drop
// synchronization and scan for the next sync byte.
func ParseFrame(data []byte) (Frame, int, error) {
	if len(data) < MessageLengthMin {
		return Frame{}, 0, ErrFrameIncomplete
	}

	msgLen := int(data[MessagePositionLen])
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
		return Frame{}, 0, ErrFrameCorrupt
	}
	if len(data) < msgLen {
		return Frame{}, 0, ErrFrameIncomplete
	}
	if data[msgLen-MessageTrailerSync] != MessageValueSync {
		return Frame{}, 0, ErrFrameCorrupt
	}

	frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
		uint16(data[msgLen-MessageTrailerCRC+1])
	if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
		return Frame{}, 0, ErrFrameCorrupt
	}

	return Frame{
		Sequence: data[MessagePositionSeq],
		Payload:  data[MessageHeaderSize : msgLen-MessageTrailerSize],
	}, msgLen, nil
}

// skipToSync returns data after the first sync byte, or nil if there is none
func skipToSync(data []byte) ([]byte, bool) {
	for i, b := range data {
		if b == MessageValueSync {
			return data[i+1:], true
		}
	}
	return nil, false
}

// EncodeFrame writes one block with sequence seq around the payload produced
// by body. The length byte is patched once the payload size is known.
func EncodeFrame(output OutputBuffer, seq uint8, body func(output OutputBuffer)) error {
	cursor := output.CurPosition()
	output.Output([]byte{0, seq})

	if body != nil {
		body(output)
	}

	msgLen := len(output.DataSince(cursor)) + MessageTrailerSize
	if msgLen > MessageLengthMax {
		return ErrFrameTooLong
	}
	output.Update(cursor+MessagePositionLen, uint8(msgLen))

	crc := CRC16(output.DataSince(cursor))
	output.Output([]byte{
		uint8(crc >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})
	return nil
}

// EncodeAck returns the ACK/NAK block announcing seq as the next expected sequence
func EncodeAck(seq uint8) []byte {
	crc := CRC16([]byte{MessageLengthMin, seq})
	return []byte{MessageLengthMin, seq, uint8(crc >> 8), uint8(crc & 0xFF), MessageValueSync}
}
