// Package protocol implements the framed command channel between the bench
// host and the crank/cam emulator firmware.
//
// Every message is a block of
//
//	[len][seq][payload...][crc hi][crc lo][0x7E]
//
// where payload is a sequence of VLQ-encoded command ids and arguments.
// A block with an empty payload is an ACK (or NAK) carrying the next
// expected sequence number.
package protocol

// Version is the firmware/host protocol version
const Version = "0.1.0"

// Framing constants
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax bounds the scratch space for one batch of outgoing blocks
	MessageMax = 256
)

// nextSeq returns the sequence following seq, keeping the destination bits
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
