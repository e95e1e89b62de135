// Package protocol implements the framed serial link between the host
// and the bus firmware. A block is
//
//	len | seq | payload... | crc16 hi | crc16 lo | 0x7E
//
// where payload is a run of VLQ-encoded command IDs and arguments and
// seq carries 0x10 in the high nibble plus a 4-bit sequence number.
package protocol

// Version is reported in the firmware dictionary.
const Version = "i2cctl-0.1.0"

// Block layout
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1

	MessageValueSync = 0x7E
	MessageDest      = 0x10
	MessageSeqMask   = 0x0F
)

// MessageMax is the capacity of a ScratchOutput.
const MessageMax = 512

// NextSequence returns the sequence byte that follows seq.
func NextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
