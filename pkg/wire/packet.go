// Package wire implements the fixed-size binary header protocol clients use
// to speak to the server: one PUT, GET, DATA, COMMIT, or REPLY packet at a
// time, each preceded by a 16-byte header in network byte order.
package wire

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Type is the packet's wire type.
type Type uint8

const (
	TypeNone Type = iota
	TypePut
	TypeGet
	TypeData
	TypeCommit
	TypeReply
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "NONE"
	case TypePut:
		return "PUT"
	case TypeGet:
		return "GET"
	case TypeData:
		return "DATA"
	case TypeCommit:
		return "COMMIT"
	case TypeReply:
		return "REPLY"
	default:
		return "UNKNOWN"
	}
}

// Status mirrors mvcc.Status on the wire. Kept as its own type so this
// package does not import pkg/mvcc: the wire layer describes bytes, not
// transaction semantics.
type Status uint8

const (
	StatusPending Status = iota
	StatusCommitted
	StatusAborted
)

// HeaderSize is the fixed on-wire header length in bytes.
const HeaderSize = 16

// Header is the fixed-size packet header that precedes every packet's
// optional payload.
type Header struct {
	Type          Type
	Status        Status
	Null          bool // DATA payload represents the null sentinel
	Size          uint32
	TimestampSec  uint32
	TimestampNsec uint32
}

// NewHeader builds a header stamped with the current time, as the reference
// protocol does at send time.
func NewHeader(typ Type, status Status) Header {
	now := time.Now()
	return Header{
		Type:          typ,
		Status:        status,
		TimestampSec:  uint32(now.Unix()),
		TimestampNsec: uint32(now.Nanosecond()),
	}
}

// MarshalBinary encodes h into a HeaderSize-byte buffer.
func (h Header) MarshalBinary() ([]byte, error) {
	if h.Type == TypeNone {
		return nil, fmt.Errorf("wire: cannot send a NONE packet")
	}
	buf := make([]byte, HeaderSize)
	buf[0] = byte(h.Type)
	buf[1] = byte(h.Status)
	if h.Null {
		buf[2] = 1
	}
	buf[3] = 0 // pad
	binary.BigEndian.PutUint32(buf[4:8], h.Size)
	binary.BigEndian.PutUint32(buf[8:12], h.TimestampSec)
	binary.BigEndian.PutUint32(buf[12:16], h.TimestampNsec)
	return buf, nil
}

// UnmarshalBinary decodes a HeaderSize-byte buffer into h.
func (h *Header) UnmarshalBinary(buf []byte) error {
	if len(buf) != HeaderSize {
		return fmt.Errorf("wire: header must be %d bytes, got %d", HeaderSize, len(buf))
	}
	h.Type = Type(buf[0])
	h.Status = Status(buf[1])
	h.Null = buf[2] != 0
	h.Size = binary.BigEndian.Uint32(buf[4:8])
	h.TimestampSec = binary.BigEndian.Uint32(buf[8:12])
	h.TimestampNsec = binary.BigEndian.Uint32(buf[12:16])
	if h.Type == TypeNone {
		return fmt.Errorf("wire: received a NONE packet")
	}
	return nil
}
