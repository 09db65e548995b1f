package wire

import (
	"fmt"
	"io"
)

// Packet is a decoded header plus its optional payload.
type Packet struct {
	Header  Header
	Payload []byte
}

// MaxPayloadSize bounds a single DATA payload, guarding against a malformed
// or hostile peer claiming an unbounded size field.
const MaxPayloadSize = 64 << 20 // 64 MiB

// ReadPacket reads one header and, if Size > 0, its payload from r.
func ReadPacket(r io.Reader) (Packet, error) {
	hdrBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		return Packet{}, err
	}
	var h Header
	if err := h.UnmarshalBinary(hdrBuf); err != nil {
		return Packet{}, err
	}
	if h.Size == 0 {
		return Packet{Header: h}, nil
	}
	if h.Size > MaxPayloadSize {
		return Packet{}, fmt.Errorf("wire: payload size %d exceeds max %d", h.Size, MaxPayloadSize)
	}
	payload := make([]byte, h.Size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Packet{}, err
	}
	return Packet{Header: h, Payload: payload}, nil
}

// WritePacket writes h followed by payload (if non-nil) to w. h.Size must
// already reflect len(payload); callers use the Write* helpers below to
// avoid getting that out of sync.
func WritePacket(w io.Writer, h Header, payload []byte) error {
	hdrBuf, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.Write(hdrBuf); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// WriteSimple writes a payload-less packet of the given type and status
// (PUT, GET, COMMIT headers, and the common case of REPLY).
func WriteSimple(w io.Writer, typ Type, status Status) error {
	h := NewHeader(typ, status)
	return WritePacket(w, h, nil)
}

// WriteData writes a DATA packet. A nil payload is encoded as the null
// sentinel (Null=true, Size=0, no bytes on the wire).
func WriteData(w io.Writer, status Status, payload []byte) error {
	h := NewHeader(TypeData, status)
	if payload == nil {
		h.Null = true
		return WritePacket(w, h, nil)
	}
	h.Size = uint32(len(payload))
	return WritePacket(w, h, payload)
}
