package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// Magic is the first byte of every packet body.
	Magic byte = 'H'

	// MaxPacketSize caps a whole frame, length header included.
	MaxPacketSize = 1024

	headerSize = 2
)

// Packet is one decoded protocol message. Payload is nil for codes that
// carry no body (OK, PING, UNDEFINED).
type Packet struct {
	Code    Code
	Payload Payload
}

// Payload is the typed body of a packet.
type Payload interface {
	appendTo(dst []byte) []byte
}

// Encode serializes p into a complete frame: a little-endian uint16
// length header counting itself, the magic byte, the code and the
// payload encoding.
func Encode(p Packet) ([]byte, error) {
	buf := make([]byte, headerSize, 64)
	buf = append(buf, Magic, byte(p.Code))
	if p.Payload != nil {
		buf = p.Payload.appendTo(buf)
	}
	if len(buf) > MaxPacketSize {
		return nil, fmt.Errorf("encode %v packet: frame size %d exceeds %d", p.Code, len(buf), MaxPacketSize)
	}
	binary.LittleEndian.PutUint16(buf[:headerSize], uint16(len(buf)))
	return buf, nil
}

// WritePacket frames p and writes it to w in a single Write call.
func WritePacket(w io.Writer, p Packet) error {
	frame, err := Encode(p)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("writing packet: %w", err)
	}
	return nil
}

// ReadPacket reads one frame from r into buf and decodes it. Transport
// and framing failures are returned as errors; a frame whose body does
// not parse decodes to an UNDEFINED packet instead, so a broken client
// cannot kill the connection with garbage content.
func ReadPacket(r io.Reader, buf []byte) (Packet, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Packet{}, fmt.Errorf("reading packet header: %w", err)
	}

	totalLen := int(binary.LittleEndian.Uint16(header[:]))
	if totalLen < headerSize || totalLen > MaxPacketSize {
		return Packet{}, fmt.Errorf("invalid packet length: %d", totalLen)
	}

	bodyLen := totalLen - headerSize
	if bodyLen > len(buf) {
		return Packet{}, fmt.Errorf("packet body %d exceeds buffer size %d", bodyLen, len(buf))
	}

	body := buf[:bodyLen]
	if _, err := io.ReadFull(r, body); err != nil {
		return Packet{}, fmt.Errorf("reading packet body: %w", err)
	}

	return Decode(body), nil
}
