package protocol

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
)

func TestEncodeStatusFrame(t *testing.T) {
	frame, err := Encode(NewStatus(StatusConnected))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	want := []byte{5, 0, 'H', byte(CodeStatus), byte(StatusConnected)}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame mismatch\ngot:  %x\nwant: %x", frame, want)
	}
}

func TestEncodeCredentialsFrame(t *testing.T) {
	frame, err := Encode(NewCredentials("ab", "c"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	want := []byte{
		11, 0, // total length, LE
		'H', byte(CodeUsernameAndID),
		2, 0, 'a', 'b', // name
		1, 0, 'c', // uid
	}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame mismatch\ngot:  %x\nwant: %x", frame, want)
	}
}

func TestEncodeRejectsOversizedPacket(t *testing.T) {
	_, err := Encode(NewErrorText(ErrCodeUncorrectPacket, strings.Repeat("x", MaxPacketSize)))
	if err == nil {
		t.Error("Encode should fail when the frame exceeds MaxPacketSize, got nil error")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	packets := []Packet{
		NewOK(),
		NewPing(),
		NewStatus(StatusRegisterRequired),
		NewError(ErrCodeNameAlreadyInUse),
		NewCredentials("Admin", "8400fa5f-2333-4f52-a241-7b0a5c6e87d1"),
		NewPassword("hunter2"),
		NewSessionStarted(1),
		NewSessionClosed(),
		NewWaiting("Rival"),
	}

	var stream bytes.Buffer
	for _, p := range packets {
		if err := WritePacket(&stream, p); err != nil {
			t.Fatalf("WritePacket(%v) failed: %v", p.Code, err)
		}
	}

	buf := make([]byte, MaxPacketSize)
	for _, want := range packets {
		got, err := ReadPacket(&stream, buf)
		if err != nil {
			t.Fatalf("ReadPacket failed: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("packet mismatch\ngot:  %+v\nwant: %+v", got, want)
		}
	}

	if _, err := ReadPacket(&stream, buf); err == nil {
		t.Error("ReadPacket on a drained stream should fail, got nil error")
	}
}

// The reader must survive frames arriving one byte at a time.
func TestReadPacketByteByByte(t *testing.T) {
	want := NewCredentials("Slow", "11111111-2222-3333-4444-555555555555")
	frame, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := ReadPacket(iotest.OneByteReader(bytes.NewReader(frame)), make([]byte, MaxPacketSize))
	if err != nil {
		t.Fatalf("ReadPacket failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("packet mismatch\ngot:  %+v\nwant: %+v", got, want)
	}
}

func TestReadPacketFramingErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty stream", nil},
		{"short header", []byte{5}},
		{"length below header size", []byte{1, 0}},
		{"length above max", []byte{0xD0, 0x07}}, // 2000
		{"truncated body", []byte{10, 0, 'H', 1}},
	}

	buf := make([]byte, MaxPacketSize)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadPacket(bytes.NewReader(tt.data), buf); err == nil {
				t.Error("ReadPacket should fail, got nil error")
			}
		})
	}
}

func TestReadPacketBufferTooSmall(t *testing.T) {
	frame, err := Encode(NewStatus(StatusConnected))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := ReadPacket(bytes.NewReader(frame), make([]byte, 2)); err == nil {
		t.Error("ReadPacket should fail when the body exceeds the buffer, got nil error")
	}
}

// Garbage inside a well-formed frame degrades to UNDEFINED instead of
// breaking the stream.
func TestReadPacketGarbageBody(t *testing.T) {
	frame := []byte{4, 0, 'X', byte(CodeOK)}

	got, err := ReadPacket(bytes.NewReader(frame), make([]byte, MaxPacketSize))
	if err != nil {
		t.Fatalf("ReadPacket failed: %v", err)
	}
	if got.Code != CodeUndefined {
		t.Errorf("got code %v, want UNDEFINED", got.Code)
	}
}
