package wasmenv

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/gear-tech/gear-core-go/hostcall"
	"github.com/gear-tech/gear-core-go/ids"
	"github.com/gear-tech/gear-core-go/types"
)

func TestAllHostCallsHaveBindings(t *testing.T) {
	seen := make(map[hostcall.Name]bool, len(bindings))
	for _, b := range bindings {
		seen[b.name] = true
	}
	for _, n := range hostcall.AllNames {
		if !seen[n] {
			t.Fatalf("no binding registered for %s", n)
		}
	}
}

func buf32(b byte) []byte {
	id := make([]byte, 32)
	id[0] = b
	return id
}

func TestCursorPrimitivesRoundTrip(t *testing.T) {
	var raw []byte
	raw = append(raw, 0, 0, 0, 42) // u32
	raw = append(raw, 0, 0, 0, 0, 0, 0, 0, 99) // u64
	raw = append(raw, 1)                       // bool true

	c := newCursor(raw)
	if got := c.u32(); got != 42 {
		t.Fatalf("u32 = %d, want 42", got)
	}
	if got := c.u64(); got != 99 {
		t.Fatalf("u64 = %d, want 99", got)
	}
	if got := c.boolean(); !got {
		t.Fatal("boolean = false, want true")
	}
}

func TestCursorBlobReadsLengthPrefixedBytes(t *testing.T) {
	var raw []byte
	raw = binary.BigEndian.AppendUint32(raw, 3)
	raw = append(raw, 'a', 'b', 'c')

	c := newCursor(raw)
	got := c.blob()
	if !bytes.Equal(got, []byte("abc")) {
		t.Fatalf("blob = %q, want %q", got, "abc")
	}
}

func TestCursorValueSentinelIsZero(t *testing.T) {
	var raw []byte
	raw = binary.BigEndian.AppendUint32(raw, ptrSpecial)
	c := newCursor(raw)
	if v := c.value(); !v.IsZero() {
		t.Fatalf("value = %v, want zero", v)
	}
}

func TestCursorValueDecodesNonZero128Bit(t *testing.T) {
	var raw []byte
	raw = binary.BigEndian.AppendUint32(raw, 0)
	amount := make([]byte, 16)
	amount[15] = 7
	raw = append(raw, amount...)

	c := newCursor(raw)
	v := c.value()
	if v.Uint64() != 7 {
		t.Fatalf("value.Uint64() = %d, want 7", v.Uint64())
	}
}

func TestCursorGasLimitOptionAbsent(t *testing.T) {
	raw := []byte{0, 0, 0, 0, 0, 0, 0, 0, 0} // has=false, 8 zero bytes
	c := newCursor(raw)
	if g := c.gasLimitOption(); g != nil {
		t.Fatalf("gasLimitOption = %v, want nil", g)
	}
}

func TestCursorGasLimitOptionPresent(t *testing.T) {
	var raw []byte
	raw = append(raw, 1) // has=true
	raw = binary.BigEndian.AppendUint64(raw, 1_000)
	c := newCursor(raw)
	g := c.gasLimitOption()
	if g == nil || *g != 1_000 {
		t.Fatalf("gasLimitOption = %v, want 1000", g)
	}
}

func TestDecodeSendBuildsOutgoingPacket(t *testing.T) {
	var raw []byte
	raw = append(raw, buf32(9)...)                       // destination
	raw = binary.BigEndian.AppendUint32(raw, 3)           // payload length
	raw = append(raw, 'h', 'i', '!')                      // payload
	raw = binary.BigEndian.AppendUint32(raw, ptrSpecial)  // value = 0
	raw = binary.BigEndian.AppendUint32(raw, 5)           // delay
	raw = append(raw, 0, 0, 0, 0, 0, 0, 0, 0, 0)          // no gas limit

	args := decodeSend(raw)
	packet := args[hostcall.ArgPacket].(types.OutgoingMessage)
	if packet.Destination != ids.ActorId(buf32AsArray(9)) {
		t.Fatalf("destination mismatch: %v", packet.Destination)
	}
	if !bytes.Equal(packet.Payload.Bytes(), []byte("hi!")) {
		t.Fatalf("payload = %q, want %q", packet.Payload.Bytes(), "hi!")
	}
	if packet.Delay != 5 {
		t.Fatalf("delay = %d, want 5", packet.Delay)
	}
	if _, hasGasLimit := args[hostcall.ArgGasLimit]; hasGasLimit {
		t.Fatal("gas limit should be absent")
	}
}

func buf32AsArray(b byte) [32]byte {
	var a [32]byte
	a[0] = b
	return a
}

func TestEncodeMessageIdRoundTrips(t *testing.T) {
	id := ids.MessageId(buf32AsArray(3))
	out := encodeMessageId(id)
	if !bytes.Equal(out, id[:]) {
		t.Fatalf("encodeMessageId = %x, want %x", out, id[:])
	}
}

func TestEncodeValueLowSixteenBytes(t *testing.T) {
	v := types.NewValue(256)
	out := encodeValue(v)
	if len(out) != 16 {
		t.Fatalf("encodeValue length = %d, want 16", len(out))
	}
	if out[14] != 1 || out[15] != 0 {
		t.Fatalf("encodeValue = %x, want big-endian 256 in low 16 bytes", out)
	}
}

func TestEncodeCreateProgramConcatenatesIds(t *testing.T) {
	programId := ids.ActorId(buf32AsArray(1))
	mid := ids.MessageId(buf32AsArray(2))
	out := encodeCreateProgram([2]any{programId, mid})
	if len(out) != 64 {
		t.Fatalf("length = %d, want 64", len(out))
	}
	if !bytes.Equal(out[:32], programId[:]) || !bytes.Equal(out[32:], mid[:]) {
		t.Fatal("encodeCreateProgram did not concatenate ids in order")
	}
}
