package ids

import (
	"encoding/hex"
	"testing"
)

func TestZeroActorId(t *testing.T) {
	z := ZeroActorId()
	if !z.IsZero() {
		t.Fatal("expected zero actor id to report IsZero")
	}
	var a ActorId
	a[0] = 1
	if a.IsZero() {
		t.Fatal("non-zero actor id reported IsZero")
	}
}

func TestActorIdFromBytesWrongLength(t *testing.T) {
	if _, err := ActorIdFromBytes([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short byte slice")
	}
}

func TestActorIdFromBytesRoundTrip(t *testing.T) {
	src := make([]byte, Size)
	for i := range src {
		src[i] = byte(i)
	}
	a, err := ActorIdFromBytes(src)
	if err != nil {
		t.Fatalf("ActorIdFromBytes: %v", err)
	}
	if got := a.Bytes(); string(got) != string(src) {
		t.Fatalf("round trip mismatch: got %x want %x", got, src)
	}
}

func TestStringIsHexPrefixed(t *testing.T) {
	var m MessageId
	m[0] = 0xab
	want := "0x" + hex.EncodeToString(m[:])
	if got := m.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
