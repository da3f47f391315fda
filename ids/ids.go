// Package ids defines the opaque 32-byte identifiers used throughout the
// runtime: actors, messages, codes and gas reservations never carry
// structure beyond their byte representation, so cyclic relations between
// programs, codes and reservations are broken by resolving them through a
// storage driver rather than by embedding pointers between them.
package ids

import (
	"encoding/hex"
	"fmt"
)

// Size is the byte length of every identifier kind in this package.
const Size = 32

// ActorId identifies a deployed program, or the zero value for the system
// origin (see ActorId.IsZero).
type ActorId [Size]byte

// MessageId identifies a single message instance.
type MessageId [Size]byte

// CodeId identifies a content-addressed program code blob.
type CodeId [Size]byte

// ReservationId identifies a gas reservation owned by an actor.
type ReservationId [Size]byte

// ZeroActorId returns the system origin identifier.
func ZeroActorId() ActorId { return ActorId{} }

// IsZero reports whether a is the system origin.
func (a ActorId) IsZero() bool { return a == ActorId{} }

// Bytes returns a's bytes as a freshly allocated slice.
func (a ActorId) Bytes() []byte { return append([]byte(nil), a[:]...) }

// String renders a as a 0x-prefixed hex string.
func (a ActorId) String() string { return "0x" + hex.EncodeToString(a[:]) }

// Bytes returns m's bytes as a freshly allocated slice.
func (m MessageId) Bytes() []byte { return append([]byte(nil), m[:]...) }

// String renders m as a 0x-prefixed hex string.
func (m MessageId) String() string { return "0x" + hex.EncodeToString(m[:]) }

// IsZero reports whether m is the zero message id.
func (m MessageId) IsZero() bool { return m == MessageId{} }

// Bytes returns c's bytes as a freshly allocated slice.
func (c CodeId) Bytes() []byte { return append([]byte(nil), c[:]...) }

// String renders c as a 0x-prefixed hex string.
func (c CodeId) String() string { return "0x" + hex.EncodeToString(c[:]) }

// Bytes returns r's bytes as a freshly allocated slice.
func (r ReservationId) Bytes() []byte { return append([]byte(nil), r[:]...) }

// String renders r as a 0x-prefixed hex string.
func (r ReservationId) String() string { return "0x" + hex.EncodeToString(r[:]) }

// ActorIdFromBytes builds an ActorId from a byte slice. The slice must be
// exactly Size bytes long.
func ActorIdFromBytes(b []byte) (ActorId, error) {
	var a ActorId
	if len(b) != Size {
		return a, fmt.Errorf("ids: actor id must be %d bytes, got %d", Size, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// MessageIdFromBytes builds a MessageId from a byte slice. The slice must be
// exactly Size bytes long.
func MessageIdFromBytes(b []byte) (MessageId, error) {
	var m MessageId
	if len(b) != Size {
		return m, fmt.Errorf("ids: message id must be %d bytes, got %d", Size, len(b))
	}
	copy(m[:], b)
	return m, nil
}

// CodeIdFromBytes builds a CodeId from a byte slice. The slice must be
// exactly Size bytes long.
func CodeIdFromBytes(b []byte) (CodeId, error) {
	var c CodeId
	if len(b) != Size {
		return c, fmt.Errorf("ids: code id must be %d bytes, got %d", Size, len(b))
	}
	copy(c[:], b)
	return c, nil
}

// ReservationIdFromBytes builds a ReservationId from a byte slice. The slice
// must be exactly Size bytes long.
func ReservationIdFromBytes(b []byte) (ReservationId, error) {
	var r ReservationId
	if len(b) != Size {
		return r, fmt.Errorf("ids: reservation id must be %d bytes, got %d", Size, len(b))
	}
	copy(r[:], b)
	return r, nil
}
