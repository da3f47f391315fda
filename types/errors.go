package types

import "errors"

var (
	errValueOverflow  = errors.New("types: value exceeds 128-bit ceiling")
	errValueUnderflow = errors.New("types: value underflow")

	// ErrPayloadTooLarge is returned by NewPayload when the supplied bytes
	// exceed MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("types: payload exceeds maximum length")
)
