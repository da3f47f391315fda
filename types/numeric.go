// Package types holds the data model shared across the runtime: balances,
// gas amounts, payloads, messages, program lifecycle state, the gas tree,
// gas reservations and the scheduler-side collections (mailbox, waitlist,
// stash, task pool). None of these types mutate shared state on their own;
// the executor and journal builder only ever produce immutable snapshots of
// them.
package types

import "github.com/holiman/uint256"

// Gas is a 64-bit monotonic gas amount.
type Gas = uint64

// BlockNumber is a 32-bit block height.
type BlockNumber = uint32

// Value is an unsigned 128-bit balance. It is stored in a uint256.Int so
// arithmetic can reuse a well-tested big-integer implementation, but every
// constructor enforces the 128-bit ceiling the data model promises.
type Value struct {
	inner uint256.Int
}

// maxValue is 2^128 - 1, the largest representable Value.
var maxValue = func() uint256.Int {
	var v uint256.Int
	v.Lsh(uint256.NewInt(1), 128)
	v.SubUint64(&v, 1)
	return v
}()

// ZeroValue returns a Value of zero.
func ZeroValue() Value { return Value{} }

// NewValue builds a Value from a uint64, which always fits within 128 bits.
func NewValue(v uint64) Value {
	return Value{inner: *uint256.NewInt(v)}
}

// NewValueFromBig builds a Value from a uint256.Int, rejecting values that
// exceed the 128-bit ceiling.
func NewValueFromBig(v *uint256.Int) (Value, error) {
	if v.Gt(&maxValue) {
		return Value{}, errValueOverflow
	}
	var out Value
	out.inner.Set(v)
	return out, nil
}

// IsZero reports whether v is zero.
func (v Value) IsZero() bool { return v.inner.IsZero() }

// Uint64 returns v truncated to 64 bits; callers must have already checked
// v fits (e.g. via Cmp against a uint64 range) when truncation matters.
func (v Value) Uint64() uint64 { return v.inner.Uint64() }

// Add returns a+b, saturating is never performed: overflow beyond the
// 128-bit ceiling returns an error since the data model promises balances
// never exceed it.
func (v Value) Add(o Value) (Value, error) {
	var sum uint256.Int
	sum.Add(&v.inner, &o.inner)
	return NewValueFromBig(&sum)
}

// Sub returns v-o, erroring if o > v.
func (v Value) Sub(o Value) (Value, error) {
	if v.inner.Lt(&o.inner) {
		return Value{}, errValueUnderflow
	}
	var diff uint256.Int
	diff.Sub(&v.inner, &o.inner)
	return Value{inner: diff}, nil
}

// Cmp compares v and o the way uint256.Int.Cmp does.
func (v Value) Cmp(o Value) int { return v.inner.Cmp(&o.inner) }

// Bytes32 returns the big-endian 32-byte representation of v.
func (v Value) Bytes32() [32]byte { return v.inner.Bytes32() }
