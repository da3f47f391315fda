package wasmenv

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/tetratelabs/wazero/api"

	"github.com/gear-tech/gear-core-go/hostcall"
	"github.com/gear-tech/gear-core-go/ids"
	"github.com/gear-tech/gear-core-go/lazypages"
	"github.com/gear-tech/gear-core-go/memaccess"
	"github.com/gear-tech/gear-core-go/types"
)

// binding pairs a host-call Name with the codec that turns the guest's raw
// argument bytes into the hostcall.Args bag its Call expects, and its
// return value back into bytes. Every exported "env" function shares the
// same three-register shape (argsPtr, argsLen, outPtr) -> error code;
// decode/encode are what give each call its own argument and result shape
// within that uniform frame.
type binding struct {
	name   hostcall.Name
	decode func([]byte) hostcall.Args
	encode func(any) []byte
}

// bindings covers every Name in hostcall.AllNames; init asserts that below.
var bindings = []binding{
	{hostcall.NameSend, decodeSend, encodeMessageId},
	{hostcall.NameSendCommit, decodeSendCommit, encodeMessageId},
	{hostcall.NameSendInit, decodeNone, encodeU32},
	{hostcall.NameSendPush, decodeSendPush, nil},
	{hostcall.NameSendInput, decodeSendInput, encodeMessageId},
	{hostcall.NameSendPushInput, decodeSendPushInput, nil},

	{hostcall.NameReply, decodeReply, encodeMessageId},
	{hostcall.NameReplyCommit, decodeReplyCommit, encodeMessageId},
	{hostcall.NameReplyPush, decodeReplyPush, nil},
	{hostcall.NameReplyInput, decodeReplyInput, encodeMessageId},
	{hostcall.NameReplyPushInput, decodeReplyPushInput, nil},
	{hostcall.NameReplyTo, decodeNone, encodeReplyTo},
	{hostcall.NameSignalFrom, decodeNone, encodeMessageId},

	{hostcall.NameReservationSend, decodeReservationSend, encodeMessageId},
	{hostcall.NameReservationSendCommit, decodeReservationSend, encodeMessageId},
	{hostcall.NameReservationReply, decodeReservationReply, encodeMessageId},
	{hostcall.NameReservationReplyCommit, decodeReservationReply, encodeMessageId},

	{hostcall.NameCreateProgram, decodeCreateProgram, encodeCreateProgram},

	{hostcall.NameSize, decodeNone, encodeU32},
	{hostcall.NameRead, decodeNone, encodeBytes},
	{hostcall.NameSource, decodeNone, encodeActorId},
	{hostcall.NameValue, decodeNone, encodeValue},
	{hostcall.NameValueAvailable, decodeNone, encodeValue},
	{hostcall.NameBlockHeight, decodeNone, encodeU32},
	{hostcall.NameBlockTimestamp, decodeNone, encodeU64},
	{hostcall.NameMessageId, decodeNone, encodeMessageId},
	{hostcall.NameProgramId, decodeNone, encodeActorId},
	{hostcall.NameStatusCode, decodeNone, encodeI32},
	{hostcall.NameRandom, decodeRandom, encodeRandom},
	{hostcall.NameGasAvailable, decodeNone, encodeU64},

	{hostcall.NameAlloc, decodeLength, encodeU32},
	{hostcall.NameFree, decodeLength, encodeU32},

	{hostcall.NameReserveGas, decodeReserveGas, encodeReservationId},
	{hostcall.NameUnreserveGas, decodeUnreserveGas, encodeU64},
	{hostcall.NameSystemReserveGas, decodeSystemReserveGas, nil},
	{hostcall.NameReplyDeposit, decodeReplyDeposit, nil},

	{hostcall.NameWait, decodeNone, nil},
	{hostcall.NameWaitFor, decodeDuration, nil},
	{hostcall.NameWaitUpTo, decodeDuration, nil},
	{hostcall.NameWake, decodeWake, nil},
	{hostcall.NameLeave, decodeNone, nil},
	{hostcall.NameExit, decodeExit, nil},
	{hostcall.NamePanic, decodeMessageArg, nil},
	{hostcall.NameOomPanic, decodeNone, nil},
	{hostcall.NameDebug, decodeMessageArg, nil},
}

func init() {
	seen := make(map[hostcall.Name]bool, len(bindings))
	for _, b := range bindings {
		seen[b.name] = true
	}
	for _, n := range hostcall.AllNames {
		if !seen[n] {
			panic(fmt.Sprintf("wasmenv: no ABI binding registered for host call %q", n))
		}
	}
}

// makeHostFunc builds the wazero-facing function for b: it reads the
// guest's argument bytes through a fresh memory access registry (C2),
// decodes them, runs the call through the host-call table (C4), and writes
// back either the encoded return value or a fallible error code. A
// terminating outcome closes the guest module rather than returning a code.
func (e *Environment) makeHostFunc(b binding) func(context.Context, api.Module, uint32, uint32, uint32) uint32 {
	return func(ctx context.Context, mod api.Module, argsPtr, argsLen, outPtr uint32) uint32 {
		// perByteRate is 0: e.memory already bills every byte it touches
		// through the lazy-page engine, so charging again here per access
		// registered would double-bill the same bytes.
		reg := memaccess.New(e.memory, e.gasCounter, 0, e.allocations)

		args := hostcall.Args{}
		if argsLen > 0 {
			tok := reg.RegisterRead(argsPtr, argsLen)
			blob, err := reg.Read(tok)
			if err != nil {
				e.terminate(ctx, memAccessOutcome(err, hostcall.TrapUnrecoverableExt))
				return 0
			}
			args = b.decode(blob)
		}

		ret, errRec, outcome, terminates := e.table.Invoke(b.name, e.ext, args)
		if terminates {
			e.terminate(ctx, outcome)
			return 0
		}
		if errRec != nil {
			return errRec.Code
		}
		if b.encode == nil {
			return 0
		}
		out := b.encode(ret)
		if len(out) == 0 {
			return 0
		}
		tok := reg.RegisterWrite(outPtr, uint32(len(out)))
		if err := reg.Write(tok, out); err != nil {
			e.terminate(ctx, memAccessOutcome(err, hostcall.TrapProgramAllocOutOfBounds))
			return 0
		}
		return 0
	}
}

// memAccessOutcome maps a memaccess.Registry Read/Write failure to the
// Outcome that terminates the dispatch with: a lazy-page charge the block's
// allowance could not cover is recoverable and requeues the dispatch
// rather than trapping the actor, matching Table.Invoke's own charge-site
// policy. Any other failure traps with defaultTrap, the kind appropriate
// to the caller's own bounds-check semantics.
func memAccessOutcome(err error, defaultTrap hostcall.TrapKind) hostcall.Outcome {
	switch {
	case errors.Is(err, lazypages.ErrGasAllowanceExceeded):
		return hostcall.GasAllowanceExceeded()
	case errors.Is(err, lazypages.ErrGasLimitExceeded), errors.Is(err, memaccess.ErrGasLimitExceeded):
		return hostcall.Trap(hostcall.TrapGasLimitExceeded)
	default:
		return hostcall.Trap(defaultTrap)
	}
}

// ---------------------------------------------------------------------------
// cursor: big-endian decoding of a guest argument blob.
// ---------------------------------------------------------------------------

var errShortArgBuffer = fmt.Errorf("wasmenv: argument buffer too short")

// ptrSpecial is the sentinel marker a value field carries in place of its
// 16 trailing bytes when the value is exactly zero, sparing the guest from
// writing out a full 128-bit zero for the overwhelmingly common no-value
// case.
const ptrSpecial = 0xffffffff

type cursor struct {
	buf []byte
	pos int
	err error
}

func newCursor(buf []byte) *cursor { return &cursor{buf: buf} }

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.pos+n > len(c.buf) {
		c.err = errShortArgBuffer
		return make([]byte, n)
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *cursor) u32() uint32 {
	return binary.BigEndian.Uint32(c.take(4))
}

func (c *cursor) u64() uint64 {
	return binary.BigEndian.Uint64(c.take(8))
}

func (c *cursor) boolean() bool {
	b := c.take(1)
	return b[0] != 0
}

func (c *cursor) blob() []byte {
	n := c.u32()
	return append([]byte(nil), c.take(int(n))...)
}

func (c *cursor) actorId() (a ids.ActorId) {
	copy(a[:], c.take(ids.Size))
	return a
}

func (c *cursor) messageId() (m ids.MessageId) {
	copy(m[:], c.take(ids.Size))
	return m
}

func (c *cursor) codeId() (id ids.CodeId) {
	copy(id[:], c.take(ids.Size))
	return id
}

func (c *cursor) reservationId() (id ids.ReservationId) {
	copy(id[:], c.take(ids.Size))
	return id
}

func (c *cursor) blockNumber() types.BlockNumber { return c.u32() }

func (c *cursor) gas() types.Gas { return c.u64() }

func (c *cursor) value() types.Value {
	marker := c.u32()
	if marker == ptrSpecial {
		return types.ZeroValue()
	}
	var u uint256.Int
	u.SetBytes(c.take(16))
	v, err := types.NewValueFromBig(&u)
	if err != nil {
		return types.ZeroValue()
	}
	return v
}

func (c *cursor) gasLimitOption() *types.Gas {
	has := c.boolean()
	g := c.gas()
	if !has {
		return nil
	}
	return &g
}

func setGasLimit(args hostcall.Args, g *types.Gas) {
	if g != nil {
		args[hostcall.ArgGasLimit] = *g
	}
}

func outgoingPacket(dest ids.ActorId, payload []byte, value types.Value, delay types.BlockNumber) types.OutgoingMessage {
	p, _ := types.NewPayload(payload)
	return types.OutgoingMessage{
		Message: types.Message{Destination: dest, Payload: p, Value: value},
		Kind:    types.Handle,
		Delay:   delay,
	}
}

// ---------------------------------------------------------------------------
// decode functions, one per distinct argument shape.
// ---------------------------------------------------------------------------

func decodeNone([]byte) hostcall.Args { return hostcall.Args{} }

func decodeLength(buf []byte) hostcall.Args {
	c := newCursor(buf)
	return hostcall.Args{hostcall.ArgLength: c.u32()}
}

func decodeDuration(buf []byte) hostcall.Args {
	c := newCursor(buf)
	return hostcall.Args{hostcall.ArgDuration: c.u32()}
}

func decodeMessageArg(buf []byte) hostcall.Args {
	c := newCursor(buf)
	return hostcall.Args{hostcall.ArgMessage: string(c.blob())}
}

func decodeExit(buf []byte) hostcall.Args {
	c := newCursor(buf)
	return hostcall.Args{hostcall.ArgInheritor: c.actorId()}
}

func decodeWake(buf []byte) hostcall.Args {
	c := newCursor(buf)
	mid := c.messageId()
	delay := c.blockNumber()
	return hostcall.Args{hostcall.ArgMessageId: mid, hostcall.ArgDelay: delay}
}

func decodeSend(buf []byte) hostcall.Args {
	c := newCursor(buf)
	dest := c.actorId()
	payload := c.blob()
	value := c.value()
	delay := c.blockNumber()
	gasLimit := c.gasLimitOption()
	args := hostcall.Args{hostcall.ArgPacket: outgoingPacket(dest, payload, value, delay)}
	setGasLimit(args, gasLimit)
	return args
}

func decodeSendPush(buf []byte) hostcall.Args {
	c := newCursor(buf)
	handle := c.u32()
	payload := c.blob()
	return hostcall.Args{hostcall.ArgHandle: handle, hostcall.ArgPayload: payload}
}

func decodeSendInput(buf []byte) hostcall.Args {
	c := newCursor(buf)
	offset := c.u32()
	length := c.u32()
	dest := c.actorId()
	value := c.value()
	delay := c.blockNumber()
	gasLimit := c.gasLimitOption()
	args := hostcall.Args{
		hostcall.ArgOffset: offset, hostcall.ArgLength: length,
		hostcall.ArgDestination: dest, hostcall.ArgValue: value, hostcall.ArgDelay: delay,
	}
	setGasLimit(args, gasLimit)
	return args
}

func decodeSendPushInput(buf []byte) hostcall.Args {
	c := newCursor(buf)
	handle := c.u32()
	offset := c.u32()
	length := c.u32()
	return hostcall.Args{hostcall.ArgHandle: handle, hostcall.ArgOffset: offset, hostcall.ArgLength: length}
}

func decodeSendCommit(buf []byte) hostcall.Args {
	c := newCursor(buf)
	handle := c.u32()
	dest := c.actorId()
	value := c.value()
	delay := c.blockNumber()
	gasLimit := c.gasLimitOption()
	args := hostcall.Args{
		hostcall.ArgHandle: handle, hostcall.ArgDestination: dest,
		hostcall.ArgValue: value, hostcall.ArgDelay: delay,
	}
	setGasLimit(args, gasLimit)
	return args
}

func decodeReply(buf []byte) hostcall.Args {
	c := newCursor(buf)
	payload := c.blob()
	value := c.value()
	gasLimit := c.gasLimitOption()
	p, _ := types.NewPayload(payload)
	args := hostcall.Args{hostcall.ArgPayload: p, hostcall.ArgValue: value}
	setGasLimit(args, gasLimit)
	return args
}

func decodeReplyPush(buf []byte) hostcall.Args {
	c := newCursor(buf)
	return hostcall.Args{hostcall.ArgPayload: c.blob()}
}

func decodeReplyInput(buf []byte) hostcall.Args {
	c := newCursor(buf)
	offset := c.u32()
	length := c.u32()
	value := c.value()
	gasLimit := c.gasLimitOption()
	args := hostcall.Args{hostcall.ArgOffset: offset, hostcall.ArgLength: length, hostcall.ArgValue: value}
	setGasLimit(args, gasLimit)
	return args
}

func decodeReplyPushInput(buf []byte) hostcall.Args {
	c := newCursor(buf)
	offset := c.u32()
	length := c.u32()
	return hostcall.Args{hostcall.ArgOffset: offset, hostcall.ArgLength: length}
}

func decodeReplyCommit(buf []byte) hostcall.Args {
	c := newCursor(buf)
	value := c.value()
	gasLimit := c.gasLimitOption()
	args := hostcall.Args{hostcall.ArgValue: value}
	setGasLimit(args, gasLimit)
	return args
}

func decodeReservationSend(buf []byte) hostcall.Args {
	c := newCursor(buf)
	reservation := c.reservationId()
	dest := c.actorId()
	payload := c.blob()
	value := c.value()
	delay := c.blockNumber()
	return hostcall.Args{
		hostcall.ArgReservation: reservation,
		hostcall.ArgPacket:      outgoingPacket(dest, payload, value, delay),
	}
}

func decodeReservationReply(buf []byte) hostcall.Args {
	c := newCursor(buf)
	reservation := c.reservationId()
	payload := c.blob()
	value := c.value()
	p, _ := types.NewPayload(payload)
	return hostcall.Args{hostcall.ArgReservation: reservation, hostcall.ArgPayload: p, hostcall.ArgValue: value}
}

func decodeCreateProgram(buf []byte) hostcall.Args {
	c := newCursor(buf)
	codeId := c.codeId()
	salt := c.blob()
	payload := c.blob()
	value := c.value()
	delay := c.blockNumber()
	return hostcall.Args{
		hostcall.ArgCodeId: codeId, hostcall.ArgSalt: salt, hostcall.ArgPayload: payload,
		hostcall.ArgValue: value, hostcall.ArgDelay: delay,
	}
}

func decodeRandom(buf []byte) hostcall.Args {
	c := newCursor(buf)
	return hostcall.Args{hostcall.ArgPayload: c.blob()}
}

func decodeReserveGas(buf []byte) hostcall.Args {
	c := newCursor(buf)
	amount := c.gas()
	delay := c.blockNumber()
	return hostcall.Args{hostcall.ArgValue: amount, hostcall.ArgDelay: delay}
}

func decodeUnreserveGas(buf []byte) hostcall.Args {
	c := newCursor(buf)
	return hostcall.Args{hostcall.ArgReservation: c.reservationId()}
}

func decodeSystemReserveGas(buf []byte) hostcall.Args {
	c := newCursor(buf)
	return hostcall.Args{hostcall.ArgValue: c.gas()}
}

func decodeReplyDeposit(buf []byte) hostcall.Args {
	c := newCursor(buf)
	mid := c.messageId()
	amount := c.gas()
	return hostcall.Args{hostcall.ArgMessageId: mid, hostcall.ArgValue: amount}
}

// ---------------------------------------------------------------------------
// encode functions, one per distinct return shape.
// ---------------------------------------------------------------------------

func encodeU32(ret any) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, ret.(uint32))
	return buf
}

func encodeI32(ret any) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(ret.(int32)))
	return buf
}

func encodeU64(ret any) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, ret.(uint64))
	return buf
}

func encodeBytes(ret any) []byte { return ret.([]byte) }

func encodeMessageId(ret any) []byte {
	id := ret.(ids.MessageId)
	return append([]byte(nil), id[:]...)
}

func encodeActorId(ret any) []byte {
	id := ret.(ids.ActorId)
	return append([]byte(nil), id[:]...)
}

func encodeReservationId(ret any) []byte {
	id := ret.(ids.ReservationId)
	return append([]byte(nil), id[:]...)
}

func encodeValue(ret any) []byte {
	b := ret.(types.Value).Bytes32()
	return append([]byte(nil), b[16:]...)
}

func encodeReplyTo(ret any) []byte {
	pair := ret.([2]any)
	mid := pair[0].(ids.MessageId)
	code := pair[1].(int32)
	buf := make([]byte, ids.Size+4)
	copy(buf, mid[:])
	binary.BigEndian.PutUint32(buf[ids.Size:], uint32(code))
	return buf
}

func encodeRandom(ret any) []byte {
	pair := ret.([2]any)
	seed := pair[0].([32]byte)
	bn := pair[1].(types.BlockNumber)
	buf := make([]byte, 32+4)
	copy(buf, seed[:])
	binary.BigEndian.PutUint32(buf[32:], bn)
	return buf
}

func encodeCreateProgram(ret any) []byte {
	pair := ret.([2]any)
	programId := pair[0].(ids.ActorId)
	mid := pair[1].(ids.MessageId)
	buf := make([]byte, ids.Size*2)
	copy(buf[:ids.Size], programId[:])
	copy(buf[ids.Size:], mid[:])
	return buf
}
