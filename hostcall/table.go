package hostcall

import (
	"errors"
	"fmt"

	"github.com/gear-tech/gear-core-go/gas"
	"github.com/gear-tech/gear-core-go/types"
)

// Name identifies one exported host function under the guest's "env"
// module. It is a superset of gas.SyscallName: every chargeable syscall has
// a Name, but a handful of calls (push_input variants, reservation sends,
// panic/oom_panic) are billed off a related syscall's schedule entry rather
// than carrying their own, matching how the original schedule table prices
// close variants together.
type Name string

const (
	NameSend                   Name = "send"
	NameSendCommit             Name = "send_commit"
	NameSendInit               Name = "send_init"
	NameSendPush               Name = "send_push"
	NameSendInput              Name = "send_input"
	NameSendPushInput          Name = "send_push_input"
	NameReply                  Name = "reply"
	NameReplyCommit            Name = "reply_commit"
	NameReplyPush              Name = "reply_push"
	NameReplyInput             Name = "reply_input"
	NameReplyPushInput         Name = "reply_push_input"
	NameReplyTo                Name = "reply_to"
	NameSignalFrom             Name = "signal_from"
	NameReservationSend        Name = "reservation_send"
	NameReservationSendCommit  Name = "reservation_send_commit"
	NameReservationReply       Name = "reservation_reply"
	NameReservationReplyCommit Name = "reservation_reply_commit"
	NameCreateProgram          Name = "create_program"

	NameSize           Name = "size"
	NameRead           Name = "read"
	NameSource         Name = "source"
	NameValue          Name = "value"
	NameValueAvailable Name = "value_available"
	NameBlockHeight    Name = "block_height"
	NameBlockTimestamp Name = "block_timestamp"
	NameMessageId      Name = "message_id"
	NameProgramId      Name = "program_id"
	NameStatusCode     Name = "status_code"
	NameRandom         Name = "random"
	NameGasAvailable   Name = "gas_available"

	NameAlloc Name = "alloc"
	NameFree  Name = "free"

	NameReserveGas       Name = "reserve_gas"
	NameUnreserveGas     Name = "unreserve_gas"
	NameSystemReserveGas Name = "system_reserve_gas"
	NameReplyDeposit     Name = "reply_deposit"

	NameWait       Name = "wait"
	NameWaitFor    Name = "wait_for"
	NameWaitUpTo   Name = "wait_up_to"
	NameWake       Name = "wake"
	NameLeave      Name = "leave"
	NameExit       Name = "exit"
	NamePanic      Name = "panic"
	NameOomPanic   Name = "oom_panic"
	NameDebug      Name = "debug"
)

// AllNames lists the complete, fixed host-call surface exported under
// "env". The WASM environment (C6) asserts that a Table binds exactly this
// set, matching spec §4.6's construction-time assertion.
var AllNames = []Name{
	NameSend, NameSendCommit, NameSendInit, NameSendPush, NameSendInput, NameSendPushInput,
	NameReply, NameReplyCommit, NameReplyPush, NameReplyInput, NameReplyPushInput,
	NameReplyTo, NameSignalFrom,
	NameReservationSend, NameReservationSendCommit, NameReservationReply, NameReservationReplyCommit,
	NameCreateProgram,
	NameSize, NameRead, NameSource, NameValue, NameValueAvailable,
	NameBlockHeight, NameBlockTimestamp, NameMessageId, NameProgramId, NameStatusCode,
	NameRandom, NameGasAvailable,
	NameAlloc, NameFree,
	NameReserveGas, NameUnreserveGas, NameSystemReserveGas, NameReplyDeposit,
	NameWait, NameWaitFor, NameWaitUpTo, NameWake, NameLeave, NameExit,
	NamePanic, NameOomPanic, NameDebug,
}

// scheduleCost maps a Name onto the gas.SyscallName whose Schedule entry
// prices it. Variants not separately priced in the schedule share their
// base call's entry. create_program is priced separately, off the
// dedicated two-rate CreateProgram cost, since it amortizes payload and
// salt length independently -- it has no entry here.
var scheduleCost = map[Name]gas.SyscallName{
	NameSend: gas.Send, NameSendCommit: gas.SendCommit, NameSendInit: gas.SendInit,
	NameSendPush: gas.SendPush, NameSendInput: gas.SendInput, NameSendPushInput: gas.SendPush,
	NameReply: gas.Reply, NameReplyCommit: gas.ReplyCommit, NameReplyPush: gas.ReplyPush,
	NameReplyInput: gas.ReplyInput, NameReplyPushInput: gas.ReplyPush,
	NameReplyTo: gas.Null, NameSignalFrom: gas.Null,
	NameReservationSend: gas.SendCommit, NameReservationSendCommit: gas.SendCommit,
	NameReservationReply: gas.ReplyCommit, NameReservationReplyCommit: gas.ReplyCommit,
	NameSize:            gas.Size, NameRead: gas.Read, NameSource: gas.Source, NameValue: gas.Value,
	NameValueAvailable: gas.ValueAvailable, NameBlockHeight: gas.BlockHeight,
	NameBlockTimestamp: gas.BlockTimestamp, NameMessageId: gas.MsgId, NameProgramId: gas.ProgramId,
	NameStatusCode: gas.StatusCode, NameRandom: gas.Random, NameGasAvailable: gas.GasAvailable,
	NameAlloc: gas.Alloc, NameFree: gas.Free,
	NameReserveGas: gas.ReserveGas, NameUnreserveGas: gas.UnreserveGas,
	NameSystemReserveGas: gas.SystemReserveGas, NameReplyDeposit: gas.ReplyDeposit,
	NameWait: gas.Wait, NameWaitFor: gas.WaitFor, NameWaitUpTo: gas.WaitUpTo, NameWake: gas.Wake,
	NameLeave: gas.Leave, NameExit: gas.Exit,
	NamePanic: gas.Null, NameOomPanic: gas.Null, NameDebug: gas.Debug,
}

// Call is one host function's bound implementation. args is the raw,
// already-guest-decoded argument set a handler needs (handlers in
// messaging.go/metadata.go/etc. take their own typed signatures and are
// adapted into a Call by the table's registration helpers); ret carries
// whatever the handler produced for the environment to write back into
// WASM return registers, or nil for infallible void calls.
//
// A Call's only contract here is: run business logic against ext, return a
// result or a recoverable error. Gas charging, memory-access registration,
// and trap translation are handled once by Table.Invoke, not by individual
// Call implementations, so that template lives in exactly one place.
type Call func(ext Externalities, args Args) (ret any, err error)

// Args is the decoded argument bag a handler reads from; wasmenv populates
// it from the guest's actual call arguments before dispatch.
type Args map[string]any

// Table binds every Name to either a real Call or, for a configured
// forbidden function, a stub that immediately terminates with
// Trap(ForbiddenFunction).
type Table struct {
	calls     map[Name]Call
	forbidden map[Name]bool
	costs     gas.Schedule
}

// NewTable builds an unbound Table priced from schedule. Callers must
// Bind every Name in AllNames (real handler or forbidden) before use;
// BindDefaults in the sibling *.go files registers the stock handlers.
func NewTable(schedule gas.Schedule, forbiddenNames []string) *Table {
	forbidden := make(map[Name]bool, len(forbiddenNames))
	for _, n := range forbiddenNames {
		forbidden[Name(n)] = true
	}
	return &Table{calls: make(map[Name]Call), forbidden: forbidden, costs: schedule}
}

// Bind registers fn as the implementation of name. If name is configured
// forbidden, Bind is a no-op: BindDefaults registers every stock handler
// unconditionally, and forbidden names must stay served by the
// Trap(ForbiddenFunction) stub in Invoke regardless of what a handler
// group tries to install.
func (t *Table) Bind(name Name, fn Call) {
	if t.forbidden[name] {
		return
	}
	t.calls[name] = fn
}

// Validate asserts every Name in AllNames is either forbidden or bound,
// matching spec §4.6's "missing bindings are a construction-time panic"
// assertion. testMode selects panic vs returning an error for system use.
func (t *Table) Validate(testMode bool) error {
	for _, n := range AllNames {
		if t.forbidden[n] {
			continue
		}
		if _, ok := t.calls[n]; !ok {
			err := fmt.Errorf("hostcall: %s has no binding", n)
			if testMode {
				panic(err)
			}
			return err
		}
	}
	return nil
}

// Invoke runs the fixed host-call template described in the package doc
// for name: forbidden names trap immediately; otherwise the schedule cost
// is charged before the handler runs, and any handler error is translated
// into an ErrorRecord for a fallible call to write back (callers that are
// infallible per spec, i.e. never pass a want-error-record flag, should
// treat a non-nil err as a terminating Outcome instead -- wasmenv decides
// which, since only it knows the call's fallibility class).
//
// A charge that the caller's gas limit cannot cover traps the actor; one
// the block's remaining allowance cannot cover does not -- it surfaces as
// GasAllowanceExceeded so the dispatch is requeued instead.
func (t *Table) Invoke(name Name, ext Externalities, args Args) (any, *ErrorRecord, Outcome, bool) {
	if t.forbidden[name] {
		return nil, nil, Trap(TrapForbiddenFunction), true
	}

	call, ok := t.calls[name]
	if !ok {
		return nil, nil, Trap(TrapUnrecoverableExt), true
	}

	if cost := t.scheduleCost(name, args); cost > 0 {
		switch ext.Gas().Charge(cost) {
		case gas.NotEnoughGas:
			return nil, nil, Trap(TrapGasLimitExceeded), true
		case gas.NotEnoughAllowance:
			return nil, nil, GasAllowanceExceeded(), true
		}
	}

	ret, err := call(ext, args)
	if err == nil {
		return ret, nil, Outcome{}, false
	}
	if o, ok := AsTerminating(err); ok {
		return nil, nil, o, true
	}
	if errors.Is(err, ErrGasAllowanceExceeded) {
		return nil, nil, GasAllowanceExceeded(), true
	}
	if errors.Is(err, ErrGasLimitExceeded) {
		return nil, nil, Trap(TrapGasLimitExceeded), true
	}
	return nil, &ErrorRecord{Code: errorCode(err), Message: err.Error()}, Outcome{}, false
}

// scheduleCost returns name's Schedule-priced cost. Length-sensitive calls
// are billed off the real payload bytes pulled out of args, not the raw
// wire-argument frame wasmenv decoded them from, so a frame's non-payload
// fields -- destination, value, delay, the gas-limit option -- are never
// priced as payload.
func (t *Table) scheduleCost(name Name, args Args) uint64 {
	if name == NameCreateProgram {
		payload, _ := args[ArgPayload].([]byte)
		salt, _ := args[ArgSalt].([]byte)
		return t.costs.CostForCreateProgram(uint64(len(payload)), uint64(len(salt)))
	}
	sc, ok := scheduleCost[name]
	if !ok {
		return 0
	}
	return t.costs.CostForLen(sc, billedLen(name, args))
}

// billedLen extracts the payload length name's per-byte rate applies to,
// per call shape; calls without a branch below bill 0. A call that reaches
// a branch but whose schedule entry has no per-byte component still gets
// its length back, which is harmless since CostForLen multiplies it by a
// zero rate.
func billedLen(name Name, args Args) uint64 {
	switch name {
	case NameSend, NameReservationSend, NameReservationSendCommit:
		if p, ok := args[ArgPacket].(types.OutgoingMessage); ok {
			return uint64(p.Payload.Len())
		}
	case NameSendPush:
		if b, ok := args[ArgPayload].([]byte); ok {
			return uint64(len(b))
		}
	case NameSendInput, NameSendPushInput:
		if l, ok := args[ArgLength].(uint32); ok {
			return uint64(l)
		}
	case NameReply, NameReservationReply, NameReservationReplyCommit:
		if p, ok := args[ArgPayload].(types.Payload); ok {
			return uint64(p.Len())
		}
	case NameReplyPush:
		if b, ok := args[ArgPayload].([]byte); ok {
			return uint64(len(b))
		}
	case NameReplyInput, NameReplyPushInput:
		if l, ok := args[ArgLength].(uint32); ok {
			return uint64(l)
		}
	case NameDebug, NamePanic:
		if s, ok := args[ArgMessage].(string); ok {
			return uint64(len(s))
		}
	}
	return 0
}
