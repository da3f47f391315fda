// Package journal implements the journal builder (C8): a pure function
// turning one dispatch's execution result into an ordered list of notes a
// storage driver applies as state mutations. The core itself never
// mutates program state, balances, or the message queue directly -- every
// observable effect of running a dispatch passes through this list, in
// the order gear-core's core-processor/src/processing.rs emits it, so a
// storage driver replaying notes in order reproduces the exact same state
// a direct-mutation implementation would reach.
package journal

import (
	"github.com/gear-tech/gear-core-go/hostcall"
	"github.com/gear-tech/gear-core-go/ids"
	"github.com/gear-tech/gear-core-go/msgctx"
	"github.com/gear-tech/gear-core-go/types"
)

// NoteKind discriminates the closed set of journal notes.
type NoteKind uint8

const (
	NoteGasBurned NoteKind = iota
	NoteSendValue
	NoteSystemReserveGas
	NoteSystemUnreserveGas
	NoteSendDispatch
	NoteWaitDispatch
	NoteWakeMessage
	NoteReserveGas
	NoteUnreserveGas
	NoteUpdateGasReservations
	NoteUpdatePage
	NoteUpdateAllocations
	NoteSendSignal
	NoteExitDispatch
	NoteStoreNewPrograms
	NoteReplyDeposit
	NoteMessageDispatched
	NoteMessageConsumed
	NoteStopProcessing
)

func (k NoteKind) String() string {
	switch k {
	case NoteGasBurned:
		return "GasBurned"
	case NoteSendValue:
		return "SendValue"
	case NoteSystemReserveGas:
		return "SystemReserveGas"
	case NoteSystemUnreserveGas:
		return "SystemUnreserveGas"
	case NoteSendDispatch:
		return "SendDispatch"
	case NoteWaitDispatch:
		return "WaitDispatch"
	case NoteWakeMessage:
		return "WakeMessage"
	case NoteReserveGas:
		return "ReserveGas"
	case NoteUnreserveGas:
		return "UnreserveGas"
	case NoteUpdateGasReservations:
		return "UpdateGasReservations"
	case NoteUpdatePage:
		return "UpdatePage"
	case NoteUpdateAllocations:
		return "UpdateAllocations"
	case NoteSendSignal:
		return "SendSignal"
	case NoteExitDispatch:
		return "ExitDispatch"
	case NoteStoreNewPrograms:
		return "StoreNewPrograms"
	case NoteReplyDeposit:
		return "ReplyDeposit"
	case NoteMessageDispatched:
		return "MessageDispatched"
	case NoteMessageConsumed:
		return "MessageConsumed"
	case NoteStopProcessing:
		return "StopProcessing"
	default:
		return "Unknown"
	}
}

// DispatchOutcome classifies how a dispatch's execution concluded, for the
// MessageDispatched note's payload.
type DispatchOutcome struct {
	Success     bool
	Trap        bool
	TrapKind    hostcall.TrapKind
	NoExecution bool
}

// Note is one journal entry. Only the fields relevant to Kind are
// meaningful; it mirrors the hostcall.Outcome pattern of a closed sum
// represented as one struct with per-kind fields rather than an
// interface, since every note is produced and consumed in one place.
type Note struct {
	Kind NoteKind

	Amount types.Gas

	From, To ids.ActorId
	Value    types.Value

	MessageId ids.MessageId
	Program   ids.ActorId

	Dispatch    *types.StoredDispatch
	Delay       types.BlockNumber
	Reservation *ids.ReservationId

	WaitKind    hostcall.WaitKind
	WaitForever bool

	Duration types.BlockNumber

	PageNumber uint32
	PageData   []byte // nil means "release", non-nil means "write"

	Allocations *types.AllocationsTree

	SignalCode int32

	Inheritor ids.ActorId

	CodeId     ids.CodeId
	Candidates []msgctx.ProgramCandidate

	Outcome DispatchOutcome
}

// ExecutionOutcome is the executor's high-level verdict on a dispatch,
// mirroring hostcall.TerminationKind but at the level the journal builder
// reasons about (it does not need Wait's distinction between duration
// variants, only whether the actor suspended).
type ExecutionOutcome uint8

const (
	OutcomeSuccess ExecutionOutcome = iota
	OutcomeTrap
	OutcomeWait
	OutcomeExit
	OutcomeGasAllowanceExceeded
)

// ReservationEvent is one gas-reservation state transition observed during
// an execution: either a reservation freshly created (ReserveGas) or one
// explicitly unreserved (UnreserveGas), per the gas tree's Created/Removed
// states in the data model. The journal builder emits one note per event
// plus a single trailing UpdateGasReservations once any event exists.
type ReservationEvent struct {
	Id       ids.ReservationId
	Created  bool
	Amount   types.Gas
	Duration types.BlockNumber
}

// Result is everything one dispatch execution produced, the sole input
// the journal builder needs besides the original dispatch. The executor
// (C7) constructs this after running a dispatch to completion (or to a
// terminating Outcome) and hands it to Build.
type Result struct {
	Dispatch  types.IncomingDispatch
	ProgramId ids.ActorId

	// Kind mirrors Dispatch.Kind; kept as its own field since the auto-reply
	// rule and the SendSignal exclusion both key off it and a journal Result
	// is meant to be readable on its own without re-deriving from Dispatch.
	Kind types.DispatchKind

	// ReplySent reports whether the executing program called any reply*
	// host call itself. When false and the outcome/kind qualify, the
	// executor has already folded a synthetic reply into Reply below --
	// this flag only documents why.
	ReplySent bool

	Outcome  ExecutionOutcome
	TrapKind hostcall.TrapKind

	WaitKind     hostcall.WaitKind
	WaitDuration uint32
	HasDuration  bool

	Inheritor ids.ActorId

	GasBurned types.Gas
	// GasRemaining is whatever was left in the message's gas counter when
	// execution stopped; on Success/Trap it is returned to the gas tree as
	// unreserve-style value-free gas, per the original's gas accounting.
	GasRemaining types.Gas

	// SystemReserved is the amount system_reserve_gas charged this
	// execution, if any.
	SystemReserved types.Gas
	// SystemUnreserve reports that the earmarked SystemReserved amount
	// should be returned rather than held for a future signal: the current
	// resolution of open question (ii) is that a successful execution never
	// needs its system reservation, so it is unreserved in the same
	// dispatch rather than carried forward.
	SystemUnreserve bool
	// SendSignalOnTrap reports that this failed execution should notify the
	// program's own signal handler, per spec §4.8 step 5's condition
	// (failed, a system reservation exists, and the dispatch kind is not
	// Signal/Init/an error-reply already).
	SendSignalOnTrap bool

	// ReservationEvents lists every gas reservation created or removed
	// during this execution, sorted by reservation id.
	ReservationEvents []ReservationEvent

	Generated  []msgctx.GeneratedDispatch
	Reply      *msgctx.GeneratedDispatch
	Candidates []msgctx.ProgramCandidate
	CodeId     ids.CodeId // code id in play for any Candidates this execution produced

	// AwakenMessages are dispatches a Wake() host call targeted, identified
	// by message id; WakeMessage notes are emitted for each regardless of
	// whether the overall execution trapped afterward.
	AwakenMessages []ids.MessageId

	// TouchedPages maps a Gear page index to its post-execution bytes, or
	// to nil for a page released back to the storage driver. Only pages
	// the lazy-pages engine actually charged for writing appear here.
	TouchedPages map[uint32][]byte

	AllocationsAfter *types.AllocationsTree

	// ReplyDepositAmount/ReplyDepositTarget describe a reply_deposit call
	// made this execution, if any.
	ReplyDepositTarget ids.MessageId
	ReplyDepositAmount types.Gas
	HasReplyDeposit    bool
}

// toStored wraps an OutgoingMessage as a StoredDispatch ready for the
// message queue, inferring the dispatch kind from the message's own Kind.
func toStored(source ids.ActorId, m types.OutgoingMessage) types.StoredDispatch {
	msg := m.Message
	if msg.Source == (ids.ActorId{}) {
		msg.Source = source
	}
	return types.StoredDispatch{IncomingDispatch: types.IncomingDispatch{
		Kind:    m.Kind,
		Message: msg,
	}}
}

// Build turns r into the ordered note sequence a storage driver applies,
// following the ten-step ordering from gear-core's
// process_success/process_error/process_allowance_exceed: gas burned
// first; system-reservation bookkeeping; the incoming message's own value
// transfer (skipped for a resumed dispatch, whose value was already
// debited before it suspended); new-program registration before the
// dispatches that realize it; then the generated sends/replies, wakes,
// and page/allocation updates; and finally the single outcome-specific
// terminal note (or pair, for a consumed message).
func Build(r Result) []Note {
	var notes []Note

	if r.GasBurned > 0 {
		notes = append(notes, Note{Kind: NoteGasBurned, Amount: r.GasBurned})
	}

	if r.Outcome == OutcomeGasAllowanceExceeded {
		stored := types.StoredDispatch{IncomingDispatch: r.Dispatch}
		notes = append(notes, Note{Kind: NoteStopProcessing, Dispatch: &stored, Amount: r.GasRemaining})
		return notes
	}

	// Step 2: per-reservation ReserveGas/UnreserveGas notes, then a single
	// trailing UpdateGasReservations, for every reservation created or
	// removed this execution.
	for _, ev := range r.ReservationEvents {
		id := ev.Id
		if ev.Created {
			notes = append(notes, Note{Kind: NoteReserveGas, Reservation: &id, Amount: ev.Amount, Duration: ev.Duration})
		} else {
			notes = append(notes, Note{Kind: NoteUnreserveGas, Reservation: &id, Amount: ev.Amount})
		}
	}
	if len(r.ReservationEvents) > 0 {
		notes = append(notes, Note{Kind: NoteUpdateGasReservations, Program: r.ProgramId})
	}

	if r.SystemReserved > 0 {
		notes = append(notes, Note{Kind: NoteSystemReserveGas, MessageId: r.Dispatch.Message.Id, Amount: r.SystemReserved})
	}

	// Step 4: the incoming message's own value transfer, only when it
	// wasn't already settled by a prior suspended execution.
	if r.Dispatch.Context == nil && !r.Dispatch.Message.Value.IsZero() {
		notes = append(notes, Note{
			Kind:  NoteSendValue,
			From:  r.Dispatch.Message.Source,
			To:    r.ProgramId,
			Value: r.Dispatch.Message.Value,
		})
	}

	if r.SendSignalOnTrap {
		notes = append(notes, Note{
			Kind:       NoteSendSignal,
			MessageId:  r.Dispatch.Message.Id,
			Program:    r.ProgramId,
			SignalCode: int32(r.TrapKind),
		})
	}

	if r.SystemUnreserve {
		notes = append(notes, Note{Kind: NoteSystemUnreserveGas, MessageId: r.Dispatch.Message.Id, Amount: r.SystemReserved})
	}

	if len(r.Candidates) > 0 {
		notes = append(notes, Note{Kind: NoteStoreNewPrograms, CodeId: r.CodeId, Candidates: r.Candidates})
	}

	if r.HasReplyDeposit {
		notes = append(notes, Note{Kind: NoteReplyDeposit, MessageId: r.ReplyDepositTarget, Amount: r.ReplyDepositAmount})
	}

	for _, gen := range r.Generated {
		stored := toStored(r.ProgramId, gen.Message)
		if !gen.Message.Value.IsZero() {
			notes = append(notes, Note{Kind: NoteSendValue, From: r.ProgramId, To: gen.Message.Destination, Value: gen.Message.Value})
		}
		notes = append(notes, Note{
			Kind:        NoteSendDispatch,
			Dispatch:    &stored,
			Delay:       gen.Delay,
			Reservation: gen.Reservation,
		})
	}
	if r.Reply != nil {
		if !r.Reply.Message.Value.IsZero() {
			notes = append(notes, Note{Kind: NoteSendValue, From: r.ProgramId, To: r.Reply.Message.Destination, Value: r.Reply.Message.Value})
		}
		stored := toStored(r.ProgramId, r.Reply.Message)
		notes = append(notes, Note{Kind: NoteSendDispatch, Dispatch: &stored, Reservation: r.Reply.Reservation})
	}

	for _, mid := range r.AwakenMessages {
		notes = append(notes, Note{Kind: NoteWakeMessage, MessageId: mid, Program: r.ProgramId})
	}

	for page, data := range r.TouchedPages {
		notes = append(notes, Note{Kind: NoteUpdatePage, Program: r.ProgramId, PageNumber: page, PageData: data})
	}
	if r.AllocationsAfter != nil {
		notes = append(notes, Note{Kind: NoteUpdateAllocations, Program: r.ProgramId, Allocations: r.AllocationsAfter})
	}

	switch r.Outcome {
	case OutcomeWait:
		stored := types.StoredDispatch{IncomingDispatch: r.Dispatch}
		notes = append(notes, Note{
			Kind:        NoteWaitDispatch,
			Dispatch:    &stored,
			WaitKind:    r.WaitKind,
			Duration:    r.WaitDuration,
			WaitForever: !r.HasDuration,
		})
		// A waiting dispatch is not consumed: it stays live in the waitlist
		// until woken, so no MessageDispatched/MessageConsumed pair follows.
		return notes

	case OutcomeExit:
		notes = append(notes, Note{Kind: NoteExitDispatch, Program: r.ProgramId, Inheritor: r.Inheritor})

	case OutcomeTrap:
		notes = append(notes, Note{
			Kind:      NoteMessageDispatched,
			MessageId: r.Dispatch.Message.Id,
			Program:   r.ProgramId,
			Outcome:   DispatchOutcome{Trap: true, TrapKind: r.TrapKind},
		})

	default: // OutcomeSuccess
		notes = append(notes, Note{
			Kind:      NoteMessageDispatched,
			MessageId: r.Dispatch.Message.Id,
			Program:   r.ProgramId,
			Outcome:   DispatchOutcome{Success: true},
		})
	}

	notes = append(notes, Note{Kind: NoteMessageConsumed, MessageId: r.Dispatch.Message.Id})
	return notes
}

// UnavailableReason classifies why a dispatch addressed to a program never
// reaches the executor at all: the program's own state already rules out
// running guest code for it, per spec §7's "User-visible failures" and
// testable property 7 (exit absorption).
type UnavailableReason uint8

const (
	// ReasonProgramExited means the program called exit(inheritor); the
	// error-reply payload carries the inheritor's id instead of being empty.
	ReasonProgramExited UnavailableReason = iota
	// ReasonInitializationFailure means a prior Init dispatch trapped or was
	// never completed, and the program was terminated as a result.
	ReasonInitializationFailure
	// ReasonUninitialized means a non-Init dispatch arrived before the
	// program's pending Init has been processed.
	ReasonUninitialized
	// ReasonProgramNotCreated means the dispatch targets an actor id no
	// create_program candidate has actually realized (open question iii).
	ReasonProgramNotCreated
	// ReasonReinstrumentationFailure means the code's current instrumented
	// version could not be rebuilt against the program's code id.
	ReasonReinstrumentationFailure
)

// replyCode returns the stable SimpleExecutionError-style code the
// synthesized error-reply carries in its ReplyDetails.
func (r UnavailableReason) replyCode() int32 {
	switch r {
	case ReasonProgramExited:
		return -1
	case ReasonInitializationFailure:
		return -2
	case ReasonUninitialized:
		return -3
	case ReasonProgramNotCreated:
		return -4
	case ReasonReinstrumentationFailure:
		return -5
	default:
		return -255
	}
}

// BuildUnavailable returns the journal for a dispatch that never executes
// because the target program cannot run it at all. No GasBurned note is
// emitted: testable property 7 requires that no gas beyond the bookkeeping
// minimum is spent, and resolving unavailability costs nothing here since
// no counter was ever constructed for it. Reply and Signal dispatches never
// receive the synthesized error-reply, mirroring the auto-reply exclusion
// in Build (there is no sender expecting a reply to its own reply/signal).
func BuildUnavailable(dispatch types.IncomingDispatch, programId ids.ActorId, reason UnavailableReason, inheritor ids.ActorId) []Note {
	var notes []Note

	if dispatch.Kind != types.Reply && dispatch.Kind != types.Signal {
		var payload []byte
		if reason == ReasonProgramExited {
			payload = append([]byte(nil), inheritor[:]...)
		}
		p, _ := types.NewPayload(payload)
		reply := types.Message{
			Destination: dispatch.Message.Source,
			Payload:     p,
			Reply: &types.ReplyDetails{
				ReplyToId: dispatch.Message.Id,
				ReplyCode: reason.replyCode(),
			},
		}
		stored := types.StoredDispatch{IncomingDispatch: types.IncomingDispatch{Kind: types.Reply, Message: reply}}
		notes = append(notes, Note{Kind: NoteSendDispatch, Dispatch: &stored})
	}

	notes = append(notes, Note{
		Kind:      NoteMessageDispatched,
		MessageId: dispatch.Message.Id,
		Program:   programId,
		Outcome:   DispatchOutcome{NoExecution: true},
	})
	notes = append(notes, Note{Kind: NoteMessageConsumed, MessageId: dispatch.Message.Id})
	return notes
}
