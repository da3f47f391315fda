// Package hostcall implements the host-call layer (C4): the flat set of
// functions exported to a guest program under the module name "env". Every
// call follows the fixed template described in the package's Table doc:
// charge its schedule cost, register memory accesses, read guest input,
// invoke the externalities bundle, write back any error record, and map
// externality errors to a TerminationReason.
//
// The externalities a host call needs are grouped the way
// ElrondNetwork's arwen-wasm-vm groups its VMHost sub-contexts
// (Blockchain/Runtime/Metering/Storage/...): instead of one god-interface,
// Externalities composes narrow capability interfaces so a call only
// depends on the slice of the runtime it actually touches.
package hostcall

import (
	"fmt"

	"github.com/gear-tech/gear-core-go/ids"
)

// WaitKind distinguishes the four ways a dispatch can suspend.
type WaitKind uint8

const (
	WaitIndefinite WaitKind = iota
	WaitFor
	WaitUpTo
	WaitUpToFull
)

func (k WaitKind) String() string {
	switch k {
	case WaitIndefinite:
		return "Wait"
	case WaitFor:
		return "WaitFor"
	case WaitUpTo:
		return "WaitUpTo"
	case WaitUpToFull:
		return "WaitUpToFull"
	default:
		return "Unknown"
	}
}

// TrapKind enumerates the closed set of reasons a guest's execution can
// abort with a trap.
type TrapKind uint8

const (
	TrapUnknown TrapKind = iota
	TrapPanic
	TrapGasLimitExceeded
	TrapProgramAllocOutOfBounds
	TrapForbiddenFunction
	TrapMessageLimitExceeded
	TrapUnrecoverableExt
)

func (k TrapKind) String() string {
	switch k {
	case TrapPanic:
		return "Panic"
	case TrapGasLimitExceeded:
		return "GasLimitExceeded"
	case TrapProgramAllocOutOfBounds:
		return "ProgramAllocOutOfBounds"
	case TrapForbiddenFunction:
		return "ForbiddenFunction"
	case TrapMessageLimitExceeded:
		return "MessageLimitExceeded"
	case TrapUnrecoverableExt:
		return "UnrecoverableExt"
	default:
		return "Unknown"
	}
}

// TerminationKind discriminates the closed sum described in spec §4.4.
type TerminationKind uint8

const (
	TerminationSuccess TerminationKind = iota
	TerminationWait
	TerminationExit
	TerminationLeave
	TerminationGasAllowanceExceeded
	TerminationTrap
)

// outcome is the unexported representation backing Outcome below; only the
// fields matching kind are meaningful.
type outcome struct {
	kind TerminationKind

	waitKind     WaitKind
	waitDuration uint32
	hasDuration  bool

	inheritor ids.ActorId

	trap     TrapKind
	panicMsg string
}

// Outcome is the concrete termination-reason value produced by the
// environment (C6) after running an entry point.
type Outcome struct {
	inner outcome
}

func Success() Outcome { return Outcome{outcome{kind: TerminationSuccess}} }

func Leave() Outcome { return Outcome{outcome{kind: TerminationLeave}} }

func GasAllowanceExceeded() Outcome { return Outcome{outcome{kind: TerminationGasAllowanceExceeded}} }

func Exit(inheritor ids.ActorId) Outcome {
	return Outcome{outcome{kind: TerminationExit, inheritor: inheritor}}
}

func Wait(kind WaitKind, duration uint32, hasDuration bool) Outcome {
	return Outcome{outcome{kind: TerminationWait, waitKind: kind, waitDuration: duration, hasDuration: hasDuration}}
}

func Trap(kind TrapKind) Outcome { return Outcome{outcome{kind: TerminationTrap, trap: kind}} }

func Panic(msg string) Outcome {
	return Outcome{outcome{kind: TerminationTrap, trap: TrapPanic, panicMsg: msg}}
}

func (o Outcome) Kind() TerminationKind { return o.inner.kind }
func (o Outcome) WaitKind() WaitKind    { return o.inner.waitKind }
func (o Outcome) WaitDuration() (uint32, bool) {
	return o.inner.waitDuration, o.inner.hasDuration
}
func (o Outcome) Inheritor() ids.ActorId { return o.inner.inheritor }
func (o Outcome) TrapKind() TrapKind     { return o.inner.trap }
func (o Outcome) PanicMessage() string   { return o.inner.panicMsg }

func (o Outcome) String() string {
	switch o.inner.kind {
	case TerminationSuccess:
		return "Success"
	case TerminationLeave:
		return "Leave"
	case TerminationGasAllowanceExceeded:
		return "GasAllowanceExceeded"
	case TerminationExit:
		return fmt.Sprintf("Exit(%s)", o.inner.inheritor)
	case TerminationWait:
		return fmt.Sprintf("Wait(%s)", o.inner.waitKind)
	case TerminationTrap:
		if o.inner.trap == TrapPanic {
			return fmt.Sprintf("Trap(Panic(%q))", o.inner.panicMsg)
		}
		return fmt.Sprintf("Trap(%s)", o.inner.trap)
	default:
		return "Unknown"
	}
}
