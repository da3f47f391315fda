package hostcall

import (
	"github.com/gear-tech/gear-core-go/ids"
	"github.com/gear-tech/gear-core-go/types"
)

// terminatingError wraps an Outcome so Table.Invoke's generic error path
// can carry it out of a Call without a dedicated return channel: control
// calls are the only handlers that end execution rather than returning a
// value to the guest.
type terminatingError struct{ outcome Outcome }

func (e *terminatingError) Error() string { return "hostcall: " + e.outcome.String() }

// AsTerminating extracts the Outcome carried by a terminatingError, for
// wasmenv to recognize after a control call returns one.
func AsTerminating(err error) (Outcome, bool) {
	te, ok := err.(*terminatingError)
	if !ok {
		return Outcome{}, false
	}
	return te.outcome, true
}

// BindControl registers wait/wait_for/wait_up_to/wake/leave/exit/panic/
// oom_panic/debug. The five call kinds that end the dispatch (wait
// variants, leave, exit, panic, oom_panic) return a *terminatingError
// rather than a value; wasmenv must check AsTerminating on every error
// from a control call before treating it as a fallible ErrorRecord.
func BindControl(t *Table) {
	t.Bind(NameWait, func(ext Externalities, args Args) (any, error) {
		o := ext.Control().Wait(WaitIndefinite, 0, false)
		return nil, &terminatingError{o}
	})
	t.Bind(NameWaitFor, func(ext Externalities, args Args) (any, error) {
		o := ext.Control().Wait(WaitFor, args[ArgDuration].(uint32), true)
		return nil, &terminatingError{o}
	})
	t.Bind(NameWaitUpTo, func(ext Externalities, args Args) (any, error) {
		o := ext.Control().Wait(WaitUpTo, args[ArgDuration].(uint32), true)
		return nil, &terminatingError{o}
	})
	t.Bind(NameWake, func(ext Externalities, args Args) (any, error) {
		return nil, ext.Control().Wake(args[ArgMessageId].(ids.MessageId), args[ArgDelay].(types.BlockNumber))
	})
	t.Bind(NameLeave, func(ext Externalities, args Args) (any, error) {
		return nil, &terminatingError{ext.Control().Leave()}
	})
	t.Bind(NameExit, func(ext Externalities, args Args) (any, error) {
		return nil, &terminatingError{ext.Control().Exit(args[ArgInheritor].(ids.ActorId))}
	})
	t.Bind(NamePanic, func(ext Externalities, args Args) (any, error) {
		return nil, &terminatingError{Panic(args[ArgMessage].(string))}
	})
	t.Bind(NameOomPanic, func(ext Externalities, args Args) (any, error) {
		return nil, &terminatingError{Trap(TrapProgramAllocOutOfBounds)}
	})
	t.Bind(NameDebug, func(ext Externalities, args Args) (any, error) {
		ext.Control().Debug(args[ArgMessage].(string))
		return nil, nil
	})
}

// BindDefaults wires every stock handler group into t: messaging,
// metadata, memory, reservations, and control. Any Name configured
// forbidden on t is silently skipped by Bind, so it keeps serving
// Invoke's Trap(ForbiddenFunction) stub regardless. The executor (C7)
// calls this before Table.Validate.
func BindDefaults(t *Table) {
	BindMessaging(t)
	BindMetadata(t)
	BindMemory(t)
	BindReservations(t)
	BindControl(t)
}
