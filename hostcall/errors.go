package hostcall

import "errors"

// Sentinel errors returned by Externalities methods. A call's template maps
// each of these to either a fallible error record or a terminating Outcome;
// see Table.Invoke.
var (
	// ErrOutOfBounds is returned for an out-of-range handle or memory range.
	ErrOutOfBounds = errors.New("hostcall: out of bounds")
	// ErrLateAccess is returned by a messaging call applied to an
	// already-Formed handle (push/commit misuse).
	ErrLateAccess = errors.New("hostcall: late access to formed handle")
	// ErrLimitExceeded is returned when an outgoing-message count or byte
	// budget would be exceeded.
	ErrLimitExceeded = errors.New("hostcall: outgoing limit exceeded")
	// ErrDuplicateReply is returned by a second reply* call in one dispatch.
	ErrDuplicateReply = errors.New("hostcall: reply already sent")
	// ErrNoReplyFound is returned by reply_push without a preceding reply*.
	ErrNoReplyFound = errors.New("hostcall: no reply in progress")
	// ErrNotEnoughValue is returned when a message's attached value exceeds
	// the caller's available balance.
	ErrNotEnoughValue = errors.New("hostcall: not enough value available")
	// ErrReservationNotFound is returned by unreserve_gas/reservation_send
	// for an unknown or already-consumed reservation id.
	ErrReservationNotFound = errors.New("hostcall: reservation not found")
	// ErrTooManyReservations is returned when reserve_gas would exceed the
	// schedule's MaxReservations limit.
	ErrTooManyReservations = errors.New("hostcall: too many reservations")
	// ErrGasLimitExceeded signals an unrecoverable out-of-gas condition;
	// Table.Invoke maps it to Trap(GasLimitExceeded) rather than a fallible
	// error record.
	ErrGasLimitExceeded = errors.New("hostcall: gas limit exceeded")
	// ErrGasAllowanceExceeded signals the block's execution allowance, not
	// the dispatch's own gas limit, ran out. Unlike ErrGasLimitExceeded this
	// is never the actor's fault: Table.Invoke maps it to
	// GasAllowanceExceeded() so the dispatch is requeued instead of trapped.
	ErrGasAllowanceExceeded = errors.New("hostcall: gas allowance exceeded")

	// errUnknownSyscall names the condition of a call to a name that was
	// never bound. Table.Invoke does not return it: it reports an unbound
	// name as Trap(UnrecoverableExt).
	errUnknownSyscall = errors.New("hostcall: unbound syscall")
)

// ErrorRecord is the structured error value a fallible call writes back to
// the guest's error-output pointer on a recoverable failure.
type ErrorRecord struct {
	// Code is a small stable discriminant the guest's runtime bindings
	// decode; 0 means "no error".
	Code uint32
	// Message is a human-readable detail, truncated to fit the guest's
	// buffer by the caller.
	Message string
}

// errorCode maps a recoverable externalities error to the stable code a
// fallible call writes back to the guest.
func errorCode(err error) uint32 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrOutOfBounds):
		return 1
	case errors.Is(err, ErrLateAccess):
		return 2
	case errors.Is(err, ErrLimitExceeded):
		return 3
	case errors.Is(err, ErrDuplicateReply):
		return 4
	case errors.Is(err, ErrNoReplyFound):
		return 5
	case errors.Is(err, ErrNotEnoughValue):
		return 6
	case errors.Is(err, ErrReservationNotFound):
		return 7
	case errors.Is(err, ErrTooManyReservations):
		return 8
	default:
		return 255
	}
}
