package types

import "github.com/gear-tech/gear-core-go/ids"

// DispatchKind distinguishes why an actor is being invoked.
type DispatchKind uint8

const (
	// Init runs a program's entry point for the first time.
	Init DispatchKind = iota
	// Handle runs a program's regular message handler.
	Handle
	// Reply runs a program's reply handler for a previously sent message.
	Reply
	// Signal runs a program's signal handler in response to a system event.
	Signal
)

// String renders the kind for logging and test failure messages.
func (k DispatchKind) String() string {
	switch k {
	case Init:
		return "init"
	case Handle:
		return "handle"
	case Reply:
		return "reply"
	case Signal:
		return "signal"
	default:
		return "unknown"
	}
}

// ReplyDetails carries the message being replied to and the numeric status
// code the reply communicates back to the sender.
type ReplyDetails struct {
	ReplyToId ids.MessageId
	ReplyCode int32
}

// Message is the wire-level envelope shared by every message variant in the
// system: outgoing, reply, stored and mailboxed messages all embed it.
type Message struct {
	Id          ids.MessageId
	Source      ids.ActorId
	Destination ids.ActorId
	Payload     Payload
	Value       Value
	Reply       *ReplyDetails // nil unless this message is itself a reply
}

// ExecutionContext carries state a program accumulated in a previous
// execution that suspended itself (via wait/wait_for/wait_up_to) and is now
// resuming. A dispatch carrying a non-nil context has already had its Value
// debited against the source's balance in that prior execution, so the
// journal builder must not emit a second SendValue note for it.
type ExecutionContext struct {
	// OutgoingBytes and ReservedGas hold the outgoing-bytes count and the
	// per-reservation gas amounts captured when the program suspended.
	OutgoingBytes uint64
	ReservedGas   map[ids.ReservationId]Gas
}

// IncomingDispatch is a Message plus the reason the actor is running and,
// for resumed executions, the ExecutionContext from the prior run.
type IncomingDispatch struct {
	Kind    DispatchKind
	Message Message
	Context *ExecutionContext
}

// Validate enforces the invariants from the data model: a reply dispatch
// must carry exactly one (reply_to_id, code) pair, and a signal dispatch
// must never carry value.
func (d IncomingDispatch) Validate() error {
	switch d.Kind {
	case Reply:
		if d.Message.Reply == nil {
			return errReplyMissingDetails
		}
	case Signal:
		if d.Message.Reply != nil {
			return errSignalHasReply
		}
		if !d.Message.Value.IsZero() {
			return errSignalHasValue
		}
	}
	return nil
}

// OutgoingMessage is a message an actor produced during execution, destined
// for another actor's mailbox or the block-level message queue.
type OutgoingMessage struct {
	Message
	Kind  DispatchKind // Handle for a plain send, Reply for a reply-style send
	Delay BlockNumber  // 0 means "enqueue immediately"
}

// ReplyMessage is the specialised form of OutgoingMessage produced by the
// reply* family of host calls; it always carries ReplyDetails.
type ReplyMessage struct {
	Message
	Delay BlockNumber
}

// StoredDispatch is an IncomingDispatch that has been persisted to the
// block-level message queue, the dispatch stash, or the waitlist.
type StoredDispatch struct {
	IncomingDispatch
}

// UserStoredMessage is a Message addressed to a user (rather than a
// program), persisted in the mailbox pending a user's claim or timeout.
type UserStoredMessage struct {
	Message
}
