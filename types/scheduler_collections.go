package types

import "github.com/gear-tech/gear-core-go/ids"

// Interval is the [Start, Finish) block range a bounded-lifetime entry
// (mailbox message, stashed dispatch, waitlisted message) is valid for.
// A task pool entry fires at or after Finish; see the task pool invariant
// that every task's firing block exceeds the block that scheduled it.
type Interval struct {
	Start  BlockNumber
	Finish BlockNumber
}

// MailboxKey addresses a single mailboxed message.
type MailboxKey struct {
	User ids.ActorId
	Msg  ids.MessageId
}

// MailboxEntry is one value in the mailbox double map.
type MailboxEntry struct {
	Message  UserStoredMessage
	Interval Interval
}

// StashKey addresses a single stashed (delayed) dispatch by message id.
type StashKey = ids.MessageId

// DelayedDispatch is a StoredDispatch that is waiting in the dispatch stash
// for its scheduled block to arrive.
type DelayedDispatch struct {
	Dispatch StoredDispatch
}

// StashEntry is one value in the dispatch stash map.
type StashEntry struct {
	Dispatch DelayedDispatch
	Interval Interval
}

// WaitlistKey addresses a waitlisted message by (program, message id).
type WaitlistKey struct {
	Program ids.ActorId
	Msg     ids.MessageId
}

// WaitedMessage is a StoredDispatch that a program suspended itself against
// via wait/wait_for/wait_up_to.
type WaitedMessage struct {
	Dispatch StoredDispatch
}

// WaitlistEntry is one value in the waitlist double map.
type WaitlistEntry struct {
	Message  WaitedMessage
	Interval Interval
}

// TaskKind enumerates the task pool's task variants.
type TaskKind uint8

const (
	TaskWakeMessage TaskKind = iota
	TaskRemoveFromMailbox
	TaskRemoveFromWaitlist
	TaskEvictProgram
)

// Task is one entry in a block's task set. Fields beyond Kind are
// interpreted according to Kind; unused fields are left zero.
type Task struct {
	Kind    TaskKind
	Program ids.ActorId
	User    ids.ActorId
	Msg     ids.MessageId
}
