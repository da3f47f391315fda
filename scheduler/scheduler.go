// Package scheduler implements the scheduler hooks (C9): the block-level
// driver's view of wait/wake/delay, the dispatch stash, the mailbox, the
// waitlist and the task pool. None of these collections are owned here --
// Driver only translates a journal note or a host-call outcome into the
// well-typed effect the storage driver described in spec §6 must apply,
// and computes the timing rules (wait_up_to's expiry formula, delayed
// wake scheduling) that those effects depend on.
package scheduler

import (
	"github.com/gear-tech/gear-core-go/hostcall"
	"github.com/gear-tech/gear-core-go/ids"
	"github.com/gear-tech/gear-core-go/types"
)

// Storage is the subset of the external storage driver (spec §6) the
// scheduler hooks touch: the mailbox, waitlist, dispatch stash and task
// pool double maps, plus message-queue enqueue.
type Storage interface {
	Enqueue(dispatch types.StoredDispatch, atBlock types.BlockNumber)
	WaitlistPut(key types.WaitlistKey, entry types.WaitlistEntry)
	WaitlistTake(key types.WaitlistKey) (types.WaitlistEntry, bool)
	MailboxPut(key types.MailboxKey, entry types.MailboxEntry)
	MailboxTake(key types.MailboxKey) (types.MailboxEntry, bool)
	StashPut(key types.StashKey, entry types.StashEntry)
	StashTake(key types.StashKey) (types.StashEntry, bool)
	ScheduleTask(atBlock types.BlockNumber, task types.Task)
}

// Driver computes scheduling effects and applies them to a Storage. It
// carries the current block height and the reserveFor block cushion
// added to waitlist and mailbox removal tasks.
type Driver struct {
	storage     Storage
	blockHeight types.BlockNumber
	// reserveFor is the number of extra blocks past a waitlisted or
	// mailboxed entry's Interval.Finish at which its removal task is
	// scheduled; Interval.Finish itself is left at the nominal expiry.
	// Stashed dispatches do not use it. Mirrors the "ReserveForFee"
	// cushion gear-core prices into its own Schedule.
	reserveFor types.BlockNumber
}

// NewDriver constructs a Driver bound to storage at the given block
// height, scheduling waitlist and mailbox removal tasks reserveFor blocks
// after the entry's expiry.
func NewDriver(storage Storage, blockHeight, reserveFor types.BlockNumber) *Driver {
	return &Driver{storage: storage, blockHeight: blockHeight, reserveFor: reserveFor}
}

// WaitUpToExpiry implements the wait_up_to timing rule from spec §4.9:
// expiry = min(user_duration, remaining_gas / cost_per_block), and
// reports whether the full user-requested duration was honoured (i.e.
// whether the outcome should be WaitUpToFull rather than WaitUpTo).
func WaitUpToExpiry(userDuration uint32, remainingGas types.Gas, costPerBlock uint64) (expiry uint32, full bool) {
	if costPerBlock == 0 {
		return userDuration, true
	}
	affordable := remainingGas / costPerBlock
	if affordable >= uint64(userDuration) {
		return userDuration, true
	}
	if affordable > uint64(^uint32(0)) {
		affordable = uint64(^uint32(0))
	}
	return uint32(affordable), false
}

// Wait suspends dispatch into the waitlist under (program, msg_id),
// expiring at blockHeight+duration (a forever wait uses hasDuration=false
// and never schedules an eviction task).
func (d *Driver) Wait(program ids.ActorId, dispatch types.StoredDispatch, duration uint32, hasDuration bool) {
	key := types.WaitlistKey{Program: program, Msg: dispatch.Message.Id}
	finish := d.blockHeight
	if hasDuration {
		finish = d.blockHeight + duration
	}
	d.storage.WaitlistPut(key, types.WaitlistEntry{
		Message:  types.WaitedMessage{Dispatch: dispatch},
		Interval: types.Interval{Start: d.blockHeight, Finish: finish},
	})
	if hasDuration {
		d.storage.ScheduleTask(finish+d.reserveFor, types.Task{
			Kind:    types.TaskRemoveFromWaitlist,
			Program: program,
			Msg:     dispatch.Message.Id,
		})
	}
}

// Wake removes a message from the waitlist and re-enqueues it, either
// immediately (delay == 0) or by scheduling a TaskWakeMessage task for
// current_block + delay, matching spec §4.9's wake timing rule.
func (d *Driver) Wake(program ids.ActorId, mid ids.MessageId, delay types.BlockNumber) {
	if delay == 0 {
		entry, ok := d.storage.WaitlistTake(types.WaitlistKey{Program: program, Msg: mid})
		if !ok {
			return
		}
		d.storage.Enqueue(entry.Message.Dispatch, d.blockHeight)
		return
	}
	d.storage.ScheduleTask(d.blockHeight+delay, types.Task{
		Kind:    types.TaskWakeMessage,
		Program: program,
		Msg:     mid,
	})
}

// FireWakeTask handles the TaskWakeMessage task a delayed Wake schedules
// (one naming both Program and Msg): it performs the
// waitlist-take-then-enqueue step that a zero-delay Wake does
// immediately, for a task that was scheduled to fire later.
func (d *Driver) FireWakeTask(program ids.ActorId, mid ids.MessageId) {
	entry, ok := d.storage.WaitlistTake(types.WaitlistKey{Program: program, Msg: mid})
	if !ok {
		return
	}
	d.storage.Enqueue(entry.Message.Dispatch, d.blockHeight)
}

// Stash delays a dispatch's first send: it is held in the dispatch stash
// until current_block + delay, then enqueued by FireStashTask. The task it
// schedules for that block is a TaskWakeMessage carrying only Msg, with
// Program left zero.
func (d *Driver) Stash(dispatch types.StoredDispatch, delay types.BlockNumber) {
	finish := d.blockHeight + delay
	d.storage.StashPut(dispatch.Message.Id, types.StashEntry{
		Dispatch: types.DelayedDispatch{Dispatch: dispatch},
		Interval: types.Interval{Start: d.blockHeight, Finish: finish},
	})
	d.storage.ScheduleTask(finish, types.Task{Kind: types.TaskWakeMessage, Msg: dispatch.Message.Id})
}

// FireStashTask enqueues a stashed dispatch whose delay has elapsed.
func (d *Driver) FireStashTask(mid ids.MessageId) {
	entry, ok := d.storage.StashTake(mid)
	if !ok {
		return
	}
	d.storage.Enqueue(entry.Dispatch.Dispatch, d.blockHeight)
}

// MailboxDeliver puts a user-addressed message in the mailbox with a
// bounded lifetime, scheduling its eviction task.
func (d *Driver) MailboxDeliver(user ids.ActorId, msg types.UserStoredMessage, lifetime types.BlockNumber) {
	finish := d.blockHeight + lifetime
	d.storage.MailboxPut(types.MailboxKey{User: user, Msg: msg.Message.Id}, types.MailboxEntry{
		Message:  msg,
		Interval: types.Interval{Start: d.blockHeight, Finish: finish},
	})
	d.storage.ScheduleTask(finish+d.reserveFor, types.Task{
		Kind: types.TaskRemoveFromMailbox,
		User: user,
		Msg:  msg.Message.Id,
	})
}

// MailboxClaim removes and returns a mailboxed message a user claimed.
func (d *Driver) MailboxClaim(user ids.ActorId, mid ids.MessageId) (types.UserStoredMessage, bool) {
	entry, ok := d.storage.MailboxTake(types.MailboxKey{User: user, Msg: mid})
	if !ok {
		return types.UserStoredMessage{}, false
	}
	return entry.Message, true
}

// ApplyWait translates a hostcall.Outcome carrying TerminationWait into
// the Driver's Wait effect, resolving WaitUpTo's timing against the
// dispatch's remaining gas and returning the WaitKind the journal should
// record (WaitUpTo is promoted to WaitUpToFull when the full request was
// honoured).
func ApplyWait(d *Driver, program ids.ActorId, dispatch types.StoredDispatch, o hostcall.Outcome, remainingGas types.Gas, costPerBlock uint64) (effectiveKind hostcall.WaitKind, effectiveDuration uint32, hasDuration bool) {
	duration, has := o.WaitDuration()
	kind := o.WaitKind()
	if kind == hostcall.WaitUpTo && has {
		expiry, full := WaitUpToExpiry(duration, remainingGas, costPerBlock)
		d.Wait(program, dispatch, expiry, true)
		if full {
			return hostcall.WaitUpToFull, expiry, true
		}
		return hostcall.WaitUpTo, expiry, true
	}
	d.Wait(program, dispatch, duration, has)
	return kind, duration, has
}
