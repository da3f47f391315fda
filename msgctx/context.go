// Package msgctx implements the message context (C5): the state an
// executing dispatch accumulates as it builds outgoing messages and a
// reply. It owns the nonce generator, the outgoing-messages vector bounded
// by an outgoing-count and outgoing-bytes limit, the reply slot, and
// create_program candidate bookkeeping.
//
// Mirroring gear-core's MessageContext (core/src/message.rs), every
// mutation here is purely in-memory and observable only once the executor
// calls Drain at the end of a dispatch -- the context never talks to a
// storage driver directly.
package msgctx

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/gear-tech/gear-core-go/gas"
	"github.com/gear-tech/gear-core-go/hostcall"
	"github.com/gear-tech/gear-core-go/ids"
	"github.com/gear-tech/gear-core-go/types"
)

// formationStatus mirrors the original FormationStatus enum: a handle
// obtained from SendInit is NotFormed until Commit, after which push/commit
// on it is LateAccess.
type formationStatus uint8

const (
	notFormed formationStatus = iota
	formed
)

// outgoingEntry is one slot in the outgoing-messages vector, addressed by
// its index (the "handle" the guest receives from SendInit).
type outgoingEntry struct {
	id          ids.MessageId
	status      formationStatus
	destination ids.ActorId
	payload     []byte
	value       types.Value
	delay       types.BlockNumber
	gasLimit    *types.Gas
	reservation *ids.ReservationId
}

// replySlot is the single in-progress/finalized reply a dispatch may build.
// Reply() creates it (DuplicateReply if it already exists); ReplyPush
// requires it to already exist (NoReplyFound otherwise), matching
// push_reply in the original source; ReplyPushInput/ReplyCommit may create
// it themselves since they have no direct original-source precedent and
// must support the one-shot reply_input call built from them.
type replySlot struct {
	id          ids.MessageId
	payload     []byte
	value       types.Value
	gasLimit    *types.Gas
	reservation *ids.ReservationId
}

// ProgramCandidate is one create_program invocation's outcome, reported
// separately from the generated init dispatch so the journal builder can
// emit a single StoreNewPrograms note grouping every candidate sharing a
// code id.
type ProgramCandidate struct {
	CandidateId ids.ActorId
	InitMessage ids.MessageId
	Salt        []byte
}

// GeneratedDispatch is one outgoing effect Drain reports to the executor:
// either a plain send, a reply, or a create_program init dispatch.
type GeneratedDispatch struct {
	Message     types.OutgoingMessage
	Delay       types.BlockNumber
	Reservation *ids.ReservationId
}

// Settings prices the fees §4.5 charges against the caller's gas before an
// outgoing effect is admitted, and bounds outgoing count/bytes. Callers
// build this from a gas.Schedule via FeesFromSchedule.
type Settings struct {
	OutgoingLimit      uint32
	OutgoingBytesLimit uint64
	SendingFee         uint64
	ScheduledSendingFee uint64
	ReservationFee     uint64
}

// FeesFromSchedule derives Settings from a Schedule's limits and db-cost
// derived fees.
func FeesFromSchedule(s gas.Schedule) Settings {
	return Settings{
		OutgoingLimit:       s.Limits.OutgoingLimit,
		OutgoingBytesLimit:  s.Limits.OutgoingBytesLimit,
		SendingFee:          s.SendingFee(),
		ScheduledSendingFee: s.ScheduledSendingFee(),
		ReservationFee:      s.ReservationFee(),
	}
}

// ReservationLookup reports whether a reservation id is currently valid for
// the executing program, so ReservationSend/ReservationReply can reject an
// unknown id with ErrReservationNotFound before admitting the effect.
type ReservationLookup interface {
	HasReservation(ids.ReservationId) bool
}

// Context is the per-dispatch message-building state described in spec
// §4.5. A fresh Context is constructed per execution and consumed exactly
// once via Drain.
type Context struct {
	dispatch  types.IncomingDispatch
	programId ids.ActorId
	settings  Settings
	counter   *gas.Counter
	reserves  ReservationLookup

	nonce uint64

	outgoing      []outgoingEntry
	outgoingBytes uint64
	reply         *replySlot

	candidates []ProgramCandidate
}

// New constructs a Context for one dispatch execution.
func New(dispatch types.IncomingDispatch, programId ids.ActorId, settings Settings, counter *gas.Counter, reserves ReservationLookup) *Context {
	return &Context{
		dispatch:  dispatch,
		programId: programId,
		settings:  settings,
		counter:   counter,
		reserves:  reserves,
	}
}

// nextId derives the next outgoing message id deterministically from the
// incoming dispatch's own id and a strictly increasing nonce, the same way
// gear-core's MessageIdGenerator chains off the current message.
func (c *Context) nextId() ids.MessageId {
	origin := c.dispatch.Message.Id
	var buf [40]byte
	copy(buf[:32], origin[:])
	binary.BigEndian.PutUint64(buf[32:], c.nonce)
	c.nonce++
	sum := blake2b.Sum256(buf[:])
	return ids.MessageId(sum)
}

// chargeSendingFee debits the fee for admitting one outgoing effect,
// selecting the scheduled (delayed) rate when delay > 0. A charge the
// block's allowance cannot cover is reported distinctly from one the
// caller's own gas limit cannot cover, so the executor can requeue the
// dispatch instead of faulting it.
func (c *Context) chargeSendingFee(delay types.BlockNumber) error {
	fee := c.settings.SendingFee
	if delay > 0 {
		fee = c.settings.ScheduledSendingFee
	}
	switch c.counter.Charge(fee) {
	case gas.NotEnoughGas:
		return hostcall.ErrGasLimitExceeded
	case gas.NotEnoughAllowance:
		return hostcall.ErrGasAllowanceExceeded
	}
	return nil
}

// admit validates and accounts for a newly formed outgoing message's
// payload length against the outgoing bytes limit. It must be called
// exactly once per message as it becomes Formed. The outgoing count limit
// is checked by each caller before a slot is taken (by SendInit for a
// multi-part handle), since a committed handle already occupies its slot.
func (c *Context) admit(payloadLen int) error {
	if c.outgoingBytes+uint64(payloadLen) > c.settings.OutgoingBytesLimit {
		return hostcall.ErrLimitExceeded
	}
	c.outgoingBytes += uint64(payloadLen)
	return nil
}

// Send is the one-shot outgoing-message style: builds and immediately
// forms a complete message.
func (c *Context) Send(packet types.OutgoingMessage, gasLimit *types.Gas) (ids.MessageId, error) {
	if uint32(len(c.outgoing)) >= c.settings.OutgoingLimit {
		return ids.MessageId{}, hostcall.ErrLimitExceeded
	}
	if err := c.chargeSendingFee(packet.Delay); err != nil {
		return ids.MessageId{}, err
	}
	if err := c.admit(packet.Payload.Len()); err != nil {
		return ids.MessageId{}, err
	}
	mid := c.nextId()
	c.outgoing = append(c.outgoing, outgoingEntry{
		id:          mid,
		status:      formed,
		destination: packet.Destination,
		payload:     packet.Payload.Bytes(),
		value:       packet.Value,
		delay:       packet.Delay,
		gasLimit:    gasLimit,
	})
	return mid, nil
}

// SendInit opens a new NotFormed handle for the multi-part send style.
func (c *Context) SendInit() (uint32, error) {
	if uint32(len(c.outgoing)) >= c.settings.OutgoingLimit {
		return 0, hostcall.ErrLimitExceeded
	}
	handle := uint32(len(c.outgoing))
	c.outgoing = append(c.outgoing, outgoingEntry{status: notFormed})
	return handle, nil
}

func (c *Context) entry(handle uint32) (*outgoingEntry, error) {
	if int(handle) >= len(c.outgoing) {
		return nil, hostcall.ErrOutOfBounds
	}
	return &c.outgoing[handle], nil
}

// SendPush appends payload to a NotFormed handle.
func (c *Context) SendPush(handle uint32, payload []byte) error {
	e, err := c.entry(handle)
	if err != nil {
		return err
	}
	if e.status != notFormed {
		return hostcall.ErrLateAccess
	}
	e.payload = append(e.payload, payload...)
	return nil
}

// SendPushInput appends an input-buffer range to a NotFormed handle: it
// takes bytes [offset, offset+length) of the incoming dispatch's payload,
// failing with OutOfBounds if the range runs past it, and appends them
// with SendPush's semantics.
func (c *Context) SendPushInput(handle uint32, offset, length uint32) error {
	buf := c.dispatch.Message.Payload.Bytes()
	if uint64(offset)+uint64(length) > uint64(len(buf)) {
		return hostcall.ErrOutOfBounds
	}
	return c.SendPush(handle, buf[offset:offset+length])
}

// SendCommit finalizes a handle into a Formed message ready for Drain.
func (c *Context) SendCommit(handle uint32, destination ids.ActorId, value types.Value, delay types.BlockNumber, gasLimit *types.Gas) (ids.MessageId, error) {
	e, err := c.entry(handle)
	if err != nil {
		return ids.MessageId{}, err
	}
	if e.status == formed {
		return ids.MessageId{}, hostcall.ErrLateAccess
	}
	if err := c.chargeSendingFee(delay); err != nil {
		return ids.MessageId{}, err
	}
	if err := c.admit(len(e.payload)); err != nil {
		return ids.MessageId{}, err
	}
	mid := c.nextId()
	e.id = mid
	e.status = formed
	e.destination = destination
	e.value = value
	e.delay = delay
	e.gasLimit = gasLimit
	return mid, nil
}

// Reply creates the reply slot with a full payload in one step, matching
// the original source's reply(): the id is assigned and returned
// immediately, and the slot stays appendable by ReplyPush afterwards.
func (c *Context) Reply(payload types.Payload, value types.Value, gasLimit *types.Gas) (ids.MessageId, error) {
	if c.reply != nil {
		return ids.MessageId{}, hostcall.ErrDuplicateReply
	}
	mid := c.nextId()
	c.reply = &replySlot{id: mid, payload: payload.Bytes(), value: value, gasLimit: gasLimit}
	return mid, nil
}

// ReplyPush appends to an already-existing reply slot; NoReplyFound if no
// reply* call has created one yet, exactly mirroring push_reply in
// core/src/message.rs.
func (c *Context) ReplyPush(payload []byte) error {
	if c.reply == nil {
		return hostcall.ErrNoReplyFound
	}
	c.reply.payload = append(c.reply.payload, payload...)
	return nil
}

// ReplyPushInput appends an input-buffer range to the reply slot, creating
// an empty slot first if one does not yet exist. Unlike ReplyPush it may
// auto-vivify: it has no direct original-source precedent and must serve
// as the first step of the one-shot reply_input call (push then commit).
func (c *Context) ReplyPushInput(offset, length uint32) error {
	buf := c.dispatch.Message.Payload.Bytes()
	if uint64(offset)+uint64(length) > uint64(len(buf)) {
		return hostcall.ErrOutOfBounds
	}
	if c.reply == nil {
		c.reply = &replySlot{id: c.nextId()}
	}
	c.reply.payload = append(c.reply.payload, buf[offset:offset+length]...)
	return nil
}

// ReplyCommit finalizes the reply slot with the effective value and gas
// limit, creating an empty-payload slot first if nothing was pushed yet --
// the standard "push*, then commit" guest usage pattern.
func (c *Context) ReplyCommit(value types.Value, gasLimit *types.Gas) (ids.MessageId, error) {
	if c.reply == nil {
		c.reply = &replySlot{id: c.nextId()}
	}
	c.reply.value = value
	c.reply.gasLimit = gasLimit
	return c.reply.id, nil
}

// ReplyTo returns the message id and exit code this dispatch is itself
// replying to; only meaningful for a Reply-kind dispatch.
func (c *Context) ReplyTo() (ids.MessageId, int32, error) {
	rd := c.dispatch.Message.Reply
	if rd == nil {
		return ids.MessageId{}, 0, hostcall.ErrNoReplyFound
	}
	return rd.ReplyToId, rd.ReplyCode, nil
}

// SignalFrom returns the message id this dispatch signals about; only
// meaningful for a Signal-kind dispatch.
func (c *Context) SignalFrom() (ids.MessageId, error) {
	if c.dispatch.Kind != types.Signal {
		return ids.MessageId{}, hostcall.ErrNoReplyFound
	}
	return c.dispatch.Message.Id, nil
}

// ReservationSend is the one-shot send style billed against an existing
// reservation instead of the caller's own gas.
func (c *Context) ReservationSend(reservation ids.ReservationId, packet types.OutgoingMessage, delay types.BlockNumber) (ids.MessageId, error) {
	if c.reserves != nil && !c.reserves.HasReservation(reservation) {
		return ids.MessageId{}, hostcall.ErrReservationNotFound
	}
	if uint32(len(c.outgoing)) >= c.settings.OutgoingLimit {
		return ids.MessageId{}, hostcall.ErrLimitExceeded
	}
	if err := c.admit(packet.Payload.Len()); err != nil {
		return ids.MessageId{}, err
	}
	mid := c.nextId()
	c.outgoing = append(c.outgoing, outgoingEntry{
		id:          mid,
		status:      formed,
		destination: packet.Destination,
		payload:     packet.Payload.Bytes(),
		value:       packet.Value,
		delay:       delay,
		reservation: &reservation,
	})
	return mid, nil
}

// ReservationReply is the one-shot reply style billed against an existing
// reservation.
func (c *Context) ReservationReply(reservation ids.ReservationId, payload types.Payload, value types.Value) (ids.MessageId, error) {
	if c.reserves != nil && !c.reserves.HasReservation(reservation) {
		return ids.MessageId{}, hostcall.ErrReservationNotFound
	}
	if c.reply != nil {
		return ids.MessageId{}, hostcall.ErrDuplicateReply
	}
	mid := c.nextId()
	c.reply = &replySlot{id: mid, payload: payload.Bytes(), value: value, reservation: &reservation}
	return mid, nil
}

// CreateProgram derives the candidate's deterministic address from
// (codeId, salt) the way gear-core computes a program id, records the
// candidate, and enqueues its Init dispatch as a generated outgoing
// message.
func (c *Context) CreateProgram(codeId ids.CodeId, salt, payload []byte, value types.Value, delay types.BlockNumber) (ids.ActorId, ids.MessageId, error) {
	if uint32(len(c.outgoing)) >= c.settings.OutgoingLimit {
		return ids.ActorId{}, ids.MessageId{}, hostcall.ErrLimitExceeded
	}
	if err := c.chargeSendingFee(delay); err != nil {
		return ids.ActorId{}, ids.MessageId{}, err
	}
	if err := c.admit(len(payload)); err != nil {
		return ids.ActorId{}, ids.MessageId{}, err
	}

	buf := make([]byte, 0, len(codeId)+len(salt))
	buf = append(buf, codeId[:]...)
	buf = append(buf, salt...)
	sum := blake2b.Sum256(buf)
	candidateId := ids.ActorId(sum)

	mid := c.nextId()
	c.outgoing = append(c.outgoing, outgoingEntry{
		id:          mid,
		status:      formed,
		destination: candidateId,
		payload:     payload,
		value:       value,
		delay:       delay,
	})
	c.candidates = append(c.candidates, ProgramCandidate{CandidateId: candidateId, InitMessage: mid, Salt: append([]byte(nil), salt...)})
	return candidateId, mid, nil
}

// Size returns the current (incoming) message's payload length.
func (c *Context) Size() uint32 { return uint32(c.dispatch.Message.Payload.Len()) }

// Read returns the current message's payload bytes.
func (c *Context) Read() []byte { return c.dispatch.Message.Payload.Bytes() }

// Source returns the current message's source actor.
func (c *Context) Source() ids.ActorId { return c.dispatch.Message.Source }

// Value returns the current message's attached value.
func (c *Context) Value() types.Value { return c.dispatch.Message.Value }

// ReplySent reports whether an explicit reply was built this execution,
// i.e. whether the executor must suppress the automatic success reply.
func (c *Context) ReplySent() bool { return c.reply != nil }

// Candidates returns the create_program candidates recorded this
// execution, grouped implicitly by the caller (they all share no code id
// field here since CreateProgram's signature takes it per-call; the
// executor groups by the code id it passed in).
func (c *Context) Candidates() []ProgramCandidate {
	return append([]ProgramCandidate(nil), c.candidates...)
}

// SynthesizeAutoReply builds the implicit success reply the executor sends
// on behalf of a Handle/Init dispatch that never called reply* itself: an
// empty payload, zero value, reply code 0. Callers must only invoke this
// after confirming ReplySent() is false and the dispatch kind qualifies
// (spec §4.5/§4.8's auto-reply rule); it consumes a nonce slot exactly like
// an explicit reply would.
func (c *Context) SynthesizeAutoReply() GeneratedDispatch {
	mid := c.nextId()
	payload, _ := types.NewPayload(nil)
	return GeneratedDispatch{
		Message: types.OutgoingMessage{
			Message: types.Message{
				Id:          mid,
				Destination: c.dispatch.Message.Source,
				Payload:     payload,
				Value:       types.NewValue(0),
				Reply: &types.ReplyDetails{
					ReplyToId: c.dispatch.Message.Id,
					ReplyCode: 0,
				},
			},
			Kind: types.Reply,
		},
	}
}

// Drain consumes the Context, returning every Formed outgoing message (in
// commit order) and the reply, if any -- mirroring
// core/src/message.rs::drain. A handle left NotFormed is silently dropped,
// matching the original's behaviour of only returning Formed entries.
func (c *Context) Drain() ([]GeneratedDispatch, *GeneratedDispatch) {
	out := make([]GeneratedDispatch, 0, len(c.outgoing))
	for _, e := range c.outgoing {
		if e.status != formed {
			continue
		}
		payload, _ := types.NewPayload(e.payload)
		out = append(out, GeneratedDispatch{
			Message: types.OutgoingMessage{
				Message: types.Message{
					Id:          e.id,
					Destination: e.destination,
					Payload:     payload,
					Value:       e.value,
				},
				Kind:  types.Handle,
				Delay: e.delay,
			},
			Delay:       e.delay,
			Reservation: e.reservation,
		})
	}

	var reply *GeneratedDispatch
	if c.reply != nil {
		payload, _ := types.NewPayload(c.reply.payload)
		reply = &GeneratedDispatch{
			Message: types.OutgoingMessage{
				Message: types.Message{
					Id:      c.reply.id,
					Destination: c.dispatch.Message.Source,
					Payload: payload,
					Value:   c.reply.value,
					Reply: &types.ReplyDetails{
						ReplyToId: c.dispatch.Message.Id,
						ReplyCode: 0,
					},
				},
				Kind: types.Reply,
			},
			Reservation: c.reply.reservation,
		}
	}
	return out, reply
}
