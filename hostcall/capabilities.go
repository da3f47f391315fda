package hostcall

import (
	"github.com/gear-tech/gear-core-go/gas"
	"github.com/gear-tech/gear-core-go/ids"
	"github.com/gear-tech/gear-core-go/types"
)

// Externalities is the capability bundle a host call invokes, split into
// narrow sub-contexts the way arwen-wasm-vm's VMHost composes
// Blockchain/Runtime/Metering/Storage instead of exposing one god-object.
// A handler only takes the sub-interfaces it actually needs, so adding a
// capability never forces every existing handler to be recompiled against
// a wider surface.
type Externalities interface {
	Messaging() MessagingContext
	Blockchain() BlockchainContext
	Reservations() ReservationContext
	Control() ControlContext
	Gas() *gas.Counter
}

// MessagingContext is the C5 message context's view as seen by host calls:
// building and sending outgoing messages and replies.
type MessagingContext interface {
	Send(packet types.OutgoingMessage, gasLimit *types.Gas) (ids.MessageId, error)
	SendInit() (handle uint32, err error)
	SendPush(handle uint32, payload []byte) error
	SendPushInput(handle uint32, offset, length uint32) error
	SendCommit(handle uint32, destination ids.ActorId, value types.Value, delay types.BlockNumber, gasLimit *types.Gas) (ids.MessageId, error)

	Reply(payload types.Payload, value types.Value, gasLimit *types.Gas) (ids.MessageId, error)
	ReplyPush(payload []byte) error
	ReplyPushInput(offset, length uint32) error
	ReplyCommit(value types.Value, gasLimit *types.Gas) (ids.MessageId, error)
	ReplyTo() (ids.MessageId, int32, error)
	SignalFrom() (ids.MessageId, error)

	ReservationSend(reservation ids.ReservationId, packet types.OutgoingMessage, delay types.BlockNumber) (ids.MessageId, error)
	ReservationReply(reservation ids.ReservationId, payload types.Payload, value types.Value) (ids.MessageId, error)

	CreateProgram(codeId ids.CodeId, salt, payload []byte, value types.Value, delay types.BlockNumber) (ids.ActorId, ids.MessageId, error)

	Size() uint32
	Read() []byte
	Source() ids.ActorId
	Value() types.Value
}

// BlockchainContext exposes block and program-identity metadata.
type BlockchainContext interface {
	ValueAvailable() types.Value
	BlockHeight() types.BlockNumber
	BlockTimestamp() uint64
	MessageId() ids.MessageId
	ProgramId() ids.ActorId
	StatusCode() (int32, bool)
	Random(subject []byte) ([32]byte, types.BlockNumber)
}

// ReservationContext covers gas reservations.
type ReservationContext interface {
	ReserveGas(amount types.Gas, duration types.BlockNumber) (ids.ReservationId, error)
	UnreserveGas(id ids.ReservationId) (types.Gas, error)
	SystemReserveGas(amount types.Gas) error
	ReplyDeposit(target ids.MessageId, amount types.Gas) error
}

// ControlContext covers the wait/wake/exit/debug family and the allocator.
type ControlContext interface {
	Wait(kind WaitKind, duration uint32, hasDuration bool) Outcome
	Wake(mid ids.MessageId, delay types.BlockNumber) error
	Exit(inheritor ids.ActorId) Outcome
	Leave() Outcome
	Debug(msg string)

	Alloc(pages uint32) (uint32, error)
	Free(pageNo uint32) error

	GasAvailable() types.Gas
}
