package types

import "github.com/gear-tech/gear-core-go/ids"

// GasNodeKind distinguishes the five node shapes the storage driver's gas
// forest can hold; see the external storage-driver interface in the spec.
type GasNodeKind uint8

const (
	// External roots a per-message gas subtree at the value the block
	// scheduler granted the dispatch.
	External GasNodeKind = iota
	// SpecifiedLocal is a child whose value was explicitly set by its
	// parent (e.g. a with-gas send).
	SpecifiedLocal
	// UnspecifiedLocal is a child that inherits whatever gas remains in
	// its parent at consume time.
	UnspecifiedLocal
	// ReservedLocal roots a gas-reservation subtree.
	ReservedLocal
	// Cut is a terminal node produced by splitting off a fixed amount that
	// can never have further children.
	Cut
)

// GasNode is one node of the gas forest. The forest itself (parent/child
// links, lookup by id) is owned by the storage driver; this type describes
// only a single node's local bookkeeping, which the executor reasons about
// when deciding whether a removal is legal.
type GasNode struct {
	Kind     GasNodeKind
	Value    Gas
	Refcount uint32
	Locked   map[ids.ReservationId]Gas // lock-bag: per-reservation held amounts
	Consumed bool
}

// NewExternalGasNode creates a root node with the given initial value.
func NewExternalGasNode(value Gas) GasNode {
	return GasNode{Kind: External, Value: value, Locked: make(map[ids.ReservationId]Gas)}
}

// CanRemove reports whether this node may be deleted from the forest: only
// legal once every descendant has been consumed, which in this local view
// means the node itself carries no remaining refcount from children.
func (n GasNode) CanRemove() bool {
	return n.Consumed && n.Refcount == 0
}

// GasReservationState distinguishes the three states a reservation passes
// through. Created and Removed transitions are observable as journal notes
// (see the journal package); Exists is the steady state in between.
type GasReservationState uint8

const (
	// ReservationExists is the steady state between creation and removal.
	ReservationExists GasReservationState = iota
	// ReservationCreated is emitted once, the block the reservation was made.
	ReservationCreated
	// ReservationRemoved is emitted once, the block the reservation expired
	// or was explicitly unreserved.
	ReservationRemoved
)

// GasReservation is a named pre-committed gas allotment an actor can later
// spend via reservation_send/reservation_reply.
type GasReservation struct {
	Amount   Gas
	Start    BlockNumber
	Finish   BlockNumber
	State    GasReservationState
	Duration BlockNumber // meaningful only when State == ReservationCreated
}

// GasReservationMap attaches an actor's live reservations to its program
// record, keyed by reservation id.
type GasReservationMap map[ids.ReservationId]GasReservation
