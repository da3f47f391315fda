package types

import (
	"sort"

	"github.com/gear-tech/gear-core-go/ids"
)

// ProgramLifecycle distinguishes the three states a Program can be in. Exited
// and Terminated are absorbing: once reached, no further transition is
// legal.
type ProgramLifecycle uint8

const (
	// LifecycleActive is the only state from which a dispatch actually runs
	// guest code.
	LifecycleActive ProgramLifecycle = iota
	// LifecycleExited means the program called exit(inheritor) explicitly.
	LifecycleExited
	// LifecycleTerminated means the program trapped during Init or was
	// terminated by the runtime.
	LifecycleTerminated
)

// ActiveState distinguishes a program that has not yet completed its first
// successful Init dispatch from one that has.
type ActiveState uint8

const (
	// StateUninitialized means the program is waiting on the Init dispatch
	// named by PendingInitMessage.
	StateUninitialized ActiveState = iota
	// StateInitialized means Init completed successfully; Handle/Reply/Signal
	// dispatches are now permitted.
	StateInitialized
)

// MemoryInfix disambiguates successive code revisions sharing an actor id
// when reading program page data from the storage driver.
type MemoryInfix uint32

// Program is the runtime's view of a deployed actor. Exactly one of the
// Exited/Terminated inheritor fields is meaningful depending on Lifecycle.
type Program struct {
	Lifecycle ProgramLifecycle

	// Active-state fields; valid only when Lifecycle == LifecycleActive.
	CodeId            ids.CodeId
	MemoryInfix       MemoryInfix
	Allocations       AllocationsTree
	GasReservationMap GasReservationMap
	State             ActiveState
	PendingInitMessage ids.MessageId // meaningful only when State == StateUninitialized

	// Exited/Terminated field.
	Inheritor ids.ActorId
}

// NewActiveProgram builds a freshly deployed, uninitialized program.
func NewActiveProgram(code ids.CodeId, infix MemoryInfix, pendingInit ids.MessageId) Program {
	return Program{
		Lifecycle:          LifecycleActive,
		CodeId:             code,
		MemoryInfix:        infix,
		Allocations:        NewAllocationsTree(),
		GasReservationMap:  make(GasReservationMap),
		State:              StateUninitialized,
		PendingInitMessage: pendingInit,
	}
}

// IsAbsorbed reports whether the program is Exited or Terminated, i.e. no
// further dispatch can ever execute guest code for it again.
func (p Program) IsAbsorbed() bool {
	return p.Lifecycle == LifecycleExited || p.Lifecycle == LifecycleTerminated
}

// MarkExited transitions an Active program to Exited. Calling it on an
// already-absorbed program is a programming error the caller must avoid;
// the gas tree invariants depend on exactly-once transitions.
func (p Program) MarkExited(inheritor ids.ActorId) Program {
	p.Lifecycle = LifecycleExited
	p.Inheritor = inheritor
	return p
}

// MarkTerminated transitions an Active program to Terminated.
func (p Program) MarkTerminated(inheritor ids.ActorId) Program {
	p.Lifecycle = LifecycleTerminated
	p.Inheritor = inheritor
	return p
}

// MarkInitialized transitions an Uninitialized Active program to
// Initialized. It is a no-op if already initialized.
func (p Program) MarkInitialized() Program {
	p.State = StateInitialized
	return p
}

// AllocationsTree is the set of WASM page indices currently allocated to a
// program. It is named "tree" to match the storage driver's on-disk
// representation (a sorted set), though in memory it is a plain map.
type AllocationsTree struct {
	pages map[uint32]struct{}
}

// NewAllocationsTree returns an empty allocation set.
func NewAllocationsTree() AllocationsTree {
	return AllocationsTree{pages: make(map[uint32]struct{})}
}

// Insert adds a WASM page index to the set.
func (t *AllocationsTree) Insert(page uint32) { t.pages[page] = struct{}{} }

// Remove deletes a WASM page index from the set.
func (t *AllocationsTree) Remove(page uint32) { delete(t.pages, page) }

// Contains reports whether page is allocated.
func (t AllocationsTree) Contains(page uint32) bool {
	_, ok := t.pages[page]
	return ok
}

// Len returns the number of allocated pages.
func (t AllocationsTree) Len() int { return len(t.pages) }

// Pages returns the allocated page indices in ascending order.
func (t AllocationsTree) Pages() []uint32 {
	out := make([]uint32, 0, len(t.pages))
	for p := range t.pages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
