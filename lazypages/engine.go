// Package lazypages implements the lazy-page engine (C3): on first touch
// of a Gear page during an execution it charges the gas cost matching the
// access's origin (a guest instruction, "signal", or a runtime host call,
// "host-func") and direction (read or write), loads any pre-existing
// persistent data into the page, and at the end of execution reports which
// pages were written so the journal builder can emit UpdatePage notes for
// them.
//
// Charging is deliberately idempotent per page: re-touching a page that
// was already billed for a given effective access class is free. See
// Access for the exact state machine.
package lazypages

import (
	"errors"
	"sort"

	"github.com/gear-tech/gear-core-go/gas"
	"github.com/gear-tech/gear-core-go/memio"
)

// Origin distinguishes a page access triggered by a guest WASM instruction
// ("signal") from one triggered by the runtime reading/writing a guest
// buffer on the guest's behalf ("host-func").
type Origin uint8

const (
	Signal Origin = iota
	HostFunc
)

// Direction distinguishes a read access from a write access.
type Direction uint8

const (
	ReadAccess Direction = iota
	WriteAccess
)

// Costs prices the six access-kind/origin combinations plus the
// storage-load charge, per the Schedule's lazy-pages cost table.
type Costs struct {
	SignalRead             uint64
	SignalWrite            uint64
	SignalWriteAfterRead   uint64
	HostFuncRead           uint64
	HostFuncWrite          uint64
	HostFuncWriteAfterRead uint64
	LoadPageStorageData    uint64
}

// ErrGasLimitExceeded is returned by Access when the matching charge could
// not be paid out of the dispatch's own gas limit.
var ErrGasLimitExceeded = errors.New("lazypages: gas limit exceeded while charging for page access")

// ErrGasAllowanceExceeded is returned by Access when the matching charge
// could not be paid out of the block's remaining allowance, even though
// the dispatch's own gas limit could cover it. Unlike ErrGasLimitExceeded
// this is not the program's fault: callers should requeue rather than
// trap.
var ErrGasAllowanceExceeded = errors.New("lazypages: gas allowance exceeded while charging for page access")

// chargeErr runs counter.Charge(cost), returning the sentinel matching
// which counter ran out, or nil if the charge succeeded.
func chargeErr(counter *gas.Counter, cost uint64) error {
	switch counter.Charge(cost) {
	case gas.NotEnoughGas:
		return ErrGasLimitExceeded
	case gas.NotEnoughAllowance:
		return ErrGasAllowanceExceeded
	}
	return nil
}

// StorageReader supplies a page's pre-existing persistent data, if any.
// The executor binds this to the storage driver's program_page_data call.
type StorageReader interface {
	PageData(page memio.GearPage) ([]byte, bool)
}

// pageState tracks the per-page charging and persistence bookkeeping
// described in the package doc.
type pageState struct {
	touchedAtAll bool // any access (read or write) has happened
	loaded       bool // storage-load charge has been billed
	chargedRead  bool // a read charge (either origin) has been billed
	chargedWrite bool // a write charge (either origin/variant) has been billed
	exempt       bool // a stack page: never charged, never reported as written
}

// Engine serves page faults for a single dispatch execution. It is
// constructed fresh per execution and discarded at the end, matching the
// invariant that lazy-page state is per-execution.
type Engine struct {
	mem     memio.Memory
	counter *gas.Counter
	costs   Costs
	storage StorageReader

	pages map[memio.GearPage]*pageState
}

// New builds an Engine over mem, charging counter using costs, and loading
// persistent page data from storage on first touch.
func New(mem memio.Memory, counter *gas.Counter, costs Costs, storage StorageReader) *Engine {
	return &Engine{
		mem:     mem,
		counter: counter,
		costs:   costs,
		storage: storage,
		pages:   make(map[memio.GearPage]*pageState),
	}
}

func (e *Engine) stateFor(p memio.GearPage) *pageState {
	st, ok := e.pages[p]
	if !ok {
		st = &pageState{}
		e.pages[p] = st
	}
	return st
}

// readCost returns the per-origin read charge.
func (e *Engine) readCost(origin Origin) uint64 {
	if origin == Signal {
		return e.costs.SignalRead
	}
	return e.costs.HostFuncRead
}

// writeCost returns the per-origin plain-write charge.
func (e *Engine) writeCost(origin Origin) uint64 {
	if origin == Signal {
		return e.costs.SignalWrite
	}
	return e.costs.HostFuncWrite
}

// writeAfterReadCost returns the per-origin write-after-read charge.
func (e *Engine) writeAfterReadCost(origin Origin) uint64 {
	if origin == Signal {
		return e.costs.SignalWriteAfterRead
	}
	return e.costs.HostFuncWriteAfterRead
}

// Access services one page touch: it loads persistent data on first touch
// of the page (charging LoadPageStorageData at most once), then charges
// the matching read/write/write-after-read cost per the state machine
// described in the package doc. It must be called once per logical touch,
// before the caller performs the corresponding memory I/O.
func (e *Engine) Access(page memio.GearPage, origin Origin, dir Direction) error {
	st := e.stateFor(page)
	if st.exempt {
		return nil
	}

	if !st.touchedAtAll {
		st.touchedAtAll = true
		if e.storage != nil {
			if data, ok := e.storage.PageData(page); ok {
				if err := chargeErr(e.counter, e.costs.LoadPageStorageData); err != nil {
					return err
				}
				st.loaded = true
				if err := e.mem.Write(uint32(page)*memio.GearPageSize, data); err != nil {
					return err
				}
			}
		}
	}

	var cost uint64
	switch dir {
	case ReadAccess:
		if st.chargedRead {
			return nil
		}
		cost = e.readCost(origin)
	case WriteAccess:
		if st.chargedWrite {
			return nil
		}
		if st.chargedRead {
			cost = e.writeAfterReadCost(origin)
		} else {
			cost = e.writeCost(origin)
		}
	}

	if err := chargeErr(e.counter, cost); err != nil {
		return err
	}
	switch dir {
	case ReadAccess:
		st.chargedRead = true
	case WriteAccess:
		st.chargedWrite = true
	}
	return nil
}

// WrittenPages returns, in ascending order, every page that was charged
// for at least one write during this execution -- the set the journal
// builder must emit UpdatePage notes for. Pages only ever read are never
// persisted, matching the "only released pages are persisted" rule.
func (e *Engine) WrittenPages() []memio.GearPage {
	out := make([]memio.GearPage, 0, len(e.pages))
	for p, st := range e.pages {
		if st.chargedWrite && !st.exempt {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ExemptStackPages marks every Gear page below end as exempt from
// lazy-page charging and persistence: the environment calls this once,
// at construction, with the page the guest's stack-end export resolves
// to, since stack memory is reinitialized fresh on every execution and
// is never part of a program's persisted page set.
func (e *Engine) ExemptStackPages(end memio.GearPage) {
	for p := memio.GearPage(0); p < end; p++ {
		e.stateFor(p).exempt = true
	}
}

// PageBytes reads a Gear page's current contents from memory, for the
// journal builder to attach to an UpdatePage note.
func (e *Engine) PageBytes(page memio.GearPage) ([]byte, error) {
	buf := make([]byte, memio.GearPageSize)
	if err := e.mem.Read(uint32(page)*memio.GearPageSize, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Wrapped returns a memio.Memory backed by e's own memory where every
// Read/Write is preceded by the matching Access charge, tagged with
// origin. Callers that hand guest-visible memory to another component --
// the WASM environment binding it to an instance, the memory access
// registry decoding host-call arguments -- should bind that component to
// this wrapper rather than to the engine's raw backing memory, so every
// touch during the execution it guards is billed exactly once.
func (e *Engine) Wrapped(origin Origin) memio.Memory {
	return &lazyMemory{engine: e, origin: origin}
}

type lazyMemory struct {
	engine *Engine
	origin Origin
}

func (m *lazyMemory) Size() uint32 { return m.engine.mem.Size() }

func (m *lazyMemory) Read(offset uint32, out []byte) error {
	if err := m.chargeRange(offset, uint32(len(out)), ReadAccess); err != nil {
		return err
	}
	return m.engine.mem.Read(offset, out)
}

func (m *lazyMemory) Write(offset uint32, data []byte) error {
	if err := m.chargeRange(offset, uint32(len(data)), WriteAccess); err != nil {
		return err
	}
	return m.engine.mem.Write(offset, data)
}

func (m *lazyMemory) Grow(deltaPages uint32) (uint32, error) {
	return m.engine.mem.Grow(deltaPages)
}

func (m *lazyMemory) chargeRange(offset, length uint32, dir Direction) error {
	if length == 0 {
		return nil
	}
	start := memio.GearPageOf(offset)
	end := memio.GearPageOf(offset + length - 1)
	for p := start; p <= end; p++ {
		if err := m.engine.Access(p, m.origin, dir); err != nil {
			return err
		}
	}
	return nil
}
