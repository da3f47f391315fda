// Package executor implements the dispatch executor (C7): it assembles
// the gas counters (C1), memory access registry (C2), lazy-page engine
// (C3), host-call table (C4), message context (C5) and WASM environment
// (C6) for a single dispatch, runs it to a termination Outcome, and
// reports a journal.Result the caller hands to journal.Build.
//
// Mirroring gear-core's core-processor, every resource charge here is
// levied before the step it pays for is allowed to proceed: instrumentation
// and memory setup are charged before the environment is constructed at
// all, so a message that cannot afford to even start never reaches guest
// code.
package executor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/gear-tech/gear-core-go/gas"
	"github.com/gear-tech/gear-core-go/hostcall"
	"github.com/gear-tech/gear-core-go/ids"
	"github.com/gear-tech/gear-core-go/journal"
	"github.com/gear-tech/gear-core-go/lazypages"
	"github.com/gear-tech/gear-core-go/log"
	"github.com/gear-tech/gear-core-go/memio"
	"github.com/gear-tech/gear-core-go/msgctx"
	"github.com/gear-tech/gear-core-go/types"
)

// ErrorKind distinguishes an actor-local failure (the executing program's
// own fault, billed to it) from a system failure (surfaced upward,
// nobody's gas is spent covering it).
type ErrorKind uint8

const (
	ActorError ErrorKind = iota
	SystemError
)

// ExecutionError is returned by Execute when a dispatch could not even
// run to a termination Outcome -- e.g. the environment failed to
// construct, or a resource charge before instantiation failed.
type ExecutionError struct {
	Kind      ErrorKind
	GasAmount types.Gas
	Reason    string
}

func (e *ExecutionError) Error() string {
	kind := "actor"
	if e.Kind == SystemError {
		kind = "system"
	}
	return fmt.Sprintf("executor: %s error: %s", kind, e.Reason)
}

func actorErr(gasAmount types.Gas, reason string) *ExecutionError {
	return &ExecutionError{Kind: ActorError, GasAmount: gasAmount, Reason: reason}
}

// allowanceExceededResult builds the minimal journal.Result for a
// pre-instantiation charge that exhausted the block's remaining allowance
// rather than the dispatch's own gas limit: unlike an actor-fault charge
// failure, this is not an ExecutionError -- the dispatch is requeued, and
// journal.Build's OutcomeGasAllowanceExceeded branch only needs GasBurned
// (to account for what was actually spent) and the dispatch itself.
func allowanceExceededResult(dispatch types.IncomingDispatch, view ProgramView, counter *gas.Counter) journal.Result {
	return journal.Result{
		Dispatch:     dispatch,
		ProgramId:    view.ProgramId,
		Kind:         dispatch.Kind,
		Outcome:      journal.OutcomeGasAllowanceExceeded,
		GasBurned:    counter.Burned(),
		GasRemaining: counter.GasLeft(),
	}
}

// Settings prices the resources Execute charges before constructing an
// environment, derived from a gas.Schedule plus the dispatch's own gas
// allotment.
type Settings struct {
	Schedule       gas.Schedule
	ForbiddenNames []string
	LazyPages      lazypages.Costs
	BlockHeight    types.BlockNumber
	BlockTimestamp uint64
	RandomSeed     []byte
}

// ProgramView is the executor's read of the program's current state,
// supplied by the caller (which resolved it from the storage driver).
type ProgramView struct {
	ProgramId       ids.ActorId
	CodeSize        uint64
	Memory          memio.Memory
	MemoryPages     uint32 // current WASM page count
	MaxPages        uint32
	Allocations     types.AllocationsTree
	GasReservations types.GasReservationMap
	StorageReader   lazypages.StorageReader
	Balance         types.Value
}

// Environment is the C6 WASM environment's view as seen by the executor:
// build once per dispatch, run exactly one entry point, report the
// Outcome it terminated with. Because the real guest memory only comes
// into existence once an engine instantiates the module, the environment
// -- not the executor -- owns the lazy-page engine bound to it; Memory
// exposes the lazy-charging view the executor binds into the allocator,
// and TouchedPages reports what the journal builder must persist.
// wasmenv.Environment implements this.
type Environment interface {
	Memory() memio.Memory
	Execute(entry types.DispatchKind) (hostcall.Outcome, error)
	TouchedPages() map[uint32][]byte
}

// EnvironmentConfig bundles everything an EnvironmentFactory needs to
// instantiate a module, prepare its memory from the program's persisted
// pages, and bind its own lazy-page engine over the real guest memory.
type EnvironmentConfig struct {
	Table         *hostcall.Table
	Ext           hostcall.Externalities
	Counter       *gas.Counter
	InitialMemory memio.Memory
	LazyPages     lazypages.Costs
	Storage       lazypages.StorageReader
	Code          []byte
	// Allocations shares the program's live allocation set so the
	// environment can bounds-check host-call memory accesses against it;
	// it wraps the same underlying page set controlCtx.Alloc/Free mutate,
	// so a guest allocating mid-execution is immediately visible here.
	Allocations *types.AllocationsTree
}

// EnvironmentFactory constructs an Environment from cfg. wasmenv.New
// adapted to this signature is the production factory; tests substitute a
// fake.
type EnvironmentFactory func(cfg EnvironmentConfig) (Environment, error)

// runtimeExt bundles the per-dispatch gas counter, message context, and
// blockchain/reservation/control sub-contexts into the single
// hostcall.Externalities a Table.Invoke call needs.
type runtimeExt struct {
	counter      *gas.Counter
	messaging    *msgctx.Context
	blockchain   blockchainCtx
	reservations reservationCtx
	control      controlCtx
}

func (e *runtimeExt) Messaging() hostcall.MessagingContext      { return e.messaging }
func (e *runtimeExt) Blockchain() hostcall.BlockchainContext    { return e.blockchain }
func (e *runtimeExt) Reservations() hostcall.ReservationContext { return &e.reservations }
func (e *runtimeExt) Control() hostcall.ControlContext          { return &e.control }
func (e *runtimeExt) Gas() *gas.Counter                         { return e.counter }

type blockchainCtx struct {
	programId      ids.ActorId
	balance        types.Value
	blockHeight    types.BlockNumber
	blockTimestamp uint64
	messageId      ids.MessageId
	statusCode     int32
	hasStatusCode  bool
	randomSeed     []byte
}

func (b blockchainCtx) ValueAvailable() types.Value         { return b.balance }
func (b blockchainCtx) BlockHeight() types.BlockNumber       { return b.blockHeight }
func (b blockchainCtx) BlockTimestamp() uint64               { return b.blockTimestamp }
func (b blockchainCtx) MessageId() ids.MessageId             { return b.messageId }
func (b blockchainCtx) ProgramId() ids.ActorId               { return b.programId }
func (b blockchainCtx) StatusCode() (int32, bool)            { return b.statusCode, b.hasStatusCode }

// Random derives a deterministic pseudo-random value the way Gear's
// random host call does: blake2b-256 of the caller-supplied subject
// concatenated with the block's own random seed, tagged with the block
// height it was valid for.
func (b blockchainCtx) Random(subject []byte) ([32]byte, types.BlockNumber) {
	buf := make([]byte, 0, len(subject)+len(b.randomSeed))
	buf = append(buf, subject...)
	buf = append(buf, b.randomSeed...)
	return blake2b.Sum256(buf), b.blockHeight
}

// reservationCtx implements gas reservations against the program's
// reservation map, moving gas out of (reserve) or back into (unreserve)
// the executing message's own counter.
type reservationCtx struct {
	programId    ids.ActorId
	blockHeight  types.BlockNumber
	counter      *gas.Counter
	reservations types.GasReservationMap
	maxCount     uint32

	nonce uint64

	systemReserved   types.Gas
	replyDeposits    map[ids.MessageId]types.Gas
}

func (r *reservationCtx) nextId() ids.ReservationId {
	var buf [40]byte
	copy(buf[:32], r.programId[:])
	binary.BigEndian.PutUint64(buf[32:], r.nonce)
	r.nonce++
	return ids.ReservationId(blake2b.Sum256(buf[:]))
}

// chargeOrErr runs counter.Charge(amount), translating a failed charge into
// the matching hostcall sentinel: out of the caller's own gas limit is
// actor-fault, out of the block's allowance is not.
func chargeOrErr(counter *gas.Counter, amount types.Gas) error {
	switch counter.Charge(amount) {
	case gas.NotEnoughGas:
		return hostcall.ErrGasLimitExceeded
	case gas.NotEnoughAllowance:
		return hostcall.ErrGasAllowanceExceeded
	}
	return nil
}

func (r *reservationCtx) ReserveGas(amount types.Gas, duration types.BlockNumber) (ids.ReservationId, error) {
	if uint32(len(r.reservations)) >= r.maxCount {
		return ids.ReservationId{}, hostcall.ErrTooManyReservations
	}
	if err := chargeOrErr(r.counter, amount); err != nil {
		return ids.ReservationId{}, err
	}
	id := r.nextId()
	r.reservations[id] = types.GasReservation{
		Amount:   amount,
		Start:    r.blockHeight,
		Finish:   r.blockHeight + duration,
		State:    types.ReservationCreated,
		Duration: duration,
	}
	return id, nil
}

func (r *reservationCtx) UnreserveGas(id ids.ReservationId) (types.Gas, error) {
	res, ok := r.reservations[id]
	if !ok || res.State == types.ReservationRemoved {
		return 0, hostcall.ErrReservationNotFound
	}
	res.State = types.ReservationRemoved
	r.reservations[id] = res
	r.counter.Refund(res.Amount)
	return res.Amount, nil
}

func (r *reservationCtx) SystemReserveGas(amount types.Gas) error {
	if err := chargeOrErr(r.counter, amount); err != nil {
		return err
	}
	r.systemReserved += amount
	return nil
}

func (r *reservationCtx) ReplyDeposit(target ids.MessageId, amount types.Gas) error {
	if err := chargeOrErr(r.counter, amount); err != nil {
		return err
	}
	if r.replyDeposits == nil {
		r.replyDeposits = make(map[ids.MessageId]types.Gas)
	}
	r.replyDeposits[target] += amount
	return nil
}

// controlCtx implements wait/wake/exit/leave/debug and the page
// allocator. Wait/Exit/Leave build pure Outcome values -- BindControl
// wraps whatever they return as a terminating error, so no side effect
// happens here beyond recording an awaited wake.
type controlCtx struct {
	counter     *gas.Counter
	allocations *types.AllocationsTree
	maxPages    uint32
	memory      memio.Memory
	awaken      []ids.MessageId
	waitingFee  types.Gas
	wakingFee   types.Gas
}

// Wait charges the schedule's waiting fee before admitting the suspend:
// spec §4.5 requires every per-effect fee be taken from the caller's gas
// before the effect is admitted, waiting included.
func (c *controlCtx) Wait(kind hostcall.WaitKind, duration uint32, hasDuration bool) hostcall.Outcome {
	switch c.counter.Charge(c.waitingFee) {
	case gas.NotEnoughGas:
		return hostcall.Trap(hostcall.TrapGasLimitExceeded)
	case gas.NotEnoughAllowance:
		return hostcall.GasAllowanceExceeded()
	}
	return hostcall.Wait(kind, duration, hasDuration)
}

// Wake charges the schedule's waking fee before recording the wake.
func (c *controlCtx) Wake(mid ids.MessageId, delay types.BlockNumber) error {
	if err := chargeOrErr(c.counter, c.wakingFee); err != nil {
		return err
	}
	c.awaken = append(c.awaken, mid)
	return nil
}

func (c *controlCtx) Exit(inheritor ids.ActorId) hostcall.Outcome { return hostcall.Exit(inheritor) }
func (c *controlCtx) Leave() hostcall.Outcome                     { return hostcall.Leave() }
func (c *controlCtx) Debug(msg string)                            { log.Debug("guest debug", "message", msg) }

// Alloc finds the lowest contiguous run of pages pages free in
// allocations, reserves it, and grows memory to cover it if needed.
func (c *controlCtx) Alloc(pages uint32) (uint32, error) {
	if pages == 0 {
		return 0, nil
	}
	var run uint32
	var start uint32
	for p := uint32(0); p < c.maxPages; p++ {
		if c.allocations.Contains(p) {
			run = 0
			continue
		}
		if run == 0 {
			start = p
		}
		run++
		if run == pages {
			for i := start; i < start+pages; i++ {
				c.allocations.Insert(i)
			}
			needed := start + pages
			if needed > c.maxPages {
				return 0, hostcall.ErrOutOfBounds
			}
			if current := c.memory.Size() / memio.WasmPageSize; needed > current {
				if _, err := c.memory.Grow(needed - current); err != nil {
					return 0, err
				}
			}
			return start, nil
		}
	}
	return 0, hostcall.ErrOutOfBounds
}

func (c *controlCtx) Free(pageNo uint32) error {
	if !c.allocations.Contains(pageNo) {
		return hostcall.ErrOutOfBounds
	}
	c.allocations.Remove(pageNo)
	return nil
}

func (c *controlCtx) GasAvailable() types.Gas { return c.counter.Left() }

// collectReservationEvents scans reservations for entries left in the
// Created or Removed transition state by this execution's reserve_gas/
// unreserve_gas host calls, returning one ReservationEvent per entry in a
// deterministic (id-sorted) order so the emitted journal is reproducible
// regardless of Go's randomized map iteration.
func collectReservationEvents(reservations types.GasReservationMap) []journal.ReservationEvent {
	var ids_ []ids.ReservationId
	for id, res := range reservations {
		if res.State == types.ReservationCreated || res.State == types.ReservationRemoved {
			ids_ = append(ids_, id)
		}
	}
	sort.Slice(ids_, func(i, j int) bool { return bytes.Compare(ids_[i][:], ids_[j][:]) < 0 })

	events := make([]journal.ReservationEvent, 0, len(ids_))
	for _, id := range ids_ {
		res := reservations[id]
		events = append(events, journal.ReservationEvent{
			Id:       id,
			Created:  res.State == types.ReservationCreated,
			Amount:   res.Amount,
			Duration: res.Duration,
		})
	}
	return events
}

// Execute runs dispatch against view under settings, returning a
// journal.Result ready for journal.Build. msgSettings prices the
// message-context fees (outgoing limits, sending fees); forbiddenNames
// and code together drive the environment factory.
func Execute(
	gasLimit, allowance types.Gas,
	dispatch types.IncomingDispatch,
	view ProgramView,
	settings Settings,
	msgSettings msgctx.Settings,
	code []byte,
	newEnv EnvironmentFactory,
) (journal.Result, *ExecutionError) {
	counter := gas.NewCounter(gasLimit, allowance)

	instrumentationCost := settings.Schedule.Instantiation
	switch counter.Charge(instrumentationCost) {
	case gas.NotEnoughGas:
		return journal.Result{}, actorErr(counter.Burned(), "not enough gas to charge instrumentation")
	case gas.NotEnoughAllowance:
		return allowanceExceededResult(dispatch, view, counter), nil
	}

	memCost := settings.Schedule.Memory.StaticPage + settings.Schedule.Memory.PerWasmPage*uint64(view.MemoryPages)
	switch counter.Charge(memCost) {
	case gas.NotEnoughGas:
		return journal.Result{}, actorErr(counter.Burned(), "not enough gas to charge memory setup")
	case gas.NotEnoughAllowance:
		return allowanceExceededResult(dispatch, view, counter), nil
	}

	loadCost := settings.Schedule.Memory.LoadPageStore * uint64(view.Allocations.Len())
	switch counter.Charge(loadCost) {
	case gas.NotEnoughGas:
		return journal.Result{}, actorErr(counter.Burned(), "not enough gas to charge loaded allocations")
	case gas.NotEnoughAllowance:
		return allowanceExceededResult(dispatch, view, counter), nil
	}

	msgSettings.OutgoingLimit = settings.Schedule.Limits.OutgoingLimit
	msgCtx := msgctx.New(dispatch, view.ProgramId, msgSettings, counter, nil)

	reservations := view.GasReservations
	if reservations == nil {
		reservations = make(types.GasReservationMap)
	}

	ext := &runtimeExt{
		counter:   counter,
		messaging: msgCtx,
		blockchain: blockchainCtx{
			programId:      view.ProgramId,
			balance:        view.Balance,
			blockHeight:    settings.BlockHeight,
			blockTimestamp: settings.BlockTimestamp,
			messageId:      dispatch.Message.Id,
			randomSeed:     settings.RandomSeed,
		},
		reservations: reservationCtx{
			programId:    view.ProgramId,
			blockHeight:  settings.BlockHeight,
			counter:      counter,
			reservations: reservations,
			maxCount:     settings.Schedule.Limits.MaxReservations,
		},
		control: controlCtx{
			counter:     counter,
			allocations: &view.Allocations,
			maxPages:    view.MaxPages,
			memory:      view.Memory,
			waitingFee:  settings.Schedule.WaitingFee(),
			wakingFee:   settings.Schedule.WakingFee(),
		},
	}
	if dispatch.Message.Reply != nil {
		ext.blockchain.statusCode = dispatch.Message.Reply.ReplyCode
		ext.blockchain.hasStatusCode = true
	}

	table := hostcall.NewTable(settings.Schedule, settings.ForbiddenNames)
	hostcall.BindDefaults(table)
	if err := table.Validate(false); err != nil {
		return journal.Result{}, &ExecutionError{Kind: SystemError, GasAmount: counter.Burned(), Reason: err.Error()}
	}

	env, err := newEnv(EnvironmentConfig{
		Table:         table,
		Ext:           ext,
		Counter:       counter,
		InitialMemory: view.Memory,
		LazyPages:     settings.LazyPages,
		Storage:       view.StorageReader,
		Code:          code,
		Allocations:   &view.Allocations,
	})
	if err != nil {
		return journal.Result{}, actorErr(counter.Burned(), "environment construction failed: "+err.Error())
	}
	// The allocator grows/reads the same live guest memory the
	// environment's own lazy-page engine bills against, rather than the
	// pre-instantiation view the executor was handed.
	ext.control.memory = env.Memory()

	outcome, err := env.Execute(dispatch.Kind)
	if err != nil {
		return journal.Result{}, &ExecutionError{Kind: SystemError, GasAmount: counter.Burned(), Reason: err.Error()}
	}

	generated, reply := msgCtx.Drain()

	// Auto-reply rule (spec §4.8 step 8): a successful (or Leave, which
	// carries Success through outcome mapping below) Handle/Init dispatch
	// that never sent an explicit reply gets one synthesized for it.
	replySent := msgCtx.ReplySent()
	termKind := outcome.Kind()
	autoReplyEligible := (termKind == hostcall.TerminationSuccess || termKind == hostcall.TerminationLeave) &&
		!replySent && dispatch.Kind != types.Reply && dispatch.Kind != types.Signal
	if autoReplyEligible {
		ar := msgCtx.SynthesizeAutoReply()
		reply = &ar
	}

	// isErrorReply approximates the spec's "ErrorReply" dispatch kind,
	// which this data model does not carry as a separate DispatchKind: a
	// Reply dispatch whose ReplyCode denotes an error is itself a reply to
	// a prior failure, so it must not re-trigger a signal.
	isErrorReply := dispatch.Kind == types.Reply && dispatch.Message.Reply != nil && dispatch.Message.Reply.ReplyCode != 0

	reservationEvents := collectReservationEvents(reservations)

	result := journal.Result{
		Dispatch:          dispatch,
		ProgramId:         view.ProgramId,
		Kind:              dispatch.Kind,
		ReplySent:         replySent,
		GasBurned:         counter.Burned(),
		GasRemaining:      counter.GasLeft(),
		SystemReserved:    ext.reservations.systemReserved,
		Generated:         generated,
		Reply:             reply,
		Candidates:        msgCtx.Candidates(),
		AwakenMessages:    ext.control.awaken,
		ReservationEvents: reservationEvents,
	}

	if touched := env.TouchedPages(); len(touched) > 0 {
		result.TouchedPages = touched
	}
	allocs := view.Allocations
	result.AllocationsAfter = &allocs

	switch outcome.Kind() {
	case hostcall.TerminationSuccess:
		result.Outcome = journal.OutcomeSuccess
	case hostcall.TerminationWait:
		result.Outcome = journal.OutcomeWait
		result.WaitKind = outcome.WaitKind()
		d, has := outcome.WaitDuration()
		result.WaitDuration, result.HasDuration = d, has
	case hostcall.TerminationExit:
		result.Outcome = journal.OutcomeExit
		result.Inheritor = outcome.Inheritor()
	case hostcall.TerminationGasAllowanceExceeded:
		result.Outcome = journal.OutcomeGasAllowanceExceeded
	case hostcall.TerminationLeave:
		result.Outcome = journal.OutcomeSuccess
	case hostcall.TerminationTrap:
		result.Outcome = journal.OutcomeTrap
		result.TrapKind = outcome.TrapKind()
	}

	// Open question (ii) resolution: a successful execution never needs
	// its earmarked system reservation (no signal will fire), so it is
	// unreserved in the same dispatch; a failed one instead notifies the
	// program's own signal handler, unless the dispatch kind excludes it.
	if ext.reservations.systemReserved > 0 {
		switch result.Outcome {
		case journal.OutcomeSuccess:
			result.SystemUnreserve = true
		case journal.OutcomeTrap:
			if dispatch.Kind != types.Signal && dispatch.Kind != types.Init && !isErrorReply {
				result.SendSignalOnTrap = true
			}
		}
	}

	return result, nil
}
