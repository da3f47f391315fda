package executor

import (
	"testing"

	"github.com/gear-tech/gear-core-go/gas"
	"github.com/gear-tech/gear-core-go/hostcall"
	"github.com/gear-tech/gear-core-go/ids"
	"github.com/gear-tech/gear-core-go/journal"
	"github.com/gear-tech/gear-core-go/memio"
	"github.com/gear-tech/gear-core-go/msgctx"
	"github.com/gear-tech/gear-core-go/types"
)

// fakeMemory is a flat byte slice implementing memio.Memory for tests.
type fakeMemory struct {
	data []byte
}

func newFakeMemory(pages uint32) *fakeMemory {
	return &fakeMemory{data: make([]byte, pages*memio.WasmPageSize)}
}

func (m *fakeMemory) Size() uint32 { return uint32(len(m.data)) }
func (m *fakeMemory) Read(offset uint32, out []byte) error {
	if uint64(offset)+uint64(len(out)) > uint64(len(m.data)) {
		return hostcall.ErrOutOfBounds
	}
	copy(out, m.data[offset:])
	return nil
}
func (m *fakeMemory) Write(offset uint32, data []byte) error {
	if uint64(offset)+uint64(len(data)) > uint64(len(m.data)) {
		return hostcall.ErrOutOfBounds
	}
	copy(m.data[offset:], data)
	return nil
}
func (m *fakeMemory) Grow(deltaPages uint32) (uint32, error) {
	prev := uint32(len(m.data)) / memio.WasmPageSize
	m.data = append(m.data, make([]byte, deltaPages*memio.WasmPageSize)...)
	return prev, nil
}

func testProgram(b byte) ids.ActorId {
	var a ids.ActorId
	a[0] = b
	return a
}

func fixedOutcomeEnv(o hostcall.Outcome) EnvironmentFactory {
	return func(cfg EnvironmentConfig) (Environment, error) {
		return fakeEnv{outcome: o, mem: cfg.InitialMemory}, nil
	}
}

type fakeEnv struct {
	outcome hostcall.Outcome
	mem     memio.Memory
}

func (f fakeEnv) Memory() memio.Memory                                      { return f.mem }
func (f fakeEnv) Execute(entry types.DispatchKind) (hostcall.Outcome, error) { return f.outcome, nil }
func (f fakeEnv) TouchedPages() map[uint32][]byte                           { return nil }

func baseView() ProgramView {
	return ProgramView{
		ProgramId:   testProgram(1),
		Memory:      newFakeMemory(1),
		MemoryPages: 1,
		MaxPages:    16,
		Allocations: types.NewAllocationsTree(),
		Balance:     types.ZeroValue(),
	}
}

func TestExecuteSuccessProducesSuccessOutcome(t *testing.T) {
	dispatch := types.IncomingDispatch{Kind: types.Handle, Message: types.Message{Id: ids.MessageId{1}}}
	result, execErr := Execute(
		1_000_000_000_000, 1_000_000_000_000,
		dispatch, baseView(), Settings{Schedule: gas.DefaultSchedule()}, msgctx.Settings{},
		nil, fixedOutcomeEnv(hostcall.Success()),
	)
	if execErr != nil {
		t.Fatalf("Execute: %v", execErr)
	}
	if result.Outcome != journal.OutcomeSuccess {
		t.Fatalf("result.Outcome = %v, want Success", result.Outcome)
	}
	if result.GasBurned == 0 {
		t.Fatal("expected instrumentation/memory charges to have burned some gas")
	}
}

func TestExecuteTrapProducesTrapOutcome(t *testing.T) {
	dispatch := types.IncomingDispatch{Kind: types.Handle, Message: types.Message{Id: ids.MessageId{1}}}
	result, execErr := Execute(
		1_000_000_000_000, 1_000_000_000_000,
		dispatch, baseView(), Settings{Schedule: gas.DefaultSchedule()}, msgctx.Settings{},
		nil, fixedOutcomeEnv(hostcall.Trap(hostcall.TrapGasLimitExceeded)),
	)
	if execErr != nil {
		t.Fatalf("Execute: %v", execErr)
	}
	if result.Outcome != journal.OutcomeTrap || result.TrapKind != hostcall.TrapGasLimitExceeded {
		t.Fatalf("result = %+v, want Trap(GasLimitExceeded)", result)
	}
}

func TestExecuteInsufficientGasForInstrumentationIsActorError(t *testing.T) {
	dispatch := types.IncomingDispatch{Kind: types.Handle, Message: types.Message{Id: ids.MessageId{1}}}
	_, execErr := Execute(
		1, 1,
		dispatch, baseView(), Settings{Schedule: gas.DefaultSchedule()}, msgctx.Settings{},
		nil, fixedOutcomeEnv(hostcall.Success()),
	)
	if execErr == nil || execErr.Kind != ActorError {
		t.Fatalf("execErr = %v, want an ActorError", execErr)
	}
}

func TestExecuteSuccessSynthesizesAutoReplyWhenNoneSent(t *testing.T) {
	dispatch := types.IncomingDispatch{Kind: types.Handle, Message: types.Message{Id: ids.MessageId{1}, Source: testProgram(7)}}
	result, execErr := Execute(
		1_000_000_000_000, 1_000_000_000_000,
		dispatch, baseView(), Settings{Schedule: gas.DefaultSchedule()}, msgctx.Settings{},
		nil, fixedOutcomeEnv(hostcall.Success()),
	)
	if execErr != nil {
		t.Fatalf("Execute: %v", execErr)
	}
	if result.Reply == nil {
		t.Fatal("expected a synthesized auto-reply for a successful Handle dispatch with no explicit reply")
	}
	if result.Reply.Message.Destination != testProgram(7) {
		t.Fatalf("auto-reply destination = %v, want original source", result.Reply.Message.Destination)
	}
	if result.ReplySent {
		t.Fatal("ReplySent should report false: the reply was synthesized, not sent by the guest")
	}
}

func TestExecuteSignalDispatchNeverGetsAutoReply(t *testing.T) {
	dispatch := types.IncomingDispatch{Kind: types.Signal, Message: types.Message{Id: ids.MessageId{1}}}
	result, execErr := Execute(
		1_000_000_000_000, 1_000_000_000_000,
		dispatch, baseView(), Settings{Schedule: gas.DefaultSchedule()}, msgctx.Settings{},
		nil, fixedOutcomeEnv(hostcall.Success()),
	)
	if execErr != nil {
		t.Fatalf("Execute: %v", execErr)
	}
	if result.Reply != nil {
		t.Fatal("a Signal dispatch must never produce an auto-reply")
	}
}

func TestExecuteWaitOutcomeCarriesDuration(t *testing.T) {
	dispatch := types.IncomingDispatch{Kind: types.Handle, Message: types.Message{Id: ids.MessageId{1}}}
	result, execErr := Execute(
		1_000_000_000_000, 1_000_000_000_000,
		dispatch, baseView(), Settings{Schedule: gas.DefaultSchedule()}, msgctx.Settings{},
		nil, fixedOutcomeEnv(hostcall.Wait(hostcall.WaitFor, 42, true)),
	)
	if execErr != nil {
		t.Fatalf("Execute: %v", execErr)
	}
	if result.Outcome != journal.OutcomeWait || result.WaitDuration != 42 || !result.HasDuration {
		t.Fatalf("result = %+v, want Wait(duration=42)", result)
	}
}

// TestExecuteInstantiationAllowanceExhaustionRequeues exercises the
// instrumentation charge's NotEnoughAllowance branch: the dispatch's own gas
// limit affords the charge but the block's allowance does not, so the
// dispatch must be requeued (OutcomeGasAllowanceExceeded) rather than
// faulted as an ExecutionError.
func TestExecuteInstantiationAllowanceExhaustionRequeues(t *testing.T) {
	schedule := gas.DefaultSchedule()
	dispatch := types.IncomingDispatch{Kind: types.Handle, Message: types.Message{Id: ids.MessageId{1}}}
	result, execErr := Execute(
		schedule.Instantiation+1, schedule.Instantiation-1,
		dispatch, baseView(), Settings{Schedule: schedule}, msgctx.Settings{},
		nil, fixedOutcomeEnv(hostcall.Success()),
	)
	if execErr != nil {
		t.Fatalf("Execute: %v, want no ExecutionError", execErr)
	}
	if result.Outcome != journal.OutcomeGasAllowanceExceeded {
		t.Fatalf("result.Outcome = %v, want GasAllowanceExceeded", result.Outcome)
	}
	if result.GasBurned != 0 {
		t.Fatalf("result.GasBurned = %d, want 0: a failed charge must not debit either counter", result.GasBurned)
	}
}

// TestControlCtxWaitChargesWaitingFee confirms Wait debits the schedule's
// waiting fee before admitting the suspend, and that exhausting the gas
// limit turns the effect into an actor trap rather than silently waiting
// for free.
func TestControlCtxWaitChargesWaitingFee(t *testing.T) {
	schedule := gas.DefaultSchedule()
	fee := schedule.WaitingFee()

	counter := gas.NewCounter(fee+1_000, fee+1_000)
	ctl := controlCtx{counter: counter, waitingFee: fee}
	outcome := ctl.Wait(hostcall.WaitFor, 10, true)
	if outcome.Kind() != hostcall.TerminationWait {
		t.Fatalf("outcome = %+v, want Wait", outcome)
	}
	if counter.Burned() != fee {
		t.Fatalf("counter.Burned() = %d, want %d", counter.Burned(), fee)
	}

	starved := gas.NewCounter(fee-1, fee-1)
	ctl = controlCtx{counter: starved, waitingFee: fee}
	outcome = ctl.Wait(hostcall.WaitFor, 10, true)
	if outcome.Kind() != hostcall.TerminationTrap || outcome.TrapKind() != hostcall.TrapGasLimitExceeded {
		t.Fatalf("outcome = %+v, want Trap(GasLimitExceeded)", outcome)
	}
}

// TestControlCtxWakeChargesWakingFee confirms Wake debits the schedule's
// waking fee before recording the wake, and refuses the wake entirely when
// the fee cannot be afforded.
func TestControlCtxWakeChargesWakingFee(t *testing.T) {
	schedule := gas.DefaultSchedule()
	fee := schedule.WakingFee()
	mid := ids.MessageId{9}

	counter := gas.NewCounter(fee+1_000, fee+1_000)
	ctl := controlCtx{counter: counter, wakingFee: fee}
	if err := ctl.Wake(mid, 0); err != nil {
		t.Fatalf("Wake: %v", err)
	}
	if counter.Burned() != fee {
		t.Fatalf("counter.Burned() = %d, want %d", counter.Burned(), fee)
	}
	if len(ctl.awaken) != 1 || ctl.awaken[0] != mid {
		t.Fatalf("awaken = %v, want [%v]", ctl.awaken, mid)
	}

	starved := gas.NewCounter(fee-1, fee-1)
	ctl = controlCtx{counter: starved, wakingFee: fee}
	if err := ctl.Wake(mid, 0); err == nil || len(ctl.awaken) != 0 {
		t.Fatalf("Wake on starved counter: err=%v awaken=%v, want an error and no recorded wake", err, ctl.awaken)
	}
}
