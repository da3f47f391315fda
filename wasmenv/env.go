// Package wasmenv implements the WASM environment (C6): it instantiates a
// program's compiled module against a real wazero runtime, binds the
// host-call table (C4) under the guest's "env" import module, primes the
// instance's linear memory from the program's persisted pages, and runs a
// single entry point to a termination Outcome.
//
// The lazy-page engine (C3) is owned here rather than by the executor: a
// wazero-backed guest's real linear memory only exists once its module is
// instantiated, so only this package can bind an engine to the memory the
// guest will actually touch. Memory returns that lazy-charging view for the
// executor's allocator to grow against; TouchedPages reports what the
// journal builder must persist.
package wasmenv

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"

	"github.com/gear-tech/gear-core-go/executor"
	"github.com/gear-tech/gear-core-go/gas"
	"github.com/gear-tech/gear-core-go/hostcall"
	"github.com/gear-tech/gear-core-go/lazypages"
	"github.com/gear-tech/gear-core-go/log"
	"github.com/gear-tech/gear-core-go/memio"
	"github.com/gear-tech/gear-core-go/types"
)

// stackEndGlobal and gasGlobal are the two well-known globals a compiled
// module may export: the instrumented stack boundary (so lazy pages never
// charge or persist stack memory) and the live gas counter instrumentation
// decrements directly without going through a host call.
const (
	stackEndGlobal = "__gear_stack_end"
	gasGlobal      = "gear_gas"
	memoryExport   = "memory"
)

var errNoMemory = errors.New("wasmenv: guest module exports no linear memory")

// Environment is the production executor.Environment, backed by a wazero
// runtime instance dedicated to a single dispatch.
type Environment struct {
	runtime     wazero.Runtime
	guestModule api.Module

	table *hostcall.Table
	ext   hostcall.Externalities

	gasCounter *gas.Counter
	gasGlobal  api.MutableGlobal

	engine      *lazypages.Engine
	memory      memio.Memory
	allocations types.AllocationsTree

	pending *hostcall.Outcome
	logger  *log.Logger
}

// New builds an Environment from cfg: it binds every host call in bindings
// under an "env" host module, instantiates cfg.Code against it, primes the
// resulting memory from cfg.InitialMemory, and constructs a lazy-page
// engine over the real guest memory. It is the EnvironmentFactory the
// executor calls in production.
func New(cfg executor.EnvironmentConfig) (executor.Environment, error) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)

	env := &Environment{
		table:      cfg.Table,
		ext:        cfg.Ext,
		gasCounter: cfg.Counter,
		logger:     log.Default().Module("wasmenv"),
	}
	if cfg.Allocations != nil {
		env.allocations = *cfg.Allocations
	}

	hostBuilder := rt.NewHostModuleBuilder("env")
	for _, b := range bindings {
		b := b
		hostBuilder.NewFunctionBuilder().
			WithFunc(env.makeHostFunc(b)).
			Export(string(b.name))
	}
	if _, err := hostBuilder.Instantiate(ctx); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("wasmenv: binding host module: %w", err)
	}

	guestModule, err := rt.InstantiateModuleFromBinary(ctx, cfg.Code)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("wasmenv: instantiating guest module: %w", err)
	}
	env.guestModule = guestModule

	mem := guestModule.ExportedMemory(memoryExport)
	if mem == nil {
		mem = guestModule.Memory()
	}
	if mem == nil {
		rt.Close(ctx)
		return nil, errNoMemory
	}
	adapter := &wazeroMemory{mem: mem}
	if err := primeMemory(adapter, cfg.InitialMemory); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("wasmenv: priming memory: %w", err)
	}

	engine := lazypages.New(adapter, cfg.Counter, cfg.LazyPages, cfg.Storage)
	if g := guestModule.ExportedGlobal(stackEndGlobal); g != nil {
		engine.ExemptStackPages(memio.GearPage(uint32(g.Get()) / memio.GearPageSize))
	}
	env.engine = engine

	// Every access this environment performs on the guest's behalf --
	// allocator growth and the per-call memory-access registry below --
	// is host-triggered rather than a guest instruction directly faulting
	// a page, so it is billed at the HostFunc rate.
	env.memory = engine.Wrapped(lazypages.HostFunc)
	env.runtime = rt

	if g := guestModule.ExportedGlobal(gasGlobal); g != nil {
		if mg, ok := g.(api.MutableGlobal); ok {
			env.gasGlobal = mg
		}
	}

	return env, nil
}

// Memory returns the lazy-charging view of the guest's real linear memory,
// for the executor's allocator to grow.
func (e *Environment) Memory() memio.Memory { return e.memory }

// TouchedPages reports every Gear page written during this execution, with
// its final contents, for the journal builder to persist.
func (e *Environment) TouchedPages() map[uint32][]byte {
	written := e.engine.WrittenPages()
	if len(written) == 0 {
		return nil
	}
	out := make(map[uint32][]byte, len(written))
	for _, p := range written {
		data, err := e.engine.PageBytes(p)
		if err != nil {
			continue
		}
		out[uint32(p)] = data
	}
	return out
}

// Execute runs entry's exported function to termination. A control call
// that ends the dispatch (wait/exit/leave/panic/...) closes the guest
// module with CloseWithExitCode from inside the host function, which
// unwinds fn.Call's in-flight execution and surfaces as a *sys.ExitError
// here; e.pending carries the real Outcome across that boundary.
func (e *Environment) Execute(entry types.DispatchKind) (hostcall.Outcome, error) {
	name := exportName(entry)
	fn := e.guestModule.ExportedFunction(name)
	if fn == nil {
		return hostcall.Outcome{}, fmt.Errorf("wasmenv: guest exports no %q entry point", name)
	}

	e.pending = nil
	ctx := context.Background()
	e.syncGasBefore()

	_, err := fn.Call(ctx)
	if err != nil {
		if e.pending != nil {
			e.syncGasAfter()
			return *e.pending, nil
		}
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			return hostcall.Trap(hostcall.TrapUnrecoverableExt), nil
		}
		e.logger.Debug("guest execution trapped", "entry", name, "error", err)
		return hostcall.Trap(hostcall.TrapPanic), nil
	}

	if o := e.syncGasAfter(); o.Kind() != hostcall.TerminationSuccess {
		return o, nil
	}
	return hostcall.Success(), nil
}

// terminate records o as the dispatch's outcome and closes the guest
// module, the only way to abort a Call already in progress inside a host
// function without returning through every intervening WASM frame.
func (e *Environment) terminate(ctx context.Context, o hostcall.Outcome) {
	e.pending = &o
	_ = e.guestModule.CloseWithExitCode(ctx, 1)
}

// syncGasBefore writes the counter's current headroom into the gear_gas
// global, if the guest exports one, so instrumentation-injected metering
// instructions burn from the same budget host calls charge against.
func (e *Environment) syncGasBefore() {
	if e.gasGlobal == nil {
		return
	}
	e.gasGlobal.Set(e.gasCounter.Left())
}

// syncGasAfter reconciles any gas instrumentation burned directly against
// the global (without a host call) back into the counter, overriding the
// outcome if that reconciliation itself could not be afforded: a gas-limit
// shortfall traps the actor, an allowance shortfall instead requests a
// requeue.
func (e *Environment) syncGasAfter() hostcall.Outcome {
	if e.gasGlobal == nil {
		return hostcall.Outcome{}
	}
	before := e.gasCounter.Left()
	after := e.gasGlobal.Get()
	if after >= before {
		return hostcall.Outcome{}
	}
	burned := before - after
	switch e.gasCounter.Charge(burned) {
	case gas.NotEnoughGas:
		return hostcall.Trap(hostcall.TrapGasLimitExceeded)
	case gas.NotEnoughAllowance:
		return hostcall.GasAllowanceExceeded()
	}
	return hostcall.Outcome{}
}

func exportName(kind types.DispatchKind) string {
	switch kind {
	case types.Init:
		return "init"
	case types.Reply:
		return "handle_reply"
	case types.Signal:
		return "handle_signal"
	default:
		return "handle"
	}
}

// wazeroMemory adapts a wazero api.Memory (a live guest instance's linear
// memory) to memio.Memory, the narrow interface the rest of the runtime
// depends on.
type wazeroMemory struct {
	mem api.Memory
}

func (w *wazeroMemory) Size() uint32 { return w.mem.Size() }

func (w *wazeroMemory) Read(offset uint32, out []byte) error {
	data, ok := w.mem.Read(offset, uint32(len(out)))
	if !ok {
		return hostcall.ErrOutOfBounds
	}
	copy(out, data)
	return nil
}

func (w *wazeroMemory) Write(offset uint32, data []byte) error {
	if !w.mem.Write(offset, data) {
		return hostcall.ErrOutOfBounds
	}
	return nil
}

func (w *wazeroMemory) Grow(deltaPages uint32) (uint32, error) {
	prev, ok := w.mem.Grow(deltaPages)
	if !ok {
		return 0, hostcall.ErrOutOfBounds
	}
	return prev, nil
}

// primeMemory copies src's current contents into dst, copying at most
// dst.Size() bytes, so a src larger than dst is truncated; it is a no-op
// for a nil or empty src, matching a from-scratch init dispatch that has
// no persisted pages yet.
func primeMemory(dst memio.Memory, src memio.Memory) error {
	if src == nil {
		return nil
	}
	n := src.Size()
	if n == 0 {
		return nil
	}
	if dst.Size() < n {
		n = dst.Size()
	}
	buf := make([]byte, n)
	if err := src.Read(0, buf); err != nil {
		return err
	}
	return dst.Write(0, buf)
}
