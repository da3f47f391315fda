// Package memaccess implements the memory access registry (C2): host
// calls never touch linear memory directly, they register intended reads
// and writes and receive an opaque Token, then later exchange that token
// for the actual bytes through Read/Write. This lets the registry
// aggregate every intended access for a host call and charge gas for them
// once, before performing any real I/O.
package memaccess

import (
	"errors"

	"github.com/gear-tech/gear-core-go/gas"
	"github.com/gear-tech/gear-core-go/memio"
	"github.com/gear-tech/gear-core-go/types"
)

// Errors returned by Registry methods.
var (
	// ErrOutOfBounds means a registered access falls outside the program's
	// current allocations.
	ErrOutOfBounds = errors.New("memaccess: access out of bounds")
	// ErrDecode means a register-as-typed access could not be decoded into
	// the requested shape (wrong length).
	ErrDecode = errors.New("memaccess: decode error")
	// ErrGasLimitExceeded is returned by Read/Write when the
	// aggregated charge could not be paid.
	ErrGasLimitExceeded = errors.New("memaccess: gas limit exceeded while charging for memory access")
)

// accessKind distinguishes a registered read from a registered write.
type accessKind uint8

const (
	kindRead accessKind = iota
	kindWrite
)

type access struct {
	kind accessKind
	ptr  uint32
	len  uint32
}

// Token identifies one registered access, returned by RegisterRead/Write
// and consumed by Read/Write. A Token is only valid for the Registry that
// issued it.
type Token int

// Registry accumulates a host call's intended memory accesses, charges gas
// for all of them the first time real I/O is requested, and then serves
// that I/O. A Registry is scoped to a single host call invocation; the
// WASM environment constructs a fresh one per call.
type Registry struct {
	mem         memio.Memory
	counter     *gas.Counter
	perByteRate uint64
	allocations types.AllocationsTree

	accesses []access
	charged  bool
}

// New builds a Registry bound to mem, debiting counter for aggregated
// access bytes at perByteRate once Read or Write is first called.
// allocations bounds which pages a registered access may legally touch.
func New(mem memio.Memory, counter *gas.Counter, perByteRate uint64, allocations types.AllocationsTree) *Registry {
	return &Registry{mem: mem, counter: counter, perByteRate: perByteRate, allocations: allocations}
}

// RegisterRead records an intended read of len bytes starting at ptr and
// returns a Token to exchange for the bytes via Read.
func (r *Registry) RegisterRead(ptr, length uint32) Token {
	r.accesses = append(r.accesses, access{kind: kindRead, ptr: ptr, len: length})
	return Token(len(r.accesses) - 1)
}

// RegisterWrite records an intended write of len bytes starting at ptr and
// returns a Token to exchange for performing the write via Write.
func (r *Registry) RegisterWrite(ptr, length uint32) Token {
	r.accesses = append(r.accesses, access{kind: kindWrite, ptr: ptr, len: length})
	return Token(len(r.accesses) - 1)
}

// RegisterReadSized is the fixed-size counterpart of RegisterRead for host
// calls that read a known-size decoded value (the spec's
// register_read_as<T>); callers pass the encoded size of T.
func (r *Registry) RegisterReadSized(ptr uint32, size int) Token {
	return r.RegisterRead(ptr, uint32(size))
}

// RegisterWriteSized is the fixed-size counterpart of RegisterWrite.
func (r *Registry) RegisterWriteSized(ptr uint32, size int) Token {
	return r.RegisterWrite(ptr, uint32(size))
}

// boundsCheck validates a single access against the program's current
// allocations: every Gear page the [ptr, ptr+len) range touches must fall
// within an allocated WASM page.
func (r *Registry) boundsCheck(a access) error {
	if a.len == 0 {
		return nil
	}
	startPage := memio.GearPageOf(a.ptr)
	endPage := memio.GearPageOf(a.ptr + a.len - 1)
	for p := startPage; p <= endPage; p++ {
		wasmPage := uint32(p) / memio.GearPagesPerWasmPage
		if !r.allocations.Contains(wasmPage) {
			return ErrOutOfBounds
		}
	}
	return nil
}

// charge validates bounds for every registered access and debits gas for
// their aggregated length, exactly once per Registry.
func (r *Registry) charge() error {
	if r.charged {
		return nil
	}
	var total uint64
	// Coalesce overlapping write ranges onto distinct Gear pages so a
	// page touched by two registered writes is only billed once, matching
	// the "writes to overlapping pages are coalesced for charging
	// purposes" rule.
	billedWritePages := make(map[memio.GearPage]struct{})
	for _, a := range r.accesses {
		if err := r.boundsCheck(a); err != nil {
			return err
		}
		if a.kind == kindWrite && a.len > 0 {
			start := memio.GearPageOf(a.ptr)
			end := memio.GearPageOf(a.ptr + a.len - 1)
			for p := start; p <= end; p++ {
				if _, seen := billedWritePages[p]; seen {
					continue
				}
				billedWritePages[p] = struct{}{}
				total += memio.GearPageSize
			}
		} else {
			total += uint64(a.len)
		}
	}
	cost := total * r.perByteRate
	if r.counter.Charge(cost) != gas.Charged {
		return ErrGasLimitExceeded
	}
	r.charged = true
	return nil
}

// Read returns the bytes registered under token, charging for all
// registered accesses on the registry's first Read or Write call.
func (r *Registry) Read(token Token) ([]byte, error) {
	if int(token) < 0 || int(token) >= len(r.accesses) {
		return nil, ErrOutOfBounds
	}
	a := r.accesses[token]
	if a.kind != kindRead {
		return nil, ErrOutOfBounds
	}
	if err := r.charge(); err != nil {
		return nil, err
	}
	buf := make([]byte, a.len)
	if err := r.mem.Read(a.ptr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Write performs the write registered under token using data, charging for
// all registered accesses on the registry's first Read or Write call. len
// (data) must equal the length registered for token.
func (r *Registry) Write(token Token, data []byte) error {
	if int(token) < 0 || int(token) >= len(r.accesses) {
		return ErrOutOfBounds
	}
	a := r.accesses[token]
	if a.kind != kindWrite || uint32(len(data)) != a.len {
		return ErrOutOfBounds
	}
	if err := r.charge(); err != nil {
		return err
	}
	if err := r.mem.Write(a.ptr, data); err != nil {
		return err
	}
	return nil
}
