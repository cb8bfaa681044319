// Package diff computes per-pair difference scores over frame sequences:
// tiered SAD kernels, the block-parallel pairwise engine, and the keyframe
// selector.
package diff

import "log/slog"

// Sum of Absolute Differences kernel.
//
// Every block of a frame pair lands in BlockSum, which dispatches to the
// widest SAD primitive the CPU offers:
//
//   kernel_amd64.s:    AVX2 VPSADBW over 32-byte chunks
//                      SSE2 PSADBW over 16-byte chunks
//   kernel_scalar.go:  portable fallback, also used for chunk remainders
//
// All backends share one numeric contract: each byte pair contributes
// abs(int(a) - int(b)) to an unsigned 64-bit accumulator, and every backend
// returns bit-identical sums for identical inputs. The hardware SAD
// instructions implement exactly this widening-subtract semantics.

// Backend identifies a SAD kernel implementation tier.
type Backend int

const (
	BackendScalar Backend = iota
	BackendSSE2
	BackendAVX2
)

func (b Backend) String() string {
	switch b {
	case BackendAVX2:
		return "AVX2"
	case BackendSSE2:
		return "SSE2"
	case BackendScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// ActiveBackend reports which backend runtime detection selected.
var ActiveBackend Backend

// blockSum is the runtime-dispatched SAD implementation.
var blockSum func(a, b []byte) uint64 = blockSumScalar

func init() {
	for _, bk := range []Backend{BackendAVX2, BackendSSE2, BackendScalar} {
		if impl := backendImpl(bk); impl != nil {
			ActiveBackend = bk
			blockSum = impl
			break
		}
	}
	slog.Debug("SAD kernel initialized", "backend", ActiveBackend.String())
}

// BlockSum returns the sum of absolute pairwise differences over two equal
// length byte ranges, treating each byte as an unsigned 0-255 sample. It
// never mutates its inputs. Panics if the lengths differ.
func BlockSum(a, b []byte) uint64 {
	if len(a) != len(b) {
		panic("diff: BlockSum ranges must have equal length")
	}
	return blockSum(a, b)
}

// AvailableBackends lists the backends the running CPU can execute, most
// capable first. The scalar backend is always present.
func AvailableBackends() []Backend {
	var out []Backend
	for _, bk := range []Backend{BackendAVX2, BackendSSE2, BackendScalar} {
		if backendImpl(bk) != nil {
			out = append(out, bk)
		}
	}
	return out
}

// BlockSumWith computes BlockSum on a specific backend. It reports false
// when that backend is unavailable on the running CPU. Panics if the
// lengths differ.
func BlockSumWith(bk Backend, a, b []byte) (uint64, bool) {
	impl := backendImpl(bk)
	if impl == nil {
		return 0, false
	}
	if len(a) != len(b) {
		panic("diff: BlockSum ranges must have equal length")
	}
	return impl(a, b), true
}
