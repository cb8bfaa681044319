package diff

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/framedelta/internal/frame"
	"github.com/cwbudde/framedelta/internal/pool"
)

// DefaultBlockSize is the block decomposition size in logical pixels.
const DefaultBlockSize = 8192

// MismatchScore is the sentinel score for a frame pair whose dimensions
// differ. It exceeds every finite threshold, so a mismatched pair is always
// selected as a keyframe rather than failing the batch.
const MismatchScore = math.MaxFloat64

// Options configure a difference engine.
type Options struct {
	// BlockSize is the number of pixels handed to one kernel dispatch.
	// Must be positive. Block boundaries never change the total, only the
	// grain of parallelism.
	BlockSize int

	// Vectorize selects the runtime-detected SIMD backend when true and
	// forces the scalar path when false.
	Vectorize bool
}

// Engine computes one difference score per adjacent frame pair. It borrows
// frames read-only, keeps no state between runs, and fans block work out to
// the pool it was built with.
type Engine struct {
	blockSize int
	pool      *pool.Pool
	kernel    func(a, b []byte) uint64
}

// NewEngine builds an engine over the given worker pool.
func NewEngine(p *pool.Pool, opts Options) (*Engine, error) {
	if p == nil {
		return nil, &frame.ConfigError{Field: "pool", Reason: "is required"}
	}
	if opts.BlockSize <= 0 {
		return nil, &frame.ConfigError{Field: "blockSize", Reason: "must be positive"}
	}
	kernel := blockSum
	if !opts.Vectorize {
		kernel = blockSumScalar
	}
	return &Engine{
		blockSize: opts.BlockSize,
		pool:      p,
		kernel:    kernel,
	}, nil
}

// blockTask is one kernel dispatch: pixels [lo, hi) of pair `pair`.
type blockTask struct {
	pair int
	lo   int
	hi   int
}

// ScoreFrames returns the mean absolute per-pixel difference for every
// adjacent frame pair, in pair order: scores[i] compares frames[i] and
// frames[i+1]. Fewer than two frames yield an empty result. A pair with
// mismatched dimensions scores MismatchScore instead of failing.
//
// Blocks within a pair and independent pairs all run concurrently on the
// pool. Partial sums are exact integers combined by commutative addition,
// so the result is identical to strictly sequential summation at any
// parallelism degree.
func (e *Engine) ScoreFrames(frames []frame.Frame) []float64 {
	if len(frames) < 2 {
		return nil
	}

	pairs := len(frames) - 1
	scores := make([]float64, pairs)
	sums := make([]uint64, pairs)

	// Decompose the logical pixel range [0, width*height) of each
	// comparable pair into blocks; the last block may be short. Padding
	// bytes are never part of any block.
	var tasks []blockTask
	for p := 0; p < pairs; p++ {
		if !frames[p].SameGeometry(frames[p+1]) {
			scores[p] = MismatchScore
			continue
		}
		pixels := frames[p].PixelCount()
		for lo := 0; lo < pixels; lo += e.blockSize {
			hi := lo + e.blockSize
			if hi > pixels {
				hi = pixels
			}
			tasks = append(tasks, blockTask{pair: p, lo: lo, hi: hi})
		}
	}

	e.pool.Map(len(tasks), func(i int) {
		t := tasks[i]
		a := frames[t.pair].Data[t.lo:t.hi]
		b := frames[t.pair+1].Data[t.lo:t.hi]
		atomic.AddUint64(&sums[t.pair], e.kernel(a, b))
	})

	for p := 0; p < pairs; p++ {
		if scores[p] == MismatchScore {
			continue
		}
		scores[p] = float64(sums[p]) / float64(frames[p].PixelCount())
	}
	return scores
}
