//go:build amd64

package diff

import "github.com/cwbudde/framedelta/internal/cpufeat"

const (
	sse2ChunkBytes = 16
	avx2ChunkBytes = 32
)

// sadChunksSSE2 sums absolute differences over n 16-byte chunks using
// PSADBW. Implemented in kernel_amd64.s.
//
//go:noescape
func sadChunksSSE2(a, b *byte, n int) uint64

// sadChunksAVX2 sums absolute differences over n 32-byte chunks using
// VPSADBW. Implemented in kernel_amd64.s.
//
//go:noescape
func sadChunksAVX2(a, b *byte, n int) uint64

// blockSumSSE2 runs full 16-byte chunks in assembly and the remainder on
// the scalar path.
func blockSumSSE2(a, b []byte) uint64 {
	chunks := len(a) / sse2ChunkBytes
	var sum uint64
	if chunks > 0 {
		sum = sadChunksSSE2(&a[0], &b[0], chunks)
	}
	if tail := chunks * sse2ChunkBytes; tail < len(a) {
		sum += blockSumScalar(a[tail:], b[tail:])
	}
	return sum
}

// blockSumAVX2 runs full 32-byte chunks in assembly and the remainder on
// the scalar path.
func blockSumAVX2(a, b []byte) uint64 {
	chunks := len(a) / avx2ChunkBytes
	var sum uint64
	if chunks > 0 {
		sum = sadChunksAVX2(&a[0], &b[0], chunks)
	}
	if tail := chunks * avx2ChunkBytes; tail < len(a) {
		sum += blockSumScalar(a[tail:], b[tail:])
	}
	return sum
}

// backendImpl maps a backend to its implementation, or nil when the running
// CPU lacks the tier.
func backendImpl(bk Backend) func(a, b []byte) uint64 {
	f := cpufeat.Detect()
	switch bk {
	case BackendAVX2:
		if f.AVX2 {
			return blockSumAVX2
		}
	case BackendSSE2:
		if f.SSE2 {
			return blockSumSSE2
		}
	case BackendScalar:
		return blockSumScalar
	}
	return nil
}
