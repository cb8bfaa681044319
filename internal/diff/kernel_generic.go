//go:build !amd64

package diff

// backendImpl on architectures without a vector kernel: only the scalar
// path exists.
func backendImpl(bk Backend) func(a, b []byte) uint64 {
	if bk == BackendScalar {
		return blockSumScalar
	}
	return nil
}
