package diff

// Portable scalar SAD.
//
// This is the reference implementation the vector backends are validated
// against, the fallback on CPUs without vector support, and the path for
// remainder bytes after the vector chunks. The inner loop is unrolled four
// wide; absDiff is small enough for the compiler to inline, keeping the
// loop branch-light.

// blockSumScalar sums abs(int(a[i]) - int(b[i])) over two equal-length
// ranges.
func blockSumScalar(a, b []byte) uint64 {
	var sum uint64
	n := len(a)

	i := 0
	for ; i+4 <= n; i += 4 {
		sum += absDiff(a[i], b[i]) +
			absDiff(a[i+1], b[i+1]) +
			absDiff(a[i+2], b[i+2]) +
			absDiff(a[i+3], b[i+3])
	}
	for ; i < n; i++ {
		sum += absDiff(a[i], b[i])
	}
	return sum
}

// absDiff widens both samples to signed int before subtracting, so byte
// pairs never underflow.
func absDiff(x, y byte) uint64 {
	d := int(x) - int(y)
	if d < 0 {
		d = -d
	}
	return uint64(d)
}
