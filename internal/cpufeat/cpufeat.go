// Package cpufeat reports which vector instruction tiers the running CPU
// supports. Detection runs once per process and is cached; querying is a
// pure, infallible read. Absence of every tier is a valid result, it simply
// routes work to the scalar path.
package cpufeat

import (
	"sync"

	"golang.org/x/sys/cpu"
)

// Features describes the vector tiers relevant to the difference kernels,
// most capable first.
type Features struct {
	// AVX2 enables the 32-byte VPSADBW path.
	AVX2 bool
	// SSE2 enables the 16-byte PSADBW path. Baseline on amd64.
	SSE2 bool
}

var (
	once     sync.Once
	detected Features
	forced   *Features
)

// Detect returns the available vector tiers. The first call queries the CPU;
// the result is cached for the life of the process.
func Detect() Features {
	if forced != nil {
		return *forced
	}
	once.Do(func() {
		detected = Features{
			AVX2: cpu.X86.HasAVX2,
			SSE2: cpu.X86.HasSSE2,
		}
	})
	return detected
}

// SetForced overrides detection with a fixed feature set. Tests only; not
// safe to call while other goroutines query Detect.
func SetForced(f Features) {
	forced = &f
}

// Reset clears any forced feature set and re-arms detection. Tests only.
func Reset() {
	forced = nil
	once = sync.Once{}
}
