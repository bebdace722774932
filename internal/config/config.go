// Package config holds the compiler and emulator knobs the CLI and the
// test harness share. Defaults come from the constructor; the CLI
// overrides from flags.
package config

// Options configures one compile-and-run pipeline.
type Options struct {
	// MemoryOptimised drops each function's SSA IR as soon as machine
	// code for it exists, trading diagnostics for peak heap.
	MemoryOptimised bool

	// EmulatorMemory is the emulator address-space size in bytes.
	EmulatorMemory uint32

	// InstrLimit bounds emulator execution; 0 means unlimited. Tests run
	// with a limit so a non-terminating shader traps instead of hanging.
	InstrLimit uint64

	// LoadBase is the address images are linked and loaded at. The
	// emulator's memory starts at address 0, so the bytes below LoadBase
	// are ordinary zeroed memory: a null-pointer load reads zero and does
	// not trap.
	LoadBase uint32

	// Tolerance is the maximum absolute error, in real-value terms, for
	// the test harness's ~= assertions.
	Tolerance float64

	// Debug turns on verbose logging and emulator tracing.
	Debug bool
}

// Default returns the options used when nothing is overridden: 1 MiB of
// emulator memory, a 10M instruction bound, and the Q32 tolerance used by
// the approximate-equality assertions (a few ULP of 16.16 plus the error
// the transcendental approximations accumulate).
func Default() Options {
	return Options{
		EmulatorMemory: 1 << 20,
		InstrLimit:     10_000_000,
		LoadBase:       0x1000,
		Tolerance:      1.0 / 256.0,
	}
}
