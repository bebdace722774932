// Package emulator provides an instruction-accurate RV32IMAC interpreter
// used for host testing and as the execution substrate on platforms where
// in-place JIT is not available.
package emulator

import (
	"fmt"
	"io"
	"os"

	"github.com/lightplayer/lpxc/internal/riscv"
)

// NumRegs is the number of general-purpose registers (x0..x31).
const NumRegs = 32

// TrapCause identifies why execution stopped.
type TrapCause int

const (
	TrapNone               TrapCause = iota
	TrapIllegalInstruction           // decode failure or floating-point opcode
	TrapMisalignedAccess
	TrapOutOfBounds
	TrapEnvironmentCall // handled and resumed unless the syscall itself aborts
	TrapBreakpoint
	TrapInstructionLimit
	TrapAbort // syscall 2 (abort) requested a stop
)

var causeNames = [...]string{
	TrapNone:               "none",
	TrapIllegalInstruction: "illegal instruction",
	TrapMisalignedAccess:   "misaligned access",
	TrapOutOfBounds:        "out of bounds access",
	TrapEnvironmentCall:    "environment call",
	TrapBreakpoint:         "breakpoint",
	TrapInstructionLimit:   "instruction count limit exceeded",
	TrapAbort:              "abort",
}

func (c TrapCause) String() string {
	if int(c) < len(causeNames) {
		return causeNames[c]
	}
	return "unknown trap"
}

// Trap is a non-local exit from emulator execution, carrying enough state to
// diagnose the cause.
type Trap struct {
	Cause TrapCause
	PC    uint32
	Msg   string
	Regs  [NumRegs]uint32
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap at pc=%#08x: %s: %s", t.PC, t.Cause, t.Msg)
}

// Syscall numbers: number in a7, arguments in a0..a3, return in a0.
const (
	SysLog         = 1
	SysAbort       = 2
	SysGetCycles   = 3
	SysHostCallback = 4
)

// HostCallback lets embedders (chiefly the builtins library under test)
// observe syscall 4 without the emulator knowing anything about its payload.
type HostCallback func(id, ptr, length uint32, mem []byte) (uint32, error)

// Memory is a flat byte-addressable address space with guard pages at both
// ends; any access that would read or write outside [0, len(bytes)) traps.
type Memory struct {
	bytes []byte
}

// NewMemory allocates a zero-initialised memory image of the given size.
func NewMemory(size uint32) *Memory {
	return &Memory{bytes: make([]byte, size)}
}

// Bytes exposes the backing slice, e.g. to load a relocated image before a run.
func (m *Memory) Bytes() []byte { return m.bytes }

// Size returns the address space size in bytes.
func (m *Memory) Size() uint32 { return uint32(len(m.bytes)) }

func (m *Memory) boundsCheck(addr, width uint32) error {
	if uint64(addr)+uint64(width) > uint64(len(m.bytes)) {
		return fmt.Errorf("address %#08x+%d out of bounds (size %#08x)", addr, width, len(m.bytes))
	}
	return nil
}

func (m *Memory) LoadWord(addr uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, fmt.Errorf("misaligned word load at %#08x", addr)
	}
	if err := m.boundsCheck(addr, 4); err != nil {
		return 0, err
	}
	b := m.bytes[addr:]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (m *Memory) StoreWord(addr, v uint32) error {
	if addr%4 != 0 {
		return fmt.Errorf("misaligned word store at %#08x", addr)
	}
	if err := m.boundsCheck(addr, 4); err != nil {
		return err
	}
	b := m.bytes[addr:]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	return nil
}

func (m *Memory) LoadHalf(addr uint32) (uint16, error) {
	if addr%2 != 0 {
		return 0, fmt.Errorf("misaligned half load at %#08x", addr)
	}
	if err := m.boundsCheck(addr, 2); err != nil {
		return 0, err
	}
	b := m.bytes[addr:]
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func (m *Memory) StoreHalf(addr uint32, v uint16) error {
	if addr%2 != 0 {
		return fmt.Errorf("misaligned half store at %#08x", addr)
	}
	if err := m.boundsCheck(addr, 2); err != nil {
		return err
	}
	b := m.bytes[addr:]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	return nil
}

func (m *Memory) LoadByte(addr uint32) (uint8, error) {
	if err := m.boundsCheck(addr, 1); err != nil {
		return 0, err
	}
	return m.bytes[addr], nil
}

func (m *Memory) StoreByte(addr uint32, v uint8) error {
	if err := m.boundsCheck(addr, 1); err != nil {
		return err
	}
	m.bytes[addr] = v
	return nil
}

// decodeCacheEntry caches a decode result per address.
type decodeCacheEntry struct {
	valid bool
	dec   riscv.Decoded
	err   error
}

// Options configures a CPU.
type Options struct {
	InstrLimit   uint64 // 0 means unlimited
	Output       io.Writer
	HostCallback HostCallback
	Trace        func(pc uint32, d riscv.Decoded) // optional per-instruction hook
}

// CPU is a single RV32IMAC hart: a register file, a PC, and a memory.
type CPU struct {
	regs    [NumRegs]uint32
	pc      uint32
	mem     *Memory
	cycles  uint64
	opts    Options
	dcache  map[uint32]decodeCacheEntry
}

// NewCPU creates a CPU bound to the given memory image.
func NewCPU(mem *Memory, opts Options) *CPU {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &CPU{
		mem:    mem,
		opts:   opts,
		dcache: make(map[uint32]decodeCacheEntry),
	}
}

// Reg reads a general-purpose register; x0 is always 0.
func (c *CPU) Reg(r riscv.Reg) uint32 {
	if r == riscv.Zero {
		return 0
	}
	return c.regs[r]
}

// SetReg writes a general-purpose register; writes to x0 are discarded.
func (c *CPU) SetReg(r riscv.Reg, v uint32) {
	if r == riscv.Zero {
		return
	}
	c.regs[r] = v
}

// PC returns the current program counter.
func (c *CPU) PC() uint32 { return c.pc }

// SetPC sets the program counter, e.g. before calling into a function.
func (c *CPU) SetPC(pc uint32) { c.pc = pc }

// Cycles returns the number of instructions retired so far.
func (c *CPU) Cycles() uint64 { return c.cycles }

// Memory exposes the CPU's address space.
func (c *CPU) Memory() *Memory { return c.mem }

func (c *CPU) decode(addr uint32) (riscv.Decoded, error) {
	if e, ok := c.dcache[addr]; ok {
		return e.dec, e.err
	}
	word, err := c.mem.LoadWord(addr)
	if err != nil {
		c.dcache[addr] = decodeCacheEntry{valid: true, err: err}
		return riscv.Decoded{}, err
	}
	if riscv.IsFloatingPoint(word) {
		err := fmt.Errorf("floating-point instruction %#08x is illegal on this target", word)
		c.dcache[addr] = decodeCacheEntry{valid: true, err: err}
		return riscv.Decoded{}, err
	}
	dec, err := riscv.Decode(word)
	c.dcache[addr] = decodeCacheEntry{valid: true, dec: dec, err: err}
	return dec, err
}

func (c *CPU) trap(cause TrapCause, msg string) *Trap {
	return &Trap{Cause: cause, PC: c.pc, Msg: msg, Regs: c.regs}
}

// Step executes a single instruction and advances the PC (unless the
// instruction itself redirects it). It returns a *Trap on any non-local
// exit, including a successful ECALL that the host chooses to treat as
// fatal.
func (c *CPU) Step() *Trap {
	if c.opts.InstrLimit != 0 && c.cycles >= c.opts.InstrLimit {
		return c.trap(TrapInstructionLimit, fmt.Sprintf("exceeded limit of %d instructions", c.opts.InstrLimit))
	}

	dec, err := c.decode(c.pc)
	if err != nil {
		return c.trap(TrapIllegalInstruction, err.Error())
	}
	if c.opts.Trace != nil {
		c.opts.Trace(c.pc, dec)
	}

	nextPC := c.pc + 4
	var tr *Trap

	switch dec.Mnemonic {
	case riscv.MnADD:
		c.SetReg(dec.Rd, c.Reg(dec.Rs1)+c.Reg(dec.Rs2))
	case riscv.MnSUB:
		c.SetReg(dec.Rd, c.Reg(dec.Rs1)-c.Reg(dec.Rs2))
	case riscv.MnSLL:
		c.SetReg(dec.Rd, c.Reg(dec.Rs1)<<(c.Reg(dec.Rs2)&0x1f))
	case riscv.MnSLT:
		c.SetReg(dec.Rd, b2u(int32(c.Reg(dec.Rs1)) < int32(c.Reg(dec.Rs2))))
	case riscv.MnSLTU:
		c.SetReg(dec.Rd, b2u(c.Reg(dec.Rs1) < c.Reg(dec.Rs2)))
	case riscv.MnXOR:
		c.SetReg(dec.Rd, c.Reg(dec.Rs1)^c.Reg(dec.Rs2))
	case riscv.MnSRL:
		c.SetReg(dec.Rd, c.Reg(dec.Rs1)>>(c.Reg(dec.Rs2)&0x1f))
	case riscv.MnSRA:
		c.SetReg(dec.Rd, uint32(int32(c.Reg(dec.Rs1))>>(c.Reg(dec.Rs2)&0x1f)))
	case riscv.MnOR:
		c.SetReg(dec.Rd, c.Reg(dec.Rs1)|c.Reg(dec.Rs2))
	case riscv.MnAND:
		c.SetReg(dec.Rd, c.Reg(dec.Rs1)&c.Reg(dec.Rs2))

	case riscv.MnMUL:
		c.SetReg(dec.Rd, c.Reg(dec.Rs1)*c.Reg(dec.Rs2))
	case riscv.MnMULH:
		prod := int64(int32(c.Reg(dec.Rs1))) * int64(int32(c.Reg(dec.Rs2)))
		c.SetReg(dec.Rd, uint32(prod>>32))
	case riscv.MnMULHSU:
		prod := int64(int32(c.Reg(dec.Rs1))) * int64(c.Reg(dec.Rs2))
		c.SetReg(dec.Rd, uint32(prod>>32))
	case riscv.MnMULHU:
		prod := uint64(c.Reg(dec.Rs1)) * uint64(c.Reg(dec.Rs2))
		c.SetReg(dec.Rd, uint32(prod>>32))
	case riscv.MnDIV:
		a, b := int32(c.Reg(dec.Rs1)), int32(c.Reg(dec.Rs2))
		c.SetReg(dec.Rd, uint32(divRV32(a, b)))
	case riscv.MnDIVU:
		a, b := c.Reg(dec.Rs1), c.Reg(dec.Rs2)
		if b == 0 {
			c.SetReg(dec.Rd, 0xffffffff)
		} else {
			c.SetReg(dec.Rd, a/b)
		}
	case riscv.MnREM:
		a, b := int32(c.Reg(dec.Rs1)), int32(c.Reg(dec.Rs2))
		c.SetReg(dec.Rd, uint32(remRV32(a, b)))
	case riscv.MnREMU:
		a, b := c.Reg(dec.Rs1), c.Reg(dec.Rs2)
		if b == 0 {
			c.SetReg(dec.Rd, a)
		} else {
			c.SetReg(dec.Rd, a%b)
		}

	case riscv.MnADDI:
		c.SetReg(dec.Rd, c.Reg(dec.Rs1)+uint32(dec.Imm))
	case riscv.MnSLTI:
		c.SetReg(dec.Rd, b2u(int32(c.Reg(dec.Rs1)) < dec.Imm))
	case riscv.MnSLTIU:
		c.SetReg(dec.Rd, b2u(c.Reg(dec.Rs1) < uint32(dec.Imm)))
	case riscv.MnXORI:
		c.SetReg(dec.Rd, c.Reg(dec.Rs1)^uint32(dec.Imm))
	case riscv.MnORI:
		c.SetReg(dec.Rd, c.Reg(dec.Rs1)|uint32(dec.Imm))
	case riscv.MnANDI:
		c.SetReg(dec.Rd, c.Reg(dec.Rs1)&uint32(dec.Imm))
	case riscv.MnSLLI:
		c.SetReg(dec.Rd, c.Reg(dec.Rs1)<<uint32(dec.Imm))
	case riscv.MnSRLI:
		c.SetReg(dec.Rd, c.Reg(dec.Rs1)>>uint32(dec.Imm))
	case riscv.MnSRAI:
		c.SetReg(dec.Rd, uint32(int32(c.Reg(dec.Rs1))>>uint32(dec.Imm)))

	case riscv.MnLB, riscv.MnLH, riscv.MnLW, riscv.MnLBU, riscv.MnLHU:
		tr = c.execLoad(dec)
	case riscv.MnSB, riscv.MnSH, riscv.MnSW:
		tr = c.execStore(dec)

	case riscv.MnBEQ:
		if c.Reg(dec.Rs1) == c.Reg(dec.Rs2) {
			nextPC = c.pc + uint32(dec.Imm)
		}
	case riscv.MnBNE:
		if c.Reg(dec.Rs1) != c.Reg(dec.Rs2) {
			nextPC = c.pc + uint32(dec.Imm)
		}
	case riscv.MnBLT:
		if int32(c.Reg(dec.Rs1)) < int32(c.Reg(dec.Rs2)) {
			nextPC = c.pc + uint32(dec.Imm)
		}
	case riscv.MnBGE:
		if int32(c.Reg(dec.Rs1)) >= int32(c.Reg(dec.Rs2)) {
			nextPC = c.pc + uint32(dec.Imm)
		}
	case riscv.MnBLTU:
		if c.Reg(dec.Rs1) < c.Reg(dec.Rs2) {
			nextPC = c.pc + uint32(dec.Imm)
		}
	case riscv.MnBGEU:
		if c.Reg(dec.Rs1) >= c.Reg(dec.Rs2) {
			nextPC = c.pc + uint32(dec.Imm)
		}

	case riscv.MnJAL:
		c.SetReg(dec.Rd, nextPC)
		nextPC = c.pc + uint32(dec.Imm)
	case riscv.MnJALR:
		target := (c.Reg(dec.Rs1) + uint32(dec.Imm)) &^ 1
		c.SetReg(dec.Rd, nextPC)
		nextPC = target

	case riscv.MnLUI:
		c.SetReg(dec.Rd, uint32(dec.Imm))
	case riscv.MnAUIPC:
		c.SetReg(dec.Rd, c.pc+uint32(dec.Imm))

	case riscv.MnECALL:
		tr = c.execSyscall()
	case riscv.MnEBREAK:
		tr = c.trap(TrapBreakpoint, "ebreak")

	case riscv.MnFENCE:
		// No-op: single-threaded, single-hart.

	case riscv.MnLRW:
		v, err := c.mem.LoadWord(c.Reg(dec.Rs1))
		if err != nil {
			tr = c.trap(TrapOutOfBounds, err.Error())
		} else {
			c.SetReg(dec.Rd, v)
		}
	case riscv.MnSCW:
		if err := c.mem.StoreWord(c.Reg(dec.Rs1), c.Reg(dec.Rs2)); err != nil {
			tr = c.trap(TrapOutOfBounds, err.Error())
		} else {
			c.SetReg(dec.Rd, 0) // always succeeds: single hart, no contention
		}
	case riscv.MnAMOSWAPW, riscv.MnAMOADDW:
		tr = c.execAMO(dec)

	default:
		tr = c.trap(TrapIllegalInstruction, fmt.Sprintf("unimplemented mnemonic %v", dec.Mnemonic))
	}

	c.cycles++
	if tr != nil {
		return tr
	}
	c.pc = nextPC
	return nil
}

func (c *CPU) execLoad(dec riscv.Decoded) *Trap {
	addr := c.Reg(dec.Rs1) + uint32(dec.Imm)
	switch dec.Mnemonic {
	case riscv.MnLB:
		v, err := c.mem.LoadByte(addr)
		if err != nil {
			return c.trap(TrapOutOfBounds, err.Error())
		}
		c.SetReg(dec.Rd, uint32(int32(int8(v))))
	case riscv.MnLBU:
		v, err := c.mem.LoadByte(addr)
		if err != nil {
			return c.trap(TrapOutOfBounds, err.Error())
		}
		c.SetReg(dec.Rd, uint32(v))
	case riscv.MnLH:
		v, err := c.mem.LoadHalf(addr)
		if err != nil {
			return c.misalignOrBounds(err)
		}
		c.SetReg(dec.Rd, uint32(int32(int16(v))))
	case riscv.MnLHU:
		v, err := c.mem.LoadHalf(addr)
		if err != nil {
			return c.misalignOrBounds(err)
		}
		c.SetReg(dec.Rd, uint32(v))
	case riscv.MnLW:
		v, err := c.mem.LoadWord(addr)
		if err != nil {
			return c.misalignOrBounds(err)
		}
		c.SetReg(dec.Rd, v)
	}
	return nil
}

func (c *CPU) execStore(dec riscv.Decoded) *Trap {
	addr := c.Reg(dec.Rs1) + uint32(dec.Imm)
	switch dec.Mnemonic {
	case riscv.MnSB:
		if err := c.mem.StoreByte(addr, uint8(c.Reg(dec.Rs2))); err != nil {
			return c.trap(TrapOutOfBounds, err.Error())
		}
	case riscv.MnSH:
		if err := c.mem.StoreHalf(addr, uint16(c.Reg(dec.Rs2))); err != nil {
			return c.misalignOrBounds(err)
		}
	case riscv.MnSW:
		if err := c.mem.StoreWord(addr, c.Reg(dec.Rs2)); err != nil {
			return c.misalignOrBounds(err)
		}
	}
	return nil
}

func (c *CPU) execAMO(dec riscv.Decoded) *Trap {
	addr := c.Reg(dec.Rs1)
	old, err := c.mem.LoadWord(addr)
	if err != nil {
		return c.trap(TrapOutOfBounds, err.Error())
	}
	var newVal uint32
	switch dec.Mnemonic {
	case riscv.MnAMOSWAPW:
		newVal = c.Reg(dec.Rs2)
	case riscv.MnAMOADDW:
		newVal = old + c.Reg(dec.Rs2)
	}
	if err := c.mem.StoreWord(addr, newVal); err != nil {
		return c.trap(TrapOutOfBounds, err.Error())
	}
	c.SetReg(dec.Rd, old)
	return nil
}

func (c *CPU) misalignOrBounds(err error) *Trap {
	// Memory methods report both causes through one error; the message
	// prefix distinguishes them.
	if len(err.Error()) >= 9 && err.Error()[:9] == "misaligne" {
		return c.trap(TrapMisalignedAccess, err.Error())
	}
	return c.trap(TrapOutOfBounds, err.Error())
}

func (c *CPU) execSyscall() *Trap {
	num := c.Reg(riscv.A7)
	a0, a1, a2, a3 := c.Reg(riscv.A0), c.Reg(riscv.A1), c.Reg(riscv.A2), c.Reg(riscv.A3)

	switch num {
	case SysLog:
		msg, err := c.readCString(a1, a2)
		if err != nil {
			return c.trap(TrapOutOfBounds, err.Error())
		}
		fmt.Fprintf(c.opts.Output, "[level %d] %s\n", a0, msg)
		c.SetReg(riscv.A0, 0)
		return nil

	case SysAbort:
		return c.trap(TrapAbort, fmt.Sprintf("abort(%d)", a0))

	case SysGetCycles:
		c.SetReg(riscv.A0, uint32(c.cycles))
		c.SetReg(riscv.A1, uint32(c.cycles>>32))
		return nil

	case SysHostCallback:
		if c.opts.HostCallback == nil {
			return c.trap(TrapIllegalInstruction, "host_callback invoked with no handler installed")
		}
		ret, err := c.opts.HostCallback(a0, a1, a2, c.mem.bytes)
		if err != nil {
			return c.trap(TrapAbort, err.Error())
		}
		_ = a3
		c.SetReg(riscv.A0, ret)
		return nil

	default:
		return c.trap(TrapIllegalInstruction, fmt.Sprintf("illegal ecall number %d", num))
	}
}

func (c *CPU) readCString(ptr, length uint32) (string, error) {
	if err := c.mem.boundsCheck(ptr, length); err != nil {
		return "", err
	}
	return string(c.mem.bytes[ptr : ptr+length]), nil
}

// RunUntilTrap executes instructions until a trap occurs, returning it.
// A TrapEnvironmentCall from syscalls other than abort is resumed
// internally by Step; RunUntilTrap only returns on genuine non-local exits.
func (c *CPU) RunUntilTrap() *Trap {
	for {
		if tr := c.Step(); tr != nil {
			return tr
		}
	}
}

// RunUntilReturn executes starting at the current PC with a sentinel return
// address in ra, stopping once PC reaches that sentinel. This is
// used to call a single compiled function and recover control afterward.
func (c *CPU) RunUntilReturn(sentinel uint32) *Trap {
	c.SetReg(riscv.Ra, sentinel)
	for c.pc != sentinel {
		if tr := c.Step(); tr != nil {
			return tr
		}
	}
	return nil
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// divRV32 implements RISC-V's signed division semantics: division by zero
// yields -1, and the one case of signed overflow (MinInt32 / -1) yields
// MinInt32, rather than trapping.
func divRV32(a, b int32) int32 {
	if b == 0 {
		return -1
	}
	if a == -2147483648 && b == -1 {
		return a
	}
	return a / b
}

func remRV32(a, b int32) int32 {
	if b == 0 {
		return a
	}
	if a == -2147483648 && b == -1 {
		return 0
	}
	return a % b
}
