package builtins

import "fmt"

// lpfxIDBase separates the BuiltinID and LPFXID namespaces inside the
// single host-callback dispatch id space every trampoline in object.go
// passes through a7=4 (host_callback).
const lpfxIDBase = 1000

// DispatchID returns the host-callback id for a scalar builtin.
func DispatchID(id BuiltinID) uint32 { return uint32(id) }

// LPFXDispatchID returns the host-callback id for an LPFX function.
func LPFXDispatchID(id LPFXID) uint32 { return lpfxIDBase + uint32(id) }

// Dispatch is wired as the emulator's HostCallback: it decodes the id
// namespace, reads argument words from mem at ptr, invokes the matching
// Go implementation, and writes results back to the same location so the
// calling trampoline can reload them.
func Dispatch(id, ptr, length uint32, mem []byte) (uint32, error) {
	if id < lpfxIDBase {
		return dispatchBuiltin(BuiltinID(id), ptr, length, mem)
	}
	return dispatchLPFX(LPFXID(id-lpfxIDBase), ptr, length, mem)
}

func dispatchBuiltin(id BuiltinID, ptr, length uint32, mem []byte) (uint32, error) {
	entry, ok := Default().Lookup(id)
	if !ok {
		return 0, fmt.Errorf("builtins: dispatch to unknown builtin id %d", id)
	}
	if IsMatrixOp(id) {
		return dispatchMatrixOp(id, ptr, length, mem)
	}
	nParams := len(entry.Params)
	args, err := readWords(mem, ptr, nParams)
	if err != nil {
		return 0, err
	}
	results := entry.Fn(args)
	if err := writeWords(mem, ptr, results); err != nil {
		return 0, err
	}
	_ = length
	return uint32(len(results)), nil
}

func dispatchMatrixOp(id BuiltinID, srcPtr, arg2 uint32, mem []byte) (uint32, error) {
	order := MatrixOrder(id)
	m, err := readMatrix(mem, srcPtr, order)
	if err != nil {
		return 0, err
	}
	if !IsInverseOp(id) {
		var det Q32
		switch order {
		case 2:
			det = Determinant2(m)
		case 3:
			det = Determinant3(m)
		case 4:
			det = Determinant4(m)
		}
		return uint32(int32(det)), nil
	}

	dstPtr := arg2
	var out []Q32
	switch order {
	case 2:
		out = Inverse2(m)
	case 3:
		out = Inverse3(m)
	case 4:
		out = Inverse4(m)
	}
	if err := writeMatrix(mem, dstPtr, out); err != nil {
		return 0, err
	}
	return 0, nil
}

func dispatchLPFX(id LPFXID, ptr, length uint32, mem []byte) (uint32, error) {
	entry, ok := DefaultLPFX().Lookup(id)
	if !ok {
		return 0, fmt.Errorf("builtins: dispatch to unknown lpfx id %d", id)
	}
	args, err := readWords(mem, ptr, len(entry.Params))
	if err != nil {
		return 0, err
	}
	results := entry.Q32Fn(args)
	if err := writeWords(mem, ptr, results); err != nil {
		return 0, err
	}
	_ = length
	return uint32(len(results)), nil
}

func readWords(mem []byte, ptr uint32, n int) ([]int32, error) {
	if uint64(ptr)+uint64(n)*4 > uint64(len(mem)) {
		return nil, fmt.Errorf("builtins: argument read at %#x (%d words) out of bounds", ptr, n)
	}
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = int32(le32(mem, ptr+uint32(i)*4))
	}
	return out, nil
}

func writeWords(mem []byte, ptr uint32, vals []int32) error {
	if uint64(ptr)+uint64(len(vals))*4 > uint64(len(mem)) {
		return fmt.Errorf("builtins: result write at %#x (%d words) out of bounds", ptr, len(vals))
	}
	for i, v := range vals {
		putLE32(mem, ptr+uint32(i)*4, uint32(v))
	}
	return nil
}

func readMatrix(mem []byte, ptr uint32, order int) ([]Q32, error) {
	words, err := readWords(mem, ptr, order*order)
	if err != nil {
		return nil, err
	}
	m := make([]Q32, len(words))
	for i, w := range words {
		m[i] = Q32(w)
	}
	return m, nil
}

func writeMatrix(mem []byte, ptr uint32, m []Q32) error {
	vals := make([]int32, len(m))
	for i, v := range m {
		vals[i] = int32(v)
	}
	return writeWords(mem, ptr, vals)
}

func le32(b []byte, off uint32) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func putLE32(b []byte, off, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}
