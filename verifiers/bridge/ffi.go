//go:build cgo && bridgeffi

package bridge

/*
#cgo LDFLAGS: -lbridge_prover
#include <stdlib.h>

extern void compile(const char* circuit_data);
extern char* prove(const char* circuit_data);
*/
import "C"

import (
	"bytes"
	"fmt"
	"unicode/utf8"
	"unsafe"
)

// FFIBackend calls the proof backend linked in as a C library. Strings crossing
// the boundary are NUL-terminated; the result of prove is owned by the caller and
// released with free once copied.
type FFIBackend struct{}

func NewFFIBackend() (Backend, error) {
	return FFIBackend{}, nil
}

func (FFIBackend) Compile(payload []byte) error {
	cs, err := cString(payload)
	if err != nil {
		return err
	}
	defer C.free(unsafe.Pointer(cs))

	C.compile(cs)
	return nil
}

func (FFIBackend) Prove(payload []byte) (string, error) {
	cs, err := cString(payload)
	if err != nil {
		return "", err
	}
	defer C.free(unsafe.Pointer(cs))

	res := C.prove(cs)
	if res == nil {
		return "", fmt.Errorf("%w: prove returned a null pointer", ErrBackend)
	}
	defer C.free(unsafe.Pointer(res))

	out := C.GoString(res)
	if !utf8.ValidString(out) {
		return "", fmt.Errorf("%w: prove returned non UTF-8 text", ErrBackend)
	}
	return out, nil
}

func cString(payload []byte) (*C.char, error) {
	if bytes.IndexByte(payload, 0) >= 0 {
		return nil, fmt.Errorf("%w: payload contains a NUL byte", ErrBackend)
	}
	return C.CString(string(payload)), nil
}
