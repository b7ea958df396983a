//go:build !(cgo && bridgeffi)

package bridge

import "fmt"

// NewFFIBackend is unavailable unless built with cgo and the bridgeffi tag.
func NewFFIBackend() (Backend, error) {
	return nil, fmt.Errorf("%w: built without the bridgeffi tag", ErrBackend)
}
