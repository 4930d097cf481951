package imagestore

import (
	"errors"
	"fmt"

	"posemaster/pkg/compress"
)

var (
	// ErrDecode marks input that could not be decoded as an image.
	ErrDecode = compress.ErrDecode
	// ErrTierUnavailable marks a write that no tier accepted.
	ErrTierUnavailable = errors.New("no storage tier accepted the image")
	// ErrMarker marks an archived image that reads would not reach because
	// the fast tier could neither drop its old copy nor record the marker.
	ErrMarker = errors.New("tier marker could not be updated")
)

// StorageError is returned by SaveImage when the image was not stored.
// The prior value for Key, if any, is unchanged.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s image %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
