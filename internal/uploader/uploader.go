// Package uploader defines the interface for image hosting backends.
package uploader

import (
	"context"
	"errors"
	"fmt"

	"github.com/shineum/slicemail/internal/email"
)

// Uploader is the interface that image hosting backends must implement.
// Each call sends one image to the hosting service and returns its public URL.
// Implementations must be safe for concurrent use.
type Uploader interface {
	// Upload stores the image and returns a publicly reachable copy.
	// It returns an *UploadError if the service rejects the image or answers
	// with something that carries no URL.
	Upload(ctx context.Context, img email.Image) (email.RemoteImage, error)

	// Name returns the human-readable name of this backend.
	Name() string
}

// Optimizer is implemented by backends whose URLs can request a resized,
// recompressed delivery variant.
type Optimizer interface {
	Optimize(url string) string
}

// ErrUpload matches every *UploadError.
var ErrUpload = errors.New("upload failed")

// UploadError reports a failed upload for a single slot.
type UploadError struct {
	Slot       email.Slot
	Provider   string
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s upload of %s image failed (HTTP %d): %v", e.Provider, e.Slot, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s upload of %s image failed: %v", e.Provider, e.Slot, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Is reports whether target is ErrUpload.
func (e *UploadError) Is(target error) bool { return target == ErrUpload }
