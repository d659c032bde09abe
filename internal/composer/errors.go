package composer

import (
	"errors"
	"fmt"
)

// ErrInput matches every *InputError.
var ErrInput = errors.New("invalid input")

// ErrNoImages is returned when generation is attempted without any image.
var ErrNoImages = &InputError{Reason: "at least one image is required (body recommended)"}

// InputError reports a request rejected before any upload started.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// Is reports whether target is ErrInput.
func (e *InputError) Is(target error) bool { return target == ErrInput }

func inputErrorf(format string, args ...any) *InputError {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}
