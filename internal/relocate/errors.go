package relocate

import (
	"errors"
	"fmt"
)

var (
	// ErrDirectoryCreateFailed marks a destination directory that could not be
	// provisioned.
	ErrDirectoryCreateFailed = errors.New("destination directory create failed")
	// ErrMoveFailed marks any failure to move the source into place.
	ErrMoveFailed = errors.New("move failed")
	// ErrSourceMissing is wrapped by ErrMoveFailed when the source vanished
	// before the move, which includes reprocessing an already moved file.
	ErrSourceMissing = errors.New("source no longer exists")
	// ErrDestinationExists is wrapped by ErrMoveFailed when the collision
	// policy refuses to replace an existing destination.
	ErrDestinationExists = errors.New("destination already exists")
	// ErrNotRouted rejects decisions that do not move anything.
	ErrNotRouted = errors.New("decision does not route the file")
)

// RelocateError carries the failing paths. Kind is ErrDirectoryCreateFailed
// or ErrMoveFailed.
type RelocateError struct {
	Kind        error
	Source      string
	Destination string
	Err         error
}

func (e *RelocateError) Error() string {
	msg := fmt.Sprintf("%v: %s -> %s", e.Kind, e.Source, e.Destination)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RelocateError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Hint returns an operator-facing next step for err.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrSourceMissing):
		return "file was removed or already moved before relocation; no action needed"
	case errors.Is(err, ErrDestinationExists):
		return "a file with the same name already exists in the category directory; rename or remove it"
	case errors.Is(err, ErrDirectoryCreateFailed):
		return "check permissions on the watched root and that no file shadows the category directory"
	case isCrossDevice(err):
		return "category directory is on another filesystem; set relocate.cross_device = \"copy\""
	default:
		return "check filesystem permissions and free space"
	}
}
