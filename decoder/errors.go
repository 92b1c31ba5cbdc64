package decoder

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Pipeline errors. Every stage failure is fatal for its frame and is never
// retried here.
var (
	ErrMissingCollaborator = errors.New("decoder: missing collaborator")
	ErrUnpack              = errors.New("decoder: DA unpacking failed")
	ErrProgramOutputParse  = errors.New("decoder: program output parsing failed")
	ErrNoBlobs             = errors.New("decoder: frame has no blobs")
	ErrInvalidConfig       = errors.New("decoder: invalid configuration")
)

// MissingCollaboratorError is returned by New when a required strategy is
// configured as nil. It is raised before any blob is read.
type MissingCollaboratorError struct {
	Name string
}

func (e *MissingCollaboratorError) Error() string {
	return fmt.Sprintf("decoder: no %s configured", e.Name)
}

// Is lets errors.Is(err, ErrMissingCollaborator) match.
func (e *MissingCollaboratorError) Is(target error) bool { return target == ErrMissingCollaborator }

// UnpackError wraps a failure of the DA unpacker.
type UnpackError struct {
	Blobs int
	Cause error
}

func (e *UnpackError) Error() string {
	return fmt.Sprintf("decoder: unpacking %d blobs: %v", e.Blobs, e.Cause)
}

// Is lets errors.Is(err, ErrUnpack) match.
func (e *UnpackError) Is(target error) bool { return target == ErrUnpack }

func (e *UnpackError) Unwrap() error { return e.Cause }

// ProgramOutputParseError wraps a failure to locate or parse the state diff
// in the decompressed stream.
type ProgramOutputParseError struct {
	Felts int
	Cause error
}

func (e *ProgramOutputParseError) Error() string {
	return fmt.Sprintf("decoder: parsing state diff from %d felts: %v", e.Felts, e.Cause)
}

// Is lets errors.Is(err, ErrProgramOutputParse) match.
func (e *ProgramOutputParseError) Is(target error) bool { return target == ErrProgramOutputParse }

func (e *ProgramOutputParseError) Unwrap() error { return e.Cause }
