package workspace

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkspaceOverflow is returned by the Fail overflow policy.
	ErrWorkspaceOverflow = errors.New("workspace overflow")

	// ErrClosedWorkspace is returned for any operation on a closed workspace.
	ErrClosedWorkspace = errors.New("workspace closed")

	// ErrIllegalState is returned when a registry invariant would be violated.
	ErrIllegalState = errors.New("illegal state")

	// ErrNoOwner is returned when a context carries no OwnerID.
	ErrNoOwner = errors.New("no workspace owner in context")
)

// OverflowError describes a request the arena could not serve.
type OverflowError struct {
	Workspace string
	Requested int
	Available int
	Capacity  int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("workspace %s overflow: requested %d bytes, %d of %d available",
		e.Workspace, e.Requested, e.Available, e.Capacity)
}

// Is makes errors.Is(err, ErrWorkspaceOverflow) match.
func (e *OverflowError) Is(target error) bool { return target == ErrWorkspaceOverflow }
