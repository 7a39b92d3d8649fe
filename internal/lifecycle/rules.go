// Package lifecycle holds the task and bid state machine: which principal may move
// a task or bid into which state. It does no I/O; callers load state, ask, then write.
package lifecycle

import (
	"fmt"
	"strings"
)

// CancelPolicy controls who may cancel a task and from where.
type CancelPolicy string

const (
	// CancelPermissive lets any participant cancel from any state.
	CancelPermissive CancelPolicy = "permissive"
	// CancelStrict lets only the client cancel, and only while PENDING or ACCEPTED.
	CancelStrict CancelPolicy = "strict"
)

func ParseCancelPolicy(value string) (CancelPolicy, error) {
	switch p := CancelPolicy(strings.ToLower(strings.TrimSpace(value))); p {
	case "":
		return CancelPermissive, nil
	case CancelPermissive, CancelStrict:
		return p, nil
	}
	return "", fmt.Errorf("unknown cancel policy %q", value)
}

// Relation describes how a principal relates to one task.
type Relation struct {
	IsClient bool // owns the task
	IsTasker bool // owns the task's accepted bid
}

// Authority evaluates lifecycle rules under a cancellation policy.
type Authority struct {
	Cancel CancelPolicy
}

func NewAuthority(cancel CancelPolicy) Authority {
	if cancel == "" {
		cancel = CancelPermissive
	}
	return Authority{Cancel: cancel}
}

// CanSubmitBid reports whether a bid may be placed on a task in the given status.
func (a Authority) CanSubmitBid(rel Relation, current TaskStatus) error {
	if current != TaskPending {
		return fmt.Errorf("%w: task is no longer accepting bids", ErrInvalidState)
	}
	if rel.IsClient {
		return fmt.Errorf("%w: cannot bid on your own task", ErrInvalidState)
	}
	return nil
}

// CanDecideBid reports whether a bid on a task may be accepted or rejected.
func (a Authority) CanDecideBid(rel Relation, current TaskStatus) error {
	if !rel.IsClient {
		return fmt.Errorf("%w: only the task owner can decide on bids", ErrForbidden)
	}
	if current != TaskPending {
		return fmt.Errorf("%w: task is not in pending state", ErrInvalidState)
	}
	return nil
}

// CanChangeStatus checks a requested task status change against the rules table.
// It does not check that current is a legal predecessor for client-driven targets.
func (a Authority) CanChangeStatus(rel Relation, current, target TaskStatus) error {
	if !rel.IsClient && !rel.IsTasker {
		return fmt.Errorf("%w: not a participant of this task", ErrForbidden)
	}

	switch target {
	case TaskPending, TaskAccepted:
		if !rel.IsClient {
			return fmt.Errorf("%w: only clients can update task to %s", ErrForbidden, target)
		}
		return nil
	case TaskInProgress:
		if !rel.IsTasker {
			return fmt.Errorf("%w: only taskers can update task to %s", ErrForbidden, target)
		}
		if current != TaskAccepted {
			return fmt.Errorf("%w: task must be accepted before starting", ErrInvalidState)
		}
		return nil
	case TaskCompleted:
		if !rel.IsTasker {
			return fmt.Errorf("%w: only taskers can update task to %s", ErrForbidden, target)
		}
		if current != TaskInProgress {
			return fmt.Errorf("%w: task must be in progress before completing", ErrInvalidState)
		}
		return nil
	case TaskCancelled:
		return a.canCancel(rel, current)
	}
	return fmt.Errorf("%w: invalid status %q", ErrValidation, string(target))
}

func (a Authority) canCancel(rel Relation, current TaskStatus) error {
	if a.Cancel != CancelStrict {
		return nil
	}
	if !rel.IsClient {
		return fmt.Errorf("%w: only clients can cancel a task", ErrForbidden)
	}
	if current != TaskPending && current != TaskAccepted {
		return fmt.Errorf("%w: task can only be cancelled while pending or accepted", ErrInvalidState)
	}
	return nil
}
