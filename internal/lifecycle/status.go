package lifecycle

import (
	"fmt"
	"slices"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskAccepted   TaskStatus = "ACCEPTED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// TaskStatuses lists every task status in lifecycle order.
var TaskStatuses = []TaskStatus{TaskPending, TaskAccepted, TaskInProgress, TaskCompleted, TaskCancelled}

// ParseTaskStatus is the only way a status enters the system from the outside.
func ParseTaskStatus(value string) (TaskStatus, error) {
	if s := TaskStatus(value); slices.Contains(TaskStatuses, s) {
		return s, nil
	}
	return "", fmt.Errorf("%w: invalid status %q", ErrValidation, value)
}

type BidStatus string

const (
	BidPending  BidStatus = "PENDING"
	BidAccepted BidStatus = "ACCEPTED"
	BidRejected BidStatus = "REJECTED"
)

// Decision is the client's verdict on a bid.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

func ParseDecision(value string) (Decision, error) {
	switch d := Decision(value); d {
	case DecisionAccept, DecisionReject:
		return d, nil
	}
	return "", fmt.Errorf("%w: invalid action %q", ErrValidation, value)
}

// Outcome is the status the decided bid ends up in.
func (d Decision) Outcome() (BidStatus, error) {
	switch d {
	case DecisionAccept:
		return BidAccepted, nil
	case DecisionReject:
		return BidRejected, nil
	}
	return "", fmt.Errorf("%w: invalid action %q", ErrValidation, string(d))
}
