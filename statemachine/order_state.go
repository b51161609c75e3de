package statemachine

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state shared by orders and order items.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusServed    Status = "served"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var ErrNoEligibleItems = errors.New("no items eligible for this transition")

// validTransitions is the authoritative state machine definition.
// served items can no longer be cancelled; completed and cancelled
// are terminal.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusServed, StatusCancelled},
	StatusServed:    {StatusCompleted},
	StatusCompleted: {},
	StatusCancelled: {},
}

// rank orders the non-cancelled statuses by kitchen progress. Used to
// derive an order's status from its items.
var rank = map[Status]int{
	StatusPending:   0,
	StatusPreparing: 1,
	StatusServed:    2,
	StatusCompleted: 3,
}

func Valid(s Status) bool {
	_, ok := validTransitions[s]
	return ok
}

func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Cancellable reports whether an item in status s may still be cancelled.
func Cancellable(s Status) bool {
	return CanTransition(s, StatusCancelled)
}

// CanTransition checks the transition table for from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns all valid next states from a given state.
func NextStatuses(from Status) []Status {
	return validTransitions[from]
}

// FilterEligible keeps the indices of statuses that may legally move to
// target. A selection where nothing is eligible is an error, never a
// silent no-op.
func FilterEligible(statuses []Status, target Status) ([]int, error) {
	if !Valid(target) {
		return nil, fmt.Errorf("unknown status %q", target)
	}
	var eligible []int
	for i, s := range statuses {
		if CanTransition(s, target) {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleItems
	}
	return eligible, nil
}

// DeriveOrderStatus computes an order's status from its item statuses:
// the least-advanced non-cancelled item wins, and an order whose items
// are all cancelled is cancelled. Resolves the order-vs-item aggregation
// ambiguity in one place.
func DeriveOrderStatus(items []Status) Status {
	derived := Status("")
	lowest := -1
	for _, s := range items {
		if s == StatusCancelled {
			continue
		}
		if r, ok := rank[s]; ok && (lowest == -1 || r < lowest) {
			lowest = r
			derived = s
		}
	}
	if lowest == -1 {
		return StatusCancelled
	}
	return derived
}
