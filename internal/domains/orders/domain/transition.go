package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an action is not legal from the current status.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrInvalidEstimate is returned when a confirmation carries a non-positive estimate.
	ErrInvalidEstimate = errors.New("estimated minutes must be greater than zero")
)

// ActionKind names a state machine input.
type ActionKind string

const (
	ActionConfirm ActionKind = "confirm"
	ActionDecline ActionKind = "decline"
	ActionAdvance ActionKind = "advance"
	ActionCancel  ActionKind = "cancel"
	ActionDelete  ActionKind = "delete"
)

// Effect is a side effect requested by a transition and executed by the caller.
type Effect string

const (
	EffectSendConfirmation Effect = "send_confirmation"
	EffectSendCancellation Effect = "send_cancellation"
)

// Action is an input to the order state machine.
type Action struct {
	Kind             ActionKind
	Target           Status
	EstimatedMinutes int
}

// Confirm accepts a new order with a preparation estimate.
func Confirm(estimatedMinutes int) Action {
	return Action{Kind: ActionConfirm, EstimatedMinutes: estimatedMinutes}
}

// Decline rejects a new order.
func Decline() Action { return Action{Kind: ActionDecline} }

// AdvanceTo is the admin override into preparing, ready or delivered.
func AdvanceTo(target Status) Action { return Action{Kind: ActionAdvance, Target: target} }

// Cancel is the admin cancellation of a non-cancelled order.
func Cancel() Action { return Action{Kind: ActionCancel} }

// Delete removes the aggregate.
func Delete() Action { return Action{Kind: ActionDelete} }

// TransitionResult describes a legal transition and the effects it requests.
type TransitionResult struct {
	From             Status
	To               Status
	Removed          bool
	Declined         bool
	EstimatedMinutes *int
	Effects          []Effect
}

// HasEffect reports whether the result requests e.
func (r TransitionResult) HasEffect(e Effect) bool {
	for _, effect := range r.Effects {
		if effect == e {
			return true
		}
	}
	return false
}

var advanceTargets = map[Status]bool{
	StatusPreparing: true,
	StatusReady:     true,
	StatusDelivered: true,
}

var allowedFrom = map[ActionKind][]Status{
	ActionConfirm: {StatusAwaitingConfirmation},
	ActionDecline: {StatusAwaitingConfirmation},
	ActionAdvance: nonTerminalStatuses(),
	ActionCancel:  nonTerminalStatuses(),
	ActionDelete:  allStatuses,
}

func nonTerminalStatuses() []Status {
	out := make([]Status, 0, len(allStatuses))
	for _, s := range allStatuses {
		if !s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// AllowedFrom lists the statuses the action may start from. Persistence uses it
// as the expected set of a conditional status update.
func (a Action) AllowedFrom() []Status {
	from := allowedFrom[a.Kind]
	out := make([]Status, len(from))
	copy(out, from)
	return out
}

func (a Action) permits(current Status) bool {
	for _, s := range allowedFrom[a.Kind] {
		if s == current {
			return true
		}
	}
	return false
}

// Transition is the pure order state machine.
func Transition(current Status, a Action) (TransitionResult, error) {
	if !current.Valid() {
		return TransitionResult{}, fmt.Errorf("%w: %q", ErrInvalidStatus, current)
	}
	if _, known := allowedFrom[a.Kind]; !known {
		return TransitionResult{}, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, a.Kind)
	}
	if a.Kind == ActionConfirm && a.EstimatedMinutes <= 0 {
		return TransitionResult{}, ErrInvalidEstimate
	}
	if a.Kind == ActionAdvance && !advanceTargets[a.Target] {
		return TransitionResult{}, fmt.Errorf("%w: cannot advance to %q", ErrInvalidTransition, a.Target)
	}
	if !a.permits(current) {
		return TransitionResult{}, fmt.Errorf("%w: cannot %s an order that is %s", ErrInvalidTransition, a.Kind, current)
	}

	result := TransitionResult{From: current}
	switch a.Kind {
	case ActionConfirm:
		minutes := a.EstimatedMinutes
		result.To = StatusPending
		result.EstimatedMinutes = &minutes
		result.Effects = []Effect{EffectSendConfirmation}
	case ActionDecline:
		result.To = StatusCancelled
		result.Declined = true
		result.Effects = []Effect{EffectSendCancellation}
	case ActionAdvance:
		result.To = a.Target
	case ActionCancel:
		result.To = StatusCancelled
	case ActionDelete:
		result.To = current
		result.Removed = true
	}
	return result, nil
}
