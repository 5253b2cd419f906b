package statemachine

import (
	"strings"

	"canteen-orders-api/apperrors"
	"canteen-orders-api/models"
)

// Actors allowed to drive a transition
const (
	ActorStudent = "student"
	ActorSystem  = "system"
)

// Transition defines a valid state change and who can perform it
type Transition struct {
	From  models.OrderState `json:"from"`
	To    models.OrderState `json:"to"`
	Actor string            `json:"actor"`
}

// validTransitions is the authoritative state machine definition
var validTransitions = []Transition{
	// Student confirms the selection
	{From: models.StateDraft, To: models.StateCommitted, Actor: ActorStudent},
	// Student cancels before the cutoff
	{From: models.StateCommitted, To: models.StateCancelled, Actor: ActorStudent},
	// A later commit on the same day replaces the earlier one
	{From: models.StateCommitted, To: models.StateSuperseded, Actor: ActorSystem},
}

type transitionKey struct {
	From  models.OrderState
	To    models.OrderState
	Actor string
}

var transitionMap = func() map[transitionKey]bool {
	m := make(map[transitionKey]bool)
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// ValidTransitionsFrom returns all valid next states from a given state
func ValidTransitionsFrom(state models.OrderState) []models.OrderState {
	var nexts []models.OrderState
	seen := map[models.OrderState]bool{}
	for _, t := range validTransitions {
		if t.From == state && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// IsTerminal reports whether no transition leaves state
func IsTerminal(state models.OrderState) bool {
	return len(ValidTransitionsFrom(state)) == 0
}

// CanTransition checks if a given actor can move from one state to another
func CanTransition(from, to models.OrderState, actor string) error {
	if transitionMap[transitionKey{From: from, To: to, Actor: actor}] {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeInvalidTransition,
		"invalid transition: "+string(from)+" → "+string(to)+
			" is not allowed for actor '"+actor+"'. "+
			"Valid transitions from "+string(from)+" are: "+describeValidFrom(from),
		map[string]string{"from": string(from), "to": string(to), "actor": actor})
}

func describeValidFrom(state models.OrderState) string {
	nexts := ValidTransitionsFrom(state)
	if len(nexts) == 0 {
		return "none (terminal state)"
	}
	names := make([]string, len(nexts))
	for i, s := range nexts {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// GetAllTransitions returns the full state machine for documentation
func GetAllTransitions() []Transition {
	out := make([]Transition, len(validTransitions))
	copy(out, validTransitions)
	return out
}
