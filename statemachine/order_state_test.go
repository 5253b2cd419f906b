package statemachine

import (
	"errors"
	"testing"

	"canteen-orders-api/apperrors"
	"canteen-orders-api/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.OrderState
		actor    string
		ok       bool
	}{
		{models.StateDraft, models.StateCommitted, ActorStudent, true},
		{models.StateCommitted, models.StateCancelled, ActorStudent, true},
		{models.StateCommitted, models.StateSuperseded, ActorSystem, true},
		{models.StateCommitted, models.StateSuperseded, ActorStudent, false},
		{models.StateCancelled, models.StateCommitted, ActorStudent, false},
		{models.StateSuperseded, models.StateCancelled, ActorStudent, false},
		{models.StateDraft, models.StateCancelled, ActorStudent, false},
	}
	for _, tc := range cases {
		err := CanTransition(tc.from, tc.to, tc.actor)
		if tc.ok && err != nil {
			t.Errorf("%s → %s by %s: unexpected error %v", tc.from, tc.to, tc.actor, err)
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("%s → %s by %s: expected error", tc.from, tc.to, tc.actor)
			} else if !errors.Is(err, apperrors.ErrInvalidTransition) {
				t.Errorf("%s → %s: error %v is not an invalid transition", tc.from, tc.to, err)
			}
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []models.OrderState{models.StateCancelled, models.StateSuperseded} {
		if !IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	if IsTerminal(models.StateCommitted) {
		t.Error("committed should not be terminal")
	}
	if got := ValidTransitionsFrom(models.StateCommitted); len(got) != 2 {
		t.Errorf("from committed = %v, want 2 targets", got)
	}
}

func TestGetAllTransitionsIsACopy(t *testing.T) {
	all := GetAllTransitions()
	all[0].Actor = "hacker"
	if GetAllTransitions()[0].Actor == "hacker" {
		t.Fatal("transition table must not be mutable through the accessor")
	}
}
