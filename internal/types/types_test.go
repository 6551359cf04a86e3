package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestAction_IsValid(t *testing.T) {
	tests := []struct {
		action Action
		valid  bool
	}{
		{ActionCreate, true},
		{ActionRead, true},
		{ActionUpdate, true},
		{ActionDelete, true},
		{Action("browse"), false},
		{Action(""), false},
		{Action("READ"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			if got := tt.action.IsValid(); got != tt.valid {
				t.Errorf("IsValid(%q) = %v, want %v", tt.action, got, tt.valid)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		terminal bool
	}{
		{
			name:     "security error",
			err:      &SecurityError{Path: "__proto__.x", Segment: "__proto__"},
			terminal: true,
		},
		{
			name:     "budget error",
			err:      &BudgetError{Dimension: BudgetDepth, Limit: 32},
			terminal: true,
		},
		{
			name:     "wrapped security error",
			err:      fmt.Errorf("policy x: %w", &SecurityError{Path: "p", Segment: "s"}),
			terminal: true,
		},
		{
			name:     "plain sentinel",
			err:      ErrUnknownOperation,
			terminal: false,
		},
		{
			name:     "nil",
			err:      nil,
			terminal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTerminal(tt.err); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestPolicyID(t *testing.T) {
	id := NewPolicyID()
	if id == "" {
		t.Fatalf("NewPolicyID() returned empty id")
	}

	parsed, err := ParsePolicyID(string(id))
	if err != nil {
		t.Fatalf("ParsePolicyID(%s) error = %v", id, err)
	}
	if parsed != id {
		t.Errorf("ParsePolicyID() = %s, want %s", parsed, id)
	}

	if _, err := ParsePolicyID("not-a-uuid"); err == nil {
		t.Errorf("ParsePolicyID(invalid) error = nil, want parse failure")
	}

	// UUIDv7 IDs are time-ordered; consecutive IDs never collide.
	other := NewPolicyID()
	if other == id {
		t.Errorf("NewPolicyID() produced duplicate ids")
	}
}

func TestBudgetError_Message(t *testing.T) {
	err := &BudgetError{Dimension: BudgetOperations, Limit: 1000}
	want := "evaluation budget exceeded: operations limit 1000"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var target *BudgetError
	if !errors.As(fmt.Errorf("wrap: %w", err), &target) {
		t.Errorf("BudgetError not unwrappable with errors.As")
	}
}
