package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	all := []ModerationState{
		ModerationStateUnmoderated,
		ModerationStateApproved,
		ModerationStateRejected,
	}

	// The full table, enumerated so a change to ModerationTransitions has to
	// be made here too.
	allowed := map[ModerationState]map[ModerationState]bool{
		ModerationStateUnmoderated: {
			ModerationStateApproved: true,
			ModerationStateRejected: true,
		},
		ModerationStateApproved: {
			ModerationStateRejected: true,
		},
		ModerationStateRejected: {
			ModerationStateApproved:    true,
			ModerationStateUnmoderated: true,
		},
	}

	for _, from := range all {
		for _, to := range all {
			got := CanTransition(from, to)
			want := allowed[from][to]
			assert.Equalf(t, want, got, "transition %s -> %s", from, to)
		}
	}
}

func TestCanTransitionRejectsSameState(t *testing.T) {
	// Repeating a transition from its own target state is never legal;
	// approve-from-approved and reject-from-rejected are conflicts.
	assert.False(t, CanTransition(ModerationStateApproved, ModerationStateApproved))
	assert.False(t, CanTransition(ModerationStateRejected, ModerationStateRejected))
	assert.False(t, CanTransition(ModerationStateUnmoderated, ModerationStateUnmoderated))
}

func TestScrapbookCanModify(t *testing.T) {
	s := &Scrapbook{UserID: 7}
	assert.True(t, s.CanModify(7))
	assert.False(t, s.CanModify(8))
	assert.False(t, s.CanModify(0))
}

func TestMemoryCanModify(t *testing.T) {
	m := &Memory{UserID: 3}
	assert.True(t, m.CanModify(3))
	assert.False(t, m.CanModify(4))
	assert.False(t, m.CanModify(0))
}
