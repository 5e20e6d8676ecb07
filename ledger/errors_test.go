package ledger

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err       error
		kind      error
		retryable bool
	}{
		{&NotFoundError{Kind: "session", ID: "s1"}, ErrNotFound, false},
		{&InvalidStateError{SessionID: "s1", Status: StatusFinished, Op: "pause"}, ErrInvalidState, false},
		{&ConflictError{Constraint: ConstraintActiveSession, ActorID: "ana"}, ErrConflict, false},
		{&ValidationError{Field: "end", Message: "must be after start"}, ErrValidation, false},
		{&TransientStoreError{Op: "start", Err: errors.New("database is locked")}, ErrTransientStore, true},
	}
	for _, tt := range tests {
		wrapped := fmt.Errorf("handler: %w", tt.err)
		assert.ErrorIs(t, wrapped, tt.kind)
		assert.Equal(t, tt.retryable, IsRetryable(wrapped))
		assert.Equal(t, !tt.retryable, IsClientError(wrapped))
	}
}

func TestConflictAndInvalidStateMessagesDiffer(t *testing.T) {
	conflict := &ConflictError{Constraint: ConstraintActiveSession, ActorID: "ana"}
	finished := &InvalidStateError{SessionID: "s1", Status: StatusFinished, Op: "finish"}
	assert.Equal(t, "actor ana already has an active session", conflict.Error())
	assert.Equal(t, "cannot finish session s1: session is already finished", finished.Error())
}

func TestTransient(t *testing.T) {
	known := &NotFoundError{Kind: "task", ID: "t"}
	assert.Same(t, known, Transient("op", known))
	assert.Nil(t, Transient("op", nil))

	raw := errors.New("disk I/O error")
	err := Transient("op", raw)
	assert.ErrorIs(t, err, ErrTransientStore)
	assert.ErrorIs(t, err, raw)
}

func TestHours(t *testing.T) {
	assert.Equal(t, "2.50", Hours(150*time.Minute).StringFixed(2))
	assert.Equal(t, "0.01", Hours(30*time.Second+time.Millisecond).StringFixed(2))
	assert.Equal(t, "0.00", Hours(0).StringFixed(2))
	assert.Equal(t, 90*time.Minute, DurationFromHours(ExactHours(90*time.Minute)))
}
