package main

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeOfExitError(t *testing.T) {
	err := newExitError(3, errors.New("step failed"))
	if got := exitCodeOf(err); got != 3 {
		t.Errorf("exitCodeOf = %d, want 3", got)
	}
}

func TestExitCodeOfWrappedExitError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newExitError(1, errors.New("boom")))
	if got := exitCodeOf(err); got != 1 {
		t.Errorf("exitCodeOf = %d, want 1 for a wrapped *exitError", got)
	}
}

func TestExitCodeOfPlainErrorDefaultsToTwo(t *testing.T) {
	if got := exitCodeOf(errors.New("unknown command")); got != 2 {
		t.Errorf("exitCodeOf = %d, want 2 for a non-exitError", got)
	}
}

func TestAsStopsAtFirstExitError(t *testing.T) {
	inner := newExitError(5, errors.New("inner"))
	outer := fmt.Errorf("outer: %w", inner)

	var ee *exitError
	if !as(outer, &ee) {
		t.Fatal("expected as to find the wrapped *exitError")
	}
	if ee.code != 5 {
		t.Errorf("ee.code = %d, want 5", ee.code)
	}
}

func TestAsFalseWhenNoExitErrorInChain(t *testing.T) {
	var ee *exitError
	if as(fmt.Errorf("just: %w", errors.New("plain")), &ee) {
		t.Error("expected as to return false when no *exitError is in the chain")
	}
}
