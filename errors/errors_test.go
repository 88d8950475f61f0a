package errors_test

import (
	"testing"

	"github.com/lucabaldini/baldaquin/errors"
)

func TestKindRoundTrip(t *testing.T) {
	err := errors.E(errors.FieldMismatch, "header mismatch")
	if !errors.Is(errors.FieldMismatch, err) {
		t.Fatalf("expected FieldMismatch, got %v", err)
	}
	if errors.Is(errors.SizeMismatch, err) {
		t.Fatalf("did not expect SizeMismatch")
	}
}

func TestChaining(t *testing.T) {
	cause := errors.E(errors.FileExists, "data.dat")
	wrapped := errors.E("creating sink", cause)
	if !errors.Is(errors.FileExists, wrapped) {
		t.Fatalf("expected chained kind to propagate, got %v", wrapped)
	}
}

func TestMatch(t *testing.T) {
	e1 := errors.E(errors.NoSinks, "flush")
	e2 := errors.E(errors.NoSinks, "flush")
	if !errors.Match(e1, e2) {
		t.Fatalf("expected e1 to match e2")
	}
}
