package slunkerr

import (
	"errors"
	"testing"
)

func TestErrorUnwrapAndAs(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindStoreTransient, cause, "write failed", "retry shortly")

	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("expected errors.As to find *Error")
	}
	if se.Kind != KindStoreTransient {
		t.Fatalf("unexpected kind: %v", se.Kind)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected Unwrap chain to reach cause")
	}
}

func TestRetryable(t *testing.T) {
	cases := map[Kind]bool{
		KindStoreTransient:  true,
		KindEmbedFailure:    true,
		KindInvalidInput:    false,
		KindStoreFatal:      false,
		KindTreeUnavailable: false,
	}
	for kind, want := range cases {
		if got := kind.Retryable(); got != want {
			t.Errorf("%v.Retryable() = %v, want %v", kind, got, want)
		}
	}
}

func TestErrorMessageFormat(t *testing.T) {
	err := New(KindInvalidInput, "limit out of range")
	if err.Error() != "InvalidInput: limit out of range" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
