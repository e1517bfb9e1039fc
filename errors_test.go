package twai

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{ErrTimeout, ErrTimeout},
		{fmt.Errorf("wrapped: %w", ErrInvalidState), ErrInvalidState},
		{&Error{C: ErrNoMem, Op: "install"}, ErrNoMem},
		{errors.New("boom"), ErrFail},
	}
	for _, tc := range cases {
		if got := CodeOf(tc.err); got != tc.want {
			t.Fatalf("CodeOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("socket gone")
	err := fmt.Errorf("poll: %w", &Error{C: ErrTimeout, Op: "receive", Err: cause})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected errors.Is to match code")
	}
	if errors.Is(err, ErrInvalidState) {
		t.Fatalf("unexpected match on other code")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap")
	}
	want := "poll: twai: receive: timeout: socket gone"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
