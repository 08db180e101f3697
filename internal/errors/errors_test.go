package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestCleanErrorMessage(t *testing.T) {
	err := New(UnparsableFile, "file does not parse", nil).WithLocation("app.py", 3, 7)

	msg := err.Error()
	for _, want := range []string{"UNPARSABLE_FILE", "app.py:3:7", "file does not parse"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestCleanErrorUnwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := New(ReadPermission, "permission denied", cause)

	if !Is(err, cause) {
		t.Error("Is must see through to the cause")
	}

	var ce *CleanError
	if !As(err, &ce) || ce.Code != ReadPermission {
		t.Errorf("As failed: %v", err)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(UnexpandableStar, "x", nil)); got != UnexpandableStar {
		t.Errorf("CodeOf = %s, want %s", got, UnexpandableStar)
	}
	if got := CodeOf(stderrors.New("plain")); got != InternalError {
		t.Errorf("CodeOf(plain) = %s, want %s", got, InternalError)
	}
}
