package failure

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := New(NotFound, "unit %q is not loaded", "foo")
	if err.Error() != `unit "foo" is not loaded` {
		t.Errorf("Error() = %q", err.Error())
	}

	wrapped := Wrap(StageFailure, os.ErrPermission, "moving %s", "a.zip")
	if wrapped.Error() != "moving a.zip: permission denied" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, os.ErrPermission) {
		t.Error("errors.Is should see the cause")
	}
}

func TestIsThroughWrappingAndJoin(t *testing.T) {
	base := New(IncompatibleUnit, "blacklisted")
	wrapped := fmt.Errorf("loading: %w", base)
	if !Is(wrapped, IncompatibleUnit) {
		t.Error("Is() should unwrap fmt.Errorf chains")
	}

	joined := errors.Join(New(MalformedManifest, "a"), New(StageFailure, "b"))
	if !Is(joined, StageFailure) {
		t.Error("Is() should look inside joined errors")
	}
	if Is(joined, NotFound) {
		t.Error("Is() matched a kind that is not present")
	}
}

func TestUserMessageDropsCauses(t *testing.T) {
	err := errors.Join(
		Wrap(StageFailure, os.ErrNotExist, "cannot move a.zip"),
		New(IncompatibleUnit, "plugin b is too old"),
	)
	want := "cannot move a.zip\nplugin b is too old"
	if got := UserMessage(err); got != want {
		t.Errorf("UserMessage() = %q, want %q", got, want)
	}
}
