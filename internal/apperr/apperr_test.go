package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{Validation("missing %s", "userId"), http.StatusBadRequest},
		{NotFound("user", "u1"), http.StatusNotFound},
		{Auth("bad key"), http.StatusUnauthorized},
		{Upstream("store", errors.New("down")), http.StatusInternalServerError},
		{Config("no key", nil), http.StatusInternalServerError},
		{NotSelectable(CodeNoChallengesLeft, "none"), http.StatusNotFound},
		{Conflict("busy", nil), http.StatusConflict},
	}
	for _, tt := range tests {
		if got := tt.err.Status(); got != tt.want {
			t.Errorf("%s: Status() = %d, want %d", tt.err.Kind, got, tt.want)
		}
	}
}

func TestAsWrapped(t *testing.T) {
	base := NotFound("challenge", "c1")
	wrapped := fmt.Errorf("load: %w", base)

	got := As(wrapped)
	if got != base {
		t.Fatalf("As() = %v, want the wrapped *Error", got)
	}
	if !IsKind(wrapped, KindNotFound) {
		t.Error("IsKind(not_found) = false")
	}
	if got.Message != "challenge c1 not found" {
		t.Errorf("Message = %q", got.Message)
	}
}

func TestAsPlainError(t *testing.T) {
	cause := errors.New("disk full")
	got := As(cause)
	if got.Kind != KindUpstream {
		t.Errorf("Kind = %s, want upstream", got.Kind)
	}
	if !errors.Is(got, cause) {
		t.Error("upstream error should unwrap to the cause")
	}
}

func TestCollector(t *testing.T) {
	c := NewCollector(nil)
	if !c.Check("link history", nil) {
		t.Error("Check(nil) = false")
	}
	if c.Warnings() != nil {
		t.Errorf("Warnings() = %v, want nil", c.Warnings())
	}

	if c.Check("link history", errors.New("timeout")) {
		t.Error("Check(err) = true")
	}
	c.Warn("user %s not found", "u1")

	got := c.Warnings()
	want := []string{"link history failed: timeout", "user u1 not found"}
	if len(got) != len(want) {
		t.Fatalf("Warnings() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("warning %d = %q, want %q", i, got[i], want[i])
		}
	}
}
