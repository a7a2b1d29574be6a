package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := NotFound("save %q not found", "abc")
	wrapped := fmt.Errorf("load: %w", base)

	if got := KindOf(wrapped); got != KindNotFound {
		t.Errorf("KindOf = %s, want %s", got, KindNotFound)
	}
	if !errors.Is(wrapped, &Error{Kind: KindNotFound}) {
		t.Error("errors.Is should match on kind")
	}
	if errors.Is(wrapped, &Error{Kind: KindFormat}) {
		t.Error("errors.Is should not match a different kind")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain error should be KindUnknown")
	}
}

func TestErrorString(t *testing.T) {
	e := &Error{Kind: KindServer, Message: "boom", Status: 500, Method: "GET", URL: "/health"}
	want := "server: GET /health (500): boom"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}

	v := Validation("invalid player id")
	if v.Error() != "validation: invalid player id" {
		t.Errorf("unexpected: %q", v.Error())
	}
	if Message(fmt.Errorf("ctx: %w", v)) != "invalid player id" {
		t.Errorf("Message did not unwrap: %q", Message(v))
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	e := Wrap(KindNetwork, cause, "network unreachable")
	if !errors.Is(e, cause) {
		t.Error("expected cause in chain")
	}
	if !IsKind(e, KindNetwork) {
		t.Error("expected network kind")
	}
	if IsKind(nil, KindNetwork) {
		t.Error("nil has no kind")
	}
}
