package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapKeepsMarkerAndCause(t *testing.T) {
	base := errors.New("connection refused")
	err := Wrap(ErrUpstreamUnavailable, "steam", "list owned games", base)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected cause to be retained, got %v", err)
	}
	for _, fragment := range []string{"steam", "list owned games", "connection refused"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %q", fragment, err.Error())
		}
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(Wrap(ErrMissingCredential, "psn", "", nil)) {
		t.Fatal("missing credential must be fatal")
	}
	if !IsFatal(fmt.Errorf("outer: %w", ErrNotAuthenticated)) {
		t.Fatal("not authenticated must be fatal")
	}
	if IsFatal(Wrap(ErrUpstreamUnavailable, "steam", "", nil)) {
		t.Fatal("upstream errors are per-item")
	}
}

func TestReportOrdersAndTruncates(t *testing.T) {
	var r Report
	for i := 0; i < 30; i++ {
		r.Add(fmt.Sprintf("game %d", i), Wrap(ErrUpstreamUnavailable, "fetch", "", nil))
	}
	r.Add("broken", Wrap(ErrDataIntegrity, "map", "candidate has no id", nil))

	if r.Total() != 31 {
		t.Fatalf("expected 31 recorded errors, got %d", r.Total())
	}
	items := r.Items()
	if len(items) != MaxReportedErrors {
		t.Fatalf("expected %d visible errors, got %d", MaxReportedErrors, len(items))
	}
	if items[0].Title != "broken" || items[0].Reason != "data integrity" {
		t.Fatalf("expected integrity error first, got %+v", items[0])
	}
	if items[1].Title != "game 0" {
		t.Fatalf("expected arrival order within rank, got %q", items[1].Title)
	}
}
