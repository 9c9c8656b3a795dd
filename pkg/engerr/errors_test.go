package engerr

import (
	"errors"
	"testing"
)

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Unavailable, cause, "backend call failed")
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
	if CodeOf(err) != Unavailable {
		t.Fatalf("expected Unavailable, got %s", CodeOf(err))
	}
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	if CodeOf(errors.New("plain")) != Internal {
		t.Fatal("expected an un-annotated error to classify as Internal")
	}
	if CodeOf(nil) != "" {
		t.Fatal("expected nil error to have empty code")
	}
}

func TestWithConflicts(t *testing.T) {
	conflicts := []Conflict{
		{Key: []string{"a"}, Kind: PayloadDiffers, Message: "divergent update"},
	}
	err := WithConflicts(ContentConflict, conflicts, "merge produced conflicts")
	if !Is(err, ContentConflict) {
		t.Fatal("expected ContentConflict code")
	}
	got := ConflictsOf(err)
	if len(got) != 1 || got[0].Kind != PayloadDiffers {
		t.Fatalf("unexpected conflicts: %+v", got)
	}
}
