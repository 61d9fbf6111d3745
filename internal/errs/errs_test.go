package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestOnlyPersistenceIsFatal(t *testing.T) {
	cases := []struct {
		err   *Error
		fatal bool
	}{
		{Persistence("op", errors.New("disk full")), true},
		{Validation("op", errors.New("bad input")), false},
		{Referential("op", errors.New("missing id")), false},
		{Migration("op", errors.New("schema")), false},
		{Integrity("op", errors.New("dangling ref")), false},
		{BestEffort("op", errors.New("best effort failed")), false},
	}
	for _, c := range cases {
		if got := c.err.Fatal(); got != c.fatal {
			t.Errorf("%s.Fatal() = %v, want %v", c.err.Kind, got, c.fatal)
		}
	}
}

func TestErrorUnwrapsToUnderlyingCause(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := fmt.Errorf("context: %w", Persistence("write", cause))

	var e *Error
	if !errors.As(wrapped, &e) {
		t.Fatal("errors.As failed to recover *Error")
	}
	if e.Kind != KindPersistence {
		t.Errorf("Kind = %v, want KindPersistence", e.Kind)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is failed to reach the wrapped cause")
	}
}

func TestValidationfFormatsMessage(t *testing.T) {
	err := Validationf("plan.skip", "pattern %q matched %d findings", "foo-*", 3)
	want := `validation: plan.skip: pattern "foo-*" matched 3 findings`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorWithNilCauseOmitsColonSuffix(t *testing.T) {
	err := &Error{Kind: KindIntegrity, Op: "cluster.check"}
	want := "integrity: cluster.check"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKindStringCoversEveryKind(t *testing.T) {
	kinds := []Kind{KindPersistence, KindValidation, KindReferential, KindMigration, KindIntegrity, KindBestEffort}
	seen := map[string]bool{}
	for _, k := range kinds {
		s := k.String()
		if s == "unknown" {
			t.Errorf("Kind %d stringified to \"unknown\"", k)
		}
		if seen[s] {
			t.Errorf("duplicate Kind string %q", s)
		}
		seen[s] = true
	}
}
