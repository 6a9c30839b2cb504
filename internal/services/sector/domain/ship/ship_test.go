package ship

import (
	"errors"
	"testing"

	apperrors "github.com/starfall-games/driftspace/internal/platform/errors"
)

func TestDeductFighters(t *testing.T) {
	s := Ship{ID: "ship-a", CurrentFighters: 80}

	updated, err := s.DeductFighters(10)
	if err != nil {
		t.Fatalf("deduct fighters: %v", err)
	}
	if updated.CurrentFighters != 70 {
		t.Fatalf("current_fighters = %d, want 70", updated.CurrentFighters)
	}
	// Value semantics: the original is untouched.
	if s.CurrentFighters != 80 {
		t.Fatalf("original current_fighters = %d, want 80", s.CurrentFighters)
	}
}

func TestDeductFightersNeverGoesNegative(t *testing.T) {
	s := Ship{ID: "ship-a", CurrentFighters: 5}

	if _, err := s.DeductFighters(6); !errors.Is(err, apperrors.New(apperrors.CodeInsufficientFighters, "")) {
		t.Fatalf("err = %v, want insufficient fighters", err)
	}
}

func TestDeductFightersExactDrain(t *testing.T) {
	s := Ship{ID: "ship-a", CurrentFighters: 10}

	updated, err := s.DeductFighters(10)
	if err != nil {
		t.Fatalf("deduct fighters: %v", err)
	}
	if updated.CurrentFighters != 0 {
		t.Fatalf("current_fighters = %d, want 0", updated.CurrentFighters)
	}
}

func TestAddFightersAndCredits(t *testing.T) {
	s := Ship{ID: "ship-a", CurrentFighters: 20, Credits: 1000}

	s = s.AddFighters(10).AddCredits(200)
	if s.CurrentFighters != 30 {
		t.Fatalf("current_fighters = %d, want 30", s.CurrentFighters)
	}
	if s.Credits != 1200 {
		t.Fatalf("credits = %d, want 1200", s.Credits)
	}
}
