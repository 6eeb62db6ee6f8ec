package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/assets_backend/models"
)

func TestApplyDelta(t *testing.T) {
	cases := []struct {
		quantity  int
		direction models.Direction
		want      int
	}{
		{5, models.DirectionIn, 5},
		{5, models.DirectionOut, -5},
		{1, models.DirectionIn, 1},
		{1, models.DirectionOut, -1},
	}
	for _, tc := range cases {
		if got := ApplyDelta(tc.quantity, tc.direction); got != tc.want {
			t.Fatalf("ApplyDelta(%d, %s) = %d, want %d", tc.quantity, tc.direction, got, tc.want)
		}
	}
}

func TestReversalDeltaUndoesApply(t *testing.T) {
	for _, direction := range []models.Direction{models.DirectionIn, models.DirectionOut} {
		for _, quantity := range []int{1, 4, 250} {
			sum := ApplyDelta(quantity, direction) + ReversalDelta(quantity, direction)
			if sum != 0 {
				t.Fatalf("apply+reverse for qty=%d dir=%s = %d, want 0", quantity, direction, sum)
			}
		}
	}
}

func TestReversalDeltaSign(t *testing.T) {
	if got := ReversalDelta(7, models.DirectionIn); got != -7 {
		t.Fatalf("reversing an IN line must subtract: got %d", got)
	}
	if got := ReversalDelta(7, models.DirectionOut); got != 7 {
		t.Fatalf("reversing an OUT line must add back: got %d", got)
	}
}
