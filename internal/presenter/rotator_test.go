package presenter

import (
	"math"
	"math/rand"
	"testing"

	"aurora-radio/internal/catalog"
)

var duo = []catalog.Presenter{
	{ID: "ada", Name: "Ada", Voice: "warm_female"},
	{ID: "felix", Name: "Felix", Voice: "bright_male"},
}

func TestSelectPresentersRejectsNonDuo(t *testing.T) {
	r := NewRotator(rand.New(rand.NewSource(1)))

	for _, n := range []int{0, 1, 3} {
		members := make([]catalog.Presenter, n)
		if _, err := r.SelectPresenters(members, 0.3, "morning"); err == nil {
			t.Errorf("%d presenters accepted, want error", n)
		}
	}
}

func TestDuoDrawLeavesCountersUntouched(t *testing.T) {
	// duoProbability 1.0 forces every draw to be a duo.
	r := NewRotator(rand.New(rand.NewSource(1)))

	for i := 0; i < 20; i++ {
		sel, err := r.SelectPresenters(duo, 1.0, "morning")
		if err != nil {
			t.Fatal(err)
		}
		if !sel.IsDuo || len(sel.Presenters) != 2 {
			t.Fatalf("draw %d: not a duo: %+v", i, sel)
		}
	}

	counts := r.Counts("morning")
	if counts["ada"] != 0 || counts["felix"] != 0 {
		t.Errorf("duo draws incremented solo counters: %v", counts)
	}
}

func TestSoloRotationNarrowsGap(t *testing.T) {
	// duoProbability 0 forces solo every time. After any even number of
	// draws the counters must be exactly equal: the lower count always
	// wins, so the gap can never exceed 1.
	r := NewRotator(rand.New(rand.NewSource(42)))

	for i := 0; i < 100; i++ {
		sel, err := r.SelectPresenters(duo, 0, "morning")
		if err != nil {
			t.Fatal(err)
		}
		if sel.IsDuo || len(sel.Presenters) != 1 {
			t.Fatalf("draw %d: expected solo, got %+v", i, sel)
		}

		counts := r.Counts("morning")
		gap := counts["ada"] - counts["felix"]
		if gap < -1 || gap > 1 {
			t.Fatalf("draw %d: count gap %d exceeds 1: %v", i, gap, counts)
		}
	}

	counts := r.Counts("morning")
	if counts["ada"] != 50 || counts["felix"] != 50 {
		t.Errorf("after 100 solo draws: %v, want 50/50", counts)
	}
}

func TestSoloDistributionIsUnbiased(t *testing.T) {
	// 1000 untracked draws (empty showID) should split roughly evenly.
	// Chi-square with 1 degree of freedom; 10.83 is the 0.1% critical
	// value, so a fair source essentially never fails this.
	r := NewRotator(rand.New(rand.NewSource(7)))

	picks := make(map[string]int)
	for i := 0; i < 1000; i++ {
		sel, err := r.SelectPresenters(duo, 0, "")
		if err != nil {
			t.Fatal(err)
		}
		picks[sel.Presenters[0].ID]++
	}

	expected := 500.0
	chi := math.Pow(float64(picks["ada"])-expected, 2)/expected +
		math.Pow(float64(picks["felix"])-expected, 2)/expected
	if chi > 10.83 {
		t.Errorf("solo picks badly skewed: %v (chi-square %.2f)", picks, chi)
	}
}

func TestCountersAreSeparatePerShow(t *testing.T) {
	r := NewRotator(rand.New(rand.NewSource(3)))

	for i := 0; i < 10; i++ {
		r.SelectPresenters(duo, 0, "morning")
	}
	for i := 0; i < 4; i++ {
		r.SelectPresenters(duo, 0, "evening")
	}

	morning := r.Counts("morning")
	evening := r.Counts("evening")
	if morning["ada"]+morning["felix"] != 10 {
		t.Errorf("morning counters = %v, want total 10", morning)
	}
	if evening["ada"]+evening["felix"] != 4 {
		t.Errorf("evening counters = %v, want total 4", evening)
	}
}

func TestCountsReturnsCopy(t *testing.T) {
	r := NewRotator(rand.New(rand.NewSource(5)))
	r.SelectPresenters(duo, 0, "morning")

	counts := r.Counts("morning")
	counts["ada"] = 999

	if r.Counts("morning")["ada"] == 999 {
		t.Error("Counts exposed internal map")
	}
}

func TestReset(t *testing.T) {
	r := NewRotator(rand.New(rand.NewSource(9)))
	for i := 0; i < 6; i++ {
		r.SelectPresenters(duo, 0, "morning")
	}
	r.Reset("morning")
	counts := r.Counts("morning")
	if counts["ada"] != 0 || counts["felix"] != 0 {
		t.Errorf("counters survived reset: %v", counts)
	}
}
