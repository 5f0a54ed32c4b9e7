package presenter

import (
	"fmt"
	"math/rand"

	"aurora-radio/internal/catalog"
)

// Selection is the outcome of a duo/solo draw for one spoken segment.
type Selection struct {
	Presenters []catalog.Presenter
	IsDuo      bool
}

// Rotator decides duo vs. solo for spoken segments and keeps per-show solo
// assignment balanced between the two duo members. The random source is
// injected so tests can assert exact sequences. Counters live for the
// process lifetime; only the control loop touches them, so no locking.
type Rotator struct {
	rng    *rand.Rand
	counts map[string]map[string]int // showID -> presenterID -> solo count
}

func NewRotator(rng *rand.Rand) *Rotator {
	return &Rotator{
		rng:    rng,
		counts: make(map[string]map[string]int),
	}
}

// SelectPresenters draws duo vs. solo. A duo draw returns both members and
// leaves the rotation counters untouched. A solo draw picks the member with
// the strictly lower per-show count, uniformly at random on a tie, and
// increments the winner: the count gap only ever narrows.
//
// With an empty showID the pick is untracked uniform random; explicitly not
// fair, acceptable for ad hoc one-off segments.
func (r *Rotator) SelectPresenters(duo []catalog.Presenter, duoProbability float64, showID string) (Selection, error) {
	if len(duo) != 2 {
		return Selection{}, fmt.Errorf("presenter duo must have exactly 2 members, got %d", len(duo))
	}

	if r.rng.Float64() < duoProbability {
		return Selection{Presenters: duo, IsDuo: true}, nil
	}

	if showID == "" {
		pick := duo[r.rng.Intn(2)]
		return Selection{Presenters: []catalog.Presenter{pick}}, nil
	}

	counts := r.counts[showID]
	if counts == nil {
		counts = make(map[string]int)
		r.counts[showID] = counts
	}

	a, b := duo[0], duo[1]
	var pick catalog.Presenter
	switch {
	case counts[a.ID] < counts[b.ID]:
		pick = a
	case counts[b.ID] < counts[a.ID]:
		pick = b
	default:
		pick = duo[r.rng.Intn(2)]
	}
	counts[pick.ID]++

	return Selection{Presenters: []catalog.Presenter{pick}}, nil
}

// Counts returns a copy of the solo counters for a show.
func (r *Rotator) Counts(showID string) map[string]int {
	out := make(map[string]int, len(r.counts[showID]))
	for id, n := range r.counts[showID] {
		out[id] = n
	}
	return out
}

// Reset clears a show's counters. Test/debug only.
func (r *Rotator) Reset(showID string) {
	delete(r.counts, showID)
}
