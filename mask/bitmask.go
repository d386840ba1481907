// Package mask implements feature hiding for masked-degradation analysis:
// enumeration of binary selection masks and substitution of hidden features
// with values drawn from their observed empirical distributions.
//
// A selection mask is a vector of 0/1 values with one entry per feature;
// 1 keeps the feature, 0 hides it. Masks are enumerated per cardinality tier
// (number of ones), from leave-one-out masks up to higher-order interaction
// masks.
package mask

import (
	"github.com/goml-jp/invase/pkg/errors"
)

// Iterator lazily enumerates selection masks of length n whose cardinality
// (count of ones) runs over [minOnes, maxOnesExclusive). Within one
// cardinality tier every C(n, k) mask is produced exactly once, in
// lexicographic order of the one-positions; no global order across tiers is
// guaranteed beyond tier succession.
//
// Cardinality 0 is an explicit edge case: it yields the all-ones mask as a
// singleton. "No features requested" means "keep everything", never "hide
// everything".
type Iterator struct {
	n        int
	k        int // current cardinality tier
	maxOnes  int // exclusive upper bound on cardinality
	ones     []int
	started  bool
	needInit bool // next call must initialize the current tier
	done     bool
}

// NewIterator creates a mask iterator over cardinalities
// [minOnes, maxOnesExclusive).
func NewIterator(n, minOnes, maxOnesExclusive int) (*Iterator, error) {
	if n < 1 {
		return nil, errors.NewValidationError("n", "mask length must be positive", n)
	}
	if minOnes < 0 || minOnes >= maxOnesExclusive {
		return nil, errors.NewValidationError("minOnes", "must satisfy 0 <= minOnes < maxOnesExclusive", minOnes)
	}
	if maxOnesExclusive > n+1 {
		return nil, errors.NewValidationError("maxOnesExclusive", "cannot exceed mask length + 1", maxOnesExclusive)
	}
	return &Iterator{
		n:       n,
		k:       minOnes,
		maxOnes: maxOnesExclusive,
	}, nil
}

// Next returns the next mask, or ok=false once the iterator is exhausted.
// Exhaustion is permanent; subsequent calls keep returning ok=false.
func (it *Iterator) Next() ([]float64, bool) {
	if it.done {
		return nil, false
	}

	if !it.started {
		it.started = true
		if it.k == 0 {
			// Keep-everything singleton for the zero tier. The follow-up
			// tier, if any, is initialized on the next call.
			m := it.emit(nil)
			for i := range m {
				m[i] = 1
			}
			if it.advanceTier() {
				it.needInit = true
			} else {
				it.done = true
			}
			return m, true
		}
		it.initTier()
		return it.emit(it.ones), true
	}

	if it.needInit {
		it.needInit = false
		it.initTier()
		return it.emit(it.ones), true
	}

	if it.nextCombination() {
		return it.emit(it.ones), true
	}
	if !it.advanceTier() {
		it.done = true
		return nil, false
	}
	it.initTier()
	return it.emit(it.ones), true
}

// Collect drains the iterator eagerly and returns all remaining masks.
func (it *Iterator) Collect() [][]float64 {
	var out [][]float64
	for {
		m, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, m)
	}
}

// NextWindow draws the next window of exactly size masks. It returns
// ok=false when the remaining masks cannot fill the window; the residual
// undersized tail is discarded, matching the consumer contract that windows
// always line up with a full instance batch. Callers that need every mask
// must use Next directly.
func (it *Iterator) NextWindow(size int) ([][]float64, bool) {
	if size < 1 {
		return nil, false
	}
	window := make([][]float64, 0, size)
	for len(window) < size {
		m, ok := it.Next()
		if !ok {
			return nil, false
		}
		window = append(window, m)
	}
	return window, true
}

// emit materializes the current one-positions into a 0/1 float vector.
func (it *Iterator) emit(ones []int) []float64 {
	m := make([]float64, it.n)
	for _, p := range ones {
		m[p] = 1
	}
	return m
}

func (it *Iterator) initTier() {
	it.ones = make([]int, it.k)
	for i := range it.ones {
		it.ones[i] = i
	}
}

// nextCombination advances the one-positions to the lexicographically next
// k-combination of [0, n). Returns false when the tier is exhausted.
func (it *Iterator) nextCombination() bool {
	k := len(it.ones)
	i := k - 1
	for i >= 0 && it.ones[i] == it.n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	it.ones[i]++
	for j := i + 1; j < k; j++ {
		it.ones[j] = it.ones[j-1] + 1
	}
	return true
}

func (it *Iterator) advanceTier() bool {
	it.k++
	return it.k < it.maxOnes
}

// Enumerate eagerly produces every mask of length n with cardinality in
// [minOnes, maxOnesExclusive). The leave-one-out tier
// (minOnes=n-1, maxOnesExclusive=n) is the common eager caller.
func Enumerate(n, minOnes, maxOnesExclusive int) ([][]float64, error) {
	it, err := NewIterator(n, minOnes, maxOnesExclusive)
	if err != nil {
		return nil, err
	}
	return it.Collect(), nil
}

// LeaveOneOut returns the masks hiding exactly one feature each. Every
// feature position is hidden by exactly one mask. For n==1 the request
// degenerates to the cardinality-0 tier and the single all-ones mask is
// returned.
func LeaveOneOut(n int) ([][]float64, error) {
	return Enumerate(n, n-1, n)
}
