package scrape

// DefaultZeroThreshold is how many consecutive zero-unit successes flip a
// building to needs_attention.
const DefaultZeroThreshold = 5

// Transition is the computed next state for a building given one scrape
// outcome. The store applies it together with the unit replacement and the
// audit row in a single transaction.
type Transition struct {
	Status Status
	// ZeroCount is the new consecutive_zero_count value.
	ZeroCount int
	// ReplaceUnits is true when stored units must be deleted and re-inserted
	// (every success, including confirmed-zero). On failure stored units are
	// left untouched.
	ReplaceUnits bool
}

// NextState computes the state-machine transition for a scrape outcome.
//
//   - success with units: replace units, reset zero count, status success.
//   - success with zero units: replace (clear) units, increment zero count;
//     needs_attention once the count reaches zeroThreshold.
//   - failure: keep units, keep zero count (a transient failure is not
//     confirmed vacancy), status failed.
func NextState(b Building, succeeded bool, unitCount, zeroThreshold int) Transition {
	if zeroThreshold <= 0 {
		zeroThreshold = DefaultZeroThreshold
	}
	if !succeeded {
		return Transition{Status: StatusFailed, ZeroCount: b.ConsecutiveZeroCount, ReplaceUnits: false}
	}
	if unitCount > 0 {
		return Transition{Status: StatusSuccess, ZeroCount: 0, ReplaceUnits: true}
	}
	zc := b.ConsecutiveZeroCount + 1
	status := StatusSuccess
	if zc >= zeroThreshold {
		status = StatusNeedsAttention
	}
	return Transition{Status: status, ZeroCount: zc, ReplaceUnits: true}
}
