package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextState_SuccessWithUnits(t *testing.T) {
	b := Building{LastScrapeStatus: StatusNeedsAttention, ConsecutiveZeroCount: 7}
	tr := NextState(b, true, 12, DefaultZeroThreshold)
	assert.Equal(t, StatusSuccess, tr.Status)
	assert.Zero(t, tr.ZeroCount)
	assert.True(t, tr.ReplaceUnits)
}

func TestNextState_ZeroUnitSuccessIncrements(t *testing.T) {
	b := Building{LastScrapeStatus: StatusSuccess, ConsecutiveZeroCount: 0}
	for i := 1; i <= 4; i++ {
		tr := NextState(b, true, 0, DefaultZeroThreshold)
		assert.Equal(t, StatusSuccess, tr.Status, "below threshold stays success")
		assert.Equal(t, i, tr.ZeroCount)
		assert.True(t, tr.ReplaceUnits)
		b.ConsecutiveZeroCount = tr.ZeroCount
	}
	// Fifth consecutive zero flips to needs_attention.
	tr := NextState(b, true, 0, DefaultZeroThreshold)
	assert.Equal(t, StatusNeedsAttention, tr.Status)
	assert.Equal(t, 5, tr.ZeroCount)
}

func TestNextState_FailureLeavesCountAndUnits(t *testing.T) {
	b := Building{LastScrapeStatus: StatusSuccess, ConsecutiveZeroCount: 3}
	tr := NextState(b, false, 0, DefaultZeroThreshold)
	assert.Equal(t, StatusFailed, tr.Status)
	assert.Equal(t, 3, tr.ZeroCount, "failures must not be conflated with confirmed vacancy")
	assert.False(t, tr.ReplaceUnits)
}

func TestNextState_AttentionRevertsOnUnits(t *testing.T) {
	b := Building{LastScrapeStatus: StatusNeedsAttention, ConsecutiveZeroCount: 5}
	tr := NextState(b, true, 1, DefaultZeroThreshold)
	assert.Equal(t, StatusSuccess, tr.Status)
	assert.Zero(t, tr.ZeroCount)
}

func TestNextState_CustomThreshold(t *testing.T) {
	b := Building{ConsecutiveZeroCount: 1}
	tr := NextState(b, true, 0, 2)
	assert.Equal(t, StatusNeedsAttention, tr.Status)
}

func TestTruncateError(t *testing.T) {
	long := make([]byte, MaxRunError+100)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, TruncateError(string(long)), MaxRunError)
	assert.Equal(t, "short", TruncateError("short"))
}
