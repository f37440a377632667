package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuseRanks(t *testing.T) {
	tests := []struct {
		name     string
		semantic []int32
		lexical  []int32
		want     []int32
	}{
		{
			name:     "both empty",
			semantic: nil,
			lexical:  nil,
			want:     []int32{},
		},
		{
			name:     "semantic only",
			semantic: []int32{1, 2, 3},
			lexical:  nil,
			want:     []int32{1, 2, 3},
		},
		{
			name:     "lexical only",
			semantic: nil,
			lexical:  []int32{7, 8},
			want:     []int32{7, 8},
		},
		{
			// 3 appears in both lists (1/61 + 1/62) and beats the
			// single-source leaders (1/61 each).
			name:     "dual membership wins",
			semantic: []int32{1, 3},
			lexical:  []int32{3, 2},
			want:     []int32{3, 1, 2},
		},
		{
			// 1 and 2 both score exactly 1/61; the semantic list is
			// processed first, so 1 keeps its earlier position.
			name:     "equal scores keep first-appearance order",
			semantic: []int32{1},
			lexical:  []int32{2},
			want:     []int32{1, 2},
		},
		{
			// 1 and 2 tie at 1/61 + 1/62 and both beat the single-source
			// ids 3 and 4 at 1/63; the tie resolves to semantic order.
			name:     "mirrored dual members outrank single-source tails",
			semantic: []int32{1, 2, 3},
			lexical:  []int32{2, 1, 4},
			want:     []int32{1, 2, 3, 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FuseRanks(tt.semantic, tt.lexical, RRFDampingFactor)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFuseRanksDeterministic(t *testing.T) {
	semantic := []int32{5, 1, 9, 3}
	lexical := []int32{3, 9, 2, 5}
	first := FuseRanks(semantic, lexical, RRFDampingFactor)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, FuseRanks(semantic, lexical, RRFDampingFactor))
	}
}

func TestFuseRanksDefaultsDampingFactor(t *testing.T) {
	got := FuseRanks([]int32{1, 2}, []int32{2, 1}, 0)
	// Symmetric contributions: both ids score 1/61 + 1/62.
	assert.Equal(t, []int32{1, 2}, got)
}
