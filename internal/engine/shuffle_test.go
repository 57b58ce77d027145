package engine

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func members(n int) []Member {
	out := make([]Member, n)
	for i := range out {
		out[i] = Member{Index: i, ID: 100 + i, Active: true}
	}
	return out
}

func countTeams(as []Assignment) map[TeamID]int {
	out := map[TeamID]int{}
	for _, a := range as {
		out[a.TeamID]++
	}
	return out
}

func TestShuffle_TwoTeamsEven(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	got := Shuffle(members(10), ShuffleOptions{}, rng)

	require.Len(t, got, 10)
	assert.Equal(t, map[TeamID]int{TeamRed: 5, TeamYellow: 5}, countTeams(got))
}

func TestShuffle_TwoTeamsOddPutsExtraOnRed(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	got := Shuffle(members(7), ShuffleOptions{}, rng)

	// 3 + 3 from the fill, then the trailing entry lands on red.
	assert.Equal(t, map[TeamID]int{TeamRed: 4, TeamYellow: 3}, countTeams(got))

	seen := map[int]bool{}
	for _, a := range got {
		seen[a.Index] = true
	}
	assert.Len(t, seen, 7, "every eligible entry gets exactly one assignment")
}

func TestShuffle_FourTeamsOfTwo(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	got := Shuffle(members(8), ShuffleOptions{IncludeGreenBlueTeams: true}, rng)

	assert.Equal(t, map[TeamID]int{TeamRed: 2, TeamYellow: 2, TeamGreen: 2, TeamBlue: 2}, countTeams(got))
}

func TestShuffle_FiltersInactiveAndStaff(t *testing.T) {
	ms := members(6)
	ms[0].Active = false
	ms[1].Staff = true
	ms[2].TeamID = TeamStaff

	rng := rand.New(rand.NewPCG(7, 8))
	got := Shuffle(ms, ShuffleOptions{}, rng)
	require.Len(t, got, 3)
	for _, a := range got {
		assert.NotContains(t, []int{0, 1, 2}, a.Index)
	}

	withMods := Shuffle(ms, ShuffleOptions{IncludeModerators: true}, rng)
	assert.Len(t, withMods, 5)
}

func TestShuffle_LargeRemainderLeavesEntriesUnassigned(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	// 6 entries over 4 teams: one each, two left over, n is even so no fallback.
	got := Shuffle(members(6), ShuffleOptions{IncludeGreenBlueTeams: true}, rng)
	assert.Len(t, got, 4)
}

func TestShuffle_EmptyAndSingle(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	assert.Empty(t, Shuffle(nil, ShuffleOptions{}, rng))

	got := Shuffle(members(1), ShuffleOptions{}, rng)
	require.Len(t, got, 1)
	assert.Equal(t, TeamRed, got[0].TeamID)
}

func TestShuffle_PermutationIsUnbiased(t *testing.T) {
	// Each of the 4 entries should land in slot 0 (red's first seat) roughly a quarter of the time.
	rng := rand.New(rand.NewPCG(13, 14))
	const rounds = 8000
	first := map[int]int{}
	for range rounds {
		got := Shuffle(members(4), ShuffleOptions{}, rng)
		first[got[0].Index]++
	}
	for idx := 0; idx < 4; idx++ {
		assert.InDelta(t, rounds/4, first[idx], rounds*0.05, "index %d", idx)
	}
}
