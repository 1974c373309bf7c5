package loadgen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/okian/driftboard/internal/domain/types"
)

func sessions() []Session {
	return []Session{
		{SessionID: "a1", PlayerID: "a", FinalScore: 50, Won: true},
		{SessionID: "a2", PlayerID: "a", FinalScore: 90, Won: true},
		{SessionID: "b1", PlayerID: "b", FinalScore: 70},
		{SessionID: "c1", PlayerID: "c", FinalScore: 70, Won: true},
	}
}

func TestExpected(t *testing.T) {
	best, wins := Expected(sessions())
	if assert.Len(t, best, 3) {
		assert.Equal(t, []string{"a", "b", "c"}, []string{best[0].PlayerID, best[1].PlayerID, best[2].PlayerID})
		assert.Equal(t, int64(90), best[0].FinalScore)
	}
	if assert.Len(t, wins, 2) {
		assert.Equal(t, "a", wins[0].PlayerID)
		assert.Equal(t, 2, wins[0].Wins)
	}
}

func TestVerifyGlobal(t *testing.T) {
	best, _ := Expected(sessions())
	exact := []types.LeaderboardEntry{
		{PlayerID: "a", Score: 90},
		{PlayerID: "b", Score: 70},
		{PlayerID: "c", Score: 70},
	}
	assert.Empty(t, verifyGlobal(best, exact, 10))

	t.Run("foreign players are skipped", func(t *testing.T) {
		mixed := []types.LeaderboardEntry{
			{PlayerID: "z", Score: 99},
			{PlayerID: "a", Score: 90},
			{PlayerID: "b", Score: 70},
			{PlayerID: "c", Score: 70},
			{PlayerID: "y", Score: 1},
		}
		assert.Empty(t, verifyGlobal(best, mixed, 10))
	})

	t.Run("a truncated board only needs the prefix", func(t *testing.T) {
		assert.Empty(t, verifyGlobal(best, exact[:2], 2))
	})

	t.Run("wrong scores and missing players are reported", func(t *testing.T) {
		wrong := []types.LeaderboardEntry{{PlayerID: "a", Score: 50}, {PlayerID: "b", Score: 70}}
		got := verifyGlobal(best, wrong, 10)
		checks := map[string]bool{}
		for _, m := range got {
			checks[m.Check] = true
		}
		assert.True(t, checks["global.entry"])
		assert.True(t, checks["global.size"])
	})

	t.Run("tie order is by player id", func(t *testing.T) {
		swapped := []types.LeaderboardEntry{exact[0], exact[2], exact[1]}
		got := verifyGlobal(best, swapped, 10)
		assert.NotEmpty(t, got)
		assert.Equal(t, "global.order", got[0].Check)
	})
}

func TestVerifyWinners(t *testing.T) {
	_, wins := Expected(sessions())
	ok := []types.TopWinner{{PlayerID: "a", Wins: 2}, {PlayerID: "c", Wins: 1}}
	assert.Empty(t, verifyWinners(wins, ok, 10))

	bad := []types.TopWinner{{PlayerID: "a", Wins: 1}, {PlayerID: "b", Wins: 0}}
	got := verifyWinners(wins, bad, 10)
	assert.NotEmpty(t, got)
}

func TestVerifyRank(t *testing.T) {
	best, _ := Expected(sessions())
	c := best[2]

	assert.Empty(t, verifyRank(best, c, types.RankResult{PlayerID: "c", Position: 2, BestScore: 70, Ranked: true}, true))
	assert.Empty(t, verifyRank(best, c, types.RankResult{PlayerID: "c", Position: 5, BestScore: 70, Ranked: true}, false))
	assert.NotEmpty(t, verifyRank(best, c, types.RankResult{PlayerID: "c", Position: 5, BestScore: 70, Ranked: true}, true))
	assert.NotEmpty(t, verifyRank(best, c, types.RankResult{PlayerID: "c", Position: 1, BestScore: 70, Ranked: true}, false))
	assert.NotEmpty(t, verifyRank(best, c, types.Unranked("c"), false))
}
