package loadgen

import (
	"strconv"

	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/internal/domain/ranking"
	"github.com/okian/driftboard/internal/domain/types"
)

// Expected recomputes the best-per-player board and the win counts for the
// acknowledged sessions.
func Expected(acked []Session) ([]model.NamedRecord, []model.WinCount) {
	records := make([]model.NamedRecord, len(acked))
	for i, s := range acked {
		records[i] = s.Record()
	}
	return ranking.BestPerPlayer(records), ranking.CountWins(records)
}

// The service may hold players from other runs. Each check keeps only this
// run's players from the served rows and requires them to be a prefix of
// the expected order.

func verifyGlobal(want []model.NamedRecord, got []types.LeaderboardEntry, limit int) []Mismatch {
	var out []Mismatch
	for i := 1; i < len(got); i++ {
		a, b := got[i-1], got[i]
		if a.Score < b.Score || (a.Score == b.Score && a.PlayerID > b.PlayerID) {
			out = append(out, Mismatch{Check: "global.order", PlayerID: b.PlayerID,
				Want: "after " + a.PlayerID, Got: "position " + strconv.Itoa(i+1)})
		}
	}

	ours := make(map[string]struct{}, len(want))
	for _, r := range want {
		ours[r.PlayerID] = struct{}{}
	}
	n := 0
	for _, e := range got {
		if _, ok := ours[e.PlayerID]; !ok {
			continue
		}
		if n >= len(want) {
			out = append(out, Mismatch{Check: "global.extra", PlayerID: e.PlayerID, Want: "absent", Got: "present"})
			continue
		}
		w := want[n]
		if e.PlayerID != w.PlayerID || e.Score != w.FinalScore {
			out = append(out, Mismatch{Check: "global.entry",
				Want: w.PlayerID + "=" + strconv.FormatInt(w.FinalScore, 10),
				Got:  e.PlayerID + "=" + strconv.FormatInt(e.Score, 10)})
		}
		n++
	}
	if len(got) < limit && n != len(want) {
		out = append(out, Mismatch{Check: "global.size", Want: strconv.Itoa(len(want)), Got: strconv.Itoa(n)})
	}
	return out
}

func verifyWinners(want []model.WinCount, got []types.TopWinner, limit int) []Mismatch {
	var out []Mismatch
	ours := make(map[string]struct{}, len(want))
	for _, w := range want {
		ours[w.PlayerID] = struct{}{}
	}
	n := 0
	for _, g := range got {
		if g.Wins <= 0 {
			out = append(out, Mismatch{Check: "winners.zero", PlayerID: g.PlayerID, Want: ">0", Got: strconv.Itoa(g.Wins)})
		}
		if _, ok := ours[g.PlayerID]; !ok {
			continue
		}
		if n >= len(want) {
			out = append(out, Mismatch{Check: "winners.extra", PlayerID: g.PlayerID, Want: "absent", Got: "present"})
			continue
		}
		w := want[n]
		if g.PlayerID != w.PlayerID || g.Wins != w.Wins {
			out = append(out, Mismatch{Check: "winners.entry",
				Want: w.PlayerID + "=" + strconv.Itoa(w.Wins),
				Got:  g.PlayerID + "=" + strconv.Itoa(g.Wins)})
		}
		n++
	}
	if len(got) < limit && n != len(want) {
		out = append(out, Mismatch{Check: "winners.size", Want: strconv.Itoa(len(want)), Got: strconv.Itoa(n)})
	}
	return out
}

// verifyRank checks one player's rank. exclusive means the service holds
// only this run's players, so positions must match exactly; otherwise
// foreign players can only push a position down.
func verifyRank(want []model.NamedRecord, best model.NamedRecord, got types.RankResult, exclusive bool) []Mismatch {
	id := best.PlayerID
	if !got.Ranked {
		return []Mismatch{{Check: "rank.ranked", PlayerID: id, Want: "true", Got: "false"}}
	}
	var out []Mismatch
	if got.BestScore != best.FinalScore {
		out = append(out, Mismatch{Check: "rank.best_score", PlayerID: id,
			Want: strconv.FormatInt(best.FinalScore, 10), Got: strconv.FormatInt(got.BestScore, 10)})
	}
	pos := ranking.CountAbove(want, best.FinalScore) + 1
	if (exclusive && got.Position != pos) || got.Position < pos {
		out = append(out, Mismatch{Check: "rank.position", PlayerID: id,
			Want: strconv.Itoa(pos), Got: strconv.Itoa(got.Position)})
	}
	return out
}
