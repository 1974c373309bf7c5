package loadgen

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/driftboard/internal/domain/model"
)

const (
	maxScore = 10_000
	maxPhase = 6
	maxClick = 500
)

var colors = []string{"red", "green", "blue", "amber", "violet"}

// Session is one generated report. PlayerID travels in the identity header,
// not in the body.
type Session struct {
	SessionID        string  `json:"session_id"`
	PlayerID         string  `json:"-"`
	FinalScore       int64   `json:"final_score"`
	FinalEntropy     float64 `json:"final_entropy"`
	Won              bool    `json:"won"`
	PhaseReached     int     `json:"phase_reached"`
	TotalClicks      int     `json:"total_clicks"`
	MostClickedColor string  `json:"most_clicked_color"`
}

// Record converts s to the record the service is expected to keep.
func (s Session) Record() model.NamedRecord {
	return model.NamedRecord{SessionRecord: model.SessionRecord{
		SessionID:    s.SessionID,
		PlayerID:     s.PlayerID,
		FinalScore:   s.FinalScore,
		FinalEntropy: s.FinalEntropy,
		Won:          s.Won,
		PhaseReached: s.PhaseReached,
	}}
}

// PlayerID names the i-th generated player of a seed. Runs with the same
// seed report the same players and sessions.
func PlayerID(seed uint64, i int) string {
	return fmt.Sprintf("lg-%016x-%04d", seed, i)
}

// Generate builds cfg.Players*cfg.Sessions sessions in a shuffled order.
// The output depends only on the seed and the counts.
func Generate(cfg Config) ([]Session, error) {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], cfg.Seed)
	ids := rand.NewChaCha8(key)

	out := make([]Session, 0, cfg.Players*cfg.Sessions)
	for p := 0; p < cfg.Players; p++ {
		player := PlayerID(cfg.Seed, p)
		for i := 0; i < cfg.Sessions; i++ {
			id, err := uuid.NewRandomFromReader(ids)
			if err != nil {
				return nil, fmt.Errorf("generate session id: %w", err)
			}
			out = append(out, Session{
				SessionID:        id.String(),
				PlayerID:         player,
				FinalScore:       rng.Int64N(maxScore),
				FinalEntropy:     rng.Float64(),
				Won:              rng.Float64() < cfg.WinRate,
				PhaseReached:     rng.IntN(maxPhase),
				TotalClicks:      rng.IntN(maxClick),
				MostClickedColor: colors[rng.IntN(len(colors))],
			})
		}
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}

// withResends appends a repeat of roughly rate of the sessions.
func withResends(sessions []Session, rate float64, seed uint64) []Session {
	if rate <= 0 {
		return sessions
	}
	rng := rand.New(rand.NewPCG(seed^0x5bd1e995, seed))
	out := make([]Session, len(sessions), len(sessions)+int(float64(len(sessions))*rate)+1)
	copy(out, sessions)
	for _, s := range sessions {
		if rng.Float64() < rate {
			out = append(out, s)
		}
	}
	return out
}
