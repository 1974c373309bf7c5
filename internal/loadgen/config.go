// Package loadgen drives a running driftboard service with generated
// sessions and checks its leaderboards against a local recomputation.
package loadgen

import (
	"fmt"
	"time"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultBaseURL      = "http://localhost:9080"
	DefaultPlayers      = 50
	DefaultSessions     = 20
	DefaultWorkers      = 8
	DefaultTimeout      = 10 * time.Second
	DefaultTopN         = 100
	DefaultPlayerHeader = "X-Player-ID"

	maxTopN            = 1000
	progressInterval   = time.Second
	workerChannelDepth = 2
	percentage         = 100

	maxLoggedMismatches = 20
)

// Config describes one load run.
type Config struct {
	BaseURL  string        `json:"base_url"`
	Players  int           `json:"players"`
	Sessions int           `json:"sessions_per_player"`
	Workers  int           `json:"workers"`
	Seed     uint64        `json:"seed"`
	Timeout  time.Duration `json:"timeout"`
	// Settle is how long to wait between submitting and reading back.
	Settle time.Duration `json:"settle"`
	// TopN is the limit used when reading the leaderboards back.
	TopN int `json:"top_n"`
	// DuplicateRate is the share of sessions reported a second time, in [0,1].
	DuplicateRate float64 `json:"duplicate_rate"`
	// WinRate is the probability that a generated session is a win, in [0,1].
	WinRate float64 `json:"win_rate"`

	APIKey       string `json:"-"`
	PlayerHeader string `json:"-"`
	OutputFile   string `json:"-"`
	Verbose      bool   `json:"-"`
}

// withDefaults fills zero fields and validates the rest.
func (c Config) withDefaults() (Config, error) {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Players == 0 {
		c.Players = DefaultPlayers
	}
	if c.Sessions == 0 {
		c.Sessions = DefaultSessions
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.TopN == 0 {
		c.TopN = DefaultTopN
	}
	if c.PlayerHeader == "" {
		c.PlayerHeader = DefaultPlayerHeader
	}
	switch {
	case c.Players < 0:
		return c, fmt.Errorf("%w: players must be positive, got %d", ErrInvalidConfig, c.Players)
	case c.Sessions < 0:
		return c, fmt.Errorf("%w: sessions must be positive, got %d", ErrInvalidConfig, c.Sessions)
	case c.Workers < 0:
		return c, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	case c.TopN < 0 || c.TopN > maxTopN:
		return c, fmt.Errorf("%w: top must be in 1..%d, got %d", ErrInvalidConfig, maxTopN, c.TopN)
	case c.DuplicateRate < 0 || c.DuplicateRate > 1:
		return c, fmt.Errorf("%w: duplicate rate must be in [0,1], got %v", ErrInvalidConfig, c.DuplicateRate)
	case c.WinRate < 0 || c.WinRate > 1:
		return c, fmt.Errorf("%w: win rate must be in [0,1], got %v", ErrInvalidConfig, c.WinRate)
	}
	return c, nil
}

// Stats counts what happened during a run.
type Stats struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	Generated  int `json:"generated"`
	Submitted  int `json:"submitted"`
	Created    int `json:"created"`
	Duplicate  int `json:"duplicate"`
	Failed     int `json:"failed"`
	RankChecks int `json:"rank_checks"`

	LeaderboardEntries int `json:"leaderboard_entries"`
	WinnerEntries      int `json:"winner_entries"`
}

// Mismatch is one disagreement between the service and the local result.
type Mismatch struct {
	Check    string `json:"check"`
	PlayerID string `json:"player_id,omitempty"`
	Want     string `json:"want"`
	Got      string `json:"got"`
}

func (m Mismatch) String() string {
	if m.PlayerID == "" {
		return fmt.Sprintf("%s: want %s, got %s", m.Check, m.Want, m.Got)
	}
	return fmt.Sprintf("%s[%s]: want %s, got %s", m.Check, m.PlayerID, m.Want, m.Got)
}

// Report is the outcome of a run, as saved with --out.
type Report struct {
	Config     Config     `json:"config"`
	Stats      Stats      `json:"stats"`
	Mismatches []Mismatch `json:"mismatches"`
	OK         bool       `json:"ok"`
}
