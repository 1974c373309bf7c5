package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/driftboard/internal/domain/types"
)

// Outcome classifies one submission.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeCreated
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "failed"
	}
}

// Client talks to the driftboard HTTP API.
type Client struct {
	http         *http.Client
	base         string
	apiKey       string
	playerHeader string
}

// NewClient builds a client for the service at base.
func NewClient(base string, timeout time.Duration, apiKey, playerHeader string) *Client {
	if playerHeader == "" {
		playerHeader = DefaultPlayerHeader
	}
	return &Client{
		http:         &http.Client{Timeout: timeout},
		base:         strings.TrimRight(base, "/"),
		apiKey:       apiKey,
		playerHeader: playerHeader,
	}
}

// Ready reports whether /readyz answers 200.
func (c *Client) Ready(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/readyz", "", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Submit reports s as its player. 201 counts as created and 200 as a
// repeat of an already stored session.
func (c *Client) Submit(ctx context.Context, s Session) (Outcome, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("marshal session: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/stats", s.PlayerID, body)
	if err != nil {
		return OutcomeFailed, err
	}
	defer drain(resp)
	switch resp.StatusCode {
	case http.StatusCreated:
		return OutcomeCreated, nil
	case http.StatusOK:
		return OutcomeDuplicate, nil
	default:
		return OutcomeFailed, statusError(resp)
	}
}

// Global reads the global leaderboard.
func (c *Client) Global(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	var out []types.LeaderboardEntry
	err := c.getJSON(ctx, "/api/leaderboard/global?limit="+strconv.Itoa(limit), &out)
	return out, err
}

// TopWinners reads the win-count leaderboard.
func (c *Client) TopWinners(ctx context.Context, limit int) ([]types.TopWinner, error) {
	var out []types.TopWinner
	err := c.getJSON(ctx, "/api/leaderboard/top-winners?limit="+strconv.Itoa(limit), &out)
	return out, err
}

// Rank reads one player's rank.
func (c *Client) Rank(ctx context.Context, playerID string) (types.RankResult, error) {
	var w struct {
		PlayerID    string `json:"player_id"`
		DisplayName string `json:"username"`
		Rank        *int   `json:"rank"`
		BestScore   *int64 `json:"best_score"`
		Ranked      bool   `json:"ranked"`
	}
	if err := c.getJSON(ctx, "/api/leaderboard/rank/"+url.PathEscape(playerID), &w); err != nil {
		return types.RankResult{}, err
	}
	res := types.RankResult{PlayerID: w.PlayerID, DisplayName: w.DisplayName, Ranked: w.Ranked}
	if w.Rank != nil {
		res.Position = *w.Rank
	}
	if w.BestScore != nil {
		res.BestScore = *w.BestScore
	}
	return res, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, player string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if player != "" {
		req.Header.Set(c.playerHeader, player)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	if body.Code != "" {
		return fmt.Errorf("%w %d: %s: %s", ErrUnexpectedStatus, resp.StatusCode, body.Code, body.Message)
	}
	return fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
