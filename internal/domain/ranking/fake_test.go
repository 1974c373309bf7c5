package ranking_test

import (
	"context"
	"errors"
	"time"

	"github.com/okian/driftboard/internal/domain/model"
)

var errStoreDown = errors.New("store down")

// fakeStore is a scan-only record source.
type fakeStore struct {
	records []model.NamedRecord
	names   map[string]string
	err     error
	fetches int
}

func (f *fakeStore) FetchAll(_ context.Context, since *time.Time) ([]model.NamedRecord, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.NamedRecord, 0, len(f.records))
	for _, r := range f.records {
		if since == nil || !r.PlayedAt.Before(*since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) FetchByPlayer(_ context.Context, playerID string) ([]model.SessionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.SessionRecord
	for _, r := range f.records {
		if r.PlayerID == playerID {
			out = append(out, r.SessionRecord)
		}
	}
	return out, nil
}

func (f *fakeStore) ResolveDisplayName(_ context.Context, playerID string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	name, ok := f.names[playerID]
	return name, ok, nil
}

func rec(session, player string, score int64, won bool, at time.Time) model.NamedRecord {
	return model.NamedRecord{SessionRecord: model.SessionRecord{
		SessionID: session, PlayerID: player, FinalScore: score, Won: won, PlayedAt: at,
	}}
}

func named(r model.NamedRecord, name string) model.NamedRecord {
	r.DisplayName = name
	return r
}
