package model

import "encoding/json"

// Metrics is the behavioral payload reported with a session (click counts,
// timings, rule compliance). Ranking and aggregation never read it.
type Metrics map[string]json.RawMessage

// Clone returns an independent copy.
func (m Metrics) Clone() Metrics {
	if m == nil {
		return nil
	}
	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Len returns the number of attached fields.
func (m Metrics) Len() int { return len(m) }
