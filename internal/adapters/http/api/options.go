package api

import (
	"strings"

	"github.com/okian/driftboard/pkg/logger"
)

const (
	defaultPlayerHeader = "X-Player-ID"
	defaultEmailHeader  = "X-Player-Email"
)

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger handlers use for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAPIKey requires key on every /api request, in X-API-Key or as a bearer
// token. An empty key disables the check.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = strings.TrimSpace(key)
	}
}

// WithIdentityHeaders names the headers the gateway uses to pass the caller's
// player id and email.
func WithIdentityHeaders(player, email string) Option {
	return func(s *Server) {
		if player != "" {
			s.ident.player = player
		}
		if email != "" {
			s.ident.email = email
		}
	}
}

// WithRateLimit allows rps requests per second per client with the given
// burst. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 || burst <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = newLimiterSet(rps, burst)
	}
}
