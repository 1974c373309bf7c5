package model

import (
	"fmt"
	"strings"
	"time"
)

// Profile is the player identity record that supplies display names.
type Profile struct {
	ID        string             `json:"id"`
	Email     string             `json:"email"`
	Username  string             `json:"username"`
	AvatarURL string             `json:"avatar_url,omitempty"`
	Bio       string             `json:"bio,omitempty"`
	PlayStyle string             `json:"play_style,omitempty"`
	Archetype string             `json:"psychological_archetype,omitempty"`
	Traits    map[string]float64 `json:"traits,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ProfilePatch carries a partial profile update; nil fields are left as is.
type ProfilePatch struct {
	Username  *string            `json:"username,omitempty"`
	AvatarURL *string            `json:"avatar_url,omitempty"`
	Bio       *string            `json:"bio,omitempty"`
	PlayStyle *string            `json:"play_style,omitempty"`
	Archetype *string            `json:"psychological_archetype,omitempty"`
	Traits    map[string]float64 `json:"traits,omitempty"`
}

// Apply merges the patch into p. Traits are merged key by key.
func (pp ProfilePatch) Apply(p *Profile) {
	if pp.Username != nil {
		p.Username = *pp.Username
	}
	if pp.AvatarURL != nil {
		p.AvatarURL = *pp.AvatarURL
	}
	if pp.Bio != nil {
		p.Bio = *pp.Bio
	}
	if pp.PlayStyle != nil {
		p.PlayStyle = *pp.PlayStyle
	}
	if pp.Archetype != nil {
		p.Archetype = *pp.Archetype
	}
	if len(pp.Traits) > 0 {
		if p.Traits == nil {
			p.Traits = make(map[string]float64, len(pp.Traits))
		}
		for k, v := range pp.Traits {
			p.Traits[k] = v
		}
	}
}

// WithDefaults fills email and username the way new profiles are created:
// username falls back to the email local part, then to user_ plus the
// first 8 characters of the id.
func (p Profile) WithDefaults() (Profile, error) {
	if strings.TrimSpace(p.ID) == "" {
		return p, ErrMissingProfileID
	}
	explicitEmail := strings.TrimSpace(p.Email)
	if explicitEmail == "" {
		p.Email = fmt.Sprintf("user_%s@system.local", p.ID)
	}
	if strings.TrimSpace(p.Username) == "" {
		if local, _, _ := strings.Cut(explicitEmail, "@"); local != "" {
			p.Username = local
		} else {
			p.Username = "user_" + prefix(p.ID, 8)
		}
	}
	return p, nil
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
