package domain

import (
	"time"

	"jamlab/errors"
)

type Role string

const (
	RoleOwner      Role = "OWNER"
	RoleModerator  Role = "MODERATOR"
	RoleBandMember Role = "BAND_MEMBER"
	RoleAudience   Role = "AUDIENCE"
)

// ParseRole validates a role coming from the wire.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOwner, RoleModerator, RoleBandMember, RoleAudience:
		return Role(s), nil
	default:
		return "", errors.Validation("unknown role %q", s)
	}
}

// InstrumentProfile is the instrument setup a member reported during
// onboarding. Preserved across grace-period reconnections.
type InstrumentProfile struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Member is an immutable membership record. Role changes replace the
// record, they never mutate it in place.
type Member struct {
	UserID     string             `json:"user_id"`
	Name       string             `json:"name"`
	Role       Role               `json:"role"`
	Instrument *InstrumentProfile `json:"instrument,omitempty"`
	JoinedAt   time.Time          `json:"joined_at"`
}

func (m Member) WithRole(role Role) Member {
	m.Role = role
	return m
}

func (m Member) WithInstrument(profile *InstrumentProfile) Member {
	m.Instrument = profile
	return m
}
