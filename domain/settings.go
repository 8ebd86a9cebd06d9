package domain

import (
	"fmt"
	"strings"

	"jamlab/domain/event"
	"jamlab/errors"
)

// RoomSettings is the mutable configuration of a room. Updates go through
// Room.UpdateSettings so the diff is recorded as a domain event.
type RoomSettings struct {
	MaxMembers       int      `json:"max_members" validate:"gte=1,lte=64"`
	IsPrivate        bool     `json:"is_private"`
	AllowAudience    bool     `json:"allow_audience"`
	RequiresApproval bool     `json:"requires_approval"`
	GenreTags        []string `json:"genre_tags" validate:"max=10,dive,max=30"`
	Description      string   `json:"description" validate:"max=500"`
}

func (s RoomSettings) validate() error {
	if s.MaxMembers < 1 {
		return errors.Validation("max members must be at least 1, got %d", s.MaxMembers)
	}
	if len(s.Description) > 500 {
		return errors.Validation("description exceeds 500 characters")
	}
	return nil
}

// Diff lists the fields that change when moving from s to next, keeping a
// stable field order so consumers can replay it deterministically.
func (s RoomSettings) Diff(next RoomSettings) []event.FieldChange {
	var diff []event.FieldChange
	appendChange := func(field string, old, new any) {
		oldStr, newStr := fmt.Sprint(old), fmt.Sprint(new)
		if oldStr != newStr {
			diff = append(diff, event.FieldChange{Field: field, Old: oldStr, New: newStr})
		}
	}
	appendChange("max_members", s.MaxMembers, next.MaxMembers)
	appendChange("is_private", s.IsPrivate, next.IsPrivate)
	appendChange("allow_audience", s.AllowAudience, next.AllowAudience)
	appendChange("requires_approval", s.RequiresApproval, next.RequiresApproval)
	appendChange("genre_tags", strings.Join(s.GenreTags, ","), strings.Join(next.GenreTags, ","))
	appendChange("description", s.Description, next.Description)
	return diff
}
