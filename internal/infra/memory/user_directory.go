package memory

import (
	"context"

	"studyhub-contest-service/internal/domain"
)

// StaticUserDirectory resolves profiles from a fixed map. Unknown users fall
// back to an ID-only profile so leaderboards still render.
type StaticUserDirectory struct {
	profiles map[string]domain.UserProfile
}

func NewStaticUserDirectory(profiles map[string]domain.UserProfile) *StaticUserDirectory {
	if profiles == nil {
		profiles = make(map[string]domain.UserProfile)
	}
	return &StaticUserDirectory{profiles: profiles}
}

func (d *StaticUserDirectory) GetProfiles(_ context.Context, ids []string) (map[string]domain.UserProfile, error) {
	result := make(map[string]domain.UserProfile, len(ids))
	for _, id := range ids {
		if profile, ok := d.profiles[id]; ok {
			result[id] = profile
		} else {
			result[id] = domain.UserProfile{ID: id, Name: id}
		}
	}
	return result, nil
}
