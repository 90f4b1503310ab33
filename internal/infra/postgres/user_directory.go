package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"studyhub-contest-service/internal/domain"
)

// UserDirectory reads the identity slice the leaderboard needs from the
// platform's users table. Profile CRUD itself lives elsewhere.
type UserDirectory struct {
	db *bun.DB
}

func NewUserDirectory(db *bun.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          string `bun:"id,pk"`
	Name        string `bun:"name"`
	Institution string `bun:"institution"`
}

func (d *UserDirectory) GetProfiles(ctx context.Context, ids []string) (map[string]domain.UserProfile, error) {
	profiles := make(map[string]domain.UserProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	var rows []userRow
	err := d.db.NewSelect().Model(&rows).Where("u.id IN (?)", bun.In(ids)).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	for _, row := range rows {
		profiles[row.ID] = domain.UserProfile{
			ID:          row.ID,
			Name:        row.Name,
			Institution: row.Institution,
		}
	}
	// Unknown users still get an ID-only profile so rankings render.
	for _, id := range ids {
		if _, ok := profiles[id]; !ok {
			profiles[id] = domain.UserProfile{ID: id, Name: id}
		}
	}
	return profiles, nil
}
