package xpm

import (
	"context"

	"github.com/xpackagemanager/xpm/metadata"
)

// A Source supplies the repository snapshots resolution runs against. Each
// call returns a complete, internally consistent set.
type Source interface {
	Repositories(ctx context.Context) ([]metadata.Repository, error)
}

// DirSource reads every repository file in a directory.
type DirSource struct {
	Dir string
	// Priorities replaces the priority declared in a repository file, by
	// repository id.
	Priorities map[string]int
}

// Repositories implements Source.
func (s DirSource) Repositories(ctx context.Context) ([]metadata.Repository, error) {
	repos, err := metadata.LoadRepositoryDir(ctx, s.Dir)
	if err != nil {
		return nil, err
	}
	for i := range repos {
		if p, has := s.Priorities[repos[i].ID]; has {
			repos[i].Priority = p
		}
	}
	return repos, nil
}

// StaticSource is a fixed set of repositories.
type StaticSource []metadata.Repository

// Repositories implements Source.
func (s StaticSource) Repositories(ctx context.Context) ([]metadata.Repository, error) {
	return s, ctx.Err()
}
