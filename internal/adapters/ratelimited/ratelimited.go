// Package ratelimited wraps a game repository so existence probes are spread
// out over time. Some console FTP servers drop the connection when hit with
// a burst of SIZE commands.
package ratelimited

import (
	"context"

	"go.uber.org/ratelimit"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// Repository delegates to an inner repository, taking a limiter slot before
// every Exists call.
type Repository struct {
	ports.GameRepository
	limiter ratelimit.Limiter
}

// New wraps repo. All repositories sharing limiter share its rate.
func New(repo ports.GameRepository, limiter ratelimit.Limiter) *Repository {
	return &Repository{GameRepository: repo, limiter: limiter}
}

// Exists waits for the limiter, then probes the inner repository.
func (r *Repository) Exists(ctx context.Context, game, path string, size int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.limiter.Take()
	return r.GameRepository.Exists(ctx, game, path, size)
}

// NewFactory limits every repository created by inner to perSecond probes
// per second in total. A non-positive rate returns inner unchanged.
func NewFactory(inner ports.RepositoryFactory, perSecond int) ports.RepositoryFactory {
	if perSecond <= 0 {
		return inner
	}
	limiter := ratelimit.New(perSecond, ratelimit.WithoutSlack)
	return ports.RepositoryFactoryFunc(func() ports.GameRepository {
		return New(inner.Create(), limiter)
	})
}

// Compile-time check that Repository implements ports.GameRepository.
var _ ports.GameRepository = (*Repository)(nil)
