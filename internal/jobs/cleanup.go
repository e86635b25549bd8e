package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/liwanag/screening-server/internal/repository"
)

// CleanupJob periodically removes expired login sessions and pauses
// screening sessions that were left active with no recent measurements.
type CleanupJob struct {
	loginSessionRepo repository.LoginSessionRepository
	sessionRepo      repository.SessionRepository
	interval         time.Duration
	staleAfter       time.Duration
	done             chan struct{}
}

func NewCleanupJob(
	loginSessionRepo repository.LoginSessionRepository,
	sessionRepo repository.SessionRepository,
	interval time.Duration,
	staleAfter time.Duration,
) *CleanupJob {
	return &CleanupJob{
		loginSessionRepo: loginSessionRepo,
		sessionRepo:      sessionRepo,
		interval:         interval,
		staleAfter:       staleAfter,
		done:             make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "login sessions", j.loginSessionRepo.DeleteExpired)
	if j.staleAfter > 0 {
		cutoff := time.Now().UTC().Add(-j.staleAfter)
		j.runCleanup(ctx, "stale screening sessions", func(ctx context.Context) (int64, error) {
			return j.sessionRepo.PauseStale(ctx, cutoff)
		})
	}
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
