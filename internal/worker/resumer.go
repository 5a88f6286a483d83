// Package worker runs the ledger's background jobs.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"lottery-ledger/internal/service"
)

// Sweeper finishes settlement passes left incomplete by a crash or a
// failed write.
type Sweeper interface {
	ResumeAll(ctx context.Context) ([]*service.Settlement, error)
}

// Resumer sweeps interrupted settlements once at start-up and then on a
// fixed interval until stopped.
type Resumer struct {
	sweeper  Sweeper
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewResumer creates a Resumer. A zero interval runs only the start-up sweep.
func NewResumer(sweeper Sweeper, interval time.Duration) *Resumer {
	return &Resumer{
		sweeper:  sweeper,
		interval: interval,
	}
}

// Start runs the start-up sweep synchronously, so the ledger is consistent
// before callers are served, then starts the periodic sweep.
func (r *Resumer) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	log.Info().Dur("interval", r.interval).Msg("Starting settlement resumer...")
	r.sweep(ctx)

	if r.interval <= 0 {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep(ctx)
			}
		}
	}()
}

// Stop cancels the periodic sweep and waits for a running one to return.
func (r *Resumer) Stop() {
	log.Info().Msg("Stopping settlement resumer...")
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Resumer) sweep(ctx context.Context) {
	outcomes, err := r.sweeper.ResumeAll(ctx)
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("Settlement sweep finished with errors")
	}
	for _, o := range outcomes {
		log.Info().
			Str("lottery_id", o.LotteryID.String()).
			Int("settled", o.Settled).
			Str("total_paid", o.TotalPaid.String()).
			Msg("Resumed settlement")
	}
}
