package worker

import (
	"context"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper runs the recovery jobs: due releases whose task was lost and
// payouts stuck in pending after a gateway timeout.
type Sweeper struct {
	settlements ports.SettlementService
	payouts     ports.PayoutService
	settleCfg   config.SettlementConfig
	payoutCfg   config.PayoutConfig
	now         func() time.Time
	log         zerolog.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(
	settlements ports.SettlementService,
	payouts ports.PayoutService,
	settleCfg config.SettlementConfig,
	payoutCfg config.PayoutConfig,
	log zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		settlements: settlements,
		payouts:     payouts,
		settleCfg:   settleCfg,
		payoutCfg:   payoutCfg,
		now:         time.Now,
		log:         log,
	}
}

// Schedule registers both jobs on a new cron and returns it unstarted.
func (s *Sweeper) Schedule(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.settleCfg.SweepSpec, func() { s.SweepReleases(ctx) }); err != nil {
		return nil, err
	}
	if _, err := c.AddFunc(s.payoutCfg.ResubmitSpec, func() { s.ResubmitPayouts(ctx) }); err != nil {
		return nil, err
	}
	return c, nil
}

// SweepReleases releases every held settlement past its release time.
func (s *Sweeper) SweepReleases(ctx context.Context) {
	n, err := s.settlements.SweepDueReleases(ctx, s.now().UTC(), s.settleCfg.SweepBatch)
	if err != nil {
		s.log.Error().Err(err).Msg("release sweep failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("released", n).Msg("release sweep")
	}
}

// ResubmitPayouts resubmits pending payouts older than the configured age.
func (s *Sweeper) ResubmitPayouts(ctx context.Context) {
	n, err := s.payouts.ResubmitStale(ctx, s.payoutCfg.ResubmitAfter, s.payoutCfg.ResubmitBatch)
	if err != nil {
		s.log.Error().Err(err).Msg("payout resubmission failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("resubmitted", n).Msg("payout resubmission")
	}
}
