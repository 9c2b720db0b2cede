package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// Sweeper drops expired state and reports how much it removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// StatsSource reports overall ticket counts.
type StatsSource interface {
	Statistics(ctx context.Context) (domain.TicketStatistics, error)
}

// HousekeepingDeps lists the periodic jobs' collaborators. Nil members are skipped.
type HousekeepingDeps struct {
	Sessions   Sweeper
	Stats      StatsSource
	SweepSpec  string
	ReportSpec string
	Logger     *zap.Logger
}

// RegisterHousekeeping adds the session sweep and the statistics report to jobs.
func RegisterHousekeeping(jobs *Jobs, deps HousekeepingDeps) error {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Sessions != nil {
		spec := deps.SweepSpec
		if spec == "" {
			spec = "@every 1m"
		}
		if err := jobs.Add(spec, "session-sweep", func(ctx context.Context) error {
			removed, err := deps.Sessions.Sweep(ctx)
			if err != nil {
				return err
			}
			if removed > 0 {
				logger.Info("expired setup sessions removed", zap.Int("count", removed))
			}
			return nil
		}); err != nil {
			return err
		}
	}
	if deps.Stats != nil {
		spec := deps.ReportSpec
		if spec == "" {
			spec = "@hourly"
		}
		if err := jobs.Add(spec, "stats-report", func(ctx context.Context) error {
			stats, err := deps.Stats.Statistics(ctx)
			if err != nil {
				return err
			}
			logger.Info("ticket statistics",
				zap.Int64("total", stats.Total),
				zap.Int64("open", stats.Open),
				zap.Int64("closed", stats.Closed),
				zap.Int64("claimed", stats.Claimed),
				zap.Int64("unclaimed", stats.Unclaimed))
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}
