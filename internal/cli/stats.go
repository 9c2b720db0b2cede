package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

var statsDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print ticket statistics from the store",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "rolling window for period statistics")
}

func runStats(cmd *cobra.Command, _ []string) error {
	if statsDays < 1 {
		return fmt.Errorf("--days must be at least 1")
	}
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	if err := cfg.ValidateStore(); err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := openMigratedStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.close()

	overall, err := st.tickets.Statistics(ctx)
	if err != nil {
		return err
	}
	period, err := st.tickets.PeriodStatistics(ctx, statsDays)
	if err != nil {
		return err
	}
	writeStats(cmd.OutOrStdout(), overall, period)
	return nil
}

func writeStats(w io.Writer, overall domain.TicketStatistics, period domain.PeriodStatistics) {
	fmt.Fprintf(w, "total:     %d\n", overall.Total)
	fmt.Fprintf(w, "open:      %d\n", overall.Open)
	fmt.Fprintf(w, "closed:    %d\n", overall.Closed)
	fmt.Fprintf(w, "claimed:   %d\n", overall.Claimed)
	fmt.Fprintf(w, "unclaimed: %d\n", overall.Unclaimed)
	fmt.Fprintf(w, "last %d days: %d created, %d open, %d closed\n", period.Days, period.Total, period.Open, period.Closed)
}
