package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemolabs/reprime/internal/config"
	"github.com/mnemolabs/reprime/internal/domain"
	"github.com/mnemolabs/reprime/internal/service"
	"github.com/mnemolabs/reprime/internal/store"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one decay sweep and print what it would rescue",
	Long:  "Evaluates the decay model for every active item and prints the items due for rescue, without dispatching any sessions. Useful for inspecting queue pressure before tuning cycle caps.",
	RunE:  runSweep,
}

// printEnqueuer records instead of scheduling.
type printEnqueuer struct {
	requests []domain.RescueRequest
}

func (p *printEnqueuer) Enqueue(req domain.RescueRequest) bool {
	p.requests = append(p.requests, req)
	return true
}

func runSweep(cmd *cobra.Command, args []string) error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	dbURL := config.DatabaseURL()
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	itemStore := store.NewItemStore(pool)
	sink := &printEnqueuer{}

	watchdog := service.NewWatchdogService(itemStore, sink, logger)
	result, err := watchdog.RunSweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	fmt.Printf("evaluated %d items, flagged %d\n", result.Evaluated, result.Flagged)
	for _, req := range sink.requests {
		fmt.Printf("  %s  tier=%s urgency=%.2f since_access=%s\n",
			req.ItemID, req.Tier, req.UrgencyScore, req.SinceAccess.Round(time.Minute))
	}

	return nil
}
