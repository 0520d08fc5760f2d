package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prakashgbid/caia-sub003/internal/config"
	"github.com/prakashgbid/caia-sub003/internal/notify"
	"github.com/prakashgbid/caia-sub003/internal/pipeline"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <hierarchy-id>",
	Short: "Retry tracker replication for a stored hierarchy",
	Long: `Replay tracker replication for nodes that have no external ref
yet. Already-created issues keep their refs and are not resubmitted;
the tracker deduplicates retried creates by node ID.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	creator, err := buildCreator(cfg)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg.Quality.Threshold, cfg.Streams.Concurrency,
		pipeline.WithStore(db), pipeline.WithCreator(creator), pipeline.WithSink(notify.LogSink{}))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := p.Resume(ctx, args[0])
	if err != nil {
		return err
	}

	color.Green("%d issues created", len(results.Created))
	if len(results.Errors) > 0 {
		color.Red("%d failed", len(results.Errors))
		for _, e := range results.Errors {
			color.Red("  %s: %s", e.NodeID, e.Reason)
		}
	}
	if results.Complete() {
		fmt.Println("Replication complete.")
	}
	return nil
}
