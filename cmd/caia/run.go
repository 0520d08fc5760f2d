package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prakashgbid/caia-sub003/internal/config"
	"github.com/prakashgbid/caia-sub003/internal/notify"
	"github.com/prakashgbid/caia-sub003/internal/pipeline"
	"github.com/prakashgbid/caia-sub003/internal/state"
	"github.com/prakashgbid/caia-sub003/internal/tracker"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

var (
	runContext       string
	runCreate        bool
	runExport        string
	runMaxRework     int
	runTeamSize      int
	runExperience    string
	runTech          []string
	runTimelineWeeks int
)

var runCmd = &cobra.Command{
	Use:   "run <idea>",
	Short: "Decompose an idea into a work breakdown",
	Long: `Run the full pipeline for one project idea.

The idea is analyzed for objectives and constraints, decomposed into a
seven-level hierarchy, and validated against the quality gate with
bounded rework. Risk, estimation and success-probability streams run
in parallel once the gate passes.

With --create, the validated hierarchy is replicated into the tracker
configured under tracker.url, parents strictly before children. A run
interrupted mid-replication can be continued later with 'caia resume'.

Examples:
  caia run "Build a customer portal"
  caia run "Build a customer portal" --create --team-size 5
  caia run "Migrate billing to events" --export breakdown.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runContext, "context", "", "Additional context for the idea")
	runCmd.Flags().BoolVar(&runCreate, "create", false, "Replicate the hierarchy into the configured tracker")
	runCmd.Flags().StringVar(&runExport, "export", "", "Write the hierarchy to a YAML file")
	runCmd.Flags().IntVar(&runMaxRework, "max-rework", -1, "Override the rework cycle budget")
	runCmd.Flags().IntVar(&runTeamSize, "team-size", 0, "Executing team size")
	runCmd.Flags().StringVar(&runExperience, "experience", "", "Team experience level (junior, mixed, senior)")
	runCmd.Flags().StringSliceVar(&runTech, "tech", nil, "Technologies the team uses")
	runCmd.Flags().IntVar(&runTimelineWeeks, "timeline-weeks", 0, "Target timeline in weeks")
}

func runRun(cmd *cobra.Command, args []string) error {
	idea := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []pipeline.Option{
		pipeline.WithStore(db),
		pipeline.WithSink(notify.LogSink{}),
	}
	if runCreate {
		creator, err := buildCreator(cfg)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithCreator(creator))
	}

	p, err := pipeline.New(cfg.Quality.Threshold, cfg.Streams.Concurrency, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	maxRework := cfg.Quality.MaxReworkCycles
	if runMaxRework >= 0 {
		maxRework = runMaxRework
	}

	results, runErr := p.ProcessProject(ctx, pipeline.ProcessInput{
		Idea:    idea,
		Context: runContext,
		Team: models.TeamContext{
			Size:          runTeamSize,
			Experience:    runExperience,
			Technologies:  runTech,
			TimelineWeeks: runTimelineWeeks,
		},
		EnableExternalCreation: runCreate,
		MaxReworkCycles:        maxRework,
	})

	// Even a failed gate returns the best hierarchy produced, so print
	// whatever came back before surfacing the error.
	if results != nil {
		printResults(results)
		if runExport != "" && results.Hierarchy != nil {
			if err := exportHierarchy(results.Hierarchy, runExport); err != nil {
				return err
			}
			fmt.Printf("\nHierarchy written to %s\n", runExport)
		}
	}
	return runErr
}

func openStore(cfg *config.Config) (*state.DB, error) {
	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func buildCreator(cfg *config.Config) (*tracker.BulkIssueCreator, error) {
	client, err := tracker.NewHTTPClient(cfg.Tracker.URL, cfg.Tracker.Token)
	if err != nil {
		return nil, err
	}
	registry := tracker.NewBreakerRegistry(tracker.BreakerConfig{
		Threshold: cfg.Tracker.BreakerThreshold,
		Cooldown:  cfg.Tracker.BreakerCooldown,
	})
	return tracker.NewBulkIssueCreator(client, registry, tracker.CreatorConfig{
		BatchSize:          cfg.Tracker.BatchSize,
		Concurrency:        cfg.Tracker.Concurrency,
		RatePerSecond:      cfg.Tracker.RatePerSecond,
		WaitTimeout:        cfg.Tracker.RateWaitTimeout,
		ProceedWithoutLink: cfg.Tracker.ProceedWithoutLink,
		Retry: tracker.RetryPolicy{
			MaxAttempts: cfg.Tracker.RetryAttempts,
			BaseDelay:   cfg.Tracker.RetryBaseDelay,
		},
	}), nil
}

func printResults(results *models.ProjectResults) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	if h := results.Hierarchy; h != nil {
		bold.Printf("\nHierarchy %s: %d nodes\n", h.ID, h.Len())
		for level := models.LevelInitiative; level <= models.MaxLevel; level++ {
			fmt.Printf("  %-12s %d\n", level.String(), len(h.NodesAtLevel(level)))
		}
	}

	if q := results.Quality; q != nil {
		fmt.Println()
		if q.Passed {
			green.Printf("Quality gate passed: score %.3f", q.Score)
		} else {
			red.Printf("Quality gate failed: score %.3f", q.Score)
		}
		fmt.Printf(" (%d rework cycles)\n", q.ReworkCount)
		for _, issue := range q.Issues {
			yellow.Printf("  [%s] %s: %s\n", issue.Severity, issue.NodeID, issue.Reason)
		}
	}

	if a := results.Analysis; a != nil {
		fmt.Println()
		bold.Println("Analysis")
		fmt.Printf("  Risk score:          %.2f\n", a.RiskScore)
		for _, factor := range a.RiskFactors {
			fmt.Printf("    - %s\n", factor)
		}
		fmt.Printf("  Estimated effort:    %.1f days\n", a.EstimatedDays)
		fmt.Printf("  Success probability: %.0f%%\n", a.SuccessProbability*100)
	}

	if c := results.Creation; c != nil {
		fmt.Println()
		bold.Println("Tracker replication")
		green.Printf("  %d issues created\n", len(c.Created))
		if len(c.Errors) > 0 {
			red.Printf("  %d failed\n", len(c.Errors))
			for _, e := range c.Errors {
				kind := "transient"
				if e.Permanent {
					kind = "permanent"
				}
				red.Printf("    %s (%s, %d attempts): %s\n", e.NodeID, kind, e.Attempts, e.Reason)
			}
			yellow.Println("  Run 'caia resume' to retry unreplicated nodes.")
		}
		if c.Deferred > 0 {
			yellow.Printf("  %d batches deferred by rate limiting\n", c.Deferred)
		}
	}

	if len(results.Recommendations) > 0 {
		fmt.Println()
		bold.Println("Recommendations")
		for _, rec := range results.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
}
