package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prakashgbid/caia-sub003/internal/config"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored hierarchies",
	Long: `List hierarchies saved by previous runs, with how many of their
nodes still await tracker replication.`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	hierarchies, err := db.ListHierarchies()
	if err != nil {
		return err
	}
	if len(hierarchies) == 0 {
		fmt.Println("No stored hierarchies. Run 'caia run <idea>' to create one.")
		return nil
	}

	for id, idea := range hierarchies {
		pending, err := db.PendingReplication(id)
		if err != nil {
			return err
		}
		color.New(color.Bold).Printf("%s", id)
		fmt.Printf("  %s", idea)
		if len(pending) > 0 {
			color.Yellow("  (%d nodes pending replication)", len(pending))
		} else {
			fmt.Println()
		}
	}
	return nil
}
