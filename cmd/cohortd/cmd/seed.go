package cmd

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/cohortd/cohortd/internal/core/db"
	"github.com/cohortd/cohortd/internal/core/store"
	"github.com/cohortd/cohortd/internal/types"
)

var seedEvents int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a demo project with synthetic events and a sample segment",
	Long: `Seed creates a project, a spread of purchase/view/signup events across
registered and anonymous identities, and one sample segment, then prints the
ids for use with preview and recalculate.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().IntVar(&seedEvents, "events", 200, "number of events to generate")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}
	events := store.NewEventStore(database, queries)
	segments := store.NewSegmentStore(database, queries)
	projects := store.NewProjectStore(queries)

	ctx := cmd.Context()

	projectID := types.NewProjectID()
	if err := projects.Create(ctx, projectID, "demo"); err != nil {
		return err
	}

	names := []string{"purchase", "view", "signup"}
	plans := []string{"free", "pro", "enterprise"}
	now := time.Now().UTC()
	for i := 0; i < seedEvents; i++ {
		ev := types.Event{
			ID:        types.NewEventID(),
			ProjectID: projectID,
			Name:      names[rand.Intn(len(names))],
			Properties: types.Properties{
				"plan":   plans[rand.Intn(len(plans))],
				"amount": float64(rand.Intn(500)),
			},
			CreatedAt: now.Add(-time.Duration(rand.Intn(90*24)) * time.Hour),
		}
		// Roughly a third of traffic stays anonymous.
		if rand.Intn(3) == 0 {
			ev.AnonymousID = fmt.Sprintf("anon-%03d", rand.Intn(40))
		} else {
			ev.UserID = fmt.Sprintf("user-%03d", rand.Intn(60))
		}
		if err := events.Insert(ctx, ev); err != nil {
			return err
		}
	}

	seg := types.Segment{
		ID:        types.NewSegmentID(),
		ProjectID: projectID,
		Name:      "recent purchasers",
		IsActive:  true,
		Criteria: types.Criteria{
			Logic: types.LogicAnd,
			Conditions: []types.Condition{
				{
					Type:     types.ConditionEvent,
					Field:    "purchase",
					Operator: types.OpPerformed,
					Timeframe: &types.Timeframe{
						Type:  types.TimeframeLastNDays,
						Value: []byte("30"),
					},
				},
			},
		},
	}
	if err := segments.Create(ctx, seg); err != nil {
		return err
	}

	fmt.Printf("project=%s\nsegment=%s\nevents=%d\n", projectID, seg.ID, seedEvents)
	return nil
}
