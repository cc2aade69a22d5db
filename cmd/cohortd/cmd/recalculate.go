package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/cohortd/cohortd/internal/core/config"
	"github.com/cohortd/cohortd/internal/core/db"
	"github.com/cohortd/cohortd/internal/core/store"
	"github.com/cohortd/cohortd/internal/segment"
	"github.com/cohortd/cohortd/internal/types"
)

// storeRetries bounds caller-side retries of transient store failures. The
// evaluator itself never retries; retrying is this command's decision.
const storeRetries = 3

var recalcProject string

var recalculateCmd = &cobra.Command{
	Use:   "recalculate [segment-id...]",
	Short: "Recalculate segment membership snapshots",
	Long: `Recalculate fully re-evaluates each segment's criteria and replaces its
membership snapshot. With --project, all active segments of the project are
recalculated instead of an explicit id list.`,
	RunE: runRecalculate,
}

func init() {
	rootCmd.AddCommand(recalculateCmd)
	recalculateCmd.Flags().StringVar(&recalcProject, "project", "", "recalculate all active segments of this project")
}

// engine bundles the wired stores and materializer for one command run.
type engine struct {
	segments     *store.SegmentStore
	materializer *segment.Materializer
}

// buildEngine wires stores, evaluator and materializer over one database.
func buildEngine(cfg *config.Config, database *sqlx.DB) (*engine, error) {
	queries, err := db.LoadQueries(database)
	if err != nil {
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}

	events := store.NewEventStore(database, queries)
	segments := store.NewSegmentStore(database, queries)
	projects := store.NewProjectStore(queries)

	evaluator := segment.NewEvaluator(events, cfg.EventScanLimit, cfg.Parallelism)
	materializer := segment.NewMaterializer(segments, projects, evaluator, cfg.InsertBatchSize)

	return &engine{segments: segments, materializer: materializer}, nil
}

func runRecalculate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && recalcProject == "" {
		return fmt.Errorf("segment id arguments or --project required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	eng, err := buildEngine(cfg, database)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	var ids []types.SegmentID
	for _, arg := range args {
		id, err := types.ParseSegmentID(arg)
		if err != nil {
			return fmt.Errorf("invalid segment id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	if recalcProject != "" {
		projectID, err := types.ParseProjectID(recalcProject)
		if err != nil {
			return fmt.Errorf("invalid project id %q: %w", recalcProject, err)
		}
		segments, err := eng.segments.ListActive(ctx, projectID)
		if err != nil {
			return err
		}
		for _, seg := range segments {
			if seg.SegmentType == types.SegmentDynamic {
				ids = append(ids, seg.ID)
			}
		}
	}

	for _, id := range ids {
		if err := recalculateOne(ctx, cfg, eng, id); err != nil {
			return fmt.Errorf("recalculate segment %s: %w", id, err)
		}
	}
	return nil
}

// recalculateOne runs one bounded recalculation, retrying transient store
// failures with exponential backoff, then records the cached stats.
func recalculateOne(ctx context.Context, cfg *config.Config, eng *engine, id types.SegmentID) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.RecalcTimeout)
	defer cancel()

	var result segment.Result
	op := func() error {
		var err error
		result, err = eng.materializer.Calculate(ctx, id)
		if err == nil {
			return nil
		}
		if errors.Is(err, types.ErrStoreUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), storeRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return err
	}

	// Snapshot committed; only now may the cached size be presented as
	// current.
	if err := eng.segments.UpdateStats(ctx, id, result.Size, time.Now().UTC()); err != nil {
		return err
	}

	note := ""
	if result.Truncated {
		note = " (approximate: scan limit reached)"
	}
	fmt.Printf("%s size=%d%s\n", id, result.Size, note)
	return nil
}
