package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cohortd/cohortd/internal/types"
)

var (
	membersLimit  int
	membersOffset int
)

var membersCmd = &cobra.Command{
	Use:   "members <segment-id>",
	Short: "Read a page of a segment's materialized snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runMembers,
}

func init() {
	rootCmd.AddCommand(membersCmd)
	membersCmd.Flags().IntVar(&membersLimit, "limit", 100, "maximum rows to return")
	membersCmd.Flags().IntVar(&membersOffset, "offset", 0, "rows to skip")
}

func runMembers(cmd *cobra.Command, args []string) error {
	id, err := types.ParseSegmentID(args[0])
	if err != nil {
		return fmt.Errorf("invalid segment id %q: %w", args[0], err)
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

	rows, err := eng.materializer.Members(cmd.Context(), id, membersLimit, membersOffset)
	if err != nil {
		return err
	}
	for _, row := range rows {
		fmt.Printf("%s\t%s\n", row.Identity(), row.AddedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}
