package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cohortd/cohortd/internal/types"
)

var (
	previewProject      string
	previewCriteriaFile string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Evaluate criteria against a project without persisting",
	Long: `Preview runs the same evaluation a recalculation would but returns only the
count: what this segment would contain if saved. Criteria are read as a JSON
document from --criteria-file or stdin.`,
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().StringVar(&previewProject, "project", "", "project id to evaluate against")
	previewCmd.Flags().StringVar(&previewCriteriaFile, "criteria-file", "", "criteria JSON file (default stdin)")
	previewCmd.MarkFlagRequired("project")
}

func runPreview(cmd *cobra.Command, args []string) error {
	projectID, err := types.ParseProjectID(previewProject)
	if err != nil {
		return fmt.Errorf("invalid project id %q: %w", previewProject, err)
	}

	var raw []byte
	if previewCriteriaFile != "" {
		raw, err = os.ReadFile(previewCriteriaFile)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read criteria: %w", err)
	}

	var criteria types.Criteria
	if err := json.Unmarshal(raw, &criteria); err != nil {
		return fmt.Errorf("decode criteria: %w", err)
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

	result, err := eng.materializer.Preview(cmd.Context(), projectID, criteria)
	if err != nil {
		return err
	}

	note := ""
	if result.Truncated {
		note = " (approximate: scan limit reached)"
	}
	fmt.Printf("size=%d%s\n", result.Size, note)
	return nil
}
