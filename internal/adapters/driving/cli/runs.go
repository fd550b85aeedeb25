package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run ledger",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent ingestion runs, newest first",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one ingestion run in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.RunLedger().List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded yet.")
		return nil
	}

	for _, run := range runs {
		cmd.Printf("%s  %-8s  %-7s  started=%s  cases=%d dockets=%d documents=%d errors=%d\n",
			run.ID, run.Status, run.Source,
			run.StartedAt.UTC().Format(time.RFC3339),
			run.Cases, run.Dockets, run.Documents, run.Errors)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	run, err := store.RunLedger().Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	cmd.Printf("Run:            %s\n", run.ID)
	cmd.Printf("Source:         %s\n", run.Source)
	cmd.Printf("Status:         %s\n", run.Status)
	cmd.Printf("Started:        %s\n", run.StartedAt.UTC().Format(time.RFC3339))
	if run.FinishedAt != nil {
		cmd.Printf("Finished:       %s\n", run.FinishedAt.UTC().Format(time.RFC3339))
	} else {
		cmd.Println("Finished:       (still running or interrupted)")
	}
	cmd.Printf("Requested since: %s\n", formatOptionalTime(run.RequestedSince))
	cmd.Printf("Effective since: %s\n", formatOptionalTime(run.EffectiveSince))
	if run.CheckpointKey != "" {
		cmd.Printf("Checkpoint:     %s (resumed=%t)\n", run.CheckpointKey, run.Resumed)
	}
	if run.CaseLimit > 0 {
		cmd.Printf("Case limit:     %d\n", run.CaseLimit)
	}
	cmd.Printf("Cases:          %d\n", run.Cases)
	cmd.Printf("Dockets:        %d\n", run.Dockets)
	cmd.Printf("Documents:      %d\n", run.Documents)
	cmd.Printf("Errors:         %d\n", run.Errors)
	if run.ErrorMessage != "" {
		cmd.Printf("Last error:     %s\n", run.ErrorMessage)
	}
	return nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "(none)"
	}
	return t.UTC().Format(time.RFC3339)
}
