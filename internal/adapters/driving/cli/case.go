package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Inspect ingested cases",
}

var caseShowCmd = &cobra.Command{
	Use:   "show <case-id>",
	Short: "Show an ingested case with its dockets and documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseShow,
}

func init() {
	caseCmd.AddCommand(caseShowCmd)
	rootCmd.AddCommand(caseCmd)
}

func runCaseShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	records := store.RecordStore()
	cs, err := records.GetCase(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	cmd.Printf("Case:    %s\n", cs.ID)
	cmd.Printf("Name:    %s\n", cs.Name)
	if cs.Court != "" {
		cmd.Printf("Court:   %s\n", cs.Court)
	}
	if cs.State != "" {
		cmd.Printf("State:   %s\n", cs.State)
	}
	if cs.Status != "" {
		cmd.Printf("Status:  %s\n", cs.Status)
	}
	if cs.LastChecked != nil {
		cmd.Printf("Updated: %s\n", cs.LastChecked.UTC().Format(time.RFC3339))
	}

	dockets, err := records.ListDockets(cmd.Context(), cs.ID)
	if err != nil {
		return err
	}
	cmd.Printf("\nDockets (%d):\n", len(dockets))
	for _, d := range dockets {
		main := ""
		if d.IsMain {
			main = " [main]"
		}
		cmd.Printf("  %s  %s%s\n", d.ID, d.DocketNumber, main)
	}

	documents, err := records.ListDocuments(cmd.Context(), cs.ID)
	if err != nil {
		return err
	}
	cmd.Printf("\nDocuments (%d):\n", len(documents))
	for _, doc := range documents {
		filed := ""
		if doc.FiledDate != nil {
			filed = "  filed " + doc.FiledDate.UTC().Format("2006-01-02")
		}
		cmd.Printf("  %s  %s (%s)%s\n", doc.ID, doc.Title, doc.Type, filed)
	}
	return nil
}
